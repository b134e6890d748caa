package handler // declare the package name; contains HTTP handlers

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
)

// Check pings one dependency; a nil error means healthy.
type Check func(ctx context.Context) error

// Health reports liveness plus the state of each registered dependency.
// Any failing check turns the response into 503 so load balancers stop
// routing to the instance.
type Health struct {
    Checks map[string]Check
}

// Handle serves GET /health.
func (h *Health) Handle(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
    defer cancel()

    status := http.StatusOK
    deps := make(map[string]string, len(h.Checks))
    for name, check := range h.Checks {
        if err := check(ctx); err != nil {
            deps[name] = err.Error()
            status = http.StatusServiceUnavailable
            continue
        }
        deps[name] = "ok"
    }
    overall := "ok"
    if status != http.StatusOK {
        overall = "degraded"
    }
    return c.JSON(status, echo.Map{"status": overall, "dependencies": deps})
}
