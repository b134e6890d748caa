package middleware

import (
    "time"

    "github.com/labstack/echo/v4"
    "github.com/lithammer/shortuuid/v3"
    "github.com/sirupsen/logrus"

    "github.com/iliyamo/seat-booking/internal/logging"
    "github.com/iliyamo/seat-booking/internal/monitoring"
)

// CorrelationHeader carries the request's correlation ID in both
// directions.
const CorrelationHeader = "Correlation-ID"

// RequestLogger tags each request with a correlation ID (taken from the
// Correlation-ID header or freshly minted), puts a request-scoped logger in
// its context, and logs one line per request once the handler returns.
func RequestLogger(base *logrus.Entry) echo.MiddlewareFunc {
    if base == nil {
        base = logrus.NewEntry(logrus.StandardLogger())
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            req := c.Request()
            id := req.Header.Get(CorrelationHeader)
            if id == "" {
                id = shortuuid.New()
            }
            c.Response().Header().Set(CorrelationHeader, id)

            ctx := logging.ToContext(req.Context(), base)
            ctx = logging.WithCorrelationID(ctx, id)
            c.SetRequest(req.WithContext(ctx))

            start := time.Now()
            err := next(c)
            if err != nil {
                c.Error(err)
            }
            took := time.Since(start)
            status := c.Response().Status

            route := c.Path()
            if route == "" {
                route = "unmatched"
            }
            monitoring.HTTPRequest(req.Method, route, status, took)

            entry := logging.FromContext(c.Request().Context()).WithFields(logrus.Fields{
                "method":     req.Method,
                "path":       req.URL.Path,
                "status":     status,
                "latency_ms": took.Milliseconds(),
            })
            switch {
            case status >= 500:
                entry.Error("request failed")
            case status >= 400:
                entry.Info("request rejected")
            default:
                entry.Debug("request served")
            }
            return nil
        }
    }
}
