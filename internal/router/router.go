package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/seat-booking/internal/handler"
	"github.com/iliyamo/seat-booking/internal/middleware"
	"github.com/iliyamo/seat-booking/internal/service"
)

// RegisterRoutes registers the unauthenticated operational endpoints:
// health and Prometheus metrics.
func RegisterRoutes(e *echo.Echo, health *handler.Health) {
	e.GET("/health", health.Handle)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterAPI registers the seat selection, booking and notification
// endpoints under /api. Every route requires a valid access token for a
// known role; extra middleware (rate limiting) runs after authentication
// so limits can be keyed by user.
func RegisterAPI(e *echo.Echo, seats *handler.SeatHandler, bookings *handler.BookingHandler, notifications *handler.NotificationHandler, jwtSecret string, extra ...echo.MiddlewareFunc) {
	mw := []echo.MiddlewareFunc{
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(service.RoleCustomer, service.RoleAdmin),
	}
	g := e.Group("/api", append(mw, extra...)...)

	g.GET("/shows/:id/seats", seats.SeatMap)
	g.GET("/shows/:id/events", seats.Events)
	g.POST("/shows/:id/seats/:seat/lock", seats.Lock)
	g.DELETE("/shows/:id/seats/:seat/lock", seats.Unlock)
	g.POST("/sessions/disconnect", seats.Disconnect)

	g.POST("/bookings", bookings.Create)
	g.GET("/bookings/my", bookings.ListMine)
	g.GET("/bookings/:id", bookings.Get)
	g.POST("/bookings/:id/pay", bookings.Pay)
	g.POST("/bookings/:id/cancel", bookings.Cancel)

	g.GET("/notifications", notifications.ListMine)
}
