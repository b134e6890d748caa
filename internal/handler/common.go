package handler // handler defines http handlers

import (
    "context"
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/seat-booking/internal/logging"
    "github.com/iliyamo/seat-booking/internal/middleware"
    "github.com/iliyamo/seat-booking/internal/service"
)

// SessionHeader identifies the browsing session (one per tab) that owns
// seat locks. The session_id query parameter is accepted as well because
// EventSource cannot set headers.
const SessionHeader = "X-Session-ID"

// getUserID returns the authenticated user ID placed in the context by
// JWTAuth.
func getUserID(c echo.Context) (string, error) {
    uid, _ := middleware.CurrentUser(c)
    if uid == "" {
        return "", errors.New("missing user_id in context")
    }
    return uid, nil
}

// requester builds the service view of the caller.
func requester(c echo.Context) (service.Requester, error) {
    uid, role := middleware.CurrentUser(c)
    if uid == "" {
        return service.Requester{}, errors.New("missing user_id in context")
    }
    return service.Requester{UserID: uid, Role: role}, nil
}

func sessionID(c echo.Context) string {
    if s := c.Request().Header.Get(SessionHeader); s != "" {
        return s
    }
    return c.QueryParam("session_id")
}

func unauthorized(c echo.Context) error {
    return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

// writeError maps service errors to HTTP responses. Anything it does not
// recognise is logged and reported as 500.
func writeError(c echo.Context, err error) error {
    var conflict *service.ConflictError
    switch {
    case errors.As(err, &conflict):
        msg := "seats unavailable"
        if errors.Is(err, service.ErrStoreWriteConflict) {
            msg = "seats are being booked concurrently, please retry"
        }
        return c.JSON(http.StatusConflict, echo.Map{"error": msg, "seats": conflict.Seats})
    case errors.Is(err, service.ErrInvalidRequest):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    case errors.Is(err, service.ErrShowNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "show not found"})
    case errors.Is(err, service.ErrBookingNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
    case errors.Is(err, service.ErrNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
    case errors.Is(err, service.ErrForbidden):
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    case errors.Is(err, service.ErrAlreadyProcessed):
        return c.JSON(http.StatusConflict, echo.Map{"error": err.Error(), "code": "already_processed"})
    case errors.Is(err, service.ErrUpstreamPayment):
        return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment provider unavailable"})
    case errors.Is(err, context.Canceled):
        // client went away; nobody reads the response
        return nil
    }
    logging.FromContext(c.Request().Context()).WithError(err).Error("request failed")
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
