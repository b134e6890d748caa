package handler

import (
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/seat-booking/internal/service"
)

// BookingHandler serves booking creation, payment, cancellation and
// lookups. All methods assume JWTAuth has run.
type BookingHandler struct {
    Coordinator *service.Coordinator
    Settler     *service.Settler
    Canceller   *service.Canceller
    Queries     *service.BookingQueries
}

// NewBookingHandler constructs a BookingHandler and panics if any
// dependency is nil.
func NewBookingHandler(coord *service.Coordinator, settler *service.Settler, canceller *service.Canceller, queries *service.BookingQueries) *BookingHandler {
    if coord == nil || settler == nil || canceller == nil || queries == nil {
        panic("nil service passed to NewBookingHandler")
    }
    return &BookingHandler{Coordinator: coord, Settler: settler, Canceller: canceller, Queries: queries}
}

type createBookingRequest struct {
    ShowID string                `json:"show_id"`
    Seats  []service.SeatRequest `json:"seats"`
}

// Create handles POST /api/bookings. On success the seats are committed to
// a pending booking and 201 is returned with it; the booking must then be
// paid before the payment timeout.
func (h *BookingHandler) Create(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return unauthorized(c)
    }
    var body createBookingRequest
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if body.ShowID == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "show_id is required"})
    }
    b, err := h.Coordinator.Reserve(c.Request().Context(), body.ShowID, uid, body.Seats)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusCreated, b)
}

// Get handles GET /api/bookings/:id for the owner or an admin.
func (h *BookingHandler) Get(c echo.Context) error {
    req, err := requester(c)
    if err != nil {
        return unauthorized(c)
    }
    b, err := h.Queries.Get(c.Request().Context(), c.Param("id"), req)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, b)
}

// ListMine handles GET /api/bookings/my.
func (h *BookingHandler) ListMine(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return unauthorized(c)
    }
    list, err := h.Queries.ListForUser(c.Request().Context(), uid)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"bookings": list})
}

// Pay handles POST /api/bookings/:id/pay. A declined payment is a normal
// 200 response with outcome "failed"; a provider failure is 502 and still
// carries the (now failed) booking.
func (h *BookingHandler) Pay(c echo.Context) error {
    req, err := requester(c)
    if err != nil {
        return unauthorized(c)
    }
    var body struct {
        PaymentMethod string `json:"payment_method"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    st, err := h.Settler.Settle(c.Request().Context(), c.Param("id"), req, body.PaymentMethod)
    if err != nil {
        if errors.Is(err, service.ErrUpstreamPayment) && st != nil {
            return c.JSON(http.StatusBadGateway, echo.Map{"error": "payment provider unavailable", "booking": st.Booking})
        }
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, st)
}

// Cancel handles POST /api/bookings/:id/cancel for the owner or an admin.
// The body may carry a reason.
func (h *BookingHandler) Cancel(c echo.Context) error {
    req, err := requester(c)
    if err != nil {
        return unauthorized(c)
    }
    var body struct {
        Reason string `json:"reason"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    b, err := h.Canceller.Cancel(c.Request().Context(), c.Param("id"), req, body.Reason)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, b)
}
