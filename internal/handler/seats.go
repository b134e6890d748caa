package handler

import (
    "context"
    "encoding/json"
    "fmt"
    "net/http"
    "time"

    "github.com/google/uuid"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/seat-booking/internal/locktable"
    "github.com/iliyamo/seat-booking/internal/logging"
    "github.com/iliyamo/seat-booking/internal/model"
    "github.com/iliyamo/seat-booking/internal/service"
)

// Subscriber is the subscribe side of the broadcast hub.
type Subscriber interface {
    Subscribe(showID, sessionID string) (<-chan model.SeatEvent, error)
}

// SeatHandler serves the interactive seat selection endpoints: the seat
// map, the live event stream and seat locks.
type SeatHandler struct {
    Selection *service.SeatSelection
    Hub       Subscriber
    KeepAlive time.Duration // comment line interval on idle streams
}

// NewSeatHandler constructs a SeatHandler and panics if a dependency is nil.
func NewSeatHandler(selection *service.SeatSelection, hub Subscriber) *SeatHandler {
    if selection == nil || hub == nil {
        panic("nil dependency passed to NewSeatHandler")
    }
    return &SeatHandler{Selection: selection, Hub: hub, KeepAlive: 25 * time.Second}
}

// SeatMap handles GET /api/shows/:id/seats. It returns every seat of the
// show as available, locked or booked. This is the snapshot clients
// resync from; events are only hints.
func (h *SeatHandler) SeatMap(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return unauthorized(c)
    }
    m, err := h.Selection.SeatMap(c.Request().Context(), c.Param("id"), uid)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, m)
}

// Lock handles POST /api/shows/:id/seats/:seat/lock. The lock belongs to
// the caller's session and expires on its own unless refreshed by locking
// again.
func (h *SeatHandler) Lock(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return unauthorized(c)
    }
    session := sessionID(c)
    if session == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": SessionHeader + " header is required"})
    }
    seat := c.Param("seat")
    res, err := h.Selection.Select(c.Request().Context(), c.Param("id"), seat, uid, session)
    if err != nil {
        return writeError(c, err)
    }
    if res != locktable.Granted {
        return c.JSON(http.StatusConflict, echo.Map{"result": res.String(), "seat": seat})
    }
    return c.JSON(http.StatusOK, echo.Map{"result": res.String(), "seat": seat})
}

// Unlock handles DELETE /api/shows/:id/seats/:seat/lock. Unlocking a seat
// the session does not hold is not an error.
func (h *SeatHandler) Unlock(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return unauthorized(c)
    }
    released, err := h.Selection.Release(c.Request().Context(), c.Param("id"), c.Param("seat"), uid, sessionID(c))
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"released": released})
}

// Disconnect handles POST /api/sessions/disconnect: the session's event
// stream is closed and all its locks are released.
func (h *SeatHandler) Disconnect(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return unauthorized(c)
    }
    session := sessionID(c)
    if session == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": SessionHeader + " header is required"})
    }
    keys, err := h.Selection.Disconnect(c.Request().Context(), session, uid)
    if err != nil {
        return writeError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"released": len(keys)})
}

// Events handles GET /api/shows/:id/events as a server-sent event stream.
// The first event names the session (minted when the client sent none),
// the second is a seat map snapshot, then seat-selected and seat-released
// events follow. When the client goes away its session is disconnected.
func (h *SeatHandler) Events(c echo.Context) error {
    uid, err := getUserID(c)
    if err != nil {
        return unauthorized(c)
    }
    ctx := c.Request().Context()
    showID := c.Param("id")
    session := sessionID(c)
    if session == "" {
        session = uuid.NewString()
    }

    snapshot, err := h.Selection.SeatMap(ctx, showID, uid)
    if err != nil {
        return writeError(c, err)
    }
    stream, err := h.Hub.Subscribe(showID, session)
    if err != nil {
        return writeError(c, err)
    }

    w := c.Response()
    w.Header().Set(echo.HeaderContentType, "text/event-stream")
    w.Header().Set(echo.HeaderCacheControl, "no-cache")
    w.Header().Set(echo.HeaderConnection, "keep-alive")
    w.Header().Set("X-Accel-Buffering", "no")
    w.WriteHeader(http.StatusOK)

    logger := logging.FromContext(ctx).WithField("session_id", session)
    if err := writeEvent(w, "session", echo.Map{"session_id": session}); err != nil {
        return nil
    }
    if err := writeEvent(w, "snapshot", snapshot); err != nil {
        return nil
    }

    keepAlive := h.KeepAlive
    if keepAlive <= 0 {
        keepAlive = 25 * time.Second
    }
    ticker := time.NewTicker(keepAlive)
    defer ticker.Stop()

    for {
        select {
        case <-ctx.Done():
            dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
            if _, err := h.Selection.Disconnect(dctx, session, uid); err != nil {
                logger.WithError(err).Warn("releasing locks of a closed stream failed")
            }
            cancel()
            return nil
        case ev, ok := <-stream:
            if !ok {
                // replaced by a newer stream of the same session, or shutdown
                return nil
            }
            if err := writeEvent(w, string(ev.Type), ev); err != nil {
                logger.WithError(err).Debug("event stream write failed")
                return nil
            }
        case <-ticker.C:
            if _, err := fmt.Fprint(w, ": keep-alive\n\n"); err != nil {
                return nil
            }
            w.Flush()
        }
    }
}

func writeEvent(w *echo.Response, name string, data any) error {
    payload, err := json.Marshal(data)
    if err != nil {
        return err
    }
    if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, payload); err != nil {
        return err
    }
    w.Flush()
    return nil
}
