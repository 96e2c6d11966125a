package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"kanban-api/domain"
	"kanban-api/events"
)

// keepAliveInterval paces ping frames so idle connections survive
// intermediary timeouts.
const keepAliveInterval = 30 * time.Second

const streamBuffer = 16

// streamEvents is the long-lived push endpoint. Every connection first gets a
// connected frame, then a fan-out of all committed moves plus periodic pings.
// The bus carries every project; clients filter by project id.
func streamEvents(bus *events.Bus, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		// EventSource cannot set headers, so the token may arrive as a query
		// parameter instead.
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if token := c.QueryParam("token"); authHeader == "" && token != "" {
			authHeader = "Bearer " + token
		}
		if _, err := auth.UserIDFromAuthHeader(authHeader); err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
		c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
		c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
		c.Response().Header().Set("X-Accel-Buffering", "no")
		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}

		ctx := c.Request().Context()
		sub := bus.Subscribe(streamBuffer, domain.EventTaskMoved, domain.EventColumnsReordered)
		// Close is idempotent: both a failed write and request cancellation
		// funnel through it.
		defer sub.Close()

		if err := writeFrame(c, flusher, domain.Connected{}); err != nil {
			return nil
		}

		ticker := time.NewTicker(keepAliveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if err := writeFrame(c, flusher, domain.Ping{}); err != nil {
					sub.Close()
					return nil
				}
			case ev, open := <-sub.C:
				if !open {
					return nil
				}
				if err := writeFrame(c, flusher, ev); err != nil {
					sub.Close()
					return nil
				}
			}
		}
	}
}

func writeFrame(c echo.Context, flusher http.Flusher, ev domain.Event) error {
	data, err := domain.EncodeEvent(ev)
	if err != nil {
		c.Logger().Error(err)
		return err
	}
	if _, err := c.Response().Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := c.Response().Write(data); err != nil {
		return err
	}
	if _, err := c.Response().Write([]byte("\n\n")); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
