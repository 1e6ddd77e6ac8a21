package api

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
)

// streamTasks serves the live task list of one event over SSE. Each remote
// rewrite of the task-list record produces one `data:` frame carrying the
// full normalized list. The client's identity session lives exactly as long
// as the stream: created on attach, ended on disconnect.
func streamTasks(dir Directory, engine TaskEngine, sessions Sessions, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := c.QueryParam("token")
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if authHeader == "" && token != "" {
			authHeader = "Bearer " + token
		}
		ident, err := auth.IdentityFromAuthHeader(authHeader)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		ev, member := memberEvent(c, dir, ident.UserID)
		if !member {
			return nil
		}
		c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
		c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
		c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
		c.Response().Header().Set("X-Accel-Buffering", "no")
		flusher, fOk := c.Response().Writer.(http.Flusher)
		if !fOk {
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}

		ctx := c.Request().Context()
		session := sessions.Begin(ctx, ident.UserID, ident.Email)
		if session != nil {
			defer session.End()
		}

		snapshots := engine.Subscribe(ctx, ev.ID)
		for {
			select {
			case <-ctx.Done():
				return nil
			case tasks, open := <-snapshots:
				if !open {
					return nil
				}
				data, err := json.Marshal(tasks)
				if err != nil {
					c.Logger().Error(err)
					return nil
				}
				if _, err := c.Response().Write([]byte("data: ")); err != nil {
					return nil
				}
				if _, err := c.Response().Write(data); err != nil {
					return nil
				}
				if _, err := c.Response().Write([]byte("\n\n")); err != nil {
					return nil
				}
				flusher.Flush()
			}
		}
	}
}
