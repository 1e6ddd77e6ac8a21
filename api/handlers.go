package api

import (
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"simcha-api/directory"
	"simcha-api/domain"
)

const requestBodyMaxSize = 1 << 20

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, dir Directory, members Membership, engine TaskEngine, catalog Catalog, sessions Sessions, auth Authenticator, deduper Deduper, logger *log.Logger) {
	e.GET("/api/events", listEvents(dir, auth))
	e.POST("/api/events", createEvent(dir, auth, deduper))
	e.GET("/api/events/:id", getEvent(dir, auth))
	e.PATCH("/api/events/:id", updateEvent(dir, auth))

	e.GET("/api/events/:id/tasks", getTasks(dir, engine, auth, logger))
	e.GET("/api/events/:id/tasks/stream", streamTasks(dir, engine, sessions, auth))
	e.POST("/api/events/:id/tasks", addTask(dir, engine, auth, deduper))
	e.PATCH("/api/events/:id/tasks/:taskId", updateTask(dir, engine, auth))
	e.POST("/api/events/:id/tasks/:taskId/toggle", toggleTask(dir, engine, auth))
	e.PUT("/api/events/:id/tasks/:taskId/reminder", setReminder(dir, engine, auth))
	e.DELETE("/api/events/:id/tasks/:taskId", deleteTask(dir, engine, auth))
	e.POST("/api/events/:id/tasks/defaults", addDefaultTasks(dir, engine, auth, deduper))
	e.DELETE("/api/events/:id/tasks/defaults", removeDefaultTasks(dir, engine, auth))

	e.POST("/api/events/:id/members", addMember(dir, members, auth))
	e.DELETE("/api/events/:id/members/:identity", removeMember(dir, members, auth))

	e.GET("/api/profile", getProfile(sessions, auth))
	e.PUT("/api/profile", saveProfile(sessions, auth))
	e.GET("/api/event-types", listEventTypes(catalog, auth))

	e.GET("/healthz", healthz())
}

type statusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func ok(c echo.Context, success bool) error {
	return c.JSON(http.StatusOK, statusResponse{Success: success})
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

// requireIdentity authenticates the request. On failure it writes the 401
// response and returns a zero identity.
func requireIdentity(c echo.Context, auth Authenticator) (Identity, bool) {
	ident, err := auth.IdentityFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		_ = c.String(http.StatusUnauthorized, err.Error())
		return Identity{}, false
	}
	return ident, true
}

// memberEvent loads the event and gates it on membership. Absent events and
// events the identity is not a member of both respond 404 so membership
// cannot be probed.
func memberEvent(c echo.Context, dir Directory, userID string) (*domain.Event, bool) {
	ev := dir.Get(c.Request().Context(), c.Param("id"))
	if ev == nil || !ev.IsMember(userID) {
		_ = c.String(http.StatusNotFound, "event not found")
		return nil, false
	}
	return ev, true
}

func decodeBody(c echo.Context, out any) error {
	lr := io.LimitReader(c.Request().Body, requestBodyMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

// replayed consults the deduper for the request's Idempotency-Key. It
// returns true when the mutation was already applied; a missing header means
// the caller opted out of replay protection.
func replayed(c echo.Context, deduper Deduper, userID string) (bool, string) {
	key := c.Request().Header.Get("Idempotency-Key")
	if key == "" || deduper == nil {
		return false, ""
	}
	added, err := deduper.Add(c.Request().Context(), userID, key)
	if err != nil {
		c.Logger().Errorf("deduper: %v", err)
		return false, ""
	}
	return !added, key
}

func rollbackReplay(c echo.Context, deduper Deduper, userID, key string) {
	if key == "" || deduper == nil {
		return
	}
	if err := deduper.Remove(c.Request().Context(), userID, key); err != nil {
		c.Logger().Errorf("deduper rollback: %v", err)
	}
}

func listEvents(dir Directory, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ident, authed := requireIdentity(c, auth)
		if !authed {
			return nil
		}
		events := dir.ListFor(c.Request().Context(), ident.UserID)
		return c.JSON(http.StatusOK, events)
	}
}

type createEventRequest struct {
	Name            string `json:"name"`
	Type            string `json:"type"`
	Date            string `json:"date,omitempty"`
	Description     string `json:"description,omitempty"`
	AddDefaultTasks bool   `json:"addDefaultTasks,omitempty"`
}

func createEvent(dir Directory, auth Authenticator, deduper Deduper) echo.HandlerFunc {
	return func(c echo.Context) error {
		ident, authed := requireIdentity(c, auth)
		if !authed {
			return nil
		}
		var req createEventRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if req.Name == "" || req.Type == "" {
			return c.String(http.StatusBadRequest, "name and type are required")
		}
		done, key := replayed(c, deduper, ident.UserID)
		if done {
			return ok(c, true)
		}
		ev := dir.Create(c.Request().Context(), directory.CreateParams{
			Name:            req.Name,
			Type:            req.Type,
			Date:            req.Date,
			Description:     req.Description,
			AddDefaultTasks: req.AddDefaultTasks,
			OwnerID:         ident.UserID,
		})
		if ev == nil {
			rollbackReplay(c, deduper, ident.UserID, key)
			return c.String(http.StatusInternalServerError, "failed to create event")
		}
		return c.JSON(http.StatusCreated, ev)
	}
}

func getEvent(dir Directory, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ident, authed := requireIdentity(c, auth)
		if !authed {
			return nil
		}
		ev, member := memberEvent(c, dir, ident.UserID)
		if !member {
			return nil
		}
		return c.JSON(http.StatusOK, ev)
	}
}

func updateEvent(dir Directory, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ident, authed := requireIdentity(c, auth)
		if !authed {
			return nil
		}
		ev, member := memberEvent(c, dir, ident.UserID)
		if !member {
			return nil
		}
		var upd directory.EventUpdate
		if err := decodeBody(c, &upd); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		return ok(c, dir.Update(c.Request().Context(), ev.ID, upd))
	}
}

type addMemberRequest struct {
	Email string `json:"email"`
}

func addMember(dir Directory, members Membership, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ident, authed := requireIdentity(c, auth)
		if !authed {
			return nil
		}
		ev, member := memberEvent(c, dir, ident.UserID)
		if !member {
			return nil
		}
		var req addMemberRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if req.Email == "" {
			return c.String(http.StatusBadRequest, "email is required")
		}
		return ok(c, members.AddMember(c.Request().Context(), ev.ID, req.Email))
	}
}

func removeMember(dir Directory, members Membership, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ident, authed := requireIdentity(c, auth)
		if !authed {
			return nil
		}
		ev, member := memberEvent(c, dir, ident.UserID)
		if !member {
			return nil
		}
		target := c.Param("identity")
		if target == ev.OwnerID {
			// Refusal, not a generic failure: callers show a dedicated message.
			return c.JSON(http.StatusOK, statusResponse{Success: false, Message: "event owner cannot be removed"})
		}
		return ok(c, members.RemoveMember(c.Request().Context(), ev.ID, target))
	}
}

func getProfile(sessions Sessions, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ident, authed := requireIdentity(c, auth)
		if !authed {
			return nil
		}
		s := sessions.Active(ident.UserID)
		if s == nil {
			if s = sessions.Begin(c.Request().Context(), ident.UserID, ident.Email); s == nil {
				return c.String(http.StatusInternalServerError, "failed to load profile")
			}
			defer s.End()
		}
		return c.JSON(http.StatusOK, s.User)
	}
}

func saveProfile(sessions Sessions, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ident, authed := requireIdentity(c, auth)
		if !authed {
			return nil
		}
		var p domain.Profile
		if err := decodeBody(c, &p); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		s := sessions.Active(ident.UserID)
		ephemeral := false
		if s == nil {
			if s = sessions.Begin(c.Request().Context(), ident.UserID, ident.Email); s == nil {
				return c.String(http.StatusInternalServerError, "failed to load profile")
			}
			ephemeral = true
		}
		saved := sessions.SaveProfile(c.Request().Context(), s, p)
		if ephemeral {
			s.End()
		}
		return ok(c, saved)
	}
}

func listEventTypes(catalog Catalog, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, authed := requireIdentity(c, auth); !authed {
			return nil
		}
		return c.JSON(http.StatusOK, catalog.Types(c.Request().Context()))
	}
}
