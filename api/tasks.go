package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"simcha-api/domain"
)

func getTasks(dir Directory, engine TaskEngine, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics := newTaskRequestMetrics(logger)
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		ident, authErr := auth.IdentityFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, authErr.Error())
			return err
		}
		ev, member := memberEvent(c, dir, ident.UserID)
		if !member {
			metrics.SetErrorStage("membership")
			return nil
		}

		fetchStart := time.Now()
		tasks, fetched := engine.Tasks(c.Request().Context(), ev.ID)
		metrics.ObserveFetch(time.Since(fetchStart))
		if !fetched {
			metrics.SetErrorStage("storage")
			err = c.String(http.StatusInternalServerError, "failed to fetch tasks")
			return err
		}
		metrics.SetTasksReturned(len(tasks))
		err = c.JSON(http.StatusOK, tasks)
		return err
	}
}

type addTaskRequest struct {
	Text     string `json:"text"`
	Category string `json:"category,omitempty"`
	Priority string `json:"priority,omitempty"`
}

func addTask(dir Directory, engine TaskEngine, auth Authenticator, deduper Deduper) echo.HandlerFunc {
	return func(c echo.Context) error {
		ident, authed := requireIdentity(c, auth)
		if !authed {
			return nil
		}
		ev, member := memberEvent(c, dir, ident.UserID)
		if !member {
			return nil
		}
		var req addTaskRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if strings.TrimSpace(req.Text) == "" {
			return c.String(http.StatusBadRequest, "task text is required")
		}
		done, key := replayed(c, deduper, ident.UserID)
		if done {
			return ok(c, true)
		}
		added := engine.AddTask(c.Request().Context(), ev.ID, req.Text, req.Category, req.Priority)
		if !added {
			rollbackReplay(c, deduper, ident.UserID, key)
		}
		return ok(c, added)
	}
}

func updateTask(dir Directory, engine TaskEngine, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ident, authed := requireIdentity(c, auth)
		if !authed {
			return nil
		}
		ev, member := memberEvent(c, dir, ident.UserID)
		if !member {
			return nil
		}
		var upd domain.TaskUpdate
		if err := decodeBody(c, &upd); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if upd.Status != nil && !upd.Status.Valid() {
			return c.String(http.StatusBadRequest, "invalid status")
		}
		if upd.Text != nil && strings.TrimSpace(*upd.Text) == "" {
			return c.String(http.StatusBadRequest, "task text cannot be empty")
		}
		return ok(c, engine.UpdateTask(c.Request().Context(), ev.ID, c.Param("taskId"), upd))
	}
}

func toggleTask(dir Directory, engine TaskEngine, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ident, authed := requireIdentity(c, auth)
		if !authed {
			return nil
		}
		ev, member := memberEvent(c, dir, ident.UserID)
		if !member {
			return nil
		}
		return ok(c, engine.ToggleTask(c.Request().Context(), ev.ID, c.Param("taskId")))
	}
}

type setReminderRequest struct {
	Reminder string `json:"reminder"`
}

func setReminder(dir Directory, engine TaskEngine, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ident, authed := requireIdentity(c, auth)
		if !authed {
			return nil
		}
		ev, member := memberEvent(c, dir, ident.UserID)
		if !member {
			return nil
		}
		var req setReminderRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if strings.TrimSpace(req.Reminder) == "" {
			return c.String(http.StatusBadRequest, "reminder is required")
		}
		return ok(c, engine.SetReminder(c.Request().Context(), ev.ID, c.Param("taskId"), req.Reminder))
	}
}

func deleteTask(dir Directory, engine TaskEngine, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ident, authed := requireIdentity(c, auth)
		if !authed {
			return nil
		}
		ev, member := memberEvent(c, dir, ident.UserID)
		if !member {
			return nil
		}
		return ok(c, engine.DeleteTask(c.Request().Context(), ev.ID, c.Param("taskId")))
	}
}

type addDefaultTasksRequest struct {
	EventType string `json:"eventType,omitempty"`
}

func addDefaultTasks(dir Directory, engine TaskEngine, auth Authenticator, deduper Deduper) echo.HandlerFunc {
	return func(c echo.Context) error {
		ident, authed := requireIdentity(c, auth)
		if !authed {
			return nil
		}
		ev, member := memberEvent(c, dir, ident.UserID)
		if !member {
			return nil
		}
		var req addDefaultTasksRequest
		if err := decodeBody(c, &req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		eventType := req.EventType
		if eventType == "" {
			eventType = ev.Type
		}
		done, key := replayed(c, deduper, ident.UserID)
		if done {
			return ok(c, true)
		}
		added := engine.AddDefaultTasks(c.Request().Context(), ev.ID, eventType)
		if !added {
			rollbackReplay(c, deduper, ident.UserID, key)
		}
		return ok(c, added)
	}
}

func removeDefaultTasks(dir Directory, engine TaskEngine, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ident, authed := requireIdentity(c, auth)
		if !authed {
			return nil
		}
		ev, member := memberEvent(c, dir, ident.UserID)
		if !member {
			return nil
		}
		return ok(c, engine.RemoveDefaultTasks(c.Request().Context(), ev.ID))
	}
}
