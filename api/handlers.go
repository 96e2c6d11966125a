package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"kanban-api/board"
	"kanban-api/domain"
	"kanban-api/events"
)

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store Storage, mover Mover, bus *events.Bus, auth Authenticator, logger *log.Logger) {
	e.GET("/api/projects/:projectID/board", getBoard(store, auth))
	e.POST("/api/tasks/move", postMoveTask(mover, auth, logger), GzipRequestMiddleware())
	e.POST("/api/columns/reorder", postReorderColumns(mover, auth, logger), GzipRequestMiddleware())
	e.GET("/api/stream", streamEvents(bus, auth))
	e.GET("/healthz", healthz())
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func getBoard(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		projectID := c.Param("projectID")
		allowed, err := store.CheckMemberPermission(ctx, userID, projectID, "board", "read")
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		if !allowed {
			return c.String(http.StatusForbidden, "not a project member")
		}
		board, err := store.FetchBoard(ctx, projectID)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, board)
	}
}

func postMoveTask(mover Mover, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newMoveRequestMetrics(ctx, logger, "/api/tasks/move")
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		userID, authErr := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, authErr.Error())
			return err
		}

		var req domain.MoveRequest
		if decodeErr := decodeBody(c.Request().Body, &req); decodeErr != nil {
			metrics.SetErrorStage("decode")
			err = c.JSON(http.StatusBadRequest, moveResponse{Error: "invalid body"})
			return err
		}
		if req.TaskID == "" || req.SourceColumnID == "" || req.TargetColumnID == "" || req.ProjectID == "" {
			metrics.SetErrorStage("validate")
			err = c.JSON(http.StatusBadRequest, moveResponse{Error: "missing required fields"})
			return err
		}

		moveStart := time.Now()
		moveErr := mover.MoveTask(ctx, userID, req)
		metrics.ObserveMove(time.Since(moveStart))
		if moveErr != nil {
			err = writeMoveError(c, metrics, moveErr)
			return err
		}
		err = c.JSON(http.StatusOK, moveResponse{Success: true})
		return err
	}
}

func postReorderColumns(mover Mover, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newMoveRequestMetrics(ctx, logger, "/api/columns/reorder")
		if spanCtx != nil {
			c.SetRequest(c.Request().WithContext(spanCtx))
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		userID, authErr := auth.UserIDFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, authErr.Error())
			return err
		}

		var req domain.ColumnReorderRequest
		if decodeErr := decodeBody(c.Request().Body, &req); decodeErr != nil {
			metrics.SetErrorStage("decode")
			err = c.JSON(http.StatusBadRequest, moveResponse{Error: "invalid body"})
			return err
		}
		if req.ColumnID == "" || req.ProjectID == "" {
			metrics.SetErrorStage("validate")
			err = c.JSON(http.StatusBadRequest, moveResponse{Error: "missing required fields"})
			return err
		}

		moveStart := time.Now()
		moveErr := mover.ReorderColumns(ctx, userID, req)
		metrics.ObserveMove(time.Since(moveStart))
		if moveErr != nil {
			err = writeMoveError(c, metrics, moveErr)
			return err
		}
		err = c.JSON(http.StatusOK, moveResponse{Success: true})
		return err
	}
}

func decodeBody(body io.Reader, out any) error {
	dec := sonic.ConfigStd.NewDecoder(io.LimitReader(body, moveRequestMaxSize))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

// writeMoveError maps coordinator failures onto HTTP statuses: denied actors
// get 403, stale boards 409 and storage problems 500.
func writeMoveError(c echo.Context, metrics *moveRequestMetrics, err error) error {
	var authErr *board.AuthorizationError
	if errors.As(err, &authErr) {
		metrics.SetErrorStage("authorize")
		return c.JSON(http.StatusForbidden, moveResponse{Error: authErr.Error()})
	}
	var staleErr *board.StaleStateError
	if errors.As(err, &staleErr) {
		metrics.SetErrorStage("stale")
		return c.JSON(http.StatusConflict, moveResponse{Error: staleErr.Error()})
	}
	metrics.SetErrorStage("storage")
	c.Logger().Error(err)
	return c.JSON(http.StatusInternalServerError, moveResponse{Error: err.Error()})
}
