package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskboard/domain"
)

const boardsPath = "/boards"

// Register wires up all routes on the provided Echo instance. deduper and
// events may be nil.
func Register(e *echo.Echo, store domain.Store, auth Authenticator, deduper Deduper, events domain.EventPublisher, logger *log.Logger) {
	boards := domain.NewBoardService(store)
	tasks := domain.NewTaskService(store, store, events, logger)
	home := domain.NewHomeService(store, store)

	e.HTTPErrorHandler = ErrorHandler(logger)
	e.Use(observe(logger))

	requireUser := authenticate(auth, store, true)
	optionalUser := authenticate(auth, store, false)

	e.GET("/", homeIndex(home), optionalUser)
	e.GET("/error", errorPage(http.StatusInternalServerError))
	e.GET("/error/401", errorPage(http.StatusUnauthorized))
	e.GET("/error/404", errorPage(http.StatusNotFound))
	e.GET("/healthz", healthz(store))

	e.GET(boardsPath, listBoards(boards), requireUser)

	g := e.Group("/tasks", requireUser)
	g.GET("/create", getCreateTask(tasks))
	g.POST("/create", postCreateTask(tasks, deduper, logger))
	g.GET("/search", getSearch(tasks))
	g.POST("/search", postSearch(tasks))
	g.GET("/:id", getTaskDetails(tasks))
	g.GET("/:id/edit", getEditTask(tasks))
	g.POST("/:id/edit", postEditTask(tasks))
	g.GET("/:id/delete", getDeleteTask(tasks))
	g.POST("/:id/delete", postDeleteTask(tasks))
}

func healthz(store domain.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := store.Ping(c.Request().Context()); err != nil {
			c.Logger().Errorf("healthz: %v", err)
			return c.NoContent(http.StatusServiceUnavailable)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func homeIndex(svc domain.HomeService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var user *domain.User
		if u, ok := currentUser(c); ok {
			user = &u
		}
		view, err := svc.Index(c.Request().Context(), user)
		if err != nil {
			return respondError(c, err)
		}
		setTasksReturned(c, view.AllTasksCount)
		return c.JSON(http.StatusOK, view)
	}
}

func listBoards(svc domain.BoardService) echo.HandlerFunc {
	return func(c echo.Context) error {
		boards, err := svc.All(c.Request().Context())
		if err != nil {
			return respondError(c, err)
		}
		n := 0
		for _, b := range boards {
			n += len(b.Tasks)
		}
		setTasksReturned(c, n)
		return c.JSON(http.StatusOK, boards)
	}
}

func getTaskDetails(svc domain.TaskService) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := taskID(c)
		if err != nil {
			return respondError(c, err)
		}
		details, err := svc.Details(c.Request().Context(), id)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, details)
	}
}

func getCreateTask(svc domain.TaskService) echo.HandlerFunc {
	return func(c echo.Context) error {
		form, err := svc.CreateForm(c.Request().Context())
		if err != nil {
			return respondError(c, err)
		}
		form.IdempotencyKey = uuid.NewString()
		return c.JSON(http.StatusOK, form)
	}
}

func postCreateTask(svc domain.TaskService, deduper Deduper, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		user, _ := currentUser(c)

		var form domain.TaskForm
		if err := c.Bind(&form); err != nil {
			setErrorStage(c, "bind")
			return respondError(c, svc.Invalid(ctx, form, map[string]string{"form": "The submitted form is invalid."}))
		}

		recorded := false
		if deduper != nil && form.IdempotencyKey != "" {
			added, err := deduper.Add(ctx, user.ID, form.IdempotencyKey)
			switch {
			case err != nil:
				logger.WithField("user", user.ID).Warnf("dedupe unavailable, creating without guard: %v", err)
			case !added:
				logger.WithFields(log.Fields{"user": user.ID, "key": form.IdempotencyKey}).Info("duplicate create submission ignored")
				return c.Redirect(http.StatusSeeOther, boardsPath)
			default:
				recorded = true
			}
		}

		id, err := svc.Create(ctx, user, form)
		if err != nil {
			if recorded {
				if rerr := deduper.Remove(ctx, user.ID, form.IdempotencyKey); rerr != nil {
					logger.Errorf("dedupe rollback failed, err: %v, key: %s, user: %s", rerr, form.IdempotencyKey, user.ID)
				}
			}
			return respondError(c, err)
		}
		logger.WithFields(log.Fields{"task": id, "user": user.ID, "board": form.BoardID}).Info("task created")
		return c.Redirect(http.StatusSeeOther, boardsPath)
	}
}

func getEditTask(svc domain.TaskService) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := taskID(c)
		if err != nil {
			return respondError(c, err)
		}
		user, _ := currentUser(c)
		form, err := svc.EditForm(c.Request().Context(), user, id)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, form)
	}
}

func postEditTask(svc domain.TaskService) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		id, err := taskID(c)
		if err != nil {
			return respondError(c, err)
		}
		user, _ := currentUser(c)

		var form domain.TaskForm
		if err := c.Bind(&form); err != nil {
			setErrorStage(c, "bind")
			// Ownership is still checked before the form is reported invalid.
			if _, ferr := svc.EditForm(ctx, user, id); ferr != nil {
				return respondError(c, ferr)
			}
			return respondError(c, svc.Invalid(ctx, form, map[string]string{"form": "The submitted form is invalid."}))
		}
		if err := svc.Edit(ctx, user, id, form); err != nil {
			return respondError(c, err)
		}
		return c.Redirect(http.StatusSeeOther, boardsPath)
	}
}

func getDeleteTask(svc domain.TaskService) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := taskID(c)
		if err != nil {
			return respondError(c, err)
		}
		user, _ := currentUser(c)
		view, err := svc.DeleteForm(c.Request().Context(), user, id)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, view)
	}
}

func postDeleteTask(svc domain.TaskService) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := taskID(c)
		if err != nil {
			return respondError(c, err)
		}
		user, _ := currentUser(c)
		if err := svc.Delete(c.Request().Context(), user, id); err != nil {
			return respondError(c, err)
		}
		return c.Redirect(http.StatusSeeOther, boardsPath)
	}
}

func getSearch(svc domain.TaskService) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, svc.SearchForm())
	}
}

func postSearch(svc domain.TaskService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var form domain.TaskSearchForm
		if err := c.Bind(&form); err != nil {
			return respondError(c, fmt.Errorf("bind search form: %v: %w", err, domain.ErrBadRequest))
		}
		result, err := svc.Search(c.Request().Context(), form.Keyword)
		if err != nil {
			return respondError(c, err)
		}
		setTasksReturned(c, len(result.Tasks))
		return c.JSON(http.StatusOK, result)
	}
}

func taskID(c echo.Context) (int64, error) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("task id %q: %w", raw, domain.ErrBadRequest)
	}
	return id, nil
}
