package domain

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
)

const (
	msgTitleRequired = "The Title field is required."
	msgBoardMissing  = "Selected board does not exist."
)

var fieldMessages = map[string]string{
	"title":   msgTitleRequired,
	"boardId": msgBoardMissing,
}

var formValidator = newFormValidator()

// newFormValidator reports field errors under their JSON names and adds the
// notblank rule for whitespace-only strings.
func newFormValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	}); err != nil {
		panic(err)
	}
	return v
}

// TaskService implements the task lifecycle: details, create, edit, delete
// and search. Every mutating call takes the requesting user explicitly.
type TaskService struct {
	tasks  TaskStore
	boards BoardStore
	events EventPublisher
	logger log.FieldLogger
	now    func() time.Time
}

// NewTaskService creates a TaskService. events may be nil; a nil logger
// falls back to the standard logrus logger.
func NewTaskService(tasks TaskStore, boards BoardStore, events EventPublisher, logger log.FieldLogger) TaskService {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return TaskService{tasks: tasks, boards: boards, events: events, logger: logger, now: time.Now}
}

// WithClock returns a copy of s that stamps new tasks using now.
func (s TaskService) WithClock(now func() time.Time) TaskService {
	s.now = now
	return s
}

// Details returns the details display model of the task.
func (s TaskService) Details(ctx context.Context, id int64) (TaskDetails, error) {
	if id <= 0 {
		return TaskDetails{}, fmt.Errorf("task %d: %w", id, ErrBadRequest)
	}
	task, err := s.tasks.GetTask(ctx, id)
	if err != nil {
		return TaskDetails{}, err
	}
	if task == nil {
		return TaskDetails{}, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return newTaskDetails(*task), nil
}

// CreateForm returns an empty form listing the selectable boards.
func (s TaskService) CreateForm(ctx context.Context) (TaskForm, error) {
	opts, err := s.boardOptions(ctx)
	if err != nil {
		return TaskForm{}, err
	}
	return TaskForm{Boards: opts}, nil
}

// Create stores a new task owned by user and returns its ID.
func (s TaskService) Create(ctx context.Context, user User, form TaskForm) (int64, error) {
	if err := s.validate(ctx, &form); err != nil {
		return 0, err
	}
	task := Task{
		Title:       form.Title,
		Description: form.Description,
		CreatedOn:   s.now(),
		BoardID:     form.BoardID,
		OwnerID:     user.ID,
	}
	if err := s.tasks.InsertTask(ctx, &task); err != nil {
		return 0, fmt.Errorf("insert task: %w", err)
	}
	s.publish(ctx, TaskCreated, task, user)
	return task.ID, nil
}

// EditForm returns the form pre-filled with the task's current values.
func (s TaskService) EditForm(ctx context.Context, user User, id int64) (TaskForm, error) {
	task, err := s.ownedTask(ctx, user, id)
	if err != nil {
		return TaskForm{}, err
	}
	opts, err := s.boardOptions(ctx)
	if err != nil {
		return TaskForm{}, err
	}
	return TaskForm{
		Title:       task.Title,
		Description: task.Description,
		BoardID:     task.BoardID,
		Boards:      opts,
	}, nil
}

// Edit overwrites title, description and board of a task owned by user.
func (s TaskService) Edit(ctx context.Context, user User, id int64, form TaskForm) error {
	task, err := s.ownedTask(ctx, user, id)
	if err != nil {
		return err
	}
	if err := s.validate(ctx, &form); err != nil {
		return err
	}
	task.Title = form.Title
	task.Description = form.Description
	task.BoardID = form.BoardID
	if err := s.tasks.UpdateTask(ctx, *task); err != nil {
		return fmt.Errorf("update task %d: %w", id, err)
	}
	s.publish(ctx, TaskUpdated, *task, user)
	return nil
}

// DeleteForm returns the confirmation model for deleting a task owned by user.
func (s TaskService) DeleteForm(ctx context.Context, user User, id int64) (TaskView, error) {
	task, err := s.ownedTask(ctx, user, id)
	if err != nil {
		return TaskView{}, err
	}
	return newTaskView(*task), nil
}

// Delete removes a task owned by user.
func (s TaskService) Delete(ctx context.Context, user User, id int64) error {
	task, err := s.ownedTask(ctx, user, id)
	if err != nil {
		return err
	}
	if err := s.tasks.DeleteTask(ctx, id); err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	s.publish(ctx, TaskDeleted, *task, user)
	return nil
}

// SearchForm returns an empty search form.
func (s TaskService) SearchForm() TaskSearchForm {
	return TaskSearchForm{Tasks: []TaskView{}}
}

// Search returns every task whose title or description contains keyword
// as given. A blank keyword returns every task.
func (s TaskService) Search(ctx context.Context, keyword string) (TaskSearchForm, error) {
	if strings.TrimSpace(keyword) == "" {
		keyword = ""
	}
	tasks, err := s.tasks.SearchTasks(ctx, keyword)
	if err != nil {
		return TaskSearchForm{}, fmt.Errorf("search tasks: %w", err)
	}
	return TaskSearchForm{Keyword: keyword, Tasks: taskViews(tasks)}, nil
}

// ownedTask loads the task and checks the id first, then ownership.
func (s TaskService) ownedTask(ctx context.Context, user User, id int64) (*Task, error) {
	if id <= 0 {
		return nil, fmt.Errorf("task %d: %w", id, ErrBadRequest)
	}
	task, err := s.tasks.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("task %d does not exist: %w", id, ErrBadRequest)
	}
	if !CanModify(*task, user) {
		s.logger.WithFields(log.Fields{"task": id, "user": user.ID, "owner": task.OwnerID}).Warn("task access denied")
		return nil, fmt.Errorf("task %d: %w", id, ErrUnauthorized)
	}
	return task, nil
}

// validate checks the form and, on failure, returns a *ValidationError with
// the form re-populated for display.
func (s TaskService) validate(ctx context.Context, form *TaskForm) error {
	fields := map[string]string{}
	if err := formValidator.StructCtx(ctx, form); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validate task form: %w", err)
		}
		for _, fe := range verrs {
			fields[fe.Field()] = fieldMessages[fe.Field()]
		}
	}
	if _, bad := fields["boardId"]; !bad {
		board, err := s.boards.GetBoard(ctx, form.BoardID)
		if err != nil {
			return fmt.Errorf("get board %d: %w", form.BoardID, err)
		}
		if board == nil {
			fields["boardId"] = msgBoardMissing
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return s.invalid(ctx, *form, fields)
}

// Invalid builds the validation outcome for a form that could not even be
// bound, re-populating the selectable boards.
func (s TaskService) Invalid(ctx context.Context, form TaskForm, fields map[string]string) error {
	return s.invalid(ctx, form, fields)
}

func (s TaskService) invalid(ctx context.Context, form TaskForm, fields map[string]string) error {
	opts, err := s.boardOptions(ctx)
	if err != nil {
		return err
	}
	form.Boards = opts
	return &ValidationError{Form: form, Fields: fields}
}

func (s TaskService) boardOptions(ctx context.Context) ([]BoardOption, error) {
	boards, err := s.boards.ListBoards(ctx)
	if err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	opts := make([]BoardOption, 0, len(boards))
	for _, b := range boards {
		opts = append(opts, BoardOption{ID: b.ID, Name: b.Name})
	}
	return opts, nil
}

func (s TaskService) publish(ctx context.Context, typ string, task Task, user User) {
	if s.events == nil {
		return
	}
	ev := TaskEvent{
		Type:      typ,
		TaskID:    task.ID,
		BoardID:   task.BoardID,
		UserID:    user.ID,
		Timestamp: s.now().UnixNano(),
	}
	if err := s.events.PublishTaskEvent(ctx, ev); err != nil {
		s.logger.WithFields(log.Fields{"task": task.ID, "type": typ}).Errorf("publish task event: %v", err)
	}
}
