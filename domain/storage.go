package domain

import "context"

// BoardStore reads boards. Boards are seeded and never change through the API.
type BoardStore interface {
	// ListBoards returns every board ordered by ID with its tasks (and their
	// owners) ordered by ID.
	ListBoards(ctx context.Context) ([]Board, error)
	// GetBoard returns nil, nil when the board does not exist.
	GetBoard(ctx context.Context, id int64) (*Board, error)
}

// TaskStore persists tasks.
type TaskStore interface {
	// GetTask returns the task with Board and Owner populated, or nil, nil
	// when it does not exist.
	GetTask(ctx context.Context, id int64) (*Task, error)
	// InsertTask stores a new task and assigns its ID.
	InsertTask(ctx context.Context, task *Task) error
	// UpdateTask overwrites title, description and board. ErrNotFound when
	// the task is gone.
	UpdateTask(ctx context.Context, task Task) error
	// DeleteTask removes the task. ErrNotFound when the task is gone.
	DeleteTask(ctx context.Context, id int64) error
	// SearchTasks returns tasks whose title or description contains keyword,
	// with owners populated. An empty keyword matches every task.
	SearchTasks(ctx context.Context, keyword string) ([]Task, error)
	// CountTasks counts the tasks of ownerID, or all tasks when ownerID is empty.
	CountTasks(ctx context.Context, ownerID string) (int, error)
}

// UserStore persists users known to the board.
type UserStore interface {
	// GetUser returns nil, nil when the user does not exist.
	GetUser(ctx context.Context, id string) (*User, error)
	UpsertUser(ctx context.Context, user User) error
}

// Store is implemented by every storage backend.
type Store interface {
	BoardStore
	TaskStore
	UserStore
	Ping(ctx context.Context) error
}
