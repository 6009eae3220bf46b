package domain

import "context"

const (
	TaskCreated = "task-created"
	TaskUpdated = "task-updated"
	TaskDeleted = "task-deleted"
)

// TaskEvent records a committed change to a task.
type TaskEvent struct {
	Type      string `json:"type"`
	TaskID    int64  `json:"taskId"`
	BoardID   int64  `json:"boardId"`
	UserID    string `json:"userId"`
	Timestamp int64  `json:"timestamp"`
}

// EventPublisher delivers task events to interested consumers.
type EventPublisher interface {
	PublishTaskEvent(ctx context.Context, ev TaskEvent) error
}
