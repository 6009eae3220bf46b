package domain

import "time"

// Board is a named container of tasks, e.g. a lifecycle stage.
type Board struct {
	ID    int64
	Name  string
	Tasks []Task
}

// Task is a unit of work owned by the user who created it.
type Task struct {
	ID          int64
	Title       string
	Description string
	CreatedOn   time.Time
	BoardID     int64
	OwnerID     string

	// Populated on read paths that need display names.
	Board *Board
	Owner *User
}

// User is an authenticated identity. ID is the token subject.
type User struct {
	ID       string
	Username string
}

// CanModify reports whether user may edit or delete task.
func CanModify(task Task, user User) bool {
	return user.ID != "" && task.OwnerID == user.ID
}

// DefaultBoards are the lifecycle stages every installation starts with.
func DefaultBoards() []Board {
	return []Board{
		{ID: 1, Name: "Open"},
		{ID: 2, Name: "In Progress"},
		{ID: 3, Name: "Done"},
	}
}
