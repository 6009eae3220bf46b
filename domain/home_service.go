package domain

import (
	"context"
	"fmt"
)

// HomeService builds the landing page statistics.
type HomeService struct {
	boards BoardStore
	tasks  TaskStore
}

func NewHomeService(boards BoardStore, tasks TaskStore) HomeService {
	return HomeService{boards: boards, tasks: tasks}
}

// Index counts tasks overall, per board and for user. user may be nil for
// anonymous visitors.
func (s HomeService) Index(ctx context.Context, user *User) (HomeView, error) {
	boards, err := s.boards.ListBoards(ctx)
	if err != nil {
		return HomeView{}, fmt.Errorf("list boards: %w", err)
	}
	view := HomeView{BoardsWithTasksCount: make([]BoardTaskCount, 0, len(boards))}
	for _, b := range boards {
		view.BoardsWithTasksCount = append(view.BoardsWithTasksCount, BoardTaskCount{BoardName: b.Name, TasksCount: len(b.Tasks)})
		view.AllTasksCount += len(b.Tasks)
	}
	if user != nil && user.ID != "" {
		n, err := s.tasks.CountTasks(ctx, user.ID)
		if err != nil {
			return HomeView{}, fmt.Errorf("count tasks of %s: %w", user.ID, err)
		}
		view.UserTasksCount = n
	}
	return view, nil
}
