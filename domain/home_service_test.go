package domain

import (
	"context"
	"testing"
)

func TestHomeIndex(t *testing.T) {
	st := newFakeStore()
	svc := NewHomeService(st, st)

	view, err := svc.Index(context.Background(), &userMaria)
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if view.AllTasksCount != len(st.tasks) {
		t.Fatalf("expected %d tasks, got %d", len(st.tasks), view.AllTasksCount)
	}
	if view.UserTasksCount != 2 {
		t.Fatalf("expected 2 tasks for maria, got %d", view.UserTasksCount)
	}
	want := map[string]int{"Open": 2, "In Progress": 1, "Done": 1}
	for _, c := range view.BoardsWithTasksCount {
		if want[c.BoardName] != c.TasksCount {
			t.Fatalf("board %q: expected %d, got %d", c.BoardName, want[c.BoardName], c.TasksCount)
		}
	}
}

func TestHomeIndexAnonymous(t *testing.T) {
	view, err := NewHomeService(newFakeStore(), newFakeStore()).Index(context.Background(), nil)
	if err != nil {
		t.Fatalf("index: %v", err)
	}
	if view.UserTasksCount != 0 {
		t.Fatalf("expected no user tasks for anonymous visitor, got %d", view.UserTasksCount)
	}
}
