package sqlstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"taskboard/domain"
)

var (
	maria = domain.User{ID: "auth0|maria", Username: "maria@user.com"}
	guest = domain.User{ID: "auth0|guest", Username: "guest@mail.com"}
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "taskboard.db")
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	s := New(db)
	ctx := context.Background()
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := s.EnsureBoards(ctx, domain.DefaultBoards()); err != nil {
		t.Fatalf("ensure boards: %v", err)
	}
	for _, u := range []domain.User{maria, guest} {
		if err := s.UpsertUser(ctx, u); err != nil {
			t.Fatalf("upsert user: %v", err)
		}
	}
	return s
}

func insertTask(t *testing.T, s *Store, task domain.Task) domain.Task {
	t.Helper()
	if task.CreatedOn.IsZero() {
		task.CreatedOn = time.Date(2024, time.March, 5, 14, 30, 0, 0, time.UTC)
	}
	if err := s.InsertTask(context.Background(), &task); err != nil {
		t.Fatalf("insert task: %v", err)
	}
	return task
}

func TestStorePing(t *testing.T) {
	s := newTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestEnsureBoardsRenamesExisting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.EnsureBoards(ctx, []domain.Board{{ID: 1, Name: "Backlog"}}); err != nil {
		t.Fatalf("ensure boards: %v", err)
	}
	b, err := s.GetBoard(ctx, 1)
	if err != nil || b == nil {
		t.Fatalf("get board: %v %v", b, err)
	}
	if b.Name != "Backlog" {
		t.Fatalf("expected renamed board, got %q", b.Name)
	}
	boards, err := s.ListBoards(ctx)
	if err != nil {
		t.Fatalf("list boards: %v", err)
	}
	if len(boards) != 3 {
		t.Fatalf("expected 3 boards, got %d", len(boards))
	}
}

func TestGetBoardMissing(t *testing.T) {
	s := newTestStore(t)
	b, err := s.GetBoard(context.Background(), 42)
	if err != nil || b != nil {
		t.Fatalf("expected nil board, got %#v %v", b, err)
	}
}

func TestInsertAndGetTaskHydratesAssociations(t *testing.T) {
	s := newTestStore(t)
	created := insertTask(t, s, domain.Task{Title: "Home page", Description: "Create a new home page", BoardID: 2, OwnerID: maria.ID})
	if created.ID == 0 {
		t.Fatalf("expected id to be assigned")
	}

	got, err := s.GetTask(context.Background(), created.ID)
	if err != nil || got == nil {
		t.Fatalf("get task: %#v %v", got, err)
	}
	if got.Title != "Home page" || got.Description != "Create a new home page" {
		t.Fatalf("unexpected task: %#v", got)
	}
	if got.Board == nil || got.Board.Name != "In Progress" {
		t.Fatalf("expected board to be loaded: %#v", got.Board)
	}
	if got.Owner == nil || got.Owner.Username != maria.Username {
		t.Fatalf("expected owner to be loaded: %#v", got.Owner)
	}
	if !got.CreatedOn.Equal(created.CreatedOn) {
		t.Fatalf("created on = %v, want %v", got.CreatedOn, created.CreatedOn)
	}
}

func TestGetTaskMissing(t *testing.T) {
	s := newTestStore(t)
	got, err := s.GetTask(context.Background(), 99)
	if err != nil || got != nil {
		t.Fatalf("expected nil task, got %#v %v", got, err)
	}
}

func TestListBoardsGroupsTasksInIDOrder(t *testing.T) {
	s := newTestStore(t)
	first := insertTask(t, s, domain.Task{Title: "a", BoardID: 1, OwnerID: maria.ID})
	insertTask(t, s, domain.Task{Title: "b", BoardID: 3, OwnerID: guest.ID})
	third := insertTask(t, s, domain.Task{Title: "c", BoardID: 1, OwnerID: guest.ID})

	boards, err := s.ListBoards(context.Background())
	if err != nil {
		t.Fatalf("list boards: %v", err)
	}
	if len(boards) != 3 || boards[0].ID != 1 || boards[1].ID != 2 || boards[2].ID != 3 {
		t.Fatalf("unexpected boards: %#v", boards)
	}
	open := boards[0].Tasks
	if len(open) != 2 || open[0].ID != first.ID || open[1].ID != third.ID {
		t.Fatalf("unexpected open tasks: %#v", open)
	}
	if open[1].Owner == nil || open[1].Owner.Username != guest.Username {
		t.Fatalf("expected owner on listed task: %#v", open[1])
	}
	if boards[1].Tasks == nil || len(boards[1].Tasks) != 0 {
		t.Fatalf("expected empty task slice for board 2, got %#v", boards[1].Tasks)
	}
}

func TestUpdateTaskKeepsOwnerAndCreatedOn(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	task := insertTask(t, s, domain.Task{Title: "Edit Task", BoardID: 1, OwnerID: maria.ID})

	err := s.UpdateTask(ctx, domain.Task{ID: task.ID, Title: "Edited", Description: "now", BoardID: 3, OwnerID: guest.ID})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := s.GetTask(ctx, task.ID)
	if got.Title != "Edited" || got.Description != "now" || got.BoardID != 3 {
		t.Fatalf("unexpected task: %#v", got)
	}
	if got.OwnerID != maria.ID || !got.CreatedOn.Equal(task.CreatedOn) {
		t.Fatalf("owner and creation time must not change: %#v", got)
	}
}

func TestUpdateAndDeleteMissingTaskReturnNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.UpdateTask(ctx, domain.Task{ID: 5, Title: "x", BoardID: 1}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update, got %v", err)
	}
	if err := s.DeleteTask(ctx, 5); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on delete, got %v", err)
	}
}

func TestDeleteTask(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	task := insertTask(t, s, domain.Task{Title: "gone", BoardID: 1, OwnerID: maria.ID})

	if err := s.DeleteTask(ctx, task.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := s.GetTask(ctx, task.ID)
	if err != nil || got != nil {
		t.Fatalf("expected task to be gone, got %#v %v", got, err)
	}
}

func TestSearchTasksMatchesTitleOrDescriptionLiterally(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	css := insertTask(t, s, domain.Task{Title: "Improve CSS styles", BoardID: 1, OwnerID: guest.ID})
	insertTask(t, s, domain.Task{Title: "Home page", BoardID: 2, OwnerID: maria.ID})
	mob := insertTask(t, s, domain.Task{Title: "Mobile layout", Description: "Tweak CSS breakpoints", BoardID: 3, OwnerID: guest.ID})
	sale := insertTask(t, s, domain.Task{Title: "50% off banner", BoardID: 1, OwnerID: maria.ID})
	insertTask(t, s, domain.Task{Title: "500 error page", BoardID: 1, OwnerID: maria.ID})

	found, err := s.SearchTasks(ctx, "CSS")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(found) != 2 || found[0].ID != css.ID || found[1].ID != mob.ID {
		t.Fatalf("unexpected matches: %#v", found)
	}
	if found[1].Board == nil || found[1].Owner == nil {
		t.Fatalf("expected associations on search results: %#v", found[1])
	}

	found, err = s.SearchTasks(ctx, "50%")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(found) != 1 || found[0].ID != sale.ID {
		t.Fatalf("expected wildcard to match literally, got %#v", found)
	}

	all, err := s.SearchTasks(ctx, "")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("expected empty keyword to match all, got %d", len(all))
	}
}

func TestCountTasks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	insertTask(t, s, domain.Task{Title: "a", BoardID: 1, OwnerID: maria.ID})
	insertTask(t, s, domain.Task{Title: "b", BoardID: 2, OwnerID: guest.ID})
	insertTask(t, s, domain.Task{Title: "c", BoardID: 2, OwnerID: maria.ID})

	if n, err := s.CountTasks(ctx, maria.ID); err != nil || n != 2 {
		t.Fatalf("expected 2 tasks for maria, got %d %v", n, err)
	}
	if n, err := s.CountTasks(ctx, ""); err != nil || n != 3 {
		t.Fatalf("expected 3 tasks, got %d %v", n, err)
	}
	if n, err := s.CountTasks(ctx, "nobody"); err != nil || n != 0 {
		t.Fatalf("expected 0 tasks, got %d %v", n, err)
	}
}

func TestUpsertUserUpdatesUsername(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.UpsertUser(ctx, domain.User{ID: maria.ID, Username: "maria@new.com"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	u, err := s.GetUser(ctx, maria.ID)
	if err != nil || u == nil {
		t.Fatalf("get user: %#v %v", u, err)
	}
	if u.Username != "maria@new.com" {
		t.Fatalf("expected updated username, got %q", u.Username)
	}
	missing, err := s.GetUser(ctx, "auth0|nobody")
	if err != nil || missing != nil {
		t.Fatalf("expected nil user, got %#v %v", missing, err)
	}
}
