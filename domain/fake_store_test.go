package domain

import (
	"context"
	"sort"
	"strings"
	"time"
)

type fakeStore struct {
	boards map[int64]Board
	tasks  map[int64]Task
	users  map[string]User
	nextID int64

	getErr    error
	insertErr error
	updateErr error
	deleteErr error
	searchErr error

	updated []Task
	deleted []int64
}

var (
	userMaria = User{ID: "auth0|maria", Username: "maria@user.com"}
	userGuest = User{ID: "auth0|guest", Username: "guest@mail.com"}
)

const (
	openBoardID       int64 = 1
	inProgressBoardID int64 = 2
	doneBoardID       int64 = 3

	cssTaskID  int64 = 1
	homeTaskID int64 = 2
	editTaskID int64 = 3
	mobTaskID  int64 = 4
)

func newFakeStore() *fakeStore {
	created := time.Date(2024, time.March, 5, 14, 30, 0, 0, time.UTC)
	f := &fakeStore{
		boards: map[int64]Board{
			openBoardID:       {ID: openBoardID, Name: "Open"},
			inProgressBoardID: {ID: inProgressBoardID, Name: "In Progress"},
			doneBoardID:       {ID: doneBoardID, Name: "Done"},
		},
		users: map[string]User{
			userMaria.ID: userMaria,
			userGuest.ID: userGuest,
		},
		tasks: map[int64]Task{
			cssTaskID:  {ID: cssTaskID, Title: "Improve CSS styles", Description: "Implement better styling for all public pages", CreatedOn: created, BoardID: openBoardID, OwnerID: userGuest.ID},
			homeTaskID: {ID: homeTaskID, Title: "Home page", Description: "Create a new home page", CreatedOn: created, BoardID: inProgressBoardID, OwnerID: userMaria.ID},
			editTaskID: {ID: editTaskID, Title: "Edit Task", Description: "Edit this task", CreatedOn: created, BoardID: openBoardID, OwnerID: userMaria.ID},
			mobTaskID:  {ID: mobTaskID, Title: "Mobile layout", Description: "Tweak CSS breakpoints", CreatedOn: created, BoardID: doneBoardID, OwnerID: userGuest.ID},
		},
		nextID: mobTaskID,
	}
	return f
}

func (f *fakeStore) hydrate(t Task) Task {
	if b, ok := f.boards[t.BoardID]; ok {
		t.Board = &Board{ID: b.ID, Name: b.Name}
	}
	if u, ok := f.users[t.OwnerID]; ok {
		t.Owner = &u
	}
	return t
}

func (f *fakeStore) sortedTasks() []Task {
	out := make([]Task, 0, len(f.tasks))
	for _, t := range f.tasks {
		out = append(out, f.hydrate(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeStore) ListBoards(ctx context.Context) ([]Board, error) {
	out := make([]Board, 0, len(f.boards))
	for _, b := range f.boards {
		b.Tasks = nil
		for _, t := range f.sortedTasks() {
			if t.BoardID == b.ID {
				b.Tasks = append(b.Tasks, t)
			}
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) GetBoard(ctx context.Context, id int64) (*Board, error) {
	b, ok := f.boards[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (f *fakeStore) GetTask(ctx context.Context, id int64) (*Task, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	t, ok := f.tasks[id]
	if !ok {
		return nil, nil
	}
	t = f.hydrate(t)
	return &t, nil
}

func (f *fakeStore) InsertTask(ctx context.Context, task *Task) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.nextID++
	task.ID = f.nextID
	f.tasks[task.ID] = *task
	return nil
}

func (f *fakeStore) UpdateTask(ctx context.Context, task Task) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.tasks[task.ID]; !ok {
		return ErrNotFound
	}
	task.Board, task.Owner = nil, nil
	f.tasks[task.ID] = task
	f.updated = append(f.updated, task)
	return nil
}

func (f *fakeStore) DeleteTask(ctx context.Context, id int64) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(f.tasks, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeStore) SearchTasks(ctx context.Context, keyword string) ([]Task, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	var out []Task
	for _, t := range f.sortedTasks() {
		if strings.Contains(t.Title, keyword) || strings.Contains(t.Description, keyword) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) CountTasks(ctx context.Context, ownerID string) (int, error) {
	n := 0
	for _, t := range f.tasks {
		if ownerID == "" || t.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) GetUser(ctx context.Context, id string) (*User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (f *fakeStore) UpsertUser(ctx context.Context, user User) error {
	f.users[user.ID] = user
	return nil
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }

type recordingPublisher struct {
	events []TaskEvent
	err    error
}

func (p *recordingPublisher) PublishTaskEvent(ctx context.Context, ev TaskEvent) error {
	p.events = append(p.events, ev)
	return p.err
}
