// Package memstore keeps boards, tasks and users in process memory. It backs
// local development (STORE_DRIVER=memory) and handler tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"taskboard/domain"
)

// Store is a goroutine-safe in-memory domain.Store.
type Store struct {
	mu     sync.RWMutex
	boards map[int64]domain.Board
	tasks  map[int64]domain.Task
	users  map[string]domain.User
	nextID int64
}

// New creates a Store holding the given boards.
func New(boards ...domain.Board) *Store {
	s := &Store{
		boards: map[int64]domain.Board{},
		tasks:  map[int64]domain.Task{},
		users:  map[string]domain.User{},
	}
	for _, b := range boards {
		b.Tasks = nil
		s.boards[b.ID] = b
	}
	return s
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) hydrate(t domain.Task) domain.Task {
	if b, ok := s.boards[t.BoardID]; ok {
		t.Board = &domain.Board{ID: b.ID, Name: b.Name}
	}
	if u, ok := s.users[t.OwnerID]; ok {
		t.Owner = &u
	}
	return t
}

func (s *Store) sortedTasks(match func(domain.Task) bool) []domain.Task {
	out := make([]domain.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if match == nil || match(t) {
			out = append(out, s.hydrate(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) ListBoards(ctx context.Context) ([]domain.Board, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Board, 0, len(s.boards))
	for _, b := range s.boards {
		id := b.ID
		b.Tasks = s.sortedTasks(func(t domain.Task) bool { return t.BoardID == id })
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetBoard(ctx context.Context, id int64) (*domain.Board, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.boards[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (s *Store) GetTask(ctx context.Context, id int64) (*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, nil
	}
	t = s.hydrate(t)
	return &t, nil
}

func (s *Store) InsertTask(ctx context.Context, task *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	task.ID = s.nextID
	stored := *task
	stored.Board, stored.Owner = nil, nil
	s.tasks[task.ID] = stored
	return nil
}

func (s *Store) UpdateTask(ctx context.Context, task domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.tasks[task.ID]
	if !ok {
		return domain.ErrNotFound
	}
	cur.Title = task.Title
	cur.Description = task.Description
	cur.BoardID = task.BoardID
	s.tasks[task.ID] = cur
	return nil
}

func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (s *Store) SearchTasks(ctx context.Context, keyword string) ([]domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedTasks(func(t domain.Task) bool {
		return strings.Contains(t.Title, keyword) || strings.Contains(t.Description, keyword)
	}), nil
}

func (s *Store) CountTasks(ctx context.Context, ownerID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ownerID == "" {
		return len(s.tasks), nil
	}
	n := 0
	for _, t := range s.tasks {
		if t.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *Store) UpsertUser(ctx context.Context, user domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
	return nil
}
