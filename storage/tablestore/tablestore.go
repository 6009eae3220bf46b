// Package tablestore persists boards, tasks and users in Azure Table Storage.
package tablestore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"taskboard/domain"
)

const maxCounterAttempts = 10

type table interface {
	GetEntity(ctx context.Context, partitionKey, rowKey string, options *aztables.GetEntityOptions) (aztables.GetEntityResponse, error)
	AddEntity(ctx context.Context, entity []byte, options *aztables.AddEntityOptions) (aztables.AddEntityResponse, error)
	UpdateEntity(ctx context.Context, entity []byte, options *aztables.UpdateEntityOptions) (aztables.UpdateEntityResponse, error)
	UpsertEntity(ctx context.Context, entity []byte, options *aztables.UpsertEntityOptions) (aztables.UpsertEntityResponse, error)
	DeleteEntity(ctx context.Context, partitionKey, rowKey string, options *aztables.DeleteEntityOptions) (aztables.DeleteEntityResponse, error)
	NewListEntitiesPager(listOptions *aztables.ListEntitiesOptions) *runtime.Pager[aztables.ListEntitiesResponse]
}

// Store implements domain.Store on three tables.
type Store struct {
	boards table
	tasks  table
	users  table
}

// New creates a Store from the given connection string.
func New(connStr, boardsTable, tasksTable, usersTable string) (*Store, error) {
	opts := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &opts)
	if err != nil {
		return nil, err
	}
	return &Store{
		boards: svc.NewClient(boardsTable),
		tasks:  svc.NewClient(tasksTable),
		users:  svc.NewClient(usersTable),
	}, nil
}

func hasStatus(err error, code int) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == code
}

func (s *Store) Ping(ctx context.Context) error {
	top := int32(1)
	pager := s.boards.NewListEntitiesPager(&aztables.ListEntitiesOptions{Top: &top})
	if !pager.More() {
		return nil
	}
	_, err := pager.NextPage(ctx)
	return err
}

// EnsureBoards upserts the given boards, keeping their ids.
func (s *Store) EnsureBoards(ctx context.Context, boards []domain.Board) error {
	for _, b := range boards {
		payload, err := sonic.Marshal(newBoardEntity(b))
		if err != nil {
			return err
		}
		if _, err := s.boards.UpsertEntity(ctx, payload, nil); err != nil {
			return fmt.Errorf("upsert board %d: %w", b.ID, err)
		}
	}
	return nil
}

func list[T any](ctx context.Context, t table, pk string) ([]T, error) {
	filter := partitionFilter(pk)
	pager := t.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	out := []T{}
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range resp.Entities {
			var ent T
			if err := sonic.Unmarshal(raw, &ent); err != nil {
				return nil, err
			}
			out = append(out, ent)
		}
	}
	return out, nil
}

func get[T any](ctx context.Context, t table, pk, rk string) (*T, azcore.ETag, error) {
	resp, err := t.GetEntity(ctx, pk, rk, nil)
	if err != nil {
		if hasStatus(err, http.StatusNotFound) {
			return nil, "", nil
		}
		return nil, "", err
	}
	var ent T
	if err := sonic.Unmarshal(resp.Value, &ent); err != nil {
		return nil, "", err
	}
	return &ent, resp.ETag, nil
}

func (s *Store) allTasks(ctx context.Context) ([]domain.Task, error) {
	ents, err := list[taskEntity](ctx, s.tasks, taskPartition)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	boards, err := s.boardsByID(ctx)
	if err != nil {
		return nil, err
	}
	users, err := s.usersByID(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Task, 0, len(ents))
	for _, e := range ents {
		t, err := e.task()
		if err != nil {
			return nil, err
		}
		if b, ok := boards[t.BoardID]; ok {
			t.Board = &domain.Board{ID: b.ID, Name: b.Name}
		}
		if u, ok := users[t.OwnerID]; ok {
			t.Owner = &u
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) boardsByID(ctx context.Context) (map[int64]domain.Board, error) {
	ents, err := list[boardEntity](ctx, s.boards, boardPartition)
	if err != nil {
		return nil, fmt.Errorf("list boards: %w", err)
	}
	out := make(map[int64]domain.Board, len(ents))
	for _, e := range ents {
		b, err := e.board()
		if err != nil {
			return nil, err
		}
		out[b.ID] = b
	}
	return out, nil
}

func (s *Store) usersByID(ctx context.Context) (map[string]domain.User, error) {
	ents, err := list[userEntity](ctx, s.users, userPartition)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make(map[string]domain.User, len(ents))
	for _, e := range ents {
		out[e.UserID] = e.user()
	}
	return out, nil
}

func (s *Store) ListBoards(ctx context.Context) ([]domain.Board, error) {
	byID, err := s.boardsByID(ctx)
	if err != nil {
		return nil, err
	}
	tasks, err := s.allTasks(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Board, 0, len(byID))
	for _, b := range byID {
		b.Tasks = []domain.Task{}
		for _, t := range tasks {
			if t.BoardID == b.ID {
				b.Tasks = append(b.Tasks, t)
			}
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetBoard(ctx context.Context, id int64) (*domain.Board, error) {
	ent, _, err := get[boardEntity](ctx, s.boards, boardPartition, idKey(id))
	if err != nil || ent == nil {
		return nil, err
	}
	b, err := ent.board()
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Store) GetTask(ctx context.Context, id int64) (*domain.Task, error) {
	ent, _, err := get[taskEntity](ctx, s.tasks, taskPartition, idKey(id))
	if err != nil || ent == nil {
		return nil, err
	}
	t, err := ent.task()
	if err != nil {
		return nil, err
	}
	if t.Board, err = s.GetBoard(ctx, t.BoardID); err != nil {
		return nil, err
	}
	if t.Owner, err = s.GetUser(ctx, t.OwnerID); err != nil {
		return nil, err
	}
	return &t, nil
}

// nextTaskID bumps the counter row with optimistic concurrency.
func (s *Store) nextTaskID(ctx context.Context) (int64, error) {
	for attempt := 0; attempt < maxCounterAttempts; attempt++ {
		cur, etag, err := get[counterEntity](ctx, s.tasks, counterPartition, counterRow)
		if err != nil {
			return 0, err
		}
		if cur == nil {
			payload, err := sonic.Marshal(counterEntity{
				entity:     entity{PartitionKey: counterPartition, RowKey: counterRow},
				LastID:     1,
				LastIDType: edmInt64,
			})
			if err != nil {
				return 0, err
			}
			if _, err := s.tasks.AddEntity(ctx, payload, nil); err != nil {
				if hasStatus(err, http.StatusConflict) {
					continue
				}
				return 0, err
			}
			return 1, nil
		}

		cur.LastID++
		cur.LastIDType = edmInt64
		payload, err := sonic.Marshal(cur)
		if err != nil {
			return 0, err
		}
		_, err = s.tasks.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &etag, UpdateMode: aztables.UpdateModeReplace})
		if err != nil {
			if hasStatus(err, http.StatusPreconditionFailed) {
				log.WithField("attempt", attempt).Debug("task id counter changed, retrying")
				continue
			}
			return 0, err
		}
		return cur.LastID, nil
	}
	return 0, errors.New("task id counter: too many concurrent writers")
}

func (s *Store) InsertTask(ctx context.Context, task *domain.Task) error {
	id, err := s.nextTaskID(ctx)
	if err != nil {
		return fmt.Errorf("allocate task id: %w", err)
	}
	task.ID = id
	payload, err := sonic.Marshal(newTaskEntity(*task))
	if err != nil {
		return err
	}
	if _, err := s.tasks.AddEntity(ctx, payload, nil); err != nil {
		return fmt.Errorf("add task %d: %w", id, err)
	}
	return nil
}

func (s *Store) UpdateTask(ctx context.Context, task domain.Task) error {
	payload, err := sonic.Marshal(taskUpdate{
		entity:      entity{PartitionKey: taskPartition, RowKey: idKey(task.ID)},
		Title:       task.Title,
		Description: task.Description,
		BoardID:     task.BoardID,
		BoardIDType: edmInt64,
	})
	if err != nil {
		return err
	}
	et := azcore.ETagAny
	_, err = s.tasks.UpdateEntity(ctx, payload, &aztables.UpdateEntityOptions{IfMatch: &et, UpdateMode: aztables.UpdateModeMerge})
	if hasStatus(err, http.StatusNotFound) {
		return fmt.Errorf("task %d: %w", task.ID, domain.ErrNotFound)
	}
	return err
}

func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	et := azcore.ETagAny
	_, err := s.tasks.DeleteEntity(ctx, taskPartition, idKey(id), &aztables.DeleteEntityOptions{IfMatch: &et})
	if hasStatus(err, http.StatusNotFound) {
		return fmt.Errorf("task %d: %w", id, domain.ErrNotFound)
	}
	return err
}

// SearchTasks matches in process; the table service has no substring filter.
func (s *Store) SearchTasks(ctx context.Context, keyword string) ([]domain.Task, error) {
	tasks, err := s.allTasks(ctx)
	if err != nil {
		return nil, err
	}
	out := tasks[:0]
	for _, t := range tasks {
		if strings.Contains(t.Title, keyword) || strings.Contains(t.Description, keyword) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) CountTasks(ctx context.Context, ownerID string) (int, error) {
	ents, err := list[taskEntity](ctx, s.tasks, taskPartition)
	if err != nil {
		return 0, fmt.Errorf("list tasks: %w", err)
	}
	if ownerID == "" {
		return len(ents), nil
	}
	n := 0
	for _, e := range ents {
		if e.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	if id == "" {
		return nil, nil
	}
	ent, _, err := get[userEntity](ctx, s.users, userPartition, userKey(id))
	if err != nil || ent == nil {
		return nil, err
	}
	u := ent.user()
	return &u, nil
}

func (s *Store) UpsertUser(ctx context.Context, user domain.User) error {
	payload, err := sonic.Marshal(newUserEntity(user))
	if err != nil {
		return err
	}
	_, err = s.users.UpsertEntity(ctx, payload, nil)
	return err
}
