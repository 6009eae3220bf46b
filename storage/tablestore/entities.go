package tablestore

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"taskboard/domain"
)

const (
	boardPartition   = "board"
	taskPartition    = "task"
	userPartition    = "user"
	counterPartition = "counter"
	counterRow       = "tasks"

	edmInt64 = "Edm.Int64"
)

type entity struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
}

type boardEntity struct {
	entity
	Name string `json:"Name"`
}

type taskEntity struct {
	entity
	Title         string `json:"Title"`
	Description   string `json:"Description"`
	BoardID       int64  `json:"BoardID,string"`
	BoardIDType   string `json:"BoardID@odata.type"`
	OwnerID       string `json:"OwnerID"`
	CreatedOn     int64  `json:"CreatedOn,string"`
	CreatedOnType string `json:"CreatedOn@odata.type"`
}

// taskUpdate is merged into an existing task row, leaving owner and creation
// time untouched.
type taskUpdate struct {
	entity
	Title       string `json:"Title"`
	Description string `json:"Description"`
	BoardID     int64  `json:"BoardID,string"`
	BoardIDType string `json:"BoardID@odata.type"`
}

type userEntity struct {
	entity
	UserID   string `json:"UserID"`
	Username string `json:"Username"`
}

// counterEntity holds the last task id handed out.
type counterEntity struct {
	entity
	LastID     int64  `json:"LastID,string"`
	LastIDType string `json:"LastID@odata.type"`
}

// idKey renders ids zero-padded so row keys sort numerically.
func idKey(id int64) string {
	return fmt.Sprintf("%019d", id)
}

func parseIDKey(rk string) (int64, error) {
	return strconv.ParseInt(rk, 10, 64)
}

// userKey escapes the characters row keys may not contain.
func userKey(id string) string {
	return url.PathEscape(id)
}

func newTaskEntity(t domain.Task) taskEntity {
	return taskEntity{
		entity:        entity{PartitionKey: taskPartition, RowKey: idKey(t.ID)},
		Title:         t.Title,
		Description:   t.Description,
		BoardID:       t.BoardID,
		BoardIDType:   edmInt64,
		OwnerID:       t.OwnerID,
		CreatedOn:     t.CreatedOn.UTC().UnixNano(),
		CreatedOnType: edmInt64,
	}
}

func (e taskEntity) task() (domain.Task, error) {
	id, err := parseIDKey(e.RowKey)
	if err != nil {
		return domain.Task{}, fmt.Errorf("task row key %q: %w", e.RowKey, err)
	}
	return domain.Task{
		ID:          id,
		Title:       e.Title,
		Description: e.Description,
		CreatedOn:   time.Unix(0, e.CreatedOn).UTC(),
		BoardID:     e.BoardID,
		OwnerID:     e.OwnerID,
	}, nil
}

func newBoardEntity(b domain.Board) boardEntity {
	return boardEntity{entity: entity{PartitionKey: boardPartition, RowKey: idKey(b.ID)}, Name: b.Name}
}

func (e boardEntity) board() (domain.Board, error) {
	id, err := parseIDKey(e.RowKey)
	if err != nil {
		return domain.Board{}, fmt.Errorf("board row key %q: %w", e.RowKey, err)
	}
	return domain.Board{ID: id, Name: e.Name}, nil
}

func newUserEntity(u domain.User) userEntity {
	return userEntity{entity: entity{PartitionKey: userPartition, RowKey: userKey(u.ID)}, UserID: u.ID, Username: u.Username}
}

func (e userEntity) user() domain.User {
	return domain.User{ID: e.UserID, Username: e.Username}
}

func partitionFilter(pk string) string {
	return "PartitionKey eq '" + pk + "'"
}
