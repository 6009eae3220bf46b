package sqlstore

import (
	"time"

	"taskboard/domain"
)

type boardModel struct {
	ID    int64       `gorm:"primaryKey;autoIncrement:false"`
	Name  string      `gorm:"not null"`
	Tasks []taskModel `gorm:"foreignKey:BoardID;constraint:OnDelete:CASCADE"`
}

func (boardModel) TableName() string { return "boards" }

type taskModel struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	Title       string    `gorm:"not null"`
	Description string    `gorm:"not null;default:''"`
	CreatedOn   time.Time `gorm:"not null"`
	BoardID     int64     `gorm:"not null;index"`
	OwnerID     string    `gorm:"not null;index"`

	Board *boardModel `gorm:"foreignKey:BoardID"`
	Owner *userModel  `gorm:"foreignKey:OwnerID"`
}

func (taskModel) TableName() string { return "tasks" }

type userModel struct {
	ID       string `gorm:"primaryKey"`
	Username string `gorm:"not null"`
}

func (userModel) TableName() string { return "users" }

func (m userModel) user() domain.User {
	return domain.User{ID: m.ID, Username: m.Username}
}

func (m taskModel) task() domain.Task {
	t := domain.Task{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		CreatedOn:   m.CreatedOn.UTC(),
		BoardID:     m.BoardID,
		OwnerID:     m.OwnerID,
	}
	if m.Board != nil {
		t.Board = &domain.Board{ID: m.Board.ID, Name: m.Board.Name}
	}
	if m.Owner != nil {
		u := m.Owner.user()
		t.Owner = &u
	}
	return t
}

func (m boardModel) board() domain.Board {
	b := domain.Board{ID: m.ID, Name: m.Name, Tasks: make([]domain.Task, 0, len(m.Tasks))}
	for _, tm := range m.Tasks {
		b.Tasks = append(b.Tasks, tm.task())
	}
	return b
}

func newTaskModel(t domain.Task) taskModel {
	return taskModel{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		CreatedOn:   t.CreatedOn,
		BoardID:     t.BoardID,
		OwnerID:     t.OwnerID,
	}
}
