// Package sqlstore persists boards, tasks and users in PostgreSQL through gorm.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"taskboard/domain"
)

// likeEscaper neutralises LIKE wildcards so keywords match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Store implements domain.Store on a gorm connection.
type Store struct {
	db *gorm.DB
}

// Open connects to PostgreSQL using dsn. Queries are logged through logger.
func Open(dsn string, logger *log.Logger) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.New(logger, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return New(db), nil
}

// New wraps an existing gorm connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates or updates the schema.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&userModel{}, &boardModel{}, &taskModel{})
}

// EnsureBoards inserts the given boards, renaming any that already exist.
func (s *Store) EnsureBoards(ctx context.Context, boards []domain.Board) error {
	if len(boards) == 0 {
		return nil
	}
	models := make([]boardModel, 0, len(boards))
	for _, b := range boards {
		models = append(models, boardModel{ID: b.ID, Name: b.Name})
	}
	return s.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name"}),
		}).
		Create(&models).Error
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) ListBoards(ctx context.Context) ([]domain.Board, error) {
	var models []boardModel
	err := s.db.WithContext(ctx).
		Preload("Tasks", func(tx *gorm.DB) *gorm.DB { return tx.Order("tasks.id") }).
		Preload("Tasks.Owner").
		Preload("Tasks.Board").
		Order("id").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.Board, 0, len(models))
	for _, m := range models {
		out = append(out, m.board())
	}
	return out, nil
}

func (s *Store) GetBoard(ctx context.Context, id int64) (*domain.Board, error) {
	var m boardModel
	err := s.db.WithContext(ctx).First(&m, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	b := domain.Board{ID: m.ID, Name: m.Name}
	return &b, nil
}

func (s *Store) GetTask(ctx context.Context, id int64) (*domain.Task, error) {
	var m taskModel
	err := s.db.WithContext(ctx).Preload("Board").Preload("Owner").First(&m, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t := m.task()
	return &t, nil
}

func (s *Store) InsertTask(ctx context.Context, task *domain.Task) error {
	m := newTaskModel(*task)
	m.ID = 0
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&m).Error; err != nil {
		return err
	}
	task.ID = m.ID
	return nil
}

func (s *Store) UpdateTask(ctx context.Context, task domain.Task) error {
	res := s.db.WithContext(ctx).
		Model(&taskModel{}).
		Where("id = ?", task.ID).
		Updates(map[string]any{
			"title":       task.Title,
			"description": task.Description,
			"board_id":    task.BoardID,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("task %d: %w", task.ID, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&taskModel{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("task %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// searchQuery matches keyword literally against title or description.
func searchQuery(tx *gorm.DB, keyword string) *gorm.DB {
	if keyword == "" {
		return tx.Order("tasks.id")
	}
	pattern := "%" + likeEscaper.Replace(keyword) + "%"
	return tx.
		Where(`tasks.title LIKE ? ESCAPE '\' OR tasks.description LIKE ? ESCAPE '\'`, pattern, pattern).
		Order("tasks.id")
}

func (s *Store) SearchTasks(ctx context.Context, keyword string) ([]domain.Task, error) {
	var models []taskModel
	tx := s.db.WithContext(ctx).Model(&taskModel{}).Preload("Board").Preload("Owner")
	if err := searchQuery(tx, keyword).Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Task, 0, len(models))
	for _, m := range models {
		out = append(out, m.task())
	}
	return out, nil
}

func (s *Store) CountTasks(ctx context.Context, ownerID string) (int, error) {
	var n int64
	tx := s.db.WithContext(ctx).Model(&taskModel{})
	if ownerID != "" {
		tx = tx.Where("owner_id = ?", ownerID)
	}
	if err := tx.Count(&n).Error; err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var m userModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u := m.user()
	return &u, nil
}

func (s *Store) UpsertUser(ctx context.Context, user domain.User) error {
	m := userModel{ID: user.ID, Username: user.Username}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"username"}),
		}).
		Create(&m).Error
}
