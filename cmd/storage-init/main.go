// Command storage-init prepares the configured backend: it creates tables,
// queues or the relational schema and seeds the default boards.
package main

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	log "github.com/sirupsen/logrus"

	"taskboard/domain"
	"taskboard/storage/sqlstore"
	"taskboard/storage/tablestore"
)

const queueAlreadyExists = "QueueAlreadyExists"

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	log.Info("storage init starting")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		if err := initPostgres(ctx, dsn); err != nil {
			log.Fatalf("postgres: %v", err)
		}
	}

	if connStr := os.Getenv("STORAGE_CONNECTION_STRING"); connStr != "" {
		if err := initTables(ctx, connStr); err != nil {
			log.Fatalf("tables: %v", err)
		}
		if err := createQueues(ctx, connStr, []string{os.Getenv("TASK_EVENTS_QUEUE")}); err != nil {
			log.Fatalf("create queues: %v", err)
		}
	}

	log.Info("storage init complete")
}

func initPostgres(ctx context.Context, dsn string) error {
	store, err := sqlstore.Open(dsn, log.StandardLogger())
	if err != nil {
		return err
	}
	if err := store.Migrate(ctx); err != nil {
		return err
	}
	log.Info("schema migrated")
	return store.EnsureBoards(ctx, domain.DefaultBoards())
}

func initTables(ctx context.Context, connStr string) error {
	boards := envOr("BOARDS_TABLE", "Boards")
	tasks := envOr("TASKS_TABLE", "Tasks")
	users := envOr("USERS_TABLE", "Users")
	if err := createTables(ctx, connStr, []string{boards, tasks, users}); err != nil {
		return err
	}
	store, err := tablestore.New(connStr, boards, tasks, users)
	if err != nil {
		return err
	}
	return store.EnsureBoards(ctx, domain.DefaultBoards())
}

func createTables(ctx context.Context, connStr string, names []string) error {
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, nil)
	if err != nil {
		return err
	}
	for _, name := range names {
		if name == "" {
			continue
		}
		_, err := svc.NewClient(name).CreateTable(ctx, nil)
		if err != nil {
			var respErr *azcore.ResponseError
			if !(errors.As(err, &respErr) && respErr.ErrorCode == string(aztables.TableAlreadyExists)) {
				return err
			}
		}
		log.WithField("table", name).Debug("table ready")
	}
	return nil
}

func createQueues(ctx context.Context, connStr string, names []string) error {
	for _, name := range names {
		if name == "" {
			continue
		}
		q, err := azqueue.NewQueueClientFromConnectionString(connStr, name, nil)
		if err != nil {
			return err
		}
		if _, err = q.Create(ctx, nil); err != nil {
			var respErr *azcore.ResponseError
			if !(errors.As(err, &respErr) && respErr.ErrorCode == queueAlreadyExists) {
				return err
			}
		}
		log.WithField("queue", name).Debug("queue ready")
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
