// Package storage holds infrastructure shared by the store backends.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"taskboard/domain"
)

type queueClient interface {
	EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error)
}

// EventEnvelope is the queue message body for a task event.
type EventEnvelope struct {
	ID     string           `json:"id"`
	UserID string           `json:"userId"`
	Event  domain.TaskEvent `json:"event"`
}

// EventQueue publishes task events to an Azure Storage queue.
type EventQueue struct {
	queue queueClient
	newID func() string
}

// NewEventQueue creates an EventQueue for the named queue.
func NewEventQueue(connStr, queueName string) (*EventQueue, error) {
	opts := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	q, err := azqueue.NewQueueClientFromConnectionString(connStr, queueName, &opts)
	if err != nil {
		return nil, err
	}
	return &EventQueue{queue: q, newID: uuid.NewString}, nil
}

func encodeEnvelope(env EventEnvelope) (string, error) {
	data, err := sonic.Marshal(env)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// PublishTaskEvent enqueues ev wrapped in an envelope with a fresh id.
func (q *EventQueue) PublishTaskEvent(ctx context.Context, ev domain.TaskEvent) error {
	body, err := encodeEnvelope(EventEnvelope{ID: q.newID(), UserID: ev.UserID, Event: ev})
	if err != nil {
		return fmt.Errorf("encode %s event: %w", ev.Type, err)
	}
	if _, err := q.queue.EnqueueMessage(ctx, body, nil); err != nil {
		return fmt.Errorf("enqueue %s event for task %d: %w", ev.Type, ev.TaskID, err)
	}
	return nil
}
