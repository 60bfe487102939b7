package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultAbortedStream receives a record for every task that ran out of tries.
const DefaultAbortedStream = "ordercore:tasks:aborted"

// maxAbortedEntries caps the stream length; XADD trims approximately.
const maxAbortedEntries = 10000

// AbortedTask is one entry of the aborted-task stream.
type AbortedTask struct {
	StreamID      string
	TaskID        string
	Name          string
	NumberOfTried int
	LastError     string
	AbortedAt     time.Time
}

type StreamProducer struct {
	client redis.Cmdable
	stream string
}

func NewStreamProducer(client redis.Cmdable, stream string) *StreamProducer {
	if stream == "" {
		stream = DefaultAbortedStream
	}
	return &StreamProducer{client: client, stream: stream}
}

// PublishAborted appends an aborted task to the stream.
func (p *StreamProducer) PublishAborted(ctx context.Context, t AbortedTask) error {
	args := &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: maxAbortedEntries,
		Approx: true,
		Values: map[string]any{
			"task_id":         t.TaskID,
			"name":            t.Name,
			"number_of_tried": t.NumberOfTried,
			"last_error":      t.LastError,
			"timestamp":       t.AbortedAt.Unix(),
		},
	}

	if _, err := p.client.XAdd(ctx, args).Result(); err != nil {
		return fmt.Errorf("failed to publish aborted task: %w", err)
	}
	return nil
}

// RecentAborted returns up to count entries, newest first.
func (p *StreamProducer) RecentAborted(ctx context.Context, count int64) ([]AbortedTask, error) {
	msgs, err := p.client.XRevRangeN(ctx, p.stream, "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read aborted tasks: %w", err)
	}

	out := make([]AbortedTask, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, AbortedTask{
			StreamID:      m.ID,
			TaskID:        field(m.Values, "task_id"),
			Name:          field(m.Values, "name"),
			NumberOfTried: atoi(field(m.Values, "number_of_tried")),
			LastError:     field(m.Values, "last_error"),
			AbortedAt:     time.Unix(int64(atoi(field(m.Values, "timestamp"))), 0),
		})
	}
	return out, nil
}

func field(values map[string]any, key string) string {
	if v, ok := values[key]; ok {
		return fmt.Sprint(v)
	}
	return ""
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
