package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"menucrawler/crawler/internal/domain/task"

	"github.com/redis/go-redis/v9"
)

// Queue is an in-memory queue.Queue. Each stream keeps its messages in
// order; delivered messages stay pending until acknowledged.
type Queue struct {
	mu        sync.Mutex
	seq       int
	streams   map[string][]redis.XMessage
	delivered map[string]int
	pending   map[string]map[string]redis.XMessage
	acked     []string
}

func NewQueue() *Queue {
	return &Queue{
		streams:   make(map[string][]redis.XMessage),
		delivered: make(map[string]int),
		pending:   make(map[string]map[string]redis.XMessage),
	}
}

func (q *Queue) StreamName(taskType string) string {
	return "test:stream:" + taskType
}

func (q *Queue) AddTask(_ context.Context, t task.Task) (string, error) {
	data, err := t.TaskValue()
	if err != nil {
		return "", err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.seq++
	id := fmt.Sprintf("%d-0", q.seq)
	stream := q.StreamName(t.TaskType())
	q.streams[stream] = append(q.streams[stream], redis.XMessage{
		ID: id,
		Values: map[string]interface{}{
			"task_type": t.TaskType(),
			"task_data": string(data),
		},
	})
	return id, nil
}

func (q *Queue) GetTask(_ context.Context, _, _, stream string) (*redis.XMessage, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	next := q.delivered[stream]
	if next >= len(q.streams[stream]) {
		return nil, nil
	}
	q.delivered[stream] = next + 1

	msg := q.streams[stream][next]
	if q.pending[stream] == nil {
		q.pending[stream] = make(map[string]redis.XMessage)
	}
	q.pending[stream][msg.ID] = msg
	return &msg, nil
}

func (q *Queue) AckTask(_ context.Context, stream, _, msgID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.pending[stream], msgID)
	q.acked = append(q.acked, msgID)
	return nil
}

func (q *Queue) AutoClaim(_ context.Context, _, _, _ string, _ time.Duration) ([]redis.XMessage, error) {
	return nil, nil
}

// Tasks decodes every message ever added to the stream of taskType.
func (q *Queue) Tasks(taskType string) []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	var out []string
	for _, msg := range q.streams[q.StreamName(taskType)] {
		out = append(out, msg.Values["task_data"].(string))
	}
	return out
}

// Pending returns the number of delivered but unacknowledged messages.
func (q *Queue) Pending(taskType string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending[q.StreamName(taskType)])
}
