package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"menucrawler/crawler/internal/domain"
	"menucrawler/crawler/internal/domain/task"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// staleAfter is how long a delivered retry task may stay unacknowledged
// before another consumer takes it over.
const staleAfter = time.Minute

var errQueueDisabled = errors.New("retry queue is not configured, enable redis")

type retryOutcome int

const (
	outcomeRecovered retryOutcome = iota
	outcomeRequeued
	outcomeDropped
)

// RetryFailed drains the failed-category stream once. Each task is crawled
// again; recovered items go to the task's session, and tasks that fail again
// are queued for the next drain until they reach the retry limit.
func (s *Service) RetryFailed(ctx context.Context, consumer string) domain.RetryResult {
	if s.queue == nil {
		return domain.RetryResult{Error: errQueueDisabled.Error()}
	}

	stream := s.queue.StreamName(task.CategoryRetryTaskType)
	result := domain.RetryResult{Success: true}
	var requeue []*task.CategoryRetryTask

	handle := func(msg *redis.XMessage) {
		retryTask, err := decodeRetryTask(msg)
		if err != nil {
			log.Errorf("❌ Dropping malformed message %s: %v", msg.ID, err)
			result.Dropped++
		} else {
			outcome, count := s.retryCategory(ctx, retryTask)
			switch outcome {
			case outcomeRecovered:
				result.Recovered++
				result.Items += count
			case outcomeRequeued:
				result.Requeued++
				requeue = append(requeue, retryTask)
			case outcomeDropped:
				result.Dropped++
			}
		}
		result.Processed++

		if err := s.queue.AckTask(ctx, stream, s.groupName, msg.ID); err != nil {
			log.Errorf("❌ Failed to ack message %s: %v", msg.ID, err)
		}
	}

	claimed, err := s.queue.AutoClaim(ctx, s.groupName, consumer, stream, staleAfter)
	if err != nil {
		log.Errorf("❌ Failed to auto-claim messages for %s: %v", stream, err)
	}
	if len(claimed) > 0 {
		log.Infof("🔄 Auto-claimed %d stale retry tasks", len(claimed))
	}
	for i := range claimed {
		handle(&claimed[i])
	}

	for ctx.Err() == nil {
		msg, err := s.queue.GetTask(ctx, s.groupName, consumer, stream)
		if err != nil {
			result.Success = false
			result.Error = err.Error()
			break
		}
		if msg == nil {
			break
		}
		handle(msg)
	}

	// Requeued only after the drain so one run makes one attempt per task
	for _, t := range requeue {
		if _, err := s.queue.AddTask(ctx, t); err != nil {
			log.Errorf("❌ Failed to re-add retry task for %s: %v", t.Category.Name, err)
		}
	}

	log.Infof("✅ Retry drain finished: %d processed, %d recovered, %d requeued, %d dropped",
		result.Processed, result.Recovered, result.Requeued, result.Dropped)

	return result
}

func (s *Service) retryCategory(ctx context.Context, retryTask *task.CategoryRetryTask) (retryOutcome, int) {
	retryTask.RetryCount++

	log.Infof("🔄 Retrying %s (attempt %d)", retryTask.Category.Name, retryTask.RetryCount)

	items, reports := s.orchestrator.CrawlCategories(ctx, []domain.Category{retryTask.Category}, retryTask.Selectors, nil)
	if len(reports) == 1 && reports[0].Success {
		s.appendToSession(ctx, retryTask.SessionID, items)
		log.Infof("✅ Recovered %s after %d attempts: %d items",
			retryTask.Category.Name, retryTask.RetryCount, len(items))
		return outcomeRecovered, len(items)
	}

	if len(reports) == 1 {
		retryTask.Error = reports[0].Error
	}

	if retryTask.RetryCount >= s.maxRetries {
		log.Errorf("❌ Giving up on %s after %d attempts: %s",
			retryTask.Category.Name, retryTask.RetryCount, retryTask.Error)
		return outcomeDropped, 0
	}

	log.Warnf("🔄 %s failed again, will retry (attempt %d): %s",
		retryTask.Category.Name, retryTask.RetryCount, retryTask.Error)
	return outcomeRequeued, 0
}

func decodeRetryTask(msg *redis.XMessage) (*task.CategoryRetryTask, error) {
	taskType, ok := msg.Values["task_type"].(string)
	if !ok || taskType != task.CategoryRetryTaskType {
		return nil, fmt.Errorf("unexpected task type %v in message %s", msg.Values["task_type"], msg.ID)
	}

	taskData, ok := msg.Values["task_data"].(string)
	if !ok {
		return nil, fmt.Errorf("invalid task data in message %s", msg.ID)
	}

	retryTask, err := task.UnmarshalTask[*task.CategoryRetryTask]([]byte(taskData))
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal retry task data: %w", err)
	}
	return retryTask, nil
}
