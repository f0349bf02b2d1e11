package queue

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// TitlePublisher enqueues conversation title generation jobs.
type TitlePublisher struct {
	queue JobQueue
}

// NewTitlePublisher creates a publisher backed by the given queue.
func NewTitlePublisher(queue JobQueue) *TitlePublisher {
	return &TitlePublisher{queue: queue}
}

// EnqueueTitleJob schedules a title generation job for a conversation.
func (p *TitlePublisher) EnqueueTitleJob(ctx context.Context, userID, conversationID uuid.UUID) error {
	job := NewJob(JobTypeConversationTitle, userID, &conversationID)
	if err := p.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue title job: %w", err)
	}
	return nil
}
