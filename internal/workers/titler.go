// Package workers contains the background job processors that consume
// from the job queue.
package workers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/taskpilot/taskpilot/internal/database"
	logpkg "github.com/taskpilot/taskpilot/internal/logger"
	"github.com/taskpilot/taskpilot/internal/models"
	"github.com/taskpilot/taskpilot/internal/queue"
)

// TitleOracle generates a conversation title from message history.
type TitleOracle interface {
	GenerateTitle(ctx context.Context, history []*models.Message) (string, error)
}

// TitleWorker processes conversation title jobs
type TitleWorker struct {
	oracle TitleOracle
	convs  database.ConversationRepositoryInterface
	logger *zap.Logger
}

// NewTitleWorker creates a new title worker
func NewTitleWorker(oracle TitleOracle, convs database.ConversationRepositoryInterface, logger *zap.Logger) *TitleWorker {
	return &TitleWorker{
		oracle: oracle,
		convs:  convs,
		logger: logger,
	}
}

// ProcessTitleJob generates and stores a title for the conversation
// named by the job. Conversations that already have a title, or that
// no longer exist, are skipped without error.
func (w *TitleWorker) ProcessTitleJob(ctx context.Context, job *queue.Job) error {
	if job.ConversationID == nil {
		return fmt.Errorf("conversation_id is required for title job")
	}

	conv, err := w.convs.GetByID(ctx, job.UserID, *job.ConversationID)
	if err != nil {
		w.logger.Info("title_job_conversation_gone",
			zap.String("conversation_id", job.ConversationID.String()),
			zap.String("user_id", logpkg.SanitizeUserID(job.UserID.String())),
		)
		return nil
	}

	if conv.Title != nil && *conv.Title != "" {
		return nil
	}

	messages, err := w.convs.ListMessages(ctx, conv.ID)
	if err != nil {
		return fmt.Errorf("failed to load messages: %w", err)
	}
	if len(messages) == 0 {
		return nil
	}

	title, err := w.oracle.GenerateTitle(ctx, messages)
	if err != nil {
		return fmt.Errorf("failed to generate title: %w", err)
	}

	if err := w.convs.UpdateTitle(ctx, job.UserID, conv.ID, title); err != nil {
		return fmt.Errorf("failed to store title: %w", err)
	}

	w.logger.Info("conversation_titled",
		zap.String("conversation_id", conv.ID.String()),
		zap.String("user_id", logpkg.SanitizeUserID(job.UserID.String())),
	)
	return nil
}

// ProcessJob processes a queue message based on its job type, handling
// ack and retry bookkeeping.
func (w *TitleWorker) ProcessJob(ctx context.Context, msg queue.MessageInterface) error {
	job := msg.GetJob()

	switch job.Type {
	case queue.JobTypeConversationTitle:
		if err := w.ProcessTitleJob(ctx, job); err != nil {
			return w.handleJobError(msg, job, err)
		}
		if ackErr := msg.Ack(); ackErr != nil {
			return fmt.Errorf("failed to ack job: %w", ackErr)
		}
		return nil

	default:
		// Unknown job type, send to DLQ
		if nackErr := msg.Nack(false); nackErr != nil {
			w.logger.Warn("title_job_nack_failed", zap.Error(nackErr))
		}
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

func (w *TitleWorker) handleJobError(msg queue.MessageInterface, job *queue.Job, err error) error {
	if job.CanRetry() {
		job.IncrementRetry()
		w.logger.Warn("title_job_retry",
			zap.String("job_id", job.ID.String()),
			zap.Int("attempt", job.RetryCount),
			zap.Int("max_retries", job.MaxRetries),
			zap.String("error", logpkg.SanitizeError(err)),
		)
		if nackErr := msg.Nack(true); nackErr != nil {
			w.logger.Warn("title_job_nack_failed", zap.Error(nackErr))
		}
		return fmt.Errorf("job failed (will retry): %w", err)
	}

	w.logger.Error("title_job_exhausted",
		zap.String("job_id", job.ID.String()),
		zap.Int("max_retries", job.MaxRetries),
		zap.String("error", logpkg.SanitizeError(err)),
	)
	if nackErr := msg.Nack(false); nackErr != nil {
		w.logger.Warn("title_job_nack_failed", zap.Error(nackErr))
	}
	return fmt.Errorf("job failed (max retries): %w", err)
}

// Run consumes messages from the queue until the context is canceled.
func (w *TitleWorker) Run(ctx context.Context, jobQueue queue.JobQueue, prefetch int) error {
	msgChan, errChan, err := jobQueue.Consume(ctx, prefetch)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	w.logger.Info("title_worker_started", zap.Int("prefetch", prefetch))

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgChan:
			if !ok {
				w.logger.Info("title_worker_channel_closed")
				return nil
			}
			if err := w.ProcessJob(ctx, msg); err != nil {
				w.logger.Error("title_job_failed",
					zap.String("job_id", msg.GetJob().ID.String()),
					zap.String("error", logpkg.SanitizeError(err)),
				)
			}
		case qErr, ok := <-errChan:
			if !ok {
				// Stop selecting on the closed channel
				errChan = nil
				continue
			}
			w.logger.Error("title_worker_queue_error", zap.Error(qErr))
		}
	}
}
