package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/taskpilot/taskpilot/internal/models"
)

// ConversationRepository handles conversation and message database
// operations. Unlike tasks, the conversation layer distinguishes "does
// not exist" from "owned by someone else": per-user conversation lists
// already reveal existence, and the HTTP boundary maps the two cases to
// different status codes.
type ConversationRepository struct {
	db *DB
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(db *DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// Create creates a new conversation
func (r *ConversationRepository) Create(ctx context.Context, conv *models.Conversation) error {
	query := `
		INSERT INTO conversations (id, user_id, title, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	now := time.Now().UTC()
	err := r.db.QueryRowContext(ctx, query,
		conv.ID,
		conv.UserID,
		conv.Title,
		now,
		now,
	).Scan(&conv.CreatedAt, &conv.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create conversation: %w", err)
	}

	return nil
}

// GetByID retrieves a conversation by ID, scoped to the owning user
func (r *ConversationRepository) GetByID(ctx context.Context, userID, convID uuid.UUID) (*models.Conversation, error) {
	conv := &models.Conversation{}
	query := `
		SELECT id, user_id, title, created_at, updated_at
		FROM conversations
		WHERE id = $1 AND user_id = $2
	`

	err := r.db.QueryRowContext(ctx, query, convID, userID).Scan(
		&conv.ID,
		&conv.UserID,
		&conv.Title,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("conversation not found: %w", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	return conv, nil
}

// Exists reports whether a conversation exists regardless of owner. Used
// to tell "absent" apart from "foreign" when resolving a conversation id.
func (r *ConversationRepository) Exists(ctx context.Context, convID uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM conversations WHERE id = $1)`

	if err := r.db.QueryRowContext(ctx, query, convID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check conversation existence: %w", err)
	}

	return exists, nil
}

// GetByUserID retrieves all conversations for a user, most recently
// active first
func (r *ConversationRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]*models.Conversation, error) {
	query := `
		SELECT id, user_id, title, created_at, updated_at
		FROM conversations
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	var convs []*models.Conversation
	for rows.Next() {
		conv := &models.Conversation{}
		err := rows.Scan(
			&conv.ID,
			&conv.UserID,
			&conv.Title,
			&conv.CreatedAt,
			&conv.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		convs = append(convs, conv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversations: %w", err)
	}

	return convs, nil
}

// UpdateTitle sets the conversation title
func (r *ConversationRepository) UpdateTitle(ctx context.Context, userID, convID uuid.UUID, title string) error {
	query := `UPDATE conversations SET title = $3 WHERE id = $1 AND user_id = $2`

	result, err := r.db.ExecContext(ctx, query, convID, userID, title)
	if err != nil {
		return fmt.Errorf("failed to update conversation title: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("conversation not found: %w", sql.ErrNoRows)
	}

	return nil
}

// Delete removes a conversation; its messages cascade with it
func (r *ConversationRepository) Delete(ctx context.Context, userID, convID uuid.UUID) error {
	query := `DELETE FROM conversations WHERE id = $1 AND user_id = $2`

	result, err := r.db.ExecContext(ctx, query, convID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("conversation not found: %w", sql.ErrNoRows)
	}

	return nil
}

// AppendMessage inserts a message and bumps the parent conversation's
// updated_at in the same transaction. Conversation-list freshness
// ordering depends on the two writes being atomic.
func (r *ConversationRepository) AppendMessage(ctx context.Context, msg *models.Message) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			_ = rbErr
		}
	}()

	now := time.Now().UTC()
	err = tx.QueryRowContext(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, msg.ID, msg.ConversationID, msg.Role, msg.Content, now).Scan(&msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE conversations SET updated_at = $2 WHERE id = $1
	`, msg.ConversationID, now)
	if err != nil {
		return fmt.Errorf("failed to bump conversation timestamp: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit message append: %w", err)
	}

	return nil
}

// ListMessages retrieves all messages for a conversation in ascending
// creation order. Ascending order is a hard contract: the chat
// orchestration replays this list verbatim as agent context.
func (r *ConversationRepository) ListMessages(ctx context.Context, convID uuid.UUID) ([]*models.Message, error) {
	query := `
		SELECT id, conversation_id, role, content, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, convID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg := &models.Message{}
		err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.Role,
			&msg.Content,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	return messages, nil
}
