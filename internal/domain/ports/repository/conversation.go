package repository

import (
	"context"

	"analytics-ai-core/internal/domain/model"
)

// ConversationRepository holds live conversation contexts between turns.
type ConversationRepository interface {
	Save(ctx context.Context, conv *model.ConversationContext) error
	Find(ctx context.Context, id string) (*model.ConversationContext, error)
	Delete(ctx context.Context, id string) error
	// Extend refreshes the context's expiry after a successful turn.
	Extend(ctx context.Context, id string) error
}
