package chat

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/anikdas/chatloom/internal/models"
)

// InvalidRequestError reports a request that failed validation. Nothing is
// persisted when Send returns one.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string { return e.Reason }

// Store is the persistence the pipeline needs.
type Store interface {
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
	AppendMessage(ctx context.Context, conversationID, role, content string) (*models.Message, error)
}

// Completer produces a reply for an assembled context window. Implementations
// never fail: provider errors are absorbed into a fallback reply, so callers
// cannot tell a real reply from a fallback except by content.
type Completer interface {
	Complete(ctx context.Context, turns []Turn) string
}

// Pipeline handles one send: validate, load history, build context, invoke
// the completer, persist both turns, and return the re-read transcript.
type Pipeline struct {
	store            Store
	completer        Completer
	maxContextTokens int
	logger           *zap.Logger
}

func NewPipeline(store Store, completer Completer, maxContextTokens int, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		store:            store,
		completer:        completer,
		maxContextTokens: maxContextTokens,
		logger:           logger,
	}
}

// Send runs the full message pipeline for one user utterance and returns the
// complete, freshly re-read message list for the conversation.
//
// The conversation id is not checked for existence: sending into an unknown
// id appends messages under that id. Concurrent sends into one conversation
// may read the same history; neither sees the other's in-flight message.
func (p *Pipeline) Send(ctx context.Context, conversationID, content string) ([]models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, &InvalidRequestError{Reason: "Message content is required"}
	}
	if conversationID == "" {
		return nil, &InvalidRequestError{Reason: "conversationId is required"}
	}

	// History is read before the new message is persisted, so the provider
	// context excludes the message being answered.
	history, err := p.store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	turns := CapContext(BuildContext(history, content), p.maxContextTokens)

	// The user message is durable before the provider call and is never
	// rolled back, whatever the outcome of that call.
	if _, err := p.store.AppendMessage(ctx, conversationID, models.RoleUser, content); err != nil {
		return nil, fmt.Errorf("failed to save user message: %w", err)
	}

	reply := p.completer.Complete(ctx, turns)

	// A failure here leaves the user message without its paired reply.
	if _, err := p.store.AppendMessage(ctx, conversationID, models.RoleAssistant, reply); err != nil {
		return nil, fmt.Errorf("failed to save assistant message: %w", err)
	}

	messages, err := p.store.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload messages: %w", err)
	}

	p.logger.Debug("processed message",
		zap.String("conversationId", conversationID),
		zap.Int("contextTurns", len(turns)),
		zap.Int("messages", len(messages)))
	return messages, nil
}
