package llm

import (
	"context"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"

	"github.com/anikdas/chatloom/internal/chat"
)

// Generation parameters, fixed for every completion call.
const (
	temperature = 0.7
	maxTokens   = 300
)

// Service invokes the external completion provider. It is stateless per call
// and safe for concurrent use.
type Service struct {
	model   llms.Model
	timeout time.Duration
	logger  *zap.Logger
}

func New(baseURL, token, model string, timeout time.Duration, logger *zap.Logger) (*Service, error) {
	client, err := openai.New(
		openai.WithToken(token),
		openai.WithBaseURL(baseURL),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, err
	}
	return NewWithModel(client, timeout, logger), nil
}

// NewWithModel wires an already-constructed model. Used by tests to
// substitute a double for the provider client.
func NewWithModel(model llms.Model, timeout time.Duration, logger *zap.Logger) *Service {
	return &Service{model: model, timeout: timeout, logger: logger}
}

// Complete sends the assembled turns to the provider and returns the reply
// text. It never fails: any provider error, timeout, or empty choice list
// yields the fallback reply instead. An empty reply string from the provider
// is accepted as-is.
func (s *Service) Complete(ctx context.Context, turns []chat.Turn) string {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	messages := make([]llms.MessageContent, 0, len(turns))
	for _, t := range turns {
		role := llms.ChatMessageTypeAI
		switch t.Speaker {
		case chat.SpeakerSystem:
			role = llms.ChatMessageTypeSystem
		case chat.SpeakerUser:
			role = llms.ChatMessageTypeHuman
		}
		messages = append(messages, llms.TextParts(role, t.Text))
	}

	resp, err := s.model.GenerateContent(ctx, messages,
		llms.WithTemperature(temperature),
		llms.WithMaxTokens(maxTokens),
	)
	if err != nil {
		s.logger.Warn("completion call failed, using fallback", zap.Error(err))
		return Fallback(lastUserText(turns))
	}
	if len(resp.Choices) == 0 {
		s.logger.Warn("completion returned no choices, using fallback")
		return Fallback(lastUserText(turns))
	}
	return resp.Choices[0].Content
}

// Fallback is the deterministic reply substituted when the provider call
// fails. The original content is inserted verbatim.
func Fallback(content string) string {
	return `I received your message: "` + content + `". ` +
		"Right now the external AI provider is not responding, " +
		"so this is a fallback response generated by my backend."
}

// lastUserText returns the text of the most recent user turn, which by
// construction is the utterance being answered.
func lastUserText(turns []chat.Turn) string {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Speaker == chat.SpeakerUser {
			return turns[i].Text
		}
	}
	return ""
}
