package chat

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/anikdas/chatloom/internal/models"
)

type fakeStore struct {
	messages map[string][]models.Message
	nextID   int

	failAppendRole string // when set, AppendMessage fails for this role
	appendedRoles  []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{messages: map[string][]models.Message{}}
}

func (s *fakeStore) ListMessages(_ context.Context, conversationID string) ([]models.Message, error) {
	return append([]models.Message(nil), s.messages[conversationID]...), nil
}

func (s *fakeStore) AppendMessage(_ context.Context, conversationID, role, content string) (*models.Message, error) {
	if s.failAppendRole == role {
		return nil, errors.New("disk full")
	}
	s.nextID++
	msg := models.Message{
		ID:        fmt.Sprintf("m%d", s.nextID),
		ConvID:    conversationID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	s.messages[conversationID] = append(s.messages[conversationID], msg)
	s.appendedRoles = append(s.appendedRoles, role)
	return &msg, nil
}

type fakeCompleter struct {
	reply string
	calls [][]Turn
}

func (c *fakeCompleter) Complete(_ context.Context, turns []Turn) string {
	c.calls = append(c.calls, turns)
	return c.reply
}

func newTestPipeline(store Store, completer Completer) *Pipeline {
	return NewPipeline(store, completer, 0, zap.NewNop())
}

func TestSend_AppendsUserThenAssistant(t *testing.T) {
	store := newFakeStore()
	completer := &fakeCompleter{reply: "sure, here is help"}
	p := newTestPipeline(store, completer)

	messages, err := p.Send(context.Background(), "c1", "help me")
	require.NoError(t, err)

	require.Equal(t, []string{models.RoleUser, models.RoleAssistant}, store.appendedRoles)
	require.Len(t, messages, 2)
	assert.Equal(t, models.RoleUser, messages[0].Role)
	assert.Equal(t, "help me", messages[0].Content)
	assert.Equal(t, models.RoleAssistant, messages[1].Role)
	assert.Equal(t, "sure, here is help", messages[1].Content)
}

func TestSend_BlankContent(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(store, &fakeCompleter{})

	for _, content := range []string{"", "   ", "\n\t"} {
		_, err := p.Send(context.Background(), "c1", content)
		var invalid *InvalidRequestError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, "Message content is required", invalid.Reason)
	}
	assert.Empty(t, store.appendedRoles, "validation failure must persist nothing")
}

func TestSend_MissingConversationID(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(store, &fakeCompleter{})

	_, err := p.Send(context.Background(), "", "hello")
	var invalid *InvalidRequestError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "conversationId is required", invalid.Reason)
	assert.Empty(t, store.appendedRoles)
}

func TestSend_ContextExcludesInFlightMessage(t *testing.T) {
	store := newFakeStore()
	store.messages["c1"] = []models.Message{
		{ID: "m-a", ConvID: "c1", Role: models.RoleUser, Content: "earlier question"},
		{ID: "m-b", ConvID: "c1", Role: models.RoleAssistant, Content: "earlier answer"},
	}
	completer := &fakeCompleter{reply: "ok"}
	p := newTestPipeline(store, completer)

	_, err := p.Send(context.Background(), "c1", "new question")
	require.NoError(t, err)

	require.Len(t, completer.calls, 1)
	turns := completer.calls[0]
	require.Len(t, turns, 4) // system + 2 history + new user turn
	assert.Equal(t, SpeakerSystem, turns[0].Speaker)
	assert.Equal(t, "earlier question", turns[1].Text)
	assert.Equal(t, "earlier answer", turns[2].Text)
	assert.Equal(t, Turn{Speaker: SpeakerUser, Text: "new question"}, turns[3])
}

func TestSend_OrphanWriteIntoUnknownConversation(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(store, &fakeCompleter{reply: "hello"})

	// No existence check: both messages land under the unknown id.
	messages, err := p.Send(context.Background(), "X", "hi")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "X", messages[0].ConvID)
	assert.Equal(t, "X", messages[1].ConvID)
}

func TestSend_SecondSendSeesFirstExchange(t *testing.T) {
	store := newFakeStore()
	completer := &fakeCompleter{reply: "answer"}
	p := newTestPipeline(store, completer)

	_, err := p.Send(context.Background(), "c1", "first")
	require.NoError(t, err)
	messages, err := p.Send(context.Background(), "c1", "second")
	require.NoError(t, err)

	require.Len(t, completer.calls, 2)
	assert.Len(t, completer.calls[0], 2)
	// system + user/assistant pair from the first send + new user turn
	assert.Len(t, completer.calls[1], 4)
	assert.Len(t, messages, 4)
}

func TestSend_UserMessageSurvivesAssistantPersistFailure(t *testing.T) {
	store := newFakeStore()
	store.failAppendRole = models.RoleAssistant
	p := newTestPipeline(store, &fakeCompleter{reply: "lost reply"})

	_, err := p.Send(context.Background(), "c1", "hello")
	require.Error(t, err)
	var invalid *InvalidRequestError
	assert.False(t, errors.As(err, &invalid), "store failure is not a validation error")

	// Partial-failure window: the user message stays without its reply.
	require.Equal(t, []string{models.RoleUser}, store.appendedRoles)
	require.Len(t, store.messages["c1"], 1)
	assert.Equal(t, models.RoleUser, store.messages["c1"][0].Role)
}

func TestSend_UserPersistFailureAbortsBeforeInvoke(t *testing.T) {
	store := newFakeStore()
	store.failAppendRole = models.RoleUser
	completer := &fakeCompleter{reply: "never sent"}
	p := newTestPipeline(store, completer)

	_, err := p.Send(context.Background(), "c1", "hello")
	require.Error(t, err)
	assert.Empty(t, completer.calls)
	assert.Empty(t, store.messages["c1"])
}

func TestSend_EmptyReplyPersisted(t *testing.T) {
	store := newFakeStore()
	p := newTestPipeline(store, &fakeCompleter{reply: ""})

	messages, err := p.Send(context.Background(), "c1", "hi")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, models.RoleAssistant, messages[1].Role)
	assert.Equal(t, "", messages[1].Content)
}

func TestSend_ReturnsStoreState(t *testing.T) {
	store := newFakeStore()
	// A message another request appended concurrently shows up in the
	// returned transcript because Send re-reads the store.
	store.messages["c1"] = []models.Message{
		{ID: "m-other", ConvID: "c1", Role: models.RoleUser, Content: "from elsewhere"},
	}
	p := newTestPipeline(store, &fakeCompleter{reply: "ok"})

	messages, err := p.Send(context.Background(), "c1", "mine")
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "from elsewhere", messages[0].Content)
}
