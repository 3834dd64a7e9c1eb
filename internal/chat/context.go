package chat

import "github.com/anikdas/chatloom/internal/models"

// Turn is one entry in the context window sent to the completion provider.
// Turns are transient; only messages are persisted.
type Turn struct {
	Speaker string
	Text    string
}

const (
	SpeakerSystem    = "system"
	SpeakerUser      = "user"
	SpeakerAssistant = "assistant"
)

// SystemInstruction leads every context window and is identical across
// conversations.
const SystemInstruction = "You are a helpful AI assistant for a web chat application. " +
	"Answer in very simple English, maximum 120 words. " +
	"When explaining, use short numbered points like '1. ... 2. ...'. " +
	"Do not use markdown formatting like **bold** or ```code```."

// BuildContext assembles the ordered turn list for one completion call: the
// system instruction, the stored history, then the new user utterance. The
// result always has len(history)+2 turns. Any stored role other than user
// maps to the assistant speaker.
func BuildContext(history []models.Message, content string) []Turn {
	turns := make([]Turn, 0, len(history)+2)
	turns = append(turns, Turn{Speaker: SpeakerSystem, Text: SystemInstruction})
	for _, m := range history {
		speaker := SpeakerAssistant
		if m.Role == models.RoleUser {
			speaker = SpeakerUser
		}
		turns = append(turns, Turn{Speaker: speaker, Text: m.Content})
	}
	turns = append(turns, Turn{Speaker: SpeakerUser, Text: content})
	return turns
}
