package ai

import (
	"strings"

	"github.com/mindmend/backend/internal/analysis/contextual"
	"github.com/mindmend/backend/internal/model/chat"
)

// systemPersona is the fixed behavioral contract for the assistant. Everything
// else in the system prompt is per-request context appended below it.
const systemPersona = `You are MindMend, a warm, empathetic AI therapist.
Be supportive, never clinical. Validate feelings. Ask gentle questions.
Never give medical advice. Sound like a caring friend.
If the user asks for something unrelated to their wellbeing, gently redirect the conversation.`

// isolationClause keeps the model from inventing shared history: it may only
// reference what this user actually said.
const isolationClause = `Only reference details from this user's own past messages shown below.
Never make up details or memories. If you don't remember something, say "I don't remember that — tell me again?"`

// empathyThreshold is the minimum classifier confidence before an emotion is
// allowed to steer the prompt.
const empathyThreshold = 0.6

var empathyDirectives = map[string]string{
	"sadness":  "The user sounds sad. Lead with comfort: acknowledge how hard this feels before anything else.",
	"anger":    "The user sounds frustrated. Validate the frustration as completely legitimate before exploring it.",
	"fear":     "The user sounds scared. Reassure them that they are not alone and it is okay to feel this way.",
	"joy":      "The user sounds happy. Share in the joy warmly before moving on.",
	"love":     "The user is expressing affection or connection. Respond with warmth and gratitude.",
	"surprise": "The user sounds caught off guard. Help them ground and unpack what just happened.",
}

// PromptContext carries the per-request hidden context for prompt assembly.
type PromptContext struct {
	Past    []chat.Record
	Name    string
	Emotion chat.Annotation
}

// BuildSystemPrompt assembles persona, isolation clause, optional name
// context, optional retrieved history, and an empathy directive when the
// emotion confidence clears the threshold.
func BuildSystemPrompt(pc PromptContext) string {
	var b strings.Builder
	b.WriteString(systemPersona)
	b.WriteString("\n\n")
	b.WriteString(isolationClause)

	if prefix := contextual.NamePrefix(pc.Name); prefix != "" {
		b.WriteString("\n\n")
		b.WriteString(strings.TrimSpace(prefix))
	}

	if past := contextual.PastContext(pc.Past); past != "" {
		b.WriteString("\n")
		b.WriteString(past)
	}

	if pc.Emotion.Score > empathyThreshold {
		if directive, ok := empathyDirectives[strings.ToLower(pc.Emotion.Label)]; ok {
			b.WriteString("\n\n")
			b.WriteString(directive)
		}
	}

	return b.String()
}
