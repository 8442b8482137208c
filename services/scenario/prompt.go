package scenario

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianIntegrity/services/session"
)

// historyWindow is how many recent turns the prompt carries. Older
// turns matter less than keeping the prompt small on local backends.
const historyWindow = 3

// PromptInput bundles everything the prompt assembly needs for one
// exchange.
type PromptInput struct {
	Character Character
	Scenario  Scenario

	// Turns is the session's committed history; only the most recent
	// few are included.
	Turns []session.Turn

	// Points is the user's current gamification total, surfaced to the
	// persona so feedback can reference progress.
	Points int

	// UserMessage is the message being answered.
	UserMessage string
}

// BuildPrompt assembles the completion prompt for one exchange.
//
// Layout follows the persona instruction, then scenario framing, then
// recent history, then the trainee's message and the response charge.
func BuildPrompt(in PromptInput) string {
	var b strings.Builder
	b.WriteString(in.Character.SystemPrompt)
	b.WriteString("\n\nEscenario actual: ")
	b.WriteString(in.Scenario.Title)
	b.WriteString("\n")
	b.WriteString(in.Scenario.Context)
	b.WriteString("\n\nDilema: ")
	b.WriteString(in.Scenario.Dilemma)

	b.WriteString("\n\nHistorial reciente:\n")
	b.WriteString(formatHistory(in.Turns))

	fmt.Fprintf(&b, "\nPuntos de gamificación del usuario: %d\n", in.Points)
	fmt.Fprintf(&b, "\nMensaje del usuario: %s\n", in.UserMessage)
	fmt.Fprintf(&b,
		"\nResponde como %s, manteniendo tu personalidad y expertise. "+
			"Evalúa la respuesta del usuario en términos de integridad y proporciona feedback constructivo.\n",
		in.Character.Name)
	return b.String()
}

func formatHistory(turns []session.Turn) string {
	if len(turns) == 0 {
		return "(inicio de la conversación)\n"
	}
	if len(turns) > historyWindow {
		turns = turns[len(turns)-historyWindow:]
	}
	var b strings.Builder
	for _, t := range turns {
		speaker := "Usuario"
		if t.Speaker == session.SpeakerCharacter {
			speaker = "Personaje"
		}
		fmt.Fprintf(&b, "%s: %s\n", speaker, t.Text)
	}
	return b.String()
}
