package service

import (
	"strings"
	"unicode"

	"github.com/boddenberg/iagente-vida-go/internal/domain"
	"github.com/boddenberg/iagente-vida-go/internal/responder"
)

// Command is a control message handled without routing.
type Command string

const (
	CommandHelp     Command = "help"
	CommandRestart  Command = "restart"
	CommandStop     Command = "stop"
	CommandGreeting Command = "greeting"
)

var commandWords = []struct {
	cmd   Command
	words []string
}{
	{CommandHelp, []string{"help", "ayuda", "menu", "menú"}},
	{CommandRestart, []string{"reiniciar", "restart", "empezar de nuevo"}},
	{CommandStop, []string{"stop", "parar", "cancelar", "salir"}},
	{CommandGreeting, []string{"hola", "hi", "hello", "buenas", "buenos días", "buenas tardes", "buenas noches"}},
}

const helpText = `*Comandos disponibles:*

• Escribe los datos de tu cliente con normalidad
• *ayuda* - Mostrar esta ayuda
• *reiniciar* - Empezar con otro cliente
• *salir* - Finalizar la conversación

*Ejemplos:*
• "Mi cliente se llama Juan, tiene 45 años y 2 hijos"
• "¿Cuánto capital debería asegurar?"
• "Necesito cotizaciones"
• "Le parece caro, puede pagar 40 euros al mes"`

const goodbyeText = "Gracias por usar iAgente_Vida. Si necesitas ayuda con otro cliente, escríbeme cuando quieras. ¡Hasta pronto!"

// detectCommand matches the whole message against the control words, so
// "hola, mi cliente tiene 45 años" is not a greeting. Greetings only count
// at the very start of a conversation.
func detectCommand(text string, state *domain.DialogueState) (Command, bool) {
	norm := normalize(text)
	if norm == "" {
		return "", false
	}
	for _, c := range commandWords {
		for _, w := range c.words {
			if norm != w {
				continue
			}
			if c.cmd == CommandGreeting && !freshConversation(state) {
				return "", false
			}
			return c.cmd, true
		}
	}
	return "", false
}

// freshConversation is true when nothing is known yet. The current user
// message is already in the history.
func freshConversation(state *domain.DialogueState) bool {
	return state.Profile.EssentialCount() == 0 && len(state.History) <= 1
}

func (c *Conversation) runCommand(cmd Command, state *domain.DialogueState) string {
	switch cmd {
	case CommandHelp:
		return helpText
	case CommandRestart:
		state.Restart()
		return "¡Perfecto! Empezamos de nuevo. " + responder.WelcomeText
	case CommandStop:
		state.Stage = domain.StageFinished
		return goodbyeText
	default:
		return responder.WelcomeText
	}
}

func normalize(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	text = strings.TrimFunc(text, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
	})
	return strings.Join(strings.Fields(text), " ")
}
