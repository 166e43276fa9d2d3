package ai

import (
	"fmt"
	"strings"
)

// DefaultPersonaID is used whenever a requested persona is not recognized.
const DefaultPersonaID = "priya"

// Persona is the configuration of one AI companion. Personas are data, not
// code paths: every provider receives the same prompt shape built from these
// fields.
type Persona struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Title        string `json:"title"`
	SystemPrompt string `json:"-"` // never exposed through the API
	Greeting     string `json:"greeting"`
	// FallbackReply is returned verbatim when every provider fails. It must
	// read as the companion speaking, never as an error message.
	FallbackReply string `json:"-"`
}

var personas = map[string]Persona{
	"arjun": {
		ID:    "arjun",
		Name:  "Arjun",
		Title: "Academic Support Companion",
		SystemPrompt: "You are Arjun, a friendly academic support companion for students. " +
			"Help with study stress, exam pressure, and academic challenges. " +
			"Keep responses short, 2-4 sentences unless asked for more. " +
			"Always prioritize the student's safety and mental health; if they mention " +
			"self-harm or suicide, respond with immediate support and suggest professional help.",
		Greeting: "Hi, I'm Arjun. How are your studies going? I'm here if anything feels like too much.",
		FallbackReply: "I'm Arjun, your academic support companion. I'm having some technical " +
			"issues right now, but your academic wellbeing still matters to me. Would you like " +
			"to try again in a moment, or talk to one of our counselors?",
	},
	"priya": {
		ID:    "priya",
		Name:  "Priya",
		Title: "Emotional Support Companion",
		SystemPrompt: "You are Priya, a caring emotional support companion for students. " +
			"Listen, validate briefly, and respond to what the student actually said. " +
			"Keep responses short, 2-4 sentences unless asked for more. Be warm but not clinical. " +
			"Always prioritize safety; if they mention self-harm or suicide, respond with " +
			"immediate support and suggest professional help.",
		Greeting: "Hi, I'm Priya. I'm here to listen. How are you feeling today?",
		FallbackReply: "I'm Priya, your emotional support companion. Even though I'm having " +
			"technical difficulties, your feelings are valid and you're not alone. I'm here " +
			"to listen whenever you're ready to try again.",
	},
	"vikram": {
		ID:    "vikram",
		Name:  "Vikram",
		Title: "Crisis Support Companion",
		SystemPrompt: "You are Vikram, a crisis support companion focused on immediate safety. " +
			"Stay calm and direct. Assess safety first, encourage contacting a counselor or " +
			"emergency services when there is any risk, and never minimize what the student says. " +
			"Keep responses short and concrete.",
		Greeting: "I'm Vikram. Whatever is happening right now, you don't have to face it alone. What's going on?",
		FallbackReply: "I'm Vikram, your crisis support companion. I'm experiencing technical " +
			"issues, but your safety comes first. If you need immediate help, please contact " +
			"emergency services or a counselor here right away.",
	},
}

// PersonaFor resolves id to a persona, falling back to defaultID and finally
// to the built-in default when neither is recognized.
func PersonaFor(id, defaultID string) Persona {
	if p, ok := personas[strings.ToLower(strings.TrimSpace(id))]; ok {
		return p
	}
	if p, ok := personas[strings.ToLower(strings.TrimSpace(defaultID))]; ok {
		return p
	}
	return personas[DefaultPersonaID]
}

// Personas lists all configured companions, for the directory endpoint.
func Personas() []Persona {
	return []Persona{personas["arjun"], personas["priya"], personas["vikram"]}
}

// BuildPrompt assembles the provider prompt from the persona's system prompt,
// a short window of recent history, and the current message.
func BuildPrompt(p Persona, history []Turn, message string) string {
	var b strings.Builder
	b.WriteString(p.SystemPrompt)

	// only the most recent turns; older context adds noise and token cost
	const historyWindow = 6
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	if len(history) > 0 {
		b.WriteString("\n\nRecent conversation:\n")
		for _, t := range history {
			role := "Student"
			if t.Role != "user" {
				role = p.Name
			}
			fmt.Fprintf(&b, "%s: %s\n", role, t.Content)
		}
	}

	fmt.Fprintf(&b, "\nStudent: %s\n\nRespond as %s, short and relevant:", message, p.Name)
	return b.String()
}

// CrisisFooter is appended to replies when a message requires immediate
// intervention. Helpline numbers are for India, matching the platform's
// student population.
const CrisisFooter = "\n\nIMMEDIATE SUPPORT AVAILABLE:\n" +
	"If you're having thoughts of self-harm or suicide, please reach out now:\n" +
	"- Tele-MANAS helpline: 14416 (24/7, free)\n" +
	"- KIRAN helpline: 1800-599-0019\n" +
	"- Emergency services: 112\n" +
	"- Or talk to a counselor here, we're available around the clock.\n" +
	"You're not alone, and help is always available."

// WithCrisisFooter appends the support footer unless it is already present.
func WithCrisisFooter(reply string) string {
	if strings.Contains(reply, "IMMEDIATE SUPPORT AVAILABLE") {
		return reply
	}
	return reply + CrisisFooter
}
