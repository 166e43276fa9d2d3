package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/mindhaven/crisis-api/ai"
	"github.com/mindhaven/crisis-api/config"
)

// PersonaHandler serves the static reference data clients need to render the
// chat UI and crisis support cards.
type PersonaHandler struct{}

// Helpline is a crisis support line shown to students.
type Helpline struct {
	Name      string `json:"name"`
	Number    string `json:"number"`
	Hours     string `json:"hours"`
	Languages string `json:"languages,omitempty"`
}

// helplines verified 2025; numbers are India national services.
var helplines = []Helpline{
	{Name: "Tele-MANAS", Number: "14416", Hours: "24x7", Languages: "20+ Indian languages"},
	{Name: "KIRAN Mental Health Helpline", Number: "1800-599-0019", Hours: "24x7", Languages: "13 Indian languages"},
	{Name: "iCall", Number: "9152987821", Hours: "Mon-Sat 10am-8pm", Languages: "English, Hindi"},
	{Name: "Emergency Services", Number: "112", Hours: "24x7"},
}

// PersonasHandler returns the available AI companion personas
func (p PersonaHandler) PersonasHandler(w http.ResponseWriter, r *http.Request) {
	b, err := json.Marshal(ai.Personas())
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.Write(b)
}

// HelplinesHandler returns the crisis helpline directory
func (p PersonaHandler) HelplinesHandler(w http.ResponseWriter, r *http.Request) {
	b, err := json.Marshal(helplines)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.Write(b)
}
