package pkg

import "time"

// CaseRecord is one parsed clinical vignette.  All fields are always
// present; anything the loader could not find is left as the empty string.
type CaseRecord struct {
	Specialty           string `json:"specialty"`
	CaseNumber          string `json:"case_number"`
	PresentingComplaint string `json:"presenting_complaint"`
	// CaseDetails is the private narrative the simulated patient may draw
	// on.  The diagnosis line has already been removed from it.
	CaseDetails string `json:"case_details"`
	Diagnosis   string `json:"diagnosis"`
}

// MessageRole describes who authored a conversation turn.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is a single turn in a case conversation.  The doctor speaks as
// the user and the simulated patient answers as the assistant.
type Message struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// Score is the pass/fail result reported for the active case.
type Score struct {
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
}

// Attempt is the persisted record of a scored case.
type Attempt struct {
	ID                  string    `json:"id"`
	SessionID           string    `json:"session_id"`
	Specialty           string    `json:"specialty"`
	CaseNumber          string    `json:"case_number"`
	PresentingComplaint string    `json:"presenting_complaint"`
	Diagnosis           string    `json:"diagnosis"`
	Guess               string    `json:"guess"`
	Similarity          float64   `json:"similarity"`
	Correct             bool      `json:"correct"`
	Score               int       `json:"score"`
	Transcript          []Message `json:"transcript,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// CaseSummary is the part of a case that may be shown to the trainee.
type CaseSummary struct {
	Specialty           string `json:"specialty"`
	CaseNumber          string `json:"case_number"`
	PresentingComplaint string `json:"presenting_complaint"`
}

// ChatRequest carries a doctor's message to the simulated patient.
type ChatRequest struct {
	Content string `json:"content"`
}

// ChatResponse contains the patient's reply.  Score is set once the
// message was recognised as a diagnosis attempt.
type ChatResponse struct {
	Reply         string `json:"reply"`
	DiagnosisMade bool   `json:"diagnosis_made"`
	Score         *Score `json:"score,omitempty"`
}

// SessionResponse is returned when a training session starts or moves to
// another case.
type SessionResponse struct {
	SessionID  string      `json:"session_id"`
	Case       CaseSummary `json:"case"`
	TotalCases int         `json:"total_cases"`
}
