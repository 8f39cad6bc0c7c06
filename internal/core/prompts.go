package core

// prompts.go holds the fixed texts of a training session: the system
// prompt handed to the language model and every canned reply shown to the
// trainee.  Keeping them together makes them easy to tweak without
// touching the rest of the code.

const (
	// SystemPromptTemplate instructs the model to play the patient.  The
	// single %s verb receives the presenting complaint.
	SystemPromptTemplate = `You are simulating a patient case for medical training. Respond as the patient would, with appropriate emotions and lay terminology. Important rules:

1. Never reveal the diagnosis or medical details that the patient wouldn't know
2. Only provide information when specifically asked
3. Use natural, patient-like language (avoid medical terminology unless the patient would know it)
4. Maintain consistency with previous answers
5. Show appropriate emotions and concerns
6. If asked about a symptom or history not mentioned in the case, respond with "I don't think so" or "No"

Current presenting complaint: %s

Remember: You are the patient. Respond naturally to the doctor's questions. Never reveal the diagnosis or medical details that a real patient wouldn't know.`

	// CaseDetailsHeader precedes the private case narrative appended to the
	// system prompt.
	CaseDetailsHeader = "\n\nCase Details (for accurate responses but never reveal):\n"

	// UnknownComplaint fills the template when a case has no complaint.
	UnknownComplaint = "Unknown presenting complaint"

	// NoCaseLoaded is returned by Interact before any case is active.
	NoCaseLoaded = "No case loaded. Please load a case first."

	// ServiceErrorFormat wraps a model failure on the hardened path.
	ServiceErrorFormat = "Error generating response: %v"

	// CorrectFeedbackFormat and IncorrectFeedbackFormat answer a diagnosis
	// attempt.  Both reveal the true diagnosis.
	CorrectFeedbackFormat   = "Correct! The diagnosis is %s. Would you like to discuss the case or move to the next one?"
	IncorrectFeedbackFormat = "That's not quite right. The actual diagnosis is %s. Let's review the key points of the case. What made this diagnosis challenging?"

	ScoreNotAttempted = "No diagnosis attempted yet."
	ScoreCorrect      = "Correct diagnosis!"
	ScoreIncorrect    = "Incorrect diagnosis. Review the case details."

	// CaseStarted greets the trainee when a new case becomes active.
	CaseStarted = "New case started. How can I help you today?"

	// NoMoreCases is shown when the trainee asks for a case past the end of
	// the corpus.
	NoMoreCases = "No more cases available"
)
