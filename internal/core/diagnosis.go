package core

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"virtual-patient/pkg"
)

// CheckDiagnosis scores a diagnosis attempt against the active case and
// returns feedback that always names the true diagnosis.  It may be called
// again; every call recomputes the result.
func (p *Patient) CheckDiagnosis(doctorMessage string) string {
	if p.current == nil {
		return NoCaseLoaded
	}
	p.diagnosisMade = true

	guess := p.detector.Extract(doctorMessage)
	truth := strings.ToLower(p.current.Diagnosis)
	similarity := Ratio(guess, truth)

	p.lastGuess = guess
	p.lastSimilarity = similarity
	// A case without a diagnosis can never be passed.
	p.diagnosisCorrect = truth != "" && similarity > p.threshold

	p.log.WithFields(logrus.Fields{
		"case_number": p.current.CaseNumber,
		"similarity":  similarity,
		"correct":     p.diagnosisCorrect,
	}).Info("diagnosis checked")

	if p.diagnosisCorrect {
		return fmt.Sprintf(CorrectFeedbackFormat, p.current.Diagnosis)
	}
	return fmt.Sprintf(IncorrectFeedbackFormat, p.current.Diagnosis)
}

// GetScore reports the pass/fail result for the active case.
func (p *Patient) GetScore() pkg.Score {
	switch {
	case !p.diagnosisMade:
		return pkg.Score{Score: 0, Feedback: ScoreNotAttempted}
	case p.diagnosisCorrect:
		return pkg.Score{Score: 1, Feedback: ScoreCorrect}
	default:
		return pkg.Score{Score: 0, Feedback: ScoreIncorrect}
	}
}

// IsDiagnosisAttempt reports whether Interact would score msg as a
// diagnosis rather than forward it to the model.
func (p *Patient) IsDiagnosisAttempt(msg string) bool {
	return p.current != nil && p.detector.Matches(msg)
}
