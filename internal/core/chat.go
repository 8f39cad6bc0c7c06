package core

import (
	"context"
	"fmt"

	"virtual-patient/pkg"
)

// Interact runs one conversational turn.  Messages that announce a
// diagnosis are scored instead of being sent to the model.  Model failures
// become a reply unless the Patient was built WithStrictErrors.
func (p *Patient) Interact(ctx context.Context, doctorMessage string) (string, error) {
	if p.current == nil {
		return NoCaseLoaded, nil
	}
	if p.detector.Matches(doctorMessage) {
		return p.CheckDiagnosis(doctorMessage), nil
	}

	p.history = append(p.history, pkg.Message{Role: pkg.RoleUser, Content: doctorMessage})

	messages := make([]pkg.Message, 0, len(p.history)+1)
	messages = append(messages, pkg.Message{Role: pkg.RoleSystem, Content: p.systemPrompt()})
	messages = append(messages, p.history...)

	reply, err := p.llm.Chat(ctx, messages, p.params)
	if err != nil {
		p.log.WithError(err).WithField("case_number", p.current.CaseNumber).Error("patient reply failed")
		if p.strict {
			return "", &ExternalServiceError{Err: err}
		}
		return fmt.Sprintf(ServiceErrorFormat, err), nil
	}

	p.history = append(p.history, pkg.Message{Role: pkg.RoleAssistant, Content: reply})
	return reply, nil
}

// systemPrompt fills the template with the presenting complaint and
// appends the private case details.
func (p *Patient) systemPrompt() string {
	complaint := p.current.PresentingComplaint
	if complaint == "" {
		complaint = UnknownComplaint
	}
	return fmt.Sprintf(SystemPromptTemplate, complaint) + CaseDetailsHeader + p.current.CaseDetails
}
