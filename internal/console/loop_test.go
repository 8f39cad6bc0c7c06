package console

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"virtual-patient/internal/core"
	"virtual-patient/internal/llm"
	"virtual-patient/pkg"
)

type fakeLLM struct {
	reply string
	err   error
}

func (f *fakeLLM) Chat(ctx context.Context, messages []pkg.Message, params llm.Params) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

type sliceRecorder struct {
	attempts []pkg.Attempt
}

func (s *sliceRecorder) SaveAttempt(ctx context.Context, a *pkg.Attempt) error {
	s.attempts = append(s.attempts, *a)
	return nil
}

func newPatient(client llm.Client, opts ...core.Option) *core.Patient {
	l, _ := test.NewNullLogger()
	p := core.New(client, append([]core.Option{core.WithLogger(logrus.NewEntry(l))}, opts...)...)
	p.SetCases([]pkg.CaseRecord{
		{Specialty: "ENT", CaseNumber: "1", PresentingComplaint: "sore throat", Diagnosis: "strep throat"},
		{Specialty: "RESP", CaseNumber: "2", PresentingComplaint: "cough", Diagnosis: "bronchitis"},
	})
	return p
}

func TestRun_Conversation(t *testing.T) {
	loop := &Loop{Patient: newPatient(&fakeLLM{reply: "Since Monday."})}
	var out bytes.Buffer

	err := loop.Run(context.Background(), strings.NewReader("When did it start?\n\nquit\n"), &out)

	require.NoError(t, err)
	assert.Contains(t, out.String(), "Case 1 (ENT): sore throat")
	assert.Contains(t, out.String(), "Doctor: Patient: Since Monday.\n")
	assert.Len(t, loop.Patient.History(), 2)
}

func TestRun_DiagnosisAdvancesAndRecords(t *testing.T) {
	recorder := &sliceRecorder{}
	loop := &Loop{Patient: newPatient(&fakeLLM{reply: "ok"}), Recorder: recorder, SessionID: "console"}
	var out bytes.Buffer

	err := loop.Run(context.Background(), strings.NewReader("you have strep throat\nmy diagnosis is asthma\n"), &out)

	require.NoError(t, err)
	text := out.String()
	assert.Contains(t, text, "Case Score: 1\nFeedback: Correct diagnosis!")
	assert.Contains(t, text, "Case 2 (RESP): cough")
	assert.Contains(t, text, "Case Score: 0\nFeedback: Incorrect diagnosis. Review the case details.")
	assert.True(t, strings.HasSuffix(text, "No more cases available\n"))

	require.Len(t, recorder.attempts, 2)
	assert.Equal(t, "console", recorder.attempts[0].SessionID)
	assert.True(t, recorder.attempts[0].Correct)
	assert.Equal(t, "asthma", recorder.attempts[1].Guess)
}

func TestRun_ExitIsCaseInsensitive(t *testing.T) {
	client := &fakeLLM{reply: "never"}
	loop := &Loop{Patient: newPatient(client)}
	var out bytes.Buffer

	require.NoError(t, loop.Run(context.Background(), strings.NewReader("EXIT\nhello\n"), &out))

	assert.NotContains(t, out.String(), "Patient:")
}

func TestRun_EndOfInput(t *testing.T) {
	loop := &Loop{Patient: newPatient(&fakeLLM{})}
	var out bytes.Buffer

	assert.NoError(t, loop.Run(context.Background(), strings.NewReader(""), &out))
}

func TestRun_NoCaseLoaded(t *testing.T) {
	l, _ := test.NewNullLogger()
	loop := &Loop{Patient: core.New(&fakeLLM{}, core.WithLogger(logrus.NewEntry(l)))}
	var out bytes.Buffer

	require.NoError(t, loop.Run(context.Background(), strings.NewReader("hello\n"), &out))

	assert.Equal(t, "No case loaded. Please load a case first.\n", out.String())
}

func TestRun_StrictErrorStops(t *testing.T) {
	loop := &Loop{Patient: newPatient(&fakeLLM{err: errors.New("boom")}, core.WithStrictErrors(true))}
	var out bytes.Buffer

	err := loop.Run(context.Background(), strings.NewReader("hello\n"), &out)

	var svcErr *core.ExternalServiceError
	assert.ErrorAs(t, err, &svcErr)
}
