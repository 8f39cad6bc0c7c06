// Package console runs a training session in a terminal.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"virtual-patient/internal/core"
	"virtual-patient/pkg"
)

// Recorder persists scored attempts.
type Recorder interface {
	SaveAttempt(ctx context.Context, a *pkg.Attempt) error
}

// Loop reads doctor messages line by line and prints the patient's
// replies.  Recorder and Log are optional.
type Loop struct {
	Patient   *core.Patient
	Recorder  Recorder
	SessionID string
	Log       *logrus.Entry
}

// Run drives the session until the input ends, the doctor types quit or
// exit, or the last case has been diagnosed.
func (l *Loop) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	if _, ok := l.Patient.CurrentCase(); !ok {
		_, err := fmt.Fprintln(out, core.NoCaseLoaded)
		return err
	}
	l.printCase(out)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "Doctor: ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		msg := strings.TrimSpace(scanner.Text())
		if msg == "" {
			continue
		}
		switch strings.ToLower(msg) {
		case "quit", "exit":
			return nil
		}

		isDiagnosis := l.Patient.IsDiagnosisAttempt(msg)
		reply, err := l.Patient.Interact(ctx, msg)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Patient: %s\n", reply)

		if !isDiagnosis {
			continue
		}
		score := l.Patient.GetScore()
		fmt.Fprintf(out, "\nCase Score: %d\n", score.Score)
		fmt.Fprintf(out, "Feedback: %s\n", score.Feedback)
		l.record(ctx)

		if !l.Patient.NextCase() {
			fmt.Fprintln(out, core.NoMoreCases)
			return nil
		}
		fmt.Fprintln(out)
		l.printCase(out)
	}
}

func (l *Loop) printCase(out io.Writer) {
	c, _ := l.Patient.CurrentCase()
	fmt.Fprintf(out, "Case %s (%s): %s\n", c.CaseNumber, c.Specialty, c.PresentingComplaint)
	fmt.Fprintln(out, core.CaseStarted)
}

func (l *Loop) record(ctx context.Context) {
	if l.Recorder == nil {
		return
	}
	attempt, err := l.Patient.Attempt(l.SessionID)
	if err == nil {
		err = l.Recorder.SaveAttempt(ctx, attempt)
	}
	if err != nil && l.Log != nil {
		l.Log.WithError(err).Error("failed to record attempt")
	}
}
