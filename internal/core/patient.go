package core

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"virtual-patient/internal/cases"
	"virtual-patient/internal/llm"
	"virtual-patient/pkg"
)

const (
	DefaultMaxTokens           = 200
	DefaultTemperature float32 = 0.7
	// DefaultSimilarityThreshold must be exceeded, not just reached, for a
	// diagnosis to count as correct.
	DefaultSimilarityThreshold = 0.8
)

// ErrNoCaseLoaded is returned by operations that need an active case.
var ErrNoCaseLoaded = errors.New("no case loaded")

// ExternalServiceError wraps a language model failure on the strict path.
type ExternalServiceError struct {
	Err error
}

func (e *ExternalServiceError) Error() string { return "external service error: " + e.Err.Error() }

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// Patient is a virtual patient for one training session.  It holds the
// loaded corpus, the active case, its transcript and the diagnosis status.
// A Patient is not safe for concurrent use; run one per session.
type Patient struct {
	llm       llm.Client
	params    llm.Params
	threshold float64
	detector  *Detector
	strict    bool
	log       *logrus.Entry

	cases   []pkg.CaseRecord
	index   int
	current *pkg.CaseRecord
	history []pkg.Message

	diagnosisMade    bool
	diagnosisCorrect bool
	lastGuess        string
	lastSimilarity   float64
}

// Option customises a Patient.
type Option func(*Patient)

// WithModel names the model sent with every request.  Empty leaves the
// choice to the client.
func WithModel(model string) Option {
	return func(p *Patient) { p.params.Model = model }
}

// WithMaxTokens caps the length of each reply.  Non-positive values are
// ignored.
func WithMaxTokens(n int) Option {
	return func(p *Patient) {
		if n > 0 {
			p.params.MaxTokens = n
		}
	}
}

// WithTemperature sets the sampling temperature of the model.
func WithTemperature(t float32) Option {
	return func(p *Patient) { p.params.Temperature = t }
}

// WithSimilarityThreshold sets the ratio a guess must exceed to count as
// correct.
func WithSimilarityThreshold(th float64) Option {
	return func(p *Patient) { p.threshold = th }
}

// WithDetector replaces the default diagnosis triggers.
func WithDetector(d *Detector) Option {
	return func(p *Patient) {
		if d != nil {
			p.detector = d
		}
	}
}

// WithStrictErrors makes Interact return model failures as errors instead
// of turning them into a reply.
func WithStrictErrors(strict bool) Option {
	return func(p *Patient) { p.strict = strict }
}

// WithLogger sets the entry the Patient logs through.
func WithLogger(l *logrus.Entry) Option {
	return func(p *Patient) {
		if l != nil {
			p.log = l
		}
	}
}

// New constructs a Patient that talks to the given language model.
func New(client llm.Client, opts ...Option) *Patient {
	p := &Patient{
		llm: client,
		params: llm.Params{
			MaxTokens:   DefaultMaxTokens,
			Temperature: DefaultTemperature,
		},
		threshold: DefaultSimilarityThreshold,
		detector:  NewDetector(),
		log:       logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// LoadCasesFromFile parses a corpus and activates its first case.  On
// failure the previously loaded cases stay in place.
func (p *Patient) LoadCasesFromFile(path string, format cases.Format) error {
	records, err := cases.Load(path, format)
	if err != nil {
		return err
	}
	p.log.WithFields(logrus.Fields{"path": path, "cases": len(records)}).Info("cases loaded")
	p.SetCases(records)
	return nil
}

// SetCases installs an already-parsed corpus and activates its first case.
// The slice is copied.
func (p *Patient) SetCases(records []pkg.CaseRecord) {
	p.cases = append([]pkg.CaseRecord(nil), records...)
	p.index = 0
	if len(p.cases) == 0 {
		p.current = nil
		p.resetSession()
		return
	}
	p.SetCase(p.cases[0])
}

// SetCase makes c the active case and starts a fresh session for it.
func (p *Patient) SetCase(c pkg.CaseRecord) {
	p.current = &c
	p.resetSession()
	complaint := c.PresentingComplaint
	if complaint == "" {
		complaint = "No presenting complaint"
	}
	p.log.WithFields(logrus.Fields{
		"case_number": c.CaseNumber,
		"specialty":   c.Specialty,
	}).Infof("case set: %s", complaint)
}

// NextCase activates the case after the current one in the loaded corpus.
// It reports false, leaving the session untouched, when none is left.
func (p *Patient) NextCase() bool {
	if p.index+1 >= len(p.cases) {
		return false
	}
	p.index++
	p.SetCase(p.cases[p.index])
	return true
}

func (p *Patient) resetSession() {
	p.history = nil
	p.diagnosisMade = false
	p.diagnosisCorrect = false
	p.lastGuess = ""
	p.lastSimilarity = 0
}

// CurrentCase returns the active case, if any.
func (p *Patient) CurrentCase() (pkg.CaseRecord, bool) {
	if p.current == nil {
		return pkg.CaseRecord{}, false
	}
	return *p.current, true
}

// Cases returns the loaded corpus.
func (p *Patient) Cases() []pkg.CaseRecord {
	return append([]pkg.CaseRecord(nil), p.cases...)
}

// History returns a copy of the transcript of the active case.
func (p *Patient) History() []pkg.Message {
	return append([]pkg.Message(nil), p.history...)
}

func (p *Patient) DiagnosisMade() bool { return p.diagnosisMade }

// Attempt snapshots the scored state of the active case for persistence.
func (p *Patient) Attempt(sessionID string) (*pkg.Attempt, error) {
	if p.current == nil {
		return nil, ErrNoCaseLoaded
	}
	if !p.diagnosisMade {
		return nil, errors.New("no diagnosis attempted yet")
	}
	score := p.GetScore()
	return &pkg.Attempt{
		ID:                  uuid.NewString(),
		SessionID:           sessionID,
		Specialty:           p.current.Specialty,
		CaseNumber:          p.current.CaseNumber,
		PresentingComplaint: p.current.PresentingComplaint,
		Diagnosis:           p.current.Diagnosis,
		Guess:               p.lastGuess,
		Similarity:          p.lastSimilarity,
		Correct:             p.diagnosisCorrect,
		Score:               score.Score,
		Transcript:          p.History(),
		CreatedAt:           time.Now().UTC(),
	}, nil
}
