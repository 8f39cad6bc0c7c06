package http

import (
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"virtual-patient/internal/cases"
	"virtual-patient/internal/core"
	"virtual-patient/pkg"
)

//go:embed templates/*.html
var templateFS embed.FS

// Recorder persists scored attempts.  db.Repository satisfies it.
type Recorder interface {
	SaveAttempt(ctx context.Context, a *pkg.Attempt) error
	ListAttempts(ctx context.Context, sessionID string) ([]pkg.Attempt, error)
}

// PatientFactory builds an empty Patient for a new session.
type PatientFactory func() *core.Patient

type session struct {
	mu      sync.Mutex
	patient *core.Patient
}

// Server bundles together the dependencies required by HTTP handlers.  It
// implements http.Handler so it can be passed to an http.Server.
type Server struct {
	Cases      []pkg.CaseRecord
	NewPatient PatientFactory
	// Recorder may be nil, in which case attempts are not kept.
	Recorder  Recorder
	Templates *template.Template
	Log       *logrus.Entry

	sessions *lru.Cache[string, *session]
}

// NewServer constructs a Server over a parsed corpus.  At most maxSessions
// sessions are kept; the least recently used one is dropped first.
func NewServer(corpus []pkg.CaseRecord, newPatient PatientFactory, recorder Recorder, maxSessions int, log *logrus.Entry) (*Server, error) {
	if len(corpus) == 0 {
		return nil, cases.ErrNoCases
	}
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	sessions, err := lru.NewWithEvict(maxSessions, func(id string, _ *session) {
		log.WithField("session_id", id).Debug("session evicted")
	})
	if err != nil {
		return nil, err
	}
	return &Server{
		Cases:      corpus,
		NewPatient: newPatient,
		Recorder:   recorder,
		Templates:  tmpl,
		Log:        log,
		sessions:   sessions,
	}, nil
}

// ServeHTTP dispatches incoming requests based on the URL path.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case path == "/" && r.Method == http.MethodGet:
		s.handleIndex(w, r)
	case path == "/api/sessions" && r.Method == http.MethodPost:
		s.handleCreateSession(w, r)
	case strings.HasPrefix(path, "/api/sessions/"):
		// /api/sessions/{id}/{action}
		parts := strings.Split(strings.TrimPrefix(path, "/api/sessions/"), "/")
		if len(parts) != 2 || parts[0] == "" {
			http.NotFound(w, r)
			return
		}
		sessionID, action := parts[0], parts[1]
		switch {
		case action == "messages" && r.Method == http.MethodPost:
			s.handlePostMessage(w, r, sessionID)
		case action == "next" && r.Method == http.MethodPost:
			s.handleNextCase(w, r, sessionID)
		case action == "score" && r.Method == http.MethodGet:
			s.handleScore(w, r, sessionID)
		case action == "attempts" && r.Method == http.MethodGet:
			s.handleAttempts(w, r, sessionID)
		default:
			http.NotFound(w, r)
		}
	default:
		http.NotFound(w, r)
	}
}

// handleIndex renders the chat page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct{ TotalCases int }{len(s.Cases)}
	if err := s.Templates.ExecuteTemplate(w, "index.html", data); err != nil {
		s.Log.WithError(err).Error("failed to render index")
	}
}

// handleCreateSession starts a session on the first case of the corpus.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	p := s.NewPatient()
	p.SetCases(s.Cases)
	sess := &session{patient: p}
	id := uuid.NewString()
	s.sessions.Add(id, sess)
	s.Log.WithField("session_id", id).Info("session created")

	writeJSON(w, http.StatusCreated, s.sessionResponse(id, p))
}

// handlePostMessage runs one conversational turn.  When the message is a
// diagnosis attempt the score is returned with the reply and the attempt
// is handed to the Recorder.
func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request, sessionID string) {
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	var req pkg.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		http.Error(w, "empty message", http.StatusBadRequest)
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	p := sess.patient

	isDiagnosis := p.IsDiagnosisAttempt(req.Content)
	reply, err := p.Interact(r.Context(), req.Content)
	if err != nil {
		s.Log.WithError(err).WithField("session_id", sessionID).Error("interaction failed")
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	resp := pkg.ChatResponse{Reply: reply, DiagnosisMade: p.DiagnosisMade()}
	if p.DiagnosisMade() {
		score := p.GetScore()
		resp.Score = &score
	}
	if isDiagnosis {
		s.record(r.Context(), sessionID, p)
	}
	writeJSON(w, http.StatusOK, resp)
}

// record saves the current attempt.  Failures are logged; the trainee
// still gets the feedback.
func (s *Server) record(ctx context.Context, sessionID string, p *core.Patient) {
	if s.Recorder == nil {
		return
	}
	attempt, err := p.Attempt(sessionID)
	if err != nil {
		s.Log.WithError(err).Warn("no attempt to record")
		return
	}
	if err := s.Recorder.SaveAttempt(ctx, attempt); err != nil {
		s.Log.WithError(err).WithField("session_id", sessionID).Error("failed to record attempt")
	}
}

// handleNextCase moves the session to the following case.
func (s *Server) handleNextCase(w http.ResponseWriter, r *http.Request, sessionID string) {
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if !sess.patient.NextCase() {
		http.Error(w, core.NoMoreCases, http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, s.sessionResponse(sessionID, sess.patient))
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request, sessionID string) {
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	sess.mu.Lock()
	score := sess.patient.GetScore()
	sess.mu.Unlock()
	writeJSON(w, http.StatusOK, score)
}

// handleAttempts lists what the Recorder holds for a session.  Sessions
// evicted from memory can still be queried.
func (s *Server) handleAttempts(w http.ResponseWriter, r *http.Request, sessionID string) {
	if s.Recorder == nil {
		http.Error(w, "attempt store not configured", http.StatusNotImplemented)
		return
	}
	attempts, err := s.Recorder.ListAttempts(r.Context(), sessionID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if attempts == nil {
		attempts = []pkg.Attempt{}
	}
	writeJSON(w, http.StatusOK, attempts)
}

func (s *Server) sessionResponse(id string, p *core.Patient) pkg.SessionResponse {
	c, _ := p.CurrentCase()
	return pkg.SessionResponse{
		SessionID: id,
		Case: pkg.CaseSummary{
			Specialty:           c.Specialty,
			CaseNumber:          c.CaseNumber,
			PresentingComplaint: c.PresentingComplaint,
		},
		TotalCases: len(s.Cases),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
