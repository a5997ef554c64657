package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/aretw0/branchpoll/internal/logging"
	"github.com/aretw0/branchpoll/pkg/domain"
	"github.com/aretw0/branchpoll/pkg/runner"
	"github.com/go-chi/chi/v5"
)

// OwnerHeader carries the id of the poll administrator making the request.
const OwnerHeader = "X-Owner-ID"

// Engine is the subset of *branchpoll.Engine served over HTTP.
type Engine interface {
	Compile(text string) (*domain.PollGraph, error)
	CreatePoll(ctx context.Context, ownerID int64, name, text string) (*domain.Poll, error)
	GetPoll(ctx context.Context, pollID int64) (*domain.Poll, error)
	ListPolls(ctx context.Context, ownerID int64) ([]*domain.Poll, error)
	DeletePoll(ctx context.Context, ownerID, pollID int64) error
	Start(ctx context.Context, pollID int64, respondentID string) (*domain.SessionState, domain.Prompt, error)
	Submit(ctx context.Context, pollID int64, respondentID, answer string) (*domain.SessionState, domain.Prompt, error)
	Session(ctx context.Context, pollID int64, respondentID string) (*domain.SessionState, domain.Prompt, error)
	Report(ctx context.Context, pollID int64) (*domain.Report, error)
}

// Server exposes an Engine as a JSON API.
type Server struct {
	Engine  Engine
	Logger  *slog.Logger
	Metrics http.Handler
}

// Option configures the Server.
type Option func(*Server)

// WithLogger configures request error logging.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.Logger = logger
	}
}

// WithMetrics mounts h on GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.Metrics = h
	}
}

// NewHandler creates a new HTTP handler for the engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	s := &Server{Engine: engine, Logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get("/", s.Health)
	r.Get("/health", s.Health)
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics)
	}

	r.Post("/compile", s.Compile)
	r.Route("/polls", func(r chi.Router) {
		r.Post("/", s.CreatePoll)
		r.Get("/", s.ListPolls)
		r.Route("/{pollID}", func(r chi.Router) {
			r.Get("/", s.GetPoll)
			r.Delete("/", s.DeletePoll)
			r.Get("/report", s.Report)
			r.Post("/sessions/{respondentID}", s.StartSession)
			r.Get("/sessions/{respondentID}", s.GetSession)
			r.Post("/sessions/{respondentID}/answers", s.SubmitAnswer)
		})
	})

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+OwnerHeader)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CompileRequest is the body of POST /compile and POST /polls.
type CompileRequest struct {
	Name      string `json:"name,omitempty"`
	Structure string `json:"structure"`
}

// AnswerRequest is the body of POST .../answers.
type AnswerRequest struct {
	Answer string `json:"answer"`
}

// SessionResponse pairs a respondent's state with what to ask next.
type SessionResponse struct {
	State  *domain.SessionState `json:"state"`
	Prompt domain.Prompt        `json:"prompt"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string           `json:"error"`
	Kind  domain.ErrorKind `json:"kind,omitempty"`
	Line  int              `json:"line,omitempty"`
}

// Health handles GET / and GET /health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Compile handles POST /compile. Nothing is stored.
func (s *Server) Compile(w http.ResponseWriter, r *http.Request) {
	var body CompileRequest
	if !s.decode(w, r, &body) {
		return
	}
	g, err := s.Engine.Compile(body.Structure)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusOK, g)
}

// CreatePoll handles POST /polls.
func (s *Server) CreatePoll(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	var body CompileRequest
	if !s.decode(w, r, &body) {
		return
	}
	poll, err := s.Engine.CreatePoll(r.Context(), owner, body.Name, body.Structure)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusCreated, poll)
}

// ListPolls handles GET /polls for the requesting owner.
func (s *Server) ListPolls(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	polls, err := s.Engine.ListPolls(r.Context(), owner)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusOK, polls)
}

// GetPoll handles GET /polls/{pollID}.
func (s *Server) GetPoll(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pollID(w, r)
	if !ok {
		return
	}
	poll, err := s.Engine.GetPoll(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusOK, poll)
}

// DeletePoll handles DELETE /polls/{pollID}.
func (s *Server) DeletePoll(w http.ResponseWriter, r *http.Request) {
	owner, ok := s.owner(w, r)
	if !ok {
		return
	}
	id, ok := s.pollID(w, r)
	if !ok {
		return
	}
	if err := s.Engine.DeletePoll(r.Context(), owner, id); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Report handles GET /polls/{pollID}/report.
func (s *Server) Report(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pollID(w, r)
	if !ok {
		return
	}
	report, err := s.Engine.Report(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusOK, report)
}

// StartSession handles POST /polls/{pollID}/sessions/{respondentID}.
// Starting again restarts the respondent from the root question.
func (s *Server) StartSession(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pollID(w, r)
	if !ok {
		return
	}
	state, prompt, err := s.Engine.Start(r.Context(), id, chi.URLParam(r, "respondentID"))
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusOK, SessionResponse{State: state, Prompt: prompt})
}

// GetSession handles GET /polls/{pollID}/sessions/{respondentID}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pollID(w, r)
	if !ok {
		return
	}
	state, prompt, err := s.Engine.Session(r.Context(), id, chi.URLParam(r, "respondentID"))
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusOK, SessionResponse{State: state, Prompt: prompt})
}

// SubmitAnswer handles POST /polls/{pollID}/sessions/{respondentID}/answers.
func (s *Server) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pollID(w, r)
	if !ok {
		return
	}
	var body AnswerRequest
	if !s.decode(w, r, &body) {
		return
	}
	answer, err := runner.SanitizeInput(body.Answer)
	if err != nil {
		s.respond(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	state, prompt, err := s.Engine.Submit(r.Context(), id, chi.URLParam(r, "respondentID"), answer)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respond(w, http.StatusOK, SessionResponse{State: state, Prompt: prompt})
}

func (s *Server) owner(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.Header.Get(OwnerHeader)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		s.respond(w, http.StatusUnauthorized, ErrorResponse{Error: "missing or invalid " + OwnerHeader + " header"})
		return 0, false
	}
	return id, true
}

func (s *Server) pollID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "pollID"), 10, 64)
	if err != nil || id <= 0 {
		s.respond(w, http.StatusBadRequest, ErrorResponse{Error: "invalid poll id"})
		return 0, false
	}
	return id, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.Logger.Warn("invalid request body", "path", r.URL.Path, "err", err)
		s.respond(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

// fail maps engine errors to status codes.
func (s *Server) fail(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error()}

	var ce *domain.CompileError
	switch {
	case errors.As(err, &ce):
		resp.Kind, resp.Line = ce.Kind, ce.Line
		s.respond(w, http.StatusUnprocessableEntity, resp)
	case errors.Is(err, domain.ErrPollNotFound), errors.Is(err, domain.ErrSessionNotFound):
		s.respond(w, http.StatusNotFound, resp)
	case errors.Is(err, domain.ErrNotOwner):
		s.respond(w, http.StatusForbidden, resp)
	case errors.Is(err, domain.ErrUnknownAnswer):
		s.respond(w, http.StatusUnprocessableEntity, resp)
	case errors.Is(err, domain.ErrSessionTerminated), errors.Is(err, domain.ErrSessionNotStarted):
		s.respond(w, http.StatusConflict, resp)
	default:
		if kind, ok := domain.KindOf(err); ok {
			resp.Kind = kind
			s.respond(w, http.StatusUnprocessableEntity, resp)
			return
		}
		s.Logger.Error("request failed", "err", err)
		s.respond(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

func (s *Server) respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("response encode failed", "err", err)
	}
}
