// Package web exposes the review session and card store over a JSON API.
package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/conorfennell/wortschatz/internal/config"
	"github.com/conorfennell/wortschatz/internal/scheduler"
	"github.com/conorfennell/wortschatz/internal/session"
	"github.com/conorfennell/wortschatz/internal/storage"
	appsync "github.com/conorfennell/wortschatz/internal/sync"
)

// Server holds the dependencies for the HTTP API.
//
// Sessions are kept per user; all session access goes through mu, matching
// the single-owner session contract.
type Server struct {
	db     *storage.DB
	engine *scheduler.Engine
	cfg    config.Config
	router *http.ServeMux

	mu       sync.Mutex
	sessions map[string]*session.Session
}

// NewServer creates and configures a new server.
func NewServer(db *storage.DB, engine *scheduler.Engine, cfg config.Config) *Server {
	s := &Server{
		db:       db,
		engine:   engine,
		cfg:      cfg,
		router:   http.NewServeMux(),
		sessions: make(map[string]*session.Session),
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.HandleFunc("/api/session/start", s.handleStartSession())
	s.router.HandleFunc("/api/session/flip", s.handleFlip())
	s.router.HandleFunc("/api/session/grade", s.handleGrade())
	s.router.HandleFunc("/api/session", s.handleGetSession())

	s.router.HandleFunc("/api/cards/count", s.handleCount())
	s.router.HandleFunc("/api/cards/random", s.handleRandomCards())

	s.router.HandleFunc("/api/sources", s.handleSources())
	s.router.HandleFunc("/api/sources/", s.handleDeleteSource())
	s.router.HandleFunc("/api/sync", s.handleSync())
}

// cardJSON is the wire form of a card presented to the UI.
type cardJSON struct {
	ID                 string `json:"id"`
	Language           string `json:"language"`
	Term               string `json:"term"`
	Translation        string `json:"translation"`
	Example            string `json:"example,omitempty"`
	ExampleTranslation string `json:"example_translation,omitempty"`
	Level              int    `json:"level"`
	ReviewCount        int    `json:"review_count"`
}

// snapshotJSON is the wire form of a session snapshot.
type snapshotJSON struct {
	State     string    `json:"state"`
	Card      *cardJSON `json:"card"`
	Revealed  bool      `json:"revealed"`
	Remaining int       `json:"remaining"`
	Total     int       `json:"total"`
	Graded    int       `json:"graded"`
}

func toSnapshotJSON(snap session.Snapshot) snapshotJSON {
	out := snapshotJSON{
		State:     snap.State.String(),
		Revealed:  snap.Revealed,
		Remaining: snap.Remaining,
		Total:     snap.Total,
		Graded:    snap.Graded,
	}
	if snap.Card != nil {
		out.Card = &cardJSON{
			ID:                 snap.Card.ID,
			Language:           snap.Card.Language,
			Term:               snap.Card.Term,
			Translation:        snap.Card.Translation,
			Example:            snap.Card.Example,
			ExampleTranslation: snap.Card.ExampleTranslation,
			Level:              snap.Card.Mastery.Level,
			ReviewCount:        snap.Card.Mastery.ReviewCount,
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, scheduler.ErrInvalidRating):
		status = http.StatusBadRequest
	case errors.Is(err, session.ErrInvalidState), errors.Is(err, session.ErrNotRevealed):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleStartSession() http.HandlerFunc {
	type request struct {
		UserID   string `json:"user_id"`
		Language string `json:"language"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.UserID == "" {
			req.UserID = s.cfg.User
		}
		if req.Language == "" {
			req.Language = s.cfg.Language
		}

		sess, err := session.New(session.Config{Store: s.db, Engine: s.engine})
		if err != nil {
			writeError(w, err)
			return
		}
		if err := sess.Start(r.Context(), req.UserID, req.Language); err != nil {
			writeError(w, err)
			return
		}

		s.mu.Lock()
		s.sessions[req.UserID] = sess
		snap := sess.Snapshot()
		s.mu.Unlock()

		writeJSON(w, http.StatusOK, toSnapshotJSON(snap))
	}
}

func (s *Server) sessionFor(userID string) (*session.Session, bool) {
	sess, ok := s.sessions[userID]
	return sess, ok
}

func (s *Server) handleGetSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			userID = s.cfg.User
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		sess, ok := s.sessionFor(userID)
		if !ok {
			http.Error(w, "No active session", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, toSnapshotJSON(sess.Snapshot()))
	}
}

func (s *Server) handleFlip() http.HandlerFunc {
	type request struct {
		UserID string `json:"user_id"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.UserID == "" {
			req.UserID = s.cfg.User
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		sess, ok := s.sessionFor(req.UserID)
		if !ok {
			http.Error(w, "No active session", http.StatusNotFound)
			return
		}
		if err := sess.Flip(); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSnapshotJSON(sess.Snapshot()))
	}
}

func (s *Server) handleGrade() http.HandlerFunc {
	type request struct {
		UserID string `json:"user_id"`
		Rating string `json:"rating"`
	}
	type response struct {
		NewLevel     int          `json:"new_level"`
		IntervalDays int          `json:"interval_days"`
		NextDueAt    time.Time    `json:"next_due_at"`
		Session      snapshotJSON `json:"session"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.UserID == "" {
			req.UserID = s.cfg.User
		}
		rating, err := scheduler.ParseRating(req.Rating)
		if err != nil {
			writeError(w, err)
			return
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		sess, ok := s.sessionFor(req.UserID)
		if !ok {
			http.Error(w, "No active session", http.StatusNotFound)
			return
		}
		res, err := sess.Grade(r.Context(), rating)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, response{
			NewLevel:     res.NewLevel,
			IntervalDays: res.IntervalDays(),
			NextDueAt:    res.NextDueAt,
			Session:      toSnapshotJSON(sess.Snapshot()),
		})
	}
}

func (s *Server) handleCount() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		userID, language := s.userLanguage(r)
		count, err := s.db.Count(r.Context(), userID, language)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"count": count})
	}
}

func (s *Server) handleRandomCards() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		userID, language := s.userLanguage(r)
		n, err := strconv.Atoi(r.URL.Query().Get("n"))
		if err != nil || n < 1 {
			n = 10
		}
		cards, err := s.db.RandomCards(r.Context(), userID, language, n)
		if err != nil {
			writeError(w, err)
			return
		}
		out := make([]cardJSON, 0, len(cards))
		for _, c := range cards {
			out = append(out, cardJSON{
				ID:                 c.ID,
				Language:           c.Language,
				Term:               c.Term,
				Translation:        c.Translation,
				Example:            c.Example,
				ExampleTranslation: c.ExampleTranslation,
				Level:              c.Mastery.Level,
				ReviewCount:        c.Mastery.ReviewCount,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) userLanguage(r *http.Request) (string, string) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		userID = s.cfg.User
	}
	language := r.URL.Query().Get("language")
	if language == "" {
		language = s.cfg.Language
	}
	return userID, language
}

// sourceJSON is the wire form of a deck source.
type sourceJSON struct {
	ID         int64      `json:"id"`
	Path       string     `json:"path"`
	Type       string     `json:"type"`
	LastSynced *time.Time `json:"last_synced"`
}

func (s *Server) handleSources() http.HandlerFunc {
	type request struct {
		Path string `json:"path"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			sources, err := s.db.GetAllSources(r.Context())
			if err != nil {
				writeError(w, err)
				return
			}
			out := make([]sourceJSON, 0, len(sources))
			for _, src := range sources {
				j := sourceJSON{ID: src.ID, Path: src.Path, Type: src.Type}
				if src.LastSynced.Valid {
					t := src.LastSynced.Time
					j.LastSynced = &t
				}
				out = append(out, j)
			}
			writeJSON(w, http.StatusOK, out)

		case http.MethodPost:
			var req request
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
				http.Error(w, "Path cannot be empty", http.StatusBadRequest)
				return
			}
			id, err := s.db.InsertSource(r.Context(), req.Path, SourceType(req.Path))
			if err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, sourceJSON{ID: id, Path: req.Path, Type: SourceType(req.Path)})

		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func (s *Server) handleDeleteSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		idStr := strings.TrimPrefix(r.URL.Path, "/api/sources/")
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			http.Error(w, "Invalid source ID", http.StatusBadRequest)
			return
		}
		if err := s.db.DeleteSource(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleSync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		// Run in the foreground so the client sees the result.
		if err := appsync.Run(r.Context(), s.db, s.cfg.User, s.cfg.ReposDir); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// SourceType classifies a source path as a git URL or a local directory.
func SourceType(path string) string {
	if strings.HasSuffix(path, ".git") || strings.HasPrefix(path, "git@") ||
		strings.HasPrefix(path, "https://") || strings.HasPrefix(path, "http://") {
		return "git"
	}
	return "local"
}
