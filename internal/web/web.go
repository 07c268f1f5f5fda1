// Package web exposes the resolved schedule over a small JSON API. This is
// the machine surface a display client consumes; rendering itself lives
// outside this repository.
package web

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"dayview/internal/config"
	appLog "dayview/internal/log"
	"dayview/internal/model"
	"dayview/internal/schedule"
	"dayview/internal/snapshot"
)

// Server provides HTTP access to the schedule resolver.
type Server struct {
	cfg      *config.Config
	resolver *schedule.Resolver
	mux      *http.ServeMux

	// now is sampled per request so the in_progress flag follows the real
	// clock rather than the resolution instant. Tests pin it.
	now func() time.Time
}

// NewServer constructs a new Server around an existing resolver.
func NewServer(cfg *config.Config, resolver *schedule.Resolver) *Server {
	s := &Server{
		cfg:      cfg,
		resolver: resolver,
		mux:      http.NewServeMux(),
		now:      time.Now,
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password is treated as disabled.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// /health stays reachable without credentials.
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="dayview", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/schedule", s.handleSchedule)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// scheduleResponse is the JSON response shape for /api/schedule.
type scheduleResponse struct {
	Date     string     `json:"date"`
	Timezone string     `json:"timezone"`
	Events   []eventDTO `json:"events"`
}

// eventDTO is a JSON-friendly view of a resolved event.
type eventDTO struct {
	UID         string    `json:"uid"`
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	AllDay      bool      `json:"all_day"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	InProgress  bool      `json:"in_progress"`
}

// handleSchedule resolves and returns the events of one calendar day.
//
// GET /api/schedule?date=2025-03-14&refresh=1
//   - date:    the day to resolve, YYYY-MM-DD in the display timezone
//     (defaults to today)
//   - refresh: any non-empty value forces a fresh fetch regardless of
//     snapshot validity (pull-to-refresh)
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	loc := s.resolver.Location()

	q := r.URL.Query()
	selected := s.resolver.Today()
	if ds := q.Get("date"); ds != "" {
		d, err := time.ParseInLocation(snapshot.DateLayout, ds, loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
			return
		}
		selected = d
	}
	forceRefresh := q.Get("refresh") != ""

	events, err := s.resolver.Resolve(r.Context(), selected, forceRefresh)
	if err != nil {
		if errors.Is(err, schedule.ErrSuperseded) {
			// A newer request is already producing the response the client
			// will actually display.
			writeError(w, http.StatusConflict, "superseded by a newer request")
			return
		}
		// The client gets a single failure state; the fetch/parse
		// distinction stays in the logs.
		writeError(w, http.StatusBadGateway, "failed to load schedule")
		return
	}

	now := s.now()
	dtos := make([]eventDTO, 0, len(events))
	for _, ev := range events {
		dtos = append(dtos, eventDTO{
			UID:         ev.UID,
			Summary:     ev.Summary,
			Description: ev.Description,
			Location:    ev.Location,
			AllDay:      ev.AllDay,
			Start:       ev.Start,
			End:         ev.End,
			InProgress:  ev.InProgress(now),
		})
	}

	writeJSON(w, http.StatusOK, scheduleResponse{
		Date:     model.DayStart(selected, loc).Format(snapshot.DateLayout),
		Timezone: loc.String(),
		Events:   dtos,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
