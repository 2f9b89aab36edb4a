package web

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"cloud.google.com/go/civil"

	"agenda/internal/agenda"
	"agenda/internal/config"
	"agenda/internal/ics"
	appLog "agenda/internal/log"
)

const maxDays = 366

// Server exposes the agenda over a small read-only HTTP API.
type Server struct {
	cfg *config.Config
	mux *http.ServeMux

	// now is replaced in tests.
	now func() time.Time

	// Events are only read while serving; SetAgenda swaps the whole agenda.
	mu     sync.RWMutex
	agenda *agenda.Agenda
}

type occurrenceDTO struct {
	Title string `json:"title"`
	Start string `json:"start"`
	End   string `json:"end"`
	Index int    `json:"index"`
}

type dayResponse struct {
	Date        string          `json:"date"`
	Occurrences []occurrenceDTO `json:"occurrences"`
}

type daysResponse struct {
	From string        `json:"from"`
	Days []dayResponse `json:"days"`
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, a *agenda.Agenda) *Server {
	if a == nil {
		a = &agenda.Agenda{}
	}
	s := &Server{
		cfg:    cfg,
		mux:    http.NewServeMux(),
		now:    time.Now,
		agenda: a,
	}
	s.registerRoutes()
	return s
}

// SetAgenda replaces the served agenda, e.g. after a config reload.
func (s *Server) SetAgenda(a *agenda.Agenda) {
	s.mu.Lock()
	s.agenda = a
	s.mu.Unlock()
}

// Agenda returns the agenda currently served.
func (s *Server) Agenda() *agenda.Agenda {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.agenda
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

// basicAuthEnabled reports whether HTTP Basic Auth is configured with both
// a username and a password.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Agenda", charset="UTF-8"`)
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

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/day", s.handleDay)
	s.mux.HandleFunc("/api/days", s.handleDays)
	s.mux.HandleFunc("/api/agenda.ics", s.handleICS)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

// GET /api/day?date=2024-01-15 (default: today)
func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	d, err := s.parseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, s.day(s.Agenda(), d))
}

// GET /api/days?from=2024-01-15&days=7
//   - from: first day (default: today)
//   - days: number of days (default: config horizon_days, max 366)
func (s *Server) handleDays(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	q := r.URL.Query()
	from, err := s.parseDate(q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from: "+err.Error())
		return
	}
	days := parseIntDefault(q.Get("days"), s.cfg.HorizonDays)
	if days <= 0 || days > maxDays {
		writeError(w, http.StatusBadRequest, "days must be between 1 and "+strconv.Itoa(maxDays))
		return
	}

	a := s.Agenda()
	resp := daysResponse{From: from.String(), Days: make([]dayResponse, 0, days)}
	for i := 0; i < days; i++ {
		resp.Days = append(resp.Days, s.day(a, from.AddDays(i)))
	}

	appLog.Debug("api days request", "from", from, "days", days)
	writeJSON(w, http.StatusOK, resp)
}

// GET /api/agenda.ics
func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var buf bytes.Buffer
	if err := ics.Encode(&buf, s.Agenda().Events(), ics.EncodeOptions{Stamp: s.now()}); err != nil {
		appLog.Error("api ics: encode failed", err)
		writeError(w, http.StatusInternalServerError, "failed to encode calendar")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) day(a *agenda.Agenda, d civil.Date) dayResponse {
	occs := a.OccurrencesInDay(d)
	dtos := make([]occurrenceDTO, 0, len(occs))
	for _, occ := range occs {
		dtos = append(dtos, occurrenceDTO{
			Title: occ.Title,
			Start: config.FormatDateTime(occ.Start),
			End:   config.FormatDateTime(occ.End),
			Index: occ.Index,
		})
	}
	return dayResponse{Date: d.String(), Occurrences: dtos}
}

func (s *Server) parseDate(v string) (civil.Date, error) {
	if v == "" {
		return civil.DateOf(s.now()), nil
	}
	return civil.ParseDate(v)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
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
