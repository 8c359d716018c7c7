// Package api exposes employer import sessions over HTTP.
package api

import (
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/employer-import/internal/employer"
	"github.com/sells-group/employer-import/internal/importer"
	"github.com/sells-group/employer-import/internal/sheet"
)

// Config tunes the HTTP surface.
type Config struct {
	AllowedOrigins []string
	// UploadsPerMin limits previews per tenant. Zero disables the limit.
	UploadsPerMin  int
	MaxUploadBytes int64
	DisplayLimit   int
}

// Server serves the import endpoints.
type Server struct {
	svc *importer.Service
	cfg Config
	now func() time.Time

	mu        sync.Mutex
	tenants   map[string]*tenantState
	lastSweep time.Time
}

// tenantState holds a tenant's upload limiter and whether an import
// operation is running for it.
type tenantState struct {
	limiter  *rate.Limiter
	busy     bool
	lastSeen time.Time
}

// tenantIdle is how long an idle tenant entry is kept. A limiter idle this
// long has refilled its burst.
const tenantIdle = time.Minute

// New creates a Server.
func New(svc *importer.Service, cfg Config) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	if cfg.DisplayLimit <= 0 {
		cfg.DisplayLimit = 20
	}
	return &Server{svc: svc, cfg: cfg, now: time.Now, tenants: make(map[string]*tenantState)}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/tenants/{tenantID}/imports", func(r chi.Router) {
		r.Post("/", s.handleUpload)
		r.Get("/", s.handleCurrent)
		r.Delete("/", s.handleClear)
		r.Post("/commit", s.handleCommit)
	})
	return r
}

// tenant returns the tenant's entry, creating it on first use. Idle entries
// are swept at most once per tenantIdle. Callers hold s.mu.
func (s *Server) tenant(tenantID string) *tenantState {
	now := s.now()
	if now.Sub(s.lastSweep) >= tenantIdle {
		for id, ts := range s.tenants {
			if !ts.busy && now.Sub(ts.lastSeen) >= tenantIdle {
				delete(s.tenants, id)
			}
		}
		s.lastSweep = now
	}

	ts, ok := s.tenants[tenantID]
	if !ok {
		ts = &tenantState{}
		if n := s.cfg.UploadsPerMin; n > 0 {
			ts.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), n)
		}
		s.tenants[tenantID] = ts
	}
	ts.lastSeen = now
	return ts
}

func (s *Server) allowUpload(tenantID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.tenant(tenantID).limiter
	return l == nil || l.AllowN(s.now(), 1)
}

// acquire marks the tenant busy for the duration of one preview, commit or
// clear. It reports false while another one is running.
func (s *Server) acquire(tenantID string) (release func(), ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.tenant(tenantID)
	if ts.busy {
		return nil, false
	}
	ts.busy = true
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		ts.busy = false
		ts.lastSeen = s.now()
	}, true
}

func writeBusy(w http.ResponseWriter) {
	writeError(w, http.StatusConflict, "an import is already running for this tenant")
}

type previewResponse struct {
	Session *importer.Session       `json:"session"`
	Summary importer.PreviewSummary `json:"summary"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	if !s.allowUpload(tenantID) {
		writeError(w, http.StatusTooManyRequests, "too many uploads, try again later")
		return
	}
	release, ok := s.acquire(tenantID)
	if !ok {
		writeBusy(w)
		return
	}
	defer release()

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close() //nolint:errcheck

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read upload")
		return
	}

	rows, err := sheet.Read(r.Context(), header.Filename, data)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	sess, err := s.svc.Preview(r.Context(), tenantID, header.Filename, rows)
	if err != nil {
		s.storeFailure(w, tenantID, "preview", err)
		return
	}
	writeJSON(w, http.StatusOK, previewResponse{Session: sess, Summary: sess.Summary()})
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	sess, err := s.svc.Current(r.Context(), tenantID)
	if err != nil {
		s.storeFailure(w, tenantID, "load session", err)
		return
	}
	if sess == nil {
		writeError(w, http.StatusNotFound, "no import in progress")
		return
	}
	writeJSON(w, http.StatusOK, previewResponse{Session: sess, Summary: sess.Summary()})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	release, ok := s.acquire(tenantID)
	if !ok {
		writeBusy(w)
		return
	}
	defer release()

	if err := s.svc.Clear(r.Context(), tenantID); err != nil {
		s.storeFailure(w, tenantID, "clear session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type commitRequest struct {
	ResolveConflicts bool `json:"resolve_conflicts"`
	DryRun           bool `json:"dry_run"`
}

type commitResponse struct {
	*importer.Result
	Display importer.Display `json:"display"`
}

func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")

	var req commitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	release, ok := s.acquire(tenantID)
	if !ok {
		writeBusy(w)
		return
	}
	defer release()

	sess, err := s.svc.Current(r.Context(), tenantID)
	if err != nil {
		s.storeFailure(w, tenantID, "load session", err)
		return
	}
	if sess == nil {
		writeError(w, http.StatusNotFound, "no import in progress")
		return
	}
	sess.ResolveConflicts = req.ResolveConflicts
	sess.DryRun = req.DryRun

	res, err := s.svc.Apply(r.Context(), sess, nil)
	if err != nil && res == nil {
		s.storeFailure(w, tenantID, "commit", err)
		return
	}
	if err != nil {
		zap.L().Warn("api: commit finished with error", zap.String("tenant_id", tenantID), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, commitResponse{Result: res, Display: res.Display(s.cfg.DisplayLimit)})
}

// storeFailure maps a failed service call to a status code.
func (s *Server) storeFailure(w http.ResponseWriter, tenantID, op string, err error) {
	status := http.StatusInternalServerError
	switch employer.KindOf(err) {
	case employer.KindSession:
		status = http.StatusUnauthorized
	case employer.KindRLS:
		status = http.StatusForbidden
	}
	zap.L().Error("api: "+op+" failed", zap.String("tenant_id", tenantID), zap.Int("status", status), zap.Error(err))
	writeError(w, status, op+" failed")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
