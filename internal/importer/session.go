package importer

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/employer-import/internal/employer"
	"github.com/sells-group/employer-import/internal/resilience"
)

// Session is one tenant's import in progress: the parsed candidates, the
// operator's mode flags and the outcome of the last run.
type Session struct {
	TenantID         string      `json:"tenant_id"`
	FileName         string      `json:"file_name"`
	Candidates       []Candidate `json:"candidates"`
	ResolveConflicts bool        `json:"resolve_conflicts"`
	DryRun           bool        `json:"dry_run"`
	LastResult       *Result     `json:"last_result,omitempty"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// NewSession starts an empty session.
func NewSession(tenantID, fileName string) Session {
	return Session{TenantID: tenantID, FileName: fileName}
}

// Parse replaces the candidates with those parsed from rows.
func (s Session) Parse(rows [][]any) Session {
	s.Candidates = ParseSheet(rows)
	s.LastResult = nil
	return s
}

// MatchAgainst classifies the candidates against snapshot.
func (s Session) MatchAgainst(snapshot []employer.Employer) Session {
	s.Candidates = Match(s.Candidates, NewIndex(snapshot))
	return s
}

// Summary counts the session's candidates per disposition.
func (s Session) Summary() PreviewSummary {
	return Summarize(s.Candidates)
}

// Plan splits candidates into those a run applies and those it reports only.
type Plan struct {
	Selected []Candidate
	Skipped  []Candidate
}

// PlanCommit selects what a run would apply under the session's flags.
func (s Session) PlanCommit() Plan {
	return planCommit(s.Candidates, s.ResolveConflicts)
}

func planCommit(candidates []Candidate, resolveConflicts bool) Plan {
	var p Plan
	for _, c := range candidates {
		switch {
		case c.Disposition == ToCreate, c.Disposition == ToUpdate:
			p.Selected = append(p.Selected, c)
		case c.Disposition == Conflict && resolveConflicts:
			p.Selected = append(p.Selected, c)
		default:
			p.Skipped = append(p.Skipped, c)
		}
	}
	return p
}

// SessionStore keeps sessions between requests, keyed by tenant.
type SessionStore interface {
	// Load returns nil, nil when the tenant has no session.
	Load(ctx context.Context, tenantID string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, tenantID string) error
}

// Service ties sessions to the store.
type Service struct {
	sessions   SessionStore
	reconciler *Reconciler
	batchSize  int
	now        func() time.Time
}

// NewService creates a Service.
func NewService(st employer.Store, sessions SessionStore, retry resilience.Policy, batchSize int) *Service {
	return &Service{
		sessions:   sessions,
		reconciler: NewReconciler(st, retry),
		batchSize:  batchSize,
		now:        time.Now,
	}
}

// Preview parses rows, matches them against a fresh snapshot and saves the
// session. Mode flags carry over from the tenant's previous session.
func (s *Service) Preview(ctx context.Context, tenantID, fileName string, rows [][]any) (*Session, error) {
	snapshot, err := s.reconciler.Snapshot(ctx, tenantID)
	if err != nil {
		return nil, eris.Wrap(err, "importer: fetch snapshot")
	}

	sess := NewSession(tenantID, fileName).Parse(rows).MatchAgainst(snapshot)
	prev, err := s.sessions.Load(ctx, tenantID)
	if err != nil {
		zap.L().Warn("importer: could not load previous session", zap.String("tenant_id", tenantID), zap.Error(err))
	} else if prev != nil {
		sess.ResolveConflicts = prev.ResolveConflicts
		sess.DryRun = prev.DryRun
	}
	sess.UpdatedAt = s.now().UTC()

	if err := s.sessions.Save(ctx, &sess); err != nil {
		return nil, eris.Wrap(err, "importer: save session")
	}

	sum := sess.Summary()
	zap.L().Info("importer: preview ready",
		zap.String("tenant_id", tenantID),
		zap.String("file", fileName),
		zap.Int("to_create", sum.ToCreate),
		zap.Int("to_update", sum.ToUpdate),
		zap.Int("conflicts", sum.Conflicts),
		zap.Int("invalid", sum.Invalid),
	)
	return &sess, nil
}

// Current loads the tenant's session, or nil when there is none.
func (s *Service) Current(ctx context.Context, tenantID string) (*Session, error) {
	sess, err := s.sessions.Load(ctx, tenantID)
	return sess, eris.Wrap(err, "importer: load session")
}

// Clear discards the tenant's session.
func (s *Service) Clear(ctx context.Context, tenantID string) error {
	return eris.Wrap(s.sessions.Delete(ctx, tenantID), "importer: clear session")
}

// Apply runs the session's candidates through the Reconciler under its mode
// flags. A commit without errors clears the candidates and deletes the saved
// session; anything else keeps both for inspection.
func (s *Service) Apply(ctx context.Context, sess *Session, onProgress func(done, total int)) (*Result, error) {
	if sess == nil {
		return nil, eris.New("importer: no session")
	}
	res, err := s.reconciler.Run(ctx, sess.TenantID, sess.Candidates, Options{
		ResolveConflicts: sess.ResolveConflicts,
		DryRun:           sess.DryRun,
		BatchSize:        s.batchSize,
		OnProgress:       onProgress,
	})
	if err != nil && res == nil {
		return nil, err
	}

	sess.LastResult = res
	sess.UpdatedAt = s.now().UTC()

	if err == nil && !sess.DryRun && res.Errors == 0 && !res.SessionExpired {
		sess.Candidates = nil
		if derr := s.sessions.Delete(ctx, sess.TenantID); derr != nil {
			return res, eris.Wrap(derr, "importer: delete session")
		}
		return res, nil
	}

	if serr := s.sessions.Save(ctx, sess); serr != nil && err == nil {
		err = eris.Wrap(serr, "importer: save session")
	}
	return res, err
}
