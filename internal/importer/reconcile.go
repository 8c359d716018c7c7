package importer

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/employer-import/internal/employer"
	"github.com/sells-group/employer-import/internal/resilience"
)

// DefaultBatchSize is the number of candidates applied between progress
// reports.
const DefaultBatchSize = 50

// Options control one reconciliation run.
type Options struct {
	// ResolveConflicts frees a conflicting secondary key from its holder
	// before the candidate claims it. Without it conflicts are skipped.
	ResolveConflicts bool
	// DryRun mirrors every step against the working map only.
	DryRun    bool
	BatchSize int
	// OnProgress is called after each batch.
	OnProgress func(done, total int)
}

// Result tallies a run. Every applied candidate lands in exactly one of
// Created, Updated and Errors. Reallocated counts freed holders.
type Result struct {
	DryRun         bool                    `json:"dry_run" yaml:"dry_run"`
	Created        int                     `json:"created" yaml:"created"`
	Updated        int                     `json:"updated" yaml:"updated"`
	Reallocated    int                     `json:"reallocated" yaml:"reallocated"`
	Errors         int                     `json:"errors" yaml:"errors"`
	Skipped        int                     `json:"skipped" yaml:"skipped"`
	Processed      int                     `json:"processed" yaml:"processed"`
	Total          int                     `json:"total" yaml:"total"`
	SessionExpired bool                    `json:"session_expired" yaml:"session_expired"`
	UniqueErrors   []string                `json:"unique_errors,omitempty" yaml:"unique_errors,omitempty"`
	RLSErrors      []string                `json:"rls_errors,omitempty" yaml:"rls_errors,omitempty"`
	OtherErrors    []string                `json:"other_errors,omitempty" yaml:"other_errors,omitempty"`
	DuplicateKeys  []employer.DuplicateKey `json:"duplicate_keys,omitempty" yaml:"duplicate_keys,omitempty"`
}

func (r *Result) record(kind employer.ErrorKind, c Candidate, err error) {
	r.Errors++
	entry := fmt.Sprintf("Linha %d (%s): %s", c.RowNumber, c.Name, err.Error())
	switch kind {
	case employer.KindUnique:
		r.UniqueErrors = append(r.UniqueErrors, entry)
	case employer.KindRLS:
		r.RLSErrors = append(r.RLSErrors, entry)
	default:
		r.OtherErrors = append(r.OtherErrors, entry)
	}
}

// Messages shown alongside a result.
const (
	RLSHint               = "Sem permissão para alterar empresas. Verifique se o usuário é administrador da entidade."
	SessionExpiredMessage = "Sessão expirada. As linhas já processadas foram mantidas; entre novamente para continuar."
)

// Display is a Result with its error lists capped for operators.
type Display struct {
	UniqueErrors []string `json:"unique_errors,omitempty"`
	RLSErrors    []string `json:"rls_errors,omitempty"`
	OtherErrors  []string `json:"other_errors,omitempty"`
	Hints        []string `json:"hints,omitempty"`
}

// Display caps each error list at limit entries, appending "+N mais" when
// entries were cut. The stored lists are not modified.
func (r *Result) Display(limit int) Display {
	d := Display{
		UniqueErrors: capList(r.UniqueErrors, limit),
		RLSErrors:    capList(r.RLSErrors, limit),
		OtherErrors:  capList(r.OtherErrors, limit),
	}
	if len(r.RLSErrors) > 0 {
		d.Hints = append(d.Hints, RLSHint)
	}
	if r.SessionExpired {
		d.Hints = append(d.Hints, SessionExpiredMessage)
	}
	return d
}

func capList(list []string, limit int) []string {
	if limit <= 0 || len(list) <= limit {
		return list
	}
	out := make([]string, 0, limit+1)
	out = append(out, list[:limit]...)
	return append(out, fmt.Sprintf("+%d mais", len(list)-limit))
}

// Reconciler applies classified candidates to the store.
type Reconciler struct {
	store employer.Store
	retry resilience.Policy
}

// NewReconciler creates a Reconciler. retry governs snapshot reads only;
// mutations are never retried.
func NewReconciler(st employer.Store, retry resilience.Policy) *Reconciler {
	return &Reconciler{store: st, retry: retry}
}

// Snapshot fetches the tenant's active employers, retrying transient errors.
func (r *Reconciler) Snapshot(ctx context.Context, tenantID string) ([]employer.Employer, error) {
	return resilience.Read(ctx, r.retry, "list employers", func(ctx context.Context) ([]employer.Employer, error) {
		return r.store.ListEmployers(ctx, tenantID)
	})
}

// errSessionExpired stops the run.
var errSessionExpired = eris.New("importer: session expired")

// Run applies the candidates selected by policy in sequential batches. A
// session failure stops the run and returns the partial result with
// SessionExpired set; every other store failure is tallied and the run moves
// on to the next candidate.
func (r *Reconciler) Run(ctx context.Context, tenantID string, candidates []Candidate, opts Options) (*Result, error) {
	plan := planCommit(candidates, opts.ResolveConflicts)
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	res := &Result{
		DryRun:  opts.DryRun,
		Skipped: len(plan.Skipped),
		Total:   len(plan.Selected),
	}
	log := zap.L().With(
		zap.String("tenant_id", tenantID),
		zap.Bool("dry_run", opts.DryRun),
		zap.Bool("resolve_conflicts", opts.ResolveConflicts),
	)
	log.Info("importer: starting run", zap.Int("selected", res.Total), zap.Int("skipped", res.Skipped))

	snapshot, err := r.Snapshot(ctx, tenantID)
	if err != nil {
		if employer.KindOf(err) == employer.KindSession {
			res.SessionExpired = true
			return res, nil
		}
		return nil, eris.Wrap(err, "importer: fetch snapshot")
	}

	state := &runState{
		Reconciler: r,
		tenantID:   tenantID,
		opts:       opts,
		res:        res,
		work:       newWorkingMap(snapshot),
		log:        log,
	}

	for start := 0; start < len(plan.Selected); start += batchSize {
		if err := ctx.Err(); err != nil {
			return res, eris.Wrap(err, "importer: run cancelled")
		}
		end := min(start+batchSize, len(plan.Selected))
		for i := start; i < end; i++ {
			if err := state.apply(ctx, plan.Selected[i]); err != nil {
				res.SessionExpired = true
				res.Processed = i + 1
				r.progress(opts, res)
				log.Warn("importer: session expired, stopping run", zap.Int("processed", res.Processed))
				return res, nil
			}
		}
		res.Processed = end
		r.progress(opts, res)
		log.Debug("importer: batch applied", zap.Int("processed", res.Processed), zap.Int("total", res.Total))
	}

	if !opts.DryRun {
		r.audit(ctx, tenantID, res, log)
	}

	log.Info("importer: run complete",
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("reallocated", res.Reallocated),
		zap.Int("errors", res.Errors),
	)
	return res, nil
}

func (r *Reconciler) progress(opts Options, res *Result) {
	if opts.OnProgress != nil {
		opts.OnProgress(res.Processed, res.Total)
	}
}

// audit reports secondary keys left with more than one holder. Freeing by key
// and then claiming is not atomic, so a concurrent writer can still slip in.
func (r *Reconciler) audit(ctx context.Context, tenantID string, res *Result, log *zap.Logger) {
	dups, err := r.store.DuplicateSecondaryKeys(ctx, tenantID)
	if err != nil {
		log.Warn("importer: duplicate key audit failed", zap.Error(err))
		return
	}
	for _, d := range dups {
		log.Warn("importer: secondary key held by several employers",
			zap.String("key", d.Key),
			zap.Strings("employer_ids", d.EmployerIDs),
		)
	}
	res.DuplicateKeys = dups
}

// runState is the state of one Reconciler.Run call.
type runState struct {
	*Reconciler
	tenantID string
	opts     Options
	res      *Result
	work     *workingMap
	log      *zap.Logger
}

// apply processes one candidate. It only returns an error when the session
// expired.
func (r *runState) apply(ctx context.Context, c Candidate) error {
	key := c.TargetKey()
	existingID := r.work.idOf(c.TaxID)

	if r.opts.ResolveConflicts {
		if err := r.free(ctx, c, key, existingID); err != nil {
			return r.fail(c, err)
		}
	} else if r.opts.DryRun {
		if holder := r.work.holderOf(key); holder != "" && holder != existingID {
			return r.fail(c, &employer.StoreError{
				Kind: employer.KindUnique,
				Op:   "simulate claim " + key,
				Err:  eris.Errorf("código %s já está em uso", key),
			})
		}
	}

	if existingID != "" {
		if err := r.update(ctx, c, existingID, key); err != nil {
			return r.fail(c, err)
		}
		r.res.Updated++
		return nil
	}

	updated, err := r.create(ctx, c, key)
	if err != nil {
		return r.fail(c, err)
	}
	if updated {
		r.res.Updated++
	} else {
		r.res.Created++
	}
	return nil
}

// fail tallies err against c and returns errSessionExpired when the run has
// to stop.
func (r *runState) fail(c Candidate, err error) error {
	kind := employer.KindOf(err)
	if kind == employer.KindSession {
		r.res.Errors++
		return errSessionExpired
	}
	r.res.record(kind, c, err)
	r.log.Warn("importer: candidate failed",
		zap.Int("row", c.RowNumber),
		zap.String("tax_id", c.TaxID),
		zap.String("kind", string(kind)),
		zap.Error(err),
	)
	return nil
}

// free releases key from any holder other than existingID.
func (r *runState) free(ctx context.Context, c Candidate, key, existingID string) error {
	if r.opts.DryRun {
		r.res.Reallocated += r.work.release(key, existingID)
		return nil
	}
	n, err := r.store.ReleaseSecondaryKey(ctx, r.tenantID, key, existingID)
	if err != nil {
		return err
	}
	if n > 0 {
		r.log.Debug("importer: freed secondary key",
			zap.Int("row", c.RowNumber),
			zap.String("key", key),
			zap.Int64("holders", n),
		)
	}
	r.work.release(key, existingID)
	r.res.Reallocated += int(n)
	return nil
}

func (r *runState) update(ctx context.Context, c Candidate, id, key string) error {
	if !r.opts.DryRun {
		err := r.store.Update(ctx, r.tenantID, id, employer.Patch{SecondaryKey: key, Details: c.Details})
		if err != nil {
			return err
		}
	}
	r.work.claim(id, key)
	return nil
}

// create inserts c. When the insert collides on tax id with a record the
// snapshot did not know about, it updates that record instead and reports
// updated=true.
func (r *runState) create(ctx context.Context, c Candidate, key string) (updated bool, err error) {
	if r.opts.DryRun {
		r.work.add(c.TaxID, "dry-run:"+strconv.Itoa(c.RowNumber), key)
		return false, nil
	}

	e := &employer.Employer{
		TenantID:     r.tenantID,
		TaxID:        c.TaxID,
		SecondaryKey: key,
		Name:         c.Name,
		TradeName:    c.TradeName,
		Details:      c.Details,
	}
	insertErr := r.store.Insert(ctx, e)
	if insertErr == nil {
		r.work.add(c.TaxID, e.ID, key)
		return false, nil
	}
	if employer.KindOf(insertErr) != employer.KindUnique {
		return false, insertErr
	}

	found, err := r.store.FindByTaxID(ctx, r.tenantID, c.TaxID)
	if err != nil {
		if employer.KindOf(err) == employer.KindSession {
			return false, err
		}
		return false, insertErr
	}
	if found == nil {
		return false, insertErr
	}

	r.log.Info("importer: tax id already exists, updating instead",
		zap.Int("row", c.RowNumber),
		zap.String("tax_id", c.TaxID),
		zap.String("employer_id", found.ID),
	)
	r.work.add(c.TaxID, found.ID, found.SecondaryKey)
	if err := r.update(ctx, c, found.ID, key); err != nil {
		return false, err
	}
	return true, nil
}
