// ABOUTME: Sync orchestrator state machine from CRM fetch to ad platform upload
// ABOUTME: Fetch and target failures fail closed; upload failures still reach the report
package sync

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/harperreed/leadsync/crm"
	"github.com/harperreed/leadsync/errs"
	"github.com/harperreed/leadsync/identity"
	"github.com/harperreed/leadsync/models"
)

// Source supplies the CRM universe for a run.
type Source interface {
	FetchContacts(ctx context.Context, q crm.Query) ([]models.Contact, error)
	FetchDeals(ctx context.Context, q crm.Query) ([]models.Deal, error)
}

// Sink is an upload destination: a conversion action, a user list, or a file.
type Sink interface {
	ResolveTarget(ctx context.Context) (models.Target, error)
	// Upload submits records. On error the result still reports whatever
	// succeeded before the failure.
	Upload(ctx context.Context, target models.Target, records []models.ConversionRecord) (models.UploadResult, error)
}

// Reporter receives the run summary at REPORT.
type Reporter interface {
	Report(run *models.SyncRun)
}

// Options configures a run. Everything the pipeline needs is injected here.
type Options struct {
	Flow           models.Flow
	StageAllowlist []string
	ModifiedSince  *time.Time
	PageSize       int
	Ceiling        int
	Normalizer     identity.Normalizer
	Currency       string
	Region         string

	Reporter Reporter
	Logger   *zap.Logger
	// Progress receives operator-facing progress lines.
	Progress io.Writer
	Now      func() time.Time
}

// Orchestrator runs one sync invocation.
type Orchestrator struct {
	source Source
	sink   Sink
	opts   Options
	logger *zap.Logger
}

// NewOrchestrator wires a source and sink under opts.
func NewOrchestrator(source Source, sink Sink, opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Progress == nil {
		opts.Progress = io.Discard
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{source: source, sink: sink, opts: opts, logger: opts.Logger}
}

// Run executes the pipeline. The returned run is never nil. The error is
// non-nil when the run failed closed or the upload failed; in the latter case
// the run still carries REPORT counts.
func (o *Orchestrator) Run(ctx context.Context) (*models.SyncRun, error) {
	run := &models.SyncRun{
		ID:        ulid.Make().String(),
		Flow:      o.opts.Flow,
		Phase:     models.PhaseInit,
		StartedAt: o.opts.Now().UTC(),
	}
	log := o.logger.With(zap.String("run_id", run.ID), zap.String("flow", string(run.Flow)))
	log.Info("sync started")

	o.enter(log, run, models.PhaseFetchContacts)
	o.progress("  → Fetching contacts...")
	contacts, err := o.source.FetchContacts(ctx, crm.Query{
		PageSize:      o.opts.PageSize,
		Ceiling:       o.opts.Ceiling,
		ModifiedSince: o.opts.ModifiedSince,
	})
	if err != nil {
		return o.fail(log, run, fmt.Errorf("failed to fetch contacts: %w", err))
	}
	o.progress("  ✓ Fetched %d contacts", len(contacts))

	o.enter(log, run, models.PhaseFetchDeals)
	o.progress("  → Fetching deals...")
	deals, err := o.source.FetchDeals(ctx, crm.Query{
		PageSize: o.opts.PageSize,
		Ceiling:  o.opts.Ceiling,
		Sort:     crm.SortNewestFirst,
	})
	if err != nil {
		return o.fail(log, run, fmt.Errorf("failed to fetch deals: %w", err))
	}
	o.progress("  ✓ Fetched %d deals", len(deals))

	o.enter(log, run, models.PhaseClassifyAndResolve)
	candidates, skipped := NewStageAllowlist(o.opts.StageAllowlist).Classify(deals)
	run.Result.TotalCandidateDeals = len(candidates)
	run.Result.Skipped = skipped

	// Dedupe keeps the first record per person; newest deals go first.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.After(candidates[j].CreatedAt)
	})

	index := IndexContacts(contacts)
	type match struct {
		deal    models.Deal
		contact models.Contact
	}
	var matches []match
	for _, deal := range candidates {
		contact, ok := index.Resolve(deal)
		if !ok {
			run.Result.Unresolved++
			continue
		}
		matches = append(matches, match{deal: deal, contact: contact})
	}
	run.Result.Resolved = len(matches)
	log.Info("deals classified",
		zap.Int("candidates", run.Result.TotalCandidateDeals),
		zap.Int("skipped", run.Result.Skipped),
		zap.Int("resolved", run.Result.Resolved),
		zap.Int("unresolved", run.Result.Unresolved))

	o.enter(log, run, models.PhaseNormalizeDedupe)
	normalized := make([]identity.NormalizedRecord, 0, len(matches))
	for _, m := range matches {
		rec, ok := o.opts.Normalizer.Normalize(m.deal, m.contact)
		if !ok {
			run.Result.Excluded++
			log.Debug("record excluded", zap.Error(errs.Validation("normalize",
				"deal %s: contact %s has no usable email or phone", m.deal.ID, m.contact.ID)))
			continue
		}
		normalized = append(normalized, rec)
	}
	run.Result.Normalized = len(normalized)

	kept, dropped := identity.Dedupe(normalized)
	run.Result.Deduplicated = len(kept)
	run.Result.Duplicates = dropped

	prepared := make([]models.ConversionRecord, 0, len(kept))
	for _, rec := range kept {
		if rec.ConversionTime.IsZero() {
			rec.ConversionTime = run.StartedAt
		}
		hashed := identity.HashRecord(rec, o.opts.Currency, o.opts.Region)
		if !hashed.HasIdentifier() {
			continue
		}
		prepared = append(prepared, hashed)
	}
	run.Result.Prepared = len(prepared)
	o.progress("  ✓ Prepared %d records (%d unresolved, %d excluded, %d duplicates)",
		run.Result.Prepared, run.Result.Unresolved, run.Result.Excluded, run.Result.Duplicates)

	var uploadErr error
	if len(prepared) == 0 {
		log.Info("no records prepared, skipping upload")
		o.progress("  ✓ Nothing to upload")
	} else {
		o.enter(log, run, models.PhaseResolveTarget)
		target, err := o.sink.ResolveTarget(ctx)
		if err != nil {
			return o.fail(log, run, fmt.Errorf("failed to resolve target: %w", err))
		}
		run.Target = &target
		log.Info("target resolved",
			zap.String("kind", target.Kind),
			zap.String("resource", target.ResourceName))

		o.enter(log, run, models.PhaseUpload)
		o.progress("  → Uploading %d records to %s...", len(prepared), target.Name)
		res, err := o.sink.Upload(ctx, target, prepared)
		run.Failures = res.Messages
		if err != nil {
			uploadErr = fmt.Errorf("failed to upload: %w", err)
			run.Error = uploadErr.Error()
			run.Result.Attempted = len(prepared)
			run.Result.Failed = run.Result.Attempted - res.Success
			log.Error("upload failed", zap.Error(err), zap.Int("attempted", run.Result.Attempted))
			o.progress("  ✗ Upload failed: %v", err)
		} else {
			run.Result.Attempted = res.Attempted
			run.Result.Failed = res.Failed
			if res.Failed > 0 {
				log.Warn("platform rejected records", zap.Error(errs.PartialUpload(target.Kind, res.Failed, res.Attempted)))
			}
			o.progress("  ✓ Uploaded %d of %d records", res.Attempted-res.Failed, res.Attempted)
		}
		run.Result.Uploaded = run.Result.Attempted - run.Result.Failed
	}

	o.enter(log, run, models.PhaseReport)
	if o.opts.Reporter != nil {
		o.opts.Reporter.Report(run)
	}
	log.Info("sync summary",
		zap.Int("prepared", run.Result.Prepared),
		zap.Int("attempted", run.Result.Attempted),
		zap.Int("uploaded", run.Result.Uploaded),
		zap.Int("failed", run.Result.Failed))

	finished := o.opts.Now().UTC()
	run.FinishedAt = &finished
	o.enter(log, run, models.PhaseDone)
	return run, uploadErr
}

func (o *Orchestrator) enter(log *zap.Logger, run *models.SyncRun, phase models.Phase) {
	if run.Phase == phase {
		return
	}
	log.Debug("phase transition", zap.String("from", string(run.Phase)), zap.String("to", string(phase)))
	run.Phase = phase
}

func (o *Orchestrator) fail(log *zap.Logger, run *models.SyncRun, err error) (*models.SyncRun, error) {
	log.Error("sync failed", zap.String("phase", string(run.Phase)), zap.Error(err))
	o.progress("  ✗ %v", err)

	run.Error = err.Error()
	finished := o.opts.Now().UTC()
	run.FinishedAt = &finished
	run.Phase = models.PhaseFailed
	return run, err
}

func (o *Orchestrator) progress(format string, args ...any) {
	_, _ = fmt.Fprintf(o.opts.Progress, format+"\n", args...)
}
