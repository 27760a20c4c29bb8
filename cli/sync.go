// ABOUTME: Sync command wiring config, CRM client, sink, and run ledger around the orchestrator
// ABOUTME: Shared by the leadsync sync subcommand and the single-flow binaries under cmd/
package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/harperreed/leadsync/ads"
	"github.com/harperreed/leadsync/config"
	"github.com/harperreed/leadsync/crm"
	"github.com/harperreed/leadsync/db"
	"github.com/harperreed/leadsync/identity"
	"github.com/harperreed/leadsync/logging"
	"github.com/harperreed/leadsync/models"
	"github.com/harperreed/leadsync/retry"
	"github.com/harperreed/leadsync/sync"
)

// Main runs flow with signal handling and returns the process exit code.
func Main(flow models.Flow) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return RunFlow(ctx, flow, os.Stdout)
}

// RunFlow loads configuration from the environment and runs flow.
func RunFlow(ctx context.Context, flow models.Flow, out io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprint(out, RenderFailure(err, isTerminal(out)))
		return 1
	}
	return RunWithConfig(ctx, cfg, flow, out)
}

// RunWithConfig runs one sync invocation of flow under cfg. It returns 0 only
// when the run reached DONE with no upload error.
func RunWithConfig(ctx context.Context, cfg *config.Config, flow models.Flow, out io.Writer) int {
	styled := isTerminal(out)

	if err := cfg.Validate(flow); err != nil {
		_, _ = fmt.Fprint(out, RenderFailure(err, styled))
		return 1
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		_, _ = fmt.Fprint(out, RenderFailure(err, styled))
		return 1
	}
	defer func() { _ = logger.Sync() }()

	// The ledger is bookkeeping. A broken ledger never blocks an upload.
	var ledger *sql.DB
	if cfg.DBPath != "" {
		ledger, err = db.OpenDatabase(cfg.DBPath)
		if err != nil {
			logger.Warn("run ledger unavailable, continuing without it", zap.String("path", cfg.DBPath), zap.Error(err))
			ledger = nil
		} else {
			defer ledger.Close()
		}
	}

	policy := retry.DefaultPolicy()
	policy.MaxRetries = uint64(max(cfg.RetryMax, 0))

	source, err := crm.NewClient(ctx, cfg.CRMBaseURL, cfg.CRMAPIKey,
		crm.WithRetry(policy), crm.WithLogger(logger.Named("crm")))
	if err != nil {
		_, _ = fmt.Fprint(out, RenderFailure(err, styled))
		return 1
	}

	sink, err := buildSink(ctx, cfg, flow, ledger, policy, logger)
	if err != nil {
		_, _ = fmt.Fprint(out, RenderFailure(err, styled))
		return 1
	}

	if ledger != nil {
		if err := db.UpdateSyncStatus(ledger, string(flow), models.SyncStatusSyncing, nil); err != nil {
			logger.Warn("failed to record sync status", zap.Error(err))
		}
	}

	_, _ = fmt.Fprintf(out, "Syncing %s...\n", flow)
	orchestrator := sync.NewOrchestrator(source, sink, sync.Options{
		Flow:           flow,
		StageAllowlist: cfg.StageAllowlist,
		ModifiedSince:  cfg.ModifiedSince(),
		PageSize:       cfg.CRMPageSize,
		Ceiling:        cfg.CRMMaxRecords,
		Normalizer: identity.Normalizer{Phone: identity.PhoneNormalizer{
			CountryCode:      cfg.DefaultCountryCode,
			SubscriberLength: cfg.SubscriberLength,
		}},
		Currency: cfg.Currency,
		Region:   cfg.CountryRegion,
		Reporter: &ReportPrinter{Out: out, Styled: styled},
		Logger:   logger,
		Progress: out,
	})

	run, runErr := orchestrator.Run(ctx)
	if runErr != nil {
		_, _ = fmt.Fprint(out, RenderFailure(runErr, styled))
	}

	if ledger != nil {
		recordRun(ledger, run, runErr, logger)
	}

	if runErr != nil {
		return 1
	}
	return 0
}

// buildSink constructs the upload destination for flow.
func buildSink(ctx context.Context, cfg *config.Config, flow models.Flow, ledger *sql.DB,
	policy retry.Policy, logger *zap.Logger) (sync.Sink, error) {
	var cache sync.TargetCache
	if ledger != nil {
		cache = sync.LedgerCache{DB: ledger}
	}

	switch flow {
	case models.FlowExport:
		return &sync.ExportSink{Path: cfg.ExportPath, Logger: logger.Named("export")}, nil

	case models.FlowConversions, models.FlowAudience:
		client, err := ads.NewClient(ctx, cfg.Ads, ads.WithRetry(policy), ads.WithLogger(logger.Named("ads")))
		if err != nil {
			return nil, err
		}
		if flow == models.FlowConversions {
			return &sync.ConversionSink{
				API:            client,
				ActionName:     cfg.ConversionActionName,
				ActionResource: cfg.ConversionActionResource,
				Cache:          cache,
				Logger:         logger.Named("conversions"),
			}, nil
		}
		return &sync.AudienceSink{
			API:          client,
			ListName:     cfg.AudienceListName,
			ListResource: cfg.AudienceListResource,
			LifespanDays: cfg.AudienceLifespanDays,
			Cache:        cache,
			Logger:       logger.Named("audience"),
		}, nil
	}

	return nil, fmt.Errorf("unknown flow %q", flow)
}

// recordRun persists the run summary and the per-flow sync state.
func recordRun(ledger *sql.DB, run *models.SyncRun, runErr error, logger *zap.Logger) {
	if err := db.SaveRun(ledger, run); err != nil {
		logger.Warn("failed to save run", zap.String("run_id", run.ID), zap.Error(err))
	}

	if runErr != nil {
		msg := runErr.Error()
		if err := db.UpdateSyncStatus(ledger, string(run.Flow), models.SyncStatusError, &msg); err != nil {
			logger.Warn("failed to record sync status", zap.Error(err))
		}
		return
	}

	finished := time.Now().UTC()
	if run.FinishedAt != nil {
		finished = *run.FinishedAt
	}
	if err := db.MarkSyncComplete(ledger, string(run.Flow), run.ID, finished); err != nil {
		logger.Warn("failed to mark sync complete", zap.Error(err))
	}
}

// ParseFlowArg validates the flow named on the command line.
func ParseFlowArg(args []string) (models.Flow, error) {
	if len(args) == 0 {
		return "", errors.New("sync requires a flow: conversions, audience, or export")
	}
	flow, ok := models.ParseFlow(args[0])
	if !ok {
		return "", fmt.Errorf("unknown flow %q (valid: conversions, audience, export)", args[0])
	}
	return flow, nil
}
