// ABOUTME: Upload sinks for conversions, customer match audiences, and spreadsheet export
// ABOUTME: Each resolves its target by override, ledger cache, exact-name search, then create
package sync

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/harperreed/leadsync/ads"
	"github.com/harperreed/leadsync/db"
	"github.com/harperreed/leadsync/errs"
	"github.com/harperreed/leadsync/export"
	"github.com/harperreed/leadsync/models"
)

// MaxConversionsPerRequest is the Google Ads limit for uploadClickConversions.
const MaxConversionsPerRequest = 2000

// TargetCache remembers resolved resource names between runs.
type TargetCache interface {
	GetTarget(kind, name, customerID string) (string, error)
	SaveTarget(kind, name, customerID, resourceName string) error
}

// LedgerCache is a TargetCache backed by the run ledger.
type LedgerCache struct {
	DB *sql.DB
}

func (c LedgerCache) GetTarget(kind, name, customerID string) (string, error) {
	return db.GetTarget(c.DB, kind, name, customerID)
}

func (c LedgerCache) SaveTarget(kind, name, customerID, resourceName string) error {
	return db.SaveTarget(c.DB, kind, name, customerID, resourceName)
}

// ConversionsAPI is the slice of the Google Ads client the conversion sink uses.
type ConversionsAPI interface {
	CustomerID() string
	FindConversionAction(ctx context.Context, name string) (string, bool, error)
	UploadClickConversions(ctx context.Context, conversionAction string, records []models.ConversionRecord) (ads.PartialFailure, error)
}

// AudienceAPI is the slice of the Google Ads client the audience sink uses.
type AudienceAPI interface {
	CustomerID() string
	FindUserList(ctx context.Context, name string) (string, bool, error)
	CreateUserList(ctx context.Context, name string, lifespanDays int) (string, error)
	CreateCustomerMatchJob(ctx context.Context, userList string) (string, error)
	AddJobOperations(ctx context.Context, job string, records []models.ConversionRecord) (ads.PartialFailure, error)
	RunJob(ctx context.Context, job string) (string, error)
}

// matchable drops records the platform could never match.
func matchable(records []models.ConversionRecord) []models.ConversionRecord {
	out := make([]models.ConversionRecord, 0, len(records))
	for _, r := range records {
		if r.HasIdentifier() {
			out = append(out, r)
		}
	}
	return out
}

// resolveCached looks up a cached resource, falling back to find and then
// caching the answer. Cache errors are logged and never fail the run.
func resolveCached(ctx context.Context, cache TargetCache, logger *zap.Logger, kind, name, customerID string,
	find func(context.Context) (string, bool, error)) (string, bool, error) {
	if cache != nil {
		rn, err := cache.GetTarget(kind, name, customerID)
		if err != nil {
			logger.Warn("target cache read failed", zap.String("kind", kind), zap.Error(err))
		} else if rn != "" {
			logger.Debug("target cache hit", zap.String("kind", kind), zap.String("resource", rn))
			return rn, true, nil
		}
	}

	rn, ok, err := find(ctx)
	if err != nil || !ok {
		return "", ok, err
	}
	remember(cache, logger, kind, name, customerID, rn)
	return rn, true, nil
}

func remember(cache TargetCache, logger *zap.Logger, kind, name, customerID, rn string) {
	if cache == nil {
		return
	}
	if err := cache.SaveTarget(kind, name, customerID, rn); err != nil {
		logger.Warn("target cache write failed", zap.String("kind", kind), zap.Error(err))
	}
}

// ConversionSink uploads enhanced conversions to a named conversion action.
type ConversionSink struct {
	API ConversionsAPI
	// ActionName is the exact conversion action name.
	ActionName string
	// ActionResource, when set, skips lookup entirely.
	ActionResource string
	Cache          TargetCache
	Logger         *zap.Logger
}

func (s *ConversionSink) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// ResolveTarget finds the conversion action. A missing action is a configuration error.
func (s *ConversionSink) ResolveTarget(ctx context.Context) (models.Target, error) {
	target := models.Target{Kind: models.TargetConversionAction, Name: s.ActionName}
	if s.ActionResource != "" {
		target.ResourceName = s.ActionResource
		return target, nil
	}

	rn, ok, err := resolveCached(ctx, s.Cache, s.logger(), target.Kind, s.ActionName, s.API.CustomerID(),
		func(ctx context.Context) (string, bool, error) {
			return s.API.FindConversionAction(ctx, s.ActionName)
		})
	if err != nil {
		return target, err
	}
	if !ok {
		return target, errs.Config("resolve conversion action",
			fmt.Sprintf("create a conversion action named %q in Google Ads before syncing", s.ActionName),
			"conversion action %q not found in customer %s", s.ActionName, s.API.CustomerID())
	}
	target.ResourceName = rn
	return target, nil
}

// Upload sends records in request-sized batches. Partial failures are counted;
// a hard failure stops at the failing batch.
func (s *ConversionSink) Upload(ctx context.Context, target models.Target, records []models.ConversionRecord) (models.UploadResult, error) {
	records = matchable(records)
	res := models.UploadResult{Attempted: len(records)}

	for start := 0; start < len(records); start += MaxConversionsPerRequest {
		end := min(start+MaxConversionsPerRequest, len(records))
		batch := records[start:end]

		pf, err := s.API.UploadClickConversions(ctx, target.ResourceName, batch)
		if err != nil {
			res.Failed = res.Attempted - res.Success
			return res, err
		}
		failed := pf.Failed(len(batch))
		res.Success += len(batch) - failed
		res.Messages = append(res.Messages, pf.Messages...)
		s.logger().Debug("conversion batch uploaded",
			zap.Int("offset", start), zap.Int("size", len(batch)), zap.Int("failed", failed))
	}

	res.Failed = res.Attempted - res.Success
	return res, nil
}

// AudienceSink adds members to a Customer Match user list, creating it on first use.
type AudienceSink struct {
	API          AudienceAPI
	ListName     string
	ListResource string
	LifespanDays int
	Cache        TargetCache
	Logger       *zap.Logger
}

func (s *AudienceSink) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// ResolveTarget finds or creates the user list.
func (s *AudienceSink) ResolveTarget(ctx context.Context) (models.Target, error) {
	target := models.Target{Kind: models.TargetUserList, Name: s.ListName}
	if s.ListResource != "" {
		target.ResourceName = s.ListResource
		return target, nil
	}

	rn, ok, err := resolveCached(ctx, s.Cache, s.logger(), target.Kind, s.ListName, s.API.CustomerID(),
		func(ctx context.Context) (string, bool, error) {
			return s.API.FindUserList(ctx, s.ListName)
		})
	if err != nil {
		return target, err
	}
	if !ok {
		rn, err = s.API.CreateUserList(ctx, s.ListName, s.LifespanDays)
		if err != nil {
			return target, err
		}
		s.logger().Info("created user list", zap.String("resource", rn))
		remember(s.Cache, s.logger(), target.Kind, s.ListName, s.API.CustomerID(), rn)
	}
	target.ResourceName = rn
	return target, nil
}

// Upload runs one offline user data job: create, add members, run.
func (s *AudienceSink) Upload(ctx context.Context, target models.Target, records []models.ConversionRecord) (models.UploadResult, error) {
	records = matchable(records)
	res := models.UploadResult{Attempted: len(records)}
	if len(records) == 0 {
		return res, nil
	}

	job, err := s.API.CreateCustomerMatchJob(ctx, target.ResourceName)
	if err != nil {
		res.Failed = res.Attempted
		return res, err
	}

	pf, err := s.API.AddJobOperations(ctx, job, records)
	if err != nil {
		res.Failed = res.Attempted
		return res, err
	}
	res.Messages = pf.Messages
	failed := pf.Failed(len(records))

	if failed == len(records) {
		s.logger().Warn("every member was rejected, job not run", zap.String("job", job))
		res.Failed = failed
		return res, nil
	}

	op, err := s.API.RunJob(ctx, job)
	if err != nil {
		res.Failed = res.Attempted
		return res, err
	}
	s.logger().Info("customer match job started", zap.String("job", job), zap.String("operation", op))

	res.Success = len(records) - failed
	res.Failed = failed
	return res, nil
}

// ExportSink writes hashed records to a Customer Match spreadsheet.
type ExportSink struct {
	Path   string
	Logger *zap.Logger
}

// ResolveTarget checks the output directory exists.
func (s *ExportSink) ResolveTarget(ctx context.Context) (models.Target, error) {
	target := models.Target{Kind: models.TargetFile, Name: s.Path}
	abs, err := filepath.Abs(s.Path)
	if err != nil {
		return target, errs.Config("resolve export path", "set LEADSYNC_EXPORT_PATH to a writable file path",
			"invalid export path %q: %v", s.Path, err)
	}
	info, err := os.Stat(filepath.Dir(abs))
	if err != nil || !info.IsDir() {
		return target, errs.Config("resolve export path", "create the directory for LEADSYNC_EXPORT_PATH before exporting",
			"export directory %q does not exist", filepath.Dir(abs))
	}
	target.ResourceName = abs
	return target, nil
}

// Upload writes every matchable record as one spreadsheet row.
func (s *ExportSink) Upload(ctx context.Context, target models.Target, records []models.ConversionRecord) (models.UploadResult, error) {
	records = matchable(records)
	res := models.UploadResult{Attempted: len(records)}

	written, err := export.WriteFile(target.ResourceName, records)
	if err != nil {
		res.Failed = res.Attempted
		return res, err
	}
	res.Success = written
	res.Failed = res.Attempted - written
	if s.Logger != nil {
		s.Logger.Info("export written", zap.String("path", target.ResourceName), zap.Int("rows", written))
	}
	return res, nil
}
