// ABOUTME: Data models for the CRM-to-Google-Ads sync pipeline
// ABOUTME: Defines Contact, Deal, ConversionRecord, SyncResult, SyncRun and phase constants
package models

import (
	"time"
)

// Contact is a CRM contact as fetched for a single run. Never persisted.
type Contact struct {
	ID         string            `json:"id"`
	Email      string            `json:"email,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	ModifiedAt time.Time         `json:"modified_at"`
}

// Deal is a CRM deal as fetched for a single run. Never persisted.
type Deal struct {
	ID               string    `json:"id"`
	StageID          string    `json:"stage_id"`
	LinkedContactIDs []string  `json:"linked_contact_ids,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	Amount           float64   `json:"amount"`
}

// ConversionRecord holds only hashed identifiers. An empty hashed field means
// the identifier was absent.
type ConversionRecord struct {
	HashedEmail     string    `json:"hashed_email,omitempty"`
	HashedPhone     string    `json:"hashed_phone,omitempty"`
	HashedFirstName string    `json:"hashed_first_name,omitempty"`
	HashedLastName  string    `json:"hashed_last_name,omitempty"`
	PostalCode      string    `json:"postal_code,omitempty"`
	CountryCode     string    `json:"country_code,omitempty"`
	ConversionTime  time.Time `json:"conversion_time"`
	OrderID         string    `json:"order_id"`
	Value           float64   `json:"value"`
	Currency        string    `json:"currency"`
}

// HasIdentifier reports whether the record can be matched by the ad platform.
func (r ConversionRecord) HasIdentifier() bool {
	return r.HashedEmail != "" || r.HashedPhone != ""
}

// HasAddress reports whether the record carries a complete address identifier.
func (r ConversionRecord) HasAddress() bool {
	return r.HashedFirstName != "" && r.HashedLastName != "" && r.PostalCode != "" && r.CountryCode != ""
}

// SyncResult is the per-run counter set printed at REPORT and stored in the run ledger.
type SyncResult struct {
	TotalCandidateDeals int `json:"total_candidate_deals"`
	Skipped             int `json:"skipped"`
	Resolved            int `json:"resolved"`
	Unresolved          int `json:"unresolved"`
	Normalized          int `json:"normalized"`
	Excluded            int `json:"excluded"`
	Deduplicated        int `json:"deduplicated"`
	Duplicates          int `json:"duplicates"`
	Prepared            int `json:"prepared"`
	Attempted           int `json:"attempted"`
	Uploaded            int `json:"uploaded"`
	Failed              int `json:"failed"`
}

// Flow names one of the three pipelines sharing the sync core.
type Flow string

const (
	FlowConversions Flow = "conversions"
	FlowAudience    Flow = "audience"
	FlowExport      Flow = "export"
)

// Flows lists every supported flow in display order.
var Flows = []Flow{FlowConversions, FlowAudience, FlowExport}

// ParseFlow maps a command-line name to a Flow.
func ParseFlow(s string) (Flow, bool) {
	for _, f := range Flows {
		if string(f) == s {
			return f, true
		}
	}
	return "", false
}

// Phase is a state of the sync orchestrator.
type Phase string

const (
	PhaseInit               Phase = "INIT"
	PhaseFetchContacts      Phase = "FETCH_CONTACTS"
	PhaseFetchDeals         Phase = "FETCH_DEALS"
	PhaseClassifyAndResolve Phase = "CLASSIFY_AND_RESOLVE"
	PhaseNormalizeDedupe    Phase = "NORMALIZE_DEDUPE_HASH"
	PhaseResolveTarget      Phase = "RESOLVE_TARGET"
	PhaseUpload             Phase = "UPLOAD"
	PhaseReport             Phase = "REPORT"
	PhaseDone               Phase = "DONE"
	PhaseFailed             Phase = "FAILED"
)

// Terminal reports whether no transition leaves the phase.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseFailed
}

// Target kinds.
const (
	TargetConversionAction = "conversion_action"
	TargetUserList         = "user_list"
	TargetFile             = "file"
)

// Target is the resolved destination of an upload.
type Target struct {
	Kind         string `json:"kind"`
	Name         string `json:"name"`
	ResourceName string `json:"resource_name,omitempty"`
}

// UploadResult is what a sink reports for one submission.
type UploadResult struct {
	Attempted int      `json:"attempted"`
	Success   int      `json:"success"`
	Failed    int      `json:"failed"`
	Messages  []string `json:"messages,omitempty"`
}

// SyncRun is the summary of one invocation. It is the only pipeline output that
// outlives the run.
type SyncRun struct {
	ID         string     `json:"id"`
	Flow       Flow       `json:"flow"`
	Phase      Phase      `json:"phase"`
	Result     SyncResult `json:"result"`
	Target     *Target    `json:"target,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
	Failures   []string   `json:"failures,omitempty"`
}

// Succeeded reports whether the run finished without a fatal or upload error.
func (r *SyncRun) Succeeded() bool {
	return r.Phase == PhaseDone && r.Error == ""
}

// Sync status constants.
const (
	SyncStatusIdle    = "idle"
	SyncStatusSyncing = "syncing"
	SyncStatusError   = "error"
)

type SyncState struct {
	Service      string     `json:"service"`
	LastSyncTime *time.Time `json:"last_sync_time,omitempty"`
	LastRunID    string     `json:"last_run_id,omitempty"`
	Status       string     `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
