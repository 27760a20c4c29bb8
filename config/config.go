// ABOUTME: Injected runtime configuration for the sync pipeline
// ABOUTME: Loads .env, XDG config.yaml, and LEADSYNC_* environment variables via viper
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/harperreed/leadsync/errs"
	"github.com/harperreed/leadsync/models"
)

// EnvPrefix is prepended to every setting's environment variable.
const EnvPrefix = "LEADSYNC"

const dateLayout = "2006-01-02"

// AdsConfig holds Google Ads API credentials and account ids.
type AdsConfig struct {
	DeveloperToken  string
	ClientID        string
	ClientSecret    string
	RefreshToken    string
	CustomerID      string
	LoginCustomerID string
	APIVersion      string
	BaseURL         string
}

// Config is everything a run needs. Nothing in the pipeline reads globals.
type Config struct {
	CRMBaseURL    string
	CRMAPIKey     string
	CRMPageSize   int
	CRMMaxRecords int

	CampaignStart    time.Time
	ContactsFullScan bool
	StageAllowlist   []string

	DefaultCountryCode string
	SubscriberLength   int
	CountryRegion      string
	Currency           string

	Ads AdsConfig

	ConversionActionName     string
	ConversionActionResource string
	AudienceListName         string
	AudienceListResource     string
	AudienceLifespanDays     int

	ExportPath string
	DBPath     string
	RetryMax   int

	LogLevel  string
	LogFormat string
}

// ConfigDir returns the XDG directory searched for config.yaml.
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, "leadsync")
}

// DefaultDBPath returns the XDG-compliant run ledger path.
func DefaultDBPath() string {
	return filepath.Join(xdg.DataHome, "leadsync", "leadsync.db")
}

// Load reads .env (if present), config.yaml (if present), and the environment.
// Environment variables win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(ConfigDir())
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return FromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crm_page_size", 100)
	v.SetDefault("crm_max_records", 10000)
	v.SetDefault("contacts_full_scan", false)
	v.SetDefault("default_country_code", "254")
	v.SetDefault("subscriber_length", 9)
	v.SetDefault("country_region", "KE")
	v.SetDefault("currency", "KES")
	v.SetDefault("ads_api_version", "v21")
	v.SetDefault("ads_base_url", "https://googleads.googleapis.com")
	v.SetDefault("audience_lifespan_days", 540)
	v.SetDefault("export_path", "enrolled-customers.xlsx")
	v.SetDefault("db_path", DefaultDBPath())
	v.SetDefault("retry_max", 3)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
}

// FromViper maps a populated viper instance onto Config.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		CRMBaseURL:         strings.TrimRight(v.GetString("crm_base_url"), "/"),
		CRMAPIKey:          v.GetString("crm_api_key"),
		CRMPageSize:        v.GetInt("crm_page_size"),
		CRMMaxRecords:      v.GetInt("crm_max_records"),
		ContactsFullScan:   v.GetBool("contacts_full_scan"),
		StageAllowlist:     splitList(v.Get("stage_allowlist")),
		DefaultCountryCode: strings.TrimPrefix(v.GetString("default_country_code"), "+"),
		SubscriberLength:   v.GetInt("subscriber_length"),
		CountryRegion:      strings.ToUpper(v.GetString("country_region")),
		Currency:           strings.ToUpper(v.GetString("currency")),
		Ads: AdsConfig{
			DeveloperToken:  v.GetString("ads_developer_token"),
			ClientID:        v.GetString("ads_client_id"),
			ClientSecret:    v.GetString("ads_client_secret"),
			RefreshToken:    v.GetString("ads_refresh_token"),
			CustomerID:      digitsOnly(v.GetString("ads_customer_id")),
			LoginCustomerID: digitsOnly(v.GetString("ads_login_customer_id")),
			APIVersion:      v.GetString("ads_api_version"),
			BaseURL:         strings.TrimRight(v.GetString("ads_base_url"), "/"),
		},
		ConversionActionName:     v.GetString("conversion_action_name"),
		ConversionActionResource: v.GetString("conversion_action_resource"),
		AudienceListName:         v.GetString("audience_list_name"),
		AudienceListResource:     v.GetString("audience_list_resource"),
		AudienceLifespanDays:     v.GetInt("audience_lifespan_days"),
		ExportPath:               v.GetString("export_path"),
		DBPath:                   v.GetString("db_path"),
		RetryMax:                 v.GetInt("retry_max"),
		LogLevel:                 v.GetString("log_level"),
		LogFormat:                v.GetString("log_format"),
	}

	if raw := strings.TrimSpace(v.GetString("campaign_start")); raw != "" {
		start, err := parseDate(raw)
		if err != nil {
			return nil, errs.Config("config", "set "+envName("campaign_start")+" as YYYY-MM-DD",
				"invalid campaign start %q: %v", raw, err)
		}
		cfg.CampaignStart = start
	}

	return cfg, nil
}

// ModifiedSince is the contact fetch window, or nil when full scans are enabled.
func (c *Config) ModifiedSince() *time.Time {
	if c.ContactsFullScan || c.CampaignStart.IsZero() {
		return nil
	}
	t := c.CampaignStart
	return &t
}

// Validate checks the settings a flow needs before any network call is made.
// Every missing variable is reported at once.
func (c *Config) Validate(flow models.Flow) error {
	var missing []string
	require := func(value, key string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, envName(key))
		}
	}

	require(c.CRMBaseURL, "crm_base_url")
	require(c.CRMAPIKey, "crm_api_key")
	if c.CampaignStart.IsZero() {
		missing = append(missing, envName("campaign_start"))
	}
	if len(c.StageAllowlist) == 0 {
		missing = append(missing, envName("stage_allowlist"))
	}

	switch flow {
	case models.FlowConversions, models.FlowAudience:
		require(c.Ads.DeveloperToken, "ads_developer_token")
		require(c.Ads.ClientID, "ads_client_id")
		require(c.Ads.ClientSecret, "ads_client_secret")
		require(c.Ads.RefreshToken, "ads_refresh_token")
		require(c.Ads.CustomerID, "ads_customer_id")
		if flow == models.FlowConversions {
			require(c.ConversionActionName, "conversion_action_name")
		} else {
			require(c.AudienceListName, "audience_list_name")
		}
	case models.FlowExport:
		require(c.ExportPath, "export_path")
	default:
		return errs.Config("config", "use one of: conversions, audience, export", "unknown flow %q", flow)
	}

	if len(missing) > 0 {
		return errs.Config("config",
			"set "+strings.Join(missing, ", ")+" in the environment or .env before syncing",
			"missing required settings: %s", strings.Join(missing, ", "))
	}

	if c.CRMPageSize <= 0 || c.CRMMaxRecords <= 0 {
		return errs.Config("config", "use positive values for "+envName("crm_page_size")+" and "+envName("crm_max_records"),
			"invalid paging: page size %d, ceiling %d", c.CRMPageSize, c.CRMMaxRecords)
	}
	if digitsOnly(c.DefaultCountryCode) != c.DefaultCountryCode || c.DefaultCountryCode == "" {
		return errs.Config("config", "set "+envName("default_country_code")+" to digits only, e.g. 254",
			"invalid country code %q", c.DefaultCountryCode)
	}
	if c.SubscriberLength <= 0 {
		return errs.Config("config", "set "+envName("subscriber_length")+" to the national number length",
			"invalid subscriber length %d", c.SubscriberLength)
	}
	if flow == models.FlowAudience && (c.AudienceLifespanDays <= 0 || c.AudienceLifespanDays > 540) {
		return errs.Config("config", "set "+envName("audience_lifespan_days")+" between 1 and 540",
			"invalid membership lifespan %d", c.AudienceLifespanDays)
	}

	return nil
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(key)
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func splitList(raw any) []string {
	var parts []string
	switch val := raw.(type) {
	case nil:
		return nil
	case string:
		parts = strings.Split(val, ",")
	case []string:
		parts = val
	case []any:
		for _, item := range val {
			parts = append(parts, fmt.Sprint(item))
		}
	default:
		parts = []string{fmt.Sprint(val)}
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
