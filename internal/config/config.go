package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/FranksOps/serpcount/internal/fingerprint"
	"github.com/FranksOps/serpcount/internal/serp"
	"github.com/FranksOps/serpcount/internal/storage"
	"github.com/FranksOps/serpcount/pkg/ratelimit"
	"github.com/spf13/viper"
)

// Keys under which settings are bound in viper. Flag names match.
const (
	KeyInFile        = "infile"
	KeyOutFile       = "outfile"
	KeyAppend        = "append"
	KeyDelim         = "delim"
	KeyWait          = "wait"
	KeyWaitFuzz      = "wait-fuzz"
	KeyTemplate      = "template"
	KeyLanguage      = "language"
	KeySite          = "site"
	KeyDryRun        = "dry-run"
	KeyNoWrite       = "no-write"
	KeyFormat        = "format"
	KeyTimeout       = "timeout"
	KeyFingerprint   = "fingerprint"
	KeyProxy         = "proxy"
	KeyProxyFile     = "proxy-file"
	KeyBrowser       = "browser"
	KeyBrowserPath   = "browser-path"
	KeyEndpoint      = "endpoint"
	KeyMetricsAddr   = "metrics-addr"
	KeySummaryFormat = "summary-format"
	KeyVerbose       = "verbose"
	KeyQuiet         = "quiet"
)

// EnvPrefix namespaces environment overrides, e.g. SERPCOUNT_WAIT=2.
const EnvPrefix = "SERPCOUNT"

// Summary formats.
const (
	SummaryText = "text"
	SummaryJSON = "json"
)

// RunConfig is the validated configuration of one run.
type RunConfig struct {
	InFile string

	Site      string
	Language  string
	Template  string
	Delimiter string
	// Wait is the minimum pause in seconds; Fuzz is added for the maximum.
	Wait int
	Fuzz int

	OutFile string
	Append  bool
	Format  storage.Format
	DryRun  bool
	NoWrite bool

	Timeout     time.Duration
	Fingerprint fingerprint.Profile
	Proxies     []string
	ProxyFile   string
	Browser     bool
	BrowserPath string
	// Endpoint replaces the search URL base, e.g. for a local mirror.
	Endpoint string

	MetricsAddr   string
	SummaryFormat string
	Verbosity     int
	Quiet         bool
}

// Defaults returns the configuration used when nothing is set.
func Defaults() RunConfig {
	return RunConfig{
		Site:          "com",
		Language:      "en",
		Template:      serp.Placeholder,
		Delimiter:     ",",
		Wait:          5,
		Fuzz:          5,
		Format:        storage.FormatDelimited,
		Timeout:       30 * time.Second,
		Fingerprint:   fingerprint.ProfileGo,
		SummaryFormat: SummaryText,
	}
}

// SetDefaults registers Defaults with v.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault(KeySite, d.Site)
	v.SetDefault(KeyLanguage, d.Language)
	v.SetDefault(KeyTemplate, d.Template)
	v.SetDefault(KeyDelim, d.Delimiter)
	v.SetDefault(KeyWait, d.Wait)
	v.SetDefault(KeyWaitFuzz, d.Fuzz)
	v.SetDefault(KeyFormat, string(d.Format))
	v.SetDefault(KeyTimeout, d.Timeout)
	v.SetDefault(KeyFingerprint, string(d.Fingerprint))
	v.SetDefault(KeySummaryFormat, d.SummaryFormat)
}

// Load builds a RunConfig from v and validates it.
func Load(v *viper.Viper) (RunConfig, error) {
	format, err := storage.ParseFormat(v.GetString(KeyFormat))
	if err != nil {
		return RunConfig{}, fmt.Errorf("config: %w", err)
	}
	profile, err := fingerprint.ParseProfile(v.GetString(KeyFingerprint))
	if err != nil {
		return RunConfig{}, fmt.Errorf("config: %w", err)
	}

	cfg := RunConfig{
		InFile:        v.GetString(KeyInFile),
		Site:          v.GetString(KeySite),
		Language:      v.GetString(KeyLanguage),
		Template:      v.GetString(KeyTemplate),
		Delimiter:     v.GetString(KeyDelim),
		Wait:          v.GetInt(KeyWait),
		Fuzz:          v.GetInt(KeyWaitFuzz),
		OutFile:       v.GetString(KeyOutFile),
		Append:        v.GetBool(KeyAppend),
		Format:        format,
		DryRun:        v.GetBool(KeyDryRun),
		NoWrite:       v.GetBool(KeyNoWrite),
		Timeout:       v.GetDuration(KeyTimeout),
		Fingerprint:   profile,
		Proxies:       v.GetStringSlice(KeyProxy),
		ProxyFile:     v.GetString(KeyProxyFile),
		Browser:       v.GetBool(KeyBrowser),
		BrowserPath:   v.GetString(KeyBrowserPath),
		Endpoint:      v.GetString(KeyEndpoint),
		MetricsAddr:   v.GetString(KeyMetricsAddr),
		SummaryFormat: strings.ToLower(v.GetString(KeySummaryFormat)),
		Verbosity:     v.GetInt(KeyVerbose),
		Quiet:         v.GetBool(KeyQuiet),
	}
	if err := cfg.Validate(); err != nil {
		return RunConfig{}, err
	}
	return cfg, nil
}

// MaxWait is the upper pause bound in seconds.
func (c RunConfig) MaxWait() int {
	return c.Wait + c.Fuzz
}

// Validate reports every invalid setting at once.
func (c RunConfig) Validate() error {
	var errs []error
	if c.Delimiter == "" {
		errs = append(errs, errors.New("--delim can't be an empty string"))
	}
	if err := serp.ValidateTemplate(c.Template); err != nil {
		errs = append(errs, fmt.Errorf("--template must contain exactly one occurrence of %q", serp.Placeholder))
	}
	if c.Wait < 0 {
		errs = append(errs, errors.New("--wait must be a positive value"))
	}
	if c.Fuzz < 0 {
		errs = append(errs, errors.New("--wait-fuzz must be a positive value"))
	}
	if c.Wait > ratelimit.MaxSeconds || (c.Wait >= 0 && c.Fuzz > ratelimit.MaxSeconds-c.Wait) {
		errs = append(errs, fmt.Errorf("--wait plus --wait-fuzz can't exceed %d seconds", ratelimit.MaxSeconds))
	}
	if c.Site == "" {
		errs = append(errs, errors.New("--site can't be empty"))
	}
	if c.Language == "" {
		errs = append(errs, errors.New("--language can't be empty"))
	}
	if c.Timeout < 0 {
		errs = append(errs, errors.New("--timeout can't be negative"))
	}
	if !c.Format.Console() && c.OutFile == "" && !c.NoWrite {
		errs = append(errs, fmt.Errorf("--format %s requires --outfile", c.Format))
	}
	if c.SummaryFormat != SummaryText && c.SummaryFormat != SummaryJSON {
		errs = append(errs, fmt.Errorf("--summary-format must be %s or %s", SummaryText, SummaryJSON))
	}
	if c.Verbosity > 0 && c.Quiet {
		errs = append(errs, errors.New("-v and -q are mutually exclusive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
