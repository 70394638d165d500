// Package settings resolves lastgood's configuration from flags, the
// environment, a TOML config file and built-in defaults, in that order of
// precedence.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/ZebulonRouseFrantzich/lastgood/internal/manifest"
	"github.com/ZebulonRouseFrantzich/lastgood/internal/release"
	"github.com/ZebulonRouseFrantzich/lastgood/internal/report"
)

// EnvPrefix prefixes every environment variable, e.g. LASTGOOD_MAX_AGE.
const EnvPrefix = "LASTGOOD"

// Configuration keys. Flag names match the keys except --component, which
// feeds KeyComponents.
const (
	KeyConfig     = "config"
	KeyChannel    = "channel"
	KeyProfile    = "profile"
	KeyComponents = "components"
	KeyMaxAge     = "max-age"
	KeyTargets    = "targets"
	KeyHost       = "host"
	KeyForceDate  = "force-date"
	KeyOutput     = "output"
	KeyLogLevel   = "log-level"
	KeyTimeout    = "timeout"
	KeyRetries    = "retries"
	KeyBaseURL    = "base-url"
	KeyVerify     = "verify"
	KeyKeyring    = "keyring"
	KeyPlatforms  = "platforms"
	KeyCache      = "cache"
	KeyCachePath  = "cache-path"
	KeyProgress   = "progress"
)

// Settings is the resolved configuration of one invocation.
type Settings struct {
	Channel    release.Channel
	Profile    release.Profile
	Components []string
	MaxAgeDays int
	Targets    release.TargetMode
	Host       release.Target
	ForceDate  bool

	Output   report.Format
	LogLevel string

	Timeout time.Duration
	Retries int
	BaseURL string
	Verify  manifest.Method
	Keyring string

	Platforms string
	Cache     bool
	CachePath string
	Progress  bool
}

// DefaultConfigPath returns ~/.config/lastgood/config.toml.
func DefaultConfigPath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("find home directory: %w", err)
	}
	return filepath.Join(home, ".config", "lastgood", "config.toml"), nil
}

// DefaultCachePath returns ~/.cache/lastgood/manifests.db.
func DefaultCachePath() (string, error) {
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("find home directory: %w", err)
	}
	return filepath.Join(home, ".cache", "lastgood", "manifests.db"), nil
}

// New returns a viper instance with lastgood's defaults and environment
// binding. Flags are bound by the caller.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyChannel, string(release.Stable))
	v.SetDefault(KeyProfile, string(release.ProfileDefault))
	v.SetDefault(KeyComponents, []string{})
	v.SetDefault(KeyMaxAge, release.DefaultMaxAgeDays)
	v.SetDefault(KeyTargets, string(release.TargetsAll))
	v.SetDefault(KeyHost, "")
	v.SetDefault(KeyForceDate, false)
	v.SetDefault(KeyOutput, string(report.FormatText))
	v.SetDefault(KeyLogLevel, "warn")
	v.SetDefault(KeyTimeout, manifest.DefaultTimeout)
	v.SetDefault(KeyRetries, 0)
	v.SetDefault(KeyBaseURL, manifest.DefaultBaseURL)
	v.SetDefault(KeyVerify, string(manifest.MethodNone))
	v.SetDefault(KeyKeyring, "")
	v.SetDefault(KeyPlatforms, "")
	v.SetDefault(KeyCache, true)
	v.SetDefault(KeyCachePath, "")
	v.SetDefault(KeyProgress, false)

	return v
}

// ReadConfig merges the TOML config file into v. The file named by the
// config key (flag or LASTGOOD_CONFIG) must exist; the default location is
// optional. Returns the path used, or "" when no file was read.
func ReadConfig(v *viper.Viper) (string, error) {
	path := v.GetString(KeyConfig)
	explicit := path != ""
	if !explicit {
		var err error
		if path, err = DefaultConfigPath(); err != nil {
			return "", err
		}
	}

	path, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("expand config path: %w", err)
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return "", nil
		}
		return "", fmt.Errorf("config file %s: %w", path, err)
	}

	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return "", fmt.Errorf("read config %s: %w", path, err)
	}
	return path, nil
}

// Load resolves and validates every setting. Invalid values are reported
// as *release.InvalidConfigurationError.
func Load(v *viper.Viper) (*Settings, error) {
	channel, err := release.ParseChannel(v.GetString(KeyChannel))
	if err != nil {
		return nil, err
	}
	profile, err := release.ParseProfile(v.GetString(KeyProfile))
	if err != nil {
		return nil, err
	}
	mode, err := release.ParseTargetMode(v.GetString(KeyTargets))
	if err != nil {
		return nil, err
	}
	output, err := report.ParseFormat(v.GetString(KeyOutput))
	if err != nil {
		return nil, err
	}
	verify, err := manifest.ParseMethod(v.GetString(KeyVerify))
	if err != nil {
		return nil, &release.InvalidConfigurationError{Field: KeyVerify, Reason: err.Error()}
	}

	s := &Settings{
		Channel:    channel,
		Profile:    profile,
		Components: splitList(v.GetStringSlice(KeyComponents)),
		MaxAgeDays: v.GetInt(KeyMaxAge),
		Targets:    mode,
		Host:       release.Target(strings.TrimSpace(v.GetString(KeyHost))),
		ForceDate:  v.GetBool(KeyForceDate),
		Output:     output,
		LogLevel:   v.GetString(KeyLogLevel),
		Timeout:    v.GetDuration(KeyTimeout),
		Retries:    v.GetInt(KeyRetries),
		BaseURL:    strings.TrimSpace(v.GetString(KeyBaseURL)),
		Verify:     verify,
		Keyring:    v.GetString(KeyKeyring),
		Platforms:  v.GetString(KeyPlatforms),
		Cache:      v.GetBool(KeyCache),
		CachePath:  v.GetString(KeyCachePath),
		Progress:   v.GetBool(KeyProgress),
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	if err := s.expandPaths(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the values that have no parser of their own.
func (s *Settings) Validate() error {
	if s.MaxAgeDays < 0 {
		return &release.InvalidConfigurationError{
			Field:  KeyMaxAge,
			Reason: fmt.Sprintf("must not be negative, got %d", s.MaxAgeDays),
		}
	}
	if s.MaxAgeDays > release.MaxMaxAgeDays {
		return &release.InvalidConfigurationError{
			Field:  KeyMaxAge,
			Reason: fmt.Sprintf("must be at most %d days, got %d", release.MaxMaxAgeDays, s.MaxAgeDays),
		}
	}
	if s.Timeout <= 0 {
		return &release.InvalidConfigurationError{
			Field:  KeyTimeout,
			Reason: fmt.Sprintf("must be positive, got %s", s.Timeout),
		}
	}
	if s.Retries < 0 {
		return &release.InvalidConfigurationError{
			Field:  KeyRetries,
			Reason: fmt.Sprintf("must not be negative, got %d", s.Retries),
		}
	}
	if s.BaseURL == "" {
		return &release.InvalidConfigurationError{Field: KeyBaseURL, Reason: "must not be empty"}
	}
	if s.Verify == manifest.MethodGPG && s.Keyring == "" {
		return &release.InvalidConfigurationError{Field: KeyKeyring, Reason: "gpg verification needs --keyring"}
	}
	return nil
}

func (s *Settings) expandPaths() error {
	var err error
	if s.CachePath == "" {
		if s.CachePath, err = DefaultCachePath(); err != nil {
			return err
		}
	}
	for _, p := range []*string{&s.CachePath, &s.Keyring, &s.Platforms} {
		if *p == "" {
			continue
		}
		if *p, err = homedir.Expand(*p); err != nil {
			return &release.InvalidConfigurationError{Field: "path", Reason: err.Error()}
		}
	}
	return nil
}

// splitList accepts both repeated values and comma separated lists.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
