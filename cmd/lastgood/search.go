package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ZebulonRouseFrantzich/lastgood/internal/cache"
	"github.com/ZebulonRouseFrantzich/lastgood/internal/label"
	"github.com/ZebulonRouseFrantzich/lastgood/internal/logging"
	"github.com/ZebulonRouseFrantzich/lastgood/internal/manifest"
	"github.com/ZebulonRouseFrantzich/lastgood/internal/platform"
	"github.com/ZebulonRouseFrantzich/lastgood/internal/release"
	"github.com/ZebulonRouseFrantzich/lastgood/internal/report"
	"github.com/ZebulonRouseFrantzich/lastgood/internal/search"
	"github.com/ZebulonRouseFrantzich/lastgood/internal/settings"
	"github.com/ZebulonRouseFrantzich/lastgood/internal/targets"
)

// runSearch resolves settings, builds the requirement, runs the search and
// prints the report.
func (a *app) runSearch(ctx context.Context) error {
	if _, err := settings.ReadConfig(a.v); err != nil {
		return &release.InvalidConfigurationError{Field: "config", Reason: err.Error()}
	}
	s, err := settings.Load(a.v)
	if err != nil {
		return err
	}

	log, err := logging.New(a.stderr, s.LogLevel)
	if err != nil {
		return &release.InvalidConfigurationError{Field: settings.KeyLogLevel, Reason: err.Error()}
	}
	logger := logging.NewAdapter(log, logrus.Fields{"channel": s.Channel})

	info, err := a.hostInfo(ctx, s.Host)
	if err != nil {
		return err
	}
	host, err := info.HostTarget()
	if err != nil {
		logger.Debug("host has no known target triple", "os", info.OS, "arch", info.Arch)
		host = ""
	}

	data, err := loadPlatforms(ctx, s.Platforms, info)
	if err != nil {
		return err
	}
	logger.Debug("platform data loaded",
		"version", data.Version(),
		"tier1", len(data.Tier1()),
		"exceptions", data.ExceptionComponents())
	tgts, err := data.Resolve(s.Targets, host)
	if err != nil {
		return err
	}

	req := release.Requirement{
		Channel:    s.Channel,
		Profile:    s.Profile,
		Components: s.Components,
		Mode:       s.Targets,
		Targets:    tgts,
		Host:       host,
		MaxAgeDays: s.MaxAgeDays,
	}
	if err := req.Validate(); err != nil {
		return err
	}

	verifier, err := manifest.NewVerifier(s.Verify, s.Keyring)
	if err != nil {
		return &release.InvalidConfigurationError{Field: settings.KeyKeyring, Reason: err.Error()}
	}

	opts := []manifest.Option{
		manifest.WithBaseURL(s.BaseURL),
		manifest.WithTimeout(s.Timeout),
		manifest.WithRetries(s.Retries),
		manifest.WithUserAgent("lastgood/" + Version),
		manifest.WithVerifier(verifier),
		manifest.WithLogger(logger.With("component", "manifest")),
	}
	if s.Cache {
		store, err := cache.Open(s.CachePath)
		if err != nil {
			logger.Warn("manifest cache disabled", "path", s.CachePath, "error", err)
		} else {
			defer store.Close()
			if n, err := store.Len(ctx); err == nil {
				logger.Debug("manifest cache opened", "path", s.CachePath, "entries", n)
			}
			opts = append(opts, manifest.WithCache(store))
		}
	}
	client := manifest.NewClient(opts...)

	engineOpts := []search.Option{
		search.WithExceptions(data),
		search.WithLogger(logger.With("component", "search")),
	}
	if s.Progress {
		bar := newProgress(a.stderr)
		defer bar.finish()
		engineOpts = append(engineOpts, search.WithObserver(bar.observe))
	}

	logger.Info("searching",
		"profile", req.Profile,
		"targets", len(req.Targets),
		"max_age", req.MaxAgeDays,
		"platform_data", data.Version(),
	)
	outcome, err := search.NewEngine(client, engineOpts...).Find(ctx, req)
	if err != nil {
		return err
	}

	lbl, err := label.Format(req.Channel, outcome, s.ForceDate)
	if err != nil {
		return err
	}
	return report.Write(a.stdout, s.Output, report.New(req, outcome, lbl, data.Version()))
}

// hostInfo describes the platform to check in current-host mode. An explicit
// triple wins over detection.
func (a *app) hostInfo(ctx context.Context, override release.Target) (*platform.Info, error) {
	if override != "" {
		return platform.InfoForTarget(override), nil
	}
	info, err := a.detector.Detect(ctx)
	if err != nil {
		return nil, fmt.Errorf("detect platform: %w", err)
	}
	return info, nil
}

func loadPlatforms(ctx context.Context, path string, info *platform.Info) (*targets.Data, error) {
	if path == "" {
		return targets.Default(ctx, info)
	}
	data, err := targets.LoadFile(ctx, path, info)
	if err != nil {
		return nil, &release.InvalidConfigurationError{Field: settings.KeyPlatforms, Reason: err.Error()}
	}
	return data, nil
}
