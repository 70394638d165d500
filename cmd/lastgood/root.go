package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ZebulonRouseFrantzich/lastgood/internal/manifest"
	"github.com/ZebulonRouseFrantzich/lastgood/internal/platform"
	"github.com/ZebulonRouseFrantzich/lastgood/internal/release"
	"github.com/ZebulonRouseFrantzich/lastgood/internal/settings"
)

// app carries the process-level dependencies of one invocation.
type app struct {
	stdout   io.Writer
	stderr   io.Writer
	detector platform.Detector
	v        *viper.Viper
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout:   stdout,
		stderr:   stderr,
		detector: platform.NewDetector(),
		v:        settings.New(),
	}
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lastgood",
		Short: "Find the most recent Rust toolchain that ships everything you need",
		Long: `lastgood walks a Rust release channel backward from its latest release and
prints the most recent toolchain whose manifest publishes every component of
the chosen profile for every requested target.

The printed label can be passed straight to rustup:

  rustup toolchain install "$(lastgood --channel nightly --profile complete)"`,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.NoArgs(cmd, args); err != nil {
				return &release.InvalidConfigurationError{Field: "arguments", Reason: err.Error()}
			}
			return nil
		},
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSearch(cmd.Context())
		},
	}
	cmd.SetVersionTemplate("lastgood {{.Version}}\n")
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &release.InvalidConfigurationError{Field: "flags", Reason: err.Error()}
	})

	flags := cmd.Flags()
	flags.String(settings.KeyConfig, "", "config file (default is $HOME/.config/lastgood/config.toml)")

	flags.StringP(settings.KeyChannel, "c", string(release.Stable), "release channel: stable, beta or nightly")
	flags.StringP(settings.KeyProfile, "p", string(release.ProfileDefault), "component profile: complete, default or minimal")
	flags.StringSlice("component", nil, "additional component to require (repeatable)")
	flags.IntP(settings.KeyMaxAge, "a", release.DefaultMaxAgeDays, "days to look back from the channel's latest release")
	flags.StringP(settings.KeyTargets, "t", string(release.TargetsAll), "targets to check: all (tier 1) or current")
	flags.String(settings.KeyHost, "", "host target triple (default is detected)")
	flags.BoolP(settings.KeyForceDate, "d", false, "print <channel>-<date> instead of a version")

	flags.StringP(settings.KeyOutput, "o", "text", "output format: text, json or yaml")
	flags.StringP(settings.KeyLogLevel, "l", "warn", "log level: debug, info, warn or error")
	flags.Bool(settings.KeyProgress, false, "show search progress on stderr")

	flags.Duration(settings.KeyTimeout, manifest.DefaultTimeout, "timeout for each manifest fetch")
	flags.Int(settings.KeyRetries, 0, "transport retries for each manifest fetch")
	flags.String(settings.KeyBaseURL, manifest.DefaultBaseURL, "Rust dist server")
	flags.String(settings.KeyVerify, string(manifest.MethodNone), "manifest verification: none, sha256 or gpg")
	flags.String(settings.KeyKeyring, "", "OpenPGP keyring for --verify gpg")

	flags.String(settings.KeyPlatforms, "", "Lua file replacing the built-in platform data")
	flags.Bool(settings.KeyCache, true, "cache dated manifests on disk")
	flags.String(settings.KeyCachePath, "", "manifest cache database (default is $HOME/.cache/lastgood/manifests.db)")

	flags.VisitAll(func(f *pflag.Flag) {
		key := f.Name
		if key == "component" {
			key = settings.KeyComponents
		}
		_ = a.v.BindPFlag(key, f)
	})

	return cmd
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, a *app) int {
	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		printError(a.stderr, err)
		return exitCode(err)
	}
	return exitOK
}
