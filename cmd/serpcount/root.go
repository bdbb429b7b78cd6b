package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/FranksOps/serpcount/internal/app"
	"github.com/FranksOps/serpcount/internal/config"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const longHelp = `Scrape the number of Google search results for the given keywords and
print them ranked by count, highest first. Keywords that could not be
processed are reported with a count of -1.

Keywords come either from the command line or from a file given with
--infile, one keyword per line. Every setting can also be provided through
a config file (--config) or SERPCOUNT_* environment variables.`

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	v := viper.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:     "serpcount [flags] (KEYWORD... | -f FILE)",
		Short:   "Count Google search results for a list of keywords",
		Long:    longHelp,
		Version: version,
		Args:    cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := initViper(v, cmd, cfgFile); err != nil {
				return err
			}
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			keywords, err := config.ResolveKeywords(args, cfg.InFile)
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true

			logger := newLogger(stderr, cfg.Verbosity, cfg.Quiet)
			if cfg.Verbosity >= 2 {
				logger.Debug("configuration", "settings", v.AllSettings())
			}

			streams := app.Streams{
				Stdout: stdout,
				Stderr: stderr,
				Color:  stderr == io.Writer(os.Stderr) && !color.NoColor,
			}
			_, err = app.Run(cmd.Context(), cfg, keywords, streams, app.Options{Logger: logger})
			return err
		},
	}
	// Errors are printed by exitCode, which stays silent on interrupt.
	cmd.SilenceErrors = true
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	f := cmd.Flags()
	f.StringVar(&cfgFile, "config", "", "config file (yaml, toml or json)")
	f.StringP(config.KeyInFile, "f", "", "input file, each line is considered a keyword")
	f.StringP(config.KeyOutFile, "o", "", "output file; if not set, results are written to the console")
	f.BoolP(config.KeyAppend, "a", false, "append output to OUTFILE instead of overwriting")
	f.StringP(config.KeyDelim, "d", ",", "delimiter")
	f.IntP(config.KeyWait, "w", 5, "minimum wait in seconds before processing the next keyword")
	f.IntP(config.KeyWaitFuzz, "z", 5, "add up to this many random seconds to wait times")
	f.StringP(config.KeyTemplate, "t", "%s", "template string, substituting '%s' with the current keyword")
	f.StringP(config.KeyLanguage, "l", "en", "language passed as the hl= query parameter")
	f.StringP(config.KeySite, "s", "com", "top level domain used for the search url")
	f.BoolP(config.KeyDryRun, "y", false, "dry run, no requests are made")
	f.BoolP(config.KeyNoWrite, "n", false, "do not write any results")
	f.String(config.KeyFormat, "delimited", "output format: delimited, ndjson, sqlite or xlsx")
	f.Duration(config.KeyTimeout, config.Defaults().Timeout, "per-request timeout")
	f.String(config.KeyFingerprint, "go", "TLS fingerprint: go, chrome, firefox, safari or random")
	f.StringSlice(config.KeyProxy, nil, "proxy URL, repeatable")
	f.String(config.KeyProxyFile, "", "file with one proxy URL per line")
	f.Bool(config.KeyBrowser, false, "render result pages in headless Chrome")
	f.String(config.KeyBrowserPath, "", "path to the Chrome executable")
	f.String(config.KeyEndpoint, "", "search endpoint replacing https://www.google.<site>/search")
	f.String(config.KeyMetricsAddr, "", "serve Prometheus metrics on this address while running")
	f.String(config.KeySummaryFormat, config.SummaryText, "summary format: text or json")
	f.CountP(config.KeyVerbose, "v", "verbose mode (use -vv for debug output)")
	f.BoolP(config.KeyQuiet, "q", false, "quiet mode (disables summary)")
	_ = f.MarkHidden(config.KeyEndpoint)

	return cmd
}

func initViper(v *viper.Viper, cmd *cobra.Command, cfgFile string) error {
	config.SetDefaults(v)
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}
	v.SetEnvPrefix(config.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	}
	return nil
}

// newLogger maps -v/-vv/-q onto slog levels: WARN by default, INFO, DEBUG,
// and effectively nothing when quiet.
func newLogger(w io.Writer, verbosity int, quiet bool) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case quiet:
		level = slog.LevelError + 4
	case verbosity >= 2:
		level = slog.LevelDebug
	case verbosity == 1:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
