package main

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pagebatch/pagebatch/config"
	"github.com/pagebatch/pagebatch/executable"
	"github.com/pagebatch/pagebatch/log"
)

// globalState is shared by the commands of a single invocation.
type globalState struct {
	v       *viper.Viper
	cfgFile string

	stdout io.Writer
	stderr io.Writer

	cfg    *config.Config
	logger *log.Logger
}

func newGlobalState(stdout, stderr io.Writer) *globalState {
	return &globalState{
		v:      viper.New(),
		stdout: stdout,
		stderr: stderr,
	}
}

// flagKeys maps flag names to configuration keys.
var flagKeys = map[string]string{ //nolint:gochecknoglobals
	"log-level":           "log_level",
	"log-category-filter": "log_category_filter",
	"debug":               "debug",
	"metrics-addr":        "metrics_addr",
	"traces-proto":        "traces.proto",
	"traces-endpoint":     "traces.endpoint",
	"traces-insecure":     "traces.insecure",
	"traces-verbose":      "traces.verbose",
	"continue-on-fail":    "continue_on_fail",
	"backend":             "backend",
	"install-root":        "install_root",
}

func newRootCommand(gs *globalState) *cobra.Command {
	root := &cobra.Command{
		Use:           "pagebatch",
		Short:         "Batch browser automation",
		Long:          `pagebatch runs a batch of page operations, one isolated browser session per item.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return gs.init(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&gs.cfgFile, "config", "", "config file (yaml, json or toml)")
	flags.String("log-level", "info", "log level: trace, debug, info, warn, error")
	flags.String("log-category-filter", "", "only log categories matching this regexp")
	flags.Bool("debug", false, "print debug messages regardless of the log level")
	flags.String("metrics-addr", "", "serve prometheus metrics on this address while running")
	flags.String("traces-proto", "", "export traces with this protocol: http or stdout")
	flags.String("traces-endpoint", "localhost:4318", "traces collector endpoint")
	flags.Bool("traces-insecure", false, "export traces without TLS")
	flags.Bool("traces-verbose", false, "log span activity")

	root.AddCommand(
		newRunCommand(gs),
		newResolveCommand(gs),
		newInstallCommand(gs),
	)

	return root
}

// init loads the configuration and sets up logging. Flags of cmd override
// file and environment values when set.
func (gs *globalState) init(cmd *cobra.Command) error {
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := gs.v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("binding flag %q: %w", name, err)
			}
		}
	}

	cfg, err := config.Load(gs.v, gs.cfgFile)
	if err != nil {
		return err
	}
	gs.cfg = cfg

	l := logrus.New()
	l.SetOutput(gs.stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	gs.logger = log.New(l, cfg.Debug, nil)
	if err := gs.logger.SetLevel(cfg.LogLevel); err != nil {
		return err
	}
	if err := gs.logger.SetCategoryFilter(cfg.LogCategoryFilter); err != nil {
		return err
	}

	return nil
}

// installRoot returns the configured install root or the default one.
func (gs *globalState) installRoot() (string, error) {
	if gs.cfg.InstallRoot != "" {
		return gs.cfg.InstallRoot, nil
	}
	root, err := executable.DefaultInstallRoot()
	if err != nil {
		return "", fmt.Errorf("finding the install root: %w", err)
	}
	return root, nil
}
