package main

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/edgeaihub/edgeplug/internal/config"
	"github.com/edgeaihub/edgeplug/internal/host"
	"github.com/edgeaihub/edgeplug/internal/store"
	"github.com/edgeaihub/edgeplug/internal/ui"
)

// Version is overridden by ldflags.
var Version = "dev"

// app carries what every command needs once the configuration is loaded.
type app struct {
	cfg      *config.Config
	log      *logrus.Logger
	out      *ui.Printer
	registry *host.Registry
}

// persistent flag name -> config key
var configFlags = map[string]string{
	"plugin-dir": "plugin_dir",
	"data-dir":   "data_dir",
	"log-level":  "log.level",
	"log-format": "log.format",
	"cascade":    "face.cascade_path",
}

func newRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "edgeplug",
		Short: "Run and manage edge AI capability plugins",
		Long: `edgeplug hosts capability plugins: self-describing modules that take a
typed input (image, text, json or binary) and return a result envelope.

It writes and reads plugin manifests, indexes the plugin directory, runs
plugins over image files or a camera stream and keeps an invocation log.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.String("plugin-dir", "", "Plugin directory (default ~/.edgeplug/plugins)")
	flags.String("data-dir", "", "Data directory (default ~/.edgeplug)")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.String("log-format", "", "Log format: text or json")
	flags.String("cascade", "", "Haar cascade file for the face detector")
	flags.Bool("no-color", false, "Disable colored output")

	root.AddCommand(
		newPluginsCommand(a),
		newManifestCommand(a),
		newListCommand(a),
		newWatchCommand(a),
		newRunCommand(a),
		newStreamCommand(a),
		newHistoryCommand(a),
	)

	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	overrides := make(map[string]any)
	for name, key := range configFlags {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			overrides[key] = f.Value.String()
		}
	}
	if f := cmd.Flags().Lookup("workers"); f != nil && f.Changed {
		overrides["workers"] = f.Value.String()
	}

	loader, err := config.NewLoader()
	if err != nil {
		return err
	}
	cfg, err := loader.Load(overrides)
	if err != nil {
		return err
	}

	log, err := cfg.Log.NewLogger(os.Stderr)
	if err != nil {
		return err
	}

	noColor, _ := cmd.Flags().GetBool("no-color")

	a.cfg = cfg
	a.log = log
	a.out = ui.NewPrinter(cmd.OutOrStdout(), ui.NewTheme(ui.ColorEnabled(noColor)))
	a.registry = host.DefaultRegistry(cfg.Face.Detector(), log)

	log.WithFields(logrus.Fields{
		"plugin_dir": cfg.PluginDir,
		"data_dir":   cfg.DataDir,
		"config":     loader.ConfigPath(),
	}).Debug("Configuration loaded")

	return nil
}

// openStore opens the database, creating the data directory first.
func (a *app) openStore() (*store.Store, error) {
	if err := os.MkdirAll(a.cfg.DataDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create data directory")
	}
	return store.New(a.cfg.DatabasePath())
}
