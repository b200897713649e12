package main

import (
	"github.com/spf13/cobra"

	"goLite/internal/config"
	"goLite/internal/engine"
	"goLite/internal/logger"
)

// options are the flags shared by every command.
type options struct {
	configFile string
	logLevel   string
	jsonOut    bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "golite",
		Short:         "Inspect and edit SQLite database files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	f := root.PersistentFlags()
	f.StringVar(&opts.configFile, "config", "", "config file (yaml, json or toml)")
	f.StringVar(&opts.logLevel, "log-level", "", "log level, overriding the config")
	f.BoolVar(&opts.jsonOut, "json", false, "print JSON instead of text")

	root.AddCommand(
		headerCmd(opts),
		tablesCmd(opts),
		schemaCmd(opts),
		dumpCmd(opts),
		selectCmd(opts),
		aggCmd(opts),
		insertCmd(opts),
		deleteCmd(opts),
		createIndexCmd(opts),
		demoCmd(opts),
	)
	return root
}

// open opens the database at path. Commands that only read open it
// read-only.
func (o *options) open(cmd *cobra.Command, path string, write bool) (*engine.DBEngine, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if !write {
		cfg.ReadOnly = true
	}
	log := logger.New(cfg.Logger(), cmd.ErrOrStderr())
	return engine.Open(path, cfg, log)
}

func (o *options) printer(cmd *cobra.Command) printer {
	return printer{w: cmd.OutOrStdout(), json: o.jsonOut}
}
