package main

import (
	"log/slog"
	"os"

	"github.com/cwbudde/descentviz/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	cfgFile  string
	v        = config.New()
	settings *config.Config
	logger   *slog.Logger
)

// flagKeys maps command-line flag names to config keys. Any command that
// defines one of these flags has it bound before the config is loaded.
var flagKeys = map[string]string{
	"lr":         config.KeyLearningRate,
	"iterations": config.KeyIterations,
	"beta1":      config.KeyBeta1,
	"beta2":      config.KeyBeta2,
	"output":     config.KeyOutput,
	"data-dir":   config.KeyDataDir,
	"addr":       config.KeyAddr,
	"log-level":  config.KeyLogLevel,
}

var rootCmd = &cobra.Command{
	Use:   "descentviz",
	Short: "Compare gradient-descent optimizers on 2D test functions",
	Long: `descentviz runs SGD, ASGD, Adagrad, Adadelta, RMSprop, Adam, AdamW,
Adamax, Nadam and RAdam side by side on classic two-dimensional objectives
and renders their trajectories over a contour plot.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.ReadFile(v, cfgFile); err != nil {
			return err
		}
		if err := bindCommandFlags(cmd); err != nil {
			return err
		}

		loaded, err := config.Load(v)
		if err != nil {
			return err
		}
		settings = loaded

		level, _ := config.ParseLevel(settings.LogLevel)
		opts := &slog.HandlerOptions{Level: level}
		handler := slog.NewJSONHandler(os.Stderr, opts)
		logger = slog.New(handler)
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (yaml, json or toml)")
}

// bindCommandFlags binds every flag of cmd that has a config key.
func bindCommandFlags(cmd *cobra.Command) error {
	var err error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || err != nil {
			return
		}
		err = config.BindFlag(v, key, f)
	})
	return err
}
