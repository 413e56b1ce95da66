package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/luca-patrignani/fairdeal/config"
	"github.com/luca-patrignani/fairdeal/session"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	v      *viper.Viper
	cfg    config.Config
	logger *slog.Logger
}

var logLevels = map[string]pterm.LogLevel{
	"trace": pterm.LogLevelTrace,
	"debug": pterm.LogLevelDebug,
	"info":  pterm.LogLevelInfo,
	"warn":  pterm.LogLevelWarn,
	"error": pterm.LogLevelError,
}

func newRootCmd() (*cobra.Command, error) {
	a := &app{v: viper.New()}
	var configFile, logLevel string
	root := &cobra.Command{
		Use:           "fairdeal",
		Short:         "Deal cards among peers that do not trust each other",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, ok := logLevels[logLevel]
			if !ok {
				return fmt.Errorf("unknown log level %q", logLevel)
			}
			a.logger = slog.New(pterm.NewSlogHandler(pterm.DefaultLogger.WithLevel(level)))
			cfg, err := config.Load(a.v, configFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "yaml configuration file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "trace, debug, info, warn or error")
	if err := config.RegisterFlags(a.v, root.PersistentFlags()); err != nil {
		return nil, err
	}
	root.AddCommand(
		newIndexCmd(a),
		newDemoCmd(a),
		newPlayCmd(a),
		newCertCmd(a),
	)
	return root, nil
}

// sessionOptions translates the configuration into session options.
func (a *app) sessionOptions() []session.Option {
	return []session.Option{
		session.WithScheme(a.cfg.Scheme()),
		session.WithSecretSize(a.cfg.SecretSize),
		session.WithBatch(a.cfg.Batch),
		session.WithDeckSize(a.cfg.DeckSize),
		session.WithSteps(a.cfg.Steps...),
		session.WithLogger(a.logger),
	}
}

func banner() {
	_ = pterm.DefaultBigText.WithLetters(
		putils.LettersFromStringWithStyle("Fair", pterm.FgRed.ToStyle()),
		putils.LettersFromStringWithStyle("deal", pterm.FgDarkGray.ToStyle()),
	).Render()
}

func main() {
	root, err := newRootCmd()
	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
	if err := root.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}
