package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dkeye/Consult/internal/adapters/rtc"
	"github.com/dkeye/Consult/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configFile string
	logFile    string
	logLevel   string

	cfg     *config.Config
	logSink io.Closer
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "consult",
		Short:         "Appointment video calls from the terminal",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.setup()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if opts.logSink != nil {
				_ = opts.logSink.Close()
			}
		},
	}
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default config/config.<CONFIG_ENV>.yaml)")
	root.PersistentFlags().StringVar(&opts.logFile, "log-file", "consult.log", `log destination, "-" for stderr`)
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "overrides log_level from config")

	root.AddCommand(newCallCmd(opts), newTokenCmd(opts), newLoopbackCmd(opts))
	return root
}

// setup wires logging before config so config.Load can log.
func (o *rootOptions) setup() error {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	var out io.Writer = os.Stderr
	if o.logFile != "-" {
		f, err := os.OpenFile(o.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		o.logSink = f
		out = f
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: out, NoColor: o.logFile != "-"})

	var err error
	if o.configFile != "" {
		o.cfg, err = config.LoadFile(o.configFile)
	} else {
		o.cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		o.cfg.LogLevel = o.logLevel
	}
	zerolog.SetGlobalLevel(o.cfg.Level())
	return nil
}

func rtcConfig(cfg *config.Config) rtc.Config {
	rc := rtc.DefaultConfig()
	rc.STUNURLs = cfg.ICE.STUNURLs
	rc.CandidatePoolSize = cfg.ICE.CandidatePoolSize
	rc.DisconnectedTimeout = cfg.ICE.DisconnectedTimeout
	rc.FailedTimeout = cfg.ICE.FailedTimeout
	rc.KeepaliveInterval = cfg.ICE.KeepaliveInterval
	return rc
}
