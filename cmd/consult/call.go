package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dkeye/Consult/internal/adapters/media"
	"github.com/dkeye/Consult/internal/adapters/preview"
	"github.com/dkeye/Consult/internal/adapters/rtc"
	sig "github.com/dkeye/Consult/internal/adapters/signal"
	"github.com/dkeye/Consult/internal/app/call"
	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
	"github.com/dkeye/Consult/internal/ui"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

type callOptions struct {
	room      string
	token     string
	transport string
	headless  bool
	noVideo   bool
}

func newCallCmd(root *rootOptions) *cobra.Command {
	opts := &callOptions{}
	cmd := &cobra.Command{
		Use:   "call",
		Short: "Join an appointment call",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCall(cmd.Context(), root, opts)
		},
	}
	cmd.Flags().StringVar(&opts.room, "room", "", "appointment id")
	cmd.Flags().StringVar(&opts.token, "token", "", "appointment token")
	cmd.Flags().StringVar(&opts.transport, "transport", "", "signaling transport: ws or mqtt (default from config)")
	cmd.Flags().BoolVar(&opts.headless, "headless", false, "start the call right away and run without the terminal UI")
	cmd.Flags().BoolVar(&opts.noVideo, "no-video", false, "join with the microphone only")
	_ = cmd.MarkFlagRequired("room")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func dialSignal(ctx context.Context, root *rootOptions, transport string, room domain.AppointmentID, token string) (core.SignalChannel, error) {
	cfg := root.cfg
	if transport == "" {
		transport = cfg.Signal.Transport
	}
	switch transport {
	case "ws":
		return sig.DialWS(ctx, cfg.Signal.URL, room, token, cfg.PingPeriod)
	case "mqtt":
		return sig.DialMQTT(ctx, cfg.MQTT.Broker, cfg.MQTT.TopicPrefix, room)
	default:
		return nil, fmt.Errorf("unknown transport %q", transport)
	}
}

func runCall(parent context.Context, root *rootOptions, opts *callOptions) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	room, err := domain.ParseAppointmentID(opts.room)
	if err != nil {
		return err
	}
	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	channel, err := dialSignal(dialCtx, root, opts.transport, room, opts.token)
	cancel()
	if err != nil {
		return err
	}
	defer func() { _ = channel.Close() }()

	peers, err := rtc.NewFactory(rtcConfig(root.cfg))
	if err != nil {
		return err
	}
	constraints := domain.CallConstraints()
	if opts.noVideo {
		constraints.Video = false
	}
	local, remote := preview.NewLocal(), preview.NewRemote()

	ctl, err := call.NewController(ctx, call.Config{
		Room:        room,
		Token:       opts.token,
		Signal:      channel,
		Media:       media.NewSource(media.Config{VideoFile: root.cfg.Media.VideoFile, AudioFile: root.cfg.Media.AudioFile}),
		Peers:       peers,
		LocalSink:   local,
		RemoteSink:  remote,
		Constraints: constraints,
	})
	if err != nil {
		return err
	}
	defer ctl.Close()

	if opts.headless {
		return runHeadless(ctx, ctl)
	}
	_, err = tea.NewProgram(ui.NewModel(ctx, ctl, remote.Streams)).Run()
	return err
}

func runHeadless(ctx context.Context, ctl *call.Controller) error {
	if err := ctl.Start(ctx); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			hctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return ctl.HangUp(hctx)
		case st := <-ctl.Updates():
			log.Info().Str("module", "cli").Str("phase", st.Phase.String()).Str("role", st.Role.String()).Msg("call state")
			if st.Err != nil {
				log.Error().Err(st.Err).Str("module", "cli").Msg("negotiation failed")
			}
		}
	}
}
