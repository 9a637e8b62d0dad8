package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/Consult/internal/adapters/media"
	"github.com/dkeye/Consult/internal/adapters/preview"
	"github.com/dkeye/Consult/internal/adapters/rtc"
	sig "github.com/dkeye/Consult/internal/adapters/signal"
	"github.com/dkeye/Consult/internal/app/call"
	"github.com/dkeye/Consult/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// newLoopbackCmd places a patient and a specialist in one in-process room
// and reports whether media flows both ways. No server or STUN needed.
func newLoopbackCmd(root *rootOptions) *cobra.Command {
	var timeout time.Duration
	var room string
	cmd := &cobra.Command{
		Use:   "loopback",
		Short: "Run a two-party call inside this process to check the local WebRTC stack",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			start := time.Now()
			if err := runLoopback(ctx, root, domain.AppointmentID(room)); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "connected, media flowing both ways after %s\n", time.Since(start).Round(time.Millisecond))
			return err
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 20*time.Second, "give up after")
	cmd.Flags().StringVar(&room, "room", "loopback", "room name")
	return cmd
}

type loopbackSide struct {
	ctl    *call.Controller
	remote *preview.Remote
}

func runLoopback(ctx context.Context, root *rootOptions, room domain.AppointmentID) error {
	hub := sig.NewMemoryHub()
	rc := rtcConfig(root.cfg)
	rc.STUNURLs = nil
	rc.CandidatePoolSize = 0
	rc.IncludeLoopback = true
	peers, err := rtc.NewFactory(rc)
	if err != nil {
		return err
	}
	src := media.NewSource(media.Config{VideoFile: root.cfg.Media.VideoFile, AudioFile: root.cfg.Media.AudioFile})

	var sides []loopbackSide
	for _, kind := range []domain.ParticipantKind{domain.Patient, domain.Specialist} {
		user, err := domain.NewUser(string(kind), kind)
		if err != nil {
			return err
		}
		channel, err := hub.Connect(room, user)
		if err != nil {
			return err
		}
		defer func() { _ = channel.Close() }()

		remote := preview.NewRemote()
		ctl, err := call.NewController(ctx, call.Config{
			Room:        room,
			Token:       string(kind),
			Signal:      channel,
			Media:       src,
			Peers:       peers,
			LocalSink:   preview.NewLocal(),
			RemoteSink:  remote,
			Constraints: domain.MediaConstraints{Audio: domain.AudioConstraints{Enabled: true}},
		})
		if err != nil {
			return err
		}
		defer ctl.Close()
		sides = append(sides, loopbackSide{ctl: ctl, remote: remote})
	}

	for _, s := range sides {
		if err := s.ctl.Start(ctx); err != nil {
			return err
		}
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		done := true
		for _, s := range sides {
			st := s.ctl.State()
			if st.Err != nil {
				return st.Err
			}
			if st.Phase != domain.PhaseConnected || !s.remote.Receiving() {
				done = false
			}
		}
		if done {
			for _, s := range sides {
				_ = s.ctl.HangUp(ctx)
			}
			return nil
		}
		select {
		case <-ctx.Done():
			for i, s := range sides {
				log.Warn().Str("module", "cli").Int("side", i).Str("phase", s.ctl.State().Phase.String()).Bool("receiving", s.remote.Receiving()).Msg("loopback timed out")
			}
			return errors.New("loopback call did not connect in time")
		case <-ticker.C:
		}
	}
}
