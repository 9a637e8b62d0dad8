package main

import (
	"fmt"

	"github.com/dkeye/Consult/internal/auth"
	"github.com/dkeye/Consult/internal/domain"
	"github.com/spf13/cobra"
)

func newTokenCmd(root *rootOptions) *cobra.Command {
	var claims auth.Claims
	var user, room, kind string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an appointment token with the configured secret",
		RunE: func(cmd *cobra.Command, _ []string) error {
			issuer, err := auth.NewIssuer(root.cfg.Secret, root.cfg.TokenTTL)
			if err != nil {
				return err
			}
			claims.User = domain.UserID(user)
			claims.Room = domain.AppointmentID(room)
			claims.Kind = domain.ParticipantKind(kind)
			token, err := issuer.Issue(claims)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "participant id")
	cmd.Flags().StringVar(&claims.Name, "name", "", "display name")
	cmd.Flags().StringVar(&kind, "kind", string(domain.Patient), "patient or specialist")
	cmd.Flags().StringVar(&room, "room", "", "appointment id")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("room")
	return cmd
}
