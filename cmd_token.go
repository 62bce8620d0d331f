package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/username/tradelink/src/config"
	"github.com/username/tradelink/src/security"
)

func newTokenCmd() *cobra.Command {
	var subject string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token signed with API_JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			tokens := security.NewTokenService(config.Cfg.APIJWTSecret, config.Cfg.APITokenExpiry)
			token, err := tokens.GenerateToken(subject)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Token subject, e.g. the client name")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
