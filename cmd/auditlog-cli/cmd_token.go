package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/persistorai/auditlog/client"
)

func newTokenCmd() *cobra.Command {
	var req client.TokenRequest

	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue a user token for one of your users",
		Long: "Exchanges the organization API key for a short-lived token bound to a user. " +
			"Logs recorded with the token always name that user as the actor.",
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			req.UserID = args[0]
			tok, err := apiClient.Auth.Token(context.Background(), req)
			if err != nil {
				fatal("issue token", err)
			}
			output(tok, tok.Token)
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "User display name")
	cmd.Flags().StringVar(&req.Email, "email", "", "User email")
	return cmd
}
