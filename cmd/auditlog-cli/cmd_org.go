package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func newOrgCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "org",
		Short: "Inspect the calling organization",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the organization the API key belongs to",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			org, err := apiClient.Organization.Me(context.Background())
			if err != nil {
				fatal("show organization", err)
			}
			if flagFmt == "table" {
				formatTable([]string{"ID", "NAME", "EMAIL", "CREATED"}, [][]string{{
					org.ID, org.Name, org.Email, org.CreatedAt.UTC().Format(time.RFC3339),
				}})
				return
			}
			output(org, org.ID)
		},
	})

	var save bool
	rotate := &cobra.Command{
		Use:   "rotate-key",
		Short: "Replace the organization's API key",
		Long:  "Issues a new API key. The current key stops working immediately.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			key, err := apiClient.Organization.RotateKey(context.Background())
			if err != nil {
				fatal("rotate key", err)
			}

			if save {
				profile := flagProfile
				if profile == "" {
					if _, cfg, err := loadConfigFile(); err == nil && cfg.ActiveProfile != "" {
						profile = cfg.ActiveProfile
					}
				}
				path, err := writeConfig(profile, flagURL, key)
				if err != nil {
					fatal("save key", err)
				}
				fmt.Fprintf(os.Stderr, "New key saved to %s\n", path)
			}

			output(map[string]string{"apiKey": key}, key)
		},
	}
	rotate.Flags().BoolVar(&save, "save", false, "Store the new key in the active config profile")
	cmd.AddCommand(rotate)

	return cmd
}
