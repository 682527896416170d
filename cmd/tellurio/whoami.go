package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	tellurio "github.com/tellurio-ai/tellurio-go"
)

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the email associated with the stored API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := tellurio.Login(context.Background(), "", false)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Email)
			return nil
		},
	}
}
