package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	tellurio "github.com/tellurio-ai/tellurio-go"
)

func loginCmd() *cobra.Command {
	var apiKey string
	var relogin bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to Tellurio using an API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			if apiKey == "" {
				if prompted, err := promptForAPIKey(cmd); err == nil && prompted != "" {
					apiKey = prompted
				}
			}

			result, err := tellurio.Login(context.Background(), apiKey, relogin)
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Login failed: %v\n", err)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Login successful! (%s)\n", result.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&apiKey, "api-key", "", "Your API key.")
	cmd.Flags().BoolVar(&relogin, "relogin", false, "Force a re-login and request a new API key.")
	return cmd
}

func promptForAPIKey(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), "API Key: ")
	var key string
	_, err := fmt.Fscanln(cmd.InOrStdin(), &key)
	return key, err
}
