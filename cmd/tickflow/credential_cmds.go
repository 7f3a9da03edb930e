package main

import (
	"bufio"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/tickflow/internal/model"
	"github.com/nhle/tickflow/internal/theme"
)

func newCredentialCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Manage secrets referenced by password_key settings",
	}
	cmd.AddCommand(
		newCredentialListCmd(opts),
		newCredentialSetCmd(opts),
		newCredentialDeleteCmd(opts),
	)
	return cmd
}

func newCredentialListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored secret keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := model.LoadConfig(opts.configPath)
			if err != nil {
				return err
			}

			ring, err := openKeyring(cfg.Credentials)
			if err != nil {
				return err
			}
			keys, err := ring.Keys()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(keys) == 0 {
				fmt.Fprintln(out, theme.HelpStyle.Render("No credentials."))
				return nil
			}
			sort.Strings(keys)
			for _, key := range keys {
				fmt.Fprintln(out, key)
			}
			return nil
		},
	}
}

func newCredentialSetCmd(opts *rootOptions) *cobra.Command {
	var value string

	cmd := &cobra.Command{
		Use:   "set <key>",
		Short: "Store a secret (read from stdin unless --value is given)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := model.LoadConfig(opts.configPath)
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("value") {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("reading secret from stdin: %w", err)
				}
				value = strings.TrimRight(line, "\r\n")
			}
			if value == "" {
				return fmt.Errorf("refusing to store an empty secret for %q", args[0])
			}

			ring, err := openKeyring(cfg.Credentials)
			if err != nil {
				return err
			}
			if err := ring.Set(args[0], value); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), theme.SuccessStyle.Render("Stored "+args[0]))
			return nil
		},
	}

	cmd.Flags().StringVar(&value, "value", "", "secret value")
	return cmd
}

func newCredentialDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <key>",
		Short: "Remove a secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := model.LoadConfig(opts.configPath)
			if err != nil {
				return err
			}

			ring, err := openKeyring(cfg.Credentials)
			if err != nil {
				return err
			}
			if err := ring.Delete(args[0]); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), theme.SuccessStyle.Render("Deleted "+args[0]))
			return nil
		},
	}
}
