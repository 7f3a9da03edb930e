package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/nhle/tickflow/internal/model"
	"github.com/nhle/tickflow/internal/theme"
)

func newInitCmd(opts *rootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := os.Stat(opts.configPath)
			switch {
			case err == nil && !force:
				return fmt.Errorf("config %s already exists (use --force to overwrite)", opts.configPath)
			case err != nil && !errors.Is(err, fs.ErrNotExist):
				return fmt.Errorf("checking config %s: %w", opts.configPath, err)
			}

			if err := model.SaveConfig(opts.configPath, model.DefaultAppConfig()); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), theme.SuccessStyle.Render("Wrote "+opts.configPath))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Long: "Open the database from the config's database section and apply any\n" +
			"pending schema migrations. The store backend setting is ignored.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := model.LoadConfig(opts.configPath)
			if err != nil {
				return err
			}

			s, err := openSQLStore(cfg.Database, lazyKeyring(cfg.Credentials))
			if err != nil {
				return err
			}
			defer s.Close()

			version, err := s.SchemaVersion(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s database at schema version %d\n", s.Driver(), version)
			return nil
		},
	}
}
