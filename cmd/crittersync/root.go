package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var (
		configFlag    string
		databaseFlag  string
		overridesFlag string
		verbosity     int
	)

	ctx := newCommandContext(&configFlag, &databaseFlag, &overridesFlag, &verbosity)

	rootCmd := &cobra.Command{
		Use:           "crittersync",
		Short:         "Reconcile MacDive critters with iNaturalist",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	flags.StringVarP(&databaseFlag, "database", "d", "", "MacDive database path (overrides catalog.database_path)")
	flags.StringVarP(&overridesFlag, "overrides", "o", "", "Critter category override file (overrides overrides.path)")
	flags.CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (repeatable)")

	rootCmd.AddCommand(newCategoriesCommand(ctx))
	rootCmd.AddCommand(newNamesCommand(ctx))
	rootCmd.AddCommand(newTaxonCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
