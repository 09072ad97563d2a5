package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"crittersync/internal/catalog"
	"crittersync/internal/reconcile"
	"crittersync/internal/services"
)

func newNamesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "names",
		Short: "Reconcile critter scientific and common names with iNaturalist",
	}
	cmd.AddCommand(newNamesDiffCommand(ctx))
	cmd.AddCommand(newNamesApplyCommand(ctx))
	return cmd
}

func newNamesDiffCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Show name corrections without changing the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := ctx.openSession(cmd, modePtr(catalog.ReadOnly))
			if err != nil {
				return err
			}
			defer s.Close()

			report, err := planNames(cmd.Context(), s)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, report)
			}
			renderNameReport(cmd.OutOrStdout(), report, shouldColorize(cmd.OutOrStdout()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

type nameApplyOutput struct {
	RunID   string                `json:"run_id"`
	DryRun  bool                  `json:"dry_run"`
	Report  *reconcile.NameReport `json:"report"`
	Results []catalog.NameResult  `json:"results,omitempty"`
}

func newNamesApplyCommand(ctx *commandContext) *cobra.Command {
	var (
		jsonOutput bool
		confirm    bool
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Write name corrections, prefixed for review (dry run unless --yes)",
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := catalog.ReadOnly
			if confirm {
				mode = catalog.ReadWrite
			}
			s, err := ctx.openSession(cmd, modePtr(mode))
			if err != nil {
				return err
			}
			defer s.Close()

			runCtx := services.WithCommand(cmd.Context(), "names apply")
			executor, release, err := s.writer(runCtx, confirm)
			if err != nil {
				return err
			}
			defer release()

			report, err := planNames(runCtx, s)
			if err != nil {
				return err
			}
			runCtx = services.WithRunID(runCtx, report.RunID)

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			output := nameApplyOutput{RunID: report.RunID, DryRun: !confirm, Report: report}
			if !confirm {
				if jsonOutput {
					return writeJSON(cmd, output)
				}
				renderNameReport(out, report, colorize)
				fmt.Fprintln(out)
				renderDryRun(out, len(report.Plan.Changes), "critter(s)", colorize)
				return nil
			}

			results, err := executor.ApplyNames(runCtx, report.Plan.Changes)
			output.Results = results
			if err != nil {
				return err
			}
			failed := 0
			for _, result := range results {
				if result.Err != nil {
					failed++
				}
			}
			if jsonOutput {
				if err := writeJSON(cmd, output); err != nil {
					return err
				}
			} else {
				renderNameReport(out, report, colorize)
				fmt.Fprintln(out)
				newSummary("").
					count("Applied", failed, toneBad,
						fmt.Sprintf("%d written, %d failed, prefixed %q", len(results)-failed, failed, s.cfg.Catalog.ReviewPrefix)).
					write(out, colorize)
			}
			return failedEntriesError(failed)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVarP(&confirm, "yes", "y", false, "Write changes to the MacDive database")
	return cmd
}

func planNames(ctx context.Context, s *session) (*reconcile.NameReport, error) {
	entities, err := s.store.Entities(ctx)
	if err != nil {
		return nil, err
	}
	return s.runner.Names(ctx, entities)
}
