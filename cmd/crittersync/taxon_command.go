package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"crittersync/internal/classify"
	"crittersync/internal/taxonomy"
)

type taxonOutput struct {
	Query  string          `json:"query"`
	Record taxonomy.Record `json:"record"`
	Group  classify.Result `json:"group"`
}

func newTaxonCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "taxon <scientific name>",
		Short: "Look up a species on iNaturalist and show the group it maps to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := ctx.openSession(cmd, nil)
			if err != nil {
				return err
			}
			defer s.Close()

			query := strings.Join(args, " ")
			record, err := s.resolver.Resolve(cmd.Context(), query)
			if err != nil {
				return err
			}
			output := taxonOutput{Query: query, Record: record, Group: s.classifier.Classify(record)}
			if jsonOutput {
				return writeJSON(cmd, output)
			}
			renderTaxon(cmd.OutOrStdout(), output, shouldColorize(cmd.OutOrStdout()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func renderTaxon(w io.Writer, output taxonOutput, colorize bool) {
	record := output.Record
	rows := [][]string{
		{"Scientific name", record.ScientificName},
		{"Common name", dash(record.PreferredCommonName)},
		{"Rank", dash(record.Rank)},
		{"Iconic taxon", dash(record.IconicTaxonName)},
		{"Group", fmt.Sprintf("%s (%s)", output.Group.Group, output.Group.Source)},
	}
	fmt.Fprintln(w, renderTable([]string{"Field", "Value"}, rows, nil))

	if len(record.Ancestors) > 0 {
		lineage := make([][]string, 0, len(record.Ancestors))
		for _, ancestor := range record.Ancestors {
			lineage = append(lineage, []string{ancestor.Rank, ancestor.Name, dash(ancestor.CommonName)})
		}
		fmt.Fprintln(w, renderTable([]string{"Rank", "Name", "Common name"}, lineage, nil))
	}
	if output.Group.Gap() {
		newSummary("").add("Classification", toneNotice, "no group derivable; add an override").write(w, colorize)
	}
}
