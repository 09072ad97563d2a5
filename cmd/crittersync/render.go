package main

import (
	"fmt"
	"io"
	"strconv"

	"crittersync/internal/catalog"
	"crittersync/internal/reconcile"
	"crittersync/internal/taxonomy"
)

func renderCategoryReport(w io.Writer, report *reconcile.Report, colorize bool) {
	plan := report.Plan

	writeHeading(w, "Category plan", colorize)
	rows := make([][]string, 0, len(plan.Entries))
	for _, entry := range plan.Entries {
		if !entry.Changes() {
			continue
		}
		rows = append(rows, []string{
			strconv.FormatInt(entry.Entity.ID, 10),
			dash(entry.Entity.DisplayName),
			entry.Entity.SpeciesName,
			string(entry.Action),
			entry.Describe(),
		})
	}
	if len(rows) == 0 {
		newSummary("").add("Plan", toneGood, "every critter is already in its group").write(w, colorize)
	} else {
		fmt.Fprintln(w, renderTable([]string{"ID", "Critter", "Species", "Action", "Change"}, rows,
			[]columnAlignment{alignRight}))
	}

	if len(plan.Diagnostics) > 0 {
		fmt.Fprintln(w)
		renderDiagnostics(w, plan.Diagnostics, colorize)
	}

	reused := plan.Count(reconcile.ActionRenameAndReuse)
	fmt.Fprintln(w)
	newSummary("Summary").
		add("Unchanged", toneInfo, strconv.Itoa(plan.Count(reconcile.ActionNoOp))).
		count("Reassign", plan.Count(reconcile.ActionReassign), toneNotice, "").
		count("Rename and reuse", reused, toneNotice, fmt.Sprintf("%d of %d unused", reused, plan.PoolSize)).
		count("Create category", plan.Count(reconcile.ActionCreateCategory), toneNotice, "").
		count("Extraneous", len(plan.Extraneous), toneNotice, extraneousNames(plan.Extraneous)).
		count("Lookups", int(report.Stats.Failures), toneBad, lookupDetail(report.Stats)).
		add("Run", toneInfo, report.RunID).
		write(w, colorize)
}

func renderNameReport(w io.Writer, report *reconcile.NameReport, colorize bool) {
	plan := report.Plan

	writeHeading(w, "Name corrections", colorize)
	if len(plan.Changes) == 0 {
		newSummary("").add("Names", toneGood, "every critter matches iNaturalist").write(w, colorize)
	} else {
		rows := make([][]string, 0, len(plan.Changes))
		for _, change := range plan.Changes {
			common := "-"
			switch {
			case change.NewCommonName:
				common = fmt.Sprintf("(none) => %s", change.CommonName)
			case change.CommonName != "":
				common = fmt.Sprintf("%s => %s", change.Entity.DisplayName, change.CommonName)
			}
			scientific := "-"
			if change.ScientificName != "" {
				scientific = fmt.Sprintf("%s => %s", change.Entity.SpeciesName, change.ScientificName)
			}
			rows = append(rows, []string{strconv.FormatInt(change.Entity.ID, 10), scientific, common})
		}
		fmt.Fprintln(w, renderTable([]string{"ID", "Scientific name", "Common name"}, rows, []columnAlignment{alignRight}))
	}

	if len(plan.Diagnostics) > 0 {
		fmt.Fprintln(w)
		renderDiagnostics(w, plan.Diagnostics, colorize)
	}
	fmt.Fprintln(w)
	newSummary("").
		count("Lookups", int(report.Stats.Failures), toneBad, lookupDetail(report.Stats)).
		add("Run", toneInfo, report.RunID).
		write(w, colorize)
}

func renderDiagnostics(w io.Writer, diagnostics []reconcile.Diagnostic, colorize bool) {
	writeHeading(w, "Diagnostics", colorize)
	rows := make([][]string, 0, len(diagnostics))
	for _, d := range diagnostics {
		subject := "-"
		switch {
		case d.EntityID != 0:
			subject = "critter " + strconv.FormatInt(d.EntityID, 10)
		case d.CategoryID != 0:
			subject = "category " + strconv.FormatInt(d.CategoryID, 10)
		}
		rows = append(rows, []string{string(d.Kind), subject, dash(d.Species), d.Message})
	}
	fmt.Fprintln(w, renderTable([]string{"Kind", "Subject", "Species", "Detail"}, rows, nil))
}

// renderApplyResults lists failed and held-back entries, then the tally.
func renderApplyResults(w io.Writer, results []catalog.ApplyResult, colorize bool) {
	written, unchanged, heldBack, failed := 0, 0, 0, 0
	var problems [][]string
	for _, result := range results {
		id := strconv.FormatInt(result.Entry.Entity.ID, 10)
		switch {
		case result.Err != nil:
			failed++
			problems = append(problems, []string{id, string(result.Entry.Action), result.Err.Error()})
		case result.HeldBack():
			heldBack++
			problems = append(problems, []string{id, string(result.Entry.Action), result.Reason})
		case result.Skipped:
			unchanged++
		default:
			written++
		}
	}
	if len(problems) > 0 {
		fmt.Fprintln(w, renderTable([]string{"ID", "Action", "Problem"}, problems, []columnAlignment{alignRight}))
	}
	newSummary("").
		count("Applied", failed+heldBack, toneBad,
			fmt.Sprintf("%d written, %d unchanged, %d held back, %d failed", written, unchanged, heldBack, failed)).
		write(w, colorize)
}

func renderDryRun(w io.Writer, pending int, noun string, colorize bool) {
	newSummary("").
		add("Dry run", toneNotice, fmt.Sprintf("%d %s not written; pass --yes to apply", pending, noun)).
		write(w, colorize)
}

func lookupDetail(stats taxonomy.Stats) string {
	return fmt.Sprintf("%d issued, %d failed", stats.Lookups, stats.Failures)
}

func extraneousNames(categories []reconcile.Category) string {
	if len(categories) == 0 {
		return "none"
	}
	names := ""
	for i, category := range categories {
		if i > 0 {
			names += ", "
		}
		names += strconv.Quote(category.Name)
	}
	return names
}
