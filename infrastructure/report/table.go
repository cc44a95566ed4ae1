package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
)

var summaryHeaders = []string{"Task", "Status", "Turns", "Ratings", "Mean", "Drift", "Message (s)", "Judge (s)", "Work (s)"}

// newSummaryTable creates a markdown-style table with left-aligned cells.
func newSummaryTable(headers []string, w io.Writer) *tablewriter.Table {
	cfg := tablewriter.Config{
		Header: tw.CellConfig{
			Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			Formatting: tw.CellFormatting{AutoFormat: tw.Off},
		},
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignLeft},
		},
		MaxWidth: 120,
		Behavior: tw.Behavior{TrimSpace: tw.Off},
	}
	return tablewriter.NewTable(w,
		tablewriter.WithConfig(cfg),
		tablewriter.WithHeader(headers),
		tablewriter.WithRenderer(renderer.NewBlueprint()),
		tablewriter.WithRendition(tw.Rendition{
			Symbols: tw.NewSymbols(tw.StyleMarkdown),
			Borders: tw.Border{
				Left:   tw.On,
				Top:    tw.Off,
				Right:  tw.On,
				Bottom: tw.Off,
			},
		}),
		tablewriter.WithRowAutoWrap(tw.WrapNone),
	)
}

// WriteSummary renders one row per task: successes first, then failures.
func WriteSummary(w io.Writer, r *Report) error {
	if _, err := fmt.Fprintf(w, "Run %s: %s judged by %s\n\n", r.RunID, r.Config.Model, r.Config.JudgeModel); err != nil {
		return err
	}

	table := newSummaryTable(summaryHeaders, w)
	for _, tr := range r.Results {
		res := tr.Result
		ratings := make([]string, 0, len(res.Judgements))
		for _, j := range res.Judgements {
			ratings = append(ratings, j.TotalRating.String())
		}
		mean := "-"
		if tr.MeanRating != nil {
			mean = fmt.Sprintf("%.1f", *tr.MeanRating)
		}

		if err := table.Append([]string{
			tr.Task.String(),
			"ok",
			fmt.Sprintf("%d", res.Messages.Turns()),
			strings.Join(ratings, ", "),
			mean,
			formatDrift(tr.AnswerDrift),
			fmt.Sprintf("%.2f", res.MessageDuration.Seconds()),
			fmt.Sprintf("%.2f", res.JudgeDuration.Seconds()),
			fmt.Sprintf("%.2f", res.WorkDuration.Seconds()),
		}); err != nil {
			return fmt.Errorf("failed to append summary row: %w", err)
		}
	}
	for _, te := range r.Errors {
		if err := table.Append([]string{te.Task.String(), "error", "-", "-", "-", "-", "-", "-", "-"}); err != nil {
			return fmt.Errorf("failed to append summary row: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render summary: %w", err)
	}

	if s := r.Summary; s != nil {
		if _, err := fmt.Fprintf(w, "\nMean rating %.1f over %d task(s) (median %.1f, min %.1f, max %.1f)\n",
			s.Mean, s.Rated, s.Median, s.Min, s.Max); err != nil {
			return err
		}
	}

	for _, te := range r.Errors {
		if _, err := fmt.Fprintf(w, "\n%s: %s\n", te.Task.String(), te.Error); err != nil {
			return err
		}
	}
	return nil
}

func formatDrift(drift []float64) string {
	if len(drift) == 0 {
		return "-"
	}
	parts := make([]string, len(drift))
	for i, d := range drift {
		parts[i] = fmt.Sprintf("%.2f", d)
	}
	return strings.Join(parts, ", ")
}
