package main

import (
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/pagebatch/pagebatch/batch"
)

// summaryObserver collects item reports for the summary table.
type summaryObserver struct {
	mu      sync.Mutex
	reports []batch.Report
}

func (*summaryObserver) StateChanged(int, batch.State, batch.State) {}

func (s *summaryObserver) ItemFinished(r batch.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
}

// Reports returns the collected reports in completion order.
func (s *summaryObserver) Reports() []batch.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]batch.Report(nil), s.reports...)
}

// renderSummary prints a row per item and a totals line.
func renderSummary(w io.Writer, reports []batch.Report) error {
	okColor := color.New(color.FgGreen).SprintFunc()
	failColor := color.New(color.FgRed).SprintFunc()

	table := tablewriter.NewWriter(w)
	table.Header("#", "Engine", "Operation", "Result", "Installed", "Duration")

	failed := 0
	for _, r := range reports {
		result := okColor("ok")
		if r.Err != nil {
			failed++
			result = failColor(string(batch.KindOf(r.Err)))
		}
		installed := "no"
		if r.Installed {
			installed = "yes"
		}
		if err := table.Append(
			strconv.Itoa(r.Index),
			string(r.Engine),
			string(r.Operation),
			result,
			installed,
			r.Duration.Round(time.Millisecond).String(),
		); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	totals := okColor(fmt.Sprintf("%d ok", len(reports)-failed))
	if failed > 0 {
		totals += ", " + failColor(fmt.Sprintf("%d failed", failed))
	}
	_, err := fmt.Fprintf(w, "%d items: %s\n", len(reports), totals)
	return err
}
