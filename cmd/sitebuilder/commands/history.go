package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/journal"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int  `short:"n" help:"Number of builds to show" default:"10"`
	JSON  bool `name:"json" help:"Print summaries as JSON"`
}

func (h *HistoryCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	path := cfg.JournalPath()
	if path == "" {
		return ferrors.ValidationError("build journal is disabled").
			WithContext("journal", "off").Build()
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Println("No builds recorded yet")
		return nil
	}

	j, err := journal.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = j.Close() }()

	summaries, err := journal.Recent(context.Background(), j, h.Limit)
	if err != nil {
		return err
	}
	if h.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	}
	printHistory(os.Stdout, summaries, time.Now())
	return nil
}

func printHistory(w io.Writer, summaries []*journal.BuildSummary, now time.Time) {
	if len(summaries) == 0 {
		_, _ = fmt.Fprintln(w, "No builds recorded yet")
		return
	}
	for _, s := range summaries {
		_, _ = fmt.Fprintf(w, "%s  %-8s %-11s %-8s failures=%d  %s\n",
			s.BuildID, s.Status, s.Mode, s.Duration.Round(time.Millisecond),
			s.Failures, humanize.RelTime(s.StartedAt, now, "ago", "from now"))
		if s.Error != "" {
			_, _ = fmt.Fprintf(w, "    error: %s\n", s.Error)
		}
	}
}
