package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/pipeline"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Strict bool `help:"Exit non-zero when any file or stage failed"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	log := loggerFrom(g)

	env, err := newBuildEnv(cfg, log, nil)
	if err != nil {
		return err
	}
	defer env.Close()

	log.Info("Starting build", "mode", cfg.Mode, "source", cfg.SourcePath(), "dist", cfg.DistPath())
	report, err := env.orch.Build(context.Background())
	if err != nil {
		return err
	}
	printReport(os.Stdout, report)

	if b.Strict && report.Outcome != pipeline.OutcomeSuccess {
		return ferrors.NewError(ferrors.CategoryBuild, "build finished with failures").
			WithContext("failures", report.Failures()).
			WithContext("outcome", string(report.Outcome)).Build()
	}
	return nil
}

// printReport writes the per-stage summary.
func printReport(w io.Writer, r *pipeline.Report) {
	_, _ = fmt.Fprintf(w, "Build %s: %s in %s\n", r.BuildID, r.Outcome, r.Duration.Round(time.Millisecond))
	for _, res := range r.Stages {
		line := fmt.Sprintf("  %-8s written=%d skipped=%d", res.Stage, len(res.Written), res.Skipped)
		if res.CacheHits > 0 {
			line += fmt.Sprintf(" cache_hits=%d", res.CacheHits)
		}
		if n := len(res.Failures); n > 0 {
			line += fmt.Sprintf(" failed=%d", n)
		}
		if res.Err != nil {
			line += " error=" + res.Err.Error()
		}
		_, _ = fmt.Fprintln(w, line)
		for _, f := range res.Failures {
			_, _ = fmt.Fprintf(w, "    %s\n", f.Error())
		}
	}
	if r.Pages > 0 || r.Pruned > 0 {
		_, _ = fmt.Fprintf(w, "  index pages=%d pruned_dirs=%d\n", r.Pages, r.Pruned)
	}
	if r.Error != "" {
		_, _ = fmt.Fprintf(w, "  error: %s\n", r.Error)
	}
}
