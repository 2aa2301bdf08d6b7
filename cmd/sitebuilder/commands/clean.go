package commands

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/sitebuilder/internal/pipeline"
	"git.home.luguber.info/inful/sitebuilder/internal/stage"
)

// CleanCmd implements the 'clean' command.
type CleanCmd struct{}

func (c *CleanCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	log := loggerFrom(g)

	// Cleaning touches neither the image cache nor the journal.
	orch := pipeline.New(cfg, stage.Deps{Logger: log}, pipeline.WithLogger(log))
	if err := orch.Clean(context.Background()); err != nil {
		return err
	}
	fmt.Printf("Removed %s and %s\n", cfg.DistPath(), cfg.IndexPath())
	return nil
}
