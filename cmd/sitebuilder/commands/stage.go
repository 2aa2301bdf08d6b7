package commands

import (
	"context"
	"os"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/stage"
)

// StageCmd implements the 'stage' command.
type StageCmd struct {
	Name string `arg:"" help:"Stage to run (styles, scripts, images, markup, lib, static)"`
}

func (s *StageCmd) Run(g *Global, root *CLI) error {
	name, err := stage.ParseName(s.Name)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryValidation, "unknown stage").
			WithContext("stage", s.Name).Build()
	}
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	env, err := newBuildEnv(cfg, loggerFrom(g), nil)
	if err != nil {
		return err
	}
	defer env.Close()

	report, err := env.orch.RunStage(context.Background(), name)
	if err != nil {
		return err
	}
	printReport(os.Stdout, report)
	return nil
}
