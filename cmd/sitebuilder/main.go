package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/sitebuilder/cmd/sitebuilder/commands"
	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cli := &commands.CLI{}
	parser, err := kong.New(cli,
		kong.Name("sitebuilder"),
		kong.Description("Static asset pipeline and live-reload development server"),
		kong.Vars{"version": version.String()},
		kong.UsageOnError(),
	)
	if err != nil {
		slog.Error("Failed to build CLI", "error", err)
		return 1
	}

	ctx, err := parser.Parse(args)
	if err != nil {
		var parseErr *kong.ParseError
		if errors.As(err, &parseErr) && parseErr.Context != nil {
			_ = parseErr.Context.PrintUsage(true)
		}
		return ferrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).
			Report(ferrors.WrapError(err, ferrors.CategoryValidation, "invalid arguments").Build())
	}

	err = ctx.Run(&commands.Global{Logger: slog.Default()})
	return ferrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).Report(err)
}
