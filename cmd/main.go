package main

import (
	"context"
	"os"

	"github.com/xyproto/env/v2"
	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	kea "go.kea.dev/pkg"
)

func main() {
	replCmd := &cli.Command{
		Name:        "repl",
		Description: "interactive session reading from stdin",
		Action:      replAct,
	}

	runCmd := &cli.Command{
		Name:        "run",
		Description: "compile and run source files",
		Action:      runAct,
		Args:        cli.Args{},
	}

	app := &cli.Command{
		Name:        "kea",
		Description: "kea compiles and runs the kea expression language",
		Commands: []*cli.Command{
			replCmd,
			runCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func replAct(c *cli.Command) error {
	ctx := tlog.ContextWithSpan(context.Background(), tlog.Root())

	s := kea.NewSession(kea.NewNamedLexer("stdin", os.Stdin), kea.NewInterp())
	s.SetPrompt(env.Str("KEA_PROMPT", "ready> "))
	s.SetOptimize(!env.Bool("KEA_NOOPT"))

	return s.Run(ctx)
}

func runAct(c *cli.Command) error {
	ctx := tlog.ContextWithSpan(context.Background(), tlog.Root())

	for _, a := range c.Args {
		f, err := os.Open(a)
		if err != nil {
			return errors.Wrap(err, "open %v", a)
		}

		s := kea.NewSession(kea.NewNamedLexer(a, f), kea.NewInterp())
		s.SetOptimize(!env.Bool("KEA_NOOPT"))

		err = s.Run(ctx)
		_ = f.Close()

		if err != nil {
			return errors.Wrap(err, "run %v", a)
		}
	}

	return nil
}
