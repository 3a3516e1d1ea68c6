package kea

import (
	"context"
	"fmt"
	"io"
	"os"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

// Session drives incremental compilation: every top-level construct lowers
// into its own fresh compilation unit. Definitions install into the engine,
// retracting any earlier definition of the same name first; bare expressions
// run immediately and their unit is retracted once evaluation completes.
type Session struct {
	parser   *Parser
	registry *Registry
	engine   Engine
	handles  map[string]Handle

	optimize bool
	prompt   string
	out      io.Writer
}

func NewSession(tokenizer Tokenizer, engine Engine) *Session {
	return &Session{
		parser:   NewParser(tokenizer),
		registry: NewRegistry(),
		engine:   engine,
		handles:  make(map[string]Handle),
		optimize: true,
		out:      os.Stdout,
	}
}

// SetOptimize toggles the per-function constant folding pass.
func (s *Session) SetOptimize(on bool) {
	s.optimize = on
}

// SetPrompt makes Run print p before each top-level construct.
func (s *Session) SetPrompt(p string) {
	s.prompt = p
}

// SetOutput redirects where evaluation results print. Defaults to stdout.
func (s *Session) SetOutput(w io.Writer) {
	s.out = w
}

// Run consumes top-level constructs until end of input. Parse and codegen
// failures are reported and the session continues with the next construct;
// they never replace previously installed code.
func (s *Session) Run(ctx context.Context) error {
	for {
		if s.prompt != "" {
			fmt.Fprint(s.out, s.prompt)
		}

		switch tok := s.parser.Current(); {
		case tok.Typ == TokenEOF:
			return nil
		case tok.Typ == TokenError:
			return errors.New("lex: %v", tok.Value)
		case tok.Typ == TokenChar && tok.Value == ";":
			// Top-level separator.
			s.parser.Advance()
		case tok.Typ == TokenDef:
			s.report(ctx, s.handleDefinition(ctx))
		case tok.Typ == TokenExtern:
			s.report(ctx, s.handleExtern(ctx))
		default:
			s.report(ctx, s.handleTopLevel(ctx))
		}
	}
}

func (s *Session) report(ctx context.Context, err error) {
	if err == nil {
		return
	}

	tlog.SpanFromContext(ctx).Printw("error", "err", err)
	fmt.Fprintf(s.out, "error: %v\n", err)
}

func (s *Session) handleDefinition(ctx context.Context) error {
	fn, err := s.parser.ParseDefinition()
	if err != nil {
		s.parser.Advance() // Resync: skip the offending token
		return errors.Wrap(err, "parse")
	}

	cg := NewCodegen(s.registry)

	f, err := cg.Compile(fn)
	if err != nil {
		return errors.Wrap(err, "codegen")
	}

	if s.optimize {
		FoldConstants(f)
	}

	// Last definition wins: retract the previous unit before installing.
	if old, ok := s.handles[fn.Proto.Name]; ok {
		s.engine.Remove(old)
	}
	s.handles[fn.Proto.Name] = s.engine.Add(cg.Module())

	tlog.SpanFromContext(ctx).Printw("defined", "name", fn.Proto.Name, "params", len(fn.Proto.Params))

	return nil
}

func (s *Session) handleExtern(ctx context.Context) error {
	proto, err := s.parser.ParseExtern()
	if err != nil {
		s.parser.Advance()
		return errors.Wrap(err, "parse")
	}

	// The declaration-only unit has nothing executable; registering the
	// prototype is what makes later units resolve the name.
	cg := NewCodegen(s.registry)
	if _, err := cg.Compile(proto); err != nil {
		return errors.Wrap(err, "codegen")
	}

	tlog.SpanFromContext(ctx).Printw("declared extern", "name", proto.Name, "params", len(proto.Params))

	return nil
}

func (s *Session) handleTopLevel(ctx context.Context) error {
	fn, err := s.parser.ParseTopLevelExpr()
	if err != nil {
		s.parser.Advance()
		return errors.Wrap(err, "parse")
	}

	cg := NewCodegen(s.registry)

	f, err := cg.Compile(fn)
	if err != nil {
		return errors.Wrap(err, "codegen")
	}

	if s.optimize {
		FoldConstants(f)
	}

	h := s.engine.Add(cg.Module())
	res, err := s.engine.Call(AnonFuncName)
	s.engine.Remove(h)

	if err != nil {
		return errors.Wrap(err, "evaluate")
	}

	fmt.Fprintf(s.out, "%v\n", res)

	return nil
}
