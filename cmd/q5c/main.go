// Command q5c is the driver for the q5 compiler front-end: it wires
// source text through the tokenizer, the TreeBuilder parser, and the
// lowering visitor, selecting one of the two CodegenBuilder adapters
// per spec §6's CLI surface. The command tree itself is built on
// cobra, replacing the teacher's hand-rolled cli.go/main.go dispatch
// while keeping its CommandContext-style option-struct shape and
// verbose flag naming.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/xyproto/env/v2"

	"github.com/monsieurbadia/q5c/ast"
	"github.com/monsieurbadia/q5c/codegen"
	"github.com/monsieurbadia/q5c/errors"
	"github.com/monsieurbadia/q5c/lexer"
	"github.com/monsieurbadia/q5c/lower"
	"github.com/monsieurbadia/q5c/parser"
	"github.com/monsieurbadia/q5c/token"
)

// commandContext holds the execution context for the single q5c
// command, mirroring the teacher's own CommandContext shape.
type commandContext struct {
	Path    string
	Mode    string
	OutPath string
	Verbose bool
	Color   bool
	Run     bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	ctx := &commandContext{
		Verbose: env.Bool("Q5C_VERBOSE"),
		Color:   env.Bool("Q5C_COLOR", true),
	}

	cmd := &cobra.Command{
		Use:   "q5c <path>",
		Short: "q5c compiles .q5 source through the tokens/ast/jit pipeline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx.Path = args[0]
			return runCompile(ctx)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&ctx.Mode, "mode", "jit", "pipeline stage to run: tokens|ast|jit")
	flags.StringVar(&ctx.OutPath, "out", "", "output artifact path (jit mode, without --run)")
	flags.BoolVarP(&ctx.Verbose, "verbose", "v", ctx.Verbose, "log pipeline-stage transitions to stderr")
	noColor := !ctx.Color
	flags.BoolVar(&noColor, "no-color", noColor, "disable ANSI color in diagnostics")
	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		ctx.Color = !noColor
	}

	flags.BoolVar(&ctx.Run, "run", false, "jit mode only: execute the compiled function in-process and print its result")

	return cmd
}

// runCompile drives the whole pipeline for ctx.Path: BufferQueue-fed
// Tokenizer -> TokenSink (= TreeBuilder) -> Ast -> TreeSink ->, for
// jit mode, Lowering against one of the two codegen.Builder adapters.
func runCompile(ctx *commandContext) error {
	lower.VerboseMode = ctx.Verbose

	source, err := os.ReadFile(ctx.Path)
	if err != nil {
		return fmt.Errorf("q5c: %w", err)
	}

	collector := errors.NewCollector()
	collector.SetSource(string(source))

	switch ctx.Mode {
	case "tokens":
		return runTokensMode(ctx, string(source))
	case "ast":
		return runAstMode(ctx, string(source), collector)
	case "jit":
		return runJitMode(ctx, string(source), collector)
	default:
		return fmt.Errorf("q5c: unknown --mode %q (want tokens|ast|jit)", ctx.Mode)
	}
}

// tokenPrinter is a lexer.Sink that prints every token as the
// tokenizer emits it, for --mode=tokens.
type tokenPrinter struct{ w *os.File }

func (p tokenPrinter) ProcessToken(t token.Token) {
	fmt.Fprintf(p.w, "%-14s %-10s %q\n", t.Span, t.Kind, t.Text())
}

func (p tokenPrinter) End() {}

func runTokensMode(ctx *commandContext, source string) error {
	tz := lexer.New(tokenPrinter{w: os.Stdout})
	tz.Feed(source)
	tz.End()
	return nil
}

// astCollector is a parser.TreeSink that captures the finished tree
// and reports any parse errors through the shared Collector.
type astCollector struct {
	tree *ast.Ast
	file string
	errs *errors.Collector
}

func (s *astCollector) Ast(a *ast.Ast) { s.tree = a }

func (s *astCollector) ParseError(msg string) {
	s.errs.Add(errors.ParseExpectedError(errors.Location{File: s.file}, "a valid statement", msg))
}

func parseSource(ctx *commandContext, source string, collector *errors.Collector) *ast.Ast {
	sink := &astCollector{file: ctx.Path, errs: collector}
	tb := parser.New(sink)
	tz := lexer.New(tb)
	tz.Feed(source)
	tz.End()
	return sink.tree
}

func runAstMode(ctx *commandContext, source string, collector *errors.Collector) error {
	tree := parseSource(ctx, source, collector)
	if collector.HasErrors() {
		fmt.Fprint(os.Stderr, collector.Report(ctx.Color))
	}
	if tree != nil {
		fmt.Println(tree.Text())
	}
	if collector.HasErrors() {
		return fmt.Errorf("q5c: parsing failed")
	}
	return nil
}

func runJitMode(ctx *commandContext, source string, collector *errors.Collector) error {
	tree := parseSource(ctx, source, collector)
	if collector.HasErrors() {
		fmt.Fprint(os.Stderr, collector.Report(ctx.Color))
		return fmt.Errorf("q5c: parsing failed")
	}

	moduleName := ctx.Path

	if ctx.Run {
		builder := codegen.NewJITAdapter()
		lw := lower.New(builder, collector, ctx.Path)
		lw.Lower(tree, moduleName)
		if collector.HasErrors() {
			fmt.Fprint(os.Stderr, collector.Report(ctx.Color))
			return fmt.Errorf("q5c: lowering failed")
		}

		result, err := builder.Finalize()
		if err != nil {
			return fmt.Errorf("q5c: %w", err)
		}
		fn, ok := result.Functions["main"]
		if !ok {
			return fmt.Errorf("q5c: no 'main' function to run")
		}
		fmt.Println(fn())
		return nil
	}

	builder := codegen.NewCAdapter()
	lw := lower.New(builder, collector, ctx.Path)
	lw.Lower(tree, moduleName)
	if collector.HasErrors() {
		fmt.Fprint(os.Stderr, collector.Report(ctx.Color))
		return fmt.Errorf("q5c: lowering failed")
	}

	result, err := builder.Finalize()
	if err != nil {
		return fmt.Errorf("q5c: %w", err)
	}

	if ctx.OutPath == "" {
		fmt.Println(result.OutputPath)
		return nil
	}
	if err := builder.Link(context.Background(), ctx.OutPath); err != nil {
		return fmt.Errorf("q5c: %w", err)
	}
	fmt.Println(ctx.OutPath)
	return nil
}
