// Package errors implements the compiler's diagnostic taxonomy: a
// CompilerError/ErrorCollector pair modeled on the teacher's own
// errors.go (Level/Category/SourceLocation/ErrorContext, a colorized
// Format, and an accumulate-then-Report collector), retargeted at
// this pipeline's own error kinds (spec §7).
package errors

import (
	"fmt"
	"strings"

	"github.com/monsieurbadia/q5c/span"
)

// Level indicates the severity of a diagnostic.
type Level int

const (
	LevelWarning Level = iota
	LevelError
	LevelFatal
)

func (l Level) String() string {
	switch l {
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal error"
	default:
		return "unknown"
	}
}

// Kind is the closed taxonomy of spec §7: each row of that table is
// one Kind, carrying its own recovery behavior at the call site
// rather than here.
type Kind int

const (
	LexUnknown Kind = iota
	LexBadEscape
	LexUnterminatedString
	ParseExpected
	ParseUnimplemented
	ScopeDuplicate
	CodegenError
)

func (k Kind) String() string {
	switch k {
	case LexUnknown:
		return "lex-unknown"
	case LexBadEscape:
		return "lex-bad-escape"
	case LexUnterminatedString:
		return "lex-unterminated-string"
	case ParseExpected:
		return "parse-expected"
	case ParseUnimplemented:
		return "parse-unimplemented"
	case ScopeDuplicate:
		return "scope-duplicate"
	case CodegenError:
		return "codegen-error"
	default:
		return "unknown"
	}
}

// Location pairs a source file name with the span a diagnostic
// points at; File is blank for in-memory/test sources.
type Location struct {
	File string
	Span span.Span
}

func (l Location) String() string {
	if l.File == "" {
		return l.Span.Start.String()
	}
	return fmt.Sprintf("%s:%s", l.File, l.Span.Start)
}

// Context carries the optional extras the teacher's formatter prints:
// the offending source line, a "did you mean" suggestion, and a
// longer help note.
type Context struct {
	SourceLine string
	Suggestion string
	HelpText   string
}

// CompilerError is a single diagnostic: what kind of failure, where,
// and why.
type CompilerError struct {
	Level    Level
	Kind     Kind
	Message  string
	Location Location
	Context  Context
}

func (e CompilerError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Location, e.Kind, e.Message)
}

// Format renders a multi-line, optionally ANSI-colored diagnostic in
// the teacher's "error: msg / --> loc / help:" shape.
func (e CompilerError) Format(useColor bool) string {
	var sb strings.Builder

	if useColor {
		sb.WriteString(levelColor(e.Level))
	}
	sb.WriteString(e.Level.String())
	if useColor {
		sb.WriteString("\033[0m")
	}
	sb.WriteString(fmt.Sprintf(" [%s]: %s\n", e.Kind, e.Message))

	if useColor {
		sb.WriteString("\033[1;34m")
	}
	sb.WriteString("  --> ")
	sb.WriteString(e.Location.String())
	if useColor {
		sb.WriteString("\033[0m")
	}
	sb.WriteString("\n")

	if e.Context.SourceLine != "" {
		col := int(e.Location.Span.Start.Column.Number())
		sb.WriteString("   | ")
		sb.WriteString(e.Context.SourceLine)
		sb.WriteString("\n   | ")
		if col > 0 {
			sb.WriteString(strings.Repeat(" ", col-1))
		}
		if useColor {
			sb.WriteString("\033[1;31m")
		}
		sb.WriteString("^")
		if useColor {
			sb.WriteString("\033[0m")
		}
		sb.WriteString("\n")
	}

	if e.Context.Suggestion != "" {
		sb.WriteString("   help: " + e.Context.Suggestion + "\n")
	}
	if e.Context.HelpText != "" {
		sb.WriteString("   note: " + e.Context.HelpText + "\n")
	}

	return sb.String()
}

func levelColor(l Level) string {
	switch l {
	case LevelWarning:
		return "\033[1;33m"
	case LevelFatal:
		return "\033[1;35m"
	default:
		return "\033[1;31m"
	}
}

// Collector accumulates CompilerErrors across the tokenizer, parser,
// and lowering stages for a single batched report, per spec §7's
// "propagation" paragraph: the parser keeps going after an error, and
// lowering moves on to the next top-level declaration.
type Collector struct {
	errors     []CompilerError
	warnings   []CompilerError
	sourceCode string
}

func NewCollector() *Collector { return &Collector{} }

// SetSource stores the full source text so Add can back-fill
// Context.SourceLine automatically.
func (c *Collector) SetSource(source string) { c.sourceCode = source }

func (c *Collector) Add(err CompilerError) {
	if err.Context.SourceLine == "" && c.sourceCode != "" {
		err.Context.SourceLine = c.sourceLine(err.Location.Span)
	}
	if err.Level == LevelWarning {
		c.warnings = append(c.warnings, err)
		return
	}
	c.errors = append(c.errors, err)
}

func (c *Collector) sourceLine(sp span.Span) string {
	lineNum := int(sp.Start.Line)
	lines := strings.Split(c.sourceCode, "\n")
	if lineNum < 0 || lineNum >= len(lines) {
		return ""
	}
	return lines[lineNum]
}

func (c *Collector) HasErrors() bool { return len(c.errors) > 0 }

func (c *Collector) ErrorCount() int { return len(c.errors) }

func (c *Collector) WarningCount() int { return len(c.warnings) }

func (c *Collector) Errors() []CompilerError { return c.errors }

// Report formats every accumulated error and warning, followed by a
// one-line summary, matching the teacher's ErrorCollector.Report.
func (c *Collector) Report(useColor bool) string {
	var sb strings.Builder
	for i, err := range c.errors {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(err.Format(useColor))
	}
	for i, warn := range c.warnings {
		if i > 0 || len(c.errors) > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(warn.Format(useColor))
	}
	if len(c.errors) > 0 || len(c.warnings) > 0 {
		sb.WriteString(fmt.Sprintf("\n%d error(s), %d warning(s)\n", len(c.errors), len(c.warnings)))
	}
	return sb.String()
}

// --- constructors for each taxonomy row ------------------------------

func LexUnknownError(loc Location, ch rune) CompilerError {
	return CompilerError{
		Level: LevelError, Kind: LexUnknown,
		Message: fmt.Sprintf("unsupported character %q", ch),
	}.at(loc)
}

func LexBadEscapeError(loc Location, msg string) CompilerError {
	return CompilerError{Level: LevelError, Kind: LexBadEscape, Message: msg}.at(loc)
}

func LexUnterminatedStringError(loc Location) CompilerError {
	return CompilerError{
		Level: LevelError, Kind: LexUnterminatedString,
		Message: "unterminated string or character literal",
	}.at(loc)
}

func ParseExpectedError(loc Location, expected, actual string) CompilerError {
	return CompilerError{
		Level: LevelError, Kind: ParseExpected,
		Message: fmt.Sprintf("expected %s, found %s", expected, actual),
	}.at(loc)
}

func ParseUnimplementedError(loc Location, what string) CompilerError {
	return CompilerError{
		Level: LevelError, Kind: ParseUnimplemented,
		Message: fmt.Sprintf("%s is not implemented by lowering", what),
	}.at(loc)
}

func ScopeDuplicateError(loc Location, name string) CompilerError {
	return CompilerError{
		Level: LevelError, Kind: ScopeDuplicate,
		Message: fmt.Sprintf("%q already exists in this scope", name),
		Context: Context{HelpText: "the first declaration is kept; this one is discarded"},
	}.at(loc)
}

func CodegenFailure(loc Location, fun, msg string) CompilerError {
	return CompilerError{
		Level: LevelError, Kind: CodegenError,
		Message: fmt.Sprintf("in %s: %s", fun, msg),
	}.at(loc)
}

func (e CompilerError) at(loc Location) CompilerError {
	e.Location = loc
	return e
}

// WithSuggestion attaches a "did you mean" hint to an existing
// diagnostic; callers build the suggestion text themselves (e.g. from
// an identifier-similarity search) and thread it through here so the
// taxonomy constructors above stay free of that concern.
func (e CompilerError) WithSuggestion(s string) CompilerError {
	e.Context.Suggestion = s
	return e
}
