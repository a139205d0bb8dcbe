// Package validate provides pre-flight checks for G source loaded from
// world definition files and the /reload command: bracket/quote balance
// scanning with line positions, plus a full parse.
package validate

import (
	"fmt"
	"strings"

	"github.com/adamdray/gaia-mud/pkg/g"
)

// Severity indicates how serious a finding is.
type Severity int

const (
	SevError   Severity = iota // Will not parse
	SevWarning                 // Suspicious but loadable
)

func (s Severity) String() string {
	if s == SevWarning {
		return "warning"
	}
	return "error"
}

// Finding is one validation result.
type Finding struct {
	Severity Severity
	Line     int
	Message  string
}

func (f Finding) String() string {
	return fmt.Sprintf("%s: line %d: %s", f.Severity, f.Line, f.Message)
}

// CheckSource scans G source for structural problems, then parses it. The
// scan produces line-accurate findings the parser's offset-based errors
// cannot.
func CheckSource(src string) []Finding {
	var findings []Finding

	line := 1
	depth := 0
	inString := false
	inComment := false
	var openLines []int

	for i := 0; i < len(src); i++ {
		ch := src[i]
		switch {
		case ch == '\n':
			line++
			inComment = false
			if inString {
				findings = append(findings, Finding{SevWarning, line - 1, "newline inside string literal (use \\n)"})
			}
		case inComment:
		case ch == '\\' && inString:
			i++
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '/' && i+1 < len(src) && src[i+1] == '/':
			inComment = true
			i++
		case ch == '[':
			depth++
			openLines = append(openLines, line)
		case ch == ']':
			if depth == 0 {
				findings = append(findings, Finding{SevError, line, "unmatched ']'"})
			} else {
				depth--
				openLines = openLines[:len(openLines)-1]
			}
		}
	}
	if inString {
		findings = append(findings, Finding{SevError, line, "unterminated string literal"})
	}
	for _, l := range openLines {
		findings = append(findings, Finding{SevError, l, "unclosed '['"})
	}

	// A full parse catches everything the scan cannot.
	if _, err := g.ParseProgram(src); err != nil {
		if !hasError(findings) {
			findings = append(findings, Finding{SevError, offsetLine(src, errOffset(err)), err.Error()})
		}
	}
	return findings
}

// HasErrors reports whether any finding is an error.
func HasErrors(findings []Finding) bool { return hasError(findings) }

func hasError(findings []Finding) bool {
	for _, f := range findings {
		if f.Severity == SevError {
			return true
		}
	}
	return false
}

func errOffset(err error) int {
	switch e := err.(type) {
	case *g.LexError:
		return e.Span.Start
	case *g.ParseError:
		return e.Span.Start
	default:
		return 0
	}
}

func offsetLine(src string, off int) int {
	if off > len(src) {
		off = len(src)
	}
	return 1 + strings.Count(src[:off], "\n")
}

// Summary renders findings for an operator response.
func Summary(findings []Finding) string {
	if len(findings) == 0 {
		return "ok"
	}
	parts := make([]string, len(findings))
	for i, f := range findings {
		parts[i] = f.String()
	}
	return strings.Join(parts, "; ")
}
