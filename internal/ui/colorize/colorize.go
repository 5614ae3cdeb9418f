// Package colorize highlights EVM disassembly listings for the terminal.
package colorize

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// NoColorEnv disables colouring when set to any value.
const NoColorEnv = "EVMNORM_NO_COLOR"

// Enabled reports whether colouring is on.
func Enabled() bool {
	return os.Getenv(NoColorEnv) == ""
}

// getListingLexer returns an assembly lexer with fallbacks
func getListingLexer() chroma.Lexer {
	// nasm tokenizes mnemonics, 0x literals and ; comments the way listings use them
	candidates := []string{"nasm", "gas"}
	for _, name := range candidates {
		if lexer := lexers.Get(name); lexer != nil {
			return lexer
		}
	}
	return nil
}

// getDisasmStyle returns the disassembly style with fallbacks
func getDisasmStyle() *chroma.Style {
	candidates := []string{"evm-dark", "dracula", "monokai"}
	for _, name := range candidates {
		if style := styles.Get(name); style != nil {
			return style
		}
	}
	return styles.Fallback
}

// getTerminalFormatter returns an appropriate terminal formatter
func getTerminalFormatter() chroma.Formatter {
	// Try high-color first, then fallback
	candidates := []string{"terminal16m", "terminal256"}
	for _, name := range candidates {
		if formatter := formatters.Get(name); formatter != nil {
			return formatter
		}
	}
	return formatters.Fallback
}

// ColorizeListing highlights a multi-line listing in one pass.
func ColorizeListing(listing string) (string, error) {
	if !Enabled() {
		return listing, nil
	}

	var sb strings.Builder
	for _, line := range strings.SplitAfter(listing, "\n") {
		nl := strings.HasSuffix(line, "\n")
		line = strings.TrimSuffix(line, "\n")
		if line == "" {
			if nl {
				sb.WriteByte('\n')
			}
			continue
		}
		sb.WriteString(ColorizeInstructionLine(line))
		if nl {
			sb.WriteByte('\n')
		}
	}
	return sb.String(), nil
}

// ColorizeInstructionLine colorizes a single listing line of the form
// "0010  PUSH2 0x0010" while preserving its spacing.
func ColorizeInstructionLine(line string) string {
	if !Enabled() {
		return line
	}

	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, ";") {
		return fmt.Sprintf("\033[38;2;235;194;237m%s\033[0m", line)
	}

	offset, rest, ok := strings.Cut(line, " ")
	if !ok || !isHex(offset) {
		return colorizeFullLine(line)
	}

	// Color offset in gray (79, 79, 79)
	return fmt.Sprintf("\033[38;2;79;79;79m%s\033[0m %s", offset, colorizeFullLine(rest))
}

func isHex(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if !((ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')) {
			return false
		}
	}
	return true
}

// colorizeFullLine uses Chroma to colorize an instruction
func colorizeFullLine(line string) string {
	lexer := getListingLexer()
	if lexer == nil {
		return line
	}

	iterator, err := lexer.Tokenise(nil, line)
	if err != nil {
		return line
	}

	var buf strings.Builder
	if err := getTerminalFormatter().Format(&buf, getDisasmStyle(), iterator); err != nil {
		return line
	}
	// the lexer terminates its input with a newline
	return strings.ReplaceAll(buf.String(), "\n", "")
}

// StripANSI removes ANSI escape codes and returns the plain string
func StripANSI(s string) string {
	var result strings.Builder
	inEscape := false

	for _, r := range s {
		if r == '\x1b' {
			inEscape = true
		} else if inEscape {
			if r == 'm' {
				inEscape = false
			}
		} else {
			result.WriteRune(r)
		}
	}

	return result.String()
}
