// Package cli provides shared formatting helpers for CLI output.
package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// ANSI color constants.
const (
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Red     = "\033[31m"
	Cyan    = "\033[36m"
	DimCyan = "\033[2;36m"
	Dim     = "\033[2m"
	Bold    = "\033[1m"
	Reset   = "\033[0m"
)

// Box width is the inner content width (between the border characters).
const boxWidth = 40

// Margin is the left indent for all branded output.
const margin = "  "

// ShortenHome replaces $HOME prefix with ~.
func ShortenHome(path string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	if path == home || strings.HasPrefix(path, home+string(os.PathSeparator)) {
		return "~" + path[len(home):]
	}
	return path
}

// FormatNumber adds comma separators (1234 -> "1,234").
func FormatNumber(n int) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return FormatNumber(n/1000) + "," + fmt.Sprintf("%03d", n%1000)
}

// Header prints a small heavy-border box with a title. Used by `lessons stats`.
func Header(w io.Writer, title string) {
	fmt.Fprintln(w)
	heavyTop := margin + "┏" + strings.Repeat("━", boxWidth) + "┓"
	heavyBottom := margin + "┗" + strings.Repeat("━", boxWidth) + "┛"

	padded := padRight("  "+title, boxWidth)

	fmt.Fprintf(w, "%s%s%s\n", Cyan, heavyTop, Reset)
	fmt.Fprintf(w, "%s%s┃%s┃%s\n", Cyan, margin, padded, Reset)
	fmt.Fprintf(w, "%s%s%s\n", Cyan, heavyBottom, Reset)
}

// Section prints a section divider line: ── Name ─────────────────
func Section(w io.Writer, name string) {
	prefix := "── " + name + " "
	remaining := boxWidth + 2 - runeLen(prefix)
	if remaining < 0 {
		remaining = 0
	}
	rule := prefix + strings.Repeat("─", remaining)
	fmt.Fprintf(w, "\n%s%s%s%s\n\n", margin, Cyan, rule, Reset)
}

// Box prints a light-border box around content lines.
func Box(w io.Writer, lines []string) {
	lightTop := margin + "┌" + strings.Repeat("─", boxWidth) + "┐"
	lightBottom := margin + "└" + strings.Repeat("─", boxWidth) + "┘"

	fmt.Fprintln(w)
	fmt.Fprintln(w, lightTop)
	for _, line := range lines {
		fmt.Fprintf(w, "%s│%s│\n", margin, padRight("  "+line, boxWidth))
	}
	fmt.Fprintln(w, lightBottom)
}

// Row prints an indented "label  value" line with the label dimmed and
// padded to width runes.
func Row(w io.Writer, label, value string, width int) {
	fmt.Fprintf(w, "%s%s%s%s %s\n", margin, Dim, padRight(label, width), Reset, value)
}

// Check prints a pass/fail line: ✓ in green or ✗ in red.
func Check(w io.Writer, ok bool, msg string) {
	if ok {
		fmt.Fprintf(w, "%s%s✓%s %s\n", margin, Green, Reset, msg)
		return
	}
	fmt.Fprintf(w, "%s%s✗%s %s\n", margin, Red, Reset, msg)
}

// padRight pads s with spaces to exactly width characters.
// If s is longer than width, it is truncated.
func padRight(s string, width int) string {
	n := runeLen(s)
	if n >= width {
		r := []rune(s)
		return string(r[:width])
	}
	return s + strings.Repeat(" ", width-n)
}

// runeLen counts the display width in runes.
func runeLen(s string) int {
	return len([]rune(s))
}
