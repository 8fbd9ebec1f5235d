// Package output renders human-facing progress and summaries. Structured
// events go to the logger instead.
package output

import "os"

const (
	colorReset   = "\033[0m"
	colorRed     = "\033[31m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorGray    = "\033[90m"
	colorBold    = "\033[1m"
	colorDimCyan = "\033[2;36m"
)

// UseColor reports whether output should be colored.
// Respects NO_COLOR, TERM=dumb and terminal detection.
func UseColor() bool {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}
	return isTerminal() || IsCI()
}

func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
