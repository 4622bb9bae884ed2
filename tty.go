package corepack

import (
	"os"
	"strconv"

	"github.com/mattn/go-isatty"
)

// ForceTTYEnv is the environment variable that can force progress output
// on regardless of the real isatty(2) result: bit 2 (value 4) of its
// integer value forces TTY mode on. It cannot force TTY mode off.
const ForceTTYEnv = "COREPACK_FORCE_TTY"

const forceTTYBit = 1 << 2

var stderrIsTTY = detectStderrTTY()

func detectStderrTTY() bool {
	if raw, ok := os.LookupEnv(ForceTTYEnv); ok {
		if n, err := strconv.Atoi(raw); err == nil && n&forceTTYBit != 0 {
			return true
		}
	}
	return isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
}

// StderrIsTTY reports whether standard error is attached to a terminal,
// as determined once at process start (and optionally overridden by
// COREPACK_FORCE_TTY). It exists solely to gate progress messages, e.g.
// from the MIDX merger.
func StderrIsTTY() bool {
	return stderrIsTTY
}
