//go:build darwin || dragonfly || freebsd || linux || nacl || netbsd || openbsd || solaris

package logger

import (
	"io"
	"os"
)

// #include <unistd.h>
import "C"

// isatty returns true if file refers to a terminal
func isatty(file *os.File) bool {
	fd := file.Fd()
	return C.isatty(C.int(fd)) == 1
}

// colorConsoleWrite writes line to out, wrapped in an ANSI color escape
// sequence chosen by level
func colorConsoleWrite(out io.Writer, level Level, line []byte) {
	var beg, end string

	switch {
	case level&Error != 0:
		beg, end = "\033[31;1m", "\033[0m" // Red
	case level&Info != 0:
		beg, end = "\033[32;1m", "\033[0m" // Green
	case level&Debug != 0:
		beg, end = "\033[37;1m", "\033[0m" // White
	case level&TraceUSB != 0:
		beg, end = "\033[37m", "\033[0m" // Gray
	}

	out.Write([]byte(beg))
	out.Write(line)
	out.Write([]byte(end))
}
