package logger

import (
	"bytes"
	stdlog "log"
)

// lineWriter implements io.Writer on top of a per-line callback. It
// splits an arbitrary stream of writes into complete lines and invokes
// the callback once per line, buffering any trailing incomplete line
// until the next Write completes it.
type lineWriter struct {
	callback func([]byte)
	buf      bytes.Buffer
}

func (lw *lineWriter) Write(text []byte) (n int, err error) {
	n = len(text)

	for len(text) > 0 {
		var line []byte
		var unfinished bool

		if i := bytes.IndexByte(text, '\n'); i >= 0 {
			i++
			line = text[:i]
			text = text[i:]
		} else {
			line = text
			text = nil
			unfinished = true
		}

		if unfinished || lw.buf.Len() > 0 {
			lw.buf.Write(line)
			line = lw.buf.Bytes()
		}

		if !unfinished {
			lw.callback(bytes.TrimRight(line, "\n"))
			lw.buf.Reset()
		}
	}

	return
}

// StdLogger returns a *log.Logger that feeds every line it's given into
// this Logger at the given level and prefix byte. It's used to adapt
// packages that only accept a *log.Logger, such as net/http.Server's
// ErrorLog, to usbtmcd's own logging facility.
func (l *Logger) StdLogger(level Level, prefix byte) *stdlog.Logger {
	lw := &lineWriter{callback: func(line []byte) {
		l.Add(level, prefix, "%s", line)
	}}
	return stdlog.New(lw, "", 0)
}
