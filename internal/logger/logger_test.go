package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoggerBasic(t *testing.T) {
	l := New()
	l.mode = modeConsole

	var buf bytes.Buffer
	l.out = &buf

	l.Info(0, "hello %s", "world")

	require.Contains(t, buf.String(), "hello world")
}

func TestLoggerLevelsFilter(t *testing.T) {
	l := New()
	l.mode = modeConsole
	l.SetLevels(Error)

	var buf bytes.Buffer
	l.out = &buf

	l.Debug(0, "should not appear")
	l.Error(0, "should appear")

	s := buf.String()
	require.NotContains(t, s, "should not appear")
	require.Contains(t, s, "should appear")
}

func TestLoggerNestedMessage(t *testing.T) {
	l := New()
	l.mode = modeConsole

	var buf bytes.Buffer
	l.out = &buf

	msg := l.Begin()
	msg.Debug(0, "line 1")
	msg.Debug(0, "line 2")
	msg.Commit()

	s := buf.String()
	require.Contains(t, s, "line 1")
	require.Contains(t, s, "line 2")
}

func TestLoggerHexDump(t *testing.T) {
	l := New()
	l.mode = modeConsole

	var buf bytes.Buffer
	l.out = &buf

	msg := l.Begin()
	msg.HexDump(TraceUSB, []byte{1, 2, 0x41, 0x42})
	msg.Commit()

	s := buf.String()
	require.Contains(t, s, "AB")
}

func TestLoggerCc(t *testing.T) {
	main := New()
	main.mode = modeConsole
	var mainBuf bytes.Buffer
	main.out = &mainBuf

	dev := New()
	dev.mode = modeConsole
	var devBuf bytes.Buffer
	dev.out = &devBuf

	dev.Cc(Error, main)

	dev.Error(0, "device failed")
	dev.Debug(0, "device debug, not cc'd to error mask")

	require.Contains(t, devBuf.String(), "device failed")
	require.Contains(t, mainBuf.String(), "device failed")
	require.NotContains(t, mainBuf.String(), "not cc'd")
}
