package inifile

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testConf = `
; usbtmcd configuration
[io]
buffer-size = 2048
default-timeout-ms = 5000

[logging]
device-log = debug,trace-usb
console-color = enable
`

func writeTestConf(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "usbtmcd.conf")
	require.NoError(t, os.WriteFile(path, []byte(testConf), 0644))
	return path
}

func TestIniReader(t *testing.T) {
	want := []struct{ section, key, value string }{
		{"io", "buffer-size", "2048"},
		{"io", "default-timeout-ms", "5000"},
		{"logging", "device-log", "debug,trace-usb"},
		{"logging", "console-color", "enable"},
	}

	path := writeTestConf(t)
	ini, err := Open(path)
	require.NoError(t, err)
	defer ini.Close()

	var got []struct{ section, key, value string }
	for {
		rec, err := ini.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, struct{ section, key, value string }{rec.Section, rec.Key, rec.Value})
	}

	require.Equal(t, want, got)
}

func TestRecordLoadSize(t *testing.T) {
	var out int64
	rec := &Record{Key: "buffer-size", Value: "2K"}
	require.NoError(t, rec.LoadSize(&out))
	require.EqualValues(t, 2048, out)
}

func TestRecordLoadUintRange(t *testing.T) {
	var out uint
	rec := &Record{Key: "default-timeout-ms", Value: "5000"}
	require.NoError(t, rec.LoadUintRange(&out, 500, 1<<20))
	require.EqualValues(t, 5000, out)

	rec = &Record{Key: "default-timeout-ms", Value: "10"}
	require.Error(t, rec.LoadUintRange(&out, 500, 1<<20))
}
