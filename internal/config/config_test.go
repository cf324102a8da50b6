package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/khainav/linux-usbtmc/internal/logger"
	"github.com/stretchr/testify/require"
)

const testConf = `
[io]
buffer-size = 8K
default-timeout-ms = 2500

[logging]
device-log = debug,trace-usb
console-log = error
console-color = disable
max-file-size = 128K
max-backup-files = 3
`

func writeTestConf(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfFileName), []byte(testConf), 0644))
	return dir
}

func TestLoadOverlaysDefaults(t *testing.T) {
	dir := writeTestConf(t)

	conf, err := Load(dir)
	require.NoError(t, err)

	require.EqualValues(t, 8192, conf.IOBufferSize)
	require.EqualValues(t, 2500, conf.DefaultTimeoutMs)
	require.Equal(t, logger.Debug|logger.Info|logger.Error|logger.TraceUSB, conf.LogDevice)
	require.Equal(t, logger.Error, conf.LogConsole)
	require.False(t, conf.ColorConsole)
	require.EqualValues(t, 131072, conf.LogMaxFileSize)
	require.EqualValues(t, 3, conf.LogMaxBackupFiles)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()

	conf, err := Load(dir)
	require.NoError(t, err)
	require.Equal(t, Default(), conf)
}

func TestLoadRejectsBadValue(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfFileName),
		[]byte("[io]\nbuffer-size = not-a-size\n"), 0644))

	_, err := Load(dir)
	require.Error(t, err)
}
