// Package config loads usbtmcd's configuration file: a small set of
// validated knobs loaded from an INI file via internal/inifile, with
// defaults usable out of the box.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/khainav/linux-usbtmc/internal/inifile"
	"github.com/khainav/linux-usbtmc/internal/logger"
)

// ConfFileName is the name of usbtmcd's configuration file
const ConfFileName = "usbtmcd.conf"

// Configuration represents usbtmcd's process-wide configuration knobs
type Configuration struct {
	IOBufferSize      int64         // Bulk transfer staging buffer size, bytes
	DefaultTimeoutMs   uint         // Default per-request timeout, milliseconds
	LogDevice          logger.Level // Per-device log level mask
	LogConsole         logger.Level // Console log level mask
	ColorConsole       bool         // Enable ANSI colors on console
	LogMaxFileSize     int64        // Maximum per-device log file size
	LogMaxBackupFiles  uint         // Backup files preserved during rotation
}

// Default returns the built-in default configuration, used when no
// configuration file is present
func Default() Configuration {
	return Configuration{
		IOBufferSize:      2048,
		DefaultTimeoutMs:  5000,
		LogDevice:         logger.Debug,
		LogConsole:        logger.Debug,
		ColorConsole:      true,
		LogMaxFileSize:    logger.MaxFileSize,
		LogMaxBackupFiles: logger.MaxBackupFiles,
	}
}

// Load loads the configuration file from dir (PathConfDir in production,
// an arbitrary directory in tests), overlaying it onto Default()
func Load(dir string) (Configuration, error) {
	conf := Default()

	path := filepath.Join(dir, ConfFileName)
	err := loadInternal(&conf, path)
	if err != nil {
		return Configuration{}, fmt.Errorf("config: %s", err)
	}

	return conf, nil
}

func loadInternal(conf *Configuration, path string) error {
	ini, err := inifile.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer ini.Close()

	for {
		var rec *inifile.Record
		rec, err = ini.Next()
		if err != nil {
			break
		}

		switch rec.Section {
		case "io":
			switch rec.Key {
			case "buffer-size":
				err = rec.LoadSize(&conf.IOBufferSize)
			case "default-timeout-ms":
				err = rec.LoadUintRange(&conf.DefaultTimeoutMs, 1, 1<<20)
			}
		case "logging":
			switch rec.Key {
			case "device-log":
				err = loadLogLevel(&conf.LogDevice, rec)
			case "console-log":
				err = loadLogLevel(&conf.LogConsole, rec)
			case "console-color":
				err = rec.LoadNamedBool(&conf.ColorConsole, "disable", "enable")
			case "max-file-size":
				err = rec.LoadSize(&conf.LogMaxFileSize)
			case "max-backup-files":
				err = rec.LoadUint(&conf.LogMaxBackupFiles)
			}
		}

		if err != nil {
			break
		}
	}

	if err != nil && err != io.EOF {
		return err
	}

	if conf.IOBufferSize <= 0 {
		return errors.New("io.buffer-size must be positive")
	}

	// Clamp to the engine's floors: the buffer to at least 512 bytes,
	// rounded down to a multiple of 4, and the timeout to at least 500 ms
	if conf.IOBufferSize < 512 {
		conf.IOBufferSize = 512
	}
	conf.IOBufferSize &^= 3
	if conf.DefaultTimeoutMs < 500 {
		conf.DefaultTimeoutMs = 500
	}

	return nil
}

// loadLogLevel parses a comma-separated list of level names into a mask,
// independent of inifile's own key loaders since the level names are
// specific to this package's logger.Level type
func loadLogLevel(out *logger.Level, rec *inifile.Record) error {
	var mask logger.Level

	for _, s := range strings.Split(rec.Value, ",") {
		s = strings.TrimSpace(s)
		switch s {
		case "":
		case "error":
			mask |= logger.Error
		case "info":
			mask |= logger.Info | logger.Error
		case "debug":
			mask |= logger.Debug | logger.Info | logger.Error
		case "trace-usb":
			mask |= logger.TraceUSB | logger.Debug | logger.Info | logger.Error
		case "all":
			mask |= logger.All
		default:
			return fmt.Errorf("%s: invalid log level %q", rec.Key, s)
		}
	}

	*out = mask
	return nil
}
