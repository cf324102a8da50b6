package config

// Well-known filesystem locations
const (
	// PathConfDir is the directory searched for the configuration file
	PathConfDir = "/etc/usbtmcd"

	// PathProgState is the directory for runtime state
	PathProgState = "/var/lib/usbtmcd"

	// PathLockDir holds the daemon's lock file
	PathLockDir = PathProgState + "/lock"

	// PathLockFile is the daemon's lock file
	PathLockFile = PathLockDir + "/usbtmcd.lock"

	// PathLogDir is the directory per-device log files are written to
	PathLogDir = PathProgState + "/log"
)
