// usbtmcd is a userspace USBTMC host driver: it discovers USB Test &
// Measurement Class devices, claims their interface, and serves reads,
// writes and control operations to local clients through the packages
// under internal/usbtmc.
package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/gousb"

	"github.com/khainav/linux-usbtmc/internal/config"
	"github.com/khainav/linux-usbtmc/internal/logger"
	"github.com/khainav/linux-usbtmc/internal/transport"
)

// Version is the usbtmcd release version
const Version = "0.1.0"

const usageText = `Usage:
    %s mode [options]

Modes are:
    standalone  - run forever, automatically discover USBTMC devices
    udev        - like standalone, but exit once the last tracked
                  device disappears
    debug       - logs duplicated on console, -bg is ignored
    check       - check configuration and list matching devices, then exit
    status      - print usbtmcd status and exit

Options are:
    -bg         - run in background (ignored in debug mode)
`

// RunMode selects what main does after argument parsing
type RunMode int

const (
	RunDebug RunMode = iota
	RunStandalone
	RunUdev
	RunCheck
	RunStatus
)

func (m RunMode) String() string {
	switch m {
	case RunDebug:
		return "debug"
	case RunStandalone:
		return "standalone"
	case RunUdev:
		return "udev"
	case RunCheck:
		return "check"
	case RunStatus:
		return "status"
	}
	return fmt.Sprintf("unknown(%d)", int(m))
}

// runParams holds the result of argument parsing
type runParams struct {
	mode       RunMode
	background bool
}

func usage() {
	fmt.Printf(usageText, os.Args[0])
	os.Exit(0)
}

func usageError(format string, args ...interface{}) {
	if format != "" {
		fmt.Printf(format+"\n", args...)
	}
	fmt.Printf("Try %s -h for more information\n", os.Args[0])
	os.Exit(1)
}

func parseArgv() runParams {
	params := runParams{mode: RunDebug}

	modes := 0
	for _, arg := range os.Args[1:] {
		switch arg {
		case "-h", "-help", "--help":
			usage()
		case "standalone":
			params.mode = RunStandalone
			modes++
		case "udev":
			params.mode = RunUdev
			modes++
		case "debug":
			params.mode = RunDebug
			modes++
		case "check":
			params.mode = RunCheck
			modes++
		case "status":
			params.mode = RunStatus
			modes++
		case "-bg":
			params.background = true
		default:
			usageError("Invalid argument %s", arg)
		}
	}

	if modes > 1 {
		usageError("Conflicting run modes")
	}
	if params.mode == RunDebug {
		params.background = false
	}

	return params
}

// Conf is the process-wide configuration, loaded once in main
var Conf config.Configuration

// Log is the main daemon logger; it carbon-copies every level to Console
var (
	Log     = logger.New()
	Console = logger.New()
)

func main() {
	params := parseArgv()

	var err error
	Conf, err = config.Load(config.PathConfDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if params.mode != RunDebug && params.mode != RunCheck && params.mode != RunStatus {
		Console.ToNowhere()
	} else if Conf.ColorConsole {
		Console.ToColorConsole()
	} else {
		Console.ToConsole()
	}

	Log.SetLevels(Conf.LogConsole)
	Console.SetLevels(Conf.LogConsole)
	Log.Cc(logger.All, Console)

	if params.mode == RunStatus {
		printStatus()
		return
	}

	if params.mode == RunCheck {
		runCheck()
		return
	}

	if params.background {
		if err := Daemonize(); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	os.MkdirAll(config.PathLockDir, 0755)
	lock, err := os.OpenFile(config.PathLockFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	Log.Check(err)
	defer lock.Close()

	if err := FileLock(lock); err != nil {
		if params.mode == RunUdev {
			return // not an error: another instance is already serving
		}
		Log.Exit(0, "usbtmcd already running")
	}
	defer FileUnlock(lock)

	Log.Info(' ', "===============================")
	Log.Info(' ', "usbtmcd started in %q mode, pid=%d", params.mode, os.Getpid())
	defer Log.Info(' ', "usbtmcd finished")

	if params.mode != RunDebug {
		// Signals Daemonize's waiting parent that initialization
		// succeeded: it's watching for EOF on our stdout/stderr.
		Log.Check(CloseStdInOutErr())
	}

	run(params)
}

// runCheck verifies the configuration loads and lists currently-matched
// USBTMC devices, then exits.
func runCheck() {
	Console.Info(0, "Configuration: OK")

	usbCtx := gousb.NewContext()
	defer usbCtx.Close()

	addrs, err := transport.Scan(usbCtx)
	if err != nil {
		Console.Info(0, "Can't enumerate USB devices: %s", err)
		return
	}
	if len(addrs) == 0 {
		Console.Info(0, "No USBTMC devices found")
		return
	}

	Console.Info(0, "USBTMC devices:")
	for i, addr := range addrs {
		Console.Info(0, " %3d. %s", i+1, addr)
	}
}

// run is the long-lived service loop shared by standalone/udev/debug modes
func run(params runParams) {
	usbCtx := gousb.NewContext()
	defer usbCtx.Close()

	manager := newDeviceManager(usbCtx, Log)

	sock := newCtrlsockServer(manager, Log)
	if err := sock.Start(); err != nil {
		Log.Error('!', "control socket: %s", err)
	}
	defer sock.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// No libusb hotplug callback is wired (see DESIGN.md); a 1s poll
	// interval stands in for it, which is frequent enough for
	// interactive bench use without meaningfully loading the bus.
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	manager.Poll(ctx)
	for range ticker.C {
		manager.Poll(ctx)

		if params.mode == RunUdev && manager.Empty() {
			break
		}
	}
}

// printStatus prints the status of a running usbtmcd daemon, if any
func printStatus() {
	text, err := StatusRetrieve()
	if err != nil {
		Console.Info(0, "%s", err)
		return
	}

	text = bytes.Trim(text, "\n")
	for _, line := range bytes.Split(text, []byte("\n")) {
		Console.Info(0, "%s", line)
	}
}
