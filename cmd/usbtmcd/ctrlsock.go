// Control socket: usbtmcd runs a tiny HTTP server on top of a UNIX domain
// socket, used exclusively by the "status" run mode to query a running
// daemon without needing root or a shared config format.
package main

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"syscall"

	"github.com/khainav/linux-usbtmc/internal/config"
	"github.com/khainav/linux-usbtmc/internal/logger"
)

// ErrNoDaemon and ErrAccess classify CtrlsockDial's connection failure
var (
	ErrNoDaemon = errors.New("usbtmcd: daemon is not running")
	ErrAccess   = errors.New("usbtmcd: access to control socket denied")
)

var pathControlSocket = config.PathProgState + "/control"

type ctrlsockServer struct {
	http.Server
	manager *deviceManager
}

func newCtrlsockServer(m *deviceManager, log *logger.Logger) *ctrlsockServer {
	s := &ctrlsockServer{manager: m}
	s.Handler = http.HandlerFunc(s.handle)
	s.ErrorLog = log.StdLogger(logger.Error, '!')
	return s
}

func (s *ctrlsockServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet || r.URL.Path != "/status" {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write(s.manager.StatusText())
}

// Start listens on the control socket and serves requests in the
// background until Close is called
func (s *ctrlsockServer) Start() error {
	os.Remove(pathControlSocket)

	listener, err := net.ListenUnix("unix", &net.UnixAddr{Name: pathControlSocket, Net: "unix"})
	if err != nil {
		return err
	}
	os.Chmod(pathControlSocket, 0777)

	go s.Serve(listener)
	return nil
}

// Stop shuts down the control socket server
func (s *ctrlsockServer) Stop() {
	s.Close()
}

// CtrlsockDial connects to the control socket of a running usbtmcd daemon
func CtrlsockDial() (net.Conn, error) {
	conn, err := net.DialUnix("unix", nil, &net.UnixAddr{Name: pathControlSocket, Net: "unix"})
	if err == nil {
		return conn, nil
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if sysErr, ok := opErr.Err.(*os.SyscallError); ok {
			switch sysErr.Err {
			case syscall.ECONNREFUSED, syscall.ENOENT:
				return nil, ErrNoDaemon
			case syscall.EACCES, syscall.EPERM:
				return nil, ErrAccess
			}
		}
	}

	return nil, err
}

// StatusRetrieve connects to a running usbtmcd daemon and returns its
// status report as printable text
func StatusRetrieve() ([]byte, error) {
	client := &http.Client{
		Transport: &http.Transport{
			DialContext: func(_ context.Context, _, _ string) (net.Conn, error) {
				return CtrlsockDial()
			},
		},
	}

	rsp, err := client.Get("http://usbtmcd/status")
	if err != nil {
		return nil, err
	}
	defer rsp.Body.Close()

	return io.ReadAll(rsp.Body)
}
