// Package ipc locates the local socket a running clipscope server listens
// on, so CLI commands on the same host can reach it without a TCP port or
// token.
//
// The channel carries the same Inspector gRPC service as the TCP port. It is
// a Unix domain socket on Linux and macOS and a named pipe on Windows.
package ipc

import (
	"context"
	"net"
	"os"
	"time"
)

// SocketPath returns the platform-appropriate path for the IPC socket.
//
//   - Linux / macOS: $XDG_RUNTIME_DIR/clipscope.sock, else $TMPDIR/clipscope.sock
//   - Windows:       \\.\pipe\clipscope
//
// $CLIPSCOPE_SOCKET overrides both.
func SocketPath() string {
	if s := os.Getenv("CLIPSCOPE_SOCKET"); s != "" {
		return s
	}
	return socketPath()
}

// IsRunning reports whether a server appears to be listening on the IPC
// socket. It does a cheap dial-and-close; no data is exchanged.
func IsRunning() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	c, err := dialIPC(ctx, SocketPath())
	if err != nil {
		return false
	}
	_ = c.Close()
	return true
}

// Listen creates a listener on the IPC socket path, clearing any stale
// socket left by a crashed run.
func Listen() (net.Listener, error) {
	return listenIPC(SocketPath())
}

// Dialer connects to the IPC socket. Its signature fits
// grpc.WithContextDialer; the address argument is ignored.
func Dialer(ctx context.Context, _ string) (net.Conn, error) {
	return dialIPC(ctx, SocketPath())
}
