package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc"

	"go.klb.dev/clipscope/internal/grpcservice"
	"go.klb.dev/clipscope/internal/ipc"
)

// defaultAddr is where "serve" listens and where clients look for it.
const defaultAddr = "127.0.0.1:8753"

// dialIPC returns a *grpc.ClientConn connected to the local IPC socket.
// No auth needed; the socket is local and owner-restricted.
func dialIPC() (*grpc.ClientConn, error) {
	opts := append(grpcservice.DialOptions(""), grpc.WithContextDialer(ipc.Dialer))
	return grpc.NewClient("passthrough:///clipscope-ipc", opts...)
}

// dialServer connects to addr and checks that it answers.
func dialServer(addr, token string) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(addr, grpcservice.DialOptions(token)...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", addr, err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := grpcservice.NewClient(conn).State(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("no reachable clipscope server at %s: %w", addr, err)
	}
	return conn, nil
}

// connect prefers the IPC socket unless --server was given explicitly.
// It returns the connection and a description of the transport used.
func connect(cmd *cobra.Command, v *viper.Viper) (*grpc.ClientConn, string, error) {
	if !cmd.Flags().Changed("server") && ipc.IsRunning() {
		conn, err := dialIPC()
		if err == nil {
			return conn, fmt.Sprintf("ipc (%s)", ipc.SocketPath()), nil
		}
		slog.Debug("ipc dial failed, falling back to tcp", "err", err)
	}
	addr := v.GetString("server")
	conn, err := dialServer(addr, v.GetString("token"))
	if err != nil {
		return nil, "", err
	}
	return conn, fmt.Sprintf("tcp (%s)", addr), nil
}
