package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/soheilhy/cmux"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc"

	"go.klb.dev/clipscope/internal/acquire"
	"go.klb.dev/clipscope/internal/clip"
	"go.klb.dev/clipscope/internal/copyback"
	"go.klb.dev/clipscope/internal/grpcservice"
	"go.klb.dev/clipscope/internal/httpapi"
	"go.klb.dev/clipscope/internal/hub"
	"go.klb.dev/clipscope/internal/i18n"
	"go.klb.dev/clipscope/internal/ipc"
	"go.klb.dev/clipscope/internal/notify"
	"go.klb.dev/clipscope/internal/paste"
	"go.klb.dev/clipscope/internal/session"
)

func newServeCmd() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web inspector and the Inspector gRPC API",
		Long: `Starts clipscope. One TCP port carries both the web page (HTTP/1.1)
and the gRPC API; a local socket carries gRPC for CLI commands on this host.

Config file search order:
  /etc/clipscope/clipscope.toml
  $HOME/.config/clipscope/clipscope.toml
  path supplied via --config

Precedence (lowest → highest): defaults → config file → CLIPSCOPE_* env vars → flags`,
		Args:    cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error { return bindViper(cmd, v) },
		RunE:    func(_ *cobra.Command, _ []string) error { return runServe(v) },
	}

	f := cmd.Flags()
	f.String("addr", defaultAddr, "TCP listen address")
	f.String("token", "", "shared secret for the API (empty = no auth)")
	f.Duration("timeout", acquire.DefaultTimeout, "how long to wait for a paste gesture")
	f.String("backend", string(clip.KindAuto), "clipboard backend: auto|system|memory")
	f.String("lang", "", "message language (default: follow the browser)")
	f.Bool("no-ipc", false, "do not listen on the local socket")
	addLoggingFlags(cmd)
	addConfigFlag(cmd)

	return cmd
}

func runServe(v *viper.Viper) error {
	setupLogging(v)

	addr := v.GetString("addr")
	token := v.GetString("token")

	kind, err := clip.ParseKind(v.GetString("backend"))
	if err != nil {
		return err
	}
	caps, err := clip.Open(kind)
	if err != nil {
		return fmt.Errorf("clipboard: %w", err)
	}

	tr := i18n.New(v.GetString("lang"))
	h := hub.New()
	bus := paste.NewBus()
	engine := acquire.New(acquire.Config{
		Capabilities: caps,
		Pastes:       bus,
		Nudger:       h,
		Translator:   tr,
		Timeout:      v.GetDuration("timeout"),
		OnChange:     func(st acquire.State) { h.Publish(hub.KindState, st) },
	})
	defer engine.Close()

	copier := copyback.New(caps.Writer, notify.Multi{h, notify.Log{}}, tr)
	sess := session.New(engine, copier, caps)

	web, err := httpapi.New(httpapi.Config{
		Session: sess,
		Pastes:  bus,
		Hub:     h,
		Token:   token,
		Lang:    v.GetString("lang"),
	})
	if err != nil {
		return fmt.Errorf("http routes: %w", err)
	}

	slog.Info("clipscope starting",
		"version", Version,
		"addr", addr,
		"capabilities", clip.Describe(caps),
		"lang", tr.Lang(),
		"auth", token != "",
	)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := cmux.New(ln)
	grpcL := m.MatchWithWriters(cmux.HTTP2MatchHeaderFieldPrefixSendSettings("content-type", "application/grpc"))
	httpL := m.Match(cmux.Any())

	gs := grpc.NewServer()
	grpcservice.Register(gs, grpcservice.New(sess, h, token))
	hs := &http.Server{
		Handler:           web,
		ReadHeaderTimeout: 10 * time.Second,
		// Ends open event streams on shutdown.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 4)
	go func() { errc <- fmt.Errorf("grpc: %w", gs.Serve(grpcL)) }()
	go func() { errc <- fmt.Errorf("http: %w", hs.Serve(httpL)) }()
	go func() { errc <- fmt.Errorf("mux: %w", m.Serve()) }()

	var ipcSrv *grpc.Server
	if !v.GetBool("no-ipc") {
		ipcLn, err := ipc.Listen()
		if err != nil {
			slog.Warn("IPC socket unavailable", "err", err)
		} else {
			slog.Info("IPC socket listening", "path", ipc.SocketPath())
			ipcSrv = grpc.NewServer()
			grpcservice.Register(ipcSrv, grpcservice.New(sess, h, ""))
			go func() {
				if err := ipcSrv.Serve(ipcLn); err != nil {
					slog.Warn("IPC server stopped", "err", err)
				}
			}()
		}
	}

	url := "http://" + ln.Addr().String() + "/"
	if token != "" {
		url += "?token=" + token
	}
	slog.Info("inspector ready", "url", url)

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err = <-errc:
		slog.Error("server failed", "err", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	engine.Close()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		if !errors.Is(err, context.DeadlineExceeded) {
			slog.Warn("http shutdown", "err", err)
		}
		_ = hs.Close()
	}
	gs.Stop()
	if ipcSrv != nil {
		ipcSrv.Stop()
	}
	m.Close()

	if ctx.Err() != nil {
		return nil
	}
	return err
}
