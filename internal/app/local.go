package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/spf13/afero"

	"leafchat/internal/devserver"
	"leafchat/internal/pkg/logx"
)

// ServerHandle represents a running development server.
type ServerHandle struct {
	addr   string
	server *http.Server
	dev    *devserver.Server
	done   chan struct{}
	err    error
}

// Addr returns the actual listen address (after the OS allocated a port).
func (h *ServerHandle) Addr() string {
	return h.addr
}

// URL is the http base URL clients should use.
func (h *ServerHandle) URL() string {
	return "http://" + h.addr
}

// Stop triggers a graceful shutdown with the provided context deadline.
func (h *ServerHandle) Stop(ctx context.Context) error {
	if h == nil || h.server == nil {
		return nil
	}
	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	h.dev.Close()
	return h.server.Shutdown(ctx)
}

// Wait blocks until the server exits.
func (h *ServerHandle) Wait() error {
	if h == nil {
		return nil
	}
	<-h.done
	return h.err
}

// RunLocalServer starts the development server in the background with the
// configured admin account. Call Stop/Wait to manage its lifecycle.
func RunLocalServer(ctx context.Context, cfg LocalConfig) (*ServerHandle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	files := afero.NewMemMapFs()
	if cfg.UploadDir != "" {
		if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
			return nil, fmt.Errorf("create upload directory: %w", err)
		}
		files = afero.NewBasePathFs(afero.NewOsFs(), cfg.UploadDir)
	}

	dev, err := devserver.New(devserver.Options{
		AdminUsername: cfg.AdminUsername,
		AdminPassword: cfg.AdminPassword,
		Files:         files,
	})
	if err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		dev.Close()
		return nil, fmt.Errorf("listen: %w", err)
	}

	handle := &ServerHandle{
		addr: listener.Addr().String(),
		server: &http.Server{
			Handler:           dev.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		},
		dev:  dev,
		done: make(chan struct{}),
	}

	go func() {
		if ctx == nil {
			return
		}
		select {
		case <-ctx.Done():
		case <-handle.done:
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := handle.Stop(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Error(err, "dev server shutdown failed")
		}
	}()

	go handle.serve(listener)

	return handle, nil
}

func (h *ServerHandle) serve(listener net.Listener) {
	defer close(h.done)
	err := h.server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	h.err = err
}

// RunLocal starts a development server on loopback and runs the client
// against it until the user quits.
func RunLocal(ctx context.Context, local LocalConfig, client ClientConfig) error {
	handle, err := RunLocalServer(ctx, local)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = handle.Stop(shutdownCtx)
		_ = handle.Wait()
	}()

	if err := waitForServer(handle.Addr(), 5*time.Second); err != nil {
		return err
	}

	client.ServerURL = handle.URL()
	client.SocketPath = DefaultSocketPath
	if client.Username == "" {
		client.Username = local.AdminUsername
	}
	logx.Info("local dev server ready", "url", client.ServerURL, "admin", local.AdminUsername)
	return RunClient(ctx, client)
}

func waitForServer(addr string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("server did not become ready: %w", err)
		}
		time.Sleep(100 * time.Millisecond)
	}
}
