// ABOUTME: Sidecar lifecycle: wires the channel connection, store, service and HTTP server
// ABOUTME: Serves the API on plain TCP or a Tailscale tsnet listener and shuts down gracefully

package sidecar

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/relayworks/courier/internal/api"
	"github.com/relayworks/courier/internal/auth"
	"github.com/relayworks/courier/internal/channel"
	"github.com/relayworks/courier/internal/config"
	"github.com/relayworks/courier/internal/correlate"
	"github.com/relayworks/courier/internal/resolve"
	"github.com/relayworks/courier/internal/service"
	"github.com/relayworks/courier/internal/store"
)

// shutdownTimeout bounds graceful HTTP shutdown after ctx cancellation.
const shutdownTimeout = 10 * time.Second

// Sidecar owns the process-wide resources: the single channel connection, the
// store and the HTTP server exposing the API.
type Sidecar struct {
	cfg    *config.Config
	logger *slog.Logger

	conn       channel.Conn
	store      store.Store
	httpServer *http.Server
	tsnetSrv   *tsnet.Server
}

// New wires up the sidecar from configuration. The channel connection is
// created but not started; Run establishes the session.
func New(cfg *config.Config, logger *slog.Logger) (*Sidecar, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := channel.NewMatrixConn(cfg.Matrix, logger)
	if err != nil {
		return nil, fmt.Errorf("creating channel connection: %w", err)
	}

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	resolver := resolve.NewDirectoryResolver(st)
	correlator := correlate.New(conn, logger)
	svc := service.New(resolver, correlator, st, cfg.Bot, logger)

	var verifiers []auth.TokenVerifier
	if cfg.Auth.Token != "" {
		verifiers = append(verifiers, auth.NewStaticVerifier(cfg.Auth.Token))
	}
	if cfg.Auth.JWTSecret != "" {
		verifiers = append(verifiers, auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret)))
	}

	handler := api.New(svc, logger).Routes(verifiers...)

	return &Sidecar{
		cfg:    cfg,
		logger: logger.With("component", "sidecar"),
		conn:   conn,
		store:  st,
		httpServer: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Run starts the channel connection and serves the API until ctx is
// cancelled. An unauthorized session is fatal: the operator must recreate the
// session artifact externally; there is nothing to retry here.
func (s *Sidecar) Run(ctx context.Context) error {
	if err := s.conn.Start(ctx); err != nil {
		return fmt.Errorf("starting channel connection: %w", err)
	}
	defer s.conn.Close()
	defer s.store.Close()

	ln, err := s.listener(ctx)
	if err != nil {
		return err
	}

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("serving API", "addr", ln.Addr().String())
		serveErr <- s.httpServer.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("http shutdown", "error", err)
		}
		if s.tsnetSrv != nil {
			_ = s.tsnetSrv.Close()
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	}
}

// listener returns the configured listener: plain TCP or tsnet.
func (s *Sidecar) listener(ctx context.Context) (net.Listener, error) {
	if s.cfg.Tailscale.Enabled {
		return s.tailscaleListener(ctx)
	}
	ln, err := net.Listen("tcp", s.cfg.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", s.cfg.Server.HTTPAddr, err)
	}
	return ln, nil
}

// tailscaleListener brings up a tsnet node and listens on the tailnet.
func (s *Sidecar) tailscaleListener(ctx context.Context) (net.Listener, error) {
	tsCfg := s.cfg.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, err
	}

	s.tsnetSrv = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	s.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := s.tsnetSrv.Up(ctx)
	if err != nil {
		_ = s.tsnetSrv.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}
	s.logTailscaleStatus(tsCfg.Hostname, status)

	switch {
	case tsCfg.Funnel:
		s.logger.Info("enabling tailscale funnel (public HTTPS) on :443")
		ln, err := s.tsnetSrv.ListenFunnel("tcp", ":443")
		if err != nil {
			_ = s.tsnetSrv.Close()
			return nil, fmt.Errorf("listening on tailscale funnel: %w", err)
		}
		return ln, nil
	case tsCfg.HTTPS:
		return s.tailscaleTLSListener()
	default:
		ln, err := s.tsnetSrv.Listen("tcp", ":80")
		if err != nil {
			_ = s.tsnetSrv.Close()
			return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
		}
		return ln, nil
	}
}

// tailscaleTLSListener serves HTTPS with Tailscale's auto-provisioned certs.
func (s *Sidecar) tailscaleTLSListener() (net.Listener, error) {
	s.logger.Info("enabling HTTPS with Tailscale certs on :443")
	ln, err := s.tsnetSrv.Listen("tcp", ":443")
	if err != nil {
		_ = s.tsnetSrv.Close()
		return nil, fmt.Errorf("listening on tailscale HTTPS port: %w", err)
	}
	lc, err := s.tsnetSrv.LocalClient()
	if err != nil {
		_ = ln.Close()
		_ = s.tsnetSrv.Close()
		return nil, fmt.Errorf("getting tailscale local client: %w", err)
	}
	return tls.NewListener(ln, &tls.Config{
		GetCertificate: lc.GetCertificate,
	}), nil
}

// logTailscaleStatus logs info about the tailscale node status.
func (s *Sidecar) logTailscaleStatus(hostname string, status *ipnstate.Status) {
	var tsAddr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		s.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = status.Self.DNSName
	}
	s.logger.Info("tailscale node ready", "hostname", hostname, "tailscale_ip", tsAddr, "dns_name", dnsName)
}

// resolveTailscaleStateDir returns the configured state dir or a default under
// the user data directory.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataDir, "courier", "tsnet"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set auth_key in config or TS_AUTHKEY environment variable")
	}
	return authKey, nil
}
