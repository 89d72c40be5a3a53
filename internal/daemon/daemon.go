package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/agrocredit/agrolend/internal/api"
	"github.com/agrocredit/agrolend/internal/app/confirm"
	"github.com/agrocredit/agrolend/internal/i18n"
	"github.com/agrocredit/agrolend/internal/infra/apiclient"
	"github.com/agrocredit/agrolend/internal/infra/directory"
	"github.com/agrocredit/agrolend/internal/infra/observability"
	"github.com/agrocredit/agrolend/internal/infra/sqlite"
)

// Daemon owns every long-lived resource of a running agrolend process.
type Daemon struct {
	cfg    Config
	logger *zap.Logger
	db     *sqlite.DB
	client *apiclient.Client
	server *api.Server
	cron   *cron.Cron
}

// New builds the daemon from a validated config.
func New(cfg Config, logger *zap.Logger) (*Daemon, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sqlite.Open(cfg.Server.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open preview ledger: %w", err)
	}

	opts := []apiclient.Option{
		apiclient.WithLogger(logger.Named("apiclient")),
		apiclient.WithTimeout(duration(cfg.API.Timeout)),
	}
	if cfg.API.Key != "" {
		opts = append(opts, apiclient.WithHeader("X-API-Key", cfg.API.Key))
	}
	client := apiclient.New(cfg.API.BaseURL, opts...)

	dir, err := directory.New(cfg.Directory.Source, client)
	if err != nil {
		db.Close()
		return nil, err
	}
	cat, err := i18n.Load(cfg.UI.Locale)
	if err != nil {
		db.Close()
		return nil, err
	}

	secret := cfg.Session.Secret
	if secret == "" {
		secret = uuid.NewString()
		logger.Warn("session.secret not set; using an ephemeral secret, sessions end on restart")
	}

	flow := confirm.New(client, client, client, db, duration(cfg.Confirm.TTL),
		confirm.WithLogger(logger.Named("confirm")))

	server, err := api.NewServer(api.Options{
		Backend:               client,
		Flow:                  flow,
		Directory:             dir,
		Sessions:              api.NewSessionManager(secret, duration(cfg.Session.TTL), cfg.Session.Secure),
		Catalog:               cat,
		Logger:                logger.Named("http"),
		LoansInterval:         duration(cfg.Polling.Loans),
		NotificationsInterval: duration(cfg.Polling.Notifications),
		RequestTimeout:        duration(cfg.Server.RequestTimeout),
		CORSOrigins:           cfg.Server.CORSOrigins,
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	if cfg.Server.Metrics {
		server.EnableMetrics()
	}

	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger.Named("cron")))
	return &Daemon{
		cfg:    cfg,
		logger: logger,
		db:     db,
		client: client,
		server: server,
		cron:   cron.New(cron.WithChain(cron.Recover(cronLogger))),
	}, nil
}

// Handler returns the HTTP handler.
func (d *Daemon) Handler() http.Handler { return d.server.Handler() }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (d *Daemon) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", d.cfg.Server.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", d.cfg.Server.Addr(), err)
	}
	return d.Serve(ctx, ln)
}

// Serve runs the housekeeping jobs and the HTTP server on ln until ctx ends.
func (d *Daemon) Serve(ctx context.Context, ln net.Listener) error {
	if err := d.schedule(); err != nil {
		ln.Close()
		return err
	}
	d.cron.Start()
	defer func() { <-d.cron.Stop().Done() }()

	srv := &http.Server{
		Handler:           d.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		d.logger.Info("agrolend listening",
			zap.String("addr", ln.Addr().String()),
			zap.String("api", d.cfg.API.BaseURL),
			zap.String("directory", d.cfg.Directory.Source),
			zap.String("locale", d.cfg.UI.Locale))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	d.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), duration(d.cfg.Server.ShutdownTimeout))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Close releases the preview ledger.
func (d *Daemon) Close() error { return d.db.Close() }

// ─── Housekeeping ───────────────────────────────────────────────────────────

func (d *Daemon) schedule() error {
	if _, err := d.cron.AddFunc(d.cfg.Confirm.Sweep, d.sweepPreviews); err != nil {
		return fmt.Errorf("schedule preview sweep: %w", err)
	}
	d.logger.Info("scheduled preview sweep", zap.String("schedule", d.cfg.Confirm.Sweep))

	if d.cfg.Probe.Enabled {
		if _, err := d.cron.AddFunc(d.cfg.Probe.Schedule, d.probeUpstream); err != nil {
			return fmt.Errorf("schedule upstream probe: %w", err)
		}
		d.logger.Info("scheduled upstream probe", zap.String("schedule", d.cfg.Probe.Schedule))
	}
	return nil
}

// sweepPreviews deletes expired preview tokens.
func (d *Daemon) sweepPreviews() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	n, err := d.db.PurgeExpired(ctx, time.Now())
	if err != nil {
		d.logger.Warn("preview sweep failed", zap.Error(err))
		return
	}
	observability.PreviewsPurged.Add(float64(n))
	if n > 0 {
		d.logger.Debug("purged expired previews", zap.Int64("count", n))
	}
}

// probeTimeout bounds a probe when api.timeout leaves requests unbounded.
const probeTimeout = 30 * time.Second

// probeUpstream records whether the lending API answers.
func (d *Daemon) probeUpstream() {
	timeout := duration(d.cfg.API.Timeout)
	if timeout == 0 {
		timeout = probeTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := d.client.Ping(ctx, d.cfg.Probe.Path); err != nil {
		observability.UpstreamUp.Set(0)
		d.logger.Warn("upstream probe failed", zap.Error(err))
		return
	}
	observability.UpstreamUp.Set(1)
}
