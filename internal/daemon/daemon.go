package daemon

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/puzzlepup/puzzlepup/internal/api"
	"github.com/puzzlepup/puzzlepup/internal/app/engagement"
	"github.com/puzzlepup/puzzlepup/internal/app/progression"
	"github.com/puzzlepup/puzzlepup/internal/app/referral"
	"github.com/puzzlepup/puzzlepup/internal/app/reward"
	"github.com/puzzlepup/puzzlepup/internal/health"
	_ "github.com/puzzlepup/puzzlepup/internal/infra/metrics" // Register Prometheus metrics
	"github.com/puzzlepup/puzzlepup/internal/infra/sqlite"
)

// Daemon is the PuzzlePup backend runtime. It wires together all services.
type Daemon struct {
	Config Config
	DB     *sqlite.DB
	Server *api.Server
	cancel context.CancelFunc

	Issuer       *reward.Issuer
	Referrals    *referral.Service
	Notification *engagement.NotificationService
	Progression  *progression.Service
	Health       *health.Checker
}

// New creates and initializes a Daemon with all services wired.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return NewWithConfig(cfg)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(cfg Config) (*Daemon, error) {
	dataDir := cfg.Data.Dir
	if dataDir == "" {
		dataDir = puzzlepupHome()
	}

	// Open SQLite
	db, err := sqlite.Open(dataDir)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	issuer := reward.NewIssuer(db)
	referrals := referral.NewService(db, issuer)
	notification := engagement.NewNotificationService(db, cfg.Engagement.NotificationsPerDay)

	svc := progression.NewService(db, issuer, referrals, notification, progression.Config{
		WeeklyTarget:   cfg.Engagement.WeeklyTarget,
		ComebackHints:  cfg.Engagement.ComebackHints,
		RetryAttempts:  cfg.Engagement.WriteRetries,
		DailyRunRepeat: cfg.Engagement.DailyRunRepeat,
		PurchaseWindow: cfg.Engagement.PurchaseWindow(),
	})

	checker := health.NewChecker(db, dataDir)

	// Initialize API server
	srv := api.NewServer(svc, notification)
	srv.SetHealth(checker)

	// Enable Prometheus /metrics if configured
	if cfg.Telemetry.Prometheus {
		srv.EnableMetrics()
	}

	return &Daemon{
		Config:       cfg,
		DB:           db,
		Server:       srv,
		Issuer:       issuer,
		Referrals:    referrals,
		Notification: notification,
		Progression:  svc,
		Health:       checker,
	}, nil
}

// Serve starts the HTTP server and blocks until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	// Health checker (always runs)
	go d.Health.Run(ctx)

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		_ = httpServer.Shutdown(shutdownCtx)
		_ = d.DB.Close()
	}()

	fmt.Printf("PuzzlePup serving on http://%s\n", addr)
	if d.Config.Telemetry.Prometheus {
		fmt.Printf("  Metrics: http://%s/metrics\n", addr)
	}

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
}
