// Package app wires the console's collaborators from a Config. Both the
// terminal UI and the headless CLI build on it.
package app

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/dd0wney/crclink/pkg/audit"
	"github.com/dd0wney/crclink/pkg/config"
	"github.com/dd0wney/crclink/pkg/console"
	"github.com/dd0wney/crclink/pkg/health"
	"github.com/dd0wney/crclink/pkg/history"
	"github.com/dd0wney/crclink/pkg/logging"
	"github.com/dd0wney/crclink/pkg/metrics"
	"github.com/dd0wney/crclink/pkg/remote"
	"github.com/dd0wney/crclink/pkg/session"
	"github.com/dd0wney/crclink/pkg/simulation"
	tlspkg "github.com/dd0wney/crclink/pkg/tls"
	"github.com/dd0wney/crclink/pkg/topology"
	"github.com/dd0wney/crclink/pkg/tracing"
)

// Options selects which optional parts New brings up
type Options struct {
	// Interactive sessions own the terminal, so logs only go to log.file
	Interactive bool
	// Console dials the master websocket; failure is logged, not fatal
	Console bool
	// Placer overrides random node placement
	Placer topology.Placer
}

// App holds everything a driver needs to run a session
type App struct {
	Config  config.Config
	Logger  logging.Logger
	Metrics *metrics.Registry
	Health  *health.HealthChecker
	History history.Store
	Client  *remote.Client
	Console *console.Client
	// Audit holds the most recent operator actions for display
	Audit   *audit.AuditLogger
	Core    *session.Core
	Runner  *session.Runner
	Started time.Time

	collaborator atomic.Pointer[health.CollaboratorState]
	auditFile    *audit.PersistentAuditLogger
	metricsTLS   *tls.Config
	server       *http.Server
	logCloser    io.Closer
	shutdown     tracing.ShutdownFunc
}

// New builds an App. Close must be called to release what it opened.
func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	a := &App{
		Config:  cfg,
		Metrics: metrics.NewRegistry(),
		Health:  health.NewHealthChecker(),
		Started: time.Now(),
	}
	a.collaborator.Store(&health.CollaboratorState{})

	if err := a.openLogger(opts.Interactive); err != nil {
		return nil, err
	}

	shutdown, err := tracing.Init(ctx, cfg.Tracing.Tracing(), a.Logger)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.shutdown = shutdown

	a.History, err = history.Open(ctx, cfg.History.DatabaseURL, cfg.History.Limit)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	clientTLS, err := tlspkg.LoadClientConfig(&cfg.Server.TLS)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("server tls: %w", err)
	}
	a.metricsTLS, err = tlspkg.LoadServerConfig(&cfg.Metrics.TLS)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("metrics tls: %w", err)
	}

	trail, err := a.openAudit()
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.Client = remote.NewClient(cfg.Server.BaseURL(), cfg.Server.Timeout,
		remote.WithHTTPClient(httpClient(cfg.Server.Timeout, clientTLS)),
		remote.WithLogger(a.Logger),
		remote.WithRecorder(a.Metrics),
	)

	orch := simulation.NewOrchestrator(cfg.Simulation.Defaults())

	placer := opts.Placer
	if placer == nil {
		placer = topology.NewRandomPlacer(time.Now().UnixNano())
	}
	a.Core = session.NewCore(orch,
		session.WithPlacer(placer),
		session.WithLogger(a.Logger),
		session.WithMetrics(a.Metrics),
		session.WithMaxLogLines(cfg.Log.MaxLines),
	)

	runnerOpts := []session.RunnerOption{
		session.WithHistory(a.History),
		session.WithRunnerLogger(a.Logger),
		session.WithAudit(trail),
		session.WithAuditRecorder(a.Metrics),
	}
	if opts.Console {
		endpoint := cfg.Server.ConsoleURL()
		var dialOpts []console.DialOption
		if clientTLS != nil {
			dialOpts = append(dialOpts, console.WithTLS(clientTLS))
		}
		c, err := console.Dial(ctx, endpoint, a.Logger, dialOpts...)
		if err != nil {
			a.Logger.Warn("master console unavailable", logging.String("endpoint", endpoint), logging.Error(err))
		} else {
			a.Console = c
			runnerOpts = append(runnerOpts, session.WithConsole(c))
		}
	}
	a.Runner = session.NewRunner(a.Client, orch, runnerOpts...)

	a.registerChecks()

	a.Logger.Info("console started",
		logging.String("collaborator", a.Client.BaseURL()),
		logging.Bool("persistent_history", cfg.History.DatabaseURL != ""),
		logging.Bool("console", a.Console != nil),
		logging.Bool("persistent_audit", a.auditFile != nil),
	)
	return a, nil
}

// openAudit builds the in-memory trail and, with audit.dir set, the
// hash-chained files behind it
func (a *App) openAudit() (audit.Logger, error) {
	a.Audit = audit.NewAuditLogger(a.Config.Audit.Buffer)
	if a.Config.Audit.Dir == "" {
		return a.Audit, nil
	}

	pc := audit.DefaultPersistentConfig()
	pc.LogDir = a.Config.Audit.Dir
	pc.RotationSize = a.Config.Audit.RotationSize
	p, err := audit.NewPersistentAuditLogger(pc)
	if err != nil {
		return nil, fmt.Errorf("open audit trail: %w", err)
	}
	a.auditFile = p
	return audit.Multi(a.Audit, p), nil
}

// AuditFile returns the audit file being written, or "" without audit.dir
func (a *App) AuditFile() string {
	if a.auditFile == nil {
		return ""
	}
	return a.auditFile.CurrentFile()
}

// AuditStats describes the audit files; false without audit.dir
func (a *App) AuditStats() (audit.AuditStatistics, bool) {
	if a.auditFile == nil {
		return audit.AuditStatistics{}, false
	}
	return a.auditFile.GetStatistics(), true
}

func httpClient(timeout time.Duration, tlsConfig *tls.Config) *http.Client {
	hc := &http.Client{Timeout: timeout}
	if tlsConfig != nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = tlsConfig
		hc.Transport = transport
	}
	return hc
}

func (a *App) openLogger(interactive bool) error {
	level := a.Config.Log.ParsedLevel()
	if interactive || a.Config.Log.File != "" {
		l, closer, err := logging.OpenFile(a.Config.Log.File, level)
		if err != nil {
			return err
		}
		a.Logger, a.logCloser = l, closer
		return nil
	}
	a.Logger = logging.NewJSONLogger(os.Stderr, level)
	return nil
}

func (a *App) registerChecks() {
	staleAfter := 3 * a.Config.Refresh.Interval
	if staleAfter == 0 {
		staleAfter = time.Minute
	}

	collab := health.CollaboratorCheck(a.CollaboratorState, staleAfter)
	store := health.HistoryCheck(a.History.Ping, 2*time.Second)

	a.Health.RegisterCheck("collaborator", collab)
	a.Health.RegisterCheck("history", store)
	a.Health.RegisterCheck("memory", health.MemoryCheck(memoryUsage))

	a.Health.RegisterReadinessCheck("history", store)
	a.Health.RegisterLivenessCheck("process", func() health.Check {
		return health.SimpleCheck("process")
	})
}

func memoryUsage() (alloc, sys uint64) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.Alloc, m.Sys
}

// NewState returns an empty session on the configured canvas
func (a *App) NewState() session.State {
	return session.NewState(topology.NewCanvas(a.Config.Canvas.Bounds()))
}

// Observe publishes the collaborator-facing part of s to the health checks
func (a *App) Observe(s session.State) {
	a.collaborator.Store(&health.CollaboratorState{
		LastRefresh: s.LastRefresh,
		LastError:   s.LastRefreshErr,
		FailureMode: s.FailureMode,
	})
}

// CollaboratorState returns the snapshot last passed to Observe
func (a *App) CollaboratorState() health.CollaboratorState {
	return *a.collaborator.Load()
}

// Serve starts the metrics and health listener when metrics.addr is set
func (a *App) Serve() {
	addr := a.Config.Metrics.Addr
	if addr == "" {
		return
	}

	a.server = &http.Server{
		Addr:              addr,
		Handler:           a.Health.Mux(a.Metrics.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
		TLSConfig:         a.metricsTLS,
	}

	fields := []logging.Field{logging.String("addr", addr), logging.Bool("tls", a.metricsTLS != nil)}
	if a.metricsTLS != nil {
		if info, err := tlspkg.Describe(a.metricsTLS.Certificates[0]); err == nil {
			fields = append(fields, logging.String("cert_expires", info.NotAfter.Format(time.RFC3339)))
		}
	}

	srv := a.server
	go func() {
		a.Logger.Info("metrics listener started", fields...)
		var err error
		if srv.TLSConfig != nil {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Logger.Error("metrics listener failed", logging.Error(err))
		}
	}()
}

// Close releases everything New and Serve opened
func (a *App) Close(ctx context.Context) {
	if a.Console != nil {
		a.Console.Close()
	}
	if a.server != nil {
		sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := a.server.Shutdown(sctx); err != nil {
			a.Logger.Warn("metrics listener shutdown", logging.Error(err))
		}
		cancel()
	}
	if a.History != nil {
		if err := a.History.Close(); err != nil {
			a.Logger.Warn("close history", logging.Error(err))
		}
	}
	if a.auditFile != nil {
		if err := a.auditFile.Close(); err != nil {
			a.Logger.Warn("close audit trail", logging.Error(err))
		}
	}
	tracing.ShutdownWithTimeout(ctx, a.shutdown, a.Logger)
	if a.logCloser != nil {
		a.logCloser.Close()
	}
}
