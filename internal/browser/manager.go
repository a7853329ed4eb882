// File: internal/browser/manager.go
package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/stagecheck/internal/config"
	"github.com/xkilldash9x/stagecheck/internal/diagnostics"
)

const sessionStartTimeout = 60 * time.Second

// Manager handles the browser process lifecycle and session creation over CDP.
type Manager struct {
	logger *zap.Logger
	cfg    *config.Config

	allocCtx    context.Context
	allocCancel context.CancelFunc

	sessions map[string]*Session
	mu       sync.RWMutex
	wg       sync.WaitGroup // Ensures all sessions are closed before shutdown completes.

	// Initialization state management.
	initOnce sync.Once
	initErr  error
}

// NewManager creates a new browser manager. The browser process itself is not
// launched until the first session is requested.
func NewManager(cfg *config.Config, logger *zap.Logger) *Manager {
	m := &Manager{
		logger:   logger.Named("browser_manager"),
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
	m.logger.Debug("Browser manager created (initialization deferred).")
	return m
}

// initialize builds the exec allocator that owns the Chrome process. The
// allocator is parented on the background context so its lifetime is the
// manager's, not any single operation's.
func (m *Manager) initialize() error {
	m.initOnce.Do(func() {
		m.logger.Info("Launching browser allocator.",
			zap.Bool("headless", m.cfg.Browser.Headless),
			zap.Bool("background", m.cfg.Browser.Background))

		m.allocCtx, m.allocCancel = chromedp.NewExecAllocator(
			context.Background(), m.allocatorOptions()...)
	})
	return m.initErr
}

// allocatorOptions translates BrowserConfig into Chrome launch flags.
func (m *Manager) allocatorOptions() []chromedp.ExecAllocatorOption {
	cfg := m.cfg.Browser

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.WindowSize(cfg.Viewport.Width, cfg.Viewport.Height),
		chromedp.Flag("enable-automation", true),
	}
	if cfg.Locale != "" {
		opts = append(opts, chromedp.Flag("lang", cfg.Locale))
	}

	if cfg.Headless {
		opts = append(opts,
			chromedp.Headless,
			chromedp.DisableGPU,
			// Required for stability inside containers.
			chromedp.NoSandbox,
			chromedp.Flag("disable-dev-shm-usage", true),
		)
	} else if cfg.Background {
		// Headed but unobtrusive: park the window off-screen so the run does
		// not steal focus from the user.
		opts = append(opts, chromedp.Flag("window-position", "-9999,-9999"))
	}

	// User-provided args are applied last so they win over the defaults.
	for _, arg := range cfg.Args {
		name, value, hasValue := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		if name == "" {
			continue
		}
		if hasValue {
			opts = append(opts, chromedp.Flag(name, value))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}
	return opts
}

// NewSession launches a browser tab, applies the configured viewport, and
// attaches a diagnostics collector to it. The caller owns the session and
// must Close it.
func (m *Manager) NewSession(ctx context.Context) (*Session, error) {
	if err := m.initialize(); err != nil {
		return nil, err
	}

	tabCtx, tabCancel := chromedp.NewContext(m.allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			m.logger.Sugar().Debugf(format, args...)
		}))

	collector := diagnostics.NewCollector(m.logger)
	session := &Session{
		id:        uuid.NewString(),
		ctx:       tabCtx,
		cancel:    tabCancel,
		cfg:       m.cfg,
		logger:    m.logger.Named("session"),
		collector: collector,
	}

	m.wg.Add(1)
	session.onClose = func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.sessions, session.id)
		m.wg.Done()
		m.logger.Debug("Session removed from manager.", zap.String("session_id", session.id))
	}

	startCtx, startCancel := context.WithTimeout(ctx, sessionStartTimeout)
	defer startCancel()
	if err := session.start(startCtx); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to start browser session: %w", err)
	}

	m.mu.Lock()
	m.sessions[session.id] = session
	m.mu.Unlock()

	m.logger.Info("New session created.", zap.String("session_id", session.id))
	return session, nil
}

// Shutdown closes all sessions and tears down the browser process. It blocks
// until the sessions are gone or ctx expires.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.logger.Info("Shutting down browser manager.")

	if m.allocCtx == nil {
		m.logger.Debug("Manager never initialized, nothing to shut down.")
		return nil
	}

	m.mu.RLock()
	sessionsToClose := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessionsToClose = append(sessionsToClose, s)
	}
	m.mu.RUnlock()

	for _, s := range sessionsToClose {
		s.Close()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	var shutdownErr error
	select {
	case <-done:
		m.logger.Debug("All sessions closed gracefully.")
	case <-ctx.Done():
		m.logger.Warn("Timeout waiting for sessions to close; proceeding with forceful shutdown.", zap.Error(ctx.Err()))
		shutdownErr = ctx.Err()
	}

	m.allocCancel()
	m.logger.Info("Browser manager shutdown complete.")
	return shutdownErr
}
