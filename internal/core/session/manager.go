// Package session owns the live external application for a batch and recovers it
// when it hangs or crashes.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/unitshift/internal/automation"
	"github.com/joseph-ayodele/unitshift/internal/common"
	"github.com/joseph-ayodele/unitshift/internal/core/retry"
)

// State is the lifecycle position of a Manager.
type State string

const (
	Absent   State = "ABSENT"
	Starting State = "STARTING"
	Ready    State = "READY"
	Busy     State = "BUSY"
	Failed   State = "FAILED"
)

var (
	// ErrSessionInit means the application could not be brought up within the start policy.
	ErrSessionInit = errors.New("session: application failed to initialize")
	// ErrNotReady is returned by OpenDocument outside the Ready state.
	ErrNotReady = errors.New("session: not ready")
)

const (
	pollInterval = 200 * time.Millisecond
	readyTimeout = 20 * time.Second
)

var startPolicy = retry.Policy{Attempts: 3, Backoff: 3 * time.Second}

// Manager drives one application instance through its lifecycle. It is not safe for
// concurrent use; callers must not keep a document across Recover.
type Manager struct {
	logger   *slog.Logger
	launcher automation.Launcher
	killer   automation.ProcessKiller
	process  string

	app   automation.Application
	doc   automation.Document
	state State

	pollInterval time.Duration
	readyTimeout time.Duration
	start        retry.Policy
}

// New returns a manager in the Absent state. process is the image-name prefix used to
// force-stop strays, e.g. "acad".
func New(logger *slog.Logger, launcher automation.Launcher, killer automation.ProcessKiller, process string) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger:       logger.With("process", process),
		launcher:     launcher,
		killer:       killer,
		process:      process,
		state:        Absent,
		pollInterval: pollInterval,
		readyTimeout: readyTimeout,
		start:        startPolicy,
	}
}

// State reports the current lifecycle state.
func (m *Manager) State() State { return m.state }

// Application returns the live application, or nil outside Ready/Busy.
func (m *Manager) Application() automation.Application {
	if m.state != Ready && m.state != Busy {
		return nil
	}
	return m.app
}

// EnsureReady starts the application when there is none. A start sequence kills
// strays, launches, and polls the version probe; it is retried under the start policy.
// Exhausting the policy is fatal and wraps ErrSessionInit.
func (m *Manager) EnsureReady(ctx context.Context) error {
	if m.state == Ready || m.state == Busy {
		return nil
	}
	err := retry.Do(ctx, m.start, func(attempt int) error {
		return m.startOnce(ctx, attempt)
	})
	if err == nil {
		return nil
	}
	m.state = Failed
	if common.KindOf(err) == common.FaultConfig {
		return err
	}
	m.logger.Error("session start exhausted", "attempts", m.start.Attempts, "error", err)
	return common.Fatal("application start failed", fmt.Errorf("%w: %w", ErrSessionInit, err))
}

func (m *Manager) startOnce(ctx context.Context, attempt int) error {
	m.state = Starting
	m.forceStop(ctx)

	app, err := m.launcher.Launch(ctx)
	if err != nil {
		m.state = Failed
		m.logger.Warn("session launch failed", "attempt", attempt, "error", err)
		if errors.Is(err, automation.ErrUnsupportedPlatform) {
			return common.ConfigFault("cannot drive "+m.process, err)
		}
		return common.Transient("launch", err)
	}
	m.app = app
	if err := m.poll(ctx, func() error {
		_, err := app.Version()
		return err
	}); err != nil {
		m.logger.Warn("session not ready", "attempt", attempt, "error", err)
		m.teardown(ctx)
		m.state = Failed
		return common.Transient("application readiness", err)
	}
	m.state = Ready
	m.logger.Info("session ready", "attempt", attempt)
	return nil
}

// OpenDocument opens path in the live application and waits for the document probe.
// On failure the partial document is discarded, the application is recreated, and the
// open error is returned. A fatal restart error takes precedence.
func (m *Manager) OpenDocument(ctx context.Context, path string) (automation.Document, error) {
	if m.state != Ready {
		return nil, common.Transient(fmt.Sprintf("open %s in state %s", path, m.state), ErrNotReady)
	}
	m.state = Busy
	doc, err := m.app.Open(path)
	if err == nil {
		err = m.poll(ctx, func() error {
			_, err := doc.Name()
			return err
		})
	}
	if err != nil {
		m.logger.Warn("document open failed", "path", path, "error", err)
		if doc != nil {
			if cerr := doc.Close(true); cerr != nil {
				m.logger.Debug("partial document close failed", "error", cerr)
			}
		}
		m.doc = nil
		m.teardown(ctx)
		if rerr := m.EnsureReady(ctx); rerr != nil {
			return nil, rerr
		}
		return nil, common.Transient("open "+path, err)
	}
	m.doc = doc
	if p, ok := doc.(automation.Preparer); ok {
		if perr := p.Prepare(); perr != nil {
			m.logger.Warn("document tuning failed", "path", path, "error", perr)
		}
	}
	m.logger.Debug("document open", "path", path)
	return doc, nil
}

// CloseDocument closes the open document and returns to Ready. A close failure leaves
// the session Failed so the next EnsureReady rebuilds it.
func (m *Manager) CloseDocument(discard bool) error {
	doc := m.doc
	m.doc = nil
	if doc == nil {
		if m.state == Busy {
			m.state = Ready
		}
		return nil
	}
	if err := doc.Close(discard); err != nil {
		m.state = Failed
		m.logger.Warn("document close failed", "error", err)
		return common.Transient("close document", err)
	}
	m.state = Ready
	return nil
}

// Recover discards the current document, drops the application and starts over.
func (m *Manager) Recover(ctx context.Context) error {
	m.logger.Info("session recovering", "state", string(m.state))
	if m.doc != nil {
		if err := m.doc.Close(true); err != nil {
			m.logger.Debug("discard on recover failed", "error", err)
		}
		m.doc = nil
	}
	m.teardown(ctx)
	return m.EnsureReady(ctx)
}

// Shutdown closes any document without saving and quits the application, falling
// back to a force-stop if either step fails. The manager ends Absent.
func (m *Manager) Shutdown(ctx context.Context) error {
	forced := false
	if m.doc != nil {
		if err := m.doc.Close(true); err != nil {
			m.logger.Warn("document close on shutdown failed", "error", err)
			forced = true
		}
		m.doc = nil
	}
	if m.app != nil {
		if err := m.app.Quit(); err != nil {
			m.logger.Warn("application quit failed", "error", err)
			forced = true
		}
		m.app = nil
	}
	var err error
	if forced && m.killer != nil {
		err = m.killer.KillByName(ctx, m.process)
	}
	if m.state != Absent {
		m.logger.Info("session closed")
	}
	m.state = Absent
	return err
}

// teardown quits the application best effort and forgets it.
func (m *Manager) teardown(ctx context.Context) {
	if m.app != nil {
		if err := m.app.Quit(); err != nil {
			m.logger.Debug("quit failed, force stopping", "error", err)
			m.forceStop(ctx)
		}
		m.app = nil
	}
	m.state = Absent
}

func (m *Manager) forceStop(ctx context.Context) {
	if m.killer == nil || m.process == "" {
		return
	}
	if err := m.killer.KillByName(ctx, m.process); err != nil {
		m.logger.Warn("force stop failed", "error", err)
	}
}

// poll calls probe every pollInterval until it succeeds or readyTimeout has been spent.
func (m *Manager) poll(ctx context.Context, probe func() error) error {
	tries := int(m.readyTimeout / m.pollInterval)
	if tries < 1 {
		tries = 1
	}
	var err error
	for i := 0; i < tries; i++ {
		if err = probe(); err == nil {
			return nil
		}
		if serr := retry.Sleep(ctx, m.pollInterval); serr != nil {
			return serr
		}
	}
	return fmt.Errorf("not ready after %s: %w", m.readyTimeout, err)
}
