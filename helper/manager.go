// Package helper manages the privileged helper daemon's lifecycle:
// installation state, installation, and protocol version gating.
package helper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/justapithecus/freetracer/log"
	"github.com/justapithecus/freetracer/metrics"
	"github.com/justapithecus/freetracer/types"
)

// InstallState is the lifecycle state machine.
type InstallState int

const (
	// NotChecked means the registry has not been queried yet.
	NotChecked InstallState = iota
	// Installed means the helper is registered with the system.
	Installed
	// NotInstalled means the helper is absent.
	NotInstalled
)

func (s InstallState) String() string {
	switch s {
	case Installed:
		return "installed"
	case NotInstalled:
		return "not_installed"
	default:
		return "not_checked"
	}
}

// ServiceRegistry abstracts the system's service registry.
type ServiceRegistry interface {
	// IsInstalled reports whether the helper service is registered.
	IsInstalled(ctx context.Context) (bool, error)
	// Install registers and starts the helper, prompting OS-level
	// authorization as required. Installing a current helper is a
	// no-op success.
	Install(ctx context.Context) error
}

// Transport is the version-query channel to the running helper.
// Satisfied by *ipc.Client.
type Transport interface {
	Call(ctx context.Context, req *types.HelperRequest) (*types.HelperResponse, error)
}

// VersionError reports a version query the helper answered with a
// non-success code.
type VersionError struct {
	Code types.ReturnCode
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("version query returned %s", e.Code)
}

// Config holds the lifecycle policy knobs.
type Config struct {
	// ExpectedVersion is the protocol version the helper must report.
	ExpectedVersion string
	// InstallWaitAttempts bounds the readiness confirmation loop after
	// an install. Readiness is confirmed by a successful version
	// query, never by a timed sleep alone.
	InstallWaitAttempts int
	// InstallWaitInterval is the delay between readiness attempts.
	InstallWaitInterval time.Duration
	// Metrics counts installs and reinstalls. Optional; nil disables.
	Metrics *metrics.Collector
}

// DefaultInstallWaitAttempts bounds readiness confirmation when the
// config leaves it zero.
const DefaultInstallWaitAttempts = 10

// DefaultInstallWaitInterval is the default readiness poll interval.
const DefaultInstallWaitInterval = 500 * time.Millisecond

// Manager drives the helper lifecycle state machine
// {NotChecked, Installed, NotInstalled} and applies the version-gating
// policy: a stale helper is reinstalled once and the caller's original
// operation yields TryAgain; a second mismatch is a Failure.
type Manager struct {
	cfg       Config
	registry  ServiceRegistry
	transport Transport
	logger    *log.Logger

	// mu guards state and reinstalled. Never held across registry or
	// transport calls.
	mu          sync.Mutex
	state       InstallState
	reinstalled bool
}

// NewManager creates a lifecycle manager.
func NewManager(cfg Config, registry ServiceRegistry, transport Transport, logger *log.Logger) *Manager {
	if cfg.InstallWaitAttempts <= 0 {
		cfg.InstallWaitAttempts = DefaultInstallWaitAttempts
	}
	if cfg.InstallWaitInterval <= 0 {
		cfg.InstallWaitInterval = DefaultInstallWaitInterval
	}
	return &Manager{
		cfg:       cfg,
		registry:  registry,
		transport: transport,
		logger:    logger,
	}
}

// State returns the last observed install state.
func (m *Manager) State() InstallState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsInstalled queries the service registry and updates the state.
func (m *Manager) IsInstalled(ctx context.Context) (bool, error) {
	installed, err := m.registry.IsInstalled(ctx)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	if installed {
		m.state = Installed
	} else {
		m.state = NotInstalled
	}
	m.mu.Unlock()

	return installed, nil
}

// Install triggers privileged installation and confirms readiness with
// a bounded number of version queries. Idempotent: installing an
// already-current helper succeeds without side effects.
func (m *Manager) Install(ctx context.Context) types.ReturnCode {
	if err := m.registry.Install(ctx); err != nil {
		m.logger.Error("helper install failed", map[string]any{
			"error": err.Error(),
		})
		m.setState(NotInstalled)
		return types.CodeFailure
	}
	m.cfg.Metrics.IncHelperInstall()

	if !m.awaitReady(ctx) {
		m.logger.Error("helper installed but never became ready", map[string]any{
			"attempts": m.cfg.InstallWaitAttempts,
		})
		m.setState(NotInstalled)
		return types.CodeFailure
	}

	m.setState(Installed)
	return types.CodeSuccess
}

// RequestVersion queries the running helper's reported version.
func (m *Manager) RequestVersion(ctx context.Context) (string, error) {
	resp, err := m.transport.Call(ctx, &types.HelperRequest{Opcode: types.OpQueryVersion})
	if err != nil {
		return "", err
	}
	if resp.Code != types.CodeSuccess {
		return "", &VersionError{Code: resp.Code}
	}
	return resp.Message, nil
}

// Ensure applies the install and version-gating policy before a
// privileged operation.
//
// Returns:
//   - Success: helper installed and at the expected version
//   - TryAgain: a corrective install/reinstall was performed; the
//     caller must retry its original operation exactly once
//   - Failure: install failed, or the version still mismatched after
//     one reinstall
func (m *Manager) Ensure(ctx context.Context) types.ReturnCode {
	installed, err := m.IsInstalled(ctx)
	if err != nil {
		m.logger.Error("service registry query failed", map[string]any{
			"error": err.Error(),
		})
		return types.CodeFailure
	}

	if !installed {
		if code := m.Install(ctx); code != types.CodeSuccess {
			return types.CodeFailure
		}
		return types.CodeTryAgain
	}

	version, err := m.RequestVersion(ctx)
	if err != nil {
		// Registered but unreachable or unhealthy: one reinstall may
		// recover it, under the same single-retry bound as a version
		// mismatch.
		return m.reinstall(ctx, "unreachable")
	}

	if version != m.cfg.ExpectedVersion {
		return m.reinstall(ctx, "stale")
	}

	m.mu.Lock()
	m.reinstalled = false
	m.mu.Unlock()
	return types.CodeSuccess
}

// reinstall performs the single corrective reinstall allowed per
// logical operation.
func (m *Manager) reinstall(ctx context.Context, reason string) types.ReturnCode {
	m.mu.Lock()
	already := m.reinstalled
	m.reinstalled = true
	m.mu.Unlock()

	if already {
		m.logger.Error("helper still not serviceable after reinstall", map[string]any{
			"reason": reason,
		})
		return types.CodeFailure
	}

	m.logger.Info("reinstalling helper", map[string]any{
		"reason": reason,
	})
	if code := m.Install(ctx); code != types.CodeSuccess {
		return types.CodeFailure
	}
	return types.CodeTryAgain
}

// awaitReady confirms the freshly installed helper answers version
// queries, bounded by InstallWaitAttempts.
func (m *Manager) awaitReady(ctx context.Context) bool {
	for attempt := 0; attempt < m.cfg.InstallWaitAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return false
			case <-time.After(m.cfg.InstallWaitInterval):
			}
		}
		if _, err := m.RequestVersion(ctx); err == nil {
			return true
		}
	}
	return false
}

func (m *Manager) setState(s InstallState) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}
