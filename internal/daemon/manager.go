// Package daemon assembles the curator's components and runs them as one
// long-lived process with ordered startup, health monitoring and graceful
// shutdown.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"github.com/tabcurator/tabcurator/internal/config"
)

type Daemon struct {
	cfg           *config.Config
	components    []Component
	shutdownOrder []string
	health        HealthStatus
	uptimeStart   time.Time
	instanceLock  *flock.Flock
	mu            sync.RWMutex
	monitorDone   chan struct{}
}

func NewDaemon(cfg *config.Config) (*Daemon, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	return &Daemon{
		cfg:         cfg,
		health:      StatusStarting,
		uptimeStart: time.Now(),
		monitorDone: make(chan struct{}),
	}, nil
}

func (d *Daemon) AddComponent(comp Component) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.components = append(d.components, comp)
	d.shutdownOrder = append([]string{comp.Name()}, d.shutdownOrder...)
	slog.Info("Component registered", "component", comp.Name(), "total_components", len(d.components))
}

// Run starts every component and blocks until the context is cancelled or a
// termination signal arrives, then shuts everything down in reverse order.
func (d *Daemon) Run(ctx context.Context) error {
	slog.Info("TabCurator daemon starting...")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := d.validateConfig(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if err := d.acquireInstanceLock(); err != nil {
		return err
	}
	defer d.releaseInstanceLock()

	if err := d.initComponents(ctx); err != nil {
		d.rollback(ctx)
		return fmt.Errorf("component initialization failed: %w", err)
	}

	if err := d.startComponents(ctx); err != nil {
		shutdownTimeout, timeoutErr := config.DurationOrDefault(d.cfg.Daemon.ShutdownTimeout, config.DefaultDaemonShutdownTimeout)
		if timeoutErr != nil {
			return fmt.Errorf("parse daemon shutdown timeout: %w", timeoutErr)
		}
		d.gracefulShutdown(ctx, shutdownTimeout)
		return fmt.Errorf("component startup failed: %w", err)
	}

	d.setHealth(StatusRunning)
	slog.Info("TabCurator daemon is running", "components", len(d.components))

	go d.monitorHealth(ctx)

	<-ctx.Done()

	slog.Info("Context cancelled, initiating graceful shutdown", "reason", ctx.Err())
	d.setHealth(StatusStopping)
	close(d.monitorDone)

	shutdownTimeout, err := config.DurationOrDefault(d.cfg.Daemon.ShutdownTimeout, config.DefaultDaemonShutdownTimeout)
	if err != nil {
		return fmt.Errorf("parse daemon shutdown timeout: %w", err)
	}
	if err := d.gracefulShutdown(context.Background(), shutdownTimeout); err != nil {
		return err
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ctx.Err()
	}
	return nil
}

func (d *Daemon) Health() HealthStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.health
}

func (d *Daemon) Component(name string) Component {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.findComponent(name)
}

func (d *Daemon) ComponentHealth() map[string]*ComponentHealth {
	d.mu.RLock()
	components := append([]Component(nil), d.components...)
	d.mu.RUnlock()

	result := make(map[string]*ComponentHealth, len(components))
	for _, comp := range components {
		health, err := comp.Health(context.Background())
		result[comp.Name()] = health
		if err != nil {
			result[comp.Name()].Error = err
		}
	}
	return result
}

func (d *Daemon) setHealth(status HealthStatus) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.health = status
}

func (d *Daemon) validateConfig() error {
	if d.cfg.Server.Port < 1 || d.cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", d.cfg.Server.Port)
	}
	if d.cfg.Daemon.StatePath == "" {
		return fmt.Errorf("daemon state path cannot be empty")
	}
	if err := os.MkdirAll(d.cfg.Daemon.StatePath, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	slog.Info("Configuration validated", "state_path", d.cfg.Daemon.StatePath, "port", d.cfg.Server.Port)
	return nil
}

// acquireInstanceLock guards the state directory: two daemons writing the
// same storage file would corrupt it.
func (d *Daemon) acquireInstanceLock() error {
	lockPath := filepath.Join(d.cfg.Daemon.StatePath, "daemon.lock")
	lock := flock.New(lockPath)

	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another daemon instance holds %s", lockPath)
	}

	d.instanceLock = lock
	slog.Info("Instance lock acquired", "path", lockPath)
	return nil
}

func (d *Daemon) releaseInstanceLock() {
	if d.instanceLock == nil {
		return
	}
	if err := d.instanceLock.Unlock(); err != nil {
		slog.Warn("Failed to release instance lock", "error", err)
	}
}

func (d *Daemon) initComponents(ctx context.Context) error {
	if err := d.validateDependencies(); err != nil {
		return err
	}
	order, err := d.resolveInitOrder()
	if err != nil {
		return err
	}

	for _, name := range order {
		comp := d.findComponent(name)
		if comp == nil {
			continue
		}
		if err := comp.Init(ctx); err != nil {
			return fmt.Errorf("component %s init failed: %w", comp.Name(), err)
		}
		slog.Info("Component initialized", "component", comp.Name())
	}
	return nil
}

func (d *Daemon) startComponents(ctx context.Context) error {
	for _, comp := range d.components {
		if err := comp.Start(ctx); err != nil {
			return fmt.Errorf("component %s startup failed: %w", comp.Name(), err)
		}
		slog.Info("Component started", "component", comp.Name())
	}
	return nil
}

func (d *Daemon) gracefulShutdown(ctx context.Context, timeout time.Duration) error {
	slog.Info("Graceful shutdown initiated", "timeout", timeout)

	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		d.stopComponents(shutdownCtx)
		close(done)
	}()

	select {
	case <-done:
		slog.Info("Graceful shutdown completed")
		return nil
	case <-shutdownCtx.Done():
		if ctx.Err() != nil {
			return fmt.Errorf("shutdown cancelled: %w", ctx.Err())
		}
		return fmt.Errorf("shutdown timeout after %v", timeout)
	}
}

func (d *Daemon) stopComponents(ctx context.Context) {
	for _, name := range d.shutdownOrder {
		comp := d.findComponent(name)
		if comp == nil {
			continue
		}
		if err := comp.Stop(ctx); err != nil {
			slog.Error("Component stop failed", "component", name, "error", err)
			continue
		}
		slog.Info("Component stopped", "component", name)
	}
	d.setHealth(StatusStopped)
}

func (d *Daemon) rollback(ctx context.Context) {
	slog.Warn("Rolling back initialized components...")
	for i := len(d.components) - 1; i >= 0; i-- {
		comp := d.components[i]
		if err := comp.Stop(ctx); err != nil {
			slog.Error("Rollback failed", "component", comp.Name(), "error", err)
		}
	}
	d.setHealth(StatusStopped)
}

func (d *Daemon) findComponent(name string) Component {
	for _, comp := range d.components {
		if comp.Name() == name {
			return comp
		}
	}
	return nil
}

func (d *Daemon) validateDependencies() error {
	registered := make(map[string]bool, len(d.components))
	for _, comp := range d.components {
		registered[comp.Name()] = true
	}
	for _, comp := range d.components {
		for _, dep := range comp.Dependencies() {
			if !registered[dep] {
				return fmt.Errorf("component %s depends on %s which is not registered", comp.Name(), dep)
			}
		}
	}
	return nil
}

// resolveInitOrder topologically sorts components by their dependencies.
func (d *Daemon) resolveInitOrder() ([]string, error) {
	visited := make(map[string]bool)
	inStack := make(map[string]bool)
	var order []string

	var visit func(name string) error
	visit = func(name string) error {
		if inStack[name] {
			return fmt.Errorf("circular dependency detected involving %s", name)
		}
		if visited[name] {
			return nil
		}
		comp := d.findComponent(name)
		if comp == nil {
			return fmt.Errorf("component %s not found", name)
		}

		inStack[name] = true
		for _, dep := range comp.Dependencies() {
			if err := visit(dep); err != nil {
				return err
			}
		}
		inStack[name] = false
		visited[name] = true
		order = append(order, name)
		return nil
	}

	for _, comp := range d.components {
		if err := visit(comp.Name()); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func (d *Daemon) monitorHealth(ctx context.Context) {
	interval, err := config.DurationOrDefault(d.cfg.Daemon.HealthCheckInterval, config.DefaultDaemonHealthInterval)
	if err != nil {
		slog.Error("Failed to parse health check interval", "error", err)
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-d.monitorDone:
			return
		case <-ticker.C:
			d.reportHealth()
		}
	}
}

func (d *Daemon) reportHealth() {
	healths := d.ComponentHealth()
	unhealthy := 0
	for name, health := range healths {
		if !health.Healthy {
			unhealthy++
			slog.Warn("Component unhealthy", "component", name, "error", health.Error)
		}
	}
	if unhealthy > 0 {
		slog.Warn("Daemon has unhealthy components", "count", unhealthy, "total", len(healths))
	} else {
		slog.Debug("All components healthy", "count", len(healths))
	}
}
