package actionqueue

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Connectivity reports whether the server is believed reachable.
type Connectivity interface {
	Online() bool
}

// AlwaysOnline is used where no monitor runs, such as in-process gateways.
type AlwaysOnline struct{}

func (AlwaysOnline) Online() bool { return true }

// ConnectivityMonitor tracks reachability by probing a Pinger and tells
// listeners when the server comes back.
type ConnectivityMonitor struct {
	pinger   Pinger
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	online    bool
	listeners []func()

	wg       sync.WaitGroup
	stopChan chan struct{}
	running  bool
}

// NewConnectivityMonitor starts out offline until the first probe succeeds.
func NewConnectivityMonitor(pinger Pinger, interval time.Duration, logger *slog.Logger) *ConnectivityMonitor {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &ConnectivityMonitor{
		pinger:   pinger,
		interval: interval,
		timeout:  5 * time.Second,
		logger:   logger,
	}
}

// OnRestored registers fn to run on every offline to online change.
func (m *ConnectivityMonitor) OnRestored(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Online returns the last known state.
func (m *ConnectivityMonitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Set records an externally observed state, for example from the OS
// network callbacks.
func (m *ConnectivityMonitor) Set(online bool) {
	m.mu.Lock()
	restored := online && !m.online
	m.online = online
	listeners := append([]func(){}, m.listeners...)
	m.mu.Unlock()

	if restored {
		m.logger.Info("connectivity restored")
		for _, fn := range listeners {
			fn()
		}
	}
}

// Probe pings once and updates the state.
func (m *ConnectivityMonitor) Probe(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err := m.pinger.Ping(probeCtx)
	if err != nil && m.Online() {
		m.logger.Warn("connectivity lost", "error", err)
	}
	m.Set(err == nil)
	return err == nil
}

// Start probes immediately and then every interval until Stop.
func (m *ConnectivityMonitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stopChan = make(chan struct{})
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.Probe(ctx)

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stopChan:
				return
			case <-ticker.C:
				m.Probe(ctx)
			}
		}
	}()
}

// Stop ends probing.
func (m *ConnectivityMonitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopChan)
	m.mu.Unlock()

	m.wg.Wait()
}
