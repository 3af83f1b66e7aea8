// Package metrics provides in-process metrics collection.
//
// The Collector accumulates counters across flash operations. It is a
// leaf package with no internal dependencies, and every method is
// nil-receiver safe so wiring metrics stays optional everywhere.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after
// creation.
type Snapshot struct {
	// Flash lifecycle
	FlashesStarted   int64
	FlashesCompleted int64
	FlashesFailed    int64
	FlashesCancelled int64

	// Write stage
	BytesWritten int64

	// Helper lifecycle
	HelperInstalls int64
	OpRetries      int64

	// Transport and auth
	AuthDenials     int64
	IPCDecodeErrors int64

	// Dimensions (informational, set at construction)
	Component string
}

// Collector accumulates counters. Thread-safe via sync.Mutex.
type Collector struct {
	mu sync.Mutex

	flashesStarted   int64
	flashesCompleted int64
	flashesFailed    int64
	flashesCancelled int64

	bytesWritten int64

	helperInstalls int64
	opRetries      int64

	authDenials     int64
	ipcDecodeErrors int64

	component string
}

// NewCollector creates a Collector labeled with the owning component.
func NewCollector(component string) *Collector {
	return &Collector{component: component}
}

// IncFlashStarted records a dispatched flash operation.
func (c *Collector) IncFlashStarted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.flashesStarted++
	c.mu.Unlock()
}

// IncFlashCompleted records a successful flash completion.
func (c *Collector) IncFlashCompleted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.flashesCompleted++
	c.mu.Unlock()
}

// IncFlashFailed records a terminal flash failure.
func (c *Collector) IncFlashFailed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.flashesFailed++
	c.mu.Unlock()
}

// IncFlashCancelled records a user-cancelled flash.
func (c *Collector) IncFlashCancelled() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.flashesCancelled++
	c.mu.Unlock()
}

// AddBytesWritten accumulates bytes confirmed written to the device.
func (c *Collector) AddBytesWritten(n int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.bytesWritten += n
	c.mu.Unlock()
}

// IncHelperInstall records a helper install or reinstall.
func (c *Collector) IncHelperInstall() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.helperInstalls++
	c.mu.Unlock()
}

// IncOpRetry records a single-retry of a logical operation after a
// corrective helper action.
func (c *Collector) IncOpRetry() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.opRetries++
	c.mu.Unlock()
}

// IncAuthDenial records a peer denied by the authentication guard.
func (c *Collector) IncAuthDenial() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.authDenials++
	c.mu.Unlock()
}

// IncIPCDecodeErrors records an IPC frame decode error.
func (c *Collector) IncIPCDecodeErrors() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.ipcDecodeErrors++
	c.mu.Unlock()
}

// Snapshot returns an immutable point-in-time view of all counters.
// The Collector can continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		FlashesStarted:   c.flashesStarted,
		FlashesCompleted: c.flashesCompleted,
		FlashesFailed:    c.flashesFailed,
		FlashesCancelled: c.flashesCancelled,

		BytesWritten: c.bytesWritten,

		HelperInstalls: c.helperInstalls,
		OpRetries:      c.opRetries,

		AuthDenials:     c.authDenials,
		IPCDecodeErrors: c.ipcDecodeErrors,

		Component: c.component,
	}
}
