package permission

import (
	"context"
	"log"
	"sync"
	"time"
)

// Status is the process-wide screen-capture authorization state. It is never
// sticky: the user can flip it in system settings at any time, so it is
// re-derived on every check.
type Status int

const (
	Unknown Status = iota
	Authorized
	Denied
	Restricted
)

func (s Status) String() string {
	switch s {
	case Authorized:
		return "authorized"
	case Denied:
		return "denied"
	case Restricted:
		return "restricted"
	default:
		return "unknown"
	}
}

// Prober is the OS seam behind the gate. On this platform family, probing
// capturable content IS the permission-request mechanism, so Probe may itself
// surface the OS prompt on first invocation. Implementations collapse probe
// failures into Denied; the OS does not reliably distinguish "probe failed"
// from "user said no".
type Prober interface {
	Probe() Status
	Request() Status
	OpenSettings() error
}

// Gate owns the authorization state. Status writes happen only here; readers
// either call Check or consume the Subscribe stream.
type Gate struct {
	prober Prober

	mu        sync.Mutex
	status    Status
	requested bool
	subs      []chan Status
}

func NewGate(p Prober) *Gate {
	return &Gate{prober: p, status: Unknown}
}

// Check re-probes the OS and returns the fresh status.
func (g *Gate) Check() Status {
	return g.setStatus(g.prober.Probe())
}

// Request explicitly re-probes, surfacing the OS prompt where the platform
// supports one.
func (g *Gate) Request() Status {
	return g.setStatus(g.prober.Request())
}

// EnsureAuthorized is the capture-path policy: when unauthorized, request
// access once per process lifetime, then report whatever the probe now says.
// The single-request cap prevents silent prompting loops.
func (g *Gate) EnsureAuthorized() Status {
	if st := g.Check(); st == Authorized {
		return st
	}
	g.mu.Lock()
	already := g.requested
	g.requested = true
	g.mu.Unlock()
	if already {
		g.mu.Lock()
		defer g.mu.Unlock()
		return g.status
	}
	log.Printf("PERMISSION: not authorized, requesting access")
	return g.Request()
}

// OpenSettings deep-links into the OS privacy settings page.
func (g *Gate) OpenSettings() error {
	return g.prober.OpenSettings()
}

// Status returns the last derived status without probing.
func (g *Gate) Status() Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

// Subscribe returns a stream of status changes for UI binding. Sends are
// non-blocking; a slow consumer misses intermediate values, never blocks the
// gate.
func (g *Gate) Subscribe() <-chan Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch := make(chan Status, 4)
	g.subs = append(g.subs, ch)
	return ch
}

// Watch polls the status until ctx is done, pushing changes to subscribers.
// It stands in for a focus-regain refresh on platforms without one.
func (g *Gate) Watch(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			g.Check()
		}
	}
}

func (g *Gate) setStatus(st Status) Status {
	g.mu.Lock()
	changed := st != g.status
	g.status = st
	subs := g.subs
	g.mu.Unlock()
	if changed {
		log.Printf("PERMISSION: status changed to %s", st)
		for _, ch := range subs {
			select {
			case ch <- st:
			default:
			}
		}
	}
	return st
}
