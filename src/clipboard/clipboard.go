// Package clipboard delivers captured images to the system clipboard.
package clipboard

import (
	"fmt"
	"sync"

	"golang.design/x/clipboard"
)

// Init must succeed once before any write; it binds the process to the
// platform clipboard service.
func Init() error {
	if err := clipboard.Init(); err != nil {
		return fmt.Errorf("clipboard unavailable: %w", err)
	}
	return nil
}

// Sink receives finished captures as encoded PNG bytes.
type Sink interface {
	WriteImage(png []byte) error
}

// SystemSink writes to the OS clipboard. Writes are mutex-guarded to prevent
// corruption when a capture and a CLI delegation land at the same time.
type SystemSink struct {
	mu sync.Mutex
}

func NewSystemSink() *SystemSink { return &SystemSink{} }

func (s *SystemSink) WriteImage(png []byte) error {
	if len(png) == 0 {
		return fmt.Errorf("refusing to write empty image to clipboard")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	clipboard.Write(clipboard.FmtImage, png)
	return nil
}
