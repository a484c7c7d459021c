//go:build windows

package capture

import (
	"sync"
	"testing"
)

// The callback table in the runtime holds on the order of 2000 entries and
// never shrinks, so enumerating windows more times than that must keep
// working for a long-lived resident process.
func TestWindowEnumerationOutlivesCallbackTable(t *testing.T) {
	p := newOSPlatform().(*windowsPlatform)

	for i := 0; i < 2100; i++ {
		p.OwnWindowIDs()
	}
	if _, err := p.Windows(); err != nil {
		t.Fatalf("Windows error after repeated enumeration = %v", err)
	}
}

func TestWindowEnumerationConcurrent(t *testing.T) {
	p := newOSPlatform().(*windowsPlatform)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if _, err := p.Windows(); err != nil {
					t.Errorf("Windows error = %v", err)
					return
				}
				p.OwnWindowIDs()
			}
		}()
	}
	wg.Wait()
}
