package eventloop

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"snipclip/src/capture"
	"snipclip/src/singleinstance"
)

// fakeServer keeps the loop off real TCP ports.
type fakeServer struct{}

func (fakeServer) Start(ctx context.Context) error { return nil }
func (fakeServer) Port() int                       { return 0 }
func (fakeServer) Next(ctx context.Context) (singleinstance.Conn, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
func (fakeServer) Close() error { return nil }

type fakeSelector struct {
	rect      image.Rectangle
	cancelled bool
	err       error
	calls     int
}

func (f *fakeSelector) Select(ctx context.Context) (image.Rectangle, bool, error) {
	f.calls++
	return f.rect, f.cancelled, f.err
}

type fakeSink struct {
	mu     sync.Mutex
	writes int
}

func (f *fakeSink) WriteImage(png []byte) error {
	f.mu.Lock()
	f.writes++
	f.mu.Unlock()
	return nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writes
}

func testCapture(record *[]capture.Target, mu *sync.Mutex) func(ctx context.Context, t capture.Target) (*capture.Result, error) {
	return func(ctx context.Context, t capture.Target) (*capture.Result, error) {
		mu.Lock()
		*record = append(*record, t)
		mu.Unlock()
		return &capture.Result{
			Image:  image.NewRGBA(image.Rect(0, 0, 4, 4)),
			Width:  4,
			Height: 4,
			Scale:  1,
		}, nil
	}
}

func startLoop(t *testing.T, opts Options) (*Loop, context.CancelFunc) {
	t.Helper()
	if opts.Server == nil {
		opts.Server = fakeServer{}
	}
	l := New(opts)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = l.Run(ctx) }()
	return l, cancel
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", what)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestFullScreenCaptureDeliversToClipboard(t *testing.T) {
	var mu sync.Mutex
	var captured []capture.Target
	sink := &fakeSink{}

	l, cancel := startLoop(t, Options{
		Selector: &fakeSelector{},
		Capture:  testCapture(&captured, &mu),
		Sink:     sink,
	})
	defer cancel()

	l.Invoke(func() { l.RequestCapture(context.Background(), capture.KindFullScreen) })

	waitFor(t, func() bool { return sink.count() == 1 }, "clipboard write")
	mu.Lock()
	defer mu.Unlock()
	if len(captured) != 1 || captured[0].Kind() != capture.KindFullScreen {
		t.Errorf("captured = %v", captured)
	}
}

func TestRegionCaptureUsesSelectedRect(t *testing.T) {
	var mu sync.Mutex
	var captured []capture.Target
	sink := &fakeSink{}
	sel := &fakeSelector{rect: image.Rect(10, 20, 110, 220)}

	l, cancel := startLoop(t, Options{
		Selector: sel,
		Capture:  testCapture(&captured, &mu),
		Sink:     sink,
	})
	defer cancel()

	l.Invoke(func() { l.RequestCapture(context.Background(), capture.KindRegion) })

	waitFor(t, func() bool { return sink.count() == 1 }, "clipboard write")
	mu.Lock()
	defer mu.Unlock()
	if captured[0].Rect() != sel.rect {
		t.Errorf("captured rect = %v, want %v", captured[0].Rect(), sel.rect)
	}
}

func TestCancelledSelectionSkipsCapture(t *testing.T) {
	var mu sync.Mutex
	var captured []capture.Target
	sink := &fakeSink{}

	l, cancel := startLoop(t, Options{
		Selector: &fakeSelector{cancelled: true},
		Capture:  testCapture(&captured, &mu),
		Sink:     sink,
	})
	defer cancel()

	done := make(chan struct{})
	l.Invoke(func() {
		l.RequestCapture(context.Background(), capture.KindRegion)
		close(done)
	})
	<-done

	mu.Lock()
	defer mu.Unlock()
	if len(captured) != 0 {
		t.Errorf("capture ran despite cancellation: %v", captured)
	}
	if sink.count() != 0 {
		t.Errorf("clipboard written despite cancellation")
	}
}

func TestWindowCaptureUsesFrontmostTarget(t *testing.T) {
	var mu sync.Mutex
	var captured []capture.Target
	sink := &fakeSink{}

	l, cancel := startLoop(t, Options{
		Selector: &fakeSelector{},
		Capture:  testCapture(&captured, &mu),
		Sink:     sink,
		Targets: func() ([]capture.TargetInfo, error) {
			return []capture.TargetInfo{
				{ID: 42, Title: "editor"},
				{ID: 7, Title: "terminal"},
			}, nil
		},
	})
	defer cancel()

	l.Invoke(func() { l.RequestCapture(context.Background(), capture.KindWindow) })

	waitFor(t, func() bool { return sink.count() == 1 }, "clipboard write")
	mu.Lock()
	defer mu.Unlock()
	if captured[0].WindowID() != 42 {
		t.Errorf("captured window = %d, want frontmost 42", captured[0].WindowID())
	}
}

func TestWindowCaptureNoTargets(t *testing.T) {
	sink := &fakeSink{}
	var mu sync.Mutex
	var captured []capture.Target

	l, cancel := startLoop(t, Options{
		Selector: &fakeSelector{},
		Capture:  testCapture(&captured, &mu),
		Sink:     sink,
		Targets: func() ([]capture.TargetInfo, error) {
			return nil, nil
		},
	})
	defer cancel()

	done := make(chan struct{})
	l.Invoke(func() {
		l.RequestCapture(context.Background(), capture.KindWindow)
		close(done)
	})
	<-done

	if sink.count() != 0 {
		t.Errorf("clipboard written without a window target")
	}
}

func TestBusyRequestDropped(t *testing.T) {
	block := make(chan struct{})
	sink := &fakeSink{}
	started := make(chan struct{}, 2)

	l, cancel := startLoop(t, Options{
		Selector: &fakeSelector{},
		Capture: func(ctx context.Context, target capture.Target) (*capture.Result, error) {
			started <- struct{}{}
			<-block
			return &capture.Result{Image: image.NewRGBA(image.Rect(0, 0, 1, 1)), Width: 1, Height: 1, Scale: 1}, nil
		},
		Sink: sink,
	})
	defer cancel()

	l.Invoke(func() { l.RequestCapture(context.Background(), capture.KindFullScreen) })
	<-started

	// The loop is busy; this request must be dropped without capturing.
	dropped := make(chan struct{})
	l.Invoke(func() {
		l.RequestCapture(context.Background(), capture.KindFullScreen)
		close(dropped)
	})
	<-dropped
	close(block)

	waitFor(t, func() bool { return sink.count() == 1 }, "first capture delivery")
	select {
	case <-started:
		t.Errorf("second capture ran while busy")
	default:
	}
}

func TestSelectorErrorReported(t *testing.T) {
	sink := &fakeSink{}
	var mu sync.Mutex
	var captured []capture.Target
	selErr := errors.New("overlay exploded")

	l, cancel := startLoop(t, Options{
		Selector: &fakeSelector{err: selErr},
		Capture:  testCapture(&captured, &mu),
		Sink:     sink,
	})
	defer cancel()

	done := make(chan struct{})
	l.Invoke(func() {
		l.RequestCapture(context.Background(), capture.KindRegion)
		close(done)
	})
	<-done

	if sink.count() != 0 {
		t.Errorf("clipboard written despite selector error")
	}
}
