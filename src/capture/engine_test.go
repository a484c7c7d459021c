package capture

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"snipclip/src/permission"
)

type fakeGate struct {
	status permission.Status
	calls  int
}

func (g *fakeGate) EnsureAuthorized() permission.Status {
	g.calls++
	return g.status
}

type fakeStream struct {
	frames chan Frame
	closed bool
}

func (s *fakeStream) Frames() <-chan Frame { return s.frames }
func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

type fakePlatform struct {
	displays []Display
	windows  []WindowInfo
	state    DisplayState
	own      []WindowID

	grabErr   error
	grabDisps []Display
	grabCfgs  []FrameConfig

	stream    *fakeStream
	openCalls int

	snapCfgs []FrameConfig
	snapErr  error
}

func (p *fakePlatform) Displays() ([]Display, error) { return p.displays, nil }
func (p *fakePlatform) Windows() ([]WindowInfo, error) {
	return p.windows, nil
}
func (p *fakePlatform) State() DisplayState { return p.state }

func (p *fakePlatform) Grab(ctx context.Context, d Display, cfg FrameConfig) (*image.RGBA, error) {
	p.grabDisps = append(p.grabDisps, d)
	p.grabCfgs = append(p.grabCfgs, cfg)
	if p.grabErr != nil {
		return nil, p.grabErr
	}
	return image.NewRGBA(image.Rect(0, 0, cfg.PixelWidth, cfg.PixelHeight)), nil
}

func (p *fakePlatform) OpenStream(ctx context.Context, d Display, cfg FrameConfig) (FrameStream, error) {
	p.openCalls++
	return p.stream, nil
}

func (p *fakePlatform) SnapshotWindow(ctx context.Context, id WindowID, cfg FrameConfig) (*image.RGBA, error) {
	p.snapCfgs = append(p.snapCfgs, cfg)
	if p.snapErr != nil {
		return nil, p.snapErr
	}
	return image.NewRGBA(image.Rect(0, 0, cfg.PixelWidth, cfg.PixelHeight)), nil
}

func (p *fakePlatform) OwnWindowIDs() []WindowID { return p.own }

func singleDisplay() []Display {
	return []Display{{ID: 1, Bounds: image.Rect(0, 0, 1920, 1080), Scale: 2, Primary: true}}
}

func newTestEngine(p *fakePlatform, g *fakeGate) *Engine {
	return NewEngine(Options{Platform: p, Gate: g, Scale: 2})
}

func TestCaptureRejectsEmptyRegionBeforeOSCalls(t *testing.T) {
	p := &fakePlatform{displays: singleDisplay()}
	g := &fakeGate{status: permission.Authorized}
	e := newTestEngine(p, g)

	_, err := e.Capture(context.Background(), Region(image.Rect(10, 10, 10, 50)))
	if !errors.Is(err, ErrInvalidRegion) {
		t.Fatalf("error = %v, want ErrInvalidRegion", err)
	}
	if g.calls != 0 {
		t.Errorf("permission checked %d times before validation", g.calls)
	}
	if len(p.grabCfgs) != 0 {
		t.Errorf("grab called for an invalid region")
	}
}

func TestCaptureDeniedChecksOnce(t *testing.T) {
	p := &fakePlatform{displays: singleDisplay()}
	g := &fakeGate{status: permission.Denied}
	e := newTestEngine(p, g)

	_, err := e.Capture(context.Background(), FullScreen())
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("error = %v, want ErrPermissionDenied", err)
	}
	if g.calls != 1 {
		t.Errorf("EnsureAuthorized calls = %d, want 1", g.calls)
	}
	if len(p.grabCfgs) != 0 {
		t.Errorf("grab called without authorization")
	}
}

func TestCaptureDisplayStates(t *testing.T) {
	tests := []struct {
		name  string
		state DisplayState
		want  error
	}{
		{name: "asleep", state: DisplayAsleep, want: ErrScreenAsleep},
		{name: "locked", state: DisplayLocked, want: ErrScreenLocked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePlatform{displays: singleDisplay(), state: tt.state}
			e := newTestEngine(p, &fakeGate{status: permission.Authorized})
			_, err := e.Capture(context.Background(), FullScreen())
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestCaptureNoDisplays(t *testing.T) {
	e := newTestEngine(&fakePlatform{}, &fakeGate{status: permission.Authorized})
	_, err := e.Capture(context.Background(), FullScreen())
	if !errors.Is(err, ErrNoDisplaysFound) {
		t.Fatalf("error = %v, want ErrNoDisplaysFound", err)
	}
}

func TestFullScreenScalesToPixelDimensions(t *testing.T) {
	p := &fakePlatform{displays: singleDisplay()}
	e := newTestEngine(p, &fakeGate{status: permission.Authorized})

	res, err := e.Capture(context.Background(), FullScreen())
	if err != nil {
		t.Fatalf("Capture error = %v", err)
	}
	if len(p.grabCfgs) != 1 {
		t.Fatalf("grab calls = %d, want 1", len(p.grabCfgs))
	}
	cfg := p.grabCfgs[0]
	if cfg.SourceRect != image.Rect(0, 0, 1920, 1080) {
		t.Errorf("SourceRect = %v", cfg.SourceRect)
	}
	if cfg.PixelWidth != 3840 || cfg.PixelHeight != 2160 {
		t.Errorf("pixel dims = %dx%d, want 3840x2160", cfg.PixelWidth, cfg.PixelHeight)
	}
	if res.Width != 3840 || res.Height != 2160 || res.Scale != 2 {
		t.Errorf("result = %dx%d scale %v", res.Width, res.Height, res.Scale)
	}
}

func TestFullScreenPrefersPrimaryDisplay(t *testing.T) {
	p := &fakePlatform{displays: []Display{
		{ID: 2, Bounds: image.Rect(1920, 0, 3840, 1080)},
		{ID: 1, Bounds: image.Rect(0, 0, 1920, 1080), Primary: true},
	}}
	e := newTestEngine(p, &fakeGate{status: permission.Authorized})

	if _, err := e.Capture(context.Background(), FullScreen()); err != nil {
		t.Fatalf("Capture error = %v", err)
	}
	if p.grabDisps[0].ID != 1 {
		t.Errorf("grabbed display %d, want primary 1", p.grabDisps[0].ID)
	}
}

func TestRegionResolvesLargestIntersection(t *testing.T) {
	p := &fakePlatform{displays: []Display{
		{ID: 1, Bounds: image.Rect(0, 0, 1920, 1080), Primary: true},
		{ID: 2, Bounds: image.Rect(1920, 0, 3840, 1080)},
	}}
	e := newTestEngine(p, &fakeGate{status: permission.Authorized})

	// 100px on display 1, 300px on display 2.
	rect := image.Rect(1820, 100, 2220, 300)
	if _, err := e.Capture(context.Background(), Region(rect)); err != nil {
		t.Fatalf("Capture error = %v", err)
	}
	if p.grabDisps[0].ID != 2 {
		t.Errorf("grabbed display %d, want 2", p.grabDisps[0].ID)
	}
	if p.grabCfgs[0].SourceRect != rect {
		t.Errorf("SourceRect = %v, want %v", p.grabCfgs[0].SourceRect, rect)
	}
}

func TestRegionOutsideAllDisplays(t *testing.T) {
	p := &fakePlatform{displays: singleDisplay()}
	e := newTestEngine(p, &fakeGate{status: permission.Authorized})

	_, err := e.Capture(context.Background(), Region(image.Rect(5000, 5000, 5100, 5100)))
	if !errors.Is(err, ErrCaptureFailed) {
		t.Fatalf("error = %v, want ErrCaptureFailed", err)
	}
}

func TestStreamFallbackConsumesFirstFrame(t *testing.T) {
	frame := image.NewRGBA(image.Rect(0, 0, 200, 100))
	stream := &fakeStream{frames: make(chan Frame, 2)}
	stream.frames <- Frame{Image: frame}
	stream.frames <- Frame{Image: image.NewRGBA(image.Rect(0, 0, 1, 1))}

	p := &fakePlatform{
		displays: singleDisplay(),
		grabErr:  ErrStrategyUnavailable,
		stream:   stream,
	}
	e := newTestEngine(p, &fakeGate{status: permission.Authorized})

	res, err := e.Capture(context.Background(), Region(image.Rect(0, 0, 100, 50)))
	if err != nil {
		t.Fatalf("Capture error = %v", err)
	}
	if p.openCalls != 1 {
		t.Errorf("OpenStream calls = %d, want 1", p.openCalls)
	}
	if res.Image != frame {
		t.Errorf("result did not use the first streamed frame")
	}
	if !stream.closed {
		t.Errorf("stream left open after first frame")
	}
	if len(stream.frames) != 1 {
		t.Errorf("engine consumed %d extra frames", 1-len(stream.frames))
	}
}

func TestStreamEndedBeforeFrame(t *testing.T) {
	stream := &fakeStream{frames: make(chan Frame)}
	close(stream.frames)

	p := &fakePlatform{
		displays: singleDisplay(),
		grabErr:  ErrStrategyUnavailable,
		stream:   stream,
	}
	e := newTestEngine(p, &fakeGate{status: permission.Authorized})

	_, err := e.Capture(context.Background(), FullScreen())
	if !errors.Is(err, ErrCaptureFailed) {
		t.Fatalf("error = %v, want ErrCaptureFailed", err)
	}
}

func TestStreamCancelledContext(t *testing.T) {
	stream := &fakeStream{frames: make(chan Frame)}
	p := &fakePlatform{
		displays: singleDisplay(),
		grabErr:  ErrStrategyUnavailable,
		stream:   stream,
	}
	e := newTestEngine(p, &fakeGate{status: permission.Authorized})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.Capture(ctx, FullScreen())
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("error = %v, want ErrCancelled", err)
	}
	if !stream.closed {
		t.Errorf("stream left open after cancellation")
	}
}

func TestWindowCaptureUsesWindowBounds(t *testing.T) {
	bounds := image.Rect(100, 100, 500, 400)
	p := &fakePlatform{
		displays: singleDisplay(),
		windows: []WindowInfo{
			{ID: 7, Title: "editor", OwnerName: "editor.exe", Bounds: bounds, OnScreen: true},
		},
	}
	e := newTestEngine(p, &fakeGate{status: permission.Authorized})

	res, err := e.Capture(context.Background(), Window(7))
	if err != nil {
		t.Fatalf("Capture error = %v", err)
	}
	if len(p.snapCfgs) != 1 {
		t.Fatalf("snapshot calls = %d, want 1", len(p.snapCfgs))
	}
	if p.snapCfgs[0].SourceRect != bounds {
		t.Errorf("SourceRect = %v, want %v", p.snapCfgs[0].SourceRect, bounds)
	}
	if res.Width != 800 || res.Height != 600 {
		t.Errorf("result = %dx%d, want 800x600", res.Width, res.Height)
	}
}

func TestWindowCaptureUnknownID(t *testing.T) {
	p := &fakePlatform{displays: singleDisplay()}
	e := newTestEngine(p, &fakeGate{status: permission.Authorized})

	_, err := e.Capture(context.Background(), Window(99))
	if !errors.Is(err, ErrWindowNotFound) {
		t.Fatalf("error = %v, want ErrWindowNotFound", err)
	}
}

func TestTargetsFiltering(t *testing.T) {
	p := &fakePlatform{
		windows: []WindowInfo{
			{ID: 1, Title: "editor", OwnerName: "editor.exe", OnScreen: true},
			{ID: 2, Title: "offscreen", OwnerName: "a.exe", OnScreen: false},
			{ID: 3, Title: "layered", OwnerName: "b.exe", OnScreen: true, Layer: 5},
			{ID: 4, Title: "", OwnerName: "c.exe", OnScreen: true},
			{ID: 5, Title: "taskbar", OwnerName: "explorer.exe", OnScreen: true},
			{ID: 6, Title: "mine", OwnerName: "snipclip", OnScreen: true},
			{ID: 7, Title: "terminal", OwnerName: "term.exe", OnScreen: true},
		},
		own: []WindowID{6},
	}
	e := newTestEngine(p, &fakeGate{status: permission.Authorized})

	infos, err := e.Targets()
	if err != nil {
		t.Fatalf("Targets error = %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("targets = %+v, want 2 entries", infos)
	}
	if infos[0].ID != 1 || infos[1].ID != 7 {
		t.Errorf("targets = %+v, want ids 1 and 7 in order", infos)
	}
}

func TestNewEngineClampsOptions(t *testing.T) {
	tests := []struct {
		name      string
		opts      Options
		wantScale float64
		wantWait  time.Duration
	}{
		{name: "defaults", opts: Options{}, wantScale: DefaultScale, wantWait: DefaultFirstFrameWait},
		{name: "wait below floor", opts: Options{FirstFrameWait: time.Second}, wantScale: DefaultScale, wantWait: MinFirstFrameWait},
		{name: "wait above ceiling", opts: Options{FirstFrameWait: time.Minute}, wantScale: DefaultScale, wantWait: MaxFirstFrameWait},
		{name: "explicit", opts: Options{Scale: 1.5, FirstFrameWait: 4 * time.Second}, wantScale: 1.5, wantWait: 4 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine(tt.opts)
			if e.Scale() != tt.wantScale {
				t.Errorf("scale = %v, want %v", e.Scale(), tt.wantScale)
			}
			if e.firstFrameWait != tt.wantWait {
				t.Errorf("firstFrameWait = %v, want %v", e.firstFrameWait, tt.wantWait)
			}
		})
	}
}
