package overlay

import (
	"image"
	"testing"
)

func newTestSession(t *testing.T, cfg Config, got *image.Rectangle, ok *bool, fired *int) *Session {
	t.Helper()
	cfg.OnResult = func(r image.Rectangle, completed bool) {
		*got = r
		*ok = completed
		*fired++
	}
	s := NewSession(cfg)
	if err := s.Begin(); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	return s
}

func TestDragDirectionNormalization(t *testing.T) {
	tests := []struct {
		name     string
		down, up image.Point
	}{
		{"top-left to bottom-right", image.Pt(100, 100), image.Pt(300, 250)},
		{"bottom-right to top-left", image.Pt(300, 250), image.Pt(100, 100)},
		{"top-right to bottom-left", image.Pt(300, 100), image.Pt(100, 250)},
		{"bottom-left to top-right", image.Pt(100, 250), image.Pt(300, 100)},
	}
	want := image.Rect(100, 100, 300, 250)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got image.Rectangle
			var ok bool
			var fired int
			s := newTestSession(t, Config{Surface: image.Rect(0, 0, 1920, 1080)}, &got, &ok, &fired)

			s.PointerDown(tt.down.X, tt.down.Y)
			s.PointerMove((tt.down.X+tt.up.X)/2, (tt.down.Y+tt.up.Y)/2)
			s.PointerUp(tt.up.X, tt.up.Y)

			if !ok {
				t.Fatalf("selection cancelled, want completed")
			}
			if got != want {
				t.Errorf("rect = %v, want %v", got, want)
			}
			if fired != 1 {
				t.Errorf("callback fired %d times, want 1", fired)
			}
		})
	}
}

func TestMinimumSpanCancels(t *testing.T) {
	tests := []struct {
		name     string
		up       image.Point
		complete bool
	}{
		{"exactly at threshold cancels", image.Pt(110, 110), false},
		{"one unit over completes", image.Pt(111, 111), true},
		{"wide but short cancels", image.Pt(400, 105), false},
		{"tall but narrow cancels", image.Pt(105, 400), false},
		{"zero-size click cancels", image.Pt(100, 100), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got image.Rectangle
			var ok bool
			var fired int
			s := newTestSession(t, Config{Surface: image.Rect(0, 0, 1920, 1080)}, &got, &ok, &fired)

			s.PointerDown(100, 100)
			s.PointerUp(tt.up.X, tt.up.Y)

			if ok != tt.complete {
				t.Errorf("completed = %v, want %v (rect %v)", ok, tt.complete, got)
			}
			if fired != 1 {
				t.Errorf("callback fired %d times, want 1", fired)
			}
			wantState := Cancelled
			if tt.complete {
				wantState = Completed
			}
			if s.State() != wantState {
				t.Errorf("state = %s, want %s", s.State(), wantState)
			}
		})
	}
}

func TestBottomLeftOriginFlip(t *testing.T) {
	// A 1080-tall surface with bottom-left origin: local Y grows upward, so a
	// rectangle near the local bottom lands near the global top after the flip.
	var got image.Rectangle
	var ok bool
	var fired int
	s := newTestSession(t, Config{
		Surface:          image.Rect(0, 0, 1920, 1080),
		BottomLeftOrigin: true,
	}, &got, &ok, &fired)

	s.PointerDown(100, 900)
	s.PointerUp(300, 1000)

	if !ok {
		t.Fatalf("selection cancelled, want completed")
	}
	want := image.Rect(100, 1080-1000, 300, 1080-900)
	if got != want {
		t.Errorf("flipped rect = %v, want %v", got, want)
	}
}

func TestGlobalOriginTranslation(t *testing.T) {
	var got image.Rectangle
	var ok bool
	var fired int
	s := newTestSession(t, Config{
		Surface: image.Rect(0, 0, 1920, 1080),
		Origin:  image.Pt(-1920, 200), // secondary display left of primary
	}, &got, &ok, &fired)

	s.PointerDown(10, 20)
	s.PointerUp(110, 120)

	if !ok {
		t.Fatalf("selection cancelled, want completed")
	}
	want := image.Rect(10-1920, 20+200, 110-1920, 120+200)
	if got != want {
		t.Errorf("translated rect = %v, want %v", got, want)
	}
}

func TestCancelMidDrag(t *testing.T) {
	var got image.Rectangle
	var ok bool
	var fired int
	s := newTestSession(t, Config{Surface: image.Rect(0, 0, 800, 600)}, &got, &ok, &fired)

	s.PointerDown(50, 50)
	s.PointerMove(200, 200)
	s.Cancel()

	if ok {
		t.Fatalf("completed = true, want cancelled")
	}
	if s.Dragging() {
		t.Errorf("still dragging after cancel")
	}
	// Pointer release after cancel must not fire a second result.
	s.PointerUp(200, 200)
	if fired != 1 {
		t.Errorf("callback fired %d times, want 1", fired)
	}
}

func TestNewDragClearsPriorRect(t *testing.T) {
	s := NewSession(Config{Surface: image.Rect(0, 0, 800, 600)})
	if err := s.Begin(); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	s.PointerDown(10, 10)
	s.PointerMove(100, 100)
	if _, has := s.Rect(); !has {
		t.Fatalf("expected live rect during drag")
	}
	// Driver restarts the drag without lifting (capture-loss recovery).
	s.PointerDown(300, 300)
	if _, has := s.Rect(); has {
		t.Errorf("stale rect survived new PointerDown")
	}
}

func TestBeginRequiresIdle(t *testing.T) {
	s := NewSession(Config{Surface: image.Rect(0, 0, 800, 600)})
	if err := s.Begin(); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if err := s.Begin(); err == nil {
		t.Fatalf("second Begin() succeeded, want error")
	}
	s.Cancel()
	if err := s.Begin(); err == nil {
		t.Fatalf("Begin() after cancel succeeded, want error")
	}
}

func TestLabel(t *testing.T) {
	s := NewSession(Config{Surface: image.Rect(0, 0, 800, 600)})
	_ = s.Begin()
	s.PointerDown(10, 20)
	s.PointerMove(210, 170)
	if got := s.Label(); got != "200 × 150" {
		t.Errorf("Label() = %q", got)
	}
}

func TestLabelOriginPlacement(t *testing.T) {
	s := NewSession(Config{Surface: image.Rect(0, 0, 800, 600)})
	_ = s.Begin()

	// Mid-surface: label goes just below the rectangle.
	s.PointerDown(100, 100)
	s.PointerMove(300, 200)
	at := s.LabelOrigin(60, 16)
	if at.X != 100 || at.Y != 200+labelPad {
		t.Errorf("mid-surface label at %v", at)
	}

	// Rectangle reaching the bottom edge: label flips above.
	s.PointerDown(100, 400)
	s.PointerMove(300, 595)
	at = s.LabelOrigin(60, 16)
	if at.Y != 400-labelPad-16 {
		t.Errorf("bottom-edge label at %v, want flipped above", at)
	}

	// Rectangle at the right edge: label clamps inside the surface.
	s.PointerDown(780, 100)
	s.PointerMove(790, 200)
	at = s.LabelOrigin(60, 16)
	if at.X+60 > 800 {
		t.Errorf("right-edge label at %v overflows surface", at)
	}
}
