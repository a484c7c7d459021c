package session

import (
	"context"
	"errors"
	"image"
	"testing"

	"snipclip/src/capture"
	"snipclip/src/singleinstance"
)

type recordingTarget struct {
	succeeded *capture.Result
	failures  []error
}

func (r *recordingTarget) OnSuccess(res *capture.Result) error {
	r.succeeded = res
	return nil
}

func (r *recordingTarget) OnFailure(err error) error {
	r.failures = append(r.failures, err)
	return nil
}

func testResult() *capture.Result {
	return &capture.Result{
		Image:  image.NewRGBA(image.Rect(0, 0, 8, 8)),
		Width:  8,
		Height: 8,
		Scale:  1,
	}
}

func TestExecuteFullScreen(t *testing.T) {
	var captured capture.Target
	tgt := &recordingTarget{}
	res, err := Execute(context.Background(), Options{
		Target: capture.FullScreen(),
		Capture: func(ctx context.Context, target capture.Target) (*capture.Result, error) {
			captured = target
			return testResult(), nil
		},
		Deliver: tgt,
	})
	if err != nil {
		t.Fatalf("Execute error = %v", err)
	}
	if captured.Kind() != capture.KindFullScreen {
		t.Errorf("captured kind = %v", captured.Kind())
	}
	if tgt.succeeded != res || res == nil {
		t.Errorf("delivery mismatch")
	}
	if len(tgt.failures) != 0 {
		t.Errorf("unexpected failures: %v", tgt.failures)
	}
}

func TestExecuteInteractiveRegion(t *testing.T) {
	want := image.Rect(10, 20, 200, 150)
	selected := false
	var captured capture.Target
	tgt := &recordingTarget{}
	_, err := Execute(context.Background(), Options{
		Target: capture.Region(image.Rectangle{}),
		SelectRegion: func(ctx context.Context) (image.Rectangle, bool, error) {
			selected = true
			return want, false, nil
		},
		Capture: func(ctx context.Context, target capture.Target) (*capture.Result, error) {
			captured = target
			return testResult(), nil
		},
		Deliver: tgt,
	})
	if err != nil {
		t.Fatalf("Execute error = %v", err)
	}
	if !selected {
		t.Fatalf("selector never ran")
	}
	if captured.Rect() != want {
		t.Errorf("captured rect = %v, want %v", captured.Rect(), want)
	}
}

func TestExecutePresetRegionSkipsSelector(t *testing.T) {
	rect := image.Rect(0, 0, 100, 100)
	tgt := &recordingTarget{}
	_, err := Execute(context.Background(), Options{
		Target: capture.Region(rect),
		SelectRegion: func(ctx context.Context) (image.Rectangle, bool, error) {
			t.Fatalf("selector ran for preset region")
			return image.Rectangle{}, false, nil
		},
		Capture: func(ctx context.Context, target capture.Target) (*capture.Result, error) {
			return testResult(), nil
		},
		Deliver: tgt,
	})
	if err != nil {
		t.Fatalf("Execute error = %v", err)
	}
}

func TestExecuteCancelledSelection(t *testing.T) {
	tgt := &recordingTarget{}
	_, err := Execute(context.Background(), Options{
		Target: capture.Region(image.Rectangle{}),
		SelectRegion: func(ctx context.Context) (image.Rectangle, bool, error) {
			return image.Rectangle{}, true, nil
		},
		Capture: func(ctx context.Context, target capture.Target) (*capture.Result, error) {
			t.Fatalf("capture ran after cancellation")
			return nil, nil
		},
		Deliver: tgt,
	})
	if !errors.Is(err, ErrSelectionCancelled) {
		t.Fatalf("Execute error = %v, want ErrSelectionCancelled", err)
	}
	if len(tgt.failures) != 1 || !errors.Is(tgt.failures[0], ErrSelectionCancelled) {
		t.Errorf("failures = %v", tgt.failures)
	}
}

func TestExecuteCaptureFailure(t *testing.T) {
	tgt := &recordingTarget{}
	_, err := Execute(context.Background(), Options{
		Target: capture.FullScreen(),
		Capture: func(ctx context.Context, target capture.Target) (*capture.Result, error) {
			return nil, capture.ErrCaptureFailed
		},
		Deliver: tgt,
	})
	if !errors.Is(err, capture.ErrCaptureFailed) {
		t.Fatalf("Execute error = %v, want ErrCaptureFailed", err)
	}
	if tgt.succeeded != nil {
		t.Errorf("delivery ran despite failure")
	}
}

func TestDelegatedTargetStdout(t *testing.T) {
	conn := &stubConn{}
	tgt := DelegatedTarget{Conn: conn, OutputToStdout: true}
	if err := tgt.OnSuccess(testResult()); err != nil {
		t.Fatalf("OnSuccess error = %v", err)
	}
	if len(conn.success) != 1 || len(conn.success[0]) == 0 {
		t.Errorf("expected PNG payload over the connection")
	}
}

func TestDelegatedTargetClipboard(t *testing.T) {
	conn := &stubConn{}
	sink := &stubSink{}
	tgt := DelegatedTarget{Conn: conn, Sink: sink}
	if err := tgt.OnSuccess(testResult()); err != nil {
		t.Fatalf("OnSuccess error = %v", err)
	}
	if len(sink.writes) != 1 {
		t.Fatalf("sink writes = %d, want 1", len(sink.writes))
	}
	if len(conn.success) != 1 || len(conn.success[0]) != 0 {
		t.Errorf("expected empty success payload, got %v", conn.success)
	}
}

func TestDelegatedTargetFailure(t *testing.T) {
	conn := &stubConn{}
	tgt := DelegatedTarget{Conn: conn}
	if err := tgt.OnFailure(capture.ErrPermissionDenied); err != nil {
		t.Fatalf("OnFailure error = %v", err)
	}
	if len(conn.errs) != 1 {
		t.Fatalf("errs = %v", conn.errs)
	}
}

type stubConn struct {
	success [][]byte
	errs    []string
}

func (s *stubConn) Request() singleinstance.Request { return singleinstance.Request{} }

func (s *stubConn) RespondSuccess(png []byte) error {
	s.success = append(s.success, png)
	return nil
}

func (s *stubConn) RespondError(msg string) error {
	s.errs = append(s.errs, msg)
	return nil
}

func (s *stubConn) Close() error { return nil }

type stubSink struct {
	writes [][]byte
}

func (s *stubSink) WriteImage(png []byte) error {
	s.writes = append(s.writes, png)
	return nil
}
