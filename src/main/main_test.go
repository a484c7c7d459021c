package main

import (
	"context"
	"errors"
	"testing"

	"snipclip/src/singleinstance"
)

func TestNormalizeLegacyArgs(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		out  []string
	}{
		{
			name: "Normalizes long single dash flags",
			in:   []string{"snipclip", "-once", "-bindings-file", "/tmp/b.yaml"},
			out:  []string{"snipclip", "--once", "--bindings-file", "/tmp/b.yaml"},
		},
		{
			name: "Normalizes equals form",
			in:   []string{"snipclip", "-once=true", "-target=full"},
			out:  []string{"snipclip", "--once=true", "--target=full"},
		},
		{
			name: "Leaves double dash flags unchanged",
			in:   []string{"snipclip", "--once", "--stdout"},
			out:  []string{"snipclip", "--once", "--stdout"},
		},
		{
			name: "Leaves short flags unchanged",
			in:   []string{"snipclip", "-h"},
			out:  []string{"snipclip", "-h"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeLegacyArgs(tt.in)
			if len(got) != len(tt.out) {
				t.Fatalf("Expected len=%d, got %d", len(tt.out), len(got))
			}
			for i := range got {
				if got[i] != tt.out[i] {
					t.Fatalf("Expected arg[%d]=%q, got %q", i, tt.out[i], got[i])
				}
			}
		})
	}
}

func TestNewRootCmdParsesFlags(t *testing.T) {
	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	if err := cmd.ParseFlags([]string{"--once", "--target", "window:12", "--stdout", "--scale", "1.5"}); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	if !opts.once {
		t.Fatal("Expected once=true")
	}
	if opts.target != "window:12" {
		t.Fatalf("Expected target=window:12, got %q", opts.target)
	}
	if !opts.stdout {
		t.Fatal("Expected stdout=true")
	}
	if opts.scale != 1.5 {
		t.Fatalf("Expected scale=1.5, got %f", opts.scale)
	}
}

func TestParseOnceTarget(t *testing.T) {
	tests := []struct {
		spec    string
		kind    string
		window  uint64
		wantErr bool
	}{
		{spec: "full", kind: singleinstance.KindFullScreen},
		{spec: "region", kind: singleinstance.KindRegion},
		{spec: "", kind: singleinstance.KindRegion},
		{spec: "window", kind: singleinstance.KindWindow},
		{spec: "window:42", kind: singleinstance.KindWindow, window: 42},
		{spec: "window:abc", wantErr: true},
		{spec: "desktop", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			req, err := parseOnceTarget(tt.spec, false)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Expected error for %q", tt.spec)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseOnceTarget(%q) error = %v", tt.spec, err)
			}
			if req.Kind != tt.kind {
				t.Errorf("Kind = %q, want %q", req.Kind, tt.kind)
			}
			if req.WindowID != tt.window {
				t.Errorf("WindowID = %d, want %d", req.WindowID, tt.window)
			}
		})
	}
}

type fakeClient struct {
	delegated bool
	err       error
	called    bool
}

func (f *fakeClient) TryCapture(ctx context.Context, req singleinstance.Request) (bool, []byte, error) {
	f.called = true
	return f.delegated, nil, f.err
}

func TestHandleOnceWithDelegation_Delegated(t *testing.T) {
	client := &fakeClient{delegated: true}
	fallbackCalled := false

	handleOnceWithDelegation(singleinstance.Request{Kind: singleinstance.KindFullScreen}, client, func() {
		fallbackCalled = true
	})

	if !client.called {
		t.Fatal("Expected client.TryCapture to be called")
	}
	if fallbackCalled {
		t.Fatal("Did not expect fallback when delegation succeeds")
	}
}

func TestHandleOnceWithDelegation_NoResidentFallback(t *testing.T) {
	client := &fakeClient{delegated: false}
	fallbackCalled := false

	handleOnceWithDelegation(singleinstance.Request{Kind: singleinstance.KindFullScreen}, client, func() {
		fallbackCalled = true
	})

	if !client.called {
		t.Fatal("Expected client.TryCapture to be called")
	}
	if !fallbackCalled {
		t.Fatal("Expected fallback when no resident is delegated")
	}
}

func TestHandleOnceWithDelegation_ScanErrorFallback(t *testing.T) {
	client := &fakeClient{err: errors.New("network down")}
	fallbackCalled := false

	handleOnceWithDelegation(singleinstance.Request{Kind: singleinstance.KindFullScreen}, client, func() {
		fallbackCalled = true
	})

	if !client.called {
		t.Fatal("Expected client.TryCapture to be called")
	}
	if !fallbackCalled {
		t.Fatal("Expected fallback when the delegation scan errors")
	}
}
