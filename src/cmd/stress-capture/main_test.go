package main

import (
	"testing"
	"time"

	"snipclip/src/singleinstance"
)

func TestNewRootCmdDefaults(t *testing.T) {
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	if err := cmd.ParseFlags([]string{}); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	if opts.n != 50 {
		t.Fatalf("Expected default n=50, got %d", opts.n)
	}
	if opts.target != "full" {
		t.Fatalf("Expected default target=full, got %q", opts.target)
	}
	if opts.deadline != 5*time.Second {
		t.Fatalf("Expected default deadline=5s, got %v", opts.deadline)
	}
}

func TestNewRootCmdCustomFlags(t *testing.T) {
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	if err := cmd.ParseFlags([]string{"--n", "3", "--target", "window", "--stdout", "--deadline", "7s"}); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	if opts.n != 3 {
		t.Fatalf("Expected n=3, got %d", opts.n)
	}
	if opts.target != "window" {
		t.Fatalf("Expected target=window, got %q", opts.target)
	}
	if !opts.stdout {
		t.Fatal("Expected stdout=true")
	}
	if opts.deadline != 7*time.Second {
		t.Fatalf("Expected deadline=7s, got %v", opts.deadline)
	}
}

func TestBuildRequest(t *testing.T) {
	req, err := buildRequest(stressOptions{target: "full", stdout: true})
	if err != nil {
		t.Fatalf("buildRequest error = %v", err)
	}
	if req.Kind != singleinstance.KindFullScreen || !req.OutputToStdout {
		t.Errorf("req = %+v", req)
	}

	if _, err := buildRequest(stressOptions{target: "region"}); err == nil {
		t.Fatal("expected error for region stress target")
	}
}
