// stress-capture floods a resident snipclip with delegated capture requests
// and reports how many were served, rejected as busy, or failed.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"snipclip/src/singleinstance"
)

type stressOptions struct {
	n        int
	target   string
	stdout   bool
	deadline time.Duration
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	opts := &stressOptions{}
	cmd := newRootCmd(opts)
	return cmd.Execute()
}

func newRootCmd(opts *stressOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "stress-capture",
		Short:         "Stress test capture delegation",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithOptions(*opts)
		},
	}

	cmd.Flags().IntVar(&opts.n, "n", 50, "number of clients to launch")
	cmd.Flags().StringVar(&opts.target, "target", "full", "capture target: full or window")
	cmd.Flags().BoolVar(&opts.stdout, "stdout", false, "request PNG bytes back instead of clipboard writes")
	cmd.Flags().DurationVar(&opts.deadline, "deadline", 5*time.Second, "per-client timeout")

	return cmd
}

func buildRequest(opts stressOptions) (singleinstance.Request, error) {
	req := singleinstance.Request{OutputToStdout: opts.stdout}
	switch opts.target {
	case "full":
		req.Kind = singleinstance.KindFullScreen
	case "window":
		req.Kind = singleinstance.KindWindow
	default:
		// Region would pop the interactive overlay n times; refuse.
		return req, fmt.Errorf("unsupported stress target %q (want full or window)", opts.target)
	}
	return req, nil
}

func runWithOptions(opts stressOptions) error {
	req, err := buildRequest(opts)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	var okCount int32
	var busyCount int32
	var errCount int32
	var noneCount int32

	start := time.Now()
	for i := 0; i < opts.n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), opts.deadline)
			defer cancel()
			client := singleinstance.NewClient()
			delegated, _, err := client.TryCapture(ctx, req)
			if err != nil {
				if strings.Contains(strings.ToLower(err.Error()), "busy") {
					atomic.AddInt32(&busyCount, 1)
					return
				}
				atomic.AddInt32(&errCount, 1)
				return
			}
			if delegated {
				atomic.AddInt32(&okCount, 1)
				return
			}
			atomic.AddInt32(&noneCount, 1)
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	fmt.Printf("clients=%d ok=%d busy=%d err=%d no-resident=%d elapsed=%v\n",
		opts.n, okCount, busyCount, errCount, noneCount, elapsed)
	if noneCount > 0 {
		return fmt.Errorf("no resident answered %d of %d requests", noneCount, opts.n)
	}
	return nil
}
