package singleinstance

import (
	"fmt"
	"strconv"
	"strings"
)

// The request line is a single text line:
//
//	CAPTURE <target> <mode>\n
//
// where <target> is "full", "region" or "window:<id>" and <mode> is
// "CLIPBOARD" or "STDOUT". Responses are "SUCCESS\n" (optionally followed by
// raw PNG bytes until EOF) or "ERROR\n<message>".

const (
	requestVerb   = "CAPTURE"
	modeClipboard = "CLIPBOARD"
	modeStdout    = "STDOUT"
)

func formatRequest(req Request) (string, error) {
	target := req.Kind
	switch req.Kind {
	case KindFullScreen, KindRegion:
	case KindWindow:
		target = fmt.Sprintf("%s:%d", KindWindow, req.WindowID)
	default:
		return "", fmt.Errorf("unknown capture kind %q", req.Kind)
	}
	mode := modeClipboard
	if req.OutputToStdout {
		mode = modeStdout
	}
	return fmt.Sprintf("%s %s %s\n", requestVerb, target, mode), nil
}

func parseRequest(line string) (Request, error) {
	fields := strings.Fields(strings.TrimSpace(line))
	if len(fields) != 3 || fields[0] != requestVerb {
		return Request{}, fmt.Errorf("malformed request line %q", strings.TrimSpace(line))
	}

	var req Request
	target := fields[1]
	switch {
	case target == KindFullScreen:
		req.Kind = KindFullScreen
	case target == KindRegion:
		req.Kind = KindRegion
	case strings.HasPrefix(target, KindWindow+":"):
		id, err := strconv.ParseUint(strings.TrimPrefix(target, KindWindow+":"), 10, 64)
		if err != nil {
			return Request{}, fmt.Errorf("malformed window id in %q", target)
		}
		req.Kind = KindWindow
		req.WindowID = id
	default:
		return Request{}, fmt.Errorf("unknown capture target %q", target)
	}

	switch fields[2] {
	case modeClipboard:
	case modeStdout:
		req.OutputToStdout = true
	default:
		return Request{}, fmt.Errorf("unknown output mode %q", fields[2])
	}
	return req, nil
}
