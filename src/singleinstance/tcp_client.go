package singleinstance

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"time"
)

type tcpClient struct{}

func newTcpClient() Client { return &tcpClient{} }

func (c *tcpClient) TryCapture(ctx context.Context, req Request) (bool, []byte, error) {
	line, err := formatRequest(req)
	if err != nil {
		return false, nil, err
	}
	deadline := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			deadline = d
		}
	}
	// scan configured range for resident using PING then request
	start, end := getPortRange()
	for port := start; port <= end; port++ {
		addr := net.JoinHostPort(residentHost, strconv.Itoa(port))
		if !ping(addr, deadline) {
			continue
		}
		conn, err := net.DialTimeout("tcp", addr, deadline)
		if err != nil {
			continue
		}
		w := bufio.NewWriter(conn)
		if _, err := w.WriteString(line); err != nil {
			conn.Close()
			return true, nil, err
		}
		if err := w.Flush(); err != nil {
			conn.Close()
			return true, nil, err
		}
		br := bufio.NewReader(conn)
		status, err := br.ReadString('\n')
		if err != nil {
			conn.Close()
			return true, nil, err
		}
		if status == "SUCCESS\n" {
			png, _ := io.ReadAll(br)
			conn.Close()
			return true, png, nil
		}
		if status == "ERROR\n" {
			msg, _ := io.ReadAll(br)
			conn.Close()
			return true, nil, errors.New(string(msg))
		}
		conn.Close()
	}
	return false, nil, nil
}
