package pgexporter

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/lesovsky/pgexporter/internal/webserver"
)

func TestAcceptLoopServesConnections(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %s", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := &webserver.Server{}
	done := make(chan error, 1)
	go func() { done <- acceptLoop(ctx, listener, srv) }()

	conn, err := net.Dial("tcp", listener.Addr().String())
	if err != nil {
		t.Fatalf("dial: %s", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("GET / HTTP/1.1\r\n\r\n")); err != nil {
		t.Fatalf("write request: %s", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read response: %s", err)
	}
	if !strings.Contains(line, "200 OK") {
		t.Errorf("expected 200 OK status line, got %q", line)
	}

	cancel()
	_ = listener.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("acceptLoop did not return after listener close")
	}
}

func TestAcceptLoopStopsCleanlyOnContextCancel(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %s", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	srv := &webserver.Server{}
	done := make(chan error, 1)
	go func() { done <- acceptLoop(ctx, listener, srv) }()

	cancel()
	_ = listener.Close()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected nil error on context-cancelled shutdown, got %s", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("acceptLoop did not return")
	}
}
