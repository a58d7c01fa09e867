package orchestrator

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/heyalice-ai/alicepi/internal/logging"
	"github.com/heyalice-ai/alicepi/internal/protocol"
)

var testLog = &logging.NoOpLogger{}

// freeAddr grabs an ephemeral loopback port and releases it immediately;
// good enough for a single-process test binding it right back up.
func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find a free port: %v", err)
	}
	addr := l.Addr().String()
	l.Close()
	return addr
}

func startTestServer(t *testing.T, clientCmds chan protocol.ClientCommand, status func() protocol.StatusSnapshot) (addr string, stop func()) {
	t.Helper()
	addr = freeAddr(t)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- RunTCPServer(ctx, addr, testLog, clientCmds, status) }()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 20*time.Millisecond)
		if err == nil {
			conn.Close()
			return addr, cancel
		}
		select {
		case err := <-errCh:
			t.Fatalf("server failed to start: %v", err)
		default:
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for server to start listening on %s", addr)
	return "", cancel
}

func readRawReply(conn net.Conn) (protocol.ServerReply, error) {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	if !scanner.Scan() {
		return protocol.ServerReply{}, scanner.Err()
	}
	var reply protocol.ServerReply
	err := json.Unmarshal(scanner.Bytes(), &reply)
	return reply, err
}

func TestStatusCommandAnsweredSynchronously(t *testing.T) {
	clientCmds := make(chan protocol.ClientCommand, 4)
	status := func() protocol.StatusSnapshot {
		return protocol.StatusSnapshot{State: protocol.StateListening, MicMuted: false, LidOpen: true}
	}

	addr, stop := startTestServer(t, clientCmds, status)
	defer stop()

	reply, err := SendCommand(context.Background(), addr, protocol.ClientCommand{Type: protocol.CmdStatus})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Type != "status" || reply.Status == nil {
		t.Fatalf("expected a status reply, got %+v", reply)
	}
	if reply.Status.State != protocol.StateListening {
		t.Fatalf("expected Listening, got %s", reply.Status.State)
	}

	select {
	case <-clientCmds:
		t.Fatalf("status command should never reach the orchestrator's command channel")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestOtherCommandsForwardedAndAcked(t *testing.T) {
	clientCmds := make(chan protocol.ClientCommand, 4)
	status := func() protocol.StatusSnapshot { return protocol.StatusSnapshot{} }

	addr, stop := startTestServer(t, clientCmds, status)
	defer stop()

	reply, err := SendCommand(context.Background(), addr, protocol.ClientCommand{Type: protocol.CmdPing})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reply.Type != "ok" {
		t.Fatalf("expected an ok reply, got %+v", reply)
	}

	select {
	case cmd := <-clientCmds:
		if cmd.Type != protocol.CmdPing {
			t.Fatalf("expected forwarded ping, got %q", cmd.Type)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected the command to be forwarded to the orchestrator")
	}
}

func TestInvalidJSONGetsErrorReply(t *testing.T) {
	clientCmds := make(chan protocol.ClientCommand, 4)
	status := func() protocol.StatusSnapshot { return protocol.StatusSnapshot{} }

	addr, stop := startTestServer(t, clientCmds, status)
	defer stop()

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("not json\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	reply, err := readRawReply(conn)
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if reply.Type != "error" {
		t.Fatalf("expected an error reply, got %+v", reply)
	}
}
