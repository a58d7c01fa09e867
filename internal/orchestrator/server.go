package orchestrator

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"

	"github.com/heyalice-ai/alicepi/internal/logging"
	"github.com/heyalice-ai/alicepi/internal/protocol"
)

// RunTCPServer accepts line-delimited JSON ClientCommands and writes back a
// line-delimited JSON ServerReply per line, until ctx is cancelled.
func RunTCPServer(ctx context.Context, bindAddr string, log logging.Logger, clientCmds chan<- protocol.ClientCommand, status func() protocol.StatusSnapshot) error {
	listener, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return fmt.Errorf("bind %s: %w", bindAddr, err)
	}

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn("accept error", "error", err)
			continue
		}
		go handleConnection(ctx, conn, log, clientCmds, status)
	}
}

func handleConnection(ctx context.Context, conn net.Conn, log logging.Logger, clientCmds chan<- protocol.ClientCommand, status func() protocol.StatusSnapshot) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()

		var cmd protocol.ClientCommand
		var reply protocol.ServerReply
		if err := json.Unmarshal(line, &cmd); err != nil {
			reply = protocol.ReplyError(fmt.Sprintf("invalid command: %v", err))
		} else if cmd.Type == protocol.CmdStatus {
			reply = protocol.ReplyStatus(status())
		} else {
			select {
			case clientCmds <- cmd:
				reply = protocol.ReplyOK("accepted")
			case <-ctx.Done():
				return
			}
		}

		payload, err := json.Marshal(reply)
		if err != nil {
			payload = []byte(fmt.Sprintf(`{"type":"error","message":%q}`, err.Error()))
		}
		payload = append(payload, '\n')
		if _, err := conn.Write(payload); err != nil {
			return
		}
	}
}

// SendCommand is the client side of the TCP line protocol: connect, write
// one command, read one reply. Shared by cmd/alicepi's client subcommand.
func SendCommand(ctx context.Context, addr string, cmd protocol.ClientCommand) (protocol.ServerReply, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return protocol.ServerReply{}, fmt.Errorf("connect %s: %w", addr, err)
	}
	defer conn.Close()

	payload, err := json.Marshal(cmd)
	if err != nil {
		return protocol.ServerReply{}, fmt.Errorf("encode command: %w", err)
	}
	payload = append(payload, '\n')
	if _, err := conn.Write(payload); err != nil {
		return protocol.ServerReply{}, fmt.Errorf("write command: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return protocol.ServerReply{}, fmt.Errorf("read reply: %w", err)
		}
		return protocol.ServerReply{}, fmt.Errorf("read reply: connection closed")
	}

	var reply protocol.ServerReply
	if err := json.Unmarshal(scanner.Bytes(), &reply); err != nil {
		return protocol.ServerReply{}, fmt.Errorf("decode reply: %w", err)
	}
	return reply, nil
}
