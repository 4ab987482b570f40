// Package ipc pushes scheduler events to local clients over a unix socket
// and answers queue queries from them.
package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"

	"cryogon/rizumu-fetch/downloader"

	"go.uber.org/zap"
)

// Queue is the part of the scheduler clients may query.
type Queue interface {
	Pending(owner string) []downloader.Summary
	Clear(owner string) bool
}

type client struct {
	conn net.Conn
	out  chan []byte
}

// Hub fans events out to every connected client. Each client has its own
// buffered writer so a stalled reader only loses its own messages.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	queue   Queue
	log     *zap.Logger
}

func NewHub(queue Queue, log *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		queue:   queue,
		log:     log.Named("ipc"),
	}
}

// Listen serves socketPath until ctx is done. A stale socket file is replaced.
func (h *Hub) Listen(ctx context.Context, socketPath string) error {
	if err := os.Remove(socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return err
	}
	defer os.Remove(socketPath)

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	h.log.Info("event socket listening", zap.String("path", socketPath))
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			h.log.Warn("accept failed", zap.Error(err))
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			h.handleClient(ctx, conn)
		}()
	}
}

func (h *Hub) handleClient(ctx context.Context, conn net.Conn) {
	c := &client{conn: conn, out: make(chan []byte, 64)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.Debug("client joined", zap.Int("clients", h.ClientCount()))

	done := make(chan struct{})
	go h.writeLoop(ctx, c, done)

	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		close(done)
		if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			h.log.Debug("failed to close client", zap.Error(err))
		}
	}()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var cmd Command
		if err := json.Unmarshal(scanner.Bytes(), &cmd); err != nil {
			h.send(c, ErrorReply{Error: "invalid command: " + err.Error()}, MsgError)
			continue
		}
		h.handleCommand(c, cmd)
	}
}

// writeLoop owns writes to the connection and closes it when the hub stops,
// which also ends the reader in handleClient.
func (h *Hub) writeLoop(ctx context.Context, c *client, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			c.conn.Close()
			return
		case data := <-c.out:
			if _, err := c.conn.Write(data); err != nil {
				h.log.Debug("write to client failed", zap.Error(err))
				c.conn.Close()
				return
			}
		}
	}
}

func (h *Hub) handleCommand(c *client, cmd Command) {
	if cmd.Owner == "" {
		h.send(c, ErrorReply{Error: "owner is required"}, MsgError)
		return
	}

	switch cmd.Type {
	case CmdPending:
		jobs := h.queue.Pending(cmd.Owner)
		if jobs == nil {
			jobs = []downloader.Summary{}
		}
		h.send(c, PendingReply{Owner: cmd.Owner, Jobs: jobs}, MsgPending)
	case CmdClear:
		existed := h.queue.Clear(cmd.Owner)
		h.send(c, ClearedReply{Owner: cmd.Owner, Existed: existed}, MsgCleared)
	default:
		h.send(c, ErrorReply{Error: fmt.Sprintf("unknown command %q", cmd.Type)}, MsgError)
	}
}

func (h *Hub) send(c *client, v any, msgType string) {
	data, err := NewMessage(v, msgType)
	if err != nil {
		h.log.Error("failed to encode message", zap.String("type", msgType), zap.Error(err))
		return
	}
	select {
	case c.out <- data:
	default:
		h.log.Warn("client too slow, message dropped", zap.String("type", msgType))
	}
}

// Broadcast pushes a scheduler event to every client. Its signature matches
// downloader.Service.Subscribe.
func (h *Hub) Broadcast(ev downloader.Event) {
	data, err := NewMessage(ev, MsgEvent)
	if err != nil {
		h.log.Error("failed to encode event", zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.out <- data:
		default:
			h.log.Warn("client too slow, event dropped", zap.String("job_id", ev.JobID))
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
