// Package hub implements the background daemon that loads the model
// once and serves inference requests to probe clients over a
// Unix-domain socket, one connection per client session and one
// sub-turn loop per request within that session.
package hub

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/please-run/please/internal/config"
	"github.com/please-run/please/internal/frame"
	"github.com/please-run/please/internal/infer"
	"github.com/please-run/please/internal/message"
	"github.com/please-run/please/internal/transcript"
)

// Hub holds the loaded backend and sampler policy shared across every
// client connection.
type Hub struct {
	Backend      infer.Backend
	CtxCap       int
	SamplerKind  infer.SamplerKind
	Transcript   *transcript.Store // nil disables persistence
	activeConns  int64
	readTimeout  time.Duration
	totalTimeout time.Duration
}

// New builds a Hub around an already-loaded backend, picking timeouts
// from the process configuration.
func New(b infer.Backend, ctxCap int, kind infer.SamplerKind, store *transcript.Store) *Hub {
	return &Hub{
		Backend:      b,
		CtxCap:       ctxCap,
		SamplerKind:  kind,
		Transcript:   store,
		readTimeout:  time.Duration(config.ReadTimeoutMillis()) * time.Millisecond,
		totalTimeout: time.Duration(config.TotalTimeoutSeconds()) * time.Second,
	}
}

// ActiveConnections reports the number of client connections currently
// being served, for the status endpoint.
func (h *Hub) ActiveConnections() int64 {
	return atomic.LoadInt64(&h.activeConns)
}

// Run binds the socket (creating its directory and clearing any stale
// socket left by a prior crash), then accepts client connections
// until ctx is cancelled or Accept fails, serving each on its own
// errgroup goroutine. Connection handlers never return an error, so
// one connection's failure does not affect the others; a panic in a
// handler is not recovered, and Run returns without waiting for
// in-flight connections.
func Run(ctx context.Context, h *Hub) error {
	path := SocketPath()
	if err := EnsureSocketDir(path); err != nil {
		return err
	}
	if err := CleanupStaleSocket(path); err != nil {
		return err
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return fmt.Errorf("hub: listen on %s: %w", path, err)
	}
	defer listener.Close()
	slog.Info("hub: listening", "socket", path)

	if addr := config.StatusAddr(); addr != "" {
		go func() {
			if err := serveStatus(addr, h); err != nil {
				slog.Error("hub: status endpoint failed", "err", err)
			}
		}()
	}

	g, gctx := errgroup.WithContext(ctx)
	go func() {
		<-gctx.Done()
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("hub: accept: %w", err)
		}

		g.Go(func() error {
			defer conn.Close()
			serveConnection(ctx, h, conn)
			return nil
		})
	}
}

// serveConnection handles one client's full session: it reads Request
// frames in a loop, running one sub-turn per request, until the
// client disconnects or a protocol error occurs.
func serveConnection(ctx context.Context, h *Hub, conn net.Conn) {
	connID := uuid.NewString()
	log := slog.With("conn", connID)
	log.Info("hub: connection accepted")
	atomic.AddInt64(&h.activeConns, 1)
	defer atomic.AddInt64(&h.activeConns, -1)

	reader := frame.NewReader(conn)

	for {
		req, err := reader.ReadFrame(h.readTimeout, h.totalTimeout)
		if err != nil {
			if frame.IsDisconnect(err) {
				log.Info("hub: connection closed")
				return
			}
			log.Error("hub: frame read failed", "err", err)
			return
		}

		if req.Kind != frame.KindRequest {
			log.Error("hub: unexpected frame kind outside a request", "kind", req.Kind)
			return
		}

		log.Info("hub: received inference request", "messages", len(req.Messages))
		if err := serveOneTurn(ctx, h, conn, req.Messages); err != nil {
			log.Error("hub: turn failed", "err", err)
			return
		}
	}
}

// serveOneTurn runs inference over history and streams Answer frames
// to conn as pieces become available, finishing with a Stop frame.
// The last message of history is appended to the transcript store
// best-effort, as is the assistant's reply once assembled.
func serveOneTurn(ctx context.Context, h *Hub, conn net.Conn, history []message.Message) error {
	if h.Transcript != nil && len(history) > 0 {
		last := history[len(history)-1]
		if err := h.Transcript.Append(last); err != nil {
			slog.Warn("hub: transcript append failed", "err", err)
		}
	}

	genCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pieces := make(chan string, 16)
	errCh := make(chan error, 1)
	go func() {
		errCh <- infer.Run(genCtx, h.Backend, history, h.CtxCap, h.SamplerKind, pieces)
	}()

	var assembled []byte
	for piece := range pieces {
		assembled = append(assembled, piece...)
		if err := frame.WriteFrame(conn, frame.Answer(piece)); err != nil {
			// The consumer is gone: cancel so generation stops at its
			// next send, then drain what it had already queued.
			cancel()
			for range pieces {
			}
			<-errCh
			return err
		}
	}

	if err := <-errCh; err != nil {
		return fmt.Errorf("inference: %w", err)
	}

	if h.Transcript != nil && len(assembled) > 0 {
		if err := h.Transcript.Append(message.Assistant(string(assembled))); err != nil {
			slog.Warn("hub: transcript append failed", "err", err)
		}
	}

	return frame.WriteFrame(conn, frame.Stop())
}
