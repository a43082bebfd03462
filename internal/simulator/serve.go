package simulator

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/signctl/internal/logging"
)

// Serve accepts masters on ln until ctx is done. Each connection gets its
// own link state; signs and stored objects are shared.
func (c *Controller) Serve(ctx context.Context, ln net.Listener) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.serveConn(ctx, conn)
		}()
	}
}

func (c *Controller) serveConn(ctx context.Context, conn net.Conn) {
	remote := conn.RemoteAddr().String()
	logging.LogConnection("simulator", remote, "accepted")
	defer logging.LogConnection("simulator", remote, "closed")
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.SetDeadline(time.Now()) })
	defer stop()

	l := &link{}
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		logging.LogFrame("simulator", "received", buf[:n])

		c.mu.Lock()
		out := c.respond(l, buf[:n])
		c.mu.Unlock()

		for _, chunk := range out {
			logging.LogFrame("simulator", "sent", chunk)
			if _, err := conn.Write(chunk); err != nil {
				logging.Warn("Simulator write failed", zap.String("remote", remote), zap.Error(err))
				return
			}
		}
	}
}
