package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"

	"go.uber.org/zap"
)

// ErrNoAddresses is reported to OnUnreachable when a hostname resolves to nothing.
var ErrNoAddresses = errors.New("no addresses for host")

// Resolver looks up the address records of a host, in preference order.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Connect starts a single connect attempt to a literal address. Failure fires
// OnRefused, success OnReady. It returns false when an attempt is already in
// flight, the channel is already connected, or it was closed.
func (c *TCPChannel) Connect(addr netip.AddrPort) bool {
	if !c.beginConnect() {
		return false
	}
	return c.submitConnect(func() {
		conn, err := c.dial(addr)
		if err != nil {
			c.failConnect(false, fmt.Errorf("connect %s: %w", addr, err))
			return
		}
		c.established(conn)
	})
}

// ConnectHost resolves host and tries each address record in order until one
// accepts. Exhausting the list, or a failed lookup, fires OnUnreachable.
// Port 0 selects DefaultPort.
func (c *TCPChannel) ConnectHost(host string, port uint16) bool {
	if port == 0 {
		port = DefaultPort
	}
	if !c.beginConnect() {
		return false
	}
	return c.submitConnect(func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.opts.DialTimeout)
		records, err := c.opts.Resolver.LookupIPAddr(ctx, host)
		cancel()
		if err != nil {
			c.failConnect(true, fmt.Errorf("resolve %s: %w", host, err))
			return
		}
		if len(records) == 0 {
			c.failConnect(true, fmt.Errorf("resolve %s: %w", host, ErrNoAddresses))
			return
		}

		var lastErr error
		for _, rec := range records {
			ip, ok := netip.AddrFromSlice(rec.IP)
			if !ok {
				continue
			}
			addr := netip.AddrPortFrom(ip.Unmap(), port)
			conn, err := c.dial(addr)
			if err != nil {
				c.log.Debug("address record failed", zap.Stringer("addr", addr), zap.Error(err))
				lastErr = err
				continue
			}
			c.established(conn)
			return
		}
		if lastErr == nil {
			lastErr = ErrNoAddresses
		}
		c.failConnect(true, fmt.Errorf("connect %s: %w", host, lastErr))
	})
}

func (c *TCPChannel) beginConnect() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connecting || c.ready || c.readClosed || c.writeClosed {
		return false
	}
	c.connecting = true
	return true
}

func (c *TCPChannel) submitConnect(task func()) bool {
	if err := c.opts.Worker.Submit(task); err != nil {
		c.mu.Lock()
		c.connecting = false
		c.mu.Unlock()
		c.log.Warn("connect not started", zap.Error(err))
		return false
	}
	return true
}

func (c *TCPChannel) dial(addr netip.AddrPort) (*net.TCPConn, error) {
	d := net.Dialer{Timeout: c.opts.DialTimeout}
	conn, err := d.Dial("tcp", addr.String())
	if err != nil {
		return nil, err
	}
	return conn.(*net.TCPConn), nil
}

func (c *TCPChannel) failConnect(unreachable bool, err error) {
	c.mu.Lock()
	c.connecting = false
	l := c.listener
	c.mu.Unlock()

	c.log.Debug("connect failed", zap.Error(err), zap.Bool("unreachable", unreachable))
	if unreachable {
		l.OnUnreachable(c, err)
		return
	}
	l.OnRefused(c, err)
}
