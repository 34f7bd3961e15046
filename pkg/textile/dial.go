package textile

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"

	"textile-core/pkg/transport"
)

// SplitAddress parses host[:port]. A missing port selects transport.DefaultPort.
func SplitAddress(address string) (string, uint16, error) {
	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		// No port, or a bare IPv6 literal.
		host = strings.TrimSuffix(strings.TrimPrefix(address, "["), "]")
		if host == "" {
			return "", 0, fmt.Errorf("textile: empty address")
		}
		return host, transport.DefaultPort, nil
	}
	if host == "" {
		return "", 0, fmt.Errorf("textile: missing host in %q", address)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return "", 0, fmt.Errorf("textile: bad port in %q: %w", address, err)
	}
	if port == 0 {
		port = transport.DefaultPort
	}
	return host, uint16(port), nil
}

// Dial connects a client-role transport to address and waits until the
// channel is ready. The handshake has been queued by the time Dial returns;
// use WaitInitiated to wait for the server's answer.
func Dial(ctx context.Context, address string, opts Options) (*Transport, error) {
	host, port, err := SplitAddress(address)
	if err != nil {
		return nil, err
	}
	opts.Role = Client
	if opts.Channel.Logger == nil {
		opts.Channel.Logger = opts.Logger
	}
	ch := transport.NewTCPChannel(opts.Channel)
	t := New(ch, opts)

	var started bool
	if ip, perr := netip.ParseAddr(host); perr == nil {
		started = ch.Connect(netip.AddrPortFrom(ip, port))
	} else {
		started = ch.ConnectHost(host, port)
	}
	if !started {
		t.Close()
		return nil, fmt.Errorf("textile: dial %s: connect not started", address)
	}

	select {
	case <-t.connected:
	case <-ctx.Done():
		t.Close()
		return nil, fmt.Errorf("textile: dial %s: %w", address, ctx.Err())
	}
	if err := t.connectErr(); err != nil {
		t.Close()
		return nil, fmt.Errorf("textile: dial %s: %w", address, err)
	}
	return t, nil
}
