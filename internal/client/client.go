// Package client implements the line-based chat client: it dials a relay,
// runs the Textile handshake, forwards typed lines and prints what others
// say.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"textile-core/internal/chat"
	"textile-core/pkg/textile"
)

// ErrDisconnected is returned by Run when the server closes the session.
var ErrDisconnected = errors.New("server closed the connection")

// QuitCommand ends Run when typed on its own line.
const QuitCommand = "/quit"

type Options struct {
	// Server is host[:port]; the port defaults to 8000.
	Server       string
	Name         string
	Encoding     string
	ClientType   string
	Token        string
	DialTimeout  time.Duration
	PingInterval time.Duration
	Plain        bool
	Logger       *zap.Logger
}

type Client struct {
	opts   Options
	log    *zap.Logger
	render *Renderer

	mu    sync.Mutex
	token string
}

func New(opts Options) *Client {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Client{
		opts:   opts,
		log:    opts.Logger.Named("client"),
		render: NewRenderer(opts.Plain),
		token:  opts.Token,
	}
}

// Token returns the reconnect token the server most recently issued.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Client) setToken(tok string) {
	c.mu.Lock()
	c.token = tok
	c.mu.Unlock()
}

// Run connects and relays between in/out until in reaches EOF, the quit
// command is typed, ctx is cancelled or the server disconnects.
func (c *Client) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	dctx, cancel := context.WithTimeout(ctx, c.opts.DialTimeout)
	tr, err := textile.Dial(dctx, c.opts.Server, textile.Options{
		Logger:     c.opts.Logger,
		Encoding:   c.opts.Encoding,
		ClientType: c.opts.ClientType,
		Token:      c.Token(),
		OnToken:    c.setToken,
	})
	cancel()
	if err != nil {
		return err
	}
	defer tr.Close()

	if err := tr.WaitInitiated(c.opts.DialTimeout); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	c.log.Info("connected", zap.String("server", c.opts.Server), zap.String("token", c.Token()))
	if name := strings.TrimSpace(c.opts.Name); name != "" {
		if err := tr.Send(chat.Join(chat.Nick, name), c.opts.DialTimeout); err != nil {
			return fmt.Errorf("set nick: %w", err)
		}
	}

	var outMu sync.Mutex
	printLine := func(s string) {
		outMu.Lock()
		defer outMu.Unlock()
		fmt.Fprintln(out, s)
	}

	go func() {
		for {
			msg, err := tr.Receive(-1)
			if err != nil {
				return
			}
			printLine(c.render.Render(msg))
		}
	}()
	if c.opts.PingInterval > 0 {
		go c.keepalive(tr)
	}

	lines := make(chan string)
	inputDone := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-tr.Done():
				return
			}
		}
		inputDone <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tr.Done():
			return ErrDisconnected
		case err := <-inputDone:
			return err
		case line := <-lines:
			line = strings.TrimRight(line, "\r")
			if strings.TrimSpace(line) == "" {
				continue
			}
			if line == QuitCommand {
				return nil
			}
			if err := tr.Send(chat.Join(chat.Message, line), c.opts.DialTimeout); err != nil {
				if errors.Is(err, textile.ErrClosed) {
					return ErrDisconnected
				}
				return fmt.Errorf("send: %w", err)
			}
		}
	}
}

func (c *Client) keepalive(tr *textile.Transport) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := tr.Ping(0); err != nil {
				c.log.Debug("keepalive stopped", zap.Error(err))
				return
			}
		case <-tr.Done():
			return
		}
	}
}
