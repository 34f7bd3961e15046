package textile

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"textile-core/pkg/control"
	"textile-core/pkg/frame"
)

// Send transmits a user message. A negative timeout waits until the frame
// has been handed to the channel, zero returns once it is queued, and a
// positive timeout waits up to that long.
func (t *Transport) Send(msg string, timeout time.Duration) error {
	return t.send(control.FormatUser(msg), nil, timeout)
}

// SendControl transmits a directive. Encoding and Encryption directives take
// effect locally on the next frame after this one.
func (t *Transport) SendControl(key, value string, timeout time.Duration) error {
	text := control.Format(key, value)
	m, _ := control.Parse(text)
	return t.send(text, &m, timeout)
}

// Ping transmits an empty keepalive frame.
func (t *Transport) Ping(timeout time.Duration) error {
	return t.enqueue(nil, true, nil, timeout)
}

func (t *Transport) send(text string, directive *control.Message, timeout time.Duration) error {
	return t.enqueue([]byte(text), false, directive, timeout)
}

func (t *Transport) enqueue(text []byte, ping bool, directive *control.Message, timeout time.Duration) error {
	t.mu.Lock()
	switch {
	case t.finished || t.writeDead:
		t.mu.Unlock()
		return ErrClosed
	case t.state != Connected:
		t.mu.Unlock()
		return ErrNotConnected
	}
	blocking := timeout != 0
	if blocking && t.sending {
		t.mu.Unlock()
		return ErrBusy
	}

	var payload []byte
	if ping {
		t.neg.promote()
	} else {
		p, err := t.neg.seal(string(text))
		if err != nil {
			t.mu.Unlock()
			return fmt.Errorf("textile: encode: %w", err)
		}
		payload = p
	}
	if directive != nil {
		t.neg.apply(*directive)
	}
	f := &outFrame{data: frame.Encode(payload), done: make(chan error, 1)}
	t.sendQ.Add(f)
	if blocking {
		t.sending = true
	}
	t.mu.Unlock()

	t.drain()
	if !blocking {
		return nil
	}
	defer func() {
		t.mu.Lock()
		t.sending = false
		t.mu.Unlock()
	}()

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case err := <-f.done:
		return err
	case <-expired:
		return ErrTimeout
	}
}

// drain writes queued frames in batches of at most maxBatch. After a batch
// it waits for the channel's write-ready event before starting the next.
func (t *Transport) drain() {
	t.mu.Lock()
	if t.writing || t.draining {
		t.mu.Unlock()
		return
	}
	t.writing = true
	for {
		batch := make([]*outFrame, 0, maxBatch)
		for len(batch) < maxBatch && t.sendQ.Length() > 0 {
			batch = append(batch, t.sendQ.Remove().(*outFrame))
		}
		if len(batch) == 0 {
			t.writing = false
			t.mu.Unlock()
			return
		}
		t.draining = true
		t.mu.Unlock()

		written := 0
		for _, f := range batch {
			if !t.ch.Write(f.data) {
				f.done <- ErrClosed
				continue
			}
			written++
			f.done <- nil
		}
		if written < len(batch) {
			t.log.Debug("frames rejected by channel", zap.Int("count", len(batch)-written))
		}

		t.mu.Lock()
		t.framesOut += int64(written)
		if !t.kick {
			t.writing = false
			t.mu.Unlock()
			return
		}
		t.kick = false
		t.draining = false
	}
}
