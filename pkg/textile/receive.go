package textile

import "time"

// Receive returns the next user message. A negative timeout waits until one
// arrives or the transport closes, zero polls, and a positive timeout is a
// budget shared across wake-ups.
func (t *Transport) Receive(timeout time.Duration) (string, error) {
	t.mu.Lock()
	if t.receiving {
		t.mu.Unlock()
		return "", ErrBusy
	}
	t.receiving = true
	t.mu.Unlock()
	defer func() {
		t.mu.Lock()
		t.receiving = false
		t.mu.Unlock()
	}()

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		t.mu.Lock()
		if t.recvQ.Length() > 0 {
			msg := t.recvQ.Remove().(string)
			t.mu.Unlock()
			return msg, nil
		}
		finished := t.finished
		t.mu.Unlock()

		if finished {
			return "", ErrClosed
		}
		if timeout == 0 {
			return "", ErrTimeout
		}
		if timeout < 0 {
			select {
			case <-t.recvSig:
			case <-t.done:
			}
			continue
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", ErrTimeout
		}
		timer := time.NewTimer(remaining)
		select {
		case <-t.recvSig:
		case <-t.done:
		case <-timer.C:
		}
		timer.Stop()
	}
}

// Pending returns the number of user messages waiting for Receive.
func (t *Transport) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.recvQ.Length()
}
