package channel

// Listener receives lifecycle events from a Duplex. Calls arrive on the
// channel's pump goroutines with no channel lock held; implementations must
// not issue blocking channel or transport calls from inside them.
type Listener interface {
	OnReady(ch Duplex)
	OnRefused(ch Duplex, err error)
	OnUnreachable(ch Duplex, err error)
	OnReadReady(ch Duplex, size int)
	OnWriteReady(ch Duplex)
	OnReadClosed(ch Duplex)
	OnWriteClosed(ch Duplex)
	OnClosed(ch Duplex)
}

// Hooks adapts optional funcs to a Listener. Nil fields are skipped.
type Hooks struct {
	Ready       func(ch Duplex)
	Refused     func(ch Duplex, err error)
	Unreachable func(ch Duplex, err error)
	ReadReady   func(ch Duplex, size int)
	WriteReady  func(ch Duplex)
	ReadClosed  func(ch Duplex)
	WriteClosed func(ch Duplex)
	Closed      func(ch Duplex)
}

var _ Listener = Hooks{}

func (h Hooks) OnReady(ch Duplex) {
	if h.Ready != nil {
		h.Ready(ch)
	}
}

func (h Hooks) OnRefused(ch Duplex, err error) {
	if h.Refused != nil {
		h.Refused(ch, err)
	}
}

func (h Hooks) OnUnreachable(ch Duplex, err error) {
	if h.Unreachable != nil {
		h.Unreachable(ch, err)
	}
}

func (h Hooks) OnReadReady(ch Duplex, size int) {
	if h.ReadReady != nil {
		h.ReadReady(ch, size)
	}
}

func (h Hooks) OnWriteReady(ch Duplex) {
	if h.WriteReady != nil {
		h.WriteReady(ch)
	}
}

func (h Hooks) OnReadClosed(ch Duplex) {
	if h.ReadClosed != nil {
		h.ReadClosed(ch)
	}
}

func (h Hooks) OnWriteClosed(ch Duplex) {
	if h.WriteClosed != nil {
		h.WriteClosed(ch)
	}
}

func (h Hooks) OnClosed(ch Duplex) {
	if h.Closed != nil {
		h.Closed(ch)
	}
}

// Multi fans every event out to several listeners in order.
type Multi []Listener

func (m Multi) OnReady(ch Duplex) {
	for _, l := range m {
		l.OnReady(ch)
	}
}

func (m Multi) OnRefused(ch Duplex, err error) {
	for _, l := range m {
		l.OnRefused(ch, err)
	}
}

func (m Multi) OnUnreachable(ch Duplex, err error) {
	for _, l := range m {
		l.OnUnreachable(ch, err)
	}
}

func (m Multi) OnReadReady(ch Duplex, size int) {
	for _, l := range m {
		l.OnReadReady(ch, size)
	}
}

func (m Multi) OnWriteReady(ch Duplex) {
	for _, l := range m {
		l.OnWriteReady(ch)
	}
}

func (m Multi) OnReadClosed(ch Duplex) {
	for _, l := range m {
		l.OnReadClosed(ch)
	}
}

func (m Multi) OnWriteClosed(ch Duplex) {
	for _, l := range m {
		l.OnWriteClosed(ch)
	}
}

func (m Multi) OnClosed(ch Duplex) {
	for _, l := range m {
		l.OnClosed(ch)
	}
}
