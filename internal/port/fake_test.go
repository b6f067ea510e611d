package port

// fakeProber is a deterministic Prober. Ports listed in busy fail the full
// check; ports in udpBusy fail the UDP check. EphemeralTCPPort hands out the
// ephemeral slice in order and then cycles on its last element.
type fakeProber struct {
	busy      map[uint16]bool
	udpBusy   map[uint16]bool
	ephemeral []uint16

	// checked records every port passed to IsPortAvailable, in order.
	checked        []uint16
	ephemeralCalls int
}

func newFakeProber() *fakeProber {
	return &fakeProber{
		busy:    make(map[uint16]bool),
		udpBusy: make(map[uint16]bool),
	}
}

func (f *fakeProber) IsPortAvailable(port uint16) bool {
	f.checked = append(f.checked, port)
	return !f.busy[port] && !f.udpBusy[port]
}

func (f *fakeProber) IsPortAvailableUDP(port uint16) bool {
	return !f.udpBusy[port]
}

func (f *fakeProber) EphemeralTCPPort() (uint16, bool) {
	f.ephemeralCalls++
	if len(f.ephemeral) == 0 {
		return 0, false
	}
	idx := f.ephemeralCalls - 1
	if idx >= len(f.ephemeral) {
		idx = len(f.ephemeral) - 1
	}
	return f.ephemeral[idx], true
}

// finderFunc adapts a function to the Finder interface.
type finderFunc func() (uint16, bool)

func (fn finderFunc) FindPort() (uint16, bool) {
	return fn()
}
