package radio

import "sync"

// Sim is an in-process driver for tests and host-side runs. Commands complete
// immediately by queueing the corresponding event, and tests can inject extra
// or failing events to exercise duplicate and error paths.
type Sim struct {
	mu sync.Mutex

	events chan Event

	name       string
	txPower    int8
	payload    []byte
	params     Params
	startCalls int

	// StartStatus is the status delivered with advertising_start_complete.
	StartStatus Status
}

// NewSim returns a driver with a buffered event queue.
func NewSim() *Sim {
	return &Sim{events: make(chan Event, 8)}
}

func (s *Sim) SetDeviceName(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
	return nil
}

func (s *Sim) SetTxPower(level int8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txPower = level
	return nil
}

func (s *Sim) ConfigurePayload(payload []byte) error {
	s.mu.Lock()
	s.payload = append([]byte(nil), payload...)
	s.mu.Unlock()

	s.Inject(Event{Kind: EventPayloadSetComplete})
	return nil
}

func (s *Sim) StartAdvertising(p Params) error {
	s.mu.Lock()
	s.params = p
	s.startCalls++
	status := s.StartStatus
	s.mu.Unlock()

	s.Inject(Event{Kind: EventAdvertisingStartComplete, Status: status})
	return nil
}

func (s *Sim) Events() <-chan Event {
	return s.events
}

// Inject queues an event as if the stack had raised it.
func (s *Sim) Inject(ev Event) {
	s.events <- ev
}

// Payload returns the last configured advertising payload.
func (s *Sim) Payload() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.payload...)
}

// Params returns the last StartAdvertising parameter set.
func (s *Sim) Params() Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// StartCalls counts StartAdvertising invocations.
func (s *Sim) StartCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startCalls
}

// DeviceName returns the configured device name.
func (s *Sim) DeviceName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

// TxPower returns the configured transmit power.
func (s *Sim) TxPower() int8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txPower
}
