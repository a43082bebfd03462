package device

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/signctl/internal/config"
	"github.com/muurk/signctl/internal/logging"
	"github.com/muurk/signctl/internal/transport"
)

// Summary is a point-in-time view of one supervisor for listings.
type Summary struct {
	Name       string    `json:"name"`
	Transport  string    `json:"transport"`
	State      string    `json:"state"`
	Ready      bool      `json:"ready"`
	Paused     bool      `json:"paused"`
	Failures   int       `json:"failures"`
	Heartbeats int64     `json:"heartbeats"`
	Restarts   int64     `json:"restarts"`
	LastError  string    `json:"lastError,omitempty"`
	Updated    time.Time `json:"updated,omitempty"`
}

// Summarize captures s's counters and state.
func Summarize(s *Supervisor) Summary {
	sum := Summary{
		Name:       s.Name(),
		Transport:  s.Transport().String(),
		State:      string(s.State()),
		Ready:      s.Ready(),
		Paused:     s.Paused(),
		Failures:   s.Failures(),
		Heartbeats: s.Heartbeats(),
		Restarts:   s.Restarts(),
	}
	if err := s.LastError(); err != nil {
		sum.LastError = err.Error()
	}
	if st := s.Status(); st != nil {
		sum.Updated = st.Updated
	}
	return sum
}

// Manager owns the supervisors of every configured device and fans their
// events out to subscribers.
type Manager struct {
	mu          sync.RWMutex
	supervisors map[string]*Supervisor

	subsMu  sync.Mutex
	subs    map[int]chan Event
	nextSub int
}

// NewManager returns an empty manager.
func NewManager() *Manager {
	return &Manager{
		supervisors: make(map[string]*Supervisor),
		subs:        make(map[int]chan Event),
	}
}

// Add creates a supervisor for t. Events go to the manager's subscribers
// and then to opts.OnEvent, if set.
func (m *Manager) Add(t transport.Transport, opts Options) (*Supervisor, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("device name is empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.supervisors[opts.Name]; ok {
		return nil, fmt.Errorf("device %s already added", opts.Name)
	}

	next := opts.OnEvent
	opts.OnEvent = func(e Event) {
		m.publish(e)
		if next != nil {
			next(e)
		}
	}
	s := New(t, opts)
	m.supervisors[opts.Name] = s
	return s, nil
}

// OptionsFromConfig builds supervisor options from a registry entry.
func OptionsFromConfig(name string, d *config.Device, p *config.Preferences) Options {
	if p == nil {
		p = config.DefaultPreferences()
	}
	return Options{
		Name:              name,
		Address:           d.Address,
		SeedOffset:        d.SeedOffset,
		PasswordOffset:    d.PasswordOffset,
		RequestTimeout:    p.RequestTimeout.D(),
		HandshakeBackoff:  p.HandshakeBackoff.D(),
		HeartbeatInterval: p.HeartbeatInterval.D(),
		ReadTimeout:       p.ReadTimeout.D(),
		FailureThreshold:  p.FailureThreshold,
	}
}

// FromRegistry adds a supervisor per configured device. With no names every
// enabled device is added; named devices are added even when disabled.
func FromRegistry(reg *config.Registry, names ...string) (*Manager, error) {
	m := NewManager()
	explicit := len(names) > 0
	if !explicit {
		names = reg.DeviceNames()
	}
	for _, name := range names {
		d := reg.GetDevice(name)
		if d == nil {
			return nil, fmt.Errorf("unknown device %q", name)
		}
		if d.Disabled && !explicit {
			logging.Debug("Skipping disabled device", zap.String("device", name))
			continue
		}
		t, err := transport.New(d.TransportOptions())
		if err != nil {
			return nil, fmt.Errorf("device %s: %w", name, err)
		}
		if _, err := m.Add(t, OptionsFromConfig(name, d, reg.Preferences)); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Get returns the named supervisor.
func (m *Manager) Get(name string) (*Supervisor, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.supervisors[name]
	return s, ok
}

// Names returns the device names in sorted order.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.supervisors))
	for name := range m.supervisors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Summaries returns one Summary per device, sorted by name.
func (m *Manager) Summaries() []Summary {
	names := m.Names()
	out := make([]Summary, 0, len(names))
	for _, name := range names {
		if s, ok := m.Get(name); ok {
			out = append(out, Summarize(s))
		}
	}
	return out
}

// Run starts every supervisor and blocks until ctx is cancelled and all of
// them have stopped.
func (m *Manager) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, name := range m.Names() {
		s, _ := m.Get(name)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Run(ctx); err != nil {
				logging.Error("Supervisor exited", zap.String("device", s.Name()), zap.Error(err))
			}
		}()
	}
	wg.Wait()
	m.closeSubscribers()
	return ctx.Err()
}

// WaitReady waits for every supervisor to become ready.
func (m *Manager) WaitReady(ctx context.Context) error {
	for _, name := range m.Names() {
		s, _ := m.Get(name)
		if err := s.WaitReady(ctx); err != nil {
			return fmt.Errorf("device %s: %w", name, err)
		}
	}
	return nil
}

// Subscribe returns a channel of events and a function that ends the
// subscription. Events are dropped for a subscriber whose buffer is full.
func (m *Manager) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	m.subsMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	m.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.subsMu.Lock()
			defer m.subsMu.Unlock()
			if _, ok := m.subs[id]; ok {
				delete(m.subs, id)
				close(ch)
			}
		})
	}
}

func (m *Manager) publish(e Event) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (m *Manager) closeSubscribers() {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	for id, ch := range m.subs {
		close(ch)
		delete(m.subs, id)
	}
}
