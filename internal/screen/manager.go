package screen

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rileyhilliard/pgcenter/internal/errors"
)

// MaxScreens is the number of screen slots.
const MaxScreens = 8

// Manager owns the screens and the slot that is currently displayed.
type Manager struct {
	cfg Config

	mu       sync.Mutex
	screens  [MaxScreens]*Screen
	current  int
	interval time.Duration
	runCtx   context.Context
	updates  chan Table
}

// NewManager creates a manager with no screens.
func NewManager(cfg Config) *Manager {
	cfg = cfg.withDefaults()
	return &Manager{
		cfg:      cfg,
		interval: cfg.Interval,
		updates:  make(chan Table, MaxScreens),
	}
}

// Open creates a screen in slot (1..MaxScreens), or in the first free slot
// when slot is 0, and makes it current. It tries to connect right away; a
// connection failure leaves the screen open in the disconnected state and is
// returned so interactive callers can close it again.
func (m *Manager) Open(ctx context.Context, slot int, opts Options) (*Screen, error) {
	m.mu.Lock()
	if slot == 0 {
		slot = m.freeSlotLocked()
		if slot == 0 {
			m.mu.Unlock()
			return nil, errors.New(errors.ErrConfig,
				fmt.Sprintf("All %d screens are in use", MaxScreens),
				"Close a screen before opening a new one")
		}
	}
	if slot < 1 || slot > MaxScreens {
		m.mu.Unlock()
		return nil, errors.New(errors.ErrConfig,
			fmt.Sprintf("Screen %d is out of range", slot),
			fmt.Sprintf("Use a screen between 1 and %d", MaxScreens))
	}
	if m.screens[slot-1] != nil {
		m.mu.Unlock()
		return nil, errors.New(errors.ErrConfig,
			fmt.Sprintf("Screen %d is already open", slot), "")
	}

	cfg := m.cfg
	cfg.Interval = m.interval
	s := NewScreen(slot, opts, cfg)
	m.screens[slot-1] = s
	m.current = slot
	runCtx := m.runCtx
	m.mu.Unlock()

	m.cfg.Log.Debug("opened screen %d for %s", slot, s.Params())
	err := s.Connect(ctx)
	if runCtx != nil {
		s.start(runCtx, m.updates)
	}
	return s, err
}

func (m *Manager) freeSlotLocked() int {
	for i, s := range m.screens {
		if s == nil {
			return i + 1
		}
	}
	return 0
}

// Close closes the screen in slot. When it was current, the nearest open
// screen becomes current.
func (m *Manager) Close(slot int) error {
	m.mu.Lock()
	if slot < 1 || slot > MaxScreens || m.screens[slot-1] == nil {
		m.mu.Unlock()
		return errors.New(errors.ErrConfig, fmt.Sprintf("Screen %d is not open", slot), "")
	}
	s := m.screens[slot-1]
	m.screens[slot-1] = nil
	if m.current == slot {
		m.current = m.nearestLocked(slot)
	}
	m.mu.Unlock()

	m.cfg.Log.Debug("closing screen %d", slot)
	return s.Close()
}

func (m *Manager) nearestLocked(slot int) int {
	for i := slot - 1; i >= 1; i-- {
		if m.screens[i-1] != nil {
			return i
		}
	}
	for i := slot + 1; i <= MaxScreens; i++ {
		if m.screens[i-1] != nil {
			return i
		}
	}
	return 0
}

// Screen returns the screen in slot.
func (m *Manager) Screen(slot int) (*Screen, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if slot < 1 || slot > MaxScreens || m.screens[slot-1] == nil {
		return nil, false
	}
	return m.screens[slot-1], true
}

// Current returns the displayed screen, or nil when none is open.
func (m *Manager) Current() *Screen {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == 0 {
		return nil
	}
	return m.screens[m.current-1]
}

// Switch makes slot the displayed screen.
func (m *Manager) Switch(slot int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if slot < 1 || slot > MaxScreens || m.screens[slot-1] == nil {
		return errors.New(errors.ErrConfig, fmt.Sprintf("Screen %d is not open", slot), "")
	}
	m.current = slot
	return nil
}

// Screens returns the open screens in slot order.
func (m *Manager) Screens() []*Screen {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Screen
	for _, s := range m.screens {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// Len returns the number of open screens.
func (m *Manager) Len() int {
	return len(m.Screens())
}

// Interval returns the refresh interval applied to every screen.
func (m *Manager) Interval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interval
}

// SetInterval changes the refresh interval of every screen, bounded below by
// MinInterval, and returns the value applied.
func (m *Manager) SetInterval(d time.Duration) time.Duration {
	if d < MinInterval {
		d = MinInterval
	}
	m.mu.Lock()
	m.interval = d
	m.mu.Unlock()

	for _, s := range m.Screens() {
		s.SetInterval(d)
	}
	m.cfg.Log.Debug("refresh interval set to %s", d)
	return d
}

// Faster shortens the interval by IntervalStep.
func (m *Manager) Faster() time.Duration {
	return m.SetInterval(m.Interval() - IntervalStep)
}

// Slower lengthens the interval by IntervalStep.
func (m *Manager) Slower() time.Duration {
	return m.SetInterval(m.Interval() + IntervalStep)
}

// RefreshAll refreshes every open screen in parallel and returns the tables
// in slot order. Per-screen errors are carried on each table.
func (m *Manager) RefreshAll(ctx context.Context) []Table {
	screens := m.Screens()
	tables := make([]Table, len(screens))

	var g errgroup.Group
	for i, s := range screens {
		i, s := i, s
		g.Go(func() error {
			tables[i], _ = s.Refresh(ctx)
			return nil
		})
	}
	_ = g.Wait()
	return tables
}

// Start runs every open screen, and every screen opened later, in its own
// goroutine until ctx is done. Tables arrive on the returned channel.
func (m *Manager) Start(ctx context.Context) <-chan Table {
	m.mu.Lock()
	m.runCtx = ctx
	m.mu.Unlock()

	for _, s := range m.Screens() {
		s.start(ctx, m.updates)
	}
	return m.updates
}

// CloseAll closes every screen in parallel and returns the first error.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	var screens []*Screen
	for i, s := range m.screens {
		if s != nil {
			screens = append(screens, s)
			m.screens[i] = nil
		}
	}
	m.current = 0
	m.mu.Unlock()

	var g errgroup.Group
	for _, s := range screens {
		g.Go(s.Close)
	}
	return g.Wait()
}
