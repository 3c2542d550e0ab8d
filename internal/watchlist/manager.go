// Package watchlist owns the tracked wallet list, display names and the
// persisted engine settings.
package watchlist

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"

	"WhaleConsensus/internal/model"
)

var (
	ErrInvalidAddress = errors.New("invalid wallet address")
	ErrDuplicate      = errors.New("wallet already tracked")
	ErrNotFound       = errors.New("wallet not tracked")
)

// Manager handles watch list operations with concurrency safety.
type Manager struct {
	mu       sync.Mutex
	state    *State
	filePath string
	now      func() time.Time
}

// NewManager loads or initializes state from disk. seed wallets are added
// only when the stored list is empty.
func NewManager(filePath string, defaults model.Settings, seed []string) (*Manager, error) {
	state, err := LoadState(filePath, defaults)
	if err != nil {
		return nil, fmt.Errorf("load watchlist: %w", err)
	}
	if err := state.Settings.Validate(); err != nil {
		log.Warn().Err(err).Msg("stored settings invalid, using defaults")
		state.Settings = defaults
	}

	m := &Manager{state: state, filePath: filePath, now: time.Now}
	if len(state.Wallets) == 0 {
		for _, addr := range seed {
			if _, err := m.add(addr, ""); err != nil {
				log.Warn().Err(err).Str("wallet", addr).Msg("skipping seed wallet")
			}
		}
	}
	if err := m.save(); err != nil {
		return nil, err
	}
	return m, nil
}

// NormalizeAddress validates a 0x-prefixed 40-hex address and lowercases it.
func NormalizeAddress(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if !strings.HasPrefix(addr, "0x") || !common.IsHexAddress(addr) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	return strings.ToLower(addr), nil
}

// Wallets returns a copy of the tracked entries.
func (m *Manager) Wallets() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.state.Wallets...)
}

// Addresses returns the tracked addresses in insertion order.
func (m *Manager) Addresses() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.state.Wallets))
	for i, e := range m.state.Wallets {
		out[i] = e.Address
	}
	return out
}

// Names maps address to display name.
func (m *Manager) Names() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.state.Wallets))
	for _, e := range m.state.Wallets {
		out[e.Address] = e.Name
	}
	return out
}

// Add starts tracking addr. An empty name gets a shortened address.
func (m *Manager) Add(addr, name string) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.add(addr, name)
	if err != nil {
		return Entry{}, err
	}
	return e, m.save()
}

func (m *Manager) add(addr, name string) (Entry, error) {
	norm, err := NormalizeAddress(addr)
	if err != nil {
		return Entry{}, err
	}
	if m.indexOf(norm) >= 0 {
		return Entry{}, fmt.Errorf("%w: %s", ErrDuplicate, norm)
	}
	if strings.TrimSpace(name) == "" {
		name = norm[:10] + "..."
	}
	e := Entry{Address: norm, Name: strings.TrimSpace(name), AddedAt: m.now().UTC()}
	m.state.Wallets = append(m.state.Wallets, e)
	return e, nil
}

// Remove stops tracking addr.
func (m *Manager) Remove(addr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	norm, err := NormalizeAddress(addr)
	if err != nil {
		return err
	}
	i := m.indexOf(norm)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, norm)
	}
	m.state.Wallets = append(m.state.Wallets[:i], m.state.Wallets[i+1:]...)
	return m.save()
}

// Rename sets the display name of a tracked wallet.
func (m *Manager) Rename(addr, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	norm, err := NormalizeAddress(addr)
	if err != nil {
		return err
	}
	i := m.indexOf(norm)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, norm)
	}
	m.state.Wallets[i].Name = strings.TrimSpace(name)
	return m.save()
}

// Settings returns a copy of the current engine settings.
func (m *Manager) Settings() model.Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Settings
}

// UpdateSettings applies fn to a copy and commits it only if it validates.
func (m *Manager) UpdateSettings(fn func(*model.Settings)) (model.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := m.state.Settings
	fn(&next)
	if err := next.Validate(); err != nil {
		return m.state.Settings, err
	}
	m.state.Settings = next
	return next, m.save()
}

// ConnectedWallet returns the user's own wallet, if set.
func (m *Manager) ConnectedWallet() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.ConnectedWallet
}

// SetConnectedWallet records the user's own wallet. Empty clears it.
func (m *Manager) SetConnectedWallet(addr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if addr == "" {
		m.state.ConnectedWallet = ""
		return m.save()
	}
	norm, err := NormalizeAddress(addr)
	if err != nil {
		return err
	}
	m.state.ConnectedWallet = norm
	return m.save()
}

func (m *Manager) indexOf(addr string) int {
	for i, e := range m.state.Wallets {
		if e.Address == addr {
			return i
		}
	}
	return -1
}

func (m *Manager) save() error {
	if err := SaveState(m.filePath, m.state); err != nil {
		return fmt.Errorf("save watchlist: %w", err)
	}
	return nil
}
