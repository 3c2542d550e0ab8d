package watchlist

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"WhaleConsensus/internal/model"
)

// Entry is one tracked wallet.
type Entry struct {
	Address string    `json:"address"`
	Name    string    `json:"name,omitempty"`
	AddedAt time.Time `json:"added_at"`
}

// State is the persisted watch list and engine settings.
type State struct {
	Wallets  []Entry        `json:"wallets"`
	Settings model.Settings `json:"settings"`
	// ConnectedWallet is the user's own wallet for portfolio checks.
	ConnectedWallet string    `json:"connected_wallet,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// LoadState reads the state from a JSON file. A missing file yields an empty
// list with the given default settings.
func LoadState(filePath string, defaults model.Settings) (*State, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{Settings: defaults}, nil
		}
		return nil, err
	}
	state := State{Settings: defaults}
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// SaveState writes the state to a JSON file, replacing it atomically.
func SaveState(filePath string, state *State) error {
	state.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(filePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, filePath)
}
