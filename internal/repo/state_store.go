package repo

import (
	"context"
	"errors"
	"fmt"
	"os"

	"wgpanel/internal/models"
)

// ErrNoState means nothing has been persisted yet.
var ErrNoState = errors.New("no persisted state")

// StateStore loads and saves the registry's state document.
type StateStore interface {
	Load(ctx context.Context) (*models.State, error)
	Save(ctx context.Context, st *models.State) error
}

const (
	// StateFileMode: owner and group read-write, no world access.
	StateFileMode os.FileMode = 0o660
	// ConfigFileMode: the daemon config holds the server private key.
	ConfigFileMode os.FileMode = 0o600
)

// WriteConfigFile writes the rendered daemon config.
func WriteConfigFile(path, text string) error {
	return writeFile(path, []byte(text), ConfigFileMode)
}

// writeFile enforces perm even when the file already existed with a
// looser mode.
func writeFile(path string, data []byte, perm os.FileMode) error {
	if err := os.WriteFile(path, data, perm); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Chmod(path, perm); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	return nil
}

func normalize(st *models.State) *models.State {
	if st.Clients == nil {
		st.Clients = map[string]*models.Peer{}
	}
	for id, p := range st.Clients {
		if p == nil {
			delete(st.Clients, id)
			continue
		}
		if p.ID == "" {
			p.ID = id
		}
	}
	return st
}
