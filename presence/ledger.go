package presence

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"
)

// PendingClosure is the durable "I believe my session ended at T,
// unconfirmed by the server" record. At most one exists per client; it is
// cleared once the server acknowledges a replay.
type PendingClosure struct {
	Timestamp time.Time `json:"timestamp"`
	Trigger   string    `json:"trigger"`
	Synced    bool      `json:"synced"`
}

// Ledger stores the pending closure in a JSON file under a well-known path.
type Ledger struct {
	path string
}

func NewLedger(path string) *Ledger {
	return &Ledger{path: path}
}

// DefaultLedgerPath places the ledger in the user's config directory.
func DefaultLedgerPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "punchclock", "pending-closure.json"), nil
}

func (l *Ledger) Store(pc PendingClosure) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(pc)
	if err != nil {
		return err
	}
	// Write-then-rename so a crash mid-write cannot leave a torn record.
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, l.path)
}

// Load returns the stored pending closure, or nil when none exists.
func (l *Ledger) Load() (*PendingClosure, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var pc PendingClosure
	if err := json.Unmarshal(data, &pc); err != nil {
		// A corrupt ledger is unrecoverable; treat it as absent.
		os.Remove(l.path)
		return nil, nil
	}
	return &pc, nil
}

func (l *Ledger) Clear() error {
	err := os.Remove(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
