// Package history records finished chat turns in the user's config
// directory so past questions can be listed later.
package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/arin/morph/internal/config"
)

const (
	fileName   = "history.json"
	maxEntries = 500
	previewLen = 200
)

// fileMu guards concurrent access to the history file.
var fileMu sync.Mutex

// Entry is one finished turn. Cancelled turns are never recorded.
type Entry struct {
	Timestamp     time.Time `json:"timestamp"`
	Query         string    `json:"query"`
	Model         string    `json:"model"`
	Provider      string    `json:"provider"`
	Searched      bool      `json:"searched"`
	Success       bool      `json:"success"`
	AnswerPreview string    `json:"answer_preview,omitempty"`
	Error         string    `json:"error,omitempty"`
}

func historyPath() string {
	return filepath.Join(config.Dir(), fileName)
}

// Preview shortens an answer to a single line of at most 200 runes.
func Preview(answer string) string {
	s := strings.Join(strings.Fields(answer), " ")
	if r := []rune(s); len(r) > previewLen {
		return string(r[:previewLen-1]) + "…"
	}
	return s
}

// Save appends an entry, keeping only the most recent 500.
func Save(entry Entry) error {
	fileMu.Lock()
	defer fileMu.Unlock()

	entry.Timestamp = time.Now()
	entry.AnswerPreview = Preview(entry.AnswerPreview)

	entries, _ := loadAll()
	entries = append(entries, entry)

	if len(entries) > maxEntries {
		entries = entries[len(entries)-maxEntries:]
	}

	if err := os.MkdirAll(config.Dir(), 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(historyPath(), data, 0o600)
}

// Load returns the most recent limit entries, oldest first. A limit of zero
// returns everything.
func Load(limit int) ([]Entry, error) {
	fileMu.Lock()
	defer fileMu.Unlock()

	entries, err := loadAll()
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}

	return entries, nil
}

// Clear deletes the history file.
func Clear() error {
	fileMu.Lock()
	defer fileMu.Unlock()

	if err := os.Remove(historyPath()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func loadAll() ([]Entry, error) {
	data, err := os.ReadFile(historyPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	return entries, nil
}
