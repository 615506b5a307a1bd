package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// QueryHistoryEntry records one translated question and its outcome.
type QueryHistoryEntry struct {
	Timestamp     time.Time `json:"timestamp"`
	Question      string    `json:"question"`
	GeneratedSQL  string    `json:"generated_sql"`
	Params        []string  `json:"params,omitempty"`
	RowCount      int       `json:"row_count"`
	ExecutionTime float64   `json:"execution_time_ms"`
	Success       bool      `json:"success"`
	ErrorMessage  string    `json:"error_message,omitempty"`
}

// History is the persisted list of past queries, most recent first.
type History struct {
	Entries []QueryHistoryEntry `json:"entries"`
}

// historyPath is a variable so tests can redirect the history location.
var historyPath = func() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.json"), nil
}

// LoadHistory reads the persisted history; a missing file yields an empty
// history.
func LoadHistory() (*History, error) {
	path, err := historyPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &History{}, nil
		}
		return nil, err
	}
	var h History
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Add prepends an entry and trims to maxSize.
func (h *History) Add(entry QueryHistoryEntry, maxSize int) {
	h.Entries = append([]QueryHistoryEntry{entry}, h.Entries...)
	if maxSize > 0 && len(h.Entries) > maxSize {
		h.Entries = h.Entries[:maxSize]
	}
}

// Save writes the history to disk.
func (h *History) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	path, err := historyPath()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
