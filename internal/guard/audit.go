package guard

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/sgx-labs/mobilelessons/internal/config"
)

// AuditEntry is a single line in the append-only audit log.
type AuditEntry struct {
	RunID      string    `json:"run_id"`
	Timestamp  string    `json:"timestamp"`
	Action     string    `json:"action"` // "scan", "filter"
	Scanned    int       `json:"scanned,omitempty"`
	Passed     bool      `json:"passed"`
	Violations int       `json:"violations,omitempty"`
	Findings   []Finding `json:"findings,omitempty"`
}

// NewRunID returns an identifier that ties together the entries of one scan
// or server session.
func NewRunID() string {
	return uuid.NewString()
}

// AuditLogPath returns the path to the audit log inside dataDir.
func AuditLogPath(dataDir string) string {
	return filepath.Join(dataDir, config.AuditFileName)
}

// AppendAudit appends an entry to the audit log (JSONL format).
func AppendAudit(dataDir string, entry AuditEntry) error {
	path := AuditLogPath(dataDir)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	if entry.RunID == "" {
		entry.RunID = NewRunID()
	}
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
