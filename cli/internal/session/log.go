package session

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// maxLogLine caps one log line; responses can carry whole files.
const maxLogLine = 4 * 1024 * 1024

// LogEntry is one record of the JSONL session log.
type LogEntry struct {
	Session  string `json:"session"`
	Command  string `json:"command"`
	Time     string `json:"time"`
	Prompt   string `json:"prompt"`
	Response string `json:"response"`
}

// appendLogEntry writes entry as a single JSON line to path, creating the
// parent directory and the file as needed. The log is append-only; nothing
// here rotates or prunes it.
func appendLogEntry(path string, entry LogEntry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ReadLog parses a session log back into entries. Blank lines are skipped;
// a malformed line is an error.
func ReadLog(path string) ([]LogEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var entries []LogEntry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLogLine)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var e LogEntry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			return nil, fmt.Errorf("invalid log line: %w", err)
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}
