package memory

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Format selects the on-disk representation for Export.
type Format string

const (
	// FormatJSON writes a single JSON array.
	FormatJSON Format = "json"
	// FormatJSONL writes one JSON object per line.
	FormatJSONL Format = "jsonl"
)

// Export writes all long-term entries to outputPath. When outputPath is
// empty a timestamped file inside the store directory is used. Returns the
// path written.
func (s *Store) Export(outputPath string, format Format) (string, error) {
	if format == "" {
		format = FormatJSON
	}
	if outputPath == "" {
		stamp := time.Now().Format("20060102_150405")
		outputPath = filepath.Join(s.dir, fmt.Sprintf("memory_export_%s.%s", stamp, format))
	}

	s.mu.Lock()
	entries := make([]Entry, len(s.longTerm))
	copy(entries, s.longTerm)
	s.mu.Unlock()

	var buf bytes.Buffer
	switch format {
	case FormatJSONL:
		enc := json.NewEncoder(&buf)
		for _, e := range entries {
			if err := enc.Encode(e); err != nil {
				return "", fmt.Errorf("encode entry: %w", err)
			}
		}
	case FormatJSON:
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal entries: %w", err)
		}
		buf.Write(data)
	default:
		return "", fmt.Errorf("unsupported export format %q", format)
	}

	if err := os.WriteFile(outputPath, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return outputPath, nil
}

// Import reads entries from inputPath (.jsonl files line by line, everything
// else as a JSON array). With merge=true entries whose timestamp already
// exists are skipped; with merge=false the long-term ring is replaced.
// Returns the number of entries read from the file.
func (s *Store) Import(inputPath string, merge bool) (int, error) {
	f, err := os.Open(inputPath)
	if err != nil {
		return 0, fmt.Errorf("open import file: %w", err)
	}
	defer f.Close()

	var imported []Entry
	if strings.HasSuffix(inputPath, ".jsonl") {
		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			var e Entry
			if err := json.Unmarshal([]byte(line), &e); err != nil {
				return 0, fmt.Errorf("parse jsonl line: %w", err)
			}
			imported = append(imported, e)
		}
		if err := scanner.Err(); err != nil {
			return 0, fmt.Errorf("scan import file: %w", err)
		}
	} else {
		if err := json.NewDecoder(f).Decode(&imported); err != nil {
			return 0, fmt.Errorf("parse import file: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !merge {
		s.longTerm = imported
	} else {
		existing := make(map[time.Time]struct{}, len(s.longTerm))
		for _, e := range s.longTerm {
			existing[e.Timestamp] = struct{}{}
		}
		for _, e := range imported {
			if _, dup := existing[e.Timestamp]; dup {
				continue
			}
			s.longTerm = append(s.longTerm, e)
			existing[e.Timestamp] = struct{}{}
		}
	}

	if err := s.saveLongTermLocked(); err != nil {
		return len(imported), err
	}
	return len(imported), nil
}

// Backup writes a timestamped copy of the long-term ring into the store
// directory and returns its path.
func (s *Store) Backup() (string, error) {
	stamp := time.Now().Format("20060102_150405")
	path := filepath.Join(s.dir, fmt.Sprintf("memory_backup_%s.json", stamp))
	return s.Export(path, FormatJSON)
}

// Restore replaces the long-term ring with the contents of a backup file.
// Returns the number of restored entries.
func (s *Store) Restore(backupPath string) (int, error) {
	return s.Import(backupPath, false)
}
