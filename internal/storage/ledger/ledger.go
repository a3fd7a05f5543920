// Package ledger tracks which messages of a feed have already been
// materialized, in an append-only text file with one message ID per line.
package ledger

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileName is the name of the ledger artifact inside a feed directory.
const FileName = "downloaded_files.txt"

const filePerm = 0644

// Ledger is not safe for concurrent use; a feed is processed by one goroutine.
type Ledger struct {
	path string
	seen map[string]struct{}
}

// Load reads the ledger stored in dir. A missing artifact yields an empty
// ledger. Blank and duplicate lines are tolerated.
func Load(dir string) (*Ledger, error) {
	l := &Ledger{
		path: filepath.Join(dir, FileName),
		seen: make(map[string]struct{}),
	}

	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return l, nil
		}

		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		id := strings.TrimSpace(scanner.Text())
		if id == "" {
			continue
		}

		l.seen[id] = struct{}{}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}

	return l, nil
}

// Path returns the location of the ledger artifact.
func (l *Ledger) Path() string {
	return l.path
}

// Len returns the number of distinct recorded IDs.
func (l *Ledger) Len() int {
	return len(l.seen)
}

func (l *Ledger) Contains(id string) bool {
	_, ok := l.seen[id]

	return ok
}

// Record appends id to the artifact and then adds it to the in-memory set.
// The set is only updated once the line is durably written.
func (l *Ledger) Record(id string) error {
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		return fmt.Errorf("failed to open ledger for append: %w", err)
	}

	if _, err := f.WriteString(id + "\n"); err != nil {
		f.Close()

		return fmt.Errorf("failed to append to ledger: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close ledger: %w", err)
	}

	l.seen[id] = struct{}{}

	return nil
}
