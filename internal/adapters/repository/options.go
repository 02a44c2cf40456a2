package repository

import (
	"fmt"
	"strings"
	"time"
)

// SQLOption applies a configuration option to the SQLStore.
type SQLOption func(*SQLStore)

// WithBusyTimeout sets how long SQLite waits on a locked database.
func WithBusyTimeout(d time.Duration) SQLOption {
	return func(s *SQLStore) {
		if d > 0 {
			s.busyTimeout = d
		}
	}
}

// WithJournalMode overrides the journal mode (default WAL). Unknown modes
// make NewSQLStore fail.
func WithJournalMode(mode string) SQLOption {
	return func(s *SQLStore) {
		if mode = strings.TrimSpace(mode); mode != "" {
			s.journalMode = strings.ToUpper(mode)
		}
	}
}

// JournalModes lists the SQLite journal modes WithJournalMode accepts.
func JournalModes() []string {
	return []string{"DELETE", "TRUNCATE", "PERSIST", "MEMORY", "WAL", "OFF"}
}

func checkJournalMode(mode string) error {
	for _, m := range JournalModes() {
		if mode == m {
			return nil
		}
	}
	return fmt.Errorf("%w: journal mode %q", ErrInvalidOption, mode)
}
