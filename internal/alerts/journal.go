package alerts

import (
	"database/sql"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/svirmi/sitewatch/internal/models"
)

// Journal is an optional sqlite audit trail of alert transitions. It records
// when each category was raised or cleared; it never feeds back into rule
// evaluation and is read only by operators.
type Journal struct {
	db *sql.DB
	mu sync.Mutex
}

func OpenJournal(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrent access
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS alert_transitions (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            category TEXT NOT NULL,
            action TEXT NOT NULL,
            occurred_at TIMESTAMP NOT NULL
        )
    `); err != nil {
		db.Close()
		return nil, err
	}

	return &Journal{db: db}, nil
}

func (j *Journal) Record(category models.AlertCategory, action string, at time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(`
        INSERT INTO alert_transitions (category, action, occurred_at)
        VALUES (?, ?, ?)
    `, string(category), action, at.UTC())

	return err
}

// Count reports how many transitions have been journaled for a category.
func (j *Journal) Count(category models.AlertCategory) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var n int64
	err := j.db.QueryRow(`
        SELECT COUNT(*) FROM alert_transitions WHERE category = ?
    `, string(category)).Scan(&n)
	return n, err
}

func (j *Journal) Close() error {
	return j.db.Close()
}
