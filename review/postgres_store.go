package review

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresStore implements Store backed by PostgreSQL. The upsert is
// guarded so a stale write (older reviewed_at) never overwrites a newer
// one, giving last-write-wins without a read-modify-write cycle.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed review store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// SetReviewed upserts one flag.
func (s *PostgresStore) SetReviewed(flag Flag) error {
	if flag.RenewalID == "" || flag.RuleID == "" || flag.Field == "" {
		return fmt.Errorf("renewalId, ruleId and field are all required")
	}

	_, err := s.db.Exec(`
		INSERT INTO review_flags (renewal_id, rule_id, field, reviewed, reviewed_by, reviewed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (renewal_id, rule_id, field) DO UPDATE
		SET reviewed = EXCLUDED.reviewed,
		    reviewed_by = EXCLUDED.reviewed_by,
		    reviewed_at = EXCLUDED.reviewed_at
		WHERE review_flags.reviewed_at <= EXCLUDED.reviewed_at
	`, flag.RenewalID, flag.RuleID, flag.Field, flag.Reviewed, flag.ReviewedBy, flag.ReviewedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert review flag: %w", err)
	}

	return nil
}

// IsReviewed reports the flag for one key; false when never set.
func (s *PostgresStore) IsReviewed(renewalID, ruleID, field string) (bool, error) {
	var reviewed bool
	err := s.db.QueryRow(`
		SELECT reviewed
		FROM review_flags
		WHERE renewal_id = $1 AND rule_id = $2 AND field = $3
	`, renewalID, ruleID, field).Scan(&reviewed)

	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read review flag: %w", err)
	}

	return reviewed, nil
}

// List returns all flags for one renewal.
func (s *PostgresStore) List(renewalID string) ([]Flag, error) {
	rows, err := s.db.Query(`
		SELECT renewal_id, rule_id, field, reviewed, reviewed_by, reviewed_at
		FROM review_flags
		WHERE renewal_id = $1
		ORDER BY rule_id, field
	`, renewalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list review flags: %w", err)
	}
	defer rows.Close()

	var flags []Flag
	for rows.Next() {
		var f Flag
		if err := rows.Scan(&f.RenewalID, &f.RuleID, &f.Field, &f.Reviewed,
			&f.ReviewedBy, &f.ReviewedAt); err != nil {
			return nil, fmt.Errorf("failed to scan review flag: %w", err)
		}
		flags = append(flags, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating review flags: %w", err)
	}

	return flags, nil
}
