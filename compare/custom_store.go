package compare

import (
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// CustomRuleStore manages custom-rule persistence and retrieval.
type CustomRuleStore interface {
	// Add a new rule
	Add(rule *CustomRule) error

	// Get a rule by ID
	Get(id string) (*CustomRule, error)

	// List all active rules
	ListActive() ([]*CustomRule, error)

	// List all rules, active or not
	List() ([]*CustomRule, error)

	// Update an existing rule
	Update(rule *CustomRule) error

	// Delete a rule
	Delete(id string) error
}

// InMemoryCustomRuleStore implements CustomRuleStore with a map. Used in
// tests and in deployments without a database.
type InMemoryCustomRuleStore struct {
	rules map[string]*CustomRule
	order []string
	mu    sync.RWMutex
}

// NewInMemoryCustomRuleStore creates a new in-memory store.
func NewInMemoryCustomRuleStore() *InMemoryCustomRuleStore {
	return &InMemoryCustomRuleStore{
		rules: make(map[string]*CustomRule),
	}
}

// Add adds a new rule, enforcing unique IDs.
func (s *InMemoryCustomRuleStore) Add(rule *CustomRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rules[rule.ID]; exists {
		return fmt.Errorf("rule with ID %s already exists", rule.ID)
	}

	now := time.Now()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	s.rules[rule.ID] = rule
	s.order = append(s.order, rule.ID)
	return nil
}

// Get retrieves a rule by ID.
func (s *InMemoryCustomRuleStore) Get(id string) (*CustomRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rule, exists := s.rules[id]
	if !exists {
		return nil, fmt.Errorf("rule with ID %s not found", id)
	}
	return rule, nil
}

// ListActive returns active rules in insertion order. Insertion order keeps
// repeated comparisons deterministic.
func (s *InMemoryCustomRuleStore) ListActive() ([]*CustomRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []*CustomRule
	for _, id := range s.order {
		if rule, ok := s.rules[id]; ok && rule.Active {
			active = append(active, rule)
		}
	}
	return active, nil
}

// List returns all rules in insertion order.
func (s *InMemoryCustomRuleStore) List() ([]*CustomRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []*CustomRule
	for _, id := range s.order {
		if rule, ok := s.rules[id]; ok {
			all = append(all, rule)
		}
	}
	return all, nil
}

// Update updates an existing rule, preserving CreatedAt.
func (s *InMemoryCustomRuleStore) Update(rule *CustomRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.rules[rule.ID]
	if !exists {
		return fmt.Errorf("rule with ID %s not found", rule.ID)
	}

	rule.CreatedAt = existing.CreatedAt
	rule.UpdatedAt = time.Now()
	s.rules[rule.ID] = rule
	return nil
}

// Delete removes a rule.
func (s *InMemoryCustomRuleStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rules[id]; !exists {
		return fmt.Errorf("rule with ID %s not found", id)
	}

	delete(s.rules, id)
	for i, rid := range s.order {
		if rid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// PostgresCustomRuleStore implements CustomRuleStore backed by PostgreSQL.
type PostgresCustomRuleStore struct {
	db *sql.DB
}

// NewPostgresCustomRuleStore creates a PostgreSQL-backed store.
func NewPostgresCustomRuleStore(db *sql.DB) *PostgresCustomRuleStore {
	return &PostgresCustomRuleStore{db: db}
}

const customRuleColumns = `id, name, expression, category, severity, blocker, message, agent_action, active, created_at, updated_at`

// Add inserts a new rule into the database.
func (s *PostgresCustomRuleStore) Add(rule *CustomRule) error {
	var exists bool
	err := s.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM check_rules WHERE id = $1)
	`, rule.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check rule existence: %w", err)
	}
	if exists {
		return fmt.Errorf("rule with ID %s already exists", rule.ID)
	}

	now := time.Now()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	if rule.UpdatedAt.IsZero() {
		rule.UpdatedAt = now
	}

	_, err = s.db.Exec(`
		INSERT INTO check_rules (`+customRuleColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, rule.ID, rule.Name, rule.Expression, rule.Category, rule.Severity,
		rule.Blocker, rule.Message, rule.AgentAction, rule.Active,
		rule.CreatedAt, rule.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert rule: %w", err)
	}

	return nil
}

// Get retrieves a rule by ID.
func (s *PostgresCustomRuleStore) Get(id string) (*CustomRule, error) {
	rule, err := s.scanOne(s.db.QueryRow(`
		SELECT `+customRuleColumns+`
		FROM check_rules
		WHERE id = $1
	`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("rule %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return rule, nil
}

// ListActive returns all active rules, oldest first.
func (s *PostgresCustomRuleStore) ListActive() ([]*CustomRule, error) {
	return s.list(`WHERE active = true`)
}

// List returns all rules, oldest first.
func (s *PostgresCustomRuleStore) List() ([]*CustomRule, error) {
	return s.list(``)
}

func (s *PostgresCustomRuleStore) list(where string) ([]*CustomRule, error) {
	rows, err := s.db.Query(`
		SELECT ` + customRuleColumns + `
		FROM check_rules
		` + where + `
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var rulesList []*CustomRule
	for rows.Next() {
		var r CustomRule
		if err := rows.Scan(&r.ID, &r.Name, &r.Expression, &r.Category,
			&r.Severity, &r.Blocker, &r.Message, &r.AgentAction, &r.Active,
			&r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rulesList = append(rulesList, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}

	return rulesList, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *PostgresCustomRuleStore) scanOne(row rowScanner) (*CustomRule, error) {
	var r CustomRule
	err := row.Scan(&r.ID, &r.Name, &r.Expression, &r.Category, &r.Severity,
		&r.Blocker, &r.Message, &r.AgentAction, &r.Active, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Update modifies an existing rule.
func (s *PostgresCustomRuleStore) Update(rule *CustomRule) error {
	rule.UpdatedAt = time.Now()

	result, err := s.db.Exec(`
		UPDATE check_rules
		SET name = $1, expression = $2, category = $3, severity = $4,
		    blocker = $5, message = $6, agent_action = $7, active = $8,
		    updated_at = $9
		WHERE id = $10
	`, rule.Name, rule.Expression, rule.Category, rule.Severity, rule.Blocker,
		rule.Message, rule.AgentAction, rule.Active, rule.UpdatedAt, rule.ID)

	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("rule %s not found", rule.ID)
	}

	return nil
}

// Delete removes a rule from the database.
func (s *PostgresCustomRuleStore) Delete(id string) error {
	result, err := s.db.Exec(`
		DELETE FROM check_rules
		WHERE id = $1
	`, id)

	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("rule %s not found", id)
	}

	return nil
}
