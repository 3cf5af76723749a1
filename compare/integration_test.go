//go:build integration
// +build integration

package compare_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/copperkey/renewals/compare"

	_ "github.com/lib/pq"
)

// setupTestDB creates a PostgreSQL container and returns a connection
func setupTestDB(t *testing.T) (*sql.DB, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "renewals_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithStartupTimeout(60 * time.Second),
	}

	postgresContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	host, err := postgresContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := postgresContainer.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	connStr := fmt.Sprintf("host=%s port=%s user=test password=test dbname=renewals_test sslmode=disable", host, port.Port())

	// Wait for connection to be available
	var db *sql.DB
	for i := 0; i < 30; i++ {
		db, err = sql.Open("postgres", connStr)
		if err == nil {
			err = db.Ping()
			if err == nil {
				break
			}
		}
		time.Sleep(time.Second)
	}
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	migrationSQL, err := os.ReadFile(filepath.Join("..", "migrations", "000001_initial_schema.up.sql"))
	if err != nil {
		t.Fatalf("Failed to read migration file: %v", err)
	}

	_, err = db.Exec(string(migrationSQL))
	if err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		db.Close()
		postgresContainer.Terminate(ctx)
	}

	return db, cleanup
}

func newRule(id string) *compare.CustomRule {
	now := time.Now().UTC()
	return &compare.CustomRule{
		ID:         id,
		Name:       "premium watch",
		Expression: `Diff.premiumChangePct > 10.0`,
		Category:   compare.CategoryPremium,
		Severity:   compare.SeverityWarning,
		Message:    "Premium moved beyond tolerance",
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestPostgresCustomRuleStore_BasicCRUD(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := compare.NewPostgresCustomRuleStore(db)

	ruleID := uuid.New().String()
	rule := newRule(ruleID)

	if err := store.Add(rule); err != nil {
		t.Fatalf("Failed to add rule: %v", err)
	}

	retrieved, err := store.Get(ruleID)
	if err != nil {
		t.Fatalf("Failed to get rule: %v", err)
	}
	if retrieved.Expression != rule.Expression {
		t.Errorf("Expected expression %q, got %q", rule.Expression, retrieved.Expression)
	}
	if retrieved.Severity != compare.SeverityWarning {
		t.Errorf("Expected severity warning, got %s", retrieved.Severity)
	}

	active, err := store.ListActive()
	if err != nil {
		t.Fatalf("Failed to list active rules: %v", err)
	}
	if len(active) != 1 {
		t.Errorf("Expected 1 active rule, got %d", len(active))
	}

	rule.Name = "updated watch"
	rule.Active = false
	if err := store.Update(rule); err != nil {
		t.Fatalf("Failed to update rule: %v", err)
	}

	updated, err := store.Get(ruleID)
	if err != nil {
		t.Fatalf("Failed to get updated rule: %v", err)
	}
	if updated.Name != "updated watch" {
		t.Errorf("Expected name 'updated watch', got %q", updated.Name)
	}
	if updated.Active {
		t.Error("Expected rule to be inactive after update")
	}

	active, err = store.ListActive()
	if err != nil {
		t.Fatalf("Failed to list active rules: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("Expected 0 active rules, got %d", len(active))
	}

	all, err := store.List()
	if err != nil {
		t.Fatalf("Failed to list all rules: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("Expected 1 rule in full list, got %d", len(all))
	}

	if err := store.Delete(ruleID); err != nil {
		t.Fatalf("Failed to delete rule: %v", err)
	}
	if _, err := store.Get(ruleID); err == nil {
		t.Error("Expected error when getting deleted rule, got nil")
	}
}

func TestPostgresCustomRuleStore_DuplicateID(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := compare.NewPostgresCustomRuleStore(db)
	rule := newRule(uuid.New().String())

	if err := store.Add(rule); err != nil {
		t.Fatalf("Failed to add rule: %v", err)
	}
	if err := store.Add(rule); err == nil {
		t.Error("Expected error when adding duplicate rule, got nil")
	}
}

func TestPostgresCustomRuleStore_MutateNonExistent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := compare.NewPostgresCustomRuleStore(db)

	if err := store.Update(newRule(uuid.New().String())); err == nil {
		t.Error("Expected error when updating non-existent rule, got nil")
	}
	if err := store.Delete(uuid.New().String()); err == nil {
		t.Error("Expected error when deleting non-existent rule, got nil")
	}
}

func TestPostgresCustomRuleStore_Ordering(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := compare.NewPostgresCustomRuleStore(db)

	for i := 1; i <= 5; i++ {
		rule := newRule(uuid.New().String())
		rule.Name = fmt.Sprintf("rule-%d", i)
		rule.CreatedAt = time.Now().UTC()
		rule.UpdatedAt = rule.CreatedAt
		if err := store.Add(rule); err != nil {
			t.Fatalf("Failed to add rule %d: %v", i, err)
		}
		time.Sleep(10 * time.Millisecond) // Ensure different timestamps
	}

	rulesList, err := store.ListActive()
	if err != nil {
		t.Fatalf("Failed to list rules: %v", err)
	}
	if len(rulesList) != 5 {
		t.Fatalf("Expected 5 rules, got %d", len(rulesList))
	}
	for i := 0; i < len(rulesList)-1; i++ {
		if rulesList[i].CreatedAt.After(rulesList[i+1].CreatedAt) {
			t.Error("Rules are not ordered by created_at ascending")
		}
	}
}

func TestCustomEngine_WithDatabase(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := compare.NewPostgresCustomRuleStore(db)
	engine, err := compare.NewCustomEngine(store)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	ruleID := uuid.New().String()
	if err := engine.AddRule(newRule(ruleID)); err != nil {
		t.Fatalf("Failed to add rule: %v", err)
	}

	facts := map[string]interface{}{
		"Baseline": map[string]interface{}{"present": true},
		"Renewal":  map[string]interface{}{"present": true},
		"Diff": map[string]interface{}{
			"premiumChangePct": 15.0,
		},
	}
	results, err := engine.EvaluateAll(facts)
	if err != nil {
		t.Fatalf("Failed to evaluate rules: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result, got %d", len(results))
	}
	if results[0].RuleID != ruleID {
		t.Errorf("Expected result for rule %s, got %s", ruleID, results[0].RuleID)
	}

	// A fresh engine recompiles persisted rules at startup.
	engine2, err := compare.NewCustomEngine(store)
	if err != nil {
		t.Fatalf("Failed to create second engine: %v", err)
	}
	results, err = engine2.EvaluateAll(facts)
	if err != nil {
		t.Fatalf("Failed to evaluate with second engine: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("Expected persisted rule to fire on fresh engine, got %d results", len(results))
	}
}
