package compare

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
)

// CustomRule is an agency-authored check expressed as a CEL expression over
// the comparison facts. When the expression evaluates true, the rule fires
// one CheckResult carrying its configured severity and category.
type CustomRule struct {
	ID          string
	Name        string
	Expression  string
	Category    Category
	Severity    Severity
	Blocker     bool
	Message     string
	AgentAction string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CustomEngine compiles and evaluates custom rules. Thread-safe for
// concurrent evaluation; compilation takes the write lock.
type CustomEngine struct {
	env      *cel.Env
	store    CustomRuleStore
	cache    RuleCache
	programs map[string]cel.Program
	mu       sync.RWMutex
}

// NewCustomEngine builds the CEL environment for comparison facts and
// compiles all active rules from the store up front, so a bad expression
// surfaces at startup rather than mid-comparison.
func NewCustomEngine(store CustomRuleStore) (*CustomEngine, error) {
	// Facts are passed as dynamic maps; the three top-level objects are
	// Baseline, Renewal and Diff.
	env, err := cel.NewEnv(
		cel.Variable("Baseline", cel.DynType),
		cel.Variable("Renewal", cel.DynType),
		cel.Variable("Diff", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	en := &CustomEngine{
		env:      env,
		store:    store,
		cache:    NewInMemoryRuleCache(DefaultRuleCacheConfig()),
		programs: make(map[string]cel.Program),
	}

	if err := en.CompileAllRules(); err != nil {
		return nil, fmt.Errorf("failed to compile custom rules: %w", err)
	}

	return en, nil
}

// CompileRule compiles a single expression to a CEL program. A cost limit
// keeps a runaway expression from exhausting the evaluation.
func (en *CustomEngine) CompileRule(ruleID, expression string) error {
	ast, issues := en.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("compile error: %w", issues.Err())
	}

	prog, err := en.env.Program(ast, cel.CostLimit(1000000))
	if err != nil {
		return fmt.Errorf("program creation error: %w", err)
	}

	en.mu.Lock()
	en.programs[ruleID] = prog
	en.mu.Unlock()

	return nil
}

// CompileAllRules compiles every active rule and primes the cache.
func (en *CustomEngine) CompileAllRules() error {
	rules, err := en.store.ListActive()
	if err != nil {
		return err
	}

	for _, rule := range rules {
		if err := en.CompileRule(rule.ID, rule.Expression); err != nil {
			return fmt.Errorf("failed to compile rule %s: %w", rule.ID, err)
		}
	}

	en.cache.Set(rules)
	return nil
}

// AddRule validates that the rule compiles before storing it; a store
// failure rolls the compiled program back out.
func (en *CustomEngine) AddRule(r *CustomRule) error {
	if _, err := en.store.Get(r.ID); err == nil {
		return fmt.Errorf("rule with ID %s already exists", r.ID)
	}

	if err := en.CompileRule(r.ID, r.Expression); err != nil {
		return fmt.Errorf("rule validation failed: %w", err)
	}

	if err := en.store.Add(r); err != nil {
		en.mu.Lock()
		delete(en.programs, r.ID)
		en.mu.Unlock()
		return err
	}

	en.cache.Invalidate()
	return nil
}

// UpdateRule validates the new expression before updating the store.
func (en *CustomEngine) UpdateRule(r *CustomRule) error {
	if err := en.CompileRule(r.ID, r.Expression); err != nil {
		return fmt.Errorf("rule validation failed: %w", err)
	}

	if err := en.store.Update(r); err != nil {
		return err
	}

	en.cache.Invalidate()
	return nil
}

// DeleteRule removes a rule from the store and the compiled program set.
func (en *CustomEngine) DeleteRule(ruleID string) error {
	if err := en.store.Delete(ruleID); err != nil {
		return err
	}

	en.mu.Lock()
	delete(en.programs, ruleID)
	en.mu.Unlock()

	en.cache.Invalidate()
	return nil
}

// GetRule returns one custom rule by ID.
func (en *CustomEngine) GetRule(id string) (*CustomRule, error) {
	return en.store.Get(id)
}

// ListRules returns all custom rules, active or not.
func (en *CustomEngine) ListRules() ([]*CustomRule, error) {
	return en.store.List()
}

// EvaluateAll runs every active custom rule against the comparison facts.
// A rule whose evaluation errors yields an info-severity diagnostic result
// instead of aborting the batch, the same containment the built-in rules
// get. Uses the cache to avoid a store query per comparison.
func (en *CustomEngine) EvaluateAll(facts map[string]any) ([]CheckResult, error) {
	rules := en.cache.Get()
	if rules == nil {
		var err error
		rules, err = en.store.ListActive()
		if err != nil {
			return nil, err
		}
		en.cache.Set(rules)
	}

	var results []CheckResult
	for _, rule := range rules {
		en.mu.RLock()
		prog, exists := en.programs[rule.ID]
		en.mu.RUnlock()

		if !exists {
			results = append(results, CheckResult{
				RuleID:   rule.ID,
				Field:    "diagnostic",
				Category: rule.Category,
				Severity: SeverityInfo,
				Message:  fmt.Sprintf("custom check %s is not compiled", rule.ID),
			})
			continue
		}

		out, _, err := prog.Eval(facts)
		if err != nil {
			results = append(results, CheckResult{
				RuleID:   rule.ID,
				Field:    "diagnostic",
				Category: rule.Category,
				Severity: SeverityInfo,
				Message:  fmt.Sprintf("custom check %s did not complete: %v", rule.ID, err),
			})
			continue
		}

		matched, ok := out.Value().(bool)
		if !ok || !matched {
			continue
		}

		results = append(results, CheckResult{
			RuleID:      rule.ID,
			Field:       "custom",
			Category:    rule.Category,
			Severity:    rule.Severity,
			Message:     rule.Message,
			AgentAction: rule.AgentAction,
			Blocking:    rule.Blocker && rule.Severity == SeverityCritical,
		})
	}

	return results, nil
}
