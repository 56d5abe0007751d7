package trigger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/leadflow/pkg/cache"
	"github.com/dukex/leadflow/pkg/canonical"
	"github.com/dukex/leadflow/pkg/condition"
)

var (
	// ErrNilCondition indicates a nil root or child node.
	ErrNilCondition = errors.New("nil condition")

	// ErrUnknownNode indicates a node that is neither a leaf nor a group.
	ErrUnknownNode = errors.New("unknown condition node")

	// ErrNotAList indicates an `in` leaf whose expected value is not a list.
	ErrNotAList = errors.New("`in` requires a list value")

	// ErrPanic indicates a panic recovered during evaluation.
	ErrPanic = errors.New("panic during evaluation")
)

// EvaluationError is raised while walking a condition tree. The evaluator
// never returns it to callers: the evaluation is treated as not matched.
type EvaluationError struct {
	Field string
	Err   error
}

func (e *EvaluationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("evaluation failed on %s: %v", e.Field, e.Err)
	}

	return fmt.Sprintf("evaluation failed: %v", e.Err)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// TraceEntry records the outcome of one leaf, or the error that aborted the walk.
type TraceEntry struct {
	Field    string             `json:"field,omitempty"`
	Operator condition.Operator `json:"operator,omitempty"`
	Expected any                `json:"expected,omitempty"`
	Actual   any                `json:"actual,omitempty"`
	Matched  bool               `json:"matched"`
	Error    string             `json:"error,omitempty"`
}

// Result is the outcome of a traced evaluation.
type Result struct {
	Matched bool         `json:"matched"`
	Cached  bool         `json:"cached"`
	Trace   []TraceEntry `json:"trace,omitempty"`
	Err     error        `json:"-"`
}

// Evaluator decides whether a condition holds for a context. It is safe for
// concurrent use.
type Evaluator struct {
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

type Option func(*Evaluator)

// WithCache memoizes results in c. Without it every call evaluates.
func WithCache(c cache.Cache) Option {
	return func(e *Evaluator) {
		e.cache = c
	}
}

// WithTTL sets how long cached results stay valid.
func WithTTL(ttl time.Duration) Option {
	return func(e *Evaluator) {
		if ttl > 0 {
			e.ttl = ttl
		}
	}
}

func NewEvaluator(logger *slog.Logger, opts ...Option) *Evaluator {
	e := &Evaluator{
		ttl:    cache.DefaultTTL,
		logger: logger.With("module", "evaluator"),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Evaluate reports whether c holds for data, consulting the cache first.
func (e *Evaluator) Evaluate(ctx context.Context, c condition.Condition, data Context) bool {
	return e.evaluate(ctx, c, data, false).Matched
}

// EvaluateWithTrace always walks the tree and records every leaf. The result
// is still stored in the cache.
func (e *Evaluator) EvaluateWithTrace(ctx context.Context, c condition.Condition, data Context) Result {
	return e.evaluate(ctx, c, data, true)
}

func (e *Evaluator) evaluate(ctx context.Context, c condition.Condition, data Context, traced bool) Result {
	key := ""

	if e.cache != nil {
		fingerprint, err := Fingerprint(c, data)
		if err != nil {
			e.logger.WarnContext(ctx, "condition is not cacheable", "error", err)
		} else {
			key = fingerprint
		}
	}

	if key != "" && !traced {
		if matched, ok := e.cache.Get(ctx, key); ok {
			return Result{Matched: matched, Cached: true}
		}
	}

	walk := &walker{data: data, traced: traced}

	matched, err := walk.run(c)
	if err != nil {
		e.logger.ErrorContext(ctx, "condition evaluation failed", "error", err)

		entry := TraceEntry{Error: err.Error()}

		var evalErr *EvaluationError
		if errors.As(err, &evalErr) {
			entry.Field = evalErr.Field
		}

		return Result{Matched: false, Trace: append(walk.trace, entry), Err: err}
	}

	if key != "" {
		e.cache.Set(ctx, key, matched, e.ttl)
	}

	return Result{Matched: matched, Trace: walk.trace}
}

// Fingerprint identifies an evaluation: the condition plus the top-level
// primitive values of data and the resolved value of every field the
// condition reads.
func Fingerprint(c condition.Condition, data Context) (string, error) {
	primitives := make(map[string]any, len(data))

	for key, value := range data {
		if isPrimitive(value) {
			primitives[key] = value
		}
	}

	fields := make(map[string]any)

	if c != nil {
		for _, field := range condition.Fields(c) {
			if value, ok := data.Lookup(field); ok {
				fields[field] = value
			}
		}
	}

	encoded, err := canonical.Marshal(map[string]any{
		"condition": condition.Tree{Root: c},
		"context":   primitives,
		"fields":    fields,
	})
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint condition: %w", err)
	}

	sum := sha256.Sum256(encoded)

	return hex.EncodeToString(sum[:]), nil
}

type walker struct {
	data   Context
	traced bool
	trace  []TraceEntry
}

func (w *walker) run(c condition.Condition) (matched bool, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			matched = false
			err = &EvaluationError{Err: fmt.Errorf("%w: %v", ErrPanic, recovered)}
		}
	}()

	return w.node(c, 0)
}

func (w *walker) node(c condition.Condition, depth int) (bool, error) {
	if depth > condition.MaxDepth {
		return false, &EvaluationError{Err: condition.ErrTooDeep}
	}

	switch n := c.(type) {
	case condition.Leaf:
		return w.leaf(n)
	case *condition.Leaf:
		if n == nil {
			return false, &EvaluationError{Err: ErrNilCondition}
		}

		return w.leaf(*n)
	case condition.Group:
		return w.group(n, depth)
	case *condition.Group:
		if n == nil {
			return false, &EvaluationError{Err: ErrNilCondition}
		}

		return w.group(*n, depth)
	case nil:
		return false, &EvaluationError{Err: ErrNilCondition}
	default:
		return false, &EvaluationError{Err: fmt.Errorf("%w: %T", ErrUnknownNode, c)}
	}
}

// group combines children. An empty AND is true and an empty OR is false.
// Untraced walks stop at the first deciding child.
func (w *walker) group(g condition.Group, depth int) (bool, error) {
	var combined bool

	switch g.Logic {
	case condition.And:
		combined = true
	case condition.Or:
		combined = false
	default:
		return false, &EvaluationError{Err: fmt.Errorf("%w: %q", condition.ErrUnknownLogic, g.Logic)}
	}

	for _, child := range g.Conditions {
		matched, err := w.node(child, depth+1)
		if err != nil {
			return false, err
		}

		if g.Logic == condition.And {
			combined = combined && matched
		} else {
			combined = combined || matched
		}

		if !w.traced && combined == (g.Logic == condition.Or) {
			return combined, nil
		}
	}

	return combined, nil
}

func (w *walker) leaf(leaf condition.Leaf) (bool, error) {
	actual, found := w.data.Lookup(leaf.Field)

	matched, err := compare(leaf.Operator, actual, found, leaf.Value)

	if w.traced && err == nil {
		entry := TraceEntry{
			Field:    leaf.Field,
			Operator: leaf.Operator,
			Expected: leaf.Value,
			Matched:  matched,
		}

		if found {
			entry.Actual = actual
		}

		w.trace = append(w.trace, entry)
	}

	if err != nil {
		return false, &EvaluationError{Field: leaf.Field, Err: err}
	}

	return matched, nil
}
