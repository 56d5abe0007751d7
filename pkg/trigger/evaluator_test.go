package trigger_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dukex/leadflow/pkg/cache"
	"github.com/dukex/leadflow/pkg/condition"
	"github.com/dukex/leadflow/pkg/trigger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func leaf(field string, op condition.Operator, value any) condition.Leaf {
	return condition.Leaf{Field: field, Operator: op, Value: value}
}

func sampleContext() trigger.Context {
	return trigger.Context{
		"score":             float64(9),
		"status":            "active",
		"stage":             "hot",
		"budget":            "4500000",
		"email":             "Asha@Example.com",
		"phone":             "",
		"tags":              []any{"vip", "site-visit"},
		"last_contact_date": nil,
		"builder_id":        "b1",
		"lead": map[string]any{
			"id":   "l1",
			"name": "Asha",
			"preferences": map[string]any{
				"city": "Pune",
			},
		},
		"meta": map[string]any{},
	}
}

func TestEvaluator_Operators(t *testing.T) {
	t.Parallel()

	evaluator := trigger.NewEvaluator(discardLogger())
	data := sampleContext()

	tests := []struct {
		name     string
		leaf     condition.Leaf
		expected bool
	}{
		{name: "equals string", leaf: leaf("stage", condition.Equals, "hot"), expected: true},
		{name: "equals is case sensitive", leaf: leaf("stage", condition.Equals, "HOT"), expected: false},
		{name: "equals number", leaf: leaf("score", condition.Equals, float64(9)), expected: true},
		{name: "equals numeric string to number", leaf: leaf("budget", condition.Equals, float64(4500000)), expected: true},
		{name: "equals array canonical", leaf: leaf("tags", condition.Equals, []any{"vip", "site-visit"}), expected: true},
		{name: "equals array order matters", leaf: leaf("tags", condition.Equals, []any{"site-visit", "vip"}), expected: false},
		{name: "not equals", leaf: leaf("stage", condition.NotEquals, "cold"), expected: true},
		{name: "greater than", leaf: leaf("score", condition.GreaterThan, float64(8)), expected: true},
		{name: "greater than equal boundary", leaf: leaf("score", condition.GreaterThan, float64(9)), expected: false},
		{name: "greater than or equal", leaf: leaf("score", condition.GreaterThanOrEqual, float64(9)), expected: true},
		{name: "less than", leaf: leaf("score", condition.LessThan, float64(10)), expected: true},
		{name: "less than or equal", leaf: leaf("score", condition.LessThanOrEqual, float64(8)), expected: false},
		{name: "numeric string coerced", leaf: leaf("budget", condition.GreaterThan, "4000000"), expected: true},
		{name: "non numeric fails closed", leaf: leaf("stage", condition.GreaterThan, float64(1)), expected: false},
		{name: "contains case insensitive", leaf: leaf("email", condition.Contains, "example.COM"), expected: true},
		{name: "contains array element", leaf: leaf("tags", condition.Contains, "vip"), expected: true},
		{name: "contains array is exact", leaf: leaf("tags", condition.Contains, "VIP"), expected: false},
		{name: "in list", leaf: leaf("stage", condition.In, []any{"warm", "hot"}), expected: true},
		{name: "in list miss", leaf: leaf("stage", condition.In, []any{"cold"}), expected: false},
		{name: "in list numeric", leaf: leaf("score", condition.In, []any{float64(8), float64(9)}), expected: true},
		{name: "in with array actual", leaf: leaf("tags", condition.In, []any{"vip"}), expected: true},
		{name: "is empty string", leaf: leaf("phone", condition.IsEmpty, nil), expected: true},
		{name: "is empty nil", leaf: leaf("last_contact_date", condition.IsEmpty, nil), expected: true},
		{name: "is empty object", leaf: leaf("meta", condition.IsEmpty, nil), expected: true},
		{name: "is not empty", leaf: leaf("tags", condition.IsNotEmpty, nil), expected: true},
		{name: "dot path", leaf: leaf("lead.preferences.city", condition.Equals, "Pune"), expected: true},
		{name: "dot path missing segment", leaf: leaf("lead.preferences.area", condition.IsEmpty, nil), expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, evaluator.Evaluate(context.Background(), tt.leaf, data))
		})
	}
}

func TestEvaluator_MissingField(t *testing.T) {
	t.Parallel()

	evaluator := trigger.NewEvaluator(discardLogger())
	data := trigger.Context{}

	for _, op := range []condition.Operator{
		condition.Equals, condition.NotEquals, condition.GreaterThan, condition.LessThan,
		condition.GreaterThanOrEqual, condition.LessThanOrEqual, condition.Contains, condition.IsNotEmpty,
	} {
		assert.False(t, evaluator.Evaluate(context.Background(), leaf("x", op, float64(1)), data), op)
	}

	assert.False(t, evaluator.Evaluate(context.Background(), leaf("x", condition.In, []any{float64(1)}), data))
	assert.True(t, evaluator.Evaluate(context.Background(), leaf("x", condition.IsEmpty, nil), data))
}

func TestEvaluator_Groups(t *testing.T) {
	t.Parallel()

	evaluator := trigger.NewEvaluator(discardLogger())
	data := trigger.Context{"a": float64(1), "b": float64(2)}

	aTrue := leaf("a", condition.Equals, float64(1))
	bFalse := leaf("b", condition.Equals, float64(3))

	tests := []struct {
		name     string
		group    condition.Group
		expected bool
	}{
		{name: "empty and", group: condition.NewGroup(condition.And), expected: true},
		{name: "empty or", group: condition.NewGroup(condition.Or), expected: false},
		{name: "and all true", group: condition.NewGroup(condition.And, aTrue, aTrue), expected: true},
		{name: "and one false", group: condition.NewGroup(condition.And, aTrue, bFalse), expected: false},
		{name: "or one true", group: condition.NewGroup(condition.Or, bFalse, aTrue), expected: true},
		{name: "or all false", group: condition.NewGroup(condition.Or, bFalse, bFalse), expected: false},
		{
			name: "nested",
			group: condition.NewGroup(condition.And,
				aTrue,
				condition.NewGroup(condition.Or, bFalse, leaf("b", condition.GreaterThan, float64(1))),
			),
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, evaluator.Evaluate(context.Background(), tt.group, data))
			assert.Equal(t, tt.expected, evaluator.EvaluateWithTrace(context.Background(), tt.group, data).Matched)
		})
	}
}

func TestEvaluator_ErrorsFailClosed(t *testing.T) {
	t.Parallel()

	evaluator := trigger.NewEvaluator(discardLogger())
	data := trigger.Context{"a": float64(1)}

	deep := condition.Condition(leaf("a", condition.Equals, float64(1)))
	for range condition.MaxDepth + 2 {
		deep = condition.NewGroup(condition.And, deep)
	}

	var nilLeaf *condition.Leaf

	tests := []struct {
		name string
		cond condition.Condition
		err  error
	}{
		{name: "unknown operator", cond: leaf("a", condition.Operator("matches"), "x"), err: condition.ErrUnknownOperator},
		{name: "in without list", cond: leaf("a", condition.In, "x"), err: trigger.ErrNotAList},
		{name: "nil root", cond: nil, err: trigger.ErrNilCondition},
		{name: "nil child", cond: condition.NewGroup(condition.Or, nilLeaf), err: trigger.ErrNilCondition},
		{name: "unknown logic", cond: condition.Group{Logic: "xor"}, err: condition.ErrUnknownLogic},
		{name: "too deep", cond: deep, err: condition.ErrTooDeep},
		{
			name: "error inside otherwise true or",
			cond: condition.NewGroup(condition.Or, leaf("a", condition.In, "x"), leaf("a", condition.Equals, float64(1))),
			err:  trigger.ErrNotAList,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := evaluator.EvaluateWithTrace(context.Background(), tt.cond, data)

			assert.False(t, result.Matched)
			require.Error(t, result.Err)
			assert.ErrorIs(t, result.Err, tt.err)

			var evalErr *trigger.EvaluationError
			assert.ErrorAs(t, result.Err, &evalErr)

			require.NotEmpty(t, result.Trace)
			assert.NotEmpty(t, result.Trace[len(result.Trace)-1].Error)
		})
	}
}

func TestEvaluateWithTrace_RecordsEveryLeaf(t *testing.T) {
	t.Parallel()

	evaluator := trigger.NewEvaluator(discardLogger())
	data := trigger.Context{"score": float64(9), "stage": "hot"}

	group := condition.NewGroup(condition.And,
		leaf("score", condition.LessThan, float64(5)),
		leaf("stage", condition.Equals, "hot"),
		leaf("missing", condition.IsEmpty, nil),
	)

	result := evaluator.EvaluateWithTrace(context.Background(), group, data)

	assert.False(t, result.Matched)
	require.Len(t, result.Trace, 3)
	assert.Equal(t, trigger.TraceEntry{
		Field: "score", Operator: condition.LessThan, Expected: float64(5), Actual: float64(9), Matched: false,
	}, result.Trace[0])
	assert.True(t, result.Trace[1].Matched)
	assert.Nil(t, result.Trace[2].Actual)
	assert.True(t, result.Trace[2].Matched)
}

type countingCache struct {
	mu   sync.Mutex
	data map[string]bool
	gets int
	sets int
}

func (c *countingCache) Get(_ context.Context, key string) (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gets++
	result, ok := c.data[key]

	return result, ok
}

func (c *countingCache) Set(_ context.Context, key string, result bool, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sets++
	c.data[key] = result
}

func TestEvaluator_CachesByFingerprint(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	memory := cache.NewMemory()
	evaluator := trigger.NewEvaluator(discardLogger(), trigger.WithCache(memory))

	cond := leaf("score", condition.GreaterThan, float64(5))
	data := trigger.Context{"score": float64(9)}

	key, err := trigger.Fingerprint(cond, data)
	require.NoError(t, err)

	assert.True(t, evaluator.Evaluate(ctx, cond, data))
	assert.Equal(t, int64(0), memory.HitCount(key))

	assert.True(t, evaluator.Evaluate(ctx, cond, data))
	assert.True(t, evaluator.Evaluate(ctx, cond, data))
	assert.Equal(t, int64(2), memory.HitCount(key))

	other := trigger.Context{"score": float64(2)}
	assert.False(t, evaluator.Evaluate(ctx, cond, other))
}

func TestEvaluator_CacheSeparatesLeadsByTags(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	memory := cache.NewMemory()
	evaluator := trigger.NewEvaluator(discardLogger(), trigger.WithCache(memory))

	cond := leaf("tags", condition.Contains, "vip")
	vip := trigger.Context{"builder_id": "b1", "score": float64(9), "tags": []any{"vip"}}
	cold := trigger.Context{"builder_id": "b1", "score": float64(9), "tags": []any{"cold"}}

	vipKey, err := trigger.Fingerprint(cond, vip)
	require.NoError(t, err)

	coldKey, err := trigger.Fingerprint(cond, cold)
	require.NoError(t, err)

	require.NotEqual(t, vipKey, coldKey)

	assert.True(t, evaluator.Evaluate(ctx, cond, vip))
	assert.False(t, evaluator.Evaluate(ctx, cond, cold))
	assert.Equal(t, int64(0), memory.HitCount(coldKey))
}

func TestEvaluator_CacheExpiryReevaluates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var mu sync.Mutex

	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()

		return now
	}

	memory := cache.NewMemory(cache.WithClock(clock))
	evaluator := trigger.NewEvaluator(discardLogger(), trigger.WithCache(memory), trigger.WithTTL(time.Minute))

	cond := leaf("score", condition.GreaterThan, float64(5))
	data := trigger.Context{"score": float64(9)}
	key, err := trigger.Fingerprint(cond, data)
	require.NoError(t, err)

	evaluator.Evaluate(ctx, cond, data)
	evaluator.Evaluate(ctx, cond, data)
	assert.Equal(t, int64(1), memory.HitCount(key))

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()

	assert.True(t, evaluator.Evaluate(ctx, cond, data))
	assert.Equal(t, int64(0), memory.HitCount(key), "expired entry is replaced by a fresh one")
}

func TestEvaluator_TracedCallsSkipCacheRead(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	counting := &countingCache{data: make(map[string]bool)}
	evaluator := trigger.NewEvaluator(discardLogger(), trigger.WithCache(counting))

	cond := leaf("score", condition.GreaterThan, float64(5))
	data := trigger.Context{"score": float64(9)}

	result := evaluator.EvaluateWithTrace(ctx, cond, data)
	assert.True(t, result.Matched)
	assert.False(t, result.Cached)
	assert.Len(t, result.Trace, 1)
	assert.Equal(t, 0, counting.gets)
	assert.Equal(t, 1, counting.sets)

	assert.True(t, evaluator.Evaluate(ctx, cond, data))
	assert.Equal(t, 1, counting.gets)
	assert.Equal(t, 1, counting.sets)
}

func TestEvaluator_ErrorsAreNotCached(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	counting := &countingCache{data: make(map[string]bool)}
	evaluator := trigger.NewEvaluator(discardLogger(), trigger.WithCache(counting))

	assert.False(t, evaluator.Evaluate(ctx, leaf("a", condition.In, "x"), trigger.Context{"a": "x"}))
	assert.Equal(t, 0, counting.sets)
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	cond := leaf("tags", condition.Contains, "vip")

	first, err := trigger.Fingerprint(cond, trigger.Context{"score": float64(9), "tags": []any{"vip"}, "stage": "hot"})
	require.NoError(t, err)

	sameOrder, err := trigger.Fingerprint(cond, trigger.Context{"stage": "hot", "tags": []any{"vip"}, "score": float64(9)})
	require.NoError(t, err)

	otherTags, err := trigger.Fingerprint(cond, trigger.Context{"score": float64(9), "tags": []any{"cold"}, "stage": "hot"})
	require.NoError(t, err)

	otherScore, err := trigger.Fingerprint(cond, trigger.Context{"score": float64(8), "tags": []any{"vip"}, "stage": "hot"})
	require.NoError(t, err)

	assert.Len(t, first, 64)
	assert.Equal(t, first, sameOrder)
	assert.NotEqual(t, first, otherTags, "referenced arrays participate")
	assert.NotEqual(t, first, otherScore, "top-level primitives participate")

	unreferenced := leaf("score", condition.GreaterThan, float64(1))

	a, err := trigger.Fingerprint(unreferenced, trigger.Context{"score": float64(9), "tags": []any{"vip"}})
	require.NoError(t, err)

	b, err := trigger.Fingerprint(unreferenced, trigger.Context{"score": float64(9), "tags": []any{"cold"}})
	require.NoError(t, err)

	assert.Equal(t, a, b, "unreferenced arrays do not participate")
}
