package complexity

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/graphcore/internal/language"
	"github.com/hanpama/graphcore/internal/operation"
	"github.com/hanpama/graphcore/internal/schema"
	"github.com/hanpama/graphcore/internal/schema/schematest"
	"github.com/hanpama/graphcore/internal/variables"
)

var pets = schematest.Pets()

func prepare(t *testing.T, src string) *operation.Prepared {
	t.Helper()
	doc, err := language.ParseQuery(src)
	require.NoError(t, err)
	p, err := operation.Compile(pets, doc, "doc", "")
	require.NoError(t, err)
	return p
}

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name  string
		query string
		vars  variables.Values
		want  Measure
	}{
		{
			name:  "nested",
			query: `{ dog { name owner { name } } hello }`,
			want:  Measure{Depth: 3, Complexity: 5, TotalFields: 5, RootFields: 2},
		},
		{
			name:  "aliases",
			query: `{ a: hello b: hello hello }`,
			want:  Measure{Depth: 1, Complexity: 3, TotalFields: 3, RootFields: 1, RootFieldAliases: 2},
		},
		{
			name:  "literal multiplier",
			query: `{ pets(first: 3) { name } }`,
			want:  Measure{Depth: 2, Complexity: 4, TotalFields: 2, RootFields: 1},
		},
		{
			name:  "default multiplier",
			query: `{ pets { name } }`,
			want:  Measure{Depth: 2, Complexity: 11, TotalFields: 2, RootFields: 1},
		},
		{
			name:  "variable multiplier",
			query: `query Q($n: Int) { pets(first: $n) { name } }`,
			vars:  variables.Values{"n": 2},
			want:  Measure{Depth: 2, Complexity: 3, TotalFields: 2, RootFields: 1},
		},
		{
			name:  "most expensive possible type",
			query: `{ catOrDog { ... on Dog { name barks } ... on Cat { name } } }`,
			want:  Measure{Depth: 2, Complexity: 3, TotalFields: 3, RootFields: 1},
		},
		{
			name:  "skipped fields",
			query: `query Q($on: Boolean!) { dog { name @include(if: $on) owner @skip(if: true) { name } } }`,
			vars:  variables.Values{"on": false},
			want:  Measure{Depth: 1, Complexity: 1, TotalFields: 1, RootFields: 1},
		},
	}
	limits := &Limits{DefaultFieldCost: 1, MultiplierArguments: []string{"first"}}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Analyze(pets, prepare(t, tt.query), tt.vars, limits)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("measure mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCheck(t *testing.T) {
	m := Measure{Depth: 3, Complexity: 20}

	depth := &Limits{Enabled: true, MaxDepth: 2}
	err := depth.Check(m, false)
	require.NotNil(t, err)
	require.Equal(t, "The query depth 3 exceeds the max query depth allowed (2)", err.Message)
	require.Equal(t, map[string]any{"code": CodeMaxDepthExceeded, "allowed": 2, "detected": 3}, err.Extensions)

	cost := &Limits{Enabled: true, MaxDepth: 5, MaxComplexity: 10}
	err = cost.Check(m, false)
	require.NotNil(t, err)
	require.Equal(t, CodeMaxComplexityExceeded, err.Extensions["code"])
	require.Equal(t, 10, err.Extensions["allowed"])
	require.Equal(t, 20, err.Extensions["detected"])

	require.Nil(t, (&Limits{Enabled: true, MaxDepth: 3, MaxComplexity: 20}).Check(m, false))
	require.Nil(t, (&Limits{MaxDepth: 1}).Check(m, false), "disabled limits never fail")
}

func TestApplyLimit(t *testing.T) {
	var nilLimits *Limits
	require.False(t, nilLimits.ApplyLimit(false))

	l := &Limits{Enabled: true, IgnorePersistedOperations: true}
	require.True(t, l.ApplyLimit(false))
	require.False(t, l.ApplyLimit(true))

	l.IgnorePersistedOperations = false
	require.True(t, l.ApplyLimit(true))
}

func TestAnalyzeSaturates(t *testing.T) {
	s, err := schema.BuildFromSDL("items", `
		type Item { name: String items(first: Int): [Item] }
		type Query { items(first: Int): [Item] }
	`)
	require.NoError(t, err)
	doc, err := language.ParseQuery(`{
		items(first: 2147483647) { items(first: 2147483647) {
			items(first: 2147483647) { items(first: 2147483647) { name } }
		} }
	}`)
	require.NoError(t, err)
	p, err := operation.Compile(s, doc, "doc", "")
	require.NoError(t, err)

	limits := &Limits{Enabled: true, MaxComplexity: 1000, MultiplierArguments: []string{"first"}}
	m := Analyze(s, p, nil, limits)
	require.Equal(t, math.MaxInt, m.Complexity)

	gqlErr := limits.Check(m, false)
	require.NotNil(t, gqlErr)
	require.Equal(t, CodeMaxComplexityExceeded, gqlErr.Extensions["code"])
}
