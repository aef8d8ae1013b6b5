package derive

import (
	"context"
	"sync"
	"testing"

	"github.com/brakes/brakes-estimator/internal/estimate/client"
	"github.com/brakes/brakes-estimator/internal/estimate/domain"
	"github.com/brakes/brakes-estimator/pkg/config"
	"github.com/brakes/brakes-estimator/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(typ string, qty, cost, conf float64) domain.EstimateItem {
	return domain.EstimateItem{
		Intervention: domain.Intervention{Type: typ, Quantity: qty, Unit: "nos", Confidence: conf},
		TotalCost:    cost,
	}
}

// abc123 is the five-item estimate used across the scenarios
func abc123() *domain.Estimate {
	return &domain.Estimate{
		EstimateID: "abc123",
		Filename:   "report.pdf",
		Status:     domain.StatusCompleted,
		Items: []domain.EstimateItem{
			item("signage", 4, 1200, 0.97),
			item("speed_breaker", 2, 5000, 0.82),
			item("road_marking", 100, 1200, 0.79),
			item("guardrail", 50, 9800, 0.95),
			item("barrier", 10, 5000, 0.80),
		},
		TotalCost:  22200,
		Confidence: 0.87,
	}
}

func types(items []domain.EstimateItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Intervention.Type
	}
	return out
}

func TestSort_CostDescendingScenario(t *testing.T) {
	est := abc123()

	sorted, err := Sort(est.Items, KeyCost, Descending)
	require.NoError(t, err)

	assert.Equal(t, []string{"guardrail", "speed_breaker", "barrier", "signage", "road_marking"}, types(sorted))
	for i := 1; i < len(sorted); i++ {
		assert.GreaterOrEqual(t, sorted[i-1].TotalCost, sorted[i].TotalCost)
	}
	assert.Equal(t, []string{"signage", "speed_breaker", "road_marking", "guardrail", "barrier"}, types(est.Items), "source must not be reordered")
}

func TestSort_StableBothDirections(t *testing.T) {
	items := []domain.EstimateItem{
		item("a", 1, 10, 0.9),
		item("b", 2, 10, 0.9),
		item("c", 1, 20, 0.9),
		item("d", 1, 10, 0.5),
		item("e", 2, 20, 0.9),
	}

	tests := []struct {
		key  SortKey
		dir  Direction
		want []string
	}{
		{KeyCost, Ascending, []string{"a", "b", "d", "c", "e"}},
		{KeyCost, Descending, []string{"c", "e", "a", "b", "d"}},
		{KeyQuantity, Ascending, []string{"a", "c", "d", "b", "e"}},
		{KeyQuantity, Descending, []string{"b", "e", "a", "c", "d"}},
		{KeyConfidence, Ascending, []string{"d", "a", "b", "c", "e"}},
		{KeyConfidence, Descending, []string{"a", "b", "c", "e", "d"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.key)+"_"+string(tt.dir), func(t *testing.T) {
			sorted, err := Sort(items, tt.key, tt.dir)
			require.NoError(t, err)
			assert.Equal(t, tt.want, types(sorted))
		})
	}
}

func TestSort_TypeIsLocaleAware(t *testing.T) {
	items := []domain.EstimateItem{
		item("zebra_crossing", 1, 1, 1),
		item("école_sign", 1, 1, 1),
		item("Barrier", 1, 1, 1),
		item("autre", 1, 1, 1),
		item("barrier", 1, 1, 1),
	}

	sorted, err := Sort(items, KeyType, Ascending)
	require.NoError(t, err)
	got := types(sorted)
	assert.Equal(t, "autre", got[0])
	assert.ElementsMatch(t, []string{"Barrier", "barrier"}, got[1:3])
	assert.Equal(t, []string{"école_sign", "zebra_crossing"}, got[3:])

	desc, err := Sort(items, KeyType, Descending)
	require.NoError(t, err)
	assert.Equal(t, "zebra_crossing", types(desc)[0])
	assert.Equal(t, "autre", types(desc)[4])
}

func TestSort_Errors(t *testing.T) {
	_, err := Sort(nil, SortKey("price"), Ascending)
	assert.Error(t, err)
	_, err = Sort(nil, KeyCost, Direction("sideways"))
	assert.Error(t, err)

	sorted, err := Sort(nil, KeyCost, Ascending)
	require.NoError(t, err)
	assert.Empty(t, sorted)

	_, err = NewSorter("not a locale!!")
	assert.Error(t, err)
}

func TestParse(t *testing.T) {
	k, err := ParseSortKey(" Cost ")
	require.NoError(t, err)
	assert.Equal(t, KeyCost, k)
	_, err = ParseSortKey("name")
	assert.Error(t, err)

	d, err := ParseDirection("")
	require.NoError(t, err)
	assert.Equal(t, Ascending, d)
	d, err = ParseDirection("DESC")
	require.NoError(t, err)
	assert.Equal(t, Descending, d)
}

func TestSort_ConcurrentReaders(t *testing.T) {
	est := abc123()
	var wg sync.WaitGroup
	for _, key := range []SortKey{KeyType, KeyQuantity, KeyCost, KeyConfidence} {
		for _, dir := range []Direction{Ascending, Descending} {
			wg.Add(1)
			go func(key SortKey, dir Direction) {
				defer wg.Done()
				sorted, err := Sort(est.Items, key, dir)
				assert.NoError(t, err)
				assert.Len(t, sorted, 5)
			}(key, dir)
		}
	}
	wg.Wait()
}

func TestClassifyConfidence(t *testing.T) {
	tests := []struct {
		value float64
		want  Tier
	}{
		{0.0, TierReviewNeeded},
		{0.5, TierReviewNeeded},
		{0.79999, TierReviewNeeded},
		{0.80, TierMedium},
		{0.9, TierMedium},
		{0.94999, TierMedium},
		{0.95, TierHigh},
		{1.0, TierHigh},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyConfidence(tt.value), "confidence %v", tt.value)
	}
}

func TestTierCounts(t *testing.T) {
	assert.Equal(t, TierCount{High: 2, Medium: 2, ReviewNeeded: 1}, TierCounts(abc123().Items))
	assert.Equal(t, TierCount{}, TierCounts(nil))
}

type fakeExportSource struct {
	calls   []domain.ExportFormat
	payload *client.ExportPayload
	err     error
}

func (f *fakeExportSource) Export(_ context.Context, _ string, format domain.ExportFormat) (*client.ExportPayload, error) {
	f.calls = append(f.calls, format)
	if f.err != nil {
		return nil, f.err
	}
	return f.payload, nil
}

func TestExporter(t *testing.T) {
	tests := []struct {
		format      string
		wantName    string
		contentType string
	}{
		{"csv", "estimate_abc123.csv", "text/csv"},
		{"json", "estimate_abc123.json", "application/json"},
		{"pdf", "estimate_abc123.pdf", "application/pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			src := &fakeExportSource{payload: &client.ExportPayload{Data: []byte("payload")}}
			artifact, err := NewExporter(src).Export(context.Background(), "abc123", tt.format)
			require.NoError(t, err)

			assert.Equal(t, tt.wantName, artifact.Filename)
			assert.Equal(t, tt.contentType, artifact.ContentType)
			assert.Equal(t, []byte("payload"), artifact.Data)
			assert.Equal(t, []domain.ExportFormat{domain.ExportFormat(tt.format)}, src.calls)

			again, err := NewExporter(src).Export(context.Background(), "abc123", tt.format)
			require.NoError(t, err)
			assert.Equal(t, artifact.Filename, again.Filename)
		})
	}
}

func TestExporter_RejectsOtherFormats(t *testing.T) {
	src := &fakeExportSource{payload: &client.ExportPayload{}}
	for _, format := range []string{"xlsx", "", "csv,json", "txt"} {
		_, err := NewExporter(src).Export(context.Background(), "abc123", format)
		require.Error(t, err)
		assert.Equal(t, errors.KindValidation, errors.KindOf(err))
	}
	assert.Empty(t, src.calls)
}

func TestExporter_PassesServiceErrors(t *testing.T) {
	src := &fakeExportSource{err: errors.Service(404, "Estimate abc123 not found")}
	_, err := NewExporter(src).Export(context.Background(), "abc123", "csv")
	require.Error(t, err)
	assert.Equal(t, "Estimate abc123 not found", errors.Message(err))
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestExpansion(t *testing.T) {
	exp := NewExpansion()
	assert.True(t, exp.Toggle(3))
	assert.True(t, exp.Toggle(1))
	assert.True(t, exp.IsExpanded(3))
	assert.Equal(t, []int{1, 3}, exp.Indices())

	assert.False(t, exp.Toggle(3))
	assert.False(t, exp.IsExpanded(3))

	exp.Expand(0)
	exp.Expand(0)
	exp.Collapse(7)
	assert.Equal(t, []int{0, 1}, exp.Indices())

	exp.Clear()
	assert.Empty(t, exp.Indices())

	var none *Expansion
	assert.False(t, none.IsExpanded(0))
	assert.NotPanics(t, func() {
		none.Collapse(0)
		none.Clear()
	})
	assert.Empty(t, none.Indices())

	var zero Expansion
	zero.Expand(2)
	assert.Equal(t, []int{2}, zero.Indices())
}

func TestCheckCostConsistency(t *testing.T) {
	est := &domain.Estimate{
		TotalCost: 300,
		Items: []domain.EstimateItem{
			{TotalCost: 100, Materials: []domain.Material{{TotalCost: 60}, {TotalCost: 40.005}}},
			{TotalCost: 150, Materials: []domain.Material{{TotalCost: 100}}},
		},
	}

	mismatches := CheckCostConsistency(est, 0)
	require.Len(t, mismatches, 2)
	assert.Equal(t, 1, mismatches[0].Index)
	assert.InDelta(t, 50, mismatches[0].Difference, 1e-9)
	assert.Equal(t, EstimateTotalIndex, mismatches[1].Index)
	assert.InDelta(t, 250, mismatches[1].Computed, 1e-9)

	assert.Equal(t, 150.0, est.Items[1].TotalCost, "costs are never rewritten")
	assert.Len(t, CheckCostConsistency(est, 100), 0)
	assert.Nil(t, CheckCostConsistency(nil, 0))
}

func TestEngineView(t *testing.T) {
	engine, err := NewEngine(config.DeriveConfig{Locale: "en", CostTolerance: 0.01}, nil)
	require.NoError(t, err)

	est := abc123()
	exp := NewExpansion()
	exp.Expand(3)

	view, err := engine.View(est, KeyCost, Descending, exp)
	require.NoError(t, err)

	require.Len(t, view.Rows, 5)
	assert.Equal(t, 3, view.Rows[0].Index)
	assert.Equal(t, "guardrail", view.Rows[0].Item.Intervention.Type)
	assert.Equal(t, TierHigh, view.Rows[0].Tier)
	assert.True(t, view.Rows[0].Expanded)
	assert.False(t, view.Rows[1].Expanded)
	assert.Equal(t, TierCount{High: 2, Medium: 2, ReviewNeeded: 1}, view.Tiers)

	// fixture items carry no materials, so every item is flagged
	assert.NotNil(t, view.Rows[0].Mismatch)
	assert.Len(t, view.Mismatches, 5)

	_, err = engine.Export(context.Background(), "abc123", "csv")
	assert.Error(t, err)
}
