package stub

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"github.com/brakes/brakes-estimator/internal/estimate/derive"
	"github.com/brakes/brakes-estimator/internal/estimate/domain"
	"github.com/brakes/brakes-estimator/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 4, 1, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func TestEstimator_Parse(t *testing.T) {
	e := NewEstimator(DefaultCatalogue())

	found := e.Parse(testutil.SampleDocument)
	require.Len(t, found, 3)

	assert.Equal(t, domain.InterventionSpeedBreaker, found[0].Type)
	assert.Equal(t, 5.0, found[0].Quantity)
	require.NotNil(t, found[0].Location)
	assert.Equal(t, "km 4.5", *found[0].Location)
	assert.Equal(t, 0.96, found[0].Confidence)

	assert.Equal(t, domain.InterventionGuardrail, found[1].Type)
	assert.Equal(t, 200.0, found[1].Quantity)
	assert.Nil(t, found[1].Location)
	assert.Equal(t, 0.85, found[1].Confidence)

	assert.Equal(t, domain.InterventionRoadMarking, found[2].Type)
	assert.Equal(t, 1.0, found[2].Quantity)
	assert.Equal(t, 0.65, found[2].Confidence)
}

func TestEstimator_ParseNothing(t *testing.T) {
	e := NewEstimator(DefaultCatalogue())
	assert.Empty(t, e.Parse("A report about drainage culverts and embankment slopes."))
}

func TestEstimator_Build(t *testing.T) {
	e := NewEstimator(DefaultCatalogue())
	e.now = fixedClock
	e.newID = func() string { return "EST-20240401-0000ABCD" }

	est := e.Build("audit.pdf", e.Parse(testutil.SampleDocument))

	assert.Equal(t, "EST-20240401-0000ABCD", est.EstimateID)
	assert.Equal(t, domain.StatusCompleted, est.Status)
	assert.True(t, est.CreatedAt.Equal(fixedNow))
	assert.Equal(t, 0.82, est.Confidence)
	assert.True(t, est.RequiresReview())

	guardrail := est.Items[1]
	require.Len(t, guardrail.Materials, 1)
	assert.Equal(t, "Galvanized Steel W-Beam", guardrail.Materials[0].Name)
	assert.Equal(t, 1000.0, guardrail.Materials[0].Quantity)
	assert.Equal(t, 92000.0, guardrail.TotalCost)
	assert.Equal(t, "IRC 35:6.1.1", guardrail.Materials[0].IRCClause)

	for _, section := range domain.KnownSections {
		assert.True(t, guardrail.AuditTrail.Has(section), "missing %s", section)
	}
	assert.Empty(t, guardrail.Warnings())
	assert.Len(t, est.Items[2].Warnings(), 1)

	// materials add up and the total is the sum of items
	assert.Empty(t, derive.CheckCostConsistency(est, derive.DefaultCostTolerance))
}

func TestSummarize(t *testing.T) {
	e := NewEstimator(DefaultCatalogue())
	e.now = fixedClock
	est := e.Build("audit.pdf", e.Parse(testutil.SampleDocument))

	result := Summarize(est, len(testutil.SampleDocument), 1500*time.Millisecond)

	assert.True(t, result.Success)
	assert.Equal(t, 3, result.InterventionsFound)
	assert.Equal(t, int64(1500), result.ProcessingTimeMs)
	assert.Equal(t, "NEEDS REVIEW", result.Verification.Status)
	assert.Equal(t, 9, result.Verification.PassedCount)
	assert.Equal(t, 1, result.Verification.WarningCount)
	assert.Equal(t, true, result.Metadata["requires_manual_review"])
	require.Len(t, result.Items, 3)
	assert.Equal(t, 1, result.Items[0].MaterialsCount)
	assert.NotNil(t, result.Items[0].Warnings)
}

func TestRenderCSV(t *testing.T) {
	factory := testutil.NewFixtureFactory()
	bare := testutil.Item(domain.InterventionOther, 1, 0, 0.5)
	bare.Materials = nil
	est := factory.Estimate(
		testutil.WithEstimateID("abc123"),
		testutil.WithCreatedAt(fixedNow),
		testutil.WithItems(testutil.Item(domain.InterventionSignage, 4, 6300, 0.9), bare),
	)

	data, err := RenderCSV(&est)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n\n", "blank row before total")

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)

	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, []string{"abc123", est.Filename, "2024-04-01 10:00:00", "signage", "4", "nos",
		"signage material", "4", "nos", "1575", "6300", "IRC 67:3.2.1", "CPWD SOR 2023"}, records[1])
	assert.Equal(t, "N/A", records[2][6])
	assert.Equal(t, "N/A", records[2][12])
	assert.Equal(t, "TOTAL", records[3][0])
	assert.Equal(t, "6300", records[3][10])
}

func TestRenderJSON(t *testing.T) {
	est := testutil.FiveItemEstimate()

	data, err := RenderJSON(&est, fixedNow)
	require.NoError(t, err)

	var doc struct {
		EstimateID     string                   `json:"estimate_id"`
		Items          []map[string]interface{} `json:"items"`
		ExportMetadata map[string]string        `json:"export_metadata"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "abc123", doc.EstimateID)
	assert.Len(t, doc.Items, 5)
	assert.Equal(t, "json", doc.ExportMetadata["format"])
	assert.Equal(t, "1.0.0", doc.ExportMetadata["version"])
	assert.Equal(t, "2024-04-01T10:00:00Z", doc.ExportMetadata["exported_at"])
}

func TestRenderPDF(t *testing.T) {
	est := testutil.FiveItemEstimate()

	data, err := Render(&est, domain.FormatPDF, fixedNow)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))

	_, err = Render(&est, domain.ExportFormat("xml"), fixedNow)
	assert.Error(t, err)
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "1,234,567.50", money(1234567.5))
	assert.Equal(t, "0.00", money(0))
}

func TestStore_ListNewestFirst(t *testing.T) {
	s := NewStore(0)
	defer s.Close()

	factory := testutil.NewFixtureFactory()
	for i, status := range []domain.Status{domain.StatusCompleted, domain.StatusError, domain.StatusCompleted} {
		est := factory.Estimate(
			testutil.WithEstimateID([]string{"old", "mid", "new"}[i]),
			testutil.WithCreatedAt(fixedNow.Add(time.Duration(i)*time.Hour)),
			testutil.WithEstimateStatus(status),
		)
		s.Put(&est)
	}

	page, total := s.List("", 2, 0)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, "new", page[0].EstimateID)
	assert.Equal(t, "mid", page[1].EstimateID)

	page, total = s.List(domain.StatusCompleted, 10, 0)
	assert.Equal(t, 2, total)
	assert.Equal(t, "new", page[0].EstimateID)
	assert.Equal(t, "old", page[1].EstimateID)

	page, total = s.List("", 10, 5)
	assert.Equal(t, 3, total)
	assert.Empty(t, page)

	assert.True(t, s.Delete("mid"))
	assert.False(t, s.Delete("mid"))
	assert.Equal(t, 2, s.Len())
}

func TestStore_CleanupExpired(t *testing.T) {
	s := &Store{estimates: map[string]*domain.Estimate{}, ttl: time.Hour, now: fixedClock, stop: make(chan struct{})}

	factory := testutil.NewFixtureFactory()
	stale := factory.Estimate(testutil.WithEstimateID("stale"), testutil.WithCreatedAt(fixedNow.Add(-2*time.Hour)))
	fresh := factory.Estimate(testutil.WithEstimateID("fresh"), testutil.WithCreatedAt(fixedNow.Add(-time.Minute)))
	s.Put(&stale)
	s.Put(&fresh)

	s.cleanup()

	assert.Nil(t, s.Get("stale"))
	assert.NotNil(t, s.Get("fresh"))
}

func TestCatalogue(t *testing.T) {
	c := DefaultCatalogue()

	rec, ok := c.Lookup("concrete m15 (1:2:4)")
	require.True(t, ok)
	assert.Equal(t, 5850.0, rec.PriceINR)

	results := c.Search("thermoplastic paint", 10)
	require.Len(t, results, 2)
	assert.Equal(t, "Thermoplastic Paint", results[0].Material)

	assert.Len(t, c.Search("concrete", 1), 1)

	name, records, ok := c.Category("steel")
	require.True(t, ok)
	assert.Equal(t, "Steel", name)
	assert.Len(t, records, 2)

	assert.Equal(t, []string{"Concrete", "Lighting", "Paint & Marking", "Safety Devices", "Signage", "Steel"}, c.Categories())

	stats := c.Statistics()
	assert.Equal(t, c.Len(), stats.TotalMaterials)
	assert.Equal(t, 6, stats.Categories)
	assert.Equal(t, 92.0, stats.MinPrice)
	assert.Equal(t, 98500.0, stats.MaxPrice)

	assert.Len(t, c.Page(5, 10), 3)
	assert.Empty(t, c.Page(5, 100))
}
