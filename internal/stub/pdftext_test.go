package stub

import (
	"bytes"
	"strings"
	"testing"

	"github.com/brakes/brakes-estimator/pkg/testutil"
	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// generatedPDF writes lines into a compressed, fpdf-built document
func generatedPDF(t *testing.T, lines ...string) []byte {
	t.Helper()
	doc := fpdf.New("P", "mm", "A4", "")
	doc.AddPage()
	doc.SetFont("Helvetica", "", 11)
	for _, line := range lines {
		doc.CellFormat(0, 6, line, "", 1, "L", false, 0, "")
	}
	var buf bytes.Buffer
	require.NoError(t, doc.Output(&buf))
	return buf.Bytes()
}

var auditLines = []string{
	"Road safety audit for NH-48 approach to Vadodara.",
	"Install 5 speed breakers at km 4.5 near the school zone.",
	"Provide 200 meters of guardrail along the embankment.",
	"Refresh road markings across the junction.",
}

func TestExtractText_GeneratedPDF(t *testing.T) {
	data := generatedPDF(t, auditLines...)
	require.NotContains(t, string(data), "speed breakers", "content stream should be compressed")

	text := ExtractText(data)

	var got []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			got = append(got, line)
		}
	}
	assert.Equal(t, auditLines, got)
}

func TestExtractText_FallsBackToRawBytes(t *testing.T) {
	data := []byte(testutil.SampleDocument)
	assert.Equal(t, testutil.SampleDocument, ExtractText(data))

	assert.Equal(t, "not a pdf", ExtractText([]byte("not a pdf")))
}

func TestExtractText_RenderedExport(t *testing.T) {
	est := testutil.FiveItemEstimate()
	data, err := RenderPDF(&est, fixedNow)
	require.NoError(t, err)

	text := ExtractText(data)
	assert.Contains(t, text, "BRAKES ROAD INTERVENTION COST ESTIMATE REPORT")
	assert.Contains(t, text, "Estimate ID: abc123")
}
