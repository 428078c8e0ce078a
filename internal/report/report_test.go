package report

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 bytes", formatBytes(512))
	assert.Equal(t, "1.50 KB", formatBytes(1536))
	assert.Equal(t, "2.00 MB", formatBytes(2*1024*1024))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "42s", formatDuration(42*time.Second))
	assert.Equal(t, "1m 5s", formatDuration(65*time.Second))
	assert.Equal(t, "2h 0m 1s", formatDuration(2*time.Hour+time.Second))
}

func TestSucceeded(t *testing.T) {
	s := New()
	assert.False(t, s.Succeeded())

	s.SetOutput("/tmp/dados/populacao_60mais_1209_20240307_1405.csv", 2048, 30)
	s.AddError("filters", "'60 a 69 anos' not found")
	assert.True(t, s.Succeeded(), "recoverable errors do not fail the run")

	s.AddFatal("export", errors.New("download timed out"))
	assert.False(t, s.Succeeded())
}

func TestPrintAndSummary(t *testing.T) {
	s := New()
	s.StartTime = time.Now().Add(-90 * time.Second)
	s.AddToggle("Total", false, true, false)
	s.AddToggle("60 a 69 anos", true, false, true)
	s.Territory = "Unidade da Federação"
	s.TerritoryFallback = true
	s.SetOutput("/tmp/dados/populacao_60mais_1209_20240307_1405.csv", 2048, 30)
	s.AddError("filters", "'60 a 69 anos' not found")

	var buf bytes.Buffer
	s.Print(&buf)
	out := buf.String()

	assert.Contains(t, out, "FINAL REPORT")
	assert.Contains(t, out, "populacao_60mais_1209_20240307_1405.csv")
	assert.Contains(t, out, "2.00 KB")
	assert.Contains(t, out, "Unidade da Federação")
	assert.Contains(t, out, "fallback")
	assert.Contains(t, out, "not found")

	assert.Equal(t,
		"2 toggles (1 not found), populacao_60mais_1209_20240307_1405.csv, 1 errors in 1m 30s",
		s.Summary())
}
