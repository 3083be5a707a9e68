package veracode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vulnfeed/veracode-ingest/internal/domain"
)

func TestSeverityFromCode(t *testing.T) {
	tests := []struct {
		code int
		want domain.Severity
	}{
		{1, domain.SeverityInfo},
		{2, domain.SeverityLow},
		{3, domain.SeverityMedium},
		{4, domain.SeverityHigh},
		{5, domain.SeverityCritical},
		{0, domain.SeverityInfo},
		{6, domain.SeverityInfo},
		{-1, domain.SeverityInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, severityFromCode(tt.code), "code %d", tt.code)
	}
}

func TestSeverityFromAttrs(t *testing.T) {
	t.Run("mapped code", func(t *testing.T) {
		bag := bagOf("severity", "4")
		got, err := severityFromAttrs(&bag, "flaw")
		require.NoError(t, err)
		assert.Equal(t, domain.SeverityHigh, got)
	})

	t.Run("missing attribute", func(t *testing.T) {
		bag := bagOf()
		_, err := severityFromAttrs(&bag, "flaw")
		require.Error(t, err)
		assert.Contains(t, err.Error(), `missing required attribute "severity"`)
	})

	t.Run("non-numeric value", func(t *testing.T) {
		bag := bagOf("severity", "critical")
		_, err := severityFromAttrs(&bag, "flaw")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "non-numeric severity")
	})
}
