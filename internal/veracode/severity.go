package veracode

import (
	"fmt"
	"strconv"

	"github.com/vulnfeed/veracode-ingest/internal/domain"
)

// severityByCode maps Veracode numeric severity codes to named levels.
var severityByCode = map[int]domain.Severity{
	1: domain.SeverityInfo,
	2: domain.SeverityLow,
	3: domain.SeverityMedium,
	4: domain.SeverityHigh,
	5: domain.SeverityCritical,
}

// severityFromCode resolves a numeric severity code. Codes outside the
// table default to Info rather than failing the conversion.
func severityFromCode(code int) domain.Severity {
	if s, ok := severityByCode[code]; ok {
		return s
	}
	return domain.SeverityInfo
}

// severityFromAttrs reads and resolves the severity attribute of a flaw
// or vulnerability node. A non-numeric value fails the conversion; an
// unmapped numeric one defaults.
func severityFromAttrs(b *attrBag, node string) (domain.Severity, error) {
	raw, err := b.requireAttr(node, "severity")
	if err != nil {
		return "", err
	}
	code, err := strconv.Atoi(raw)
	if err != nil {
		return "", fmt.Errorf("%s node has non-numeric severity %q: %w", node, raw, err)
	}
	return severityFromCode(code), nil
}
