package veracode

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vulnfeed/veracode-ingest/internal/domain"
)

// Parser converts Veracode Detailed XML reports into normalized findings.
// A Parser is stateless between calls; Parse is safe to invoke
// concurrently for different documents.
type Parser struct {
	// UseFirstSeen selects date_first_occurrence over
	// date_last_occurrence for SAST/DAST finding dates.
	UseFirstSeen bool

	logger *log.Entry
}

// New creates a parser.
func New(useFirstSeen bool) *Parser {
	return &Parser{
		UseFirstSeen: useFirstSeen,
		logger:       log.WithField("component", "veracode-parser"),
	}
}

// Result carries the normalized findings plus the report-level attributes
// the document loader extracted.
type Result struct {
	AppID      string
	ReportDate time.Time
	Findings   []*domain.Finding
}

// recordKey identifies a finding in the in-process dedup map. SAST and
// DAST flaws are keyed by their per-application issue id, so repeated
// flaw entries for one issue collapse (first seen wins). SCA entries have
// no natural key in the report; each gets a fresh unkeyed identity and
// never collapses against anything.
type recordKey struct {
	issueID string
	serial  uuid.UUID
}

func keyedRecord(issueID string) recordKey { return recordKey{issueID: issueID} }
func unkeyedRecord() recordKey             { return recordKey{serial: uuid.New()} }

// Parse converts one report. run is the owning scan-run reference: it is
// attached to every finding and supplies the fallback timestamp for
// unparseable per-flaw dates. The conversion is all-or-nothing; a
// structural problem anywhere in the document fails the whole call.
func (p *Parser) Parse(r io.Reader, run *domain.ImportRun) (*Result, error) {
	report, err := loadReport(r)
	if err != nil {
		return nil, err
	}

	appID, err := report.requireAttr("detailedreport", "app_id")
	if err != nil {
		return nil, err
	}
	rawDate, err := report.requireAttr("detailedreport", "last_update_time")
	if err != nil {
		return nil, err
	}
	reportDate, err := parseReportTime(rawDate)
	if err != nil {
		return nil, err
	}

	dupes := make(map[recordKey]*domain.Finding)
	var order []recordKey

	// SAST and DAST findings, grouped category -> cwe -> flaw.
	for _, sev := range report.Severities {
		for _, category := range sev.Categories {
			mitigationText, err := buildMitigationText(&category)
			if err != nil {
				return nil, err
			}

			for _, cw := range category.CWEs {
				for _, flaw := range cw.StaticFlaws.Flaws {
					issueID, err := flaw.requireAttr("flaw", "issueid")
					if err != nil {
						return nil, err
					}
					key := keyedRecord(issueID)
					if _, seen := dupes[key]; seen {
						continue
					}
					f, err := p.convertStaticFlaw(appID, &flaw, mitigationText, run)
					if err != nil {
						return nil, err
					}
					dupes[key] = f
					order = append(order, key)
				}
			}

			for _, cw := range category.CWEs {
				for _, flaw := range cw.DynamicFlaws.Flaws {
					issueID, err := flaw.requireAttr("flaw", "issueid")
					if err != nil {
						return nil, err
					}
					key := keyedRecord(issueID)
					if _, seen := dupes[key]; seen {
						continue
					}
					f, err := p.convertDynamicFlaw(appID, &flaw, mitigationText, run)
					if err != nil {
						return nil, err
					}
					dupes[key] = f
					order = append(order, key)
				}
			}
		}
	}

	// SCA findings, grouped component -> vulnerability.
	for _, component := range report.SCA.VulnerableComponents.Components {
		library, err := component.requireAttr("component", "library")
		if err != nil {
			return nil, err
		}
		if id, ok := component.attr("library_id"); ok && strings.HasPrefix(id, "maven:") {
			// Take the artifact id from the maven coordinates when
			// present, to align naming with CycloneDX style Veracode
			// SCA reports.
			if parts := strings.Split(id, ":"); len(parts) > 2 {
				library = parts[2]
			}
		}
		vendor, err := component.requireAttr("component", "vendor")
		if err != nil {
			return nil, err
		}
		version, err := component.requireAttr("component", "version")
		if err != nil {
			return nil, err
		}

		for _, vuln := range component.Vulnerabilities.Entries {
			f, err := p.convertSCAVulnerability(run, reportDate, vendor, library, version, &vuln)
			if err != nil {
				return nil, err
			}
			key := unkeyedRecord()
			dupes[key] = f
			order = append(order, key)
		}
	}

	findings := make([]*domain.Finding, 0, len(order))
	for _, key := range order {
		findings = append(findings, dupes[key])
	}

	p.logger.WithFields(log.Fields{
		"app_id":   appID,
		"findings": len(findings),
	}).Debug("Report converted")

	return &Result{
		AppID:      appID,
		ReportDate: reportDate,
		Findings:   findings,
	}, nil
}

// buildMitigationText renders a category's remediation advice: the first
// recommendation paragraph, a blank line, then every bullet item in
// document order. A category without a paragraph is a malformed report.
func buildMitigationText(category *categoryNode) (string, error) {
	paras := category.Recommendations.Paras
	if len(paras) == 0 {
		return "", fmt.Errorf("veracode report: category %q has no recommendation paragraph", category.Name)
	}

	var b strings.Builder
	b.WriteString(paras[0].Text)
	b.WriteString("\n\n")
	for _, para := range paras {
		for _, bullet := range para.Bullets {
			b.WriteString("    * ")
			b.WriteString(bullet.Text)
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

// convertFlaw handles the fields shared by the static and dynamic paths.
func (p *Parser) convertFlaw(appID string, node *flawNode, mitigationText string, run *domain.ImportRun) (*domain.Finding, error) {
	issueID, err := node.requireAttr("flaw", "issueid")
	if err != nil {
		return nil, err
	}
	severity, err := severityFromAttrs(&node.attrBag, "flaw")
	if err != nil {
		return nil, err
	}
	cweRaw, err := node.requireAttr("flaw", "cweid")
	if err != nil {
		return nil, err
	}
	cwe, err := strconv.Atoi(cweRaw)
	if err != nil {
		return nil, fmt.Errorf("flaw %s has non-numeric cweid %q: %w", issueID, cweRaw, err)
	}
	title, err := node.requireAttr("flaw", "categoryname")
	if err != nil {
		return nil, err
	}
	cia, err := node.requireAttr("flaw", "cia_impact")
	if err != nil {
		return nil, err
	}
	descRaw, err := node.requireAttr("flaw", "description")
	if err != nil {
		return nil, err
	}
	module, err := node.requireAttr("flaw", "module")
	if err != nil {
		return nil, err
	}
	flawType, err := node.requireAttr("flaw", "type")
	if err != nil {
		return nil, err
	}

	// Downstream legacy dedup hashes the description, so this exact
	// substitution must stay byte-for-byte stable.
	description := strings.ReplaceAll(descRaw, ". ", ".\n")

	references := "None"
	if idx := strings.Index(description, "References:"); idx >= 0 {
		start := idx + 13
		if start > len(description) {
			start = len(description)
		}
		references = strings.ReplaceAll(description[start:], ")  ", ")\n")
	}
	references += "\n\nVulnerable Module: " + module +
		"\nType: " + flawType +
		"\nVeracode issue ID: " + issueID

	st, err := resolveFlawMitigation(node)
	if err != nil {
		return nil, err
	}

	return &domain.Finding{
		Test:             run,
		Title:            title,
		Description:      description,
		Severity:         severity,
		CWE:              &cwe,
		Mitigation:       mitigationText,
		References:       references,
		Impact:           "CIA Impact: " + strings.ToUpper(cia),
		Date:             p.flawDate(node, run),
		IsMitigated:      st.mitigated,
		Mitigated:        st.date,
		Active:           !st.mitigated,
		FalseP:           st.falsePositive,
		UniqueIDFromTool: "app-" + appID + "_issue-" + issueID,
	}, nil
}

// flawDate picks the occurrence date per the UseFirstSeen toggle. An
// absent attribute or an unparseable value falls back to the run's start
// time; date-format drift must not block ingestion of an otherwise valid
// report.
func (p *Parser) flawDate(node *flawNode, run *domain.ImportRun) *time.Time {
	attr := "date_last_occurrence"
	if p.UseFirstSeen {
		attr = "date_first_occurrence"
	}

	raw, ok := node.attr(attr)
	if !ok {
		return &run.TargetStart
	}
	d, err := parseReportTime(raw)
	if err != nil {
		p.logger.WithFields(log.Fields{
			"attr":  attr,
			"value": raw,
		}).WithError(err).Debug("Falling back to run start time for flaw date")
		return &run.TargetStart
	}
	return &d
}

func (p *Parser) convertStaticFlaw(appID string, node *flawNode, mitigationText string, run *domain.ImportRun) (*domain.Finding, error) {
	f, err := p.convertFlaw(appID, node, mitigationText, run)
	if err != nil {
		return nil, err
	}
	f.StaticFinding = true
	f.DynamicFinding = false

	line, lineOK := node.attr("line")
	rel, relOK := node.attr("functionrelativelocation")
	if lineOK && relOK && isDigits(line) && isDigits(rel) {
		n, _ := strconv.Atoi(line)
		offset, _ := strconv.Atoi(rel)
		total := n + offset
		f.Line = &total
		f.SASTSourceLine = &total
	}

	sourcePath, err := node.requireAttr("flaw", "sourcefilepath")
	if err != nil {
		return nil, err
	}
	sourceFile, err := node.requireAttr("flaw", "sourcefile")
	if err != nil {
		return nil, err
	}
	// Plain concatenation: sourcefilepath carries its own trailing
	// separator in the report.
	f.FilePath = sourcePath + sourceFile
	f.SASTSourceFilePath = sourcePath + sourceFile

	if proto, ok := node.attr("functionprototype"); ok && proto != "" {
		f.SASTSourceObject = &proto
	}

	f.UnsavedTags = []string{"sast"}
	return f, nil
}

func (p *Parser) convertDynamicFlaw(appID string, node *flawNode, mitigationText string, run *domain.ImportRun) (*domain.Finding, error) {
	f, err := p.convertFlaw(appID, node, mitigationText, run)
	if err != nil {
		return nil, err
	}
	f.StaticFinding = false
	f.DynamicFinding = true

	rawURL, err := node.requireAttr("flaw", "url")
	if err != nil {
		return nil, err
	}
	endpoint, err := domain.EndpointFromURI(rawURL)
	if err != nil {
		return nil, err
	}
	f.UnsavedEndpoints = []domain.Endpoint{endpoint}

	f.UnsavedTags = []string{"dast"}
	return f, nil
}

func (p *Parser) convertSCAVulnerability(run *domain.ImportRun, reportDate time.Time, vendor, library, version string, node *vulnerabilityNode) (*domain.Finding, error) {
	// vendor is part of the component identity but not carried on the
	// record.
	_ = vendor

	cvssRaw, err := node.requireAttr("vulnerability", "cvss_score")
	if err != nil {
		return nil, err
	}
	cvss, err := strconv.ParseFloat(cvssRaw, 64)
	if err != nil {
		return nil, fmt.Errorf("vulnerability node has non-numeric cvss_score %q: %w", cvssRaw, err)
	}
	severity, err := severityFromAttrs(&node.attrBag, "vulnerability")
	if err != nil {
		return nil, err
	}
	cveID, err := node.requireAttr("vulnerability", "cve_id")
	if err != nil {
		return nil, err
	}
	cweRaw, err := node.requireAttr("vulnerability", "cwe_id")
	if err != nil {
		return nil, err
	}
	summary, err := node.requireAttr("vulnerability", "cve_summary")
	if err != nil {
		return nil, err
	}
	firstFound, _ := node.attr("first_found_date")

	st, err := resolveSCAMitigation(node)
	if err != nil {
		return nil, err
	}

	description := fmt.Sprintf(
		"This library has known vulnerabilities.\n"+
			"**CVE:** %s (%s)\n"+
			"CVS Score: %s (%s)\n"+
			"Summary: \n>%s\n\n-----\n\n",
		cveID, firstFound, cvssRaw, severity, summary,
	)

	return &domain.Finding{
		Test:                    run,
		Title:                   "Vulnerable component: " + library + ":" + version,
		Description:             description,
		Severity:                severity,
		CWE:                     extractCWE(cweRaw),
		Date:                    &reportDate,
		IsMitigated:             st.mitigated,
		Mitigated:               st.date,
		Active:                  !st.mitigated,
		StaticFinding:           true,
		DynamicFinding:          false,
		ComponentName:           library,
		ComponentVersion:        version,
		CVSSv3Score:             cvss,
		UnsavedVulnerabilityIDs: []string{cveID},
		UnsavedTags:             []string{"sca"},
	}, nil
}

var cwePattern = regexp.MustCompile(`(?i)CWE-(\d+)`)

// extractCWE pulls the first CWE-<digits> token out of a cwe_id value.
// Values without one yield no CWE.
func extractCWE(val string) *int {
	m := cwePattern.FindStringSubmatch(val)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &n
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
