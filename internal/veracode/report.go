package veracode

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"
)

// Namespace of the Veracode Detailed report schema this package parses
// (report format version 1.5).
const Namespace = "https://www.veracode.com/schema/reports/export/1.0"

// reportTimeLayout matches the fixed, non-locale timestamp format used
// throughout the report: "2024-01-15 00:00:00 UTC".
const reportTimeLayout = "2006-01-02 15:04:05 MST"

func parseReportTime(value string) (time.Time, error) {
	t, err := time.Parse(reportTimeLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid report timestamp %q: %w", value, err)
	}
	return t, nil
}

// MissingAttrError reports a node that lacks an attribute the report
// format structurally guarantees.
type MissingAttrError struct {
	Node string
	Attr string
}

func (e *MissingAttrError) Error() string {
	return fmt.Sprintf("veracode report: %s node is missing required attribute %q", e.Node, e.Attr)
}

// attrBag collects every attribute of a node whose attribute set is
// format-driven rather than fixed. Required attributes go through
// requireAttr so a missing structural guarantee fails loudly; optional
// ones go through attr.
type attrBag struct {
	Attrs []xml.Attr `xml:",any,attr"`
}

func (b *attrBag) attr(name string) (string, bool) {
	for _, a := range b.Attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

func (b *attrBag) requireAttr(node, name string) (string, error) {
	if v, ok := b.attr(name); ok {
		return v, nil
	}
	return "", &MissingAttrError{Node: node, Attr: name}
}

// detailedReport mirrors the structural paths the parser walks. Category
// nodes are only decoded as children of severity nodes, which turns the
// category-under-severity assumption into a precondition enforced by
// construction.
type detailedReport struct {
	XMLName xml.Name `xml:"https://www.veracode.com/schema/reports/export/1.0 detailedreport"`
	attrBag

	Severities []severityNode `xml:"https://www.veracode.com/schema/reports/export/1.0 severity"`
	SCA        scaNode        `xml:"https://www.veracode.com/schema/reports/export/1.0 software_composition_analysis"`
}

type severityNode struct {
	Categories []categoryNode `xml:"https://www.veracode.com/schema/reports/export/1.0 category"`
}

type categoryNode struct {
	Name            string              `xml:"categoryname,attr"`
	Recommendations recommendationsNode `xml:"https://www.veracode.com/schema/reports/export/1.0 recommendations"`
	CWEs            []cweNode           `xml:"https://www.veracode.com/schema/reports/export/1.0 cwe"`
}

type recommendationsNode struct {
	Paras []paraNode `xml:"https://www.veracode.com/schema/reports/export/1.0 para"`
}

type paraNode struct {
	Text    string       `xml:"text,attr"`
	Bullets []bulletNode `xml:"https://www.veracode.com/schema/reports/export/1.0 bulletitem"`
}

type bulletNode struct {
	Text string `xml:"text,attr"`
}

type cweNode struct {
	StaticFlaws  flawList `xml:"https://www.veracode.com/schema/reports/export/1.0 staticflaws"`
	DynamicFlaws flawList `xml:"https://www.veracode.com/schema/reports/export/1.0 dynamicflaws"`
}

type flawList struct {
	Flaws []flawNode `xml:"https://www.veracode.com/schema/reports/export/1.0 flaw"`
}

type flawNode struct {
	attrBag
	Mitigations mitigationList `xml:"https://www.veracode.com/schema/reports/export/1.0 mitigations"`
}

type mitigationList struct {
	Entries []mitigationNode `xml:"https://www.veracode.com/schema/reports/export/1.0 mitigation"`
}

type mitigationNode struct {
	Date string `xml:"date,attr"`
}

type scaNode struct {
	VulnerableComponents componentList `xml:"https://www.veracode.com/schema/reports/export/1.0 vulnerable_components"`
}

type componentList struct {
	Components []componentNode `xml:"https://www.veracode.com/schema/reports/export/1.0 component"`
}

type componentNode struct {
	attrBag
	Vulnerabilities vulnerabilityList `xml:"https://www.veracode.com/schema/reports/export/1.0 vulnerabilities"`
}

type vulnerabilityList struct {
	Entries []vulnerabilityNode `xml:"https://www.veracode.com/schema/reports/export/1.0 vulnerability"`
}

type vulnerabilityNode struct {
	attrBag
	Mitigations mitigationList `xml:"https://www.veracode.com/schema/reports/export/1.0 mitigations"`
}

// loadReport decodes the whole document into memory. A document that is
// not well-formed, or whose root element is not a detailedreport in the
// expected namespace, fails here.
func loadReport(r io.Reader) (*detailedReport, error) {
	var report detailedReport
	if err := xml.NewDecoder(r).Decode(&report); err != nil {
		return nil, fmt.Errorf("malformed veracode report: %w", err)
	}
	return &report, nil
}
