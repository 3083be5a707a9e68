package veracode

import (
	"strings"
	"time"
)

// mitigationState is the result of resolving a node's analyst
// disposition: whether it was mitigated, when, and whether the mitigation
// marks it a false positive.
type mitigationState struct {
	mitigated     bool
	date          *time.Time
	falsePositive bool
}

// resolveFlawMitigation inspects a SAST/DAST flaw's status attributes and
// mitigation history. A flaw counts as mitigated when its mitigation was
// accepted and either the remediation is "fixed" (no date) or the history
// carries at least one entry, in which case the last entry's date wins.
// A false positive is a subtype of mitigated: the flag is only ever set
// on a mitigated flaw whose remediation status says so.
func resolveFlawMitigation(node *flawNode) (mitigationState, error) {
	var st mitigationState

	status, _ := node.attr("mitigation_status")
	if strings.EqualFold(status, "accepted") {
		remediation, _ := node.attr("remediation_status")
		if strings.EqualFold(remediation, "fixed") {
			st.mitigated = true
		} else {
			// Any accepted mitigation counts here, including
			// "Potential false positive".
			for _, m := range node.Mitigations.Entries {
				st.mitigated = true
				d, err := parseReportTime(m.Date)
				if err != nil {
					return st, err
				}
				st.date = &d
			}
		}
	}

	if st.mitigated {
		remediation, err := node.requireAttr("flaw", "remediation_status")
		if err != nil {
			return st, err
		}
		rs := strings.ToLower(remediation)
		if strings.Contains(rs, "false positive") || strings.Contains(rs, "falsepositive") {
			st.falsePositive = true
		}
	}

	return st, nil
}

// resolveSCAMitigation is the SCA variant: the vulnerability node carries
// a boolean mitigation attribute instead of status strings, and no false
// positive determination exists.
func resolveSCAMitigation(node *vulnerabilityNode) (mitigationState, error) {
	var st mitigationState

	if v, ok := node.attr("mitigation"); ok && strings.EqualFold(v, "true") {
		for _, m := range node.Mitigations.Entries {
			st.mitigated = true
			d, err := parseReportTime(m.Date)
			if err != nil {
				return st, err
			}
			st.date = &d
		}
	}

	return st, nil
}
