package ranking

import (
	"fmt"
	"strings"
)

// Validation heuristics tuning. These flag a search scope that was likely
// restricted to the target site; they never block the observation.
const (
	suspiciousTopRank  = 2
	minDiversitySample = 5
	minDistinctHosts   = 5
)

// ValidationResult carries the advisory outcome of response validation.
type ValidationResult struct {
	IsValid  bool     `json:"is_valid"`
	Warnings []string `json:"warnings,omitempty"`
}

func (v *ValidationResult) warn(msg string) {
	v.IsValid = false
	v.Warnings = append(v.Warnings, msg)
}

// ValidateResult inspects a resolved position and the first page of
// competitor results for signs that the external search service is
// misconfigured. Pure and deterministic: no I/O, no side effects.
func ValidateResult(position int, firstPage []CompetitorResult, targetDomain, keyword string) ValidationResult {
	target := NormalizeDomain(targetDomain)
	out := ValidationResult{IsValid: true}

	if position >= 1 && position <= suspiciousTopRank {
		out.warn(fmt.Sprintf(
			"position %d for %q is unusually high; the search scope may be restricted to %s",
			position, keyword, target,
		))
	}

	if len(firstPage) >= minDiversitySample {
		hosts := make(map[string]struct{}, len(firstPage))
		for _, c := range firstPage {
			hosts[hostOf(c.URL)] = struct{}{}
		}
		if len(hosts) < minDistinctHosts {
			out.warn(fmt.Sprintf(
				"only %d distinct hosts across %d first-page results; low diversity suggests a restricted scope",
				len(hosts), len(firstPage),
			))
		}
	}

	if len(firstPage) > 0 {
		allTarget := true
		for _, c := range firstPage {
			if !strings.Contains(normalizeResultURL(c.URL), target) {
				allTarget = false
				break
			}
		}
		if allTarget {
			out.warn(fmt.Sprintf(
				"every first-page result belongs to %s; search appears restricted to a single site",
				target,
			))
		}
	}

	return out
}

// FirstPage returns the competitors that appeared on the first result page.
func FirstPage(competitors []CompetitorResult, pageSize int) []CompetitorResult {
	if pageSize <= 0 {
		pageSize = 10
	}
	out := make([]CompetitorResult, 0, pageSize)
	for _, c := range competitors {
		if c.Position <= pageSize {
			out = append(out, c)
		}
	}
	return out
}
