package caselaw

import "strings"

// Landmark opinions keyed by topic keywords, served when the live search is
// unavailable. Kept small; the point is structural validity under degradation,
// not coverage.
var fixtures = map[string][]Result{
	"section 230": {
		{
			CaseName:       "Zeran v. America Online, Inc.",
			Court:          "4th Circuit Court of Appeals",
			Date:           "1997-11-12",
			OutcomeSummary: "Established broad Section 230 immunity for interactive computer services; no liability for third-party content even after notification.",
			RelevanceScore: 0.9,
		},
		{
			CaseName:       "Fair Housing Council v. Roommates.com, LLC",
			Court:          "9th Circuit Court of Appeals",
			Date:           "2008-04-03",
			OutcomeSummary: "Section 230 immunity does not extend to sites that materially develop unlawful content; discriminatory questionnaires exceed passive hosting.",
			RelevanceScore: 0.8,
		},
	},
	"digital asset": {
		{
			CaseName:       "SEC v. Ripple Labs, Inc.",
			Court:          "Southern District of New York",
			Date:           "2020-12-22",
			OutcomeSummary: "Mixed rulings on whether XRP token sales constituted unregistered securities offerings; institutional sales may qualify, programmatic retail sales may not.",
			RelevanceScore: 0.85,
		},
	},
}

func fixtureResults(topic string) []Result {
	lower := strings.ToLower(topic)

	var matched []Result
	for key, cases := range fixtures {
		if strings.Contains(lower, key) {
			matched = append(matched, cases...)
			continue
		}
		for _, word := range strings.Fields(key) {
			if strings.Contains(lower, word) {
				matched = append(matched, cases...)
				break
			}
		}
	}

	sortByRelevance(matched)

	if matched == nil {
		matched = []Result{}
	}
	return matched
}
