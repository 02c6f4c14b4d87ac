package safety

import "regexp"

// Denylist pattern identifiers, reported in this order by Scan.
const (
	PatternSSN         = "ssn"
	PatternPaymentCard = "payment_card"
	PatternHarmKeyword = "harm_keyword"
)

// DenylistPattern pairs a stable identifier with the expression it matches.
type DenylistPattern struct {
	ID         string `json:"id"`
	Expression string `json:"expression"`
}

type denyRule struct {
	id string
	re *regexp.Regexp
}

var denylist = []denyRule{
	{PatternSSN, regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{PatternPaymentCard, regexp.MustCompile(`\b(?:\d[ -]*?){13,16}\b`)},
	{PatternHarmKeyword, regexp.MustCompile(`(?i)\b(?:kill|bomb|harm)\b`)},
}

// Scan reports which denylist patterns occur in text. It never modifies or
// blocks anything; callers decide what a hit means. The returned slice is
// empty, not nil, when nothing matches.
func Scan(text string) []string {
	hits := []string{}
	if text == "" {
		return hits
	}
	for _, r := range denylist {
		if r.re.MatchString(text) {
			hits = append(hits, r.id)
		}
	}
	return hits
}

// DenylistPatterns returns the configured patterns in scan order.
func DenylistPatterns() []DenylistPattern {
	out := make([]DenylistPattern, len(denylist))
	for i, r := range denylist {
		out[i] = DenylistPattern{ID: r.id, Expression: r.re.String()}
	}
	return out
}
