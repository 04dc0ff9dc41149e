// Package consensus merges per-dimension judgments into one evaluation result.
// Aggregation is pure and keyed on the configured dimension order, so the
// result does not depend on the order in which agents finished.
package consensus

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/johnayoung/req-analyzer/internal/agent"
)

// ErrAggregationFailed is returned when there is nothing valid to aggregate.
var ErrAggregationFailed = errors.New("aggregation failed")

// Verdict is the decision band of an overall score.
type Verdict string

const (
	VerdictRefinementRequired Verdict = "refinement_required"
	VerdictSuggestions        Verdict = "suggestions"
	VerdictOptional           Verdict = "optional"
	VerdictAccepted           Verdict = "accepted"
)

// VerdictFor maps a mean score to its band: below 35 the requirement must be
// rewritten, up to 70 it needs the listed fixes, from 90 it is accepted as is.
// Aggregate passes the unrounded mean, so 34.67 is still refinement_required.
func VerdictFor(score float64) Verdict {
	switch {
	case score < 35:
		return VerdictRefinementRequired
	case score <= 70:
		return VerdictSuggestions
	case score >= 90:
		return VerdictAccepted
	default:
		return VerdictOptional
	}
}

// MissingDimension records a configured dimension that produced no judgment.
type MissingDimension struct {
	Dimension string `json:"dimension"`
	Reason    string `json:"reason"`
}

// Result is the aggregate verdict for one requirement.
// It is built once by Aggregate and should be treated as read-only.
type Result struct {
	RequirementID      string             `json:"requirement_id,omitempty"`
	Requirement        string             `json:"requirement"`
	OverallScore       int                `json:"overall_score"`
	Verdict            Verdict            `json:"verdict"`
	Breakdown          []agent.Judgment   `json:"breakdown"`
	Missing            []MissingDimension `json:"missing,omitempty"`
	Issues             []agent.Issue      `json:"issues"`
	Suggestions        []string           `json:"suggestions"`
	RefinedRequirement string             `json:"refined_requirement,omitempty"`
}

// Present reports whether dimension has a judgment in the breakdown.
func (r Result) Present(dimension string) bool {
	for _, j := range r.Breakdown {
		if j.Dimension == dimension {
			return true
		}
	}
	return false
}

// Aggregator merges judgments in a fixed dimension order.
type Aggregator struct {
	rank map[string]int
}

// NewAggregator creates an Aggregator for the configured agent order.
func NewAggregator(order []string) *Aggregator {
	rank := make(map[string]int, len(order))
	for i, d := range order {
		if _, dup := rank[d]; !dup {
			rank[d] = i
		}
	}
	return &Aggregator{rank: rank}
}

// Aggregate merges judgments into a Result. The overall score is the mean of
// the present scores rounded to the nearest integer; missing dimensions are
// excluded from the mean and listed in Result.Missing. Issues are de-duplicated
// by dimension and normalized description, suggestions by normalized text,
// keeping the first occurrence in configured order.
func (a *Aggregator) Aggregate(judgments []agent.Judgment, missing []MissingDimension) (Result, error) {
	if len(judgments) == 0 {
		return Result{}, fmt.Errorf("%w: no judgments", ErrAggregationFailed)
	}

	ordered := make([]agent.Judgment, 0, len(judgments))
	for _, j := range judgments {
		if err := j.Validate(); err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrAggregationFailed, err)
		}
		ordered = append(ordered, cloneJudgment(j))
	}
	sort.SliceStable(ordered, func(i, k int) bool {
		return a.less(ordered[i], ordered[k])
	})

	res := Result{
		Breakdown:   ordered,
		Issues:      []agent.Issue{},
		Suggestions: []string{},
	}

	sum := 0
	seenIssue := make(map[string]bool)
	seenSuggestion := make(map[string]bool)
	for _, j := range ordered {
		sum += j.Score

		for _, issue := range j.Issues {
			if issue.Dimension == "" {
				issue.Dimension = j.Dimension
			}
			key := issue.Dimension + "\x00" + normalize(issue.Description)
			if seenIssue[key] {
				continue
			}
			seenIssue[key] = true
			res.Issues = append(res.Issues, issue)
		}

		for _, s := range j.Suggestions {
			key := normalize(s)
			if key == "" || seenSuggestion[key] {
				continue
			}
			seenSuggestion[key] = true
			res.Suggestions = append(res.Suggestions, s)
		}
	}

	mean := float64(sum) / float64(len(ordered))
	res.OverallScore = int(math.Round(mean))
	res.Verdict = VerdictFor(mean)
	res.Missing = a.missing(ordered, missing)

	return res, nil
}

// missing orders and de-duplicates absent dimensions, dropping any that did report.
func (a *Aggregator) missing(present []agent.Judgment, missing []MissingDimension) []MissingDimension {
	if len(missing) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(present)+len(missing))
	for _, j := range present {
		seen[j.Dimension] = true
	}

	out := make([]MissingDimension, 0, len(missing))
	for _, m := range missing {
		if seen[m.Dimension] {
			continue
		}
		seen[m.Dimension] = true
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, k int) bool {
		ri, rk := a.rankOf(out[i].Dimension), a.rankOf(out[k].Dimension)
		if ri != rk {
			return ri < rk
		}
		return out[i].Dimension < out[k].Dimension
	})
	if len(out) == 0 {
		return nil
	}
	return out
}

func (a *Aggregator) rankOf(dimension string) int {
	if r, ok := a.rank[dimension]; ok {
		return r
	}
	return len(a.rank)
}

// less orders by configured rank, then dimension name, then content so that
// even duplicate dimensions sort the same way on every run.
func (a *Aggregator) less(x, y agent.Judgment) bool {
	rx, ry := a.rankOf(x.Dimension), a.rankOf(y.Dimension)
	if rx != ry {
		return rx < ry
	}
	if x.Dimension != y.Dimension {
		return x.Dimension < y.Dimension
	}
	return fmt.Sprintf("%v", x) < fmt.Sprintf("%v", y)
}

func cloneJudgment(j agent.Judgment) agent.Judgment {
	c := j
	c.Issues = append([]agent.Issue{}, j.Issues...)
	c.Suggestions = append([]string{}, j.Suggestions...)
	return c
}

// normalize folds case and collapses whitespace.
func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
