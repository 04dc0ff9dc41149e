package agent

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Raw score scale requested from the generation service.
const (
	rawScoreMin   = 0
	rawScoreMax   = 10
	rawScoreScale = MaxScore / rawScoreMax
)

type section int

const (
	sectionNone section = iota
	sectionRationale
	sectionIssues
	sectionSuggestions
)

var (
	scoreRe    = regexp.MustCompile(`^(-?\d+(?:[.,]\d+)?)\s*(?:/\s*10)?\.?$`)
	bulletRe   = regexp.MustCompile(`^(?:[-*•]\s*|\d+[.)]\s+)`)
	itemRe     = regexp.MustCompile(`^(?:[-*•]|\d+[.)])\s`)
	severityRe = regexp.MustCompile(`^[\[(]\s*([^\])]+?)\s*[\])]\s*[:-]?\s*`)
)

var placeholders = map[string]bool{
	"none": true, "n/a": true, "na": true, "-": true,
	"ninguno": true, "ninguna": true, "no issues": true, "nothing": true,
}

// ParseJudgment parses generated text in the tagged answer format into a
// Judgment for the given dimension. Headers are case-insensitive and may appear
// in any order; only SCORE is mandatory.
func ParseJudgment(dimension, raw string) (Judgment, error) {
	j := Judgment{
		Dimension:   dimension,
		Issues:      []Issue{},
		Suggestions: []string{},
	}

	var (
		rationale []string
		current   = sectionNone
		scoreSeen bool
	)

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}

		if key, rest, ok := splitHeader(line); ok {
			switch key {
			case "SCORE":
				if scoreSeen {
					return Judgment{}, parseErrorf("more than one SCORE line")
				}
				score, err := parseScore(rest)
				if err != nil {
					return Judgment{}, err
				}
				j.Score = score
				scoreSeen = true
				current = sectionNone
			case "RATIONALE":
				current = sectionRationale
				if rest != "" {
					rationale = append(rationale, rest)
				}
			case "ISSUES":
				current = sectionIssues
				if issue, ok := parseIssue(dimension, rest); ok {
					j.Issues = append(j.Issues, issue)
				}
			case "SUGGESTIONS":
				current = sectionSuggestions
				if s, ok := listItem(rest); ok {
					j.Suggestions = append(j.Suggestions, s)
				}
			}
			continue
		}

		switch current {
		case sectionRationale:
			rationale = append(rationale, line)
		case sectionIssues:
			if issue, ok := parseIssue(dimension, line); ok {
				j.Issues = append(j.Issues, issue)
			}
		case sectionSuggestions:
			if s, ok := listItem(line); ok {
				j.Suggestions = append(j.Suggestions, s)
			}
		}
	}

	if !scoreSeen {
		return Judgment{}, parseErrorf("missing SCORE line")
	}
	j.Rationale = strings.Join(rationale, " ")

	if err := j.Validate(); err != nil {
		return Judgment{}, parseErrorf("%v", err)
	}
	return j, nil
}

// splitHeader recognises "SCORE: 8", "**Score:** 8" and "## ISSUES:" style headers.
// A list item such as "* Score: ..." is never a header.
func splitHeader(line string) (key, rest string, ok bool) {
	if itemRe.MatchString(line) {
		return "", "", false
	}
	cleaned := strings.TrimLeft(line, "#*> \t")
	idx := strings.Index(cleaned, ":")
	if idx < 0 {
		return "", "", false
	}
	key = strings.ToUpper(strings.Trim(cleaned[:idx], "*_ \t"))
	switch key {
	case "SCORE", "RATIONALE", "ISSUES", "SUGGESTIONS":
	default:
		return "", "", false
	}
	rest = strings.TrimSpace(strings.Trim(cleaned[idx+1:], "*_ \t"))
	return key, rest, true
}

func parseScore(s string) (int, error) {
	m := scoreRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, parseErrorf("score %q is not a number", s)
	}
	v, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
	if err != nil {
		return 0, parseErrorf("score %q: %v", s, err)
	}
	if v < rawScoreMin || v > rawScoreMax {
		return 0, parseErrorf("score %v outside [%d, %d]", v, rawScoreMin, rawScoreMax)
	}
	return int(math.Round(v * rawScoreScale)), nil
}

// listItem strips bullet markers and drops empty or placeholder entries.
func listItem(line string) (string, bool) {
	item := strings.TrimSpace(bulletRe.ReplaceAllString(strings.TrimSpace(line), ""))
	if item == "" || placeholders[strings.ToLower(strings.TrimRight(item, "."))] {
		return "", false
	}
	return item, true
}

func parseIssue(dimension, line string) (Issue, bool) {
	item, ok := listItem(line)
	if !ok {
		return Issue{}, false
	}

	severity := SeverityMedium
	if m := severityRe.FindStringSubmatch(item); m != nil {
		if sev, known := parseSeverity(m[1]); known {
			severity = sev
			item = strings.TrimSpace(item[len(m[0]):])
		}
	}
	if item == "" {
		return Issue{}, false
	}

	return Issue{Dimension: dimension, Description: item, Severity: severity}, true
}

func parseSeverity(s string) (Severity, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high", "alta", "alto", "critical", "crítica", "critica", "major":
		return SeverityHigh, true
	case "medium", "media", "medio", "moderate", "moderada":
		return SeverityMedium, true
	case "low", "baja", "bajo", "minor", "menor":
		return SeverityLow, true
	}
	return "", false
}
