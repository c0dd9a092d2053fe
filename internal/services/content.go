package services

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/AnshRaj112/estatehub-backend/internal/models"
	"github.com/charmbracelet/log"
)

// contentRule is a compiled content filter.
type contentRule struct {
	pattern   string
	matchType models.MatchType
	lowered   string
	words     string
	re        *regexp.Regexp
}

// compileContentRules prepares filters for matching. Regex filters that do
// not compile are skipped with a warning so one bad row can't disable
// validation.
func compileContentRules(filters []models.Entry, logger *log.Logger) []contentRule {
	rules := make([]contentRule, 0, len(filters))
	for _, f := range filters {
		if strings.TrimSpace(f.Pattern) == "" {
			continue
		}
		rule := contentRule{pattern: f.Pattern, matchType: f.MatchType}
		switch f.MatchType {
		case models.MatchRegex:
			re, err := regexp.Compile("(?i)" + f.Pattern)
			if err != nil {
				logger.Warn("skipping invalid content filter regex", "id", f.ID, "pattern", f.Pattern, "err", err)
				continue
			}
			rule.re = re
		case models.MatchExact:
			rule.words = NormalizeWords(f.Pattern)
			if rule.words == "" {
				continue
			}
		default:
			rule.matchType = models.MatchContains
			rule.lowered = strings.ToLower(f.Pattern)
		}
		rules = append(rules, rule)
	}
	return rules
}

// matchContent returns the first rule that matches text.
func matchContent(rules []contentRule, text string) (string, bool) {
	lowered := strings.ToLower(text)
	words := NormalizeWords(text)
	for _, rule := range rules {
		if rule.matches(lowered, words) {
			return rule.pattern, true
		}
	}
	return "", false
}

func (r contentRule) matches(lowered, words string) bool {
	switch r.matchType {
	case models.MatchRegex:
		return r.re.MatchString(lowered)
	case models.MatchExact:
		return ContainsWholePhrase(words, r.words)
	default:
		return strings.Contains(lowered, r.lowered)
	}
}

// NormalizeWords lower-cases text, turns everything that is not a letter or
// digit into a separator and collapses runs of separators.
// "Call NOW!!  free-money" -> "call now free money"
func NormalizeWords(text string) string {
	var builder strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			builder.WriteRune(r)
		} else {
			builder.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(builder.String()), " ")
}

// ContainsWholePhrase reports whether phrase occurs in text on word
// boundaries. Both must already be normalized; "skill" does not contain "kill".
func ContainsWholePhrase(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	if text == phrase {
		return true
	}

	// Single word - check if it appears as a complete word
	if !strings.Contains(phrase, " ") {
		for _, w := range strings.Fields(text) {
			if w == phrase {
				return true
			}
		}
		return false
	}

	// Multi-word phrase - pad so the match can't start or end mid-word
	return strings.Contains(" "+text+" ", " "+phrase+" ")
}
