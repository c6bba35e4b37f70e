package compliance

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sidkik/treeaudit/pkg/tree"
)

// Category is a kind of naming issue.
type Category string

const (
	Lowercase         Category = "lowercase"
	NoExtension       Category = "no-extension"
	YearMonthDot      Category = "year-month-dot"
	YearMonthDash     Category = "year-month-dash"
	YearOnly          Category = "year-only"
	YearDash          Category = "year-dash"
	ContainsCNIS      Category = "cnis"
	NotNumberedSuffix Category = "not-numbered-suffix"
)

// Categories lists the per-entry categories in report order.
var Categories = []Category{
	Lowercase,
	NoExtension,
	YearMonthDot,
	YearMonthDash,
	YearOnly,
	YearDash,
	ContainsCNIS,
}

// Description returns a human readable description of the category.
func (c Category) Description() string {
	switch c {
	case Lowercase:
		return "Files/Folders with lowercase letters"
	case NoExtension:
		return "Files without extensions"
	case YearMonthDot:
		return "Files/Folders with pattern 'YYYY.MM.'"
	case YearMonthDash:
		return "Files/Folders with pattern 'YYYY.MM-'"
	case YearOnly:
		return "Files/Folders with just year (YYYY)"
	case YearDash:
		return "Files/Folders with pattern 'YYYY-'"
	case ContainsCNIS:
		return "Files/Folders containing 'CNIS'"
	case NotNumberedSuffix:
		return "Folders and files without a numbered suffix"
	}
	return string(c)
}

// Violation pairs an entry's path with one of its naming issues.
type Violation struct {
	Path     string
	Category Category
}

var numberedSuffix = regexp.MustCompile(`\(\p{Nd}+\)$`)

// A year must stand on its own, where letters of any script, digits and
// underscores all count as part of a word.
const standaloneYear = `(?:^|[^\p{L}\p{N}_])\p{Nd}{4}(?:$|[^\p{L}\p{N}_])`

// datePatterns are checked in order, and only the first match counts.
var datePatterns = []struct {
	pattern  *regexp.Regexp
	category Category
}{
	{regexp.MustCompile(`\p{Nd}{4}\.01\.`), YearMonthDot},
	{regexp.MustCompile(`\p{Nd}{4}\.01-`), YearMonthDash},
	{regexp.MustCompile(standaloneYear), YearOnly},
	{regexp.MustCompile(`\p{Nd}{4}-`), YearDash},
}

// HasNumberedSuffix returns whether `name` ends in a parenthesized number,
// e.g. "ACME LTDA (1234)".
func HasNumberedSuffix(name string) bool {
	return numberedSuffix.MatchString(name)
}

// Classify returns the naming issues for an entry. Only the name and kind are
// considered.
func Classify(name string, kind tree.Kind) []Category {
	var categories []Category
	if name != upper(name) {
		categories = append(categories, Lowercase)
	}

	if kind == tree.KindFile && !strings.Contains(name, ".") {
		categories = append(categories, NoExtension)
	}

	for _, date := range datePatterns {
		if date.pattern.MatchString(name) {
			categories = append(categories, date.category)
			break
		}
	}

	if strings.Contains(name, "CNIS") {
		categories = append(categories, ContainsCNIS)
	}
	return categories
}

// upper applies the full Unicode case mapping, so that "ß" becomes "SS".
func upper(name string) string {
	return cases.Upper(language.Und).String(name)
}
