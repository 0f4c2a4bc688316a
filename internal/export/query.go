package export

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/ashureev/jailbreak-datagen/internal/domain"
)

// SortField names a column a dataset view can be ordered by.
type SortField string

const (
	SortNone      SortField = ""
	SortCategory  SortField = "category"
	SortSuccess   SortField = "attackSuccess"
	SortSeverity  SortField = "severity"
	SortTechnique SortField = "attackTechnique"
)

// Query filters, searches and sorts a dataset. The zero value selects every
// record in stream order.
type Query struct {
	Category domain.Category
	Severity domain.Severity
	Success  *bool
	Search   string
	Sort     SortField
	Desc     bool
}

// ParseQuery builds a Query from string parameters. Empty values and "all"
// disable a filter.
func ParseQuery(category, severity, success, search, sort, direction string) (Query, error) {
	var q Query

	if category != "" && category != "all" {
		q.Category = domain.Category(category)
		if !q.Category.Valid() {
			return Query{}, fmt.Errorf("unknown category %q", category)
		}
	}
	if severity != "" && severity != "all" {
		q.Severity = domain.Severity(severity)
		if q.Severity.Rank() == 0 {
			return Query{}, fmt.Errorf("unknown severity %q", severity)
		}
	}
	if success != "" && success != "all" {
		b, err := strconv.ParseBool(success)
		if err != nil {
			return Query{}, fmt.Errorf("invalid success filter %q", success)
		}
		q.Success = &b
	}
	q.Search = strings.TrimSpace(search)

	switch SortField(sort) {
	case SortNone, SortCategory, SortSuccess, SortSeverity, SortTechnique:
		q.Sort = SortField(sort)
	default:
		return Query{}, fmt.Errorf("unknown sort field %q", sort)
	}
	switch direction {
	case "", "asc":
	case "desc":
		q.Desc = true
	default:
		return Query{}, fmt.Errorf("invalid sort direction %q", direction)
	}
	return q, nil
}

// Apply returns the matching records in a new slice. The input is not modified.
func (q Query) Apply(examples []domain.GeneratedExample) []domain.GeneratedExample {
	needle := strings.ToLower(q.Search)

	out := make([]domain.GeneratedExample, 0, len(examples))
	for _, ex := range examples {
		if q.Category != "" && ex.Category != q.Category {
			continue
		}
		if q.Severity != "" && ex.Severity != q.Severity {
			continue
		}
		if q.Success != nil && ex.AttackSuccess != *q.Success {
			continue
		}
		if needle != "" && !matches(ex, needle) {
			continue
		}
		out = append(out, ex)
	}

	if q.Sort != SortNone {
		slices.SortStableFunc(out, func(a, b domain.GeneratedExample) int {
			c := compare(q.Sort, a, b)
			if q.Desc {
				return -c
			}
			return c
		})
	}
	return out
}

func matches(ex domain.GeneratedExample, needle string) bool {
	for _, field := range []string{ex.AttackPrompt, ex.AttackTechnique, ex.Notes, ex.Subcategory} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

func compare(field SortField, a, b domain.GeneratedExample) int {
	switch field {
	case SortCategory:
		return cmp.Compare(a.Category, b.Category)
	case SortSuccess:
		return cmp.Compare(boolRank(a.AttackSuccess), boolRank(b.AttackSuccess))
	case SortSeverity:
		return cmp.Compare(a.Severity.Rank(), b.Severity.Rank())
	case SortTechnique:
		return cmp.Compare(strings.ToLower(a.AttackTechnique), strings.ToLower(b.AttackTechnique))
	}
	return 0
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}
