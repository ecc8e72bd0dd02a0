package contacts

import (
	"sort"
	"strings"

	"github.com/angelmondragon/contactbook-backend/pkg/pagination"
	"golang.org/x/text/cases"
)

// Query selects a page of contacts.
type Query struct {
	Text         string
	FavoriteOnly bool
	Page         int
	PageSize     int
}

// Page is one slice of the filtered, sorted collection. Total counts the
// filtered set, not the whole collection.
type Page struct {
	Items    []Contact `json:"data"`
	Total    int64     `json:"total"`
	Page     int       `json:"page"`
	PageSize int       `json:"pageSize"`
}

// Normalize trims the search text and clamps paging inputs into limits.
func (q Query) Normalize(limits pagination.Limits) Query {
	params := limits.Normalize(pagination.Params{Page: q.Page, PageSize: q.PageSize})
	q.Text = strings.TrimSpace(q.Text)
	q.Page = params.Page
	q.PageSize = params.PageSize
	return q
}

func (q Query) params() pagination.Params {
	return pagination.Params{Page: q.Page, PageSize: q.PageSize}
}

// matcher tests records against a case-folded needle.
type matcher struct {
	needle       string
	favoriteOnly bool
}

func newMatcher(q Query) matcher {
	return matcher{
		needle:       cases.Fold().String(q.Text),
		favoriteOnly: q.FavoriteOnly,
	}
}

func (m matcher) match(c Contact) bool {
	if m.favoriteOnly && !c.Favorite {
		return false
	}
	if m.needle == "" {
		return true
	}
	fold := cases.Fold()
	for _, field := range [...]string{c.Name, c.Phone, c.Email, c.SocialAccount, c.Address} {
		if strings.Contains(fold.String(field), m.needle) {
			return true
		}
	}
	return false
}

// Run filters, orders and paginates items. Items must be in insertion order
// so that the stable sort breaks updatedAt ties by insertion.
func Run(items []Contact, q Query, limits pagination.Limits) Page {
	q = q.Normalize(limits)
	m := newMatcher(q)

	filtered := make([]Contact, 0, len(items))
	for _, c := range items {
		if m.match(c) {
			filtered = append(filtered, c)
		}
	}
	sortByRecency(filtered)

	start, end := q.params().Window(len(filtered))
	page := make([]Contact, end-start)
	copy(page, filtered[start:end])

	return Page{
		Items:    page,
		Total:    int64(len(filtered)),
		Page:     q.Page,
		PageSize: q.PageSize,
	}
}

func sortByRecency(items []Contact) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].UpdatedAt.After(items[j].UpdatedAt)
	})
}

// sortByName orders contacts for export by name, then id.
func sortByName(items []Contact) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Name != items[j].Name {
			return items[i].Name < items[j].Name
		}
		return items[i].ID < items[j].ID
	})
}

// likePattern escapes SQL LIKE wildcards in an already folded needle and wraps
// it for a substring match with ESCAPE '\'.
func likePattern(folded string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(folded) + "%"
}
