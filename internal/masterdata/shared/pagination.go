package shared

import (
	"net/http"
	"strconv"
	"strings"

	internalShared "github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// ListFilters represents standard list page filters
type ListFilters struct {
	internalShared.PageRequest
	Search  string
	SortBy  string
	SortDir string

	// Entity specific filters
	DepartmentID *int64
	IsActive     *bool
}

// ParseListFilters reads the standard list query parameters.
func ParseListFilters(r *http.Request) ListFilters {
	q := r.URL.Query()
	f := ListFilters{
		PageRequest: internalShared.ParsePageRequest(r),
		Search:      strings.TrimSpace(q.Get("search")),
		SortBy:      q.Get("sort"),
		SortDir:     q.Get("dir"),
	}
	if raw := q.Get("department_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			f.DepartmentID = &id
		}
	}
	if raw := q.Get("is_active"); raw != "" {
		active := raw == "true"
		f.IsActive = &active
	}
	return f
}

// Where accumulates SQL predicates with positional arguments.
type Where struct {
	clauses []string
	args    []any
}

// Add appends a predicate; every "?" in clause is bound to value.
func (w *Where) Add(clause string, value any) {
	w.args = append(w.args, value)
	w.clauses = append(w.clauses, strings.ReplaceAll(clause, "?", "$"+strconv.Itoa(len(w.args))))
}

// SQL renders the WHERE clause, empty when no predicate was added.
func (w *Where) SQL() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// Args returns the bound arguments.
func (w *Where) Args() []any {
	return append([]any(nil), w.args...)
}

// Page renders LIMIT/OFFSET placeholders following the bound arguments and
// returns the arguments including the window.
func (w *Where) Page(p internalShared.PageRequest) (string, []any) {
	n := len(w.args)
	args := append(w.Args(), p.Limit(), p.Offset())
	return " LIMIT $" + strconv.Itoa(n+1) + " OFFSET $" + strconv.Itoa(n+2), args
}

// OrderBy returns a safe ORDER BY expression. Unknown columns fall back to
// fallback.
func OrderBy(sortBy, sortDir string, allowed map[string]string, fallback string) string {
	dir := "ASC"
	if sortDir == SortDesc {
		dir = "DESC"
	}
	column, ok := allowed[sortBy]
	if !ok {
		column = fallback
	}
	return " ORDER BY " + column + " " + dir
}
