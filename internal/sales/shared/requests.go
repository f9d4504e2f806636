package shared

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	masterShared "github.com/odyssey-erp/odyssey-crm/internal/masterdata/shared"
	internalShared "github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// ListFilters narrows document listings.
type ListFilters struct {
	internalShared.PageRequest
	CustomerID *int64
	Status     string
	Search     string
	SortBy     string
	SortDir    string
}

// ParseListFilters reads page, customer_id, status, search, sort and dir.
func ParseListFilters(r *http.Request) ListFilters {
	q := r.URL.Query()
	f := ListFilters{
		PageRequest: internalShared.ParsePageRequest(r),
		Status:      strings.TrimSpace(q.Get("status")),
		Search:      strings.TrimSpace(q.Get("search")),
		SortBy:      q.Get("sort"),
		SortDir:     q.Get("dir"),
	}
	if raw := q.Get("customer_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			f.CustomerID = &id
		}
	}
	return f
}

// Where renders the predicates shared by every document table.
func (f ListFilters) Where() masterShared.Where {
	var where masterShared.Where
	if f.CustomerID != nil {
		where.Add("customer_id = ?", *f.CustomerID)
	}
	if f.Status != "" {
		where.Add("status = ?", f.Status)
	}
	if f.Search != "" {
		where.Add("code ILIKE ?", "%"+f.Search+"%")
	}
	return where
}

// IdempotencyKey returns the trimmed Idempotency-Key header.
func IdempotencyKey(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(internalShared.IdempotencyHeader))
}

// ClaimIdempotencyKey records key for module inside the current transaction.
// Requests without a key or services without a guard are not deduplicated.
func ClaimIdempotencyKey(ctx context.Context, guard internalShared.IdempotencyGuard, key, module string) error {
	if guard == nil || key == "" {
		return nil
	}
	return guard.CheckAndInsert(ctx, key, module)
}
