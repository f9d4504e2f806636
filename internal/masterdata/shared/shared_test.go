package shared

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	internalShared "github.com/odyssey-erp/odyssey-crm/internal/shared"
)

func TestWhereBuilder(t *testing.T) {
	var w Where
	assert.Equal(t, "", w.SQL())

	w.Add("(name ILIKE ? OR code ILIKE ?)", "%acme%")
	w.Add("department_id = ?", int64(3))
	assert.Equal(t, " WHERE (name ILIKE $1 OR code ILIKE $1) AND department_id = $2", w.SQL())

	clause, args := w.Page(internalShared.PageRequest{Page: 2, PerPage: 10})
	assert.Equal(t, " LIMIT $3 OFFSET $4", clause)
	assert.Equal(t, []any{"%acme%", int64(3), 10, 10}, args)
	assert.Len(t, w.Args(), 2)
}

func TestOrderBy(t *testing.T) {
	allowed := map[string]string{"name": "name", "code": "code"}
	assert.Equal(t, " ORDER BY code DESC", OrderBy("code", "desc", allowed, "id"))
	assert.Equal(t, " ORDER BY id ASC", OrderBy("id; DROP TABLE users", "sideways", allowed, "id"))
}

func TestParseListFilters(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?search=+acme+&department_id=4&is_active=false&page=2", nil)
	f := ParseListFilters(r)
	assert.Equal(t, "acme", f.Search)
	assert.Equal(t, int64(4), *f.DepartmentID)
	assert.False(t, *f.IsActive)
	assert.Equal(t, 2, f.Page)
}

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		raw    string
		region string
		want   string
		ok     bool
	}{
		{"", "IN", "", true},
		{"081234 56789", "IN", "+918123456789", true},
		{"+1 650-253-0000", "IN", "+16502530000", true},
		{"12345", "IN", "12345", false},
		{"not a phone", "", "not a phone", false},
	}
	for _, tc := range cases {
		got, ok := NormalizePhone(tc.raw, tc.region)
		assert.Equal(t, tc.ok, ok, tc.raw)
		assert.Equal(t, tc.want, got, tc.raw)
	}
}
