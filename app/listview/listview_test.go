package listview

import (
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

/*
Listview test cases:
1) FromQuery parses search/status/page, defaulting malformed pages to 1
2) 20 records paginate 6/6/6/2 across four pages
3) Page past the end returns an empty slice, not an error
4) Search matches case-insensitively across all provided fields
5) Status filter matches exactly (case-insensitive), combined with search
6) Empty input produces one empty page with no prev/next
*/

type row struct {
	Name   string
	Email  string
	Status string
}

func sampleRows(n int) []row {
	rows := make([]row, 0, n)
	for i := 1; i <= n; i++ {
		status := "active"
		if i%2 == 0 {
			status = "inactive"
		}
		rows = append(rows, row{
			Name:   fmt.Sprintf("Person %02d", i),
			Email:  fmt.Sprintf("person%02d@example.com", i),
			Status: status,
		})
	}
	return rows
}

func rowSearch(r row) []string { return []string{r.Name, r.Email} }
func rowStatus(r row) string   { return r.Status }

func TestFromQuery(t *testing.T) {
	q := url.Values{}
	q.Set("search", "  chen ")
	q.Set("status", "active")
	q.Set("page", "3")

	p := FromQuery(q)
	assert.Equal(t, "chen", p.Search)
	assert.Equal(t, "active", p.Status)
	assert.Equal(t, 3, p.Page)

	assert.Equal(t, 1, FromQuery(url.Values{"page": {"abc"}}).Page)
	assert.Equal(t, 1, FromQuery(url.Values{"page": {"0"}}).Page)
	assert.Equal(t, 1, FromQuery(url.Values{"page": {"-2"}}).Page)
	assert.Equal(t, 1, FromQuery(url.Values{}).Page)
}

func TestApply_Pagination(t *testing.T) {
	rows := sampleRows(20)

	page1 := Apply(rows, Params{Page: 1}, rowSearch, rowStatus)
	assert.Len(t, page1.Data, 6)
	assert.Equal(t, 4, page1.TotalPages)
	assert.Equal(t, 20, page1.TotalRecords)
	assert.True(t, page1.HasNext)
	assert.False(t, page1.HasPrev)
	assert.Equal(t, "Person 01", page1.Data[0].Name)

	page2 := Apply(rows, Params{Page: 2}, rowSearch, rowStatus)
	assert.Len(t, page2.Data, 6)
	assert.Equal(t, "Person 07", page2.Data[0].Name)
	assert.True(t, page2.HasNext)
	assert.True(t, page2.HasPrev)

	page4 := Apply(rows, Params{Page: 4}, rowSearch, rowStatus)
	assert.Len(t, page4.Data, 2)
	assert.False(t, page4.HasNext)
	assert.True(t, page4.HasPrev)
}

func TestApply_PagePastEnd(t *testing.T) {
	rows := sampleRows(20)

	page9 := Apply(rows, Params{Page: 9}, rowSearch, rowStatus)
	require.NotNil(t, page9.Data)
	assert.Len(t, page9.Data, 0)
	assert.Equal(t, 4, page9.TotalPages)
	assert.False(t, page9.HasNext)
}

func TestApply_Search(t *testing.T) {
	rows := sampleRows(20)

	res := Apply(rows, Params{Search: "PERSON 1", Page: 1}, rowSearch, rowStatus)
	// Person 10..19 plus Person 1x emails; names 10-19 match "person 1"
	assert.Equal(t, 10, res.TotalRecords)
	assert.Equal(t, 2, res.TotalPages)

	res = Apply(rows, Params{Search: "person07@", Page: 1}, rowSearch, rowStatus)
	assert.Equal(t, 1, res.TotalRecords)
	assert.Equal(t, "Person 07", res.Data[0].Name)
}

func TestApply_StatusFilter(t *testing.T) {
	rows := sampleRows(20)

	res := Apply(rows, Params{Status: "Active", Page: 1}, rowSearch, rowStatus)
	assert.Equal(t, 10, res.TotalRecords)
	for _, r := range res.Data {
		assert.Equal(t, "active", r.Status)
	}

	res = Apply(rows, Params{Search: "Person 1", Status: "inactive", Page: 1}, rowSearch, rowStatus)
	for _, r := range res.Data {
		assert.Equal(t, "inactive", r.Status)
	}
	assert.Equal(t, 5, res.TotalRecords)
}

func TestApply_Empty(t *testing.T) {
	res := Apply(nil, Params{Page: 1}, rowSearch, rowStatus)
	require.NotNil(t, res.Data)
	assert.Len(t, res.Data, 0)
	assert.Equal(t, 1, res.TotalPages)
	assert.Equal(t, 0, res.TotalRecords)
	assert.False(t, res.HasNext)
	assert.False(t, res.HasPrev)
}
