package option

import (
	"strconv"
	"testing"

	"github.com/smallbiznis/podbudget/pkg/db"
	"github.com/smallbiznis/podbudget/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID   int64 `gorm:"primaryKey"`
	Name string
}

func TestApplyPaginationWalksPages(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&item{}))
	for i := 1; i <= 5; i++ {
		require.NoError(t, conn.Create(&item{ID: int64(i), Name: "n" + strconv.Itoa(i)}).Error)
	}

	var seen []int64
	page := pagination.Pagination{PageSize: 2}
	for {
		var rows []*item
		stmt := ApplyPagination(page).Apply(conn.Model(&item{}))
		require.NoError(t, stmt.Order("id asc").Find(&rows).Error)
		rows, info := pagination.Trim(rows, page.PageSize, func(i *item) string { return strconv.FormatInt(i.ID, 10) })
		for _, r := range rows {
			seen = append(seen, r.ID)
		}
		if !info.HasMore {
			break
		}
		page.PageToken = info.NextPageToken
	}
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, seen)
}

func TestWithSortByIgnoresUnknownColumns(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&item{}))
	require.NoError(t, conn.Create(&[]item{{ID: 1, Name: "b"}, {ID: 2, Name: "a"}}).Error)

	var rows []item
	allow := map[string]bool{"name": true}
	require.NoError(t, WithSortBy(WithQuerySortBy("name; drop table items", "asc", allow)).Apply(conn.Model(&item{})).Find(&rows).Error)
	assert.Equal(t, int64(1), rows[0].ID)

	rows = nil
	require.NoError(t, WithSortBy(WithQuerySortBy("name", "asc", allow)).Apply(conn.Model(&item{})).Find(&rows).Error)
	assert.Equal(t, "a", rows[0].Name)
}
