package videos

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newtube/backend/internal/models"
)

func TestListQueryWithoutCursor(t *testing.T) {
	userID := uuid.New()
	q, args := listQuery(userID, nil, 10)

	assert.Contains(t, q, "WHERE user_id = $1 ORDER BY updated_at DESC, id DESC LIMIT $2")
	assert.NotContains(t, q, "updated_at <")
	assert.Equal(t, []any{userID, 11}, args)
}

func TestListQueryWithCursor(t *testing.T) {
	userID := uuid.New()
	cursor := &models.Cursor{ID: uuid.New(), UpdatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	q, args := listQuery(userID, cursor, 5)

	assert.Contains(t, q, "AND (updated_at < $2 OR (updated_at = $2 AND id < $3))")
	assert.Contains(t, q, "LIMIT $4")
	assert.Equal(t, []any{userID, cursor.UpdatedAt, cursor.ID, 6}, args)
}

func TestUpdateSet(t *testing.T) {
	set, args := updateSet(models.VideoUpdate{})
	assert.Equal(t, "updated_at = NOW()", set)
	assert.Empty(t, args)

	title := "New"
	vis := models.VisibilityPublic
	set, args = updateSet(models.VideoUpdate{Title: &title, Visibility: &vis})
	assert.Equal(t, "updated_at = NOW(), title = $3, visibility = $4", set)
	assert.Equal(t, []any{"New", models.VisibilityPublic}, args)

	set, args = updateSet(models.VideoUpdate{Description: models.Null[string](), CategoryID: models.Some(uuid.Nil)})
	assert.Equal(t, "updated_at = NOW(), description = $3, category_id = $4", set)
	require.Len(t, args, 2)
	assert.Nil(t, args[0].(*string))
	assert.Equal(t, uuid.Nil, *args[1].(*uuid.UUID))
}

func TestPaginate(t *testing.T) {
	rows := make([]models.Video, 4)
	for i := range rows {
		rows[i] = models.Video{ID: uuid.New(), UpdatedAt: time.Unix(int64(100-i), 0)}
	}

	page := Paginate(rows, 3)
	require.Len(t, page.Items, 3)
	require.NotNil(t, page.NextCursor)
	assert.Equal(t, rows[2].ID, page.NextCursor.ID)
	assert.Equal(t, rows[2].UpdatedAt, page.NextCursor.UpdatedAt)

	page = Paginate(rows[:3], 3)
	assert.Len(t, page.Items, 3)
	assert.Nil(t, page.NextCursor)

	page = Paginate(nil, 3)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
	assert.Nil(t, page.NextCursor)
}
