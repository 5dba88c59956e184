package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestCursorRoundTrip(t *testing.T) {
	in := Cursor{CreatedAt: time.Date(2026, 3, 1, 9, 30, 0, 123000000, time.UTC), ID: uuid.New()}
	out, err := ParseCursor(EncodeCursor(in))
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
	assert.Equal(t, in.ID, out.ID)
}

func TestParseCursorEmptyAndInvalid(t *testing.T) {
	c, err := ParseCursor("  ")
	require.NoError(t, err)
	assert.Nil(t, c)

	for _, bad := range []string{"not-base64!!", "e30", "bm90IGpzb24"} {
		_, err = ParseCursor(bad)
		assert.ErrorIs(t, err, ErrInvalidCursor, bad)
	}
}

func TestEncodedCursorIsURLSafe(t *testing.T) {
	for i := 0; i < 50; i++ {
		token := EncodeCursor(Cursor{CreatedAt: time.Now().Add(time.Duration(i) * time.Hour), ID: uuid.New()})
		assert.NotContains(t, token, "+")
		assert.NotContains(t, token, "/")
		assert.NotContains(t, token, "=")
	}
}

func TestKeysetScopeAgainstSQLite(t *testing.T) {
	type entry struct {
		ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
		CreatedAt time.Time
	}
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, conn.AutoMigrate(&entry{}))

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, conn.Create(&entry{ID: uuid.New(), CreatedAt: base.Add(time.Duration(i) * time.Minute)}).Error)
	}
	cursorOf := func(e entry) Cursor { return Cursor{CreatedAt: e.CreatedAt, ID: e.ID} }

	var seen []entry
	var cursor *Cursor
	for {
		var rows []entry
		require.NoError(t, conn.Scopes(Keyset("", cursor, 2)).Find(&rows).Error)
		page := Trim(rows, 2, cursorOf)
		seen = append(seen, page.Items...)
		if page.NextCursor == "" {
			break
		}
		cursor, err = ParseCursor(page.NextCursor)
		require.NoError(t, err)
	}
	require.Len(t, seen, 5)
	for i := 1; i < len(seen); i++ {
		assert.True(t, seen[i-1].CreatedAt.After(seen[i].CreatedAt))
	}
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+50))
	assert.Equal(t, 7, NormalizeLimit(7))
	assert.Equal(t, 8, LimitWithBuffer(7))
}

func TestTrimEmitsCursorOnlyWhenMoreRows(t *testing.T) {
	type row struct {
		id uuid.UUID
		at time.Time
	}
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := []row{{uuid.New(), base.Add(3 * time.Minute)}, {uuid.New(), base.Add(2 * time.Minute)}, {uuid.New(), base.Add(time.Minute)}}
	cursorOf := func(r row) Cursor { return Cursor{CreatedAt: r.at, ID: r.id} }

	page := Trim(rows, 2, cursorOf)
	require.Len(t, page.Items, 2)
	require.NotEmpty(t, page.NextCursor)
	next, err := ParseCursor(page.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, rows[1].id, next.ID)

	page = Trim(rows, 5, cursorOf)
	assert.Len(t, page.Items, 3)
	assert.Empty(t, page.NextCursor)

	empty := Trim[row](nil, 5, cursorOf)
	assert.NotNil(t, empty.Items)
}
