package pagination

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+50))
	assert.Equal(t, 10, NormalizeLimit(10))
	assert.Equal(t, 11, LimitWithBuffer(10))
}

func TestCursorRoundTrip(t *testing.T) {
	at := time.Date(2026, 10, 17, 9, 30, 0, 123, time.UTC)
	id := uuid.New()

	parsed, err := ParseCursor(EncodeCursor(Cursor{CreatedAt: at, ID: id}))
	require.NoError(t, err)
	require.NotNil(t, parsed)
	assert.True(t, parsed.CreatedAt.Equal(at))
	assert.Equal(t, id, parsed.ID)
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	c, err := ParseCursor("  ")
	require.NoError(t, err)
	assert.Nil(t, c)

	_, err = ParseCursor("%%%")
	assert.ErrorIs(t, err, ErrInvalidCursor)

	_, err = ParseCursor(EncodeCursor(Cursor{CreatedAt: time.Now()})[:6])
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestEncodeCursorIsURLSafe(t *testing.T) {
	token := EncodeCursor(Cursor{CreatedAt: time.Now(), ID: uuid.New()})
	assert.NotContains(t, token, "+")
	assert.NotContains(t, token, "/")
	assert.NotContains(t, token, "=")
}

type row struct {
	id uuid.UUID
	at time.Time
}

func TestBuildPageTrimsLookaheadRow(t *testing.T) {
	base := time.Now().UTC()
	rows := []row{
		{id: uuid.New(), at: base},
		{id: uuid.New(), at: base.Add(-time.Minute)},
		{id: uuid.New(), at: base.Add(-2 * time.Minute)},
	}
	page := BuildPage(rows, 2, func(r row) Cursor { return Cursor{CreatedAt: r.at, ID: r.id} })

	require.Len(t, page.Items, 2)
	next, err := ParseCursor(page.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, rows[1].id, next.ID)

	last := BuildPage(rows[:1], 2, func(r row) Cursor { return Cursor{CreatedAt: r.at, ID: r.id} })
	assert.Empty(t, last.NextCursor)

	empty := BuildPage[row](nil, 2, func(r row) Cursor { return Cursor{} })
	assert.NotNil(t, empty.Items)
}

type listing struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string
	CreatedAt time.Time
}

func TestFetchWalksPagesNewestFirst(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:page_%s?mode=memory&cache=shared", uuid.NewString())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&listing{}))

	base := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, conn.Create(&listing{ID: uuid.New(), Name: fmt.Sprintf("item-%d", i), CreatedAt: base.Add(time.Duration(i) * time.Minute)}).Error)
	}
	cursorOf := func(l listing) Cursor { return Cursor{CreatedAt: l.CreatedAt, ID: l.ID} }

	var names []string
	params := Params{Limit: 2}
	for pages := 0; pages < 5; pages++ {
		page, err := Fetch(conn.Model(&listing{}), params, cursorOf)
		require.NoError(t, err)
		for _, item := range page.Items {
			names = append(names, item.Name)
		}
		if page.NextCursor == "" {
			break
		}
		params.Cursor = page.NextCursor
	}
	assert.Equal(t, []string{"item-4", "item-3", "item-2", "item-1", "item-0"}, names)

	_, err = Fetch(conn.Model(&listing{}), Params{Cursor: "!!"}, cursorOf)
	assert.ErrorIs(t, err, ErrInvalidCursor)
}
