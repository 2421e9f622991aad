package syncx

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-quiz/internal/db"
)

func TestEventRepo_SinceIsPerSite(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(ctx, db.DriverSQLite, "file:events_"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	north, south := NewEventRepo("north"), NewEventRepo("south")
	require.NoError(t, north.Append(ctx, conn, TypeAnswerSubmitted, "a1", map[string]any{"ok": true}))
	require.NoError(t, south.Append(ctx, conn, TypeAnswerSubmitted, "a2", map[string]any{"ok": false}))
	require.NoError(t, north.Append(ctx, conn, TypeQuizCompleted, "p1", map[string]any{"score": 100}))

	evs, err := north.Since(ctx, conn, 0, 10)
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, "a1", evs[0].Key)
	assert.Equal(t, "p1", evs[1].Key)
	for _, e := range evs {
		assert.Equal(t, "north", e.SiteID)
	}
	assert.JSONEq(t, `{"score":100}`, evs[1].DataJSON)

	evs, err = north.Since(ctx, conn, evs[0].Seq, 10)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, TypeQuizCompleted, evs[0].Type)

	evs, err = south.Since(ctx, conn, 0, 10)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, "a2", evs[0].Key)

	assert.Equal(t, "local", NewEventRepo("").siteID)
}
