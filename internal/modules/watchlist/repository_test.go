package watchlist

import (
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"stockwatch/internal/database"
	"stockwatch/internal/domain"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(database.Schema())
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO users (id, handle) VALUES ('u1', 'alice')`)
	require.NoError(t, err)

	return db
}

func newTestRepo(t *testing.T) *Repository {
	return NewRepository(setupTestDB(t), zerolog.Nop())
}

func TestEnsureTracked_Idempotent(t *testing.T) {
	repo := newTestRepo(t)

	require.NoError(t, repo.EnsureTracked("u1", "TCS.NS"))
	require.NoError(t, repo.EnsureTracked("u1", "TCS.NS"))

	symbols, err := repo.Symbols("u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"TCS.NS"}, symbols)

	target, err := repo.Get("u1", "TCS.NS")
	require.NoError(t, err)
	assert.Nil(t, target.State(), "a fresh target has no comparable state")
	assert.False(t, target.HasUnreadUpdate)
}

func TestGet_UnknownTarget(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.Get("u1", "NOPE.NS")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSaveState_RoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	require.NoError(t, repo.EnsureTracked("u1", "TCS.NS"))

	err := repo.SaveState("u1", "TCS.NS", StateUpdate{
		Price:         251.30,
		ChangePercent: 1.8,
		Sentiment:     domain.SentimentAccumulation,
		Summary:       "TCS.NS moved",
		Unread:        true,
		Chart: &domain.ChartArtifact{
			Filename:    "TCS.NS.png",
			ContentType: "image/png",
			Data:        []byte{0x89, 0x50, 0x4e, 0x47},
		},
	})
	require.NoError(t, err)

	target, err := repo.Get("u1", "TCS.NS")
	require.NoError(t, err)

	require.NotNil(t, target.LastKnownPrice)
	assert.Equal(t, 251.30, *target.LastKnownPrice)
	require.NotNil(t, target.LastKnownChangePercent)
	assert.Equal(t, 1.8, *target.LastKnownChangePercent)
	require.NotNil(t, target.LastKnownSentiment)
	assert.Equal(t, domain.SentimentAccumulation, *target.LastKnownSentiment)
	assert.Equal(t, "TCS.NS moved", target.LastUpdateSummary)
	assert.True(t, target.HasUnreadUpdate)
	require.NotNil(t, target.Chart)
	assert.Equal(t, "TCS.NS.png", target.Chart.Filename)
	assert.Equal(t, []byte{0x89, 0x50, 0x4e, 0x47}, target.Chart.Data)

	state := target.State()
	require.NotNil(t, state)
	assert.Equal(t, 1.8, *state.ChangePercent)
}

func TestSaveState_LiveDeliveryLeavesUnreadAlone(t *testing.T) {
	repo := newTestRepo(t)
	require.NoError(t, repo.EnsureTracked("u1", "TCS.NS"))

	err := repo.SaveState("u1", "TCS.NS", StateUpdate{
		Price:         250,
		ChangePercent: 0.5,
		Sentiment:     domain.SentimentNeutral,
		Summary:       "quiet",
	})
	require.NoError(t, err)

	target, err := repo.Get("u1", "TCS.NS")
	require.NoError(t, err)
	assert.False(t, target.HasUnreadUpdate)
}

func TestSaveState_MissingTargetFails(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.SaveState("u1", "NOPE.NS", StateUpdate{Price: 1})
	assert.ErrorIs(t, err, domain.ErrPersistence)
}

func TestUnreadLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	require.NoError(t, repo.EnsureTracked("u1", "TCS.NS"))
	require.NoError(t, repo.EnsureTracked("u1", "INFY.NS"))

	require.NoError(t, repo.SaveState("u1", "TCS.NS", StateUpdate{
		Price: 250, Sentiment: domain.SentimentNeutral, Summary: "a", Unread: true,
	}))
	require.NoError(t, repo.SaveState("u1", "INFY.NS", StateUpdate{
		Price: 1500, Sentiment: domain.SentimentNeutral, Summary: "b",
	}))

	unread, err := repo.UnreadUpdates("u1")
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.Equal(t, "TCS.NS", unread[0].Symbol)

	require.NoError(t, repo.MarkRead("u1", "TCS.NS"))

	unread, err = repo.UnreadUpdates("u1")
	require.NoError(t, err)
	assert.Empty(t, unread)
}

func TestService_ChartLookup(t *testing.T) {
	repo := newTestRepo(t)
	svc := NewService(repo, zerolog.Nop())

	require.NoError(t, svc.Track("u1", "tcs.ns"))

	_, err := svc.Chart("u1", "TCS.NS")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, repo.SaveState("u1", "TCS.NS", StateUpdate{
		Price: 250, Sentiment: domain.SentimentNeutral, Summary: "a",
		Chart: &domain.ChartArtifact{Filename: "TCS.NS.png", Data: []byte{1}},
	}))

	chart, err := svc.Chart("u1", "TCS.NS")
	require.NoError(t, err)
	assert.Equal(t, "TCS.NS.png", chart.Filename)
}
