package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockwatch/internal/database"
	"stockwatch/internal/domain"
	"stockwatch/internal/modules/portfolio"
	"stockwatch/internal/modules/push"
	"stockwatch/internal/modules/users"
	"stockwatch/internal/modules/watchlist"
	"stockwatch/internal/notify"
)

func setupServer(t *testing.T) (*Server, *watchlist.Repository) {
	t.Helper()

	log := zerolog.Nop()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := database.New(database.Config{Path: dbPath, Name: "test"})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() {
		_ = db.Close()
		_ = os.Remove(dbPath)
	})

	watchRepo := watchlist.NewRepository(db.Conn(), log)
	srv := New(Config{
		Port:      0,
		Log:       log,
		DB:        db,
		Users:     users.NewRepository(db.Conn(), log),
		Watchlist: watchlist.NewService(watchRepo, log),
		Portfolio: portfolio.NewService(portfolio.NewRepository(db.Conn(), log), log),
		Push:      push.NewRepository(db.Conn(), log),
		Registry:  notify.NewRegistry(log),
	})

	return srv, watchRepo
}

func doJSON(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	return rec
}

func createUser(t *testing.T, srv *Server) string {
	t.Helper()

	rec := doJSON(t, srv, http.MethodPost, "/api/users", map[string]string{"handle": "alice"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp["id"].(string)
}

func TestCreateUser(t *testing.T) {
	srv, _ := setupServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/users", map[string]string{"handle": "alice"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "alice", resp["handle"])
	assert.Equal(t, true, resp["subscribed"])
	assert.NotEmpty(t, resp["id"])
}

func TestCreateUser_MissingHandle(t *testing.T) {
	srv, _ := setupServer(t)

	rec := doJSON(t, srv, http.MethodPost, "/api/users", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWatchlistFlow(t *testing.T) {
	srv, _ := setupServer(t)
	userID := createUser(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/api/users/"+userID+"/watchlist",
		map[string]string{"symbol": "tcs.ns"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/users/"+userID+"/watchlist", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Symbols []string `json:"symbols"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"TCS.NS"}, resp.Symbols)
}

func TestPortfolioFlow(t *testing.T) {
	srv, _ := setupServer(t)
	userID := createUser(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/api/users/"+userID+"/portfolio/buy",
		map[string]interface{}{"symbol": "TCS.NS", "price": 100.0, "quantity": 10.0})
	require.Equal(t, http.StatusOK, rec.Code)

	// Buying also tracks the symbol
	rec = doJSON(t, srv, http.MethodGet, "/api/users/"+userID+"/watchlist", nil)
	var wl struct {
		Symbols []string `json:"symbols"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &wl))
	assert.Contains(t, wl.Symbols, "TCS.NS")

	rec = doJSON(t, srv, http.MethodGet, "/api/users/"+userID+"/portfolio", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var pf struct {
		Lots []map[string]interface{} `json:"lots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pf))
	require.Len(t, pf.Lots, 1)
	assert.Equal(t, "open", pf.Lots[0]["status"])

	rec = doJSON(t, srv, http.MethodPost, "/api/users/"+userID+"/portfolio/sell",
		map[string]interface{}{"symbol": "TCS.NS", "price": 120.0})
	require.Equal(t, http.StatusOK, rec.Code)

	var sold struct {
		LotsClosed int `json:"lots_closed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sold))
	assert.Equal(t, 1, sold.LotsClosed)

	rec = doJSON(t, srv, http.MethodPost, "/api/users/"+userID+"/portfolio/sell",
		map[string]interface{}{"symbol": "TCS.NS", "price": 120.0})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdatesAndReadAck(t *testing.T) {
	srv, watchRepo := setupServer(t)
	userID := createUser(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/api/users/"+userID+"/watchlist",
		map[string]string{"symbol": "TCS.NS"})
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, watchRepo.SaveState(userID, "TCS.NS", watchlist.StateUpdate{
		Price:   250,
		Summary: "TCS.NS moved",
		Unread:  true,
	}))

	rec = doJSON(t, srv, http.MethodGet, "/api/users/"+userID+"/updates", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Updates []map[string]interface{} `json:"updates"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Updates, 1)
	assert.Equal(t, "TCS.NS", resp.Updates[0]["symbol"])

	rec = doJSON(t, srv, http.MethodPost, "/api/users/"+userID+"/updates/TCS.NS/read", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/api/users/"+userID+"/updates", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Updates)
}

func TestChartEndpoint(t *testing.T) {
	srv, watchRepo := setupServer(t)
	userID := createUser(t, srv)

	rec := doJSON(t, srv, http.MethodGet, "/api/users/"+userID+"/charts/TCS.NS", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	doJSON(t, srv, http.MethodPost, "/api/users/"+userID+"/watchlist",
		map[string]string{"symbol": "TCS.NS"})
	require.NoError(t, watchRepo.SaveState(userID, "TCS.NS", watchlist.StateUpdate{
		Price:   250,
		Summary: "a",
		Chart: &domain.ChartArtifact{
			Filename:    "TCS.NS.png",
			ContentType: "image/png",
			Data:        []byte{0x89, 0x50},
		},
	}))

	rec = doJSON(t, srv, http.MethodGet, "/api/users/"+userID+"/charts/TCS.NS", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, []byte{0x89, 0x50}, rec.Body.Bytes())
}

func TestRegisterPush(t *testing.T) {
	srv, _ := setupServer(t)
	userID := createUser(t, srv)

	rec := doJSON(t, srv, http.MethodPost, "/api/users/"+userID+"/push", map[string]interface{}{
		"endpoint": "https://push.example/ep1",
		"keys":     map[string]string{"p256dh": "k", "auth": "a"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, srv, http.MethodPost, "/api/users/"+userID+"/push", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebSocket_RequiresKnownUser(t *testing.T) {
	srv, _ := setupServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/ws", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, srv, http.MethodGet, "/ws?user_id=missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	srv, _ := setupServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
