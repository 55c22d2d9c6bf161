package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"lifeline/internal/nickname"
	"lifeline/internal/player"
	"lifeline/internal/ranking"
	"lifeline/pkg/clock"
	"lifeline/pkg/logger"
	"lifeline/pkg/store"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type env struct {
	handler http.Handler
	store   *store.MemoryStore
	clock   *clock.Manual
}

func newEnv() *env {
	c := clock.NewManual(t0)
	s := store.NewMemoryStore(c)
	players := player.NewService(s, nickname.New(s, c, logger.Nop()), nil, c, logger.Nop(), player.Config{})
	rankings := ranking.NewService(s, nil, logger.Nop(), ranking.Options{CohortMarker: "ranked"})
	return &env{handler: NewHandler(players, rankings, logger.Nop()), store: s, clock: c}
}

func (e *env) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, httptest.NewRequest(method, path, bytes.NewBufferString(body)))

	var out map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestLoadNewPlayer(t *testing.T) {
	e := newEnv()
	rec, body := e.do(t, http.MethodPost, "/v1/load", `{"sku":"abc123"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, false, body["exists"])
	assert.Equal(t, true, body["isNewUser"])
	assert.Equal(t, float64(5), body["life"])
	assert.Equal(t, float64(0), body["nextRefillIn"])
	assert.Equal(t, float64(5), body["maxLives"])
	assert.Equal(t, float64(900), body["refillInterval"])
	assert.Equal(t, `{"SKU":"abc123","Level":1}`, body["data"])
	assert.NotEmpty(t, body["nickname"])
}

func TestSaveThenLoad(t *testing.T) {
	e := newEnv()
	rec, body := e.do(t, http.MethodPost, "/v1/save",
		`{"sku":"abc123","data":"{\"Level\":3}","life":2,"maxLives":5,"refillInterval":600,"clientVersion":"1.2-ranked","promotionRewardGranted":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]interface{}{"success": true}, body)

	e.clock.Advance(700 * time.Second)
	_, body = e.do(t, http.MethodPost, "/v1/load", `{"sku":"abc123"}`)
	assert.Equal(t, true, body["exists"])
	assert.Equal(t, false, body["isNewUser"])
	assert.Equal(t, float64(3), body["life"])
	assert.Equal(t, float64(500), body["nextRefillIn"])
	assert.Equal(t, float64(600), body["refillInterval"])
	assert.Equal(t, `{"Level":3}`, body["data"])
	assert.Equal(t, true, body["promotionRewardGranted"])
}

func TestSaveAcceptsObjectPayload(t *testing.T) {
	e := newEnv()
	rec, _ := e.do(t, http.MethodPost, "/v1/save", `{"sku":"abc123","data":{"Level":4,"Coins":10},"life":5}`)
	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := e.store.Get(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, `{"Level":4,"Coins":10}`, stored.Payload)
	assert.Equal(t, 4, stored.Level)
}

func TestSaveValidation(t *testing.T) {
	e := newEnv()
	for _, body := range []string{
		`{"data":"{}","life":1}`,
		`{"sku":"abc123","life":1}`,
		`{"sku":"abc123","data":"{}"}`,
		`{"sku":"abc123","data":"{}","life":-3}`,
		`not json`,
	} {
		rec, out := e.do(t, http.MethodPost, "/v1/save", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, false, out["success"], body)
		assert.NotEmpty(t, out["error"], body)
	}
}

func TestRankingEndpoint(t *testing.T) {
	e := newEnv()
	ctx := context.Background()
	for _, seed := range []struct {
		id      string
		level   int
		at      time.Time
		version string
	}{
		{"late", 7, t0.Add(time.Minute), "1.0-ranked"},
		{"early", 7, t0, "1.0-ranked"},
		{"casual", 9, t0, "1.0"},
	} {
		_, err := e.store.Create(ctx, seed.id, store.Fields{
			store.FieldLevel:           seed.level,
			store.FieldFirstAchievedAt: seed.at,
			store.FieldClientVersion:   seed.version,
			store.FieldNickname:        "nick-" + seed.id,
		})
		require.NoError(t, err)
	}

	rec, body := e.do(t, http.MethodGet, "/v1/ranking?sku=casual", "")
	require.Equal(t, http.StatusOK, rec.Code)

	entries := body["ranking"].([]interface{})
	require.Len(t, entries, 2)
	first := entries[0].(map[string]interface{})
	assert.Equal(t, "early", first["sku"])
	assert.Equal(t, float64(1), first["rank"])
	assert.Equal(t, "nick-early", first["nickname"])

	mine := body["myRank"].(map[string]interface{})
	assert.Equal(t, float64(-1), mine["rank"])
	assert.Equal(t, float64(9), mine["level"])

	_, body = e.do(t, http.MethodGet, "/v1/ranking", "")
	_, present := body["myRank"]
	assert.False(t, present)
}

func TestMethodAndCORS(t *testing.T) {
	e := newEnv()

	rec, _ := e.do(t, http.MethodGet, "/v1/save", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))

	rec, _ = e.do(t, http.MethodPost, "/v1/ranking", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec, _ = e.do(t, http.MethodOptions, "/v1/load", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

type MockPlayers struct{ mock.Mock }

func (m *MockPlayers) Save(ctx context.Context, req player.SaveRequest) (player.SaveResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(player.SaveResult), args.Error(1)
}

func (m *MockPlayers) Load(ctx context.Context, id string) (player.LoadResult, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(player.LoadResult), args.Error(1)
}

func TestStorageErrorIsServerError(t *testing.T) {
	mp := new(MockPlayers)
	mp.On("Load", mock.Anything, "abc123").Return(player.LoadResult{}, &player.StorageError{Op: "load", Err: errors.New("deadline exceeded")})

	h := NewHandler(mp, nil, logger.Nop())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/load", bytes.NewBufferString(`{"sku":"abc123"}`)))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "deadline exceeded")
}

func TestPayloadString(t *testing.T) {
	assert.Equal(t, "", payloadString(nil))
	assert.Equal(t, "", payloadString(json.RawMessage("null")))
	assert.Equal(t, `{"a":1}`, payloadString(json.RawMessage(`"{\"a\":1}"`)))
	assert.Equal(t, `[1,2]`, payloadString(json.RawMessage(`[1,2]`)))
}
