// Package api exposes save, load and ranking over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"lifeline/internal/player"
	"lifeline/internal/ranking"
	"lifeline/pkg/logger"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// PlayerService is the save/load orchestrator.
type PlayerService interface {
	Save(ctx context.Context, req player.SaveRequest) (player.SaveResult, error)
	Load(ctx context.Context, id string) (player.LoadResult, error)
}

// RankingService builds the leaderboard.
type RankingService interface {
	Ranking(ctx context.Context, requesterID string) (ranking.Result, error)
}

// Handler routes the public API.
type Handler struct {
	players  PlayerService
	rankings RankingService
	logger   *logger.Logger
	mux      *http.ServeMux
}

// NewHandler builds the API with permissive CORS.
func NewHandler(p PlayerService, r RankingService, l *logger.Logger) *Handler {
	h := &Handler{players: p, rankings: r, logger: l.Named("api"), mux: http.NewServeMux()}
	h.mux.HandleFunc("/v1/save", h.method(http.MethodPost, h.handleSave))
	h.mux.HandleFunc("/v1/load", h.method(http.MethodPost, h.handleLoad))
	h.mux.HandleFunc("/v1/ranking", h.method(http.MethodGet, h.handleRanking))
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) method(allowed string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != allowed {
			w.Header().Set("Allow", allowed)
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		next(w, r)
	}
}

type saveRequest struct {
	SKU                    string          `json:"sku"`
	Data                   json.RawMessage `json:"data"`
	Life                   *int            `json:"life"`
	MaxLives               int             `json:"maxLives"`
	RefillInterval         int             `json:"refillInterval"`
	ClientVersion          string          `json:"clientVersion"`
	PromotionRewardGranted *bool           `json:"promotionRewardGranted"`
}

type loadRequest struct {
	SKU string `json:"sku"`
}

type loadResponse struct {
	Success                bool   `json:"success"`
	Exists                 bool   `json:"exists"`
	IsNewUser              bool   `json:"isNewUser"`
	Life                   int    `json:"life"`
	NextRefillIn           int    `json:"nextRefillIn"`
	MaxLives               int    `json:"maxLives"`
	RefillInterval         int    `json:"refillInterval"`
	Nickname               string `json:"nickname"`
	Data                   string `json:"data"`
	PromotionRewardGranted bool   `json:"promotionRewardGranted"`
}

type rankingEntry struct {
	Rank     int    `json:"rank"`
	Nickname string `json:"nickname"`
	Level    int    `json:"level"`
	SKU      string `json:"sku"`
}

type rankingResponse struct {
	Success bool           `json:"success"`
	Ranking []rankingEntry `json:"ranking"`
	MyRank  *rankingEntry  `json:"myRank,omitempty"`
}

func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if !h.decode(w, r, &req) {
		return
	}

	_, err := h.players.Save(r.Context(), player.SaveRequest{
		ID:                     req.SKU,
		Payload:                payloadString(req.Data),
		Life:                   req.Life,
		MaxLife:                req.MaxLives,
		RefillInterval:         req.RefillInterval,
		ClientVersion:          req.ClientVersion,
		PromotionRewardGranted: req.PromotionRewardGranted,
	})
	if err != nil {
		h.fail(w, "save", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) handleLoad(w http.ResponseWriter, r *http.Request) {
	var req loadRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.players.Load(r.Context(), req.SKU)
	if err != nil {
		h.fail(w, "load", err)
		return
	}
	writeJSON(w, http.StatusOK, loadResponse{
		Success:                true,
		Exists:                 !res.IsNewUser,
		IsNewUser:              res.IsNewUser,
		Life:                   res.Life,
		NextRefillIn:           res.NextRefillIn,
		MaxLives:               res.MaxLife,
		RefillInterval:         res.RefillInterval,
		Nickname:               res.Nickname,
		Data:                   res.Payload,
		PromotionRewardGranted: res.PromotionRewardGranted,
	})
}

func (h *Handler) handleRanking(w http.ResponseWriter, r *http.Request) {
	res, err := h.rankings.Ranking(r.Context(), strings.TrimSpace(r.URL.Query().Get("sku")))
	if err != nil {
		h.fail(w, "ranking", err)
		return
	}

	resp := rankingResponse{Success: true, Ranking: make([]rankingEntry, len(res.Entries))}
	for i, e := range res.Entries {
		resp.Ranking[i] = toEntry(e)
	}
	if res.MyRank != nil {
		mine := toEntry(*res.MyRank)
		resp.MyRank = &mine
	}
	writeJSON(w, http.StatusOK, resp)
}

func toEntry(e ranking.Entry) rankingEntry {
	return rankingEntry{Rank: e.Rank, Nickname: e.Nickname, Level: e.Level, SKU: e.SKU}
}

// payloadString keeps a JSON string payload as its content and any other JSON value verbatim.
func payloadString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if raw[0] == '"' && json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, player.ErrValidation) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.logger.Error("request failed", err, zap.String("op", op))
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{"success": false, "error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
