package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/piucane/piucane/internal/app/gamification"
	"github.com/piucane/piucane/internal/domain"
)

// ─── Level table & calculators (/api/levels, /api/xp) ───────────────────────
// Stateless endpoints over the level table and the XP formulas.

func (s *Server) handleListLevels(w http.ResponseWriter, r *http.Request) {
	levels := s.svc.Levels()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"levels":    levels.Levels(),
		"max_level": levels.Max(),
	})
}

func (s *Server) handleGetLevel(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "level"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "level must be an integer")
		return
	}
	level, ok := s.svc.Levels().Level(n)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("level %d not found", n))
		return
	}
	writeJSON(w, http.StatusOK, level)
}

func (s *Server) handleCalculateLevel(w http.ResponseWriter, r *http.Request) {
	xp, err := strconv.ParseInt(r.URL.Query().Get("xp"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "xp must be an integer")
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Levels().CalculateLevelFromXP(xp))
}

func (s *Server) handleStreakXP(w http.ResponseWriter, r *http.Request) {
	days, err := strconv.Atoi(r.URL.Query().Get("days"))
	if err != nil || days < 0 {
		writeError(w, http.StatusBadRequest, "days must be a non-negative integer")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{
		"days": int64(days),
		"xp":   gamification.CalculateStreakXP(days),
	})
}

func (s *Server) handleBadgeXP(w http.ResponseWriter, r *http.Request) {
	rarity := domain.BadgeRarity(r.URL.Query().Get("rarity"))
	xp := gamification.CalculateBadgeXP(rarity)
	if xp == 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown rarity %q", rarity))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rarity": rarity,
		"xp":     xp,
	})
}

type missionXPRequest struct {
	Category   string            `json:"category"`
	Steps      int               `json:"steps"`
	Difficulty domain.Difficulty `json:"difficulty"`
	Quality    *float64          `json:"quality,omitempty"`
}

func (s *Server) handleMissionXP(w http.ResponseWriter, r *http.Request) {
	var req missionXPRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	quality := 0.5
	if req.Quality != nil {
		quality = *req.Quality
	}
	writeJSON(w, http.StatusOK, map[string]int64{
		"xp": gamification.CalculateMissionXP(req.Category, req.Steps, req.Difficulty, quality),
	})
}

type eventMultiplierRequest struct {
	Multiplier float64 `json:"multiplier"`
}

func (s *Server) handleEventMultiplier(w http.ResponseWriter, r *http.Request) {
	var req eventMultiplierRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.svc.SetEventMultiplier(req.Multiplier); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{
		"multiplier": s.svc.XP().EventMultiplier(),
	})
}

type adaptMissionRequest struct {
	UserID     string            `json:"user_id"`
	Mission    domain.Mission    `json:"mission"`
	Difficulty domain.Difficulty `json:"difficulty"`
}

func (s *Server) handleAdaptMission(w http.ResponseWriter, r *http.Request) {
	var req adaptMissionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	adapted, err := s.svc.AdaptMission(r.Context(), req.UserID, req.Mission, req.Difficulty)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, adapted)
}
