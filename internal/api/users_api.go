package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/piucane/piucane/internal/app/gamification"
	"github.com/piucane/piucane/internal/domain"
)

// ─── Per-user API (/api/users/{userID}/*) ───────────────────────────────────

// --- profile ---

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.GetProfile(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"profile": p,
		"level":   s.svc.Levels().CalculateLevelFromXP(p.TotalXP),
	})
}

type premiumRequest struct {
	Premium bool `json:"premium"`
}

func (s *Server) handleSetPremium(w http.ResponseWriter, r *http.Request) {
	var req premiumRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := s.svc.SetPremium(r.Context(), chi.URLParam(r, "userID"), req.Premium)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// --- xp & activity ---

type awardRequest struct {
	Amount float64         `json:"amount"`
	Source domain.XPSource `json:"source"`
}

func (s *Server) handleAwardXP(w http.ResponseWriter, r *http.Request) {
	var req awardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.svc.AwardXP(r.Context(), chi.URLParam(r, "userID"), req.Amount, req.Source)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type activityRequest struct {
	At *time.Time `json:"at,omitempty"` // default: now
}

func (s *Server) handleRecordActivity(w http.ResponseWriter, r *http.Request) {
	var req activityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	at := s.now()
	if req.At != nil {
		at = *req.At
	}
	res, err := s.svc.RecordActivity(r.Context(), chi.URLParam(r, "userID"), at)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// --- badges ---

func (s *Server) handleCheckBadges(w http.ResponseWriter, r *http.Request) {
	unlocked, err := s.svc.CheckBadges(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if unlocked == nil {
		unlocked = []gamification.BadgeUnlock{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"unlocked": unlocked})
}

func (s *Server) handleListBadges(w http.ResponseWriter, r *http.Request) {
	badges, err := s.svc.ListBadges(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if badges == nil {
		badges = []domain.UnlockedBadge{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"badges": badges})
}

// --- rewards ---

func (s *Server) handleListRewards(w http.ResponseWriter, r *http.Request) {
	rewards, err := s.svc.ListRewards(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if rewards == nil {
		rewards = []domain.EarnedReward{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"rewards": rewards})
}

func (s *Server) handleClaimReward(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.ClaimReward(r.Context(), chi.URLParam(r, "userID"), chi.URLParam(r, "rewardID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// --- difficulty ---

func (s *Server) handleInitializeDDA(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.InitializeDDA(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleGetDDA(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.DDAState(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleEvaluateDDA(w http.ResponseWriter, r *http.Request) {
	adj, err := s.svc.EvaluateDifficulty(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"adjusted":   adj != nil,
		"adjustment": adj,
	})
}

func (s *Server) handleRecommendation(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.RecommendedDifficulty(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]domain.Difficulty{"difficulty": d})
}

// --- missions ---

type startMissionRequest struct {
	Mission    domain.Mission    `json:"mission"`
	Difficulty domain.Difficulty `json:"difficulty,omitempty"`
}

func (s *Server) handleStartMission(w http.ResponseWriter, r *http.Request) {
	var req startMissionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.svc.StartMission(r.Context(), chi.URLParam(r, "userID"), req.Mission, req.Difficulty)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleListMissions(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	missions, err := s.svc.ListMissions(r.Context(), chi.URLParam(r, "userID"), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if missions == nil {
		missions = []domain.MissionProgress{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"missions": missions})
}

type stepRequest struct {
	Minutes float64 `json:"minutes"`
}

func (s *Server) handleMissionStep(w http.ResponseWriter, r *http.Request) {
	var req stepRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := s.svc.RecordMissionStep(r.Context(), chi.URLParam(r, "progressID"), req.Minutes)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type completeRequest struct {
	Quality *float64 `json:"quality,omitempty"`
}

func (s *Server) handleCompleteMission(w http.ResponseWriter, r *http.Request) {
	var req completeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	quality := 0.5
	if req.Quality != nil {
		quality = *req.Quality
	}
	res, err := s.svc.CompleteMission(r.Context(), chi.URLParam(r, "progressID"), quality)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleFailMission(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.FailMission(r.Context(), chi.URLParam(r, "progressID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// --- notifications ---

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 10)
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	notes, err := s.svc.Notifications(r.Context(), chi.URLParam(r, "userID"), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if notes == nil {
		notes = []domain.Notification{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"notifications": notes})
}
