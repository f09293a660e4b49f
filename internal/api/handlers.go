package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/puzzlepup/puzzlepup/internal/domain"
)

// --- POST /api/users (signup) ---

type signupRequest struct {
	Username     string `json:"username"`
	ReferralCode string `json:"referral_code,omitempty"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", err.Error())
		return
	}

	resp, err := s.progression.CreateUser(req.Username, req.ReferralCode, time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// --- GET /api/users/{id}/progression ---

func (s *Server) handleProgression(w http.ResponseWriter, r *http.Request) {
	u, err := s.progression.GetUser(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// --- GET /api/users/{id}/rewards ---

func (s *Server) handleRewardHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	grants, err := s.progression.RewardHistory(chi.URLParam(r, "id"), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rewards": grants,
	})
}

// --- POST /api/engagement/{id}/checkin ---

func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	resp, err := s.progression.CompleteCheckIn(chi.URLParam(r, "id"), time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- POST /api/engagement/{id}/level-clear ---

type levelClearRequest struct {
	Difficulty string `json:"difficulty"`
}

func (s *Server) handleLevelClear(w http.ResponseWriter, r *http.Request) {
	var req levelClearRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", err.Error())
		return
	}

	diff, err := domain.ParseDifficulty(req.Difficulty)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp, err := s.progression.RecordLevelClear(chi.URLParam(r, "id"), diff, time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- GET /api/engagement/{id}/weekly ---

func (s *Server) handleWeekly(w http.ResponseWriter, r *http.Request) {
	weekly, err := s.progression.Weekly(chi.URLParam(r, "id"), time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, weekly)
}

// --- POST /api/engagement/{id}/weekly/claim ---

func (s *Server) handleWeeklyClaim(w http.ResponseWriter, r *http.Request) {
	resp, err := s.progression.ClaimWeeklyChallenge(chi.URLParam(r, "id"), time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- POST /api/engagement/{id}/daily-run ---

type dailyRunRequest struct {
	Score int `json:"score"`
}

func (s *Server) handleDailyRun(w http.ResponseWriter, r *http.Request) {
	var req dailyRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", err.Error())
		return
	}

	resp, err := s.progression.CompleteDailyRun(chi.URLParam(r, "id"), req.Score, time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- POST /api/engagement/{id}/comeback/claim ---

func (s *Server) handleComebackClaim(w http.ResponseWriter, r *http.Request) {
	resp, err := s.progression.ClaimComebackBonus(chi.URLParam(r, "id"), time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- POST /api/engagement/{id}/achievements/check ---

func (s *Server) handleAchievementCheck(w http.ResponseWriter, r *http.Request) {
	newly, err := s.progression.CheckAchievements(chi.URLParam(r, "id"), time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if newly == nil {
		newly = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"newly_unlocked": newly,
	})
}

// --- GET /api/engagement/{id}/achievements ---

func (s *Server) handleAchievements(w http.ResponseWriter, r *http.Request) {
	unlocked, err := s.progression.Achievements(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"achievements": unlocked,
	})
}

// --- GET /api/engagement/{id}/notifications ---

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	pending, err := s.notifications.Pending(chi.URLParam(r, "id"), 20)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": pending,
	})
}

// --- POST /api/engagement/notifications/{nid}/shown ---

func (s *Server) handleNotificationShown(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "nid"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "notification id must be numeric")
		return
	}
	if err := s.notifications.MarkShown(id); err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- POST /api/purchases ---

type purchaseRequest struct {
	UserID    string `json:"user_id"`
	Pack      string `json:"pack"`
	Hints     int64  `json:"hints"`
	PaymentID string `json:"payment_id,omitempty"`
}

func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", err.Error())
		return
	}

	resp, err := s.progression.RecordPurchase(req.UserID, req.Pack, req.Hints, req.PaymentID, time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
