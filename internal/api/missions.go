package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/missionctl/orbit/internal/domain"
)

// MissionView is a catalog entry as listed to clients.
type MissionView struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Target   string `json:"target"`
	Distance int64  `json:"distance"`
	Cost     int64  `json:"cost"`
	Payout   int64  `json:"payout"`
	Duration string `json:"duration"`
}

// StartRequest is the request body for POST /api/missions/start.
type StartRequest struct {
	Username  string `json:"username"`
	MissionID int64  `json:"mission_id"`
	Fuel      int64  `json:"fuel"`
	Crew      int64  `json:"crew"`
	Research  int64  `json:"research"`
}

// StartResponse is the response for POST /api/missions/start.
type StartResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message"`
	UserMissionID int64  `json:"user_mission_id"`
	Funds         int64  `json:"funds"`
}

// CheckResponse is the response for GET /api/missions/check/{id}.
type CheckResponse struct {
	Success          bool                 `json:"success"`
	Status           domain.MissionStatus `json:"status"`
	Message          string               `json:"message"`
	RemainingSeconds float64              `json:"remaining_seconds,omitempty"`
	NewFunds         *int64               `json:"new_funds,omitempty"`
	Payout           int64                `json:"payout"`
}

// PredictRateRequest is the request body for POST /api/missions/predict.
type PredictRateRequest struct {
	MissionID int64 `json:"mission_id"`
	Fuel      int64 `json:"fuel"`
	Crew      int64 `json:"crew"`
	Research  int64 `json:"research"`
}

// ListMissions handles GET /api/missions.
func (h *Handler) ListMissions(w http.ResponseWriter, r *http.Request) {
	missions := h.deps.Missions.ListMissions()
	out := make([]MissionView, 0, len(missions))
	for _, m := range missions {
		out = append(out, MissionView{
			ID:       m.ID,
			Name:     m.Name,
			Target:   m.Target,
			Distance: m.Distance,
			Cost:     m.Cost,
			Payout:   m.Payout,
			Duration: fmt.Sprintf("%dY", m.Duration),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// GetUser handles GET /api/user/{username}.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	summary, err := h.deps.Missions.GetUser(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeMissionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// GetUserEvents handles GET /api/user/{username}/events.
func (h *Handler) GetUserEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeMissionError(w, r, fmt.Errorf("%w: limit must be a positive integer", domain.ErrInvalidInput))
			return
		}
		limit = n
	}

	events, err := h.deps.Missions.ListEvents(r.Context(), chi.URLParam(r, "username"), limit)
	if err != nil {
		writeMissionError(w, r, err)
		return
	}
	if events == nil {
		events = []*domain.MissionEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

// StartMission handles POST /api/missions/start.
func (h *Handler) StartMission(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMissionError(w, r, fmt.Errorf("%w: invalid JSON request body", domain.ErrInvalidInput))
		return
	}
	if req.Username == "" {
		writeMissionError(w, r, fmt.Errorf("%w: username is required", domain.ErrInvalidInput))
		return
	}

	res, err := h.deps.Missions.StartMission(r.Context(), req.Username, req.MissionID, req.Fuel, req.Crew, req.Research)
	if err != nil {
		writeMissionError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, StartResponse{
		Success:       true,
		Message:       fmt.Sprintf("mission %d started, remaining funds: $%d", req.MissionID, res.Funds),
		UserMissionID: res.UserMissionID,
		Funds:         res.Funds,
	})
}

// CheckMission handles GET /api/missions/check/{id}.
func (h *Handler) CheckMission(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeMissionError(w, r, fmt.Errorf("%w: id must be an integer", domain.ErrInvalidInput))
		return
	}

	res, err := h.deps.Missions.CheckMissionResult(r.Context(), id)
	if err != nil {
		writeMissionError(w, r, err)
		return
	}

	resp := CheckResponse{
		Success: true,
		Status:  res.Status,
		Payout:  res.Payout,
	}
	if res.Status == domain.StatusInProgress {
		resp.RemainingSeconds = res.Remaining.Seconds()
		resp.Message = fmt.Sprintf("mission in progress, time remaining: %s", res.Remaining)
	} else {
		funds := res.Funds
		resp.NewFunds = &funds
		resp.Message = fmt.Sprintf("mission complete, result: %s", res.Status)
	}
	writeJSON(w, http.StatusOK, resp)
}

// PredictMission handles POST /api/missions/predict.
func (h *Handler) PredictMission(w http.ResponseWriter, r *http.Request) {
	var req PredictRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMissionError(w, r, fmt.Errorf("%w: invalid JSON request body", domain.ErrInvalidInput))
		return
	}

	p, err := h.deps.Missions.PredictRate(r.Context(), req.MissionID, req.Fuel, req.Crew, req.Research)
	if err != nil {
		writeMissionError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"predicted_rate": p.SuccessFinal,
		"prediction":     p,
	})
}
