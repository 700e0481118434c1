package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/missionctl/orbit/internal/domain"
)

// Predict handles POST /predict. Omitted fields take their defaults; the
// model being unavailable yields a zero prediction, not an error.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	in := domain.DefaultMissionInput()
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON request body"})
		return
	}
	if err := in.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, h.deps.Predictor.Predict(r.Context(), in))
}

// Preset handles GET /preset?difficulty=&seed=. Unknown difficulties fall
// back to normal; an omitted seed is generated and echoed back.
func (h *Handler) Preset(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var seed *uint64
	if s := q.Get("seed"); s != "" {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "seed must be a non-negative integer"})
			return
		}
		seed = &v
	}

	p, err := h.deps.Presets.Generate(q.Get("difficulty"), seed)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to generate preset"})
		return
	}
	writeJSON(w, http.StatusOK, p)
}
