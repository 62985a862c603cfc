package gateway

import (
	"encoding/json"
	"net/http"
)

func (gw *Gateway) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := gw.scheduler.List(r.Context())
	if err != nil {
		writeServerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": schedules})
}

func (gw *Gateway) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var sched Schedule
	if err := json.NewDecoder(r.Body).Decode(&sched); err != nil {
		writeValidationError(w, "invalid JSON body")
		return
	}
	created, err := gw.scheduler.Add(r.Context(), sched)
	if err != nil {
		writeValidationError(w, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (gw *Gateway) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var sched Schedule
	if err := json.NewDecoder(r.Body).Decode(&sched); err != nil {
		writeValidationError(w, "invalid JSON body")
		return
	}
	updated, err := gw.scheduler.Update(r.Context(), id, sched)
	if err != nil {
		writeValidationError(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (gw *Gateway) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := gw.scheduler.Delete(r.Context(), id); err != nil {
		writeServerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (gw *Gateway) handleTriggerSchedule(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := gw.scheduler.TriggerNow(r.Context(), id); err != nil {
		writeValidationError(w, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
