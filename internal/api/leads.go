package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-crm/internal/lead"
)

func listLeadsHandler(svc *lead.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, limit, ok := pageParams(w, r)
		if !ok {
			return
		}
		q := r.URL.Query()

		res, err := svc.List(r.Context(), lead.ListFilter{
			Status: lead.Status(q.Get("status")),
			Search: q.Get("search"),
			Page:   page,
			Limit:  limit,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func leadStatsHandler(svc *lead.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.Stats(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func checkDuplicateHandler(svc *lead.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var exclude *uuid.UUID
		if raw := q.Get("exclude_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_exclude_id", "exclude_id must be a valid UUID")
				return
			}
			exclude = &id
		}

		found, err := svc.FindDuplicate(r.Context(), q.Get("email"), q.Get("phone"), exclude)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, DuplicateResponse{Duplicate: found != nil, Lead: found})
	}
}

func getLeadHandler(svc *lead.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		l, err := svc.Get(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, l)
	}
}

func createLeadHandler(svc *lead.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req lead.CreateInput
		if !decodeJSON(w, r, &req) {
			return
		}

		l, err := svc.Create(r.Context(), req, creatorID(r))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, l)
	}
}

func updateLeadHandler(svc *lead.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		var req lead.UpdateInput
		if !decodeJSON(w, r, &req) {
			return
		}

		l, err := svc.Update(r.Context(), id, req)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, l)
	}
}

func deleteLeadHandler(svc *lead.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func convertLeadHandler(svc *lead.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		var req lead.ConvertInput
		if !decodeJSON(w, r, &req) {
			return
		}

		conv, err := svc.ConvertToPatient(r.Context(), id, req)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		status := http.StatusCreated
		if conv.AlreadyConverted {
			status = http.StatusOK
		}
		writeJSON(w, status, conv)
	}
}

func scheduleLeadHandler(svc *lead.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		var req lead.ScheduleInput
		if !decodeJSON(w, r, &req) {
			return
		}

		l, appt, err := svc.Schedule(r.Context(), id, req, creatorID(r))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, ScheduleResponse{Lead: l, Appointment: appt})
	}
}
