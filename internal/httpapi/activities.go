package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mingyuchen/activity-tracker-go/activity"
	"github.com/mingyuchen/activity-tracker-go/middleware"
	"github.com/mingyuchen/activity-tracker-go/report"
)

// ActivityHandler serves the protected activity routes. Every handler runs
// behind middleware.RequireAuth, so the request context always carries an
// identity.
type ActivityHandler struct {
	activities activity.Store
	reports    *report.Service
	log        *zap.Logger
}

// NewActivityHandler wires an ActivityHandler.
func NewActivityHandler(activities activity.Store, reports *report.Service, log *zap.Logger) *ActivityHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ActivityHandler{activities: activities, reports: reports, log: log}
}

type activityRequest struct {
	ActivityDate string `json:"activityDate"`
	Title        string `json:"title"`
	Category     string `json:"category"`
	StartTime    string `json:"startTime"`
	EndTime      string `json:"endTime"`
	Notes        string `json:"notes"`
	Mood         int16  `json:"mood"`
}

type activitiesResponse struct {
	StatusCode int                 `json:"statusCode"`
	Message    string              `json:"message"`
	Activities []activity.Activity `json:"activities"`
}

type reportRequest struct {
	IDs []uuid.UUID `json:"ids"`
}

// ListAll returns every activity in the system.
func (h *ActivityHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	all, err := h.activities.ListAll(r.Context())
	if err != nil {
		h.log.Error("list activities", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if all == nil {
		all = []activity.Activity{}
	}
	writeJSON(w, http.StatusOK, activitiesResponse{StatusCode: http.StatusOK, Message: "success", Activities: all})
}

// ListByDate returns the caller's activities on the date given in the query.
func (h *ActivityHandler) ListByDate(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.UserFromContext(r.Context())

	date := r.URL.Query().Get("date")
	if date == "" {
		writeError(w, http.StatusBadRequest, "missing date")
		return
	}

	list, err := h.activities.ListByUserAndDate(r.Context(), u.ID, date)
	if err != nil {
		h.log.Error("list activities by date", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if list == nil {
		list = []activity.Activity{}
	}
	writeJSON(w, http.StatusOK, list)
}

// Create logs a new activity for the caller.
func (h *ActivityHandler) Create(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.UserFromContext(r.Context())

	var req activityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ActivityDate == "" || req.Title == "" || req.StartTime == "" || req.EndTime == "" {
		writeError(w, http.StatusBadRequest, "activityDate, title, startTime and endTime are required")
		return
	}

	a := &activity.Activity{
		UserID:       u.ID,
		ActivityDate: req.ActivityDate,
		Title:        req.Title,
		Category:     req.Category,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		Notes:        req.Notes,
		Mood:         req.Mood,
	}
	if err := h.activities.Create(r.Context(), a); err != nil {
		h.log.Error("create activity", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, a)
}

// Update rewrites an activity the caller owns.
func (h *ActivityHandler) Update(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.UserFromContext(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid activity id")
		return
	}

	var req activityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ActivityDate == "" || req.Title == "" || req.StartTime == "" || req.EndTime == "" {
		writeError(w, http.StatusBadRequest, "activityDate, title, startTime and endTime are required")
		return
	}

	existing, err := h.activities.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, activity.ErrNotFound) {
			writeError(w, http.StatusNotFound, "activity not found")
			return
		}
		h.log.Error("load activity", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing.UserID != u.ID {
		writeError(w, http.StatusForbidden, "not your activity")
		return
	}

	existing.ActivityDate = req.ActivityDate
	existing.Title = req.Title
	existing.Category = req.Category
	existing.StartTime = req.StartTime
	existing.EndTime = req.EndTime
	existing.Notes = req.Notes
	existing.Mood = req.Mood

	if err := h.activities.Update(r.Context(), existing); err != nil {
		h.log.Error("update activity", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, existing)
}

// Delete removes an activity the caller owns.
func (h *ActivityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	u, _ := middleware.UserFromContext(r.Context())

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid activity id")
		return
	}

	existing, err := h.activities.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, activity.ErrNotFound) {
			writeError(w, http.StatusNotFound, "activity not found")
			return
		}
		h.log.Error("load activity", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing.UserID != u.ID {
		writeError(w, http.StatusForbidden, "not your activity")
		return
	}

	if err := h.activities.Delete(r.Context(), id); err != nil {
		h.log.Error("delete activity", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// GenerateReport renders the selected activities to a CSV file and returns
// its name.
func (h *ActivityHandler) GenerateReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "no activity ids")
		return
	}

	selected, err := h.activities.ListByIDs(r.Context(), req.IDs)
	if err != nil {
		h.log.Error("load activities for report", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	name, err := h.reports.Generate(selected)
	if err != nil {
		h.log.Error("generate report", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"fileName": name})
}

// DownloadReport streams a previously generated CSV as an attachment.
func (h *ActivityHandler) DownloadReport(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("fileName")
	f, err := h.reports.Open(name)
	if err != nil {
		if errors.Is(err, report.ErrNotFound) {
			writeError(w, http.StatusNotFound, "report not found")
			return
		}
		h.log.Error("open report", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	_, _ = io.Copy(w, f)
}
