package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/quiet-hours/internal/reminder"
)

const dispatchErrorDetails = "Check function logs for more information"

// ReminderHandler exposes one reminder dispatch invocation over HTTP so an
// external scheduler can trigger it.
type ReminderHandler struct {
	job    reminder.Dispatcher
	logger *slog.Logger
	now    func() time.Time
}

func NewReminderHandler(job reminder.Dispatcher, logger *slog.Logger) *ReminderHandler {
	return &ReminderHandler{
		job:    job,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// dispatchError is the body of a failed invocation.
type dispatchError struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

// HandleDispatch runs the job once and returns its summary.
//
// HTTP: POST /functions/send-study-reminders (GET is accepted too)
//
// RESPONSES:
//
//	200 {"message":"No reminders to send","count":0}
//	200 {"message":"Reminder processing complete","totalBlocks":2,"successful":1,"failed":1,"results":[...]}
//	500 {"error":"...","details":"Check function logs for more information"}
//
// Per-block failures are part of a 200 response; only a failed candidate or
// profile query makes the whole invocation fail.
func (h *ReminderHandler) HandleDispatch(w http.ResponseWriter, r *http.Request) {
	summary, err := h.job.Run(r.Context(), h.now())
	if err != nil {
		h.logger.Error("reminder dispatch failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, dispatchError{
			Error:   err.Error(),
			Details: dispatchErrorDetails,
		})
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// HandlePreflight answers CORS preflight requests. The CORS headers
// themselves are set by the route's middleware.
//
// HTTP: OPTIONS /functions/send-study-reminders
func (h *ReminderHandler) HandlePreflight(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
