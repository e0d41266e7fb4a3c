package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/quiet-hours/internal/apperror"
	"github.com/sakif/quiet-hours/internal/auth"
	"github.com/sakif/quiet-hours/internal/model"
	"github.com/sakif/quiet-hours/internal/reminder"
	"github.com/sakif/quiet-hours/internal/service"
)

// BlockHandler serves the study block API. Every route sits behind
// RequireAuth, so the caller's user id is always in the context.
//
//	GET    /api/blocks          → HandleList
//	GET    /api/blocks/stats    → HandleStats
//	GET    /api/blocks/{id}     → HandleGet
//	POST   /api/blocks          → HandleCreate
//	PUT    /api/blocks/{id}     → HandleUpdate
//	DELETE /api/blocks/{id}     → HandleDelete
type BlockHandler struct {
	blocks *service.BlockService
	logger *slog.Logger
}

func NewBlockHandler(blocks *service.BlockService, logger *slog.Logger) *BlockHandler {
	return &BlockHandler{blocks: blocks, logger: logger}
}

// blockRequest is the JSON body of create and update.
type blockRequest struct {
	Title               string     `json:"title"               validate:"notblank"`
	Description         string     `json:"description"`
	StartTime           *time.Time `json:"startTime"           validate:"required"`
	EndTime             *time.Time `json:"endTime"             validate:"required"`
	RemindBeforeMinutes *int       `json:"remindBeforeMinutes" validate:"omitempty,min=1,max=1440"`
}

func (req *blockRequest) input() service.BlockInput {
	return service.BlockInput{
		Title:               req.Title,
		Description:         req.Description,
		StartTime:           *req.StartTime,
		EndTime:             *req.EndTime,
		RemindBeforeMinutes: req.RemindBeforeMinutes,
	}
}

// blockView is a block plus the fields the dashboard derives from it.
// ReminderAt is start minus the fixed dispatch window, which is when the
// reminder job will actually pick the block up.
type blockView struct {
	model.Block
	Status          model.BlockStatus `json:"status"`
	DurationMinutes int               `json:"durationMinutes"`
	ReminderAt      time.Time         `json:"reminderAt"`
}

func newBlockView(b *model.Block, now time.Time) blockView {
	return blockView{
		Block:           *b,
		Status:          b.Status(now),
		DurationMinutes: b.DurationMinutes(),
		ReminderAt:      b.StartTime.Add(-reminder.Window),
	}
}

// listResponse wraps a page of blocks with the paging parameters used.
type listResponse struct {
	Blocks []blockView `json:"blocks"`
	Filter string      `json:"filter"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

// HandleList returns the caller's blocks.
//
// HTTP: GET /api/blocks?filter=upcoming&limit=20&offset=0
func (h *BlockHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	q := r.URL.Query()

	filter, ok := model.ParseBlockFilter(q.Get("filter"))
	if !ok {
		writeError(w, apperror.ValidationFailed("filter", "filter must be one of all, active, upcoming, completed"))
		return
	}
	limit, err := intParam(q.Get("limit"), "limit")
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := intParam(q.Get("offset"), "offset")
	if err != nil {
		writeError(w, err)
		return
	}

	blocks, err := h.blocks.List(r.Context(), userID, filter, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	now := h.blocks.Now()
	views := make([]blockView, 0, len(blocks))
	for i := range blocks {
		views = append(views, newBlockView(&blocks[i], now))
	}

	if limit == 0 {
		limit = service.DefaultListLimit
	}
	writeJSON(w, http.StatusOK, listResponse{
		Blocks: views,
		Filter: string(filter),
		Limit:  min(limit, service.MaxListLimit),
		Offset: offset,
	})
}

// HandleStats returns the dashboard counters.
//
// HTTP: GET /api/blocks/stats
func (h *BlockHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	stats, err := h.blocks.Stats(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HandleGet returns one block.
//
// HTTP: GET /api/blocks/{id}
func (h *BlockHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	block, err := h.blocks.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newBlockView(block, h.blocks.Now()))
}

// HandleCreate schedules a new block.
//
// HTTP: POST /api/blocks
// REQUEST BODY: {"title":"...","startTime":"2026-03-02T14:00:00Z","endTime":"...","description":"...","remindBeforeMinutes":10}
func (h *BlockHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req blockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	block, err := h.blocks.Create(r.Context(), userID, req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newBlockView(block, h.blocks.Now()))
}

// HandleUpdate replaces a block's editable fields.
//
// HTTP: PUT /api/blocks/{id}
func (h *BlockHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req blockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	block, err := h.blocks.Update(r.Context(), userID, chi.URLParam(r, "id"), req.input())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newBlockView(block, h.blocks.Now()))
}

// HandleDelete removes a block.
//
// HTTP: DELETE /api/blocks/{id}
func (h *BlockHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	if err := h.blocks.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// intParam parses an optional non-negative integer query parameter. An
// empty value is 0, which the service treats as "use the default".
func intParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperror.ValidationFailed(name, name+" must be a non-negative integer")
	}
	return n, nil
}
