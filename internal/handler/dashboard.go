// Package handler contains the HTTP handlers: the JSON API, the auth flow,
// the reminder trigger and the server-rendered dashboard.
//
// Handlers parse the request, call a service and write the response. They
// hold no business rules; status codes come from writeError.
package handler

import (
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/quiet-hours/internal/auth"
	"github.com/sakif/quiet-hours/internal/model"
	"github.com/sakif/quiet-hours/internal/reminder"
	"github.com/sakif/quiet-hours/internal/service"
)

const (
	pageTitle  = "Quiet Hours"
	dateLayout = "Mon, Jan 2"
)

type filterOption struct {
	Key   model.BlockFilter
	Label string
}

var filterOptions = []filterOption{
	{model.FilterAll, "All Blocks"},
	{model.FilterActive, "Active"},
	{model.FilterUpcoming, "Upcoming"},
	{model.FilterCompleted, "Completed"},
}

var authNotices = map[string]string{
	"denied":  "GitHub sign-in was cancelled.",
	"noemail": "Your GitHub account has no verified email address.",
}

// DashboardHandler renders the single-page dashboard. Anonymous visitors
// get the sign-in page; signed-in users get their stats and blocks.
//
// Two template sets share base.html, each filling its "content" block, so
// they are parsed once at startup and reused.
type DashboardHandler struct {
	signin    *template.Template
	dashboard *template.Template
	blocks    *service.BlockService
	accounts  *service.AuthService
	github    bool
	logger    *slog.Logger
}

// pageData is what base.html and the content templates render.
type pageData struct {
	Title         string
	Notice        string
	LoadFailed    bool
	GitHubEnabled bool
	Profile       *model.Profile
	Stats         model.BlockStats
	Filter        model.BlockFilter
	Filters       []filterOption
	Blocks        []blockView
}

// NewDashboardHandler parses the templates in templates. Times are shown in
// loc.
func NewDashboardHandler(
	templates fs.FS,
	blocks *service.BlockService,
	accounts *service.AuthService,
	githubEnabled bool,
	loc *time.Location,
	logger *slog.Logger,
) (*DashboardHandler, error) {
	if loc == nil {
		loc = time.UTC
	}
	funcs := template.FuncMap{
		"clock": func(t time.Time) string { return t.In(loc).Format(reminder.TimeLayout) },
		"date":  func(t time.Time) string { return t.In(loc).Format(dateLayout) },
	}

	signin, err := template.New("signin").Funcs(funcs).ParseFS(templates, "base.html", "signin.html")
	if err != nil {
		return nil, err
	}
	dashboard, err := template.New("dashboard").Funcs(funcs).ParseFS(templates, "base.html", "dashboard.html")
	if err != nil {
		return nil, err
	}

	return &DashboardHandler{
		signin:    signin,
		dashboard: dashboard,
		blocks:    blocks,
		accounts:  accounts,
		github:    githubEnabled,
		logger:    logger,
	}, nil
}

// HandleDashboard serves GET /?filter=...
//
// A store failure still renders the page, with the generic failure banner
// and no blocks.
func (h *DashboardHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	data := pageData{
		Title:         pageTitle,
		Notice:        authNotices[r.URL.Query().Get("auth")],
		GitHubEnabled: h.github,
		Filters:       filterOptions,
	}

	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		h.render(w, h.signin, data)
		return
	}

	profile, err := h.accounts.GetProfile(r.Context(), userID)
	if err != nil {
		// Valid token for a profile that no longer exists.
		h.render(w, h.signin, data)
		return
	}
	data.Profile = profile

	filter, valid := model.ParseBlockFilter(r.URL.Query().Get("filter"))
	if !valid {
		filter = model.FilterAll
	}
	data.Filter = filter

	if err := h.load(r, userID, &data); err != nil {
		h.logger.Error("dashboard: loading blocks failed",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		data.LoadFailed = true
		data.Blocks = nil
		data.Stats = model.BlockStats{}
	}

	h.render(w, h.dashboard, data)
}

func (h *DashboardHandler) load(r *http.Request, userID string, data *pageData) error {
	stats, err := h.blocks.Stats(r.Context(), userID)
	if err != nil {
		return err
	}
	data.Stats = *stats

	blocks, err := h.blocks.List(r.Context(), userID, data.Filter, service.MaxListLimit, 0)
	if err != nil {
		return err
	}
	now := h.blocks.Now()
	data.Blocks = make([]blockView, 0, len(blocks))
	for i := range blocks {
		data.Blocks = append(data.Blocks, newBlockView(&blocks[i], now))
	}
	return nil
}

func (h *DashboardHandler) render(w http.ResponseWriter, tmpl *template.Template, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base", data); err != nil {
		h.logger.Error("failed to render template", slog.String("error", err.Error()))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
