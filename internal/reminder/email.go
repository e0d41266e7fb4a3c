package reminder

import (
	"bytes"
	"embed"
	"fmt"
	htmltmpl "html/template"
	"net/mail"
	texttmpl "text/template"
	"time"

	"github.com/sakif/quiet-hours/internal/model"
	"github.com/sakif/quiet-hours/internal/notify"
)

// TimeLayout is how start and end times appear in reminder emails.
const TimeLayout = "3:04 PM"

//go:embed templates/*.tmpl
var templateFS embed.FS

var (
	textTemplate = texttmpl.Must(texttmpl.ParseFS(templateFS, "templates/reminder.txt.tmpl"))
	htmlTemplate = htmltmpl.Must(htmltmpl.ParseFS(templateFS, "templates/reminder.html.tmpl"))
)

// emailData is the view of a block the templates render. The HTML template
// escapes every field, so titles and descriptions are safe to include.
type emailData struct {
	Title           string
	Description     string
	StartTime       string
	EndTime         string
	DurationMinutes int
}

// Subject is the reminder subject line for a block.
func Subject(b *model.Block) string {
	return "Study Block Starting Soon: " + b.Title
}

// RenderEmail builds the reminder message for one block and its owner.
// Times are shown in loc; a nil loc means UTC.
func RenderEmail(b *model.Block, p *model.Profile, loc *time.Location) (notify.Message, error) {
	if loc == nil {
		loc = time.UTC
	}
	data := emailData{
		Title:           b.Title,
		Description:     b.Description,
		StartTime:       b.StartTime.In(loc).Format(TimeLayout),
		EndTime:         b.EndTime.In(loc).Format(TimeLayout),
		DurationMinutes: b.DurationMinutes(),
	}

	var text, html bytes.Buffer
	if err := textTemplate.Execute(&text, data); err != nil {
		return notify.Message{}, fmt.Errorf("rendering text body: %w", err)
	}
	if err := htmlTemplate.Execute(&html, data); err != nil {
		return notify.Message{}, fmt.Errorf("rendering html body: %w", err)
	}

	return notify.Message{
		To:      mail.Address{Name: p.FullName, Address: p.Email},
		Subject: Subject(b),
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
