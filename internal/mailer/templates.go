package mailer

import (
	"bytes"
	"embed"
	"fmt"
	htmltmpl "html/template"
	"net/mail"
	texttmpl "text/template"
	"time"
)

//go:embed templates
var templateFS embed.FS

var (
	textTemplates = texttmpl.Must(texttmpl.ParseFS(templateFS, "templates/*.txt"))
	htmlTemplates = htmltmpl.Must(htmltmpl.ParseFS(templateFS, "templates/*.html"))
)

// Kind names a notification template.
type Kind string

const (
	KindInvitation   Kind = "invitation"
	KindCancellation Kind = "cancellation"
)

const scheduleLayout = "Monday, 2 January 2006 at 15:04 MST"

// Job is a queued notification. It is stored as JSON in the mail queue and
// rendered by the mail worker.
type Job struct {
	Kind           Kind       `json:"kind"`
	To             string     `json:"to"`
	Name           string     `json:"name"`
	AssessmentName string     `json:"assessment_name"`
	ScheduledStart *time.Time `json:"scheduled_start,omitempty"`
	Link           string     `json:"link,omitempty"`
	Attempts       int        `json:"attempts"`
}

type templateData struct {
	Name           string
	AssessmentName string
	Schedule       string
	Link           string
}

// Render builds the message for a job. Schedules are shown in loc.
func (j *Job) Render(loc *time.Location) (*Message, error) {
	var subject string
	switch j.Kind {
	case KindInvitation:
		subject = "Invitation: " + j.AssessmentName
	case KindCancellation:
		subject = "Cancelled: " + j.AssessmentName
	default:
		return nil, fmt.Errorf("unknown mail kind %q", j.Kind)
	}

	data := templateData{Name: j.Name, AssessmentName: j.AssessmentName, Link: j.Link}
	if j.ScheduledStart != nil {
		data.Schedule = j.ScheduledStart.In(loc).Format(scheduleLayout)
	}

	var text, html bytes.Buffer
	if err := textTemplates.ExecuteTemplate(&text, string(j.Kind)+".txt", data); err != nil {
		return nil, fmt.Errorf("render text: %w", err)
	}
	if err := htmlTemplates.ExecuteTemplate(&html, string(j.Kind)+".html", data); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}

	return &Message{
		To:          mail.Address{Name: j.Name, Address: j.To},
		Subject:     subject,
		TextContent: text.String(),
		HTMLContent: html.String(),
	}, nil
}
