// Package render turns a notification kind and its variables into message text.
package render

import (
	"errors"
	"fmt"
	"strings"
	"text/template"
)

var ErrUnknownKind = errors.New("unknown notification kind")

type Message struct {
	Subject string
	Body    string
}

type pair struct {
	subject *template.Template
	body    *template.Template
}

var templates = map[string]pair{
	"confirmation": must("confirmation",
		`Appointment booked with {{.business_name}}`,
		`Hi {{.customer_name}},

your appointment for {{.services}} on {{.date}} from {{.start_time}} to {{.end_time}} is booked.
Total: {{.total_price}}

Reference: {{.appointment_id}}`),
	"cancellation": must("cancellation",
		`Appointment cancelled: {{.business_name}}`,
		`Hi {{.customer_name}},

your appointment on {{.date}} at {{.start_time}} has been cancelled.{{if .reason}}
Reason: {{.reason}}{{end}}

Reference: {{.appointment_id}}`),
	"reschedule": must("reschedule",
		`Appointment moved: {{.business_name}}`,
		`Hi {{.customer_name}},

your appointment for {{.services}} now takes place on {{.date}} from {{.start_time}} to {{.end_time}}.

Reference: {{.appointment_id}}`),
	"reminder": must("reminder",
		`Reminder: {{.business_name}} {{if eq .window "1h"}}in one hour{{else}}tomorrow{{end}}`,
		`Hi {{.customer_name}},

a reminder of your appointment for {{.services}} on {{.date}} at {{.start_time}}.

Reference: {{.appointment_id}}`),
	"blacklist": must("blacklist",
		`Online booking suspended: {{.business_name}}`,
		`Hi {{.customer_name}},

online booking has been suspended for your account after {{.no_show_count}} missed appointments.{{if .reason}}
Reason: {{.reason}}{{end}}
Please contact {{.business_name}} directly to book.`),
}

func must(name, subject, body string) pair {
	return pair{
		subject: template.Must(template.New(name + ".subject").Option("missingkey=zero").Parse(subject)),
		body:    template.Must(template.New(name + ".body").Option("missingkey=zero").Parse(body)),
	}
}

// Render fills the templates for kind. Missing variables render empty.
func Render(kind string, vars map[string]string) (Message, error) {
	p, ok := templates[strings.ToLower(strings.TrimSpace(kind))]
	if !ok {
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if vars == nil {
		vars = map[string]string{}
	}
	var subject, body strings.Builder
	if err := p.subject.Execute(&subject, vars); err != nil {
		return Message{}, err
	}
	if err := p.body.Execute(&body, vars); err != nil {
		return Message{}, err
	}
	return Message{Subject: strings.TrimSpace(subject.String()), Body: body.String()}, nil
}

// SMS flattens a message into a single line for text channels.
func (m Message) SMS() string {
	return strings.Join(strings.Fields(m.Subject+". "+m.Body), " ")
}
