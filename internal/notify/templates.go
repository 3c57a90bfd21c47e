package notify

import (
	"fmt"
	"strings"
	"sync"
)

type Template struct {
	Kind    Kind
	Subject string
	Body    string
}

// Templates renders notification text by {{key}} substitution. Keys with no
// value in the payload are left in place.
type Templates struct {
	mu        sync.RWMutex
	templates map[Kind]Template
}

func NewTemplates() *Templates {
	t := &Templates{templates: make(map[Kind]Template)}
	for _, tpl := range builtInTemplates {
		t.templates[tpl.Kind] = tpl
	}
	return t
}

var builtInTemplates = []Template{
	{
		Kind:    KindReminder,
		Subject: "Appointment reminder",
		Body:    "Reminder: you have a {{type}} appointment on {{date}} at {{startTime}}.",
	},
	{
		Kind:    KindConfirmationRequest,
		Subject: "Please confirm your appointment",
		Body:    "Please confirm your {{type}} appointment on {{date}} at {{startTime}}.",
	},
	{
		Kind:    KindCancelled,
		Subject: "Appointment cancelled",
		Body:    "Your appointment on {{date}} at {{startTime}} was cancelled: {{reason}}.",
	},
	{
		Kind:    KindRescheduled,
		Subject: "Appointment moved",
		Body:    "Your appointment on {{previousDate}} at {{previousStartTime}} now takes place on {{date}} at {{startTime}}.",
	},
	{
		Kind:    KindDoctorAssigned,
		Subject: "Doctor assigned",
		Body:    "A doctor has been assigned to your appointment on {{date}} at {{startTime}}.",
	},
}

func (t *Templates) Register(tpl Template) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.templates[tpl.Kind] = tpl
}

func (t *Templates) Render(kind Kind, data map[string]string) (subject, body string, err error) {
	t.mu.RLock()
	tpl, ok := t.templates[kind]
	t.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("no template for %q", kind)
	}

	subject, body = tpl.Subject, tpl.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}
