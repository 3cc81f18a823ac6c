package reminder

import (
	"fmt"
	"strings"
	"time"

	"github.com/cedinhealth/clinic-automation/internal/appointment"
)

// Patient-facing copy is Spanish; Go's time package has no locale
// support, so the names are spelled out here.
var spanishWeekdays = [...]string{
	"domingo", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado",
}

var spanishMonths = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

const fallbackProfessional = "el profesional asignado"

// FormatDate renders a date as "lunes 2 de marzo".
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%s %d de %s",
		spanishWeekdays[t.Weekday()], t.Day(), spanishMonths[t.Month()-1])
}

// FormatTime renders a 24-hour local time as "09:30".
func FormatTime(t time.Time) string {
	return t.Format("15:04")
}

// professionalLabel renders "Dra. Ana García", falling back to a generic
// label when the appointment has no professional assigned.
func professionalLabel(honorific, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return fallbackProfessional
	}
	honorific = strings.TrimSpace(honorific)
	if honorific == "" {
		return name
	}
	return honorific + " " + name
}

// TemplateParams builds the positional template variables for a reminder:
// patient name, weekday+date, time, professional, branch. Times are
// rendered in the clinic's timezone; a missing branch falls back to the
// clinic's name.
func TemplateParams(c appointment.Candidate, loc *time.Location, clinicName string) []string {
	start := c.StartAt.In(loc)
	branch := strings.TrimSpace(c.BranchName)
	if branch == "" {
		branch = clinicName
	}
	return []string{
		strings.TrimSpace(c.PatientName),
		FormatDate(start),
		FormatTime(start),
		professionalLabel(c.ProfessionalHonorific, c.ProfessionalName),
		branch,
	}
}
