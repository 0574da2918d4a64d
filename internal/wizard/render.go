package wizard

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"text/template"
	"time"
)

var shortMonths = [...]string{"ene", "feb", "mar", "abr", "may", "jun", "jul", "ago", "sep", "oct", "nov", "dic"}

// FormatDate renders a confirmed date the way it is stored on the booking,
// e.g. "20 oct 2026".
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%d %s %d", t.Day(), shortMonths[t.Month()-1], t.Year())
}

// SummaryLines renders the booking for the in-chat summary card. The minimum
// consumption line is only present when the zone has one.
func SummaryLines(b Booking) []string {
	lines := []string{"👤 " + b.Name}
	if b.Zone != nil {
		lines = append(lines, "📍 "+b.Zone.Name)
		if b.Zone.MinConsumption > 0 {
			lines = append(lines, fmt.Sprintf("💰 Consumo mínimo: $%d", b.Zone.MinConsumption))
		}
	}
	if b.People != nil {
		lines = append(lines, fmt.Sprintf("👥 %d personas", *b.People))
	}
	lines = append(lines, fmt.Sprintf("📅 %s - %s", b.Date, b.Time))
	lines = append(lines, "🪑 Preferencia: "+tableOrDefault(b.Table))
	lines = append(lines, "📢 Ofertas: "+yesNo(b.Offers))
	return lines
}

var handoffTemplate = template.Must(template.New("handoff").Option("missingkey=error").Parse(
	`🍻 *NUEVA RESERVA - {{.Venue}}*

👤 *Cliente:* {{.Name}}
📍 *Zona:* {{.Zone}}
{{- if gt .MinConsumption 0}}
💰 *Consumo mínimo:* ${{.MinConsumption}}
{{- end}}
👥 *Personas:* {{.People}}
📅 *Fecha:* {{.Date}}
⏰ *Hora:* {{.Time}}
🪑 *Preferencia de mesa:* {{.Table}}
📢 *Ofertas:* {{.Offers}}

📆 *Reserva generada:* {{.GeneratedOn}}
✅ *Estado:* Pendiente de confirmación`))

type handoffData struct {
	Venue          string
	Name           string
	Zone           string
	MinConsumption int
	People         int
	Date           string
	Time           string
	Table          string
	Offers         string
	GeneratedOn    string
}

// Handoff renders the message the customer forwards to the venue and the
// wa.me link that opens it pre-filled.
func (w *Wizard) Handoff(b Booking, now time.Time) *Handoff {
	data := handoffData{
		Venue:       w.catalog.VenueName,
		Name:        b.Name,
		Date:        b.Date,
		Time:        b.Time,
		Table:       tableOrDefault(b.Table),
		Offers:      yesNo(b.Offers),
		GeneratedOn: now.Format("02/01/2006"),
	}
	if b.Zone != nil {
		data.Zone = b.Zone.Name
		data.MinConsumption = b.Zone.MinConsumption
	}
	if b.People != nil {
		data.People = *b.People
	}

	var buf bytes.Buffer
	if err := handoffTemplate.Execute(&buf, data); err != nil {
		// Only reachable if the template and handoffData drift apart.
		panic(fmt.Sprintf("wizard: render handoff: %v", err))
	}
	msg := buf.String()
	return &Handoff{Message: msg, URL: DeepLink(w.catalog.ContactNumber, msg)}
}

// DeepLink builds a wa.me link for number with text pre-filled. Spaces are
// encoded as %20 since WhatsApp shows "+" literally.
func DeepLink(number, text string) string {
	return "https://wa.me/" + number + "?text=" + strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
}

func tableOrDefault(table string) string {
	if strings.TrimSpace(table) == "" {
		return NoPreference
	}
	return table
}

func yesNo(v *bool) string {
	if v != nil && *v {
		return "✅ Sí"
	}
	return "❌ No"
}
