// Package wizard implements the reservation step machine.
//
// The wizard is a pure function of (state, event, now): it never touches
// storage or transport. Cache writes come back as Effects and everything the
// customer should see comes back as Outputs.
package wizard

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/sportbar2312/reservation-bot/internal/extract"
	"github.com/sportbar2312/reservation-bot/internal/venue"
)

const isoDate = "2006-01-02"

var leadingNumberRE = regexp.MustCompile(`^\s*(\d{1,3})\b`)

var affirmatives = map[string]struct{}{
	"sí": {}, "si": {}, "yes": {}, "yep": {}, "dale": {}, "claro": {},
	"ok": {}, "okay": {}, "obvio": {}, "seguro": {}, "acepto": {},
}

var noPreferencePhrases = map[string]struct{}{
	"no": {}, "nop": {}, "ninguna": {}, "ninguno": {}, "cualquiera": {}, "any": {},
	"none": {}, "no tengo": {}, "no gracias": {}, "da igual": {}, "me da igual": {},
	"sin preferencia": {},
}

// Wizard walks a customer through the reservation questions.
type Wizard struct {
	catalog *venue.Catalog
	fields  extract.Config
}

// New builds a wizard over a validated catalog.
func New(catalog *venue.Catalog) *Wizard {
	if catalog == nil {
		panic("wizard: catalog cannot be nil")
	}
	return &Wizard{catalog: catalog, fields: extract.ConfigFromCatalog(catalog)}
}

// Catalog returns the configuration the wizard was built with.
func (w *Wizard) Catalog() *venue.Catalog {
	return w.catalog
}

// Start opens a conversation. cachedName pre-fills the booking when the
// customer has been here before.
func (w *Wizard) Start(cachedName string, now time.Time) Result {
	st := State{Step: StepName, Booking: Booking{Name: strings.TrimSpace(cachedName), Table: NoPreference}}
	res := Result{State: st}
	res.say(w.catalog.WelcomeMessage)
	if st.Booking.Name != "" {
		res.Outputs = append(res.Outputs, w.Prompt(st, now)...)
	}
	return res
}

// Prompt returns the question for the current step, as shown when a
// conversation is resumed.
func (w *Wizard) Prompt(st State, now time.Time) []Output {
	switch st.Step {
	case StepName:
		if st.Booking.Name != "" {
			return []Output{textOutput(fmt.Sprintf("¿Eres %s? (Si es así, escribí \"sí\" o tu nombre si es otro)", st.Booking.Name))}
		}
		return []Output{textOutput("¿Cómo te llamás?")}
	case StepZone:
		return []Output{w.zoneOptions("📍 Elegí una zona:")}
	case StepPartySize:
		return []Output{textOutput(fmt.Sprintf("👥 ¿Para cuántas personas? (%s)", st.Booking.Zone.Bounds()))}
	case StepDate:
		return []Output{datePicker("📅 Seleccioná la fecha en el calendario:", now)}
	case StepTime:
		return []Output{w.timeOptions("⏰ Elegí una hora:")}
	case StepTablePreference:
		return []Output{tablePrompt(st.Booking.Zone)}
	case StepMarketingOptIn:
		return []Output{optInOptions()}
	default:
		return []Output{textOutput("✅ Tu reserva ya está lista. Reiniciá la conversación para hacer otra.")}
	}
}

// Transition applies one event to st. Selection events only count at the
// step they belong to; anywhere else they are ignored.
func (w *Wizard) Transition(st State, ev Event, now time.Time) Result {
	if ev.Kind == EventReset {
		return w.Start(ev.Value, now)
	}

	res := Result{State: st}
	switch st.Step {
	case StepName:
		if ev.Kind == EventText {
			w.onName(&res, ev.Text, now)
		}
	case StepZone:
		w.onZone(&res, ev, now)
	case StepPartySize:
		if ev.Kind == EventText {
			w.onPartySize(&res, ev.Text, now)
		}
	case StepDate:
		w.onDate(&res, ev, now)
	case StepTime:
		w.onTime(&res, ev, now)
	case StepTablePreference:
		if ev.Kind == EventText || ev.Kind == EventPickTable {
			w.onTable(&res, ev, now)
		}
	case StepMarketingOptIn:
		w.onOptIn(&res, ev, now)
	case StepComplete:
		if ev.Kind == EventText {
			res.Outputs = append(res.Outputs, w.Prompt(st, now)...)
		}
	}
	return res
}

func (w *Wizard) onName(res *Result, text string, now time.Time) {
	name := strings.TrimSpace(text)
	if prefilled := res.State.Booking.Name; prefilled != "" && isAffirmative(name) {
		name = prefilled
	} else if carriesDetails(extract.Extract(text, w.fields, now)) {
		name = leadingName(name)
	}
	if len([]rune(name)) < 2 {
		res.say("¿Cómo te llamás?")
		return
	}

	res.State.Booking.Name = name
	res.Effects = append(res.Effects, Effect{Kind: EffectSaveName, Name: name})
	res.say(fmt.Sprintf("Hola %s 👋", name))
	res.State.Step = StepZone
	w.fastForward(res, text, now)
}

func (w *Wizard) onZone(res *Result, ev Event, now time.Time) {
	var zone venue.Zone
	var ok bool
	switch ev.Kind {
	case EventSelectZone:
		zone, ok = w.catalog.ZoneByID(ev.Value)
	case EventText:
		zone, ok = extract.ExtractZone(ev.Text, w.fields.Zones, w.fields.TableRanges)
	default:
		return
	}
	if !ok {
		res.Outputs = append(res.Outputs, w.zoneOptions("No reconocí la zona. 📍 Elegí una de estas:"))
		return
	}

	w.setZone(res, zone)
	if ev.Kind == EventText {
		w.fastForward(res, ev.Text, now)
		return
	}
	res.Outputs = append(res.Outputs, w.Prompt(res.State, now)...)
}

func (w *Wizard) onPartySize(res *Result, text string, now time.Time) {
	zone := res.State.Booking.Zone
	people, ok := extract.ExtractPeople(text)
	if !ok {
		if m := leadingNumberRE.FindStringSubmatch(text); m != nil {
			people, _ = strconv.Atoi(m[1])
			ok = true
		}
	}
	if !ok || !zone.Accepts(people) {
		res.say(fmt.Sprintf("Válido: %s personas", zone.Bounds()))
		return
	}

	res.State.Booking.People = &people
	res.State.Step = StepDate
	res.Outputs = append(res.Outputs, w.Prompt(res.State, now)...)
}

func (w *Wizard) onDate(res *Result, ev Event, now time.Time) {
	switch ev.Kind {
	case EventText:
		res.say("📅 Por favor, seleccioná la fecha en el calendario.")
		res.Outputs = append(res.Outputs, w.Prompt(res.State, now)...)
		return
	case EventConfirmDate:
	default:
		return
	}

	day, err := time.ParseInLocation(isoDate, strings.TrimSpace(ev.Value), now.Location())
	if err != nil || day.Before(startOfDay(now)) {
		res.Outputs = append(res.Outputs, datePicker("📅 Elegí una fecha válida, a partir de hoy:", now))
		return
	}
	res.State.Booking.Date = FormatDate(day)
	res.State.Step = StepTime
	res.Outputs = append(res.Outputs, w.Prompt(res.State, now)...)
}

func (w *Wizard) onTime(res *Result, ev Event, now time.Time) {
	var slot string
	switch ev.Kind {
	case EventSelectTime:
		slot = strings.TrimSpace(ev.Value)
	case EventText:
		slot = strings.TrimSpace(ev.Text)
		if !w.catalog.HasTimeSlot(slot) {
			slot, _ = extract.ExtractTime(ev.Text)
		}
	default:
		return
	}
	if !w.catalog.HasTimeSlot(slot) {
		res.Outputs = append(res.Outputs, w.timeOptions("Elegí un horario de la lista:"))
		return
	}

	res.State.Booking.Time = slot
	res.State.Step = StepTablePreference
	res.Outputs = append(res.Outputs, w.Prompt(res.State, now)...)
}

func (w *Wizard) onTable(res *Result, ev Event, now time.Time) {
	raw := ev.Text
	if ev.Kind == EventPickTable {
		raw = ev.Value
	}
	res.State.Booking.Table = tablePreference(raw)
	res.State.Step = StepMarketingOptIn
	res.Outputs = append(res.Outputs, w.Prompt(res.State, now)...)
}

func (w *Wizard) onOptIn(res *Result, ev Event, now time.Time) {
	var accept bool
	switch ev.Kind {
	case EventText:
		accept = isAffirmative(ev.Text)
	case EventPickOptIn:
		v, err := strconv.ParseBool(ev.Value)
		if err != nil {
			res.Outputs = append(res.Outputs, optInOptions())
			return
		}
		accept = v
	default:
		return
	}

	b := &res.State.Booking
	b.Offers = &accept
	b.Completed = true
	completedAt := now.UTC()
	b.CompletedAt = &completedAt
	res.State.Step = StepComplete

	done := *b
	res.Effects = append(res.Effects, Effect{Kind: EffectRecordBooking, Booking: &done})
	res.say("✅ ¡Reserva lista!")
	res.Outputs = append(res.Outputs,
		Output{Kind: OutputSummary, Summary: &Summary{Lines: SummaryLines(done), Booking: done}},
		Output{Kind: OutputHandoff, Text: "📲 Enviá este mensaje para confirmar:", Handoff: w.Handoff(done, now)},
	)
}

func (w *Wizard) setZone(res *Result, zone venue.Zone) {
	res.State.Booking.Zone = &zone
	res.State.Step = StepPartySize
	res.say(fmt.Sprintf("Elegiste %s", zone.Name))
}

// carriesDetails reports whether a message answers any question besides the
// name.
func carriesDetails(f extract.Fields) bool {
	return f.Zone != nil || f.People != nil || f.Date != nil || f.Time != "" || f.Table != ""
}

var namePrefixes = []string{"me llamo ", "mi nombre es ", "soy ", "i'm ", "my name is "}

// leadingName keeps the part of a message before its first comma, or its
// first word, dropping a "soy"/"me llamo" introduction.
func leadingName(text string) string {
	lower := strings.ToLower(text)
	for _, p := range namePrefixes {
		if strings.HasPrefix(lower, p) {
			text = text[len(p):]
			break
		}
	}
	if i := strings.IndexAny(text, ",.;"); i > 0 {
		return strings.TrimSpace(text[:i])
	}
	if words := strings.Fields(text); len(words) > 0 {
		return words[0]
	}
	return strings.TrimSpace(text)
}

// fastForward re-reads the message that just completed a step and skips
// every following step whose answer it already contains, in order zone,
// party size, date, time. It stops at the first field that is missing or
// fails its step's check, then asks that step's question.
func (w *Wizard) fastForward(res *Result, text string, now time.Time) {
	f := extract.Extract(text, w.fields, now)
	b := &res.State.Booking

chain:
	for {
		switch res.State.Step {
		case StepZone:
			if f.Zone == nil {
				break chain
			}
			w.setZone(res, *f.Zone)
		case StepPartySize:
			if f.People == nil || !b.Zone.Accepts(*f.People) {
				break chain
			}
			people := *f.People
			b.People = &people
			res.State.Step = StepDate
		case StepDate:
			if f.Date == nil || f.Date.Before(startOfDay(now)) {
				break chain
			}
			b.Date = FormatDate(*f.Date)
			res.State.Step = StepTime
		case StepTime:
			if !w.catalog.HasTimeSlot(f.Time) {
				break chain
			}
			b.Time = f.Time
			res.State.Step = StepTablePreference
		default:
			break chain
		}
	}
	res.Outputs = append(res.Outputs, w.Prompt(res.State, now)...)
}

func (w *Wizard) zoneOptions(text string) Output {
	opts := make([]Option, 0, len(w.catalog.Zones))
	for _, z := range w.catalog.Zones {
		opts = append(opts, Option{Value: z.ID, Label: z.Name})
	}
	return Output{Kind: OutputOptions, Text: text, Action: EventSelectZone, Options: opts}
}

func (w *Wizard) timeOptions(text string) Output {
	opts := make([]Option, 0, len(w.catalog.TimeSlots))
	for _, slot := range w.catalog.TimeSlots {
		opts = append(opts, Option{Value: slot, Label: slot})
	}
	return Output{Kind: OutputOptions, Text: text, Action: EventSelectTime, Options: opts}
}

func tablePrompt(zone *venue.Zone) Output {
	text := "🪑 ¿Alguna mesa en específico? Podés pedir ubicación, número, o decir \"no\" si no tenés preferencia."
	if zone != nil && zone.ID == "billar" {
		text = "🎱 ¿Alguna mesa de billar en específico? (Billar 1, Billar 2, o \"no\")"
	}
	return Output{
		Kind:    OutputOptions,
		Text:    text,
		Action:  EventPickTable,
		Options: []Option{{Value: NoPreference, Label: "🙌 " + NoPreference}},
	}
}

func optInOptions() Output {
	return Output{
		Kind:   OutputOptions,
		Text:   "📢 ¿Querés recibir ofertas y promociones por WhatsApp?",
		Action: EventPickOptIn,
		Options: []Option{
			{Value: "true", Label: "✅ Sí"},
			{Value: "false", Label: "❌ No"},
		},
	}
}

func datePicker(text string, now time.Time) Output {
	today := now.Format(isoDate)
	return Output{
		Kind:       OutputDatePicker,
		Text:       text,
		Action:     EventConfirmDate,
		DatePicker: &DatePicker{Min: today, Value: today},
	}
}

func textOutput(text string) Output {
	return Output{Kind: OutputText, Text: text}
}

func (r *Result) say(text string) {
	r.Outputs = append(r.Outputs, textOutput(text))
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// isAffirmative reports whether any word of text is a yes-like keyword.
func isAffirmative(text string) bool {
	for _, w := range words(text) {
		if _, ok := affirmatives[w]; ok {
			return true
		}
	}
	return false
}

func tablePreference(text string) string {
	text = strings.TrimSpace(text)
	if _, ok := noPreferencePhrases[strings.Join(words(text), " ")]; ok || text == "" {
		return NoPreference
	}
	if n, ok := extract.ExtractTable(text); ok {
		return "Mesa " + n
	}
	return text
}
