package wizard

import (
	"strconv"
	"time"

	"github.com/sportbar2312/reservation-bot/internal/venue"
)

// Step is the question the wizard is waiting on.
type Step int

const (
	StepName Step = iota
	StepZone
	StepPartySize
	StepDate
	StepTime
	StepTablePreference
	StepMarketingOptIn
	StepComplete
)

var stepNames = [...]string{
	StepName:            "awaiting_name",
	StepZone:            "awaiting_zone",
	StepPartySize:       "awaiting_party_size",
	StepDate:            "awaiting_date",
	StepTime:            "awaiting_time",
	StepTablePreference: "awaiting_table_preference",
	StepMarketingOptIn:  "awaiting_marketing_opt_in",
	StepComplete:        "complete",
}

func (s Step) String() string {
	if s < 0 || int(s) >= len(stepNames) {
		return "step(" + strconv.Itoa(int(s)) + ")"
	}
	return stepNames[s]
}

// NoPreference is stored when the customer has no table in mind.
const NoPreference = "Sin preferencia"

// Booking is the reservation being filled in during one conversation.
// Fields are set monotonically as steps complete.
type Booking struct {
	Name        string      `json:"name"`
	Zone        *venue.Zone `json:"zone,omitempty"`
	People      *int        `json:"people,omitempty"`
	Date        string      `json:"date,omitempty"`
	Time        string      `json:"time,omitempty"`
	Table       string      `json:"table"`
	Offers      *bool       `json:"offers,omitempty"`
	Completed   bool        `json:"completed,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// State is everything the wizard needs to resume a conversation.
type State struct {
	Step    Step    `json:"step"`
	Booking Booking `json:"booking"`
}

// EventKind distinguishes typed text from out-of-band selections.
type EventKind string

const (
	EventText        EventKind = "text"
	EventSelectZone  EventKind = "select_zone"
	EventSelectTime  EventKind = "select_time"
	EventConfirmDate EventKind = "confirm_date"
	EventPickTable   EventKind = "pick_table"
	EventPickOptIn   EventKind = "pick_opt_in"
	EventReset       EventKind = "reset"
)

// Event is one input to the wizard. Text carries typed messages; Value
// carries the payload of a selection (zone id, HH:MM, YYYY-MM-DD, table
// label, "true"/"false") or, for resets, the cached customer name.
type Event struct {
	Kind  EventKind `json:"kind"`
	Text  string    `json:"text,omitempty"`
	Value string    `json:"value,omitempty"`
}

func Text(s string) Event { return Event{Kind: EventText, Text: s} }
func SelectZone(id string) Event { return Event{Kind: EventSelectZone, Value: id} }
func SelectTime(slot string) Event { return Event{Kind: EventSelectTime, Value: slot} }
func ConfirmDate(iso string) Event { return Event{Kind: EventConfirmDate, Value: iso} }
func PickTable(label string) Event { return Event{Kind: EventPickTable, Value: label} }
func PickOptIn(accept bool) Event { return Event{Kind: EventPickOptIn, Value: strconv.FormatBool(accept)} }
func Reset(cachedName string) Event { return Event{Kind: EventReset, Value: cachedName} }

// OutputKind tells adapters how to render an output.
type OutputKind string

const (
	OutputText       OutputKind = "text"
	OutputOptions    OutputKind = "options"
	OutputDatePicker OutputKind = "date_picker"
	OutputSummary    OutputKind = "summary"
	OutputHandoff    OutputKind = "handoff"
)

// Option is one selectable choice. Picking it should send an Event of the
// owning output's Action kind carrying Value.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// DatePicker bounds the calendar shown for the date step (YYYY-MM-DD).
type DatePicker struct {
	Min   string `json:"min"`
	Value string `json:"value"`
}

// Summary is the display form of a completed booking.
type Summary struct {
	Lines   []string `json:"lines"`
	Booking Booking  `json:"booking"`
}

// Handoff is the pre-filled message for the external messaging channel.
type Handoff struct {
	Message string `json:"message"`
	URL     string `json:"url"`
}

// Output is one message the wizard wants shown to the customer.
type Output struct {
	Kind       OutputKind  `json:"kind"`
	Text       string      `json:"text,omitempty"`
	Action     EventKind   `json:"action,omitempty"`
	Options    []Option    `json:"options,omitempty"`
	DatePicker *DatePicker `json:"date_picker,omitempty"`
	Summary    *Summary    `json:"summary,omitempty"`
	Handoff    *Handoff    `json:"handoff,omitempty"`
}

// EffectKind names a cache write the embedding service should perform.
type EffectKind string

const (
	EffectSaveName      EffectKind = "save_name"
	EffectRecordBooking EffectKind = "record_booking"
)

// Effect is a side effect requested by a transition. The wizard never
// performs I/O itself.
type Effect struct {
	Kind    EffectKind
	Name    string
	Booking *Booking
}

// Result is the outcome of one transition.
type Result struct {
	State   State
	Outputs []Output
	Effects []Effect
}
