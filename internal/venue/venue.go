// Package venue holds the static catalog the reservation bot works from:
// bookable zones, reservable time slots and the copy shown to customers.
package venue

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	// ErrInvalidZone is returned when a zone violates its capacity or spend bounds.
	ErrInvalidZone = errors.New("venue: invalid zone")

	// ErrInvalidTimeSlot is returned when a configured slot is not an hour-granular HH:00 value.
	ErrInvalidTimeSlot = errors.New("venue: invalid time slot")
)

// Zone is a bookable seating area with capacity bounds and an optional minimum spend.
type Zone struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	MinConsumption int      `json:"min_consumption"`
	MinPeople      int      `json:"min_people"`
	MaxPeople      int      `json:"max_people"`
	Keywords       []string `json:"keywords"`
}

// Accepts reports whether a party of the given size fits the zone.
func (z Zone) Accepts(people int) bool {
	return people >= z.MinPeople && people <= z.MaxPeople
}

// Bounds renders the capacity range the way prompts show it, e.g. "4-8".
func (z Zone) Bounds() string {
	return fmt.Sprintf("%d-%d", z.MinPeople, z.MaxPeople)
}

// TableRange maps a block of table numbers onto a zone.
type TableRange struct {
	From   int    `json:"from"`
	To     int    `json:"to"`
	ZoneID string `json:"zone_id"`
}

// Catalog is the immutable configuration shared by the extractor and the wizard.
type Catalog struct {
	VenueName      string       `json:"venue_name"`
	ContactNumber  string       `json:"contact_number"`
	WelcomeMessage string       `json:"welcome_message"`
	Zones          []Zone       `json:"zones"`
	TimeSlots      []string     `json:"time_slots"`
	TableRanges    []TableRange `json:"table_ranges,omitempty"`
}

// Default returns the SportBar 23 y 12 catalog.
func Default() *Catalog {
	return &Catalog{
		VenueName:     "SPORTBAR 23 Y 12",
		ContactNumber: "5358873126",
		WelcomeMessage: "🏈 ¡Hola! Soy --SportBot🏈🤖--, tu asistente de reservas.\n\n" +
			"¿En qué te puedo ayudar hoy? Podés decirme primero, ¿Cómo te llamas?",
		Zones: []Zone{
			{ID: "vip", Name: "🥇 VIP", MinConsumption: 3000, MinPeople: 4, MaxPeople: 8, Keywords: []string{"vip", "exclusivo", "privado"}},
			{ID: "interior", Name: "🪑 Estándar Interior", MinPeople: 2, MaxPeople: 6, Keywords: []string{"interior", "adentro", "dentro"}},
			{ID: "exterior", Name: "🌳 Estándar Exterior", MinPeople: 2, MaxPeople: 8, Keywords: []string{"exterior", "afuera", "terraza"}},
			{ID: "barra", Name: "🍻 Barra", MinPeople: 1, MaxPeople: 2, Keywords: []string{"barra", "bar"}},
			{ID: "billar", Name: "🎱 Billar", MinPeople: 2, MaxPeople: 4, Keywords: []string{"billar", "pool", "mesa de billar", "jugar"}},
		},
		TimeSlots: []string{
			"07:00", "08:00", "09:00", "10:00", "11:00", "12:00", "13:00", "14:00", "15:00",
			"16:00", "17:00", "18:00", "19:00", "20:00", "21:00", "22:00", "23:00",
		},
		TableRanges: []TableRange{
			{From: 1, To: 10, ZoneID: "vip"},
			{From: 11, To: 30, ZoneID: "interior"},
			{From: 31, To: 50, ZoneID: "exterior"},
		},
	}
}

// Load reads a JSON catalog from path. An empty path yields the default catalog.
func Load(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("venue: read catalog: %w", err)
	}
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("venue: decode catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the invariants the rest of the bot relies on.
func (c *Catalog) Validate() error {
	if len(c.Zones) == 0 {
		return fmt.Errorf("%w: at least one zone is required", ErrInvalidZone)
	}
	seen := make(map[string]struct{}, len(c.Zones))
	for _, z := range c.Zones {
		if strings.TrimSpace(z.ID) == "" {
			return fmt.Errorf("%w: zone id required", ErrInvalidZone)
		}
		if _, dup := seen[z.ID]; dup {
			return fmt.Errorf("%w: duplicate zone %q", ErrInvalidZone, z.ID)
		}
		seen[z.ID] = struct{}{}
		if z.MinPeople < 1 || z.MinPeople > z.MaxPeople {
			return fmt.Errorf("%w: %s has people bounds %s", ErrInvalidZone, z.ID, z.Bounds())
		}
		if z.MinConsumption < 0 {
			return fmt.Errorf("%w: %s has negative minimum consumption", ErrInvalidZone, z.ID)
		}
	}
	for _, r := range c.TableRanges {
		if _, ok := seen[r.ZoneID]; !ok || r.From > r.To {
			return fmt.Errorf("%w: table range %d-%d -> %q", ErrInvalidZone, r.From, r.To, r.ZoneID)
		}
	}
	if len(c.TimeSlots) == 0 {
		return fmt.Errorf("%w: at least one slot is required", ErrInvalidTimeSlot)
	}
	for _, slot := range c.TimeSlots {
		if !isHourSlot(slot) {
			return fmt.Errorf("%w: %q", ErrInvalidTimeSlot, slot)
		}
	}
	return nil
}

// ZoneByID finds a zone by its identifier.
func (c *Catalog) ZoneByID(id string) (Zone, bool) {
	for _, z := range c.Zones {
		if z.ID == id {
			return z, true
		}
	}
	return Zone{}, false
}

// HasTimeSlot reports whether t is one of the configured slots.
func (c *Catalog) HasTimeSlot(t string) bool {
	for _, slot := range c.TimeSlots {
		if slot == t {
			return true
		}
	}
	return false
}

func isHourSlot(s string) bool {
	if len(s) != 5 || s[2] != ':' || s[3:] != "00" {
		return false
	}
	h := int(s[0]-'0')*10 + int(s[1]-'0')
	return s[0] >= '0' && s[0] <= '2' && s[1] >= '0' && s[1] <= '9' && h <= 23
}
