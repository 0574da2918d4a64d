package extract

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sportbar2312/reservation-bot/internal/venue"
)

var testNow = time.Date(2026, time.October, 19, 15, 30, 0, 0, time.UTC)

func TestExtract_FullSentence(t *testing.T) {
	cfg := ConfigFromCatalog(venue.Default())

	f := Extract("Quiero reservar para 4 personas en VIP mañana a las 20:00", cfg, testNow)

	require.NotNil(t, f.People)
	assert.Equal(t, 4, *f.People)
	require.NotNil(t, f.Zone)
	assert.Equal(t, "vip", f.Zone.ID)
	require.NotNil(t, f.Date)
	assert.Equal(t, time.Date(2026, time.October, 20, 0, 0, 0, 0, time.UTC), *f.Date)
	assert.Equal(t, "20:00", f.Time)
	assert.Empty(t, f.Table)
}

func TestExtract_NothingFound(t *testing.T) {
	f := Extract("hola, buenas", ConfigFromCatalog(venue.Default()), testNow)
	assert.Nil(t, f.People)
	assert.Nil(t, f.Zone)
	assert.Nil(t, f.Date)
	assert.Empty(t, f.Time)
	assert.Empty(t, f.Table)
}

func TestExtractPeople(t *testing.T) {
	tests := []struct {
		input  string
		want   int
		wantOK bool
	}{
		{"para 4 personas", 4, true},
		{"somos 6", 6, true},
		{"we are 3", 3, true},
		{"table for 2 please", 2, true},
		{"12 personas", 12, true},
		{"13 personas", 0, false},
		{"0 personas", 0, false},
		{"para 20:00", 0, false},
		{"para 9 hs", 0, false},
		{"para el 25/12", 0, false},
		{"mesa 5 para 4", 4, true},
		{"4", 0, false},
		{"quiero una mesa", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ExtractPeople(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractZone(t *testing.T) {
	c := venue.Default()
	tests := []struct {
		input  string
		wantID string
	}{
		{"en la terraza", "exterior"},
		{"algo VIP y privado", "vip"},
		{"adentro por favor", "interior"},
		{"en la barra", "barra"},
		{"vip o terraza", "vip"},
		{"terraza o vip", "vip"},
		{"queremos jugar pool", "billar"},
		{"la mesa 7", "vip"},
		{"mesa 22", "interior"},
		{"table 45", "exterior"},
		{"mesa 99", ""},
		{"nada que ver", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			z, ok := ExtractZone(tt.input, c.Zones, c.TableRanges)
			assert.Equal(t, tt.wantID != "", ok)
			assert.Equal(t, tt.wantID, z.ID)
		})
	}
}

func TestExtractZone_KeywordBeatsTableRange(t *testing.T) {
	c := venue.Default()
	z, ok := ExtractZone("mesa 7 en la terraza", c.Zones, c.TableRanges)
	require.True(t, ok)
	assert.Equal(t, "exterior", z.ID)
}

func TestExtractDate(t *testing.T) {
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }
	tests := []struct {
		input  string
		want   time.Time
		wantOK bool
	}{
		{"hoy", day(2026, time.October, 19), true},
		{"today at 8", day(2026, time.October, 19), true},
		{"mañana", day(2026, time.October, 20), true},
		{"manana a la noche", day(2026, time.October, 20), true},
		{"tomorrow", day(2026, time.October, 20), true},
		{"pasado mañana", day(2026, time.October, 21), true},
		{"hoy o mañana", day(2026, time.October, 19), true},
		{"a las 10 de la mañana", time.Time{}, false},
		{"el 25/12", day(2026, time.December, 25), true},
		{"el 3/1/27", day(2027, time.January, 3), true},
		{"el 3/1/2028", day(2028, time.January, 3), true},
		{"31/2", time.Time{}, false},
		{"5/13", time.Time{}, false},
		{"cuando puedan", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ExtractDate(tt.input, testNow)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractTime(t *testing.T) {
	tests := []struct {
		input  string
		want   string
		wantOK bool
	}{
		{"a las 20:00", "20:00", true},
		{"9:30", "09:30", true},
		{"20:00hs", "20:00", true},
		{"a las 21 hs", "21:00", true},
		{"7h", "07:00", true},
		{"8 horas", "08:00", true},
		{"24:00", "", false},
		{"10:75", "", false},
		{"25 hs", "", false},
		{"8.15 hs", "", false},
		{"a las 9", "", false},
		{"para 4 personas", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ExtractTime(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractTime_BareHourRange(t *testing.T) {
	for h := 0; h <= 23; h++ {
		got, ok := ExtractTime(fmt.Sprintf("llegamos %d hs", h))
		require.True(t, ok, "hour %d", h)
		assert.Equal(t, fmt.Sprintf("%02d:00", h), got)
	}
}

func TestExtractTime_ClockRange(t *testing.T) {
	for h := 0; h <= 23; h++ {
		for _, m := range []int{0, 15, 59} {
			got, ok := ExtractTime(fmt.Sprintf("a las %d:%02d", h, m))
			require.True(t, ok)
			assert.Equal(t, fmt.Sprintf("%02d:%02d", h, m), got)
		}
	}
}

func TestExtractTable(t *testing.T) {
	got, ok := ExtractTable("la Mesa 33 si se puede")
	require.True(t, ok)
	assert.Equal(t, "33", got)

	got, ok = ExtractTable("table #4")
	require.True(t, ok)
	assert.Equal(t, "4", got)

	_, ok = ExtractTable("mesa de billar")
	assert.False(t, ok)

	_, ok = ExtractTable("mesa 0")
	assert.False(t, ok)
}

func TestLooksLikeName(t *testing.T) {
	assert.True(t, LooksLikeName("Juan"))
	assert.True(t, LooksLikeName("  María  "))
	assert.False(t, LooksLikeName("Juan Pérez"))
	assert.False(t, LooksLikeName("12345"))
	assert.False(t, LooksLikeName(""))
	assert.False(t, LooksLikeName("Maximilianoalejandro"))
	// Known misfire: short zone keywords read as names.
	assert.True(t, LooksLikeName("vip"))
}
