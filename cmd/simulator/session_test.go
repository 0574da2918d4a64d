package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sportbar2312/reservation-bot/internal/cache"
	"github.com/sportbar2312/reservation-bot/internal/conversation"
	"github.com/sportbar2312/reservation-bot/internal/venue"
	"github.com/sportbar2312/reservation-bot/internal/wizard"
	"github.com/sportbar2312/reservation-bot/pkg/logging"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		line    string
		want    wizard.Event
		wantErr bool
	}{
		{line: "Juan", want: wizard.Text("Juan")},
		{line: "/zona VIP", want: wizard.SelectZone("vip")},
		{line: "/hora 20:00", want: wizard.SelectTime("20:00")},
		{line: "/fecha 2026-10-20", want: wizard.ConfirmDate("2026-10-20")},
		{line: "/mesa 12", want: wizard.PickTable("12")},
		{line: "/mesa", want: wizard.PickTable(wizard.NoPreference)},
		{line: "/ofertas sí", want: wizard.PickOptIn(true)},
		{line: "/ofertas no", want: wizard.PickOptIn(false)},
		{line: "/reiniciar", want: wizard.Reset("")},
		{line: "/zona", wantErr: true},
		{line: "/ofertas tal vez", wantErr: true},
		{line: "/bailar", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := parseLine(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := parseLine("/salir")
	assert.ErrorIs(t, err, errQuit)
}

func TestSessionRun_FullBooking(t *testing.T) {
	now := time.Date(2026, 10, 19, 15, 30, 0, 0, time.UTC)
	svc := conversation.NewService(
		wizard.New(venue.Default()),
		conversation.NewMemoryStateStore(),
		cache.New(cache.NewMemoryBackend(), 0),
		logging.New("error"),
		conversation.WithTypingDelay(0),
		conversation.WithClock(func() time.Time { return now }),
	)

	input := strings.Join([]string{
		"Juan",
		"/zona vip",
		"4",
		"/fecha 2026-10-20",
		"/hora 20:00",
		"/mesa",
		"/ofertas sí",
		"/salir",
	}, "\n")

	var out bytes.Buffer
	require.NoError(t, newSession(svc, "c1", &out).Run(context.Background(), strings.NewReader(input)))

	text := out.String()
	assert.Contains(t, text, "/zona vip  → 🥇 VIP")
	assert.Contains(t, text, "/fecha 2026-10-19  (desde 2026-10-19)")
	assert.Contains(t, text, "/ofertas sí  → ✅ Sí")
	assert.Contains(t, text, "✅ ¡Reserva lista!")
	assert.Contains(t, text, "👥 4 personas")
	assert.Contains(t, text, "🔗 https://wa.me/5358873126?text=")
	assert.Contains(t, text, "👋 ¡Hasta luego!")
}

func TestSessionRun_BadCommandKeepsGoing(t *testing.T) {
	svc := conversation.NewService(
		wizard.New(venue.Default()),
		conversation.NewMemoryStateStore(),
		cache.New(cache.NewMemoryBackend(), 0),
		logging.New("error"),
		conversation.WithTypingDelay(0),
	)

	var out bytes.Buffer
	err := newSession(svc, "c1", &out).Run(context.Background(), strings.NewReader("/bailar\nJuan\n"))
	require.NoError(t, err)

	assert.Contains(t, out.String(), "comando desconocido /bailar")
	assert.Contains(t, out.String(), "Hola Juan")
}
