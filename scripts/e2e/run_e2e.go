// Package main runs end-to-end scenarios of the reservation chat against a
// running API server through the HTTP fallback endpoint.
//
// Scenarios:
//   - Happy-path booking answered one step at a time with selections
//   - Single-message booking that fast-forwards to the table question
//   - Validation reprompts (party size out of zone bounds, past date, unknown time)
//   - Returning customer recognised by the cached name after a reset
//   - Booking history endpoint after a completed booking
//
// Usage:
//
//	API_BASE_URL=http://localhost:8080 go run scripts/e2e/run_e2e.go              # runs all
//	API_BASE_URL=http://localhost:8080 go run scripts/e2e/run_e2e.go fast-forward # runs one
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sportbar2312/reservation-bot/internal/webchat"
	"github.com/sportbar2312/reservation-bot/internal/wizard"
)

var (
	apiBase    string
	httpClient = &http.Client{Timeout: 15 * time.Second}
)

type scenario struct {
	Name string
	Fn   func(t *T)
}

// T is a lightweight test context for a single scenario.
type T struct {
	passed int
	failed int
	name   string
}

func (t *T) check(name string, ok bool) {
	if ok {
		fmt.Printf("    PASS: %s\n", name)
		t.passed++
	} else {
		fmt.Printf("    FAIL: %s\n", name)
		t.failed++
	}
}

func (t *T) fatalf(format string, args ...any) {
	fmt.Printf("    FATAL: "+format+"\n", args...)
	t.failed++
}

// chatSession is one widget session for one client key.
type chatSession struct {
	client  string
	session string
}

func newChatSession() *chatSession {
	return &chatSession{client: "e2e-" + uuid.NewString(), session: uuid.NewString()}
}

func (c *chatSession) post(msg webchat.InboundMessage) (webchat.OutboundMessage, error) {
	msg.ClientKey = c.client
	msg.SessionID = c.session
	body, _ := json.Marshal(msg)

	resp, err := httpClient.Post(apiBase+"/chat/message", "application/json", bytes.NewReader(body))
	if err != nil {
		return webchat.OutboundMessage{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return webchat.OutboundMessage{}, fmt.Errorf("POST /chat/message returned %d", resp.StatusCode)
	}
	var frame webchat.OutboundMessage
	if err := json.NewDecoder(resp.Body).Decode(&frame); err != nil {
		return webchat.OutboundMessage{}, err
	}
	return frame, nil
}

func (c *chatSession) say(text string) (webchat.OutboundMessage, error) {
	return c.post(webchat.InboundMessage{Type: "message", Text: text})
}

func (c *chatSession) pick(action wizard.EventKind, value string) (webchat.OutboundMessage, error) {
	return c.post(webchat.InboundMessage{Type: "select", Action: string(action), Value: value})
}

func (c *chatSession) reset() (webchat.OutboundMessage, error) {
	return c.post(webchat.InboundMessage{Type: "reset"})
}

func allText(frame webchat.OutboundMessage) string {
	var parts []string
	for _, o := range frame.Outputs {
		parts = append(parts, o.Text)
		if o.Summary != nil {
			parts = append(parts, o.Summary.Lines...)
		}
		if o.Handoff != nil {
			parts = append(parts, o.Handoff.Message, o.Handoff.URL)
		}
	}
	return strings.Join(parts, "\n")
}

func hasAction(frame webchat.OutboundMessage, action wizard.EventKind) bool {
	for _, o := range frame.Outputs {
		if o.Action == action {
			return true
		}
	}
	return false
}

func tomorrow() string {
	return time.Now().AddDate(0, 0, 1).Format("2006-01-02")
}

func scenarioHappyPath(t *T) {
	c := newChatSession()
	steps := []struct {
		name     string
		send     func() (webchat.OutboundMessage, error)
		wantStep string
	}{
		{"name captured", func() (webchat.OutboundMessage, error) { return c.say("Juan") }, "awaiting_zone"},
		{"zone picked", func() (webchat.OutboundMessage, error) { return c.pick(wizard.EventSelectZone, "interior") }, "awaiting_party_size"},
		{"party size typed", func() (webchat.OutboundMessage, error) { return c.say("4") }, "awaiting_date"},
		{"date confirmed", func() (webchat.OutboundMessage, error) { return c.pick(wizard.EventConfirmDate, tomorrow()) }, "awaiting_time"},
		{"time picked", func() (webchat.OutboundMessage, error) { return c.pick(wizard.EventSelectTime, "21:00") }, "awaiting_table_preference"},
		{"table typed", func() (webchat.OutboundMessage, error) { return c.say("mesa 12") }, "awaiting_marketing_opt_in"},
	}
	for _, s := range steps {
		frame, err := s.send()
		if err != nil {
			t.fatalf("%s: %v", s.name, err)
			return
		}
		t.check(fmt.Sprintf("%s -> %s", s.name, s.wantStep), frame.Step == s.wantStep)
	}

	frame, err := c.pick(wizard.EventPickOptIn, "true")
	if err != nil {
		t.fatalf("opt-in: %v", err)
		return
	}
	text := allText(frame)
	t.check("booking complete", frame.Step == "complete")
	t.check("summary has party size", strings.Contains(text, "👥 4 personas"))
	t.check("summary has table", strings.Contains(text, "Mesa 12"))
	t.check("handoff deep link", strings.Contains(text, "https://wa.me/"))
}

func scenarioFastForward(t *T) {
	c := newChatSession()
	if _, err := c.say("Juan"); err != nil {
		t.fatalf("name: %v", err)
		return
	}
	frame, err := c.say("Quiero reservar para 4 personas en VIP mañana a las 20:00")
	if err != nil {
		t.fatalf("fast-forward message: %v", err)
		return
	}
	t.check("jumped to table preference", frame.Step == "awaiting_table_preference")
	t.check("zone acknowledged", strings.Contains(allText(frame), "VIP"))
	t.check("table options offered", hasAction(frame, wizard.EventPickTable))
}

func scenarioValidation(t *T) {
	c := newChatSession()
	if _, err := c.say("Juan"); err != nil {
		t.fatalf("name: %v", err)
		return
	}
	if _, err := c.pick(wizard.EventSelectZone, "vip"); err != nil {
		t.fatalf("zone: %v", err)
		return
	}

	frame, err := c.say("2")
	if err != nil {
		t.fatalf("party size: %v", err)
		return
	}
	t.check("party below VIP minimum reprompts", frame.Step == "awaiting_party_size")
	t.check("bounds stated", strings.Contains(allText(frame), "4-8"))

	if _, err := c.say("6"); err != nil {
		t.fatalf("party size: %v", err)
		return
	}
	frame, err = c.pick(wizard.EventConfirmDate, time.Now().AddDate(0, 0, -3).Format("2006-01-02"))
	if err != nil {
		t.fatalf("past date: %v", err)
		return
	}
	t.check("past date rejected", frame.Step == "awaiting_date")

	frame, err = c.say("el viernes")
	if err != nil {
		t.fatalf("typed date: %v", err)
		return
	}
	t.check("typed date asks for the picker", frame.Step == "awaiting_date" && hasAction(frame, wizard.EventConfirmDate))

	if _, err := c.pick(wizard.EventConfirmDate, tomorrow()); err != nil {
		t.fatalf("date: %v", err)
		return
	}
	frame, err = c.say("a las 3 de la madrugada")
	if err != nil {
		t.fatalf("time: %v", err)
		return
	}
	t.check("unknown time reprompts", frame.Step == "awaiting_time" && hasAction(frame, wizard.EventSelectTime))
}

func scenarioReturningCustomer(t *T) {
	c := newChatSession()
	if _, err := c.say("Valentina"); err != nil {
		t.fatalf("name: %v", err)
		return
	}
	frame, err := c.reset()
	if err != nil {
		t.fatalf("reset: %v", err)
		return
	}
	t.check("reset returns to name step", frame.Step == "awaiting_name")
	t.check("asks to confirm cached name", strings.Contains(allText(frame), "¿Eres Valentina?"))

	frame, err = c.say("sí")
	if err != nil {
		t.fatalf("confirm name: %v", err)
		return
	}
	t.check("cached name reused", frame.Step == "awaiting_zone" && strings.Contains(allText(frame), "Hola Valentina"))
}

func scenarioHistory(t *T) {
	c := newChatSession()
	script := []func() (webchat.OutboundMessage, error){
		func() (webchat.OutboundMessage, error) { return c.say("Juan") },
		func() (webchat.OutboundMessage, error) { return c.pick(wizard.EventSelectZone, "barra") },
		func() (webchat.OutboundMessage, error) { return c.say("2") },
		func() (webchat.OutboundMessage, error) { return c.pick(wizard.EventConfirmDate, tomorrow()) },
		func() (webchat.OutboundMessage, error) { return c.pick(wizard.EventSelectTime, "19:00") },
		func() (webchat.OutboundMessage, error) { return c.pick(wizard.EventPickTable, wizard.NoPreference) },
		func() (webchat.OutboundMessage, error) { return c.pick(wizard.EventPickOptIn, "false") },
	}
	for i, send := range script {
		if _, err := send(); err != nil {
			t.fatalf("step %d: %v", i, err)
			return
		}
	}

	resp, err := httpClient.Get(apiBase + "/chat/bookings?client=" + c.client + "&session=" + c.session)
	if err != nil {
		t.fatalf("bookings: %v", err)
		return
	}
	defer resp.Body.Close()
	var body struct {
		LastBooking *wizard.Booking  `json:"last_booking"`
		History     []wizard.Booking `json:"history"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.fatalf("decode bookings: %v", err)
		return
	}
	t.check("bookings endpoint ok", resp.StatusCode == http.StatusOK)
	t.check("last booking stored", body.LastBooking != nil && body.LastBooking.Completed)
	t.check("history has the booking", len(body.History) == 1)
}

func main() {
	apiBase = strings.TrimRight(os.Getenv("API_BASE_URL"), "/")
	if apiBase == "" {
		fmt.Fprintln(os.Stderr, "ERROR: API_BASE_URL required")
		os.Exit(1)
	}

	scenarios := []scenario{
		{"happy-path", scenarioHappyPath},
		{"fast-forward", scenarioFastForward},
		{"validation", scenarioValidation},
		{"returning-customer", scenarioReturningCustomer},
		{"history", scenarioHistory},
	}

	filter := ""
	if len(os.Args) > 1 {
		filter = os.Args[1]
	}

	totalPassed := 0
	totalFailed := 0
	scenarioResults := make([]string, 0)

	for _, s := range scenarios {
		if filter != "" && s.Name != filter {
			continue
		}

		fmt.Printf("\n========================================\n")
		fmt.Printf("SCENARIO: %s\n", s.Name)
		fmt.Printf("========================================\n")

		t := &T{name: s.Name}
		s.Fn(t)

		totalPassed += t.passed
		totalFailed += t.failed

		status := "✅"
		if t.failed > 0 {
			status = "❌"
		}
		scenarioResults = append(scenarioResults, fmt.Sprintf("  %s %s (%d passed, %d failed)", status, s.Name, t.passed, t.failed))
	}

	fmt.Printf("\n========================================\n")
	fmt.Printf("RESULTS\n")
	fmt.Printf("========================================\n")
	for _, r := range scenarioResults {
		fmt.Println(r)
	}
	fmt.Printf("\nTotal: %d passed, %d failed\n", totalPassed, totalFailed)
	if totalFailed > 0 {
		os.Exit(1)
	}
}
