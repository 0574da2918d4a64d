package webchat

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/sportbar2312/reservation-bot/internal/conversation"
	"github.com/sportbar2312/reservation-bot/internal/venue"
	"github.com/sportbar2312/reservation-bot/internal/wizard"
	"github.com/sportbar2312/reservation-bot/pkg/logging"
)

// Chat runs conversations.
type Chat interface {
	Resume(ctx context.Context, conversationID, clientKey string) (*conversation.Result, error)
	Handle(ctx context.Context, req conversation.Request) (*conversation.Result, error)
	Snapshot(ctx context.Context, conversationID string) (wizard.State, error)
}

// BookingHistory reads a customer's cached bookings.
type BookingHistory interface {
	History(ctx context.Context, client string) ([]wizard.Booking, error)
	LastBooking(ctx context.Context, client string) (*wizard.Booking, error)
}

// Handler manages web chat connections and messages.
type Handler struct {
	chat     Chat
	bookings BookingHistory
	catalog  *venue.Catalog
	logger   *logging.Logger

	mu       sync.RWMutex
	sessions map[string]*wsConn // conversationID -> active connection
}

type wsConn struct {
	conn *websocket.Conn
	done chan struct{}
}

// NewHandler creates a web chat handler.
func NewHandler(chat Chat, bookings BookingHistory, catalog *venue.Catalog, logger *logging.Logger) *Handler {
	if chat == nil {
		panic("webchat: chat cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		chat:     chat,
		bookings: bookings,
		catalog:  catalog,
		logger:   logger,
		sessions: make(map[string]*wsConn),
	}
}

// ConversationID builds the canonical conversation ID for a webchat session.
func ConversationID(clientKey, sessionID string) string {
	return fmt.Sprintf("webchat:%s:%s", clientKey, sessionID)
}

// generateSessionID creates a random session identifier.
func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return uuid.New().String()
	}
	return hex.EncodeToString(b)
}

// clientKey falls back to the session so anonymous visitors still get a
// stable cache identity for the lifetime of the session.
func clientKey(client, sessionID string) string {
	if client = strings.TrimSpace(client); client != "" {
		return client
	}
	return sessionID
}

// HandleWebSocket upgrades to WebSocket and handles real-time messaging.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		sessionID = generateSessionID()
	}
	client := clientKey(r.URL.Query().Get("client"), sessionID)
	convID := ConversationID(client, sessionID)

	// Inputs outlive the request context; they finish before the socket is released.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()
	var inflight sync.WaitGroup
	defer inflight.Wait()

	_ = websocket.JSON.Send(conn, OutboundMessage{
		Type:           "session",
		SessionID:      sessionID,
		ConversationID: convID,
	})

	res, err := h.chat.Resume(ctx, convID, client)
	if err != nil {
		h.logger.Error("webchat: failed to open conversation", "conversation_id", convID, "error", err)
		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "error", Text: "No pudimos iniciar el chat. Probá de nuevo."})
		return
	}
	_ = websocket.JSON.Send(conn, outputsFrame(sessionID, res))

	wsc := &wsConn{conn: conn, done: make(chan struct{})}
	h.mu.Lock()
	h.sessions[convID] = wsc
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		if h.sessions[convID] == wsc {
			delete(h.sessions, convID)
		}
		h.mu.Unlock()
		close(wsc.done)
	}()

	h.logger.Info("webchat: connection opened", "conversation_id", convID)

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("webchat: connection closed", "conversation_id", convID, "error", err)
			return
		}

		if msg.Type == "ping" {
			_ = websocket.JSON.Send(conn, OutboundMessage{Type: "pong"})
			continue
		}

		ev, ok := msg.Event()
		if !ok {
			continue
		}

		// Each input runs on its own so one arriving mid-reply hits the
		// busy flag and is dropped instead of queueing behind it.
		inflight.Add(1)
		go func() {
			defer inflight.Done()
			h.processEvent(ctx, sessionID, client, convID, ev)
		}()
	}
}

func (h *Handler) processEvent(ctx context.Context, sessionID, client, convID string, ev wizard.Event) {
	h.SendToSession(convID, OutboundMessage{Type: "typing"})

	res, err := h.chat.Handle(ctx, conversation.Request{ConversationID: convID, ClientKey: client, Event: ev})
	switch {
	case errors.Is(err, conversation.ErrBusy):
		h.SendToSession(convID, OutboundMessage{Type: "dropped", ConversationID: convID})
		return
	case err != nil:
		h.logger.Error("webchat: failed to process input", "conversation_id", convID, "error", err)
		h.SendToSession(convID, OutboundMessage{
			Type: "error",
			Text: "Perdón, algo salió mal. Probá de nuevo.",
		})
		return
	}
	h.logCacheErrors(convID, res)
	h.SendToSession(convID, outputsFrame(sessionID, res))
}

// SendToSession sends a message to an active WebSocket session.
func (h *Handler) SendToSession(convID string, msg OutboundMessage) {
	h.mu.RLock()
	wsc, ok := h.sessions[convID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	_ = websocket.JSON.Send(wsc.conn, msg)
}

func (h *Handler) logCacheErrors(convID string, res *conversation.Result) {
	for _, err := range res.CacheErrors {
		h.logger.Warn("webchat: cache degraded", "conversation_id", convID, "error", err)
	}
}

// HandleMessage is the HTTP fallback for sending messages.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req InboundMessage
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Type == "" && req.Text != "" {
		req.Type = "message"
	}
	if req.SessionID == "" {
		req.SessionID = generateSessionID()
	}
	client := clientKey(req.ClientKey, req.SessionID)
	convID := ConversationID(client, req.SessionID)

	var (
		res *conversation.Result
		err error
	)
	if ev, ok := req.Event(); ok {
		res, err = h.chat.Handle(r.Context(), conversation.Request{ConversationID: convID, ClientKey: client, Event: ev})
	} else if req.Type == "" {
		res, err = h.chat.Resume(r.Context(), convID, client)
	} else {
		http.Error(w, "unsupported message type", http.StatusBadRequest)
		return
	}

	if errors.Is(err, conversation.ErrBusy) {
		writeJSON(w, http.StatusTooManyRequests, OutboundMessage{Type: "dropped", SessionID: req.SessionID, ConversationID: convID})
		return
	}
	if err != nil {
		h.logger.Error("webchat: failed to process input", "conversation_id", convID, "error", err)
		http.Error(w, "failed to process message", http.StatusInternalServerError)
		return
	}
	h.logCacheErrors(convID, res)
	writeJSON(w, http.StatusOK, outputsFrame(req.SessionID, res))
}

// HandleBookings returns the last booking and recent history for a client.
// The caller must present the session of a live conversation for that
// client; a client key alone does not unlock its history.
func (h *Handler) HandleBookings(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session"))
	if sessionID == "" {
		http.Error(w, "session parameter required", http.StatusBadRequest)
		return
	}
	client := clientKey(r.URL.Query().Get("client"), sessionID)
	convID := ConversationID(client, sessionID)

	if _, err := h.chat.Snapshot(r.Context(), convID); err != nil {
		if errors.Is(err, conversation.ErrUnknownConversation) {
			http.Error(w, "unknown session", http.StatusNotFound)
			return
		}
		h.logger.Error("webchat: failed to load conversation", "conversation_id", convID, "error", err)
		http.Error(w, "booking history unavailable", http.StatusServiceUnavailable)
		return
	}
	if h.bookings == nil {
		writeJSON(w, http.StatusOK, map[string]any{"history": []wizard.Booking{}})
		return
	}

	history, err := h.bookings.History(r.Context(), client)
	if err != nil {
		h.logger.Error("webchat: failed to load booking history", "error", err)
		http.Error(w, "booking history unavailable", http.StatusServiceUnavailable)
		return
	}
	last, err := h.bookings.LastBooking(r.Context(), client)
	if err != nil {
		h.logger.Error("webchat: failed to load last booking", "error", err)
		http.Error(w, "booking history unavailable", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"last_booking": last,
		"history":      history,
	})
}

// HandleVenue serves the catalog the widget renders zones and slots from.
func (h *Handler) HandleVenue(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		http.Error(w, "venue not configured", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, h.catalog)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
