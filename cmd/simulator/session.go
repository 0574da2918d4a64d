package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sportbar2312/reservation-bot/internal/conversation"
	"github.com/sportbar2312/reservation-bot/internal/wizard"
)

const commandHelp = `  /zona <id>          elegir zona
  /hora <HH:MM>       elegir horario
  /fecha <AAAA-MM-DD> confirmar fecha
  /mesa <número>      elegir mesa ("/mesa" sola para sin preferencia)
  /ofertas <sí|no>    responder ofertas
  /reiniciar          empezar de nuevo
  /salir              terminar`

var errQuit = errors.New("quit")

// chat is the slice of the conversation service the terminal needs.
type chat interface {
	Start(ctx context.Context, conversationID, clientKey string) (*conversation.Result, error)
	Handle(ctx context.Context, req conversation.Request) (*conversation.Result, error)
}

type session struct {
	chat           chat
	client         string
	conversationID string
	out            io.Writer
}

func newSession(c chat, client string, out io.Writer) *session {
	return &session{chat: c, client: client, out: out}
}

// Run starts a conversation and feeds it one line of in at a time until EOF,
// /salir or ctx is done.
func (s *session) Run(ctx context.Context, in io.Reader) error {
	res, err := s.chat.Start(ctx, "", s.client)
	if err != nil {
		return err
	}
	s.conversationID = res.ConversationID
	s.render(res)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		ev, err := parseLine(line)
		if errors.Is(err, errQuit) {
			fmt.Fprintln(s.out, "👋 ¡Hasta luego!")
			return nil
		}
		if err != nil {
			fmt.Fprintf(s.out, "⚠️  %v\n%s\n", err, commandHelp)
			continue
		}

		res, err := s.chat.Handle(ctx, conversation.Request{
			ConversationID: s.conversationID,
			ClientKey:      s.client,
			Event:          ev,
		})
		if err != nil {
			fmt.Fprintf(s.out, "⚠️  %v\n", err)
			continue
		}
		s.render(res)
	}
}

// parseLine turns a terminal line into a wizard event. Lines that do not
// start with "/" are typed text.
func parseLine(line string) (wizard.Event, error) {
	if !strings.HasPrefix(line, "/") {
		return wizard.Text(line), nil
	}
	command, arg, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(command) {
	case "zona":
		if arg == "" {
			return wizard.Event{}, errors.New("falta la zona")
		}
		return wizard.SelectZone(strings.ToLower(arg)), nil
	case "hora":
		if arg == "" {
			return wizard.Event{}, errors.New("falta el horario")
		}
		return wizard.SelectTime(arg), nil
	case "fecha":
		if arg == "" {
			return wizard.Event{}, errors.New("falta la fecha")
		}
		return wizard.ConfirmDate(arg), nil
	case "mesa":
		if arg == "" {
			return wizard.PickTable(wizard.NoPreference), nil
		}
		return wizard.PickTable(arg), nil
	case "ofertas":
		switch strings.ToLower(arg) {
		case "si", "sí", "true":
			return wizard.PickOptIn(true), nil
		case "no", "false":
			return wizard.PickOptIn(false), nil
		}
		return wizard.Event{}, errors.New("respondé /ofertas sí o /ofertas no")
	case "reiniciar":
		return wizard.Reset(""), nil
	case "salir":
		return wizard.Event{}, errQuit
	}
	return wizard.Event{}, fmt.Errorf("comando desconocido /%s", command)
}

var actionCommands = map[wizard.EventKind]string{
	wizard.EventSelectZone:  "/zona",
	wizard.EventSelectTime:  "/hora",
	wizard.EventConfirmDate: "/fecha",
	wizard.EventPickTable:   "/mesa",
	wizard.EventPickOptIn:   "/ofertas",
}

func (s *session) render(res *conversation.Result) {
	for _, o := range res.Outputs {
		switch o.Kind {
		case wizard.OutputOptions:
			fmt.Fprintf(s.out, "🤖 %s\n", o.Text)
			cmd := actionCommands[o.Action]
			for _, opt := range o.Options {
				fmt.Fprintf(s.out, "   %s %s  → %s\n", cmd, optionArg(o.Action, opt), opt.Label)
			}
		case wizard.OutputDatePicker:
			fmt.Fprintf(s.out, "🤖 %s\n", o.Text)
			if o.DatePicker != nil {
				fmt.Fprintf(s.out, "   /fecha %s  (desde %s)\n", o.DatePicker.Value, o.DatePicker.Min)
			}
		case wizard.OutputSummary:
			if o.Summary != nil {
				for _, line := range o.Summary.Lines {
					fmt.Fprintf(s.out, "   %s\n", line)
				}
			}
		case wizard.OutputHandoff:
			fmt.Fprintf(s.out, "🤖 %s\n", o.Text)
			if o.Handoff != nil {
				fmt.Fprintf(s.out, "%s\n🔗 %s\n", o.Handoff.Message, o.Handoff.URL)
			}
		default:
			fmt.Fprintf(s.out, "🤖 %s\n", o.Text)
		}
	}
}

func optionArg(action wizard.EventKind, opt wizard.Option) string {
	switch action {
	case wizard.EventPickOptIn:
		if opt.Value == "true" {
			return "sí"
		}
		return "no"
	case wizard.EventPickTable:
		if opt.Value == wizard.NoPreference {
			return ""
		}
	}
	return opt.Value
}
