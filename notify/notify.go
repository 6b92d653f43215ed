// Package notify converts inbound push payloads into displayed
// notifications and maps notification actions to navigation.
// The display subsystem itself is an external collaborator behind
// the Notifier interface.
package notify

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultTitle = "Offline Gateway"
	DefaultBody  = "You have a new notification."
	DefaultIcon  = "/images/icons/icon-96x96.png"

	// ActionOpen opens the application's root view.
	ActionOpen = "open"
)

// Action is one interactive button on a notification.
type Action struct {
	Action string `json:"action"`
	Title  string `json:"title"`
}

// Payload is the structured content of a push message.
// It is transient and never persisted beyond display.
type Payload struct {
	Title   string         `json:"title"`
	Body    string         `json:"body"`
	Icon    string         `json:"icon"`
	Tag     string         `json:"tag"`
	Data    map[string]any `json:"data"`
	Actions []Action       `json:"actions"`
}

// Descriptor is a fully-defaulted notification ready for display.
type Descriptor struct {
	Title   string
	Body    string
	Icon    string
	Tag     string
	Data    map[string]any
	Actions []Action
}

// Navigation is the instruction resulting from a notification action.
type Navigation struct {
	Open bool
	URL  string
}

// Notifier displays notifications. Injected by the host application.
type Notifier interface {
	Display(Descriptor) error
}

type Relay struct {
	notifier Notifier
	log      zerolog.Logger
}

func NewRelay(notifier Notifier, logger *zerolog.Logger) *Relay {
	if logger == nil {
		logger = &log.Logger
	}
	return &Relay{
		notifier: notifier,
		log:      logger.With().Str("component", "notify").Logger(),
	}
}

// OnPush maps a push payload to a notification descriptor, fills in
// defaults for absent fields, and hands it to the notifier.
// A nil payload is a no-op, not an error.
func (r *Relay) OnPush(p *Payload) (*Descriptor, error) {
	if p == nil {
		r.log.Debug().Msg("Push without payload, nothing to display")
		return nil, nil
	}
	d := &Descriptor{
		Title:   p.Title,
		Body:    p.Body,
		Icon:    p.Icon,
		Tag:     p.Tag,
		Data:    p.Data,
		Actions: p.Actions,
	}
	if d.Title == "" {
		d.Title = DefaultTitle
	}
	if d.Body == "" {
		d.Body = DefaultBody
	}
	if d.Icon == "" {
		d.Icon = DefaultIcon
	}
	if err := r.notifier.Display(*d); err != nil {
		return nil, err
	}
	r.log.Debug().Str("title", d.Title).Str("tag", d.Tag).Msg("Displayed notification")
	return d, nil
}

// OnAction maps a chosen notification action to a navigation instruction.
// An "open" action, or the absence of any action, opens the root view.
// Everything else is a dismissal.
func (r *Relay) OnAction(action string) Navigation {
	if action == ActionOpen || action == "" {
		return Navigation{Open: true, URL: "/"}
	}
	return Navigation{}
}
