package handler

import (
	"voicematch/backend/internal/registry"
	"voicematch/backend/internal/voicehub"
)

// Handler carries the service dependencies the HTTP surface needs.
type Handler struct {
	Hub      *voicehub.Hub
	Matcher  *voicehub.Matcher
	Registry *registry.Service
	Relay    *voicehub.Relay
}

func NewHandler(hub *voicehub.Hub, matcher *voicehub.Matcher, reg *registry.Service, relay *voicehub.Relay) *Handler {
	return &Handler{Hub: hub, Matcher: matcher, Registry: reg, Relay: relay}
}
