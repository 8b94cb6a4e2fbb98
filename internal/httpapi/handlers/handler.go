package handlers

import (
	"log/slog"

	"github.com/mgp-travel/tourchat/internal/chat"
	"github.com/mgp-travel/tourchat/internal/config"
	"github.com/mgp-travel/tourchat/internal/session"
	"github.com/mgp-travel/tourchat/internal/store/rabbitmq"
	"github.com/mgp-travel/tourchat/internal/store/redisstore"
	"github.com/mgp-travel/tourchat/internal/stream"
)

// Handler bundles the collaborators every endpoint needs.
type Handler struct {
	Cfg      config.Config
	Sessions *session.Registry
	Bridge   *stream.Bridge
	ChatSvc  *chat.Service
	Usage    *redisstore.Store   // nil when Redis is not configured
	Rabbit   *rabbitmq.Publisher // nil when the async path is disabled
	Log      *slog.Logger
}

func NewHandler(cfg config.Config, sessions *session.Registry, bridge *stream.Bridge,
	chatSvc *chat.Service, usage *redisstore.Store, rabbit *rabbitmq.Publisher, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		Cfg:      cfg,
		Sessions: sessions,
		Bridge:   bridge,
		ChatSvc:  chatSvc,
		Usage:    usage,
		Rabbit:   rabbit,
		Log:      log,
	}
}
