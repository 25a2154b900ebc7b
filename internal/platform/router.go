package platform

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/tsgs/tsgsbot/internal/errs"
	"github.com/tsgs/tsgsbot/internal/metrics"
	"github.com/tsgs/tsgsbot/internal/shared/logger"
	"go.uber.org/zap"
)

// HandlerFunc answers one interaction.
type HandlerFunc func(ctx context.Context, in *Interaction) (*Response, error)

// Route is a registered handler. OpensModal routes must be answered
// immediately instead of being deferred.
type Route struct {
	Handler    HandlerFunc
	OpensModal bool
}

// Router dispatches interactions by kind and command name or custom id prefix.
type Router struct {
	mu     sync.RWMutex
	routes map[InteractionKind]map[string]Route
	audit  func(in *Interaction)
}

func NewRouter() *Router {
	return &Router{routes: make(map[InteractionKind]map[string]Route)}
}

func (r *Router) handle(kind InteractionKind, key string, route Route) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.routes[kind] == nil {
		r.routes[kind] = make(map[string]Route)
	}
	if _, dup := r.routes[kind][key]; dup {
		panic(fmt.Sprintf("platform: duplicate %s route %q", kind, key))
	}
	r.routes[kind][key] = route
}

// Command registers a slash command handler.
func (r *Router) Command(name string, h HandlerFunc) { r.handle(KindCommand, name, Route{Handler: h}) }

// CommandModal registers a slash command that answers with a modal.
func (r *Router) CommandModal(name string, h HandlerFunc) {
	r.handle(KindCommand, name, Route{Handler: h, OpensModal: true})
}

// MessageCommand registers a message context-menu command that opens a modal.
func (r *Router) MessageCommand(name string, h HandlerFunc) {
	r.handle(KindMessageCommand, name, Route{Handler: h, OpensModal: true})
}

// UserCommand registers a user context-menu command.
func (r *Router) UserCommand(name string, h HandlerFunc) {
	r.handle(KindUserCommand, name, Route{Handler: h})
}

// Component registers a button or select handler for custom ids equal to
// prefix or starting with prefix+":".
func (r *Router) Component(prefix string, h HandlerFunc) {
	r.handle(KindComponent, prefix, Route{Handler: h})
}

// ComponentModal registers a component handler that answers with a modal.
func (r *Router) ComponentModal(prefix string, h HandlerFunc) {
	r.handle(KindComponent, prefix, Route{Handler: h, OpensModal: true})
}

// Modal registers a modal submit handler by custom id prefix.
func (r *Router) Modal(prefix string, h HandlerFunc) {
	r.handle(KindModalSubmit, prefix, Route{Handler: h})
}

// OnInvoke sets a hook called before every command handler.
func (r *Router) OnInvoke(fn func(in *Interaction)) {
	r.audit = fn
}

// routeKey returns the registration key for in.
func routeKey(in *Interaction) string {
	switch in.Kind {
	case KindComponent, KindModalSubmit:
		prefix, _, _ := strings.Cut(in.CustomID, ":")
		return prefix
	default:
		return in.Name
	}
}

// Lookup finds the route for in.
func (r *Router) Lookup(in *Interaction) (Route, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	route, ok := r.routes[in.Kind][routeKey(in)]
	return route, ok
}

// Names lists registered command names of kind.
func (r *Router) Names(kind InteractionKind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.routes[kind]))
	for name := range r.routes[kind] {
		names = append(names, name)
	}
	return names
}

// Dispatch runs the matching handler and always returns a response. Errors
// and panics become ephemeral messages; nothing escapes.
func (r *Router) Dispatch(ctx context.Context, in *Interaction) (resp *Response) {
	key := routeKey(in)
	log := logger.With(
		zap.String("kind", in.Kind.String()),
		zap.String("route", key),
		zap.String("user_id", in.User.ID),
		zap.String("guild_id", in.GuildID))

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("Interaction handler panicked",
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()))
			metrics.Interactions.WithLabelValues(in.Kind.String(), "panic").Inc()
			resp = Reply(errs.UserMessage(errs.New("handler panic")))
		}
	}()

	route, ok := r.Lookup(in)
	if !ok {
		log.Warn("No handler for interaction", zap.String("custom_id", in.CustomID))
		metrics.Interactions.WithLabelValues(in.Kind.String(), "unhandled").Inc()
		return Reply("That action is no longer available.")
	}

	if r.audit != nil && in.Kind != KindComponent && in.Kind != KindModalSubmit {
		r.audit(in)
	}

	resp, err := route.Handler(ctx, in)
	if err != nil {
		msg := errs.UserMessage(err)
		switch {
		case errs.Is(err, errs.ErrValidation), errs.Is(err, errs.ErrSessionExpired), errs.Is(err, errs.ErrNotFound):
			log.Info("Interaction rejected", zap.String("reason", msg), zap.Error(err))
		default:
			log.Error("Interaction failed", zap.Error(err))
		}
		metrics.Interactions.WithLabelValues(in.Kind.String(), "error").Inc()
		return Reply(msg)
	}
	if resp == nil {
		resp = Reply("Done.")
	}
	metrics.Interactions.WithLabelValues(in.Kind.String(), "ok").Inc()
	return resp
}
