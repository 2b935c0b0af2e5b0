package intent

import (
	"context"
	"strings"
	"sync"
)

// Handler serves an intent instead of the answer engine.
type Handler interface {
	Handle(ctx context.Context, in Intent, question string) (string, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, in Intent, question string) (string, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, in Intent, question string) (string, error) {
	return f(ctx, in, question)
}

// Router dispatches classified questions to connector handlers.
type Router struct {
	mu       sync.RWMutex
	handlers map[Kind]Handler
}

// NewRouter creates a Router with the default ED handler registered.
func NewRouter() *Router {
	r := &Router{handlers: make(map[Kind]Handler)}
	r.Handle(KindEd, HandlerFunc(EdResponse))
	return r
}

// Handle registers h for kind, replacing any previous handler.
func (r *Router) Handle(kind Kind, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = h
}

// Route classifies question. When a handler is registered for its kind the
// handler's reply is returned with handled set. Otherwise the caller should
// use the answer engine.
func (r *Router) Route(ctx context.Context, question string) (in Intent, reply string, handled bool, err error) {
	in = Classify(question)
	r.mu.RLock()
	h, ok := r.handlers[in.Kind]
	r.mu.RUnlock()
	if !ok {
		return in, "", false, nil
	}
	reply, err = h.Handle(ctx, in, question)
	if err != nil {
		return in, "", false, err
	}
	return in, reply, true, nil
}

var edResponses = map[string][]string{
	ActionPostQuestion: {
		"J'ai détecté que vous souhaitez poster une question sur ED Discussion.",
		"",
		"Pour poster sur ED, assurez-vous que :",
		"1. Votre connecteur ED est configuré dans les paramètres",
		"2. Vous avez sélectionné le cours approprié",
		"",
		"Voulez-vous que je vous aide à formuler votre question pour ED ?",
	},
}

// EdResponse is the default ED handler. It explains how to finish the
// action in the ED connector.
func EdResponse(_ context.Context, in Intent, _ string) (string, error) {
	if lines, ok := edResponses[in.Action]; ok {
		return strings.Join(lines, "\n"), nil
	}
	return "J'ai détecté une intention liée à ED Discussion.", nil
}
