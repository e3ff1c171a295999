package hub

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/soyeahso/zeyn/internal/logging"
)

// Handler receives the raw arguments of a server-to-client invocation.
type Handler func(args []json.RawMessage)

// handlerRegistry maps hub method names to handlers. Names are matched
// case-insensitively, as the server side does.
type handlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	log      *logging.Logger
}

func newHandlerRegistry(log *logging.Logger) *handlerRegistry {
	return &handlerRegistry{
		handlers: make(map[string][]Handler),
		log:      log,
	}
}

func (r *handlerRegistry) on(method string, h Handler) {
	if h == nil {
		return
	}
	key := strings.ToLower(method)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[key] = append(r.handlers[key], h)
	r.log.Debug().Str("method", method).Int("count", len(r.handlers[key])).Msg("handler registered")
}

// off removes every handler for method.
func (r *handlerRegistry) off(method string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, strings.ToLower(method))
}

func (r *handlerRegistry) count(method string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[strings.ToLower(method)])
}

// dispatch calls the handlers for method in registration order on the
// caller's goroutine. A panicking handler is logged and does not stop the rest.
func (r *handlerRegistry) dispatch(method string, args []json.RawMessage) {
	r.mu.RLock()
	hs := make([]Handler, len(r.handlers[strings.ToLower(method)]))
	copy(hs, r.handlers[strings.ToLower(method)])
	r.mu.RUnlock()

	if len(hs) == 0 {
		r.log.Debug().Str("method", method).Msg("no handler for server invocation")
		return
	}
	for _, h := range hs {
		r.call(method, h, args)
	}
}

func (r *handlerRegistry) call(method string, h Handler, args []json.RawMessage) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error().Str("method", method).Interface("panic", p).Msg("hub handler panicked")
		}
	}()
	h(args)
}
