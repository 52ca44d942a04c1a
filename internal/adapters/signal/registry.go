package signal

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/visign/signaling/internal/domain"
)

var errNoSuchConnection = errors.New("no such connection")

// envelope is the wire frame for every message in both directions.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ConnRegistry maps live connection ids to their websockets. It implements
// core.Sender, which is the only primitive the relay and the presence
// broadcaster know about, so neither of them sees transport types.
type ConnRegistry struct {
	mu    sync.RWMutex
	conns map[domain.ConnectionID]*wsConn
}

func NewConnRegistry() *ConnRegistry {
	return &ConnRegistry{conns: make(map[domain.ConnectionID]*wsConn)}
}

func (r *ConnRegistry) add(c *wsConn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[c.id] = c
}

func (r *ConnRegistry) remove(c *wsConn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conns[c.id] == c {
		delete(r.conns, c.id)
	}
}

func (r *ConnRegistry) get(id domain.ConnectionID) (*wsConn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	return c, ok
}

func (r *ConnRegistry) SendToConnection(id domain.ConnectionID, event string, payload any) error {
	c, ok := r.get(id)
	if !ok {
		return errNoSuchConnection
	}
	data, err := marshalEnvelope(event, payload)
	if err != nil {
		return err
	}
	return c.TrySend(data)
}

func marshalEnvelope(event string, payload any) ([]byte, error) {
	env := envelope{Type: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			log.Error().Err(err).Str("module", "signal").Str("event", event).Msg("marshal envelope")
			return nil, err
		}
		env.Data = data
	}
	return json.Marshal(env)
}
