package packet

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// SessionState is the protocol phase a session is in. Each opcode is
// accepted only in the states it was registered for.
type SessionState int

const (
	StateHandshake SessionState = iota // connected, not yet joined
	StateInWorld                       // joined as a player
	StateAdmin                         // passed admin login
	StateDisconnecting
)

var stateNames = [...]string{"Handshake", "InWorld", "Admin", "Disconnecting"}

func (s SessionState) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("Unknown(%d)", int(s))
}

var (
	ErrEmptyPacket     = errors.New("empty packet")
	ErrUnknownOpcode   = errors.New("unknown opcode")
	ErrStateNotAllowed = errors.New("opcode not allowed")
)

// HandlerFunc handles one decoded packet. sess is the connection's
// *net.Session, passed as any so this package stays below net.
type HandlerFunc func(sess any, r *Reader)

type route struct {
	fn     HandlerFunc
	states uint32 // bit per SessionState
}

func (rt route) allows(s SessionState) bool {
	return s >= 0 && s < 32 && rt.states&(1<<uint(s)) != 0
}

// Registry routes opcodes to handlers.
type Registry struct {
	routes [256]*route
	log    *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{log: log}
}

// Register routes opcode to fn while the session is in one of states.
// Registering an opcode twice replaces the earlier handler.
func (reg *Registry) Register(opcode byte, states []SessionState, fn HandlerFunc) {
	rt := &route{fn: fn}
	for _, s := range states {
		rt.states |= 1 << uint(s)
	}
	reg.routes[opcode] = rt
}

// Dispatch runs the handler for data[0]. A panicking handler is recovered
// and reported as an error so one bad packet cannot stop the game loop.
func (reg *Registry) Dispatch(sess any, state SessionState, data []byte) (err error) {
	if len(data) == 0 {
		return ErrEmptyPacket
	}
	op := data[0]
	rt := reg.routes[op]
	if rt == nil {
		return fmt.Errorf("%w: 0x%02X", ErrUnknownOpcode, op)
	}
	if !rt.allows(state) {
		return fmt.Errorf("%w: 0x%02X in state %s", ErrStateNotAllowed, op, state)
	}
	reg.log.Debug("RX", zap.String("op", fmt.Sprintf("0x%02X", op)), zap.Int("len", len(data)), zap.Stringer("state", state))

	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("handler panic recovered", zap.Uint8("opcode", op), zap.Any("panic", rec))
			err = fmt.Errorf("handler panic for opcode 0x%02X: %v", op, rec)
		}
	}()
	rt.fn(sess, NewReader(data))
	return nil
}
