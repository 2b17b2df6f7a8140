package sesame

import (
	"fmt"
	"sync"
)

// Command is a request the codec knows how to seal.
type Command int

const (
	CommandLock Command = iota
	CommandUnlock
	CommandStatus
	CommandHistory
)

func (c Command) String() string {
	switch c {
	case CommandLock:
		return "lock"
	case CommandUnlock:
		return "unlock"
	case CommandStatus:
		return "status"
	case CommandHistory:
		return "history"
	default:
		return fmt.Sprintf("command(%d)", int(c))
	}
}

// Codec is the encrypted session layer of one device model, spoken over
// the GATT transport. It is not safe for concurrent use; the transport
// serialises calls.
type Codec interface {
	// Reset discards any session state; called on every new connection.
	Reset()

	// Receive consumes one notification and returns the frames to write
	// back plus any decoded events (Authenticating/Active transitions,
	// status, history).
	Receive(frame []byte) (replies [][]byte, events []Event, err error)

	// Seal encodes a command for the device.
	Seal(cmd Command, reason string) ([]byte, error)

	// Active reports whether the handshake completed.
	Active() bool
}

// CodecFactory builds a Codec from the device keys.
type CodecFactory func(public, secret []byte) (Codec, error)

var (
	codecsMu sync.RWMutex
	codecs   = make(map[Model]CodecFactory)
)

// RegisterCodec makes a session codec available for a model.
// It panics if called twice for the same model.
func RegisterCodec(model Model, factory CodecFactory) {
	codecsMu.Lock()
	defer codecsMu.Unlock()
	if factory == nil {
		panic("sesame: RegisterCodec factory is nil")
	}
	if _, dup := codecs[model]; dup {
		panic("sesame: RegisterCodec called twice for " + model.String())
	}
	codecs[model] = factory
}

// LookupCodec returns the factory registered for model.
func LookupCodec(model Model) (CodecFactory, error) {
	codecsMu.RLock()
	defer codecsMu.RUnlock()
	f, ok := codecs[model]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoCodec, model)
	}
	return f, nil
}

func unregisterCodec(model Model) {
	codecsMu.Lock()
	delete(codecs, model)
	codecsMu.Unlock()
}
