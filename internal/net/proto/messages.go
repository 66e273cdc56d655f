// Package proto defines the wire messages exchanged between client and
// server and their binary encoding. Every logical message travels as one
// encoded payload on its own transport stream.
//
// The encoding is a closed tagged union: a CBOR envelope carrying a kind
// tag and the variant body, emitted in canonical mode so that encoding
// the same value always produces the same bytes. Both Encode and Decode
// switch exhaustively over the kind set; unrecognized kinds surface as
// ErrUnknownMessage rather than being silently skipped.
package proto

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"gladewood/server/internal/game"
)

// MaxMessageSize is the hard ceiling on a single encoded message.
// Receivers must reject anything larger without buffering it in full.
const MaxMessageSize = 10 << 20 // 10 MiB

var (
	// ErrUnknownMessage marks an envelope whose kind is outside the
	// closed set. Reserved kinds from future protocol revisions land
	// here instead of crashing the decoder.
	ErrUnknownMessage = errors.New("proto: unknown message kind")

	// ErrTooLarge marks a payload over MaxMessageSize.
	ErrTooLarge = errors.New("proto: message exceeds size limit")
)

// Kind tags a wire message variant.
type Kind uint8

const (
	// KindUnknown is reserved; it is never produced by Encode.
	KindUnknown Kind = iota
	KindMove
	KindSpawnPlayer
	KindSpawnAs
	KindSaveWorld
	KindEntityMap
	KindPlayerID
)

// Message is one logical wire message. The implementation set is closed:
// the four client actions plus the two server notifications.
type Message interface {
	kind() Kind
}

// Move asks the server to step the sender's entity one cell.
type Move struct {
	Direction game.Direction `cbor:"d"`
}

// SpawnPlayer asks the server to create and bind a new player entity.
type SpawnPlayer struct {
	Name string `cbor:"n"`
}

// SpawnAs asks the server to bind the sender to an existing entity.
type SpawnAs struct {
	Entity game.EntityID `cbor:"e"`
}

// SaveWorld asks the server to persist the world.
type SaveWorld struct{}

// EntityMap is the per-player filtered snapshot of world entities.
type EntityMap struct {
	Entities game.EntityMap `cbor:"m"`
}

// PlayerID tells a connection which entity it now controls.
type PlayerID struct {
	Entity game.EntityID `cbor:"e"`
}

func (Move) kind() Kind        { return KindMove }
func (SpawnPlayer) kind() Kind { return KindSpawnPlayer }
func (SpawnAs) kind() Kind     { return KindSpawnAs }
func (SaveWorld) kind() Kind   { return KindSaveWorld }
func (EntityMap) kind() Kind   { return KindEntityMap }
func (PlayerID) kind() Kind    { return KindPlayerID }

// encMode emits canonical CBOR so re-encoding a decoded message
// reproduces the original bytes.
var encMode = func() cbor.EncMode {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

type envelope struct {
	Kind Kind            `cbor:"k"`
	Body cbor.RawMessage `cbor:"b"`
}

// Encode serializes a message into its canonical wire bytes.
func Encode(m Message) ([]byte, error) {
	if m == nil {
		return nil, ErrUnknownMessage
	}

	body, err := encMode.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %T body: %w", m, err)
	}
	data, err := encMode.Marshal(envelope{Kind: m.kind(), Body: body})
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return data, nil
}

// Decode parses wire bytes back into a message. Payloads over
// MaxMessageSize are rejected outright.
func Decode(data []byte) (Message, error) {
	if len(data) > MaxMessageSize {
		return nil, ErrTooLarge
	}

	var env envelope
	if err := cbor.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	switch env.Kind {
	case KindMove:
		return decodeBody[Move](env.Body)
	case KindSpawnPlayer:
		return decodeBody[SpawnPlayer](env.Body)
	case KindSpawnAs:
		return decodeBody[SpawnAs](env.Body)
	case KindSaveWorld:
		return decodeBody[SaveWorld](env.Body)
	case KindEntityMap:
		return decodeBody[EntityMap](env.Body)
	case KindPlayerID:
		return decodeBody[PlayerID](env.Body)
	case KindUnknown:
		return nil, ErrUnknownMessage
	default:
		return nil, fmt.Errorf("%w: kind %d", ErrUnknownMessage, env.Kind)
	}
}

func decodeBody[T Message](body cbor.RawMessage) (Message, error) {
	var m T
	if err := cbor.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("decode %T body: %w", m, err)
	}
	return m, nil
}
