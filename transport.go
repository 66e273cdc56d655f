package server

import (
	"errors"

	"gladewood/server/internal/net/proto"
)

// ErrTransportBackpressure is returned when a transport's outbound
// buffer is full. Callers decide whether to retry or drop.
var ErrTransportBackpressure = errors.New("server: transport buffer full")

// Transport is the capability surface the game core needs from a
// network layer: fire one message at the peer, poll for arrivals. The
// QUIC-backed Client and the in-memory ChannelTransport both satisfy
// it, so game logic and tests never depend on a concrete socket type.
type Transport interface {
	Send(msg proto.Message) error
	TryReceive() (proto.Message, bool)
}

const channelTransportBuffer = 1024

// ChannelTransport is an in-memory Transport for tests: two of them
// created by NewChannelPair form a connected duplex link.
type ChannelTransport struct {
	out chan<- proto.Message
	in  <-chan proto.Message
}

// NewChannelPair returns two connected in-memory transports; messages
// sent on one arrive at the other.
func NewChannelPair() (*ChannelTransport, *ChannelTransport) {
	ab := make(chan proto.Message, channelTransportBuffer)
	ba := make(chan proto.Message, channelTransportBuffer)
	return &ChannelTransport{out: ab, in: ba}, &ChannelTransport{out: ba, in: ab}
}

// Send delivers the message to the peer without blocking.
func (t *ChannelTransport) Send(msg proto.Message) error {
	select {
	case t.out <- msg:
		return nil
	default:
		return ErrTransportBackpressure
	}
}

// TryReceive returns the next pending message, if any.
func (t *ChannelTransport) TryReceive() (proto.Message, bool) {
	select {
	case msg := <-t.in:
		return msg, true
	default:
		return nil, false
	}
}

var (
	_ Transport = (*ChannelTransport)(nil)
	_ Transport = (*Client)(nil)
)
