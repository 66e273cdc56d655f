package server

import (
	"testing"

	"gladewood/server/internal/game"
	"gladewood/server/internal/net/proto"
)

func TestChannelPairRoundTrip(t *testing.T) {
	a, b := NewChannelPair()

	if err := a.Send(proto.Move{Direction: game.DirLeft}); err != nil {
		t.Fatalf("send: %v", err)
	}
	msg, ok := b.TryReceive()
	if !ok {
		t.Fatalf("no message on the receiving side")
	}
	move, ok := msg.(proto.Move)
	if !ok || move.Direction != game.DirLeft {
		t.Fatalf("received %v, want Move left", msg)
	}

	if err := b.Send(proto.SaveWorld{}); err != nil {
		t.Fatalf("send back: %v", err)
	}
	msg, ok = a.TryReceive()
	if !ok {
		t.Fatalf("no message back on the sending side")
	}
	if _, ok := msg.(proto.SaveWorld); !ok {
		t.Fatalf("received %v, want SaveWorld", msg)
	}
}

func TestTryReceiveEmpty(t *testing.T) {
	a, _ := NewChannelPair()
	if msg, ok := a.TryReceive(); ok {
		t.Fatalf("empty transport yielded %v", msg)
	}
}

func TestSendBackpressure(t *testing.T) {
	a, _ := NewChannelPair()

	for i := 0; i < channelTransportBuffer; i++ {
		if err := a.Send(proto.SaveWorld{}); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	if err := a.Send(proto.SaveWorld{}); err != ErrTransportBackpressure {
		t.Fatalf("overfull send returned %v, want ErrTransportBackpressure", err)
	}
}
