package proto

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"gladewood/server/internal/game"
)

func namePtr(s string) *string { return &s }

func TestRoundTripEveryVariant(t *testing.T) {
	sample := game.EntityMap{
		1: {Position: game.Point{X: 10, Y: 10}, Name: namePtr("Alice"), Type: game.TypePlayer},
		2: {Position: game.Point{X: 5, Y: 5}, Type: game.TypeTree},
	}

	cases := []struct {
		name string
		msg  Message
	}{
		{"move", Move{Direction: game.DirLeft}},
		{"spawn_player", SpawnPlayer{Name: "Alice"}},
		{"spawn_player_empty_name", SpawnPlayer{Name: ""}},
		{"spawn_as", SpawnAs{Entity: 42}},
		{"save_world", SaveWorld{}},
		{"entity_map", EntityMap{Entities: sample}},
		{"entity_map_empty", EntityMap{Entities: game.EntityMap{}}},
		{"player_id", PlayerID{Entity: 7}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := Encode(tc.msg)
			if err != nil {
				t.Fatalf("encode failed: %v", err)
			}

			decoded, err := Decode(data)
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if !reflect.DeepEqual(decoded, tc.msg) {
				t.Fatalf("round trip changed value: %+v vs %+v", decoded, tc.msg)
			}

			reencoded, err := Encode(decoded)
			if err != nil {
				t.Fatalf("re-encode failed: %v", err)
			}
			if !bytes.Equal(data, reencoded) {
				t.Fatalf("re-encoding was not byte-stable")
			}
		})
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	msg := EntityMap{Entities: game.EntityMap{
		3: {Position: game.Point{X: 1, Y: 2}, Type: game.TypeTree},
		1: {Position: game.Point{X: -4, Y: 0}, Name: namePtr("Bob"), Type: game.TypePlayer},
		2: {Position: game.Point{X: 9, Y: 9}, Type: game.TypeTree},
	}}

	first, err := Encode(msg)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	second, err := Encode(msg)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("encoding the same value twice produced different bytes")
	}
}

func TestDecodeRejectsUnknownKind(t *testing.T) {
	body, err := encMode.Marshal(struct{}{})
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}

	for _, kind := range []Kind{KindUnknown, Kind(42)} {
		data, err := encMode.Marshal(envelope{Kind: kind, Body: body})
		if err != nil {
			t.Fatalf("marshal envelope: %v", err)
		}
		if _, err := Decode(data); !errors.Is(err, ErrUnknownMessage) {
			t.Errorf("kind %d: expected ErrUnknownMessage, got %v", kind, err)
		}
	}
}

func TestDecodeRejectsOversizedPayload(t *testing.T) {
	data := make([]byte, MaxMessageSize+1)
	if _, err := Decode(data); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte{0xff, 0x00, 0x13, 0x37}); err == nil {
		t.Fatalf("expected error decoding garbage bytes")
	}
}

func TestEncodeNilMessage(t *testing.T) {
	if _, err := Encode(nil); !errors.Is(err, ErrUnknownMessage) {
		t.Fatalf("expected ErrUnknownMessage for nil message, got %v", err)
	}
}
