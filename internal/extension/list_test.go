package extension

import (
	"testing"
)

func TestListRoundTripAllowed(t *testing.T) {
	exts := []Extension{UDP{}, MOTD{Message: "hi"}}
	encoded := SerializeList(exts, RoleServer)
	decoded, err := ParseList(encoded, RoleServer, AllIDs())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("got %d extensions, want 2", len(decoded))
	}
	if _, ok := decoded[0].(UDP); !ok {
		t.Fatalf("expected UDP first, got %T", decoded[0])
	}
	motd, ok := decoded[1].(MOTD)
	if !ok || motd.Message != "hi" {
		t.Fatalf("got %+v, want MOTD{hi}", decoded[1])
	}
}

func TestListSkipsUnknownIDs(t *testing.T) {
	opaque := Opaque{IDValue: 0x7f, Bytes: []byte("ignored")}
	encoded := SerializeList([]Extension{opaque, UDP{}}, RoleServer)
	decoded, err := ParseList(encoded, RoleServer, AllIDs())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(decoded) != 1 {
		t.Fatalf("got %d extensions, want 1 (unknown id skipped)", len(decoded))
	}
	if _, ok := decoded[0].(UDP); !ok {
		t.Fatalf("got %T, want UDP", decoded[0])
	}
}

func TestListFiltersByAllowList(t *testing.T) {
	encoded := SerializeList([]Extension{UDP{}, MOTD{Message: "hi"}}, RoleServer)
	decoded, err := ParseList(encoded, RoleServer, map[uint8]bool{IDUDP: true})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(decoded) != 1 {
		t.Fatalf("got %d extensions, want 1 (MOTD not in allow-list)", len(decoded))
	}
}

func TestClientMOTDPayloadEmpty(t *testing.T) {
	encoded := SerializeList([]Extension{MOTD{Message: "should not appear"}}, RoleClient)
	decoded, err := ParseList(encoded, RoleClient, AllIDs())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	motd := decoded[0].(MOTD)
	if motd.Message != "" {
		t.Fatalf("client MOTD payload must be empty, got %q", motd.Message)
	}
}

func TestListOverrunIsMalformed(t *testing.T) {
	// id=UDP, length claims 100 bytes but none follow.
	data := []byte{IDUDP, 100, 0, 0, 0}
	_, err := ParseList(data, RoleServer, AllIDs())
	if err == nil {
		t.Fatal("expected error for over-long extension length")
	}
}

func TestListTruncatedHeaderIsMalformed(t *testing.T) {
	data := []byte{IDUDP, 0, 0}
	_, err := ParseList(data, RoleServer, AllIDs())
	if err == nil {
		t.Fatal("expected error for truncated extension header")
	}
}

func TestHandshakeScenario5Negotiation(t *testing.T) {
	serverAdvertised := []Extension{UDP{}, MOTD{Message: "hi"}}
	serverList := SerializeList(serverAdvertised, RoleServer)
	advertisedIDs := IDSet(serverAdvertised)
	_ = serverList

	clientAdvertised := []Extension{UDP{}}
	clientList := SerializeList(clientAdvertised, RoleClient)

	negotiated, err := ParseList(clientList, RoleClient, advertisedIDs)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(negotiated) != 1 {
		t.Fatalf("got %d negotiated extensions, want 1 (only UDP)", len(negotiated))
	}
	if _, ok := negotiated[0].(UDP); !ok {
		t.Fatalf("got %T, want UDP", negotiated[0])
	}
}
