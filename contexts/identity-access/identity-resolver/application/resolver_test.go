package application

import (
	"errors"
	"testing"

	"pollwarden/contexts/identity-access/identity-resolver/domain/entities"
	domainerrors "pollwarden/contexts/identity-access/identity-resolver/domain/errors"
)

func TestResolvePrefersAuthenticatedUser(t *testing.T) {
	resolver := Resolver{Salt: "salt"}
	identity, err := resolver.Resolve(Request{VoteID: "v1", UserID: " user-7 ", RemoteIP: "203.0.113.9"})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if identity.Kind != entities.ParticipantUser || identity.Value != "user-7" {
		t.Fatalf("unexpected identity %+v", identity)
	}
}

func TestAnonymousTokenIsStablePerVote(t *testing.T) {
	resolver := Resolver{Salt: "salt"}
	first, err := resolver.Resolve(Request{VoteID: "v1", RemoteIP: "203.0.113.9"})
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	again, _ := resolver.Resolve(Request{VoteID: "v1", RemoteIP: "203.0.113.9:51234"})
	mapped, _ := resolver.Resolve(Request{VoteID: "v1", RemoteIP: "::ffff:203.0.113.9"})
	if first != again || first != mapped {
		t.Fatalf("expected one token for one address, got %s, %s, %s", first.Value, again.Value, mapped.Value)
	}
	if !first.Anonymous() || len(first.Value) != 64 {
		t.Fatalf("expected hex anonymous token, got %+v", first)
	}

	otherVote, _ := resolver.Resolve(Request{VoteID: "v2", RemoteIP: "203.0.113.9"})
	if otherVote.Value == first.Value {
		t.Fatalf("expected a different token on another vote")
	}
	otherSalt, _ := Resolver{Salt: "pepper"}.Resolve(Request{VoteID: "v1", RemoteIP: "203.0.113.9"})
	if otherSalt.Value == first.Value {
		t.Fatalf("expected salt to change the token")
	}
}

func TestResolveRejectsBadInput(t *testing.T) {
	cases := []struct {
		name     string
		resolver Resolver
		req      Request
		want     error
	}{
		{"missing vote", Resolver{Salt: "s"}, Request{RemoteIP: "10.0.0.1"}, domainerrors.ErrMissingVote},
		{"missing salt", Resolver{}, Request{VoteID: "v1", RemoteIP: "10.0.0.1"}, domainerrors.ErrMissingSalt},
		{"garbage address", Resolver{Salt: "s"}, Request{VoteID: "v1", RemoteIP: "not-an-ip"}, domainerrors.ErrInvalidAddress},
		{"empty address", Resolver{Salt: "s"}, Request{VoteID: "v1"}, domainerrors.ErrInvalidAddress},
	}
	for _, tc := range cases {
		if _, err := tc.resolver.Resolve(tc.req); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestParseAddrHandlesBracketedIPv6(t *testing.T) {
	addr, err := ParseAddr("[2001:db8::1]:443")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if addr.String() != "2001:db8::1" {
		t.Fatalf("unexpected address %s", addr)
	}
	if _, err := ParseAddr("[2001:db8::2]"); err != nil {
		t.Fatalf("expected bracketed address without port to parse, got %v", err)
	}
}
