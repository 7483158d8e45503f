package application

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/netip"
	"strings"

	"pollwarden/contexts/identity-access/identity-resolver/domain/entities"
	domainerrors "pollwarden/contexts/identity-access/identity-resolver/domain/errors"
)

type Request struct {
	VoteID   string
	UserID   string
	RemoteIP string
}

// Resolver turns request attributes into the identity a submission is
// counted against. It holds no state besides the salt.
type Resolver struct {
	Salt   string
	Logger *slog.Logger
}

// Resolve prefers the authenticated user. Otherwise the caller's address is
// keyed with the vote ID, so one address maps to a different token on every
// vote and the raw address is never stored.
func (r Resolver) Resolve(req Request) (entities.ParticipantIdentity, error) {
	if userID := strings.TrimSpace(req.UserID); userID != "" {
		return entities.ParticipantIdentity{Kind: entities.ParticipantUser, Value: userID}, nil
	}

	voteID := strings.TrimSpace(req.VoteID)
	if voteID == "" {
		return entities.ParticipantIdentity{}, domainerrors.ErrMissingVote
	}
	if r.Salt == "" {
		r.logger().Error("identity salt missing",
			"event", "identity_resolver_salt_missing",
			"module", "identity-access/identity-resolver",
			"layer", "application",
		)
		return entities.ParticipantIdentity{}, domainerrors.ErrMissingSalt
	}
	addr, err := ParseAddr(req.RemoteIP)
	if err != nil {
		r.logger().Warn("identity address rejected",
			"event", "identity_resolver_address_invalid",
			"module", "identity-access/identity-resolver",
			"layer", "application",
			"vote_id", voteID,
		)
		return entities.ParticipantIdentity{}, err
	}

	mac := hmac.New(sha256.New, []byte(r.Salt))
	mac.Write([]byte(voteID))
	mac.Write([]byte{0})
	mac.Write(addr.AsSlice())
	return entities.ParticipantIdentity{
		Kind:  entities.ParticipantAnonymous,
		Value: hex.EncodeToString(mac.Sum(nil)),
	}, nil
}

// ParseAddr accepts a bare IP or host:port and folds IPv4-mapped IPv6 onto
// plain IPv4 so both spellings of one address hash alike.
func ParseAddr(raw string) (netip.Addr, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return netip.Addr{}, domainerrors.ErrInvalidAddress
	}
	if addrPort, err := netip.ParseAddrPort(raw); err == nil {
		return addrPort.Addr().Unmap(), nil
	}
	addr, err := netip.ParseAddr(strings.Trim(raw, "[]"))
	if err != nil {
		return netip.Addr{}, domainerrors.ErrInvalidAddress
	}
	return addr.WithZone("").Unmap(), nil
}

func (r Resolver) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
