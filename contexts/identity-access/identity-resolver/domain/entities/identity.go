package entities

type ParticipantKind string

const (
	ParticipantAnonymous ParticipantKind = "anonymous"
	ParticipantUser      ParticipantKind = "user"
)

// ParticipantIdentity is either an opaque per-vote token derived from the
// caller's address or an authenticated user ID. The two kinds never collide.
type ParticipantIdentity struct {
	Kind  ParticipantKind
	Value string
}

func (p ParticipantIdentity) Anonymous() bool {
	return p.Kind == ParticipantAnonymous
}

func (p ParticipantIdentity) String() string {
	return string(p.Kind) + ":" + p.Value
}
