package stream

import v1 "github.com/roverops/missionctl/pkg/apis/mission/v1"

// Kind is the type discriminator of a stream message.
type Kind string

const (
	// KindAny addresses every inbound message regardless of its type. It is
	// never sent on the wire.
	KindAny Kind = "message"

	KindStatus   Kind = v1.StreamTypeStatus
	KindUpdate   Kind = v1.StreamTypeUpdate
	KindLog      Kind = v1.StreamTypeLog
	KindComplete Kind = v1.StreamTypeComplete
	KindError    Kind = v1.StreamTypeError
	KindPong     Kind = v1.StreamTypePong
)

var wireKinds = map[string]Kind{
	v1.StreamTypeStatus:   KindStatus,
	v1.StreamTypeUpdate:   KindUpdate,
	v1.StreamTypeLog:      KindLog,
	v1.StreamTypeComplete: KindComplete,
	v1.StreamTypeError:    KindError,
	v1.StreamTypePong:     KindPong,
}

// ParseKind maps a wire type to its Kind. It reports false for types the
// client does not know, including "message".
func ParseKind(s string) (Kind, bool) {
	k, ok := wireKinds[s]
	return k, ok
}

func (k Kind) String() string {
	return string(k)
}
