// Package events provides the pub/sub bus carrying outbound messages from
// the engine to session sinks and global subscribers (scrollback, logging).
package events

// EventType classifies events for transport-specific encoding.
type EventType int

const (
	EvText       EventType = iota // Plain text (universal fallback)
	EvMessage                     // G send delivery
	EvRoom                        // Room/location description
	EvConnect                     // Session authenticated
	EvDisconnect                  // Session closed
	EvEmbody                      // Character embodied
	EvError                       // Failure diagnostic
	EvWho                         // WHO data
)

// String returns a stable name for the event type.
func (t EventType) String() string {
	switch t {
	case EvText:
		return "text"
	case EvMessage:
		return "message"
	case EvRoom:
		return "room"
	case EvConnect:
		return "connect"
	case EvDisconnect:
		return "disconnect"
	case EvEmbody:
		return "embody"
	case EvError:
		return "error"
	case EvWho:
		return "who"
	default:
		return "unknown"
	}
}

// Event is one outbound delivery. Target is the object ID whose subscribers
// should receive it (a character or transient user object).
type Event struct {
	Type   EventType
	Target string
	Source string
	Text   string
	Data   map[string]any
}
