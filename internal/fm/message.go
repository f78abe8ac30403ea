package fm

import "fmt"

// MessageKind identifies a control message.
type MessageKind int

const (
	MessageUnknown MessageKind = iota
	MessageVoices
	MessageNoteOn
	MessageNoteOff
	MessageSustain
)

var messageNames = [...]string{
	MessageUnknown: "unknown",
	MessageVoices:  "voices",
	MessageNoteOn:  "noteOn",
	MessageNoteOff: "noteOff",
	MessageSustain: "sustain",
}

func (k MessageKind) String() string {
	if k < 0 || int(k) >= len(messageNames) {
		return fmt.Sprintf("MessageKind(%d)", int(k))
	}
	return messageNames[k]
}

// ParseMessageKind maps a protocol type name to its kind. Unrecognized names
// yield MessageUnknown, which the engine ignores.
func ParseMessageKind(name string) MessageKind {
	for k, n := range messageNames {
		if k != int(MessageUnknown) && n == name {
			return MessageKind(k)
		}
	}
	return MessageUnknown
}

// Message is a control message for the engine. Only the fields belonging to
// Kind are meaningful.
type Message struct {
	Kind     MessageKind
	Voices   int  // MessageVoices
	Note     int  // MessageNoteOn, MessageNoteOff
	Velocity int  // MessageNoteOn
	Down     bool // MessageSustain
}

func SetVoices(n int) Message { return Message{Kind: MessageVoices, Voices: n} }

func NoteOn(note, velocity int) Message {
	return Message{Kind: MessageNoteOn, Note: note, Velocity: velocity}
}

func NoteOff(note int) Message { return Message{Kind: MessageNoteOff, Note: note} }

func Sustain(down bool) Message { return Message{Kind: MessageSustain, Down: down} }

func (m Message) String() string {
	switch m.Kind {
	case MessageVoices:
		return fmt.Sprintf("voices(%d)", m.Voices)
	case MessageNoteOn:
		return fmt.Sprintf("noteOn(%d, %d)", m.Note, m.Velocity)
	case MessageNoteOff:
		return fmt.Sprintf("noteOff(%d)", m.Note)
	case MessageSustain:
		return fmt.Sprintf("sustain(%t)", m.Down)
	default:
		return m.Kind.String()
	}
}
