package domain

// BroadcastTarget is the reserved recipient addressing the whole room.
const BroadcastTarget = "Todos"

const (
	JoinedText = "entra na sala..."
	LeftText   = "sai da sala..."
)

// JoinedNotice is the status message appended when name enters the room.
func JoinedNotice(name string) Message {
	return statusMessage(name, JoinedText)
}

// LeftNotice is the status message appended when name is evicted.
func LeftNotice(name string) Message {
	return statusMessage(name, LeftText)
}

func statusMessage(name, text string) Message {
	return Message{
		From: name,
		To:   BroadcastTarget,
		Text: text,
		Kind: KindStatus,
	}
}
