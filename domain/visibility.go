package domain

// IsVisible reports whether requester may read message.
// Broadcast and status messages are public, private ones are only visible
// to their sender and recipient.
func IsVisible(message Message, requester string) bool {
	switch message.Kind {
	case KindBroadcast, KindStatus:
		return true
	case KindPrivate:
		return message.To == requester || message.From == requester
	default:
		return false
	}
}
