package repositories

import (
	"chat-presence/domain"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"
)

// Values are stored with the protobuf wire format, field numbers below are
// part of the on-disk contract and must never be reused.
const (
	participantName     protowire.Number = 1
	participantLastSeen protowire.Number = 2

	messageID   protowire.Number = 1
	messageSeq  protowire.Number = 2
	messageFrom protowire.Number = 3
	messageTo   protowire.Number = 4
	messageText protowire.Number = 5
	messageKind protowire.Number = 6
	messageAt   protowire.Number = 7
)

func EncodeParticipant(p domain.Participant) []byte {
	var b []byte
	b = appendString(b, participantName, p.Name)
	b = appendVarint(b, participantLastSeen, uint64(p.LastSeen.UnixNano()))
	return b
}

func DecodeParticipant(b []byte) (domain.Participant, error) {
	var p domain.Participant
	err := consumeFields(b, func(num protowire.Number, s string, v uint64) {
		switch num {
		case participantName:
			p.Name = s
		case participantLastSeen:
			p.LastSeen = time.Unix(0, int64(v)).UTC()
		}
	})
	return p, err
}

func EncodeMessage(m domain.Message) []byte {
	var b []byte
	b = appendString(b, messageID, m.ID.String())
	b = appendVarint(b, messageSeq, m.Seq)
	b = appendString(b, messageFrom, m.From)
	b = appendString(b, messageTo, m.To)
	b = appendString(b, messageText, m.Text)
	b = appendString(b, messageKind, string(m.Kind))
	b = appendVarint(b, messageAt, uint64(m.At.UnixNano()))
	return b
}

func DecodeMessage(b []byte) (domain.Message, error) {
	var m domain.Message
	var rawID string
	err := consumeFields(b, func(num protowire.Number, s string, v uint64) {
		switch num {
		case messageID:
			rawID = s
		case messageSeq:
			m.Seq = v
		case messageFrom:
			m.From = s
		case messageTo:
			m.To = s
		case messageText:
			m.Text = s
		case messageKind:
			m.Kind = domain.Kind(s)
		case messageAt:
			m.At = time.Unix(0, int64(v)).UTC()
		}
	})
	if err != nil {
		return domain.Message{}, err
	}
	parsedID, err := uuid.Parse(rawID)
	if err != nil {
		return domain.Message{}, fmt.Errorf("invalid message id %q: %w", rawID, err)
	}
	m.ID = parsedID
	return m, nil
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// consumeFields walks every field of b, handing strings and varints to fn.
// Unknown fields are skipped so older binaries can read newer records.
func consumeFields(b []byte, fn func(num protowire.Number, s string, v uint64)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		switch typ {
		case protowire.BytesType:
			s, n := protowire.ConsumeString(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			fn(num, s, 0)
			b = b[n:]
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			fn(num, "", v)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return nil
}
