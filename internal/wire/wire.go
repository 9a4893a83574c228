// Package wire implements the shared message wire format collaborator
// (§3, §6, §8): format_message/parse_message over a single delimited
// ASCII record, magic|type|id|username|ip|content.
package wire

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jabolina/go-lanmsg/internal/types"
)

// delimiter separates fields in the ASCII record. Content is the last
// field, and ParseMessage splits into at most fieldCount parts, so
// content may itself contain any byte, the delimiter included.
const delimiter = "|"

const fieldCount = 6

var (
	ErrMalformed    = errors.New("wire: malformed record")
	ErrBadMagic     = errors.New("wire: bad magic number")
	ErrUnknownType  = errors.New("wire: unknown message type")
	ErrTooLarge     = errors.New("wire: record exceeds buffer size")
)

func typeTag(t types.MessageType) string {
	return t.String()
}

func parseTypeTag(s string) (types.MessageType, error) {
	switch s {
	case "DISCOVERY":
		return types.MessageDiscovery, nil
	case "DISCOVERY_RESPONSE":
		return types.MessageDiscoveryResponse, nil
	case "TEXT":
		return types.MessageText, nil
	case "QUIT":
		return types.MessageQuit, nil
	default:
		return 0, ErrUnknownType
	}
}

// FormatMessage implements format_message: serializes a WireMessage
// into the delimited ASCII record (§3, §6). Returns ErrTooLarge if the
// result would be longer than BufferSize-1 bytes.
func FormatMessage(msg types.WireMessage) (string, error) {
	record := strings.Join([]string{
		fmt.Sprintf("%d", types.WireMagic),
		typeTag(msg.Type),
		fmt.Sprintf("%d", msg.MessageID),
		msg.SenderName,
		msg.SenderIP,
		msg.Content,
	}, delimiter)

	if len(record) > types.BufferSize-1 {
		return "", ErrTooLarge
	}
	return record, nil
}

// ParseMessage implements parse_message: the inverse of FormatMessage.
// A malformed frame is rejected (not panicked on), per §7 class 4.
func ParseMessage(record string) (types.WireMessage, error) {
	parts := strings.SplitN(record, delimiter, fieldCount)
	if len(parts) != fieldCount {
		return types.WireMessage{}, ErrMalformed
	}

	magic, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return types.WireMessage{}, ErrMalformed
	}
	if uint32(magic) != types.WireMagic {
		return types.WireMessage{}, ErrBadMagic
	}

	msgType, err := parseTypeTag(parts[1])
	if err != nil {
		return types.WireMessage{}, err
	}

	id, err := strconv.ParseUint(parts[2], 10, 32)
	if err != nil {
		return types.WireMessage{}, ErrMalformed
	}

	return types.WireMessage{
		Magic:      uint32(magic),
		Type:       msgType,
		MessageID:  uint32(id),
		SenderName: parts[3],
		SenderIP:   parts[4],
		Content:    parts[5],
	}, nil
}
