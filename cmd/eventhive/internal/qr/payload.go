// Package qr produces and reads the registration QR codes scanned at the door.
//
// The payload format is `user_id:<int>,event_id:<int>,event_title:<string>`.
// Parsing splits on "," and then on ":" and keeps the second part of each
// field, so a title containing either separator comes back truncated. Scanners
// in the field already print codes in this format, so it is kept as is.
package qr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/eventhive/eventhive/cmd/eventhive/internal/apperr"
)

// Payload identifies a registration.
type Payload struct {
	UserID     int64
	EventID    int64
	EventTitle string
}

// String encodes the payload in the scanner wire format.
func (p Payload) String() string {
	return fmt.Sprintf("user_id:%d,event_id:%d,event_title:%s", p.UserID, p.EventID, p.EventTitle)
}

// ErrMalformed is returned for scanned data that does not carry both ids.
var ErrMalformed = apperr.New(apperr.ErrInvalidPayload, "Invalid QR Code: malformed data.")

// ParsePayload decodes scanned QR data. Only user_id and event_id are
// required; the title is informational.
func ParsePayload(data string) (Payload, error) {
	parts := strings.Split(data, ",")
	if len(parts) < 2 {
		return Payload{}, ErrMalformed
	}

	userID, err := fieldInt(parts[0])
	if err != nil {
		return Payload{}, err
	}
	eventID, err := fieldInt(parts[1])
	if err != nil {
		return Payload{}, err
	}

	p := Payload{UserID: userID, EventID: eventID}
	if len(parts) > 2 {
		if value, ok := fieldValue(parts[2]); ok {
			p.EventTitle = value
		}
	}
	return p, nil
}

func fieldValue(segment string) (string, bool) {
	kv := strings.Split(segment, ":")
	if len(kv) < 2 {
		return "", false
	}
	return kv[1], true
}

func fieldInt(segment string) (int64, error) {
	value, ok := fieldValue(segment)
	if !ok {
		return 0, ErrMalformed
	}
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, ErrMalformed
	}
	return n, nil
}
