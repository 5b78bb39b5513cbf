package email

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/jhillyerd/enmime"

	"github.com/brandon/mailsync/pkg/types"
)

// ErrEmptyMessage is returned when the server sent no body for a message.
var ErrEmptyMessage = errors.New("message has no content")

// ParseMessage decodes the RFC 822 body of msg with enmime. Header names in
// the result are lower-cased; the date is zero when the Date header is
// missing or malformed.
func ParseMessage(msg *types.Message) (*types.RawMessage, error) {
	if len(msg.Body) == 0 {
		return nil, ErrEmptyMessage
	}

	env, err := enmime.ReadEnvelope(bytes.NewReader(msg.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	raw := &types.RawMessage{
		UID:     msg.UID,
		Subject: env.GetHeader("Subject"),
		Text:    env.Text,
		HTML:    env.HTML,
		Headers: make(map[string]string),
	}

	for _, key := range env.GetHeaderKeys() {
		raw.Headers[strings.ToLower(key)] = env.GetHeader(key)
	}

	if from, err := env.AddressList("From"); err == nil && len(from) > 0 {
		raw.Sender = from[0].Address
	}
	if raw.Sender == "" {
		raw.Sender = strings.TrimSpace(env.GetHeader("From"))
	}

	if to, err := env.AddressList("To"); err == nil {
		for _, addr := range to {
			if addr.Address != "" {
				raw.Recipients = append(raw.Recipients, addr.Address)
			}
		}
	}

	if date, err := env.Date(); err == nil {
		raw.Date = date
	}

	return raw, nil
}
