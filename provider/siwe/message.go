package siwe

import (
	"regexp"
	"strings"
	"time"
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Message is the parsed form of a sign-in message. Only the fields the
// verification flow needs are extracted; unrecognized lines are ignored.
type Message struct {
	Domain         string
	Address        string
	Statement      string
	URI            string
	Version        string
	ChainID        string
	Nonce          string
	IssuedAt       time.Time
	ExpirationTime time.Time

	raw string
}

// ParseMessage performs a structural parse of a sign-in message. It does not
// verify the signature; that is the Verifier's job.
func ParseMessage(raw string) (*Message, error) {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	if len(lines) < 2 {
		return nil, ErrMalformedMessage
	}

	header := strings.TrimSpace(lines[0])
	const marker = " wants you to sign in with your Ethereum account:"
	if !strings.HasSuffix(header, marker) {
		return nil, ErrMalformedMessage
	}

	msg := &Message{
		Domain:  strings.TrimSuffix(header, marker),
		Address: strings.TrimSpace(lines[1]),
		raw:     raw,
	}

	if !addressPattern.MatchString(msg.Address) {
		return nil, ErrMalformedMessage
	}

	for _, line := range lines[2:] {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "URI: "):
			msg.URI = strings.TrimPrefix(line, "URI: ")
		case strings.HasPrefix(line, "Version: "):
			msg.Version = strings.TrimPrefix(line, "Version: ")
		case strings.HasPrefix(line, "Chain ID: "):
			msg.ChainID = strings.TrimPrefix(line, "Chain ID: ")
		case strings.HasPrefix(line, "Nonce: "):
			msg.Nonce = strings.TrimPrefix(line, "Nonce: ")
		case strings.HasPrefix(line, "Issued At: "):
			if ts, err := time.Parse(time.RFC3339, strings.TrimPrefix(line, "Issued At: ")); err == nil {
				msg.IssuedAt = ts
			}
		case strings.HasPrefix(line, "Expiration Time: "):
			if ts, err := time.Parse(time.RFC3339, strings.TrimPrefix(line, "Expiration Time: ")); err == nil {
				msg.ExpirationTime = ts
			}
		}
	}

	if msg.Nonce == "" {
		return nil, ErrMalformedMessage
	}

	return msg, nil
}

// Raw returns the exact text the client signed.
func (m *Message) Raw() string {
	return m.raw
}

// Expired reports whether the message itself carries a lapsed expiration.
func (m *Message) Expired(now time.Time) bool {
	return !m.ExpirationTime.IsZero() && now.After(m.ExpirationTime)
}
