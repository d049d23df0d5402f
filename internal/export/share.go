package export

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"routekeeper/internal/timeline"
)

// DefaultShareParam is the query parameter carrying the token.
const DefaultShareParam = "route"

// EncodeShareToken serializes events to unpadded base64url JSON. The empty
// timeline encodes to the token of "[]".
func EncodeShareToken(events []timeline.Event) (string, error) {
	if events == nil {
		events = []timeline.Event{}
	}
	payload, err := json.Marshal(events)
	if err != nil {
		return "", fmt.Errorf("encode share token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(payload), nil
}

// DecodeShareToken reverses EncodeShareToken. Standard and URL alphabets
// are accepted, padded or not.
func DecodeShareToken(token string) ([]timeline.Event, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidShareToken)
	}
	payload, err := decodeBase64(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidShareToken, err)
	}
	var events []timeline.Event
	if err := json.Unmarshal(payload, &events); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidShareToken, err)
	}
	if events == nil {
		return nil, fmt.Errorf("%w: token does not hold an event list", ErrInvalidShareToken)
	}
	for i, ev := range events {
		if err := ev.Validate(); err != nil {
			return nil, fmt.Errorf("%w: event %d: %v", ErrInvalidShareToken, i, err)
		}
	}
	return events, nil
}

func decodeBase64(token string) ([]byte, error) {
	normalized := strings.NewReplacer("-", "+", "_", "/").Replace(strings.TrimRight(token, "="))
	return base64.RawStdEncoding.DecodeString(normalized)
}

// ShareURL appends the token for events to base under param.
func ShareURL(base, param string, events []timeline.Event) (string, error) {
	if param == "" {
		param = DefaultShareParam
	}
	token, err := EncodeShareToken(events)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse share base url: %w", err)
	}
	q := u.Query()
	q.Set(param, token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// DecodeShareURL extracts and decodes the token from a share link. A bare
// token is accepted too.
func DecodeShareURL(raw, param string) ([]timeline.Event, error) {
	if param == "" {
		param = DefaultShareParam
	}
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "?") && !strings.Contains(raw, "://") {
		return DecodeShareToken(raw)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidShareToken, err)
	}
	token := u.Query().Get(param)
	if token == "" {
		return nil, fmt.Errorf("%w: link has no %q parameter", ErrInvalidShareToken, param)
	}
	return DecodeShareToken(token)
}
