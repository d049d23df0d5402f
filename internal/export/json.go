package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"routekeeper/internal/timeline"
)

// WriteJSON writes events as a pretty-printed JSON array in timeline order.
func WriteJSON(w io.Writer, events []timeline.Event) error {
	if err := requireEvents(events); err != nil {
		return err
	}
	payload, err := marshalEvents(events)
	if err != nil {
		return err
	}
	_, err = w.Write(payload)
	return err
}

func marshalEvents(events []timeline.Event) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(events); err != nil {
		return nil, fmt.Errorf("encode events: %w", err)
	}
	return buf.Bytes(), nil
}
