// Package parser reads the few fields the server cares about out of opaque client payloads and
// turns published player events into progress rows.
package parser

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

var (
	// ErrNoLevel means the payload is an object without a level field.
	ErrNoLevel = errors.New("payload has no level")
	// ErrInvalidLevel means the level field is not a non-negative whole number.
	ErrInvalidLevel = errors.New("payload level is not a non-negative integer")
)

// levelKeys are tried in order. Clients have shipped both spellings.
var levelKeys = []string{"Level", "level"}

// ExtractLevel returns the top-level level of a client payload. Numbers, integral floats and
// numeric strings are accepted.
func ExtractLevel(payload string) (int, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return 0, fmt.Errorf("failed to parse payload: %w", err)
	}

	for _, key := range levelKeys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		return decodeLevel(raw)
	}
	return 0, ErrNoLevel
}

func decodeLevel(raw json.RawMessage) (int, error) {
	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidLevel, err)
	}

	var f float64
	switch v := value.(type) {
	case float64:
		f = v
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidLevel, v)
		}
		f = n
	default:
		return 0, fmt.Errorf("%w: %s", ErrInvalidLevel, string(raw))
	}

	if f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidLevel, f)
	}
	return int(f), nil
}

// DefaultPayload is the game state handed to a player the server has never seen.
func DefaultPayload(sku string, level int) string {
	data, err := json.Marshal(struct {
		SKU   string `json:"SKU"`
		Level int    `json:"Level"`
	}{SKU: sku, Level: level})
	if err != nil {
		return fmt.Sprintf(`{"SKU":%q,"Level":%d}`, sku, level)
	}
	return string(data)
}
