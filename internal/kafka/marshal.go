package kafka

import (
	"encoding/json"
	"fmt"

	"github.com/ariefcatur/go-storefront/internal/shop"
)

func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func UnmarshalEnvelope(b []byte) (shop.Envelope, error) {
	var env shop.Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return shop.Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

// Unwrap memudahkan decode payload spesifik
func UnwrapPayload[T any](payload json.RawMessage) (T, error) {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return t, fmt.Errorf("decode payload: %w", err)
	}
	return t, nil
}
