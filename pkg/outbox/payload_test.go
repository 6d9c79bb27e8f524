package outbox

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalPayload(t *testing.T) {
	tests := []struct {
		name        string
		payload     any
		expectError bool
		errorType   string
	}{
		{
			name:        "nil payload",
			payload:     nil,
			expectError: false,
		},
		{
			name: "simple struct",
			payload: struct {
				Name string `json:"name"`
				Age  int    `json:"age"`
			}{
				Name: "John",
				Age:  30,
			},
			expectError: false,
		},
		{
			name:        "large payload",
			payload:     map[string]string{"data": strings.Repeat("x", MaxPayloadSize)},
			expectError: true,
			errorType:   "validation",
		},
		{
			name:        "unmarshalable payload",
			payload:     make(chan int),
			expectError: true,
			errorType:   "marshal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalPayload(tt.payload)

			if tt.expectError {
				require.Error(t, err)
				var payloadErr *PayloadError
				require.ErrorAs(t, err, &payloadErr)
				assert.Equal(t, tt.errorType, payloadErr.Operation)
			} else {
				require.NoError(t, err)
				assert.True(t, json.Valid(result))
			}
		})
	}
}

func TestUnmarshalPayload(t *testing.T) {
	type TestStruct struct {
		Name string `json:"name"`
		Age  int    `json:"age"`
	}

	tests := []struct {
		name        string
		payload     json.RawMessage
		target      any
		expectError bool
	}{
		{
			name:        "valid payload",
			payload:     json.RawMessage(`{"name":"John","age":30}`),
			target:      &TestStruct{},
			expectError: false,
		},
		{
			name:        "empty payload",
			payload:     json.RawMessage(""),
			target:      &TestStruct{},
			expectError: true,
		},
		{
			name:        "invalid JSON",
			payload:     json.RawMessage(`{"name":"John","age":}`),
			target:      &TestStruct{},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := UnmarshalPayload(tt.payload, tt.target)

			if tt.expectError {
				require.Error(t, err)
				var payloadErr *PayloadError
				require.ErrorAs(t, err, &payloadErr)
				assert.Equal(t, "unmarshal", payloadErr.Operation)
			} else {
				require.NoError(t, err)
				result := tt.target.(*TestStruct)
				assert.Equal(t, "John", result.Name)
				assert.Equal(t, 30, result.Age)
			}
		})
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	changes := map[string]map[string]any{
		"min_price": {"old": 34_800_000.0, "new": 33_990_000.0},
	}
	raw, err := MarshalPayload(changes)
	require.NoError(t, err)

	var decoded map[string]map[string]any
	require.NoError(t, UnmarshalPayload(raw, &decoded))
	assert.Equal(t, changes, decoded)
}
