package rpc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arenadesk/pkg/platform/sentinel"
)

func TestDecodeEnvelope(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		want      Envelope
		wantErr   bool
		wantErrIs error
	}{
		{
			name: "success with data",
			raw:  `{"success":true,"message":"","data":{"count":3}}`,
			want: Envelope{Success: true, Data: json.RawMessage(`{"count":3}`)},
		},
		{
			name: "rejection keeps message verbatim",
			raw:  `{"success":false,"message":"user not found"}`,
			want: Envelope{Success: false, Message: "user not found"},
		},
		{
			name:      "missing success is malformed, never defaulted",
			raw:       `{"message":"looks fine","data":{}}`,
			wantErr:   true,
			wantErrIs: sentinel.ErrMalformedReply,
		},
		{
			name:      "rejection without message is malformed",
			raw:       `{"success":false}`,
			wantErr:   true,
			wantErrIs: sentinel.ErrMalformedReply,
		},
		{
			name:      "not json at all",
			raw:       `<html>bad gateway</html>`,
			wantErr:   true,
			wantErrIs: sentinel.ErrMalformedReply,
		},
		{
			name: "success with no data",
			raw:  `{"success":true}`,
			want: Envelope{Success: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := DecodeEnvelope(json.RawMessage(tt.raw))
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErrIs)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Success, env.Success)
			assert.Equal(t, tt.want.Message, env.Message)
			if tt.want.Data != nil {
				assert.JSONEq(t, string(tt.want.Data), string(env.Data))
			}
		})
	}
}

func TestEnvelope_DecodeData(t *testing.T) {
	env := Envelope{Success: true, Data: json.RawMessage(`{"id":42,"name":"dana"}`)}

	var out struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	require.NoError(t, env.DecodeData(&out))
	assert.Equal(t, int64(42), out.ID)
	assert.Equal(t, "dana", out.Name)

	empty := Envelope{Success: true}
	assert.Error(t, empty.DecodeData(&out))
}
