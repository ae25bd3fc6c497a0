package sfapi_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{
			name:  "15 char form gains checksum suffix",
			input: "001A0000006Vm9r",
			want:  "001A0000006Vm9rIAC",
		},
		{
			name:  "all lowercase 15 char form",
			input: "001a0000006vm9r",
			want:  "001a0000006vm9rAAA",
		},
		{
			name:  "18 char form is accepted",
			input: "001A0000006Vm9rIAC",
			want:  "001A0000006Vm9rIAC",
		},
		{
			name:  "18 char form with wrong case suffix is canonicalized",
			input: "001A0000006Vm9riac",
			want:  "001A0000006Vm9rIAC",
		},
		{
			name:    "wrong length",
			input:   "001A0000006Vm9",
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
		{
			name:    "non alphanumeric character",
			input:   "001A0000006Vm9!",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			id, err := sfapi.ParseID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, sfapi.ErrInvalidID)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, id.String())
		})
	}
}

func TestParseIDIdempotent(t *testing.T) {
	t.Parallel()

	// Canonicalizing an already canonical ID must be the identity, and the
	// 15 and 18 character forms of the same record must compare equal.
	short := "0x5A00000fGHij1"
	first, err := sfapi.ParseID(short)
	require.NoError(t, err)

	second, err := sfapi.ParseID(first.String())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	lowered, err := sfapi.ParseID(strings.ToLower(first.String()[:15]) + first.String()[15:])
	require.NoError(t, err)
	assert.NotEqual(t, first, lowered, "case changes in the first 15 characters denote a different record")
}

func TestIDIsZero(t *testing.T) {
	t.Parallel()

	var zero sfapi.ID

	assert.True(t, zero.IsZero())
	assert.False(t, sfapi.MustParseID("001A0000006Vm9r").IsZero())
}

func TestIDJSONRoundTrip(t *testing.T) {
	t.Parallel()

	id := sfapi.MustParseID("001A0000006Vm9r")

	data, err := json.Marshal(id)
	require.NoError(t, err)
	assert.Equal(t, `"001A0000006Vm9rIAC"`, string(data))

	var decoded sfapi.ID

	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, id, decoded)

	var invalid sfapi.ID

	err = json.Unmarshal([]byte(`"nope"`), &invalid)
	require.Error(t, err)
	assert.ErrorIs(t, err, sfapi.ErrInvalidID)
}

func TestMustParseIDPanics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() {
		sfapi.MustParseID("not an id")
	})
}
