package sfapi_test

import (
	"fmt"
	"testing"

	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAPIError(t *testing.T) {
	t.Parallel()

	t.Run("documented error array", func(t *testing.T) {
		t.Parallel()

		body := []byte(`[{"message":"Session expired or invalid","errorCode":"INVALID_SESSION_ID"}]`)
		apiErr := sfapi.ParseAPIError(401, body)

		require.Len(t, apiErr.Errors, 1)
		assert.Equal(t, 401, apiErr.StatusCode)
		assert.Equal(t, "INVALID_SESSION_ID", apiErr.First().Code())
		assert.Contains(t, apiErr.Error(), "Session expired")
	})

	t.Run("undocumented body becomes the message", func(t *testing.T) {
		t.Parallel()

		apiErr := sfapi.ParseAPIError(502, []byte("Bad Gateway"))

		require.Len(t, apiErr.Errors, 1)
		assert.Equal(t, "Bad Gateway", apiErr.First().Message)
	})

	t.Run("empty body", func(t *testing.T) {
		t.Parallel()

		apiErr := sfapi.ParseAPIError(500, nil)

		assert.Empty(t, apiErr.Errors)
		assert.Contains(t, apiErr.Error(), "500")
	})
}

func TestErrorDetailCode(t *testing.T) {
	t.Parallel()

	// Collections responses carry the code under statusCode instead of
	// errorCode; Code reads whichever is present.
	byErrorCode := sfapi.ErrorDetail{ErrorCode: "DUPLICATE_VALUE"}
	byStatusCode := sfapi.ErrorDetail{StatusCode: "DUPLICATE_VALUE"}

	assert.Equal(t, "DUPLICATE_VALUE", byErrorCode.Code())
	assert.Equal(t, "DUPLICATE_VALUE", byStatusCode.Code())
}

func TestIsSessionExpired(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "401 with the expiry code",
			err:  sfapi.ParseAPIError(401, []byte(`[{"message":"x","errorCode":"INVALID_SESSION_ID"}]`)),
			want: true,
		},
		{
			name: "wrapped expiry still detected",
			err:  fmt.Errorf("get record: %w", sfapi.ParseAPIError(401, []byte(`[{"errorCode":"INVALID_SESSION_ID"}]`))),
			want: true,
		},
		{
			name: "401 without the code is an ordinary rejection",
			err:  sfapi.ParseAPIError(401, []byte(`[{"message":"no access","errorCode":"INSUFFICIENT_ACCESS"}]`)),
			want: false,
		},
		{
			name: "expiry code on a non-401 status",
			err:  sfapi.ParseAPIError(400, []byte(`[{"errorCode":"INVALID_SESSION_ID"}]`)),
			want: false,
		},
		{
			name: "unrelated error",
			err:  sfapi.ErrNotAuthenticated,
			want: false,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, sfapi.IsSessionExpired(tt.err))
		})
	}
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()

	assert.True(t, sfapi.IsNotFound(sfapi.ParseAPIError(404, nil)))
	assert.True(t, sfapi.IsNotFound(sfapi.ParseAPIError(400, []byte(`[{"errorCode":"NOT_FOUND"}]`))))
	assert.False(t, sfapi.IsNotFound(sfapi.ParseAPIError(400, []byte(`[{"errorCode":"MALFORMED_ID"}]`))))
	assert.False(t, sfapi.IsNotFound(sfapi.ErrInvalidID))
}

func TestErrorUnwrapping(t *testing.T) {
	t.Parallel()

	cause := sfapi.ErrCannotRefresh
	authErr := &sfapi.AuthError{Err: cause}

	assert.ErrorIs(t, authErr, cause)
	assert.Contains(t, authErr.Error(), "authentication failed")

	netErr := &sfapi.NetworkError{Err: fmt.Errorf("dial tcp: connection refused")}
	assert.Contains(t, netErr.Error(), "network error")
}

func TestDmlResultErr(t *testing.T) {
	t.Parallel()

	ok := sfapi.DmlResult{Success: true}
	require.NoError(t, ok.Err())

	failed := sfapi.DmlResult{
		Success: false,
		Errors: []sfapi.DmlError{
			{Message: "required field missing", StatusCode: "REQUIRED_FIELD_MISSING", Fields: []string{"Name"}},
		},
	}

	err := failed.Err()
	require.Error(t, err)

	apiErr := &sfapi.APIError{}
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "REQUIRED_FIELD_MISSING", apiErr.First().Code())
	assert.Equal(t, []string{"Name"}, apiErr.First().Fields)
}
