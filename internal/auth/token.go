package auth

import (
	"strconv"
	"time"

	"github.com/fivetwenty-io/sfapi/pkg/sfapi"
)

// tokenResponse is the wire shape of the token endpoint, for both the
// success and the rejection case.
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	InstanceURL      string `json:"instance_url"`
	TokenType        string `json:"token_type"`
	IssuedAt         string `json:"issued_at"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// session converts the wire response into a Session. The issued_at field is
// epoch milliseconds as a string; an unparseable one falls back to now.
func (t *tokenResponse) session() *sfapi.Session {
	issued := time.Now()
	if ms, err := strconv.ParseInt(t.IssuedAt, 10, 64); err == nil {
		issued = time.UnixMilli(ms)
	}

	return &sfapi.Session{
		AccessToken: t.AccessToken,
		InstanceURL: t.InstanceURL,
		IssuedAt:    issued,
	}
}
