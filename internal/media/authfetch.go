package media

import (
	"fmt"
	"net/http"

	"github.com/suPer8Hu/kb-chat/internal/auth"
)

// AuthClient attaches the caller's bearer token to each request it sends.
// Use it for endpoints that take the app token, never for presigned URLs.
// Every request is cloned; the shared *http.Client is never modified.
type AuthClient struct {
	http *http.Client
	id   auth.IdentityProvider
}

func NewAuthClient(c *http.Client, id auth.IdentityProvider) *AuthClient {
	if c == nil {
		c = http.DefaultClient
	}
	return &AuthClient{http: c, id: id}
}

func (c *AuthClient) Do(req *http.Request) (*http.Response, error) {
	if c.id == nil {
		return nil, auth.ErrUnauthenticated
	}
	token, err := c.id.SessionToken(req.Context())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", auth.ErrUnauthenticated, err)
	}
	out := req.Clone(req.Context())
	out.Header.Set("Authorization", "Bearer "+token)
	return c.http.Do(out)
}
