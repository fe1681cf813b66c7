package auth

import (
	"context"
	"errors"
	"strings"
	"time"
)

var ErrUnauthenticated = errors.New("auth: not authenticated")

// Credentials are scoped keys for calling managed services.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Expires         time.Time
}

// IdentityProvider hands out the current user's session token and
// credentials. Callers must abort when either fails.
type IdentityProvider interface {
	SessionToken(ctx context.Context) (string, error)
	Credentials(ctx context.Context) (Credentials, error)
}

// BearerIdentity forwards the token a request was authenticated with.
type BearerIdentity struct {
	Token string
	Creds Credentials
}

func (b BearerIdentity) SessionToken(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(b.Token) == "" {
		return "", ErrUnauthenticated
	}
	return b.Token, nil
}

func (b BearerIdentity) Credentials(ctx context.Context) (Credentials, error) {
	if _, err := b.SessionToken(ctx); err != nil {
		return Credentials{}, err
	}
	if !b.Creds.Expires.IsZero() && time.Now().After(b.Creds.Expires) {
		return Credentials{}, ErrUnauthenticated
	}
	return b.Creds, nil
}
