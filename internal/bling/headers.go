package bling

import (
	"context"
	"net/http"
)

// HeaderBuilder produces the headers every API call carries.
type HeaderBuilder struct {
	tokens TokenSource
}

// NewHeaderBuilder builds a HeaderBuilder over a token source.
func NewHeaderBuilder(tokens TokenSource) *HeaderBuilder {
	return &HeaderBuilder{tokens: tokens}
}

// Build returns Accept and Authorization headers for tenant. When no token
// can be obtained the header still carries "Bearer null" and the auth error
// is returned alongside it; the upstream call will then fail with 401.
func (b *HeaderBuilder) Build(ctx context.Context, tenant string) (http.Header, error) {
	token, err := b.tokens.Token(ctx, tenant)
	if token == "" {
		token = "null"
	}

	h := make(http.Header, 2)
	h.Set("Accept", "application/json")
	h.Set("Authorization", "Bearer "+token)
	return h, err
}
