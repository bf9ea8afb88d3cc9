package domain

import "context"

type accessTokenKey struct{}

// WithAccessToken returns a context carrying the caller's Supabase access token
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, accessTokenKey{}, token)
}

// AccessTokenFromContext returns the caller's access token, or "" for
// requests made on the server's own behalf
func AccessTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(accessTokenKey{}).(string)
	return token
}
