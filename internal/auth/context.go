package auth

import "context"

type ctxKey int

const (
	ctxAccessToken ctxKey = iota
	ctxSubject
)

// WithAccessToken attaches the caller's bearer token and, when known, its subject.
func WithAccessToken(ctx context.Context, token, subject string) context.Context {
	ctx = context.WithValue(ctx, ctxAccessToken, token)
	if subject != "" {
		ctx = context.WithValue(ctx, ctxSubject, subject)
	}
	return ctx
}

// AccessToken returns the bearer token set by RequireBearerToken.
func AccessToken(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(ctxAccessToken).(string)
	return s, ok && s != ""
}

func Subject(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(ctxSubject).(string)
	return s, ok && s != ""
}
