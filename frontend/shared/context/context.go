package context

import (
	"context"

	"kpidashboard/infrastructure/pipeline"
)

type sessionKey struct{}

func NewContextWithSession(ctx context.Context, session *pipeline.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, session)
}

func GetSessionFromContext(ctx context.Context) (*pipeline.Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*pipeline.Session)
	return s, ok && s != nil
}
