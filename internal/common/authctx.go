package common

import "context"

type ctxKey string

const adminSubjectKey ctxKey = "auth/admin-subject"

// WithAdminSubject stores the authenticated staff member on the context.
func WithAdminSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, adminSubjectKey, subject)
}

// AdminSubject extracts the authenticated staff member from the context if present.
func AdminSubject(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(adminSubjectKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
