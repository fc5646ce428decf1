package api

import (
	"context"

	"github.com/terra-clan/exercise-submitter/internal/models"
)

type contextKey string

const credentialsContextKey contextKey = "credentials"

// CredentialsFromContext extracts the authenticated user's credentials
func CredentialsFromContext(ctx context.Context) (models.Credentials, bool) {
	creds, ok := ctx.Value(credentialsContextKey).(models.Credentials)
	return creds, ok
}

// ContextWithCredentials adds credentials to context
func ContextWithCredentials(ctx context.Context, creds models.Credentials) context.Context {
	return context.WithValue(ctx, credentialsContextKey, creds)
}
