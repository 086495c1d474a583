package handlers

import (
	"context"

	"github.com/HammerMeetNail/ficarchive-web/internal/models"
)

type contextKey string

const (
	credentialContextKey contextKey = "credential"
	ownerContextKey      contextKey = "owner"
)

// SetCredentialInContext stores the archive API credential for this request.
func SetCredentialInContext(ctx context.Context, cred *models.Credential) context.Context {
	return context.WithValue(ctx, credentialContextKey, cred)
}

// GetCredentialFromContext returns nil when the request carries no credential.
func GetCredentialFromContext(ctx context.Context) *models.Credential {
	cred, _ := ctx.Value(credentialContextKey).(*models.Credential)
	return cred
}

// SetOwnerInContext stores the key that owns mounted controls for this browser.
func SetOwnerInContext(ctx context.Context, owner string) context.Context {
	return context.WithValue(ctx, ownerContextKey, owner)
}

func GetOwnerFromContext(ctx context.Context) string {
	owner, _ := ctx.Value(ownerContextKey).(string)
	return owner
}
