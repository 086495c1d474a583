package handlers

import (
	"context"
	"html/template"
	"path/filepath"
	"testing"

	"github.com/HammerMeetNail/ficarchive-web/internal/models"
)

type mockBlockAPI struct {
	BlockFunc   func(ctx context.Context, token string, target models.BlockTarget, kind models.BlockKind, reason string) error
	UnblockFunc func(ctx context.Context, token string, target models.BlockTarget) error
	StatusFunc  func(ctx context.Context, token string, target models.BlockTarget) (models.BlockStatus, error)
	requests    int
}

func (m *mockBlockAPI) Block(ctx context.Context, token string, target models.BlockTarget, kind models.BlockKind, reason string) error {
	m.requests++
	if m.BlockFunc != nil {
		return m.BlockFunc(ctx, token, target, kind, reason)
	}
	return nil
}

func (m *mockBlockAPI) Unblock(ctx context.Context, token string, target models.BlockTarget) error {
	m.requests++
	if m.UnblockFunc != nil {
		return m.UnblockFunc(ctx, token, target)
	}
	return nil
}

func (m *mockBlockAPI) Status(ctx context.Context, token string, target models.BlockTarget) (models.BlockStatus, error) {
	m.requests++
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx, token, target)
	}
	return models.BlockStatus{}, nil
}

type mockSessionService struct {
	CreateFunc       func(ctx context.Context, cred models.Credential) (string, error)
	ResolveFunc      func(ctx context.Context, token string) (*models.Credential, error)
	DeleteFunc       func(ctx context.Context, token string) error
	PurgeExpiredFunc func(ctx context.Context) (int64, error)
}

func (m *mockSessionService) Create(ctx context.Context, cred models.Credential) (string, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, cred)
	}
	return "", nil
}

func (m *mockSessionService) Resolve(ctx context.Context, token string) (*models.Credential, error) {
	if m.ResolveFunc != nil {
		return m.ResolveFunc(ctx, token)
	}
	return nil, nil
}

func (m *mockSessionService) Delete(ctx context.Context, token string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, token)
	}
	return nil
}

func (m *mockSessionService) PurgeExpired(ctx context.Context) (int64, error) {
	if m.PurgeExpiredFunc != nil {
		return m.PurgeExpiredFunc(ctx)
	}
	return 0, nil
}

const templatesDir = "../../web/templates"

func loadTemplates(t *testing.T) *template.Template {
	t.Helper()
	tmpl, err := template.ParseGlob(filepath.Join(templatesDir, "*.html"))
	if err != nil {
		t.Fatalf("parsing templates: %v", err)
	}
	return tmpl
}
