package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/bigkaa/gomediabot/internal/domain/model"
	"github.com/bigkaa/gomediabot/internal/repository"
)

// mockTokenRepo — мок TokenRepository для unit-тестов.
type mockTokenRepo struct {
	insertFn func(ctx context.Context, t *model.AccessToken) error
	redeemFn func(ctx context.Context, token string) (*model.MediaItem, error)
}

func (m *mockTokenRepo) Insert(ctx context.Context, t *model.AccessToken) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, t)
	}
	return nil
}

func (m *mockTokenRepo) Redeem(ctx context.Context, token string) (*model.MediaItem, error) {
	if m.redeemFn != nil {
		return m.redeemFn(ctx, token)
	}
	return nil, repository.ErrNotFound
}

func (m *mockTokenRepo) CountExpiredUnused(context.Context) (int, error) {
	return 0, nil
}

func existingMediaRepo() *mockMediaRepo {
	return &mockMediaRepo{
		getByIDFn: func(_ context.Context, id int64) (*model.MediaItem, error) {
			return &model.MediaItem{ID: id, Name: "Фильм", FileRef: "ref", AccessHash: "hash"}, nil
		},
	}
}

func TestIssueCreatesTokenWithTTL(t *testing.T) {
	var saved *model.AccessToken
	tokenRepo := &mockTokenRepo{
		insertFn: func(_ context.Context, tok *model.AccessToken) error {
			saved = tok
			return nil
		},
	}

	svc := NewTokenService(tokenRepo, existingMediaRepo(), time.Hour, slog.Default())
	issuedAt := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return issuedAt }

	tok, err := svc.Issue(context.Background(), 42, 1001)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if saved == nil {
		t.Fatal("токен не был сохранён")
	}
	if len(tok.Token) != tokenLength {
		t.Errorf("len(Token) = %d, ожидалось %d", len(tok.Token), tokenLength)
	}
	if tok.MediaID != 42 || tok.UserID != 1001 {
		t.Errorf("MediaID = %d, UserID = %d", tok.MediaID, tok.UserID)
	}
	if !tok.ExpiresAt.Equal(issuedAt.Add(time.Hour)) {
		t.Errorf("ExpiresAt = %v, ожидалось issuedAt + 1h", tok.ExpiresAt)
	}
}

func TestIssueTokensAreUnique(t *testing.T) {
	svc := NewTokenService(&mockTokenRepo{}, existingMediaRepo(), time.Hour, slog.Default())

	// Реальные часы: наносекунды в seed различают выдачи
	t1, err := svc.Issue(context.Background(), 42, 1001)
	if err != nil {
		t.Fatalf("Issue #1: %v", err)
	}
	t2, err := svc.Issue(context.Background(), 42, 1001)
	if err != nil {
		t.Fatalf("Issue #2: %v", err)
	}

	if t1.Token == t2.Token {
		t.Error("повторная выдача дала тот же токен")
	}
}

func TestIssueMediaNotFound(t *testing.T) {
	svc := NewTokenService(&mockTokenRepo{}, &mockMediaRepo{}, time.Hour, slog.Default())

	_, err := svc.Issue(context.Background(), 99, 1001)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, ожидался ErrNotFound", err)
	}
}

func TestIssueConflictFailsLoudly(t *testing.T) {
	tokenRepo := &mockTokenRepo{
		insertFn: func(context.Context, *model.AccessToken) error {
			return repository.ErrConflict
		},
	}
	svc := NewTokenService(tokenRepo, existingMediaRepo(), time.Hour, slog.Default())

	// Коллизия маппится в сервисный ErrConflict (409 на API),
	// не в generic-ошибку и не в молчаливую перезапись
	_, err := svc.Issue(context.Background(), 42, 1001)
	if !errors.Is(err, ErrConflict) {
		t.Errorf("err = %v, ожидался ErrConflict", err)
	}
}

func TestRedeemReturnsMedia(t *testing.T) {
	tokenRepo := &mockTokenRepo{
		redeemFn: func(_ context.Context, token string) (*model.MediaItem, error) {
			if token != "abc123" {
				t.Errorf("token = %q, ожидался %q", token, "abc123")
			}
			return &model.MediaItem{ID: 42, FileRef: "ref", AccessHash: "hash"}, nil
		},
	}
	svc := NewTokenService(tokenRepo, existingMediaRepo(), time.Hour, slog.Default())

	item, err := svc.Redeem(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if item.ID != 42 || item.FileRef != "ref" {
		t.Errorf("item = %+v", item)
	}
}

func TestRedeemRejectedMapsToNotFound(t *testing.T) {
	// Несуществующий, просроченный и использованный токены
	// неразличимы — репозиторий для всех даёт ErrNotFound
	svc := NewTokenService(&mockTokenRepo{}, existingMediaRepo(), time.Hour, slog.Default())

	_, err := svc.Redeem(context.Background(), "неизвестный")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, ожидался ErrNotFound", err)
	}
}
