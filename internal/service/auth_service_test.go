package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fajar-dev/be-sele-sele/internal/model"
	"github.com/fajar-dev/be-sele-sele/internal/repository"
	"github.com/fajar-dev/be-sele-sele/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (f *fakeUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[email]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeUserRepo) FindByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == id {
			copied := *u
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeUserRepo) Upsert(_ context.Context, params repository.UpsertUserParams) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[params.Email]
	if !ok {
		u = &model.User{
			ID:       uuid.Must(uuid.NewV7()),
			Email:    params.Email,
			IsActive: true,
		}
		f.users[params.Email] = u
	}
	if params.Sub != nil {
		u.Sub = params.Sub
	}
	if params.Name != nil {
		u.Name = params.Name
	}
	if params.AvatarURL != nil {
		u.AvatarURL = params.AvatarURL
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) deactivate(email string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[email]; ok {
		u.IsActive = false
	}
}

type fakeTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*model.RefreshToken
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{tokens: make(map[string]*model.RefreshToken)}
}

func (f *fakeTokenRepo) Create(_ context.Context, token *model.RefreshToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *token
	stored.ID = uuid.Must(uuid.NewV7())
	f.tokens[token.TokenHash] = &stored
	return nil
}

func (f *fakeTokenRepo) ConsumeByHash(_ context.Context, tokenHash string) (*model.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	token, ok := f.tokens[tokenHash]
	if !ok {
		return nil, nil
	}
	delete(f.tokens, tokenHash)
	return token, nil
}

func (f *fakeTokenRepo) Delete(_ context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tokens, tokenHash)
	return nil
}

func newAuthService(refreshTTL time.Duration) (service.AuthService, *fakeUserRepo, *fakeTokenRepo) {
	users := newFakeUserRepo()
	tokens := newFakeTokenRepo()
	svc := service.NewAuthService(users, tokens, service.AuthConfig{
		JWTSecret:  []byte("test-secret"),
		AccessTTL:  time.Hour,
		RefreshTTL: refreshTTL,
	})
	return svc, users, tokens
}

func testIdentity(email string) service.Identity {
	return service.Identity{Email: email}
}

func TestAuthService_Login_IssuesPair(t *testing.T) {
	svc, _, _ := newAuthService(time.Hour)

	user, pair, err := svc.Login(context.Background(), testIdentity("a@b.com"), "10.0.0.1")
	require.NoError(t, err)
	require.Equal(t, "a@b.com", user.Email)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	verified, err := svc.VerifyAccessToken(context.Background(), pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, verified.ID)
}

func TestAuthService_Login_InactiveUser(t *testing.T) {
	svc, users, _ := newAuthService(time.Hour)

	_, _, err := svc.Login(context.Background(), testIdentity("a@b.com"), "10.0.0.1")
	require.NoError(t, err)

	users.deactivate("a@b.com")

	_, _, err = svc.Login(context.Background(), testIdentity("a@b.com"), "10.0.0.1")
	require.ErrorIs(t, err, service.ErrUserInactive)
}

func TestAuthService_Refresh_RotatesToken(t *testing.T) {
	svc, _, _ := newAuthService(time.Hour)

	_, pair, err := svc.Login(context.Background(), testIdentity("a@b.com"), "10.0.0.1")
	require.NoError(t, err)

	_, next, err := svc.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, next.RefreshToken)

	// The consumed token is gone for good.
	_, _, err = svc.Refresh(context.Background(), pair.RefreshToken)
	require.ErrorIs(t, err, service.ErrInvalidToken)

	// The replacement still works.
	_, _, err = svc.Refresh(context.Background(), next.RefreshToken)
	require.NoError(t, err)
}

func TestAuthService_Refresh_UnknownToken(t *testing.T) {
	svc, _, _ := newAuthService(time.Hour)

	_, _, err := svc.Refresh(context.Background(), "never-issued")
	require.ErrorIs(t, err, service.ErrInvalidToken)
}

func TestAuthService_Refresh_ExpiredToken(t *testing.T) {
	svc, _, _ := newAuthService(-time.Minute)

	_, pair, err := svc.Login(context.Background(), testIdentity("a@b.com"), "10.0.0.1")
	require.NoError(t, err)

	_, _, err = svc.Refresh(context.Background(), pair.RefreshToken)
	require.ErrorIs(t, err, service.ErrTokenExpired)

	// Expiry consumed the row, so trying again reads as invalid.
	_, _, err = svc.Refresh(context.Background(), pair.RefreshToken)
	require.ErrorIs(t, err, service.ErrInvalidToken)
}

func TestAuthService_Refresh_InactiveUser(t *testing.T) {
	svc, users, _ := newAuthService(time.Hour)

	_, pair, err := svc.Login(context.Background(), testIdentity("a@b.com"), "10.0.0.1")
	require.NoError(t, err)

	users.deactivate("a@b.com")

	_, _, err = svc.Refresh(context.Background(), pair.RefreshToken)
	require.ErrorIs(t, err, service.ErrUserInactive)
}

func TestAuthService_Refresh_ConcurrentExactlyOneWins(t *testing.T) {
	svc, _, _ := newAuthService(time.Hour)

	_, pair, err := svc.Login(context.Background(), testIdentity("a@b.com"), "10.0.0.1")
	require.NoError(t, err)

	const racers = 8
	var wg sync.WaitGroup
	errs := make(chan error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.Refresh(context.Background(), pair.RefreshToken)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		if err == nil {
			wins++
		} else {
			require.ErrorIs(t, err, service.ErrInvalidToken)
		}
	}
	require.Equal(t, 1, wins)
}

func TestAuthService_Logout_InvalidatesToken(t *testing.T) {
	svc, _, _ := newAuthService(time.Hour)

	_, pair, err := svc.Login(context.Background(), testIdentity("a@b.com"), "10.0.0.1")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), pair.RefreshToken))

	_, _, err = svc.Refresh(context.Background(), pair.RefreshToken)
	require.ErrorIs(t, err, service.ErrInvalidToken)
}

func TestAuthService_Logout_UnknownTokenIsNoop(t *testing.T) {
	svc, _, _ := newAuthService(time.Hour)

	require.NoError(t, svc.Logout(context.Background(), "never-issued"))
}

func TestAuthService_VerifyAccessToken_Garbage(t *testing.T) {
	svc, _, _ := newAuthService(time.Hour)

	_, err := svc.VerifyAccessToken(context.Background(), "not-a-jwt")
	require.ErrorIs(t, err, service.ErrUnauthorized)
}

func TestAuthService_VerifyAccessToken_InactiveUser(t *testing.T) {
	svc, users, _ := newAuthService(time.Hour)

	_, pair, err := svc.Login(context.Background(), testIdentity("a@b.com"), "10.0.0.1")
	require.NoError(t, err)

	users.deactivate("a@b.com")

	_, err = svc.VerifyAccessToken(context.Background(), pair.AccessToken)
	require.ErrorIs(t, err, service.ErrUnauthorized)
}
