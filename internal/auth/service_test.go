package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memberdesk/memberdesk/internal/auth"
	"github.com/memberdesk/memberdesk/internal/shared"
	_ "github.com/memberdesk/memberdesk/testing"
)

type stubRepo struct {
	mu     sync.Mutex
	users  map[string]*auth.User
	nextID int64
	audit  map[string]int64
}

func newStubRepo() *stubRepo {
	return &stubRepo{users: make(map[string]*auth.User), audit: make(map[string]int64)}
}

func (s *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (s *stubRepo) Create(ctx context.Context, user auth.NewUser) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.Email]; ok {
		return nil, shared.ErrUserExists
	}
	s.nextID++
	created := &auth.User{
		ID:             s.nextID,
		Email:          user.Email,
		PasswordDigest: user.PasswordDigest,
		Role:           user.Role,
		FirstName:      user.FirstName,
		LastName:       user.LastName,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	s.users[user.Email] = created
	copied := *created
	return &copied, nil
}

func (s *stubRepo) CreateLoginSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit[id] = userID
	return nil
}

func (s *stubRepo) DeleteLoginSession(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.audit, id)
	return nil
}

func (s *stubRepo) DeleteExpiredLoginSessions(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func newTestService(t *testing.T) (*auth.Service, *stubRepo) {
	t.Helper()
	repo := newStubRepo()
	hasher, err := auth.NewHasher("test-pepper", 1000)
	require.NoError(t, err)
	return auth.NewService(repo, hasher), repo
}

func newTestSession(t *testing.T) *shared.Session {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	manager := shared.NewSessionManager(client, "test_session", "secret", time.Hour, false)
	sess, err := manager.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	return sess
}

func validSignup() auth.SignupInput {
	return auth.SignupInput{
		Email:     "admin@example.com",
		Password:  "adminpassword",
		FirstName: "Admin",
		LastName:  "User",
	}
}

func TestSignupIssuesSession(t *testing.T) {
	service, _ := newTestService(t)
	sess := newTestSession(t)

	result, err := service.Signup(context.Background(), sess, validSignup())
	require.NoError(t, err)
	assert.False(t, result.Error)
	require.NotNil(t, result.User)
	assert.Equal(t, auth.RoleUser, result.User.Role, "signup never grants elevated roles")

	snapshot := sess.User()
	require.NotNil(t, snapshot, "signup must write the session")
	assert.Equal(t, result.User.ID, snapshot.ID)
	assert.Equal(t, "admin@example.com", snapshot.Email)
	assert.Equal(t, auth.RoleUser, snapshot.Role)
}

func TestSignupDuplicateEmail(t *testing.T) {
	service, _ := newTestService(t)
	first := newTestSession(t)
	_, err := service.Signup(context.Background(), first, validSignup())
	require.NoError(t, err)

	second := newTestSession(t)
	result, err := service.Signup(context.Background(), second, validSignup())
	require.NoError(t, err)
	assert.True(t, result.Error)
	assert.True(t, result.UserExists)
	assert.Nil(t, second.User(), "duplicate signup must not write the session")
}

func TestSignupValidation(t *testing.T) {
	service, _ := newTestService(t)

	cases := map[string]struct {
		mutate func(*auth.SignupInput)
		field  string
	}{
		"malformed email":    {func(in *auth.SignupInput) { in.Email = "not-an-email" }, "Email"},
		"password too short": {func(in *auth.SignupInput) { in.Password = "abcde" }, "Password"},
		"missing first name": {func(in *auth.SignupInput) { in.FirstName = "" }, "FirstName"},
		"missing last name":  {func(in *auth.SignupInput) { in.LastName = "" }, "LastName"},
		"blank first name":   {func(in *auth.SignupInput) { in.FirstName = "   " }, "FirstName"},
		"blank last name":    {func(in *auth.SignupInput) { in.LastName = "\t " }, "LastName"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			sess := newTestSession(t)
			in := validSignup()
			tc.mutate(&in)
			result, err := service.Signup(context.Background(), sess, in)
			require.NoError(t, err)
			assert.True(t, result.Error)
			assert.Contains(t, result.Issues, tc.field)
			assert.Nil(t, sess.User())
		})
	}
}

func TestSignupTrimsNames(t *testing.T) {
	service, repo := newTestService(t)

	in := validSignup()
	in.FirstName = "  Ada "
	in.LastName = " Lovelace\t"
	result, err := service.Signup(context.Background(), newTestSession(t), in)
	require.NoError(t, err)
	require.False(t, result.Error)

	stored, err := repo.FindByEmail(context.Background(), in.Email)
	require.NoError(t, err)
	assert.Equal(t, "Ada", stored.FirstName)
	assert.Equal(t, "Lovelace", stored.LastName)
}

func TestSignupPasswordBoundary(t *testing.T) {
	service, _ := newTestService(t)

	in := validSignup()
	in.Password = "abcde"
	result, err := service.Signup(context.Background(), newTestSession(t), in)
	require.NoError(t, err)
	assert.True(t, result.Error, "five characters is below the minimum")

	in = validSignup()
	in.Password = "abcdef"
	result, err = service.Signup(context.Background(), newTestSession(t), in)
	require.NoError(t, err)
	assert.False(t, result.Error, "six characters meets the minimum")
}

func TestLoginUnknownUser(t *testing.T) {
	service, _ := newTestService(t)
	sess := newTestSession(t)

	result, err := service.Login(context.Background(), sess, "nobody@example.com", "whatever")
	require.NoError(t, err)
	assert.True(t, result.Error)
	assert.True(t, result.UserNotFound)
	assert.Equal(t, "User not found", result.Message)
	assert.Nil(t, sess.User(), "failed login must not write the session")
}

func TestLoginWrongPassword(t *testing.T) {
	service, _ := newTestService(t)
	_, err := service.Signup(context.Background(), newTestSession(t), validSignup())
	require.NoError(t, err)

	sess := newTestSession(t)
	result, err := service.Login(context.Background(), sess, "admin@example.com", "not-the-password")
	require.NoError(t, err)
	assert.True(t, result.Error)
	assert.True(t, result.WrongPassword)
	assert.False(t, result.UserNotFound, "a wrong password is not an unknown user")
	assert.Equal(t, "Incorrect password", result.Message)
	assert.Nil(t, sess.User())
}

func TestLoginSuccess(t *testing.T) {
	service, repo := newTestService(t)
	_, err := service.Signup(context.Background(), newTestSession(t), validSignup())
	require.NoError(t, err)

	sess := newTestSession(t)
	result, err := service.Login(context.Background(), sess, "admin@example.com", "adminpassword")
	require.NoError(t, err)
	assert.False(t, result.Error)
	assert.Equal(t, "Logged in", result.Message)

	stored, err := repo.FindByEmail(context.Background(), "admin@example.com")
	require.NoError(t, err)
	snapshot := sess.User()
	require.NotNil(t, snapshot)
	assert.Equal(t, stored.ID, snapshot.ID)
	assert.Equal(t, stored.Email, snapshot.Email)
	assert.Equal(t, stored.Role, snapshot.Role)
	assert.Equal(t, auth.RoleUser, snapshot.Role, "role stays user unless provisioned separately")
}

func TestLoginNormalizesEmail(t *testing.T) {
	service, _ := newTestService(t)
	_, err := service.Signup(context.Background(), newTestSession(t), validSignup())
	require.NoError(t, err)

	sess := newTestSession(t)
	result, err := service.Login(context.Background(), sess, "  Admin@EXAMPLE.com ", "adminpassword")
	require.NoError(t, err)
	assert.False(t, result.Error)
	require.NotNil(t, sess.User())
	assert.Equal(t, "admin@example.com", sess.User().Email)
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "admin@example.com", auth.NormalizeEmail("Admin@Example.COM"))
	assert.Equal(t, "admin@example.com", auth.NormalizeEmail(" admin@example.com "))
	assert.Equal(t, "no-at-sign", auth.NormalizeEmail("No-At-Sign"))
}
