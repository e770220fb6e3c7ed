package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/Skotchmaster/med_assist/internal/apperr"
	"github.com/Skotchmaster/med_assist/internal/db"
	"github.com/Skotchmaster/med_assist/internal/events"
	"github.com/Skotchmaster/med_assist/internal/hash"
	"github.com/Skotchmaster/med_assist/internal/models"
	"github.com/Skotchmaster/med_assist/internal/repo"
	"github.com/Skotchmaster/med_assist/internal/search"
	"github.com/Skotchmaster/med_assist/internal/tokens"
	"github.com/Skotchmaster/med_assist/internal/validate"
)

const testSecret = "service-test-secret-service-test-secret"

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type testEnv struct {
	DB       *gorm.DB
	Auth     *AuthService
	Tokens   *tokens.Manager
	Ledger   *repo.RevocationRepo
	Accounts *repo.AccountRepo
	Events   *recordingPublisher
	V        *validate.Validator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	gdb, err := db.Open(context.Background(), "sqlite::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })

	hasher, err := hash.New(hash.AlgorithmBcrypt, bcrypt.MinCost)
	require.NoError(t, err)

	ledger := repo.NewRevocationRepo(gdb)
	tm, err := tokens.New(testSecret, 15*time.Minute, 24*time.Hour, ledger)
	require.NoError(t, err)

	accounts := repo.NewAccountRepo(gdb)
	pub := &recordingPublisher{}
	v := validate.New()

	return &testEnv{
		DB:       gdb,
		Auth:     NewAuthService(accounts, hasher, tm, ledger, v, pub),
		Tokens:   tm,
		Ledger:   ledger,
		Accounts: accounts,
		Events:   pub,
		V:        v,
	}
}

func validInput(username, email string) RegisterInput {
	return RegisterInput{
		FirstName:       "Ada",
		LastName:        "Lovelace",
		Username:        username,
		Email:           email,
		Password:        "correct-horse",
		ConfirmPassword: "correct-horse",
	}
}

func (env *testEnv) register(t *testing.T, username, email string) *models.Account {
	t.Helper()
	a, err := env.Auth.Register(context.Background(), validInput(username, email))
	require.NoError(t, err)
	return a
}

func TestRegister_StoresHashAndPublishes(t *testing.T) {
	env := newTestEnv(t)

	a := env.register(t, "ada", "Ada@Example.com ")
	assert.NotZero(t, a.ID)
	assert.Equal(t, "ada@example.com", a.Email)
	assert.NotEqual(t, "correct-horse", a.PasswordHash)
	assert.False(t, a.IsAdmin)

	assert.Contains(t, env.Events.types(), events.AccountRegistered)
}

func TestRegister_ValidationErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		mut   func(*RegisterInput)
		field string
	}{
		{name: "missing first name", mut: func(in *RegisterInput) { in.FirstName = "  " }, field: "first_name"},
		{name: "long last name", mut: func(in *RegisterInput) { in.LastName = strings.Repeat("x", 31) }, field: "last_name"},
		{name: "bad email", mut: func(in *RegisterInput) { in.Email = "not-an-email" }, field: "email"},
		{name: "short password", mut: func(in *RegisterInput) { in.Password, in.ConfirmPassword = "short", "short" }, field: "password"},
		{name: "mismatched confirm", mut: func(in *RegisterInput) { in.ConfirmPassword = "different-one" }, field: "confirm_password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput("ada", "ada@example.com")
			tt.mut(&in)

			_, err := env.Auth.Register(ctx, in)
			ve, ok := apperr.IsValidation(err)
			require.True(t, ok, "got %v", err)
			assert.Contains(t, ve.Fields, tt.field)
		})
	}
}

func TestRegister_MultibytePasswords(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// 64 characters but 128 bytes
	in := validInput("ada", "ada@example.com")
	in.Password = strings.Repeat("é", 64)
	in.ConfirmPassword = in.Password

	_, err := env.Auth.Register(ctx, in)
	ve, ok := apperr.IsValidation(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, "Must be at most 72 bytes", ve.Fields["password"])

	// 36 characters, exactly 72 bytes
	in.Password = strings.Repeat("é", 36)
	in.ConfirmPassword = in.Password

	a, err := env.Auth.Register(ctx, in)
	require.NoError(t, err)

	got, err := env.Auth.Authenticate(ctx, ByEmail, "ada@example.com", in.Password)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
}

func TestRegister_Duplicates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.register(t, "ada", "ada@example.com")

	_, err := env.Auth.Register(ctx, validInput("other", "ada@example.com"))
	ve, ok := apperr.IsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "Email already exists", ve.Fields["email"])

	_, err = env.Auth.Register(ctx, validInput("ada", "other@example.com"))
	ve, ok = apperr.IsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "Username already exists", ve.Fields["username"])
}

func TestRegister_ConcurrentIdenticalExactlyOneWins(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	const n = 4
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		ok    int
		dupes int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.Auth.Register(ctx, validInput("ada", "ada@example.com"))

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
				return
			}
			if _, isVal := apperr.IsValidation(err); isVal {
				dupes++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, dupes)
}

func TestAuthenticate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.register(t, "ada", "ada@example.com")

	first, err := env.Auth.Authenticate(ctx, ByAuto, "ada@example.com", "correct-horse")
	require.NoError(t, err)
	second, err := env.Auth.Authenticate(ctx, ByAuto, "ada@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, a.ID, first.ID)
	assert.Equal(t, first.ID, second.ID)

	byName, err := env.Auth.Authenticate(ctx, ByUsername, "ada", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, a.ID, byName.ID)

	_, err = env.Auth.Authenticate(ctx, ByEmail, "ada@example.com", "wrong-password")
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)

	_, err = env.Auth.Authenticate(ctx, ByEmail, "ghost@example.com", "correct-horse")
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)
}

func TestLogin_IssuesDistinctTokens(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.register(t, "ada", "ada@example.com")

	_, pair, err := env.Auth.Login(ctx, ByEmail, "ada@example.com", "correct-horse")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	assert.NotEqual(t, pair.AccessToken, pair.RefreshToken)

	id, err := env.Tokens.Verify(ctx, pair.AccessToken, tokens.TypeAccess)
	require.NoError(t, err)
	assert.Equal(t, a.ID, id.AccountID)

	_, err = env.Tokens.Verify(ctx, pair.RefreshToken, tokens.TypeRefresh)
	require.NoError(t, err)

	_, _, err = env.Auth.Login(ctx, ByEmail, "ada@example.com", "nope-nope")
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)
	assert.Contains(t, env.Events.types(), events.LoginFailed)
}

func TestLogout_RevokesOnlyThatToken(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.register(t, "ada", "ada@example.com")
	_, pair, err := env.Auth.Login(ctx, ByUsername, "ada", "correct-horse")
	require.NoError(t, err)

	id, err := env.Tokens.Verify(ctx, pair.AccessToken, tokens.TypeAny)
	require.NoError(t, err)

	require.NoError(t, env.Auth.Logout(ctx, id))
	require.NoError(t, env.Auth.Logout(ctx, id))

	_, err = env.Tokens.Verify(ctx, pair.AccessToken, tokens.TypeAccess)
	assert.ErrorIs(t, err, apperr.ErrTokenRevoked)

	_, err = env.Tokens.Verify(ctx, pair.RefreshToken, tokens.TypeRefresh)
	assert.NoError(t, err)
}

func TestRefresh(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.register(t, "ada", "ada@example.com")
	_, pair, err := env.Auth.Login(ctx, ByUsername, "ada", "correct-horse")
	require.NoError(t, err)

	id, err := env.Tokens.Verify(ctx, pair.RefreshToken, tokens.TypeRefresh)
	require.NoError(t, err)

	access, err := env.Auth.Refresh(ctx, id)
	require.NoError(t, err)
	got, err := env.Tokens.Verify(ctx, access, tokens.TypeAccess)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.AccountID)

	// account vanished
	require.NoError(t, env.DB.Delete(&models.Account{}, a.ID).Error)
	_, err = env.Auth.Refresh(ctx, id)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.register(t, "ada", "ada@example.com")

	err := env.Auth.ChangePassword(ctx, a.ID, ChangePasswordInput{
		CurrentPassword: "wrong-current",
		NewPassword:     "brand-new-pass",
		ConfirmPassword: "brand-new-pass",
	})
	ve, ok := apperr.IsValidation(err)
	require.True(t, ok)
	assert.Contains(t, ve.Fields, "current_password")

	require.NoError(t, env.Auth.ChangePassword(ctx, a.ID, ChangePasswordInput{
		CurrentPassword: "correct-horse",
		NewPassword:     "brand-new-pass",
		ConfirmPassword: "brand-new-pass",
	}))

	_, err = env.Auth.Authenticate(ctx, ByUsername, "ada", "correct-horse")
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)
	_, err = env.Auth.Authenticate(ctx, ByUsername, "ada", "brand-new-pass")
	assert.NoError(t, err)

	tooLong := strings.Repeat("ü", 40)
	err = env.Auth.ChangePassword(ctx, a.ID, ChangePasswordInput{
		CurrentPassword: "brand-new-pass",
		NewPassword:     tooLong,
		ConfirmPassword: tooLong,
	})
	ve, ok = apperr.IsValidation(err)
	require.True(t, ok, "got %v", err)
	assert.Contains(t, ve.Fields, "new_password")
}

func TestListAccounts(t *testing.T) {
	env := newTestEnv(t)

	env.register(t, "ada", "ada@example.com")
	env.register(t, "bob", "bob@example.com")
	env.register(t, "cyd", "cyd@example.com")

	page, err := env.Auth.ListAccounts(context.Background(), 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 2, page.CurrentPage)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "cyd", page.Items[0].Username)
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	env := newTestEnv(t)
	env.Events.err = errors.New("broker down")

	_, err := env.Auth.Register(context.Background(), validInput("ada", "ada@example.com"))
	assert.NoError(t, err)
}

type memIndex struct {
	mu   sync.Mutex
	docs map[string]search.Document
}

func (m *memIndex) Index(_ context.Context, d search.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[d.Kind+"/"+d.Text] = d
	return nil
}

func (m *memIndex) Delete(_ context.Context, kind string, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, d := range m.docs {
		if d.Kind == kind && d.RecordID == id {
			delete(m.docs, k)
		}
	}
	return nil
}

func TestRecordService_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.register(t, "alice", "alice@example.com")
	bob := env.register(t, "bob", "bob@example.com")

	idx := &memIndex{docs: map[string]search.Document{}}
	svc := NewRecordService[models.Symptom]("symptoms", "Symptom",
		repo.NewRecordRepo[models.Symptom](env.DB, "recorded_on DESC"), env.V, idx, env.Events)

	rec, err := svc.Create(ctx, alice.ID, &models.Symptom{ID: 999, Severity: 4, TypeOfSymptom: "migraine", UserID: bob.ID})
	require.NoError(t, err)
	assert.Equal(t, alice.ID, rec.UserID)
	assert.NotEqual(t, uint(999), rec.ID)
	assert.False(t, rec.RecordedOn.IsZero())
	assert.Len(t, idx.docs, 1)

	_, err = svc.Create(ctx, alice.ID, &models.Symptom{Severity: 11})
	_, isVal := apperr.IsValidation(err)
	assert.True(t, isVal)

	patched, err := svc.Patch(ctx, alice.ID, rec.ID, []byte(`{"severity": 6}`))
	require.NoError(t, err)
	assert.Equal(t, 6, patched.Severity)
	assert.Equal(t, "migraine", patched.TypeOfSymptom)

	_, err = svc.Patch(ctx, alice.ID, rec.ID, []byte(`{"severity": 42}`))
	_, isVal = apperr.IsValidation(err)
	assert.True(t, isVal)

	_, err = svc.Patch(ctx, alice.ID, rec.ID, []byte(`[1,2]`))
	_, isVal = apperr.IsValidation(err)
	assert.True(t, isVal)

	// the failed patch rolled back
	got, err := svc.Get(ctx, alice.ID, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, got.Severity)

	_, err = svc.Get(ctx, bob.ID, rec.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = svc.Patch(ctx, bob.ID, rec.ID, []byte(`{"severity": 1}`))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, bob.ID, rec.ID), apperr.ErrNotFound)

	page, err := svc.List(ctx, alice.ID, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), page.Total)

	require.NoError(t, svc.Delete(ctx, alice.ID, rec.ID))
	assert.Empty(t, idx.docs)

	types := env.Events.types()
	assert.Contains(t, types, events.RecordCreated)
	assert.Contains(t, types, events.RecordUpdated)
	assert.Contains(t, types, events.RecordDeleted)
}

func TestUserInfoService(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a := env.register(t, "ada", "ada@example.com")
	svc := NewUserInfoService(repo.NewUserInfoRepo(env.DB), env.V)

	info, err := svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Nil(t, info)

	_, err = svc.Put(ctx, a.ID, &models.UserInfo{Age: -1})
	_, isVal := apperr.IsValidation(err)
	assert.True(t, isVal)

	saved, err := svc.Put(ctx, a.ID, &models.UserInfo{Age: 36, HeightFt: 5, HeightIn: 7})
	require.NoError(t, err)
	assert.Equal(t, a.ID, saved.UserID)

	info, err = svc.Get(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, 36, info.Age)
}

type stubSearcher struct {
	gotUser uint
	gotFrom int
}

func (s *stubSearcher) Search(_ context.Context, userID uint, _ string, from, _ int) (int64, []search.Document, error) {
	s.gotUser, s.gotFrom = userID, from
	return 1, []search.Document{{Kind: "labs", RecordID: 3, UserID: userID}}, nil
}

func TestSearchService(t *testing.T) {
	ctx := context.Background()

	_, err := NewSearchService(nil).Search(ctx, 1, "x", 1, 10)
	assert.ErrorIs(t, err, search.ErrUnavailable)

	stub := &stubSearcher{}
	svc := NewSearchService(stub)

	_, err = svc.Search(ctx, 1, "", 1, 10)
	_, isVal := apperr.IsValidation(err)
	assert.True(t, isVal)

	page, err := svc.Search(ctx, 7, "pressure", 2, 10)
	require.NoError(t, err)
	assert.Equal(t, uint(7), stub.gotUser)
	assert.Equal(t, 10, stub.gotFrom)
	assert.Len(t, page.Items, 1)
}
