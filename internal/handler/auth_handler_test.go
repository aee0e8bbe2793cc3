package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/shopfront/internal/auth"
	"github.com/hitoshi/shopfront/internal/middleware"
	"github.com/hitoshi/shopfront/internal/model"
)

// --- モック定義 ---

type mockAuthService struct {
	loginFn          func(ctx context.Context, email, password string, preference model.Provider) (*model.User, *model.Session, error)
	registerFn       func(ctx context.Context, email, password, firstName, lastName string, preference model.Provider) (*model.User, *model.Session, error)
	getCurrentUserFn func(ctx context.Context, sessionID string) (*model.User, []*model.Identity, error)
	logoutFn         func(ctx context.Context, sessionID string) error
	updateProfileFn  func(ctx context.Context, userID string, changes auth.ProfileChanges) (*model.User, error)
}

func (m *mockAuthService) Login(ctx context.Context, email, password string, preference model.Provider) (*model.User, *model.Session, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password, preference)
	}
	return nil, nil, model.NewAuthFailedError()
}

func (m *mockAuthService) Register(ctx context.Context, email, password, firstName, lastName string, preference model.Provider) (*model.User, *model.Session, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, email, password, firstName, lastName, preference)
	}
	return nil, nil, model.NewAuthFailedError()
}

func (m *mockAuthService) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, []*model.Identity, error) {
	if m.getCurrentUserFn != nil {
		return m.getCurrentUserFn(ctx, sessionID)
	}
	return nil, nil, model.NewUserNotFoundError()
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

func (m *mockAuthService) UpdateProfile(ctx context.Context, userID string, changes auth.ProfileChanges) (*model.User, error) {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, userID, changes)
	}
	return nil, model.NewUserNotFoundError()
}

var _ AuthServiceInterface = (*mockAuthService)(nil)

// --- テストヘルパー ---

func testUser() *model.User {
	return &model.User{
		ID:             "user-01",
		Email:          "taro@example.com",
		Username:       "taro",
		FirstName:      "太郎",
		LastName:       "山田",
		CustomerNumber: 10042,
	}
}

func testAuthConfig() AuthHandlerConfig {
	return AuthHandlerConfig{SessionMaxAge: 604800}
}

func sessionCookieFrom(t *testing.T, resp *http.Response) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == sessionCookieName {
			return c
		}
	}
	return nil
}

// --- テスト ---

func TestAuthHandler_Login_Success(t *testing.T) {
	svc := &mockAuthService{
		loginFn: func(_ context.Context, email, password string, preference model.Provider) (*model.User, *model.Session, error) {
			if email != "taro@example.com" || password != "secret-password" {
				t.Errorf("認証情報が渡されるべき: email=%q", email)
			}
			if preference != model.ProviderHosted {
				t.Errorf("preference = %q, want hosted", preference)
			}
			return testUser(), &model.Session{ID: "session-abc"}, nil
		},
	}
	h := NewAuthHandler(svc, testAuthConfig())

	body := `{"email":"taro@example.com","password":"secret-password","provider":"hosted"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Login(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	cookie := sessionCookieFrom(t, resp)
	if cookie == nil {
		t.Fatal("セッションCookieが設定されるべき")
	}
	if cookie.Value != "session-abc" {
		t.Errorf("cookie value = %q, want session-abc", cookie.Value)
	}
	if !cookie.HttpOnly {
		t.Error("セッションCookieはHttpOnlyであるべき")
	}

	var got userResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if got.CustomerNumber != 10042 {
		t.Errorf("customer_number = %d, want 10042", got.CustomerNumber)
	}
	if got.DisplayName != "太郎 山田" {
		t.Errorf("display_name = %q, want 太郎 山田", got.DisplayName)
	}
}

func TestAuthHandler_Login_InvalidEmail_Returns400(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, testAuthConfig())

	body := `{"email":"not-an-email","password":"secret-password"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Login(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestAuthHandler_Login_InvalidProviderValue_Returns400(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, testAuthConfig())

	body := `{"email":"taro@example.com","password":"secret-password","provider":"unknown"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Login(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestAuthHandler_Login_AuthFailed_Returns401(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, testAuthConfig())

	body := `{"email":"taro@example.com","password":"wrong-password"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Login(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}

	var body2 struct {
		Code string `json:"code"`
	}
	json.NewDecoder(resp.Body).Decode(&body2)
	if body2.Code != model.ErrCodeAuthFailed {
		t.Errorf("code = %q, want %q", body2.Code, model.ErrCodeAuthFailed)
	}
}

func TestAuthHandler_Register_Success_Returns201(t *testing.T) {
	svc := &mockAuthService{
		registerFn: func(_ context.Context, email, password, firstName, lastName string, _ model.Provider) (*model.User, *model.Session, error) {
			if firstName != "太郎" || lastName != "山田" {
				t.Errorf("姓名が渡されるべき: %q %q", firstName, lastName)
			}
			return testUser(), &model.Session{ID: "session-new"}, nil
		},
	}
	h := NewAuthHandler(svc, testAuthConfig())

	body := `{"email":"taro@example.com","password":"secret-password","first_name":"太郎","last_name":"山田"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Register(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	if cookie := sessionCookieFrom(t, resp); cookie == nil || cookie.Value != "session-new" {
		t.Error("登録成功でセッションCookieが設定されるべき")
	}
}

func TestAuthHandler_Register_ShortPassword_Returns400(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, testAuthConfig())

	body := `{"email":"taro@example.com","password":"short"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Register(w, req)

	if w.Result().StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusBadRequest)
	}
}

func TestAuthHandler_Register_EmailTaken_Returns409(t *testing.T) {
	svc := &mockAuthService{
		registerFn: func(_ context.Context, email, _, _, _ string, _ model.Provider) (*model.User, *model.Session, error) {
			return nil, nil, model.NewEmailTakenError(email)
		},
	}
	h := NewAuthHandler(svc, testAuthConfig())

	body := `{"email":"taro@example.com","password":"secret-password"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.Register(w, req)

	if w.Result().StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusConflict)
	}
}

func TestAuthHandler_Logout_ClearsCookie(t *testing.T) {
	logoutCalled := false
	svc := &mockAuthService{
		logoutFn: func(_ context.Context, sessionID string) error {
			logoutCalled = true
			if sessionID != "session-abc" {
				t.Errorf("sessionID = %q, want session-abc", sessionID)
			}
			return nil
		},
	}
	h := NewAuthHandler(svc, testAuthConfig())

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "session-abc"})
	w := httptest.NewRecorder()

	h.Logout(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	if !logoutCalled {
		t.Error("サービスのLogoutが呼ばれるべき")
	}
	cookie := sessionCookieFrom(t, resp)
	if cookie == nil || cookie.MaxAge != -1 {
		t.Error("セッションCookieが無効化されるべき")
	}
}

func TestAuthHandler_Me_Success(t *testing.T) {
	svc := &mockAuthService{
		getCurrentUserFn: func(_ context.Context, sessionID string) (*model.User, []*model.Identity, error) {
			return testUser(), []*model.Identity{
				{Provider: model.ProviderCommerce, ProviderUserID: "cus_01"},
				{Provider: model.ProviderHosted, ProviderUserID: "uuid-hosted"},
			}, nil
		},
	}
	h := NewAuthHandler(svc, testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "session-abc"})
	w := httptest.NewRecorder()

	h.Me(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var got userResponse
	json.NewDecoder(resp.Body).Decode(&got)
	if len(got.Providers) != 2 {
		t.Errorf("providers = %v, want 2件", got.Providers)
	}
}

func TestAuthHandler_Me_NoCookie_Returns401(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, testAuthConfig())

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	w := httptest.NewRecorder()

	h.Me(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestAuthHandler_UpdateMe_PartialUpdate(t *testing.T) {
	svc := &mockAuthService{
		updateProfileFn: func(_ context.Context, userID string, changes auth.ProfileChanges) (*model.User, error) {
			if userID != "user-01" {
				t.Errorf("userID = %q, want user-01", userID)
			}
			if changes.FirstName == nil || *changes.FirstName != "次郎" {
				t.Errorf("FirstNameが渡されるべき: %+v", changes)
			}
			if changes.Email != nil {
				t.Error("未指定のフィールドはnilであるべき")
			}
			u := testUser()
			u.FirstName = "次郎"
			return u, nil
		},
	}
	h := NewAuthHandler(svc, testAuthConfig())

	body := `{"first_name":"次郎"}`
	req := httptest.NewRequest(http.MethodPut, "/api/users/me", strings.NewReader(body))
	req = req.WithContext(middleware.ContextWithUserID(req.Context(), "user-01"))
	w := httptest.NewRecorder()

	h.UpdateMe(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	var got userResponse
	json.NewDecoder(resp.Body).Decode(&got)
	if got.FirstName != "次郎" {
		t.Errorf("first_name = %q, want 次郎", got.FirstName)
	}
}

func TestAuthHandler_UpdateMe_NoSession_Returns401(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, testAuthConfig())

	body := `{"first_name":"次郎"}`
	req := httptest.NewRequest(http.MethodPut, "/api/users/me", strings.NewReader(body))
	w := httptest.NewRecorder()

	h.UpdateMe(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}
