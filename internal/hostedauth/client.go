// Package hostedauth はホスト型認証プロバイダーのAPIクライアントを提供する。
// メール＋パスワード認証のサインアップ・サインインと、管理APIによる
// ユーザープロファイルの取得・更新を呼び出す。
package hostedauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/shopfront/internal/metrics"
	"github.com/hitoshi/shopfront/internal/upstream"
)

// providerLabel はメトリクスのproviderラベル値。
const providerLabel = "hosted"

// User はホスト型認証プロバイダー側のユーザー。IDはUUID形式。
type User struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
}

// ProfileUpdate はユーザープロファイル更新のペイロード。nilのフィールドは変更しない。
type ProfileUpdate struct {
	Email     *string
	FirstName *string
	LastName  *string
}

// Client はホスト型認証プロバイダーAPIのクライアント。
// サインイン成功時に返却されるアクセストークン（HS256署名のJWT）を
// 共有シークレットで検証し、subjectクレームとユーザーIDの一致を確認する。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    metrics.MetricsCollector
	baseURL    string
	apiKey     string
	jwtSecret  string
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, collector metrics.MetricsCollector, baseURL, apiKey, jwtSecret string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		metrics:    collector,
		baseURL:    baseURL,
		apiKey:     apiKey,
		jwtSecret:  jwtSecret,
	}
}

// apiUser はAPIレスポンス上のユーザー表現。
type apiUser struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	UserMetadata struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
	} `json:"user_metadata"`
}

func (u *apiUser) toUser() *User {
	return &User{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.UserMetadata.FirstName,
		LastName:  u.UserMetadata.LastName,
	}
}

// tokenResponse はサインアップ・サインインのレスポンス。
type tokenResponse struct {
	AccessToken string  `json:"access_token"`
	User        apiUser `json:"user"`
}

// SignUp はメールアドレスとパスワードでユーザーを新規作成する。
// 同一メールアドレスのユーザーが既に存在する場合はステータス422のStatusErrorを返す。
func (c *Client) SignUp(ctx context.Context, email, password, firstName, lastName string) (*User, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
		"data": map[string]string{
			"first_name": firstName,
			"last_name":  lastName,
		},
	}
	var result tokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/v1/signup", nil, body, &result); err != nil {
		return nil, err
	}
	return result.User.toUser(), nil
}

// SignInWithPassword はメールアドレスとパスワードで認証する。
// 返却されたアクセストークンを検証し、subjectがユーザーIDと一致することを確認する。
// 認証失敗時はステータス400または401のStatusErrorを返す。
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*User, error) {
	q := url.Values{}
	q.Set("grant_type", "password")

	body := map[string]string{"email": email, "password": password}
	var result tokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token", q, body, &result); err != nil {
		return nil, err
	}

	subject, err := c.verifyAccessToken(result.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("アクセストークンの検証に失敗しました: %w", err)
	}
	if subject != result.User.ID {
		return nil, fmt.Errorf("アクセストークンのsubjectがユーザーIDと一致しません")
	}

	return result.User.toUser(), nil
}

// GetUser は管理APIでユーザーを取得する。
func (c *Client) GetUser(ctx context.Context, userID string) (*User, error) {
	var result apiUser
	path := "/auth/v1/admin/users/" + url.PathEscape(userID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &result); err != nil {
		return nil, err
	}
	return result.toUser(), nil
}

// UpdateUser は管理APIでユーザーのメールアドレスとプロファイル属性を更新する。
func (c *Client) UpdateUser(ctx context.Context, userID string, update ProfileUpdate) (*User, error) {
	body := map[string]any{}
	if update.Email != nil {
		body["email"] = *update.Email
	}
	meta := map[string]string{}
	if update.FirstName != nil {
		meta["first_name"] = *update.FirstName
	}
	if update.LastName != nil {
		meta["last_name"] = *update.LastName
	}
	if len(meta) > 0 {
		body["user_metadata"] = meta
	}

	var result apiUser
	path := "/auth/v1/admin/users/" + url.PathEscape(userID)
	if err := c.do(ctx, http.MethodPut, path, nil, body, &result); err != nil {
		return nil, err
	}
	return result.toUser(), nil
}

// verifyAccessToken はアクセストークンのHS256署名と有効期限を検証し、
// subjectクレームを返す。
func (c *Client) verifyAccessToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(c.jwtSecret), nil
	},
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
	)
	if err != nil {
		return "", err
	}

	subject, err := token.Claims.GetSubject()
	if err != nil {
		return "", fmt.Errorf("subjectクレームの取得に失敗しました: %w", err)
	}
	return subject, nil
}

// do は認証APIへのHTTPリクエストを実行し、2xxレスポンスをoutへデコードする。
// 2xx以外はStatusErrorを返す。レイテンシとステータスコードをメトリクスに記録する。
func (c *Client) do(ctx context.Context, method, path string, query url.Values, reqBody, out any) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if reqBody != nil {
		encoded, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("リクエストボディのエンコードに失敗しました: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.metrics != nil {
		c.metrics.RecordUpstreamLatency(providerLabel, time.Since(start))
	}
	if err != nil {
		c.logger.Error("認証プロバイダーAPIの呼び出しに失敗しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("認証プロバイダーAPIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if c.metrics != nil {
		c.metrics.RecordUpstreamStatus(providerLabel, resp.StatusCode)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("認証プロバイダーAPIがエラーステータスを返しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
		)
		return &upstream.StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
		}
	}

	return nil
}
