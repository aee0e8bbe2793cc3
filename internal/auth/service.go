package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/shopfront/internal/metrics"
	"github.com/hitoshi/shopfront/internal/model"
	"github.com/hitoshi/shopfront/internal/repository"
	"github.com/hitoshi/shopfront/internal/upstream"
)

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge   int            // セッション有効期間（秒）
	DefaultProvider model.Provider // 優先プロバイダーの既定値
}

// Service はマルチプロバイダー認証の照合ロジックを提供する。
//
// ログインは優先プロバイダーから順に試行し、最初に成功したプロバイダーの
// プロファイルをローカルレコードへ照合する。相手側プロバイダーへの
// レコード同期はベストエフォートで行い、失敗してもログインは成功させる。
type Service struct {
	providers   map[model.Provider]Provider
	userRepo    repository.UserRepository
	identRepo   repository.IdentityRepository
	sessionRepo repository.SessionRepository
	syncRepo    repository.ProfileSyncRepository
	metrics     metrics.MetricsCollector
	config      ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	providers []Provider,
	userRepo repository.UserRepository,
	identRepo repository.IdentityRepository,
	sessionRepo repository.SessionRepository,
	syncRepo repository.ProfileSyncRepository,
	collector metrics.MetricsCollector,
	config ServiceConfig,
) *Service {
	byName := make(map[model.Provider]Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &Service{
		providers:   byName,
		userRepo:    userRepo,
		identRepo:   identRepo,
		sessionRepo: sessionRepo,
		syncRepo:    syncRepo,
		metrics:     collector,
		config:      config,
	}
}

// Login はメールアドレスとパスワードでログインし、セッションを発行する。
//
// preferenceで指定されたプロバイダーを先に試行し、認証失敗・通信障害を問わず
// 失敗した場合はもう一方のプロバイダーへフォールバックする。全プロバイダーで
// 失敗した場合は統一の認証失敗エラーを返す。
// 初回成功時にローカルのusers/identitiesレコードを自動作成する。
func (s *Service) Login(ctx context.Context, email, password string, preference model.Provider) (*model.User, *model.Session, error) {
	if preference == "" {
		preference = s.config.DefaultProvider
	}
	if !preference.IsValid() {
		return nil, nil, model.NewInvalidProviderError(string(preference))
	}

	var profile *RemoteProfile
	for _, name := range []model.Provider{preference, preference.Other()} {
		provider, ok := s.providers[name]
		if !ok {
			continue
		}

		p, err := provider.Authenticate(ctx, email, password)
		if err != nil {
			if s.metrics != nil {
				s.metrics.RecordLogin(string(name), "failure")
			}
			slog.Info("プロバイダーでの認証に失敗しました",
				slog.String("provider", string(name)),
				slog.String("error", err.Error()),
			)
			continue
		}

		if s.metrics != nil {
			s.metrics.RecordLogin(string(name), "success")
		}
		profile = p
		break
	}

	if profile == nil {
		return nil, nil, model.NewAuthFailedError()
	}

	user, err := s.reconcile(ctx, profile)
	if err != nil {
		return nil, nil, err
	}

	// 相手側プロバイダーへのレコード同期はベストエフォート
	s.crossSync(ctx, user, profile.Provider, email, password)

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("provider", string(profile.Provider)),
	)

	return user, session, nil
}

// Register は優先プロバイダーにユーザーを新規作成し、セッションを発行する。
//
// 優先プロバイダーでの作成成功後、もう一方のプロバイダーにも同一認証情報で
// ベストエフォートのレコード作成を試みる。パスワードは永続化しないため、
// 二次プロバイダーでの作成失敗は記録のみ行い、バックグラウンドでは再試行しない。
func (s *Service) Register(ctx context.Context, email, password, firstName, lastName string, preference model.Provider) (*model.User, *model.Session, error) {
	if preference == "" {
		preference = s.config.DefaultProvider
	}
	if !preference.IsValid() {
		return nil, nil, model.NewInvalidProviderError(string(preference))
	}

	provider, ok := s.providers[preference]
	if !ok {
		return nil, nil, model.NewInvalidProviderError(string(preference))
	}

	profile, err := provider.Register(ctx, email, password, firstName, lastName)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordRegister(string(preference), "failure")
		}
		if upstream.IsConflict(err) {
			return nil, nil, model.NewEmailTakenError(email)
		}
		slog.Error("プロバイダーでのユーザー作成に失敗しました",
			slog.String("provider", string(preference)),
			slog.String("error", err.Error()),
		)
		return nil, nil, model.NewProviderUnavailableError(string(preference))
	}
	if s.metrics != nil {
		s.metrics.RecordRegister(string(preference), "success")
	}

	user, err := s.reconcile(ctx, profile)
	if err != nil {
		return nil, nil, err
	}

	s.crossSync(ctx, user, profile.Provider, email, password)

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("new user registered",
		slog.String("user_id", user.ID),
		slog.String("provider", string(profile.Provider)),
	)

	return user, session, nil
}

// GetCurrentUser はセッションから現在のユーザーと紐付きidentity一覧を取得する。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, []*model.Identity, error) {
	if sessionID == "" {
		return nil, nil, model.NewUserNotFoundError()
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, nil, model.NewUserNotFoundError()
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, nil, model.NewUserNotFoundError()
	}

	identities, err := s.identRepo.ListByUserID(ctx, user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list identities: %w", err)
	}

	return user, identities, nil
}

// Logout はセッションを破棄する。外部プロバイダー側のレコードには触れない。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// UpdateProfile はローカルのプロファイルを更新し、紐付く全プロバイダーへの
// 同期タスクをキューイングする。リモート反映はワーカーが行う。
func (s *Service) UpdateProfile(ctx context.Context, userID string, changes ProfileChanges) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	if changes.Email != nil && *changes.Email != "" {
		user.Email = *changes.Email
	}
	if changes.FirstName != nil {
		user.FirstName = *changes.FirstName
	}
	if changes.LastName != nil {
		user.LastName = *changes.LastName
	}
	user.UpdatedAt = time.Now()

	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user profile: %w", err)
	}

	identities, err := s.identRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list identities: %w", err)
	}
	for _, identity := range identities {
		s.enqueueSync(ctx, userID, identity.Provider)
	}

	slog.Info("user profile updated", slog.String("user_id", userID))
	return user, nil
}

// reconcile はリモートプロファイルをローカルレコードへ照合する。
//
// 1. (provider, provider_user_id) でidentityを検索し、既存ユーザーを特定する。
// 2. identityがなければメールアドレス一致で既存ユーザーへidentityを追加する。
// 3. どちらもなければユーザーとidentityを同時に新規作成する。
// 作成はidentitiesの一意制約で保護されており、同時ログインで作成が競合した
// 場合は一度だけidentity検索をやり直す。
func (s *Service) reconcile(ctx context.Context, profile *RemoteProfile) (*model.User, error) {
	identity, err := s.identRepo.FindByProviderAndProviderUserID(ctx, profile.Provider, profile.ProviderUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	if identity != nil {
		return s.mergeIntoExisting(ctx, identity.UserID, profile)
	}

	// メールアドレス一致による既存ユーザーへの紐付け
	existing, err := s.userRepo.FindByEmail(ctx, profile.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if existing != nil {
		newIdentity := &model.Identity{
			ID:             uuid.New().String(),
			UserID:         existing.ID,
			Provider:       profile.Provider,
			ProviderUserID: profile.ProviderUserID,
			CreatedAt:      time.Now(),
		}
		if err := s.userRepo.AttachIdentity(ctx, newIdentity); err != nil {
			return nil, fmt.Errorf("failed to attach identity: %w", err)
		}
		slog.Info("identity linked to existing user",
			slog.String("user_id", existing.ID),
			slog.String("provider", string(profile.Provider)),
		)
		return s.mergeIntoExisting(ctx, existing.ID, profile)
	}

	// 新規ユーザー作成
	now := time.Now()
	newUser := &model.User{
		ID:        uuid.New().String(),
		Email:     profile.Email,
		Username:  usernameFromEmail(profile.Email),
		FirstName: profile.FirstName,
		LastName:  profile.LastName,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if profile.Provider == model.ProviderCommerce {
		newUser.CustomerNumber = profile.CustomerNumber
	}
	newIdentity := &model.Identity{
		ID:             uuid.New().String(),
		UserID:         newUser.ID,
		Provider:       profile.Provider,
		ProviderUserID: profile.ProviderUserID,
		CreatedAt:      now,
	}

	if err := s.userRepo.CreateWithIdentity(ctx, newUser, newIdentity); err != nil {
		// 同時ログインによる作成競合。一意制約違反の可能性があるため再検索する。
		retry, findErr := s.identRepo.FindByProviderAndProviderUserID(ctx, profile.Provider, profile.ProviderUserID)
		if findErr == nil && retry != nil {
			return s.mergeIntoExisting(ctx, retry.UserID, profile)
		}
		return nil, fmt.Errorf("failed to create user and identity: %w", err)
	}

	slog.Info("new user created",
		slog.String("user_id", newUser.ID),
		slog.String("provider", string(profile.Provider)),
	)
	return newUser, nil
}

// mergeIntoExisting は既存ユーザーへプロファイルをマージし、変更があれば永続化する。
func (s *Service) mergeIntoExisting(ctx context.Context, userID string, profile *RemoteProfile) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("identity references missing user: %s", userID)
	}

	if mergeProfile(user, profile) {
		user.UpdatedAt = time.Now()
		if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to persist merged profile: %w", err)
		}
	}

	return user, nil
}

// crossSync は認証に成功したプロバイダーの相手側へレコードを同期する。
//
// 相手側にidentityが既にある場合はプロファイル更新を行い、一時障害なら
// バックグラウンドリトライをキューイングする。identityがない場合は同一
// 認証情報でのレコード作成を試みる。作成はパスワードを必要とするため、
// 失敗してもキューイングせずログのみ残す。
func (s *Service) crossSync(ctx context.Context, user *model.User, authedWith model.Provider, email, password string) {
	counterpartName := authedWith.Other()
	counterpart, ok := s.providers[counterpartName]
	if !ok {
		return
	}

	identities, err := s.identRepo.ListByUserID(ctx, user.ID)
	if err != nil {
		slog.Error("failed to list identities for cross sync",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	var counterpartIdentity *model.Identity
	for _, id := range identities {
		if id.Provider == counterpartName {
			counterpartIdentity = id
			break
		}
	}

	if counterpartIdentity != nil {
		// 相手側レコードあり: プロファイル更新を同期
		changes := ProfileChanges{
			Email:     &user.Email,
			FirstName: &user.FirstName,
			LastName:  &user.LastName,
		}
		if err := counterpart.UpdateRemoteProfile(ctx, counterpartIdentity.ProviderUserID, changes); err != nil {
			slog.Warn("相手側プロバイダーへのプロファイル同期に失敗しました",
				slog.String("user_id", user.ID),
				slog.String("provider", string(counterpartName)),
				slog.String("error", err.Error()),
			)
			s.enqueueSync(ctx, user.ID, counterpartName)
		}
		return
	}

	// 相手側レコードなし: 同一認証情報で作成を試みる
	profile, err := counterpart.Register(ctx, email, password, user.FirstName, user.LastName)
	if err != nil {
		if upstream.IsConflict(err) {
			// 既に相手側にアカウントがある。同一認証情報でログインできれば紐付ける。
			profile, err = counterpart.Authenticate(ctx, email, password)
			if err != nil {
				slog.Warn("相手側プロバイダーの既存アカウントに紐付けできませんでした",
					slog.String("user_id", user.ID),
					slog.String("provider", string(counterpartName)),
					slog.String("error", err.Error()),
				)
				return
			}
		} else {
			slog.Warn("相手側プロバイダーへのレコード作成に失敗しました",
				slog.String("user_id", user.ID),
				slog.String("provider", string(counterpartName)),
				slog.String("error", err.Error()),
			)
			return
		}
	}

	newIdentity := &model.Identity{
		ID:             uuid.New().String(),
		UserID:         user.ID,
		Provider:       profile.Provider,
		ProviderUserID: profile.ProviderUserID,
		CreatedAt:      time.Now(),
	}
	if err := s.userRepo.AttachIdentity(ctx, newIdentity); err != nil {
		slog.Error("failed to attach counterpart identity",
			slog.String("user_id", user.ID),
			slog.String("provider", string(counterpartName)),
			slog.String("error", err.Error()),
		)
		return
	}

	if user.CustomerNumber == 0 && profile.CustomerNumber != 0 {
		user.CustomerNumber = profile.CustomerNumber
		user.UpdatedAt = time.Now()
		if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
			slog.Error("failed to persist customer number",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	slog.Info("counterpart provider record linked",
		slog.String("user_id", user.ID),
		slog.String("provider", string(counterpartName)),
	)
}

// enqueueSync はプロファイル同期のリトライタスクを登録する。
func (s *Service) enqueueSync(ctx context.Context, userID string, provider model.Provider) {
	now := time.Now()
	sync := &model.ProfileSync{
		ID:            uuid.New().String(),
		UserID:        userID,
		Provider:      provider,
		Status:        model.SyncStatusPending,
		NextAttemptAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.syncRepo.Enqueue(ctx, sync); err != nil {
		slog.Error("failed to enqueue profile sync",
			slog.String("user_id", userID),
			slog.String("provider", string(provider)),
			slog.String("error", err.Error()),
		)
	}
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: time.Now().Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: time.Now(),
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
