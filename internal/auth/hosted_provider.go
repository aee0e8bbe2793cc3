package auth

import (
	"context"
	"fmt"

	"github.com/hitoshi/shopfront/internal/hostedauth"
	"github.com/hitoshi/shopfront/internal/model"
)

// HostedProvider はホスト型認証サービスのID基盤をProviderとして公開する。
type HostedProvider struct {
	client *hostedauth.Client
}

// NewHostedProvider はHostedProviderを生成する。
func NewHostedProvider(client *hostedauth.Client) *HostedProvider {
	return &HostedProvider{client: client}
}

// Name はプロバイダー識別子を返す。
func (p *HostedProvider) Name() model.Provider {
	return model.ProviderHosted
}

// Authenticate はホスト型認証サービスのパスワード認証を行う。
func (p *HostedProvider) Authenticate(ctx context.Context, email, password string) (*RemoteProfile, error) {
	user, err := p.client.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("hosted authentication failed: %w", err)
	}
	return hostedUserToProfile(user), nil
}

// Register はホスト型認証サービスにユーザーを新規作成する。
func (p *HostedProvider) Register(ctx context.Context, email, password, firstName, lastName string) (*RemoteProfile, error) {
	user, err := p.client.SignUp(ctx, email, password, firstName, lastName)
	if err != nil {
		return nil, fmt.Errorf("hosted registration failed: %w", err)
	}
	return hostedUserToProfile(user), nil
}

// UpdateRemoteProfile はホスト型認証サービス側のプロファイルを更新する。
func (p *HostedProvider) UpdateRemoteProfile(ctx context.Context, providerUserID string, changes ProfileChanges) error {
	update := hostedauth.ProfileUpdate{
		Email:     changes.Email,
		FirstName: changes.FirstName,
		LastName:  changes.LastName,
	}
	if _, err := p.client.UpdateUser(ctx, providerUserID, update); err != nil {
		return fmt.Errorf("hosted profile update failed: %w", err)
	}
	return nil
}

func hostedUserToProfile(user *hostedauth.User) *RemoteProfile {
	return &RemoteProfile{
		Provider:       model.ProviderHosted,
		ProviderUserID: user.ID,
		Email:          user.Email,
		FirstName:      user.FirstName,
		LastName:       user.LastName,
	}
}

// compile-time interface check
var _ Provider = (*HostedProvider)(nil)
