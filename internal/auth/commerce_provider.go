package auth

import (
	"context"
	"fmt"

	"github.com/hitoshi/shopfront/internal/commerce"
	"github.com/hitoshi/shopfront/internal/model"
)

// CommerceProvider はコマースプロバイダーの顧客ID基盤をProviderとして公開する。
type CommerceProvider struct {
	client *commerce.Client
}

// NewCommerceProvider はCommerceProviderを生成する。
func NewCommerceProvider(client *commerce.Client) *CommerceProvider {
	return &CommerceProvider{client: client}
}

// Name はプロバイダー識別子を返す。
func (p *CommerceProvider) Name() model.Provider {
	return model.ProviderCommerce
}

// Authenticate はコマースプロバイダーの顧客認証を行う。
func (p *CommerceProvider) Authenticate(ctx context.Context, email, password string) (*RemoteProfile, error) {
	customer, err := p.client.AuthenticateCustomer(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("commerce authentication failed: %w", err)
	}
	return customerToProfile(customer), nil
}

// Register はコマースプロバイダーに顧客を新規作成する。
func (p *CommerceProvider) Register(ctx context.Context, email, password, firstName, lastName string) (*RemoteProfile, error) {
	customer, err := p.client.CreateCustomer(ctx, email, password, firstName, lastName)
	if err != nil {
		return nil, fmt.Errorf("commerce registration failed: %w", err)
	}
	return customerToProfile(customer), nil
}

// UpdateRemoteProfile はコマースプロバイダー側の顧客プロファイルを更新する。
func (p *CommerceProvider) UpdateRemoteProfile(ctx context.Context, providerUserID string, changes ProfileChanges) error {
	update := commerce.ProfileUpdate{
		Email:     changes.Email,
		FirstName: changes.FirstName,
		LastName:  changes.LastName,
	}
	if _, err := p.client.UpdateCustomer(ctx, providerUserID, update); err != nil {
		return fmt.Errorf("commerce profile update failed: %w", err)
	}
	return nil
}

func customerToProfile(customer *commerce.Customer) *RemoteProfile {
	return &RemoteProfile{
		Provider:       model.ProviderCommerce,
		ProviderUserID: customer.ID,
		Email:          customer.Email,
		FirstName:      customer.FirstName,
		LastName:       customer.LastName,
		CustomerNumber: customer.CustomerNumber,
	}
}

// compile-time interface check
var _ Provider = (*CommerceProvider)(nil)
