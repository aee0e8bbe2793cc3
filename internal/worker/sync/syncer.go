// Package sync はプロファイル同期リトライキューのバックグラウンド処理を提供する。
// ログインやプロフィール更新時に失敗したプロバイダー側への書き込みを、
// 指数バックオフ付きで再試行する。
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/shopfront/internal/auth"
	"github.com/hitoshi/shopfront/internal/metrics"
	"github.com/hitoshi/shopfront/internal/model"
	"github.com/hitoshi/shopfront/internal/repository"
)

// defaultBatchSize は1サイクルで処理するタスクの上限。
const defaultBatchSize = 50

// defaultMaxAttempts は放棄までの最大試行回数。
const defaultMaxAttempts = 10

// Syncer はプロファイル同期タスクの実行を担う。
// 同期キューから期限到来タスクを取得し、対象プロバイダーへ
// 現在のローカルプロファイルを書き込む。
type Syncer struct {
	syncRepo    repository.ProfileSyncRepository
	userRepo    repository.UserRepository
	identRepo   repository.IdentityRepository
	providers   map[model.Provider]auth.Provider
	metrics     metrics.MetricsCollector
	logger      *slog.Logger
	maxAttempts int
	batchSize   int
}

// NewSyncer はSyncerの新しいインスタンスを生成する。
// maxAttemptsが0以下の場合はデフォルト値10を使用する。
func NewSyncer(
	syncRepo repository.ProfileSyncRepository,
	userRepo repository.UserRepository,
	identRepo repository.IdentityRepository,
	providers map[model.Provider]auth.Provider,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	maxAttempts int,
) *Syncer {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &Syncer{
		syncRepo:    syncRepo,
		userRepo:    userRepo,
		identRepo:   identRepo,
		providers:   providers,
		metrics:     collector,
		logger:      logger,
		maxAttempts: maxAttempts,
		batchSize:   defaultBatchSize,
	}
}

// Start は指定間隔のティッカーでシンカーを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Syncer) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("プロファイル同期ワーカーを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_attempts", s.maxAttempts),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("同期サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("プロファイル同期ワーカーを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("同期サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は期限到来タスクを1バッチ取得し、順次処理する。
// 1タスクの失敗は他のタスクの処理を止めない。
func (s *Syncer) RunOnce(ctx context.Context) error {
	start := time.Now()

	tasks, err := s.syncRepo.ListDue(ctx, s.batchSize)
	if err != nil {
		return fmt.Errorf("failed to list due sync tasks: %w", err)
	}

	if len(tasks) == 0 {
		return nil
	}

	s.logger.Info("同期サイクルを開始します",
		slog.Int("task_count", len(tasks)),
	)

	for _, task := range tasks {
		if err := s.processTask(ctx, task); err != nil {
			s.logger.Error("同期タスクの処理に失敗しました",
				slog.String("sync_id", task.ID),
				slog.String("user_id", task.UserID),
				slog.String("provider", string(task.Provider)),
				slog.String("error", err.Error()),
			)
		}
	}

	duration := time.Since(start)
	s.logger.Info("同期サイクルが完了しました",
		slog.Int("task_count", len(tasks)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// processTask は1件の同期タスクを処理する。
// ユーザー削除済み・identity未連携・恒久エラーは放棄し、
// 一時エラーはバックオフ付きで再スケジュールする。
func (s *Syncer) processTask(ctx context.Context, task *model.ProfileSync) error {
	user, err := s.userRepo.FindByID(ctx, task.UserID)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return s.abandon(ctx, task, "user no longer exists")
	}

	provider, ok := s.providers[task.Provider]
	if !ok {
		return s.abandon(ctx, task, fmt.Sprintf("no client for provider %q", task.Provider))
	}

	identity, err := s.findIdentity(ctx, task)
	if err != nil {
		return err
	}
	if identity == nil {
		return s.abandon(ctx, task, "identity not linked")
	}

	// パスワードは永続化していないため同期対象はプロファイル属性のみ
	changes := auth.ProfileChanges{
		Email:     &user.Email,
		FirstName: &user.FirstName,
		LastName:  &user.LastName,
	}

	syncErr := provider.UpdateRemoteProfile(ctx, identity.ProviderUserID, changes)
	if syncErr == nil {
		if err := s.syncRepo.MarkDone(ctx, task.ID); err != nil {
			return fmt.Errorf("failed to mark sync done: %w", err)
		}
		s.record("success")
		s.logger.Info("プロファイル同期が完了しました",
			slog.String("sync_id", task.ID),
			slog.String("user_id", task.UserID),
			slog.String("provider", string(task.Provider)),
		)
		return nil
	}

	switch ClassifyError(syncErr) {
	case SyncResultPermanent:
		return s.abandon(ctx, task, syncErr.Error())
	default:
		return s.reschedule(ctx, task, syncErr)
	}
}

// findIdentity はタスク対象プロバイダーのidentityを検索する。
func (s *Syncer) findIdentity(ctx context.Context, task *model.ProfileSync) (*model.Identity, error) {
	identities, err := s.identRepo.ListByUserID(ctx, task.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list identities: %w", err)
	}
	for _, ident := range identities {
		if ident.Provider == task.Provider {
			return ident, nil
		}
	}
	return nil, nil
}

// abandon はタスクを放棄状態にする。
func (s *Syncer) abandon(ctx context.Context, task *model.ProfileSync, reason string) error {
	if err := s.syncRepo.MarkAbandoned(ctx, task.ID, reason); err != nil {
		return fmt.Errorf("failed to mark sync abandoned: %w", err)
	}
	s.record("abandoned")
	s.logger.Warn("プロファイル同期を放棄しました",
		slog.String("sync_id", task.ID),
		slog.String("user_id", task.UserID),
		slog.String("provider", string(task.Provider)),
		slog.String("reason", reason),
	)
	return nil
}

// reschedule は一時エラーのタスクをバックオフ付きで再スケジュールする。
// 試行回数が上限に達した場合は放棄する。
func (s *Syncer) reschedule(ctx context.Context, task *model.ProfileSync, syncErr error) error {
	attempts := task.Attempts + 1
	if attempts >= s.maxAttempts {
		return s.abandon(ctx, task, fmt.Sprintf("retry limit reached after %d attempts: %s", attempts, syncErr.Error()))
	}

	nextAttemptAt := time.Now().Add(CalculateBackoff(task.Attempts))
	if err := s.syncRepo.Reschedule(ctx, task.ID, attempts, syncErr.Error(), nextAttemptAt); err != nil {
		return fmt.Errorf("failed to reschedule sync: %w", err)
	}
	s.record("retried")
	s.logger.Warn("プロファイル同期を再スケジュールしました",
		slog.String("sync_id", task.ID),
		slog.String("user_id", task.UserID),
		slog.String("provider", string(task.Provider)),
		slog.Int("attempts", attempts),
		slog.Time("next_attempt_at", nextAttemptAt),
		slog.String("error", syncErr.Error()),
	)
	return nil
}

func (s *Syncer) record(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordProfileSync(outcome)
	}
}
