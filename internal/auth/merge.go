package auth

import (
	"log/slog"
	"strings"

	"github.com/hitoshi/shopfront/internal/model"
)

// mergeProfile はリモートプロファイルをローカルユーザーへマージする。
// 埋まっていないフィールドのみ補完し、空値で既存値を上書きすることはない。
// 変更があった場合はtrueを返す。
// メールアドレスの不一致はプロバイダー間のレコードずれとして警告ログを残すが、
// ローカルのメールアドレスは維持する。
func mergeProfile(user *model.User, profile *RemoteProfile) bool {
	changed := false

	if user.Email == "" && profile.Email != "" {
		user.Email = profile.Email
		changed = true
	} else if profile.Email != "" && !strings.EqualFold(user.Email, profile.Email) {
		slog.Warn("メールアドレスがプロバイダー間で一致しません",
			slog.String("user_id", user.ID),
			slog.String("provider", string(profile.Provider)),
		)
	}

	if user.FirstName == "" && profile.FirstName != "" {
		user.FirstName = profile.FirstName
		changed = true
	}
	if user.LastName == "" && profile.LastName != "" {
		user.LastName = profile.LastName
		changed = true
	}
	if user.CustomerNumber == 0 && profile.CustomerNumber != 0 {
		user.CustomerNumber = profile.CustomerNumber
		changed = true
	}
	if user.Username == "" && profile.Email != "" {
		user.Username = usernameFromEmail(profile.Email)
		changed = true
	}

	return changed
}

// usernameFromEmail はメールアドレスのローカル部をusernameとして採用する。
func usernameFromEmail(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}
