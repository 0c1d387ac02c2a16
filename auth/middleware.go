package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// CookieName はブラウザ用のセッションCookie名です。
const CookieName = "tsusho_token"

type contextKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

// Actor は監査項目 (updated_by) に記録する名前です。
func Actor(ctx context.Context) string {
	if id, ok := FromContext(ctx); ok && id.LoginID != "" {
		return id.LoginID
	}
	return "system"
}

// TokenFromRequest は Authorization ヘッダー、Cookie、クエリ (token) の順にトークンを探します。
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return r.URL.Query().Get("token")
}

// RequireSession は有効なセッションが無いリクエストを 401 で打ち切ります。
// WebSocket の接続要求もアップグレード前にここで弾かれます。
func (s *Service) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := s.ParseToken(TokenFromRequest(r))
		if err != nil {
			s.logger.WithField("path", r.URL.Path).Warnf("request without valid session skipped: %v", err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"message": ErrNoSession.Error()})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

func (s *Service) RequireSessionFunc(next http.HandlerFunc) http.Handler {
	return s.RequireSession(next)
}
