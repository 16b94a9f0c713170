package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/zhouzirui/complymate/pkg/utils"
)

type tokenKey struct{}

// BearerAuth 校验 Authorization 头。allowed 为空时接受任意非空 token，便于本地开发。
func BearerAuth(allowed []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				utils.RespondError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			if len(allowed) > 0 && !tokenAllowed(token, allowed) {
				utils.RespondError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), tokenKey{}, token)))
		})
	}
}

// TokenFromContext returns the bearer token accepted by BearerAuth.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func tokenAllowed(token string, allowed []string) bool {
	for _, candidate := range allowed {
		if subtle.ConstantTimeCompare([]byte(token), []byte(candidate)) == 1 {
			return true
		}
	}
	return false
}
