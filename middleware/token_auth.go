package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"cdr-backend/auth"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog"
)

// TokenAuthMiddleware 驗證 Bearer token，失敗時回傳 401
type TokenAuthMiddleware struct {
	logger    zerolog.Logger
	validator auth.TokenValidator
}

func NewTokenAuthMiddleware(logger zerolog.Logger, validator auth.TokenValidator) *TokenAuthMiddleware {
	return &TokenAuthMiddleware{
		logger:    logger.With().Str("module", "token_auth").Logger(),
		validator: validator,
	}
}

func (m *TokenAuthMiddleware) Auth() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		// 從 Authorization header 中獲取 token
		authHeader := ctx.Header("Authorization")
		if authHeader == "" {
			writeUnauthorized(ctx, "缺少授權標頭", "missing authorization header")
			return
		}

		// 檢查 Bearer 前綴
		tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || tokenString == "" {
			writeUnauthorized(ctx, "無效的授權格式", "invalid authorization format")
			return
		}

		principal, err := m.validator.Validate(ctx.Context(), tokenString)
		if err != nil {
			m.logger.Warn().Err(err).Str("path", ctx.URL().Path).Msg("token 驗證失敗 (Token rejected)")
			writeUnauthorized(ctx, "無效的token", err.Error())
			return
		}

		// 將呼叫者資訊添加到 context 中，讓後續的 handler 可以使用
		next(huma.WithContext(ctx, auth.WithPrincipal(ctx.Context(), principal)))
	}
}

func writeUnauthorized(ctx huma.Context, message, detail string) {
	body, _ := json.Marshal(map[string]interface{}{
		"code":    http.StatusUnauthorized,
		"message": message,
		"detail":  detail,
	})
	ctx.SetHeader("Content-Type", "application/json")
	ctx.SetStatus(http.StatusUnauthorized)
	ctx.BodyWriter().Write(body)
}
