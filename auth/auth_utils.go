package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// JWT 驗證相關的通用錯誤
var (
	ErrInvalidToken            = errors.New("invalid token")
	ErrUnexpectedSigningMethod = errors.New("unexpected signing method")
	ErrIssuerNotAllowed        = errors.New("token issuer not allowed")
	ErrPrincipalNotFound       = errors.New("principal not found in context")
)

type principalKey struct{}

// Principal 已驗證 token 的呼叫者
type Principal struct {
	Subject string
	Issuer  string
	Claims  map[string]interface{}
}

// TokenValidator checks a bearer token and returns its caller.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*Principal, error)
}

// IssuerValidator accepts HMAC-signed JWTs whose iss claim is in the allowed list. An empty list
// accepts any issuer.
type IssuerValidator struct {
	secretKey      []byte
	allowedIssuers []string
}

func NewIssuerValidator(secretKey string, allowedIssuers []string) *IssuerValidator {
	return &IssuerValidator{
		secretKey:      []byte(secretKey),
		allowedIssuers: allowedIssuers,
	}
}

func (v *IssuerValidator) Validate(ctx context.Context, tokenString string) (*Principal, error) {
	claims, err := ValidateJWTToken(tokenString, v.secretKey)
	if err != nil {
		return nil, err
	}

	issuer, _ := claims["iss"].(string)
	if len(v.allowedIssuers) > 0 && !slices.Contains(v.allowedIssuers, issuer) {
		return nil, fmt.Errorf("%w: %q", ErrIssuerNotAllowed, issuer)
	}

	subject, _ := claims["sub"].(string)
	return &Principal{
		Subject: subject,
		Issuer:  issuer,
		Claims:  claims,
	}, nil
}

// ValidateJWTToken 通用的 JWT token 驗證函數
func ValidateJWTToken(tokenString string, secretKey []byte) (map[string]interface{}, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrUnexpectedSigningMethod
		}
		return secretKey, nil
	})
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	// 將 claims 轉換為 map[string]interface{} 方便使用
	result := make(map[string]interface{}, len(claims))
	for key, value := range claims {
		result[key] = value
	}
	return result, nil
}

// WithPrincipal 將呼叫者放入 context
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func GetPrincipalFromContext(ctx context.Context) (*Principal, error) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	if !ok || p == nil {
		return nil, ErrPrincipalNotFound
	}
	return p, nil
}
