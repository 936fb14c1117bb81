package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"stocknest/internal/domain/collab"
	"stocknest/internal/domain/inventory/port"
	applog "stocknest/internal/platform/log"
	"stocknest/internal/session"
)

// JWTConfig JWT 鉴权配置。
type JWTConfig struct {
	Secret string // HMAC 签名密钥
	Issuer string // 可选签发者校验
}

// authMiddleware JWT 鉴权 + 库存作用域解析中间件。
//
// 先验证 Authorization: Bearer <token>，sub 即认证用户；
// 再解析 X-Inventory-Owner：缺省或等于本人 => 本人作用域；
// 否则必须存在 owner->sub 的 accepted 授权，角色来自授权记录，
// viewer 角色的写方法直接拒绝。下游 handler 只看 Scope.OwnerID，
// 不必感知共享逻辑。
func authMiddleware(cfg *JWTConfig, repo port.Repository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeErrorCode(w, http.StatusUnauthorized, "unauthorized", "Missing Authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeErrorCode(w, http.StatusUnauthorized, "unauthorized", "Invalid Authorization header format")
				return
			}
			tokenStr := parts[1]

			parserOpts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
			if cfg.Issuer != "" {
				parserOpts = append(parserOpts, jwt.WithIssuer(cfg.Issuer))
			}

			token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
				}
				return []byte(cfg.Secret), nil
			}, parserOpts...)

			if err != nil || !token.Valid {
				applog.Warn("[Auth] Invalid JWT token", "error", err)
				writeErrorCode(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				writeErrorCode(w, http.StatusUnauthorized, "unauthorized", "Invalid token claims")
				return
			}

			subject, _ := claims["sub"].(string)
			if subject == "" {
				writeErrorCode(w, http.StatusUnauthorized, "unauthorized", "Missing sub in token")
				return
			}

			if err := validateSubject(r.Context(), repo, subject); err != nil {
				if isScopeInvalid(err) {
					writeErrorCode(w, http.StatusForbidden, "forbidden_scope", err.Error())
					return
				}
				applog.Error("[Auth] Subject validation failed", "error", err)
				writeErrorCode(w, http.StatusInternalServerError, "scope_validation_failed", "Failed to validate auth scope")
				return
			}

			scope, err := resolveOwnerScope(r, repo, subject)
			if err != nil {
				if isScopeInvalid(err) {
					writeErrorCode(w, http.StatusForbidden, "forbidden_scope", err.Error())
					return
				}
				applog.Error("[Auth] Owner scope resolution failed", "error", err)
				writeErrorCode(w, http.StatusInternalServerError, "scope_validation_failed", "Failed to resolve inventory scope")
				return
			}

			if !isRead(r.Method) && !scope.CanWrite() {
				writeErrorCode(w, http.StatusForbidden, "forbidden_scope", "Viewer grants cannot modify the shared inventory")
				return
			}

			ctx := WithScope(r.Context(), scope)

			applog.Debug("[Auth] Scope injected",
				"user_id", scope.UserID,
				"owner_id", scope.OwnerID,
				"is_own", scope.IsOwn,
			)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func validateSubject(ctx context.Context, repo port.Repository, subject string) error {
	if repo == nil {
		return fmt.Errorf("scope repository is not configured")
	}

	user, err := repo.GetUser(ctx, subject)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("invalid sub in token")
	}
	if user.Status != "" && !strings.EqualFold(user.Status, port.UserStatusActive) {
		return fmt.Errorf("user is not active")
	}
	return nil
}

// resolveOwnerScope 按 X-Inventory-Owner 解析生效作用域。
func resolveOwnerScope(r *http.Request, repo port.Repository, subject string) (*Scope, error) {
	ownerID := strings.TrimSpace(r.Header.Get(session.ScopeHeader))
	if ownerID == "" || ownerID == subject {
		return &Scope{UserID: subject, OwnerID: subject, IsOwn: true}, nil
	}

	grant, err := repo.GetAcceptedGrant(r.Context(), ownerID, subject)
	if err != nil {
		return nil, err
	}
	if grant == nil {
		return nil, fmt.Errorf("no accepted grant for requested inventory owner")
	}

	return &Scope{
		UserID:  subject,
		OwnerID: ownerID,
		IsOwn:   false,
		Role:    collab.Role(grant.Role),
	}, nil
}

func isScopeInvalid(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "invalid sub") ||
		strings.Contains(msg, "not active") ||
		strings.Contains(msg, "no accepted grant")
}

func isRead(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
