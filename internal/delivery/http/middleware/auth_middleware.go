package middleware

import (
	"context"
	"net/http"
	"strings"

	"clinic-booking/internal/domain/entity"
	"clinic-booking/internal/service"
	"clinic-booking/pkg/jwt"
	"clinic-booking/pkg/response"

	"github.com/sirupsen/logrus"
)

type contextKey string

const (
	CallerKey  contextKey = "caller"
	TokenIDKey contextKey = "token_id"

	requestInfoKey contextKey = "request_info"
)

type AuthMiddleware struct {
	jwtService *jwt.JWTService
	tokenStore service.TokenStore
	log        *logrus.Logger
}

func NewAuthMiddleware(jwtService *jwt.JWTService, tokenStore service.TokenStore, log *logrus.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
		tokenStore: tokenStore,
		log:        log,
	}
}

// Authenticate rejects requests without a valid, non-revoked access token.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			response.Unauthorized(w, "Authorization header is required")
			return
		}

		tokenString, ok := bearerToken(authHeader)
		if !ok {
			response.Unauthorized(w, "Invalid authorization header format")
			return
		}

		caller, tokenID, err := m.identify(r.Context(), tokenString)
		if err != nil {
			if err == errTokenStoreUnavailable {
				response.InternalServerError(w, "Failed to validate token")
				return
			}
			response.Unauthorized(w, err.Error())
			return
		}

		next.ServeHTTP(w, r.WithContext(withCaller(r.Context(), caller, tokenID)))
	})
}

// OptionalAuthenticate attaches the caller when a valid token is present and
// otherwise lets the request through anonymously. It never rejects.
func (m *AuthMiddleware) OptionalAuthenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		caller, tokenID, err := m.identify(r.Context(), tokenString)
		if err != nil {
			m.log.Debugf("Ignoring unusable bearer token: %v", err)
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(withCaller(r.Context(), caller, tokenID)))
	})
}

type authError string

func (e authError) Error() string { return string(e) }

const (
	errInvalidToken          = authError("Invalid or expired token")
	errInvalidTokenType      = authError("Invalid token type")
	errTokenRevoked          = authError("Token has been revoked")
	errTokenStoreUnavailable = authError("Failed to validate token")
)

func (m *AuthMiddleware) identify(ctx context.Context, tokenString string) (*entity.CallerIdentity, string, error) {
	claims, err := m.jwtService.ValidateToken(tokenString)
	if err != nil {
		return nil, "", errInvalidToken
	}
	if claims.TokenType != jwt.AccessToken {
		return nil, "", errInvalidTokenType
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, "", errInvalidToken
	}
	role := entity.Role(claims.Role)
	if !role.Valid() {
		return nil, "", errInvalidToken
	}

	exists, err := m.tokenStore.Exists(ctx, service.AccessTokenKind, userID, claims.ID)
	if err != nil {
		return nil, "", errTokenStoreUnavailable
	}
	if !exists {
		return nil, "", errTokenRevoked
	}

	return &entity.CallerIdentity{
		UserID: userID,
		Email:  claims.Email,
		Role:   role,
	}, claims.ID, nil
}

func bearerToken(header string) (string, bool) {
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func withCaller(ctx context.Context, caller *entity.CallerIdentity, tokenID string) context.Context {
	if info, ok := ctx.Value(requestInfoKey).(*requestInfo); ok {
		info.caller = caller
	}
	ctx = context.WithValue(ctx, CallerKey, caller)
	return context.WithValue(ctx, TokenIDKey, tokenID)
}

// GetCallerFromContext returns nil for anonymous requests.
func GetCallerFromContext(ctx context.Context) *entity.CallerIdentity {
	caller, _ := ctx.Value(CallerKey).(*entity.CallerIdentity)
	return caller
}

// GetTokenIDFromContext extracts token ID from context
func GetTokenIDFromContext(ctx context.Context) (string, bool) {
	tokenID, ok := ctx.Value(TokenIDKey).(string)
	return tokenID, ok
}
