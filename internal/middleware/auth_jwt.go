package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	RoleSeller = "seller"

	TokenIssuer   = "bogofit-shop"
	TokenAudience = "bogofit-seller-console"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// TokenClaims is the payload of a seller console token.
type TokenClaims struct {
	Sub      string `json:"sub"`
	Role     string `json:"role"`
	Brand    string `json:"brand,omitempty"`
	Exp      int64  `json:"exp"`
	IssuedAt int64  `json:"iat,omitempty"`
	Issuer   string `json:"iss"`
	Audience string `json:"aud"`
}

type sellerKey string

const sellerIDKey sellerKey = "seller_id"

// NewSellerClaims returns claims for sub valid for ttl from now.
func NewSellerClaims(sub, brand string, now time.Time, ttl time.Duration) TokenClaims {
	return TokenClaims{
		Sub:      sub,
		Role:     RoleSeller,
		Brand:    brand,
		IssuedAt: now.Unix(),
		Exp:      now.Add(ttl).Unix(),
		Issuer:   TokenIssuer,
		Audience: TokenAudience,
	}
}

func SignJWT(secret string, claims TokenClaims) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is required")
	}
	header := map[string]string{"alg": "HS256", "typ": "JWT"}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return "", err
	}
	payloadJSON, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	headerEnc := base64.RawURLEncoding.EncodeToString(headerJSON)
	payloadEnc := base64.RawURLEncoding.EncodeToString(payloadJSON)
	data := headerEnc + "." + payloadEnc
	sig := hmacSign(secret, data)
	return data + "." + sig, nil
}

func hmacSign(secret, data string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(data))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyJWT checks the signature, algorithm and expiry of token.
func VerifyJWT(secret, token string, now time.Time) (*TokenClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, ErrInvalidToken
	}
	expected := hmacSign(secret, parts[0]+"."+parts[1])
	if !hmac.Equal([]byte(expected), []byte(parts[2])) {
		return nil, fmt.Errorf("%w: signature mismatch", ErrInvalidToken)
	}
	headerJSON, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrInvalidToken, err)
	}
	var header struct {
		Alg string `json:"alg"`
	}
	if err := json.Unmarshal(headerJSON, &header); err != nil || header.Alg != "HS256" {
		return nil, fmt.Errorf("%w: unsupported algorithm", ErrInvalidToken)
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrInvalidToken, err)
	}
	var claims TokenClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("%w: payload: %v", ErrInvalidToken, err)
	}
	if claims.Exp != 0 && now.Unix() > claims.Exp {
		return nil, ErrTokenExpired
	}
	return &claims, nil
}

// SellerAuth admits requests carrying a valid seller bearer token.
func SellerAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w, "missing authorization")
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				unauthorized(w, "invalid authorization")
				return
			}
			claims, err := VerifyJWT(secret, strings.TrimSpace(parts[1]), time.Now())
			if err != nil {
				unauthorized(w, err.Error())
				return
			}
			if claims.Role != RoleSeller || claims.Audience != TokenAudience || claims.Sub == "" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]string{"code": "forbidden", "message": "seller access required"},
				})
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithSellerID(r.Context(), claims.Sub)))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="seller"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": "unauthorized", "message": msg},
	})
}

func SellerIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sellerIDKey).(string); ok {
		return v
	}
	return ""
}

func ContextWithSellerID(ctx context.Context, sellerID string) context.Context {
	if strings.TrimSpace(sellerID) == "" {
		return ctx
	}
	return context.WithValue(ctx, sellerIDKey, sellerID)
}
