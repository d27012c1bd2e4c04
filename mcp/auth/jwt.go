// Package auth validates bearer tokens presented to the HTTP transport. It
// deliberately stays JWT-only: no browser-based OAuth flow, no per-provider
// issuer defaults, no opaque-token userinfo fallback.
package auth

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/patrickmn/go-cache"
)

// Config controls how bearer tokens are validated.
type Config struct {
	IssuerURL string
	JWKSURL   string
	Audience  string

	SkipIssuerCheck   bool
	SkipAudienceCheck bool

	// ClientSecret enables HMAC-signed tokens (local/dev use); production
	// issuers sign with RSA and are validated against JWKSURL instead.
	ClientSecret string
}

// Validator checks bearer tokens against Config and caches both validated
// claims and fetched JWKS keys so a busy server doesn't refetch per request.
type Validator struct {
	config Config

	httpClient *http.Client
	tokenCache *cache.Cache
	keyCache   *cache.Cache

	debugLog func(format string, args ...any)
}

// NewValidator builds a Validator. debug enables verbose stderr tracing of
// the validation path, mirroring the server's own debug logging.
func NewValidator(cfg Config, debug bool) *Validator {
	v := &Validator{
		config:     cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		tokenCache: cache.New(5*time.Minute, 10*time.Minute),
		keyCache:   cache.New(1*time.Hour, 2*time.Hour),
	}
	if debug {
		v.debugLog = func(format string, args ...any) { fmt.Fprintf(os.Stderr, "[auth] "+format+"\n", args...) }
	} else {
		v.debugLog = func(format string, args ...any) {}
	}
	return v
}

// Validate checks a bearer token string and returns its claims. It is safe
// to use directly as an mcp/transport.HTTP.Validator adapter via Allow.
func (v *Validator) Validate(tokenString string) (jwt.MapClaims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("missing bearer token")
	}

	if cached, found := v.tokenCache.Get(tokenString); found {
		return cached.(jwt.MapClaims), nil
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		switch token.Method.(type) {
		case *jwt.SigningMethodRSA:
			return v.publicKey(token)
		case *jwt.SigningMethodHMAC:
			if v.config.ClientSecret == "" {
				return nil, fmt.Errorf("HMAC token requires a configured client secret")
			}
			return []byte(v.config.ClientSecret), nil
		default:
			return nil, fmt.Errorf("unsupported signing method: %v", token.Header["alg"])
		}
	})
	if err != nil {
		return nil, fmt.Errorf("token parsing failed: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is invalid")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("unexpected claims type")
	}

	if err := v.checkStandardClaims(claims); err != nil {
		return nil, err
	}

	v.tokenCache.Set(tokenString, claims, cache.DefaultExpiration)
	v.debugLog("validated token for subject %v", claims["sub"])
	return claims, nil
}

// Allow adapts Validate to the bool-returning shape the HTTP transport
// expects (transport.HTTP.Validator).
func (v *Validator) Allow(tokenString string) (bool, error) {
	_, err := v.Validate(tokenString)
	if err != nil {
		return false, err
	}
	return true, nil
}

func (v *Validator) checkStandardClaims(claims jwt.MapClaims) error {
	if !v.config.SkipIssuerCheck && v.config.IssuerURL != "" {
		iss, _ := claims["iss"].(string)
		if iss != v.config.IssuerURL {
			return fmt.Errorf("invalid issuer: got %q want %q", iss, v.config.IssuerURL)
		}
	}

	if !v.config.SkipAudienceCheck && v.config.Audience != "" {
		if !audienceMatches(claims["aud"], v.config.Audience) {
			return fmt.Errorf("invalid audience")
		}
	}
	return nil
}

func audienceMatches(aud any, want string) bool {
	switch val := aud.(type) {
	case string:
		return val == want
	case []any:
		for _, entry := range val {
			if s, ok := entry.(string); ok && s == want {
				return true
			}
		}
	}
	return false
}

// ExtractScopes reads the first populated scope-like claim, checking the
// names issuers commonly use.
func ExtractScopes(claims jwt.MapClaims) []string {
	for _, name := range []string{"scope", "scopes", "permissions", "scp"} {
		val, ok := claims[name]
		if !ok {
			continue
		}
		switch s := val.(type) {
		case string:
			return strings.Fields(s)
		case []any:
			out := make([]string, 0, len(s))
			for _, entry := range s {
				if str, ok := entry.(string); ok {
					out = append(out, str)
				}
			}
			return out
		}
	}
	return nil
}

type jwk struct {
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

type jwkSet struct {
	Keys []jwk `json:"keys"`
}

func (v *Validator) publicKey(token *jwt.Token) (any, error) {
	kid, ok := token.Header["kid"].(string)
	if !ok {
		return nil, fmt.Errorf("token missing kid header")
	}

	cacheKey := "jwk:" + kid
	if cached, found := v.keyCache.Get(cacheKey); found {
		return cached, nil
	}

	jwksURL := v.config.JWKSURL
	if jwksURL == "" && v.config.IssuerURL != "" {
		jwksURL = strings.TrimSuffix(v.config.IssuerURL, "/") + "/.well-known/jwks.json"
	}
	if jwksURL == "" {
		return nil, fmt.Errorf("no JWKS URL configured")
	}

	resp, err := v.httpClient.Get(jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS fetch failed with status %d", resp.StatusCode)
	}

	var set jwkSet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, fmt.Errorf("failed to parse JWKS: %w", err)
	}

	var match *jwk
	for i := range set.Keys {
		if set.Keys[i].Kid == kid {
			match = &set.Keys[i]
			break
		}
	}
	if match == nil {
		return nil, fmt.Errorf("key not found in JWKS: %s", kid)
	}

	key, err := rsaPublicKey(match)
	if err != nil {
		return nil, err
	}
	v.keyCache.Set(cacheKey, key, cache.DefaultExpiration)
	return key, nil
}

func rsaPublicKey(key *jwk) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(key.N)
	if err != nil {
		return nil, fmt.Errorf("failed to decode modulus: %w", err)
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(key.E)
	if err != nil {
		return nil, fmt.Errorf("failed to decode exponent: %w", err)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(nBytes),
		E: int(new(big.Int).SetBytes(eBytes).Int64()),
	}, nil
}
