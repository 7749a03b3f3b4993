// Package auth provides the reference implementation of the two external
// collaborators spec.md §1 treats as out-of-scope primitives:
// require_user(request) -> user_id and issue_token(user_id) -> (token,
// expiry). It is deliberately narrow: everything above this package only
// ever sees a user_id. Grounded on the teacher's service/auth_service.go
// (bcrypt password check, session-backed token) generalized from an opaque
// random session token to a signed JWT backed by the same AuthSession
// table for revocation, following Jay-Chou118-TodoLists/db/auth.go's
// golang-jwt/jwt/v5 claims shape.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/cassidy/journal-core/internal/apperr"
	"github.com/cassidy/journal-core/internal/domain"
	"github.com/cassidy/journal-core/internal/store"
)

var ErrInvalidCredentials = errors.New("auth: invalid username or password")

// Claims mirrors Jay-Chou118-TodoLists/db/auth.go's custom claims struct,
// trimmed to the one field the core actually needs downstream: user_id.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

type Service struct {
	store        *store.Store
	secret       []byte
	algorithm    string
	tokenLife    time.Duration
}

func New(s *store.Store, secret string, algorithm string, tokenLifetimeHours int) *Service {
	return &Service{
		store:     s,
		secret:    []byte(secret),
		algorithm: algorithm,
		tokenLife: time.Duration(tokenLifetimeHours) * time.Hour,
	}
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(hash), err
}

// Register creates a new user, grounded on the original's RegisterUser
// uniqueness check but delegated to the username UNIQUE constraint
// rather than a linear scan.
func (s *Service) Register(ctx context.Context, username string, email *string, password string) (domain.User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return domain.User{}, apperr.Internal(err)
	}
	user, err := s.store.CreateUser(ctx, s.store.DB(), username, email, hash)
	if err != nil {
		if store.IsUniqueViolation(err) {
			return domain.User{}, apperr.Conflict("username or email already in use")
		}
		return domain.User{}, apperr.Internal(err)
	}
	return user, nil
}

// IssuedToken is issue_token(user_id) -> (token, expiry) from spec.md §1.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

// Login verifies credentials and issues a token, persisting a
// corresponding AuthSession row keyed by the token's digest (never the
// token itself, per spec.md §3's "Tokens are never stored verbatim").
func (s *Service) Login(ctx context.Context, username, password, userAgent, ip string) (domain.User, IssuedToken, error) {
	user, err := s.store.GetUserByUsername(ctx, s.store.DB(), username)
	if err != nil {
		if err == store.ErrNotFound {
			return domain.User{}, IssuedToken{}, ErrInvalidCredentials
		}
		return domain.User{}, IssuedToken{}, apperr.Internal(err)
	}
	if !user.IsActive {
		return domain.User{}, IssuedToken{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return domain.User{}, IssuedToken{}, ErrInvalidCredentials
	}

	issued, err := s.issueToken(user.ID)
	if err != nil {
		return domain.User{}, IssuedToken{}, apperr.Internal(err)
	}

	var uaPtr, ipPtr *string
	if userAgent != "" {
		uaPtr = &userAgent
	}
	if ip != "" {
		ipPtr = &ip
	}
	if _, err := s.store.CreateAuthSession(ctx, s.store.DB(), user.ID, hashToken(issued.Token), issued.ExpiresAt, uaPtr, ipPtr); err != nil {
		return domain.User{}, IssuedToken{}, apperr.Internal(err)
	}
	return user, issued, nil
}

// Logout revokes the AuthSession backing token, per spec.md §3 ("invalidated
// on logout").
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.store.RevokeAuthSessionByTokenHash(ctx, s.store.DB(), hashToken(token))
}

// DeactivateAccount soft-deletes the caller per spec.md §3's User
// lifecycle ("soft-deactivated by clearing is_active; no hard delete
// required"), revoking every outstanding AuthSession in the same
// store call so a deactivated user's existing bearer tokens stop
// working immediately rather than lingering until they expire.
func (s *Service) DeactivateAccount(ctx context.Context, userID string) error {
	if err := s.store.DeactivateUser(ctx, s.store.DB(), userID); err != nil {
		return apperr.Internal(err)
	}
	return nil
}

// RequireUser is require_user(request) -> user_id from spec.md §1: it
// validates the bearer token's signature, confirms the backing
// AuthSession is still valid (spec.md §3: "now < expires_at and not
// revoked"), and returns the owning user_id.
func (s *Service) RequireUser(ctx context.Context, bearerToken string) (string, error) {
	if bearerToken == "" {
		return "", apperr.Unauthorized("missing bearer token")
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(bearerToken, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{s.algorithm}))
	if err != nil || !parsed.Valid || claims.UserID == "" {
		return "", apperr.Unauthorized("invalid or expired token")
	}

	sess, err := s.store.GetAuthSessionByTokenHash(ctx, s.store.DB(), hashToken(bearerToken))
	if err != nil {
		if err == store.ErrNotFound {
			return "", apperr.Unauthorized("session not found")
		}
		return "", apperr.Internal(err)
	}
	if !sess.Valid(time.Now().UTC()) {
		return "", apperr.Unauthorized("session expired or revoked")
	}
	return sess.UserID, nil
}

func (s *Service) issueToken(userID string) (IssuedToken, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(s.tokenLife)
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	method := jwt.GetSigningMethod(s.algorithm)
	if method == nil {
		method = jwt.SigningMethodHS256
	}
	tok := jwt.NewWithClaims(method, claims)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return IssuedToken{}, err
	}
	return IssuedToken{Token: signed, ExpiresAt: expiresAt}, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
