// Package auth authenticates dashboard users and enforces role
// permissions.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"liontech/database"
	"liontech/model"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired session")
	ErrInvalidRole        = errors.New("invalid role")
	ErrWeakPassword       = errors.New("password must have at least 8 characters")
	ErrInvalidUser        = errors.New("invalid user")
)

const (
	SessionCookie = "lt_session"
	issuer        = "liontech"
	minPassword   = 8
)

// Claims is the JWT payload of a dashboard session.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
	Name string `json:"name"`
}

type Service struct {
	db     *sqlx.DB
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewService(db *sqlx.DB, secret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Service{db: db, secret: []byte(secret), ttl: ttl, now: time.Now}
}

func HashPassword(password string) (string, error) {
	if len(password) < minPassword {
		return "", ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// dummyHash is compared against when the e-mail is unknown so that both
// failure paths cost one bcrypt comparison.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("liontech-dummy-password"), bcrypt.DefaultCost)

// Authenticate returns ErrInvalidCredentials for an unknown e-mail, an
// inactive user and a wrong password alike.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	u, err := database.GetUserByEmail(ctx, s.db, email)
	if err != nil {
		if database.IsNotFound(err) {
			bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil || !u.Active {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// IssueToken signs an HS256 session token for u.
func (s *Service) IssueToken(u model.User) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
		Role: u.Role,
		Name: u.Name,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, exp, nil
}

func (s *Service) ParseToken(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// CreateUser validates and stores a new dashboard user.
func CreateUser(ctx context.Context, db database.DBTX, email, name, role, password string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email %q", ErrInvalidUser, email)
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidUser)
	}
	if !ValidRole(role) {
		return nil, ErrInvalidRole
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	u := &model.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		Role:         role,
		PasswordHash: hash,
		Active:       true,
	}
	if err := database.CreateUser(ctx, db, u); err != nil {
		return nil, err
	}
	return u, nil
}

// NewAccessToken returns 32 random hex characters. Orders and tickets use
// it as the bearer secret of their public links.
func NewAccessToken() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return hex.EncodeToString(b)
}

// TokenEqual compares access tokens in constant time.
func TokenEqual(a, b string) bool {
	return a != "" && subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
