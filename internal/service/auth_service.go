package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/queryproctor/backend/internal/config"
	"github.com/queryproctor/backend/internal/model"
)

// Common auth errors.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionInvalidated = errors.New("session invalidated")
	ErrInvitationInvalid  = errors.New("invalid invitation token")
	ErrInvitationExpired  = errors.New("invitation link has expired")
)

// TokenType distinguishes candidate, admin and invitation tokens.
type TokenType string

const (
	TokenTypeCandidate  TokenType = "candidate"
	TokenTypeAdmin      TokenType = "admin"
	TokenTypeInvitation TokenType = "invitation"
)

// invitationDefaultDays is the validity of an invitation to an assessment
// without a scheduled date.
const invitationDefaultDays = 7

// Claims extends JWT standard claims with app-specific fields.
type Claims struct {
	jwt.RegisteredClaims
	TokenType TokenType `json:"token_type"`
	UserID    uuid.UUID `json:"user_id"`
}

// InvitationClaims is the payload of an emailed invitation link.
type InvitationClaims struct {
	jwt.RegisteredClaims
	TokenType           TokenType `json:"token_type"`
	InvitationID        uuid.UUID `json:"invitationId"`
	AssessmentID        uuid.UUID `json:"assessmentId"`
	Email               string    `json:"email"`
	FullName            string    `json:"fullName"`
	MatriculationNumber string    `json:"matriculationNumber"`
}

// AuthService handles authentication, JWT, and session management.
type AuthService struct {
	cfg *config.Config
	rdb *redis.Client
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config, rdb *redis.Client) *AuthService {
	return &AuthService{cfg: cfg, rdb: rdb}
}

// HashPassword hashes a password with the configured bcrypt cost.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	return string(hash), err
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func (s *AuthService) CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// GenerateCandidateToken creates a JWT for a candidate and registers it as the
// candidate's only session. A previous session, if any, stops validating.
func (s *AuthService) GenerateCandidateToken(ctx context.Context, candidateID uuid.UUID) (string, error) {
	jti := uuid.New().String()
	signed, err := s.sign(TokenTypeCandidate, candidateID, jti, time.Now())
	if err != nil {
		return "", err
	}

	sessionKey := config.CacheKey.CandidateSessionKey(candidateID)
	if err := s.rdb.Set(ctx, sessionKey, jti, s.cfg.JWTExpiry).Err(); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return signed, nil
}

// GenerateAdminToken creates a JWT for an admin.
func (s *AuthService) GenerateAdminToken(adminID uuid.UUID) (string, error) {
	return s.sign(TokenTypeAdmin, adminID, uuid.New().String(), time.Now())
}

func (s *AuthService) sign(typ TokenType, userID uuid.UUID, jti string, now time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.JWTExpiry)),
		},
		TokenType: typ,
		UserID:    userID,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *AuthService) keyFunc(t *jwt.Token) (interface{}, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
	}
	return []byte(s.cfg.JWTSecret), nil
}

// ValidateToken parses and validates a session JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, s.keyFunc)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	if claims.TokenType != TokenTypeAdmin && claims.TokenType != TokenTypeCandidate {
		return nil, errors.New("not a session token")
	}
	return claims, nil
}

// ValidateCandidateSession checks that the token's JTI matches the active session in Redis.
func (s *AuthService) ValidateCandidateSession(ctx context.Context, candidateID uuid.UUID, jti string) error {
	stored, err := s.rdb.Get(ctx, config.CacheKey.CandidateSessionKey(candidateID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrSessionInvalidated
		}
		return fmt.Errorf("check session: %w", err)
	}
	if stored != jti {
		return ErrSessionInvalidated
	}
	return nil
}

// RevokeCandidateSession removes a candidate's session from Redis.
func (s *AuthService) RevokeCandidateSession(ctx context.Context, candidateID uuid.UUID) error {
	return s.rdb.Del(ctx, config.CacheKey.CandidateSessionKey(candidateID)).Err()
}

// InvitationExpiry returns the last millisecond of the scheduled day in loc,
// or of the day a week after now when the assessment has no date.
func InvitationExpiry(scheduled *time.Time, now time.Time, loc *time.Location) time.Time {
	day := now.AddDate(0, 0, invitationDefaultDays)
	if scheduled != nil {
		day = *scheduled
	}
	y, m, d := day.In(loc).Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), loc)
}

// SignInvitation creates the token embedded in an invitation link.
func (s *AuthService) SignInvitation(inv *model.Invitation, expiresAt, now time.Time) (string, error) {
	claims := InvitationClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   inv.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		TokenType:           TokenTypeInvitation,
		InvitationID:        inv.ID,
		AssessmentID:        inv.AssessmentID,
		Email:               inv.Email,
		FullName:            inv.FullName,
		MatriculationNumber: inv.MatriculationNumber,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign invitation: %w", err)
	}
	return signed, nil
}

// ParseInvitation verifies an invitation token.
func (s *AuthService) ParseInvitation(tokenStr string) (*InvitationClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &InvitationClaims{}, s.keyFunc)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrInvitationExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvitationInvalid, err)
	}

	claims, ok := token.Claims.(*InvitationClaims)
	if !ok || !token.Valid || claims.TokenType != TokenTypeInvitation {
		return nil, ErrInvitationInvalid
	}
	return claims, nil
}

// InvitationLink builds the front end URL for an invitation token.
func (s *AuthService) InvitationLink(token string) string {
	return s.cfg.AppBaseURL + "/invitation/" + token
}
