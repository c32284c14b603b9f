package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/lankasat/lankasat-live/internal/adapter/supabase"
	"github.com/lankasat/lankasat-live/internal/observability"
)

// User is the public view of an account. Guests have no email and no
// database record.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email,omitempty"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
}

// Session is the response to a successful register, login, or guest login.
type Session struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	SessionID   string `json:"session_id,omitempty"`
	User        User   `json:"user"`
}

// userRow is the users table shape, including the stored password hash.
type userRow struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"password_hash,omitempty"`
	Role         string `json:"role"`
	DisplayName  string `json:"display_name,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
}

// Service implements registration, login, and guest sessions.
type Service struct {
	db      *supabase.Client
	tokens  *TokenIssuer
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewService creates the account service.
func NewService(db *supabase.Client, tokens *TokenIssuer, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{db: db, tokens: tokens, metrics: metrics, logger: logger}
}

// Register creates a user account and returns a fresh session.
func (s *Service) Register(ctx context.Context, email, password, displayName string) (Session, error) {
	if len(password) < 6 {
		return Session{}, ErrPasswordTooShort
	}

	var existing []userRow
	if _, err := s.db.Table("users").Select("id").Eq("email", email).Execute(ctx, &existing); err != nil {
		return Session{}, fmt.Errorf("check existing user: %w", err)
	}
	if len(existing) > 0 {
		return Session{}, ErrEmailTaken
	}

	hash, err := HashPassword(password)
	if err != nil {
		return Session{}, err
	}

	if displayName == "" {
		displayName = strings.SplitN(email, "@", 2)[0]
	}
	row := userRow{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Role:         RoleUser,
		DisplayName:  displayName,
	}

	var created []userRow
	if err := s.db.Table("users").Insert(ctx, row, &created); err != nil {
		return Session{}, fmt.Errorf("create user: %w", err)
	}
	if len(created) == 0 {
		return Session{}, fmt.Errorf("create user: no row returned")
	}

	s.metrics.AuthOperations.WithLabelValues("register", "success").Inc()
	s.logger.Info("user registered", "user_id", created[0].ID)
	return s.session(created[0], "")
}

// Login authenticates an email/password pair.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	var rows []userRow
	if _, err := s.db.Table("users").Eq("email", email).Execute(ctx, &rows); err != nil {
		return Session{}, fmt.Errorf("look up user: %w", err)
	}
	if len(rows) == 0 || !VerifyPassword(password, rows[0].PasswordHash) {
		s.metrics.AuthOperations.WithLabelValues("login", "error").Inc()
		return Session{}, ErrInvalidCredentials
	}

	s.metrics.AuthOperations.WithLabelValues("login", "success").Inc()
	return s.session(rows[0], "")
}

// GuestLogin creates a temporary session without an account. Guests get a
// random id and a generated display name.
func (s *Service) GuestLogin(_ context.Context) (Session, error) {
	guestID := uuid.NewString()
	sessionID := randomSessionID()

	s.metrics.AuthOperations.WithLabelValues("guest", "success").Inc()
	return s.session(userRow{
		ID:          guestID,
		Role:        RoleGuest,
		DisplayName: "Guest-" + sessionID[:8],
	}, sessionID)
}

// CurrentUser resolves a bearer token into its user. Registered users are
// looked up for fresh profile data; guests are reconstructed from claims.
func (s *Service) CurrentUser(ctx context.Context, token string) (User, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return User{}, err
	}

	if claims.Role == RoleGuest {
		return User{ID: claims.Subject, Role: RoleGuest}, nil
	}

	user, err := s.UserByID(ctx, claims.Subject)
	if err != nil {
		if err == ErrUserNotFound {
			// Account deleted since the token was issued; fall back to claims.
			return User{ID: claims.Subject, Email: claims.Email, Role: claims.Role}, nil
		}
		return User{}, err
	}
	return user, nil
}

// UserByID fetches a user's public profile.
func (s *Service) UserByID(ctx context.Context, id string) (User, error) {
	var rows []userRow
	if _, err := s.db.Table("users").Select("id,email,role,display_name,created_at").Eq("id", id).Execute(ctx, &rows); err != nil {
		return User{}, fmt.Errorf("look up user: %w", err)
	}
	if len(rows) == 0 {
		return User{}, ErrUserNotFound
	}
	return publicUser(rows[0]), nil
}

// UpdateProfile changes a user's display name.
func (s *Service) UpdateProfile(ctx context.Context, id, displayName string) (User, error) {
	if displayName == "" {
		return User{}, fmt.Errorf("no fields to update")
	}

	var rows []userRow
	err := s.db.Table("users").Eq("id", id).Update(ctx, map[string]string{"display_name": displayName}, &rows)
	if err != nil {
		return User{}, fmt.Errorf("update profile: %w", err)
	}
	if len(rows) == 0 {
		return User{}, ErrUserNotFound
	}
	return publicUser(rows[0]), nil
}

// ValidateToken exposes claim validation for middleware.
func (s *Service) ValidateToken(token string) (*Claims, error) {
	return s.tokens.Validate(token)
}

func (s *Service) session(row userRow, sessionID string) (Session, error) {
	token, err := s.tokens.Issue(row.ID, row.Email, row.Role)
	if err != nil {
		return Session{}, err
	}
	return Session{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   s.tokens.ExpiresIn(),
		SessionID:   sessionID,
		User:        publicUser(row),
	}, nil
}

func publicUser(row userRow) User {
	return User{
		ID:          row.ID,
		Email:       row.Email,
		Role:        row.Role,
		DisplayName: row.DisplayName,
		CreatedAt:   row.CreatedAt,
	}
}

func randomSessionID() string {
	buf := make([]byte, 16)
	_, _ = rand.Read(buf)
	return base64.RawURLEncoding.EncodeToString(buf)
}
