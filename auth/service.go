package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/adeilh/taskdo/internal/logutil"
)

var (
	ErrAlreadyRegistered = errors.New("auth: email already registered")
	ErrNoSuchUser        = errors.New("auth: no such user")
	ErrBadCredentials    = errors.New("auth: incorrect email or password")
	ErrTokenExpired      = errors.New("auth: token expired")
	ErrAlreadyConfirmed  = errors.New("auth: user already confirmed")
	ErrUnauthorized      = errors.New("auth: unauthorized")
	ErrInvalidInput      = errors.New("auth: invalid input")
	ErrInvalidConfig     = errors.New("auth: invalid service configuration")
)

const notifyTimeout = 30 * time.Second

// Service orchestrates registration, login, confirmation-link issuance
// and redemption, and current-user resolution.
type Service struct {
	dir      UserDirectory
	tokens   TokenStore
	codec    *TokenCodec
	links    *LinkObfuscator
	hasher   PasswordHasher
	notifier Notifier
	linkBase string
	now      func() time.Time
}

// ServiceConfig wires the collaborators required by Service.
type ServiceConfig struct {
	Directory   UserDirectory
	Tokens      TokenStore
	Codec       *TokenCodec
	Obfuscator  *LinkObfuscator
	Hasher      PasswordHasher
	Notifier    Notifier
	LinkBaseURL string
	Now         func() time.Time
}

// NewService builds a Service. Directory, token store, codec, obfuscator
// and hasher are mandatory; the notifier is optional (no email delivery).
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Directory == nil || cfg.Tokens == nil || cfg.Codec == nil || cfg.Obfuscator == nil || cfg.Hasher == nil {
		return nil, ErrInvalidConfig
	}
	svc := &Service{
		dir:      cfg.Directory,
		tokens:   cfg.Tokens,
		codec:    cfg.Codec,
		links:    cfg.Obfuscator,
		hasher:   cfg.Hasher,
		notifier: cfg.Notifier,
		linkBase: strings.TrimRight(cfg.LinkBaseURL, "/"),
		now:      cfg.Now,
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc, nil
}

// Register creates an unconfirmed user and issues a confirmation link.
// The link is both emailed (best-effort) and returned to the caller, so
// a silently failing mail channel never strands the registration.
func (s *Service) Register(ctx context.Context, email, name, password string) (User, string, error) {
	if email == "" || password == "" {
		return User{}, "", ErrInvalidInput
	}

	if _, err := s.dir.FindByEmail(ctx, email); err == nil {
		return User{}, "", ErrAlreadyRegistered
	} else if !errors.Is(err, ErrNoSuchUser) {
		return User{}, "", err
	}

	hash, err := s.hasher.Hash(ctx, password)
	if err != nil {
		return User{}, "", err
	}

	user := User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	}
	if err := s.dir.Insert(ctx, user); err != nil {
		return User{}, "", err
	}

	link, err := s.IssueConfirmationLink(ctx, user)
	if err != nil {
		return User{}, "", err
	}
	s.sendConfirmation(ctx, user.Email, link)

	return user, link, nil
}

// IssueConfirmationLink issues (or refreshes) the user's session token,
// obfuscates its access-token string, and embeds it in the confirmation
// URL. Same machinery as login-token issuance; obfuscation is the only
// difference because this token rides in a public-facing link.
func (s *Service) IssueConfirmationLink(ctx context.Context, user User) (string, error) {
	token, err := s.GetOrRefreshToken(ctx, user)
	if err != nil {
		return "", err
	}
	blob, err := s.links.Obfuscate(token.AccessToken)
	if err != nil {
		return "", err
	}
	return s.linkBase + "/confirmation/" + blob, nil
}

// GetOrRefreshToken issues a fresh session token for the user and
// reconciles it with the store: insert when no row exists, overwrite in
// place while the stored token is still valid, and leave an expired
// stored row untouched. The freshly issued token is returned to the
// caller either way.
func (s *Service) GetOrRefreshToken(ctx context.Context, user User) (SessionToken, error) {
	token, err := s.codec.Issue(user.Email)
	if err != nil {
		return SessionToken{}, err
	}
	token.UserID = user.ID
	if err := s.tokens.UpsertIfValid(ctx, token, s.codec.StillValid); err != nil {
		return SessionToken{}, err
	}
	return token, nil
}

// ConfirmRegistration redeems an obfuscated confirmation token and marks
// the user confirmed. Redeeming twice fails the second time with
// ErrAlreadyConfirmed.
func (s *Service) ConfirmRegistration(ctx context.Context, blob string) (User, error) {
	raw, err := s.links.Reveal(blob)
	if err != nil {
		return User{}, err
	}
	claims, err := s.codec.Decode(raw)
	if err != nil {
		return User{}, ErrLinkInvalid
	}
	if s.codec.Validate(claims) == nil {
		return User{}, ErrTokenExpired
	}

	user, err := s.dir.FindByEmail(ctx, claims.Email)
	if err != nil {
		return User{}, err
	}
	if user.Confirmed {
		return User{}, ErrAlreadyConfirmed
	}
	return s.dir.MarkConfirmed(ctx, user.Email, s.now())
}

// LoginResult carries either a bearer session token (confirmed account)
// or a fresh confirmation link (unconfirmed account).
type LoginResult struct {
	Token            *SessionToken
	ConfirmationLink string
}

// Login verifies credentials. Confirmed users get a session token;
// unconfirmed users get a new confirmation link instead of access.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	user, err := s.dir.FindByEmail(ctx, email)
	if err != nil {
		return LoginResult{}, err
	}
	if !s.hasher.Verify(user.PasswordHash, password) {
		return LoginResult{}, ErrBadCredentials
	}

	if user.Confirmed {
		token, err := s.GetOrRefreshToken(ctx, user)
		if err != nil {
			return LoginResult{}, err
		}
		return LoginResult{Token: &token}, nil
	}

	link, err := s.IssueConfirmationLink(ctx, user)
	if err != nil {
		return LoginResult{}, err
	}
	s.sendConfirmation(ctx, user.Email, link)
	return LoginResult{ConfirmationLink: link}, nil
}

// ResolveCurrentUser resolves the caller's identity from an inbound
// Authorization header value. It validates the signed claims directly;
// the token store and obfuscation layer are never consulted here. Every
// failure collapses into ErrUnauthorized.
func (s *Service) ResolveCurrentUser(ctx context.Context, bearer string) (User, error) {
	raw := stripBearer(bearer)
	if raw == "" {
		return User{}, ErrUnauthorized
	}
	claims, err := s.codec.Decode(raw)
	if err != nil {
		return User{}, ErrUnauthorized
	}
	if s.codec.Validate(claims) == nil {
		return User{}, ErrUnauthorized
	}
	user, err := s.dir.FindByEmail(ctx, claims.Email)
	if err != nil {
		return User{}, ErrUnauthorized
	}
	return user, nil
}

func (s *Service) sendConfirmation(ctx context.Context, recipient, link string) {
	if s.notifier == nil {
		return
	}
	logger := logutil.GetOrDefault(ctx)
	body := "Please click this link to verify your account.\n" + link + "\n"
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := s.notifier.Notify(ctx, recipient, "Verify your account", body); err != nil {
			logger.Error().Err(err).Str("recipient", recipient).Msg("confirmation email delivery failed")
		}
	}()
}

// stripBearer extracts the token from an Authorization header value.
// The "Bearer" scheme prefix is mandatory; a bare token yields "".
func stripBearer(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], TokenTypeBearer) {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
