package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/agrocredit/agrolend/internal/domain"
)

// SessionCookie is the name of the signed session cookie.
const SessionCookie = "agrolend_session"

type sessionKey struct{}

// sessionClaims is the JWT payload of a session cookie.
type sessionClaims struct {
	Name string      `json:"name"`
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// SessionManager issues and verifies HS256 session cookies.
type SessionManager struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// NewSessionManager creates a manager signing with secret.
func NewSessionManager(secret string, ttl time.Duration, secure bool) *SessionManager {
	return &SessionManager{secret: []byte(secret), ttl: ttl, secure: secure, now: time.Now}
}

// Issue signs a session for name in role and sets the cookie.
func (m *SessionManager) Issue(w http.ResponseWriter, name string, role domain.Role) (domain.Session, error) {
	if !role.Valid() {
		return domain.Session{}, fmt.Errorf("%w: %q", domain.ErrWrongRole, role)
	}
	now := m.now()
	sess := domain.Session{
		Subject:  uuid.NewString(),
		Name:     name,
		Role:     role,
		IssuedAt: now.Truncate(time.Second),
	}
	claims := sessionClaims{
		Name: name,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sess.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return domain.Session{}, fmt.Errorf("sign session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    signed,
		Path:     "/",
		Expires:  now.Add(m.ttl),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return sess, nil
}

// Parse verifies the session cookie on r.
func (m *SessionManager) Parse(r *http.Request) (domain.Session, error) {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return domain.Session{}, domain.ErrNoSession
	}

	var claims sessionClaims
	_, err = jwt.ParseWithClaims(c.Value, &claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return domain.Session{}, fmt.Errorf("%w: %v", domain.ErrNoSession, err)
	}
	if !claims.Role.Valid() {
		return domain.Session{}, fmt.Errorf("%w: role %q", domain.ErrNoSession, claims.Role)
	}

	sess := domain.Session{Subject: claims.Subject, Name: claims.Name, Role: claims.Role}
	if claims.IssuedAt != nil {
		sess.IssuedAt = claims.IssuedAt.Time
	}
	return sess, nil
}

// Clear expires the session cookie.
func (m *SessionManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Require admits only sessions in role. A missing or invalid session is sent
// to the landing page; a session of the other role gets 403.
func (m *SessionManager) Require(role domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := m.Parse(r)
			if err != nil {
				http.Redirect(w, r, "/", http.StatusSeeOther)
				return
			}
			if sess.Role != role {
				http.Error(w, domain.ErrWrongRole.Error(), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

// WithSession stores sess in ctx.
func WithSession(ctx context.Context, sess domain.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, sess)
}

// SessionFrom returns the session stored by Require.
func SessionFrom(ctx context.Context) (domain.Session, error) {
	sess, ok := ctx.Value(sessionKey{}).(domain.Session)
	if !ok {
		return domain.Session{}, domain.ErrNoSession
	}
	return sess, nil
}

// mustSession is SessionFrom for handlers mounted behind Require.
func mustSession(r *http.Request) domain.Session {
	sess, err := SessionFrom(r.Context())
	if errors.Is(err, domain.ErrNoSession) {
		panic("handler mounted without session middleware")
	}
	return sess
}
