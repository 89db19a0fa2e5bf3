package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hubdeck/sessionkit/core/cookie"
	"github.com/hubdeck/sessionkit/core/logger"
	"github.com/hubdeck/sessionkit/core/session"
	"github.com/hubdeck/sessionkit/pkg/clientip"
	"github.com/hubdeck/sessionkit/pkg/fingerprint"
)

type sessionKey struct{}

// BindingPolicy selects the reaction to a client binding mismatch: the
// session presented from a client that does not look like the one it was
// created for.
type BindingPolicy int

const (
	// BindingWarn logs the anomaly and lets the request proceed. Mobile
	// networks rotate IPs and browsers update user agents, so this is the
	// default.
	BindingWarn BindingPolicy = iota

	// BindingReauth destroys the session and downgrades the request to
	// anonymous, forcing a fresh login.
	BindingReauth
)

// SecurityEvent identifies a session anomaly passed to the OnSecurityEvent
// hook.
type SecurityEvent string

const (
	EventInvalidToken    SecurityEvent = "session.token_invalid"
	EventBindingMismatch SecurityEvent = "session.binding_mismatch"
	EventClockSkew       SecurityEvent = "session.clock_skew"
)

// SessionConfig configures the session middleware and its helpers.
type SessionConfig struct {
	// Store is the session backend (required).
	Store session.Store

	// Cookies signs and verifies the session cookie (required).
	Cookies *cookie.Manager

	// CookieName is the session cookie name. Default "sid".
	CookieName string

	// TTL mirrors the store's session TTL onto the cookie MaxAge so the
	// browser drops the cookie around the time the session dies. Default
	// 24h.
	TTL time.Duration

	// Policy decides what a binding mismatch does. Default BindingWarn.
	Policy BindingPolicy

	// Fingerprints configures how client fingerprints are generated and
	// verified, for Login and the binding check alike. Add
	// fingerprint.WithIP() to make an address change count as a mismatch.
	Fingerprints []fingerprint.Option

	// ClockSkewTolerance is how far in the future a session's LastActivity
	// may sit before it is flagged as cross-instance clock skew. Default
	// 1m.
	ClockSkewTolerance time.Duration

	// Skip bypasses the middleware for matching requests.
	Skip func(r *http.Request) bool

	// OnSecurityEvent is invoked for every detected anomaly, after it has
	// been logged. Optional.
	OnSecurityEvent func(r *http.Request, event SecurityEvent, sess *session.Session)

	// Logger for structured logging. Default discards.
	Logger *slog.Logger

	// Now overrides the time source for expiry and skew checks. Intended
	// for tests.
	Now func() time.Time
}

// Sessions ties a store and a cookie manager into the request pipeline:
// the Middleware resolves the inbound cookie to a context-attached
// session, and Login/Logout/Regenerate/Rotate perform the cookie+store
// transitions handlers need.
type Sessions struct {
	cfg SessionConfig
	mgr *session.Manager
}

// NewSessions validates the configuration and applies defaults.
// Panics when the store or cookie manager is missing, matching the
// construction-time failure style of the rest of the middleware stack.
func NewSessions(cfg SessionConfig) *Sessions {
	if cfg.Store == nil {
		panic("session middleware: store is required")
	}
	if cfg.Cookies == nil {
		panic("session middleware: cookie manager is required")
	}
	if cfg.CookieName == "" {
		cfg.CookieName = "sid"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.ClockSkewTolerance <= 0 {
		cfg.ClockSkewTolerance = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Sessions{
		cfg: cfg,
		mgr: session.NewManager(cfg.Store, cfg.Logger),
	}
}

// Middleware resolves the session cookie and attaches the session to the
// request context. Requests without a valid session proceed anonymously;
// session plumbing is never the reason a request fails.
//
// After the response is written, activity recording (Touch, plus Save for
// mutated payloads) runs in a detached goroutine so persistence latency
// never shows up in response times.
func (s *Sessions) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Skip != nil && s.cfg.Skip(r) {
			next.ServeHTTP(w, r)
			return
		}

		sess := s.resolve(w, r)
		if sess == nil {
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), sessionKey{}, sess)
		next.ServeHTTP(w, r.WithContext(ctx))

		go s.record(sess)
	})
}

// resolve turns the inbound cookie into a live session, or nil for an
// anonymous request. Every rejection path clears the cookie so the client
// stops presenting a dead token.
func (s *Sessions) resolve(w http.ResponseWriter, r *http.Request) *session.Session {
	token, err := s.cfg.Cookies.GetSigned(r, s.cfg.CookieName)
	if err != nil {
		if errors.Is(err, cookie.ErrCookieNotFound) {
			return nil
		}

		// Present but unverifiable: tampered, truncated, or signed with a
		// retired secret long gone from the rotation set.
		s.cfg.Cookies.Delete(w, s.cfg.CookieName)
		s.cfg.Logger.Warn("session cookie rejected",
			logger.Event(string(EventInvalidToken)),
			logger.ClientIP(clientip.GetIP(r)),
			logger.Error(err),
		)
		s.fireSecurityEvent(r, EventInvalidToken, nil)
		return nil
	}

	if err := session.ValidateID(token); err != nil {
		// A signed cookie carrying a malformed ID means someone minted it
		// outside this codebase; worth a distinct log line.
		s.cfg.Cookies.Delete(w, s.cfg.CookieName)
		s.cfg.Logger.Warn("session token format invalid",
			logger.Event(string(EventInvalidToken)),
			logger.ClientIP(clientip.GetIP(r)),
		)
		s.fireSecurityEvent(r, EventInvalidToken, nil)
		return nil
	}

	sess, err := s.cfg.Store.Get(r.Context(), token)
	if err != nil {
		// Expired, destroyed, or the backend is degraded. All of them
		// downgrade to anonymous.
		s.cfg.Cookies.Delete(w, s.cfg.CookieName)
		s.cfg.Logger.Debug("session not resolved",
			logger.Event("session.miss"),
			logger.Error(err),
		)
		return nil
	}

	// The store enforces expiry on Get; re-checking here keeps a stale
	// or misbehaving store implementation from reviving dead sessions.
	if sess.IsExpired(s.cfg.Now()) {
		s.cfg.Cookies.Delete(w, s.cfg.CookieName)
		s.cfg.Logger.Debug("session expired",
			logger.Event("session.expired"),
			logger.SessionID(sess.ID),
		)
		return nil
	}

	if !s.checkBinding(w, r, sess) {
		return nil
	}
	s.checkClockSkew(r, sess)

	return sess
}

// checkBinding compares the live client against the binding captured at
// session creation. Returns false when the session was torn down under
// the reauth policy.
func (s *Sessions) checkBinding(w http.ResponseWriter, r *http.Request, sess *session.Session) bool {
	if sess.Binding.Fingerprint == "" {
		return true
	}

	if err := fingerprint.Validate(r, sess.Binding.Fingerprint, s.cfg.Fingerprints...); err == nil {
		return true
	}

	s.cfg.Logger.Warn("session client binding mismatch",
		logger.Event(string(EventBindingMismatch)),
		logger.SessionID(sess.ID),
		logger.UserID(sess.UserID),
		logger.ClientIP(clientip.GetIP(r)),
		logger.UserAgent(r.UserAgent()),
	)
	s.fireSecurityEvent(r, EventBindingMismatch, sess)

	if s.cfg.Policy != BindingReauth {
		return true
	}

	if err := s.cfg.Store.Destroy(r.Context(), sess.ID); err != nil {
		s.cfg.Logger.Error("session not destroyed after binding mismatch",
			logger.Event(string(EventBindingMismatch)),
			logger.SessionID(sess.ID),
			logger.Error(err),
		)
	}
	s.cfg.Cookies.Delete(w, s.cfg.CookieName)
	return false
}

// checkClockSkew flags sessions whose recorded activity sits in this
// instance's future, which points at drifting clocks across instances.
// Observational only; the session stays usable.
func (s *Sessions) checkClockSkew(r *http.Request, sess *session.Session) {
	if !sess.LastActivity.After(s.cfg.Now().Add(s.cfg.ClockSkewTolerance)) {
		return
	}

	s.cfg.Logger.Warn("session activity timestamp in the future",
		logger.Event(string(EventClockSkew)),
		logger.SessionID(sess.ID),
		slog.Time("last_activity", sess.LastActivity),
	)
	s.fireSecurityEvent(r, EventClockSkew, sess)
}

// record persists request activity after the response is gone: a touch
// always, a save when the handler mutated the payload. Failures are
// logged and dropped; the response was already written.
func (s *Sessions) record(sess *session.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.cfg.Store.Touch(ctx, sess.ID); err != nil {
		s.cfg.Logger.Error("session touch failed",
			logger.Event("session.touch"),
			logger.SessionID(sess.ID),
			logger.Error(err),
		)
	}

	if !sess.IsModified() {
		return
	}
	if err := s.cfg.Store.Save(ctx, sess); err != nil {
		s.cfg.Logger.Error("session save failed",
			logger.Event("session.save"),
			logger.SessionID(sess.ID),
			logger.Error(err),
		)
	}
}

func (s *Sessions) fireSecurityEvent(r *http.Request, event SecurityEvent, sess *session.Session) {
	if s.cfg.OnSecurityEvent != nil {
		s.cfg.OnSecurityEvent(r, event, sess)
	}
}

// Login creates a session for an authenticated principal and sets the
// signed cookie. When params carries no binding, the client's IP, user
// agent, and fingerprint are captured from the request.
func (s *Sessions) Login(w http.ResponseWriter, r *http.Request, params session.NewSessionParams) (*session.Session, error) {
	if params.Binding == (session.ClientBinding{}) {
		params.Binding = session.ClientBinding{
			IP:          clientip.GetIP(r),
			UserAgent:   r.UserAgent(),
			Fingerprint: fingerprint.Generate(r, s.cfg.Fingerprints...),
		}
	}

	sess, err := s.cfg.Store.Create(r.Context(), params)
	if err != nil {
		return nil, err
	}

	if err := s.setCookie(w, sess.ID); err != nil {
		// A session the client can never present is garbage; reap it now
		// instead of waiting for expiry.
		_ = s.cfg.Store.Destroy(r.Context(), sess.ID)
		return nil, err
	}

	s.cfg.Logger.Info("session established",
		logger.Event("session.login"),
		logger.UserID(sess.UserID),
		logger.SessionID(sess.ID),
	)
	return sess, nil
}

// Logout destroys the current session. The cookie is cleared even when
// the store call fails, so the client never keeps presenting a token the
// server meant to kill.
func (s *Sessions) Logout(w http.ResponseWriter, r *http.Request) error {
	defer s.cfg.Cookies.Delete(w, s.cfg.CookieName)

	sess, ok := FromContext(r.Context())
	if !ok {
		return nil
	}

	if err := s.cfg.Store.Destroy(r.Context(), sess.ID); err != nil {
		s.cfg.Logger.Error("session destroy on logout failed",
			logger.Event("session.logout"),
			logger.SessionID(sess.ID),
			logger.Error(err),
		)
		return err
	}

	s.cfg.Logger.Info("session terminated",
		logger.Event("session.logout"),
		logger.UserID(sess.UserID),
		logger.SessionID(sess.ID),
	)
	return nil
}

// Regenerate swaps the current session's ID across a privilege boundary
// and re-issues the cookie. The context still carries the old session;
// handlers needing the new one use the return value.
func (s *Sessions) Regenerate(w http.ResponseWriter, r *http.Request) (*session.Session, error) {
	return s.replace(w, r, s.mgr.Regenerate)
}

// Rotate swaps the current session's ID as periodic hygiene and re-issues
// the cookie.
func (s *Sessions) Rotate(w http.ResponseWriter, r *http.Request) (*session.Session, error) {
	return s.replace(w, r, s.mgr.Rotate)
}

func (s *Sessions) replace(w http.ResponseWriter, r *http.Request, op func(context.Context, string) (*session.Session, error)) (*session.Session, error) {
	sess, ok := FromContext(r.Context())
	if !ok {
		return nil, session.ErrNotFound
	}

	fresh, err := op(r.Context(), sess.ID)
	if err != nil {
		return nil, err
	}

	if err := s.setCookie(w, fresh.ID); err != nil {
		return nil, err
	}
	return fresh, nil
}

func (s *Sessions) setCookie(w http.ResponseWriter, id string) error {
	return s.cfg.Cookies.SetSigned(w, s.cfg.CookieName, id,
		cookie.WithMaxAge(int(s.cfg.TTL.Seconds())),
	)
}

// FromContext retrieves the session attached by the middleware.
func FromContext(ctx context.Context) (*session.Session, bool) {
	sess, ok := ctx.Value(sessionKey{}).(*session.Session)
	return sess, ok
}

// MustFromContext retrieves the session or panics. Use behind routes
// where an auth guard guarantees a session exists.
func MustFromContext(ctx context.Context) *session.Session {
	sess, ok := FromContext(ctx)
	if !ok {
		panic("session not found in request context")
	}
	return sess
}
