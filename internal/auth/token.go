package auth

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CapEditPages allows curating feeds.
const CapEditPages = "edit_pages"

const (
	issuer          = "newsplugin"
	sessionAudience = "newsplugin-session"
	actionAudience  = "newsplugin-action"
)

var ErrInvalidToken = errors.New("invalid token")

// Viewer is the identity behind a request. The zero value is an anonymous
// visitor.
type Viewer struct {
	UserID int64
	Caps   []string
}

// CanManage reports whether the viewer may curate feeds.
func (v Viewer) CanManage() bool {
	return v.UserID != 0 && slices.Contains(v.Caps, CapEditPages)
}

type sessionClaims struct {
	Caps []string `json:"caps"`
	jwt.RegisteredClaims
}

// Config holds token signing settings.
type Config struct {
	Secret     string
	SessionTTL time.Duration
	ActionTTL  time.Duration
}

// Issuer signs and verifies viewer sessions and action tokens.
type Issuer struct {
	cfg Config
	now func() time.Time
}

func NewIssuer(cfg Config) *Issuer {
	return &Issuer{cfg: cfg, now: time.Now}
}

func (i *Issuer) sign(claims jwt.Claims) (string, error) {
	if i.cfg.Secret == "" {
		return "", errors.New("auth secret is not configured")
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(i.cfg.Secret))
}

func (i *Issuer) registered(uid int64, audience string, ttl time.Duration) jwt.RegisteredClaims {
	now := i.now()
	return jwt.RegisteredClaims{
		Issuer:    issuer,
		Audience:  jwt.ClaimStrings{audience},
		Subject:   strconv.FormatInt(uid, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (i *Issuer) parse(token, audience string, claims jwt.Claims) error {
	if i.cfg.Secret == "" || token == "" {
		return ErrInvalidToken
	}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(i.cfg.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return nil
}

// IssueSession signs a session for v.
func (i *Issuer) IssueSession(v Viewer) (string, error) {
	return i.sign(sessionClaims{
		Caps:             v.Caps,
		RegisteredClaims: i.registered(v.UserID, sessionAudience, i.cfg.SessionTTL),
	})
}

// ParseSession verifies a session token and returns its viewer.
func (i *Issuer) ParseSession(token string) (Viewer, error) {
	var c sessionClaims
	if err := i.parse(token, sessionAudience, &c); err != nil {
		return Viewer{}, err
	}
	uid, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return Viewer{}, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	return Viewer{UserID: uid, Caps: c.Caps}, nil
}

// IssueActionToken signs a request-authenticity token for uid, attached to
// management links.
func (i *Issuer) IssueActionToken(uid int64) (string, error) {
	return i.sign(i.registered(uid, actionAudience, i.cfg.ActionTTL))
}

// VerifyActionToken checks that token was issued to uid and is current.
func (i *Issuer) VerifyActionToken(token string, uid int64) error {
	var c jwt.RegisteredClaims
	if err := i.parse(token, actionAudience, &c); err != nil {
		return err
	}
	if c.Subject != strconv.FormatInt(uid, 10) {
		return fmt.Errorf("%w: subject mismatch", ErrInvalidToken)
	}
	return nil
}
