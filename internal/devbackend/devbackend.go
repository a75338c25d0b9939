// Package devbackend is an in-process stand-in for the FairHall platform's
// authentication API. It implements the same HTTP contract the console
// gateway consumes upstream, backed by seeded in-memory accounts, so the
// console can run end to end with no platform deployment. It also serves a
// bearer-guarded sample data endpoint for exercising the authenticated proxy.
package devbackend

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/fairhall/console/users"
)

const defaultAccessTTL = 15 * time.Minute

type account struct {
	user         users.User
	passwordHash []byte
}

// Backend holds the mock state: seeded accounts, live refresh tokens, and
// outstanding reset / verification tokens. Refresh tokens are single use and
// rotate on every exchange, matching the platform's behavior.
type Backend struct {
	lock          sync.Mutex
	accounts      map[string]*account // keyed by email
	refreshTokens map[string]string   // refresh token -> user ID
	resetTokens   map[string]string   // reset token -> email
	verifyTokens  map[string]string   // verify token -> "fresh" | "used"

	secret    []byte
	accessTTL time.Duration
	nowFunc   func() time.Time
}

// Options configures a Backend.
type Options func(*Backend)

// WithAccessTTL overrides the access-token lifetime. Tests use a tiny TTL to
// force expiry-driven 401s.
func WithAccessTTL(ttl time.Duration) Options {
	return func(b *Backend) {
		b.accessTTL = ttl
	}
}

// WithNowTime overrides the time source.
func WithNowTime(f func() time.Time) Options {
	return func(b *Backend) {
		b.nowFunc = f
	}
}

// New creates an empty backend. Seed accounts with AddUser before serving.
func New(options ...Options) *Backend {
	b := &Backend{
		accounts:      make(map[string]*account),
		refreshTokens: make(map[string]string),
		resetTokens:   make(map[string]string),
		verifyTokens:  make(map[string]string),
		secret:        []byte(uuid.NewString()),
		accessTTL:     defaultAccessTTL,
		nowFunc:       time.Now,
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

// AddUser seeds an account and returns its profile.
func (b *Backend) AddUser(email, password string, role users.RoleType) (*users.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[Backend.AddUser] hash password")
	}

	user := users.User{
		ID:       "user-" + uuid.NewString(),
		Email:    email,
		Username: strings.Split(email, "@")[0],
		Role:     role,
	}

	b.lock.Lock()
	defer b.lock.Unlock()
	b.accounts[email] = &account{user: user, passwordHash: hash}
	return &user, nil
}

// IssueResetToken creates a password-reset token for email, as the platform
// would after a forgot-password request.
func (b *Backend) IssueResetToken(email string) string {
	token := uuid.NewString()
	b.lock.Lock()
	defer b.lock.Unlock()
	b.resetTokens[token] = email
	return token
}

// IssueVerifyToken creates a fresh email-verification token.
func (b *Backend) IssueVerifyToken() string {
	token := uuid.NewString()
	b.lock.Lock()
	defer b.lock.Unlock()
	b.verifyTokens[token] = "fresh"
	return token
}

// Handler returns the backend's HTTP surface.
func (b *Backend) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", b.handleLogin)
	mux.HandleFunc("POST /refresh", b.handleRefresh)
	mux.HandleFunc("POST /logout", b.handleLogout)
	mux.HandleFunc("POST /forgot-password", b.handleForgotPassword)
	mux.HandleFunc("POST /reset-password", b.handleResetPassword)
	mux.HandleFunc("GET /auth/verify-email", b.handleVerifyEmail)
	mux.HandleFunc("GET /exhibitions", b.handleExhibitions)
	return mux
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeMessage(w, http.StatusBadRequest, "Malformed request")
		return
	}

	b.lock.Lock()
	defer b.lock.Unlock()

	acct, ok := b.accounts[body.Email]
	if !ok || bcrypt.CompareHashAndPassword(acct.passwordHash, []byte(body.Password)) != nil {
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	access, err := b.mintAccessTokenLocked(&acct.user)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Token generation failed")
		return
	}
	refresh := b.mintRefreshTokenLocked(acct.user.ID)

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  access,
		"refresh_token": refresh,
		"user":          acct.user,
	})
}

func (b *Backend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID       string `json:"userId"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeMessage(w, http.StatusBadRequest, "Malformed request")
		return
	}

	b.lock.Lock()
	defer b.lock.Unlock()

	userID, ok := b.refreshTokens[body.RefreshToken]
	if !ok || userID != body.UserID {
		writeMessage(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	// Single use: the presented token dies whether or not minting succeeds.
	delete(b.refreshTokens, body.RefreshToken)

	user := b.userByIDLocked(userID)
	if user == nil {
		writeMessage(w, http.StatusUnauthorized, "Unknown user")
		return
	}

	access, err := b.mintAccessTokenLocked(user)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Token generation failed")
		return
	}
	refresh := b.mintRefreshTokenLocked(userID)

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  access,
		"refresh_token": refresh,
	})
}

func (b *Backend) handleLogout(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeMessage(w, http.StatusBadRequest, "Malformed request")
		return
	}

	b.lock.Lock()
	delete(b.refreshTokens, body.RefreshToken)
	b.lock.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

func (b *Backend) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeMessage(w, http.StatusBadRequest, "Malformed request")
		return
	}

	b.lock.Lock()
	_, exists := b.accounts[body.Email]
	if exists {
		b.resetTokens[uuid.NewString()] = body.Email
	}
	b.lock.Unlock()

	// Same response whether or not the account exists.
	writeMessage(w, http.StatusOK, "If that account exists, an email is on its way")
}

func (b *Backend) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token                string `json:"token"`
		Password             string `json:"password"`
		PasswordConfirmation string `json:"passwordConfirmation"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeMessage(w, http.StatusBadRequest, "Malformed request")
		return
	}
	if body.Password != body.PasswordConfirmation {
		writeMessage(w, http.StatusBadRequest, "Passwords do not match")
		return
	}
	if err := users.ValidatePasswordStrength(body.Password); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	b.lock.Lock()
	defer b.lock.Unlock()

	email, ok := b.resetTokens[body.Token]
	if !ok {
		writeMessage(w, http.StatusBadRequest, "Reset token is invalid or has expired")
		return
	}
	delete(b.resetTokens, body.Token)

	acct, ok := b.accounts[email]
	if !ok {
		writeMessage(w, http.StatusBadRequest, "Reset token is invalid or has expired")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.MinCost)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Password update failed")
		return
	}
	acct.passwordHash = hash

	writeMessage(w, http.StatusOK, "Password has been reset")
}

func (b *Backend) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	b.lock.Lock()
	defer b.lock.Unlock()

	switch b.verifyTokens[token] {
	case "fresh":
		b.verifyTokens[token] = "used"
		writeMessage(w, http.StatusOK, "Email verified")
	case "used":
		writeMessage(w, http.StatusBadRequest, "Verification link already used")
	default:
		writeMessage(w, http.StatusBadRequest, "Verification link is invalid or has expired")
	}
}

// handleExhibitions is a sample protected resource. It exists so the console's
// authenticated proxy has something real to forward to in mock mode.
func (b *Backend) handleExhibitions(w http.ResponseWriter, r *http.Request) {
	claims, err := b.verifyBearer(r)
	if err != nil {
		writeMessage(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"exhibitions": []map[string]string{
			{"id": "exh-1", "name": "Spring Trade Fair"},
			{"id": "exh-2", "name": "Autumn Design Week"},
		},
		"viewer": claims["email"],
	})
}

func (b *Backend) verifyBearer(r *http.Request) (jwtlib.MapClaims, error) {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil, pkgerrors.New("[Backend.verifyBearer] missing bearer token")
	}

	claims := jwtlib.MapClaims{}
	token, err := jwtlib.ParseWithClaims(raw, claims, func(t *jwtlib.Token) (any, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, pkgerrors.Errorf("[Backend.verifyBearer] unexpected signing method %v", t.Header["alg"])
		}
		return b.secret, nil
	}, jwtlib.WithTimeFunc(b.nowFunc))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[Backend.verifyBearer] parse token")
	}
	if !token.Valid {
		return nil, pkgerrors.New("[Backend.verifyBearer] invalid token")
	}
	return claims, nil
}

func (b *Backend) mintAccessTokenLocked(user *users.User) (string, error) {
	now := b.nowFunc()
	claims := jwtlib.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"role":  string(user.Role),
		"iat":   now.Unix(),
		// exp keeps sub-second precision; truncating to whole seconds would
		// expire short-lived tokens at mint time.
		"exp": float64(now.Add(b.accessTTL).UnixNano()) / float64(time.Second),
		"jti": uuid.NewString(),
	}
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(b.secret)
	if err != nil {
		return "", pkgerrors.Wrap(err, "[Backend.mintAccessToken] sign token")
	}
	return signed, nil
}

func (b *Backend) mintRefreshTokenLocked(userID string) string {
	token := uuid.NewString()
	b.refreshTokens[token] = userID
	return token
}

func (b *Backend) userByIDLocked(id string) *users.User {
	for _, acct := range b.accounts {
		if acct.user.ID == id {
			return &acct.user
		}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
