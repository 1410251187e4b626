package admin

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/wolfman30/leasing-ai-platform/pkg/logging"
)

const defaultTokenTTL = 12 * time.Hour

// Credentials identifies the single leasing operator allowed into the admin surface.
type Credentials struct {
	Email        string
	PasswordHash string
}

// LoginHandler exchanges operator credentials for a short-lived admin bearer token.
type LoginHandler struct {
	creds  Credentials
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	logger *logging.Logger

	// dummyHash is compared on unknown emails so response time does not reveal the operator address.
	dummyHash []byte
}

// NewLoginHandler creates a login handler. Empty credentials or secret reject every login.
func NewLoginHandler(creds Credentials, secret string, ttl time.Duration, logger *logging.Logger) *LoginHandler {
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	cost := bcrypt.DefaultCost
	if c, err := bcrypt.Cost([]byte(creds.PasswordHash)); err == nil {
		cost = c
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("leasing-admin-placeholder"), cost)
	if err != nil {
		logger.Warn("failed to prepare admin login placeholder hash", "error", err)
	}
	return &LoginHandler{
		creds:     creds,
		secret:    []byte(secret),
		ttl:       ttl,
		now:       time.Now,
		logger:    logger,
		dummyHash: dummy,
	}
}

// LoginRequest is the POST /admin/login body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the signed token and its expiry.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Login handles POST /admin/login.
func (h *LoginHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email and password are required"})
		return
	}

	if !h.configured() || !h.verify(email, req.Password) {
		h.logger.Warn("admin login rejected", "email", email)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}

	issued := h.now()
	expires := issued.Add(h.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   email,
		IssuedAt:  jwt.NewNumericDate(issued),
		ExpiresAt: jwt.NewNumericDate(expires),
	})
	signed, err := token.SignedString(h.secret)
	if err != nil {
		h.logger.Error("failed to sign admin token", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to issue token"})
		return
	}

	h.logger.Info("admin login", "email", email)
	writeJSON(w, http.StatusOK, LoginResponse{Token: signed, ExpiresAt: expires.UTC()})
}

func (h *LoginHandler) configured() bool {
	return len(h.secret) > 0 && h.creds.Email != "" && h.creds.PasswordHash != ""
}

// verify always runs one bcrypt comparison, whether or not the email matches.
func (h *LoginHandler) verify(email, password string) bool {
	want := strings.ToLower(strings.TrimSpace(h.creds.Email))
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(want)) == 1

	hash := []byte(h.creds.PasswordHash)
	if !emailOK {
		hash = h.dummyHash
	}
	passwordOK := bcrypt.CompareHashAndPassword(hash, []byte(password)) == nil
	return emailOK && passwordOK
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
