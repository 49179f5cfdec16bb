package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/camden-git/acnesense/models"
	"github.com/camden-git/acnesense/repository"
)

// AccessTokenCookie carries the JWT for browser clients.
const AccessTokenCookie = "access_token"

const tokenIssuer = "acnesense"

// TokenIssuer signs and verifies HS256 access tokens whose subject is the user id.
type TokenIssuer struct {
	Secret     []byte
	Expiration time.Duration
}

func NewTokenIssuer(secret string, expirationHours int) *TokenIssuer {
	return &TokenIssuer{Secret: []byte(secret), Expiration: time.Duration(expirationHours) * time.Hour}
}

func (t *TokenIssuer) Issue(userID uint) (string, time.Time, error) {
	expirationTime := time.Now().Add(t.Expiration)
	claims := &jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		ExpiresAt: jwt.NewNumericDate(expirationTime),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		Issuer:    tokenIssuer,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(t.Secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, expirationTime, nil
}

// Parse verifies a token and returns the user id in its subject.
func (t *TokenIssuer) Parse(tokenString string) (uint, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return t.Secret, nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return 0, err
	}
	if !token.Valid {
		return 0, errors.New("invalid token")
	}

	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user ID in token subject '%s': %w", claims.Subject, err)
	}
	return uint(userID), nil
}

type AuthHandler struct {
	UserRepo repository.UserRepository
	Tokens   *TokenIssuer
	// SecureCookie marks the access token cookie Secure; enable behind TLS.
	SecureCookie bool
}

func NewAuthHandler(userRepo repository.UserRepository, tokens *TokenIssuer) *AuthHandler {
	return &AuthHandler{UserRepo: userRepo, Tokens: tokens}
}

type LoginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Success   bool        `json:"success"`
	Message   string      `json:"message"`
	Token     string      `json:"token"`
	User      models.User `json:"user"`
	ExpiresAt time.Time   `json:"expires_at"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload LoginPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, StatusResponse{Message: "Invalid request payload"})
		return
	}
	if payload.Email == "" || payload.Password == "" {
		writeJSON(w, http.StatusBadRequest, StatusResponse{Message: "Email dan password harus diisi!"})
		return
	}

	user, err := h.UserRepo.GetByEmail(r.Context(), payload.Email)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("auth: failed to look up user for login: %v", err)
		}
		writeJSON(w, http.StatusUnauthorized, StatusResponse{Message: "Email atau password salah!"})
		return
	}
	if !user.CheckPassword(payload.Password) {
		writeJSON(w, http.StatusUnauthorized, StatusResponse{Message: "Email atau password salah!"})
		return
	}

	tokenString, expiresAt, err := h.Tokens.Issue(user.ID)
	if err != nil {
		log.Printf("auth: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, "token_error", "Failed to generate token")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     AccessTokenCookie,
		Value:    tokenString,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	log.Printf("auth: user %d logged in", user.ID)
	writeJSON(w, http.StatusOK, LoginResponse{
		Success:   true,
		Message:   "Login berhasil!",
		Token:     tokenString,
		User:      *user,
		ExpiresAt: expiresAt,
	})
}

type RegisterPayload struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// validate returns the user-facing message of the first invalid field.
func (p RegisterPayload) validate() string {
	switch {
	case strings.TrimSpace(p.Name) == "" || p.Email == "" || p.Password == "" || p.ConfirmPassword == "":
		return "Semua field harus diisi!"
	case len(strings.TrimSpace(p.Name)) < 2:
		return "Nama minimal 2 karakter!"
	case !validEmail(p.Email):
		return "Format email tidak valid!"
	case p.Password != p.ConfirmPassword:
		return "Password dan konfirmasi password tidak cocok!"
	case len(p.Password) < 6:
		return "Password minimal 6 karakter!"
	}
	return ""
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	return err == nil && addr.Address == strings.TrimSpace(email) && strings.Contains(addr.Address, ".")
}

// Register creates a new user account.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload RegisterPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, StatusResponse{Message: "Invalid request payload"})
		return
	}
	if msg := payload.validate(); msg != "" {
		writeJSON(w, http.StatusBadRequest, StatusResponse{Message: msg})
		return
	}

	if _, err := h.UserRepo.GetByEmail(r.Context(), payload.Email); err == nil {
		writeJSON(w, http.StatusConflict, StatusResponse{Message: "Email sudah terdaftar!"})
		return
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("auth: failed to check email before register: %v", err)
		writeJSON(w, http.StatusInternalServerError, StatusResponse{Message: "Terjadi kesalahan pada server!"})
		return
	}

	newUser := &models.User{Name: strings.TrimSpace(payload.Name), Email: payload.Email}
	if err := newUser.SetPassword(payload.Password); err != nil {
		log.Printf("auth: failed to hash password: %v", err)
		writeJSON(w, http.StatusInternalServerError, StatusResponse{Message: "Terjadi kesalahan pada server!"})
		return
	}
	if err := h.UserRepo.Create(r.Context(), newUser); err != nil {
		log.Printf("auth: failed to create user: %v", err)
		writeJSON(w, http.StatusInternalServerError, StatusResponse{Message: "Gagal mendaftarkan user!"})
		return
	}

	log.Printf("auth: registered user %d", newUser.ID)
	writeJSON(w, http.StatusCreated, StatusResponse{Success: true, Message: "Registrasi berhasil! Silakan login dengan akun Anda."})
}

// Logout clears the access token cookie. Bearer clients simply discard their token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessTokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, StatusResponse{Success: true, Message: "Logout berhasil!"})
}

// CurrentUser retrieves the authenticated user from the request context.
// This handler should be protected by the AuthMiddleware.
func (h *AuthHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r)
	if !ok {
		WriteAPIError(w, http.StatusInternalServerError, "no_user", "Could not retrieve user from context")
		return
	}
	writeJSON(w, http.StatusOK, user)
}
