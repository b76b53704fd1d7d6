package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/asr-api/backend/internal/api/middleware"
	"github.com/asr-api/backend/internal/auth"
	"github.com/asr-api/backend/internal/db/models"
)

// UserStore looks up accounts for login
type UserStore interface {
	GetUserByUsername(username string) (*models.User, error)
	GetUserByID(id int64) (*models.User, error)
}

// AuthHandler issues tokens for the job, history and admin API
type AuthHandler struct {
	users UserStore
	jwt   *auth.JWTService
}

func NewAuthHandler(users UserStore, jwt *auth.JWTService) *AuthHandler {
	return &AuthHandler{users: users, jwt: jwt}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type account struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type tokenResponse struct {
	Token string  `json:"token"`
	User  account `json:"user"`
}

func toAccount(u *models.User) account {
	return account{ID: u.ID, Username: u.Username, Role: u.Role}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var c credentials
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	c.Username = strings.TrimSpace(c.Username)
	if c.Username == "" || c.Password == "" {
		jsonError(w, "username and password are required", http.StatusBadRequest)
		return
	}

	// unknown user and wrong password answer the same
	user, err := h.users.GetUserByUsername(c.Username)
	if err != nil || !auth.CheckPassword(c.Password, user.Password) {
		log.Printf("[auth] failed login for %q from %s", c.Username, r.RemoteAddr)
		jsonError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := h.jwt.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		jsonError(w, "failed to generate token", http.StatusInternalServerError)
		return
	}
	jsonResponse(w, tokenResponse{Token: token, User: toAccount(user)}, http.StatusOK)
}

// Me returns the account behind the bearer token
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r)
	if claims == nil {
		jsonError(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	user, err := h.users.GetUserByID(claims.UserID)
	if err != nil {
		jsonError(w, "user not found", http.StatusNotFound)
		return
	}
	jsonResponse(w, toAccount(user), http.StatusOK)
}
