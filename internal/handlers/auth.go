package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/taskpilot/taskpilot/internal/auth"
	"github.com/taskpilot/taskpilot/internal/database"
	"github.com/taskpilot/taskpilot/internal/models"
	"github.com/taskpilot/taskpilot/internal/request"
	"github.com/taskpilot/taskpilot/internal/validation"
)

// uniqueViolation is the Postgres error code for unique constraint violations
const uniqueViolation = "23505"

// AuthHandler handles registration, login and token verification
type AuthHandler struct {
	users  database.UserRepositoryInterface
	jwt    *auth.JWTManager
	logger *zap.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(users database.UserRepositoryInterface, jwt *auth.JWTManager, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{users: users, jwt: jwt, logger: logger}
}

// RegisterRoutes registers auth routes. Register and login are public;
// verify requires the auth middleware.
func (h *AuthHandler) RegisterRoutes(public, protected *mux.Router) {
	public.HandleFunc("/register", h.Register).Methods("POST")
	public.HandleFunc("/login", h.Login).Methods("POST")
	protected.HandleFunc("/verify", h.Verify).Methods("GET")
}

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UserResponse is the public view of a user
type UserResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

// AuthResponse represents a successful authentication
type AuthResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        UserResponse `json:"user"`
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, user *models.User) {
	token, _, err := h.jwt.GenerateToken(user.ID, user.Email)
	if err != nil {
		h.logger.Error("token_generation_failed", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to generate token")
		return
	}

	respondJSON(w, http.StatusOK, AuthResponse{
		AccessToken: token,
		TokenType:   "bearer",
		User:        UserResponse{ID: user.ID, Name: user.Name, Email: user.Email},
	})
}

// Register creates a new account and returns a JWT
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.Validate.Struct(req); err != nil {
		respondJSONError(w, http.StatusUnprocessableEntity, "Validation Error", "Name, a valid email and a password of at least 8 characters are required")
		return
	}

	if _, err := h.users.GetByEmail(r.Context(), req.Email); err == nil {
		respondJSONError(w, http.StatusConflict, "Conflict", "Email already registered")
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("password_hash_failed", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to create account")
		return
	}

	user := &models.User{
		ID:             uuid.New(),
		Name:           req.Name,
		Email:          req.Email,
		HashedPassword: hashed,
	}
	if err := h.users.Create(r.Context(), user); err != nil {
		// Covers the race where the email was registered between the
		// existence check and the insert
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			respondJSONError(w, http.StatusConflict, "Conflict", "Email already registered")
			return
		}
		h.logger.Error("user_create_failed", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to create account")
		return
	}

	h.respondWithToken(w, user)
}

// Login authenticates with email and password and returns a JWT
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.Validate.Struct(req); err != nil {
		respondJSONError(w, http.StatusUnprocessableEntity, "Validation Error", "Email and password are required")
		return
	}

	// Same response for unknown email and wrong password so emails
	// cannot be enumerated
	user, err := h.users.GetByEmail(r.Context(), req.Email)
	if err != nil || auth.CheckPassword(user.HashedPassword, req.Password) != nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Invalid credentials")
		return
	}

	h.respondWithToken(w, user)
}

// Verify confirms the bearer token and returns the caller's identity
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	identity := request.IdentityFromContext(r)
	if identity == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Authentication required")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user_id":       identity.UserID,
		"email":         identity.Email,
	})
}
