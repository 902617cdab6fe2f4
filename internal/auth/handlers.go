package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"ledgerline-backend/internal/models"
	"ledgerline-backend/internal/session"
	"ledgerline-backend/internal/storage"
)

// dummyHash is compared against when the email is unknown so that both
// failure paths cost a bcrypt verification and return the identical body.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

type Store interface {
	RegisterOrganization(ctx context.Context, input storage.RegisterInput) (*models.Organization, *models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetOrganization(ctx context.Context, id string) (*models.Organization, error)
}

type Handler struct {
	store    Store
	sessions session.Store
	validate *validator.Validate
}

func NewHandler(store Store, sessions session.Store) *Handler {
	return &Handler{
		store:    store,
		sessions: sessions,
		validate: validator.New(),
	}
}

type registerRequest struct {
	BusinessName    string `json:"businessName" validate:"required"`
	UserName        string `json:"userName" validate:"required"`
	Email           string `json:"email" validate:"required"`
	Password        string `json:"password" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" validate:"required"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Register creates an organization and its first user
// @Summary Register a business
// @Description Creates the organization and its administrator user in one transaction
// @Tags auth
// @Accept json
// @Produce json
// @Param registration body registerRequest true "Registration data"
// @Success 201 {object} map[string]interface{} "Message"
// @Failure 400 {object} map[string]interface{} "Missing fields, password mismatch or duplicate"
// @Failure 500 {object} map[string]interface{} "Server error"
// @Router /register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "All fields are required")
		return
	}
	if req.Password != req.ConfirmPassword {
		writeError(w, http.StatusBadRequest, "Passwords do not match")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	_, _, err = h.store.RegisterOrganization(r.Context(), storage.RegisterInput{
		BusinessName: req.BusinessName,
		UserName:     req.UserName,
		Email:        req.Email,
		PasswordHash: string(hash),
	})
	if errors.Is(err, storage.ErrOrgNameTaken) {
		writeError(w, http.StatusBadRequest, "Organization already exists")
		return
	}
	if errors.Is(err, storage.ErrEmailTaken) {
		writeError(w, http.StatusBadRequest, "Email already registered")
		return
	}
	if err != nil {
		log.Printf("ERROR Registration failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"message": "Registration successful"})
}

// Login authenticates a user and issues a session cookie
// @Summary User login
// @Description Verifies credentials and creates a server-side session
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body loginRequest true "Login credentials"
// @Success 200 {object} map[string]interface{} "Message"
// @Failure 400 {object} map[string]interface{} "Missing fields or invalid credentials"
// @Failure 500 {object} map[string]interface{} "Server error"
// @Router /login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		log.Printf("ERROR Login lookup failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	storedHash := dummyHash
	if user != nil {
		storedHash = user.PasswordHash
	}
	if err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(req.Password)); err != nil || user == nil {
		writeError(w, http.StatusBadRequest, "Invalid credentials")
		return
	}

	org, err := h.store.GetOrganization(r.Context(), user.OrgID)
	if err != nil {
		log.Printf("ERROR Login organization lookup failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	token, err := h.sessions.Create(r.Context(), &models.Session{
		UserID:    user.ID,
		Name:      user.Name,
		Email:     user.Email,
		OrgID:     user.OrgID,
		OrgName:   org.Name,
		Role:      user.Role,
		CreatedAt: time.Now(),
	})
	if err != nil {
		log.Printf("ERROR Session create failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Login failed")
		return
	}

	http.SetCookie(w, sessionCookie(token, int(session.TTL.Seconds())))
	writeJSON(w, http.StatusOK, map[string]any{"message": "Login successful"})
}

// Logout destroys the current session
// @Summary User logout
// @Description Removes the server-side session and clears the cookie
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]interface{} "Message"
// @Failure 500 {object} map[string]interface{} "Session destroy failure"
// @Router /logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(session.CookieName)
	if err == nil {
		if err := h.sessions.Destroy(r.Context(), cookie.Value); err != nil {
			log.Printf("ERROR Session destroy failed: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to destroy session")
			return
		}
	}

	http.SetCookie(w, sessionCookie("", -1))
	writeJSON(w, http.StatusOK, map[string]any{"message": "Logout successful"})
}

// Current returns the session snapshot captured at login
// @Summary Current session
// @Description Returns the denormalized user snapshot held by the session
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]interface{} "User snapshot"
// @Failure 401 {object} map[string]interface{} "No session"
// @Router /auth/current [get]
func (h *Handler) Current(w http.ResponseWriter, r *http.Request) {
	sess, ok := SessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user": map[string]any{
			"id":                sess.UserID,
			"name":              sess.Name,
			"email":             sess.Email,
			"organization_id":   sess.OrgID,
			"organization_name": sess.OrgName,
			"role":              sess.Role,
		},
	})
}

func sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     session.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}
