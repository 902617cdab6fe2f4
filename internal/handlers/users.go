package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"ledgerline-backend/internal/storage"
)

type userRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (h *Handler) GetUsers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, sess, ok := orgScope(w, r)
	if !ok {
		return
	}
	defer cancel()

	users, err := h.store.ListUsers(ctx, sess.OrgID)
	if err != nil {
		log.Printf("ERROR User list query failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to load users")
		return
	}

	writeJSON(w, http.StatusOK, users)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, sess, ok := orgScope(w, r)
	if !ok {
		return
	}
	defer cancel()

	user, err := h.store.GetUser(ctx, sess.OrgID, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		log.Printf("ERROR User lookup failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to load user")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, sess, ok := orgScope(w, r)
	if !ok {
		return
	}
	defer cancel()

	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if name == "" || email == "" {
		writeError(w, http.StatusBadRequest, "Name and email are required")
		return
	}

	user, err := h.store.CreateUser(ctx, sess.OrgID, name, email)
	if err != nil {
		if errors.Is(err, storage.ErrEmailTaken) {
			writeError(w, http.StatusBadRequest, "Email already registered")
			return
		}
		log.Printf("ERROR User insert failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, sess, ok := orgScope(w, r)
	if !ok {
		return
	}
	defer cancel()

	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	name := strings.TrimSpace(req.Name)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if name == "" || email == "" {
		writeError(w, http.StatusBadRequest, "Name and email are required")
		return
	}

	user, err := h.store.UpdateUser(ctx, sess.OrgID, chi.URLParam(r, "id"), name, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		if errors.Is(err, storage.ErrEmailTaken) {
			writeError(w, http.StatusBadRequest, "Email already registered")
			return
		}
		log.Printf("ERROR User update failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to update user")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, sess, ok := orgScope(w, r)
	if !ok {
		return
	}
	defer cancel()

	if err := h.store.DeleteUser(ctx, sess.OrgID, chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		log.Printf("ERROR User delete failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to delete user")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"message": "User deleted"})
}
