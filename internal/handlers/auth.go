package handlers

import (
	"errors"
	"net/http"

	"github.com/Innocase-ai/Mercedes-E-200D/internal/apperr"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/auth"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/db"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/middleware"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/models"
	"github.com/Innocase-ai/Mercedes-E-200D/internal/validation"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	errUsernameTaken = apperr.Conflict("username already exists", nil)
	errEmailTaken    = apperr.Conflict("email already exists", nil)
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	authService    *auth.Service
	userCollection db.UserCollection
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authService *auth.Service, userCollection db.UserCollection) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		userCollection: userCollection,
	}
}

// Login exchanges a username and password for an access token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var loginReq models.LoginRequest
	if err := decodeJSON(w, r, maxJSONBody, &loginReq); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validation.Struct(loginReq); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.userCollection.FindUserByUsername(r.Context(), loginReq.Username)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, r, auth.ErrInvalidCredentials)
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !h.authService.CheckPassword(loginReq.Password, user.PasswordHash) {
		log.WithField("username", loginReq.Username).Warn("Failed login attempt")
		writeError(w, r, auth.ErrInvalidCredentials)
		return
	}
	if !user.IsActive {
		writeError(w, r, auth.ErrUserInactive)
		return
	}

	token, err := h.authService.GenerateToken(user)
	if err != nil {
		writeError(w, r, apperr.Internal("failed to generate token", err))
		return
	}
	refreshToken, err := h.authService.IssueRefreshToken(r.Context(), h.userCollection, user)
	if err != nil {
		writeError(w, r, apperr.Internal("failed to issue refresh token", err))
		return
	}

	if err := h.userCollection.UpdateLastLogin(r.Context(), user.ID.Hex()); err != nil {
		log.WithError(err).WithField("username", user.Username).Warn("Failed to update last login")
	}

	writeJSON(w, http.StatusOK, models.LoginResponse{
		Token:        token,
		RefreshToken: refreshToken,
		User:         *user,
	})
}

// Refresh trades a refresh token for a new access token. The refresh token is rotated.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var refreshReq models.RefreshRequest
	if err := decodeJSON(w, r, maxJSONBody, &refreshReq); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validation.Struct(refreshReq); err != nil {
		writeError(w, r, err)
		return
	}

	response, err := h.authService.Refresh(r.Context(), h.userCollection, refreshReq.RefreshToken)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

// Register creates an account. Only callers allowed to manage users reach it.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var registerReq models.RegisterRequest
	if err := decodeJSON(w, r, maxJSONBody, &registerReq); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.authService.ValidateRegistration(&registerReq); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.ensureFree(r, registerReq); err != nil {
		writeError(w, r, err)
		return
	}

	passwordHash, err := h.authService.HashPassword(registerReq.Password)
	if err != nil {
		writeError(w, r, apperr.Internal("failed to hash password", err))
		return
	}

	user := models.User{
		ID:           primitive.NewObjectID(),
		Username:     registerReq.Username,
		Email:        registerReq.Email,
		PasswordHash: passwordHash,
		Role:         registerReq.Role,
		DisplayName:  registerReq.DisplayName,
		IsActive:     true,
	}
	if err := h.userCollection.InsertUser(r.Context(), user); err != nil {
		writeError(w, r, apperr.Internal("failed to create user", err))
		return
	}

	if claims, ok := middleware.GetUserFromContext(r.Context()); ok {
		log.WithFields(log.Fields{"username": user.Username, "role": user.Role, "by": claims.Username}).
			Info("User registered")
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *AuthHandler) ensureFree(r *http.Request, req models.RegisterRequest) error {
	_, err := h.userCollection.FindUserByUsername(r.Context(), req.Username)
	if err == nil {
		return errUsernameTaken
	}
	if !errors.Is(err, db.ErrNotFound) {
		return err
	}

	_, err = h.userCollection.FindUserByEmail(r.Context(), req.Email)
	if err == nil {
		return errEmailTaken
	}
	if !errors.Is(err, db.ErrNotFound) {
		return err
	}
	return nil
}

// GetProfile returns the current user's profile
func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		writeError(w, r, apperr.New(apperr.CodeAuthRequired, "authentication required", nil))
		return
	}

	user, err := h.userCollection.FindUserByID(r.Context(), claims.UserID)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, r, apperr.NotFound("user not found", err))
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
