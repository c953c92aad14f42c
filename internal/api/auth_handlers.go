package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"taskdesk/internal/auth"
	"taskdesk/internal/store"
	"taskdesk/internal/user"
)

// AuthAPI handles account registration, login, and the user directory.
type AuthAPI struct {
	users  store.UserStore
	tokens *auth.Tokens
}

func NewAuthAPI(users store.UserStore, tokens *auth.Tokens) *AuthAPI {
	return &AuthAPI{users: users, tokens: tokens}
}

func (a *AuthAPI) RegisterRoutes(router *gin.Engine, authenticate gin.HandlerFunc) {
	grp := router.Group("/api/auth")
	{
		grp.POST("/register", a.Register)
		grp.POST("/login", a.Login)
		grp.GET("/users", authenticate, a.ListUsers)
	}
}

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role" binding:"required"`
	Group    string `json:"group"`
}

func (a *AuthAPI) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if !user.ValidRole(req.Role) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
		return
	}
	if !user.ValidGroup(req.Group) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group"})
		return
	}
	// Managers span the whole department; only leaders and members carry a
	// group.
	if req.Group != "" && req.Role != user.RoleLeader && req.Role != user.RoleMember {
		c.JSON(http.StatusBadRequest, gin.H{"error": "group applies to leaders and members only"})
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Error().Err(err).Msg("hash password")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
		return
	}
	u := &user.User{
		Name:       strings.TrimSpace(req.Name),
		Email:      strings.ToLower(strings.TrimSpace(req.Email)),
		Password:   hashed,
		Role:       req.Role,
		Department: user.DefaultDepartment,
		Group:      req.Group,
		CreatedAt:  time.Now(),
	}
	if err := a.users.InsertUser(c.Request.Context(), u); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "email already registered"})
			return
		}
		log.Error().Err(err).Msg("insert user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
		return
	}

	token, err := a.tokens.Generate(*u)
	if err != nil {
		log.Error().Err(err).Msg("generate token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "data": gin.H{"token": token, "user": u}})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (a *AuthAPI) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	u, err := a.users.UserByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil || !auth.CheckPassword(req.Password, u.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := a.tokens.Generate(*u)
	if err != nil {
		log.Error().Err(err).Msg("generate token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"token": token, "user": u}})
}

// ListUsers returns the department directory for the assignment dropdowns.
func (a *AuthAPI) ListUsers(c *gin.Context) {
	users, err := a.users.ListUsers(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": users})
}
