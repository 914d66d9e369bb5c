package handler

import (
	"net/http"

	"enchiridion/internal/logging"
	"enchiridion/internal/middleware"
	"enchiridion/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler struct {
	svc *service.AuthService
	log *zap.Logger
}

func NewAuthHandler(svc *service.AuthService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, log: log.Named("auth")}
}

type RegisterRequest struct {
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required,min=8"`
	FullName     string `json:"full_name" binding:"required"`
	ReferralCode string `json:"referral_code"` // own code; generated when empty
	ReferredBy   string `json:"referred_by"`   // referrer's code
	State        string `json:"state"`
	Country      string `json:"country"`
	Profession   string `json:"profession"`
	Phone        string `json:"phone"`
	Institution  string `json:"institution"`
}

// LoginRequest accepts the OAuth2 password form as well as JSON.
type LoginRequest struct {
	Username string `form:"username" json:"username" binding:"required"`
	Password string `form:"password" json:"password" binding:"required"`
}

type EmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type TokenRequest struct {
	Token string `json:"token" binding:"required"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	p, err := h.svc.Register(c.Request.Context(), service.RegisterInput{
		Email:        req.Email,
		Password:     req.Password,
		FullName:     req.FullName,
		ReferralCode: req.ReferralCode,
		ReferredBy:   req.ReferredBy,
		IP:           c.ClientIP(),
		State:        req.State,
		Country:      req.Country,
		Profession:   req.Profession,
		Phone:        req.Phone,
		Institution:  req.Institution,
	})
	if err != nil {
		respondError(c, h.log, err, "registration failed")
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "username and password are required")
		return
	}
	_, token, err := h.svc.Login(c.Request.Context(), req.Username, req.Password, c.ClientIP())
	if err != nil {
		respondError(c, h.log, err, "login failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
}

func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.svc.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		h.log.Error("forgot password", logging.Err(err))
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "if the account exists, a reset link has been sent"})
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.svc.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		respondError(c, h.log, err, "password reset failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password updated"})
}

func (h *AuthHandler) RequestVerifyToken(c *gin.Context) {
	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if err := h.svc.RequestVerify(c.Request.Context(), req.Email); err != nil {
		h.log.Error("request verify", logging.Err(err))
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "if the account exists, a verification link has been sent"})
}

func (h *AuthHandler) Verify(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	p, err := h.svc.Verify(c.Request.Context(), req.Token)
	if err != nil {
		respondError(c, h.log, err, "verification failed")
		return
	}
	c.JSON(http.StatusOK, p)
}

// Me returns the authenticated partner.
func (h *AuthHandler) Me(c *gin.Context) {
	p, err := h.svc.Me(c.Request.Context(), middleware.GetPartnerID(c))
	if err != nil {
		respondError(c, h.log, err, "failed to load profile")
		return
	}
	c.JSON(http.StatusOK, p)
}
