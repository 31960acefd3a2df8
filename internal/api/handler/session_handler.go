package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/post-scheduler/internal/api/middleware"
	"github.com/d60-Lab/post-scheduler/internal/engine"
	"github.com/d60-Lab/post-scheduler/internal/linkedin"
	"github.com/d60-Lab/post-scheduler/pkg/logger"
	"github.com/d60-Lab/post-scheduler/pkg/response"
)

type sessionRequest struct {
	AccessToken string `json:"access_token" binding:"required"`
}

type sessionResponse struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expires_at"`
	Profile   *linkedin.Profile `json:"profile"`
}

// CreateSession 用 LinkedIn 访问令牌换取会话
// @Summary 登录
// @Tags 会话
// @Accept json
// @Produce json
// @Param request body sessionRequest true "LinkedIn 访问令牌"
// @Success 200 {object} response.Response{data=sessionResponse}
// @Failure 401 {object} response.Response
// @Failure 502 {object} response.Response
// @Router /api/v1/auth/session [post]
func (h *Handler) CreateSession(c *gin.Context) {
	var req sessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	profile, err := h.profiles.GetProfile(c.Request.Context(), req.AccessToken)
	if err != nil {
		var apiErr *linkedin.APIError
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden) {
			response.Unauthorized(c, "linkedin rejected the access token")
			return
		}
		logger.Warn("linkedin profile lookup failed", zap.Error(err))
		response.BadGateway(c, "linkedin profile lookup failed", nil)
		return
	}
	token, exp, err := h.sessions.Issue(profile, req.AccessToken)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, sessionResponse{Token: token, ExpiresAt: exp, Profile: profile})
}

// Me 当前会话用户
// @Summary 当前用户
// @Tags 会话
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=linkedin.Profile}
// @Failure 401 {object} response.Response
// @Router /api/v1/auth/me [get]
func (h *Handler) Me(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok {
		response.Unauthorized(c, "missing session")
		return
	}
	profile, err := h.profiles.GetProfile(c.Request.Context(), claims.AccessToken)
	if err != nil {
		// 远端不可用时退回会话中的信息
		logger.Warn("linkedin profile lookup failed", zap.Error(err))
		profile = &linkedin.Profile{Sub: claims.Subject, Name: claims.Name, Email: claims.Email}
	}
	response.Success(c, profile)
}

// RunScheduler 立即执行一轮定时发布
// @Summary 手动触发一轮定时发布
// @Tags 调度
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=engine.BatchResult}
// @Failure 409 {object} response.Response
// @Router /api/v1/scheduler/run [post]
func (h *Handler) RunScheduler(c *gin.Context) {
	res, err := h.cycles.Trigger(c.Request.Context())
	if err != nil {
		if errors.Is(err, engine.ErrCycleInFlight) {
			response.Conflict(c, err.Error())
			return
		}
		writeError(c, err)
		return
	}
	response.Success(c, res)
}

// SchedulerStatus 调度器状态与最近一轮结果
// @Summary 调度器状态
// @Tags 调度
// @Produce json
// @Success 200 {object} response.Response{data=scheduler.Status}
// @Router /api/v1/scheduler/status [get]
func (h *Handler) SchedulerStatus(c *gin.Context) {
	response.Success(c, h.cycles.Status())
}
