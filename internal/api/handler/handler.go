package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/post-scheduler/internal/auth"
	"github.com/d60-Lab/post-scheduler/internal/engine"
	"github.com/d60-Lab/post-scheduler/internal/generator"
	"github.com/d60-Lab/post-scheduler/internal/linkedin"
	"github.com/d60-Lab/post-scheduler/internal/repository"
	"github.com/d60-Lab/post-scheduler/internal/scheduler"
	"github.com/d60-Lab/post-scheduler/internal/service"
	"github.com/d60-Lab/post-scheduler/pkg/response"
)

// ProfileFetcher 通过访问令牌查询 LinkedIn 用户资料
type ProfileFetcher interface {
	GetProfile(ctx context.Context, token string) (*linkedin.Profile, error)
}

// CycleTrigger 手动触发一轮定时发布
type CycleTrigger interface {
	Trigger(ctx context.Context) (engine.BatchResult, error)
	Status() scheduler.Status
}

// Handler HTTP 处理器
type Handler struct {
	posts    service.PostService
	sessions *auth.Manager
	profiles ProfileFetcher
	cycles   CycleTrigger
}

func NewHandler(posts service.PostService, sessions *auth.Manager, profiles ProfileFetcher, cycles CycleTrigger) *Handler {
	return &Handler{posts: posts, sessions: sessions, profiles: profiles, cycles: cycles}
}

// Health 存活检查
// @Summary 健康检查
// @Tags 系统
// @Produce json
// @Success 200 {object} response.Response
// @Router /api/v1/health [get]
func (h *Handler) Health(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok"})
}

// writeError 将领域错误映射为响应
func writeError(c *gin.Context, err error) {
	var genErr *generator.GenerationError
	switch {
	case errors.Is(err, repository.ErrPostNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, repository.ErrPostPublished),
		errors.Is(err, engine.ErrPostLocked),
		errors.Is(err, engine.ErrCycleInFlight),
		errors.Is(err, engine.ErrOutcomeUnknown):
		response.Conflict(c, err.Error())
	case errors.Is(err, service.ErrEmptyContent),
		errors.Is(err, service.ErrStatusNotSettable),
		errors.Is(err, repository.ErrInvalidStatus),
		errors.Is(err, repository.ErrMissingSchedule),
		errors.Is(err, generator.ErrEmptyTopic):
		response.BadRequest(c, err.Error())
	case errors.Is(err, engine.ErrNoCredential):
		response.Unauthorized(c, err.Error())
	case errors.Is(err, generator.ErrNotConfigured):
		response.JSON(c, http.StatusServiceUnavailable, response.CodeUpstream, err.Error(), nil)
	case errors.As(err, &genErr):
		response.BadGateway(c, err.Error(), nil)
	default:
		response.InternalError(c, err)
	}
	_ = c.Error(err)
}
