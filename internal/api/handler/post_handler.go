package handler

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/post-scheduler/internal/api/middleware"
	"github.com/d60-Lab/post-scheduler/internal/engine"
	"github.com/d60-Lab/post-scheduler/internal/model"
	"github.com/d60-Lab/post-scheduler/pkg/response"
)

type generateRequest struct {
	Topic string `json:"topic" binding:"required"`
}

type saveRequest struct {
	Topic       string     `json:"topic"`
	Content     string     `json:"content" binding:"required"`
	ScheduledAt *time.Time `json:"scheduled_at"`
}

type updateRequest struct {
	Content string `json:"content" binding:"required"`
}

type scheduleRequest struct {
	ScheduledAt time.Time `json:"scheduled_at" binding:"required"`
}

type statusRequest struct {
	Status model.PostStatus `json:"status" binding:"required,oneof=draft scheduled"`
}

// Generate 根据主题生成正文（不保存）
// @Summary 生成帖子正文
// @Tags 帖子
// @Accept json
// @Produce json
// @Param request body generateRequest true "主题"
// @Success 200 {object} response.Response{data=map[string]string}
// @Failure 400 {object} response.Response
// @Failure 502 {object} response.Response
// @Failure 503 {object} response.Response
// @Router /api/v1/posts/generate [post]
func (h *Handler) Generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	content, err := h.posts.Generate(c.Request.Context(), req.Topic)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"topic": req.Topic, "content": content})
}

// CreatePost 保存帖子，带 scheduled_at 则进入排期
// @Summary 保存帖子
// @Tags 帖子
// @Accept json
// @Produce json
// @Param request body saveRequest true "帖子"
// @Success 201 {object} response.Response{data=model.Post}
// @Failure 400 {object} response.Response
// @Router /api/v1/posts [post]
func (h *Handler) CreatePost(c *gin.Context) {
	var req saveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	p, err := h.posts.Save(c.Request.Context(), req.Topic, req.Content, req.ScheduledAt)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, p)
}

// ListPosts 按创建时间倒序列出帖子
// @Summary 帖子列表
// @Tags 帖子
// @Produce json
// @Success 200 {object} response.Response{data=[]model.Post}
// @Router /api/v1/posts [get]
func (h *Handler) ListPosts(c *gin.Context) {
	posts, err := h.posts.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"total": len(posts), "list": posts})
}

// GetPost 查询单个帖子
// @Summary 帖子详情
// @Tags 帖子
// @Produce json
// @Param id path string true "帖子ID"
// @Success 200 {object} response.Response{data=model.Post}
// @Failure 404 {object} response.Response
// @Router /api/v1/posts/{id} [get]
func (h *Handler) GetPost(c *gin.Context) {
	p, err := h.posts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, p)
}

// UpdatePost 修改正文
// @Summary 修改帖子
// @Tags 帖子
// @Accept json
// @Produce json
// @Param id path string true "帖子ID"
// @Param request body updateRequest true "正文"
// @Success 200 {object} response.Response{data=model.Post}
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/posts/{id} [put]
func (h *Handler) UpdatePost(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	p, err := h.posts.Update(c.Request.Context(), c.Param("id"), req.Content)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, p)
}

// SchedulePost 设置排期
// @Summary 排期帖子
// @Tags 帖子
// @Accept json
// @Produce json
// @Param id path string true "帖子ID"
// @Param request body scheduleRequest true "排期时间（RFC3339）"
// @Success 200 {object} response.Response{data=model.Post}
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/posts/{id}/schedule [put]
func (h *Handler) SchedulePost(c *gin.Context) {
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	p, err := h.posts.Schedule(c.Request.Context(), c.Param("id"), req.ScheduledAt)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, p)
}

// SetPostStatus 在草稿与排期之间切换
// @Summary 修改帖子状态
// @Tags 帖子
// @Accept json
// @Produce json
// @Param id path string true "帖子ID"
// @Param request body statusRequest true "状态"
// @Success 200 {object} response.Response{data=model.Post}
// @Failure 400 {object} response.Response
// @Router /api/v1/posts/{id}/status [put]
func (h *Handler) SetPostStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	p, err := h.posts.SetStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, p)
}

// DeletePost 删除帖子
// @Summary 删除帖子
// @Tags 帖子
// @Param id path string true "帖子ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/posts/{id} [delete]
func (h *Handler) DeletePost(c *gin.Context) {
	if err := h.posts.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, nil)
}

// PublishPost 立即发布到 LinkedIn
// @Summary 立即发布
// @Description 部分成功（远端已发布但本地未确认）返回 202，且 retryable=false
// @Tags 帖子
// @Produce json
// @Security BearerAuth
// @Param id path string true "帖子ID"
// @Success 200 {object} response.Response{data=service.PublishResult}
// @Success 202 {object} response.Response{data=service.PublishResult}
// @Failure 401 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 502 {object} response.Response{data=service.PublishResult}
// @Router /api/v1/posts/{id}/publish [post]
func (h *Handler) PublishPost(c *gin.Context) {
	claims, ok := middleware.Claims(c)
	if !ok {
		response.Unauthorized(c, "missing session")
		return
	}
	res, err := h.posts.PublishNow(c.Request.Context(), c.Param("id"), claims.AccessToken)
	var partial *engine.PartialSuccess
	var transport *engine.TransportFailure
	switch {
	case err == nil:
		response.Success(c, res)
	case errors.As(err, &partial):
		response.Accepted(c, "published remotely, local state not confirmed", res)
	case errors.As(err, &transport):
		response.BadGateway(c, err.Error(), res)
	default:
		writeError(c, err)
	}
}
