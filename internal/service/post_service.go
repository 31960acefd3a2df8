package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/d60-Lab/post-scheduler/internal/engine"
	"github.com/d60-Lab/post-scheduler/internal/generator"
	"github.com/d60-Lab/post-scheduler/internal/model"
	"github.com/d60-Lab/post-scheduler/internal/repository"
	"github.com/d60-Lab/post-scheduler/pkg/logger"
)

var (
	ErrEmptyContent      = errors.New("content is empty")
	ErrStatusNotSettable = errors.New("status can only be set to draft or scheduled")
)

// Publisher 发布引擎中服务层用到的部分
type Publisher interface {
	PublishNow(ctx context.Context, id, token string) (engine.Outcome, error)
	Reset(id string)
}

// PublishResult 立即发布的结果，Post 为发布后的最新状态（帖子不存在时为空）
type PublishResult struct {
	Outcome engine.Outcome `json:"outcome"`
	Post    *model.Post    `json:"post,omitempty"`
}

// PostService 帖子服务：生成、保存、编辑、排期、发布
type PostService interface {
	Generate(ctx context.Context, topic string) (string, error)
	Save(ctx context.Context, topic, content string, scheduledAt *time.Time) (*model.Post, error)
	Get(ctx context.Context, id string) (*model.Post, error)
	List(ctx context.Context) ([]*model.Post, error)
	Update(ctx context.Context, id, content string) (*model.Post, error)
	Schedule(ctx context.Context, id string, at time.Time) (*model.Post, error)
	SetStatus(ctx context.Context, id string, status model.PostStatus) (*model.Post, error)
	Delete(ctx context.Context, id string) error
	PublishNow(ctx context.Context, id, token string) (*PublishResult, error)
}

type postService struct {
	repo      repository.PostRepository
	gen       generator.Generator
	publisher Publisher
}

func NewPostService(repo repository.PostRepository, gen generator.Generator, publisher Publisher) PostService {
	return &postService{repo: repo, gen: gen, publisher: publisher}
}

func (s *postService) Generate(ctx context.Context, topic string) (string, error) {
	content, err := s.gen.Generate(ctx, topic)
	if err != nil {
		logger.Warn("generate post failed", zap.String("topic", topic), zap.Error(err))
		return "", err
	}
	return content, nil
}

func (s *postService) Save(ctx context.Context, topic, content string, scheduledAt *time.Time) (*model.Post, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	return s.repo.Create(ctx, strings.TrimSpace(topic), content, scheduledAt)
}

func (s *postService) Get(ctx context.Context, id string) (*model.Post, error) {
	return s.repo.Get(ctx, id)
}

func (s *postService) List(ctx context.Context) ([]*model.Post, error) {
	return s.repo.List(ctx)
}

// Update 修改正文；编辑过的帖子重新计算失败次数
func (s *postService) Update(ctx context.Context, id, content string) (*model.Post, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	p, err := s.repo.UpdateContent(ctx, id, content)
	if err != nil {
		return nil, err
	}
	s.publisher.Reset(id)
	return p, nil
}

func (s *postService) Schedule(ctx context.Context, id string, at time.Time) (*model.Post, error) {
	p, err := s.repo.SetSchedule(ctx, id, at)
	if err != nil {
		return nil, err
	}
	s.publisher.Reset(id)
	return p, nil
}

// SetStatus 仅允许草稿与排期之间切换，发布必须经过 PublishNow
func (s *postService) SetStatus(ctx context.Context, id string, status model.PostStatus) (*model.Post, error) {
	if status == model.PostStatusPublished {
		return nil, ErrStatusNotSettable
	}
	p, err := s.repo.SetStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	s.publisher.Reset(id)
	return p, nil
}

func (s *postService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.publisher.Reset(id)
	return nil
}

// PublishNow 立即发布，返回结果与帖子最新状态
func (s *postService) PublishNow(ctx context.Context, id, token string) (*PublishResult, error) {
	o, pubErr := s.publisher.PublishNow(ctx, id, token)
	res := &PublishResult{Outcome: o}

	p, err := s.repo.Get(context.WithoutCancel(ctx), id)
	switch {
	case err == nil:
		res.Post = p
	case !errors.Is(err, repository.ErrPostNotFound):
		logger.Warn("reload post after publish failed", zap.String("post_id", id), zap.Error(err))
	}
	return res, pubErr
}
