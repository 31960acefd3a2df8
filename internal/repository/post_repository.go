package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/d60-Lab/post-scheduler/internal/model"
)

var (
	ErrPostNotFound    = errors.New("post not found")
	ErrPostPublished   = errors.New("post already published")
	ErrInvalidStatus   = errors.New("invalid post status")
	ErrMissingSchedule = errors.New("scheduled post requires scheduled_at")
)

// StoreError 存储层故障（连接不可用、SQL 执行失败等）
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("post store %s: %v", e.Op, e.Err) }

func (e *StoreError) Unwrap() error { return e.Err }

// PostRepository 帖子仓储接口，所有写操作返回写入后的最新状态
type PostRepository interface {
	// Create 创建帖子，带排期时间则为 scheduled，否则为 draft
	Create(ctx context.Context, topic, content string, scheduledAt *time.Time) (*model.Post, error)

	// Get 根据 ID 查询
	Get(ctx context.Context, id string) (*model.Post, error)

	// UpdateContent 修改正文
	UpdateContent(ctx context.Context, id, content string) (*model.Post, error)

	// SetSchedule 设置排期时间并置为 scheduled
	SetSchedule(ctx context.Context, id string, at time.Time) (*model.Post, error)

	// SetStatus 修改状态
	SetStatus(ctx context.Context, id string, status model.PostStatus) (*model.Post, error)

	// MarkPublished 记录发布结果并置为 published
	MarkPublished(ctx context.Context, id, remoteID string, at time.Time) (*model.Post, error)

	// List 按创建时间倒序列出全部帖子
	List(ctx context.Context) ([]*model.Post, error)

	// Delete 删除帖子（已发布的也可删除，不影响远端）
	Delete(ctx context.Context, id string) error
}

type postRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) PostRepository { return &postRepository{db: db} }

func (r *postRepository) Create(ctx context.Context, topic, content string, scheduledAt *time.Time) (*model.Post, error) {
	p := &model.Post{
		ID:      uuid.New().String(),
		Topic:   topic,
		Content: content,
		Status:  model.PostStatusDraft,
	}
	if scheduledAt != nil {
		at := scheduledAt.UTC()
		p.ScheduledAt = &at
		p.Status = model.PostStatusScheduled
	}
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, &StoreError{Op: "create", Err: err}
	}
	return p, nil
}

func (r *postRepository) Get(ctx context.Context, id string) (*model.Post, error) {
	var p model.Post
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, &StoreError{Op: "get", Err: err}
	}
	return &p, nil
}

func (r *postRepository) UpdateContent(ctx context.Context, id, content string) (*model.Post, error) {
	return r.mutate(ctx, "update", id, map[string]any{"content": content})
}

func (r *postRepository) SetSchedule(ctx context.Context, id string, at time.Time) (*model.Post, error) {
	return r.mutate(ctx, "schedule", id, map[string]any{
		"scheduled_at": at.UTC(),
		"status":       model.PostStatusScheduled,
	})
}

func (r *postRepository) SetStatus(ctx context.Context, id string, status model.PostStatus) (*model.Post, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}
	switch status {
	case model.PostStatusPublished:
		return r.mutate(ctx, "set status", id, map[string]any{
			"status":       status,
			"published_at": time.Now().UTC(),
		})
	case model.PostStatusScheduled:
		// 排期状态必须带排期时间
		var out *model.Post
		err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			cur, err := (&postRepository{db: tx}).Get(ctx, id)
			if err != nil {
				return err
			}
			if cur.IsPublished() {
				return ErrPostPublished
			}
			if cur.ScheduledAt == nil {
				return ErrMissingSchedule
			}
			out, err = (&postRepository{db: tx}).mutate(ctx, "set status", id, map[string]any{"status": status})
			return err
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	default:
		return r.mutate(ctx, "set status", id, map[string]any{"status": status})
	}
}

func (r *postRepository) MarkPublished(ctx context.Context, id, remoteID string, at time.Time) (*model.Post, error) {
	return r.mutate(ctx, "mark published", id, map[string]any{
		"status":       model.PostStatusPublished,
		"remote_id":    remoteID,
		"published_at": at.UTC(),
	})
}

func (r *postRepository) List(ctx context.Context) ([]*model.Post, error) {
	var posts []*model.Post
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Find(&posts).Error
	if err != nil {
		return nil, &StoreError{Op: "list", Err: err}
	}
	return posts, nil
}

func (r *postRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Post{})
	if res.Error != nil {
		return &StoreError{Op: "delete", Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return ErrPostNotFound
	}
	return nil
}

// mutate 只更新未发布的帖子；未命中时区分不存在与已发布
func (r *postRepository) mutate(ctx context.Context, op, id string, updates map[string]any) (*model.Post, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Post{}).
		Where("id = ? AND status <> ?", id, model.PostStatusPublished).
		Updates(updates)
	if res.Error != nil {
		return nil, &StoreError{Op: op, Err: res.Error}
	}
	if res.RowsAffected == 0 {
		cur, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if cur.IsPublished() {
			return nil, ErrPostPublished
		}
		return nil, &StoreError{Op: op, Err: errors.New("no rows updated")}
	}
	return r.Get(ctx, id)
}
