package model

import "time"

// PostStatus 帖子状态
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusScheduled PostStatus = "scheduled"
	PostStatusPublished PostStatus = "published"
)

// Valid 是否为已知状态
func (s PostStatus) Valid() bool {
	switch s {
	case PostStatusDraft, PostStatusScheduled, PostStatusPublished:
		return true
	}
	return false
}

// Post 待发布到 LinkedIn 的帖子
type Post struct {
	ID          string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Topic       string     `json:"topic" gorm:"type:text;not null"`
	Content     string     `json:"content" gorm:"type:text;not null"`
	Status      PostStatus `json:"status" gorm:"type:varchar(16);index:idx_post_status_sched;not null;default:draft"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty" gorm:"index:idx_post_status_sched"`
	// RemoteID 发布成功后 LinkedIn 返回的分享 ID
	RemoteID    string     `json:"remote_id,omitempty" gorm:"type:varchar(128)"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at" gorm:"index"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (Post) TableName() string { return "posts" }

// IsPublished 已发布为终态
func (p *Post) IsPublished() bool { return p.Status == PostStatusPublished }

// IsDue 在 now 时刻是否到期：已排期且排期时间不晚于 now
func (p *Post) IsDue(now time.Time) bool {
	return p.Status == PostStatusScheduled && p.ScheduledAt != nil && !p.ScheduledAt.After(now)
}
