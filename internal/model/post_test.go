package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPost_IsDue(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	cases := []struct {
		name string
		post Post
		want bool
	}{
		{"scheduled in past", Post{Status: PostStatusScheduled, ScheduledAt: &past}, true},
		{"scheduled exactly now", Post{Status: PostStatusScheduled, ScheduledAt: &now}, true},
		{"scheduled in future", Post{Status: PostStatusScheduled, ScheduledAt: &future}, false},
		{"scheduled without time", Post{Status: PostStatusScheduled}, false},
		{"draft with past time", Post{Status: PostStatusDraft, ScheduledAt: &past}, false},
		{"published with past time", Post{Status: PostStatusPublished, ScheduledAt: &past}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.post.IsDue(now))
		})
	}
}

func TestPostStatus_Valid(t *testing.T) {
	assert.True(t, PostStatusDraft.Valid())
	assert.True(t, PostStatusPublished.Valid())
	assert.False(t, PostStatus("archived").Valid())
}
