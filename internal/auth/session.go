package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/d60-Lab/post-scheduler/config"
	"github.com/d60-Lab/post-scheduler/internal/linkedin"
)

var (
	ErrInvalidSession = errors.New("invalid session")
	ErrEmptyToken     = errors.New("empty linkedin access token")
)

// Claims 会话令牌内容，携带 LinkedIn 访问令牌供发布使用
type Claims struct {
	Name        string `json:"name,omitempty"`
	Email       string `json:"email,omitempty"`
	AccessToken string `json:"li_token"`
	jwt.RegisteredClaims
}

// Manager 签发与校验会话令牌，同时记住最近一次登录的 LinkedIn 令牌供定时发布使用
type Manager struct {
	secret   []byte
	expire   time.Duration
	now      func() time.Time
	fallback string

	mu        sync.RWMutex
	latest    string
	latestExp time.Time
}

// NewManager fallback 为配置中的静态令牌，可为空
func NewManager(cfg config.JWTConfig, fallback string) *Manager {
	return &Manager{secret: []byte(cfg.Secret), expire: cfg.Expire, now: time.Now, fallback: fallback}
}

// Issue 为已通过 LinkedIn 校验的用户签发会话
func (m *Manager) Issue(p *linkedin.Profile, accessToken string) (string, time.Time, error) {
	if accessToken == "" {
		return "", time.Time{}, ErrEmptyToken
	}
	now := m.now()
	exp := now.Add(m.expire)
	claims := Claims{
		Name:        p.Name,
		Email:       p.Email,
		AccessToken: accessToken,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.Sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}

	m.mu.Lock()
	m.latest, m.latestExp = accessToken, exp
	m.mu.Unlock()
	return signed, exp, nil
}

// Parse 校验签名与过期时间
func (m *Manager) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if claims.AccessToken == "" {
		return nil, fmt.Errorf("%w: no access token", ErrInvalidSession)
	}
	return claims, nil
}

// Remember 记录一个仍在有效期内的会话令牌
func (m *Manager) Remember(c *Claims) {
	if c == nil || c.ExpiresAt == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ExpiresAt.Time.After(m.latestExp) {
		m.latest, m.latestExp = c.AccessToken, c.ExpiresAt.Time
	}
}

// Token 实现 scheduler.TokenSource：优先最近会话的令牌，过期后回落到静态令牌
func (m *Manager) Token(_ context.Context) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.latest != "" && m.now().Before(m.latestExp) {
		return m.latest
	}
	return m.fallback
}
