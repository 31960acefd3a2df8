package linkedin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/carlmjohnson/requests"
	"go.uber.org/zap"

	"github.com/d60-Lab/post-scheduler/pkg/logger"
)

const (
	DefaultBaseURL = "https://api.linkedin.com"

	userInfoPath = "/v2/userinfo"
	ugcPostsPath = "/v2/ugcPosts"

	restliProtocolVersion = "2.0.0"
	maxErrorBody          = 4 << 10
)

// ErrNoToken 未提供访问令牌
var ErrNoToken = errors.New("linkedin: access token required")

// Profile OpenID userinfo 返回的成员资料
type Profile struct {
	Sub     string `json:"sub"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture,omitempty"`
}

// AuthorURN 作者标识 urn:li:person:<sub>
func (p *Profile) AuthorURN() string { return "urn:li:person:" + p.Sub }

// APIError 非 2xx 响应，请求已被 LinkedIn 明确拒绝
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("linkedin %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// UnknownOutcomeError 发帖请求已发出但结果无法确认（超时、连接中断、响应无法解析）。
// 远端可能已经发布，调用方不可盲目重试。
type UnknownOutcomeError struct {
	RemoteID string
	Err      error
}

func (e *UnknownOutcomeError) Error() string {
	return fmt.Sprintf("linkedin create post: outcome unknown: %v", e.Err)
}

func (e *UnknownOutcomeError) Unwrap() error { return e.Err }

// Ambiguous 标记结果不确定
func (e *UnknownOutcomeError) Ambiguous() bool { return true }

// RemoteIDHint 响应头中已拿到的分享 ID（可能为空）
func (e *UnknownOutcomeError) RemoteIDHint() string { return e.RemoteID }

// NotSentError 发帖请求没有发出（资料查询失败或连接未建立），可以安全重试
type NotSentError struct {
	Op  string
	Err error
}

func (e *NotSentError) Error() string {
	return fmt.Sprintf("linkedin create post: %s: %v", e.Op, e.Err)
}

func (e *NotSentError) Unwrap() error { return e.Err }

// Ambiguous 即使底层是超时也不算结果不明
func (e *NotSentError) Ambiguous() bool { return false }

// ProfileCache 资料缓存，失败不影响主流程
type ProfileCache interface {
	Get(ctx context.Context, token string) (*Profile, bool)
	Set(ctx context.Context, token string, p *Profile)
}

// Client LinkedIn REST 客户端
type Client struct {
	baseURL    string
	httpClient *http.Client
	profiles   ProfileCache
}

type Option func(*Client)

// WithHTTPClient 替换底层 http.Client（测试中指向 httptest）
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithProfileCache 启用资料缓存
func WithProfileCache(pc ProfileCache) Option {
	return func(c *Client) { c.profiles = pc }
}

func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetProfile 查询令牌对应的成员资料
func (c *Client) GetProfile(ctx context.Context, token string) (*Profile, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	if c.profiles != nil {
		if p, ok := c.profiles.Get(ctx, token); ok {
			return p, nil
		}
	}

	var p Profile
	err := requests.URL(c.baseURL+userInfoPath).
		Client(c.httpClient).
		Header("Authorization", "Bearer "+token).
		AddValidator(checkStatus("get profile")).
		ToJSON(&p).
		Fetch(ctx)
	if err != nil {
		return nil, err
	}
	if p.Sub == "" {
		return nil, errors.New("linkedin get profile: empty subject")
	}
	if c.profiles != nil {
		c.profiles.Set(ctx, token, &p)
	}
	return &p, nil
}

type ugcText struct {
	Text string `json:"text"`
}

type ugcShareContent struct {
	ShareCommentary    ugcText `json:"shareCommentary"`
	ShareMediaCategory string  `json:"shareMediaCategory"`
}

type ugcSpecificContent struct {
	ShareContent ugcShareContent `json:"com.linkedin.ugc.ShareContent"`
}

type ugcVisibility struct {
	MemberNetworkVisibility string `json:"com.linkedin.ugc.MemberNetworkVisibility"`
}

type ugcPost struct {
	Author          string             `json:"author"`
	LifecycleState  string             `json:"lifecycleState"`
	SpecificContent ugcSpecificContent `json:"specificContent"`
	Visibility      ugcVisibility      `json:"visibility"`
}

func newTextPost(author, text string) *ugcPost {
	return &ugcPost{
		Author:         author,
		LifecycleState: "PUBLISHED",
		SpecificContent: ugcSpecificContent{
			ShareContent: ugcShareContent{
				ShareCommentary:    ugcText{Text: text},
				ShareMediaCategory: "NONE",
			},
		},
		Visibility: ugcVisibility{MemberNetworkVisibility: "PUBLIC"},
	}
}

// CreatePost 以令牌所属成员身份发布纯文本帖子，返回 LinkedIn 分享 ID。
// 资料查询失败或连接未建立时帖子尚未发出，返回 *NotSentError；发帖请求本身的非 2xx
// 返回 *APIError；请求发出后结果不明返回 *UnknownOutcomeError。
func (c *Client) CreatePost(ctx context.Context, token, text string) (string, error) {
	profile, err := c.GetProfile(ctx, token)
	if err != nil {
		return "", &NotSentError{Op: "get profile", Err: err}
	}

	var remoteID string
	err = requests.URL(c.baseURL+ugcPostsPath).
		Method(http.MethodPost).
		Client(c.httpClient).
		Header("Authorization", "Bearer "+token).
		Header("X-Restli-Protocol-Version", restliProtocolVersion).
		BodyJSON(newTextPost(profile.AuthorURN(), text)).
		ContentType("application/json").
		AddValidator(checkStatus("create post")).
		Handle(func(res *http.Response) error {
			id, err := readRemoteID(res)
			remoteID = id
			return err
		}).
		Fetch(ctx)
	if err == nil {
		logger.Debug("linkedin post created", zap.String("remote_id", remoteID))
		return remoteID, nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return "", err
	}
	if notSent(err) {
		return "", &NotSentError{Op: "dial", Err: err}
	}
	return "", &UnknownOutcomeError{RemoteID: remoteID, Err: err}
}

func readRemoteID(res *http.Response) (string, error) {
	id := res.Header.Get("X-RestLi-Id")
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return id, err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		if id == "" {
			return "", errors.New("response carries no post id")
		}
		return id, nil
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return id, fmt.Errorf("decode create post response: %w", err)
	}
	if out.ID != "" {
		id = out.ID
	}
	if id == "" {
		return "", errors.New("response carries no post id")
	}
	return id, nil
}

func checkStatus(op string) requests.ResponseHandler {
	return func(res *http.Response) error {
		if res.StatusCode >= 200 && res.StatusCode < 300 {
			return nil
		}
		body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return &APIError{Op: op, StatusCode: res.StatusCode, Body: strings.TrimSpace(string(body))}
	}
}

// notSent 连接阶段失败，请求未到达远端
func notSent(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}
