package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/d60-Lab/post-scheduler/config"
	"github.com/d60-Lab/post-scheduler/internal/engine"
	"github.com/d60-Lab/post-scheduler/internal/model"
	"github.com/d60-Lab/post-scheduler/internal/repository"
	"github.com/d60-Lab/post-scheduler/pkg/cache"
	"github.com/d60-Lab/post-scheduler/pkg/database"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func pct(vs []time.Duration, p float64) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	xs := append([]time.Duration(nil), vs...)
	sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
	k := int(math.Ceil(p*float64(len(xs)))) - 1
	if k < 0 {
		k = 0
	}
	if k >= len(xs) {
		k = len(xs) - 1
	}
	return xs[k]
}

func envInt(name string, def int) int {
	if s := os.Getenv(name); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			return v
		}
	}
	return def
}

// simTransport 模拟 LinkedIn：固定延迟 + 按比例失败
type simTransport struct {
	mu       sync.Mutex
	rnd      *rand.Rand
	latency  time.Duration
	failRate int
	calls    int
	samples  []time.Duration
}

func (t *simTransport) CreatePost(ctx context.Context, _, _ string) (string, error) {
	st := time.Now()
	select {
	case <-time.After(t.latency):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	t.samples = append(t.samples, time.Since(st))
	if t.rnd.Intn(100) < t.failRate {
		return "", errors.New("simulated 503")
	}
	return "urn:li:share:" + uuid.NewString(), nil
}

func main() {
	ctx := context.Background()
	cfg := must(config.Load())
	db := must(database.InitDB(cfg))
	defer database.Close(db)

	POSTS := envInt("POSTS", 500)
	FAIL := envInt("FAIL_RATE", 10) // 百分比
	LATENCY := envInt("LATENCY_MS", 5)
	MAXCYCLES := envInt("CYCLES", 20)

	// 清空表，保证每次运行可复现（仅限本地基准）
	_ = db.Exec("DELETE FROM posts").Error

	repo := repository.NewPostRepository(db)
	now := time.Now()
	for i := 0; i < POSTS; i++ {
		at := now.Add(-time.Duration(i) * time.Second)
		must(repo.Create(ctx, "bench", fmt.Sprintf("bench post %d", i), &at))
	}

	tr := &simTransport{rnd: rand.New(rand.NewSource(1)), latency: time.Duration(LATENCY) * time.Millisecond, failRate: FAIL}
	opts := []engine.Option{engine.WithMaxFailures(cfg.Scheduler.MaxFailures)}
	lockKind := "memory"
	if cfg.Redis.Enabled {
		rdb := must(cache.NewRedis(ctx, cfg.Redis))
		defer rdb.Close()
		opts = append(opts, engine.WithLocker(engine.NewRedisLocker(rdb, cfg.Scheduler.LockTTL)))
		lockKind = "redis"
	}
	eng := engine.New(repo, tr, opts...)

	var cycleDur []time.Duration
	var total engine.BatchResult
	cycles := 0
	for ; cycles < MAXCYCLES; cycles++ {
		res, err := eng.RunCycle(ctx, time.Now(), "bench-token")
		if err != nil {
			panic(err)
		}
		if res.Due == 0 {
			break
		}
		cycleDur = append(cycleDur, res.Duration)
		total.Published += res.Published
		total.Failed += res.Failed
		total.Partial += res.Partial
		total.Skipped += res.Skipped
	}

	posts := must(repo.List(ctx))
	left := 0
	for _, p := range posts {
		if p.Status != model.PostStatusPublished {
			left++
		}
	}

	var sum time.Duration
	for _, d := range cycleDur {
		sum += d
	}
	avg := time.Duration(0)
	if len(cycleDur) > 0 {
		avg = sum / time.Duration(len(cycleDur))
	}
	fmt.Printf("POSTS=%d FAIL_RATE=%d%% LATENCY=%dms LOCK=%s DB=%s\n", POSTS, FAIL, LATENCY, lockKind, cfg.Database.Driver)
	fmt.Printf("Cycles: %d avg=%v p95=%v max=%v\n", len(cycleDur), avg, pct(cycleDur, 0.95), pct(cycleDur, 1))
	fmt.Printf("Transport calls: %d p50=%v p99=%v\n", tr.calls, pct(tr.samples, 0.5), pct(tr.samples, 0.99))
	fmt.Printf("Outcomes: published=%d failed=%d partial=%d skipped=%d unpublished_left=%d\n",
		total.Published, total.Failed, total.Partial, total.Skipped, left)
	if tr.calls-total.Failed != total.Published+total.Partial {
		fmt.Println("WARNING: transport calls do not match outcomes")
	}
}
