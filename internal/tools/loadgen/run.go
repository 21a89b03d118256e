package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Config drives synthetic traffic against a running server.
//
// Profiles:
//   - auth: repeated logins plus an occasional wrong password
//   - session: authenticated reads of /me and /me/sessions
//   - mixed: both, plus logout and re-login
type Config struct {
	BaseURL     string
	Profile     string
	Duration    time.Duration
	RPS         int
	Concurrency int
	Seed        uint64
	Client      *http.Client
}

type Result struct {
	TotalRequests int
	Failures      int
	StatusClasses map[string]int
}

type worker struct {
	cfg      Config
	client   *http.Client
	email    string
	password string
	token    string
	rng      *rand.Rand
}

func Run(ctx context.Context, cfg Config) (Result, error) {
	cfg.Profile = normalizeProfile(cfg.Profile)
	if cfg.Profile != "auth" && cfg.Profile != "session" && cfg.Profile != "mixed" {
		return Result{}, fmt.Errorf("unknown profile %q", cfg.Profile)
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 10
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	runCtx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()
	limiter := rate.NewLimiter(rate.Limit(cfg.RPS), cfg.RPS)

	var mu sync.Mutex
	res := Result{StatusClasses: map[string]int{}}
	record := func(status int, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil && runCtx.Err() != nil {
			return
		}
		res.TotalRequests++
		if err != nil {
			res.Failures++
			res.StatusClasses["error"]++
			return
		}
		res.StatusClasses[classifyStatusClass(status)]++
		if status >= 500 {
			res.Failures++
		}
	}

	runID := time.Now().UnixNano()
	g, gctx := errgroup.WithContext(runCtx)
	for i := 0; i < cfg.Concurrency; i++ {
		w := &worker{
			cfg:      cfg,
			client:   client,
			email:    fmt.Sprintf("loadgen-%d-%d@example.test", runID, i),
			password: fmt.Sprintf("loadgen-pass-%d", i),
			rng:      rand.New(rand.NewPCG(cfg.Seed, uint64(i))),
		}
		g.Go(func() error {
			if err := w.bootstrap(gctx, record); err != nil {
				if gctx.Err() != nil {
					return nil
				}
				return err
			}
			for {
				if err := limiter.Wait(gctx); err != nil {
					return nil
				}
				w.step(gctx, record)
			}
		})
	}
	err := g.Wait()
	return res, err
}

// bootstrap registers the worker's credential and opens its first session.
func (w *worker) bootstrap(ctx context.Context, record func(int, error)) error {
	status, _, err := w.do(ctx, http.MethodPost, "/api/v1/auth/register", map[string]string{"email": w.email, "password": w.password})
	record(status, err)
	if err != nil {
		return fmt.Errorf("register %s: %w", w.email, err)
	}
	if status != http.StatusCreated {
		return fmt.Errorf("register %s: unexpected status %d", w.email, status)
	}
	if !w.login(ctx, record) {
		return errors.New("initial login failed")
	}
	return nil
}

func (w *worker) login(ctx context.Context, record func(int, error)) bool {
	status, body, err := w.do(ctx, http.MethodPost, "/api/v1/auth/login", map[string]string{"email": w.email, "password": w.password})
	record(status, err)
	if err != nil || status != http.StatusOK {
		return false
	}
	var env struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if json.Unmarshal(body, &env) != nil || env.Data.Token == "" {
		return false
	}
	w.token = env.Data.Token
	return true
}

func (w *worker) step(ctx context.Context, record func(int, error)) {
	switch w.cfg.Profile {
	case "auth":
		w.authStep(ctx, record)
	case "session":
		w.sessionStep(ctx, record)
	default:
		if w.rng.IntN(3) == 0 {
			w.authStep(ctx, record)
		} else {
			w.sessionStep(ctx, record)
		}
	}
}

func (w *worker) authStep(ctx context.Context, record func(int, error)) {
	if w.rng.IntN(10) == 0 {
		status, _, err := w.do(ctx, http.MethodPost, "/api/v1/auth/login", map[string]string{"email": w.email, "password": "not-the-password"})
		record(status, err)
		return
	}
	w.login(ctx, record)
}

func (w *worker) sessionStep(ctx context.Context, record func(int, error)) {
	switch n := w.rng.IntN(10); {
	case n < 6:
		status, _, err := w.do(ctx, http.MethodGet, "/api/v1/me", nil)
		record(status, err)
	case n < 9:
		status, _, err := w.do(ctx, http.MethodGet, "/api/v1/me/sessions", nil)
		record(status, err)
	default:
		status, _, err := w.do(ctx, http.MethodPost, "/api/v1/auth/logout", nil)
		record(status, err)
		w.login(ctx, record)
	}
}

func (w *worker) do(ctx context.Context, method, path string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, w.cfg.BaseURL+path, body)
	if err != nil {
		return 0, nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if w.token != "" {
		req.Header.Set("Authorization", "Bearer "+w.token)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return resp.StatusCode, raw, err
}

func classifyStatusClass(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500 && status < 600:
		return "5xx"
	default:
		return "other"
	}
}

func normalizeProfile(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	if p == "" {
		return "mixed"
	}
	return p
}
