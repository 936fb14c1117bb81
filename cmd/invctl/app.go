package main

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goredis "github.com/redis/go-redis/v9"

	"stocknest/internal/client"
	redisdb "stocknest/internal/db/redis"
	sqlitedb "stocknest/internal/db/sqlite"
	"stocknest/internal/platform/config"
	applog "stocknest/internal/platform/log"
	"stocknest/internal/session"
)

// app invctl 的运行时组装：配置 -> 存储 -> 客户端 -> 会话管理器。
type app struct {
	cfg    *config.AppConfig
	api    *client.Client
	mgr    *session.Manager
	userID string

	closers []func()
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateClient(); err != nil {
		return nil, err
	}

	applog.Init(applog.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	userID, err := tokenSubject(cfg.Client.Token)
	if err != nil {
		return nil, fmt.Errorf("API_TOKEN: %w", err)
	}

	a := &app{cfg: cfg, userID: userID}

	store, err := a.openStore()
	if err != nil {
		return nil, err
	}

	injector := session.NewInjector()
	a.api = client.New(client.Config{
		BaseURL: cfg.Client.APIBaseURL,
		Token:   cfg.Client.Token,
		Timeout: time.Duration(cfg.Client.TimeoutSeconds) * time.Second,
	}, injector)

	a.mgr = session.NewManager(a.api, store, injector, applog.With("component", "session"))
	a.mgr.SetUser(&session.OwnerIdentity{ID: userID, Email: userID})
	a.mgr.RefreshInventories(ctx)

	return a, nil
}

func (a *app) Close() {
	if a.mgr != nil {
		a.mgr.Close()
	}
	for _, fn := range a.closers {
		fn()
	}
}

func (a *app) openStore() (session.SelectionStore, error) {
	switch a.cfg.Client.SelectionStore {
	case "redis":
		opt, err := goredis.ParseURL(a.cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("REDIS_URL: %w", err)
		}
		rdb := goredis.NewClient(opt)
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		return redisdb.NewSelectionStore(rdb), nil
	default:
		store, err := sqlitedb.OpenSelectionStore(a.cfg.Client.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = store.Close() })
		return store, nil
	}
}

// tokenSubject 本地解出 token 的 sub（不验签，签名由服务端校验）。
func tokenSubject(token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("token is required")
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("token has no sub claim")
	}
	return sub, nil
}
