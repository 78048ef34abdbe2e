package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"paperlens/internal/api"
	"paperlens/internal/config"
	"paperlens/internal/dashscope"
	"paperlens/internal/interpret"
	"paperlens/internal/papers"
	"paperlens/internal/pdffetch"
	"paperlens/internal/ratelimit"
	"paperlens/internal/redis"
	"paperlens/internal/storage"
)

const (
	generalLimit  = 100
	generalWindow = 15 * time.Minute
	strictLimit   = 10
	strictWindow  = time.Hour
)

func main() {
	cfgPath := os.Getenv("PAPERLENS_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	prov := cfg.Providers["dashscope"]
	aiClient, err := dashscope.NewClient(prov)
	if err != nil {
		log.Fatalf("init dashscope client: %v", err)
	}

	downloader := pdffetch.New(cfg.BasicConfig.TempDir)
	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	defer sweepCancel()
	downloader.StartSweeper(sweepCtx, time.Duration(cfg.BasicConfig.TempSweepInterval)*time.Minute)

	orchestrator := interpret.New(downloader, aiClient)

	var cache *storage.CatalogCache
	if driver := cfg.BasicConfig.CacheDriver; driver != "" {
		db, err := storage.Open(driver, cfg)
		if err != nil {
			log.Fatalf("open catalog cache: %v", err)
		}
		defer db.Close()
		if err := storage.Migrate(db, driver); err != nil {
			log.Fatalf("migrate catalog cache: %v", err)
		}
		cache = storage.NewCatalogCache(db)
	}
	catalog := papers.NewService(cache)

	// Counters live in redis when configured so limits hold across replicas;
	// otherwise in process memory.
	var store ratelimit.Store
	if cfg.Redis.Host != "" {
		rdb, err := redis.NewRedisClient(cfg)
		if err != nil {
			log.Fatalf("create redis client: %v", err)
		}
		defer rdb.Close()
		store = ratelimit.NewRedisStore(rdb, "ratelimit")
	} else {
		store = ratelimit.NewMemoryStore()
	}
	general := ratelimit.New(ratelimit.NewScoped(store, "general"), generalLimit, generalWindow,
		"too many requests, please try again later")
	strict := ratelimit.New(ratelimit.NewScoped(store, "interpret"), strictLimit, strictWindow,
		"interpretation request limit reached, please try again later")

	handler := api.NewHandler(orchestrator, catalog, downloader.ValidateURL,
		general, strict, dashscope.Configured(prov))

	router := gin.Default()
	handler.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":3001"
	}
	if err := router.Run(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
