package main

import (
	"context"
	"log"

	"go.uber.org/zap"

	"github.com/mahan-dev/course-tracker/internal/catalog"
	"github.com/mahan-dev/course-tracker/internal/domain"
	infra "github.com/mahan-dev/course-tracker/internal/infrastructure"
	"github.com/mahan-dev/course-tracker/internal/infrastructure/driver"
	"github.com/mahan-dev/course-tracker/internal/infrastructure/logging"
	ihttp "github.com/mahan-dev/course-tracker/internal/interfaces/http"
	"github.com/mahan-dev/course-tracker/internal/progress"
)

func main() {
	log.SetFlags(log.Lshortfile | log.Ldate | log.Ltime)
	option, err := infra.InitConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.NewLogger(&logging.Config{
		FilePath: option.Logging.FilePath,
		Level:    option.Logging.Level,
		AppID:    option.AppID,
		Env:      option.Env,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %s\n", err)
	}
	logger = logger.With(
		zap.String("service.id", option.AppID),
	)
	defer logger.Sync()

	cat, err := catalog.Load(option.Catalog.Path)
	if err != nil {
		log.Fatalf("Failed to load course catalog: %s\n", err)
	}
	logger.Debug("Loaded course catalog", zap.String("catalog.course", cat.Course),
		zap.String("catalog.version", cat.Version),
		zap.Int("catalog.lessons", cat.Len()),
	)

	profiles := make([]domain.UserProfile, len(option.Users.Names))
	for i, name := range option.Users.Names {
		profiles[i] = domain.UserProfile{Name: name, Color: option.Users.Colors[i]}
	}
	users := domain.NewUserSet(profiles)

	dbConn, err := driver.GetDBConnection(&driver.DBConfig{
		User:     option.Database.User,
		Password: option.Database.Password,
		MaxConn:  option.Database.MaxConn,
		Protocol: option.Database.Protocol,
		Driver:   option.Database.Driver,
		Host:     option.Database.Host,
		Port:     option.Database.Port,
		Query:    option.Database.Query,
		Schema:   option.Database.Schema,
	})
	if err != nil {
		log.Fatalf("Failed to create DB connection: %s\n", err)
	}
	logger.Debug("Create cache DB connection", zap.String("db.driver", option.Database.Driver),
		zap.String("db.schema", option.Database.Schema),
	)

	baseCtx := logging.WithContext(context.Background(), logger)
	cache, err := driver.NewSQLFallbackCache(baseCtx, dbConn)
	if err != nil {
		log.Fatalf("Failed to prepare fallback cache: %s\n", err)
	}

	rdb := driver.NewRedisClient(option.KVStore.Host, option.KVStore.Port, option.KVStore.Password)

	manager := progress.NewManager(func(actingUser string) *progress.Engine {
		return progress.NewEngine(actingUser, cat, rdb, cache, logger, progress.Options{
			BatchSize:  option.Sync.BatchSize,
			BatchDelay: option.Sync.BatchDelay,
			PageSize:   option.Sync.PageSize,
		})
	})

	bridge := progress.NewBridge(rdb, logger)
	bridge.Watch(baseCtx, cat.Lessons(), users.Names())

	ihttp.Serve(dbConn, rdb, option, users, cat, manager, bridge, logger)
}
