package main

import (
	"context"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/hashicorp/consul/api"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/gommon/color"

	"github.com/voxexam/voxexam/internal/pkg/consul"
	"github.com/voxexam/voxexam/internal/pkg/exam"
	"github.com/voxexam/voxexam/internal/pkg/examservice"
	"github.com/voxexam/voxexam/internal/pkg/filestore"
	"github.com/voxexam/voxexam/internal/pkg/postgres"
	"github.com/voxexam/voxexam/internal/pkg/utils"
)

func main() {
	goapp.StartWithDefault()

	printBanner()

	cfg := goapp.Config
	data := &examservice.Data{}
	data.Port = cfg.GetInt("port")
	var err error

	ctx := context.Background()

	dbConfig, err := pgxpool.ParseConfig(cfg.GetString("db.url"))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init db pool")
	}
	addDBLog(dbConfig)

	dbPool, err := pgxpool.NewWithConfig(ctx, dbConfig)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init db pool")
	}
	defer dbPool.Close()

	db, err := postgres.NewDB(dbPool)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init db")
	}

	consulCfg := api.DefaultConfig()
	if addr := cfg.GetString("consul.address"); addr != "" {
		consulCfg.Address = addr
	}
	profilePr, err := consul.NewProvider(consulCfg, cfg.GetString("consul.profileService"))
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init profile provider")
	}
	ctxLoop, cancelLoop := context.WithCancel(ctx)
	defer cancelLoop()
	if _, err := profilePr.StartRegistryLoop(ctxLoop, cfg.GetDuration("consul.checkInterval")); err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't start consul loop")
	}

	engine, err := exam.NewService(db, profilePr, exam.DefaultConfig())
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init exam engine")
	}
	data.Engine = engine

	data.Reader, err = filestore.NewStore(filestore.Options{Bucket: cfg.GetString("filer.bucket"),
		URL: cfg.GetString("filer.url"), User: cfg.GetString("filer.user"), Key: cfg.GetString("filer.key"),
		Secure: cfg.GetBool("filer.https")})
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't init file store")
	}

	go utils.RunPerfEndpoint()

	err = examservice.StartWebServer(data)
	if err != nil {
		goapp.Log.Fatal().Err(err).Msg("can't start web server")
	}
}

func addDBLog(dbConfig *pgxpool.Config) {
	logFunc := goapp.Log.Info().Msg
	dbConfig.BeforeConnect = func(ctx context.Context, cc *pgx.ConnConfig) error {
		logFunc("before connect")
		return nil
	}
	dbConfig.AfterConnect = func(ctx context.Context, c *pgx.Conn) error {
		logFunc("after connect")
		return nil
	}
	dbConfig.BeforeAcquire = func(ctx context.Context, c *pgx.Conn) bool {
		logFunc("before acquire")
		return true
	}
	dbConfig.AfterRelease = func(c *pgx.Conn) bool {
		logFunc("after release")
		return true
	}
}

var (
	version = "DEV"
)

func printBanner() {
	banner := `
 _    ______  _  _______  _____    __  ___
| |  / / __ \| |/ / ____/ \/ /   |  /  |/  /
| | / / / / /|   / __/ /\  / /| | / /|_/ /
| |/ / /_/ //   / /___/ / / ___ |/ /  / /
|___/\____//_/|_\____/_/ /_/  |_/_/  /_/

  ___  _  ______ _____ ___
 / _ \| |/_/ __ ` + "`" + `/ __ ` + "`" + `__ \
/  __/>  </ /_/ / / / / / /
\___/_/|_|\__,_/_/ /_/ /_/   v: %s

%s
________________________________________________________

`
	cl := color.New()
	cl.Printf(banner, cl.Red(version), cl.Green("https://github.com/voxexam/voxexam"))
}
