// Package server initializes and runs the members server. It opens the
// store, applies migrations, builds the members database and its
// collaborators, handles graceful shutdown and starts the gRPC endpoint.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/members/internal/dbx"
	"github.com/dmitrijs2005/members/internal/filex"
	"github.com/dmitrijs2005/members/internal/logging"
	"github.com/dmitrijs2005/members/internal/server/config"
	"github.com/dmitrijs2005/members/internal/server/mailer"
	"github.com/dmitrijs2005/members/internal/server/members"
	"github.com/dmitrijs2005/members/internal/server/models"
	"github.com/dmitrijs2005/members/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/members/internal/server/services"
	"github.com/dmitrijs2005/members/internal/server/steam"
	"github.com/dmitrijs2005/members/internal/server/throttle"
	"github.com/go-redis/redis/v8"

	gs "github.com/dmitrijs2005/members/internal/server/grpc"
)

type App struct {
	config       *config.Config
	logger       logging.Logger
	db           *sql.DB
	loginService *services.LoginService
}

// Open connects to the configured store, applies the migrations and builds
// the members database on top of it.
func Open(ctx context.Context, c *config.Config, logger logging.Logger) (*sql.DB, *members.Database, error) {
	dialect, err := dbx.ParseDialect(c.DatabaseDriver)
	if err != nil {
		return nil, nil, err
	}

	if dialect == dbx.SQLite {
		if path := filex.SQLitePath(c.DatabaseDSN); path != "" {
			if _, err := filex.EnsureParentDir(path); err != nil {
				return nil, nil, fmt.Errorf("db init error: %w", err)
			}
		}
	}

	db, err := dbx.Open(ctx, dialect, c.DatabaseDSN, dbx.PoolOptions{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewSQLRepositoryManager(dialect)
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}

	database := members.NewDatabase(db, rm, members.Options{
		Logger: logger,
		Grade: models.GradeRules{
			RootUserID:    c.RootUserID,
			LoginWindow:   time.Duration(c.DaysUntilRecentActivityLogin) * 24 * time.Hour,
			DrivingWindow: time.Duration(c.DaysUntilRecentActivityDriving) * 24 * time.Hour,
		},
	})
	return db, database, nil
}

func newMailer(ctx context.Context, c *config.Config, logger logging.Logger) (mailer.Mailer, error) {
	switch c.MailBackend {
	case "", "log":
		return mailer.NewLogMailer(logger), nil
	case "smtp":
		return mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     c.SMTPHost,
			Port:     c.SMTPPort,
			Username: c.SMTPUsername,
			Password: c.SMTPPassword,
			From:     c.SMTPFrom,
		}), nil
	case "s3":
		return mailer.NewS3Mailer(ctx, mailer.S3Config{
			RootUser:     c.S3RootUser,
			RootPassword: c.S3RootPassword,
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
			From:         c.SMTPFrom,
		})
	}
	return nil, fmt.Errorf("unknown mail backend %q", c.MailBackend)
}

func newLimiter(c *config.Config) throttle.Limiter {
	if c.RedisAddr == "" {
		return throttle.NewMemoryLimiter(c.ThrottleLimit, c.ThrottleWindow)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	})
	return throttle.NewRedisLimiter(client, c.ThrottleLimit, c.ThrottleWindow)
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger, err := logging.New(logging.Options{
		Backend:     c.LogBackend,
		Level:       c.LogLevel,
		File:        c.LogFile,
		ServiceName: "members",
	})
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	db, database, err := Open(ctx, c, logger)
	if err != nil {
		return nil, err
	}

	m, err := newMailer(ctx, c, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	ls := services.NewLoginService(database, m, steam.NewOpenIDVerifier(c.SteamOpenIDEndpoint, c.BaseURL), newLimiter(c), logger, c)

	return &App{config: c, logger: logger, db: db, loginService: ls}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s, err := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.loginService, app.config.SecretKey)

	if err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	} else {

		if err := s.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "closing database", "error", err)
	}
}
