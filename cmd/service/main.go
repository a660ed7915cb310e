package main

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"gitlab.com/dirk.krummacker/user-management/internal/config"
	"gitlab.com/dirk.krummacker/user-management/internal/remote"
	"gitlab.com/dirk.krummacker/user-management/internal/schema"
	"gitlab.com/dirk.krummacker/user-management/internal/service"
	"gitlab.com/dirk.krummacker/user-management/internal/storage"
)

// Usage example on the command line:
// > PORT=8080 STORAGE=mysql DBUSER=dirk DBPWD=bullo92 GIN_MODE=release GIN_LOGGING=OFF go run main.go
func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("could not load configuration")
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithError(err).Fatal("could not parse LOG_LEVEL env variable")
	}
	log.SetLevel(level)
	if _, err := strconv.Atoi(cfg.Server.Port); err != nil {
		log.WithError(err).Fatal("could not parse PORT env variable")
	}

	var provider storage.Provider
	switch cfg.Storage {
	case config.StorageMySQL:
		sqlDB, err := storage.OpenMySQL(cfg.DSN())
		if err != nil {
			log.WithError(err).Fatal("could not connect to database")
		}
		db, err := storage.NewMySQL(sqlDB)
		if err != nil {
			log.WithError(err).Fatal("could not prepare database statements")
		}
		defer db.Close()
		provider = db
	default:
		provider = storage.NewMemory()
	}
	log.WithField("storage", cfg.Storage).Info("session storage ready")

	s := service.New(service.ServiceArgs{
		Validator:     schema.NewValidator(nil),
		Remote:        remote.NewClient(cfg.RemoteURL, &http.Client{Timeout: 10 * time.Second}),
		Storage:       provider,
		Logger:        log,
		SessionCookie: cfg.SessionCookie,
		GinLogging:    cfg.Server.GinLogging,
		SessionIdle:   cfg.SessionIdle,
	})
	if err := s.Router().Run(":" + cfg.Server.Port); err != nil {
		log.WithError(err).Error("server stopped")
	}
}
