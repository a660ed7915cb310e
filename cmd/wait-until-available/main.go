package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"gitlab.com/dirk.krummacker/user-management/internal/config"
)

// Usage example on the command line:
// > PORT=8080 go run main.go
func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("could not load configuration")
	}
	url := fmt.Sprintf("http://localhost:%s/health", cfg.Server.Port)
	totalWaitTime := 0
	for {
		res, err := http.Get(url)
		if err == nil {
			res.Body.Close()
			if res.StatusCode == http.StatusOK {
				logrus.WithField("url", url).Info("service is available")
				break
			}
			logrus.WithField("status", res.StatusCode).Info("service not ready")
		} else {
			logrus.WithError(err).Info("service not reachable")
		}
		totalWaitTime += 5
		logrus.Infof("Waiting %d seconds", totalWaitTime)
		time.Sleep(5 * time.Second)
	}
}
