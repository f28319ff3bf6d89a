package main

import (
	"log"
	"net/http"

	"market-chat/config"
	"market-chat/internal/stubserver"
	"market-chat/pkg/logger"
)

func main() {
	cfg := config.LoadConfig()
	appLog := logger.New(cfg.AppMode)
	defer func() { _ = appLog.Logger.Sync() }()

	srv := stubserver.New(appLog)

	appLog.Infof("stub backend listening on :%s", cfg.StubPort)
	if err := http.ListenAndServe(":"+cfg.StubPort, srv.Handler()); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
