package main

import (
	"context"
	"log"

	"tomoseq/internal/config"
	"tomoseq/internal/container"

	"github.com/gin-gonic/gin"
)

func main() {
	config.LoadDotEnv()

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	gin.SetMode(appConfig.Server.GinMode)

	appContainer, err := container.New(appConfig)
	if err != nil {
		log.Fatalf("Failed to create application container: %v", err)
	}
	defer appContainer.Shutdown(context.Background())

	if err := appContainer.InitDatabase(context.Background()); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	server := appContainer.APIServer()
	log.Printf("Starting tomoseq server on port %s", appConfig.Server.Port)
	log.Fatal(server.Start(":" + appConfig.Server.Port))
}
