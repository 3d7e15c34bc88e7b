package main

import (
	"log"
	"net/http"
	"os"

	"markpad/config/database"
	"markpad/pkg/logger"
	"markpad/router"
	"markpad/socket"

	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables from OS")
	}

	logger.Init()
	defer logger.Log.Sync()

	db := database.Connect()
	defer db.Close()

	if err := database.EnsureSchema(db); err != nil {
		logger.Sugar.Fatalf("Failed to ensure database schema: %v", err)
	}

	// The Hub is the central component that manages all connections and rooms.
	// Its event loop runs in its own goroutine so it never blocks the main thread.
	hub := socket.NewHub()
	go hub.Run()

	handler := router.Setup(db, hub)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logger.Sugar.Infof("markpad listening on :%s", port)
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		logger.Sugar.Fatalf("Server stopped: %v", err)
	}
}
