package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"liner-layout/internal/config"
	"liner-layout/internal/layoutd"
	"liner-layout/internal/version"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// ============================================================
// Layout Store
// ============================================================

func main() {
	cfg := config.LoadServer()

	db, err := layoutd.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	repo := layoutd.NewRepository(db)
	if err := repo.Init(context.Background(), cfg.DemoLogin, cfg.DemoPassword); err != nil {
		log.Fatalf("init db: %v", err)
	}

	handler := layoutd.NewHandler(repo, layoutd.NewSessionManager())
	app := layoutd.NewApp(layoutd.AppConfig{
		AppName:      "Layout Store",
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
	}, handler)

	// ============================================================
	// Server Start
	// ============================================================

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("Starting Layout Store %s on %s (env: %s)", version.String(), addr, cfg.Environment)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
