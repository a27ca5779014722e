package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"docchat/internal/config"
	"docchat/internal/handler"
	"docchat/internal/storage"
	"docchat/internal/stub"
	"docchat/pkg/logger"
)

func main() {
	var configPath string
	var port int
	flag.StringVar(&configPath, "config", "", "path to a YAML config file")
	flag.IntVar(&port, "port", 0, "listen port, overrides stub.port")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if port > 0 {
		cfg.Stub.Port = port
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	store := newStorage(cfg.Stub.Storage)
	defer func() {
		if err := store.Close(); err != nil {
			logger.Errorf("Failed to close storage: %v", err)
		}
	}()

	backend := stub.New(store, stub.Options{
		AllowedExtensions: cfg.Stub.AllowedExtensions,
		MaxUploadBytes:    int64(cfg.Stub.MaxFileSizeMB) * 1024 * 1024,
	})
	router := handler.NewRouter(handler.NewDocumentHandler(backend), cfg.Stub.CORS)

	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Stub.Port),
		Handler:        router,
		ReadTimeout:    cfg.Stub.ReadTimeout,
		WriteTimeout:   cfg.Stub.WriteTimeout,
		MaxHeaderBytes: cfg.Stub.MaxHeaderBytes,
	}

	go func() {
		logger.Infof("document service stub listening on port %d (%s storage)", cfg.Stub.Port, cfg.Stub.Storage.Type)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")
	if err := server.Close(); err != nil {
		logger.Errorf("Failed to close server: %v", err)
	}
	logger.Info("Server stopped")
}

// newStorage falls back to memory when the disk store cannot be opened.
func newStorage(cfg config.StorageConfig) storage.Storage {
	var store storage.Storage
	if cfg.Type == "disk" {
		store = storage.NewDiskStorage(cfg.DataDir)
	} else {
		store = storage.NewMemoryStorage()
	}

	if err := store.Init(); err != nil {
		logger.Errorf("Failed to initialize storage: %v", err)
		store = storage.NewMemoryStorage()
		_ = store.Init()
	}
	return store
}
