package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/ayusman/lisa/internal/cache"
	"github.com/ayusman/lisa/internal/config"
	"github.com/ayusman/lisa/internal/detector"
	"github.com/ayusman/lisa/internal/logging"
	"github.com/ayusman/lisa/internal/model"
	"github.com/ayusman/lisa/internal/recognizer"
	"github.com/ayusman/lisa/internal/server"
	"github.com/ayusman/lisa/internal/store"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	if cfg.Env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Load the model bundle once; nothing is served without it
	fmt.Println("Carregando modelo e scaler...")
	if err := model.InitRuntime(cfg.ONNXRuntime); err != nil {
		logger.Fatal("failed to initialize onnxruntime", zap.Error(err))
	}
	defer model.DestroyRuntime() //nolint:errcheck

	bundle, err := model.Load(model.Paths{
		Model:    cfg.ModelPath(),
		Metadata: cfg.MetadataPath(),
		Scaler:   cfg.ScalerPath(),
	}, detector.FeatureDim)
	if err != nil {
		logger.Fatal("failed to load model", zap.String("dir", cfg.ModelDir()), zap.Error(err))
	}
	defer bundle.Close()
	fmt.Printf("Modelo carregado! Classes reconhecidas: [%s]\n", strings.Join(bundle.Metadata.Labels, ", "))

	pool, err := detector.NewPool(cfg.DetectorWorkers, func() (detector.Detector, error) {
		dcfg := detector.DefaultConfig()
		dcfg.MinConfidence = cfg.MinDetectionConf
		dcfg.ScriptPath = cfg.MediaPipeScript
		dcfg.Python = cfg.PythonInterpreter
		dcfg.IdleTimeout = cfg.DetectorIdleTimeout
		return detector.NewMediaPipeDetector(dcfg, logger)
	})
	if err != nil {
		logger.Fatal("failed to start hand detector", zap.Error(err))
	}
	defer pool.Close()

	rec, err := recognizer.New(recognizer.Config{
		Detector:   pool,
		Scaler:     bundle.Scaler,
		Classifier: bundle.Classifier,
		Logger:     logger,
	})
	if err != nil {
		logger.Fatal("failed to build recognizer", zap.Error(err))
	}

	st := openStore(cfg, logger)
	defer st.Close()

	results, redisClient := initCache(cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	srv := server.New(server.Config{
		Recognizer:   rec,
		Store:        st,
		Cache:        results,
		Logger:       logger,
		ModelName:    bundle.Metadata.ModelName,
		ModelVersion: bundle.Metadata.Version,
		MaxBodyBytes: cfg.MaxBodyBytes,
	})

	tlsConfig, err := server.TLSConfig(cfg.TLSCertFile, cfg.TLSKeyFile)
	if err != nil {
		logger.Fatal("failed to prepare tls", zap.Error(err))
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv,
		TLSConfig:         tlsConfig,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
	}

	printBanner(cfg.Addr)
	logger.Info("LISA listening",
		zap.String("addr", cfg.Addr),
		zap.Int("detector_workers", pool.Size()),
		zap.Int("classes", len(bundle.Metadata.Labels)))

	if err := serveHTTPServer(httpServer, shutdownTimeout, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
	logger.Info("server stopped")
}

// openStore opens the prediction log and prunes rows past the retention window.
func openStore(cfg *config.Config, logger *zap.Logger) *store.Store {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		logger.Fatal("failed to create data directory", zap.Error(err))
	}

	st, err := store.New(cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to initialize store", zap.String("path", cfg.DBPath), zap.Error(err))
	}

	if cfg.LogRetention > 0 {
		deleted, err := st.Predictions().DeleteBefore(time.Now().Add(-cfg.LogRetention))
		if err != nil {
			logger.Warn("failed to prune prediction log", zap.Error(err))
		} else if deleted > 0 {
			logger.Info("pruned prediction log", zap.Int64("deleted", deleted))
		}
	}
	return st
}

// initCache connects to Redis when REDIS_ADDR is set. An unreachable server
// disables caching instead of aborting startup.
func initCache(cfg *config.Config, logger *zap.Logger) (*cache.Results, *redis.Client) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client, err := cache.Connect(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, result cache disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		return nil, nil
	}

	logger.Info("result cache enabled", zap.String("addr", cfg.RedisAddr), zap.Duration("ttl", cfg.CacheTTL))
	return cache.NewResults(cache.NewRedisCache(client), cfg.CacheTTL, logger), client
}

func printBanner(addr string) {
	port := "5000"
	if _, p, err := net.SplitHostPort(addr); err == nil && p != "" {
		port = p
	}

	rule := strings.Repeat("=", 60)
	fmt.Println()
	fmt.Println(rule)
	fmt.Println("🤟 LISA - Reconhecimento de Sinais em Libras")
	fmt.Println(rule)
	fmt.Println("\n📱 Acesse de qualquer dispositivo na rede:")
	fmt.Printf("   https://%s:%s\n", server.LANAddress(), port)
	fmt.Println("\n💻 Acesso local:")
	fmt.Printf("   https://localhost:%s\n", port)
	fmt.Println("\n⚠️  Ignore o aviso de certificado não confiável no navegador")
	fmt.Println("   (isso é normal em desenvolvimento)")
	fmt.Println()
	fmt.Println(rule)
	fmt.Println()
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

// serveHTTPServerWithOptions serves until the listener fails or a signal
// arrives, then drains in-flight requests. With a TLSConfig set, connections
// are served over TLS.
func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener == nil {
			listener, err = net.Listen("tcp", server.Addr)
		}
		if err == nil {
			if server.TLSConfig != nil {
				listener = tls.NewListener(listener, server.TLSConfig)
			}
			err = server.Serve(listener)
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
