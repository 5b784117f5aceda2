package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/course-marketplace/storefront/internal/catalog"
	"github.com/course-marketplace/storefront/internal/config"
	"github.com/course-marketplace/storefront/internal/contract"
	"github.com/course-marketplace/storefront/internal/events"
	apphttp "github.com/course-marketplace/storefront/internal/http"
	"github.com/course-marketplace/storefront/internal/http/handlers"
	"github.com/course-marketplace/storefront/internal/wallet"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Wallet provider
	provider, err := wallet.DialRPC(ctx, cfg.RPCURL, cfg.ProviderPollInterval, log)
	if err != nil {
		log.Fatal("failed to dial wallet provider", zap.Error(err))
	}
	defer provider.Close()

	// Session stores
	bus := events.NewBus(log)
	ens := wallet.NewENSResolver(provider, cfg.ENSRegistry, log)
	walletSession := wallet.NewSession(provider, ens, bus, log)
	contractSession, err := contract.NewSession(provider, walletSession, cfg.ContractAddress, cfg.TxPollInterval, cfg.TxWaitTimeout, log)
	if err != nil {
		log.Fatal("failed to build contract session", zap.Error(err))
	}
	catalogClient := catalog.NewClient(cfg.CatalogBaseURL, cfg.CatalogTimeout, log)

	// Pick up an already-authorized account, then follow provider events.
	walletSession.Resume(ctx)
	unwatch := walletSession.Watch(ctx)
	defer unwatch()

	// Handlers
	walletHandler := handlers.NewWalletHandler(walletSession, log)
	courseHandler := handlers.NewCourseHandler(catalogClient, contractSession, walletSession, bus, log)
	wsHub := handlers.NewWSHub(bus, log)

	wsHub.Start()
	defer wsHub.Stop()

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, walletHandler, courseHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting storefront gateway", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
