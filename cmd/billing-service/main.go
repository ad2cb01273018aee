package main

import (
	"fmt"
	"os"

	"github.com/adilzhm/shopworks-billing/internal/auth"
	"github.com/adilzhm/shopworks-billing/internal/config"
	"github.com/adilzhm/shopworks-billing/internal/db"
	httphandler "github.com/adilzhm/shopworks-billing/internal/http"
	"github.com/adilzhm/shopworks-billing/internal/http/middleware"
	"github.com/adilzhm/shopworks-billing/internal/inventory"
	"github.com/adilzhm/shopworks-billing/internal/logger"
	"github.com/adilzhm/shopworks-billing/internal/notify"
	"github.com/adilzhm/shopworks-billing/internal/repository"
	"github.com/adilzhm/shopworks-billing/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment)

	database, err := db.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}

	numberRepo := repository.NewNumberRepository(database)
	quoteRepo := repository.NewQuoteRepository(database)
	jobRepo := repository.NewJobRepository(database)
	invoiceRepo := repository.NewInvoiceRepository(database)

	var stock inventory.Ledger
	if cfg.Inventory.BaseURL != "" {
		stock = inventory.NewClient(cfg.Inventory.BaseURL, cfg.Inventory.Timeout)
	} else {
		log.Warn().Msg("inventory base url not set, stock movements are not tracked")
		stock = inventory.Nop{}
	}
	notifier := notify.NewLogNotifier(log)

	quoteService := service.NewQuoteService(quoteRepo, numberRepo, notifier, cfg.Billing)
	jobService := service.NewJobService(jobRepo, numberRepo, stock, notifier, cfg.Billing)
	invoiceService := service.NewInvoiceService(invoiceRepo, jobRepo, numberRepo, notifier, cfg.Billing, log)
	conversionService := service.NewConversionService(quoteRepo, jobRepo, invoiceService, numberRepo, notifier)

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	handler := httphandler.NewHandler(quoteService, jobService, invoiceService, conversionService, log)
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, cfg.Environment)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	log.Info().Str("addr", addr).Msg("starting billing service")

	if err := router.Run(addr); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}
