package main

import (
	"fmt"

	"github.com/openaid/aid-inventory/api/routes"
	"github.com/openaid/aid-inventory/internal/auth"
	"github.com/openaid/aid-inventory/internal/items"
	"github.com/openaid/aid-inventory/internal/kits"
	"github.com/openaid/aid-inventory/internal/ledger"
	"github.com/openaid/aid-inventory/internal/recipients"
	"github.com/openaid/aid-inventory/internal/reports"
	"github.com/openaid/aid-inventory/internal/stock"
	"github.com/openaid/aid-inventory/internal/users"
	"github.com/openaid/aid-inventory/pkg/auth/session"
	"github.com/openaid/aid-inventory/pkg/config"
	"github.com/openaid/aid-inventory/pkg/db"
	"github.com/openaid/aid-inventory/pkg/logger"
	"github.com/openaid/aid-inventory/pkg/metrics"
	"github.com/openaid/aid-inventory/pkg/outbox"
)

// buildServices wires the domain services on top of a single database client.
func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, sessions *session.Manager, stockMetrics *metrics.StockMetrics) (routes.Services, error) {
	conn := dbClient.DB()
	ledgerRepo := ledger.NewRepository(conn)
	kitRepo := kits.NewRepository(conn)
	userRepo := users.NewRepository(conn)
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)

	events, err := ledger.NewService(conn, ledgerRepo)
	if err != nil {
		return routes.Services{}, fmt.Errorf("ledger service: %w", err)
	}
	engine, err := stock.NewEngine(stock.EngineParams{
		DB:      dbClient,
		Ledger:  ledgerRepo,
		Outbox:  emitter,
		Metrics: stockMetrics,
		Logger:  logg,
	})
	if err != nil {
		return routes.Services{}, fmt.Errorf("stock engine: %w", err)
	}
	itemSvc, err := items.NewService(items.ServiceParams{
		DB:     dbClient,
		Repo:   items.NewRepository(conn),
		Kits:   kitRepo,
		Ledger: ledgerRepo,
		Stock:  engine,
	})
	if err != nil {
		return routes.Services{}, fmt.Errorf("items service: %w", err)
	}
	kitSvc, err := kits.NewService(kits.ServiceParams{
		DB:      dbClient,
		Conn:    conn,
		Repo:    kitRepo,
		Engine:  engine,
		Events:  events,
		Outbox:  emitter,
		MaxKits: cfg.Inventory.MaxKitsPerAssembly,
	})
	if err != nil {
		return routes.Services{}, fmt.Errorf("kits service: %w", err)
	}
	recipientSvc, err := recipients.NewService(conn)
	if err != nil {
		return routes.Services{}, fmt.Errorf("recipients service: %w", err)
	}
	reportSvc, err := reports.NewService(conn, events, reports.Options{
		RecentLimit: cfg.Inventory.RecentActivityLimit,
		Window:      cfg.Inventory.DashboardWindow,
	})
	if err != nil {
		return routes.Services{}, fmt.Errorf("reports service: %w", err)
	}
	authSvc, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessions,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	if err != nil {
		return routes.Services{}, fmt.Errorf("auth service: %w", err)
	}
	registerSvc, err := auth.NewRegisterService(auth.RegisterServiceParams{Users: userRepo, PasswordConfig: cfg.Password})
	if err != nil {
		return routes.Services{}, fmt.Errorf("register service: %w", err)
	}

	return routes.Services{
		Auth:       authSvc,
		Register:   registerSvc,
		Sessions:   sessions,
		Items:      itemSvc,
		Stock:      engine,
		Kits:       kitSvc,
		Recipients: recipientSvc,
		Reports:    reportSvc,
		Events:     events,
	}, nil
}
