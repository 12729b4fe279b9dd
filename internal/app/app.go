// Package app wires configuration, stores, reference data, and the
// conversation flow into a runnable Telegram application.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"

	"github.com/nusakov/remontbot/core/bootstrap"
	coretelegram "github.com/nusakov/remontbot/core/telegram"
	"github.com/nusakov/remontbot/core/telegram/router"
	"github.com/nusakov/remontbot/core/telegram/state"
	"github.com/nusakov/remontbot/internal/bot"
	"github.com/nusakov/remontbot/internal/flow"
	"github.com/nusakov/remontbot/internal/reference"
	"github.com/nusakov/remontbot/internal/render"
	"github.com/nusakov/remontbot/internal/report"
	"github.com/nusakov/remontbot/internal/worker"
)

// App is the assembled application.
type App struct {
	cfg *Config
	db  *sqlx.DB
	bot *bot.Bot
}

// New bootstraps infrastructure and assembles the bot. Missing reference
// files, an empty catalog, or a missing font abort startup.
func New(cfg *Config) (*App, error) {
	ctx := context.Background()

	res, err := bootstrap.Run(ctx, bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.Database,
		Seeders:  []bootstrap.Seeder{reconcileSeeder(cfg.Bot.ReportsRoot)},
	})
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(cfg.Bot.FontPath); err != nil {
		_ = res.DB.Close()
		return nil, fmt.Errorf("app: pdf font %s: %w", cfg.Bot.FontPath, err)
	}

	houses, err := reference.LoadHouses(cfg.Bot.HousesPath)
	if err != nil {
		_ = res.DB.Close()
		return nil, err
	}
	works, err := reference.LoadWorkCatalog(cfg.Bot.WorksPath)
	if err != nil {
		_ = res.DB.Close()
		return nil, err
	}

	store := report.NewStore(res.DB)
	var workers *worker.Store
	if cfg.Bot.CaptureContacts {
		workers = worker.NewStore(res.DB)
	}

	machine := flow.NewMachine(flow.Options{
		Houses:       houses,
		Works:        works,
		Alloc:        report.NewAllocator(cfg.Bot.ReportsRoot),
		Store:        store,
		Renderer:     render.New(cfg.Bot.FontPath),
		Workers:      workers,
		ItemsPerPage: cfg.Bot.ItemsPerPage,
		MessageLimit: cfg.Bot.MessageLimit,
	})

	b := bot.New(machine, state.NewMemoryManager(), store)
	b.RegisterStates()

	return &App{cfg: cfg, db: res.DB, bot: b}, nil
}

// reconcileSeeder walks the report tree at startup and upserts every record
// into the task index, so an index created after an existing archive (or a
// lost database file) converges with the tree.
func reconcileSeeder(root string) bootstrap.Seeder {
	return bootstrap.SeederFunc(func(ctx context.Context, db *sqlx.DB) error {
		scanned, err := report.ScanAll(root)
		if err != nil {
			return err
		}
		return report.NewStore(db).Reconcile(ctx, scanned)
	})
}

// TelegramRunOptions assembles routing and middleware for the bot runtime.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()
	a.bot.RegisterCommands(reg)
	a.bot.RegisterCallbacks(reg)
	reg.SetCallbackNotFound(a.bot.UnknownCallback())

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID: a.cfg.Telegram.AdminID,
	})
	routes = append(routes, router.TextRoutes(a.bot.States(), reg, router.TextOptions{
		UnknownText:     a.bot.UnknownText(),
		UnknownPhoto:    a.bot.UnknownPhoto(),
		UnknownDocument: a.bot.UnknownDocument(),
	})...)
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{
		NotFound: a.bot.UnknownCallback(),
	}))

	return coretelegram.RunOptions{
		Config:      a.cfg.CoreConfig(),
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(a.cfg.CoreConfig(), nil),
		Routes:      routes,
		OnStop: func(ctx context.Context, rt coretelegram.Runtime) error {
			return a.db.Close()
		},
	}, nil
}
