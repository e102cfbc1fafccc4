// Package app wires the cascade engine's storage, domain services, and
// background workers into one lifecycle-managed Application, the way the
// reference service's own internal/app/application.go composes its much
// larger service set behind a single Stores/Application pair.
package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ayon178/bitgpt-backend-sub002/internal/app/domain/catalog"
	autoupgradesvc "github.com/ayon178/bitgpt-backend-sub002/internal/app/services/autoupgrade"
	catalogsvc "github.com/ayon178/bitgpt-backend-sub002/internal/app/services/catalog"
	fundssvc "github.com/ayon178/bitgpt-backend-sub002/internal/app/services/funds"
	globalphasesvc "github.com/ayon178/bitgpt-backend-sub002/internal/app/services/globalphase"
	ledgersvc "github.com/ayon178/bitgpt-backend-sub002/internal/app/services/ledger"
	placementsvc "github.com/ayon178/bitgpt-backend-sub002/internal/app/services/placement"
	ranksvc "github.com/ayon178/bitgpt-backend-sub002/internal/app/services/rank"
	recyclesvc "github.com/ayon178/bitgpt-backend-sub002/internal/app/services/recycle"
	treesvc "github.com/ayon178/bitgpt-backend-sub002/internal/app/services/tree"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/storage"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/storage/memory"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/storage/postgres"
	"github.com/ayon178/bitgpt-backend-sub002/internal/app/system"
	"github.com/ayon178/bitgpt-backend-sub002/internal/config"
	"github.com/ayon178/bitgpt-backend-sub002/internal/platform/database"
	"github.com/ayon178/bitgpt-backend-sub002/pkg/logger"
)

// allStores is the one interface every backend (memory.Store, postgres.Store)
// satisfies in full; Application only ever talks to storage through the
// narrower per-domain interfaces, but both backends are constructed behind
// this single handle.
type allStores interface {
	storage.UserStore
	storage.LedgerStore
	storage.ActivationStore
	storage.TreeStore
	storage.QueueStore
	storage.CommissionStore
	storage.RankStore
	storage.GlobalPhaseStore
	storage.FundsStore
}

// Application ties every domain service together and manages the
// background workers' lifecycle through a single system.Manager.
type Application struct {
	manager *system.Manager
	log     *logger.Logger
	db      *sql.DB

	Catalog     *catalogsvc.Service
	Tree        *treesvc.Service
	Rank        *ranksvc.Service
	Ledger      *ledgersvc.Writer
	Placement   *placementsvc.Service
	AutoUpgrade *autoupgradesvc.Manager
	Recycle     *recyclesvc.Controller
	Funds       *fundssvc.Service
	GlobalPhase *globalphasesvc.Service
	Activations storage.ActivationStore
}

// New builds a fully wired Application. If cfg.Database.DSN (or the
// discrete host/name fields) resolves to a non-empty connection string, the
// Postgres-backed storage.Store is used; otherwise the in-memory Store
// backs every interface, which is also what every service-level test in
// this module runs against.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	store, db, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	manager := system.NewManager()
	cat := catalog.New()

	catalogService := catalogsvc.New(cat)
	treeService := treesvc.New(store)
	rankService := ranksvc.New(store, cat)
	ledgerWriter := ledgersvc.New(store, store, store)

	placementService := placementsvc.New(placementsvc.Deps{
		Users:         store,
		Activations:   store,
		Tree:          treeService,
		Catalog:       catalogService,
		Ledger:        ledgerWriter,
		Rank:          rankService,
		MaxChainDepth: cfg.Funds.MaxAutoUpgradeChain,
	})

	autoUpgradeManager := autoupgradesvc.New(store, store, ledgerWriter, cat, placementService, log)
	recycleController := recyclesvc.New(treeService, store, placementService, log)
	fundsService := fundssvc.New(fundssvc.Deps{
		Store:       store,
		Users:       store,
		Activations: store,
		Phases:      store,
		Tree:        treeService,
		Ledger:      ledgerWriter,
		Catalog:     cat,
		Log:         log,
	})

	globalPhaseService := globalphasesvc.New(store, ledgerWriter, cat, placementService, log)

	placementService.SetAutoUpgradeArmer(autoUpgradeManager)
	placementService.SetRecycler(recycleController)
	placementService.SetFundsEvaluator(fundsService)
	placementService.SetGlobalPhaseTracker(globalPhaseService)

	fundsScheduler := fundssvc.NewScheduler(fundsService, cfg.Funds.NewcomerScheduleCron, cfg.Funds.StipendScheduleCron, log)

	if err := manager.Register(autoUpgradeManager); err != nil {
		return nil, fmt.Errorf("register auto-upgrade manager: %w", err)
	}
	if err := manager.Register(fundsScheduler); err != nil {
		return nil, fmt.Errorf("register funds scheduler: %w", err)
	}

	return &Application{
		manager:     manager,
		log:         log,
		db:          db,
		Catalog:     catalogService,
		Tree:        treeService,
		Rank:        rankService,
		Ledger:      ledgerWriter,
		Placement:   placementService,
		AutoUpgrade: autoUpgradeManager,
		Recycle:     recycleController,
		Funds:       fundsService,
		GlobalPhase: globalPhaseService,
		Activations: store,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered background workers (auto-upgrade poller,
// funds scheduler, and anything Attach added).
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all background workers and closes the database handle, if one
// was opened.
func (a *Application) Stop(ctx context.Context) error {
	err := a.manager.Stop(ctx)
	if a.db != nil {
		if closeErr := a.db.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}

func openStore(ctx context.Context, cfg *config.Config) (allStores, *sql.DB, error) {
	dsn := cfg.Database.DSN
	if dsn == "" && cfg.Database.Host != "" && cfg.Database.Name != "" {
		dsn = cfg.Database.ConnectionString()
	}
	if dsn == "" {
		return memory.New(), nil, nil
	}
	db, err := database.Open(ctx, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return postgres.New(db), db, nil
}
