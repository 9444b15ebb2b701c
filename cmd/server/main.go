package main

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/flight-surety/internal/config"
	"github.com/iliyamo/flight-surety/internal/database"
	"github.com/iliyamo/flight-surety/internal/events"
	"github.com/iliyamo/flight-surety/internal/gate"
	"github.com/iliyamo/flight-surety/internal/handler"
	"github.com/iliyamo/flight-surety/internal/ledger"
	"github.com/iliyamo/flight-surety/internal/model"
	"github.com/iliyamo/flight-surety/internal/oracle"
	"github.com/iliyamo/flight-surety/internal/queue"
	"github.com/iliyamo/flight-surety/internal/registry"
	"github.com/iliyamo/flight-surety/internal/repository"
	"github.com/iliyamo/flight-surety/internal/router"
)

func main() {
	cfg := config.Load()

	db, err := database.Open(database.Params{
		User:            cfg.DBUser,
		Pass:            cfg.DBPass,
		Host:            cfg.DBHost,
		Port:            cfg.DBPort,
		Name:            cfg.DBName,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.DBConnLifeMin) * time.Minute,
	})
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := database.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("schema: %v", err)
	}

	ownerID := ensureOwner(ctx, cfg, repository.NewUserRepo(db))

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable; rate limiting and caching disabled")
	}

	var pub events.Publisher = queue.NewPublisher()

	// Durable stores behind the in-memory engines.
	gateStore := repository.NewGateStore(db)
	airlineStore := repository.NewAirlineStore(db)
	oracleStore := repository.NewOracleStore(db)
	insuranceStore := repository.NewInsuranceStore(db)
	wallet := repository.NewWalletStore(db)

	g := gate.New(ownerID, gateStore)
	reg := registry.New(registryParams(cfg), g, airlineStore, pub)
	coord := oracle.New(oracleParams(cfg), g, oracleStore, pub, oracle.CryptoSource{})
	led := ledger.New(ledger.Params{MaxPremiumCents: cfg.MaxPremiumCents}, g, reg, wallet, insuranceStore, pub)

	restoreState(ctx, g, reg, coord, led, gateStore, airlineStore, oracleStore, insuranceStore)

	// Settlement worker: consumes flight verdicts and credits insurees
	// under the owner identity.  Reconnects forever on its own.
	go func() {
		if err := queue.StartSettlementConsumer(led, ownerID); err != nil {
			log.Printf("settlement consumer stopped: %v", err)
		}
	}()

	// Housekeeping sweeps.
	tokens := repository.NewTokenRepo(db)
	go purgeTokensLoop(tokens)
	if cfg.RequestTTLMin > 0 {
		go expireRequestsLoop(coord, time.Duration(cfg.RequestTTLMin)*time.Minute)
	}

	e := echo.New()
	router.Register(e, router.Handlers{
		Auth:      handler.NewAuthHandler(cfg, repository.NewUserRepo(db), tokens),
		Airlines:  handler.NewAirlineHandler(reg),
		Oracles:   handler.NewOracleHandler(coord),
		Insurance: handler.NewInsuranceHandler(led),
		Admin:     handler.NewAdminHandler(g),
		Query:     handler.NewQueryHandler(g, reg),
	}, cfg, rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s, owner=%d)", addr, cfg.Env, ownerID)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}

func registryParams(cfg config.Config) registry.Params {
	p := registry.DefaultParams()
	p.FundingThresholdCents = cfg.FundingThresholdCents
	return p
}

func oracleParams(cfg config.Config) oracle.Params {
	p := oracle.DefaultParams()
	p.RegistrationFeeCents = cfg.RegistrationFeeCents
	return p
}

// ensureOwner looks up the configured owner account and creates it when
// absent.  The owner's numeric ID anchors all privileged checks.
func ensureOwner(ctx context.Context, cfg config.Config, users *repository.UserRepo) uint64 {
	u, err := users.GetByEmail(ctx, cfg.OwnerEmail)
	if err == nil {
		if u.Role != model.RoleOwner {
			log.Fatalf("owner account %s exists with role %s", cfg.OwnerEmail, u.Role)
		}
		return u.ID
	}
	if err != sql.ErrNoRows {
		log.Fatalf("owner lookup: %v", err)
	}
	id, err := users.Create(ctx, cfg.OwnerEmail, cfg.OwnerPassword, model.RoleOwner, cfg.BcryptCost)
	if err != nil {
		log.Fatalf("owner create: %v", err)
	}
	log.Printf("created owner account %s (id=%d)", cfg.OwnerEmail, id)
	return id
}

// restoreState rehydrates every in-memory engine from MySQL so restarts
// are invisible to clients.
func restoreState(
	ctx context.Context,
	g *gate.Gate,
	reg *registry.Registry,
	coord *oracle.Coordinator,
	led *ledger.Ledger,
	gateStore *repository.GateStore,
	airlineStore *repository.AirlineStore,
	oracleStore *repository.OracleStore,
	insuranceStore *repository.InsuranceStore,
) {
	operational, err := gateStore.LoadOperational(ctx)
	if err != nil {
		log.Fatalf("restore operational: %v", err)
	}
	callers, err := gateStore.LoadAuthorizedCallers(ctx)
	if err != nil {
		log.Fatalf("restore authorized callers: %v", err)
	}
	g.Restore(operational, callers)

	airlines, err := airlineStore.LoadAirlines(ctx)
	if err != nil {
		log.Fatalf("restore airlines: %v", err)
	}
	votes, err := airlineStore.LoadVotes(ctx)
	if err != nil {
		log.Fatalf("restore votes: %v", err)
	}
	reg.Restore(airlines, votes)

	nodes, err := oracleStore.LoadNodes(ctx)
	if err != nil {
		log.Fatalf("restore oracle nodes: %v", err)
	}
	requests, err := oracleStore.LoadRequests(ctx)
	if err != nil {
		log.Fatalf("restore status requests: %v", err)
	}
	coord.Restore(nodes, requests)

	policies, err := insuranceStore.LoadPolicies(ctx)
	if err != nil {
		log.Fatalf("restore policies: %v", err)
	}
	balances, err := insuranceStore.LoadBalances(ctx)
	if err != nil {
		log.Fatalf("restore balances: %v", err)
	}
	led.Restore(policies, balances)

	log.Printf("restored state: %d airlines, %d oracle nodes, %d requests, %d policies",
		len(airlines), len(nodes), len(requests), len(policies))
}

// purgeTokensLoop deletes long-expired refresh tokens once an hour.
func purgeTokensLoop(tokens *repository.TokenRepo) {
	for {
		time.Sleep(time.Hour)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		n, err := tokens.PurgeExpired(ctx, 24*time.Hour)
		cancel()
		if err != nil {
			log.Printf("token purge: %v", err)
			continue
		}
		if n > 0 {
			log.Printf("token purge: removed %d rows", n)
		}
	}
}

// expireRequestsLoop closes status requests that never reached quorum.
func expireRequestsLoop(coord *oracle.Coordinator, ttl time.Duration) {
	interval := ttl / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	for {
		time.Sleep(interval)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		n := coord.ExpireRequests(ctx, ttl)
		cancel()
		if n > 0 {
			log.Printf("expired %d status requests", n)
		}
	}
}
