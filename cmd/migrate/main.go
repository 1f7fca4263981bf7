package main

import (
	"database/sql"
	"embed"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"

	appconfig "github.com/dmelnik7/order-payments-platform/internal/config"
	ordersmigrations "github.com/dmelnik7/order-payments-platform/migrations/orders"
	paymentsmigrations "github.com/dmelnik7/order-payments-platform/migrations/payments"
)

// Each service owns its own database, so the migrator is pointed at one
// service's schema at a time: /bin/migrate -service orders [down].
func main() {
	service := flag.String("service", "", "which schema to migrate: orders or payments")
	flag.Parse()

	var fs embed.FS
	switch *service {
	case "orders":
		fs = ordersmigrations.FS
	case "payments":
		fs = paymentsmigrations.FS
	default:
		log.Fatalf("unknown -service %q (want orders or payments)", *service)
	}

	databaseURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if databaseURL == "" {
		databaseURL = appconfig.Load().DatabaseURL()
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		log.Fatalf("ping db: %v", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		log.Fatalf("db driver: %v", err)
	}

	srcDriver, err := iofs.New(fs, ".")
	if err != nil {
		log.Fatalf("source driver: %v", err)
	}

	m, err := migrate.NewWithInstance("iofs", srcDriver, "postgres", dbDriver)
	if err != nil {
		log.Fatalf("create migrator: %v", err)
	}
	defer func() { _, _ = m.Close() }()

	if flag.Arg(0) == "down" {
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("migrate down: %v", err)
		}
		fmt.Printf("%s migrations rolled back\n", *service)
		return
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("migrate up: %v", err)
	}

	fmt.Printf("%s migrations complete\n", *service)
}
