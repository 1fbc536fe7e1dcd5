package cmd

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rezonia/ledger-bridge/internal/audit"
	"github.com/rezonia/ledger-bridge/internal/correction"
	"github.com/rezonia/ledger-bridge/internal/credentials"
	"github.com/rezonia/ledger-bridge/internal/fortnox"
	"github.com/rezonia/ledger-bridge/internal/kvstore"
	"github.com/rezonia/ledger-bridge/internal/vat"
)

// app bundles the wired collaborators shared by the subcommands.
type app struct {
	ledger      *fortnox.Client
	tokens      *credentials.Manager
	reports     *vat.Engine
	corrections *correction.Applier
	audits      audit.Logger
	log         *logrus.Entry
}

func buildApp() (*app, error) {
	log := logrus.NewEntry(logrus.StandardLogger())

	var store credentials.Store
	var audits audit.Logger
	if databaseDSN != "" {
		db, err := gorm.Open(mysql.Open(databaseDSN), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := db.AutoMigrate(&credentials.Record{}, &audit.SyncRecord{}); err != nil {
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		store = credentials.NewGormStore(db)
		audits = audit.NewGormLogger(db)
	} else {
		printVerbose("DATABASE_DSN not set, using in-memory stores\n")
		store = credentials.NewMemoryStore()
		audits = audit.NewMemoryLogger()
	}

	var keys kvstore.Store
	if redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: redisAddr, Password: redisPassword})
		keys = kvstore.NewRedisStore(client, "ledger-bridge")
	} else {
		printVerbose("REDIS_ADDR not set, using in-memory idempotency keys\n")
		keys = kvstore.NewMemoryStore()
	}

	oauth := credentials.NewOAuthClient(credentials.OAuthConfig{
		TokenURL:     tokenURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
	})
	tokens := credentials.NewManager(store, oauth, log)

	ledger := fortnox.NewClient(fortnox.Config{
		BaseURL: baseURL,
		Subject: subject,
		Scope:   scope,
		Tokens:  tokens,
		Log:     log,
	})

	return &app{
		ledger:      ledger,
		tokens:      tokens,
		reports:     vat.NewEngine(ledger, log),
		corrections: correction.NewApplier(ledger, keys, log),
		audits:      audits,
		log:         log,
	}, nil
}
