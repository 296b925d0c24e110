package main

import (
	"context"
	"fmt"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/timetable"
	cachesvc "github.com/trezcool/ratiba/services/cache"
	logsvc "github.com/trezcool/ratiba/services/logger"
	notifysvc "github.com/trezcool/ratiba/services/notify"
	"github.com/trezcool/ratiba/storage/database"
	sqlxrepos "github.com/trezcool/ratiba/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	zl, err := logsvc.NewZap(conf, "ratiba")
	if err != nil {
		fmt.Fprintf(os.Stderr, "setting up logger: %v\n", err)
		os.Exit(1)
	}
	logger := logsvc.NewRollbarLogger(zl.Named("admin"), conf)
	logger.Enable(!conf.Debug)

	// set up DB
	db, err := database.Open(conf)
	errAndDie(logger, err)
	defer func() { _ = db.Close() }()
	errAndDie(logger, database.Ping(context.Background(), db))

	// set up services
	repo := sqlxrepos.NewTimetableRepository(db)

	// the admin runs once, a cache in memory would only ever miss
	var cache timetable.CatalogCache
	client, err := cachesvc.NewRedisClient(context.Background(), conf)
	if err != nil {
		logger.Warn("redis unavailable, catalog cache disabled", err)
	}
	if client != nil {
		defer func() { _ = client.Close() }()
		cache = cachesvc.NewRedisCache(client, conf.Redis.CatalogTTL)
	}

	// running API instances pick admin writes up through LISTEN/NOTIFY
	var notifier timetable.ChangeNotifier
	if conf.Database.Listen && !conf.Database.IsSQLite() {
		notifier = notifysvc.NewPGNotifier(db)
	}

	translator, _ := ut.New(en.New(), en.New()).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)
	timetable.InitValidators(validate, translator)

	// start CLI
	cli := commandLine{
		db:       db,
		repo:     repo,
		store:    timetable.NewCatalogStore(repo, cache, logger),
		engine:   timetable.NewEngine(repo, notifier, nil, logger),
		validate: validate,
		days:     conf.Timetable.Days,
		out:      os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if !errors.Is(err, errHelp) {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		_ = db.Close()
		os.Exit(1)
	}
}

func errAndDie(logger core.Logger, err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
