package dig_container

import (
	"context"
	"fmt"
	"log"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"
	"go.uber.org/zap"

	echoapi "github.com/trezcool/ratiba/apps/api/echo"
	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/timetable"
	cachesvc "github.com/trezcool/ratiba/services/cache"
	logsvc "github.com/trezcool/ratiba/services/logger"
	metricsvc "github.com/trezcool/ratiba/services/metrics"
	notifysvc "github.com/trezcool/ratiba/services/notify"
	"github.com/trezcool/ratiba/storage/database"
	sqlxrepos "github.com/trezcool/ratiba/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newZap(conf *core.Config) (*zap.Logger, error) {
	return logsvc.NewZap(conf, "ratiba")
}

func newLogger(conf *core.Config, zl *zap.Logger) core.Logger {
	logger := logsvc.NewRollbarLogger(zl.Named("api"), conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config, zl *zap.Logger) core.Logger {
	logger := logsvc.NewRollbarLogger(zl.Named("db"), conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	setUp := func() (*sqlx.DB, error) {
		ctx := context.Background()
		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

// newCatalogCache uses Redis when an address is configured, the process memory otherwise.
func newCatalogCache(conf *core.Config, logger core.Logger) timetable.CatalogCache {
	client, err := cachesvc.NewRedisClient(context.Background(), conf)
	if err != nil {
		logger.Warn("redis unavailable, caching catalogs in memory", err)
	}
	if client == nil {
		return cachesvc.NewMemoryCache(conf.Redis.CatalogTTL)
	}
	return cachesvc.NewRedisCache(client, conf.Redis.CatalogTTL)
}

// listensToChanges reports whether change events travel through Postgres LISTEN/NOTIFY,
// so that every API instance sees the writes of the others.
func listensToChanges(conf *core.Config) bool {
	return conf.Database.Listen && !conf.Database.IsSQLite()
}

func newNotifier(conf *core.Config, db *sqlx.DB, hub *notifysvc.Hub) timetable.ChangeNotifier {
	if listensToChanges(conf) {
		return notifysvc.NewPGNotifier(db)
	}
	return hub
}

// newListener returns nil when changes stay in process.
func newListener(
	conf *core.Config,
	hub *notifysvc.Hub,
	store *timetable.CatalogStore,
	loggerParam DBLoggerParam,
) *notifysvc.Listener {
	if !listensToChanges(conf) {
		return nil
	}
	return notifysvc.NewListener(database.PostgresURL(conf.Database.Name, false, conf), hub, store, loggerParam.Logger)
}

func newEngine(
	repo timetable.Repository,
	notifier timetable.ChangeNotifier,
	metrics *metricsvc.Prometheus,
	logger core.Logger,
) *timetable.Engine {
	return timetable.NewEngine(repo, notifier, metrics, logger)
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newValidator(translator ut.Translator) *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, translator)
	timetable.InitValidators(validate, translator)
	return validate
}

func newServer(
	conf *core.Config,
	store *timetable.CatalogStore,
	engine *timetable.Engine,
	hub *notifysvc.Hub,
	metrics *metricsvc.Prometheus,
	validate *validator.Validate,
	translator ut.Translator,
	logger core.Logger,
) *echoapi.Server {
	opts := echoapi.NewOptions(conf)
	opts.Store = store
	opts.Engine = engine
	opts.Subscriber = hub
	opts.Metrics = metrics.Handler()
	opts.Validate = validate
	opts.Translator = translator
	opts.Logger = logger
	return echoapi.NewServer(opts)
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newZap))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(sqlxrepos.NewTimetableRepository))
	must(c.Provide(newCatalogCache))
	must(c.Provide(notifysvc.NewHub))
	must(c.Provide(newNotifier))
	must(c.Provide(newListener))
	must(c.Provide(metricsvc.NewPrometheus))
	must(c.Provide(timetable.NewCatalogStore))
	must(c.Provide(newEngine))
	must(c.Provide(newTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
