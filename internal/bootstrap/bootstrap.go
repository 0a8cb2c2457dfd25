package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"

	httpadapter "github.com/kirillkom/research-bot/internal/adapters/http"
	slackadapter "github.com/kirillkom/research-bot/internal/adapters/slack"
	"github.com/kirillkom/research-bot/internal/config"
	"github.com/kirillkom/research-bot/internal/core/usecase"
	"github.com/kirillkom/research-bot/internal/infrastructure/llm/openai"
	"github.com/kirillkom/research-bot/internal/infrastructure/pdfinspect"
	"github.com/kirillkom/research-bot/internal/infrastructure/queue/nats"
	"github.com/kirillkom/research-bot/internal/infrastructure/repository/airtable"
	"github.com/kirillkom/research-bot/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/research-bot/internal/infrastructure/resilience"
	"github.com/kirillkom/research-bot/internal/infrastructure/storage/scratch"
	"github.com/kirillkom/research-bot/internal/observability/metrics"
)

const (
	ServiceName = "research-bot"

	airtableCallTimeout = 60 * time.Second
	natsCallTimeout     = 5 * time.Second
)

// App holds the long lived components of the serve command.
type App struct {
	Config config.Config

	Metrics  *metrics.WorkflowMetrics
	Records  *airtable.Client
	Journal  *postgres.JournalRepository
	Bus      *nats.OutcomeBus
	Ingestor *usecase.IngestPDFUseCase

	Handler  *slackadapter.Handler
	Listener *slackadapter.Listener
	Router   *httpadapter.Router

	closers []func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	app := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	app.Metrics = metrics.NewWorkflowMetrics(ServiceName)
	var executors []*resilience.Executor
	guard := func(callTimeout time.Duration) *resilience.Executor {
		executor := newExecutor(cfg, callTimeout, app.Metrics.ObserveBreakerState)
		executors = append(executors, executor)
		return executor
	}
	app.Records = newRecordStore(cfg, guard(airtableCallTimeout))

	scratchStore, err := scratch.New(cfg.ScratchDir, scratch.Options{})
	if err != nil {
		return nil, fmt.Errorf("init scratch storage: %w", err)
	}

	openAIClient := openai.New(cfg.OpenAIAPIKey, openai.Options{
		BaseURL:            cfg.OpenAIBaseURL,
		ResilienceExecutor: guard(0),
	})
	extractor, err := openai.NewExtractor(openAIClient, openai.ExtractorOptions{
		Models:         cfg.OpenAIModels,
		AttemptTimeout: cfg.OpenAIAttemptTimeout,
		Observer:       app.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("init extractor: %w", err)
	}

	checks := map[string]httpadapter.ReadinessCheck{
		"breakers": func(context.Context) error { return openBreakers(executors) },
	}
	options := usecase.IngestOptions{
		DownloadToken:   cfg.SlackBotToken,
		Table:           cfg.AirtableTable,
		AttachmentField: cfg.AirtableAttachmentField,
		Observer:        app.Metrics,
	}

	if cfg.PostgresDSN != "" {
		journal, closeDB, err := OpenJournal(ctx, cfg)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, closeDB)
		app.Journal = journal
		options.Journal = journal
		checks["postgres"] = journal.Ping
	}
	if cfg.NATSURL != "" {
		bus, err := openBus(cfg, guard(natsCallTimeout))
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, bus.Close)
		app.Bus = bus
		options.Publisher = bus
		checks["nats"] = bus.Ping
	}

	api := slack.New(cfg.SlackBotToken, slack.OptionAppLevelToken(cfg.SlackAppToken))
	poster := slackadapter.NewPoster(api, nil)
	app.Ingestor = usecase.NewIngestPDFUseCase(scratchStore, pdfinspect.New(), extractor, app.Records, poster, options)
	app.Handler = slackadapter.NewHandler(api, poster, app.Ingestor, cfg.SlackLoggingChannel)
	app.Listener = slackadapter.NewListener(socketmode.New(api), app.Handler)

	routerOptions := httpadapter.RouterOptions{
		MetricsHandler: app.Metrics.Handler(),
		HTTPMetrics:    metrics.NewHTTPServerMetrics(ServiceName, app.Metrics.Registry()),
		Checks:         checks,
	}
	if app.Journal != nil {
		routerOptions.Runs = app.Journal
	}
	app.Router = httpadapter.NewRouter(routerOptions)

	slog.Info("bootstrap_completed",
		"models", cfg.OpenAIModels,
		"table", cfg.AirtableTable,
		"journal", app.Journal != nil,
		"bus", app.Bus != nil,
	)
	ok = true
	return app, nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// NewRecordStore builds the Airtable client used by serve and export.
func NewRecordStore(cfg config.Config) *airtable.Client {
	return newRecordStore(cfg, newExecutor(cfg, airtableCallTimeout, nil))
}

func newRecordStore(cfg config.Config, executor *resilience.Executor) *airtable.Client {
	return airtable.New(cfg.AirtableToken, cfg.AirtableBaseID, airtable.Options{
		TableID:            cfg.AirtableTableID,
		ViewID:             cfg.AirtableViewID,
		ResilienceExecutor: executor,
	})
}

// OpenJournal connects to Postgres and makes sure the runs table exists.
func OpenJournal(ctx context.Context, cfg config.Config) (*postgres.JournalRepository, func(), error) {
	if err := cfg.ValidateJournal(); err != nil {
		return nil, nil, err
	}
	db, err := postgres.OpenDB(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	journal := postgres.NewJournalRepository(db)
	if err := journal.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ensure schema: %w", err)
	}
	return journal, func() { _ = db.Close() }, nil
}

func OpenBus(cfg config.Config) (*nats.OutcomeBus, error) {
	return openBus(cfg, newExecutor(cfg, natsCallTimeout, nil))
}

func openBus(cfg config.Config, executor *resilience.Executor) (*nats.OutcomeBus, error) {
	if err := cfg.ValidateNATS(); err != nil {
		return nil, err
	}
	bus, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init outcome bus: %w", err)
	}
	return bus, nil
}

func newExecutor(cfg config.Config, callTimeout time.Duration, onStateChange func(operation, from, to string)) *resilience.Executor {
	policy := resilience.DefaultConfig()
	policy.CallTimeout = callTimeout
	policy.BreakerEnabled = cfg.BreakerEnabled
	policy.OnStateChange = onStateChange
	return resilience.NewExecutor(policy)
}

func openBreakers(executors []*resilience.Executor) error {
	var open []string
	for _, executor := range executors {
		open = append(open, executor.OpenOperations()...)
	}
	if len(open) > 0 {
		return fmt.Errorf("circuit open: %s", strings.Join(open, ", "))
	}
	return nil
}
