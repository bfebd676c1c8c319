package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dreamspy/mnemo/internal/config"
	"github.com/dreamspy/mnemo/internal/constants"
	apperrors "github.com/dreamspy/mnemo/internal/errors"
	"github.com/dreamspy/mnemo/internal/models"
	"github.com/dreamspy/mnemo/internal/retry"
	"github.com/dreamspy/mnemo/internal/service"
	"github.com/dreamspy/mnemo/internal/store"
	"github.com/dreamspy/mnemo/internal/syncer"
	"github.com/dreamspy/mnemo/internal/tracing"
	"github.com/dreamspy/mnemo/pkg/mnemo"
	"github.com/dreamspy/mnemo/pkg/mnemo/types"

	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	configPath = flag.String("config", config.DefaultPath(), "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

const usageText = `Usage: mnemo [flags] <command> [command flags]

Commands:
  log      -type TYPE -text TEXT [-metrics JSON]   log an event
  diary    -date DATE [-answers JSON] [-scale JSON] [-text RAW]
           save a diary entry; -text defers parsing to the server
  show     DATE                                    print a diary entry
  summary  DATE                                    AI summary of a day's events
  history  [-date DATE | -from DATE -to DATE]      list events
  query    QUESTION                                ask about the event log
  sync                                             drain the offline queue now
  queue    [rm ID]                                 inspect or edit the queue
  token    VALUE                                   store the API token
  agent                                            run the background sync agent
`

func main() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usageText)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *version {
		fmt.Printf("mnemo %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		if apperrors.IsValidation(err) {
			fmt.Fprintf(os.Stderr, "mnemo: %s\n", apperrors.Detail(err))
			os.Exit(2)
		}
		logrus.Fatalf("mnemo: %v", err)
	}
}

func run(ctx context.Context) error {
	command := flag.Arg(0)
	if command == "" {
		flag.Usage()
		return nil
	}

	logger := logrus.New()
	if command == "agent" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else if cfg.LogLevel != "" {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			logger.Warnf("Invalid log level %q, defaulting to warn", cfg.LogLevel)
			logger.SetLevel(logrus.WarnLevel)
		} else {
			logger.SetLevel(level)
		}
	} else {
		logger.SetLevel(logrus.WarnLevel)
	}

	tracingManager := tracing.NewManager(tracing.Config{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: Version,
		Environment:    cfg.Tracing.Environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
		UseStdout:      cfg.Tracing.UseStdout,
	}, logger)
	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	var st *store.Store
	backoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: time.Duration(cfg.Retry.InitialBackoffMs) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.Retry.MaxBackoffMs) * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  constants.DefaultStoreRetryAttempts,
		Jitter:       true,
	})
	err = backoff.Retry(ctx, func() error {
		var initErr error
		st, initErr = store.NewWithLogger(cfg.DatabasePath, logger)
		if initErr != nil {
			logger.Warnf("Failed to open queue store: %v", initErr)
		}
		return initErr
	})
	if err != nil {
		return fmt.Errorf("failed to open queue store after retries: %w", err)
	}
	defer st.Close()

	token, err := resolveToken(ctx, cfg, st)
	if err != nil {
		return err
	}

	httpClient := &http.Client{Timeout: time.Duration(cfg.HTTPTimeoutSec) * time.Second}
	client := mnemo.NewClientWithLogger(cfg.APIBaseURL, token, httpClient, logger)

	badge := service.NewBadge(st, logger)
	engine := syncer.New(st, client, badge, logger)
	submitter := service.NewSubmitter(st, client, badge, logger)
	badge.Refresh(ctx)

	args := flag.Args()[1:]
	switch command {
	case "log":
		return cmdLog(ctx, submitter, badge, args)
	case "diary":
		return cmdDiary(ctx, cfg, submitter, badge, args)
	case "show":
		return cmdShow(ctx, client, args)
	case "summary":
		return cmdSummary(ctx, client, args)
	case "history":
		return cmdHistory(ctx, client, args)
	case "query":
		return cmdQuery(ctx, client, args)
	case "sync":
		return cmdSync(ctx, engine, badge)
	case "queue":
		return cmdQueue(ctx, st, badge, args)
	case "token":
		return cmdToken(ctx, st, args)
	case "agent":
		return runAgent(ctx, cfg, st, client, badge, engine, logger)
	default:
		flag.Usage()
		return apperrors.Validation("unknown command: " + command)
	}
}

// resolveToken prefers the environment/config token, falling back to
// the one stored on device.
func resolveToken(ctx context.Context, cfg *models.Config, st *store.Store) (string, error) {
	if cfg.Token != "" {
		return cfg.Token, nil
	}
	token, err := st.Token(ctx)
	if err != nil {
		return "", err
	}
	return token, nil
}

func cmdLog(ctx context.Context, submitter *service.Submitter, badge *service.Badge, args []string) error {
	fs := flag.NewFlagSet("log", flag.ExitOnError)
	eventType := fs.String("type", "", "event category (e.g. mood, food, symptom)")
	text := fs.String("text", "", "event text")
	metricsRaw := fs.String("metrics", "", "metrics as a JSON object of numbers")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var metrics map[string]float64
	if *metricsRaw != "" {
		if err := json.Unmarshal([]byte(*metricsRaw), &metrics); err != nil {
			return apperrors.Validation("invalid metrics JSON")
		}
	}

	queued, err := submitter.SubmitEvent(ctx, *eventType, *text, metrics)
	if err != nil {
		return err
	}
	if queued {
		fmt.Printf("Offline — queued for sync (%d pending)\n", badge.Count())
	} else {
		fmt.Println("Logged")
	}
	return nil
}

func cmdDiary(ctx context.Context, cfg *models.Config, submitter *service.Submitter, badge *service.Badge, args []string) error {
	fs := flag.NewFlagSet("diary", flag.ExitOnError)
	date := fs.String("date", time.Now().Format("2006-01-02"), "entry date (YYYY-MM-DD)")
	answersRaw := fs.String("answers", "", "complete answers as a JSON object")
	scaleRaw := fs.String("scale", "", "scale answers as a JSON object of integers")
	rawText := fs.String("text", "", "free text to be parsed into answers server-side")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var scale map[string]int
	if *scaleRaw != "" {
		if err := json.Unmarshal([]byte(*scaleRaw), &scale); err != nil {
			return apperrors.Validation("invalid scale JSON")
		}
	}

	var queued bool
	var err error
	if *rawText != "" {
		questions := make([]types.Question, 0, len(cfg.DiaryQuestions))
		for _, q := range cfg.TextQuestions() {
			questions = append(questions, types.Question{Key: q.Key, Label: q.Label})
		}
		queued, err = submitter.SaveDiaryBulk(ctx, *date, *rawText, scale, questions)
	} else {
		var answers map[string]interface{}
		if *answersRaw != "" {
			if err := json.Unmarshal([]byte(*answersRaw), &answers); err != nil {
				return apperrors.Validation("invalid answers JSON")
			}
		}
		for k, v := range scale {
			if answers == nil {
				answers = map[string]interface{}{}
			}
			answers[k] = v
		}
		queued, err = submitter.SaveDiary(ctx, *date, answers)
	}
	if err != nil {
		return err
	}
	if queued {
		fmt.Printf("Offline — diary queued for sync (%d pending)\n", badge.Count())
	} else {
		fmt.Printf("Diary saved for %s\n", *date)
	}
	return nil
}

func cmdShow(ctx context.Context, client mnemo.Client, args []string) error {
	if len(args) != 1 {
		return apperrors.Validation("usage: mnemo show DATE")
	}
	entry, err := client.GetDiary(ctx, args[0])
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func cmdSummary(ctx context.Context, client mnemo.Client, args []string) error {
	if len(args) != 1 {
		return apperrors.Validation("usage: mnemo summary DATE")
	}
	summary, err := client.GetDiarySummary(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Println(summary)
	return nil
}

func cmdHistory(ctx context.Context, client mnemo.Client, args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	date := fs.String("date", "", "single day (YYYY-MM-DD)")
	from := fs.String("from", "", "range start (YYYY-MM-DD)")
	to := fs.String("to", "", "range end (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *date == "" && *from == "" {
		*date = time.Now().Format("2006-01-02")
	}

	events, err := client.ListEvents(ctx, types.EventFilter{Date: *date, From: *from, To: *to})
	if err != nil {
		return err
	}
	for _, ev := range events {
		fmt.Printf("%s  [%s]  %s\n", ev.ClientTimestamp, ev.Type, ev.Text)
	}
	if len(events) == 0 {
		fmt.Println("No events")
	}
	return nil
}

func cmdQuery(ctx context.Context, client mnemo.Client, args []string) error {
	if len(args) == 0 {
		return apperrors.Validation("usage: mnemo query QUESTION")
	}
	question := args[0]
	answer, err := client.Query(ctx, question)
	if err != nil {
		return err
	}
	fmt.Println(answer)
	return nil
}

func cmdSync(ctx context.Context, engine *syncer.Engine, badge *service.Badge) error {
	if err := engine.Drain(ctx); err != nil {
		return err
	}
	pending := badge.Refresh(ctx)
	if pending == 0 {
		fmt.Println("Queue empty")
	} else {
		fmt.Printf("%d items still pending\n", pending)
	}
	return nil
}

func cmdQueue(ctx context.Context, st *store.Store, badge *service.Badge, args []string) error {
	if len(args) >= 1 && args[0] == "rm" {
		if len(args) != 2 {
			return apperrors.Validation("usage: mnemo queue rm ID")
		}
		if err := st.Remove(ctx, args[1]); err != nil {
			return err
		}
		fmt.Printf("Removed (%d pending)\n", badge.Refresh(ctx))
		return nil
	}

	items, err := st.Load(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Println("Queue empty")
		return nil
	}
	for i := range items {
		item := &items[i]
		line := fmt.Sprintf("%s  %-10s  %-8s  %s", item.ID, item.Kind, item.Status, item.Label())
		if item.Error != "" {
			line += "  (" + item.Error + ")"
		}
		fmt.Println(line)
	}
	return nil
}

func cmdToken(ctx context.Context, st *store.Store, args []string) error {
	if len(args) != 1 || args[0] == "" {
		return apperrors.Validation("usage: mnemo token VALUE")
	}
	if err := st.SetToken(ctx, args[0]); err != nil {
		return err
	}
	fmt.Println("Token saved")
	return nil
}

func runAgent(ctx context.Context, cfg *models.Config, st *store.Store, client *mnemo.HTTPClient, badge *service.Badge, engine *syncer.Engine, logger *logrus.Logger) error {
	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting mnemo agent")

	badge.Subscribe(func(n int) {
		logger.WithField("pending", n).Debug("Queue badge updated")
	})

	// Startup trigger
	go func() {
		if err := engine.Drain(ctx); err != nil {
			logger.WithError(err).Warn("Startup drain failed")
		}
	}()

	monitor := service.NewConnectivityMonitor(
		client, engine,
		time.Duration(cfg.Monitor.PollIntervalSec)*time.Second,
		logger,
	)
	if err := monitor.Start(ctx); err != nil {
		return fmt.Errorf("failed to start connectivity monitor: %w", err)
	}
	defer monitor.Stop()

	server := NewServer(cfg, st, engine, badge, client, logger)
	server.SetMonitor(monitor)
	serverErrCh := make(chan error, constants.ServerErrorChannelSize)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("control server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErrCh:
		logger.Error(err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown control server gracefully: %w", err)
	}

	logger.Info("Agent shutdown completed")
	return nil
}
