package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/mgp-travel/tourchat/internal/ai"
	"github.com/mgp-travel/tourchat/internal/chat"
	"github.com/mgp-travel/tourchat/internal/config"
	"github.com/mgp-travel/tourchat/internal/db"
	"github.com/mgp-travel/tourchat/internal/logging"
	"github.com/mgp-travel/tourchat/internal/store/rabbitmq"
)

func workerConcurrency() int {
	v := os.Getenv("WORKER_CONCURRENCY")
	if v == "" {
		return 2
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 2
	}
	if n > 50 {
		return 50
	}
	return n
}

func registerProviders(reg *ai.Registry, cfg config.Config) {
	reg.Register("ollama", func(_ context.Context, model string) (ai.Provider, error) {
		if model == "" {
			model = cfg.OllamaModel
		}
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, model), nil
	})
	reg.Register("openrouter", func(_ context.Context, model string) (ai.Provider, error) {
		if model == "" {
			model = cfg.OpenRouterModel
		}
		return ai.NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, model,
			cfg.OpenRouterSiteURL, cfg.OpenRouterAppName), nil
	})
	reg.Register("yandexgpt", func(_ context.Context, model string) (ai.Provider, error) {
		if model == "" {
			model = cfg.YandexModel
		}
		return ai.NewYandexGPTProvider(cfg.YandexBaseURL, cfg.YandexAPIKey, cfg.YandexFolderID, model), nil
	})
}

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel)

	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Error("database connect failed", "err", err)
		os.Exit(1)
	}
	repo := chat.NewRepo(gdb)
	if err := repo.AutoMigrate(); err != nil {
		log.Error("migrate failed", "err", err)
		os.Exit(1)
	}

	reg := ai.NewRegistry()
	registerProviders(reg, cfg)

	svc := chat.NewService(repo, reg, chat.ServiceConfig{
		ProviderName: cfg.AIProvider,
		SystemPrompt: cfg.SystemPrompt,
		Window:       cfg.ChatContextWindowSize,
	}, log)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Error("rabbit dial failed", "err", err)
		os.Exit(1)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Error("rabbit channel failed", "err", err)
		os.Exit(1)
	}
	defer ch.Close()

	if err := rabbitmq.DeclareQueues(ch, cfg.RabbitQueue); err != nil {
		log.Error("queue declare failed", "err", err)
		os.Exit(1)
	}

	concurrency := workerConcurrency()
	if err := ch.Qos(concurrency, 0, false); err != nil {
		log.Error("qos failed", "err", err)
		os.Exit(1)
	}

	msgs, err := ch.Consume(cfg.RabbitQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Error("consume failed", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("worker started", "queue", cfg.RabbitQueue, "concurrency", concurrency)

	jobs := make(chan amqp.Delivery, concurrency*2)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				var m rabbitmq.JobMessage
				if err := json.Unmarshal(d.Body, &m); err != nil || m.JobID == "" {
					log.Warn("bad message", "worker", workerID, "err", err)
					_ = d.Nack(false, false)
					continue
				}

				start := time.Now()
				if err := handleJob(ctx, svc, repo, m.JobID); err != nil {
					log.Error("job failed", "worker", workerID, "job_id", m.JobID,
						"cost", time.Since(start).String(), "err", err)
					_ = d.Nack(false, false)
					continue
				}

				log.Info("job done", "worker", workerID, "job_id", m.JobID, "cost", time.Since(start).String())
				if err := d.Ack(false); err != nil {
					log.Warn("ack failed", "worker", workerID, "job_id", m.JobID, "err", err)
				}
			}
		}(i)
	}

	for {
		select {
		case <-ctx.Done():
			log.Info("worker shutting down")
			close(jobs)
			wg.Wait()
			return

		case d, ok := <-msgs:
			if !ok {
				log.Warn("delivery channel closed")
				time.Sleep(1 * time.Second)
				continue
			}
			jobs <- d
		}
	}
}

func handleJob(ctx context.Context, svc *chat.Service, repo *chat.Repo, jobID string) error {
	_ = repo.UpdateJobStatusRunning(ctx, jobID)

	j, err := repo.GetJobByID(ctx, jobID)
	if err != nil {
		return err
	}

	_, recordID, err := svc.GenerateReply(ctx, j.SessionID, j.Prompt)
	if err != nil {
		_ = repo.MarkJobFailed(ctx, jobID, err.Error())
		return err
	}

	return repo.MarkJobSucceeded(ctx, jobID, recordID)
}
