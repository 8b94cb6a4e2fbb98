package chat

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"

	"github.com/mgp-travel/tourchat/internal/ai"
)

// Service owns the transcript archive. The live streaming path archives
// finished turns through it; the async worker path generates replies from the
// archived history (jobs run in a separate process with no access to the
// server's in-memory handlers).
type Service struct {
	repo     *Repo
	registry *ai.Registry

	// worker-path model routing
	providerName string
	model        string
	systemPrompt string
	window       int

	log *slog.Logger
}

type ServiceConfig struct {
	ProviderName string
	Model        string
	SystemPrompt string
	Window       int
}

func NewService(repo *Repo, registry *ai.Registry, cfg ServiceConfig, log *slog.Logger) *Service {
	if cfg.Window <= 0 || cfg.Window > 100 {
		cfg.Window = 20
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:         repo,
		registry:     registry,
		providerName: cfg.ProviderName,
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
		window:       cfg.Window,
		log:          log,
	}
}

// ArchiveTurn stores a finished turn (user message + assistant reply).
// Best-effort: callers on the live path log the returned error and move on,
// the stream to the client is never failed because of the archive.
func (s *Service) ArchiveTurn(ctx context.Context, sessionID, message, reply string) error {
	if err := s.repo.InsertRecord(ctx, &Record{
		SessionID: sessionID,
		Role:      "user",
		Content:   message,
	}); err != nil {
		return errors.Wrap(err, "archive user message")
	}
	if err := s.repo.InsertRecord(ctx, &Record{
		SessionID: sessionID,
		Role:      "assistant",
		Content:   reply,
	}); err != nil {
		return errors.Wrap(err, "archive assistant reply")
	}
	return nil
}

func (s *Service) ListRecords(ctx context.Context, sessionID string, limit int, beforeID uint64) ([]Record, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return s.repo.ListRecords(ctx, sessionID, limit, beforeID)
}

func (s *Service) CreateJob(ctx context.Context, job *Job) error {
	return s.repo.CreateJob(ctx, job)
}

func (s *Service) GetJob(ctx context.Context, jobID string) (*Job, error) {
	return s.repo.GetJobByID(ctx, jobID)
}

// GenerateReply runs one archived-history turn for the async worker: insert
// the user record, build provider context from the most recent records, call
// the provider, insert the assistant record. Returns the reply and the
// assistant record id.
func (s *Service) GenerateReply(ctx context.Context, sessionID, prompt string) (string, uint64, error) {
	provider, err := s.registry.Get(ctx, s.providerName, s.model)
	if err != nil {
		return "", 0, err
	}

	if err := s.repo.InsertRecord(ctx, &Record{
		SessionID: sessionID,
		Role:      "user",
		Content:   prompt,
	}); err != nil {
		return "", 0, errors.Wrap(err, "insert user record")
	}

	recentDesc, err := s.repo.ListRecentRecordsDesc(ctx, sessionID, s.window)
	if err != nil {
		return "", 0, errors.Wrap(err, "load history")
	}

	// provider expects ASC, optionally behind a system prompt
	msgs := make([]ai.Message, 0, len(recentDesc)+1)
	if s.systemPrompt != "" {
		msgs = append(msgs, ai.Message{Role: "system", Content: s.systemPrompt})
	}
	for i := len(recentDesc) - 1; i >= 0; i-- {
		rec := recentDesc[i]
		msgs = append(msgs, ai.Message{Role: rec.Role, Content: rec.Content})
	}

	reply, err := provider.Chat(ctx, msgs)
	if err != nil {
		return "", 0, err
	}

	assistantRec := &Record{
		SessionID: sessionID,
		Role:      "assistant",
		Content:   reply,
	}
	if err := s.repo.InsertRecord(ctx, assistantRec); err != nil {
		return "", 0, errors.Wrap(err, "insert assistant record")
	}
	return reply, assistantRec.ID, nil
}
