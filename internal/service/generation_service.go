package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"leadgen-sync/internal/entity"
	"leadgen-sync/internal/pkg/logger"
	"leadgen-sync/internal/repository/contract"

	"go.uber.org/multierr"
)

const generationModule = "GenerationService"

type ContentGenerator interface {
	GenerateContent(ctx context.Context, kind entity.GenerationKind) ([]byte, error)
}

type IGenerationService interface {
	// Generate returns (nil, nil) when a generation of the same kind is
	// already running; the call is dropped, not queued.
	Generate(ctx context.Context, kind entity.GenerationKind) (*entity.Generation, error)
	GenerateAll(ctx context.Context, force bool) error
	GetCached(ctx context.Context, kind entity.GenerationKind) (*entity.Generation, bool)
	UpdateCached(ctx context.Context, kind entity.GenerationKind, gen *entity.Generation) error
	ClearCached(ctx context.Context) error
	IsGenerating(kind entity.GenerationKind) bool
}

type generationService struct {
	generator ContentGenerator
	store     contract.KeyValueStore
	logger    logger.ILogger
	now       func() time.Time

	mu       sync.Mutex
	inFlight map[entity.GenerationKind]bool
}

func NewGenerationService(generator ContentGenerator, store contract.KeyValueStore, log logger.ILogger) IGenerationService {
	return &generationService{
		generator: generator,
		store:     store,
		logger:    log,
		now:       time.Now,
		inFlight:  make(map[entity.GenerationKind]bool),
	}
}

func cacheKey(kind entity.GenerationKind) string {
	return "karma_" + string(kind)
}

func (s *generationService) Generate(ctx context.Context, kind entity.GenerationKind) (*entity.Generation, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}

	if !s.acquire(kind) {
		s.logger.Debug(generationModule, "Generation already in flight, dropping call", map[string]interface{}{
			"kind": string(kind),
		})
		return nil, nil
	}
	defer s.release(kind)

	raw, err := s.generator.GenerateContent(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("generate %s: %w", kind, err)
	}

	gen, err := entity.ParseGeneration(kind, raw, s.now())
	if err != nil {
		return nil, fmt.Errorf("generate %s: %w", kind, err)
	}

	if err := s.UpdateCached(ctx, kind, gen); err != nil {
		return nil, err
	}

	s.logger.Info(generationModule, "Generated content", map[string]interface{}{
		"kind":  string(kind),
		"shape": string(gen.Shape),
	})
	return gen, nil
}

func (s *generationService) GenerateAll(ctx context.Context, force bool) error {
	if !force {
		for _, kind := range entity.GenerationKinds {
			if _, ok := s.GetCached(ctx, kind); ok {
				s.logger.Debug(generationModule, "Cached content present, skipping generation", map[string]interface{}{
					"kind": string(kind),
				})
				return nil
			}
		}
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs error
	)
	for _, kind := range entity.GenerationKinds {
		wg.Add(1)
		go func(kind entity.GenerationKind) {
			defer wg.Done()
			if _, err := s.Generate(ctx, kind); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
		}(kind)
	}
	wg.Wait()

	return errs
}

func (s *generationService) GetCached(ctx context.Context, kind entity.GenerationKind) (*entity.Generation, bool) {
	raw, found, err := s.store.Get(ctx, cacheKey(kind))
	if err != nil {
		s.logger.Warn(generationModule, "Failed to read cached content", map[string]interface{}{
			"kind":  string(kind),
			"error": err.Error(),
		})
		return nil, false
	}
	if !found {
		return nil, false
	}

	var gen entity.Generation
	if err := json.Unmarshal([]byte(raw), &gen); err != nil {
		s.logger.Warn(generationModule, "Ignoring unreadable cached content", map[string]interface{}{
			"kind":  string(kind),
			"error": err.Error(),
		})
		return nil, false
	}
	return &gen, true
}

func (s *generationService) UpdateCached(ctx context.Context, kind entity.GenerationKind, gen *entity.Generation) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	if gen == nil {
		return fmt.Errorf("update %s: %w", kind, entity.ErrMalformedGeneration)
	}

	entry := *gen
	entry.Kind = kind

	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, cacheKey(kind), string(raw)); err != nil {
		return fmt.Errorf("cache %s: %w", kind, err)
	}
	return nil
}

func (s *generationService) ClearCached(ctx context.Context) error {
	var errs error
	for _, kind := range entity.GenerationKinds {
		errs = multierr.Append(errs, s.store.Delete(ctx, cacheKey(kind)))
	}
	return errs
}

func (s *generationService) IsGenerating(kind entity.GenerationKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight[kind]
}

func (s *generationService) acquire(kind entity.GenerationKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[kind] {
		return false
	}
	s.inFlight[kind] = true
	return true
}

func (s *generationService) release(kind entity.GenerationKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, kind)
}
