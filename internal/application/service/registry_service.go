package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/opencorp/regflow/internal/application/port"
	"github.com/opencorp/regflow/internal/domain/entity"
	domainwf "github.com/opencorp/regflow/internal/domain/workflow"
	"go.uber.org/zap"
)

// DefinitionRegistry stores and idempotently upserts workflow definitions.
type DefinitionRegistry interface {
	// EnsureDefinition inserts the definition if its code is unknown. On
	// re-registration it always refreshes metadata; the state graph is
	// replaced only when no non-final instance would be orphaned, otherwise
	// ErrDefinitionConflict is returned.
	EnsureDefinition(ctx context.Context, def *entity.WorkflowDefinition) (*entity.WorkflowDefinition, error)

	// GetDefinition returns the definition for a code, served from a TTL
	// cache when fresh. Fails with ErrDefinitionNotFound if absent.
	GetDefinition(ctx context.Context, code string) (*entity.WorkflowDefinition, error)
}

// definitionCache holds definitions in memory with a bounded TTL. It is
// explicitly invalidated by EnsureDefinition rather than relying on expiry.
type definitionCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

type cacheEntry struct {
	def      *entity.WorkflowDefinition
	loadedAt time.Time
}

func newDefinitionCache(ttl time.Duration) *definitionCache {
	return &definitionCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func (c *definitionCache) get(code string) *entity.WorkflowDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[code]
	if !ok || time.Since(entry.loadedAt) > c.ttl {
		return nil
	}
	return entry.def
}

func (c *definitionCache) put(def *entity.WorkflowDefinition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[def.Code] = cacheEntry{def: def, loadedAt: time.Now()}
}

func (c *definitionCache) invalidate(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, code)
}

type registryServiceImpl struct {
	definitionRepo port.DefinitionRepository
	instanceRepo   port.InstanceRepository
	cache          *definitionCache
	logger         *zap.Logger
}

// NewDefinitionRegistry creates a new DefinitionRegistry with the given
// definition cache TTL.
func NewDefinitionRegistry(
	definitionRepo port.DefinitionRepository,
	instanceRepo port.InstanceRepository,
	cacheTTL time.Duration,
	logger *zap.Logger,
) DefinitionRegistry {
	return &registryServiceImpl{
		definitionRepo: definitionRepo,
		instanceRepo:   instanceRepo,
		cache:          newDefinitionCache(cacheTTL),
		logger:         logger,
	}
}

// EnsureDefinition implements the idempotent upsert described on the interface.
func (s *registryServiceImpl) EnsureDefinition(ctx context.Context, def *entity.WorkflowDefinition) (*entity.WorkflowDefinition, error) {
	if err := domainwf.Validate(def); err != nil {
		s.logger.Error("Rejected invalid definition graph",
			zap.String("code", def.Code), zap.Error(err))
		return nil, err
	}

	hash, err := domainwf.ShapeHash(def.States)
	if err != nil {
		return nil, err
	}
	def.ShapeHash = hash

	existing, err := s.definitionRepo.GetByCode(ctx, def.Code)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		if err := s.definitionRepo.Insert(ctx, def); err != nil {
			return nil, err
		}
		s.cache.invalidate(def.Code)
		s.logger.Info("Registered workflow definition",
			zap.String("code", def.Code), zap.Int("states", len(def.States)))
		return def, nil
	}

	if existing.ShapeHash == hash {
		if existing.Name != def.Name || existing.Description != def.Description || existing.Category != def.Category {
			if err := s.definitionRepo.UpdateMetadata(ctx, def.Code, def.Name, def.Description, def.Category); err != nil {
				return nil, err
			}
			s.cache.invalidate(def.Code)
		}
		existing.Name = def.Name
		existing.Description = def.Description
		existing.Category = def.Category
		return existing, nil
	}

	// Structural change: only allowed when no non-final instance's current
	// state disappears from the new graph.
	inUse, err := s.instanceRepo.DistinctCurrentStates(ctx, def.Code)
	if err != nil {
		return nil, err
	}
	if orphaned := domainwf.Orphans(existing, def, inUse); len(orphaned) > 0 {
		s.logger.Error("Rejected structural re-registration that would orphan instances",
			zap.String("code", def.Code), zap.Strings("orphaned_states", orphaned))
		return nil, fmt.Errorf("%w: new graph for %s drops in-use states %v",
			domainwf.ErrDefinitionConflict, def.Code, orphaned)
	}

	if err := s.definitionRepo.ReplaceGraph(ctx, def); err != nil {
		return nil, err
	}
	s.cache.invalidate(def.Code)
	s.logger.Info("Replaced workflow definition graph",
		zap.String("code", def.Code), zap.String("shape_hash", hash))
	return def, nil
}

// GetDefinition implements DefinitionRegistry.
func (s *registryServiceImpl) GetDefinition(ctx context.Context, code string) (*entity.WorkflowDefinition, error) {
	if def := s.cache.get(code); def != nil {
		return def, nil
	}

	def, err := s.definitionRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if def == nil {
		return nil, fmt.Errorf("%w: %s", domainwf.ErrDefinitionNotFound, code)
	}

	s.cache.put(def)
	return def, nil
}

var _ DefinitionRegistry = (*registryServiceImpl)(nil)
