package service

import (
	"context"
	"fmt"

	"github.com/opencorp/regflow/internal/application/port"
	"github.com/opencorp/regflow/internal/domain/entity"
	"go.uber.org/zap"
)

// EffectRegistry dispatches business effects to the handler registered for a
// target type. Handlers are registered once at startup; the map is read-only
// afterwards, so dispatch needs no locking.
type EffectRegistry struct {
	handlers map[string]port.EffectHandler
	logger   *zap.Logger
}

// NewEffectRegistry creates an empty effect registry.
func NewEffectRegistry(logger *zap.Logger) *EffectRegistry {
	return &EffectRegistry{
		handlers: make(map[string]port.EffectHandler),
		logger:   logger,
	}
}

// Register binds a handler to a target type. Registering the same type twice
// is a wiring bug and panics at startup.
func (r *EffectRegistry) Register(targetType string, handler port.EffectHandler) {
	if _, exists := r.handlers[targetType]; exists {
		panic(fmt.Sprintf("effect handler already registered for target type %q", targetType))
	}
	r.handlers[targetType] = handler
}

// Apply routes the effect to the registered handler. Called inside the
// transition engine's transaction.
func (r *EffectRegistry) Apply(ctx context.Context, targetType string, targetID int64, effect *entity.BusinessEffect) error {
	handler, ok := r.handlers[targetType]
	if !ok {
		r.logger.Error("No effect handler for target type", zap.String("target_type", targetType))
		return fmt.Errorf("no effect handler registered for target type %q", targetType)
	}
	return handler.Apply(ctx, targetID, effect)
}
