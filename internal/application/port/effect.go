package port

import (
	"context"

	"github.com/opencorp/regflow/internal/domain/entity"
)

// EffectHandler applies a business effect to one target entity. Registered
// once per target type at startup; called by the transition engine inside the
// transition's transaction (the context carries the ambient transaction).
type EffectHandler interface {
	Apply(ctx context.Context, targetID int64, effect *entity.BusinessEffect) error
}
