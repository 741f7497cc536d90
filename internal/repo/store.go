package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Crosspost/internal/domain"
)

// TargetUpdate — финальная запись статуса платформы.
type TargetUpdate struct {
	Status       domain.TargetStatus
	PublishedAt  *time.Time
	ErrorMessage string
}

// PostTx — операции внутри одной атомарной области поста.
//
// Пост заблокирован на всё время жизни PostTx, поэтому запись статуса
// target'а, подсчёт pending и перевод поста в published не пересекаются
// с параллельными завершениями других платформ того же поста.
type PostTx interface {
	// WriteTargetStatus записывает финальный статус pending-target'а.
	// Target в финальном статусе не меняется: возвращается false.
	WriteTargetStatus(ctx context.Context, platformID uuid.UUID, upd TargetUpdate) (bool, error)

	// CountPendingTargets считает target'ы поста в статусе pending.
	CountPendingTargets(ctx context.Context) (int, error)

	// SetPostPublished переводит пост в published.
	// Возвращает false, если пост уже был published.
	SetPostPublished(ctx context.Context, at time.Time) (bool, error)
}
