package domain

// PostStatus — статус поста.
//
// Жизненный цикл:
//
//	draft → scheduled → published
//	      ↖ (отмена расписания)
//
// published — финальный и неизменяемый.
type PostStatus string

const (
	// PostStatusDraft — черновик, scheduler его не видит.
	PostStatusDraft PostStatus = "draft"

	// PostStatusScheduled — пост ждёт scheduled_time.
	PostStatusScheduled PostStatus = "scheduled"

	// PostStatusPublished — все платформы обработаны (успешно или нет).
	PostStatusPublished PostStatus = "published"
)

// IsTerminal возвращает true, если статус финальный.
func (s PostStatus) IsTerminal() bool {
	return s == PostStatusPublished
}

// IsValid проверяет, что значение статуса известно.
func (s PostStatus) IsValid() bool {
	switch s {
	case PostStatusDraft, PostStatusScheduled, PostStatusPublished:
		return true
	default:
		return false
	}
}

// CanTransitionTo проверяет допустимость перехода.
func (s PostStatus) CanTransitionTo(next PostStatus) bool {
	switch s {
	case PostStatusDraft:
		return next == PostStatusScheduled
	case PostStatusScheduled:
		return next == PostStatusDraft || next == PostStatusPublished
	default:
		return false
	}
}

// TargetStatus — статус публикации поста на конкретной платформе.
//
// Жизненный цикл:
//
//	pending → published
//	        ↘ failed (после всех попыток)
//
// Пока идут retry, target остаётся pending.
type TargetStatus string

const (
	// TargetStatusPending — ожидает публикации (в том числе между retry).
	TargetStatusPending TargetStatus = "pending"

	// TargetStatusPublished — опубликован на платформе.
	TargetStatusPublished TargetStatus = "published"

	// TargetStatusFailed — все попытки исчерпаны.
	TargetStatusFailed TargetStatus = "failed"
)

// IsTerminal возвращает true, если статус финальный.
func (s TargetStatus) IsTerminal() bool {
	switch s {
	case TargetStatusPublished, TargetStatusFailed:
		return true
	default:
		return false
	}
}

// IsValid проверяет, что значение статуса известно.
func (s TargetStatus) IsValid() bool {
	return s == TargetStatusPending || s.IsTerminal()
}
