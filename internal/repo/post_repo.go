package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Crosspost/internal/domain"
)

// PostRepo — репозиторий постов и их target'ов (таблица post_platform).
type PostRepo struct {
	pool *pgxpool.Pool
}

// NewPostRepo создаёт новый PostRepo.
func NewPostRepo(pool *pgxpool.Pool) *PostRepo {
	return &PostRepo{pool: pool}
}

const postColumns = `id, title, content, image_url, status, scheduled_time, published_at, created_at, updated_at`

const targetSelect = `
	SELECT pp.post_id, pp.platform_id, pp.status, pp.published_at, pp.error_message,
	       pp.created_at, pp.updated_at,
	       p.id, p.name, p.type, p.character_limit, p.is_active, p.created_at, p.updated_at
	FROM post_platform pp
	JOIN platforms p ON p.id = pp.platform_id
`

// CreatePost создаёт пост и pending-target'ы для выбранных платформ.
func (r *PostRepo) CreatePost(ctx context.Context, post *domain.Post, platformIDs []uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO posts (` + postColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = tx.Exec(ctx, query,
		post.ID,
		post.Title,
		post.Content,
		nullString(post.ImageURL),
		post.Status,
		post.ScheduledTime,
		post.PublishedAt,
		post.CreatedAt,
		post.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert post: %w", err)
	}

	if err := insertTargets(ctx, tx, post.ID, platformIDs, post.CreatedAt); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// GetPost возвращает пост по ID.
func (r *PostRepo) GetPost(ctx context.Context, id uuid.UUID) (*domain.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	return scanPost(r.pool.QueryRow(ctx, query, id))
}

// ListDue возвращает посты со статусом scheduled и наступившим scheduled_time.
func (r *PostRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Post, error) {
	query := `
		SELECT ` + postColumns + `
		FROM posts
		WHERE status = 'scheduled'
		  AND scheduled_time IS NOT NULL
		  AND scheduled_time <= $1
		ORDER BY scheduled_time ASC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due posts: %w", err)
	}
	defer rows.Close()

	var posts []domain.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *post)
	}
	return posts, rows.Err()
}

// ListTargets возвращает все target'ы поста.
func (r *PostRepo) ListTargets(ctx context.Context, postID uuid.UUID) ([]domain.PlatformTarget, error) {
	query := targetSelect + `
		WHERE pp.post_id = $1
		ORDER BY p.name ASC
	`
	return r.queryTargets(ctx, query, postID)
}

// ListPendingTargets возвращает target'ы поста в статусе pending.
func (r *PostRepo) ListPendingTargets(ctx context.Context, postID uuid.UUID) ([]domain.PlatformTarget, error) {
	query := targetSelect + `
		WHERE pp.post_id = $1 AND pp.status = 'pending'
		ORDER BY p.name ASC
	`
	return r.queryTargets(ctx, query, postID)
}

// GetTarget возвращает target по паре (post, platform).
func (r *PostRepo) GetTarget(ctx context.Context, postID, platformID uuid.UUID) (*domain.PlatformTarget, error) {
	query := targetSelect + `
		WHERE pp.post_id = $1 AND pp.platform_id = $2
	`
	return scanTarget(r.pool.QueryRow(ctx, query, postID, platformID))
}

// ReplaceTargets заменяет набор платформ поста свежими pending-target'ами.
// Для опубликованного поста возвращает ErrInvalidState.
func (r *PostRepo) ReplaceTargets(ctx context.Context, postID uuid.UUID, platformIDs []uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	status, err := lockPost(ctx, tx, postID)
	if err != nil {
		return err
	}
	if status.IsTerminal() {
		return ErrInvalidState
	}

	if _, err := tx.Exec(ctx, `DELETE FROM post_platform WHERE post_id = $1`, postID); err != nil {
		return fmt.Errorf("delete targets: %w", err)
	}
	if err := insertTargets(ctx, tx, postID, platformIDs, time.Now()); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// InPostTx выполняет fn в транзакции с блокировкой строки поста.
//
// Все завершения target'ов одного поста сериализуются на
// SELECT ... FOR UPDATE, поэтому подсчёт pending внутри fn
// видит результаты всех ранее закоммиченных записей.
func (r *PostRepo) InPostTx(ctx context.Context, postID uuid.UUID, fn func(PostTx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := lockPost(ctx, tx, postID); err != nil {
		return err
	}

	if err := fn(&pgPostTx{tx: tx, postID: postID}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// --- PostTx ---

type pgPostTx struct {
	tx     pgx.Tx
	postID uuid.UUID
}

func (t *pgPostTx) WriteTargetStatus(ctx context.Context, platformID uuid.UUID, upd TargetUpdate) (bool, error) {
	query := `
		UPDATE post_platform
		SET status = $3, published_at = $4, error_message = $5, updated_at = now()
		WHERE post_id = $1 AND platform_id = $2 AND status = 'pending'
	`
	result, err := t.tx.Exec(ctx, query,
		t.postID,
		platformID,
		upd.Status,
		upd.PublishedAt,
		nullString(upd.ErrorMessage),
	)
	if err != nil {
		return false, fmt.Errorf("update target status: %w", err)
	}
	if result.RowsAffected() > 0 {
		return true, nil
	}

	// Ни одной строки: target уже финальный либо его нет
	var status domain.TargetStatus
	err = t.tx.QueryRow(ctx, `
		SELECT status FROM post_platform WHERE post_id = $1 AND platform_id = $2
	`, t.postID, platformID).Scan(&status)
	if err != nil {
		return false, noRows(err)
	}
	return false, nil
}

func (t *pgPostTx) CountPendingTargets(ctx context.Context) (int, error) {
	var count int
	err := t.tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM post_platform WHERE post_id = $1 AND status = 'pending'
	`, t.postID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count pending targets: %w", err)
	}
	return count, nil
}

func (t *pgPostTx) SetPostPublished(ctx context.Context, at time.Time) (bool, error) {
	result, err := t.tx.Exec(ctx, `
		UPDATE posts
		SET status = 'published', published_at = $2, updated_at = now()
		WHERE id = $1 AND status <> 'published'
	`, t.postID, at)
	if err != nil {
		return false, fmt.Errorf("set post published: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// --- Helpers ---

func lockPost(ctx context.Context, tx pgx.Tx, postID uuid.UUID) (domain.PostStatus, error) {
	var status domain.PostStatus
	err := tx.QueryRow(ctx, `SELECT status FROM posts WHERE id = $1 FOR UPDATE`, postID).Scan(&status)
	switch err = noRows(err); {
	case errors.Is(err, ErrNotFound):
		return "", err
	case err != nil:
		return "", fmt.Errorf("lock post: %w", err)
	}
	return status, nil
}

func insertTargets(ctx context.Context, tx pgx.Tx, postID uuid.UUID, platformIDs []uuid.UUID, now time.Time) error {
	for _, platformID := range platformIDs {
		_, err := tx.Exec(ctx, `
			INSERT INTO post_platform (post_id, platform_id, status, created_at, updated_at)
			VALUES ($1, $2, 'pending', $3, $3)
		`, postID, platformID, now)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrAlreadyExists
			}
			return fmt.Errorf("insert target: %w", err)
		}
	}
	return nil
}

func (r *PostRepo) queryTargets(ctx context.Context, query string, args ...any) ([]domain.PlatformTarget, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	defer rows.Close()

	var targets []domain.PlatformTarget
	for rows.Next() {
		target, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		targets = append(targets, *target)
	}
	return targets, rows.Err()
}

func scanPost(row pgx.Row) (*domain.Post, error) {
	var post domain.Post
	var imageURL *string

	err := row.Scan(
		&post.ID,
		&post.Title,
		&post.Content,
		&imageURL,
		&post.Status,
		&post.ScheduledTime,
		&post.PublishedAt,
		&post.CreatedAt,
		&post.UpdatedAt,
	)
	switch err = noRows(err); {
	case errors.Is(err, ErrNotFound):
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("scan post: %w", err)
	}
	if imageURL != nil {
		post.ImageURL = *imageURL
	}
	return &post, nil
}

func scanTarget(row pgx.Row) (*domain.PlatformTarget, error) {
	var t domain.PlatformTarget
	var errMsg *string

	err := row.Scan(
		&t.PostID,
		&t.PlatformID,
		&t.Status,
		&t.PublishedAt,
		&errMsg,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.Platform.ID,
		&t.Platform.Name,
		&t.Platform.Type,
		&t.Platform.CharacterLimit,
		&t.Platform.IsActive,
		&t.Platform.CreatedAt,
		&t.Platform.UpdatedAt,
	)
	switch err = noRows(err); {
	case errors.Is(err, ErrNotFound):
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("scan target: %w", err)
	}
	if errMsg != nil {
		t.ErrorMessage = *errMsg
	}
	return &t, nil
}

// nullString возвращает nil для пустой строки.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
