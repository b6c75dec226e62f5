package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

type postRepository struct {
	db *sqlx.DB
}

func NewPostRepository(db *sqlx.DB) repository.PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *model.Post) error {
	query := `
		INSERT INTO posts (
			id, doctor_id, content, image_url, likes_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	post.ID = uuid.New()
	post.LikesCount = 0
	post.CreatedAt = time.Now()
	post.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		post.ID,
		post.DoctorID,
		post.Content,
		post.ImageURL,
		post.LikesCount,
		post.CreatedAt,
		post.UpdatedAt,
	)
	if err != nil {
		return apperrors.Internal(fmt.Errorf("failed to create post: %w", err))
	}
	return nil
}

func (r *postRepository) Get(ctx context.Context, id uuid.UUID) (*model.Post, error) {
	query := `
		SELECT id, doctor_id, content, image_url, likes_count, created_at, updated_at
		FROM posts
		WHERE id = $1
	`
	var post model.Post
	err := r.db.GetContext(ctx, &post, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("post", err)
	}
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to get post: %w", err))
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context) ([]*model.Post, error) {
	query := `
		SELECT id, doctor_id, content, image_url, likes_count, created_at, updated_at
		FROM posts
		ORDER BY created_at DESC
	`
	var posts []*model.Post
	if err := r.db.SelectContext(ctx, &posts, query); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to list posts: %w", err))
	}
	return posts, nil
}

func (r *postRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Post, error) {
	query := `
		SELECT id, doctor_id, content, image_url, likes_count, created_at, updated_at
		FROM posts
		WHERE doctor_id = $1
		ORDER BY created_at DESC
	`
	var posts []*model.Post
	if err := r.db.SelectContext(ctx, &posts, query, doctorID); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to list posts: %w", err))
	}
	return posts, nil
}

func (r *postRepository) AddComment(ctx context.Context, comment *model.Comment) error {
	query := `
		INSERT INTO comments (id, post_id, user_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	comment.ID = uuid.New()
	comment.CreatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		comment.ID,
		comment.PostID,
		comment.UserID,
		comment.Content,
		comment.CreatedAt,
	)
	if err != nil {
		return apperrors.Internal(fmt.Errorf("failed to add comment: %w", err))
	}
	return nil
}

// AddLike relies on the (post_id, user_id) unique constraint: a duplicate
// like inserts nothing and reports inserted=false.
func (r *postRepository) AddLike(ctx context.Context, postID, userID uuid.UUID) (bool, error) {
	query := `
		INSERT INTO likes (post_id, user_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (post_id, user_id) DO NOTHING
	`
	result, err := r.db.ExecContext(ctx, query, postID, userID, time.Now())
	if err != nil {
		return false, apperrors.Internal(fmt.Errorf("failed to add like: %w", err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.Internal(fmt.Errorf("failed to get rows affected: %w", err))
	}
	return rows > 0, nil
}

func (r *postRepository) RemoveLike(ctx context.Context, postID, userID uuid.UUID) (bool, error) {
	query := `DELETE FROM likes WHERE post_id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, postID, userID)
	if err != nil {
		return false, apperrors.Internal(fmt.Errorf("failed to remove like: %w", err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.Internal(fmt.Errorf("failed to get rows affected: %w", err))
	}
	return rows > 0, nil
}

// AdjustLikesCount is a single atomic in-place increment, never a
// read-modify-write, so concurrent likers cannot lose updates.
func (r *postRepository) AdjustLikesCount(ctx context.Context, postID uuid.UUID, delta int) error {
	query := `
		UPDATE posts
		SET likes_count = likes_count + $1, updated_at = $2
		WHERE id = $3
	`
	result, err := r.db.ExecContext(ctx, query, delta, time.Now(), postID)
	if err != nil {
		return apperrors.Internal(fmt.Errorf("failed to adjust likes count: %w", err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return apperrors.Internal(fmt.Errorf("failed to get rows affected: %w", err))
	}
	if rows == 0 {
		return apperrors.NotFound("post", nil)
	}
	return nil
}

func (r *postRepository) CountLikes(ctx context.Context, postID uuid.UUID) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM likes WHERE post_id = $1`, postID)
	if err != nil {
		return 0, apperrors.Internal(fmt.Errorf("failed to count likes: %w", err))
	}
	return count, nil
}
