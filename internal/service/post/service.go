package post

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

type Service struct {
	repo    repository.PostRepository
	metrics *metrics.Metrics
}

func NewService(repo repository.PostRepository, m *metrics.Metrics) *Service {
	return &Service{
		repo:    repo,
		metrics: m,
	}
}

func (s *Service) Create(ctx context.Context, doctorID uuid.UUID, req *model.CreatePostRequest) (*model.Post, error) {
	if doctorID == uuid.Nil {
		return nil, apperrors.BadRequest("doctor ID is required", nil)
	}
	if req.Content == "" {
		return nil, apperrors.BadRequest("content is required", nil)
	}

	post := &model.Post{
		DoctorID: doctorID,
		Content:  req.Content,
		ImageURL: req.ImageURL,
	}
	if err := s.repo.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}
	return post, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Post, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*model.Post, error) {
	return s.repo.List(ctx)
}

func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*model.Post, error) {
	return s.repo.ListByDoctor(ctx, doctorID)
}

func (s *Service) AddComment(ctx context.Context, postID, userID uuid.UUID, content string) error {
	if content == "" {
		return apperrors.BadRequest("content is required", nil)
	}
	if _, err := s.repo.Get(ctx, postID); err != nil {
		return err
	}
	return s.repo.AddComment(ctx, &model.Comment{
		PostID:  postID,
		UserID:  userID,
		Content: content,
	})
}

// Like records a like and bumps the denormalized counter. The counter is only
// adjusted when a like row was actually inserted, and the adjustment is an
// atomic store-level increment, so likes_count always equals the number of
// like rows: a second like by the same user is a no-op, and N concurrent
// likers end up at exactly N.
func (s *Service) Like(ctx context.Context, postID, userID uuid.UUID) error {
	inserted, err := s.repo.AddLike(ctx, postID, userID)
	if err != nil {
		return fmt.Errorf("failed to add like: %w", err)
	}
	if !inserted {
		return nil
	}

	s.metrics.LikeOperations.WithLabelValues("like").Inc()
	return s.repo.AdjustLikesCount(ctx, postID, 1)
}

// Unlike is the symmetric operation: the decrement happens only when a like
// row was actually removed.
func (s *Service) Unlike(ctx context.Context, postID, userID uuid.UUID) error {
	removed, err := s.repo.RemoveLike(ctx, postID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove like: %w", err)
	}
	if !removed {
		return nil
	}

	s.metrics.LikeOperations.WithLabelValues("unlike").Inc()
	return s.repo.AdjustLikesCount(ctx, postID, -1)
}
