package post

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

var testMetrics = metrics.NewMetrics("clinic_test", "post")

type likeKey struct {
	postID uuid.UUID
	userID uuid.UUID
}

// fakePostRepo mirrors the store-level guarantees the real repository gets
// from the database: the like set is unique per (post, user) and the counter
// adjustment is atomic under the same lock.
type fakePostRepo struct {
	mu       sync.Mutex
	posts    map[uuid.UUID]*model.Post
	likes    map[likeKey]struct{}
	comments []*model.Comment
}

func newFakePostRepo() *fakePostRepo {
	return &fakePostRepo{
		posts: make(map[uuid.UUID]*model.Post),
		likes: make(map[likeKey]struct{}),
	}
}

func (r *fakePostRepo) Create(_ context.Context, post *model.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	post.ID = uuid.New()
	r.posts[post.ID] = post
	return nil
}

func (r *fakePostRepo) Get(_ context.Context, id uuid.UUID) (*model.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[id]
	if !ok {
		return nil, apperrors.NotFound("post", nil)
	}
	return post, nil
}

func (r *fakePostRepo) List(_ context.Context) ([]*model.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.Post, 0, len(r.posts))
	for _, p := range r.posts {
		out = append(out, p)
	}
	return out, nil
}

func (r *fakePostRepo) ListByDoctor(_ context.Context, doctorID uuid.UUID) ([]*model.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Post
	for _, p := range r.posts {
		if p.DoctorID == doctorID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakePostRepo) AddComment(_ context.Context, comment *model.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	comment.ID = uuid.New()
	r.comments = append(r.comments, comment)
	return nil
}

func (r *fakePostRepo) AddLike(_ context.Context, postID, userID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.posts[postID]; !ok {
		return false, apperrors.NotFound("post", nil)
	}
	key := likeKey{postID: postID, userID: userID}
	if _, ok := r.likes[key]; ok {
		return false, nil
	}
	r.likes[key] = struct{}{}
	return true, nil
}

func (r *fakePostRepo) RemoveLike(_ context.Context, postID, userID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := likeKey{postID: postID, userID: userID}
	if _, ok := r.likes[key]; !ok {
		return false, nil
	}
	delete(r.likes, key)
	return true, nil
}

func (r *fakePostRepo) AdjustLikesCount(_ context.Context, postID uuid.UUID, delta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	post, ok := r.posts[postID]
	if !ok {
		return apperrors.NotFound("post", nil)
	}
	post.LikesCount += delta
	return nil
}

func (r *fakePostRepo) CountLikes(_ context.Context, postID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for key := range r.likes {
		if key.postID == postID {
			count++
		}
	}
	return count, nil
}

func createPost(t *testing.T, svc *Service) *model.Post {
	t.Helper()
	post, err := svc.Create(context.Background(), uuid.New(), &model.CreatePostRequest{Content: "flu season advice"})
	require.NoError(t, err)
	return post
}

func TestLikeIncrementsCounter(t *testing.T) {
	repo := newFakePostRepo()
	svc := NewService(repo, testMetrics)
	post := createPost(t, svc)

	require.NoError(t, svc.Like(context.Background(), post.ID, uuid.New()))

	got, err := svc.Get(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.LikesCount)
}

func TestDoubleLikeIsIdempotent(t *testing.T) {
	repo := newFakePostRepo()
	svc := NewService(repo, testMetrics)
	post := createPost(t, svc)
	userID := uuid.New()

	require.NoError(t, svc.Like(context.Background(), post.ID, userID))
	require.NoError(t, svc.Like(context.Background(), post.ID, userID))

	got, err := svc.Get(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.LikesCount, "second like by the same user must not bump the counter")
}

func TestUnlikeDecrementsOnlyExistingLike(t *testing.T) {
	repo := newFakePostRepo()
	svc := NewService(repo, testMetrics)
	post := createPost(t, svc)
	userID := uuid.New()

	// Unlike without a prior like is a no-op.
	require.NoError(t, svc.Unlike(context.Background(), post.ID, userID))
	got, err := svc.Get(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.LikesCount)

	require.NoError(t, svc.Like(context.Background(), post.ID, userID))
	require.NoError(t, svc.Unlike(context.Background(), post.ID, userID))
	require.NoError(t, svc.Unlike(context.Background(), post.ID, userID))

	got, err = svc.Get(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.LikesCount, "counter never goes below the number of like rows")
}

func TestConcurrentLikersCountExactly(t *testing.T) {
	repo := newFakePostRepo()
	svc := NewService(repo, testMetrics)
	post := createPost(t, svc)

	const likers = 50
	var wg sync.WaitGroup
	wg.Add(likers)
	for i := 0; i < likers; i++ {
		go func() {
			defer wg.Done()
			assert.NoError(t, svc.Like(context.Background(), post.ID, uuid.New()))
		}()
	}
	wg.Wait()

	got, err := svc.Get(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, likers, got.LikesCount)

	rows, err := repo.CountLikes(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, rows, got.LikesCount, "counter must equal the number of like rows")
}

func TestLikeUnknownPostNotFound(t *testing.T) {
	svc := NewService(newFakePostRepo(), testMetrics)

	err := svc.Like(context.Background(), uuid.New(), uuid.New())
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestAddCommentRequiresContentAndPost(t *testing.T) {
	repo := newFakePostRepo()
	svc := NewService(repo, testMetrics)
	post := createPost(t, svc)

	err := svc.AddComment(context.Background(), post.ID, uuid.New(), "")
	require.Error(t, err)

	err = svc.AddComment(context.Background(), uuid.New(), uuid.New(), "nice")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))

	require.NoError(t, svc.AddComment(context.Background(), post.ID, uuid.New(), "nice"))
	require.Len(t, repo.comments, 1)
}
