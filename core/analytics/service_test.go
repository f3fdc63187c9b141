package analytics

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/edvora/edvora/core"
	"github.com/edvora/edvora/core/progress"
	"github.com/edvora/edvora/core/user"
)

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return v, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *memCache) Incr(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, _ := strconv.ParseInt(string(c.data[key]), 10, 64)
	n++
	c.data[key] = []byte(strconv.FormatInt(n, 10))
	return n, nil
}

type fakeSource struct {
	calls   int
	results []progress.ResultDetail
	videos  int
	// onResults runs after the results are read, before they are summarized.
	onResults func()
}

func (s *fakeSource) Results(context.Context, string) ([]progress.ResultDetail, error) {
	s.calls++
	res := s.results
	if s.onResults != nil {
		hook := s.onResults
		s.onResults = nil
		hook()
	}
	return res, nil
}

func (s *fakeSource) CountCompletedVideos(context.Context, string) (int, error) {
	return s.videos, nil
}

type fakeProfiles map[string]user.Account

func (p fakeProfiles) GetAccount(_ context.Context, id string) (user.Account, error) {
	acc, ok := p[id]
	if !ok {
		return user.Account{}, user.ErrNotFound
	}
	return acc, nil
}

type fakeRepo struct{ counts TeacherCounts }

func (r fakeRepo) TeacherCounts(context.Context, string) (TeacherCounts, error) { return r.counts, nil }

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func newTestService(src *fakeSource, cache Cache, counts TeacherCounts) ServiceInterface {
	conf := &core.Config{}
	conf.Redis.AnalyticsTTL = time.Minute
	profiles := fakeProfiles{
		"s1": {User: user.User{ID: "s1", Role: user.RoleStudent}, Student: &user.StudentProfile{CurrentStreak: 4, DailyGoalMinutes: 30}},
	}
	return NewService(fakeRepo{counts}, src, profiles, cache, nopLogger{}, conf)
}

func TestService_Performance_cache(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{results: results(nil, 8, 6), videos: 3}
	cache := &memCache{data: map[string][]byte{}}
	svc := newTestService(src, cache, TeacherCounts{})

	first, err := svc.Performance(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 70, first.AverageScore)
	assert.Equal(t, 3, first.VideosCompleted)

	src.results = results(nil, 10, 8, 6)
	cached, err := svc.Performance(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls, "summary should come from cache")
	assert.Equal(t, first.AverageScore, cached.AverageScore)

	require.NoError(t, svc.Invalidate(ctx, "s1"))
	fresh, err := svc.Performance(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls)
	assert.Equal(t, 80, fresh.AverageScore)
}

func TestService_Performance_invalidatedWhileComputing(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{results: results(nil, 5)}
	cache := &memCache{data: map[string][]byte{}}
	svc := newTestService(src, cache, TeacherCounts{})

	// a quiz is submitted while the first summary is being computed
	src.onResults = func() {
		src.results = results(nil, 9, 5)
		require.NoError(t, svc.Invalidate(ctx, "s1"))
	}
	first, err := svc.Performance(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, first.TotalTests)

	next, err := svc.Performance(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, next.TotalTests, "summary computed before the invalidation must not be served")
	assert.Equal(t, 2, src.calls)

	cached, err := svc.Performance(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, cached.TotalTests)
	assert.Equal(t, 2, src.calls, "summary should come from cache")
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]byte, error) { return nil, errors.New("down") }
func (brokenCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("down")
}
func (brokenCache) Delete(context.Context, ...string) error { return errors.New("down") }
func (brokenCache) Incr(context.Context, string) (int64, error) {
	return 0, errors.New("down")
}

func TestService_Performance_cacheDown(t *testing.T) {
	src := &fakeSource{results: results(nil, 5)}
	svc := newTestService(src, brokenCache{}, TeacherCounts{})

	sum, err := svc.Performance(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 50, sum.AverageScore)
}

func TestService_StudentDashboard(t *testing.T) {
	src := &fakeSource{results: results(nil, 9, 7), videos: 5}
	svc := newTestService(src, nil, TeacherCounts{})

	dash, err := svc.StudentDashboard(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, StudentDashboard{VideosWatched: 5, AverageScore: 80, TestsTaken: 2, Streak: 4, DailyGoal: 30}, dash)

	_, err = svc.StudentDashboard(context.Background(), "unknown")
	assert.Equal(t, user.ErrNotFound, errors.Cause(err))
}

func TestService_TeacherDashboard(t *testing.T) {
	svc := newTestService(&fakeSource{}, nil, TeacherCounts{
		Students: 3, Videos: 4, Quizzes: 2, Results: 6, AverageRatio: null.Float64From(72.5),
	})

	dash, err := svc.TeacherDashboard(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, TeacherDashboard{Students: 3, Videos: 4, Quizzes: 2, Results: 6, AverageScore: 73}, dash)
}

func TestNewInvalidator(t *testing.T) {
	ctx := context.Background()
	cache := &memCache{data: map[string][]byte{
		performanceKey("s1", 0): []byte("{}"),
		performanceKey("s2", 0): []byte("{}"),
	}}

	require.NoError(t, NewInvalidator(cache).Invalidate(ctx, "s1"))
	_, err := cache.Get(ctx, performanceKey("s1", 0))
	assert.Equal(t, ErrCacheMiss, err)
	gen, err := generation(ctx, cache, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen)

	_, err = cache.Get(ctx, performanceKey("s2", 0))
	assert.NoError(t, err)
	gen, err = generation(ctx, cache, "s2")
	require.NoError(t, err)
	assert.Equal(t, int64(0), gen)

	assert.NoError(t, NewInvalidator(nil).Invalidate(ctx, "s1"))
	assert.Error(t, NewInvalidator(brokenCache{}).Invalidate(ctx, "s1"))
}
