package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/edvora/edvora/core"
	"github.com/edvora/edvora/core/progress"
	"github.com/edvora/edvora/core/user"
)

const (
	performanceKeyPrefix = "analytics:performance:"
	generationKeyPrefix  = "analytics:generation:"
)

// ErrCacheMiss is returned by Cache.Get when the key holds nothing.
var ErrCacheMiss = errors.New("cache miss")

type (
	// Cache is a byte store with expiration.
	// Incr atomically increments the integer held at key (0 when missing) and returns the new value.
	Cache interface {
		Get(ctx context.Context, key string) ([]byte, error)
		Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
		Delete(ctx context.Context, keys ...string) error
		Incr(ctx context.Context, key string) (int64, error)
	}

	// ResultSource provides the raw material of the performance summary.
	ResultSource interface {
		Results(ctx context.Context, studentID string) ([]progress.ResultDetail, error)
		CountCompletedVideos(ctx context.Context, studentID string) (int, error)
	}

	// ProfileLookup provides the student's streak.
	ProfileLookup interface {
		GetAccount(ctx context.Context, id string) (user.Account, error)
	}

	// TeacherCounts are the raw figures of a teacher's dashboard.
	TeacherCounts struct {
		Students     int          `db:"students"`
		Videos       int          `db:"videos"`
		Quizzes      int          `db:"quizzes"`
		Results      int          `db:"results"`
		AverageRatio null.Float64 `db:"average_ratio"`
	}

	Repository interface {
		// TeacherCounts counts the students who picked the teacher, the teacher's videos & quizzes,
		// and averages the ratio of every result on the teacher's quizzes.
		TeacherCounts(ctx context.Context, teacherID string) (TeacherCounts, error)
	}

	StudentDashboard struct {
		VideosWatched int `json:"videos_watched"`
		AverageScore  int `json:"average_score"`
		TestsTaken    int `json:"tests_taken"`
		Streak        int `json:"streak"`
		DailyGoal     int `json:"daily_goal_minutes"`
	}

	TeacherDashboard struct {
		Students     int `json:"students"`
		Videos       int `json:"videos"`
		Quizzes      int `json:"quizzes"`
		Results      int `json:"results"`
		AverageScore int `json:"average_score"`
	}

	ServiceInterface interface {
		progress.CacheInvalidator
		Performance(ctx context.Context, studentID string) (Summary, error)
		StudentDashboard(ctx context.Context, studentID string) (StudentDashboard, error)
		TeacherDashboard(ctx context.Context, teacherID string) (TeacherDashboard, error)
	}

	service struct {
		repo     Repository
		results  ResultSource
		profiles ProfileLookup
		cache    Cache
		ttl      time.Duration
		logger   core.Logger
	}
)

var _ ServiceInterface = (*service)(nil)

// NewService returns the analytics service. cache may be nil, summaries are then computed on every call.
func NewService(repo Repository, results ResultSource, profiles ProfileLookup, cache Cache, logger core.Logger, conf *core.Config) ServiceInterface {
	return &service{
		repo:     repo,
		results:  results,
		profiles: profiles,
		cache:    cache,
		ttl:      conf.Redis.AnalyticsTTL,
		logger:   logger,
	}
}

func performanceKey(studentID string, gen int64) string {
	return performanceKeyPrefix + studentID + ":" + strconv.FormatInt(gen, 10)
}

// generation reads the student's summary generation, bumped on every invalidation.
func generation(ctx context.Context, cache Cache, studentID string) (int64, error) {
	data, err := cache.Get(ctx, generationKeyPrefix+studentID)
	if errors.Cause(err) == ErrCacheMiss {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(string(data), 10, 64)
}

// Performance returns the student's summary, from cache when fresh.
// Summaries are cached under the generation read before computing them, so a summary computed
// across an invalidation lands under a key no later read uses.
// Cache failures are logged and the summary is computed from the source.
func (svc *service) Performance(ctx context.Context, studentID string) (Summary, error) {
	var key string
	if svc.cache != nil {
		gen, err := generation(ctx, svc.cache, studentID)
		if err != nil {
			svc.logger.Warn(fmt.Sprintf("reading analytics cache generation: %v", err), err)
		} else {
			key = performanceKey(studentID, gen)
		}
	}

	if key != "" {
		data, err := svc.cache.Get(ctx, key)
		switch {
		case err == nil:
			var sum Summary
			if err = json.Unmarshal(data, &sum); err == nil {
				return sum, nil
			}
			svc.logger.Warn(fmt.Sprintf("decoding cached summary: %v", err), err)
		case errors.Cause(err) != ErrCacheMiss:
			svc.logger.Warn(fmt.Sprintf("reading analytics cache: %v", err), err)
		}
	}

	results, err := svc.results.Results(ctx, studentID)
	if err != nil {
		return Summary{}, errors.Wrap(err, "querying results")
	}
	videos, err := svc.results.CountCompletedVideos(ctx, studentID)
	if err != nil {
		return Summary{}, errors.Wrap(err, "counting completed videos")
	}
	sum := Summarize(results, videos)

	if key != "" {
		data, err := json.Marshal(sum)
		if err == nil {
			err = svc.cache.Set(ctx, key, data, svc.ttl)
		}
		if err != nil {
			svc.logger.Warn(fmt.Sprintf("writing analytics cache: %v", err), err)
		}
	}
	return sum, nil
}

func (svc *service) Invalidate(ctx context.Context, studentID string) error {
	return NewInvalidator(svc.cache).Invalidate(ctx, studentID)
}

type invalidator struct {
	cache Cache
}

// NewInvalidator drops cached summaries without the whole service, which depends on progress.
// A nil cache gives a no-op invalidator.
func NewInvalidator(cache Cache) progress.CacheInvalidator {
	return invalidator{cache: cache}
}

// Invalidate bumps the student's generation, then drops the summary of the previous one.
func (inv invalidator) Invalidate(ctx context.Context, studentID string) error {
	if inv.cache == nil {
		return nil
	}
	gen, err := inv.cache.Incr(ctx, generationKeyPrefix+studentID)
	if err != nil {
		return errors.Wrap(err, "bumping analytics cache generation")
	}
	return inv.cache.Delete(ctx, performanceKey(studentID, gen-1))
}

func (svc *service) StudentDashboard(ctx context.Context, studentID string) (StudentDashboard, error) {
	sum, err := svc.Performance(ctx, studentID)
	if err != nil {
		return StudentDashboard{}, err
	}
	acc, err := svc.profiles.GetAccount(ctx, studentID)
	if err != nil {
		return StudentDashboard{}, err
	}
	dash := StudentDashboard{
		VideosWatched: sum.VideosCompleted,
		AverageScore:  sum.AverageScore,
		TestsTaken:    sum.TotalTests,
	}
	if acc.Student != nil {
		dash.Streak = acc.Student.CurrentStreak
		dash.DailyGoal = acc.Student.DailyGoalMinutes
	}
	return dash, nil
}

func (svc *service) TeacherDashboard(ctx context.Context, teacherID string) (TeacherDashboard, error) {
	counts, err := svc.repo.TeacherCounts(ctx, teacherID)
	if err != nil {
		return TeacherDashboard{}, errors.Wrap(err, "counting teacher stats")
	}
	dash := TeacherDashboard{
		Students: counts.Students,
		Videos:   counts.Videos,
		Quizzes:  counts.Quizzes,
		Results:  counts.Results,
	}
	if counts.AverageRatio.Valid {
		dash.AverageScore = Round(counts.AverageRatio.Float64)
	}
	return dash, nil
}
