// Package analytics derives performance statistics from quiz results and video progress.
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/edvora/edvora/core/progress"
)

const (
	// improvementWindow results are compared against the window before them.
	improvementWindow = 3
	recentTestsLimit  = 5
)

// Score bands
const (
	BandHigh   = "high"   // >= 80
	BandMedium = "medium" // >= 60
	BandLow    = "low"
)

type (
	Summary struct {
		TotalTests      int              `json:"total_tests"`
		AverageScore    int              `json:"average_score"`
		HighestScore    int              `json:"highest_score"`
		Improvement     int              `json:"improvement"`
		VideosCompleted int              `json:"videos_completed"`
		Subjects        []SubjectSummary `json:"subjects"`
		RecentTests     []RecentTest     `json:"recent_tests"`
	}

	SubjectSummary struct {
		SubjectID    string      `json:"subject_id"`
		Name         string      `json:"name"`
		Icon         null.String `json:"icon"`
		AverageScore int         `json:"average_score"`
		TestCount    int         `json:"test_count"`
	}

	RecentTest struct {
		ResultID       string      `json:"result_id"`
		QuizID         string      `json:"quiz_id"`
		QuizTitle      string      `json:"quiz_title"`
		SubjectName    null.String `json:"subject_name"`
		Score          int         `json:"score"`
		TotalQuestions int         `json:"total_questions"`
		Percentage     int         `json:"percentage"`
		Band           string      `json:"band"`
		CompletedAt    time.Time   `json:"completed_at"`
	}
)

// Summarize computes the performance summary of a student.
//
// results are expected newest first; they are stable-sorted by completion time (descending) anyway,
// so rows sharing a timestamp keep their given order and rows with a zero time come last.
// Rows with no question are ignored.
// Every percentage is rounded half up, and the improvement is 0 with fewer than six results.
func Summarize(results []progress.ResultDetail, videosCompleted int) Summary {
	sum := Summary{
		VideosCompleted: videosCompleted,
		Subjects:        []SubjectSummary{},
		RecentTests:     []RecentTest{},
	}

	rows := make([]progress.ResultDetail, 0, len(results))
	for _, r := range results {
		if r.TotalQuestions > 0 {
			rows = append(rows, r)
		}
	}
	if len(rows) == 0 {
		return sum
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].CompletedAt.After(rows[j].CompletedAt) })

	ratios := make([]float64, len(rows))
	for i, r := range rows {
		ratios[i] = Ratio(r.Score, r.TotalQuestions)
	}

	sum.TotalTests = len(rows)
	sum.AverageScore = Round(mean(ratios))
	sum.HighestScore = Round(maxOf(ratios))
	if len(ratios) >= 2*improvementWindow {
		recent := mean(ratios[:improvementWindow])
		previous := mean(ratios[improvementWindow : 2*improvementWindow])
		sum.Improvement = Round(recent - previous)
	}

	for i, r := range rows {
		if i == recentTestsLimit {
			break
		}
		pct := Round(ratios[i])
		sum.RecentTests = append(sum.RecentTests, RecentTest{
			ResultID:       r.ID,
			QuizID:         r.QuizID,
			QuizTitle:      r.QuizTitle,
			SubjectName:    r.SubjectName,
			Score:          r.Score,
			TotalQuestions: r.TotalQuestions,
			Percentage:     pct,
			Band:           ScoreBand(pct),
			CompletedAt:    r.CompletedAt,
		})
	}

	sum.Subjects = rollupSubjects(rows, ratios)
	return sum
}

// rollupSubjects groups ratios by subject id, in order of first appearance.
// Results of quizzes without a subject are left out.
func rollupSubjects(rows []progress.ResultDetail, ratios []float64) []SubjectSummary {
	type group struct {
		summary SubjectSummary
		ratios  []float64
	}
	order := make([]string, 0)
	groups := make(map[string]*group)
	for i, r := range rows {
		if !r.SubjectID.Valid || r.SubjectID.String == "" {
			continue
		}
		g, ok := groups[r.SubjectID.String]
		if !ok {
			g = &group{summary: SubjectSummary{
				SubjectID: r.SubjectID.String,
				Name:      r.SubjectName.String,
				Icon:      r.SubjectIcon,
			}}
			groups[r.SubjectID.String] = g
			order = append(order, r.SubjectID.String)
		}
		g.ratios = append(g.ratios, ratios[i])
	}

	out := make([]SubjectSummary, 0, len(order))
	for _, id := range order {
		g := groups[id]
		g.summary.AverageScore = Round(mean(g.ratios))
		g.summary.TestCount = len(g.ratios)
		out = append(out, g.summary)
	}
	return out
}

// Ratio returns score / total * 100.
func Ratio(score, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(score) / float64(total) * 100
}

// Round rounds half up, so -2.5 rounds to -2 and 2.5 to 3.
func Round(x float64) int {
	return int(math.Floor(x + 0.5))
}

func ScoreBand(pct int) string {
	switch {
	case pct >= 80:
		return BandHigh
	case pct >= 60:
		return BandMedium
	default:
		return BandLow
	}
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var total float64
	for _, x := range xs {
		total += x
	}
	return total / float64(len(xs))
}

func maxOf(xs []float64) float64 {
	m := math.Inf(-1)
	for _, x := range xs {
		if x > m {
			m = x
		}
	}
	return m
}
