package selection_test

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvora/edvora/core"
	"github.com/edvora/edvora/core/catalog"
	"github.com/edvora/edvora/core/selection"
	"github.com/edvora/edvora/core/user"
	logsvc "github.com/edvora/edvora/services/logger"
	inmemdb "github.com/edvora/edvora/storage/database/inmem"
	testutil "github.com/edvora/edvora/tests"
)

type completedVideos struct {
	ids []string
}

func (c *completedVideos) CompletedVideoIDs(context.Context, string) ([]string, error) { return c.ids, nil }

type fixture struct {
	svc         selection.ServiceInterface
	usrRepo     user.Repository
	catalogRepo catalog.Repository
	completed   *completedVideos
}

func setup(t *testing.T) fixture {
	conf := &core.Config{TestMode: true}
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	db := inmemdb.Open()
	f := fixture{
		usrRepo:     inmemdb.NewUserRepository(db),
		catalogRepo: inmemdb.NewCatalogRepository(db),
		completed:   new(completedVideos),
	}
	usrSvc := user.NewService(f.usrRepo, nil, nil, logger, conf)
	catalogSvc := catalog.NewService(f.catalogRepo, nil, nil, logger)
	f.svc = selection.NewService(inmemdb.NewSelectionRepository(db), catalogSvc, usrSvc, f.completed)
	return f
}

func fieldError(t *testing.T, err error) core.FieldError {
	t.Helper()
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr), "want a validation error, got %v", err)
	require.Len(t, vErr.Fields, 1)
	return vErr.Fields[0]
}

func TestService_SaveSubjects(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	math := testutil.CreateSubject(t, f.catalogRepo, "Mathematics")
	physics := testutil.CreateSubject(t, f.catalogRepo, "Physics")
	student := testutil.CreateStudent(t, f.usrRepo, "Grace Hopper", "grace@test.io", "")

	ids, err := f.svc.SubjectIDs(ctx, student.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)

	saved, err := f.svc.SaveSubjects(ctx, student.ID, []string{physics.ID, math.ID, strings.ToUpper(physics.ID)})
	require.NoError(t, err)
	assert.Equal(t, []string{physics.ID, math.ID}, saved)

	// a failed save leaves the previous selection untouched
	_, err = f.svc.SaveSubjects(ctx, student.ID, []string{math.ID, "nope"})
	require.Error(t, err)
	assert.Equal(t, "subject_ids", fieldError(t, err).Field)

	subjects, err := f.svc.SelectedSubjects(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, []catalog.Subject{math, physics}, subjects)

	// saving nothing clears the selection
	saved, err = f.svc.SaveSubjects(ctx, student.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, saved)
	subjects, err = f.svc.SelectedSubjects(ctx, student.ID)
	require.NoError(t, err)
	assert.Empty(t, subjects)
}

func TestService_SaveTeachers(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	math := testutil.CreateSubject(t, f.catalogRepo, "Mathematics")
	physics := testutil.CreateSubject(t, f.catalogRepo, "Physics")
	turing := testutil.CreateTeacher(t, f.usrRepo, "Alan Turing", "alan@test.io", "")
	gone := testutil.CreateTeacher(t, f.usrRepo, "Isaac Newton", "isaac@test.io", "")
	testutil.Deactivate(t, f.usrRepo, gone.User)
	student := testutil.CreateStudent(t, f.usrRepo, "Grace Hopper", "grace@test.io", "")

	picks, err := f.svc.SaveTeachers(ctx, student.ID, map[string]string{math.ID: turing.ID, physics.ID: turing.ID})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{math.ID: turing.ID, physics.ID: turing.ID}, picks)

	for name, teacherID := range map[string]string{"student": student.ID, "inactive teacher": gone.ID, "unknown": "nope"} {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.SaveTeachers(ctx, student.ID, map[string]string{math.ID: teacherID})
			assert.Equal(t, "teachers", fieldError(t, err).Field)
		})
	}

	// the same subject under two spellings
	_, err = f.svc.SaveTeachers(ctx, student.ID, map[string]string{
		math.ID: turing.ID, strings.ToUpper(math.ID): turing.ID, physics.ID: turing.ID,
	})
	fErr := fieldError(t, err)
	assert.Equal(t, "teachers", fErr.Field)
	assert.Equal(t, fmt.Sprintf("subject %q is picked more than once", math.ID), fErr.Error)

	picks, err = f.svc.TeacherPicks(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{math.ID: turing.ID, physics.ID: turing.ID}, picks, "rejected save must not touch the picks")

	// blank picks are dropped
	picks, err = f.svc.SaveTeachers(ctx, student.ID, map[string]string{math.ID: turing.ID, physics.ID: " "})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{math.ID: turing.ID}, picks)

	picks, err = f.svc.TeacherPicks(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{math.ID: turing.ID}, picks)
}

func TestService_RecommendedVideos(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	math := testutil.CreateSubject(t, f.catalogRepo, "Mathematics")
	physics := testutil.CreateSubject(t, f.catalogRepo, "Physics")
	turing := testutil.CreateTeacher(t, f.usrRepo, "Alan Turing", "alan@test.io", "")
	curie := testutil.CreateTeacher(t, f.usrRepo, "Marie Curie", "marie@test.io", "")
	student := testutil.CreateStudent(t, f.usrRepo, "Grace Hopper", "grace@test.io", "")

	t0 := time.Now().UTC().Add(-time.Hour)
	v1 := testutil.CreateVideo(t, f.catalogRepo, "limits", math.ID, curie.ID, t0)
	v2 := testutil.CreateVideo(t, f.catalogRepo, "derivatives", math.ID, turing.ID, t0.Add(time.Minute))
	v3 := testutil.CreateVideo(t, f.catalogRepo, "optics", physics.ID, curie.ID, t0.Add(2*time.Minute))
	v4 := testutil.CreateVideo(t, f.catalogRepo, "untaught", math.ID, "", t0.Add(3*time.Minute))

	f.completed.ids = []string{v1.ID}
	svc := f.svc

	ids := func(videos []selection.RecommendedVideo) []string {
		out := make([]string, 0, len(videos))
		for _, v := range videos {
			out = append(out, v.ID)
		}
		return out
	}

	videos, err := svc.RecommendedVideos(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{v4.ID, v3.ID, v2.ID, v1.ID}, ids(videos))

	_, err = svc.SaveSubjects(ctx, student.ID, []string{math.ID})
	require.NoError(t, err)
	_, err = svc.SaveTeachers(ctx, student.ID, map[string]string{math.ID: turing.ID})
	require.NoError(t, err)

	videos, err = svc.RecommendedVideos(ctx, student.ID)
	require.NoError(t, err)
	require.Equal(t, []string{v2.ID, v4.ID, v1.ID}, ids(videos))
	assert.True(t, videos[0].PreferredTeacher)
	assert.False(t, videos[1].PreferredTeacher)
	assert.False(t, videos[0].Completed)
	assert.True(t, videos[2].Completed)
}
