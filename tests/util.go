// Package testutil provides fixtures shared by the test suites.
package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/edvora/edvora/core/catalog"
	"github.com/edvora/edvora/core/user"
)

func createAccount(t *testing.T, repo user.Repository, acc user.Account, pwd string) user.Account {
	t.Helper()
	now := time.Now().UTC()
	acc.IsActive = true
	acc.CreatedAt, acc.UpdatedAt = now, now
	if pwd != "" {
		if err := acc.SetPassword(pwd); err != nil {
			t.Fatalf("createAccount() failed: %v", err)
		}
	}
	acc, err := repo.CreateAccount(context.Background(), acc)
	if err != nil {
		t.Fatalf("createAccount() failed: %v", err)
	}
	return acc
}

func CreateStudent(t *testing.T, repo user.Repository, name, email, pwd string) user.Account {
	return createAccount(t, repo, user.Account{
		User: user.User{FullName: name, Email: email, Role: user.RoleStudent},
		Student: &user.StudentProfile{
			LearningStyle:    user.LearningMixed,
			DailyGoalMinutes: user.DefaultDailyGoalMinutes,
		},
	}, pwd)
}

func CreateTeacher(t *testing.T, repo user.Repository, name, email, pwd string, specialization ...string) user.Account {
	if specialization == nil {
		specialization = []string{}
	}
	return createAccount(t, repo, user.Account{
		User:    user.User{FullName: name, Email: email, Role: user.RoleTeacher},
		Teacher: &user.TeacherProfile{Specialization: specialization},
	}, pwd)
}

// Deactivate marks the account inactive.
func Deactivate(t *testing.T, repo user.Repository, usr user.User) user.User {
	t.Helper()
	usr.IsActive = false
	usr, err := repo.UpdateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("Deactivate() failed: %v", err)
	}
	return usr
}

func CreateSubject(t *testing.T, repo catalog.Repository, name string) catalog.Subject {
	t.Helper()
	subj, err := repo.CreateSubject(context.Background(), catalog.Subject{
		Name:      name,
		Icon:      null.StringFrom("📘"),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateSubject() failed: %v", err)
	}
	return subj
}

func CreateVideo(t *testing.T, repo catalog.Repository, title, subjectID, teacherID string, createdAt ...time.Time) catalog.Video {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	v, err := repo.CreateVideo(context.Background(), catalog.Video{
		Title:           title,
		VideoURL:        "https://videos.test/" + title,
		SubjectID:       null.StringFrom(subjectID),
		TeacherID:       null.NewString(teacherID, teacherID != ""),
		DurationMinutes: null.IntFrom(10),
		CreatedAt:       tstamp,
		UpdatedAt:       tstamp,
	})
	if err != nil {
		t.Fatalf("CreateVideo() failed: %v", err)
	}
	return v
}

// CreateQuiz creates a quiz with one question per correct option given.
func CreateQuiz(t *testing.T, repo catalog.Repository, title, subjectID, creatorID string, correct ...string) catalog.QuizDetail {
	t.Helper()
	qd := catalog.QuizDetail{
		Quiz: catalog.Quiz{
			Title:         title,
			SubjectID:     null.StringFrom(subjectID),
			CreatedBy:     null.NewString(creatorID, creatorID != ""),
			QuestionCount: len(correct),
			CreatedAt:     time.Now().UTC(),
		},
	}
	for i, opt := range correct {
		qd.Questions = append(qd.Questions, catalog.Question{
			QuestionText:  fmt.Sprintf("Question %d?", i+1),
			OptionA:       "A",
			OptionB:       "B",
			OptionC:       "C",
			OptionD:       "D",
			CorrectOption: opt,
			Explanation:   null.StringFrom("because " + opt),
			QuestionOrder: i + 1,
		})
	}
	qd, err := repo.CreateQuiz(context.Background(), qd)
	if err != nil {
		t.Fatalf("CreateQuiz() failed: %v", err)
	}
	return qd
}
