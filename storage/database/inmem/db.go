// Package inmemdb implements the repositories in memory. For tests & local runs without postgres.
package inmemdb

import (
	"sync"

	"github.com/google/uuid"

	"github.com/edvora/edvora/core/catalog"
	"github.com/edvora/edvora/core/chat"
	"github.com/edvora/edvora/core/progress"
	"github.com/edvora/edvora/core/selection"
	"github.com/edvora/edvora/core/user"
)

// DB holds every table. Tables share one lock so that joins see a consistent state.
type DB struct {
	mu sync.RWMutex

	users     map[string]*user.User
	students  map[string]*user.StudentProfile
	teachers  map[string]*user.TeacherProfile
	subjects  map[string]*catalog.Subject
	videos    map[string]*catalog.Video
	quizzes   map[string]*catalog.Quiz
	questions map[string][]catalog.Question // {quiz id: questions}

	// {student id: selections}
	subjectSel map[string][]selection.SubjectSelection
	teacherSel map[string][]selection.TeacherSelection
	// {student id: {video id: progress}}
	watched  map[string]map[string]*progress.VideoProgress
	results  []*progress.QuizResult
	messages []chat.Message
}

func Open() *DB {
	return &DB{
		users:      make(map[string]*user.User),
		students:   make(map[string]*user.StudentProfile),
		teachers:   make(map[string]*user.TeacherProfile),
		subjects:   make(map[string]*catalog.Subject),
		videos:     make(map[string]*catalog.Video),
		quizzes:    make(map[string]*catalog.Quiz),
		questions:  make(map[string][]catalog.Question),
		subjectSel: make(map[string][]selection.SubjectSelection),
		teacherSel: make(map[string][]selection.TeacherSelection),
		watched:    make(map[string]map[string]*progress.VideoProgress),
	}
}

// Reset empties every table.
func (db *DB) Reset() {
	fresh := Open()
	db.mu.Lock()
	defer db.mu.Unlock()
	db.users, db.students, db.teachers = fresh.users, fresh.students, fresh.teachers
	db.subjects, db.videos, db.quizzes, db.questions = fresh.subjects, fresh.videos, fresh.quizzes, fresh.questions
	db.subjectSel, db.teacherSel, db.watched = fresh.subjectSel, fresh.teacherSel, fresh.watched
	db.results, db.messages = nil, nil
}

func newID() string { return uuid.NewString() }
