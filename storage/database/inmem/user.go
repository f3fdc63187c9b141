package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/edvora/edvora/core"
	"github.com/edvora/edvora/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) emailTaken(email string, excludedIDs []string) bool {
	for _, usr := range repo.db.users {
		if usr.Email == email && !core.ContainsString(excludedIDs, usr.ID) {
			return true
		}
	}
	return false
}

func (repo *userRepository) CreateAccount(_ context.Context, acc user.Account) (user.Account, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if repo.emailTaken(acc.Email, nil) {
		return user.Account{}, core.NewValidationError(user.ErrEmailExists, core.FieldError{Field: "email", Error: user.ErrEmailExists.Error()})
	}

	acc.ID = newID()
	usr := acc.User
	repo.db.users[acc.ID] = &usr
	if acc.Student != nil {
		p := *acc.Student
		p.ID = acc.ID
		repo.db.students[acc.ID] = &p
		acc.Student = &p
	}
	if acc.Teacher != nil {
		p := copyTeacher(*acc.Teacher)
		p.ID = acc.ID
		repo.db.teachers[acc.ID] = &p
		acc.Teacher = &p
	}
	return acc, nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	switch {
	case filter.ID != "":
		if usr, ok := repo.db.users[filter.ID]; ok {
			return *usr, nil
		}
	case filter.Email != "":
		for _, usr := range repo.db.users {
			if usr.Email == filter.Email {
				return *usr, nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetStudentProfile(_ context.Context, id string) (user.StudentProfile, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if p, ok := repo.db.students[id]; ok {
		return *p, nil
	}
	return user.StudentProfile{}, user.ErrProfileNotFound
}

func (repo *userRepository) GetTeacherProfile(_ context.Context, id string) (user.TeacherProfile, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if p, ok := repo.db.teachers[id]; ok {
		return copyTeacher(*p), nil
	}
	return user.TeacherProfile{}, user.ErrProfileNotFound
}

func (repo *userRepository) QueryTeachers(_ context.Context, filter user.TeacherFilter) ([]user.Account, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	accounts := make([]user.Account, 0)
	for id, p := range repo.db.teachers {
		usr, ok := repo.db.users[id]
		if !ok || !usr.IsTeacher() || (filter.ActiveOnly && !usr.IsActive) {
			continue
		}
		if filter.Specialization != "" && !hasSpecialization(*p, filter.Specialization) {
			continue
		}
		tp := copyTeacher(*p)
		accounts = append(accounts, user.Account{User: *usr, Teacher: &tp})
	}
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].FullName == accounts[j].FullName {
			return accounts[i].ID < accounts[j].ID
		}
		return accounts[i].FullName < accounts[j].FullName
	})
	return accounts, nil
}

func (repo *userRepository) EmailExists(_ context.Context, email string, excludedIDs ...string) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.emailTaken(email, excludedIDs), nil
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.users[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	if repo.emailTaken(usr.Email, []string{usr.ID}) {
		return user.User{}, core.NewValidationError(user.ErrEmailExists, core.FieldError{Field: "email", Error: user.ErrEmailExists.Error()})
	}
	repo.db.users[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) UpdateStudentProfile(_ context.Context, p user.StudentProfile) (user.StudentProfile, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.students[p.ID]; !ok {
		return user.StudentProfile{}, user.ErrProfileNotFound
	}
	repo.db.students[p.ID] = &p
	return p, nil
}

func (repo *userRepository) UpdateTeacherProfile(_ context.Context, p user.TeacherProfile) (user.TeacherProfile, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.teachers[p.ID]; !ok {
		return user.TeacherProfile{}, user.ErrProfileNotFound
	}
	p = copyTeacher(p)
	repo.db.teachers[p.ID] = &p
	return copyTeacher(p), nil
}

func copyTeacher(p user.TeacherProfile) user.TeacherProfile {
	p.Specialization = append(make([]string, 0, len(p.Specialization)), p.Specialization...)
	return p
}

func hasSpecialization(p user.TeacherProfile, spec string) bool {
	for _, s := range p.Specialization {
		if strings.ToLower(s) == spec {
			return true
		}
	}
	return false
}
