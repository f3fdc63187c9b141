package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/edvora/edvora/core"
	"github.com/edvora/edvora/core/user"
)

const (
	userColumns = `p.id, p.full_name, p.email, p.role, p.avatar_url, p.is_active, p.password_hash, p.last_login,
		p.created_at, p.updated_at`
	studentColumns = `id, grade, learning_style, daily_goal_minutes, current_streak, last_study_date`
	teacherColumns = `t.id, t.bio, t.specialization, t.teaching_style, t.years_experience`
)

type teacherRow struct {
	ID              string         `db:"id"`
	Bio             null.String    `db:"bio"`
	Specialization  pq.StringArray `db:"specialization"`
	TeachingStyle   null.String    `db:"teaching_style"`
	YearsExperience null.Int       `db:"years_experience"`
}

func (r teacherRow) profile() user.TeacherProfile {
	spec := []string(r.Specialization)
	if spec == nil {
		spec = []string{}
	}
	return user.TeacherProfile{
		ID:              r.ID,
		Bio:             r.Bio,
		Specialization:  spec,
		TeachingStyle:   r.TeachingStyle,
		YearsExperience: r.YearsExperience,
	}
}

type userRepository struct {
	db core.DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db core.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CreateAccount(ctx context.Context, acc user.Account) (user.Account, error) {
	acc.ID = newID()
	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO profiles (id, full_name, email, role, avatar_url, is_active, password_hash, last_login, created_at, updated_at)
			VALUES (:id, :full_name, :email, :role, :avatar_url, :is_active, :password_hash, :last_login, :created_at, :updated_at)`,
			acc.User,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return core.NewValidationError(user.ErrEmailExists, core.FieldError{Field: "email", Error: user.ErrEmailExists.Error()})
			}
			return errors.Wrap(err, "inserting profile")
		}

		switch {
		case acc.Student != nil:
			acc.Student.ID = acc.ID
			_, err = tx.NamedExecContext(ctx, `
				INSERT INTO student_profiles (id, grade, learning_style, daily_goal_minutes, current_streak, last_study_date)
				VALUES (:id, :grade, :learning_style, :daily_goal_minutes, :current_streak, :last_study_date)`,
				acc.Student,
			)
			return errors.Wrap(err, "inserting student profile")
		case acc.Teacher != nil:
			acc.Teacher.ID = acc.ID
			_, err = tx.ExecContext(ctx, `
				INSERT INTO teacher_profiles (id, bio, specialization, teaching_style, years_experience)
				VALUES ($1, $2, $3, $4, $5)`,
				acc.ID, acc.Teacher.Bio, pq.Array(acc.Teacher.Specialization), acc.Teacher.TeachingStyle, acc.Teacher.YearsExperience,
			)
			return errors.Wrap(err, "inserting teacher profile")
		}
		return nil
	})
	if err != nil {
		return user.Account{}, err
	}
	return acc, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var (
		usr  user.User
		err  error
		base = "SELECT " + userColumns + " FROM profiles p "
	)
	switch {
	case filter.ID != "":
		if !isUUID(filter.ID) {
			return user.User{}, user.ErrNotFound
		}
		err = repo.db.GetContext(ctx, &usr, base+"WHERE p.id = $1", filter.ID)
	case filter.Email != "":
		err = repo.db.GetContext(ctx, &usr, base+"WHERE p.email = $1", filter.Email)
	default:
		return user.User{}, user.ErrNotFound
	}
	if err != nil {
		return user.User{}, notFound(err, user.ErrNotFound)
	}
	return usr, nil
}

func (repo *userRepository) GetStudentProfile(ctx context.Context, id string) (user.StudentProfile, error) {
	if !isUUID(id) {
		return user.StudentProfile{}, user.ErrProfileNotFound
	}
	var p user.StudentProfile
	err := repo.db.GetContext(ctx, &p, "SELECT "+studentColumns+" FROM student_profiles WHERE id = $1", id)
	if err != nil {
		return user.StudentProfile{}, notFound(err, user.ErrProfileNotFound)
	}
	return p, nil
}

func (repo *userRepository) GetTeacherProfile(ctx context.Context, id string) (user.TeacherProfile, error) {
	if !isUUID(id) {
		return user.TeacherProfile{}, user.ErrProfileNotFound
	}
	var row teacherRow
	err := repo.db.GetContext(ctx, &row, "SELECT "+teacherColumns+" FROM teacher_profiles t WHERE t.id = $1", id)
	if err != nil {
		return user.TeacherProfile{}, notFound(err, user.ErrProfileNotFound)
	}
	return row.profile(), nil
}

func (repo *userRepository) QueryTeachers(ctx context.Context, filter user.TeacherFilter) ([]user.Account, error) {
	q := `
		SELECT ` + userColumns + `, t.bio, t.specialization, t.teaching_style, t.years_experience
		FROM profiles p
		JOIN teacher_profiles t ON t.id = p.id
		WHERE p.role = $1
		  AND ($2 = false OR p.is_active)
		  AND ($3 = '' OR EXISTS (SELECT 1 FROM unnest(t.specialization) s WHERE lower(s) = $3))
		ORDER BY p.full_name, p.id`

	rows, err := repo.db.QueryxContext(ctx, q, user.RoleTeacher, filter.ActiveOnly, filter.Specialization)
	if err != nil {
		return nil, errors.Wrap(err, "querying teachers")
	}
	defer func() { _ = rows.Close() }()

	accounts := make([]user.Account, 0)
	for rows.Next() {
		var row struct {
			user.User
			Bio             null.String    `db:"bio"`
			Specialization  pq.StringArray `db:"specialization"`
			TeachingStyle   null.String    `db:"teaching_style"`
			YearsExperience null.Int       `db:"years_experience"`
		}
		if err = rows.StructScan(&row); err != nil {
			return nil, errors.Wrap(err, "scanning teacher")
		}
		p := teacherRow{
			ID:              row.ID,
			Bio:             row.Bio,
			Specialization:  row.Specialization,
			TeachingStyle:   row.TeachingStyle,
			YearsExperience: row.YearsExperience,
		}.profile()
		accounts = append(accounts, user.Account{User: row.User, Teacher: &p})
	}
	return accounts, errors.Wrap(rows.Err(), "iterating teachers")
}

func (repo *userRepository) EmailExists(ctx context.Context, email string, excludedIDs ...string) (bool, error) {
	var exists bool
	err := repo.db.GetContext(ctx, &exists,
		"SELECT EXISTS (SELECT 1 FROM profiles WHERE email = $1 AND NOT (id = ANY($2::uuid[])))",
		email, pq.Array(uuids(excludedIDs)),
	)
	return exists, err
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	if !isUUID(usr.ID) {
		return user.User{}, user.ErrNotFound
	}
	res, err := repo.db.NamedExecContext(ctx, `
		UPDATE profiles
		SET full_name = :full_name, email = :email, avatar_url = :avatar_url, is_active = :is_active,
			password_hash = :password_hash, last_login = :last_login, updated_at = :updated_at
		WHERE id = :id`,
		usr,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, core.NewValidationError(user.ErrEmailExists, core.FieldError{Field: "email", Error: user.ErrEmailExists.Error()})
		}
		return user.User{}, errors.Wrap(err, "updating profile")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo *userRepository) UpdateStudentProfile(ctx context.Context, p user.StudentProfile) (user.StudentProfile, error) {
	if !isUUID(p.ID) {
		return user.StudentProfile{}, user.ErrProfileNotFound
	}
	res, err := repo.db.ExecContext(ctx, `
		UPDATE student_profiles
		SET grade = $2, learning_style = $3, daily_goal_minutes = $4, current_streak = $5, last_study_date = $6, updated_at = $7
		WHERE id = $1`,
		p.ID, p.Grade, p.LearningStyle, p.DailyGoalMinutes, p.CurrentStreak, p.LastStudyDate, time.Now().UTC(),
	)
	if err != nil {
		return user.StudentProfile{}, errors.Wrap(err, "updating student profile")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.StudentProfile{}, user.ErrProfileNotFound
	}
	return p, nil
}

func (repo *userRepository) UpdateTeacherProfile(ctx context.Context, p user.TeacherProfile) (user.TeacherProfile, error) {
	if !isUUID(p.ID) {
		return user.TeacherProfile{}, user.ErrProfileNotFound
	}
	if p.Specialization == nil {
		p.Specialization = []string{}
	}
	res, err := repo.db.ExecContext(ctx, `
		UPDATE teacher_profiles
		SET bio = $2, specialization = $3, teaching_style = $4, years_experience = $5, updated_at = $6
		WHERE id = $1`,
		p.ID, p.Bio, pq.Array(p.Specialization), p.TeachingStyle, p.YearsExperience, time.Now().UTC(),
	)
	if err != nil {
		return user.TeacherProfile{}, errors.Wrap(err, "updating teacher profile")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return user.TeacherProfile{}, user.ErrProfileNotFound
	}
	return p, nil
}
