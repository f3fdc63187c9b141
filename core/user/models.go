package user

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/edvora/edvora/core"
)

// Roles
const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
)

// Learning styles
const (
	LearningVisual   = "visual"
	LearningReading  = "reading"
	LearningPractice = "practice"
	LearningMixed    = "mixed"
)

const (
	DefaultDailyGoalMinutes = 30
	MinDailyGoalMinutes     = 10
	MaxDailyGoalMinutes     = 240
)

var (
	Roles          = []string{RoleStudent, RoleTeacher}
	LearningStyles = []string{LearningVisual, LearningReading, LearningPractice, LearningMixed}
)

type User struct {
	ID           string      `json:"id" db:"id"`
	FullName     string      `json:"full_name" db:"full_name"`
	Email        string      `json:"email" db:"email"`
	Role         string      `json:"role" db:"role"`
	AvatarURL    null.String `json:"avatar_url" db:"avatar_url"`
	IsActive     bool        `json:"is_active" db:"is_active"`
	PasswordHash []byte      `json:"-" db:"password_hash"`
	LastLogin    null.Time   `json:"last_login" db:"last_login"` // UTC
	CreatedAt    time.Time   `json:"created_at" db:"created_at"` // UTC
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u User) IsStudent() bool { return u.Role == RoleStudent }
func (u User) IsTeacher() bool { return u.Role == RoleTeacher }

type StudentProfile struct {
	ID               string      `json:"-" db:"id"`
	Grade            null.String `json:"grade" db:"grade"`
	LearningStyle    string      `json:"learning_style" db:"learning_style"`
	DailyGoalMinutes int         `json:"daily_goal_minutes" db:"daily_goal_minutes"`
	CurrentStreak    int         `json:"current_streak" db:"current_streak"`
	LastStudyDate    null.Time   `json:"last_study_date" db:"last_study_date"`
}

type TeacherProfile struct {
	ID              string      `json:"-"`
	Bio             null.String `json:"bio"`
	Specialization  []string    `json:"specialization"`
	TeachingStyle   null.String `json:"teaching_style"`
	YearsExperience null.Int    `json:"years_experience"`
}

// Account is a User with the profile matching its role.
type Account struct {
	User
	Student *StudentProfile `json:"student_profile,omitempty"`
	Teacher *TeacherProfile `json:"teacher_profile,omitempty"`
}

// NewAccount contains information needed to sign up.
type NewAccount struct {
	Role            string   `json:"role" validate:"required,oneof=student teacher"`
	FullName        string   `json:"full_name" validate:"required,notblank,max=120"`
	Email           string   `json:"email" validate:"required,email"`
	Password        string   `json:"password" validate:"required"`
	PasswordConfirm string   `json:"password_confirm" validate:"omitempty,eqfield=Password"`
	Grade           string   `json:"grade" validate:"omitempty,max=40"`
	LearningStyle   string   `json:"learning_style" validate:"omitempty,oneof=visual reading practice mixed"`
	Bio             string   `json:"bio" validate:"omitempty,max=2000"`
	TeachingStyle   string   `json:"teaching_style" validate:"omitempty,max=200"`
	Specialization  []string `json:"specialization" validate:"omitempty,dive,notblank"`
}

func (na *NewAccount) Validate(ctx context.Context, validate *validator.Validate, svc ServiceInterface) error {
	na.Role = core.CleanString(na.Role, true /* lower */)
	na.FullName = core.CleanString(na.FullName)
	na.Email = core.CleanString(na.Email, true /* lower */)
	na.Grade = core.CleanString(na.Grade)
	na.LearningStyle = core.CleanString(na.LearningStyle, true /* lower */)
	na.Bio = core.CleanString(na.Bio)
	na.TeachingStyle = core.CleanString(na.TeachingStyle)
	na.Specialization = core.UniqueStrings(na.Specialization)

	if err := validate.Struct(na); err != nil {
		return err
	}
	return svc.CheckEmailUniqueness(ctx, na.Email)
}

// UpdateProfile defines what a user may change on their own account.
// Role specific fields are ignored for the other role.
type UpdateProfile struct {
	FullName  string `json:"full_name" validate:"omitempty,max=120"`
	AvatarURL string `json:"avatar_url" validate:"omitempty,url"`

	// students
	Grade            *string `json:"grade" validate:"omitempty,max=40"`
	LearningStyle    string  `json:"learning_style" validate:"omitempty,oneof=visual reading practice mixed"`
	DailyGoalMinutes *int    `json:"daily_goal_minutes" validate:"omitempty,min=10,max=240"`

	// teachers
	Bio             *string  `json:"bio" validate:"omitempty,max=2000"`
	TeachingStyle   *string  `json:"teaching_style" validate:"omitempty,max=200"`
	Specialization  []string `json:"specialization" validate:"omitempty,dive,notblank"`
	YearsExperience *int     `json:"years_experience" validate:"omitempty,min=0,max=80"`
}

func (up *UpdateProfile) Validate(validate *validator.Validate) error {
	up.FullName = core.CleanString(up.FullName)
	up.AvatarURL = core.CleanString(up.AvatarURL)
	up.LearningStyle = core.CleanString(up.LearningStyle, true /* lower */)
	if up.Specialization != nil {
		up.Specialization = core.UniqueStrings(up.Specialization)
	}
	return validate.Struct(up)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

// GetFilter selects a single user. The first non-empty field wins.
type GetFilter struct {
	ID    string
	Email string
}

type TeacherFilter struct {
	Specialization string // case-insensitive match on one of TeacherProfile.Specialization
	ActiveOnly     bool
}

func (tf *TeacherFilter) Clean() {
	tf.Specialization = strings.ToLower(core.CleanString(tf.Specialization))
}
