package user

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/edvora/edvora/core"
)

const (
	EventSignedUp = "user.signed_up"
)

var (
	// errors
	ErrNotFound        = core.NewNotFoundError("user")
	ErrProfileNotFound = core.NewNotFoundError("profile")
	ErrEmailExists     = errors.New("this email is already registered")
	ErrNotStudent      = errors.New("user is not a student")
)

type (
	Repository interface {
		// CreateAccount persists the User and its role profile atomically.
		CreateAccount(ctx context.Context, acc Account) (Account, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		GetStudentProfile(ctx context.Context, id string) (StudentProfile, error)
		GetTeacherProfile(ctx context.Context, id string) (TeacherProfile, error)
		// QueryTeachers lists teachers with their profile, ordered by name.
		QueryTeachers(ctx context.Context, filter TeacherFilter) ([]Account, error)
		EmailExists(ctx context.Context, email string, excludedIDs ...string) (bool, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		UpdateStudentProfile(ctx context.Context, profile StudentProfile) (StudentProfile, error)
		UpdateTeacherProfile(ctx context.Context, profile TeacherProfile) (TeacherProfile, error)
	}

	ServiceInterface interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedIDs ...string) error
		SignUp(ctx context.Context, na NewAccount) (Account, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		GetAccount(ctx context.Context, id string) (Account, error)
		ListTeachers(ctx context.Context, filter TeacherFilter) ([]Account, error)
		SetLastLogin(ctx context.Context, usr User) (User, error)
		SetPassword(ctx context.Context, usr User, pwd string) (User, error)
		UpdateProfile(ctx context.Context, usr User, up UpdateProfile) (Account, error)
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, data ResetUserPassword) error
		RecordStudyActivity(ctx context.Context, studentID string, at time.Time) (StudentProfile, error)
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
		events  core.EventPublisher
		logger  core.Logger
		conf    *core.Config
	}
)

var _ ServiceInterface = (*service)(nil)

// NewService returns the accounts service. events may be nil.
func NewService(
	repo Repository,
	mailSvc core.EmailService,
	events core.EventPublisher,
	logger core.Logger,
	conf *core.Config,
) ServiceInterface {
	return &service{
		repo:    repo,
		mailSvc: mailSvc,
		events:  events,
		logger:  logger,
		conf:    conf,
	}
}

func (svc *service) CheckEmailUniqueness(ctx context.Context, email string, excludedIDs ...string) error {
	exists, err := svc.repo.EmailExists(ctx, email, excludedIDs...)
	if err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if exists {
		return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
	}
	return nil
}

func (svc *service) SignUp(ctx context.Context, na NewAccount) (Account, error) {
	now := time.Now().UTC()
	acc := Account{
		User: User{
			FullName:  na.FullName,
			Email:     na.Email,
			Role:      na.Role,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
	if err := acc.SetPassword(na.Password); err != nil {
		return Account{}, errors.Wrap(err, "hashing password")
	}

	switch na.Role {
	case RoleStudent:
		style := na.LearningStyle
		if style == "" {
			style = LearningMixed
		}
		acc.Student = &StudentProfile{
			Grade:            null.NewString(na.Grade, na.Grade != ""),
			LearningStyle:    style,
			DailyGoalMinutes: DefaultDailyGoalMinutes,
		}
	case RoleTeacher:
		spec := na.Specialization
		if spec == nil {
			spec = []string{}
		}
		acc.Teacher = &TeacherProfile{
			Bio:            null.NewString(na.Bio, na.Bio != ""),
			TeachingStyle:  null.NewString(na.TeachingStyle, na.TeachingStyle != ""),
			Specialization: spec,
		}
	default:
		return Account{}, core.NewFieldValidationError("role", "invalid role")
	}

	acc, err := svc.repo.CreateAccount(ctx, acc)
	if err != nil {
		return Account{}, errors.Wrap(err, "creating account")
	}

	svc.sendWelcomeMail(acc.User)
	core.PublishEvent(ctx, svc.events, svc.logger, EventSignedUp, map[string]string{
		"user_id": acc.ID,
		"role":    acc.Role,
	})
	return acc, nil
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *service) GetAccount(ctx context.Context, id string) (Account, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return Account{}, err
	}
	return svc.loadProfile(ctx, usr)
}

func (svc *service) loadProfile(ctx context.Context, usr User) (Account, error) {
	acc := Account{User: usr}
	switch usr.Role {
	case RoleStudent:
		p, err := svc.repo.GetStudentProfile(ctx, usr.ID)
		if err != nil {
			return Account{}, errors.Wrap(err, "getting student profile")
		}
		acc.Student = &p
	case RoleTeacher:
		p, err := svc.repo.GetTeacherProfile(ctx, usr.ID)
		if err != nil {
			return Account{}, errors.Wrap(err, "getting teacher profile")
		}
		acc.Teacher = &p
	}
	return acc, nil
}

func (svc *service) ListTeachers(ctx context.Context, filter TeacherFilter) ([]Account, error) {
	filter.Clean()
	return svc.repo.QueryTeachers(ctx, filter)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = null.TimeFrom(time.Now().UTC())
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) SetPassword(ctx context.Context, usr User, pwd string) (User, error) {
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *service) UpdateProfile(ctx context.Context, usr User, up UpdateProfile) (Account, error) {
	if up.FullName != "" || up.AvatarURL != "" {
		if up.FullName != "" {
			usr.FullName = up.FullName
		}
		if up.AvatarURL != "" {
			usr.AvatarURL = null.StringFrom(up.AvatarURL)
		}
		usr.UpdatedAt = time.Now().UTC()
		updated, err := svc.repo.UpdateUser(ctx, usr)
		if err != nil {
			return Account{}, errors.Wrap(err, "updating user")
		}
		usr = updated
	}

	acc, err := svc.loadProfile(ctx, usr)
	if err != nil {
		return Account{}, err
	}

	switch {
	case acc.Student != nil:
		p := *acc.Student
		if up.Grade != nil {
			grade := core.CleanString(*up.Grade)
			p.Grade = null.NewString(grade, grade != "")
		}
		if up.LearningStyle != "" {
			p.LearningStyle = up.LearningStyle
		}
		if up.DailyGoalMinutes != nil {
			p.DailyGoalMinutes = *up.DailyGoalMinutes
		}
		if p, err = svc.repo.UpdateStudentProfile(ctx, p); err != nil {
			return Account{}, errors.Wrap(err, "updating student profile")
		}
		acc.Student = &p
	case acc.Teacher != nil:
		p := *acc.Teacher
		if up.Bio != nil {
			bio := core.CleanString(*up.Bio)
			p.Bio = null.NewString(bio, bio != "")
		}
		if up.TeachingStyle != nil {
			style := core.CleanString(*up.TeachingStyle)
			p.TeachingStyle = null.NewString(style, style != "")
		}
		if up.Specialization != nil {
			p.Specialization = up.Specialization
		}
		if up.YearsExperience != nil {
			p.YearsExperience = null.IntFrom(*up.YearsExperience)
		}
		if p, err = svc.repo.UpdateTeacherProfile(ctx, p); err != nil {
			return Account{}, errors.Wrap(err, "updating teacher profile")
		}
		acc.Teacher = &p
	}
	return acc, nil
}

func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}
	return svc.sendPasswordResetMail(usr)
}

func (svc *service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	invalid := core.NewValidationError(errInvalidToken)

	id, err := decodeUID(data.UID)
	if err != nil {
		return invalid
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return invalid
		}
		return errors.Wrap(err, "getting user")
	}
	if err = verifyToken(usr, data.Token, svc.conf.SecretKey, svc.conf.PasswordResetTimeoutDelta); err != nil {
		return core.NewValidationError(err)
	}

	_, err = svc.SetPassword(ctx, usr, data.Password)
	return errors.Wrap(err, "setting password")
}

func (svc *service) RecordStudyActivity(ctx context.Context, studentID string, at time.Time) (StudentProfile, error) {
	p, err := svc.repo.GetStudentProfile(ctx, studentID)
	if err != nil {
		if errors.Cause(err) == ErrProfileNotFound {
			return StudentProfile{}, ErrNotStudent
		}
		return StudentProfile{}, errors.Wrap(err, "getting student profile")
	}
	next := NextStreak(p, at)
	if next == p {
		return p, nil
	}
	return svc.repo.UpdateStudentProfile(ctx, next)
}

// NextStreak returns the profile after studying on the day of `at` (UTC).
// Consecutive days extend the streak, the same day keeps it, any gap restarts it at 1.
func NextStreak(p StudentProfile, at time.Time) StudentProfile {
	y, m, d := at.UTC().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)

	if p.LastStudyDate.Valid {
		ly, lm, ld := p.LastStudyDate.Time.UTC().Date()
		last := time.Date(ly, lm, ld, 0, 0, 0, 0, time.UTC)
		switch days := int(today.Sub(last).Hours() / 24); {
		case days <= 0:
			return p
		case days == 1:
			p.CurrentStreak++
		default:
			p.CurrentStreak = 1
		}
	} else {
		p.CurrentStreak = 1
	}
	p.LastStudyDate = null.TimeFrom(today)
	return p
}

func (svc *service) recipient(usr User) mail.Address {
	return mail.Address{Name: usr.FullName, Address: usr.Email}
}

func (svc *service) sendWelcomeMail(usr User) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{svc.recipient(usr)},
		Subject:      fmt.Sprintf("Welcome to %s", svc.conf.AppName),
		TemplateName: "welcome",
		TemplateData: map[string]string{
			"Name": usr.FullName,
			"Role": usr.Role,
		},
	})
}

func (svc *service) sendPasswordResetMail(usr User) error {
	token, err := MakeToken(usr, svc.conf.SecretKey)
	if err != nil {
		return errors.Wrap(err, "making password reset token")
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{svc.recipient(usr)},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]string{
			"Name":  usr.FullName,
			"UID":   EncodeUID(usr),
			"Token": token,
		},
	})
	return nil
}
