package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"go.uber.org/zap"

	"hey-chat/internal/domain"
	"hey-chat/internal/media"
	"hey-chat/internal/repository"
)

const dateOfBirthLayout = "2006-01-02"

var genders = []interface{}{"male", "female", "other"}

// ProfileInput son los campos que el usuario envia al completar su perfil.
type ProfileInput struct {
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Bio            string `json:"bio"`
	Gender         string `json:"gender"`
	DateOfBirth    string `json:"dateOfBirth"`
	ProfilePicture string `json:"profilePicture"`
	CoverPicture   string `json:"coverPicture"`
}

// ProfileStatus resume los flags que consulta el cliente al iniciar.
type ProfileStatus struct {
	IsVerified        bool `json:"isVerified"`
	IsProfileComplete bool `json:"isProfileComplete"`
}

// ProfileService gestiona el perfil posterior a la verificacion.
type ProfileService struct {
	logger   *zap.Logger
	accounts repository.AccountRepository
	uploader media.Uploader
	now      func() time.Time
}

func NewProfileService(logger *zap.Logger, accounts repository.AccountRepository, uploader media.Uploader) *ProfileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if uploader == nil {
		uploader = media.NewDisabledUploader()
	}
	return &ProfileService{
		logger:   logger,
		accounts: accounts,
		uploader: uploader,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *ProfileService) GetProfile(ctx context.Context, accountID string) (domain.Account, error) {
	return s.accounts.GetByID(ctx, accountID)
}

func (s *ProfileService) Status(ctx context.Context, accountID string) (ProfileStatus, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return ProfileStatus{}, err
	}
	return ProfileStatus{
		IsVerified:        account.IsVerified(),
		IsProfileComplete: account.IsProfileComplete(),
	}, nil
}

// CompleteProfile valida la entrada, sube las imagenes embebidas y marca el perfil como completo.
func (s *ProfileService) CompleteProfile(ctx context.Context, accountID string, input ProfileInput) (domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return domain.Account{}, err
	}
	if !account.IsVerified() {
		return domain.Account{}, domain.ErrAccountUnverified
	}

	input = trimProfileInput(input)
	now := s.now()
	if err := validateProfileInput(input, now); err != nil {
		return domain.Account{}, err
	}

	profile := domain.Profile{
		ProfilePicture: domain.DefaultProfilePicture,
		CoverPicture:   domain.DefaultCoverPicture,
	}
	if account.Profile != nil {
		profile = *account.Profile
	}
	profile.FirstName = input.FirstName
	profile.LastName = input.LastName
	profile.Bio = input.Bio
	profile.Gender = input.Gender
	profile.DateOfBirth = nil
	if input.DateOfBirth != "" {
		dob, _ := time.Parse(dateOfBirthLayout, input.DateOfBirth)
		profile.DateOfBirth = &dob
	}

	if profile.ProfilePicture, err = s.resolvePicture(ctx, "profile_pictures", input.ProfilePicture, profile.ProfilePicture); err != nil {
		return domain.Account{}, err
	}
	if profile.CoverPicture, err = s.resolvePicture(ctx, "cover_pictures", input.CoverPicture, profile.CoverPicture); err != nil {
		return domain.Account{}, err
	}
	profile.CompletedAt = &now

	saved, err := mutateAccount(ctx, s.accounts, account, func(a *domain.Account) error {
		if !a.IsVerified() {
			return domain.ErrAccountUnverified
		}
		a.Profile = &profile
		return nil
	})
	if err != nil {
		return domain.Account{}, err
	}
	s.logger.Info("profile completed", zap.String("account_id", saved.ID))
	return saved, nil
}

func (s *ProfileService) resolvePicture(ctx context.Context, folder, value, current string) (string, error) {
	switch {
	case value == "":
		return current, nil
	case media.IsDataURI(value):
		url, err := s.uploader.Upload(ctx, folder, value)
		if err != nil {
			if errors.Is(err, domain.ErrMediaInvalid) {
				return "", &domain.ValidationError{Fields: map[string]string{pictureField(folder): "must be a png, jpeg, gif or webp image up to 5MB"}}
			}
			return "", err
		}
		return url, nil
	default:
		return value, nil
	}
}

func pictureField(folder string) string {
	if folder == "cover_pictures" {
		return "coverPicture"
	}
	return "profilePicture"
}

func trimProfileInput(in ProfileInput) ProfileInput {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Bio = strings.TrimSpace(in.Bio)
	in.Gender = strings.ToLower(strings.TrimSpace(in.Gender))
	in.DateOfBirth = strings.TrimSpace(in.DateOfBirth)
	in.ProfilePicture = strings.TrimSpace(in.ProfilePicture)
	in.CoverPicture = strings.TrimSpace(in.CoverPicture)
	return in
}

func validateProfileInput(in ProfileInput, now time.Time) error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.FirstName, validation.Required, validation.Length(3, 20)),
		validation.Field(&in.LastName, validation.Required, validation.Length(3, 20)),
		validation.Field(&in.Bio, validation.Length(3, 300)),
		validation.Field(&in.Gender, validation.In(genders...)),
		validation.Field(&in.DateOfBirth, validation.By(pastDate(now))),
		validation.Field(&in.ProfilePicture, validation.By(pictureReference)),
		validation.Field(&in.CoverPicture, validation.By(pictureReference)),
	)
	if err == nil {
		return nil
	}
	var fieldErrs validation.Errors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	fields := make(map[string]string, len(fieldErrs))
	for field, ferr := range fieldErrs {
		fields[field] = ferr.Error()
	}
	return &domain.ValidationError{Fields: fields}
}

func pastDate(now time.Time) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if s == "" {
			return nil
		}
		t, err := time.Parse(dateOfBirthLayout, s)
		if err != nil {
			return fmt.Errorf("must be a date in %s format", "YYYY-MM-DD")
		}
		if !t.Before(now) {
			return errors.New("must be in the past")
		}
		return nil
	}
}

// pictureReference acepta data URI, URL http(s) o ruta absoluta del sitio.
func pictureReference(value interface{}) error {
	s, _ := value.(string)
	if s == "" || media.IsDataURI(s) {
		return nil
	}
	if strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "/") {
		return nil
	}
	return errors.New("must be an image data URI or URL")
}
