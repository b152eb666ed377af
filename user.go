package ledgerxgo

import (
	"github.com/bwmarrin/snowflake"
	"github.com/rs/zerolog"
)

type CreateUserReq struct {
	Name    string `json:"name"`
	Surname string `json:"surname"`
	Email   string `json:"email,omitempty"`
}

type UpdateUserReq struct {
	ID      snowflake.ID `json:"id"`
	Name    string       `json:"name"`
	Surname string       `json:"surname"`
	Email   string       `json:"email,omitempty"`
}

type UserService interface {
	CreateUser(CreateUserReq) (*User, error)
	GetUser(id snowflake.ID) (*User, error)
	ListUsers() ([]User, error)
	UpdateUser(UpdateUserReq) error
	DeleteUser(id snowflake.ID) error
}

var (
	_ UserService = (*userServiceImpl)(nil)
)

func NewUserService(repo Repository, log *zerolog.Logger) *userServiceImpl {
	return &userServiceImpl{
		repo: repo,
		log:  log,
	}
}

type userServiceImpl struct {
	repo Repository
	log  *zerolog.Logger
}

func validateUserFields(name, surname, email string) error {
	fields := map[string]string{}
	if name == "" {
		fields["name"] = "first name is required"
	}
	if surname == "" {
		fields["surname"] = "surname is required"
	}
	if len(email) > 100 {
		fields["email"] = "cannot be longer than 100 characters"
	}
	if len(fields) > 0 {
		return ErrBadRequest{Fields: fields}
	}
	return nil
}

func (s *userServiceImpl) CreateUser(req CreateUserReq) (*User, error) {
	if err := validateUserFields(req.Name, req.Surname, req.Email); err != nil {
		return nil, err
	}
	u := &User{
		Name:    req.Name,
		Surname: req.Surname,
		Email:   req.Email,
	}
	id, err := s.repo.InsertUser(u)
	if err != nil {
		s.log.Err(err).Str("method", "createUser").Msg("error persisting user")
		return nil, err
	}
	u.ID = id
	return u, nil
}

func (s *userServiceImpl) GetUser(id snowflake.ID) (*User, error) {
	if id <= 0 {
		return nil, ErrBadRequest{Fields: map[string]string{"userID": "must be greater than zero"}}
	}
	return s.repo.GetUser(id)
}

func (s *userServiceImpl) ListUsers() ([]User, error) {
	return s.repo.AllUsers()
}

func (s *userServiceImpl) UpdateUser(req UpdateUserReq) error {
	if req.ID <= 0 {
		return ErrBadRequest{Fields: map[string]string{"userID": "must be greater than zero"}}
	}
	if err := validateUserFields(req.Name, req.Surname, req.Email); err != nil {
		return err
	}
	existing, err := s.repo.GetUser(req.ID)
	if err != nil {
		return err
	}
	existing.Name = req.Name
	existing.Surname = req.Surname
	existing.Email = req.Email
	return s.repo.UpdateUser(existing)
}

func (s *userServiceImpl) DeleteUser(id snowflake.ID) error {
	if id <= 0 {
		return ErrBadRequest{Fields: map[string]string{"userID": "must be greater than zero"}}
	}
	if _, err := s.repo.GetUser(id); err != nil {
		return err
	}
	return s.repo.DeleteUser(id)
}
