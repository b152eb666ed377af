package ledgerxgo_test

import (
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/arhyth/ledgerxgo"
	"github.com/arhyth/ledgerxgo/mocks"
)

func TestCreateUser(t *testing.T) {
	t.Run("assigns the store identifier on success", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		ctrl := gomock.NewController(tt)
		repo := mocks.NewMockRepository(ctrl)
		log := zerolog.Nop()
		svc := ledgerxgo.NewUserService(repo, &log)

		newID := snowflake.ParseInt64(42)
		repo.EXPECT().
			InsertUser(gomock.AssignableToTypeOf(&ledgerxgo.User{})).
			Return(newID, nil)

		u, err := svc.CreateUser(ledgerxgo.CreateUserReq{
			Name:    "Ada",
			Surname: "Lovelace",
			Email:   "ada@analytical.engine",
		})
		reqrd.Nil(err)
		as.Equal(newID, u.ID)
		as.Equal("Ada Lovelace", u.DisplayName())
	})

	t.Run("rejects missing names and oversized email", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		repo := mocks.NewMockRepository(ctrl)
		log := zerolog.Nop()
		svc := ledgerxgo.NewUserService(repo, &log)

		_, err := svc.CreateUser(ledgerxgo.CreateUserReq{Surname: "Lovelace"})
		as.ErrorAs(err, &ledgerxgo.ErrBadRequest{})

		_, err = svc.CreateUser(ledgerxgo.CreateUserReq{Name: "Ada"})
		as.ErrorAs(err, &ledgerxgo.ErrBadRequest{})

		_, err = svc.CreateUser(ledgerxgo.CreateUserReq{
			Name:    "Ada",
			Surname: "Lovelace",
			Email:   strings.Repeat("a", 101),
		})
		as.ErrorAs(err, &ledgerxgo.ErrBadRequest{})
	})
}

func TestUpdateUser(t *testing.T) {
	t.Run("loads the record before writing back", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		repo := mocks.NewMockRepository(ctrl)
		log := zerolog.Nop()
		svc := ledgerxgo.NewUserService(repo, &log)

		uid := snowflake.ParseInt64(42)
		repo.EXPECT().
			GetUser(uid).
			Return(&ledgerxgo.User{ID: uid, Name: "Ada", Surname: "Lovelace"}, nil)
		repo.EXPECT().
			UpdateUser(gomock.AssignableToTypeOf(&ledgerxgo.User{})).
			DoAndReturn(func(u *ledgerxgo.User) error {
				as.Equal("Augusta", u.Name)
				as.Equal(uid, u.ID)
				return nil
			})

		err := svc.UpdateUser(ledgerxgo.UpdateUserReq{
			ID:      uid,
			Name:    "Augusta",
			Surname: "King",
		})
		as.Nil(err)
	})

	t.Run("returns NotFound for an unknown id", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		repo := mocks.NewMockRepository(ctrl)
		log := zerolog.Nop()
		svc := ledgerxgo.NewUserService(repo, &log)

		uid := snowflake.ParseInt64(404)
		repo.EXPECT().
			GetUser(uid).
			Return(nil, ledgerxgo.ErrNotFound{ID: uid.Int64()})

		err := svc.UpdateUser(ledgerxgo.UpdateUserReq{
			ID:      uid,
			Name:    "Nobody",
			Surname: "Here",
		})
		as.ErrorAs(err, &ledgerxgo.ErrNotFound{})
	})
}

func TestDeleteUser(t *testing.T) {
	t.Run("checks existence first", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		repo := mocks.NewMockRepository(ctrl)
		log := zerolog.Nop()
		svc := ledgerxgo.NewUserService(repo, &log)

		uid := snowflake.ParseInt64(42)
		repo.EXPECT().
			GetUser(uid).
			Return(&ledgerxgo.User{ID: uid, Name: "Ada", Surname: "Lovelace"}, nil)
		repo.EXPECT().
			DeleteUser(uid).
			Return(nil)

		as.Nil(svc.DeleteUser(uid))
	})

	t.Run("rejects a non-positive id", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		repo := mocks.NewMockRepository(ctrl)
		log := zerolog.Nop()
		svc := ledgerxgo.NewUserService(repo, &log)

		as.ErrorAs(svc.DeleteUser(snowflake.ParseInt64(0)), &ledgerxgo.ErrBadRequest{})
	})
}
