package ledgerxgo_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/arhyth/ledgerxgo"
	"github.com/arhyth/ledgerxgo/mocks"
)

func newTestService(repo *mocks.MockRepository) ledgerxgo.Service {
	log := zerolog.Nop()
	cache := ledgerxgo.NewAggregateCache(repo, &log)
	return ledgerxgo.NewService(repo, cache, &log)
}

func TestAddTransaction(t *testing.T) {
	t.Run("persists and folds the amount into warm aggregates", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		ctrl := gomock.NewController(tt)
		repo := mocks.NewMockRepository(ctrl)
		svc := newTestService(repo)

		// warm both maps; no rescans expected afterwards
		repo.EXPECT().
			AllTransactions().
			Return(seedLedger(), nil).
			Times(2)
		_, err := svc.TotalsByUser()
		reqrd.Nil(err)
		_, err = svc.TotalsByType()
		reqrd.Nil(err)

		uid := snowflake.ParseInt64(1)
		newID := snowflake.ParseInt64(77)
		repo.EXPECT().
			GetUser(uid).
			Return(&ledgerxgo.User{ID: uid, Name: "Ada", Surname: "Lovelace"}, nil)
		repo.EXPECT().
			InsertTransaction(gomock.AssignableToTypeOf(&ledgerxgo.Transaction{})).
			Return(newID, int64(1), nil)

		id, err := svc.AddTransaction(ledgerxgo.AddTransactionReq{
			UserID: uid,
			Amount: decimal.NewFromInt(50),
			Type:   ledgerxgo.Debit,
		})
		reqrd.Nil(err)
		as.Equal(newID, id)

		byUser, err := svc.TotalsByUser()
		reqrd.Nil(err)
		as.Equal("350", byUser[uid].String())
		byType, err := svc.TotalsByType()
		reqrd.Nil(err)
		as.Equal("150", byType["Debit"].String())
		as.Equal("700", byType["Credit"].String())
	})

	t.Run("rejects a non-positive amount before touching the store", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		repo := mocks.NewMockRepository(ctrl)
		svc := newTestService(repo)

		_, err := svc.AddTransaction(ledgerxgo.AddTransactionReq{
			UserID: snowflake.ParseInt64(1),
			Amount: decimal.NewFromInt(-10),
			Type:   ledgerxgo.Debit,
		})
		as.NotNil(err)
		as.ErrorAs(err, &ledgerxgo.ErrBadRequest{})

		_, err = svc.AddTransaction(ledgerxgo.AddTransactionReq{
			UserID: snowflake.ParseInt64(1),
			Amount: decimal.Zero,
			Type:   ledgerxgo.Debit,
		})
		as.NotNil(err)
	})

	t.Run("rejects an unknown transaction type", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		repo := mocks.NewMockRepository(ctrl)
		svc := newTestService(repo)

		_, err := svc.AddTransaction(ledgerxgo.AddTransactionReq{
			UserID: snowflake.ParseInt64(1),
			Amount: decimal.NewFromInt(10),
			Type:   ledgerxgo.TxnType(9),
		})
		as.NotNil(err)
		as.ErrorAs(err, &ledgerxgo.ErrBadRequest{})
	})

	t.Run("rejects a nonexistent user before any persistence attempt", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		repo := mocks.NewMockRepository(ctrl)
		svc := newTestService(repo)

		uid := snowflake.ParseInt64(999999)
		repo.EXPECT().
			GetUser(uid).
			Return(nil, ledgerxgo.ErrNotFound{ID: uid.Int64()})

		_, err := svc.AddTransaction(ledgerxgo.AddTransactionReq{
			UserID: uid,
			Amount: decimal.NewFromInt(10),
			Type:   ledgerxgo.Debit,
		})
		as.NotNil(err)
		as.ErrorAs(err, &ledgerxgo.ErrNotFound{})
	})

	t.Run("a failed commit leaves both aggregates untouched", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		ctrl := gomock.NewController(tt)
		repo := mocks.NewMockRepository(ctrl)
		svc := newTestService(repo)

		repo.EXPECT().
			AllTransactions().
			Return(seedLedger(), nil).
			Times(2)
		_, err := svc.TotalsByUser()
		reqrd.Nil(err)
		_, err = svc.TotalsByType()
		reqrd.Nil(err)

		uid := snowflake.ParseInt64(1)
		repo.EXPECT().
			GetUser(uid).
			Return(&ledgerxgo.User{ID: uid, Name: "Ada", Surname: "Lovelace"}, nil)
		repo.EXPECT().
			InsertTransaction(gomock.AssignableToTypeOf(&ledgerxgo.Transaction{})).
			Return(snowflake.ID(0), int64(0), ledgerxgo.ErrStore{Op: "insert transaction", Err: assert.AnError})

		_, err = svc.AddTransaction(ledgerxgo.AddTransactionReq{
			UserID: uid,
			Amount: decimal.NewFromInt(50),
			Type:   ledgerxgo.Debit,
		})
		as.NotNil(err)

		byUser, err := svc.TotalsByUser()
		reqrd.Nil(err)
		as.Equal("300", byUser[uid].String())
		byType, err := svc.TotalsByType()
		reqrd.Nil(err)
		as.Equal("100", byType["Debit"].String())
	})

	t.Run("a zero-row commit applies no delta", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		ctrl := gomock.NewController(tt)
		repo := mocks.NewMockRepository(ctrl)
		svc := newTestService(repo)

		repo.EXPECT().
			AllTransactions().
			Return(seedLedger(), nil).
			Times(1)
		_, err := svc.TotalsByUser()
		reqrd.Nil(err)

		uid := snowflake.ParseInt64(1)
		repo.EXPECT().
			GetUser(uid).
			Return(&ledgerxgo.User{ID: uid, Name: "Ada", Surname: "Lovelace"}, nil)
		repo.EXPECT().
			InsertTransaction(gomock.AssignableToTypeOf(&ledgerxgo.Transaction{})).
			Return(snowflake.ParseInt64(78), int64(0), nil)

		_, err = svc.AddTransaction(ledgerxgo.AddTransactionReq{
			UserID: uid,
			Amount: decimal.NewFromInt(50),
			Type:   ledgerxgo.Debit,
		})
		reqrd.Nil(err)

		byUser, err := svc.TotalsByUser()
		reqrd.Nil(err)
		as.Equal("300", byUser[uid].String())
	})
}

func TestHighVolume(t *testing.T) {
	t.Run("returns rows tagged with the owner's display name", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		ctrl := gomock.NewController(tt)
		repo := mocks.NewMockRepository(ctrl)
		svc := newTestService(repo)

		uid := snowflake.ParseInt64(1)
		owner := &ledgerxgo.User{ID: uid, Name: "Grace", Surname: "Hopper"}
		created := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
		threshold := decimal.NewFromInt(1000)
		repo.EXPECT().
			TransactionsAbove(threshold).
			Return([]ledgerxgo.Transaction{
				{ID: snowflake.ParseInt64(21), UserID: uid, Amount: decimal.NewFromInt(5000), Type: ledgerxgo.Credit, CreatedAt: created, User: owner},
				{ID: snowflake.ParseInt64(22), UserID: uid, Amount: decimal.NewFromInt(10000), Type: ledgerxgo.Debit, CreatedAt: created, User: owner},
			}, nil)

		rows, err := svc.HighVolume(threshold)
		reqrd.Nil(err)
		reqrd.Len(rows, 2)
		as.Equal("Grace Hopper", rows[0].UserName)
		as.Equal("5000", rows[0].Amount.String())
		as.Equal("Credit", rows[0].Type)
		as.Equal("Grace Hopper", rows[1].UserName)
		as.Equal("10000", rows[1].Amount.String())
		as.Equal("Debit", rows[1].Type)
	})

	t.Run("store failure propagates", func(tt *testing.T) {
		as := assert.New(tt)
		ctrl := gomock.NewController(tt)
		repo := mocks.NewMockRepository(ctrl)
		svc := newTestService(repo)

		threshold := decimal.NewFromInt(1000)
		repo.EXPECT().
			TransactionsAbove(threshold).
			Return(nil, ledgerxgo.ErrStore{Op: "scan high volume", Err: assert.AnError})

		rows, err := svc.HighVolume(threshold)
		as.NotNil(err)
		as.Nil(rows)
	})
}

func TestReport(t *testing.T) {
	t.Run("writes a PDF built from both aggregates", func(tt *testing.T) {
		as := assert.New(tt)
		reqrd := require.New(tt)
		ctrl := gomock.NewController(tt)
		repo := mocks.NewMockRepository(ctrl)
		svc := newTestService(repo)

		repo.EXPECT().
			AllTransactions().
			Return(seedLedger(), nil).
			Times(2)

		buf := &bytes.Buffer{}
		err := svc.Report(buf)
		reqrd.Nil(err)
		as.True(bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
	})
}
