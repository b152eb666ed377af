package ledgerxgo_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arhyth/ledgerxgo"
)

var (
	testDBConnStr string
)

func init() {
	testDBConnStr = os.Getenv("TEST_DB_CONN_STR")
}

func TestPostgres(t *testing.T) {
	if testDBConnStr == "" {
		t.Skip("TEST_DB_CONN_STR not set")
	}
	as := assert.New(t)
	reqrd := require.New(t)

	_, teardown, err := initDB()
	reqrd.Nil(err)
	t.Cleanup(teardown)
	node, err := snowflake.NewNode(111)
	reqrd.Nil(err)
	nooplog := zerolog.Nop()

	endpt, err := ledgerxgo.NewPostgresEndpoint(testDBConnStr, node, &nooplog)
	reqrd.Nil(err)
	t.Cleanup(endpt.Close)

	ada := &ledgerxgo.User{Name: "Ada", Surname: "Lovelace", Email: "ada@engine.dev"}
	adaID, err := endpt.InsertUser(ada)
	reqrd.Nil(err)
	grace := &ledgerxgo.User{Name: "Grace", Surname: "Hopper"}
	graceID, err := endpt.InsertUser(grace)
	reqrd.Nil(err)

	t.Run("insert reports one affected row and assigns id and timestamp", func(tt *testing.T) {
		txn := &ledgerxgo.Transaction{
			UserID: adaID,
			Amount: decimal.NewFromInt(500),
			Type:   ledgerxgo.Debit,
		}
		id, affected, err := endpt.InsertTransaction(txn)
		reqrd.Nil(err)
		as.Equal(int64(1), affected)
		as.Equal(id, txn.ID)
		as.False(txn.CreatedAt.IsZero())

		got, err := endpt.GetTransaction(id)
		reqrd.Nil(err)
		as.Equal(adaID, got.UserID)
		as.True(got.Amount.Equal(txn.Amount))
		as.Equal(ledgerxgo.Debit, got.Type)
	})

	t.Run("full scan returns every committed record", func(tt *testing.T) {
		for _, amt := range []int64{5000, 10000, 750} {
			_, _, err := endpt.InsertTransaction(&ledgerxgo.Transaction{
				UserID: graceID,
				Amount: decimal.NewFromInt(amt),
				Type:   ledgerxgo.Credit,
			})
			reqrd.Nil(err)
		}
		txns, err := endpt.AllTransactions()
		reqrd.Nil(err)
		as.Len(txns, 4)
	})

	t.Run("predicate scan is strict and joins the owner", func(tt *testing.T) {
		txns, err := endpt.TransactionsAbove(decimal.NewFromInt(1000))
		reqrd.Nil(err)
		reqrd.Len(txns, 2)
		for _, txn := range txns {
			as.True(txn.Amount.GreaterThan(decimal.NewFromInt(1000)))
			reqrd.NotNil(txn.User)
			as.Equal("Grace Hopper", txn.User.DisplayName())
		}
	})

	t.Run("unknown ids come back as NotFound", func(tt *testing.T) {
		_, err := endpt.GetTransaction(snowflake.ParseInt64(404))
		as.ErrorAs(err, &ledgerxgo.ErrNotFound{})
		_, err = endpt.GetUser(snowflake.ParseInt64(404))
		as.ErrorAs(err, &ledgerxgo.ErrNotFound{})
	})

	t.Run("user update and delete round-trip", func(tt *testing.T) {
		ada.Name = "Augusta"
		reqrd.Nil(endpt.UpdateUser(ada))
		got, err := endpt.GetUser(adaID)
		reqrd.Nil(err)
		as.Equal("Augusta", got.Name)

		extra := &ledgerxgo.User{Name: "Edsger", Surname: "Dijkstra"}
		extraID, err := endpt.InsertUser(extra)
		reqrd.Nil(err)
		reqrd.Nil(endpt.DeleteUser(extraID))
		as.ErrorAs(endpt.DeleteUser(extraID), &ledgerxgo.ErrNotFound{})
	})
}

func initDB() (*pgx.Conn, func(), error) {
	conn, err := pgx.Connect(context.Background(), testDBConnStr)
	if err != nil {
		return nil, nil, err
	}
	initSQLpath := filepath.Join("testdata", "init_db.sql")
	bits, err := os.ReadFile(initSQLpath)
	if err != nil {
		return conn, nil, err
	}
	if _, err = conn.Exec(context.Background(), string(bits)); err != nil {
		return conn, nil, err
	}
	return conn, teardownDB(conn), err
}

func teardownDB(conn *pgx.Conn) func() {
	return func() {
		defer conn.Close(context.Background())

		tearSQLpath := filepath.Join("testdata", "teardown_db.sql")
		bits, err := os.ReadFile(tearSQLpath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "DB cleanup read teardown sql: %s", err.Error())
			return
		}
		if _, err = conn.Exec(context.Background(), string(bits)); err != nil {
			fmt.Fprintf(os.Stderr, "DB cleanup exec teardown sql: %s", err.Error())
			return
		}
	}
}
