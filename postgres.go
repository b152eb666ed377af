package ledgerxgo

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var (
	pgInsertTxnSQL = `
		INSERT INTO transactions (id, user_id, amount, typ, created_at)
		VALUES ($1, $2, $3, $4, $5);
	`

	pgSelectTxnSQL = `
		SELECT id, user_id, amount, typ, created_at
		FROM transactions
		WHERE id = $1;
	`

	pgSelectAllTxnsSQL = `
		SELECT id, user_id, amount, typ, created_at
		FROM transactions
		ORDER BY created_at;
	`

	pgSelectHighVolumeSQL = `
		SELECT t.id, t.user_id, t.amount, t.typ, t.created_at,
		       u.name, u.surname, COALESCE(u.email, '')
		FROM transactions t
		JOIN users u ON u.id = t.user_id
		WHERE t.amount > $1
		ORDER BY t.created_at;
	`

	pgInsertUserSQL = `
		INSERT INTO users (id, name, surname, email)
		VALUES ($1, $2, $3, NULLIF($4, ''));
	`

	pgSelectUserSQL = `
		SELECT id, name, surname, COALESCE(email, '')
		FROM users
		WHERE id = $1;
	`

	pgSelectAllUsersSQL = `
		SELECT id, name, surname, COALESCE(email, '')
		FROM users
		ORDER BY id;
	`

	pgUpdateUserSQL = `
		UPDATE users
		SET name = $1, surname = $2, email = NULLIF($3, '')
		WHERE id = $4;
	`

	pgDeleteUserSQL = `
		DELETE FROM users
		WHERE id = $1;
	`
)

type PostgresEndpoint struct {
	pool *pgxpool.Pool
	node *snowflake.Node
	log  *zerolog.Logger
}

var (
	_ Repository = (*PostgresEndpoint)(nil)
)

func NewPostgresEndpoint(connStr string, node *snowflake.Node, log *zerolog.Logger) (*PostgresEndpoint, error) {
	cfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	if err = pool.Ping(context.Background()); err != nil {
		return nil, err
	}

	endpt := &PostgresEndpoint{
		pool: pool,
		node: node,
		log:  log,
	}
	return endpt, err
}

func (pg *PostgresEndpoint) Close() {
	pg.pool.Close()
}

func (pg *PostgresEndpoint) InsertTransaction(txn *Transaction) (snowflake.ID, int64, error) {
	ctx := context.Background()
	conn, err := pg.pool.Acquire(ctx)
	if err != nil {
		return 0, 0, ErrStore{Op: "acquire conn", Err: err}
	}
	defer conn.Release()

	id := pg.node.Generate()
	now := time.Now().UTC()
	tag, err := conn.Exec(ctx, pgInsertTxnSQL, id, txn.UserID, txn.Amount, txn.Type.String(), now)
	if err != nil {
		return 0, 0, ErrStore{Op: "insert transaction", Err: err}
	}
	txn.ID = id
	txn.CreatedAt = now
	return id, tag.RowsAffected(), nil
}

func (pg *PostgresEndpoint) GetTransaction(id snowflake.ID) (*Transaction, error) {
	ctx := context.Background()
	conn, err := pg.pool.Acquire(ctx)
	if err != nil {
		return nil, ErrStore{Op: "acquire conn", Err: err}
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, pgSelectTxnSQL, id)
	txn, err := scanTransaction(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound{ID: id.Int64()}
		}
		return nil, ErrStore{Op: "select transaction", Err: err}
	}
	return txn, nil
}

func (pg *PostgresEndpoint) AllTransactions() ([]Transaction, error) {
	ctx := context.Background()
	conn, err := pg.pool.Acquire(ctx)
	if err != nil {
		return nil, ErrStore{Op: "acquire conn", Err: err}
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, pgSelectAllTxnsSQL)
	if err != nil {
		return nil, ErrStore{Op: "scan transactions", Err: err}
	}
	defer rows.Close()

	var txns []Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, ErrStore{Op: "scan transactions", Err: err}
		}
		txns = append(txns, *txn)
	}
	if err = rows.Err(); err != nil {
		return nil, ErrStore{Op: "scan transactions", Err: err}
	}
	return txns, nil
}

func (pg *PostgresEndpoint) TransactionsAbove(threshold decimal.Decimal) ([]Transaction, error) {
	ctx := context.Background()
	conn, err := pg.pool.Acquire(ctx)
	if err != nil {
		return nil, ErrStore{Op: "acquire conn", Err: err}
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, pgSelectHighVolumeSQL, threshold)
	if err != nil {
		return nil, ErrStore{Op: "scan high volume", Err: err}
	}
	defer rows.Close()

	var txns []Transaction
	for rows.Next() {
		var (
			txn  Transaction
			user User
			typ  string
		)
		if err = rows.Scan(&txn.ID, &txn.UserID, &txn.Amount, &typ, &txn.CreatedAt,
			&user.Name, &user.Surname, &user.Email); err != nil {
			return nil, ErrStore{Op: "scan high volume", Err: err}
		}
		if txn.Type, err = ParseTxnType(typ); err != nil {
			return nil, ErrStore{Op: "scan high volume", Err: err}
		}
		user.ID = txn.UserID
		txn.User = &user
		txns = append(txns, txn)
	}
	if err = rows.Err(); err != nil {
		return nil, ErrStore{Op: "scan high volume", Err: err}
	}
	return txns, nil
}

func (pg *PostgresEndpoint) InsertUser(u *User) (snowflake.ID, error) {
	ctx := context.Background()
	conn, err := pg.pool.Acquire(ctx)
	if err != nil {
		return 0, ErrStore{Op: "acquire conn", Err: err}
	}
	defer conn.Release()

	id := pg.node.Generate()
	if _, err = conn.Exec(ctx, pgInsertUserSQL, id, u.Name, u.Surname, u.Email); err != nil {
		return 0, ErrStore{Op: "insert user", Err: err}
	}
	u.ID = id
	return id, nil
}

func (pg *PostgresEndpoint) GetUser(id snowflake.ID) (*User, error) {
	ctx := context.Background()
	conn, err := pg.pool.Acquire(ctx)
	if err != nil {
		return nil, ErrStore{Op: "acquire conn", Err: err}
	}
	defer conn.Release()

	row := conn.QueryRow(ctx, pgSelectUserSQL, id)
	var u User
	if err = row.Scan(&u.ID, &u.Name, &u.Surname, &u.Email); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrNotFound{ID: id.Int64()}
		}
		return nil, ErrStore{Op: "select user", Err: err}
	}
	return &u, nil
}

func (pg *PostgresEndpoint) AllUsers() ([]User, error) {
	ctx := context.Background()
	conn, err := pg.pool.Acquire(ctx)
	if err != nil {
		return nil, ErrStore{Op: "acquire conn", Err: err}
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, pgSelectAllUsersSQL)
	if err != nil {
		return nil, ErrStore{Op: "scan users", Err: err}
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err = rows.Scan(&u.ID, &u.Name, &u.Surname, &u.Email); err != nil {
			return nil, ErrStore{Op: "scan users", Err: err}
		}
		users = append(users, u)
	}
	if err = rows.Err(); err != nil {
		return nil, ErrStore{Op: "scan users", Err: err}
	}
	return users, nil
}

func (pg *PostgresEndpoint) UpdateUser(u *User) error {
	ctx := context.Background()
	conn, err := pg.pool.Acquire(ctx)
	if err != nil {
		return ErrStore{Op: "acquire conn", Err: err}
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, pgUpdateUserSQL, u.Name, u.Surname, u.Email, u.ID)
	if err != nil {
		return ErrStore{Op: "update user", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound{ID: u.ID.Int64()}
	}
	return nil
}

func (pg *PostgresEndpoint) DeleteUser(id snowflake.ID) error {
	ctx := context.Background()
	conn, err := pg.pool.Acquire(ctx)
	if err != nil {
		return ErrStore{Op: "acquire conn", Err: err}
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, pgDeleteUserSQL, id)
	if err != nil {
		return ErrStore{Op: "delete user", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound{ID: id.Int64()}
	}
	return nil
}

func scanTransaction(row pgx.Row) (*Transaction, error) {
	var (
		txn Transaction
		typ string
	)
	if err := row.Scan(&txn.ID, &txn.UserID, &txn.Amount, &typ, &txn.CreatedAt); err != nil {
		return nil, err
	}
	var err error
	if txn.Type, err = ParseTxnType(typ); err != nil {
		return nil, err
	}
	return &txn, nil
}
