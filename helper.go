package ledgerxgo

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
)

// LocalHelper drives a local database for the seeder and integration tests.
type LocalHelper struct {
	Conn *pgx.Conn
	Node *snowflake.Node
}

func NewLocalHelper(cfg *Config) (*LocalHelper, error) {
	conn, err := pgx.Connect(context.Background(), cfg.Database.ConnectionString)
	if err != nil {
		return nil, err
	}
	node, err := snowflake.NewNode(cfg.Snowflake.Node)
	if err != nil {
		return nil, err
	}
	return &LocalHelper{
		Conn: conn,
		Node: node,
	}, nil
}

func (lh *LocalHelper) InitDB() (func(), error) {
	initSQLpath := filepath.Join("testdata", "init_db.sql")
	bits, err := os.ReadFile(initSQLpath)
	if err != nil {
		return nil, err
	}
	if _, err = lh.Conn.Exec(context.Background(), string(bits)); err != nil {
		return nil, err
	}
	return lh.teardownDB(), err
}

// SeedDemoData inserts template-driven demo users and a handful of
// transactions against each of them.
func (lh *LocalHelper) SeedDemoData() error {
	seedPath := filepath.Join("testdata", "seed_demo.tmpl")
	bits, err := os.ReadFile(seedPath)
	if err != nil {
		return err
	}
	tmpl, err := template.New("seed_demo").Parse(string(bits))
	if err != nil {
		return err
	}

	type demoTxn struct {
		ID     string
		Amount string
		Typ    string
	}
	type demoUser struct {
		ID      string
		Name    string
		Surname string
		Txns    []demoTxn
	}
	demo := []demoUser{
		{Name: "Ada", Surname: "Lovelace"},
		{Name: "Grace", Surname: "Hopper"},
		{Name: "Edsger", Surname: "Dijkstra"},
	}
	amounts := []string{"100.00", "250.50", "1200.00", "75.25"}
	for i := range demo {
		demo[i].ID = lh.Node.Generate().String()
		for j, amt := range amounts {
			typ := Debit
			if j%2 == 1 {
				typ = Credit
			}
			demo[i].Txns = append(demo[i].Txns, demoTxn{
				ID:     lh.Node.Generate().String(),
				Amount: amt,
				Typ:    typ.String(),
			})
		}
	}

	buf := new(bytes.Buffer)
	if err = tmpl.Execute(buf, demo); err != nil {
		return err
	}

	if _, err = lh.Conn.Exec(context.Background(), buf.String()); err != nil {
		return err
	}

	return err
}

func (lh *LocalHelper) teardownDB() func() {
	return func() {
		defer lh.Conn.Close(context.Background())

		tearSQLpath := filepath.Join("testdata", "teardown_db.sql")
		bits, err := os.ReadFile(tearSQLpath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "DB cleanup read teardown sql: %s", err.Error())
			return
		}
		if _, err = lh.Conn.Exec(context.Background(), string(bits)); err != nil {
			fmt.Fprintf(os.Stderr, "DB cleanup exec teardown sql: %s", err.Error())
			return
		}
	}
}
