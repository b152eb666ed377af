package ledgerxgo

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// TxnType is the fixed transaction category enumeration. Aggregates and
// API payloads always carry its string form, never the ordinal.
type TxnType int

const (
	Debit TxnType = iota
	Credit
)

func (t TxnType) String() string {
	switch t {
	case Debit:
		return "Debit"
	case Credit:
		return "Credit"
	}
	return fmt.Sprintf("TxnType(%d)", int(t))
}

func (t TxnType) Valid() bool {
	return t == Debit || t == Credit
}

func ParseTxnType(s string) (TxnType, error) {
	switch s {
	case "Debit":
		return Debit, nil
	case "Credit":
		return Credit, nil
	}
	return 0, ErrBadRequest{Fields: map[string]string{"type": "unknown transaction type: " + s}}
}

func (t TxnType) MarshalJSON() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid transaction type %d", int(t))
	}
	return []byte(`"` + t.String() + `"`), nil
}

func (t *TxnType) UnmarshalJSON(b []byte) error {
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return fmt.Errorf("transaction type must be a JSON string")
	}
	parsed, err := ParseTxnType(string(b[1 : len(b)-1]))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Transaction is a single ledger record. Immutable once inserted; ID and
// CreatedAt are assigned by the store.
type Transaction struct {
	ID        snowflake.ID    `json:"id"`
	UserID    snowflake.ID    `json:"userId"`
	Amount    decimal.Decimal `json:"amount"`
	Type      TxnType         `json:"type"`
	CreatedAt time.Time       `json:"createdAt"`

	// User is only populated on eager-joined scans, e.g. TransactionsAbove.
	User *User `json:"-"`
}

type User struct {
	ID      snowflake.ID `json:"id"`
	Name    string       `json:"name"`
	Surname string       `json:"surname"`
	Email   string       `json:"email,omitempty"`
}

// DisplayName is the first and last name joined by a single space.
func (u *User) DisplayName() string {
	return u.Name + " " + u.Surname
}

type Repository interface {
	// InsertTransaction persists txn and returns the assigned identifier
	// together with the number of rows the commit reported.
	InsertTransaction(txn *Transaction) (snowflake.ID, int64, error)
	GetTransaction(id snowflake.ID) (*Transaction, error)
	AllTransactions() ([]Transaction, error)
	// TransactionsAbove scans for records with amount strictly greater than
	// threshold, eager-joined with the owning user.
	TransactionsAbove(threshold decimal.Decimal) ([]Transaction, error)

	InsertUser(u *User) (snowflake.ID, error)
	GetUser(id snowflake.ID) (*User, error)
	AllUsers() ([]User, error)
	UpdateUser(u *User) error
	DeleteUser(id snowflake.ID) error
}
