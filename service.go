package ledgerxgo

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/go-pdf/fpdf"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type AddTransactionReq struct {
	UserID snowflake.ID    `json:"userId"`
	Amount decimal.Decimal `json:"amount"`
	Type   TxnType         `json:"type"`
}

// HighVolumeTxn is a high-volume scan row joined with the owning user's
// display name.
type HighVolumeTxn struct {
	UserName  string          `json:"userName"`
	Amount    decimal.Decimal `json:"amount"`
	Type      string          `json:"type"`
	CreatedAt time.Time       `json:"createdAt"`
}

type Service interface {
	AddTransaction(AddTransactionReq) (snowflake.ID, error)
	GetTransaction(id snowflake.ID) (*Transaction, error)
	ListTransactions() ([]Transaction, error)
	TotalsByUser() (map[snowflake.ID]decimal.Decimal, error)
	TotalsByType() (map[string]decimal.Decimal, error)
	HighVolume(threshold decimal.Decimal) ([]HighVolumeTxn, error)
	Report(w io.Writer) error
}

var (
	_ Service = (*serviceImpl)(nil)
)

func NewService(repo Repository, cache *AggregateCache, log *zerolog.Logger) *serviceImpl {
	return &serviceImpl{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

type serviceImpl struct {
	repo  Repository
	cache *AggregateCache
	log   *zerolog.Logger
}

// AddTransaction persists the record and, if and only if the commit reported
// at least one row, folds the amount into both warm aggregate maps. A failed
// commit leaves the cache exactly as it was.
func (s *serviceImpl) AddTransaction(req AddTransactionReq) (snowflake.ID, error) {
	if !req.Amount.IsPositive() {
		return 0, ErrBadRequest{Fields: map[string]string{"amount": "must be greater than zero"}}
	}
	if !req.Type.Valid() {
		return 0, ErrBadRequest{Fields: map[string]string{"type": "unknown transaction type"}}
	}
	if _, err := s.repo.GetUser(req.UserID); err != nil {
		return 0, err
	}

	txn := &Transaction{
		UserID: req.UserID,
		Amount: req.Amount,
		Type:   req.Type,
	}
	id, affected, err := s.repo.InsertTransaction(txn)
	if err != nil {
		s.log.Err(err).Str("method", "addTransaction").Msg("error persisting transaction")
		return 0, err
	}
	if affected > 0 {
		s.cache.AddUserDelta(req.UserID, req.Amount)
		s.cache.AddTypeDelta(req.Type.String(), req.Amount)
	}
	return id, nil
}

func (s *serviceImpl) GetTransaction(id snowflake.ID) (*Transaction, error) {
	return s.repo.GetTransaction(id)
}

// ListTransactions is a plain full scan; listing changes shape on every
// write so there is nothing worth caching.
func (s *serviceImpl) ListTransactions() ([]Transaction, error) {
	return s.repo.AllTransactions()
}

func (s *serviceImpl) TotalsByUser() (map[snowflake.ID]decimal.Decimal, error) {
	return s.cache.TotalsByUser()
}

func (s *serviceImpl) TotalsByType() (map[string]decimal.Decimal, error) {
	return s.cache.TotalsByType()
}

// HighVolume delegates the strict amount > threshold filter to the store so
// large ledgers are never pulled fully into memory here.
func (s *serviceImpl) HighVolume(threshold decimal.Decimal) ([]HighVolumeTxn, error) {
	txns, err := s.repo.TransactionsAbove(threshold)
	if err != nil {
		s.log.Err(err).Str("method", "highVolume").Msg("error scanning ledger")
		return nil, err
	}
	rows := make([]HighVolumeTxn, 0, len(txns))
	for _, t := range txns {
		row := HighVolumeTxn{
			Amount:    t.Amount,
			Type:      t.Type.String(),
			CreatedAt: t.CreatedAt,
		}
		if t.User != nil {
			row.UserName = t.User.DisplayName()
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Report renders both aggregate maps as a one-page PDF.
func (s *serviceImpl) Report(w io.Writer) error {
	byUser, err := s.cache.TotalsByUser()
	if err != nil {
		return err
	}
	byType, err := s.cache.TotalsByType()
	if err != nil {
		return err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 10, "Ledger totals")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(0, 8, "Total amount per user")
	pdf.Ln(9)
	pdf.SetFont("Helvetica", "", 10)
	userIDs := make([]snowflake.ID, 0, len(byUser))
	for id := range byUser {
		userIDs = append(userIDs, id)
	}
	sort.Slice(userIDs, func(i, j int) bool { return userIDs[i] < userIDs[j] })
	for _, id := range userIDs {
		pdf.Cell(60, 6, id.String())
		pdf.Cell(0, 6, byUser[id].String())
		pdf.Ln(6)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(0, 8, "Total amount per transaction type")
	pdf.Ln(9)
	pdf.SetFont("Helvetica", "", 10)
	types := make([]string, 0, len(byType))
	for typ := range byType {
		types = append(types, typ)
	}
	sort.Strings(types)
	for _, typ := range types {
		pdf.Cell(60, 6, typ)
		pdf.Cell(0, 6, byType[typ].String())
		pdf.Ln(6)
	}

	if err := pdf.Output(w); err != nil {
		s.log.Err(err).Str("method", "report").Msg("error writing PDF")
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}
