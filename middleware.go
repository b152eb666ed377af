package ledgerxgo

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/semaphore"
)

type Middleware func(Service) Service

//
// Rate limiting middleware
//

// limitMiddleware limits the number of in-flight requests to the service by
// using a weighted semaphore, i.e., x/sync/semaphore.Weighted with an
// acquisition timeout. As limits are static and servers may be deployed to a
// heterogeneous set of machines, the numbers have to be tuned per deployment,
// but it is a good example of load shedding.
type limitMiddleware struct {
	next    Service
	limits  *ServiceLimits
	timeout time.Duration
}

var (
	_ Service = (*limitMiddleware)(nil)
)

type ServiceLimits struct {
	AddTransaction *semaphore.Weighted
	Reads          *semaphore.Weighted
	Report         *semaphore.Weighted
}

type LimitsConfig struct {
	AddTransaction int64 `yaml:"add_transaction"`
	Reads          int64 `yaml:"reads"`
	Report         int64 `yaml:"report"`
	// AcquireTimeoutMillis bounds how long a request waits for a slot
	// before it is shed with ErrOverCapacity.
	AcquireTimeoutMillis int64 `yaml:"acquire_timeout_millis"`
}

func NewServiceLimits(cfg LimitsConfig) *ServiceLimits {
	if cfg.AddTransaction <= 0 {
		cfg.AddTransaction = 64
	}
	if cfg.Reads <= 0 {
		cfg.Reads = 256
	}
	if cfg.Report <= 0 {
		cfg.Report = 4
	}
	return &ServiceLimits{
		AddTransaction: semaphore.NewWeighted(cfg.AddTransaction),
		Reads:          semaphore.NewWeighted(cfg.Reads),
		Report:         semaphore.NewWeighted(cfg.Report),
	}
}

func NewLimitMiddleware(limits *ServiceLimits, timeout time.Duration) Middleware {
	if timeout <= 0 {
		timeout = 100 * time.Millisecond
	}
	return func(next Service) Service {
		return &limitMiddleware{
			next:    next,
			limits:  limits,
			timeout: timeout,
		}
	}
}

func (l *limitMiddleware) acquire(sem *semaphore.Weighted) (func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, ErrOverCapacity
	}
	return func() { sem.Release(1) }, nil
}

func (l *limitMiddleware) AddTransaction(req AddTransactionReq) (snowflake.ID, error) {
	release, err := l.acquire(l.limits.AddTransaction)
	if err != nil {
		return 0, err
	}
	defer release()
	return l.next.AddTransaction(req)
}

func (l *limitMiddleware) GetTransaction(id snowflake.ID) (*Transaction, error) {
	release, err := l.acquire(l.limits.Reads)
	if err != nil {
		return nil, err
	}
	defer release()
	return l.next.GetTransaction(id)
}

func (l *limitMiddleware) ListTransactions() ([]Transaction, error) {
	release, err := l.acquire(l.limits.Reads)
	if err != nil {
		return nil, err
	}
	defer release()
	return l.next.ListTransactions()
}

func (l *limitMiddleware) TotalsByUser() (map[snowflake.ID]decimal.Decimal, error) {
	release, err := l.acquire(l.limits.Reads)
	if err != nil {
		return nil, err
	}
	defer release()
	return l.next.TotalsByUser()
}

func (l *limitMiddleware) TotalsByType() (map[string]decimal.Decimal, error) {
	release, err := l.acquire(l.limits.Reads)
	if err != nil {
		return nil, err
	}
	defer release()
	return l.next.TotalsByType()
}

func (l *limitMiddleware) HighVolume(threshold decimal.Decimal) ([]HighVolumeTxn, error) {
	release, err := l.acquire(l.limits.Reads)
	if err != nil {
		return nil, err
	}
	defer release()
	return l.next.HighVolume(threshold)
}

func (l *limitMiddleware) Report(w io.Writer) error {
	release, err := l.acquire(l.limits.Report)
	if err != nil {
		return err
	}
	defer release()
	return l.next.Report(w)
}

//
// Circuit breaking middleware
//

type ServiceBreaker struct {
	AddTransaction *gobreaker.CircuitBreaker[snowflake.ID]
	GetTransaction *gobreaker.CircuitBreaker[*Transaction]
	List           *gobreaker.CircuitBreaker[[]Transaction]
	TotalsByUser   *gobreaker.CircuitBreaker[map[snowflake.ID]decimal.Decimal]
	TotalsByType   *gobreaker.CircuitBreaker[map[string]decimal.Decimal]
	HighVolume     *gobreaker.CircuitBreaker[[]HighVolumeTxn]
	Report         *gobreaker.CircuitBreaker[any]
}

func NewServiceBreaker(st gobreaker.Settings) *ServiceBreaker {
	if st.IsSuccessful == nil {
		// Domain rejections are not service faults and must not trip the
		// breaker.
		st.IsSuccessful = func(err error) bool {
			if err == nil {
				return true
			}
			var ebr ErrBadRequest
			var enf ErrNotFound
			return errors.As(err, &ebr) || errors.As(err, &enf)
		}
	}
	named := func(method string) gobreaker.Settings {
		s := st
		s.Name = method
		return s
	}
	return &ServiceBreaker{
		AddTransaction: gobreaker.NewCircuitBreaker[snowflake.ID](named("AddTransaction")),
		GetTransaction: gobreaker.NewCircuitBreaker[*Transaction](named("GetTransaction")),
		List:           gobreaker.NewCircuitBreaker[[]Transaction](named("ListTransactions")),
		TotalsByUser:   gobreaker.NewCircuitBreaker[map[snowflake.ID]decimal.Decimal](named("TotalsByUser")),
		TotalsByType:   gobreaker.NewCircuitBreaker[map[string]decimal.Decimal](named("TotalsByType")),
		HighVolume:     gobreaker.NewCircuitBreaker[[]HighVolumeTxn](named("HighVolume")),
		Report:         gobreaker.NewCircuitBreaker[any](named("Report")),
	}
}

// circuitBreakMiddleware trips per-method when the store is struggling so
// requests fail fast instead of piling onto the limit semaphores.
type circuitBreakMiddleware struct {
	next  Service
	brkrs *ServiceBreaker
}

var (
	_ Service = (*circuitBreakMiddleware)(nil)
)

func NewCircuitBreakMiddleware(brkrs *ServiceBreaker) Middleware {
	return func(next Service) Service {
		return &circuitBreakMiddleware{
			next:  next,
			brkrs: brkrs,
		}
	}
}

func (c *circuitBreakMiddleware) AddTransaction(req AddTransactionReq) (snowflake.ID, error) {
	return c.brkrs.AddTransaction.Execute(func() (snowflake.ID, error) {
		return c.next.AddTransaction(req)
	})
}

func (c *circuitBreakMiddleware) GetTransaction(id snowflake.ID) (*Transaction, error) {
	return c.brkrs.GetTransaction.Execute(func() (*Transaction, error) {
		return c.next.GetTransaction(id)
	})
}

func (c *circuitBreakMiddleware) ListTransactions() ([]Transaction, error) {
	return c.brkrs.List.Execute(func() ([]Transaction, error) {
		return c.next.ListTransactions()
	})
}

func (c *circuitBreakMiddleware) TotalsByUser() (map[snowflake.ID]decimal.Decimal, error) {
	return c.brkrs.TotalsByUser.Execute(func() (map[snowflake.ID]decimal.Decimal, error) {
		return c.next.TotalsByUser()
	})
}

func (c *circuitBreakMiddleware) TotalsByType() (map[string]decimal.Decimal, error) {
	return c.brkrs.TotalsByType.Execute(func() (map[string]decimal.Decimal, error) {
		return c.next.TotalsByType()
	})
}

func (c *circuitBreakMiddleware) HighVolume(threshold decimal.Decimal) ([]HighVolumeTxn, error) {
	return c.brkrs.HighVolume.Execute(func() ([]HighVolumeTxn, error) {
		return c.next.HighVolume(threshold)
	})
}

func (c *circuitBreakMiddleware) Report(w io.Writer) error {
	_, err := c.brkrs.Report.Execute(func() (any, error) {
		return nil, c.next.Report(w)
	})
	return err
}
