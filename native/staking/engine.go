package staking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"stakevault/core/epoch"
	stakeerr "stakevault/core/errors"
	"stakevault/core/events"
	"stakevault/core/rewards"
	"stakevault/core/state"
	"stakevault/core/types"
	"stakevault/crypto"
	"stakevault/observability"
)

// Config captures the ledger parameters.
type Config struct {
	Rewards rewards.Config
	Epoch   epoch.Config
	// Authority, when set, is the only identity allowed to initialise the vault.
	Authority crypto.Address
}

// DefaultConfig returns the accrual and epoch defaults with no authority
// restriction.
func DefaultConfig() Config {
	return Config{Rewards: rewards.DefaultConfig(), Epoch: epoch.DefaultConfig()}
}

// Engine applies staking operations against persisted ledger state. Every
// operation runs under a single lock and commits its writes in one batch, so
// the vault totals match the stake accounts after each call.
type Engine struct {
	mu        sync.Mutex
	state     *state.Manager
	rewards   rewards.Config
	epochs    epoch.Config
	authority crypto.Address
	clock     func() time.Time
	emitter   events.Emitter
	logger    *slog.Logger
	metrics   *observability.StakingMetrics
	tracer    trace.Tracer
	newID     func() string
}

// NewEngine constructs an Engine bound to the provided state manager.
func NewEngine(mgr *state.Manager, cfg Config) (*Engine, error) {
	if mgr == nil {
		return nil, fmt.Errorf("staking: state manager required")
	}
	if err := cfg.Epoch.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		state:     mgr,
		rewards:   cfg.Rewards,
		epochs:    cfg.Epoch,
		authority: cfg.Authority,
		clock:     time.Now,
		emitter:   events.NoopEmitter{},
		logger:    slog.Default(),
		metrics:   observability.Staking(),
		tracer:    otel.Tracer("stakevault/staking"),
		newID:     uuid.NewString,
	}, nil
}

// WithClock overrides the engine clock for deterministic tests.
func (e *Engine) WithClock(clock func() time.Time) {
	if clock == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clock = clock
}

// WithEmitter routes ledger events to the supplied emitter.
func (e *Engine) WithEmitter(emitter events.Emitter) {
	if emitter == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.emitter = emitter
}

// WithLogger replaces the default slog logger.
func (e *Engine) WithLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.logger = logger
}

// result is what an operation body hands back for post-commit bookkeeping.
type result struct {
	event   events.Event
	vault   *types.VaultAccount
	settled uint64
	claimed uint64
}

// execute runs body inside a fresh transaction with the current time in unix
// seconds. The transaction is committed only when body succeeds; otherwise
// every staged write is dropped.
func (e *Engine) execute(ctx context.Context, operation string, owner crypto.Address, amount uint64, body func(tx *state.Tx, now uint64) (*result, error)) error {
	ctx, span := e.tracer.Start(ctx, "staking."+operation, trace.WithAttributes(
		attribute.String("owner", owner.String()),
		attribute.String("amount", strconv.FormatUint(amount, 10)),
	))
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	res, err := e.apply(e.clock(), body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.metrics.Observe(operation, time.Since(start), reason(err))
		e.logger.WarnContext(ctx, "staking operation rejected",
			"operation", operation,
			"owner", owner.String(),
			"amount", amount,
			"error", err)
		return err
	}

	span.SetStatus(codes.Ok, "committed")
	e.metrics.Observe(operation, time.Since(start), "")
	e.metrics.AddSettled(res.settled)
	e.metrics.AddClaimed(res.claimed)
	if res.vault != nil {
		e.metrics.SetVault(res.vault.TotalStaked, res.vault.TotalRewards)
	}
	if res.event != nil {
		e.emitter.Emit(res.event)
		observability.Events().RecordEvent(res.event.EventType())
	}
	e.logger.InfoContext(ctx, "staking operation committed",
		"operation", operation,
		"owner", owner.String(),
		"amount", amount,
		"settled", res.settled)
	return nil
}

func (e *Engine) apply(at time.Time, body func(tx *state.Tx, now uint64) (*result, error)) (*result, error) {
	now, err := e.epochs.Timestamp(at)
	if err != nil {
		return nil, err
	}
	tx := e.state.Begin()
	res, err := body(tx, now)
	if err != nil {
		tx.Discard()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("staking: commit: %w", err)
	}
	if res == nil {
		res = &result{}
	}
	return res, nil
}

// loadActive fetches the vault and the owner's stake account, failing when
// either has not been initialised.
func loadActive(tx *state.Tx, owner crypto.Address) (*types.VaultAccount, *types.StakeAccount, error) {
	vault, ok, err := tx.Vault()
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, stakeerr.ErrVaultNotInitialized
	}
	acc, ok, err := tx.StakeAccount(owner)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, stakeerr.ErrAccountNotInitialized
	}
	return vault, acc, nil
}

// settle accrues pending reward on acc up to now and mirrors it on the vault.
func (e *Engine) settle(vault *types.VaultAccount, acc *types.StakeAccount, now uint64) (uint64, error) {
	earned, err := rewards.Settle(acc, now, e.rewards, e.epochs)
	if err != nil {
		return 0, err
	}
	if err := accrue(vault, earned); err != nil {
		return 0, err
	}
	return earned, nil
}

func (e *Engine) now() (uint64, error) {
	e.mu.Lock()
	at := e.clock()
	e.mu.Unlock()
	return e.epochs.Timestamp(at)
}

func reason(err error) string {
	switch {
	case errors.Is(err, stakeerr.ErrAlreadyInitialized):
		return "already_initialized"
	case errors.Is(err, stakeerr.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, stakeerr.ErrInsufficientVaultBalance):
		return "insufficient_vault_balance"
	case errors.Is(err, stakeerr.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, stakeerr.ErrOverflow):
		return "overflow"
	case errors.Is(err, stakeerr.ErrClockRegression):
		return "clock_regression"
	case errors.Is(err, stakeerr.ErrVaultNotInitialized):
		return "vault_not_initialized"
	case errors.Is(err, stakeerr.ErrAccountNotInitialized):
		return "account_not_initialized"
	case errors.Is(err, stakeerr.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, stakeerr.ErrInsufficientRewardPool):
		return "insufficient_reward_pool"
	default:
		return "internal"
	}
}
