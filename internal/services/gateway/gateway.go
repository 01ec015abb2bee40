// Package gateway bridges validated strategy requests to the chain. Its
// contract: after a create call a strategy record always exists, whatever
// the network did. A failed real deployment degrades to a local SIMULATION
// record with the failure attached as a note, it never surfaces as a hard
// error to the conversation.
package gateway

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/refuel/internal/clients"
	"github.com/vadiminshakov/refuel/internal/entity"
	"github.com/vadiminshakov/refuel/internal/events"
	"github.com/vadiminshakov/refuel/internal/registry"
	"go.uber.org/zap"
)

const (
	// automationGasBudget and gasPriceCap are fixed for every registration.
	automationGasBudget = 5000
	gasPriceCap         = 200

	// defaultFeeCapMicro is used when the fee-estimation endpoint is down.
	defaultFeeCapMicro = 10 * entity.MicroPerUnit

	// feeSafetyBufferPercent widens a quoted estimate before it becomes the cap.
	feeSafetyBufferPercent = 20

	// senderBufferMicro on top of the fee cap must stay in the sender account.
	senderBufferMicro = 1 * entity.MicroPerUnit

	registrationExpiry = 24 * time.Hour
)

// ErrInsufficientBalance aborts a real deployment before submission.
var ErrInsufficientBalance = errors.New("sender balance below fee cap plus buffer")

// ChainClient is the chain surface the gateway needs.
type ChainClient interface {
	SenderAddress() string
	AccountBalance(ctx context.Context, address string) (decimal.Decimal, error)
	AccountSequenceNumber(ctx context.Context, address string) (uint64, error)
	EstimateGasPrice(ctx context.Context) (uint64, error)
	SubmitAutomationRegistration(ctx context.Context, reg clients.AutomationRegistration) (string, error)
	SubmitAutomationCancellation(ctx context.Context, cancel clients.AutomationCancellation) (string, error)
}

type registeredChecker interface {
	CheckRegistered(ctx context.Context, address string) (bool, error)
}

// Gateway owns strategy creation and cancellation.
type Gateway struct {
	chain    ChainClient
	precheck registeredChecker
	store    *registry.Registry
	bus      *events.Bus
	logger   *zap.Logger
}

func New(chain ChainClient, precheck registeredChecker, store *registry.Registry, bus *events.Bus, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{chain: chain, precheck: precheck, store: store, bus: bus, logger: logger}
}

// Create validates the target address, attempts a real on-chain registration
// and falls back to a simulated one on any failure. Address validation is the
// only check performed before side effects; it failing is the only way Create
// ends without a new record.
func (g *Gateway) Create(ctx context.Context, name, targetAddress string) (*entity.CreateResult, error) {
	if err := entity.ValidateAddress(targetAddress); err != nil {
		g.bus.Publish(events.Event{
			Type:    events.TypeStrategyCreationFailed,
			Message: err.Error(),
		})
		return nil, err
	}

	note := ""
	if registered, err := g.precheck.CheckRegistered(ctx, targetAddress); err == nil && !registered {
		note = "target account is not registered for the asset, top-ups will fail until it is"
		g.logger.Warn("target account not registered", zap.String("address", targetAddress))
	}

	mode := entity.ModeReal
	txHash, taskID, err := g.deploy(ctx, targetAddress)
	if err != nil {
		mode = entity.ModeSimulation
		txHash, taskID = simulatedDeployment()
		if note != "" {
			note += "; "
		}
		note += "deployment failed, running in simulation: " + err.Error()
		g.logger.Warn("real deployment failed, falling back to simulation",
			zap.String("address", targetAddress),
			zap.Error(err))
	}

	strategy := entity.NewStrategy(uuid.NewString(), name, targetAddress)
	strategy.Mode = mode
	strategy.TxHash = txHash
	strategy.RemoteTaskID = taskID
	strategy.Note = note

	if err := g.store.Put(strategy); err != nil {
		return nil, errors.Wrap(err, "persist strategy")
	}

	g.bus.Publish(events.Event{
		Type:       events.TypeStrategyCreated,
		StrategyID: strategy.ID,
		Message:    strategy.Name,
	})
	g.logger.Info("strategy created",
		zap.String("id", strategy.ID),
		zap.String("mode", string(mode)),
		zap.String("tx_hash", txHash))

	return &entity.CreateResult{
		Success:    true,
		StrategyID: strategy.ID,
		Mode:       mode,
		TxHash:     txHash,
		Note:       note,
		Message:    "strategy " + strategy.Name + " created",
	}, nil
}

// Cancel tears down a strategy. Cancellation always succeeds from the
// caller's perspective once the record exists and is active; a chain failure
// only means the on-chain task was not torn down, surfaced via the note.
func (g *Gateway) Cancel(ctx context.Context, strategyID string) *entity.CancelResult {
	strategy, err := g.store.Get(strategyID)
	if errors.Is(err, registry.ErrNotFound) {
		return &entity.CancelResult{Success: false, Message: "Strategy not found"}
	}
	if !strategy.Active {
		return &entity.CancelResult{Success: false, Message: "strategy already cancelled"}
	}

	mode := entity.ModeReal
	note := ""
	if err := g.teardown(ctx, strategy.RemoteTaskID); err != nil {
		mode = entity.ModeSimulation
		note = "on-chain cancellation failed, cancelled locally only: " + err.Error()
		g.logger.Warn("real cancellation failed, cancelling locally",
			zap.String("id", strategyID),
			zap.Error(err))
	}

	if err := g.store.Deactivate(strategyID); err != nil {
		// the record was active a moment ago; only a concurrent cancel can race us here
		return &entity.CancelResult{Success: false, Message: err.Error()}
	}

	g.bus.Publish(events.Event{
		Type:       events.TypeStrategyCancelled,
		StrategyID: strategyID,
		Message:    strategy.Name,
	})
	return &entity.CancelResult{
		Success: true,
		Mode:    mode,
		Note:    note,
		Message: "strategy " + strategy.Name + " cancelled",
	}
}

// deploy performs the real registration path: sequence number, fee cap,
// sender balance check, signed submission, task id derivation.
func (g *Gateway) deploy(ctx context.Context, targetAddress string) (string, uint64, error) {
	sender := g.chain.SenderAddress()

	seq, err := g.chain.AccountSequenceNumber(ctx, sender)
	if err != nil {
		return "", 0, errors.Wrap(err, "fetch sequence number")
	}

	feeCap := g.estimateFeeCap(ctx)

	senderBalance, err := g.chain.AccountBalance(ctx, sender)
	if err != nil {
		return "", 0, errors.Wrap(err, "fetch sender balance")
	}
	required := decimal.NewFromUint64(feeCap + senderBufferMicro)
	if senderBalance.LessThan(required) {
		return "", 0, errors.Wrapf(ErrInsufficientBalance, "have %s need %s",
			senderBalance.String(), required.String())
	}

	txHash, err := g.chain.SubmitAutomationRegistration(ctx, clients.AutomationRegistration{
		SequenceNumber:   seq,
		TargetAddress:    targetAddress,
		MaxGasAmount:     automationGasBudget,
		GasPriceCap:      gasPriceCap,
		AutomationFeeCap: feeCap,
		ExpirationSecs:   time.Now().Add(registrationExpiry).Unix(),
	})
	if err != nil {
		return "", 0, errors.Wrap(err, "submit registration")
	}

	return txHash, taskIDFromHash(txHash), nil
}

func (g *Gateway) teardown(ctx context.Context, taskID uint64) error {
	sender := g.chain.SenderAddress()
	seq, err := g.chain.AccountSequenceNumber(ctx, sender)
	if err != nil {
		return errors.Wrap(err, "fetch sequence number")
	}
	_, err = g.chain.SubmitAutomationCancellation(ctx, clients.AutomationCancellation{
		SequenceNumber: seq,
		TaskID:         taskID,
	})
	return errors.Wrap(err, "submit cancellation")
}

// estimateFeeCap queries the node and widens the quote by the safety buffer.
// Estimation failure is not a deployment failure: the hardcoded default applies.
func (g *Gateway) estimateFeeCap(ctx context.Context) uint64 {
	price, err := g.chain.EstimateGasPrice(ctx)
	if err != nil {
		g.logger.Warn("fee estimation failed, using default cap", zap.Error(err))
		return defaultFeeCapMicro
	}
	quoted := price * automationGasBudget
	return quoted + quoted*feeSafetyBufferPercent/100
}

// taskIDFromHash derives a numeric task id from the last 8 hex characters of
// the transaction hash, matching how the registry numbers tasks.
func taskIDFromHash(txHash string) uint64 {
	h := strings.TrimPrefix(strings.ToLower(txHash), "0x")
	if len(h) > 8 {
		h = h[len(h)-8:]
	}
	id, err := strconv.ParseUint(h, 16, 64)
	if err != nil {
		return randomTaskID()
	}
	return id
}

// simulatedDeployment synthesizes a pseudo-random transaction hash and task
// id for local-only records.
func simulatedDeployment() (string, uint64) {
	var buf [32]byte
	_, _ = rand.Read(buf[:])
	return hexutil.Encode(buf[:]), binary.BigEndian.Uint64(buf[:8]) >> 32
}

func randomTaskID() uint64 {
	var buf [8]byte
	_, _ = rand.Read(buf[:])
	return binary.BigEndian.Uint64(buf[:]) >> 32
}
