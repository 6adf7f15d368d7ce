package sale

import (
	"fmt"
	"math/big"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"solstice/core/events"
	"solstice/core/types"
)

// engineState describes the persistence the sale engine needs from the
// surrounding state implementation. Every method is a point read or write;
// the engine validates before it mutates so a failed check never leaves
// partial state behind.
type engineState interface {
	SaleGet() (*SaleState, bool, error)
	SalePut(*SaleState) error
	SupplyMinted() (bool, error)
	SetSupplyMinted() error
	ParticipantGet(owner [20]byte) (*ParticipantAccount, bool, error)
	ParticipantPut(*ParticipantAccount) error
	DistributionCount(recipient [20]byte) (uint64, error)
	DistributionAppend(*DistributionEvent) error
	DistributionTotal(recipient [20]byte) (*big.Int, error)
	DistributionEvents(recipient [20]byte) ([]*DistributionEvent, error)
}

// TokenLedger is the external value-transfer capability. The engine treats
// every call as all-or-nothing and never assumes success before it returns.
type TokenLedger interface {
	Mint(token string, to [20]byte, amount *big.Int) error
	Transfer(token string, from, to [20]byte, amount *big.Int) error
}

// Authorizer gates the admin-only operations.
type Authorizer interface {
	IsAdmin(addr [20]byte) bool
}

type denyAll struct{}

func (denyAll) IsAdmin([20]byte) bool { return false }

// Engine wires the sale, vesting and referral business logic with
// persistence, the token ledger capability and event emission.
type Engine struct {
	state        engineState
	ledger       TokenLedger
	auth         Authorizer
	emitter      events.Emitter
	nowFn        func() int64
	rewardsVault [20]byte
}

// NewEngine constructs a sale engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{
		auth:    denyAll{},
		emitter: events.NoopEmitter{},
		nowFn: func() int64 {
			return time.Now().Unix()
		},
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetLedger configures the token ledger capability.
func (e *Engine) SetLedger(ledger TokenLedger) { e.ledger = ledger }

// SetAuthorizer configures the admin authorization capability.
func (e *Engine) SetAuthorizer(auth Authorizer) {
	if auth == nil {
		e.auth = denyAll{}
		return
	}
	e.auth = auth
}

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source for deterministic testing. Each
// operation reads the clock exactly once and uses that timestamp for every
// check inside it.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetRewardsVault configures the account reward claims are paid from.
func (e *Engine) SetRewardsVault(addr [20]byte) { e.rewardsVault = addr }

func (e *Engine) emit(evt *types.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(WrapEvent(evt))
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if e.ledger == nil {
		return ErrLedgerNotConfigured
	}
	return nil
}

func isZeroAddress(addr [20]byte) bool {
	var zero [20]byte
	return addr == zero
}

func newBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// InitializeSale creates the singleton sale ledger. Only an admin may call it
// and it cannot be repeated: the phase list is fixed for the life of the sale.
func (e *Engine) InitializeSale(caller [20]byte, start int64, cap *big.Int, phases []Phase) (*SaleState, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if !e.auth.IsAdmin(caller) {
		return nil, ErrUnauthorized
	}
	if _, ok, err := e.state.SaleGet(); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrDuplicateInitialization
	}
	state := &SaleState{
		StartTimestamp: start,
		Cap:            newBigInt(cap),
		Sold:           big.NewInt(0),
		Phases:         make([]Phase, len(phases)),
	}
	for i, phase := range phases {
		state.Phases[i] = phase.Clone()
	}
	if err := state.validate(); err != nil {
		return nil, err
	}
	if err := e.state.SalePut(state); err != nil {
		return nil, err
	}
	e.emit(SaleInitializedEvent(state.StartTimestamp, state.Cap.String(), len(state.Phases)))
	return state.Clone(), nil
}

// MintInitialSupply performs the one-time genesis split: the rewards vault
// receives its reward-token allocation and the distribution account the
// public float, both scaled to base units.
func (e *Engine) MintInitialSupply(caller, distribution [20]byte) error {
	if err := e.ready(); err != nil {
		return err
	}
	if !e.auth.IsAdmin(caller) {
		return ErrUnauthorized
	}
	if isZeroAddress(e.rewardsVault) {
		return ErrRewardsVaultNotSet
	}
	minted, err := e.state.SupplyMinted()
	if err != nil {
		return err
	}
	if minted {
		return ErrSupplyMinted
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(TokenDecimals), nil)
	vaultAmount := new(big.Int).Mul(big.NewInt(RewardsVaultSupply), scale)
	distributionAmount := new(big.Int).Mul(big.NewInt(DistributionPoolSupply), scale)
	if err := e.ledger.Mint(TokenReward, e.rewardsVault, vaultAmount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if err := e.ledger.Mint(TokenReward, distribution, distributionAmount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	if err := e.state.SetSupplyMinted(); err != nil {
		return err
	}
	e.emit(SupplyMintedEvent(e.rewardsVault, distribution, vaultAmount.String(), distributionAmount.String()))
	return nil
}

// Quote resolves the phase in effect right now.
func (e *Engine) Quote() (PhaseQuote, error) {
	if e == nil || e.state == nil {
		return PhaseQuote{}, ErrNilState
	}
	state, ok, err := e.state.SaleGet()
	if err != nil {
		return PhaseQuote{}, err
	}
	if !ok {
		return PhaseQuote{}, ErrSaleNotActive
	}
	quote, ok := ResolvePhase(state, e.now())
	if !ok {
		return PhaseQuote{}, ErrSaleNotActive
	}
	return quote, nil
}

// Purchase admits a phase-priced purchase: tokens = amountPaid / phase price
// with the remainder forfeited, gated by the allocation cap. The buyer's
// participant account is created on first purchase and topped up afterwards
// without losing accrued rewards.
func (e *Engine) Purchase(buyer [20]byte, amountPaid *big.Int) (*PurchaseReceipt, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if amountPaid == nil || amountPaid.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	now := e.now()
	state, ok, err := e.state.SaleGet()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSaleNotActive
	}
	quote, ok := ResolvePhase(state, now)
	if !ok {
		return nil, ErrSaleNotActive
	}
	tokens := new(big.Int).Div(amountPaid, quote.Phase.TokenPrice)
	if tokens.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	return e.admit(state, quote, buyer, tokens, now)
}

// PurchaseAndVest admits a level-priced purchase: the sale tier multiplier
// converts the paid amount into pledge tokens, which vest immediately.
func (e *Engine) PurchaseAndVest(buyer [20]byte, amountPaid *big.Int) (*PurchaseReceipt, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if amountPaid == nil || amountPaid.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	now := e.now()
	state, ok, err := e.state.SaleGet()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSaleNotActive
	}
	quote, ok := ResolvePhase(state, now)
	if !ok {
		return nil, ErrSaleNotActive
	}
	tokens := PledgeTokens(amountPaid, SaleLevel(state.StartTimestamp, now))
	if tokens.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	return e.admit(state, quote, buyer, tokens, now)
}

// admit is the single path that increases Sold. The cap check and increment
// commit together or not at all.
func (e *Engine) admit(state *SaleState, quote PhaseQuote, buyer [20]byte, tokens *big.Int, now int64) (*PurchaseReceipt, error) {
	sold := newBigInt(state.Sold)
	sold.Add(sold, tokens)
	if sold.Cmp(state.Cap) > 0 {
		return nil, ErrCapExceeded
	}

	account, ok, err := e.state.ParticipantGet(buyer)
	if err != nil {
		return nil, err
	}
	var accrued *big.Int
	if !ok || account == nil {
		account = newParticipant(buyer, tokens, now)
	} else {
		account = account.Clone()
		account.ensureAmounts()
		accrued = e.flushAccrual(account, now)
		account.PurchasedAmount.Add(account.PurchasedAmount, tokens)
	}

	if err := e.ledger.Mint(TokenPledge, buyer, tokens); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	state.Sold = sold
	if err := e.state.SalePut(state); err != nil {
		return nil, err
	}
	if err := e.state.ParticipantPut(account); err != nil {
		return nil, err
	}
	if err := e.appendDistribution(buyer, tokens, now); err != nil {
		return nil, err
	}

	e.emit(PurchaseAdmittedEvent(buyer, quote.PhaseIndex, quote.Closing, tokens.String(), sold.String()))
	if accrued != nil && accrued.Sign() > 0 {
		e.emit(RewardsAccruedEvent(buyer, accrued.String(), account.PendingBonus.String()))
	}
	return &PurchaseReceipt{
		PhaseIndex:   quote.PhaseIndex,
		Closing:      quote.Closing,
		TokensMinted: newBigInt(tokens),
		Sold:         newBigInt(sold),
	}, nil
}

func newParticipant(owner [20]byte, amount *big.Int, now int64) *ParticipantAccount {
	return &ParticipantAccount{
		Owner:           owner,
		PurchasedAmount: newBigInt(amount),
		VestingStart:    now,
		VestingEnd:      now + VestingHorizon,
		LastAccrual:     now,
		RewardsClaimed:  big.NewInt(0),
		PendingBonus:    big.NewInt(0),
		TierLevel:       1,
	}
}

// InitializeVesting creates a participant account for tokens acquired outside
// the purchase path. Re-initialisation is rejected.
func (e *Engine) InitializeVesting(owner [20]byte, amount *big.Int) (*ParticipantAccount, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if _, ok, err := e.state.ParticipantGet(owner); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrDuplicateInitialization
	}
	now := e.now()
	account := newParticipant(owner, amount, now)
	if err := e.state.ParticipantPut(account); err != nil {
		return nil, err
	}
	e.emit(VestingInitializedEvent(owner, account.PurchasedAmount.String(), account.VestingStart, account.VestingEnd))
	return account.Clone(), nil
}

// flushAccrual moves compound interest earned since the last checkpoint into
// the pending balance and resets the checkpoint. The caller persists the
// account.
func (e *Engine) flushAccrual(account *ParticipantAccount, now int64) *big.Int {
	from := account.LastAccrual
	if account.VestingStart > from {
		from = account.VestingStart
	}
	accrued := CompoundAccrued(account.PurchasedAmount, from, now)
	if accrued.Sign() > 0 {
		account.PendingBonus.Add(account.PendingBonus, accrued)
		if account.PendingBonus.Cmp(MaxAmount) > 0 {
			account.PendingBonus.Set(MaxAmount)
		}
	}
	account.LastAccrual = now
	return accrued
}

// RecordAdditionalPurchase adds principal to an existing account. Rewards
// accrued under the prior principal are flushed first so the top-up never
// resets unclaimed accrual.
func (e *Engine) RecordAdditionalPurchase(owner [20]byte, additional *big.Int) (*ParticipantAccount, *big.Int, error) {
	if e == nil || e.state == nil {
		return nil, nil, ErrNilState
	}
	if additional == nil || additional.Sign() <= 0 {
		return nil, nil, ErrInvalidAmount
	}
	account, ok, err := e.state.ParticipantGet(owner)
	if err != nil {
		return nil, nil, err
	}
	if !ok || account == nil {
		return nil, nil, ErrAccountNotFound
	}
	now := e.now()
	account = account.Clone()
	account.ensureAmounts()
	accrued := e.flushAccrual(account, now)
	account.PurchasedAmount.Add(account.PurchasedAmount, additional)
	if err := e.state.ParticipantPut(account); err != nil {
		return nil, nil, err
	}
	e.emit(PurchaseRecordedEvent(owner, additional.String(), account.PurchasedAmount.String()))
	if accrued.Sign() > 0 {
		e.emit(RewardsAccruedEvent(owner, accrued.String(), account.PendingBonus.String()))
	}
	return account.Clone(), accrued, nil
}

// AccrueRewards flushes compound interest into the pending balance without
// changing the principal. This is the continuous-compounding reward policy;
// the flushed value is realised at the next claim.
func (e *Engine) AccrueRewards(owner [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	account, ok, err := e.state.ParticipantGet(owner)
	if err != nil {
		return nil, err
	}
	if !ok || account == nil {
		return nil, ErrAccountNotFound
	}
	now := e.now()
	account = account.Clone()
	account.ensureAmounts()
	accrued := e.flushAccrual(account, now)
	if err := e.state.ParticipantPut(account); err != nil {
		return nil, err
	}
	if accrued.Sign() > 0 {
		e.emit(RewardsAccruedEvent(owner, accrued.String(), account.PendingBonus.String()))
	}
	return accrued, nil
}

// ViewRewards projects the compound accrual earned since the last checkpoint
// without mutating any state.
func (e *Engine) ViewRewards(owner [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	account, ok, err := e.state.ParticipantGet(owner)
	if err != nil {
		return nil, err
	}
	if !ok || account == nil {
		return nil, ErrAccountNotFound
	}
	from := account.LastAccrual
	if account.VestingStart > from {
		from = account.VestingStart
	}
	return CompoundAccrued(account.PurchasedAmount, from, e.now()), nil
}

// SetReferral links the owner to their referrer. The edge is immutable once
// set and self referral is rejected.
func (e *Engine) SetReferral(owner, referrer [20]byte) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if owner == referrer {
		return ErrSelfReferral
	}
	if isZeroAddress(referrer) {
		return ErrInvalidReferral
	}
	account, ok, err := e.state.ParticipantGet(owner)
	if err != nil {
		return err
	}
	if !ok || account == nil {
		return ErrAccountNotFound
	}
	if account.HasReferrer {
		return ErrAlreadyReferred
	}
	account = account.Clone()
	account.ReferredBy = referrer
	account.HasReferrer = true
	if err := e.state.ParticipantPut(account); err != nil {
		return err
	}
	e.emit(ReferralLinkedEvent(owner, referrer))
	return nil
}

// CreditReferral adds the fixed referral bonus to the owner's pending balance
// when the claimed referrer matches the stored edge. The referrer's account
// is never touched. The bonus is realised at the owner's next claim.
func (e *Engine) CreditReferral(owner, claimedReferrer [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	account, ok, err := e.state.ParticipantGet(owner)
	if err != nil {
		return nil, err
	}
	if !ok || account == nil {
		return nil, ErrAccountNotFound
	}
	if !account.HasReferrer || account.ReferredBy != claimedReferrer {
		return nil, ErrInvalidReferral
	}
	account = account.Clone()
	account.ensureAmounts()
	account.PendingBonus.Add(account.PendingBonus, big.NewInt(ReferralReward))
	if err := e.state.ParticipantPut(account); err != nil {
		return nil, err
	}
	e.emit(ReferralCreditedEvent(owner, claimedReferrer, big.NewInt(ReferralReward).String(), account.PendingBonus.String()))
	return newBigInt(account.PendingBonus), nil
}

// ClaimRewards settles the maturity-multiplier entitlement plus the tier
// bonus and any pending credits. Claims before the vesting horizon fail and
// an immediate repeat claim has nothing left to pay. The payout transfer and
// the local bookkeeping commit together or not at all.
func (e *Engine) ClaimRewards(owner [20]byte) (*ClaimReceipt, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if isZeroAddress(e.rewardsVault) {
		return nil, ErrRewardsVaultNotSet
	}
	account, ok, err := e.state.ParticipantGet(owner)
	if err != nil {
		return nil, err
	}
	if !ok || account == nil {
		return nil, ErrAccountNotFound
	}
	now := e.now()
	if now < account.VestingEnd {
		return nil, ErrVestingNotComplete
	}
	account = account.Clone()
	account.ensureAmounts()

	level := account.TierLevel
	if level < 1 {
		level = 1
	}
	if state, saleOK, err := e.state.SaleGet(); err != nil {
		return nil, err
	} else if saleOK && state != nil {
		if current := SaleLevel(state.StartTimestamp, now); current > level {
			level = current
		}
	}

	entitlement := TotalEntitlement(account.PurchasedAmount)
	base := new(big.Int).Sub(entitlement, account.RewardsClaimed)
	if base.Sign() < 0 {
		base.SetInt64(0)
	}
	pending := newBigInt(account.PendingBonus)
	if base.Sign() == 0 && pending.Sign() == 0 {
		return nil, ErrNothingToClaim
	}
	tierBonus := TierBonus(level)

	total := new(big.Int).Add(base, tierBonus)
	total.Add(total, pending)
	if total.Cmp(MaxAmount) > 0 {
		total.Set(MaxAmount)
	}

	if err := e.ledger.Transfer(TokenReward, e.rewardsVault, owner, total); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	account.RewardsClaimed.Add(account.RewardsClaimed, base)
	account.PendingBonus = big.NewInt(0)
	account.LastAccrual = now
	account.TierLevel = level
	if err := e.state.ParticipantPut(account); err != nil {
		return nil, err
	}
	if err := e.appendDistribution(owner, total, now); err != nil {
		return nil, err
	}

	e.emit(RewardsClaimedEvent(owner, base.String(), tierBonus.String(), pending.String(), total.String(), level))
	return &ClaimReceipt{
		Base:      base,
		TierBonus: tierBonus,
		Pending:   pending,
		Total:     total,
		TierLevel: level,
	}, nil
}

// appendDistribution writes one immutable audit record for a completed
// payout.
func (e *Engine) appendDistribution(recipient [20]byte, amount *big.Int, now int64) error {
	seq, err := e.state.DistributionCount(recipient)
	if err != nil {
		return err
	}
	evt := &DistributionEvent{
		Recipient: recipient,
		Amount:    newBigInt(amount),
		Timestamp: now,
		Sequence:  seq,
	}
	evt.ID = distributionID(recipient, seq, now)
	return e.state.DistributionAppend(evt)
}

func distributionID(recipient [20]byte, seq uint64, timestamp int64) [32]byte {
	var seqBuf [8]byte
	var tsBuf [8]byte
	for i := 0; i < 8; i++ {
		seqBuf[7-i] = byte(seq >> (8 * i))
		tsBuf[7-i] = byte(uint64(timestamp) >> (8 * i))
	}
	return [32]byte(ethcrypto.Keccak256Hash(recipient[:], seqBuf[:], tsBuf[:]))
}

// Sale returns a copy of the sale ledger.
func (e *Engine) Sale() (*SaleState, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	state, ok, err := e.state.SaleGet()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSaleNotActive
	}
	return state.Clone(), nil
}

// Participant returns a copy of the owner's account.
func (e *Engine) Participant(owner [20]byte) (*ParticipantAccount, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	account, ok, err := e.state.ParticipantGet(owner)
	if err != nil {
		return nil, err
	}
	if !ok || account == nil {
		return nil, ErrAccountNotFound
	}
	return account.Clone(), nil
}

// Distributions lists the recipient's audit records in append order.
func (e *Engine) Distributions(recipient [20]byte) ([]*DistributionEvent, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	return e.state.DistributionEvents(recipient)
}

// DistributedTotal reconstructs the recipient's all-time payout total.
func (e *Engine) DistributedTotal(recipient [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	return e.state.DistributionTotal(recipient)
}
