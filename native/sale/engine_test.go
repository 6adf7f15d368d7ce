package sale

import (
	"errors"
	"math/big"
	"testing"
)

type mockState struct {
	sale         *SaleState
	minted       bool
	participants map[[20]byte]*ParticipantAccount
	dists        map[[20]byte][]*DistributionEvent
}

func newMockState() *mockState {
	return &mockState{
		participants: make(map[[20]byte]*ParticipantAccount),
		dists:        make(map[[20]byte][]*DistributionEvent),
	}
}

func (m *mockState) SaleGet() (*SaleState, bool, error) {
	if m.sale == nil {
		return nil, false, nil
	}
	return m.sale.Clone(), true, nil
}

func (m *mockState) SalePut(state *SaleState) error {
	m.sale = state.Clone()
	return nil
}

func (m *mockState) SupplyMinted() (bool, error) { return m.minted, nil }

func (m *mockState) SetSupplyMinted() error {
	m.minted = true
	return nil
}

func (m *mockState) ParticipantGet(owner [20]byte) (*ParticipantAccount, bool, error) {
	account, ok := m.participants[owner]
	if !ok {
		return nil, false, nil
	}
	return account.Clone(), true, nil
}

func (m *mockState) ParticipantPut(account *ParticipantAccount) error {
	m.participants[account.Owner] = account.Clone()
	return nil
}

func (m *mockState) DistributionCount(recipient [20]byte) (uint64, error) {
	return uint64(len(m.dists[recipient])), nil
}

func (m *mockState) DistributionAppend(evt *DistributionEvent) error {
	m.dists[evt.Recipient] = append(m.dists[evt.Recipient], evt.Clone())
	return nil
}

func (m *mockState) DistributionTotal(recipient [20]byte) (*big.Int, error) {
	total := big.NewInt(0)
	for _, evt := range m.dists[recipient] {
		total.Add(total, evt.Amount)
	}
	return total, nil
}

func (m *mockState) DistributionEvents(recipient [20]byte) ([]*DistributionEvent, error) {
	list := m.dists[recipient]
	out := make([]*DistributionEvent, len(list))
	for i, evt := range list {
		out[i] = evt.Clone()
	}
	return out, nil
}

type mockLedger struct {
	balances     map[string]map[[20]byte]*big.Int
	failTransfer bool
	failMint     bool
}

func newMockLedger() *mockLedger {
	return &mockLedger{balances: make(map[string]map[[20]byte]*big.Int)}
}

func (m *mockLedger) balance(token string, addr [20]byte) *big.Int {
	accounts, ok := m.balances[token]
	if !ok {
		return big.NewInt(0)
	}
	if amount, ok := accounts[addr]; ok {
		return new(big.Int).Set(amount)
	}
	return big.NewInt(0)
}

func (m *mockLedger) credit(token string, addr [20]byte, amount *big.Int) {
	accounts, ok := m.balances[token]
	if !ok {
		accounts = make(map[[20]byte]*big.Int)
		m.balances[token] = accounts
	}
	current, ok := accounts[addr]
	if !ok {
		current = big.NewInt(0)
		accounts[addr] = current
	}
	current.Add(current, amount)
}

func (m *mockLedger) Mint(token string, to [20]byte, amount *big.Int) error {
	if m.failMint {
		return errors.New("mint refused")
	}
	m.credit(token, to, amount)
	return nil
}

func (m *mockLedger) Transfer(token string, from, to [20]byte, amount *big.Int) error {
	if m.failTransfer {
		return errors.New("transfer refused")
	}
	m.credit(token, from, new(big.Int).Neg(amount))
	m.credit(token, to, amount)
	return nil
}

type allowAdmin struct {
	admin [20]byte
}

func (a allowAdmin) IsAdmin(addr [20]byte) bool { return addr == a.admin }

func addr(last byte) [20]byte {
	var out [20]byte
	out[19] = last
	return out
}

const saleStart = int64(1_000)

func newTestEngine(t *testing.T, now int64) (*Engine, *mockState, *mockLedger) {
	t.Helper()
	state := newMockState()
	ledger := newMockLedger()
	engine := NewEngine()
	engine.SetState(state)
	engine.SetLedger(ledger)
	engine.SetAuthorizer(allowAdmin{admin: addr(0xAD)})
	engine.SetRewardsVault(addr(0xEE))
	engine.SetNowFunc(func() int64 { return now })
	return engine, state, ledger
}

func seedSale(t *testing.T, engine *Engine, cap int64, phases []Phase) {
	t.Helper()
	if _, err := engine.InitializeSale(addr(0xAD), saleStart, big.NewInt(cap), phases); err != nil {
		t.Fatalf("sale initialization failed: %v", err)
	}
}

func singlePhase(price, duration int64) []Phase {
	return []Phase{{TokenPrice: big.NewInt(price), Duration: duration}}
}

func TestInitializeSaleRequiresAdminAndRunsOnce(t *testing.T) {
	engine, _, _ := newTestEngine(t, saleStart)
	if _, err := engine.InitializeSale(addr(0x01), saleStart, big.NewInt(100), singlePhase(10, 100)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized init: %v", err)
	}
	seedSale(t, engine, 100, singlePhase(10, 100))
	if _, err := engine.InitializeSale(addr(0xAD), saleStart, big.NewInt(100), singlePhase(10, 100)); !errors.Is(err, ErrDuplicateInitialization) {
		t.Fatalf("expected duplicate init rejection: %v", err)
	}
}

func TestPurchaseFloorsRemainder(t *testing.T) {
	engine, state, ledger := newTestEngine(t, saleStart+500)
	seedSale(t, engine, 1_000_000, singlePhase(10, 1_000))

	buyer := addr(0x01)
	receipt, err := engine.Purchase(buyer, big.NewInt(10_005))
	if err != nil {
		t.Fatalf("purchase failed: %v", err)
	}
	if receipt.TokensMinted.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("unexpected token count: %s", receipt.TokensMinted)
	}
	if receipt.PhaseIndex != 0 || receipt.Closing {
		t.Fatalf("unexpected phase resolution: %+v", receipt)
	}
	if state.sale.Sold.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("sold counter not advanced: %s", state.sale.Sold)
	}
	if got := ledger.balance(TokenPledge, buyer); got.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("pledge tokens not minted: %s", got)
	}
	account := state.participants[buyer]
	if account == nil || account.PurchasedAmount.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("participant account not recorded: %+v", account)
	}
	if account.VestingEnd != account.VestingStart+VestingHorizon {
		t.Fatalf("vesting horizon not applied: %+v", account)
	}
}

func TestPurchaseRejectsDust(t *testing.T) {
	engine, _, _ := newTestEngine(t, saleStart+500)
	seedSale(t, engine, 1_000_000, singlePhase(10, 1_000))
	if _, err := engine.Purchase(addr(0x01), big.NewInt(9)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected dust rejection: %v", err)
	}
}

func TestPurchaseBeforeStartRejected(t *testing.T) {
	engine, _, _ := newTestEngine(t, saleStart-1)
	seedSale(t, engine, 1_000_000, singlePhase(10, 1_000))
	if _, err := engine.Purchase(addr(0x01), big.NewInt(100)); !errors.Is(err, ErrSaleNotActive) {
		t.Fatalf("expected pre-start rejection: %v", err)
	}
}

func TestCapBlocksOverflowWithoutSideEffects(t *testing.T) {
	engine, state, ledger := newTestEngine(t, saleStart+500)
	seedSale(t, engine, 1_000, singlePhase(1, 1_000))

	buyer := addr(0x01)
	if _, err := engine.Purchase(buyer, big.NewInt(1_000)); err != nil {
		t.Fatalf("purchase up to cap failed: %v", err)
	}
	if _, err := engine.Purchase(addr(0x02), big.NewInt(1)); !errors.Is(err, ErrCapExceeded) {
		t.Fatalf("expected cap rejection: %v", err)
	}
	if state.sale.Sold.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("sold changed on rejected purchase: %s", state.sale.Sold)
	}
	if got := ledger.balance(TokenPledge, addr(0x02)); got.Sign() != 0 {
		t.Fatalf("rejected buyer received tokens: %s", got)
	}
	if _, ok := state.participants[addr(0x02)]; ok {
		t.Fatalf("rejected buyer gained an account")
	}
}

func TestPhaseTransitionAndClosingTier(t *testing.T) {
	phases := []Phase{
		{TokenPrice: big.NewInt(10), Duration: 1_000},
		{TokenPrice: big.NewInt(20), Duration: 1_000},
	}
	engine, _, _ := newTestEngine(t, saleStart+1_500)
	seedSale(t, engine, 1_000_000, phases)

	receipt, err := engine.Purchase(addr(0x01), big.NewInt(200))
	if err != nil {
		t.Fatalf("second phase purchase failed: %v", err)
	}
	if receipt.PhaseIndex != 1 || receipt.Closing {
		t.Fatalf("expected second phase pricing: %+v", receipt)
	}
	if receipt.TokensMinted.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("unexpected tokens at second phase price: %s", receipt.TokensMinted)
	}

	engine.SetNowFunc(func() int64 { return saleStart + 10_000 })
	receipt, err = engine.Purchase(addr(0x01), big.NewInt(200))
	if err != nil {
		t.Fatalf("closing tier purchase failed: %v", err)
	}
	if receipt.PhaseIndex != 1 || !receipt.Closing {
		t.Fatalf("expected perpetual closing tier: %+v", receipt)
	}
}

func TestPurchaseAndVestUsesLevelPricing(t *testing.T) {
	engine, _, ledger := newTestEngine(t, saleStart+500)
	seedSale(t, engine, 1_000_000, singlePhase(10, TierWindow*10))

	buyer := addr(0x01)
	receipt, err := engine.PurchaseAndVest(buyer, big.NewInt(1_000))
	if err != nil {
		t.Fatalf("level-priced purchase failed: %v", err)
	}
	if receipt.TokensMinted.Cmp(big.NewInt(2_000)) != 0 {
		t.Fatalf("level 1 should double the paid amount: %s", receipt.TokensMinted)
	}
	if got := ledger.balance(TokenPledge, buyer); got.Cmp(big.NewInt(2_000)) != 0 {
		t.Fatalf("pledge balance mismatch: %s", got)
	}

	engine.SetNowFunc(func() int64 { return saleStart + 2*TierWindow + 1 })
	receipt, err = engine.PurchaseAndVest(buyer, big.NewInt(1_000))
	if err != nil {
		t.Fatalf("level 3 purchase failed: %v", err)
	}
	if receipt.TokensMinted.Cmp(big.NewInt(1_500)) != 0 {
		t.Fatalf("level 3 should price at 1.5x: %s", receipt.TokensMinted)
	}
}

func TestMintInitialSupplyRunsOnce(t *testing.T) {
	engine, _, ledger := newTestEngine(t, saleStart)
	distribution := addr(0xDD)

	if err := engine.MintInitialSupply(addr(0x01), distribution); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized mint: %v", err)
	}
	if err := engine.MintInitialSupply(addr(0xAD), distribution); err != nil {
		t.Fatalf("genesis mint failed: %v", err)
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(TokenDecimals), nil)
	wantVault := new(big.Int).Mul(big.NewInt(RewardsVaultSupply), scale)
	wantDist := new(big.Int).Mul(big.NewInt(DistributionPoolSupply), scale)
	if got := ledger.balance(TokenReward, addr(0xEE)); got.Cmp(wantVault) != 0 {
		t.Fatalf("vault supply mismatch: want %s got %s", wantVault, got)
	}
	if got := ledger.balance(TokenReward, distribution); got.Cmp(wantDist) != 0 {
		t.Fatalf("distribution supply mismatch: want %s got %s", wantDist, got)
	}

	if err := engine.MintInitialSupply(addr(0xAD), distribution); !errors.Is(err, ErrSupplyMinted) {
		t.Fatalf("expected repeat mint rejection: %v", err)
	}
}

func TestClaimBeforeMaturityRejected(t *testing.T) {
	engine, _, _ := newTestEngine(t, saleStart)
	owner := addr(0x01)
	if _, err := engine.InitializeVesting(owner, big.NewInt(1_000)); err != nil {
		t.Fatalf("vesting initialization failed: %v", err)
	}
	engine.SetNowFunc(func() int64 { return saleStart + VestingHorizon - 1 })
	if _, err := engine.ClaimRewards(owner); !errors.Is(err, ErrVestingNotComplete) {
		t.Fatalf("expected maturity gate: %v", err)
	}
}

func TestClaimPaysEntitlementAndTierBonus(t *testing.T) {
	engine, state, ledger := newTestEngine(t, saleStart)
	owner := addr(0x01)
	vault := addr(0xEE)
	if _, err := engine.InitializeVesting(owner, big.NewInt(1_000)); err != nil {
		t.Fatalf("vesting initialization failed: %v", err)
	}

	engine.SetNowFunc(func() int64 { return saleStart + VestingHorizon })
	receipt, err := engine.ClaimRewards(owner)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if receipt.Base.Cmp(big.NewInt(40_000)) != 0 {
		t.Fatalf("unexpected base entitlement: %s", receipt.Base)
	}
	if receipt.TierLevel != 1 || receipt.TierBonus.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("unexpected tier bonus: level %d bonus %s", receipt.TierLevel, receipt.TierBonus)
	}
	want := big.NewInt(40_100)
	if receipt.Total.Cmp(want) != 0 {
		t.Fatalf("unexpected payout: want %s got %s", want, receipt.Total)
	}
	if got := ledger.balance(TokenReward, owner); got.Cmp(want) != 0 {
		t.Fatalf("payout not delivered: %s", got)
	}
	if got := ledger.balance(TokenReward, vault); got.Cmp(new(big.Int).Neg(want)) != 0 {
		t.Fatalf("vault not debited: %s", got)
	}
	if state.participants[owner].RewardsClaimed.Cmp(big.NewInt(40_000)) != 0 {
		t.Fatalf("claimed bookkeeping mismatch: %s", state.participants[owner].RewardsClaimed)
	}

	if _, err := engine.ClaimRewards(owner); !errors.Is(err, ErrNothingToClaim) {
		t.Fatalf("expected empty repeat claim: %v", err)
	}
}

func TestClaimSyncsTierLevelFromSaleClock(t *testing.T) {
	engine, _, _ := newTestEngine(t, saleStart)
	seedSale(t, engine, 1_000_000, singlePhase(10, 1_000))
	owner := addr(0x01)
	if _, err := engine.InitializeVesting(owner, big.NewInt(100)); err != nil {
		t.Fatalf("vesting initialization failed: %v", err)
	}

	engine.SetNowFunc(func() int64 { return saleStart + VestingHorizon })
	receipt, err := engine.ClaimRewards(owner)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if receipt.TierLevel != MaxTierLevel {
		t.Fatalf("expected max tier after two years of sale time, got %d", receipt.TierLevel)
	}
	if receipt.TierBonus.Cmp(big.NewInt(MaxTierLevel*TierReward)) != 0 {
		t.Fatalf("unexpected tier bonus: %s", receipt.TierBonus)
	}
}

func TestClaimTransferFailureCommitsNothing(t *testing.T) {
	engine, state, ledger := newTestEngine(t, saleStart)
	owner := addr(0x01)
	if _, err := engine.InitializeVesting(owner, big.NewInt(1_000)); err != nil {
		t.Fatalf("vesting initialization failed: %v", err)
	}

	engine.SetNowFunc(func() int64 { return saleStart + VestingHorizon })
	ledger.failTransfer = true
	if _, err := engine.ClaimRewards(owner); !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("expected transfer failure: %v", err)
	}
	if state.participants[owner].RewardsClaimed.Sign() != 0 {
		t.Fatalf("claim bookkeeping leaked on failed transfer")
	}
	if len(state.dists[owner]) != 0 {
		t.Fatalf("distribution recorded on failed transfer")
	}

	ledger.failTransfer = false
	if _, err := engine.ClaimRewards(owner); err != nil {
		t.Fatalf("retry after transfer failure failed: %v", err)
	}
}

func TestAccrueFlushesCompoundInterest(t *testing.T) {
	engine, state, _ := newTestEngine(t, saleStart)
	owner := addr(0x01)
	if _, err := engine.InitializeVesting(owner, big.NewInt(1_000)); err != nil {
		t.Fatalf("vesting initialization failed: %v", err)
	}

	engine.SetNowFunc(func() int64 { return saleStart + SecondsPerYear })
	accrued, err := engine.AccrueRewards(owner)
	if err != nil {
		t.Fatalf("accrual failed: %v", err)
	}
	if accrued.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("one year at 5%% on 1000 should accrue 50, got %s", accrued)
	}
	account := state.participants[owner]
	if account.PendingBonus.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("pending balance mismatch: %s", account.PendingBonus)
	}
	if account.LastAccrual != saleStart+SecondsPerYear {
		t.Fatalf("accrual checkpoint not advanced: %d", account.LastAccrual)
	}

	// Immediate repeat flush finds an empty window.
	accrued, err = engine.AccrueRewards(owner)
	if err != nil {
		t.Fatalf("repeat accrual failed: %v", err)
	}
	if accrued.Sign() != 0 {
		t.Fatalf("empty window accrued %s", accrued)
	}
}

func TestViewRewardsDoesNotMutate(t *testing.T) {
	engine, state, _ := newTestEngine(t, saleStart)
	owner := addr(0x01)
	if _, err := engine.InitializeVesting(owner, big.NewInt(1_000)); err != nil {
		t.Fatalf("vesting initialization failed: %v", err)
	}

	engine.SetNowFunc(func() int64 { return saleStart + 2*SecondsPerYear })
	view, err := engine.ViewRewards(owner)
	if err != nil {
		t.Fatalf("view failed: %v", err)
	}
	if view.Cmp(big.NewInt(102)) != 0 {
		t.Fatalf("two compounded years on 1000 should project 102, got %s", view)
	}
	account := state.participants[owner]
	if account.PendingBonus.Sign() != 0 || account.LastAccrual != saleStart {
		t.Fatalf("view mutated the account: %+v", account)
	}
}

func TestAdditionalPurchaseFlushesBeforeToppingUp(t *testing.T) {
	engine, state, _ := newTestEngine(t, saleStart)
	owner := addr(0x01)
	if _, err := engine.InitializeVesting(owner, big.NewInt(1_000)); err != nil {
		t.Fatalf("vesting initialization failed: %v", err)
	}

	engine.SetNowFunc(func() int64 { return saleStart + SecondsPerYear })
	account, accrued, err := engine.RecordAdditionalPurchase(owner, big.NewInt(500))
	if err != nil {
		t.Fatalf("top-up failed: %v", err)
	}
	if accrued.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("top-up should flush 50 first, got %s", accrued)
	}
	if account.PurchasedAmount.Cmp(big.NewInt(1_500)) != 0 {
		t.Fatalf("principal mismatch: %s", account.PurchasedAmount)
	}
	if state.participants[owner].PendingBonus.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("flushed accrual lost: %s", state.participants[owner].PendingBonus)
	}

	if _, _, err := engine.RecordAdditionalPurchase(addr(0x02), big.NewInt(1)); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected missing account rejection: %v", err)
	}
}

func TestReferralEdgeIsImmutable(t *testing.T) {
	engine, _, _ := newTestEngine(t, saleStart)
	owner := addr(0x01)
	referrer := addr(0x02)
	if _, err := engine.InitializeVesting(owner, big.NewInt(100)); err != nil {
		t.Fatalf("vesting initialization failed: %v", err)
	}

	if err := engine.SetReferral(owner, owner); !errors.Is(err, ErrSelfReferral) {
		t.Fatalf("expected self referral rejection: %v", err)
	}
	if err := engine.SetReferral(owner, [20]byte{}); !errors.Is(err, ErrInvalidReferral) {
		t.Fatalf("expected zero referrer rejection: %v", err)
	}
	if err := engine.SetReferral(owner, referrer); err != nil {
		t.Fatalf("referral link failed: %v", err)
	}
	if err := engine.SetReferral(owner, addr(0x03)); !errors.Is(err, ErrAlreadyReferred) {
		t.Fatalf("expected immutable edge: %v", err)
	}
}

func TestCreditReferralRequiresMatchingEdge(t *testing.T) {
	engine, state, _ := newTestEngine(t, saleStart)
	owner := addr(0x01)
	referrer := addr(0x02)
	if _, err := engine.InitializeVesting(owner, big.NewInt(100)); err != nil {
		t.Fatalf("vesting initialization failed: %v", err)
	}

	if _, err := engine.CreditReferral(owner, referrer); !errors.Is(err, ErrInvalidReferral) {
		t.Fatalf("expected credit before link to fail: %v", err)
	}
	if err := engine.SetReferral(owner, referrer); err != nil {
		t.Fatalf("referral link failed: %v", err)
	}
	if _, err := engine.CreditReferral(owner, addr(0x03)); !errors.Is(err, ErrInvalidReferral) {
		t.Fatalf("expected mismatched referrer rejection: %v", err)
	}

	pending, err := engine.CreditReferral(owner, referrer)
	if err != nil {
		t.Fatalf("referral credit failed: %v", err)
	}
	if pending.Cmp(big.NewInt(ReferralReward)) != 0 {
		t.Fatalf("unexpected pending balance: %s", pending)
	}
	if state.participants[owner].PendingBonus.Cmp(big.NewInt(ReferralReward)) != 0 {
		t.Fatalf("pending balance not persisted: %s", state.participants[owner].PendingBonus)
	}
}

func TestPendingCreditsRealizedAtClaim(t *testing.T) {
	engine, _, _ := newTestEngine(t, saleStart)
	owner := addr(0x01)
	referrer := addr(0x02)
	if _, err := engine.InitializeVesting(owner, big.NewInt(1_000)); err != nil {
		t.Fatalf("vesting initialization failed: %v", err)
	}
	if err := engine.SetReferral(owner, referrer); err != nil {
		t.Fatalf("referral link failed: %v", err)
	}
	if _, err := engine.CreditReferral(owner, referrer); err != nil {
		t.Fatalf("referral credit failed: %v", err)
	}

	engine.SetNowFunc(func() int64 { return saleStart + VestingHorizon })
	receipt, err := engine.ClaimRewards(owner)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if receipt.Pending.Cmp(big.NewInt(ReferralReward)) != 0 {
		t.Fatalf("pending credit missing from payout: %s", receipt.Pending)
	}
	want := big.NewInt(40_000 + 100 + ReferralReward)
	if receipt.Total.Cmp(want) != 0 {
		t.Fatalf("unexpected payout: want %s got %s", want, receipt.Total)
	}
}

func TestDistributionLogRecordsEveryPayout(t *testing.T) {
	engine, _, _ := newTestEngine(t, saleStart+500)
	seedSale(t, engine, 1_000_000, singlePhase(10, 1_000))
	buyer := addr(0x01)

	if _, err := engine.Purchase(buyer, big.NewInt(10_000)); err != nil {
		t.Fatalf("purchase failed: %v", err)
	}
	engine.SetNowFunc(func() int64 { return saleStart + 500 + VestingHorizon })
	receipt, err := engine.ClaimRewards(buyer)
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	events, err := engine.Distributions(buyer)
	if err != nil {
		t.Fatalf("distribution listing failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected two audit records, got %d", len(events))
	}
	if events[0].Sequence != 0 || events[1].Sequence != 1 {
		t.Fatalf("sequences out of order: %d %d", events[0].Sequence, events[1].Sequence)
	}
	if events[0].ID == events[1].ID {
		t.Fatalf("distribution identifiers collide")
	}

	total, err := engine.DistributedTotal(buyer)
	if err != nil {
		t.Fatalf("distribution total failed: %v", err)
	}
	want := new(big.Int).Add(big.NewInt(1_000), receipt.Total)
	if total.Cmp(want) != 0 {
		t.Fatalf("distribution total mismatch: want %s got %s", want, total)
	}
}

func TestEngineRequiresConfiguredDependencies(t *testing.T) {
	engine := NewEngine()
	if _, err := engine.Purchase(addr(0x01), big.NewInt(10)); !errors.Is(err, ErrNilState) {
		t.Fatalf("expected nil state rejection: %v", err)
	}
	engine.SetState(newMockState())
	if _, err := engine.Purchase(addr(0x01), big.NewInt(10)); !errors.Is(err, ErrLedgerNotConfigured) {
		t.Fatalf("expected missing ledger rejection: %v", err)
	}
}

func TestClaimRequiresRewardsVault(t *testing.T) {
	state := newMockState()
	engine := NewEngine()
	engine.SetState(state)
	engine.SetLedger(newMockLedger())
	engine.SetNowFunc(func() int64 { return saleStart })

	owner := addr(0x01)
	if _, err := engine.InitializeVesting(owner, big.NewInt(100)); err != nil {
		t.Fatalf("vesting initialization failed: %v", err)
	}
	engine.SetNowFunc(func() int64 { return saleStart + VestingHorizon })
	if _, err := engine.ClaimRewards(owner); !errors.Is(err, ErrRewardsVaultNotSet) {
		t.Fatalf("expected missing vault rejection: %v", err)
	}
}
