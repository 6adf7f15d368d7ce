package sale

import (
	"encoding/hex"
	"strconv"

	"solstice/core/events"
	"solstice/core/types"
)

const (
	// EventTypeSaleInitialized is emitted when the admin creates the sale.
	EventTypeSaleInitialized = "sale.initialized"
	// EventTypeSupplyMinted is emitted when the genesis supply is split.
	EventTypeSupplyMinted = "sale.supply.minted"
	// EventTypePurchaseAdmitted is emitted for every purchase that clears the cap.
	EventTypePurchaseAdmitted = "sale.purchase.admitted"
	// EventTypeVestingInitialized is emitted when a participant account is created.
	EventTypeVestingInitialized = "sale.vesting.initialized"
	// EventTypePurchaseRecorded is emitted when a participant adds to their principal.
	EventTypePurchaseRecorded = "sale.vesting.purchase"
	// EventTypeRewardsAccrued is emitted when compound accrual is flushed.
	EventTypeRewardsAccrued = "sale.rewards.accrued"
	// EventTypeRewardsClaimed is emitted on every successful claim payout.
	EventTypeRewardsClaimed = "sale.rewards.claimed"
	// EventTypeReferralLinked is emitted when a referral edge is set.
	EventTypeReferralLinked = "sale.referral.linked"
	// EventTypeReferralCredited is emitted when a referral bonus is credited.
	EventTypeReferralCredited = "sale.referral.credited"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

func hexAddr(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func intString(v int64) string { return strconv.FormatInt(v, 10) }

// SaleInitializedEvent announces the newly created sale ledger.
func SaleInitializedEvent(start int64, cap string, phases int) *types.Event {
	return &types.Event{
		Type: EventTypeSaleInitialized,
		Attributes: map[string]string{
			"start":  intString(start),
			"cap":    cap,
			"phases": strconv.Itoa(phases),
		},
	}
}

// SupplyMintedEvent announces the genesis supply split.
func SupplyMintedEvent(vault, distribution [20]byte, vaultAmount, distributionAmount string) *types.Event {
	return &types.Event{
		Type: EventTypeSupplyMinted,
		Attributes: map[string]string{
			"rewardsVault":       hexAddr(vault),
			"distribution":       hexAddr(distribution),
			"vaultAmount":        vaultAmount,
			"distributionAmount": distributionAmount,
		},
	}
}

// PurchaseAdmittedEvent reports an admitted purchase and the running total sold.
func PurchaseAdmittedEvent(buyer [20]byte, phaseIndex int, closing bool, tokens, sold string) *types.Event {
	return &types.Event{
		Type: EventTypePurchaseAdmitted,
		Attributes: map[string]string{
			"buyer":   hexAddr(buyer),
			"phase":   strconv.Itoa(phaseIndex),
			"closing": strconv.FormatBool(closing),
			"tokens":  tokens,
			"sold":    sold,
		},
	}
}

// VestingInitializedEvent reports a freshly created participant account.
func VestingInitializedEvent(owner [20]byte, amount string, start, end int64) *types.Event {
	return &types.Event{
		Type: EventTypeVestingInitialized,
		Attributes: map[string]string{
			"owner":        hexAddr(owner),
			"amount":       amount,
			"vestingStart": intString(start),
			"vestingEnd":   intString(end),
		},
	}
}

// PurchaseRecordedEvent reports principal added to an existing account.
func PurchaseRecordedEvent(owner [20]byte, additional, principal string) *types.Event {
	return &types.Event{
		Type: EventTypePurchaseRecorded,
		Attributes: map[string]string{
			"owner":      hexAddr(owner),
			"additional": additional,
			"principal":  principal,
		},
	}
}

// RewardsAccruedEvent reports a compound-accrual flush into the pending balance.
func RewardsAccruedEvent(owner [20]byte, accrued, pending string) *types.Event {
	return &types.Event{
		Type: EventTypeRewardsAccrued,
		Attributes: map[string]string{
			"owner":   hexAddr(owner),
			"accrued": accrued,
			"pending": pending,
		},
	}
}

// RewardsClaimedEvent reports the composition of a claim payout.
func RewardsClaimedEvent(owner [20]byte, base, tierBonus, pending, total string, level uint8) *types.Event {
	return &types.Event{
		Type: EventTypeRewardsClaimed,
		Attributes: map[string]string{
			"owner":     hexAddr(owner),
			"base":      base,
			"tierBonus": tierBonus,
			"pending":   pending,
			"total":     total,
			"tierLevel": strconv.Itoa(int(level)),
		},
	}
}

// ReferralLinkedEvent reports a newly set referral edge.
func ReferralLinkedEvent(owner, referrer [20]byte) *types.Event {
	return &types.Event{
		Type: EventTypeReferralLinked,
		Attributes: map[string]string{
			"owner":    hexAddr(owner),
			"referrer": hexAddr(referrer),
		},
	}
}

// ReferralCreditedEvent reports a referral bonus credit.
func ReferralCreditedEvent(owner, referrer [20]byte, bonus, pending string) *types.Event {
	return &types.Event{
		Type: EventTypeReferralCredited,
		Attributes: map[string]string{
			"owner":    hexAddr(owner),
			"referrer": hexAddr(referrer),
			"bonus":    bonus,
			"pending":  pending,
		},
	}
}
