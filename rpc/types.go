package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"solstice/native/sale"
	"solstice/native/treasury"
)

func decodeAddress(value string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("invalid hex address: %v", err)
	}
	if len(raw) != len(addr) {
		return addr, fmt.Errorf("invalid address length %d", len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}

func encodeAddress(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func encodeHash(hash [32]byte) string {
	return hex.EncodeToString(hash[:])
}

func parseAmount(value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() <= 0 {
		return nil, errors.New("amount must be positive")
	}
	return amount, nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// decodeParams expects exactly one JSON object parameter.
func decodeParams(req *RPCRequest, out any) error {
	if len(req.Params) != 1 {
		return errors.New("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}

// businessStatus maps engine errors onto HTTP/JSON-RPC status pairs.
func businessStatus(err error) (int, int) {
	switch {
	case errors.Is(err, sale.ErrUnauthorized), errors.Is(err, treasury.ErrUnauthorized):
		return http.StatusForbidden, codeUnauthorized
	case errors.Is(err, sale.ErrNilState),
		errors.Is(err, sale.ErrLedgerNotConfigured),
		errors.Is(err, sale.ErrTransferFailed),
		errors.Is(err, treasury.ErrNilState),
		errors.Is(err, treasury.ErrLedgerNotConfigured),
		errors.Is(err, treasury.ErrTransferFailed):
		return http.StatusInternalServerError, codeServerError
	default:
		return http.StatusBadRequest, codeInvalidParams
	}
}

func writeBusinessError(w http.ResponseWriter, req *RPCRequest, err error) {
	status, code := businessStatus(err)
	writeError(w, status, req.ID, code, err.Error(), nil)
}

type phaseResult struct {
	TokenPrice string `json:"tokenPrice"`
	Duration   int64  `json:"duration"`
}

type saleStateResult struct {
	StartTimestamp int64         `json:"startTimestamp"`
	Cap            string        `json:"cap"`
	Sold           string        `json:"sold"`
	Phases         []phaseResult `json:"phases"`
}

func formatSaleState(state *sale.SaleState) saleStateResult {
	result := saleStateResult{
		StartTimestamp: state.StartTimestamp,
		Cap:            bigString(state.Cap),
		Sold:           bigString(state.Sold),
		Phases:         make([]phaseResult, len(state.Phases)),
	}
	for i, phase := range state.Phases {
		result.Phases[i] = phaseResult{TokenPrice: bigString(phase.TokenPrice), Duration: phase.Duration}
	}
	return result
}

type quoteResult struct {
	PhaseIndex int    `json:"phaseIndex"`
	TokenPrice string `json:"tokenPrice"`
	Duration   int64  `json:"duration"`
	Closing    bool   `json:"closing"`
}

type purchaseResult struct {
	PhaseIndex   int    `json:"phaseIndex"`
	Closing      bool   `json:"closing"`
	TokensMinted string `json:"tokensMinted"`
	Sold         string `json:"sold"`
}

func formatPurchase(receipt *sale.PurchaseReceipt) purchaseResult {
	return purchaseResult{
		PhaseIndex:   receipt.PhaseIndex,
		Closing:      receipt.Closing,
		TokensMinted: bigString(receipt.TokensMinted),
		Sold:         bigString(receipt.Sold),
	}
}

type participantResult struct {
	Owner           string `json:"owner"`
	PurchasedAmount string `json:"purchasedAmount"`
	VestingStart    int64  `json:"vestingStart"`
	VestingEnd      int64  `json:"vestingEnd"`
	LastAccrual     int64  `json:"lastAccrual"`
	RewardsClaimed  string `json:"rewardsClaimed"`
	PendingBonus    string `json:"pendingBonus"`
	ReferredBy      string `json:"referredBy,omitempty"`
	TierLevel       uint8  `json:"tierLevel"`
}

func formatParticipant(account *sale.ParticipantAccount) participantResult {
	result := participantResult{
		Owner:           encodeAddress(account.Owner),
		PurchasedAmount: bigString(account.PurchasedAmount),
		VestingStart:    account.VestingStart,
		VestingEnd:      account.VestingEnd,
		LastAccrual:     account.LastAccrual,
		RewardsClaimed:  bigString(account.RewardsClaimed),
		PendingBonus:    bigString(account.PendingBonus),
		TierLevel:       account.TierLevel,
	}
	if account.HasReferrer {
		result.ReferredBy = encodeAddress(account.ReferredBy)
	}
	return result
}

type claimResult struct {
	Base      string `json:"base"`
	TierBonus string `json:"tierBonus"`
	Pending   string `json:"pending"`
	Total     string `json:"total"`
	TierLevel uint8  `json:"tierLevel"`
}

type distributionResult struct {
	ID        string `json:"id"`
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	Timestamp int64  `json:"timestamp"`
	Sequence  uint64 `json:"sequence"`
}

type beneficiaryResult struct {
	Beneficiary string `json:"beneficiary"`
	Amount      string `json:"amount"`
}
