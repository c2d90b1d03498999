package domain

// LedgerBalances is a depositor's (or a vault's, when summed) view of the
// share pools kept by the vault ledger. Amounts are deposit token units.
type LedgerBalances struct {
	Warmup   uint64 // waiting for the next activation
	Active   uint64 // at risk this round
	Lent     uint64 // active collateral held by a lending protocol
	Earned   []TokenAmount
	Receipts uint64 // bid receipts (size) held as a buyer
	Payouts  []TokenAmount
}
