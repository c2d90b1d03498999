package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/alejandrodnm/dovault/internal/domain"
)

// ErrUnknownVault is returned for a vault that was never opened or was drained.
var ErrUnknownVault = errors.New("ledger: unknown vault")

// unclaimed holds premium that arrived while no depositor was active.
const unclaimed = ""

// book is the per-vault share bookkeeping. Active amounts are repriced in
// place at settlement, so one unit of active balance is one deposit token.
type book struct {
	tokens   domain.VaultTokens
	round    uint64
	warmup   map[string]uint64
	active   map[string]uint64
	lent     uint64
	earned   map[string]map[string]uint64 // user -> token -> amount
	receipts map[string]uint64            // buyer -> size
	payouts  map[string]map[string]uint64 // buyer -> token -> amount
}

// Memory is an in-process ports.Ledger.
type Memory struct {
	mu    sync.Mutex
	books map[uint64]*book
}

// NewMemory returns an empty ledger.
func NewMemory() *Memory {
	return &Memory{books: make(map[uint64]*book)}
}

func (m *Memory) book(vault uint64) (*book, error) {
	b, ok := m.books[vault]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownVault, vault)
	}
	return b, nil
}

// Open implements ports.Ledger.
func (m *Memory) Open(_ context.Context, vault uint64, tokens domain.VaultTokens) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.books[vault]; ok {
		return fmt.Errorf("ledger.Open: vault %d already open", vault)
	}
	m.books[vault] = &book{
		tokens:   tokens,
		warmup:   make(map[string]uint64),
		active:   make(map[string]uint64),
		earned:   make(map[string]map[string]uint64),
		receipts: make(map[string]uint64),
		payouts:  make(map[string]map[string]uint64),
	}
	return nil
}

// Deposit implements ports.Ledger.
func (m *Memory) Deposit(_ context.Context, vault uint64, user string, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.book(vault)
	if err != nil {
		return fmt.Errorf("ledger.Deposit: %w", err)
	}
	v, err := domain.AddUint64(b.warmup[user], amount)
	if err != nil {
		return fmt.Errorf("ledger.Deposit: %w", err)
	}
	b.warmup[user] = v
	return nil
}

// Balances implements ports.Ledger.
func (m *Memory) Balances(_ context.Context, vault uint64, user string) (domain.LedgerBalances, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.book(vault)
	if err != nil {
		return domain.LedgerBalances{}, fmt.Errorf("ledger.Balances: %w", err)
	}
	if user == "" {
		return b.totals(), nil
	}
	return domain.LedgerBalances{
		Warmup:   b.warmup[user],
		Active:   b.active[user],
		Earned:   tokenAmounts(b.earned[user]),
		Receipts: b.receipts[user],
		Payouts:  tokenAmounts(b.payouts[user]),
	}, nil
}

// Activate implements ports.Ledger.
func (m *Memory) Activate(_ context.Context, vault, round uint64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.book(vault)
	if err != nil {
		return 0, fmt.Errorf("ledger.Activate: %w", err)
	}
	if b.lent > 0 {
		return 0, fmt.Errorf("ledger.Activate: vault %d collateral is lent", vault)
	}
	for u, amt := range b.warmup {
		b.active[u] += amt
	}
	b.warmup = make(map[string]uint64)
	b.round = round
	return sum(b.active), nil
}

// Delivery implements ports.Ledger. Every transfer is checked and split
// before the book changes.
func (m *Memory) Delivery(_ context.Context, vault uint64, ts ...domain.DeliveryTransfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.book(vault)
	if err != nil {
		return fmt.Errorf("ledger.Delivery: %w", err)
	}

	receipts := make(map[string]uint64)
	var credits []credit
	for _, t := range ts {
		if t.Round != b.round {
			return fmt.Errorf("ledger.Delivery: round %d, ledger at %d: %w", t.Round, b.round, domain.ErrRoundMismatch)
		}
		if t.Size > 0 {
			held := receipts[t.Buyer]
			if held == 0 {
				held = b.receipts[t.Buyer]
			}
			if receipts[t.Buyer], err = domain.AddUint64(held, t.Size); err != nil {
				return fmt.Errorf("ledger.Delivery: receipts of %s: %w", t.Buyer, err)
			}
		}
		amounts := append([]domain.TokenAmount{{Token: b.tokens.Bid.Symbol, Amount: t.Premium}}, t.Extra...)
		for _, x := range amounts {
			c, err := b.split(x.Token, x.Amount)
			if err != nil {
				return fmt.Errorf("ledger.Delivery: %w", err)
			}
			credits = append(credits, c...)
		}
	}

	for buyer, n := range receipts {
		b.receipts[buyer] = n
	}
	for _, c := range credits {
		addTo(b.earned, c.user, c.token, c.amount)
	}
	return nil
}

// Recoup implements ports.Ledger. Refunded collateral goes back to warmup
// and rolls into the next round.
func (m *Memory) Recoup(_ context.Context, vault, round, undelivered, maxSize uint64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.book(vault)
	if err != nil {
		return 0, fmt.Errorf("ledger.Recoup: %w", err)
	}
	if round != b.round {
		return 0, fmt.Errorf("ledger.Recoup: round %d, ledger at %d: %w", round, b.round, domain.ErrRoundMismatch)
	}
	if undelivered == 0 || maxSize == 0 {
		return 0, nil
	}
	var refunded uint64
	for _, u := range sortedKeys(b.active) {
		r, err := domain.MulDiv(b.active[u], undelivered, maxSize)
		if err != nil {
			return 0, fmt.Errorf("ledger.Recoup: %w", err)
		}
		b.active[u] -= r
		b.warmup[u] += r
		refunded += r
	}
	return refunded, nil
}

// ActiveBalance implements ports.Ledger.
func (m *Memory) ActiveBalance(_ context.Context, vault uint64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.book(vault)
	if err != nil {
		return 0, fmt.Errorf("ledger.ActiveBalance: %w", err)
	}
	return sum(b.active), nil
}

// ShareSupply implements ports.Ledger.
func (m *Memory) ShareSupply(ctx context.Context, vault uint64) (uint64, error) {
	return m.ActiveBalance(ctx, vault)
}

// Settle implements ports.Ledger.
func (m *Memory) Settle(_ context.Context, vault uint64, t domain.SettleTransfer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.book(vault)
	if err != nil {
		return fmt.Errorf("ledger.Settle: %w", err)
	}
	if t.Round != b.round {
		return fmt.Errorf("ledger.Settle: round %d, ledger at %d: %w", t.Round, b.round, domain.ErrRoundMismatch)
	}
	if b.lent > 0 {
		return fmt.Errorf("ledger.Settle: vault %d collateral is lent", vault)
	}

	if t.Loss > 0 {
		shares, err := prorata(t.Loss, b.receipts)
		if err != nil {
			return fmt.Errorf("ledger.Settle: %w", err)
		}
		for buyer, amt := range shares {
			addTo(b.payouts, buyer, t.LossToken, amt)
		}
	}
	for u, amt := range b.active {
		v, err := domain.MulDiv(amt, t.SharePrice, domain.SharePriceUnit)
		if err != nil {
			return fmt.Errorf("ledger.Settle: %w", err)
		}
		b.active[u] = v
	}
	b.receipts = make(map[string]uint64)
	return nil
}

// WithdrawForLending implements ports.Ledger.
func (m *Memory) WithdrawForLending(_ context.Context, vault uint64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.book(vault)
	if err != nil {
		return 0, fmt.Errorf("ledger.WithdrawForLending: %w", err)
	}
	if b.lent > 0 {
		return 0, fmt.Errorf("ledger.WithdrawForLending: %w", domain.ErrLendingNotWithdrawn)
	}
	b.lent = sum(b.active)
	return b.lent, nil
}

// DepositFromLending implements ports.Ledger. A principal short of what was
// lent is absorbed pro rata by active depositors.
func (m *Memory) DepositFromLending(_ context.Context, vault uint64, principal, reward uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.book(vault)
	if err != nil {
		return fmt.Errorf("ledger.DepositFromLending: %w", err)
	}
	lent := b.lent
	if lent == 0 {
		return fmt.Errorf("ledger.DepositFromLending: %w", domain.ErrLendingEmpty)
	}
	if principal < lent {
		for u, amt := range b.active {
			v, err := domain.MulDiv(amt, principal, lent)
			if err != nil {
				return fmt.Errorf("ledger.DepositFromLending: %w", err)
			}
			b.active[u] = v
		}
	}
	shares, err := prorata(reward, b.active)
	if err != nil {
		return fmt.Errorf("ledger.DepositFromLending: %w", err)
	}
	for u, amt := range shares {
		b.active[u] += amt
	}
	b.lent = 0
	return nil
}

// Drain implements ports.Ledger.
func (m *Memory) Drain(_ context.Context, vault uint64) (domain.LedgerBalances, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.book(vault)
	if err != nil {
		return domain.LedgerBalances{}, fmt.Errorf("ledger.Drain: %w", err)
	}
	if b.lent > 0 {
		return domain.LedgerBalances{}, fmt.Errorf("ledger.Drain: %w", domain.ErrLendingNotWithdrawn)
	}
	out := b.totals()
	delete(m.books, vault)
	return out, nil
}

// --- helpers ---

func (b *book) totals() domain.LedgerBalances {
	earned := make(map[string]uint64)
	for _, byToken := range b.earned {
		for tok, amt := range byToken {
			earned[tok] += amt
		}
	}
	payouts := make(map[string]uint64)
	for _, byToken := range b.payouts {
		for tok, amt := range byToken {
			payouts[tok] += amt
		}
	}
	return domain.LedgerBalances{
		Warmup:   sum(b.warmup),
		Active:   sum(b.active),
		Lent:     b.lent,
		Earned:   tokenAmounts(earned),
		Receipts: sum(b.receipts),
		Payouts:  tokenAmounts(payouts),
	}
}

// credit is one depositor's part of a token amount.
type credit struct {
	user   string
	token  string
	amount uint64
}

// split spreads amount of token over active depositors by balance. With no
// active depositor it is held as unclaimed.
func (b *book) split(token string, amount uint64) ([]credit, error) {
	if amount == 0 {
		return nil, nil
	}
	if sum(b.active) == 0 {
		return []credit{{user: unclaimed, token: token, amount: amount}}, nil
	}
	shares, err := prorata(amount, b.active)
	if err != nil {
		return nil, err
	}
	out := make([]credit, 0, len(shares))
	for _, u := range sortedKeys(shares) {
		out = append(out, credit{user: u, token: token, amount: shares[u]})
	}
	return out, nil
}

// prorata splits amount by weights. Truncation dust goes to the last holder
// in key order so the parts always add up to amount.
func prorata(amount uint64, weights map[string]uint64) (map[string]uint64, error) {
	total := sum(weights)
	out := make(map[string]uint64, len(weights))
	if total == 0 || amount == 0 {
		return out, nil
	}
	keys := sortedKeys(weights)
	var given uint64
	last := ""
	for _, k := range keys {
		if weights[k] == 0 {
			continue
		}
		v, err := domain.MulDiv(amount, weights[k], total)
		if err != nil {
			return nil, err
		}
		out[k] = v
		given += v
		last = k
	}
	out[last] += amount - given
	return out, nil
}

func addTo(m map[string]map[string]uint64, user, token string, amount uint64) {
	if m[user] == nil {
		m[user] = make(map[string]uint64)
	}
	m[user][token] += amount
}

func sum(m map[string]uint64) uint64 {
	var n uint64
	for _, v := range m {
		n += v
	}
	return n
}

func sortedKeys(m map[string]uint64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func tokenAmounts(m map[string]uint64) []domain.TokenAmount {
	var out []domain.TokenAmount
	for tok, amt := range m {
		if amt > 0 {
			out = append(out, domain.TokenAmount{Token: tok, Amount: amt})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Token < out[j].Token })
	return out
}
