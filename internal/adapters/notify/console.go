package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/alejandrodnm/dovault/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console implements ports.Notifier and ports.EventSink.
//
// Amounts are printed in whole tokens once the vault's tokens are known
// (NotifyVaults or Track); until then raw integer units are shown.
type Console struct {
	out io.Writer

	mu     sync.Mutex
	tokens map[uint64]domain.VaultTokens
}

// NewConsole writes to stdout.
func NewConsole() *Console {
	return NewConsoleWriter(os.Stdout)
}

// NewConsoleWriter writes to w. Used by tests and the report command.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w, tokens: make(map[uint64]domain.VaultTokens)}
}

// Track registers the tokens of vault for amount formatting.
func (c *Console) Track(vault uint64, t domain.VaultTokens) {
	c.mu.Lock()
	c.tokens[vault] = t
	c.mu.Unlock()
}

// NotifyVaults prints one status row per vault.
func (c *Console) NotifyVaults(_ context.Context, vaults []*domain.Vault) error {
	if len(vaults) == 0 {
		fmt.Fprintf(c.out, "[%s] no vaults listed\n", time.Now().Format("15:04:05"))
		return nil
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Vault", "Type", "Period", "Round", "Status", "Expiration", "Max size", "Delivered", "Lending")
	for _, v := range vaults {
		c.Track(v.Index, v.Tokens)
		lending := "-"
		if p, ok := domain.LendingOf(v.Lending); ok {
			lending = p.String()
		}
		table.Append(
			fmt.Sprintf("%d", v.Index),
			v.OptionType.String(),
			v.Period.String(),
			fmt.Sprintf("%d", v.Round),
			v.Status.String(),
			formatTime(v.Expiration),
			domain.FormatAmount(v.MaxSize, v.Tokens.Base.Decimals),
			domain.FormatAmount(v.Delivered, v.Tokens.Base.Decimals),
			lending,
		)
	}
	table.Render()
	return nil
}

// NotifySettlements prints the settlement history, skipped rounds included.
func (c *Console) NotifySettlements(_ context.Context, settlements []domain.SettlementInfo) error {
	if len(settlements) == 0 {
		fmt.Fprintln(c.out, "no settlements recorded")
		return nil
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Vault", "Round", "Price", "Settle", "Settled", "Share price", "Payoff", "Delivered", "At")
	for _, s := range settlements {
		dep, base := c.decimals(s.Vault)
		price := "skipped"
		payoff := "-"
		if !s.Skipped {
			price = domain.FormatAmount(s.OraclePrice, s.OracleDecimal)
			payoff = formatSigned(s.Payoff, dep)
		}
		table.Append(
			fmt.Sprintf("%d", s.Vault),
			fmt.Sprintf("%d", s.Round),
			price,
			domain.FormatAmount(s.SettleBalance, dep),
			domain.FormatAmount(s.SettledBalance, dep),
			domain.FormatSharePrice(s.SharePrice),
			payoff,
			domain.FormatAmount(s.DeliveredSize, base),
			formatTime(s.Timestamp),
		)
	}
	table.Render()
	return nil
}

// NotifyDeliveries prints the delivery log with a per-round total.
func (c *Console) NotifyDeliveries(_ context.Context, deliveries []domain.DeliveryRecord) error {
	if len(deliveries) == 0 {
		fmt.Fprintln(c.out, "no deliveries recorded")
		return nil
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Vault", "Round", "Channel", "Buyer", "Price", "Size", "Paid", "Fee", "Incentive", "Refund")
	var totals domain.DeliveryTotals
	for _, d := range deliveries {
		t := c.vaultTokens(d.Vault)
		incentive := "-"
		if d.IncentiveValue > 0 {
			incentive = fmt.Sprintf("%d %s", d.IncentiveValue, d.IncentiveToken)
		}
		table.Append(
			fmt.Sprintf("%d", d.Vault),
			fmt.Sprintf("%d", d.Round),
			d.Channel.String(),
			d.Buyer,
			domain.FormatAmount(d.Price, t.Bid.Decimals),
			domain.FormatAmount(d.Size, t.Base.Decimals),
			domain.FormatAmount(d.BidderValue, t.Bid.Decimals),
			domain.FormatAmount(d.BidderFee, t.Bid.Decimals),
			incentive,
			domain.FormatAmount(d.Refund, t.Bid.Decimals),
		)
		next, err := totals.Add(d)
		if err != nil {
			return fmt.Errorf("notify.NotifyDeliveries: %s: %w", d.ID, err)
		}
		totals = next
	}
	table.Render()

	t := c.vaultTokens(deliveries[0].Vault)
	fmt.Fprintf(c.out, "  %d fills | size %s | premium %s | fees %s\n",
		len(deliveries),
		domain.FormatAmount(totals.Size, t.Base.Decimals),
		domain.FormatAmount(totals.BidderValue-totals.BidderFee, t.Bid.Decimals),
		domain.FormatAmount(totals.BidderFee, t.Bid.Decimals),
	)
	return nil
}

// Emit implements ports.EventSink with a single log line per event.
func (c *Console) Emit(_ context.Context, e domain.Event) error {
	fmt.Fprintf(c.out, "[%s] %-16s vault=%d round=%d caller=%s",
		e.At.Format("15:04:05"), e.Action, e.Vault, e.Round, e.Caller)
	for _, k := range sortedKeys(e.Attrs) {
		fmt.Fprintf(c.out, " %s=%s", k, e.Attrs[k])
	}
	fmt.Fprintln(c.out)
	return nil
}

func (c *Console) vaultTokens(vault uint64) domain.VaultTokens {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokens[vault]
}

// decimals returns the deposit and base decimals of vault, zero if unknown.
func (c *Console) decimals(vault uint64) (dep, base uint8) {
	t := c.vaultTokens(vault)
	return t.Deposit.Decimals, t.Base.Decimals
}
