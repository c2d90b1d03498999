package domain

import "time"

// Action is an authorized entry point of the vault engine.
type Action string

const (
	ActionNewVault        Action = "new_vault"
	ActionDecommission    Action = "decommission"
	ActionDeposit         Action = "deposit"
	ActionActivate        Action = "activate"
	ActionNewAuction      Action = "new_auction"
	ActionDeliverAuction  Action = "deliver_auction"
	ActionDeliverOTC      Action = "deliver_otc"
	ActionSafetyNet       Action = "safety_net"
	ActionAirdrop         Action = "airdrop"
	ActionRecoup          Action = "recoup"
	ActionSettle          Action = "settle"
	ActionUpdateConfig    Action = "update_config"
	ActionUpdateWarmup    Action = "update_warmup"
	ActionTopUpIncentive  Action = "top_up_incentive"
	ActionTopUpFixed      Action = "top_up_fixed"
	ActionWithdrawFixed   Action = "withdraw_fixed"
	ActionSuspend         Action = "suspend"
	ActionResume          Action = "resume"
	ActionDepositLending  Action = "deposit_lending"
	ActionWithdrawLending Action = "withdraw_lending"
)

// Event is the structured record emitted after every successful call.
type Event struct {
	ID     string
	Action Action
	Vault  uint64
	Round  uint64
	Caller string
	At     time.Time
	Attrs  map[string]string
}
