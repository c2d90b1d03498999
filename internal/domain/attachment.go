package domain

// AttachmentKey names a per-vault attachment.
type AttachmentKey string

// KeyFixedIncentive holds the vault-local fixed incentive balance.
const KeyFixedIncentive AttachmentKey = "fixed_incentive"

// CapabilityKey is the slot of a lending protocol's capability handle.
func CapabilityKey(p LendingProtocol) AttachmentKey {
	return AttachmentKey("cap:" + p.String())
}

// Attachment is either a token balance or a protocol capability handle.
type Attachment interface {
	attachment()
}

// BalanceAttachment is a token-keyed balance owned by the vault.
type BalanceAttachment struct {
	Token  string
	Amount uint64
}

// CapabilityAttachment is a handle issued by an external protocol, kept so
// later deposits reuse the same account.
type CapabilityAttachment struct {
	Protocol LendingProtocol
	Handle   string
}

func (BalanceAttachment) attachment()    {}
func (CapabilityAttachment) attachment() {}

// Attachments is a vault's typed attachment map.
type Attachments map[AttachmentKey]Attachment

// Balance returns the balance stored under key.
func (a Attachments) Balance(key AttachmentKey) (BalanceAttachment, bool) {
	b, ok := a[key].(BalanceAttachment)
	return b, ok
}

// Capability returns the capability handle stored under key.
func (a Attachments) Capability(key AttachmentKey) (CapabilityAttachment, bool) {
	c, ok := a[key].(CapabilityAttachment)
	return c, ok
}

// Clone returns a shallow copy; attachment values are immutable structs.
func (a Attachments) Clone() Attachments {
	out := make(Attachments, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}
