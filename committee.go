package mempool

import (
	"encoding/hex"
	"errors"
)

// ErrNotInCommittee is returned at startup when the configured authority's
// own public key is not a member of its committee — an invariant
// violation (spec §7, escalation level 6): fatal, not retried.
var ErrNotInCommittee = errors.New("mempool: local public key is not a member of the committee")

// PublicKey identifies a committee member. Verifying transaction or
// batch signatures is explicitly out of scope for this core (spec §1);
// PublicKey here is purely an identity used for committee membership,
// addressing, and stake lookup.
type PublicKey [32]byte

func (k PublicKey) String() string {
	return hex.EncodeToString(k[:])
}

// Authority is one committee member's static, run-long information.
type Authority struct {
	PublicKey PublicKey
	// Address is where this authority's mempool peer port can be reached.
	Address string
	// Stake is this authority's voting weight for quorum calculations.
	Stake uint64
}

// Committee is the static set of authorities participating in one run of
// the mempool. It is immutable after construction and safe for
// concurrent read access from every task.
type Committee struct {
	order       []PublicKey
	authorities map[PublicKey]Authority
	totalStake  uint64
}

// NewCommittee builds a Committee from authorities. The iteration order
// used by Others is the order authorities are given in, which makes
// round-robin retry selection deterministic across a run.
func NewCommittee(authorities []Authority) *Committee {
	c := &Committee{authorities: make(map[PublicKey]Authority, len(authorities))}
	for _, a := range authorities {
		if _, exists := c.authorities[a.PublicKey]; !exists {
			c.order = append(c.order, a.PublicKey)
		}
		c.authorities[a.PublicKey] = a
		c.totalStake += a.Stake
	}
	return c
}

// Contains reports whether pk is a committee member.
func (c *Committee) Contains(pk PublicKey) bool {
	_, ok := c.authorities[pk]
	return ok
}

// Stake returns pk's voting weight, or 0 if pk is not a member.
func (c *Committee) Stake(pk PublicKey) uint64 {
	return c.authorities[pk].Stake
}

// QuorumThreshold returns the minimum cumulative stake that constitutes a
// Byzantine quorum: strictly more than two thirds of total stake, i.e.
// the smallest set that guarantees at least one honest (non-faulty)
// authority is included whenever at most f = (totalStake-1)/3 authorities
// are faulty.
func (c *Committee) QuorumThreshold() uint64 {
	// 2f+1 out of 3f+1: threshold = totalStake - f, where f = (total-1)/3.
	f := (c.totalStake - 1) / 3
	return c.totalStake - f
}

// MempoolAddress returns pk's mempool peer address.
func (c *Committee) MempoolAddress(pk PublicKey) (string, bool) {
	a, ok := c.authorities[pk]
	if !ok {
		return "", false
	}
	return a.Address, true
}

// BroadcastAddresses returns the mempool addresses of every committee
// member other than self, in deterministic order.
func (c *Committee) BroadcastAddresses(self PublicKey) []string {
	addrs := make([]string, 0, len(c.order))
	for _, pk := range c.order {
		if pk == self {
			continue
		}
		addrs = append(addrs, c.authorities[pk].Address)
	}
	return addrs
}

// Others returns every committee member's public key other than self, in
// deterministic order, for round-robin retry target selection.
func (c *Committee) Others(self PublicKey) []PublicKey {
	others := make([]PublicKey, 0, len(c.order))
	for _, pk := range c.order {
		if pk != self {
			others = append(others, pk)
		}
	}
	return others
}
