package mempool

import "testing"

func testAuthorities(n int) []Authority {
	auths := make([]Authority, n)
	for i := 0; i < n; i++ {
		var pk PublicKey
		pk[0] = byte(i + 1)
		auths[i] = Authority{PublicKey: pk, Address: "addr", Stake: 1}
	}
	return auths
}

func TestCommittee_QuorumThreshold(t *testing.T) {
	// n = 3f+1 with f=1, uniform stake: quorum should exclude exactly one
	// unit of stake beyond what a single faulty authority could withhold.
	c := NewCommittee(testAuthorities(4))
	if got, want := c.QuorumThreshold(), uint64(3); got != want {
		t.Fatalf("quorum threshold = %d, want %d", got, want)
	}
}

func TestCommittee_ContainsAndStake(t *testing.T) {
	auths := testAuthorities(3)
	c := NewCommittee(auths)
	if !c.Contains(auths[0].PublicKey) {
		t.Fatal("expected committee to contain first authority")
	}
	var unknown PublicKey
	unknown[0] = 0xff
	if c.Contains(unknown) {
		t.Fatal("did not expect committee to contain an unregistered key")
	}
	if got := c.Stake(auths[1].PublicKey); got != 1 {
		t.Fatalf("stake = %d, want 1", got)
	}
}

func TestCommittee_OthersExcludesSelf(t *testing.T) {
	auths := testAuthorities(4)
	c := NewCommittee(auths)
	others := c.Others(auths[0].PublicKey)
	if len(others) != 3 {
		t.Fatalf("expected 3 others, got %d", len(others))
	}
	for _, pk := range others {
		if pk == auths[0].PublicKey {
			t.Fatal("Others must not include self")
		}
	}
}

func TestCommittee_BroadcastAddressesExcludesSelf(t *testing.T) {
	auths := []Authority{
		{PublicKey: PublicKey{1}, Address: "a1", Stake: 1},
		{PublicKey: PublicKey{2}, Address: "a2", Stake: 1},
	}
	c := NewCommittee(auths)
	addrs := c.BroadcastAddresses(auths[0].PublicKey)
	if len(addrs) != 1 || addrs[0] != "a2" {
		t.Fatalf("broadcast addresses = %v, want [a2]", addrs)
	}
}

func TestCommittee_MempoolAddressUnknownKey(t *testing.T) {
	c := NewCommittee(testAuthorities(2))
	var unknown PublicKey
	unknown[0] = 0xff
	if _, ok := c.MempoolAddress(unknown); ok {
		t.Fatal("expected lookup of unknown key to fail")
	}
}
