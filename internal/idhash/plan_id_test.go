package idhash

import "testing"

func TestComputePlanID(t *testing.T) {
	tests := []struct {
		name    string
		owner   string
		pool    string
		amount  string
		created int64
		nonce   uint64
	}{
		{
			name:    "typical plan",
			owner:   "Owner123ABC",
			pool:    "Pool456DEF",
			amount:  "6000",
			created: 1700000000000000000,
			nonce:   42,
		},
		{
			name:    "fractional amount",
			owner:   "Owner123ABC",
			pool:    "Pool456DEF",
			amount:  "0.000000001",
			created: 1700000000000000001,
			nonce:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputePlanID(tt.owner, tt.pool, tt.amount, tt.created, tt.nonce)
			if len(got) != 64 {
				t.Errorf("ComputePlanID() length = %d, want 64", len(got))
			}

			// Determinism: same inputs produce the same ID.
			again := ComputePlanID(tt.owner, tt.pool, tt.amount, tt.created, tt.nonce)
			if got != again {
				t.Errorf("ComputePlanID() not deterministic: %s != %s", got, again)
			}
		})
	}
}

func TestComputePlanIDUniqueness(t *testing.T) {
	base := ComputePlanID("owner", "pool", "100", 1, 1)

	variants := []string{
		ComputePlanID("owner2", "pool", "100", 1, 1),
		ComputePlanID("owner", "pool2", "100", 1, 1),
		ComputePlanID("owner", "pool", "200", 1, 1),
		ComputePlanID("owner", "pool", "100", 2, 1),
		ComputePlanID("owner", "pool", "100", 1, 2),
	}

	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d collided with base ID", i)
		}
	}
}
