package billing

import (
	"math"
	"testing"
)

func TestDistanceBetween(t *testing.T) {
	a := &Location{Domain: "overworld", X: 0, Y: 0, Z: 0}
	b := &Location{Domain: "overworld", X: 3, Y: 4, Z: 0}

	d := DistanceBetween(a, b)
	if !d.Valid {
		t.Fatal("same-domain distance should be valid")
	}
	if math.Abs(d.Blocks-5) > 1e-9 {
		t.Errorf("Blocks = %f, want 5", d.Blocks)
	}
}

func TestDistanceBetween_CrossDomain(t *testing.T) {
	a := &Location{Domain: "overworld"}
	b := &Location{Domain: "nether"}

	if d := DistanceBetween(a, b); d.Valid {
		t.Error("cross-domain distance must be invalid")
	}
}

func TestDistanceBetween_NilEndpoints(t *testing.T) {
	a := &Location{Domain: "overworld"}

	if d := DistanceBetween(nil, a); d.Valid {
		t.Error("nil origin must yield invalid distance")
	}
	if d := DistanceBetween(a, nil); d.Valid {
		t.Error("nil destination must yield invalid distance")
	}
}
