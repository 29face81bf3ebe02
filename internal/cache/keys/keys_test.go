package keys

import (
	"regexp"
	"strings"
	"testing"
	"unicode"
)

func TestDeterminism_SameInputsSameKey(t *testing.T) {
	k1 := EntityID("landsat_ot_c2_l2", "LC08_L2SP_044034_20240105_20240115_02_T1")
	k2 := EntityID("landsat_ot_c2_l2", "LC08_L2SP_044034_20240105_20240115_02_T1")
	if k1 != k2 {
		t.Fatalf("determinism failed:\n k1=%s\n k2=%s", k1, k2)
	}
}

func TestNormalization_TrimAndDatasetCase(t *testing.T) {
	k1 := EntityID(" Landsat_OT_C2_L2 ", "  LC08_X  ")
	k2 := EntityID("landsat_ot_c2_l2", "LC08_X")
	if k1 != k2 {
		t.Fatalf("normalized keys differ:\n k1=%s\n k2=%s", k1, k2)
	}
	if !regexp.MustCompile(`^eid:[A-Za-z0-9_.\-]+:[A-Za-z0-9_.\-]*:h=[0-9a-f]{16}$`).MatchString(k1) {
		t.Fatalf("unexpected key shape: %s", k1)
	}
}

func TestDifference_DatasetAndDisplayIDMatter(t *testing.T) {
	if EntityID("a", "X1") == EntityID("b", "X1") {
		t.Fatal("datasets must not share keys")
	}
	if EntityID("a", "X1") == EntityID("a", "X2") {
		t.Fatal("display ids must not share keys")
	}
	// sanitizing maps both to "X-1"; the hash keeps them apart
	if EntityID("a", "X:1") == EntityID("a", "X/1") {
		t.Fatal("sanitized collisions must be separated by the hash")
	}
}

func TestUnicodeSafety_AndTruncation(t *testing.T) {
	long := strings.Repeat("S2B_MSIL2A_", 20) + "雪"
	k := EntityID("sentinel_2a", long)
	for _, r := range k {
		if r > unicode.MaxASCII {
			t.Fatalf("non-ASCII rune leaked into key: %q in %s", r, k)
		}
	}
	parts := strings.Split(k, ":")
	if len(parts) != 4 || len(parts[2]) > maxDisplayIDLen {
		t.Fatalf("display id segment not truncated: %s", k)
	}
}

func TestEntityIDs_Order(t *testing.T) {
	got := EntityIDs("ds", []string{"b", "a"})
	if len(got) != 2 || got[0] != EntityID("ds", "b") || got[1] != EntityID("ds", "a") {
		t.Fatalf("got %v", got)
	}
}
