package types

import "testing"

func TestLsn_IsAligned(t *testing.T) {
	cases := map[Lsn]bool{0: true, 8: true, 16: true, 1: false, 7: false, 9: false}
	for lsn, want := range cases {
		if got := lsn.IsAligned(); got != want {
			t.Errorf("Lsn(%d).IsAligned() = %v, want %v", lsn, got, want)
		}
	}
}

func TestLsn_Align(t *testing.T) {
	cases := map[Lsn]Lsn{0: 0, 1: 8, 7: 8, 8: 8, 9: 16, 15: 16}
	for in, want := range cases {
		if got := in.Align(); got != want {
			t.Errorf("Lsn(%d).Align() = %d, want %d", in, got, want)
		}
	}
}

func TestLsn_MaxMin(t *testing.T) {
	if Max(8, 16) != 16 {
		t.Error("Max(8, 16) should be 16")
	}
	if Max(16, 8) != 16 {
		t.Error("Max(16, 8) should be 16")
	}
	if Min(8, 16) != 8 {
		t.Error("Min(8, 16) should be 8")
	}
	if Min(16, 8) != 8 {
		t.Error("Min(16, 8) should be 8")
	}
}

func TestLsn_String(t *testing.T) {
	if got := Lsn(0).String(); got != "0/0" {
		t.Errorf("Lsn(0).String() = %q, want %q", got, "0/0")
	}
	// 0x100000008 = segment 1, offset 8.
	if got := Lsn(0x100000008).String(); got != "1/8" {
		t.Errorf("Lsn(0x100000008).String() = %q, want %q", got, "1/8")
	}
}
