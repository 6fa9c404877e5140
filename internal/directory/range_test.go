package directory

import "testing"

func TestParseRangeName(t *testing.T) {
	cases := []struct {
		in         string
		wantAttr   string
		wantLow    string
		wantHigh   string
		wantRanged bool
	}{
		{in: "member;range=0-1499", wantAttr: "member", wantLow: "0", wantHigh: "1499", wantRanged: true},
		{in: "member;range=1500-*", wantAttr: "member", wantLow: "1500", wantHigh: "*", wantRanged: true},
		{in: "member;Range=0-*", wantAttr: "member", wantLow: "0", wantHigh: "*", wantRanged: true},
		{in: "sAMAccountName", wantRanged: false},
	}

	for _, tc := range cases {
		attr, low, high, ranged := parseRangeName(tc.in)
		if ranged != tc.wantRanged {
			t.Errorf("parseRangeName(%q) ranged = %v, want %v", tc.in, ranged, tc.wantRanged)
			continue
		}
		if !ranged {
			continue
		}
		if attr != tc.wantAttr || low != tc.wantLow || high != tc.wantHigh {
			t.Errorf("parseRangeName(%q) = (%q,%q,%q), want (%q,%q,%q)",
				tc.in, attr, low, high, tc.wantAttr, tc.wantLow, tc.wantHigh)
		}
	}
}
