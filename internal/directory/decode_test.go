package directory

import "testing"

func TestHexSIDToText(t *testing.T) {
	got, err := HexSIDToText("01 05 00 00 00 00 00 05 15 00 00 00 A0 65 CF 7E 78 4B 9B 5F E7 7C 87 70 F5 03 00 00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "S-1-5-21-2127521184-1604012920-1887927527-1013"
	if got != want {
		t.Fatalf("HexSIDToText = %q, want %q", got, want)
	}
}

func TestHexSIDToTextLowercaseAndPunctuation(t *testing.T) {
	got, err := HexSIDToText("01:05:00:00:00:00:00:05:15:00:00:00:a0:65:cf:7e:78:4b:9b:5f:e7:7c:87:70:f5:03:00:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "S-1-5-21-2127521184-1604012920-1887927527-1013" {
		t.Fatalf("HexSIDToText with lowercase/colons = %q", got)
	}
}

func TestConvertFiletimeRoundTrip(t *testing.T) {
	secs := int64(1700000000)
	ft := secs*filetime100nsPerSec + filetimeEpochOffsetSecs*filetime100nsPerSec
	if got := ConvertFiletime(ft); got != secs {
		t.Fatalf("ConvertFiletime round trip = %d, want %d", got, secs)
	}
}

func TestUACMergeFormula(t *testing.T) {
	current := uint32(0x0202)
	set := uint32(0x10000)
	reset := uint32(0x0020)
	got := (current | set) &^ reset
	if got != 0x10202 {
		t.Fatalf("UAC merge = %#x, want %#x", got, 0x10202)
	}
}

func TestParseUACOrderAndLabels(t *testing.T) {
	labels := ParseUAC(uacNormalAccount | uacNeverExpires)
	want := []string{"Normal Account", "Password Never Expires"}
	if len(labels) != len(want) {
		t.Fatalf("ParseUAC labels = %v, want %v", labels, want)
	}
	for i, w := range want {
		if labels[i] != w {
			t.Fatalf("ParseUAC label[%d] = %q, want %q", i, labels[i], w)
		}
	}
}

func TestParseAccountTypeDefault(t *testing.T) {
	if got := ParseAccountType(0x30000000); got != "Normal Account" {
		t.Fatalf("ParseAccountType(0x30000000) = %q", got)
	}
	if got := ParseAccountType(0xDEADBEEF); got != "Unknown" {
		t.Fatalf("ParseAccountType(unknown) = %q, want Unknown", got)
	}
}

func TestParseProtocolSettings(t *testing.T) {
	blob := append([]byte("POP3"), append(protocolSettingsSep, []byte("INBOX")...)...)
	got, err := ParseProtocolSettings(blob)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Protocol != "POP3" {
		t.Fatalf("protocol = %q, want POP3", got.Protocol)
	}
	if len(got.Fields) != 1 || got.Fields[0] != "INBOX" {
		t.Fatalf("fields = %v, want [INBOX]", got.Fields)
	}
}

func TestParseProtocolSettingsUnknownProtocol(t *testing.T) {
	blob := append([]byte("FTP"), append(protocolSettingsSep, []byte("x")...)...)
	if _, err := ParseProtocolSettings(blob); err == nil {
		t.Fatalf("expected error for unrecognized protocol tag")
	}
}
