package directory

import (
	"bytes"
	"testing"
)

func TestWriteLDIFEntry(t *testing.T) {
	e := newEntry("CN=Jo User,DC=mst,DC=edu")
	e.appendValues("cn", []string{"Jo User"})
	e.appendValues("objectGUID", []string{"\x00ab"})

	var buf bytes.Buffer
	if err := writeLDIFEntry(&buf, e); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "dn: CN=Jo User,DC=mst,DC=edu\ncn: Jo User\nobjectGUID:: AGFi\n\n"
	if got := buf.String(); got != want {
		t.Fatalf("LDIF output = %q, want %q", got, want)
	}
}

func TestSafeLDIFString(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"plain", true},
		{"", true},
		{" leading space", false},
		{":colon", false},
		{"<angle", false},
		{"embedded\nnewline", false},
		{"embedded\x00null", false},
	}
	for _, tc := range cases {
		if got := safeLDIFString(tc.in); got != tc.want {
			t.Errorf("safeLDIFString(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestEntryCaseInsensitiveLookup(t *testing.T) {
	e := newEntry("CN=x")
	e.appendValues("sAMAccountName", []string{"juser"})
	if e.Value("samaccountname") != "juser" {
		t.Fatalf("attribute lookup must be case-insensitive")
	}
	if e.Get("SAMACCOUNTNAME") == nil {
		t.Fatalf("Get must be case-insensitive")
	}
}

func TestEntryMarksKnownBinaryAttributes(t *testing.T) {
	e := newEntry("CN=x")
	e.appendValues("objectSid", []string{"\x01\x05"})
	e.appendValues("displayName", []string{"Jo"})

	if a := e.Get("objectSid"); a == nil || !a.Binary {
		t.Fatalf("objectSid must be marked binary")
	}
	if a := e.Get("displayName"); a == nil || a.Binary {
		t.Fatalf("displayName must not be marked binary")
	}
}
