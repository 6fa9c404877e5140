package directory

import (
	"fmt"
	"testing"
)

func TestEncodeUnicodePwd(t *testing.T) {
	got, err := encodeUnicodePwd("engineer")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []byte{
		0x22, 0x00, 0x65, 0x00, 0x6E, 0x00, 0x67, 0x00, 0x69, 0x00,
		0x6E, 0x00, 0x65, 0x00, 0x65, 0x00, 0x72, 0x00, 0x22, 0x00,
	}
	if len(got) != len(want) {
		t.Fatalf("encodeUnicodePwd length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("encodeUnicodePwd()[%d] = %#x, want %#x (%s)", i, got[i], want[i], fmt.Sprintf("%x", got))
		}
	}
}

func TestRandomPasswordLengthAndCharset(t *testing.T) {
	pw, err := randomPassword()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pw) != 22 {
		t.Fatalf("randomPassword length = %d, want 22", len(pw))
	}
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789!@#$%^&*"
	for _, r := range pw {
		found := false
		for _, c := range charset {
			if r == c {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("randomPassword produced out-of-charset rune %q", r)
		}
	}
}

func TestRandomPasswordVaries(t *testing.T) {
	a, err := randomPassword()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := randomPassword()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a == b {
		t.Fatalf("two calls to randomPassword produced the same password; expected randomness")
	}
}
