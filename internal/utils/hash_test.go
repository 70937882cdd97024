package utils

import "testing"

func TestHashStringDeterministic(t *testing.T) {
	a := HashString("password", "key")
	b := HashString("password", "key")
	if a != b {
		t.Errorf("same input hashed differently: %q vs %q", a, b)
	}
	if a == HashString("password", "other-key") {
		t.Error("different keys produced the same digest")
	}
}

func TestVerifyHash(t *testing.T) {
	digest := HashString("password", "key")

	if !VerifyHash("password", "key", digest) {
		t.Error("expected digest to verify")
	}
	if VerifyHash("wrong", "key", digest) {
		t.Error("wrong password verified")
	}
	if VerifyHash("password", "wrong", digest) {
		t.Error("wrong key verified")
	}
}
