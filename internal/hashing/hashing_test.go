package hashing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFingerprintDeterministic(t *testing.T) {
	first := Fingerprint("some offensive text")
	second := Fingerprint("some offensive text")
	assert.Equal(t, first, second)
}

func TestFingerprintDistinctInputs(t *testing.T) {
	assert.NotEqual(t, Fingerprint("hello"), Fingerprint("hello "))
	assert.NotEqual(t, Fingerprint(""), Fingerprint("x"))
}

func TestFingerprintShape(t *testing.T) {
	digest := Fingerprint("anything")
	assert.Len(t, digest, 64)
	assert.Regexp(t, "^[0-9a-f]+$", digest)
}
