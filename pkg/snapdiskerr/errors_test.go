package snapdiskerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsMatchesCode(t *testing.T) {
	err := Assertion("hash mismatch at offset %d", 1024)
	if !Is(err, CodeAssertion) {
		t.Fatal("Is should match the constructing code")
	}
	if Is(err, CodeCommand) {
		t.Fatal("Is should not match an unrelated code")
	}
}

func TestIsMatchesThroughWrapping(t *testing.T) {
	err := fmt.Errorf("context: %w", MarshallingWrap(errors.New("bad json"), "decode failed"))
	if !Is(err, CodeMarshalling) {
		t.Fatal("Is should see through fmt.Errorf wrapping via Unwrap")
	}
}

func TestUnwrapReturnsCause(t *testing.T) {
	cause := errors.New("eof")
	err := wrap(CodeEndpointTerminated, cause, "recv failed")
	if err.Unwrap() != cause {
		t.Fatal("Unwrap should return the original cause")
	}
}
