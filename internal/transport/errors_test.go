package transport

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassifyTimeout(t *testing.T) {
	err := Classify("hafas.trip", "http://x", fmt.Errorf("wrapped: %w", context.DeadlineExceeded))
	if KindOf(err) != KindTimeout {
		t.Fatalf("expected timeout, got %s", KindOf(err))
	}
	if !IsTransient(err) {
		t.Fatalf("expected timeout to be transient")
	}
}

func TestRejectedIsNotTransient(t *testing.T) {
	err := Rejected("hafas.trip", &Response{StatusCode: 500, URL: "http://x", Body: []byte("boom")})
	if IsTransient(err) {
		t.Fatalf("expected rejection to be permanent")
	}
	var fe *FetchError
	if !errors.As(err, &fe) || fe.Status != 500 || fe.Body != "boom" {
		t.Fatalf("unexpected fetch error %#v", err)
	}
}

func TestClassifyUnknown(t *testing.T) {
	err := Classify("op", "", errors.New("odd"))
	if KindOf(err) != KindUnknown {
		t.Fatalf("expected unknown, got %s", KindOf(err))
	}
}
