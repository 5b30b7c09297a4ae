package apperrors_test

import (
	"errors"
	"fmt"
	"io"
	"testing"

	apperrors "studysync/internal/platform/errors"
)

func TestTransportErrorMatchesSentinelAndCause(t *testing.T) {
	t.Parallel()
	err := fmt.Errorf("upload snapshot: %w", apperrors.Transport("upload", "p1/project.json", io.ErrUnexpectedEOF))
	if !errors.Is(err, apperrors.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
	var terr *apperrors.TransportError
	if !errors.As(err, &terr) || terr.Op != "upload" {
		t.Fatalf("expected TransportError with op upload, got %#v", terr)
	}
	if errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("transport error must not match ErrNotFound")
	}
}

func TestTransportNilPassthrough(t *testing.T) {
	t.Parallel()
	if err := apperrors.Transport("list", "", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}
