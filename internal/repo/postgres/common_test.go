package postgres

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/rugtrack-labs/rugtrack-go/internal/domain"
	"github.com/rugtrack-labs/rugtrack-go/internal/repo"
)

func TestNullIfEmpty(t *testing.T) {
	if got := nullIfEmpty("  "); got.Valid {
		t.Fatalf("nullIfEmpty(blank)=%v, want invalid", got)
	}
	got := nullIfEmpty(" a ")
	if !got.Valid || got.String != "a" {
		t.Fatalf("nullIfEmpty(a)=%v, want trimmed valid", got)
	}
}

func TestDecodeMetadata(t *testing.T) {
	meta, err := decodeMetadata(nil)
	if err != nil {
		t.Fatalf("decodeMetadata(nil) err=%v", err)
	}
	if meta == nil || len(meta) != 0 {
		t.Fatalf("decodeMetadata(nil)=%v, want empty map", meta)
	}

	meta, err = decodeMetadata([]byte(`{"fiber":"wool"}`))
	if err != nil {
		t.Fatalf("decodeMetadata err=%v", err)
	}
	if meta["fiber"] != "wool" {
		t.Fatalf("fiber=%v, want wool", meta["fiber"])
	}

	if _, err := decodeMetadata([]byte(`not json`)); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestEncodeMetadataNil(t *testing.T) {
	raw, err := encodeMetadata(nil)
	if err != nil {
		t.Fatalf("encodeMetadata(nil) err=%v", err)
	}
	if string(raw) != "{}" {
		t.Fatalf("encodeMetadata(nil)=%s, want {}", raw)
	}
	var roundTrip domain.Metadata
	roundTrip, err = decodeMetadata(raw)
	if err != nil || len(roundTrip) != 0 {
		t.Fatalf("round trip=%v err=%v", roundTrip, err)
	}
}

func TestHandleNotFound(t *testing.T) {
	if err := handleNotFound(sql.ErrNoRows); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("handleNotFound(ErrNoRows)=%v, want ErrNotFound", err)
	}
	other := errors.New("boom")
	if err := handleNotFound(other); err != other {
		t.Fatalf("handleNotFound(other)=%v, want passthrough", err)
	}
}

func TestLimitOrDefault(t *testing.T) {
	if got := limitOrDefault(0); got != 100 {
		t.Fatalf("limitOrDefault(0)=%d, want 100", got)
	}
	if got := limitOrDefault(5000); got != 100 {
		t.Fatalf("limitOrDefault(5000)=%d, want 100", got)
	}
	if got := limitOrDefault(25); got != 25 {
		t.Fatalf("limitOrDefault(25)=%d, want 25", got)
	}
}
