package attrproto

import (
	"bytes"
	"testing"
)

func TestWriteAndScanRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.PrintStr("request", "vrfy_req_query"); err != nil {
		t.Fatalf("PrintStr: %v", err)
	}
	if err := w.PrintStr("address", "user@example.com"); err != nil {
		t.Fatalf("PrintStr: %v", err)
	}
	if err := w.PrintNum("flags", 42); err != nil {
		t.Fatalf("PrintNum: %v", err)
	}
	if err := w.End(); err != nil {
		t.Fatalf("End: %v", err)
	}

	r := NewReader(&buf, false)
	attrs, err := r.ScanAll()
	if err != nil {
		t.Fatalf("ScanAll: %v", err)
	}
	if attrs["request"].Str != "vrfy_req_query" {
		t.Errorf("request = %q", attrs["request"].Str)
	}
	if attrs["address"].Str != "user@example.com" {
		t.Errorf("address = %q", attrs["address"].Str)
	}
	if attrs["flags"].Num != 42 {
		t.Errorf("flags = %d", attrs["flags"].Num)
	}
}

func TestScanStrictRejectsUnknown(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	_ = w.PrintStr("surprise", "value")
	_ = w.End()

	r := NewReader(&buf, true)
	r.Expect("request", "address")
	if _, _, err := r.Scan(); err == nil {
		t.Fatalf("Scan: expected strict-mode rejection, got nil error")
	}
}

func TestMultipleFramesOnOneStream(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	_ = w.PrintStr("request", "one")
	_ = w.End()
	_ = w.PrintStr("request", "two")
	_ = w.End()

	r := NewReader(&buf, false)
	first, err := r.ScanAll()
	if err != nil {
		t.Fatalf("first ScanAll: %v", err)
	}
	if first["request"].Str != "one" {
		t.Fatalf("first request = %q", first["request"].Str)
	}
	second, err := r.ScanAll()
	if err != nil {
		t.Fatalf("second ScanAll: %v", err)
	}
	if second["request"].Str != "two" {
		t.Fatalf("second request = %q", second["request"].Str)
	}
}
