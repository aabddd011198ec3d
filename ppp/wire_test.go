package ppp

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeRecord(t *testing.T) {
	got := encodeRecord(nil, CIMPPE, 0x01000060)
	want := []byte{18, 6, 0x01, 0x00, 0x00, 0x60}
	if !bytes.Equal(got, want) {
		t.Errorf("encodeRecord() = % x, want % x", got, want)
	}
}

func TestEncodeRecordAppends(t *testing.T) {
	buf := []byte{0xff}
	got := encodeRecord(buf, CIAsyncmap, 0)
	want := []byte{0xff, 2, 6, 0, 0, 0, 0}
	if !bytes.Equal(got, want) {
		t.Errorf("encodeRecord() = % x, want % x", got, want)
	}
}

func TestDecodeRecords(t *testing.T) {
	buf := []byte{
		2, 6, 0, 0, 0, 0, // ACCM, value 0
		18, 6, 0x01, 0x00, 0x00, 0x60, // MPPE
	}
	records, err := decodeRecords(buf)
	if err != nil {
		t.Fatalf("decodeRecords() error = %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("decodeRecords() returned %d records, want 2", len(records))
	}
	if records[0].code != CIAsyncmap || records[1].code != CIMPPE {
		t.Errorf("decodeRecords() codes = %v, %v", records[0].code, records[1].code)
	}
	if !bytes.Equal(records[1].value, []byte{0x01, 0x00, 0x00, 0x60}) {
		t.Errorf("decodeRecords() value = % x", records[1].value)
	}
}

func TestDecodeRecordsMalformed(t *testing.T) {
	cases := [][]byte{
		{2},                   // trailing byte with no length
		{2, 10, 0, 0, 0, 0},   // length beyond buffer
	}
	for _, buf := range cases {
		if _, err := decodeRecords(buf); !errors.Is(err, ErrMalformed) {
			t.Errorf("decodeRecords(% x) error = %v, want ErrMalformed", buf, err)
		}
	}
}

func TestDecodeRecordsNonStandardLength(t *testing.T) {
	// A record with length != 6 still decodes at the framing level; it's
	// up to the handler to reject it based on its own expectations.
	buf := []byte{18, 4, 0xAA, 0xBB}
	records, err := decodeRecords(buf)
	if err != nil {
		t.Fatalf("decodeRecords() error = %v", err)
	}
	if len(records) != 1 || len(records[0].value) != 2 {
		t.Fatalf("decodeRecords() = %+v", records)
	}
}

func TestDecodePayload(t *testing.T) {
	bits, present, err := decodePayload(nil)
	if err != nil || present || bits != 0 {
		t.Errorf("decodePayload(nil) = %v, %v, %v", bits, present, err)
	}

	bits, present, err = decodePayload([]byte{0x01, 0x00, 0x00, 0x60})
	if err != nil || !present || bits != 0x01000060 {
		t.Errorf("decodePayload() = %v, %v, %v", bits, present, err)
	}

	_, present, err = decodePayload([]byte{0x01, 0x02})
	if !present || !errors.Is(err, ErrMalformed) {
		t.Errorf("decodePayload(short) error = %v, present = %v", err, present)
	}
}
