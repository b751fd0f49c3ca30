package record

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

// seekBuffer wraps a byte slice so it can back a Reader.
type seekBuffer struct{ *bytes.Reader }

func newSeekBuffer(b []byte) *seekBuffer {
	return &seekBuffer{bytes.NewReader(b)}
}

func writeRecords(t *testing.T, data ...interface{}) []byte {
	buf := &bytes.Buffer{}
	wr := NewWriter(buf, binary.LittleEndian)
	for i := range data {
		if err := wr.Record(data[i]); err != nil {
			t.Fatalf("Record(%v) failed: %s", data[i], err.Error())
		}
	}
	return buf.Bytes()
}

func TestScalarRoundTrip(t *testing.T) {
	b := writeRecords(t, int32(-7), int64(1<<40), float64(0.125), "hilbert")
	rd := NewReader("test", newSeekBuffer(b), binary.LittleEndian)

	i32, err := rd.Int32()
	if err != nil {
		t.Fatalf("Int32() failed: %s", err.Error())
	} else if i32 != -7 {
		t.Errorf("Int32() = %d, expected -7.", i32)
	}

	i64, err := rd.Int64()
	if err != nil {
		t.Fatalf("Int64() failed: %s", err.Error())
	} else if i64 != 1<<40 {
		t.Errorf("Int64() = %d, expected %d.", i64, int64(1)<<40)
	}

	f64, err := rd.Float64()
	if err != nil {
		t.Fatalf("Float64() failed: %s", err.Error())
	} else if f64 != 0.125 {
		t.Errorf("Float64() = %g, expected 0.125.", f64)
	}

	s, err := rd.String()
	if err != nil {
		t.Fatalf("String() failed: %s", err.Error())
	} else if s != "hilbert" {
		t.Errorf("String() = %q, expected \"hilbert\".", s)
	}
}

func TestArrayRoundTrip(t *testing.T) {
	xs := []float64{1, 2, 3, 4}
	is := []int32{5, 6, 7}
	b := writeRecords(t, xs, is)
	rd := NewReader("test", newSeekBuffer(b), binary.LittleEndian)

	xsOut := make([]float64, 4)
	if err := rd.Float64s(xsOut); err != nil {
		t.Fatalf("Float64s() failed: %s", err.Error())
	}
	for i := range xs {
		if xs[i] != xsOut[i] {
			t.Errorf("Float64s()[%d] = %g, expected %g.", i, xsOut[i], xs[i])
		}
	}

	isOut := make([]int32, 3)
	if err := rd.Int32s(isOut); err != nil {
		t.Fatalf("Int32s() failed: %s", err.Error())
	}
	for i := range is {
		if is[i] != isOut[i] {
			t.Errorf("Int32s()[%d] = %d, expected %d.", i, isOut[i], is[i])
		}
	}
}

func TestSkipReadEquivalence(t *testing.T) {
	b := writeRecords(t, []float64{9, 9, 9}, int32(42))

	// Reading the first record and skipping it must leave the reader at the
	// same offset.
	rd := NewReader("test", newSeekBuffer(b), binary.LittleEndian)
	if err := rd.Skip(); err != nil {
		t.Fatalf("Skip() failed: %s", err.Error())
	}
	x, err := rd.Int32()
	if err != nil {
		t.Fatalf("Int32() after Skip() failed: %s", err.Error())
	} else if x != 42 {
		t.Errorf("Int32() after Skip() = %d, expected 42.", x)
	}
}

func TestMalformedTrailingMarker(t *testing.T) {
	b := writeRecords(t, []float64{1, 2}, int32(3))
	// Flip a byte of the first record's trailing marker.
	b[4+16] ^= 0xff

	rd := NewReader("test", newSeekBuffer(b), binary.LittleEndian)

	buf := make([]float64, 2)
	err := rd.Float64s(buf)
	malformed := &MalformedRecordError{}
	if err == nil {
		t.Fatalf("Expected Float64s() to fail on a corrupted trailing marker.")
	} else if !errors.As(err, &malformed) {
		t.Fatalf("Expected a MalformedRecordError, got: %s", err.Error())
	}

	// Skipping the corrupted record must detect the same problem.
	rd = NewReader("test", newSeekBuffer(b), binary.LittleEndian)
	err = rd.Skip()
	if err == nil {
		t.Fatalf("Expected Skip() to fail on a corrupted trailing marker.")
	} else if !errors.As(err, &malformed) {
		t.Fatalf("Expected a MalformedRecordError from Skip(), got: %s",
			err.Error())
	}
}

func TestWrongPayloadSize(t *testing.T) {
	b := writeRecords(t, []float64{1, 2, 3})
	rd := NewReader("test", newSeekBuffer(b), binary.LittleEndian)

	buf := make([]float64, 2)
	err := rd.Float64s(buf)
	malformed := &MalformedRecordError{}
	if err == nil {
		t.Fatalf("Expected Float64s() with the wrong length to fail.")
	} else if !errors.As(err, &malformed) {
		t.Fatalf("Expected a MalformedRecordError, got: %s", err.Error())
	}
}
