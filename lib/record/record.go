/*package record reads and writes Fortran unformatted sequential records, the
framing convention used by the simulation's per-CPU output files. Every record
is a 4-byte length marker, a payload, and a trailing copy of the same marker.
The two markers must agree: a disagreement means the file is corrupted or was
written by an unsupported version of the simulation code.*/
package record

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MalformedRecordError is returned when the leading and trailing length
// markers of a record disagree, or when a record's payload size doesn't match
// the type the caller asked for. Readers never try to recover from it: the
// file offset is no longer trustworthy once framing has broken down.
type MalformedRecordError struct {
	FileName string
	Offset   int64
	Head, Tail int32
	Hint     string
}

func (e *MalformedRecordError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("The record at byte %d of %s is malformed: %s.",
			e.Offset, e.FileName, e.Hint)
	}
	return fmt.Sprintf("The record at byte %d of %s is malformed: the "+
		"leading length marker is %d bytes, but the trailing marker is %d. "+
		"The file is either corrupted or was written by an unsupported "+
		"version of the simulation code.", e.Offset, e.FileName, e.Head, e.Tail)
}

// Reader reads typed records from a single open file. It is not safe for
// concurrent use: each worker opens its own Reader over its own file handle.
type Reader struct {
	fname string
	f     io.ReadSeeker
	order binary.ByteOrder
}

// NewReader creates a Reader over f. fname is only used in error messages.
// The simulation writes little-endian files, but the byte order is a
// parameter so fixtures and cross-endian files can be read too.
func NewReader(fname string, f io.ReadSeeker, order binary.ByteOrder) *Reader {
	return &Reader{fname, f, order}
}

// begin reads the leading length marker of the next record and returns it
// along with the record's starting offset.
func (r *Reader) begin() (n int32, offset int64, err error) {
	offset, err = r.f.Seek(0, io.SeekCurrent)
	if err != nil { return 0, 0, err }

	err = binary.Read(r.f, r.order, &n)
	if err != nil { return 0, offset, err }
	if n < 0 {
		return 0, offset, &MalformedRecordError{
			FileName: r.fname, Offset: offset, Head: n,
			Hint: fmt.Sprintf("the leading length marker is negative (%d)", n),
		}
	}
	return n, offset, nil
}

// end reads the trailing length marker and checks it against the leading one.
func (r *Reader) end(head int32, offset int64) error {
	var tail int32
	err := binary.Read(r.f, r.order, &tail)
	if err != nil { return err }
	if head != tail {
		return &MalformedRecordError{
			FileName: r.fname, Offset: offset, Head: head, Tail: tail,
		}
	}
	return nil
}

// payload reads a record whose payload must be exactly size bytes into data
// via binary.Read.
func (r *Reader) payload(data interface{}, size int32, what string) error {
	head, offset, err := r.begin()
	if err != nil { return err }
	if head != size {
		return &MalformedRecordError{
			FileName: r.fname, Offset: offset, Head: head, Tail: head,
			Hint: fmt.Sprintf("expected a %d-byte %s payload, but the "+
				"record contains %d bytes", size, what, head),
		}
	}
	err = binary.Read(r.f, r.order, data)
	if err != nil { return err }
	return r.end(head, offset)
}

// Int32 reads a record containing a single 32-bit integer.
func (r *Reader) Int32() (int32, error) {
	var x int32
	err := r.payload(&x, 4, "int32")
	return x, err
}

// Int64 reads a record containing a single 64-bit integer.
func (r *Reader) Int64() (int64, error) {
	var x int64
	err := r.payload(&x, 8, "int64")
	return x, err
}

// Float64 reads a record containing a single 64-bit float.
func (r *Reader) Float64() (float64, error) {
	var x float64
	err := r.payload(&x, 8, "float64")
	return x, err
}

// Int32s reads a record containing exactly len(buf) 32-bit integers.
func (r *Reader) Int32s(buf []int32) error {
	return r.payload(buf, int32(4*len(buf)), "[]int32")
}

// Int64s reads a record containing exactly len(buf) 64-bit integers.
func (r *Reader) Int64s(buf []int64) error {
	return r.payload(buf, int32(8*len(buf)), "[]int64")
}

// Float64s reads a record containing exactly len(buf) 64-bit floats.
func (r *Reader) Float64s(buf []float64) error {
	return r.payload(buf, int32(8*len(buf)), "[]float64")
}

// Bytes reads a record containing exactly len(buf) bytes.
func (r *Reader) Bytes(buf []byte) error {
	return r.payload(buf, int32(len(buf)), "[]byte")
}

// String reads a record of unknown length and returns its payload as a
// string.
func (r *Reader) String() (string, error) {
	head, offset, err := r.begin()
	if err != nil { return "", err }
	buf := make([]byte, head)
	_, err = io.ReadFull(r.f, buf)
	if err != nil { return "", err }
	err = r.end(head, offset)
	if err != nil { return "", err }
	return string(buf), nil
}

// Skip advances past the next record without materializing its payload. The
// trailing marker is still checked, so corruption is caught even on skipped
// records.
func (r *Reader) Skip() error {
	head, offset, err := r.begin()
	if err != nil { return err }
	_, err = r.f.Seek(int64(head), io.SeekCurrent)
	if err != nil { return err }
	return r.end(head, offset)
}

// Writer writes Fortran unformatted records. It exists for generating
// synthetic outputs in tests.
type Writer struct {
	f     io.Writer
	order binary.ByteOrder
}

// NewWriter creates a Writer targeting f with the given byte order.
func NewWriter(f io.Writer, order binary.ByteOrder) *Writer {
	return &Writer{f, order}
}

// Record writes data as a single framed record. data must be one of the
// types the Reader can hand back.
func (w *Writer) Record(data interface{}) error {
	n := int32(-1)
	switch x := data.(type) {
	case int32: n = 4
	case int64: n = 8
	case float64: n = 8
	case []int32: n = int32(4 * len(x))
	case []int64: n = int32(8 * len(x))
	case []float64: n = int32(8 * len(x))
	case []byte: n = int32(len(x))
	case string:
		return w.Record([]byte(x))
	default:
		panic(fmt.Sprintf("Internal error: record.Writer cannot frame "+
			"values of type %T.", data))
	}

	if err := binary.Write(w.f, w.order, n); err != nil { return err }
	if err := binary.Write(w.f, w.order, data); err != nil { return err }
	return binary.Write(w.f, w.order, n)
}
