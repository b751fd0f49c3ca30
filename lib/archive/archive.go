/*package archive saves assembled dataset tables to disk and loads them back.
Archives store each column as an independently zstd-compressed block behind a
small navigation header, so a table written on one machine loads bit-for-bit
on another, including across endianness.*/
package archive

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/DataDog/zstd"

	"github.com/phil-mansfield/remora/lib/table"
)

const (
	// MagicNumber is an arbitrary number at the start of every archive which
	// identifies the file type and the byte order it was written with.
	MagicNumber = 0x2e1b00da
	// ReverseMagicNumber is the magic number as read on a machine with
	// flipped endianness.
	ReverseMagicNumber = 0xda001b2e
	Version = 1

	// compressionLevel trades speed for ratio; level 1 is what the archive
	// uses, since tables are mostly incompressible floats.
	compressionLevel = 1
)

// Meta is the selection metadata stored alongside a table. It records what
// was read and how it was filtered, so a loaded archive is self-describing.
type Meta struct {
	// Kind names the dataset ("hydro", "particles", ...).
	Kind string
	Snap int
	// LMin and LMax are the loaded refinement bounds; they are zero for
	// datasets without levels.
	LMin, LMax int
	// Ranges is the applied selection box as (xlo, xhi, ylo, yhi, zlo, zhi).
	Ranges [6]float64
	BoxLen float64
}

// fixedWidthMeta is the binary layout of Meta's fixed-width fields.
type fixedWidthMeta struct {
	Snap, LMin, LMax, NRows int64
	Ranges                  [6]float64
	BoxLen                  float64
}

// Write saves a table and its metadata to fname, overwriting any existing
// file.
func Write(fname string, meta Meta, t *table.Table) error {
	order := binary.ByteOrder(binary.LittleEndian)
	cols := t.Columns()

	// Compress every column up front so the navigation table can be
	// computed before anything is written.
	blocks := make([][]byte, len(cols))
	names := make([]string, len(cols))
	types := make([]string, len(cols))
	for i, c := range cols {
		raw := &bytes.Buffer{}
		var err error
		switch data := c.Data().(type) {
		case []float64:
			types[i] = "f64"
			err = binary.Write(raw, order, data)
		case []int32:
			types[i] = "i32"
			err = binary.Write(raw, order, data)
		case []int64:
			types[i] = "i64"
			err = binary.Write(raw, order, data)
		default:
			return fmt.Errorf("The column '%s' has a type the archive "+
				"format doesn't support.", c.Name())
		}
		if err != nil { return err }

		blocks[i], err = zstd.CompressLevel(nil, raw.Bytes(),
			compressionLevel)
		if err != nil { return err }
		names[i] = c.Name()
	}

	f, err := os.Create(fname)
	if err != nil { return err }
	defer f.Close()

	if err := binary.Write(f, order, uint32(MagicNumber)); err != nil {
		return err
	}
	if err := binary.Write(f, order, uint32(Version)); err != nil {
		return err
	}

	fixed := fixedWidthMeta{
		Snap: int64(meta.Snap),
		LMin: int64(meta.LMin), LMax: int64(meta.LMax),
		NRows: int64(t.Len()),
		Ranges: meta.Ranges, BoxLen: meta.BoxLen,
	}
	if err := binary.Write(f, order, &fixed); err != nil { return err }
	if err := writeString(f, order, meta.Kind); err != nil { return err }

	if err := binary.Write(f, order, uint32(len(cols))); err != nil {
		return err
	}
	nHd := 8 + binary.Size(&fixed) + 4 + len(meta.Kind) + 4
	for i := range cols {
		nHd += 4 + len(names[i]) + 3
	}
	nHd += 8 * (len(cols) + 1)

	edges := make([]int64, len(cols)+1)
	edges[0] = int64(nHd)
	for i := range blocks {
		edges[i+1] = edges[i] + int64(len(blocks[i]))
	}

	for i := range cols {
		if err := writeString(f, order, names[i]); err != nil { return err }
	}
	for i := range cols {
		if _, err := f.Write([]byte(types[i])); err != nil { return err }
	}
	if err := binary.Write(f, order, edges); err != nil { return err }

	for i := range blocks {
		if _, err := f.Write(blocks[i]); err != nil { return err }
	}
	return nil
}

// Read loads an archive written by Write. The returned table's columns come
// back in their original order with their original types.
func Read(fname string) (Meta, *table.Table, error) {
	meta := Meta{}

	f, err := os.Open(fname)
	if err != nil { return meta, nil, err }
	defer f.Close()

	order, err := checkFile(fname, f)
	if err != nil { return meta, nil, err }

	fixed := fixedWidthMeta{}
	if err := binary.Read(f, order, &fixed); err != nil {
		return meta, nil, err
	}
	kind, err := readString(f, order)
	if err != nil { return meta, nil, err }

	meta = Meta{
		Kind: kind, Snap: int(fixed.Snap),
		LMin: int(fixed.LMin), LMax: int(fixed.LMax),
		Ranges: fixed.Ranges, BoxLen: fixed.BoxLen,
	}
	nRows := int(fixed.NRows)

	var nCols uint32
	if err := binary.Read(f, order, &nCols); err != nil {
		return meta, nil, err
	}

	names := make([]string, nCols)
	for i := range names {
		if names[i], err = readString(f, order); err != nil {
			return meta, nil, err
		}
	}
	types := make([]string, nCols)
	for i := range types {
		b := make([]byte, 3)
		if _, err := io.ReadFull(f, b); err != nil { return meta, nil, err }
		types[i] = string(b)
	}

	edges := make([]int64, nCols+1)
	if err := binary.Read(f, order, edges); err != nil {
		return meta, nil, err
	}

	cols := make([]table.Column, nCols)
	for i := range cols {
		block := make([]byte, edges[i+1]-edges[i])
		if _, err := io.ReadFull(f, block); err != nil {
			return meta, nil, err
		}
		raw, err := zstd.Decompress(nil, block)
		if err != nil {
			return meta, nil, fmt.Errorf("The column '%s' in %s cannot be "+
				"decompressed: %s. The file is corrupted.",
				names[i], fname, err.Error())
		}

		rd := bytes.NewReader(raw)
		switch types[i] {
		case "f64":
			x := make([]float64, nRows)
			if err := binary.Read(rd, order, x); err != nil {
				return meta, nil, err
			}
			cols[i] = table.NewFloat64(names[i], x)
		case "i32":
			x := make([]int32, nRows)
			if err := binary.Read(rd, order, x); err != nil {
				return meta, nil, err
			}
			cols[i] = table.NewInt32(names[i], x)
		case "i64":
			x := make([]int64, nRows)
			if err := binary.Read(rd, order, x); err != nil {
				return meta, nil, err
			}
			cols[i] = table.NewInt64(names[i], x)
		default:
			return meta, nil, fmt.Errorf("The column '%s' in %s has the "+
				"unknown type tag \"%s\".", names[i], fname, types[i])
		}
	}

	t, err := table.New(cols...)
	if err != nil { return meta, nil, err }
	return meta, t, nil
}

// writeString writes a length-prefixed string.
func writeString(f io.Writer, order binary.ByteOrder, s string) error {
	if err := binary.Write(f, order, uint32(len(s))); err != nil {
		return err
	}
	_, err := f.Write([]byte(s))
	return err
}

// readString reads a length-prefixed string.
func readString(f io.Reader, order binary.ByteOrder) (string, error) {
	var n uint32
	if err := binary.Read(f, order, &n); err != nil { return "", err }
	b := make([]byte, n)
	if _, err := io.ReadFull(f, b); err != nil { return "", err }
	return string(b), nil
}

// checkFile reads the magic and version numbers and makes sure this build
// can read the file. The detected byte order is returned.
func checkFile(fname string, f io.Reader) (binary.ByteOrder, error) {
	var magicNumber, version uint32

	order := binary.ByteOrder(binary.LittleEndian)
	if err := binary.Read(f, order, &magicNumber); err != nil {
		return nil, err
	}

	switch magicNumber {
	case MagicNumber:
	case ReverseMagicNumber:
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("%s is not an archive. Archives begin with "+
			"the 32-bit integer %x or %x, but this file begins with %x.",
			fname, uint32(MagicNumber), uint32(ReverseMagicNumber),
			magicNumber)
	}

	if err := binary.Read(f, order, &version); err != nil { return nil, err }
	if version > Version {
		return nil, fmt.Errorf("The file %s was written by archive format "+
			"version %d, but this build only reads up to version %d. "+
			"Update to a newer release to read it.", fname, version, Version)
	}
	return order, nil
}
