package mesh

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/matzehuels/stampforge/pkg/errors"
	"github.com/matzehuels/stampforge/pkg/fsutil"
)

// Format selects the STL encoding.
type Format string

// Supported STL encodings.
const (
	FormatBinary Format = "binary"
	FormatASCII  Format = "ascii"
)

// ValidFormats is the set of supported STL encodings.
var ValidFormats = map[Format]bool{
	FormatBinary: true,
	FormatASCII:  true,
}

const (
	headerSize     = 80
	triangleSize   = 50 // normal + 3 vertices as float32, plus a uint16 attribute
	solidName      = "stampforge"
	binaryHeadText = "stampforge binary STL"
)

// WriteBinary encodes s as binary STL: an 80-byte header, a little-endian
// uint32 triangle count, then per triangle the normal, three vertices and a
// zero attribute word.
func WriteBinary(w io.Writer, s *Solid) error {
	bw := bufio.NewWriter(w)

	var header [headerSize]byte
	copy(header[:], binaryHeadText)
	if _, err := bw.Write(header[:]); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(s.Triangles))); err != nil {
		return err
	}

	var rec [triangleSize]byte
	for _, t := range s.Triangles {
		n := t.Normal()
		putVec(rec[0:12], n)
		putVec(rec[12:24], t[0])
		putVec(rec[24:36], t[1])
		putVec(rec[36:48], t[2])
		if _, err := bw.Write(rec[:]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func putVec(b []byte, v Vertex) {
	binary.LittleEndian.PutUint32(b[0:4], math.Float32bits(float32(v.X)))
	binary.LittleEndian.PutUint32(b[4:8], math.Float32bits(float32(v.Y)))
	binary.LittleEndian.PutUint32(b[8:12], math.Float32bits(float32(v.Z)))
}

// WriteASCII encodes s as ASCII STL.
func WriteASCII(w io.Writer, s *Solid) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "solid %s\n", solidName)
	for _, t := range s.Triangles {
		n := t.Normal()
		fmt.Fprintf(bw, "  facet normal %e %e %e\n", n.X, n.Y, n.Z)
		bw.WriteString("    outer loop\n")
		for _, v := range t {
			fmt.Fprintf(bw, "      vertex %e %e %e\n", v.X, v.Y, v.Z)
		}
		bw.WriteString("    endloop\n")
		bw.WriteString("  endfacet\n")
	}
	fmt.Fprintf(bw, "endsolid %s\n", solidName)
	return bw.Flush()
}

// Encode writes s to w in the given format.
func Encode(w io.Writer, s *Solid, f Format) error {
	switch f {
	case FormatBinary, "":
		return WriteBinary(w, s)
	case FormatASCII:
		return WriteASCII(w, s)
	}
	return errors.New(errors.ErrCodeInvalidFormat, "unknown STL format %q", f)
}

// Marshal returns the encoded bytes of s.
func Marshal(s *Solid, f Format) ([]byte, error) {
	var buf bytes.Buffer
	if f == FormatBinary || f == "" {
		buf.Grow(headerSize + 4 + triangleSize*len(s.Triangles))
	}
	if err := Encode(&buf, s, f); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Save serializes s completely in memory and then writes it with WriteSTL.
func Save(path string, s *Solid, f Format) error {
	data, err := Marshal(s, f)
	if err != nil {
		return err
	}
	return WriteSTL(path, data)
}

// WriteSTL writes already encoded STL bytes to path atomically. On failure
// no file is left at path and the error carries [errors.ErrCodeWrite].
func WriteSTL(path string, data []byte) error {
	if err := fsutil.WriteFileAtomic(path, data, 0644); err != nil {
		return errors.Wrap(errors.ErrCodeWrite, err, "save %s", path)
	}
	return nil
}

// ReadSTL decodes a binary or ASCII STL stream.
// Normals stored in the file are ignored; they are implied by the winding.
func ReadSTL(r io.Reader) (*Solid, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data) >= headerSize+4 {
		n := binary.LittleEndian.Uint32(data[headerSize : headerSize+4])
		if uint64(len(data)) == uint64(headerSize+4)+uint64(n)*triangleSize {
			return decodeBinary(data[headerSize+4:], int(n)), nil
		}
	}
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("solid")) {
		return decodeASCII(data)
	}
	return nil, errors.New(errors.ErrCodeInvalidFormat, "not an STL file")
}

func decodeBinary(body []byte, n int) *Solid {
	s := &Solid{Triangles: make([]Triangle, n)}
	for i := range s.Triangles {
		rec := body[i*triangleSize:]
		for k := 0; k < 3; k++ {
			s.Triangles[i][k] = getVec(rec[12+12*k:])
		}
	}
	return s
}

func getVec(b []byte) Vertex {
	return Vertex{
		X: float64(math.Float32frombits(binary.LittleEndian.Uint32(b[0:4]))),
		Y: float64(math.Float32frombits(binary.LittleEndian.Uint32(b[4:8]))),
		Z: float64(math.Float32frombits(binary.LittleEndian.Uint32(b[8:12]))),
	}
}

func decodeASCII(data []byte) (*Solid, error) {
	s := &Solid{}
	var verts []Vertex
	sc := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || fields[0] != "vertex" {
			continue
		}
		if len(fields) != 4 {
			return nil, errors.New(errors.ErrCodeInvalidFormat, "line %d: malformed vertex", line)
		}
		var v [3]float64
		for i := range v {
			f, err := strconv.ParseFloat(fields[i+1], 64)
			if err != nil {
				return nil, errors.Wrap(errors.ErrCodeInvalidFormat, err, "line %d", line)
			}
			v[i] = f
		}
		verts = append(verts, Vertex{X: v[0], Y: v[1], Z: v[2]})
		if len(verts) == 3 {
			s.Triangles = append(s.Triangles, Triangle{verts[0], verts[1], verts[2]})
			verts = verts[:0]
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(verts) != 0 {
		return nil, errors.New(errors.ErrCodeInvalidFormat, "trailing %d vertices do not form a triangle", len(verts))
	}
	return s, nil
}
