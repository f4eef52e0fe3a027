// Package splat is a headless Gaussian-splat renderer: it fetches SPZ or PLY
// assets, validates them into a point-cloud descriptor and runs a damped
// camera per frame.
package splat

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Format names the container an asset was decoded from.
type Format string

const (
	FormatSPZ Format = "spz"
	FormatPLY Format = "ply"
)

const (
	spzMagic      = 0x5053474e // "NGSP" little-endian
	spzHeaderSize = 16
	spzMaxVersion = 3
	spzMaxPoints  = 10_000_000

	flagAntialiased = 0x1
)

var (
	ErrUnknownFormat = errors.New("splat: unrecognized asset format")
	ErrTruncated     = errors.New("splat: truncated payload")
	ErrOversized     = errors.New("splat: payload larger than header declares")
)

// Cloud describes a decoded point cloud. Payload holds the raw attribute
// bytes and is dropped on Dispose.
type Cloud struct {
	Format         Format `json:"format"`
	Version        uint32 `json:"version,omitempty"`
	Points         int    `json:"points"`
	SHDegree       int    `json:"sh_degree"`
	FractionalBits int    `json:"fractional_bits,omitempty"`
	Antialiased    bool   `json:"antialiased,omitempty"`
	Encoding       string `json:"encoding,omitempty"`
	Payload        []byte `json:"-"`
}

// Decode sniffs data and dispatches to the SPZ or PLY decoder.
func Decode(data []byte) (*Cloud, error) {
	switch {
	case len(data) >= 2 && data[0] == 0x1f && data[1] == 0x8b:
		return DecodeSPZ(data)
	case bytes.HasPrefix(data, []byte("ply\n")), bytes.HasPrefix(data, []byte("ply\r\n")):
		return DecodePLY(data)
	default:
		return nil, ErrUnknownFormat
	}
}

// DecodeSPZ inflates a gzip SPZ stream and validates its header against the
// attribute payload size.
func DecodeSPZ(data []byte) (*Cloud, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("splat: spz gzip: %w", err)
	}
	defer zr.Close()

	var header [spzHeaderSize]byte
	if _, err := io.ReadFull(zr, header[:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrTruncated
		}
		return nil, fmt.Errorf("splat: spz inflate: %w", err)
	}

	magic := binary.LittleEndian.Uint32(header[0:4])
	if magic != spzMagic {
		return nil, fmt.Errorf("splat: spz bad magic %#08x", magic)
	}
	version := binary.LittleEndian.Uint32(header[4:8])
	if version < 1 || version > spzMaxVersion {
		return nil, fmt.Errorf("splat: spz unsupported version %d", version)
	}
	points := binary.LittleEndian.Uint32(header[8:12])
	if points > spzMaxPoints {
		return nil, fmt.Errorf("splat: spz too many points (%d)", points)
	}
	shDegree := int(header[12])
	if shDegree > 3 {
		return nil, fmt.Errorf("splat: spz unsupported sh degree %d", shDegree)
	}
	fractionalBits := int(header[13])
	flags := header[14]

	// The inflated stream is bounded by what the header declares.
	want := spzPayloadSize(version, int(points), shDegree)
	payload, err := io.ReadAll(io.LimitReader(zr, int64(want)+1))
	if err != nil {
		return nil, fmt.Errorf("splat: spz inflate: %w", err)
	}
	if len(payload) < want {
		return nil, fmt.Errorf("%w: have %d bytes, need %d", ErrTruncated, len(payload), want)
	}
	if len(payload) > want {
		return nil, fmt.Errorf("%w: need %d bytes", ErrOversized, want)
	}
	return &Cloud{
		Format:         FormatSPZ,
		Version:        version,
		Points:         int(points),
		SHDegree:       shDegree,
		FractionalBits: fractionalBits,
		Antialiased:    flags&flagAntialiased != 0,
		Payload:        payload,
	}, nil
}

// spzPayloadSize is the attribute block size: positions, alphas, colors,
// scales, rotations and spherical harmonics, packed per attribute.
func spzPayloadSize(version uint32, points, shDegree int) int {
	position := 9
	if version == 1 {
		position = 6
	}
	rotation := 3
	if version >= 3 {
		rotation = 4
	}
	perPoint := position + 1 + 3 + 3 + rotation + shCoefficients(shDegree)*3
	return points * perPoint
}

func shCoefficients(degree int) int {
	switch degree {
	case 1:
		return 3
	case 2:
		return 8
	case 3:
		return 15
	default:
		return 0
	}
}

// shDegreeFromRest maps the number of f_rest_* properties back to a degree.
func shDegreeFromRest(n int) int {
	switch {
	case n >= 45:
		return 3
	case n >= 24:
		return 2
	case n >= 9:
		return 1
	default:
		return 0
	}
}

// DecodePLY parses a PLY header and checks that the vertex element carries
// the properties a splat needs.
func DecodePLY(data []byte) (*Cloud, error) {
	r := bufio.NewReader(bytes.NewReader(data))
	first, err := r.ReadString('\n')
	if err != nil || strings.TrimSpace(first) != "ply" {
		return nil, ErrUnknownFormat
	}

	var (
		encoding   string
		vertices   = -1
		inVertex   bool
		rest       int
		properties = map[string]bool{}
		stride     int
	)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("splat: ply header: %w", ErrTruncated)
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "format":
			if len(fields) < 2 {
				return nil, errors.New("splat: ply format line malformed")
			}
			encoding = fields[1]
		case "element":
			if len(fields) < 3 {
				return nil, errors.New("splat: ply element line malformed")
			}
			inVertex = fields[1] == "vertex"
			if inVertex {
				n, err := strconv.Atoi(fields[2])
				if err != nil || n < 0 {
					return nil, fmt.Errorf("splat: ply vertex count %q", fields[2])
				}
				vertices = n
			}
		case "property":
			if !inVertex || len(fields) < 3 {
				continue
			}
			name := fields[len(fields)-1]
			properties[name] = true
			if strings.HasPrefix(name, "f_rest_") {
				rest++
			}
			stride += plyTypeSize(fields[1])
		case "end_header":
			return finishPLY(r, encoding, vertices, properties, rest, stride)
		}
	}
}

func finishPLY(r *bufio.Reader, encoding string, vertices int, properties map[string]bool, rest, stride int) (*Cloud, error) {
	switch encoding {
	case "ascii", "binary_little_endian", "binary_big_endian":
	default:
		return nil, fmt.Errorf("splat: ply unsupported format %q", encoding)
	}
	if vertices < 0 {
		return nil, errors.New("splat: ply has no vertex element")
	}
	for _, p := range []string{"x", "y", "z"} {
		if !properties[p] {
			return nil, fmt.Errorf("splat: ply vertex missing property %s", p)
		}
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("splat: ply body: %w", err)
	}
	if encoding != "ascii" && stride > 0 && vertices > len(body)/stride {
		return nil, fmt.Errorf("%w: have %d bytes for %d vertices of %d bytes", ErrTruncated, len(body), vertices, stride)
	}
	return &Cloud{
		Format:   FormatPLY,
		Points:   vertices,
		SHDegree: shDegreeFromRest(rest),
		Encoding: encoding,
		Payload:  body,
	}, nil
}

func plyTypeSize(t string) int {
	switch t {
	case "char", "uchar", "int8", "uint8":
		return 1
	case "short", "ushort", "int16", "uint16":
		return 2
	case "int", "uint", "float", "int32", "uint32", "float32":
		return 4
	case "double", "float64":
		return 8
	default:
		return 0
	}
}
