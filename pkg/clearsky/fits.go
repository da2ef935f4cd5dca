package clearsky

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

const (
	fitsRecordSize   = 80
	fitsRecordsBlock = 36

	// fitsMaxAxis bounds NAXIS1 and NAXIS2. All-sky sensors are far smaller;
	// anything larger is a corrupt header.
	fitsMaxAxis = 1 << 15
)

// fitsHeader holds parsed FITS header cards, keyed by upper-case keyword.
type fitsHeader map[string]string

func (h fitsHeader) str(key string) string { return h[strings.ToUpper(key)] }

func (h fitsHeader) float(key string) (float64, bool) {
	v, ok := h[strings.ToUpper(key)]
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	return f, err == nil
}

// bayerPattern returns the colour filter layout of a one-shot-colour
// camera frame, empty for mono frames.
func (h fitsHeader) bayerPattern() string {
	if p := h.str("BAYERPAT"); p != "" {
		return strings.ToUpper(strings.TrimSpace(p))
	}
	return strings.ToUpper(strings.TrimSpace(h.str("COLORTYP")))
}

// exposure returns the exposure time in seconds, when recorded.
func (h fitsHeader) exposure() (float64, bool) {
	if v, ok := h.float("EXPTIME"); ok {
		return v, true
	}
	return h.float("EXPOSURE")
}

// fitsFrame is the primary HDU of a FITS capture, scaled to 16-bit.
type fitsFrame struct {
	Pixels   []uint16
	Width    int
	Height   int
	BitDepth int
	Header   fitsHeader
}

// readFits decodes the primary HDU of a FITS stream. Only 2D images are
// accepted; for NAXIS3 cubes the first plane is used.
func readFits(r io.Reader) (*fitsFrame, error) {
	var bitpix, naxis, width, height int
	bzero, bscale := 0.0, 1.0
	header := fitsHeader{}
	card := make([]byte, fitsRecordSize)

	for done := false; !done; {
		for i := 0; i < fitsRecordsBlock; i++ {
			if _, err := io.ReadFull(r, card); err != nil {
				return nil, fmt.Errorf("reading FITS header: %w", err)
			}
			keyword := strings.TrimSpace(string(card[:8]))
			if keyword == "END" {
				done = true
				if rest := fitsRecordsBlock - 1 - i; rest > 0 {
					if _, err := io.CopyN(io.Discard, r, int64(rest*fitsRecordSize)); err != nil {
						return nil, fmt.Errorf("reading FITS header padding: %w", err)
					}
				}
				break
			}
			if card[8] != '=' || card[9] != ' ' {
				continue
			}

			raw := strings.TrimSpace(strings.SplitN(string(card[10:]), "/", 2)[0])
			if v := fitsValue(raw); keyword != "" && v != "" {
				header[strings.ToUpper(keyword)] = v
			}
			switch keyword {
			case "BITPIX":
				bitpix, _ = strconv.Atoi(raw)
			case "NAXIS":
				naxis, _ = strconv.Atoi(raw)
			case "NAXIS1":
				width, _ = strconv.Atoi(raw)
			case "NAXIS2":
				height, _ = strconv.Atoi(raw)
			case "BZERO":
				bzero, _ = strconv.ParseFloat(raw, 64)
			case "BSCALE":
				bscale, _ = strconv.ParseFloat(raw, 64)
			}
		}
	}

	if naxis < 2 || width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid FITS: NAXIS=%d, NAXIS1=%d, NAXIS2=%d", naxis, width, height)
	}
	if width > fitsMaxAxis || height > fitsMaxAxis {
		return nil, fmt.Errorf("invalid FITS: %dx%d exceeds the %d pixel axis limit", width, height, fitsMaxAxis)
	}

	n := width * height
	var sampleSize int
	var sample func(b []byte) float64
	switch bitpix {
	case 8:
		sampleSize = 1
		sample = func(b []byte) float64 { return float64(b[0]) }
	case 16:
		sampleSize = 2
		sample = func(b []byte) float64 { return float64(int16(binary.BigEndian.Uint16(b))) }
	case 32:
		sampleSize = 4
		sample = func(b []byte) float64 { return float64(int32(binary.BigEndian.Uint32(b))) }
	case -32:
		sampleSize = 4
		sample = func(b []byte) float64 { return float64(math.Float32frombits(binary.BigEndian.Uint32(b))) }
	default:
		return nil, fmt.Errorf("unsupported BITPIX: %d", bitpix)
	}

	// The buffer grows with the bytes actually present, so a header that
	// claims more data than the file holds fails before any large allocation.
	want := n * sampleSize
	raw, err := io.ReadAll(io.LimitReader(r, int64(want)))
	if err != nil {
		return nil, fmt.Errorf("reading FITS pixel data (BITPIX %d): %w", bitpix, err)
	}
	if len(raw) < want {
		return nil, fmt.Errorf("reading FITS pixel data (BITPIX %d): got %d of %d bytes: %w", bitpix, len(raw), want, io.ErrUnexpectedEOF)
	}

	// -32 data from capture software is usually normalized to [0, 1].
	scale := 1.0
	if bitpix == -32 && bzero == 0 && bscale == 1 {
		scale = 65535
	}

	pixels := make([]uint16, n)
	for i := 0; i < n; i++ {
		v := (sample(raw[i*sampleSize:])*bscale + bzero) * scale
		pixels[i] = uint16(math.Min(math.Max(v, 0), 65535))
	}

	bitDepth := 16
	if bitpix == 8 {
		bitDepth = 8
	}
	return &fitsFrame{Pixels: pixels, Width: width, Height: height, BitDepth: bitDepth, Header: header}, nil
}

func fitsValue(raw string) string {
	switch {
	case raw == "":
		return ""
	case raw == "T":
		return "True"
	case raw == "F":
		return "False"
	case strings.HasPrefix(raw, "'"):
		if end := strings.LastIndex(raw, "'"); end > 0 {
			return strings.TrimRight(raw[1:end], " ")
		}
		return strings.Trim(raw, "' ")
	}
	return raw
}

// fitsToMat converts a decoded FITS frame into a [0, 1] float Mat,
// interpolating RGGB colour frames down to luminance.
func fitsToMat(f *fitsFrame) Mat {
	if f.Header.bayerPattern() == "RGGB" {
		return debayerToMat(f.Pixels, f.BitDepth, f.Width, f.Height)
	}
	return ToFloat32Mat(f.Pixels, f.BitDepth, f.Width, f.Height)
}
