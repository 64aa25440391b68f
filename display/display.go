// Package display drives a 4-digit SparkFun serial 7-segment display, and
// retains the last frame for debugging the rest of the program without the
// display attached.
//
// The display is mounted upside down, so every character is sent as the
// character whose segment pattern, rotated 180 degrees, draws the character we
// actually want.  The digit columns are also sent in reverse order for the
// same reason.
package display

import (
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	cmdFrame      = 0x76 // followed by 4 glyph bytes
	cmdColon      = 0x77 // followed by colonOn or colonOff
	cmdBrightness = 0x7A // followed by one brightness byte

	colonOn  = 0x10
	colonOff = 0x00

	// Per-digit segment control.  0x7B through 0x7E address physical
	// digits 1 through 4; logical column p (1-4, left to right before
	// reversal) lands on physical digit 5-p because of the mounting.
	segBase = 0x7A

	// Segments E and F: the left-hand vertical bar.  On the inverted
	// mount this is the only way to draw a "1".
	segUpperPair = 0x30

	glyphBlank = 'x'
	glyphDash  = '-'

	digits = 4
)

// glyphs maps each digit to the character whose segment pattern reads as that
// digit once the display is turned over.  There is no entry for '1': its
// rotation is the bare E+F bar, which no character in the display's font
// produces, so '1' is drawn with a segment command instead.
var glyphs = map[byte]byte{
	'0': '0',
	'2': '2',
	'3': 'E',
	'4': 'h',
	'5': '5',
	'6': '9',
	'7': 'L',
	'8': '8',
	'9': '6',
}

var (
	framesWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "display_writes",
		Help: "count of byte sequences written to the display",
	})
	writesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "display_writes_dropped",
		Help: "count of display writes that failed and were dropped",
	})
)

// Display represents the physical display behind a serial port, or a trace of
// one when no port is attached.
type Display struct {
	sink io.Writer

	mu    sync.Mutex
	shown []int
	last  []byte
}

// New returns a Display that writes to sink.  A nil sink logs every frame
// instead of sending it anywhere, for running without the hardware.
func New(sink io.Writer) *Display {
	return &Display{sink: sink}
}

// Show renders up to two arrival times.  An empty slice blanks the display.
func (d *Display) Show(mins []int) {
	if len(mins) > 2 {
		mins = mins[:2]
	}
	d.write(frame(mins))
	d.mu.Lock()
	d.shown = append(d.shown[:0], mins...)
	d.mu.Unlock()
}

// Line draws four dashes, used as a startup indicator before the first fetch.
func (d *Display) Line() {
	d.write(encodeRaw("----"))
	d.mu.Lock()
	d.shown = d.shown[:0]
	d.mu.Unlock()
}

// Blank turns all segments off.
func (d *Display) Blank() {
	d.write(blankFrame())
	d.mu.Lock()
	d.shown = d.shown[:0]
	d.mu.Unlock()
}

// SetBrightness sets the display brightness, 0 (dimmest) to 255.
func (d *Display) SetBrightness(b byte) {
	d.write([]byte{cmdBrightness, b})
}

// Colon turns the colon segments on or off.
func (d *Display) Colon(on bool) {
	b := byte(colonOff)
	if on {
		b = colonOn
	}
	d.write([]byte{cmdColon, b})
}

// Snapshot returns the last values shown and the last bytes written, for the
// status page.
func (d *Display) Snapshot() ([]int, []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	shown := append([]int(nil), d.shown...)
	last := append([]byte(nil), d.last...)
	return shown, last
}

// write sends bytes to the display.  The device never acknowledges anything,
// so a failed write just loses this frame; the next render resends.
func (d *Display) write(b []byte) {
	d.mu.Lock()
	d.last = append(d.last[:0], b...)
	d.mu.Unlock()
	if d.sink == nil {
		log.Printf("display: % x", b)
		return
	}
	if _, err := d.sink.Write(b); err != nil {
		writesDropped.Inc()
		return
	}
	framesWritten.Inc()
}

// frame builds the full byte sequence for up to two arrival times: the
// frame-write command with the glyphs in physical order, then one segment
// command per digit "1".
func frame(mins []int) []byte {
	if len(mins) == 0 {
		return blankFrame()
	}
	var raw string
	if len(mins) == 1 {
		raw = fmt.Sprintf("  %2d", mins[0])
	} else {
		raw = fmt.Sprintf("%2d%2d", mins[0], mins[1])
	}
	// A lone single-digit first number sits flush against a two-digit
	// second one (" 512" reads as 512); shifting it right one column puts
	// a gap between the two numbers.
	if raw[2] != ' ' && raw[0] == ' ' {
		raw = raw[1:2] + " " + raw[2:]
	}
	return encodeRaw(raw)
}

// encodeRaw substitutes glyphs, reverses the column order for the mounting,
// and appends the segment commands for any "1" digits, in the order they
// appear left to right.
func encodeRaw(raw string) []byte {
	if len(raw) != digits {
		// Only reachable through a bug in frame construction, never
		// through bad arrival data.
		log.Fatalf("malformed display frame %q: length %d, want %d", raw, len(raw), digits)
	}
	var ones []int
	g := make([]byte, digits)
	for i := 0; i < digits; i++ {
		switch c := raw[i]; c {
		case ' ':
			g[i] = glyphBlank
		case '1':
			g[i] = glyphBlank
			ones = append(ones, i+1)
		case '-':
			g[i] = glyphDash
		default:
			gl, ok := glyphs[c]
			if !ok {
				log.Fatalf("no glyph for %q in display frame %q", c, raw)
			}
			g[i] = gl
		}
	}
	buf := make([]byte, 0, 1+digits+2*len(ones))
	buf = append(buf, cmdFrame)
	for i := digits - 1; i >= 0; i-- {
		buf = append(buf, g[i])
	}
	for _, p := range ones {
		buf = append(buf, segBase+byte(5-p), segUpperPair)
	}
	return buf
}

func blankFrame() []byte {
	return []byte{cmdFrame, glyphBlank, glyphBlank, glyphBlank, glyphBlank}
}
