package display

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
)

func TestFrame(t *testing.T) {
	testData := []struct {
		name string
		mins []int
		want []byte
	}{
		{
			name: "no buses",
			mins: nil,
			want: []byte{cmdFrame, 'x', 'x', 'x', 'x'},
		},
		{
			name: "one single-digit bus",
			mins: []int{5},
			want: []byte{cmdFrame, '5', 'x', 'x', 'x'},
		},
		{
			name: "one two-digit bus",
			mins: []int{12},
			want: []byte{cmdFrame, '2', 'x', 'x', 'x', 0x7C, segUpperPair},
		},
		{
			name: "two single-digit buses",
			mins: []int{7, 8},
			want: []byte{cmdFrame, '8', 'x', 'L', 'x'},
		},
		{
			name: "single then double shifts right",
			// " 512" would read as one number; the shift gives "5 12".
			mins: []int{5, 12},
			want: []byte{cmdFrame, '2', 'x', 'x', '5', 0x7C, segUpperPair},
		},
		{
			name: "two two-digit buses",
			mins: []int{23, 46},
			want: []byte{cmdFrame, '9', 'h', 'E', '2'},
		},
		{
			name: "ones compensated left to right",
			mins: []int{11, 11},
			want: []byte{cmdFrame, 'x', 'x', 'x', 'x', 0x7E, segUpperPair, 0x7D, segUpperPair, 0x7C, segUpperPair, 0x7B, segUpperPair},
		},
		{
			name: "zero minutes",
			mins: []int{0},
			want: []byte{cmdFrame, '0', 'x', 'x', 'x'},
		},
		{
			name: "upside-down glyphs",
			mins: []int{34, 67},
			want: []byte{cmdFrame, 'L', '9', 'h', 'E'},
		},
	}

	for _, test := range testData {
		t.Run(test.name, func(t *testing.T) {
			got := frame(test.mins)
			if want := test.want; !reflect.DeepEqual(got, want) {
				t.Errorf("frame(%v):\n  got: % x\n want: % x", test.mins, got, want)
			}
			// The same input always yields the same bytes.
			if again := frame(test.mins); !reflect.DeepEqual(again, got) {
				t.Errorf("frame(%v) not deterministic:\n  got: % x\n then: % x", test.mins, got, again)
			}
		})
	}
}

func TestFrameAlwaysFourGlyphs(t *testing.T) {
	for _, mins := range [][]int{nil, {0}, {1}, {9}, {10}, {99}, {1, 1}, {5, 12}, {99, 99}} {
		got := frame(mins)
		if got[0] != cmdFrame {
			t.Errorf("frame(%v): first byte %#x, want %#x", mins, got[0], cmdFrame)
		}
		glyphCount := 0
		for _, b := range got[1:] {
			if b == segBase+1 || b == segBase+2 || b == segBase+3 || b == segBase+4 {
				break
			}
			glyphCount++
		}
		if glyphCount != digits {
			t.Errorf("frame(%v): %d glyphs before segment commands, want %d", mins, glyphCount, digits)
		}
	}
}

func TestLineFrame(t *testing.T) {
	got := encodeRaw("----")
	want := []byte{cmdFrame, '-', '-', '-', '-'}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("line frame:\n  got: % x\n want: % x", got, want)
	}
}

func TestShowWritesToSink(t *testing.T) {
	buf := new(bytes.Buffer)
	d := New(buf)
	d.Show([]int{5, 12})
	want := []byte{cmdFrame, '2', 'x', 'x', '5', 0x7C, segUpperPair}
	if got := buf.Bytes(); !reflect.DeepEqual(got, want) {
		t.Errorf("bytes written:\n  got: % x\n want: % x", got, want)
	}

	shown, last := d.Snapshot()
	if want := []int{5, 12}; !reflect.DeepEqual(shown, want) {
		t.Errorf("shown values:\n  got: %v\n want: %v", shown, want)
	}
	if !reflect.DeepEqual(last, want) {
		t.Errorf("last frame:\n  got: % x\n want: % x", last, want)
	}
}

type failingSink struct{}

func (failingSink) Write([]byte) (int, error) { return 0, errors.New("device unplugged") }

func TestWriteFailureIsSwallowed(t *testing.T) {
	d := New(failingSink{})
	d.Show([]int{5}) // must not panic or escalate
	d.Blank()
	if shown, _ := d.Snapshot(); len(shown) != 0 {
		t.Errorf("shown after blank:\n  got: %v\n want: []", shown)
	}
}

func TestBrightnessAndColon(t *testing.T) {
	buf := new(bytes.Buffer)
	d := New(buf)
	d.SetBrightness(0x40)
	d.Colon(true)
	d.Colon(false)
	want := []byte{cmdBrightness, 0x40, cmdColon, colonOn, cmdColon, colonOff}
	if got := buf.Bytes(); !reflect.DeepEqual(got, want) {
		t.Errorf("control bytes:\n  got: % x\n want: % x", got, want)
	}
}
