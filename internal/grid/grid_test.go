package grid

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/san-kum/pcdm/internal/pcdm"
)

func TestRegularReferenceGrid(t *testing.T) {
	c, err := Regular(Spec{MinEast: -7, StepEast: 0.1, MaxEast: 7, MinNorth: -5, StepNorth: 0.1, MaxNorth: 5})
	if err != nil {
		t.Fatalf("regular failed: %v", err)
	}

	if c.Len() != 14241 {
		t.Fatalf("expected 14241 points, got %d", c.Len())
	}
	if len(c.North) != c.Len() {
		t.Fatalf("expected equal lengths, got %d and %d", len(c.East), len(c.North))
	}

	// north varies fastest
	if c.East[0] != -7 || c.North[0] != -5 {
		t.Errorf("expected first point (-7,-5), got (%f,%f)", c.East[0], c.North[0])
	}
	if c.East[1] != -7 || math.Abs(c.North[1]+4.9) > 1e-12 {
		t.Errorf("expected second point (-7,-4.9), got (%f,%f)", c.East[1], c.North[1])
	}
	last := c.Len() - 1
	if math.Abs(c.East[last]-7) > 1e-12 || math.Abs(c.North[last]-5) > 1e-12 {
		t.Errorf("expected last point (7,5), got (%f,%f)", c.East[last], c.North[last])
	}
}

func TestRegularInvalid(t *testing.T) {
	tests := []struct {
		name string
		spec Spec
		want error
	}{
		{"zero step", Spec{MinEast: 0, StepEast: 0, MaxEast: 1, MinNorth: 0, StepNorth: 1, MaxNorth: 1}, ErrInvalidStep},
		{"negative step", Spec{MinEast: 0, StepEast: 1, MaxEast: 1, MinNorth: 0, StepNorth: -1, MaxNorth: 1}, ErrInvalidStep},
		{"inverted range", Spec{MinEast: 2, StepEast: 1, MaxEast: 1, MinNorth: 0, StepNorth: 1, MaxNorth: 1}, ErrInvalidRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Regular(tt.spec); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestSinglePointGrid(t *testing.T) {
	c, err := Regular(Spec{MinEast: 1, StepEast: 1, MaxEast: 1, MinNorth: 2, StepNorth: 1, MaxNorth: 2})
	if err != nil {
		t.Fatalf("regular failed: %v", err)
	}
	if c.Len() != 1 || c.East[0] != 1 || c.North[0] != 2 {
		t.Errorf("expected single point (1,2), got %v %v", c.East, c.North)
	}
}

func TestCSVRoundTrip(t *testing.T) {
	in := pcdm.HorizontalCoordinates{East: []float64{0, 1.5, -2}, North: []float64{3, 4, 0.25}}

	var buf bytes.Buffer
	if err := WriteCSV(&buf, in); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "east,north\n") {
		t.Errorf("expected header, got %q", buf.String())
	}

	out, err := ReadCSV(&buf)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if out.Len() != 3 || out.East[1] != 1.5 || out.North[2] != 0.25 {
		t.Errorf("unexpected coordinates: %v %v", out.East, out.North)
	}
}

func TestReadCSVWithoutHeader(t *testing.T) {
	out, err := ReadCSV(strings.NewReader("1, 2\n3,4\n"))
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if out.Len() != 2 || out.East[0] != 1 || out.North[1] != 4 {
		t.Errorf("unexpected coordinates: %v %v", out.East, out.North)
	}
}

func TestReadCSVErrors(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader("east,north\n")); !errors.Is(err, ErrNoPoints) {
		t.Errorf("expected ErrNoPoints, got %v", err)
	}
	if _, err := ReadCSV(strings.NewReader("1,2\nx,3\n")); err == nil {
		t.Error("expected error for invalid number")
	}
	if _, err := ReadCSV(strings.NewReader("1,2\n3\n")); err == nil {
		t.Error("expected error for short row")
	}
	for _, in := range []string{
		"east,north\n0,0\nNaN,1\n2,2\n",
		"0,0\n1,+Inf\n",
		"-Inf,0\n",
	} {
		if _, err := ReadCSV(strings.NewReader(in)); err == nil || !strings.Contains(err.Error(), "non-finite") {
			t.Errorf("%q: expected non-finite coordinate error, got %v", in, err)
		}
	}
}

func TestWriteCSVMismatch(t *testing.T) {
	err := WriteCSV(&bytes.Buffer{}, pcdm.HorizontalCoordinates{East: []float64{1}, North: nil})
	if !errors.Is(err, pcdm.ErrInvalidInputShape) {
		t.Errorf("expected ErrInvalidInputShape, got %v", err)
	}
}
