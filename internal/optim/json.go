package optim

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Float is a float64 whose JSON form survives divergence: NaN and the
// infinities encode as the strings "NaN", "+Inf" and "-Inf".
type Float float64

func (f Float) MarshalJSON() ([]byte, error) {
	return appendFloat(nil, float64(f)), nil
}

func (f *Float) UnmarshalJSON(data []byte) error {
	v, err := parseFloat(data)
	if err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// MarshalJSON encodes v as a two-element array, using the Float encoding
// for each coordinate.
func (v Vector) MarshalJSON() ([]byte, error) {
	buf := []byte{'['}
	buf = appendFloat(buf, v[0])
	buf = append(buf, ',')
	buf = appendFloat(buf, v[1])
	return append(buf, ']'), nil
}

func (v *Vector) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("vector: %w", err)
	}
	if len(raw) != 2 {
		return fmt.Errorf("vector: expected 2 coordinates, got %d", len(raw))
	}
	for i, r := range raw {
		c, err := parseFloat(r)
		if err != nil {
			return fmt.Errorf("vector: %w", err)
		}
		v[i] = c
	}
	return nil
}

func appendFloat(buf []byte, f float64) []byte {
	switch {
	case math.IsNaN(f):
		return append(buf, `"NaN"`...)
	case math.IsInf(f, 1):
		return append(buf, `"+Inf"`...)
	case math.IsInf(f, -1):
		return append(buf, `"-Inf"`...)
	}
	return strconv.AppendFloat(buf, f, 'g', -1, 64)
}

func parseFloat(data []byte) (float64, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return 0, err
		}
		switch s {
		case "NaN":
			return math.NaN(), nil
		case "+Inf", "Inf":
			return math.Inf(1), nil
		case "-Inf":
			return math.Inf(-1), nil
		}
		return 0, fmt.Errorf("invalid number %q", s)
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return 0, err
	}
	return f, nil
}
