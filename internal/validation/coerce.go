package validation

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// Coercion failures. Messages double as ValidationError messages.
var (
	ErrNotNumber  = errors.New("must be a number")
	ErrNotFinite  = errors.New("must be a finite number")
	ErrNotInteger = errors.New("must be an integer")
	ErrOutOfRange = errors.New("is out of range")
	ErrNotFlag    = errors.New("must be 0 or 1")
	ErrNotString  = errors.New("must be a string")
)

// CoerceFloat reads a JSON number, json.Number or numeric string.
func CoerceFloat(raw any) (float64, error) {
	var v float64
	switch x := raw.(type) {
	case float64:
		v = x
	case float32:
		v = float64(x)
	case int:
		v = float64(x)
	case int64:
		v = float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, ErrNotNumber
		}
		v = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, ErrNotNumber
		}
		v = f
	default:
		return 0, ErrNotNumber
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, ErrNotFinite
	}
	return v, nil
}

// CoerceInt truncates numeric values toward zero. Strings must hold an integer.
func CoerceInt(raw any) (int, error) {
	switch x := raw.(type) {
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0, ErrNotInteger
		}
		return n, nil
	case json.Number:
		if n, err := x.Int64(); err == nil && n >= math.MinInt32 && n <= math.MaxInt32 {
			return int(n), nil
		}
	}
	f, err := CoerceFloat(raw)
	if err != nil {
		return 0, ErrNotInteger
	}
	if math.Abs(f) > math.MaxInt32 {
		return 0, ErrOutOfRange
	}
	return int(f), nil
}

// CoerceBool accepts booleans, the numbers 0 and 1 and the strings
// "0", "1", "true" and "false". Anything else is ErrNotFlag.
func CoerceBool(raw any) (bool, error) {
	switch x := raw.(type) {
	case bool:
		return x, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "1", "true":
			return true, nil
		case "0", "false":
			return false, nil
		}
		return false, ErrNotFlag
	}
	f, err := CoerceFloat(raw)
	if err != nil {
		return false, ErrNotFlag
	}
	switch f {
	case 1:
		return true, nil
	case 0:
		return false, nil
	}
	return false, ErrNotFlag
}

// CoerceString accepts only JSON strings and trims surrounding whitespace.
func CoerceString(raw any) (string, error) {
	s, ok := raw.(string)
	if !ok {
		return "", ErrNotString
	}
	return strings.TrimSpace(s), nil
}

// FieldDecoder reads typed fields out of a loosely typed JSON object and
// collects one ValidationError per field that cannot be coerced. Absent and
// null fields leave the destination untouched.
type FieldDecoder struct {
	data map[string]any
	errs ValidationErrors
}

// NewFieldDecoder wraps a decoded JSON object.
func NewFieldDecoder(data map[string]any) *FieldDecoder {
	return &FieldDecoder{data: data}
}

func (d *FieldDecoder) lookup(key string) (any, bool) {
	v, ok := d.data[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Fail records a field error.
func (d *FieldDecoder) Fail(key, message string) {
	d.errs.Add(key, message)
}

func (d *FieldDecoder) Float(key string, dst *float64) {
	if raw, ok := d.lookup(key); ok {
		v, err := CoerceFloat(raw)
		if err != nil {
			d.Fail(key, err.Error())
			return
		}
		*dst = v
	}
}

func (d *FieldDecoder) Int(key string, dst *int) {
	if raw, ok := d.lookup(key); ok {
		v, err := CoerceInt(raw)
		if err != nil {
			d.Fail(key, err.Error())
			return
		}
		*dst = v
	}
}

func (d *FieldDecoder) Bool(key string, dst *bool) {
	if raw, ok := d.lookup(key); ok {
		v, err := CoerceBool(raw)
		if err != nil {
			d.Fail(key, err.Error())
			return
		}
		*dst = v
	}
}

func (d *FieldDecoder) String(key string, dst *string) {
	if raw, ok := d.lookup(key); ok {
		v, err := CoerceString(raw)
		if err != nil {
			d.Fail(key, err.Error())
			return
		}
		*dst = v
	}
}

// Strings reads an array of strings.
func (d *FieldDecoder) Strings(key string, dst *[]string) {
	raw, ok := d.lookup(key)
	if !ok {
		return
	}
	items, isList := raw.([]any)
	if !isList {
		d.Fail(key, "must be a list of strings")
		return
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, isString := item.(string)
		if !isString {
			d.Fail(key, "must be a list of strings")
			return
		}
		out = append(out, s)
	}
	*dst = out
}

// Err returns the collected errors, or nil when every field decoded.
func (d *FieldDecoder) Err() error {
	if len(d.errs) == 0 {
		return nil
	}
	return d.errs
}
