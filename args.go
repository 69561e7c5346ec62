package modbridge

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Args holds load arguments given as KEY value pairs. Keys are lowercased.
type Args map[string]string

// ArgError reports a missing or malformed load argument.
type ArgError struct {
	Err error
	Key string
}

func (e *ArgError) Error() string {
	return fmt.Sprintf("argument %q: %v", e.Key, e.Err)
}

func (e *ArgError) Unwrap() error {
	return e.Err
}

// ParseArgs pairs up argv as KEY value. A trailing key without a value and
// a key given twice are errors.
func ParseArgs(argv []string) (Args, error) {
	if len(argv)%2 != 0 {
		return nil, &ArgError{Key: strings.ToLower(argv[len(argv)-1]), Err: fmt.Errorf("missing value")}
	}
	args := make(Args, len(argv)/2)
	for i := 0; i < len(argv); i += 2 {
		key := strings.ToLower(argv[i])
		if key == "" {
			return nil, &ArgError{Key: key, Err: fmt.Errorf("empty key at position %d", i)}
		}
		if _, dup := args[key]; dup {
			return nil, &ArgError{Key: key, Err: fmt.Errorf("given more than once")}
		}
		args[key] = argv[i+1]
	}
	return args, nil
}

// Keys returns the argument names in sorted order.
func (a Args) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String returns the raw value for key.
func (a Args) String(key string) (string, bool) {
	v, ok := a[strings.ToLower(key)]
	return v, ok
}

// Int parses the value for key as a base-10 integer.
func (a Args) Int(key string) (int, bool) {
	v, ok := a.String(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}

// Float parses the value for key as a float64.
func (a Args) Float(key string) (float64, bool) {
	v, ok := a.String(key)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	return f, err == nil
}

// Bool accepts the strconv.ParseBool forms plus yes and no.
func (a Args) Bool(key string) (bool, bool) {
	v, ok := a.String(key)
	if !ok {
		return false, false
	}
	switch strings.ToLower(v) {
	case "yes":
		return true, true
	case "no":
		return false, true
	}
	b, err := strconv.ParseBool(v)
	return b, err == nil
}

// Duration parses the value for key with time.ParseDuration.
func (a Args) Duration(key string) (time.Duration, bool) {
	v, ok := a.String(key)
	if !ok {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	return d, err == nil
}

// List splits the value for key on commas, dropping empty items.
func (a Args) List(key string) ([]string, bool) {
	v, ok := a.String(key)
	if !ok {
		return nil, false
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out, true
}

// MustString returns the value for key or an ArgError when it is absent.
func (a Args) MustString(key string) (string, error) {
	v, ok := a.String(key)
	if !ok {
		return "", &ArgError{Key: key, Err: fmt.Errorf("required")}
	}
	return v, nil
}

// MustInt returns the value for key or an ArgError when it is absent or
// not an integer.
func (a Args) MustInt(key string) (int, error) {
	n, ok := a.Int(key)
	if !ok {
		return 0, &ArgError{Key: key, Err: fmt.Errorf("required integer")}
	}
	return n, nil
}

// MustBool returns the value for key or an ArgError when it is absent or
// not a boolean.
func (a Args) MustBool(key string) (bool, error) {
	b, ok := a.Bool(key)
	if !ok {
		return false, &ArgError{Key: key, Err: fmt.Errorf("required boolean")}
	}
	return b, nil
}

func (a Args) StringDefault(key, def string) string {
	if v, ok := a.String(key); ok {
		return v
	}
	return def
}

func (a Args) IntDefault(key string, def int) int {
	if n, ok := a.Int(key); ok {
		return n
	}
	return def
}

func (a Args) BoolDefault(key string, def bool) bool {
	if b, ok := a.Bool(key); ok {
		return b
	}
	return def
}

func (a Args) DurationDefault(key string, def time.Duration) time.Duration {
	if d, ok := a.Duration(key); ok {
		return d
	}
	return def
}
