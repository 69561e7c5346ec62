package log

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"
)

// LogMessageWire is one guest log record as sent to the log_message host
// function.
type LogMessageWire struct {
	Timestamp time.Time     `json:"timestamp"`
	Attrs     []LogAttrWire `json:"attrs,omitempty"`
	Level     string        `json:"level"`
	Message   string        `json:"message"`
	Module    string        `json:"module,omitempty"`
}

// NewLogMessage builds a wire message stamped with the current time.
func NewLogMessage(module, level, message string) LogMessageWire {
	return LogMessageWire{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Message:   message,
		Module:    module,
	}
}

// Record rebuilds the slog record the host re-emits. Attribute types that
// survive the string encoding are restored.
func (m LogMessageWire) Record() slog.Record {
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	r := slog.NewRecord(ts, SlogLevel(m.Level), m.Message, 0)
	if m.Module != "" {
		r.AddAttrs(slog.String("module", m.Module))
	}
	for _, a := range m.Attrs {
		r.AddAttrs(a.Attr())
	}
	return r
}

// LogAttrWire is one attribute flattened to a string. Type is one of
// string, int64, uint64, bool, float64, time, duration, error, json,
// group or any.
type LogAttrWire struct {
	Key   string `json:"key"`
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Attr converts the wire attribute back into an slog.Attr, falling back to
// a string when the value does not parse as its declared type.
func (w LogAttrWire) Attr() slog.Attr {
	switch w.Type {
	case "int64":
		if n, err := strconv.ParseInt(w.Value, 10, 64); err == nil {
			return slog.Int64(w.Key, n)
		}
	case "uint64":
		if n, err := strconv.ParseUint(w.Value, 10, 64); err == nil {
			return slog.Uint64(w.Key, n)
		}
	case "bool":
		if b, err := strconv.ParseBool(w.Value); err == nil {
			return slog.Bool(w.Key, b)
		}
	case "float64":
		if f, err := strconv.ParseFloat(w.Value, 64); err == nil {
			return slog.Float64(w.Key, f)
		}
	case "time":
		if t, err := time.Parse(time.RFC3339Nano, w.Value); err == nil {
			return slog.Time(w.Key, t)
		}
	case "duration":
		if d, err := time.ParseDuration(w.Value); err == nil {
			return slog.Duration(w.Key, d)
		}
	}
	return slog.String(w.Key, w.Value)
}

func toLogAttrWire(attr slog.Attr) LogAttrWire {
	v := attr.Value.Resolve()
	w := LogAttrWire{Key: attr.Key}

	switch v.Kind() {
	case slog.KindString:
		w.Type, w.Value = "string", v.String()
	case slog.KindInt64:
		w.Type, w.Value = "int64", strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		w.Type, w.Value = "uint64", strconv.FormatUint(v.Uint64(), 10)
	case slog.KindBool:
		w.Type, w.Value = "bool", strconv.FormatBool(v.Bool())
	case slog.KindFloat64:
		w.Type, w.Value = "float64", strconv.FormatFloat(v.Float64(), 'g', -1, 64)
	case slog.KindTime:
		w.Type, w.Value = "time", v.Time().Format(time.RFC3339Nano)
	case slog.KindDuration:
		w.Type, w.Value = "duration", v.Duration().String()
	case slog.KindGroup:
		members := make(map[string]string, len(v.Group()))
		for _, a := range v.Group() {
			members[a.Key] = toLogAttrWire(a).Value
		}
		data, _ := json.Marshal(members)
		w.Type, w.Value = "group", string(data)
	default:
		w.Type, w.Value = anyValue(v.Any())
	}
	return w
}

func anyValue(v any) (typ, value string) {
	if v == nil {
		return "any", "<nil>"
	}
	if err, ok := v.(error); ok {
		return "error", err.Error()
	}
	if data, err := json.Marshal(v); err == nil {
		return "json", string(data)
	}
	return "any", fmt.Sprintf("%v", v)
}
