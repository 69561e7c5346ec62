package entities

import "fmt"

// Value is a successful command result convertible to the host's reply
// representation. The set of implementations is closed.
type Value interface {
	replyValue()
}

// SimpleString replies with a status line such as "OK".
type SimpleString string

// BulkString replies with a binary-safe text string.
type BulkString string

// Bytes replies with a binary-safe byte string.
type Bytes []byte

// Integer replies with a signed 64-bit integer.
type Integer int64

// Float replies with a double.
type Float float64

// Array replies with an ordered list of values.
type Array []Value

// Null replies with the host's null value.
type Null struct{}

// NoReply writes nothing. Use it when the handler already replied through
// the Context.
type NoReply struct{}

func (SimpleString) replyValue() {}
func (BulkString) replyValue()   {}
func (Bytes) replyValue()        {}
func (Integer) replyValue()      {}
func (Float) replyValue()        {}
func (Array) replyValue()        {}
func (Null) replyValue()         {}
func (NoReply) replyValue()      {}

// OK is the conventional "OK" status reply.
var OK Value = SimpleString("OK")

// Strings builds an Array of BulkString values.
func Strings(items ...string) Array {
	arr := make(Array, len(items))
	for i, s := range items {
		arr[i] = BulkString(s)
	}
	return arr
}

// ValueOf converts common Go values to a Value. Unsupported types are
// formatted with %v as a BulkString.
func ValueOf(v any) Value {
	switch x := v.(type) {
	case nil:
		return Null{}
	case Value:
		return x
	case string:
		return BulkString(x)
	case []byte:
		return Bytes(x)
	case bool:
		if x {
			return Integer(1)
		}
		return Integer(0)
	case int:
		return Integer(x)
	case int32:
		return Integer(x)
	case int64:
		return Integer(x)
	case uint32:
		return Integer(x)
	case float32:
		return Float(x)
	case float64:
		return Float(x)
	case []string:
		return Strings(x...)
	case []any:
		arr := make(Array, len(x))
		for i, item := range x {
			arr[i] = ValueOf(item)
		}
		return arr
	default:
		return BulkString(fmt.Sprintf("%v", x))
	}
}
