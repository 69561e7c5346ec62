package wireformat

import (
	"bufio"
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reglet-dev/modbridge/domain/entities"
	domainerrors "github.com/reglet-dev/modbridge/domain/errors"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name  string
		value entities.Value
		want  string
	}{
		{name: "simple", value: entities.OK, want: "+OK\r\n"},
		{name: "simple with newline", value: entities.SimpleString("a\r\nb"), want: "+a  b\r\n"},
		{name: "bulk", value: entities.BulkString("hello"), want: "$5\r\nhello\r\n"},
		{name: "binary", value: entities.Bytes{0, '\r', '\n'}, want: "$3\r\n\x00\r\n\r\n"},
		{name: "integer", value: entities.Integer(-7), want: ":-7\r\n"},
		{name: "double", value: entities.Float(1.5), want: "$3\r\n1.5\r\n"},
		{name: "null", value: entities.Null{}, want: "$-1\r\n"},
		{name: "nil", value: nil, want: "$-1\r\n"},
		{name: "no reply", value: entities.NoReply{}, want: ""},
		{name: "array", value: entities.Array{entities.Integer(1), entities.Strings("a")}, want: "*2\r\n:1\r\n*1\r\n$1\r\na\r\n"},
		{name: "empty array", value: entities.Array{}, want: "*0\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(Encode(tt.value)))
		})
	}
}

func TestEncodeError(t *testing.T) {
	assert.Equal(t, "-ERR boom\r\n", string(EncodeError(errors.New("boom"))))
	assert.Equal(t, "-WRONGTYPE Operation against a key holding the wrong kind of value\r\n",
		string(EncodeError(domainerrors.ErrWrongType)))
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want entities.Value
	}{
		{name: "simple", in: "+OK\r\n", want: entities.SimpleString("OK")},
		{name: "integer", in: ":42\r\n", want: entities.Integer(42)},
		{name: "bulk", in: "$5\r\nhello\r\n", want: entities.BulkString("hello")},
		{name: "empty bulk", in: "$0\r\n\r\n", want: entities.BulkString("")},
		{name: "null bulk", in: "$-1\r\n", want: entities.Null{}},
		{name: "null array", in: "*-1\r\n", want: entities.Null{}},
		{
			name: "nested",
			in:   "*3\r\n:1\r\n*1\r\n$1\r\na\r\n$-1\r\n",
			want: entities.Array{entities.Integer(1), entities.Array{entities.BulkString("a")}, entities.Null{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_ErrorReply(t *testing.T) {
	_, err := Parse([]byte("-WRONGTYPE bad type\r\n"))
	var replyErr *domainerrors.ReplyError
	require.ErrorAs(t, err, &replyErr)
	assert.Equal(t, "WRONGTYPE", replyErr.Code)
	assert.Equal(t, "bad type", replyErr.Message)

	_, err = Parse([]byte("-something odd\r\n"))
	require.ErrorAs(t, err, &replyErr)
	assert.Empty(t, replyErr.Code)
	assert.Equal(t, "something odd", replyErr.Message)
}

func TestParse_ProtocolErrors(t *testing.T) {
	inputs := map[string]string{
		"empty":          "",
		"unknown prefix": "!x\r\n",
		"no crlf":        "+OK\n",
		"unterminated":   "+OK",
		"bad integer":    ":abc\r\n",
		"short bulk":     "$10\r\nabc\r\n",
		"bad bulk tail":  "$3\r\nabcXY",
		"bad array len":  "*-2\r\n",
		"trailing":       "+OK\r\n+OK\r\n",
		"short array":    "*2\r\n:1\r\n",
	}

	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(in))
			assert.ErrorIs(t, err, ErrProtocol)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	value := entities.Array{
		entities.SimpleString("OK"),
		entities.Integer(3),
		entities.Strings("x", "y"),
		entities.Null{},
	}
	got, err := Parse(Encode(value))
	require.NoError(t, err)
	assert.Equal(t, entities.Array{
		entities.SimpleString("OK"),
		entities.Integer(3),
		entities.Array{entities.BulkString("x"), entities.BulkString("y")},
		entities.Null{},
	}, got)
}

func TestParseAll(t *testing.T) {
	var w Writer
	w.SimpleString("OK")
	w.Error("ERR nope")
	w.Integer(1)

	replies, err := ParseAll(w.Bytes())
	require.NoError(t, err)
	require.Len(t, replies, 3)
	assert.Equal(t, entities.SimpleString("OK"), replies[0].Value)
	require.NotNil(t, replies[1].Err)
	assert.Equal(t, "nope", replies[1].Err.Message)
	assert.Equal(t, entities.Integer(1), replies[2].Value)
}

func TestRead_Stream(t *testing.T) {
	r := bufio.NewReader(bytes.NewBufferString(":1\r\n:2\r\n"))
	v1, err := Read(r)
	require.NoError(t, err)
	v2, err := Read(r)
	require.NoError(t, err)
	assert.Equal(t, []entities.Value{entities.Integer(1), entities.Integer(2)}, []entities.Value{v1, v2})
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "OK", Format(entities.OK))
	assert.Equal(t, `"hi"`, Format(entities.BulkString("hi")))
	assert.Equal(t, "(integer) 5", Format(entities.Integer(5)))
	assert.Equal(t, "(nil)", Format(entities.Null{}))
	assert.Equal(t, "(empty array)", Format(entities.Array{}))
	assert.Equal(t, "1) \"a\"\n2) 1) (integer) 1\n   2) (nil)",
		Format(entities.Array{entities.BulkString("a"), entities.Array{entities.Integer(1), entities.Null{}}}))
}

func TestCallRequestWire(t *testing.T) {
	req := CallRequestWire{Command: "GET", Args: []string{"k"}}
	require.NoError(t, req.Validate())
	assert.Equal(t, []string{"GET", "k"}, req.Argv())

	assert.Error(t, (&CallRequestWire{}).Validate())
}
