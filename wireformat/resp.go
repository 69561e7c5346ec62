package wireformat

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/reglet-dev/modbridge/domain/entities"
	domainerrors "github.com/reglet-dev/modbridge/domain/errors"
)

// MaxBulkLen bounds a single bulk string accepted by the parser.
const MaxBulkLen = 512 * 1024 * 1024

// MaxArrayLen bounds the element count of a single array.
const MaxArrayLen = 1 << 24

// ErrProtocol is wrapped by every parse failure.
var ErrProtocol = errors.New("resp protocol error")

// Writer appends RESP2 frames to a buffer.
type Writer struct {
	buf bytes.Buffer
}

// Bytes returns the encoded frames.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// Len returns the number of encoded bytes.
func (w *Writer) Len() int {
	return w.buf.Len()
}

// Reset discards everything written so far.
func (w *Writer) Reset() {
	w.buf.Reset()
}

// SimpleString writes "+s". Line breaks are replaced so the frame stays on
// one line.
func (w *Writer) SimpleString(s string) {
	w.line('+', s)
}

// Error writes "-message".
func (w *Writer) Error(message string) {
	w.line('-', message)
}

// Integer writes ":v".
func (w *Writer) Integer(v int64) {
	w.buf.WriteByte(':')
	w.buf.WriteString(strconv.FormatInt(v, 10))
	w.buf.WriteString("\r\n")
}

// Double writes v as a bulk string, the RESP2 encoding for doubles.
func (w *Writer) Double(v float64) {
	w.Bulk([]byte(strconv.FormatFloat(v, 'g', 17, 64)))
}

// Bulk writes a binary-safe bulk string.
func (w *Writer) Bulk(b []byte) {
	w.buf.WriteByte('$')
	w.buf.WriteString(strconv.Itoa(len(b)))
	w.buf.WriteString("\r\n")
	w.buf.Write(b)
	w.buf.WriteString("\r\n")
}

// ArrayHeader announces n elements.
func (w *Writer) ArrayHeader(n int) {
	w.buf.WriteByte('*')
	w.buf.WriteString(strconv.Itoa(n))
	w.buf.WriteString("\r\n")
}

// Null writes the RESP2 null bulk string.
func (w *Writer) Null() {
	w.buf.WriteString("$-1\r\n")
}

// Value writes v using the frame matching its type. NoReply writes nothing.
func (w *Writer) Value(v entities.Value) {
	switch x := v.(type) {
	case nil, entities.Null:
		w.Null()
	case entities.NoReply:
	case entities.SimpleString:
		w.SimpleString(string(x))
	case entities.BulkString:
		w.Bulk([]byte(x))
	case entities.Bytes:
		w.Bulk(x)
	case entities.Integer:
		w.Integer(int64(x))
	case entities.Float:
		w.Double(float64(x))
	case entities.Array:
		w.ArrayHeader(len(x))
		for _, item := range x {
			w.Value(item)
		}
	}
}

func (w *Writer) line(prefix byte, s string) {
	w.buf.WriteByte(prefix)
	w.buf.WriteString(strings.NewReplacer("\r", " ", "\n", " ").Replace(s))
	w.buf.WriteString("\r\n")
}

// Encode returns the RESP2 encoding of v.
func Encode(v entities.Value) []byte {
	var w Writer
	w.Value(v)
	return w.Bytes()
}

// EncodeError returns the RESP2 encoding of an error reply for err.
func EncodeError(err error) []byte {
	var w Writer
	w.Error(domainerrors.ReplyMessage(err))
	return w.Bytes()
}

// Parse decodes exactly one reply from data. Error replies are returned as a
// *errors.ReplyError; trailing bytes are a protocol error.
func Parse(data []byte) (entities.Value, error) {
	r := bufio.NewReader(bytes.NewReader(data))
	v, err := Read(r)
	var replyErr *domainerrors.ReplyError
	if err != nil && !errors.As(err, &replyErr) {
		return nil, err
	}
	if _, peekErr := r.Peek(1); peekErr != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after reply", ErrProtocol)
	}
	return v, err
}

// ParseAll decodes every reply in data, in order. Error replies are kept in
// the result as errors.
func ParseAll(data []byte) ([]Reply, error) {
	r := bufio.NewReader(bytes.NewReader(data))
	var out []Reply
	for {
		if _, err := r.Peek(1); err == io.EOF {
			return out, nil
		}
		v, err := Read(r)
		var replyErr *domainerrors.ReplyError
		switch {
		case err == nil:
			out = append(out, Reply{Value: v})
		case errors.As(err, &replyErr):
			out = append(out, Reply{Err: replyErr})
		default:
			return out, err
		}
	}
}

// Reply is one decoded frame: a value or an error reply.
type Reply struct {
	Value entities.Value
	Err   *domainerrors.ReplyError
}

// Read decodes one reply from r.
func Read(r *bufio.Reader) (entities.Value, error) {
	prefix, err := r.ReadByte()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: unexpected end of input", ErrProtocol)
		}
		return nil, err
	}
	line, err := readLine(r)
	if err != nil {
		return nil, err
	}

	switch prefix {
	case '+':
		return entities.SimpleString(line), nil
	case '-':
		code, msg, found := strings.Cut(line, " ")
		if !found || strings.ToUpper(code) != code {
			return nil, domainerrors.NewReplyError("", line)
		}
		return nil, domainerrors.NewReplyError(code, msg)
	case ':':
		n, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad integer %q", ErrProtocol, line)
		}
		return entities.Integer(n), nil
	case '$':
		n, err := strconv.Atoi(line)
		if err != nil || n < -1 || n > MaxBulkLen {
			return nil, fmt.Errorf("%w: bad bulk length %q", ErrProtocol, line)
		}
		if n == -1 {
			return entities.Null{}, nil
		}
		buf := make([]byte, n+2)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("%w: short bulk string", ErrProtocol)
		}
		if buf[n] != '\r' || buf[n+1] != '\n' {
			return nil, fmt.Errorf("%w: bulk string not terminated", ErrProtocol)
		}
		return entities.BulkString(buf[:n]), nil
	case '*':
		n, err := strconv.Atoi(line)
		if err != nil || n < -1 || n > MaxArrayLen {
			return nil, fmt.Errorf("%w: bad array length %q", ErrProtocol, line)
		}
		if n == -1 {
			return entities.Null{}, nil
		}
		arr := make(entities.Array, n)
		for i := range arr {
			v, err := Read(r)
			if err != nil {
				var replyErr *domainerrors.ReplyError
				if !errors.As(err, &replyErr) {
					return nil, err
				}
				// Nested error replies keep their text.
				v = entities.SimpleString(replyErr.ToErrorDetail().ReplyMessage())
			}
			arr[i] = v
		}
		return arr, nil
	default:
		return nil, fmt.Errorf("%w: unknown prefix %q", ErrProtocol, prefix)
	}
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("%w: unterminated line", ErrProtocol)
	}
	if len(line) < 2 || line[len(line)-2] != '\r' {
		return "", fmt.Errorf("%w: line not CRLF terminated", ErrProtocol)
	}
	return line[:len(line)-2], nil
}

// Format renders v the way an interactive client shows replies.
func Format(v entities.Value) string {
	var b strings.Builder
	format(&b, v, "")
	return b.String()
}

func format(b *strings.Builder, v entities.Value, indent string) {
	switch x := v.(type) {
	case nil, entities.Null:
		b.WriteString("(nil)")
	case entities.NoReply:
		b.WriteString("(no reply)")
	case entities.SimpleString:
		b.WriteString(string(x))
	case entities.BulkString:
		b.WriteString(strconv.Quote(string(x)))
	case entities.Bytes:
		b.WriteString(strconv.Quote(string(x)))
	case entities.Integer:
		fmt.Fprintf(b, "(integer) %d", int64(x))
	case entities.Float:
		fmt.Fprintf(b, "(double) %s", strconv.FormatFloat(float64(x), 'g', -1, 64))
	case entities.Array:
		if len(x) == 0 {
			b.WriteString("(empty array)")
			return
		}
		width := len(strconv.Itoa(len(x)))
		for i, item := range x {
			if i > 0 {
				b.WriteString("\n")
				b.WriteString(indent)
			}
			label := fmt.Sprintf("%*d) ", width, i+1)
			b.WriteString(label)
			format(b, item, indent+strings.Repeat(" ", len(label)))
		}
	}
}
