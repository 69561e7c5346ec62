package module

import (
	"fmt"
	"unicode/utf8"

	"github.com/reglet-dev/modbridge/domain/errors"
	"github.com/reglet-dev/modbridge/domain/ports"
)

// DecodeArgs converts argc host string handles into owned strings. It is all
// or nothing: the first handle that cannot be read or is not valid UTF-8
// aborts the decode and no partial result is returned.
func DecodeArgs(host ports.Host, argv []ports.StringHandle, argc int) ([]string, error) {
	if argc < 0 || argc > len(argv) {
		return nil, &errors.DecodeError{
			Index: argc,
			Err:   fmt.Errorf("argument count %d out of range for %d handles", argc, len(argv)),
		}
	}

	args := make([]string, argc)
	for i := 0; i < argc; i++ {
		s, err := decodeString(host, argv[i], i)
		if err != nil {
			return nil, err
		}
		args[i] = s
	}
	return args, nil
}

// decodeString copies the bytes behind h. string(b) always copies, so the
// result never aliases host memory.
func decodeString(host ports.Host, h ports.StringHandle, index int) (string, error) {
	b, ok := host.StringBytes(h)
	if !ok {
		return "", &errors.DecodeError{Index: index, Err: fmt.Errorf("invalid string handle %d", h)}
	}
	if !utf8.Valid(b) {
		return "", &errors.DecodeError{Index: index}
	}
	return string(b), nil
}
