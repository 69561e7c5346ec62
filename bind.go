package modbridge

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/v2"
)

// validate is shared; building a validator caches struct metadata.
var validate = validator.New()

// Bind decodes args into target, a pointer to a struct whose fields carry
// `arg` tags, then runs go-playground validation over it. String values are
// converted to the field types, so "10" fills an int and "5s" a
// time.Duration.
func Bind(args Args, target any) error {
	k := koanf.New(".")
	for key, v := range args {
		if err := k.Set(key, v); err != nil {
			return &ArgError{Key: key, Err: err}
		}
	}
	if err := k.UnmarshalWithConf("", target, koanf.UnmarshalConf{Tag: "arg"}); err != nil {
		return fmt.Errorf("decode arguments: %w", err)
	}
	if err := validate.Struct(target); err != nil {
		return fmt.Errorf("arguments failed validation: %w", err)
	}
	return nil
}

// ParseAndBind is ParseArgs followed by Bind.
func ParseAndBind(argv []string, target any) error {
	args, err := ParseArgs(argv)
	if err != nil {
		return err
	}
	return Bind(args, target)
}
