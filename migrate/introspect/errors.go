package introspect

import (
	"errors"

	"github.com/satishbabariya/prisma-engines-go/runtime"
)

var (
	ErrUnsupportedProvider = errors.New("unsupported database provider")
	ErrIntrospectionFailed = errors.New("database introspection failed")
)

func unknownType(raw string) error {
	return &runtime.ConversionError{Kind: "column type", Value: raw}
}
