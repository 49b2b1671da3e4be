package container

import (
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

const (
	identifierPrefix = "plugin-"
	constructorName  = "New"
)

// ParseIdentifier splits a plugin-<type>:<path> identifier.
func ParseIdentifier(id string) (kind, path string, ok bool) {
	if !strings.HasPrefix(id, identifierPrefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(id, identifierPrefix)
	idx := strings.Index(rest, ":")
	if idx <= 0 || idx == len(rest)-1 {
		return "", "", false
	}
	return rest[:idx], rest[idx+1:], true
}

// Interpreter serves feature identifiers by evaluating the feature's Go
// source with yaegi. A feature file declares package main and a New function
// returning either (any, error) or any.
type Interpreter struct{}

// NewInterpreter returns an Interpreter using the standard library symbols.
func NewInterpreter() *Interpreter {
	return &Interpreter{}
}

// Load implements Loader.
func (in *Interpreter) Load(id string) (Factory, error) {
	_, path, ok := ParseIdentifier(id)
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrUnknownIdentifier, id)
	}
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("container: read %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(code))) == 0 {
		return nil, fmt.Errorf("container: %s is empty", path)
	}
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("container: load stdlib symbols: %w", err)
	}
	if _, err := i.EvalPath(path); err != nil {
		return nil, fmt.Errorf("container: interpret %s: %w", path, err)
	}
	fnValue, err := i.Eval(constructorName)
	if err != nil {
		return nil, fmt.Errorf("container: %s must define %s() (any, error): %w", path, constructorName, err)
	}
	if !fnValue.IsValid() || fnValue.Kind() != reflect.Func {
		return nil, fmt.Errorf("container: %s: %s is not a function", path, constructorName)
	}
	if err := checkConstructor(fnValue.Type()); err != nil {
		return nil, fmt.Errorf("container: %s: %w", path, err)
	}
	return func() (any, error) {
		out, err := invokeConstructor(fnValue)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return out, nil
	}, nil
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// checkConstructor accepts func() T and func() (T, error).
func checkConstructor(fn reflect.Type) error {
	if fn.NumIn() != 0 {
		return fmt.Errorf("%s must take no arguments", constructorName)
	}
	switch fn.NumOut() {
	case 1:
		return nil
	case 2:
		if out := fn.Out(1); out.Kind() != reflect.Interface || !out.Implements(errorType) {
			return fmt.Errorf("%s must return (any, error), second result is %s", constructorName, fn.Out(1))
		}
		return nil
	default:
		return fmt.Errorf("%s must return (any[, error]), got %d results", constructorName, fn.NumOut())
	}
}

func invokeConstructor(fn reflect.Value) (any, error) {
	results := fn.Call(nil)
	if len(results) == 2 && !results[1].IsNil() {
		if err, ok := results[1].Interface().(error); ok {
			return nil, err
		}
		return nil, fmt.Errorf("%s returned a non-error second value", constructorName)
	}
	return results[0].Interface(), nil
}
