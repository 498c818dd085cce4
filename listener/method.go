package listener

import (
	"context"
	"fmt"
	"reflect"

	"github.com/pkg/errors"
)

// DefaultMethodName is used when a binding does not name the listener method.
const DefaultMethodName = "HandleMessage"

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// ErrMethodNotFound matches every MethodNotFoundError with errors.Is.
var ErrMethodNotFound = errors.New("listener method not found")

// MethodNotFoundError is returned when the handler has no exported method with the given name.
type MethodNotFoundError struct {
	HandlerType reflect.Type
	Method      string
}

func (e *MethodNotFoundError) Error() string {
	return fmt.Sprintf("%s has no exported method %s", e.HandlerType, e.Method)
}

func (e *MethodNotFoundError) Is(target error) bool {
	return target == ErrMethodNotFound
}

// InvalidSignatureError is returned when the listener method cannot be called with a message.
type InvalidSignatureError struct {
	Method string
	Type   reflect.Type
}

func (e *InvalidSignatureError) Error() string {
	return fmt.Sprintf(
		"listener method %s has unsupported signature %s, expected func(T), func(T) error, "+
			"func(context.Context, T) or func(context.Context, T) error",
		e.Method, e.Type,
	)
}

// method is a listener method bound to its handler.
type method struct {
	name string
	fn   reflect.Value

	withContext bool
	argType     reflect.Type
	returnsErr  bool
}

// resolveMethod finds methodName on handler. Handlers which are functions are used directly
// when methodName is empty.
func resolveMethod(handler interface{}, methodName string) (method, error) {
	if handler == nil {
		return method{}, errors.New("handler cannot be nil")
	}

	handlerValue := reflect.ValueOf(handler)

	var fn reflect.Value
	name := methodName

	if handlerValue.Kind() == reflect.Func && methodName == "" {
		fn = handlerValue
		name = handlerValue.Type().String()
	} else {
		if name == "" {
			name = DefaultMethodName
		}
		fn = handlerValue.MethodByName(name)
		if !fn.IsValid() {
			return method{}, &MethodNotFoundError{HandlerType: handlerValue.Type(), Method: name}
		}
	}

	m, ok := methodFromFunc(fn)
	if !ok {
		return method{}, &InvalidSignatureError{Method: name, Type: fn.Type()}
	}
	m.name = name

	return m, nil
}

func methodFromFunc(fn reflect.Value) (method, bool) {
	t := fn.Type()
	if t.IsVariadic() {
		return method{}, false
	}

	m := method{fn: fn}

	switch t.NumIn() {
	case 1:
		m.argType = t.In(0)
	case 2:
		if t.In(0) != contextType {
			return method{}, false
		}
		m.withContext = true
		m.argType = t.In(1)
	default:
		return method{}, false
	}

	switch t.NumOut() {
	case 0:
	case 1:
		if t.Out(0) != errorType {
			return method{}, false
		}
		m.returnsErr = true
	default:
		return method{}, false
	}

	return m, true
}

// invoke calls the method with arg. Panics are returned as RecoveredPanicError.
func (m method) invoke(ctx context.Context, arg reflect.Value) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.WithStack(newRecoveredPanicError(r))
		}
	}()

	args := []reflect.Value{arg}
	if m.withContext {
		args = []reflect.Value{reflect.ValueOf(&ctx).Elem(), arg}
	}

	out := m.fn.Call(args)
	if m.returnsErr && !out[0].IsNil() {
		return out[0].Interface().(error)
	}

	return nil
}
