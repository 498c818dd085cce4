package converter

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// DefaultTag is the tag used for bindings without a converter type.
const DefaultTag = "default"

// ErrUnknownType matches every UnknownTypeError with errors.Is.
var ErrUnknownType = errors.New("unknown message converter type")

// UnknownTypeError is returned by Factory.Resolve for tags without a registered converter.
type UnknownTypeError struct {
	Tag string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown message converter type %q", e.Tag)
}

func (e *UnknownTypeError) Is(target error) bool {
	return target == ErrUnknownType
}

// Constructor creates a converter for a tag.
// It is called on every Resolve, so it should return a value which is safe to share.
type Constructor func() MessageConverter

// Factory resolves message converters by type tag.
// Tags are case-insensitive, surrounding whitespace is ignored and "-" is equivalent to "_".
type Factory struct {
	constructors map[string]Constructor
	lock         sync.RWMutex
}

// NewFactory creates a factory without any converter registered.
func NewFactory() *Factory {
	return &Factory{constructors: map[string]Constructor{}}
}

// DefaultFactory creates a factory with the built-in converters:
//
//	"", default, simple        SimpleConverter
//	json, jackson2_json        JSONConverter
//	protobuf, proto            ProtoConverter
//	gogo_protobuf, gogoproto   GogoProtoConverter
func DefaultFactory() *Factory {
	f := NewFactory()

	f.MustRegister(func() MessageConverter { return SimpleConverter{} }, SimpleTag, DefaultTag)
	f.MustRegister(func() MessageConverter { return JSONConverter{} }, JSONTag, "jackson2_json")
	f.MustRegister(func() MessageConverter { return ProtoConverter{} }, ProtobufTag, "proto")
	f.MustRegister(func() MessageConverter { return GogoProtoConverter{} }, GogoProtobufTag, "gogoproto")

	return f
}

// NormalizeTag returns the canonical form of a converter tag. Blank tags are DefaultTag.
func NormalizeTag(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	tag = strings.Replace(tag, "-", "_", -1)
	if tag == "" {
		return DefaultTag
	}
	return tag
}

// Register registers constructor for every given tag.
func (f *Factory) Register(constructor Constructor, tags ...string) error {
	if constructor == nil {
		return errors.New("missing converter constructor")
	}
	if len(tags) == 0 {
		return errors.New("at least one tag is required")
	}

	f.lock.Lock()
	defer f.lock.Unlock()

	for _, tag := range tags {
		tag = NormalizeTag(tag)
		if _, ok := f.constructors[tag]; ok {
			return errors.Errorf("converter for tag %q is already registered", tag)
		}
	}
	for _, tag := range tags {
		f.constructors[NormalizeTag(tag)] = constructor
	}

	return nil
}

// MustRegister works like Register, but panics on error.
func (f *Factory) MustRegister(constructor Constructor, tags ...string) {
	if err := f.Register(constructor, tags...); err != nil {
		panic(err)
	}
}

// Resolve returns the converter registered for tag.
func (f *Factory) Resolve(tag string) (MessageConverter, error) {
	f.lock.RLock()
	constructor, ok := f.constructors[NormalizeTag(tag)]
	f.lock.RUnlock()

	if !ok {
		return nil, &UnknownTypeError{Tag: tag}
	}

	return constructor(), nil
}

// Tags returns all registered tags, sorted.
func (f *Factory) Tags() []string {
	f.lock.RLock()
	defer f.lock.RUnlock()

	tags := make([]string, 0, len(f.constructors))
	for tag := range f.constructors {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	return tags
}
