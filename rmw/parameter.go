package rmw

import (
	"fmt"
	"sort"
	"sync"

	"github.com/jazi007/oxidros/errors"
)

// ParameterType enumerates the storable parameter value kinds. The
// numeric values are fixed by the parameter service wire format.
type ParameterType uint8

// Parameter type ids.
const (
	TypeNotSet ParameterType = iota
	TypeBool
	TypeInteger
	TypeDouble
	TypeString
	TypeByteArray
	TypeBoolArray
	TypeIntegerArray
	TypeDoubleArray
	TypeStringArray
)

// String returns the conventional name of the type.
func (t ParameterType) String() string {
	switch t {
	case TypeNotSet:
		return "not_set"
	case TypeBool:
		return "bool"
	case TypeInteger:
		return "integer"
	case TypeDouble:
		return "double"
	case TypeString:
		return "string"
	case TypeByteArray:
		return "byte_array"
	case TypeBoolArray:
		return "bool_array"
	case TypeIntegerArray:
		return "integer_array"
	case TypeDoubleArray:
		return "double_array"
	case TypeStringArray:
		return "string_array"
	default:
		return "unknown"
	}
}

// ParameterValue is a tagged union of the storable kinds. Only the
// field selected by Type is meaningful. The json tags define the
// parameter service wire format.
type ParameterValue struct {
	Type              ParameterType `json:"type"`
	BoolValue         bool          `json:"bool_value,omitempty"`
	IntegerValue      int64         `json:"integer_value,omitempty"`
	DoubleValue       float64       `json:"double_value,omitempty"`
	StringValue       string        `json:"string_value,omitempty"`
	ByteArrayValue    []byte        `json:"byte_array_value,omitempty"`
	BoolArrayValue    []bool        `json:"bool_array_value,omitempty"`
	IntegerArrayValue []int64       `json:"integer_array_value,omitempty"`
	DoubleArrayValue  []float64     `json:"double_array_value,omitempty"`
	StringArrayValue  []string      `json:"string_array_value,omitempty"`
}

// Typed constructors.

// NotSetValue returns the unset value.
func NotSetValue() ParameterValue { return ParameterValue{Type: TypeNotSet} }

// BoolValueOf wraps a bool.
func BoolValueOf(v bool) ParameterValue {
	return ParameterValue{Type: TypeBool, BoolValue: v}
}

// IntegerValueOf wraps an integer.
func IntegerValueOf(v int64) ParameterValue {
	return ParameterValue{Type: TypeInteger, IntegerValue: v}
}

// DoubleValueOf wraps a double.
func DoubleValueOf(v float64) ParameterValue {
	return ParameterValue{Type: TypeDouble, DoubleValue: v}
}

// StringValueOf wraps a string.
func StringValueOf(v string) ParameterValue {
	return ParameterValue{Type: TypeString, StringValue: v}
}

// ValueFromAny converts a YAML-decoded scalar or sequence into a
// ParameterValue. Homogeneous sequences map to the array kinds.
func ValueFromAny(v any) (ParameterValue, error) {
	switch x := v.(type) {
	case nil:
		return NotSetValue(), nil
	case bool:
		return BoolValueOf(x), nil
	case int:
		return IntegerValueOf(int64(x)), nil
	case int64:
		return IntegerValueOf(x), nil
	case uint64:
		return IntegerValueOf(int64(x)), nil
	case float64:
		return DoubleValueOf(x), nil
	case string:
		return StringValueOf(x), nil
	case []any:
		return arrayFromAny(x)
	default:
		return ParameterValue{}, errors.WrapInvalid(
			fmt.Errorf("unsupported parameter value type %T", v),
			"ParameterValue", "ValueFromAny", "convert")
	}
}

func arrayFromAny(items []any) (ParameterValue, error) {
	if len(items) == 0 {
		return ParameterValue{Type: TypeStringArray, StringArrayValue: []string{}}, nil
	}
	switch items[0].(type) {
	case bool:
		out := make([]bool, len(items))
		for i, it := range items {
			b, ok := it.(bool)
			if !ok {
				return ParameterValue{}, heterogeneousArray(i, it)
			}
			out[i] = b
		}
		return ParameterValue{Type: TypeBoolArray, BoolArrayValue: out}, nil
	case int, int64, uint64:
		out := make([]int64, len(items))
		for i, it := range items {
			switch n := it.(type) {
			case int:
				out[i] = int64(n)
			case int64:
				out[i] = n
			case uint64:
				out[i] = int64(n)
			default:
				return ParameterValue{}, heterogeneousArray(i, it)
			}
		}
		return ParameterValue{Type: TypeIntegerArray, IntegerArrayValue: out}, nil
	case float64:
		out := make([]float64, len(items))
		for i, it := range items {
			f, ok := it.(float64)
			if !ok {
				// YAML mixes ints into double sequences.
				if n, isInt := it.(int); isInt {
					f = float64(n)
				} else {
					return ParameterValue{}, heterogeneousArray(i, it)
				}
			}
			out[i] = f
		}
		return ParameterValue{Type: TypeDoubleArray, DoubleArrayValue: out}, nil
	case string:
		out := make([]string, len(items))
		for i, it := range items {
			s, ok := it.(string)
			if !ok {
				return ParameterValue{}, heterogeneousArray(i, it)
			}
			out[i] = s
		}
		return ParameterValue{Type: TypeStringArray, StringArrayValue: out}, nil
	default:
		return ParameterValue{}, errors.WrapInvalid(
			fmt.Errorf("unsupported array element type %T", items[0]),
			"ParameterValue", "ValueFromAny", "convert array")
	}
}

func heterogeneousArray(i int, v any) error {
	return errors.WrapInvalid(
		fmt.Errorf("heterogeneous array: element %d has type %T", i, v),
		"ParameterValue", "ValueFromAny", "convert array")
}

// Descriptor carries the metadata of one declared parameter.
type Descriptor struct {
	Name          string        `json:"name"`
	Type          ParameterType `json:"type"`
	Description   string        `json:"description,omitempty"`
	Constraints   string        `json:"additional_constraints,omitempty"`
	ReadOnly      bool          `json:"read_only,omitempty"`
	DynamicTyping bool          `json:"dynamic_typing,omitempty"`
}

// Parameter pairs a value with its descriptor.
type Parameter struct {
	Value      ParameterValue
	Descriptor Descriptor
}

// Parameters is the per-node parameter store. It enforces read-only and
// type constraints and tracks which names changed since the last
// TakeUpdated, so a node can react to external sets.
type Parameters struct {
	mu      sync.RWMutex
	params  map[string]Parameter
	updated map[string]struct{}
}

// NewParameters returns an empty store.
func NewParameters() *Parameters {
	return &Parameters{
		params:  make(map[string]Parameter),
		updated: make(map[string]struct{}),
	}
}

// Declare registers a parameter with an explicit descriptor, replacing
// any previous declaration. The descriptor's Name and Type fields are
// filled from the arguments.
func (p *Parameters) Declare(name string, value ParameterValue, desc Descriptor) {
	desc.Name = name
	desc.Type = value.Type
	p.mu.Lock()
	p.params[name] = Parameter{Value: value, Descriptor: desc}
	p.mu.Unlock()
}

// Get returns a parameter by name.
func (p *Parameters) Get(name string) (Parameter, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	param, ok := p.params[name]
	return param, ok
}

// Names returns all declared names in sorted order.
func (p *Parameters) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.params))
	for name := range p.params {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks whether setting name to value would succeed, without
// applying it.
func (p *Parameters) Validate(name string, value ParameterValue) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.validateLocked(name, value)
}

func (p *Parameters) validateLocked(name string, value ParameterValue) error {
	existing, ok := p.params[name]
	if !ok {
		return nil
	}
	if existing.Descriptor.ReadOnly {
		return errors.WrapInvalid(
			fmt.Errorf("parameter %q is read-only", name),
			"Parameters", "Set", "set parameter")
	}
	if existing.Descriptor.DynamicTyping {
		return nil
	}
	if existing.Value.Type == TypeNotSet || value.Type == TypeNotSet {
		return nil
	}
	if existing.Value.Type != value.Type {
		return errors.WrapInvalid(
			fmt.Errorf("parameter %q has type %s, cannot assign %s",
				name, existing.Value.Type, value.Type),
			"Parameters", "Set", "set parameter")
	}
	return nil
}

// Set assigns a parameter value, declaring the name if it is new, and
// marks it updated.
func (p *Parameters) Set(name string, value ParameterValue) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.validateLocked(name, value); err != nil {
		return err
	}
	p.setLocked(name, value)
	return nil
}

// SetAtomically validates every assignment first and applies them only
// if all pass. On failure nothing is applied.
func (p *Parameters) SetAtomically(values map[string]ParameterValue) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for name, value := range values {
		if err := p.validateLocked(name, value); err != nil {
			return err
		}
	}
	for name, value := range values {
		p.setLocked(name, value)
	}
	return nil
}

func (p *Parameters) setLocked(name string, value ParameterValue) {
	existing, ok := p.params[name]
	if !ok {
		existing = Parameter{Descriptor: Descriptor{Name: name}}
	}
	existing.Value = value
	existing.Descriptor.Type = value.Type
	p.params[name] = existing
	p.updated[name] = struct{}{}
}

// TakeUpdated returns the sorted names set since the previous call and
// clears the set.
func (p *Parameters) TakeUpdated() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.updated) == 0 {
		return nil
	}
	names := make([]string, 0, len(p.updated))
	for name := range p.updated {
		names = append(names, name)
	}
	p.updated = make(map[string]struct{})
	sort.Strings(names)
	return names
}
