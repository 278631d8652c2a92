package frame

import (
	fgerrors "github.com/alxayo/framegraph/internal/errors"
)

// PropType enumerates the element types a property map key can hold. A key
// is homogeneous: every element stored under it shares one PropType.
type PropType int

const (
	PropInt PropType = iota
	PropFloat
	PropData
	PropVideoFrame
	PropAudioFrame
	PropFunction
)

func (t PropType) String() string {
	switch t {
	case PropInt:
		return "int"
	case PropFloat:
		return "float"
	case PropData:
		return "data"
	case PropVideoFrame:
		return "vnode"
	case PropAudioFrame:
		return "anode"
	case PropFunction:
		return "func"
	default:
		return "unknown"
	}
}

// SetMode selects how Set combines a new value with any existing entry
// under the same key (spec §4.2).
type SetMode int

const (
	Replace SetMode = iota
	Append
	Touch
)

// Function is the opaque callable stored under a PropFunction key. The
// core treats it as an inert value; only filters that install one interpret
// its Call.
type Function struct {
	Name string
	Call func(args []any) (any, error)
}

// propEntry holds one key's homogeneous value array. shared is set on both
// sides of a Clone so that the next mutation of either copy allocates a
// fresh backing array instead of aliasing the other's.
type propEntry struct {
	typ    PropType
	values []any
	shared bool
}

func (e *propEntry) ensureUnshared() {
	if !e.shared {
		return
	}
	cp := make([]any, len(e.values))
	copy(cp, e.values)
	e.values = cp
	e.shared = false
}

// PropertyMap is an ordered, heterogeneous (per-key homogeneous) metadata
// map attached to every frame. Serialization order is insertion order.
type PropertyMap struct {
	order   []string
	entries map[string]*propEntry
}

// NewPropertyMap returns an empty property map.
func NewPropertyMap() *PropertyMap {
	return &PropertyMap{entries: make(map[string]*propEntry)}
}

// Clone returns a property map sharing this map's value arrays
// (copy-on-write): mutating the clone or the original after Clone never
// aliases the other, since both sides copy their backing array on first
// write (spec §4.2: "copy_frame ... property map (shallow — shared value
// arrays)").
func (m *PropertyMap) Clone() *PropertyMap {
	if m == nil {
		return NewPropertyMap()
	}
	out := &PropertyMap{
		order:   append([]string(nil), m.order...),
		entries: make(map[string]*propEntry, len(m.entries)),
	}
	for k, e := range m.entries {
		e.shared = true
		out.entries[k] = &propEntry{typ: e.typ, values: e.values, shared: true}
	}
	return out
}

// Keys returns the map's keys in insertion order.
func (m *PropertyMap) Keys() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), m.order...)
}

// TypeOf returns the element type stored under key, or ok=false if absent.
func (m *PropertyMap) TypeOf(key string) (PropType, bool) {
	if m == nil {
		return 0, false
	}
	e, ok := m.entries[key]
	if !ok {
		return 0, false
	}
	return e.typ, true
}

// NumElements returns the number of elements under key, or -1 if absent
// (spec §6: "map_num_elements ... -1 if absent").
func (m *PropertyMap) NumElements(key string) int {
	if m == nil {
		return -1
	}
	e, ok := m.entries[key]
	if !ok {
		return -1
	}
	return len(e.values)
}

// Delete removes key, reporting whether it was present.
func (m *PropertyMap) Delete(key string) bool {
	if m == nil {
		return false
	}
	if _, ok := m.entries[key]; !ok {
		return false
	}
	delete(m.entries, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true
}

// Set stores value under key according to mode. key must be non-empty
// ASCII. Append requires the existing type to match or fails with
// TypeMismatch. Touch ensures key exists (creating it empty if absent) and
// fails with TypeMismatch if it exists under a different type.
func (m *PropertyMap) Set(key string, typ PropType, value any, mode SetMode) error {
	if key == "" {
		return fgerrors.NewConstructionError("propertymap", "key.empty", nil)
	}
	e, exists := m.entries[key]

	switch mode {
	case Touch:
		if exists {
			if e.typ != typ {
				return fgerrors.NewTypeMismatch(key, e.typ.String(), typ.String())
			}
			return nil
		}
		m.entries[key] = &propEntry{typ: typ, values: nil}
		m.order = append(m.order, key)
		return nil

	case Append:
		if exists {
			if e.typ != typ {
				return fgerrors.NewTypeMismatch(key, e.typ.String(), typ.String())
			}
			e.ensureUnshared()
			e.values = append(e.values, value)
			return nil
		}
		m.entries[key] = &propEntry{typ: typ, values: []any{value}}
		m.order = append(m.order, key)
		return nil

	case Replace:
		if !exists {
			m.order = append(m.order, key)
		}
		m.entries[key] = &propEntry{typ: typ, values: []any{value}}
		return nil

	default:
		return fgerrors.NewConstructionError("propertymap", "mode.unknown", nil)
	}
}

// Get returns the index'th element stored under key. Fails with
// OutOfRange if index is outside [0, NumElements(key)), or a
// ConstructionError if the key is absent.
func (m *PropertyMap) Get(key string, index int) (any, PropType, error) {
	e, ok := m.entries[key]
	if !ok {
		return nil, 0, fgerrors.NewConstructionError("propertymap", "key.absent", nil)
	}
	if index < 0 || index >= len(e.values) {
		return nil, 0, fgerrors.NewOutOfRange(key, index, len(e.values))
	}
	return e.values[index], e.typ, nil
}

// SetInt, SetFloat, SetData are convenience wrappers over Set for the three
// scalar property types used pervasively by filter construction code.
func (m *PropertyMap) SetInt(key string, v int64, mode SetMode) error {
	return m.Set(key, PropInt, v, mode)
}
func (m *PropertyMap) SetFloat(key string, v float64, mode SetMode) error {
	return m.Set(key, PropFloat, v, mode)
}
func (m *PropertyMap) SetData(key string, v []byte, mode SetMode) error {
	return m.Set(key, PropData, v, mode)
}

// GetInt and GetFloat fetch and type-assert a single element, returning a
// TypeMismatch if the key holds a different type.
func (m *PropertyMap) GetInt(key string, index int) (int64, error) {
	v, typ, err := m.Get(key, index)
	if err != nil {
		return 0, err
	}
	if typ != PropInt {
		return 0, fgerrors.NewTypeMismatch(key, typ.String(), PropInt.String())
	}
	return v.(int64), nil
}

func (m *PropertyMap) GetFloat(key string, index int) (float64, error) {
	v, typ, err := m.Get(key, index)
	if err != nil {
		return 0, err
	}
	if typ != PropFloat {
		return 0, fgerrors.NewTypeMismatch(key, typ.String(), PropFloat.String())
	}
	return v.(float64), nil
}

// Well-known frame property keys (spec §6).
const (
	PropDurationNum = "_DurationNum"
	PropDurationDen = "_DurationDen"
	PropFieldBased  = "_FieldBased"
	PropField       = "_Field"
	PropColorRange  = "_ColorRange"
)
