// Package clone deep-copies workflow data so that stored snapshots and imported
// workflows never share mutable state with their source.
//
// Cycles are lossy: the point where a value re-enters one of its own ancestors is
// replaced with CircularMarker. Functions and host objects that cannot be stored
// (sockets, files, database handles, channels) are replaced with textual
// placeholders, as are values JSON cannot encode (NaN, infinities, complex
// numbers). Placeholders only appear in interface-typed slots; typed slots that
// cannot hold them are left at their zero value.
package clone

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"runtime"
	"strings"
	"time"
)

const (
	// CircularMarker replaces a value that references one of its ancestors.
	CircularMarker = "[Circular]"

	// MaxDepthMarker replaces values nested deeper than MaxDepth.
	MaxDepthMarker = "[MaxDepth]"

	// MaxDepth bounds the traversal.
	MaxDepth = 256
)

// ErrSerialization is returned when neither the deep copy nor the degraded
// shallow copy could be produced.
var ErrSerialization = errors.New("value could not be cloned")

var timeType = reflect.TypeFor[time.Time]()

type visitKey struct {
	addr uintptr
	typ  reflect.Type
	len  int
}

// Cloner performs one traversal at a time and is not safe for concurrent use.
// Create one per call; it is cheap.
type Cloner struct {
	logger *slog.Logger

	// arena holds the identities on the current traversal path, index maps an
	// identity to its arena slot.
	arena []visitKey
	index map[visitKey]int

	// beforeVisit is called on every visited value; tests use it to inject faults.
	beforeVisit func(reflect.Value)
}

// New creates a Cloner that reports degradation through logger.
func New(logger *slog.Logger) *Cloner {
	if logger == nil {
		logger = slog.Default()
	}

	return &Cloner{logger: logger}
}

func (c *Cloner) reset() {
	c.arena = c.arena[:0]
	c.index = make(map[visitKey]int)
}

// Value returns a deep copy of v. It never panics: on an unexpected failure it
// falls back to a shallow copy, and returns nil only if that fails as well.
func (c *Cloner) Value(v any) (out any) {
	if v == nil {
		return nil
	}

	c.reset()

	defer func() {
		if r := recover(); r != nil {
			out = c.degrade(v, r)
		}
	}()

	cloned := c.clone(reflect.ValueOf(v), 0)
	if !cloned.IsValid() {
		return nil
	}

	return cloned.Interface()
}

func (c *Cloner) enter(key visitKey) bool {
	if _, seen := c.index[key]; seen {
		return false
	}

	c.index[key] = len(c.arena)
	c.arena = append(c.arena, key)

	return true
}

func (c *Cloner) leave(key visitKey) {
	slot, ok := c.index[key]
	if !ok {
		return
	}

	delete(c.index, key)
	c.arena = c.arena[:slot]
}

func placeholder(text string) reflect.Value {
	return reflect.ValueOf(text)
}

// set stores value into dst when the types line up and leaves dst zeroed otherwise.
func set(dst, value reflect.Value) {
	if !value.IsValid() {
		return
	}

	if value.Type().AssignableTo(dst.Type()) {
		dst.Set(value)
	}
}

func (c *Cloner) clone(v reflect.Value, depth int) reflect.Value {
	if !v.IsValid() {
		return v
	}

	if c.beforeVisit != nil {
		c.beforeVisit(v)
	}

	if v.Kind() != reflect.Interface {
		if name, ok := hostObjectName(v.Type()); ok {
			return placeholder("[Unserializable: " + name + "]")
		}
	}

	if isComposite(v.Kind()) && depth > MaxDepth {
		return placeholder(MaxDepthMarker)
	}

	switch v.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v

	case reflect.Float32, reflect.Float64:
		if text, ok := nonFinite(v.Float()); ok {
			return placeholder("[Unserializable: " + text + "]")
		}

		return v

	case reflect.Complex64, reflect.Complex128:
		return placeholder("[Unserializable: " + v.Type().String() + "]")

	case reflect.Func:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}

		return placeholder("[Function: " + funcName(v) + "]")

	case reflect.Chan, reflect.UnsafePointer:
		return placeholder("[Unserializable: " + v.Type().String() + "]")

	case reflect.Interface:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}

		return c.clone(v.Elem(), depth)

	case reflect.Pointer:
		return c.clonePointer(v, depth)

	case reflect.Map:
		return c.cloneMap(v, depth)

	case reflect.Slice:
		return c.cloneSlice(v, depth)

	case reflect.Array:
		out := reflect.New(v.Type()).Elem()
		for i := range v.Len() {
			set(out.Index(i), c.clone(v.Index(i), depth+1))
		}

		return out

	case reflect.Struct:
		return c.cloneStruct(v, depth)

	default:
		return placeholder("[Unserializable: " + v.Type().String() + "]")
	}
}

func isComposite(kind reflect.Kind) bool {
	switch kind {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		return true
	default:
		return false
	}
}

// nonFinite names NaN and infinities, which have no JSON encoding.
func nonFinite(f float64) (string, bool) {
	switch {
	case math.IsNaN(f):
		return "NaN", true
	case math.IsInf(f, 1):
		return "+Inf", true
	case math.IsInf(f, -1):
		return "-Inf", true
	default:
		return "", false
	}
}

func (c *Cloner) clonePointer(v reflect.Value, depth int) reflect.Value {
	if v.IsNil() {
		return reflect.Zero(v.Type())
	}

	key := visitKey{addr: v.Pointer(), typ: v.Type()}
	if !c.enter(key) {
		return placeholder(CircularMarker)
	}
	defer c.leave(key)

	out := reflect.New(v.Type().Elem())
	set(out.Elem(), c.clone(v.Elem(), depth+1))

	return out
}

func (c *Cloner) cloneMap(v reflect.Value, depth int) reflect.Value {
	if v.IsNil() {
		return reflect.Zero(v.Type())
	}

	key := visitKey{addr: v.Pointer(), typ: v.Type()}
	if !c.enter(key) {
		return placeholder(CircularMarker)
	}
	defer c.leave(key)

	out := reflect.MakeMapWithSize(v.Type(), v.Len())
	elemType := v.Type().Elem()

	iter := v.MapRange()
	for iter.Next() {
		// Keys are comparable and finite; they are copied without the depth cap.
		k := c.clone(iter.Key(), 0)
		if !k.IsValid() || !k.Type().AssignableTo(v.Type().Key()) {
			continue
		}

		value := reflect.New(elemType).Elem()
		set(value, c.clone(iter.Value(), depth+1))
		out.SetMapIndex(k, value)
	}

	return out
}

func (c *Cloner) cloneSlice(v reflect.Value, depth int) reflect.Value {
	if v.IsNil() {
		return reflect.Zero(v.Type())
	}

	if v.Len() == 0 {
		return reflect.MakeSlice(v.Type(), 0, 0)
	}

	key := visitKey{addr: v.Pointer(), typ: v.Type(), len: v.Len()}
	if !c.enter(key) {
		return placeholder(CircularMarker)
	}
	defer c.leave(key)

	out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
	for i := range v.Len() {
		set(out.Index(i), c.clone(v.Index(i), depth+1))
	}

	return out
}

// cloneStruct copies exported fields only: unexported state cannot be stored and
// would otherwise stay shared with the source.
func (c *Cloner) cloneStruct(v reflect.Value, depth int) reflect.Value {
	if v.Type() == timeType {
		return v
	}

	out := reflect.New(v.Type()).Elem()

	for i := range v.NumField() {
		field := out.Field(i)
		if !field.CanSet() {
			continue
		}

		set(field, c.clone(v.Field(i), depth+1))
	}

	return out
}

func funcName(v reflect.Value) string {
	fn := runtime.FuncForPC(v.Pointer())
	if fn == nil {
		return "anonymous"
	}

	name := fn.Name()
	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}

	if name == "" {
		return "anonymous"
	}

	return name
}

// degrade builds a best-effort copy after the deep copy failed.
func (c *Cloner) degrade(v any, cause any) (out any) {
	c.logger.Warn("Deep clone failed, falling back to shallow copy",
		"type", fmt.Sprintf("%T", v),
		"cause", fmt.Sprint(cause),
	)

	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Shallow clone failed", "type", fmt.Sprintf("%T", v), "cause", fmt.Sprint(r))

			out = nil
		}
	}()

	rv := reflect.ValueOf(v)

	switch rv.Kind() {
	case reflect.Map:
		if rv.IsNil() {
			return v
		}

		copied := reflect.MakeMapWithSize(rv.Type(), rv.Len())

		iter := rv.MapRange()
		for iter.Next() {
			value := reflect.New(rv.Type().Elem()).Elem()
			set(value, shallow(iter.Value()))
			copied.SetMapIndex(iter.Key(), value)
		}

		return copied.Interface()

	case reflect.Slice:
		if rv.IsNil() {
			return v
		}

		copied := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		for i := range rv.Len() {
			set(copied.Index(i), shallow(rv.Index(i)))
		}

		return copied.Interface()

	default:
		return shallow(rv).Interface()
	}
}

// shallow keeps scalars and empty composites and replaces everything else with a
// type-name placeholder.
func shallow(v reflect.Value) reflect.Value {
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}

		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v

	case reflect.Float32, reflect.Float64:
		if _, ok := nonFinite(v.Float()); !ok {
			return v
		}

	case reflect.Map, reflect.Slice:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}

		if v.Len() == 0 {
			if v.Kind() == reflect.Map {
				return reflect.MakeMap(v.Type())
			}

			return reflect.MakeSlice(v.Type(), 0, 0)
		}

	case reflect.Struct:
		if v.Type() == timeType {
			return v
		}
	}

	return placeholder("[" + v.Type().String() + "]")
}
