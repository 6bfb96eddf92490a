package schema

import "reflect"

// Lazy holds a relation value that is only present once it has been loaded
// or explicitly assigned. An unloaded slot is left untouched when saving.
//
//	type Post struct {
//	  ID       uint
//	  Comments schema.Lazy[[]*Comment] `relmap:"oneToMany;inverse:Post"`
//	}
type Lazy[T any] struct {
	value  T
	loaded bool
}

// NewLazy returns a loaded slot holding v
func NewLazy[T any](v T) Lazy[T] {
	return Lazy[T]{value: v, loaded: true}
}

// Get returns the value and whether the slot is loaded
func (l Lazy[T]) Get() (T, bool) {
	return l.value, l.loaded
}

// Loaded reports whether the slot holds a value
func (l Lazy[T]) Loaded() bool {
	return l.loaded
}

// Set stores v and marks the slot loaded
func (l *Lazy[T]) Set(v T) {
	l.value = v
	l.loaded = true
}

// Unload clears the slot
func (l *Lazy[T]) Unload() {
	var zero T
	l.value = zero
	l.loaded = false
}

type lazySlot interface {
	lazyLoaded() bool
	lazyValue() reflect.Value
	setLazyValue(reflect.Value)
	lazyType() reflect.Type
}

var lazySlotType = reflect.TypeOf((*lazySlot)(nil)).Elem()

func (l *Lazy[T]) lazyLoaded() bool {
	return l.loaded
}

func (l *Lazy[T]) lazyValue() reflect.Value {
	return reflect.ValueOf(&l.value).Elem()
}

func (l *Lazy[T]) setLazyValue(v reflect.Value) {
	if !v.IsValid() {
		var zero T
		l.value = zero
	} else {
		l.value = v.Interface().(T)
	}
	l.loaded = true
}

func (l *Lazy[T]) lazyType() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func isLazyType(t reflect.Type) bool {
	return t.Kind() == reflect.Struct && reflect.PtrTo(t).Implements(lazySlotType)
}

func lazyElemType(t reflect.Type) reflect.Type {
	return reflect.New(t).Interface().(lazySlot).lazyType()
}
