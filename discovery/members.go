package discovery

import (
	"fmt"
	"iter"
	"reflect"

	"github.com/ethereum-optimism/infra/op-specrun/spec"
	"github.com/ethereum-optimism/infra/op-specrun/types"
)

var (
	specType         = reflect.TypeFor[spec.Specification]()
	specPtrType      = reflect.TypeFor[*spec.Specification]()
	specSliceType    = reflect.TypeFor[[]spec.Specification]()
	specPtrSliceType = reflect.TypeFor[[]*spec.Specification]()
	specSeqType      = reflect.TypeFor[iter.Seq[*spec.Specification]]()
	errorType        = reflect.TypeFor[error]()
)

// isSpecShape reports whether t is a single specification or a sequence of them.
func isSpecShape(t reflect.Type) bool {
	switch t {
	case specType, specPtrType, specSliceType, specPtrSliceType, specSeqType:
		return true
	}
	return false
}

// typeSource scans a declaring type's exported members
type typeSource struct {
	typ reflect.Type
}

func (s *typeSource) discover() []types.SpecificationToRun {
	var entries []types.SpecificationToRun
	entries = append(entries, s.methodSpecifications()...)
	entries = append(entries, s.fieldSpecifications()...)
	return entries
}

// methodSpecifications invokes every qualifying method on its own fresh instance.
// Methods need no arguments and return a specification shape, optionally followed by an error.
func (s *typeSource) methodSpecifications() []types.SpecificationToRun {
	ptrType := reflect.PointerTo(s.typ)

	var entries []types.SpecificationToRun
	for i := 0; i < ptrType.NumMethod(); i++ {
		m := ptrType.Method(i)
		if !qualifies(m.Type) {
			continue
		}
		origin := types.Origin{Type: s.typ.String(), Member: m.Name, Kind: types.MemberMethod}
		entries = append(entries, s.invoke(m.Index, origin)...)
	}
	return entries
}

// qualifies checks a method signature, receiver included
func qualifies(fn reflect.Type) bool {
	if fn.NumIn() != 1 {
		return false
	}
	switch fn.NumOut() {
	case 1:
		return isSpecShape(fn.Out(0))
	case 2:
		return isSpecShape(fn.Out(0)) && fn.Out(1) == errorType
	default:
		return false
	}
}

func (s *typeSource) invoke(index int, origin types.Origin) (entries []types.SpecificationToRun) {
	inst, err := s.newInstance()
	if err != nil {
		return []types.SpecificationToRun{types.NotRunnable(origin, fmt.Sprintf("failed to construct %s", s.typ), err)}
	}

	reason := fmt.Sprintf("failed to invoke %s", origin.ID())
	defer func() {
		if r := recover(); r != nil {
			entries = []types.SpecificationToRun{types.NotRunnable(origin, reason, types.CauseFromPanic(r))}
		}
	}()

	out := inst.Method(index).Call(nil)
	if len(out) == 2 && !out[1].IsNil() {
		return []types.SpecificationToRun{types.NotRunnable(origin, reason, out[1].Interface().(error))}
	}
	return expand(out[0], origin)
}

// fieldSpecifications reads every qualifying field from its own fresh instance.
func (s *typeSource) fieldSpecifications() []types.SpecificationToRun {
	if s.typ.Kind() != reflect.Struct {
		return nil
	}

	var entries []types.SpecificationToRun
	for i := 0; i < s.typ.NumField(); i++ {
		f := s.typ.Field(i)
		if !f.IsExported() || f.Anonymous || !isSpecShape(f.Type) {
			continue
		}
		origin := types.Origin{Type: s.typ.String(), Member: f.Name, Kind: types.MemberField}

		inst, err := s.newInstance()
		if err != nil {
			entries = append(entries, types.NotRunnable(origin, fmt.Sprintf("failed to construct %s", s.typ), err))
			continue
		}
		entries = append(entries, expand(inst.Elem().Field(i), origin)...)
	}
	return entries
}

// newInstance constructs the zero value of the type and runs its Init hook.
func (s *typeSource) newInstance() (inst reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			inst, err = reflect.Value{}, types.CauseFromPanic(r)
		}
	}()

	inst = reflect.New(s.typ)
	if initializer, ok := inst.Interface().(Initializer); ok {
		if err := initializer.Init(); err != nil {
			return reflect.Value{}, err
		}
	}
	return inst, nil
}

// expand turns a member value into one entry per specification. Every entry
// gets its own copy of value specifications. Nil pointers and zero value
// specifications declare nothing and are skipped.
func expand(v reflect.Value, origin types.Origin) []types.SpecificationToRun {
	var entries []types.SpecificationToRun

	switch v.Type() {
	case specType:
		if !v.IsZero() {
			sp := v.Interface().(spec.Specification)
			entries = append(entries, types.Runnable(&sp, origin))
		}

	case specPtrType:
		if sp := v.Interface().(*spec.Specification); sp != nil {
			entries = append(entries, types.Runnable(sp, origin))
		}

	case specSliceType:
		for i, sp := range v.Interface().([]spec.Specification) {
			if !v.Index(i).IsZero() {
				entries = append(entries, types.Runnable(&sp, origin))
			}
		}

	case specPtrSliceType:
		for _, sp := range v.Interface().([]*spec.Specification) {
			if sp != nil {
				entries = append(entries, types.Runnable(sp, origin))
			}
		}

	case specSeqType:
		seq := v.Interface().(iter.Seq[*spec.Specification])
		if seq != nil {
			entries = append(entries, collect(seq, origin)...)
		}
	}

	return entries
}

// collect drains a lazy sequence. A panic while enumerating keeps the entries
// produced so far and adds a non-runnable entry for the failure.
func collect(seq iter.Seq[*spec.Specification], origin types.Origin) (entries []types.SpecificationToRun) {
	defer func() {
		if r := recover(); r != nil {
			entries = append(entries, types.NotRunnable(origin, fmt.Sprintf("failed to enumerate %s", origin.ID()), types.CauseFromPanic(r)))
		}
	}()

	for sp := range seq {
		if sp != nil {
			entries = append(entries, types.Runnable(sp, origin))
		}
	}
	return entries
}
