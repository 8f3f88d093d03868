package spec

// When is the action under test. It is exactly one of four variants, chosen by
// its constructor: with or without the subject as argument, and producing a
// value or nothing.
type When struct {
	takesSubject  bool
	producesValue bool
	fn            func(subject any) (any, error)
}

// Do builds a When that ignores the subject and produces nothing.
func Do(fn func() error) *When {
	return &When{
		fn: func(any) (any, error) {
			return nil, fn()
		},
	}
}

// DoWith builds a When that acts on the subject and produces nothing.
func DoWith[T any](fn func(subject T) error) *When {
	return &When{
		takesSubject: true,
		fn: func(subject any) (any, error) {
			t, err := as[T](subject)
			if err != nil {
				return nil, err
			}
			return nil, fn(t)
		},
	}
}

// Return builds a When that ignores the subject and produces a value.
func Return[R any](fn func() (R, error)) *When {
	return &When{
		producesValue: true,
		fn: func(any) (any, error) {
			return fn()
		},
	}
}

// ReturnWith builds a When that acts on the subject and produces a value.
func ReturnWith[T, R any](fn func(subject T) (R, error)) *When {
	return &When{
		takesSubject:  true,
		producesValue: true,
		fn: func(subject any) (any, error) {
			t, err := as[T](subject)
			if err != nil {
				return nil, err
			}
			return fn(t)
		},
	}
}

// TakesSubject reports whether the action is invoked with the subject.
func (w *When) TakesSubject() bool {
	return w.takesSubject
}

// ProducesValue reports whether the action's result replaces the subject as
// the assertion context.
func (w *When) ProducesValue() bool {
	return w.producesValue
}

// Invoke runs the action. The subject is only passed through for variants
// that take it.
func (w *When) Invoke(subject any) (any, error) {
	if !w.takesSubject {
		subject = nil
	}
	return w.fn(subject)
}
