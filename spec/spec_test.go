package spec

import (
	"errors"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWhenVariants(t *testing.T) {
	tests := []struct {
		name          string
		when          *When
		takesSubject  bool
		producesValue bool
		want          any
	}{
		{
			name: "do",
			when: Do(func() error { return nil }),
		},
		{
			name:         "do with subject",
			when:         DoWith(func(n int) error { return nil }),
			takesSubject: true,
		},
		{
			name:          "return",
			when:          Return(func() (string, error) { return "done", nil }),
			producesValue: true,
			want:          "done",
		},
		{
			name:          "return with subject",
			when:          ReturnWith(func(n int) (int, error) { return n + 1, nil }),
			takesSubject:  true,
			producesValue: true,
			want:          6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.takesSubject, tt.when.TakesSubject())
			assert.Equal(t, tt.producesValue, tt.when.ProducesValue())

			got, err := tt.when.Invoke(5)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWhenInvokePassesSubjectOnlyWhenTaken(t *testing.T) {
	var seen []int
	w := DoWith(func(n int) error {
		seen = append(seen, n)
		return nil
	})
	_, err := w.Invoke(7)
	require.NoError(t, err)
	assert.Equal(t, []int{7}, seen)

	called := false
	w = Do(func() error {
		called = true
		return nil
	})
	_, err = w.Invoke(7)
	require.NoError(t, err)
	assert.True(t, called)
}

func TestWhenSubjectTypeMismatch(t *testing.T) {
	w := ReturnWith(func(s string) (int, error) { return len(s), nil })
	_, err := w.Invoke(42)

	var typeErr *SubjectTypeError
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, 42, typeErr.Got)
	assert.Contains(t, err.Error(), "expected string")
}

func TestWhenPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	_, err := DoWith(func(int) error { return boom }).Invoke(1)
	assert.Same(t, boom, err)
}

func TestNilSubjectConvertsToZeroValue(t *testing.T) {
	got, err := ReturnWith(func(p *int) (bool, error) { return p == nil, nil }).Invoke(nil)
	require.NoError(t, err)
	assert.Equal(t, true, got)
}

func TestFactories(t *testing.T) {
	v, err := Given(5)()
	require.NoError(t, err)
	assert.Equal(t, 5, v)

	boom := errors.New("boom")
	_, err = OnFunc(func() (int, error) { return 0, boom })()
	assert.Same(t, boom, err)
}

func TestThat(t *testing.T) {
	results := slices.Collect(That("result == 6", func(n int) bool { return n == 6 }).Assert(6))
	require.Len(t, results, 1)
	assert.True(t, results[0].Passed)
	assert.Equal(t, "result == 6", results[0].Text)
	assert.Equal(t, "result == 6", results[0].Expression)

	results = slices.Collect(That("result == 6", func(n int) bool { return n == 6 }).Assert(5))
	require.Len(t, results, 1)
	assert.False(t, results[0].Passed)

	results = slices.Collect(That("result == 6", func(n int) bool { return n == 6 }).Assert("six"))
	require.Len(t, results, 1)
	assert.False(t, results[0].Passed)
	assert.Error(t, results[0].Err)
}

func TestCheck(t *testing.T) {
	boom := errors.New("balance mismatch")
	results := slices.Collect(Check("balance", func(n int) error {
		if n != 10 {
			return boom
		}
		return nil
	}).Assert(3))
	require.Len(t, results, 1)
	assert.False(t, results[0].Passed)
	assert.Same(t, boom, results[0].Err)
}

func TestAllKeepsOrder(t *testing.T) {
	a := That("a", func(int) bool { return true })
	b := That("b", func(int) bool { return false })

	var texts []string
	for assertion := range All(a, b) {
		for res := range assertion.Assert(1) {
			texts = append(texts, res.Text)
		}
	}
	assert.Equal(t, []string{"a", "b"}, texts)
}
