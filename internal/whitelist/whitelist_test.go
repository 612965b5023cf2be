package whitelist

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type account struct {
	balance int64
}

func (a *account) String() string { return fmt.Sprintf("account(%d)", a.balance) }

func constant(v interface{}) CallFunc {
	return func(interface{}, []interface{}) (interface{}, error) { return v, nil }
}

func TestAuthorizeExactBeatsInterface(t *testing.T) {
	w := New()
	require.NoError(t, Allow[fmt.Stringer](w, "describe", constant("stringer")))
	require.NoError(t, Allow[*account](w, "describe", constant("account")))

	rule, err := w.Authorize("describe", &account{}, nil)
	require.NoError(t, err)
	v, err := rule.Call(&account{}, nil)
	require.NoError(t, err)
	require.Equal(t, "account", v)
}

func TestAuthorizeInterfaceReceiver(t *testing.T) {
	w := New()
	require.NoError(t, Allow[fmt.Stringer](w, "describe", func(recv interface{}, _ []interface{}) (interface{}, error) {
		return recv.(fmt.Stringer).String(), nil
	}))

	rule, err := w.Authorize("describe", &account{balance: 3}, nil)
	require.NoError(t, err)
	v, err := rule.Call(&account{balance: 3}, nil)
	require.NoError(t, err)
	require.Equal(t, "account(3)", v)

	_, err = w.Authorize("describe", "plain string", nil)
	require.ErrorIs(t, err, ErrNotAllowed)
}

func TestAuthorizeRegistrationOrderBreaksTies(t *testing.T) {
	w := New()
	require.NoError(t, Allow[string](w, "upcase", constant("first")))
	require.NoError(t, Allow[string](w, "upcase", constant("second")))

	rule, err := w.Authorize("upcase", "x", nil)
	require.NoError(t, err)
	v, _ := rule.Call("x", nil)
	require.Equal(t, "first", v)
}

func TestAuthorizeArguments(t *testing.T) {
	w := New()
	require.NoError(t, Allow[string](w, "pad",
		func(recv interface{}, args []interface{}) (interface{}, error) {
			width := int64(10)
			if len(args) > 0 {
				width = args[0].(int64)
			}
			return fmt.Sprintf("%*s", int(width), recv), nil
		},
		ArgSet{TypeOf[int64](), Absent},
	))
	require.NoError(t, Allow[string](w, "replace",
		func(recv interface{}, args []interface{}) (interface{}, error) {
			return strings.ReplaceAll(recv.(string), args[0].(string), args[1].(string)), nil
		},
		ArgSet{TypeOf[string]()}, ArgSet{TypeOf[string]()},
	))

	tests := []struct {
		name    string
		method  string
		args    []interface{}
		allowed bool
	}{
		{"optional omitted", "pad", nil, true},
		{"optional given", "pad", []interface{}{int64(3)}, true},
		{"wrong type", "pad", []interface{}{"3"}, false},
		{"too many", "pad", []interface{}{int64(3), int64(4)}, false},
		{"required omitted", "replace", []interface{}{"a"}, false},
		{"all required", "replace", []interface{}{"a", "b"}, true},
		{"nil arg", "replace", []interface{}{nil, "b"}, false},
		{"unknown method", "delete", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.allowed, w.Allowed(tt.method, "abc", tt.args))
		})
	}
}

func TestAnyAcceptsNil(t *testing.T) {
	w := New()
	require.NoError(t, Allow[string](w, "or", constant(true), ArgSet{Any}))
	require.True(t, w.Allowed("or", "x", []interface{}{nil}))
	require.False(t, w.Allowed("or", nil, []interface{}{nil}))
}

func TestAddRejectsBadRules(t *testing.T) {
	w := New()
	require.ErrorIs(t, w.Add(&Rule{Method: "x"}), ErrBadRule)
	require.ErrorIs(t, Allow[string](w, "x", constant(1), ArgSet{}), ErrBadRule)
}

type named interface {
	fmt.Stringer
	Name() string
}

type person struct{ name string }

func (p *person) String() string { return "person " + p.name }
func (p *person) Name() string   { return p.name }

func TestAuthorizeMostSpecificInterface(t *testing.T) {
	w := New()
	require.NoError(t, Allow[fmt.Stringer](w, "describe", constant("stringer")))
	require.NoError(t, Allow[named](w, "describe", constant("named")))
	require.NoError(t, Allow[interface{}](w, "describe", constant("any")))

	rule, err := w.Authorize("describe", &person{name: "ann"}, nil)
	require.NoError(t, err)
	v, _ := rule.Call(&person{}, nil)
	require.Equal(t, "named", v)

	rule, err = w.Authorize("describe", &account{}, nil)
	require.NoError(t, err)
	v, _ = rule.Call(&account{}, nil)
	require.Equal(t, "stringer", v)

	rule, err = w.Authorize("describe", int64(1), nil)
	require.NoError(t, err)
	v, _ = rule.Call(int64(1), nil)
	require.Equal(t, "any", v)
}

func TestAuthorizeArgumentsCheckedOnSelectedReceiver(t *testing.T) {
	w := New()
	require.NoError(t, Allow[fmt.Stringer](w, "scale", constant("stringer"), ArgSet{TypeOf[string]()}))
	require.NoError(t, Allow[*account](w, "scale", constant("account"), ArgSet{TypeOf[int64]()}))

	rule, err := w.Authorize("scale", &account{}, []interface{}{int64(2)})
	require.NoError(t, err)
	v, _ := rule.Call(&account{}, nil)
	require.Equal(t, "account", v)

	_, err = w.Authorize("scale", &account{}, []interface{}{"2"})
	require.ErrorIs(t, err, ErrArgMismatch)
	require.NotErrorIs(t, err, ErrNotAllowed)

	_, err = w.Authorize("scale", "plain", []interface{}{"2"})
	require.ErrorIs(t, err, ErrNotAllowed)
}
