package ioc_test

import (
	"reflect"
	"testing"

	"github.com/gocrud/bean/ioc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func method(name string, methodAnn, typeAnn []string) *ioc.Method {
	return &ioc.Method{
		DeclaringType:   ioc.TypeOf[Greeter](),
		TargetType:      reflect.TypeOf(&greeter{}),
		Name:            name,
		Bean:            "greeter",
		Annotations:     methodAnn,
		TypeAnnotations: typeAnn,
	}
}

func TestParsePointcut(t *testing.T) {
	greet := method("Greet", nil, []string{"Service"})
	getUser := method("GetUser", []string{"Audited"}, nil)
	save := method("Save", []string{"Tx"}, []string{"Service"})

	tests := []struct {
		expr string
		want map[*ioc.Method]bool
	}{
		{"*", map[*ioc.Method]bool{greet: true, getUser: true, save: true}},
		{"name:Get*", map[*ioc.Method]bool{greet: false, getUser: true, save: false}},
		{"name:Save", map[*ioc.Method]bool{greet: false, getUser: false, save: true}},
		{`name~"^(Greet|Save)$"`, map[*ioc.Method]bool{greet: true, getUser: false, save: true}},
		{"name~^G", map[*ioc.Method]bool{greet: true, getUser: true, save: false}},
		{"@Audited", map[*ioc.Method]bool{greet: false, getUser: true, save: false}},
		{"@Service", map[*ioc.Method]bool{greet: true, getUser: false, save: true}},
		{"method:@Tx", map[*ioc.Method]bool{greet: false, getUser: false, save: true}},
		{"type:@Service", map[*ioc.Method]bool{greet: true, getUser: false, save: true}},
		{"type:Greeter && name:Greet", map[*ioc.Method]bool{greet: true, getUser: false, save: false}},
		{"bean:greeter && !name:Save", map[*ioc.Method]bool{greet: true, getUser: true, save: false}},
		{"name:Save || name:Greet && @Service", map[*ioc.Method]bool{greet: true, getUser: false, save: true}},
		{"(name:Save || name:Greet) && !@Tx", map[*ioc.Method]bool{greet: true, getUser: false, save: false}},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			pc, err := ioc.ParsePointcut(tt.expr)
			require.NoError(t, err)
			for m, want := range tt.want {
				assert.Equal(t, want, pc.Matches(m), "method %s", m.Name)
			}
		})
	}
}

func TestParsePointcutErrors(t *testing.T) {
	for _, expr := range []string{
		"",
		"name",
		"name:",
		"color:red",
		"@",
		"(name:Get*",
		"name:Get* &&",
		`name~"unterminated`,
		"name~(",
		"method:Tx",
	} {
		_, err := ioc.ParsePointcut(expr)
		assert.Error(t, err, expr)
	}
}

func TestPointcutCombinators(t *testing.T) {
	m := method("Greet", nil, nil)
	assert.True(t, ioc.And(ioc.MethodNamePrefix("Gr"), ioc.DeclaredBy(ioc.TypeOf[Greeter]())).Matches(m))
	assert.False(t, ioc.And(ioc.MethodNamePrefix("Gr"), ioc.BeanNamed("other")).Matches(m))
	assert.True(t, ioc.Or(ioc.BeanNamed("other"), ioc.TargetImplements[Greeter]()).Matches(m))
	assert.True(t, ioc.Not(ioc.MethodAnnotated("Tx")).Matches(m))

	_, err := ioc.MethodNameMatches("[")
	assert.Error(t, err)
}
