package reflection_test

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"protoscope/internal/core/errors"
	"protoscope/internal/engine/hierarchy"
	"protoscope/internal/engine/hierarchy/hierarchytest"
	"protoscope/internal/engine/resolver"
	"protoscope/internal/reflection"
)

func fixtureReflector(opts ...resolver.Option) *reflection.Reflector {
	return reflection.NewFromStore(hierarchytest.MustBuild(hierarchytest.ReflectionFixture()), opts...)
}

func TestGetMethod(t *testing.T) {
	r := fixtureReflector()

	h, err := r.GetMethod("Cls5", "method3")
	require.NoError(t, err)
	assert.Equal(t, "Cls5", h.Class())
	assert.Equal(t, "Cls4", h.DeclaringType())
	assert.Equal(t, "method3", h.Name())
	assert.Equal(t, hierarchy.Public, h.Visibility())
	assert.False(t, h.IsAbstract())
	assert.Empty(t, h.FromTrait())

	h, err = r.GetMethod("Cls6", "method3")
	require.NoError(t, err)
	assert.Equal(t, "Cls6", h.DeclaringType())
	assert.Equal(t, "Method3", h.FromTrait())

	h, err = r.GetMethod("Cls3", "method3")
	require.NoError(t, err)
	assert.Equal(t, "Int3", h.DeclaringType())
	assert.True(t, h.IsAbstract())
}

func TestGetMethod_Failures(t *testing.T) {
	r := fixtureReflector()

	_, err := r.GetMethod("PDO", "commit")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrUnknownType))

	_, err = r.GetMethod("Cls2", "method3")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrMethodNotFound))

	assert.False(t, r.HasMethod("Cls2", "method3"))
	assert.True(t, r.HasMethod("cls2", "Method2"))
}

func TestGetPrototype(t *testing.T) {
	r := fixtureReflector()

	tests := []struct {
		typ, method string
		want        string
		wantErr     bool
	}{
		{typ: "Cls1", method: "method1", wantErr: true},
		{typ: "Cls1", method: "method2", wantErr: true},
		{typ: "Cls4", method: "method3", want: "Int3::method3"},
		{typ: "Cls6", method: "method3", want: "Int3::method3"},
		{typ: "Cls6", method: "method4", want: "Int4::method4"},
		{typ: "Cls8", method: "method7", want: "Cls7::method7"},
	}
	for _, tt := range tests {
		h, err := r.GetMethod(tt.typ, tt.method)
		require.NoError(t, err)

		proto, err := h.GetPrototype()
		if tt.wantErr {
			require.Error(t, err, "%s::%s", tt.typ, tt.method)
			assert.True(t, stderrors.Is(err, errors.ErrNoPrototype))
			continue
		}
		require.NoError(t, err, "%s::%s", tt.typ, tt.method)
		assert.Equal(t, tt.want, proto.String())
		assert.Equal(t, proto.DeclaringType(), proto.Class())
	}
}

func TestGetPrototype_Chained(t *testing.T) {
	r := reflection.NewFromStore(hierarchytest.MustBuild(hierarchytest.ContractFixture()))

	h, err := r.GetMethod("D", "m")
	require.NoError(t, err)
	proto, err := h.GetPrototype()
	require.NoError(t, err)
	assert.Equal(t, "I::m", proto.String())
	assert.True(t, proto.IsAbstract())

	_, err = proto.GetPrototype()
	assert.True(t, errors.IsCode(err, errors.CodeNoPrototype))
}

func TestMethods(t *testing.T) {
	r := fixtureReflector()

	handles, err := r.Methods("Cls7")
	require.NoError(t, err)

	var got []string
	for _, h := range handles {
		got = append(got, h.String())
	}
	assert.Equal(t, []string{
		"Cls7::method1",
		"Cls7::method7",
		"Cls6::method4",
		"Cls6::method3",
		"Cls2::method2",
	}, got)

	_, err = r.Methods("Missing")
	assert.True(t, errors.IsCode(err, errors.CodeUnknownType))
}
