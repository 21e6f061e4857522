package payment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticVerifier struct {
	result *Result
}

func (s *staticVerifier) Verify(_ context.Context, _ Request) (*Result, error) {
	return s.result, nil
}

func TestRegistry_Lookup(t *testing.T) {
	reg := NewRegistry()
	v := &staticVerifier{result: &Result{Verified: true}}
	reg.Register(MethodSSLCommerz, v)

	got, err := reg.Lookup(MethodSSLCommerz)
	require.NoError(t, err)
	assert.Same(t, v, got)
}

func TestRegistry_LookupUnknown(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Lookup(Method("paypal"))
	require.ErrorIs(t, err, ErrUnknownProvider)
}

func TestRegistry_Supported(t *testing.T) {
	reg := NewRegistry()
	reg.Register(MethodBkash, &staticVerifier{})

	assert.True(t, reg.Supported(MethodBkash))
	assert.False(t, reg.Supported(MethodSSLCommerz))
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	reg := NewRegistry()
	first := &staticVerifier{}
	second := &staticVerifier{}
	reg.Register(MethodBkash, first)
	reg.Register(MethodBkash, second)

	got, err := reg.Lookup(MethodBkash)
	require.NoError(t, err)
	assert.Same(t, second, got)
}
