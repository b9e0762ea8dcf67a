package weight_test

import (
	"math"
	"testing"

	"github.com/kegliz/qplay/qc/dd/weight"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupDedupsWithinTolerance(t *testing.T) {
	tab := weight.New(weight.Config{Tolerance: 1e-12})

	h1, err := tab.Lookup(complex(1/math.Sqrt2, 0))
	require.NoError(t, err)

	h2, err := tab.Lookup(complex(1/math.Sqrt2+1e-15, 0))
	require.NoError(t, err)

	assert.Equal(t, h1, h2, "values within tolerance must share a handle")
	assert.Equal(t, 1, tab.Len())
}

func TestLookupDistinguishesBeyondTolerance(t *testing.T) {
	tab := weight.New(weight.Config{Tolerance: 1e-12})

	h1, err := tab.Lookup(complex(0.5, 0))
	require.NoError(t, err)
	h2, err := tab.Lookup(complex(0.5000001, 0))
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}

func TestReservedHandles(t *testing.T) {
	tab := weight.New(weight.Config{Tolerance: 1e-12})

	h, err := tab.Lookup(0)
	require.NoError(t, err)
	assert.Equal(t, weight.Zero, h)

	h, err = tab.Lookup(1)
	require.NoError(t, err)
	assert.Equal(t, weight.One, h)

	h, err = tab.Lookup(-1)
	require.NoError(t, err)
	assert.Equal(t, weight.MinusOne, h)

	assert.Equal(t, 0, tab.Len(), "reserved handles never occupy a table slot")
}

func TestBackendsAgreeOnValues(t *testing.T) {
	vals := []complex128{
		complex(1/math.Sqrt2, 0),
		complex(0, 1/math.Sqrt2),
		complex(0.5, 0.5),
		complex(-0.5, 0.5),
	}
	for _, backend := range []weight.Backend{weight.Hashmap, weight.RealTupleHashmap, weight.RealTree} {
		t.Run(backend.String(), func(t *testing.T) {
			tab := weight.New(weight.Config{Tolerance: 1e-12, Backend: backend})
			handles := make(map[complex128]weight.Handle)
			for _, v := range vals {
				h, err := tab.Lookup(v)
				require.NoError(t, err)
				handles[v] = h
			}
			for v, h := range handles {
				assert.InDelta(t, real(v), real(tab.Value(h)), 1e-12)
				assert.InDelta(t, imag(v), imag(tab.Value(h)), 1e-12)
			}
		})
	}
}

func TestArithmeticHelpers(t *testing.T) {
	tab := weight.New(weight.Config{Tolerance: 1e-12})
	a, _ := tab.Lookup(complex(0.5, 0.5))
	b, _ := tab.Lookup(complex(0.5, -0.5))

	sum, err := tab.Add(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, real(tab.Value(sum)), 1e-12)
	assert.InDelta(t, 0.0, imag(tab.Value(sum)), 1e-12)

	prod, err := tab.Mul(a, b)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, real(tab.Value(prod)), 1e-12)

	conj, err := tab.Conj(a)
	require.NoError(t, err)
	assert.InDelta(t, -0.5, imag(tab.Value(conj)), 1e-12)

	assert.InDelta(t, math.Sqrt(0.5), tab.Abs(a), 1e-12)
}

func TestTableFullAfterCapacity(t *testing.T) {
	tab := weight.New(weight.Config{Tolerance: 1e-12, MaxSize: 4, InitialSize: 4})
	// 3 reserved slots are pre-allocated; one dynamic entry fits.
	_, err := tab.Lookup(complex(0.1, 0))
	require.NoError(t, err)
	_, err = tab.Lookup(complex(0.2, 0))
	assert.ErrorIs(t, err, weight.ErrTableFull)
}
