package operators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"sona-picture-processing/internal/algorithms"
)

func solid(rows, cols int, v float64) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(v, v, v, 0), rows, cols, gocv.MatTypeCV8UC3)
}

func TestParse(t *testing.T) {
	op, err := Parse(" XOR ")
	require.NoError(t, err)
	assert.Equal(t, Xor, op)

	_, err = Parse("modulo")
	assert.ErrorIs(t, err, ErrUnknownOperator)
}

func TestArithmetic(t *testing.T) {
	a := solid(10, 10, 200)
	defer a.Close()
	b := solid(5, 5, 100)
	defer b.Close()

	cases := []struct {
		op   Operator
		want uint8
	}{
		{Add, 255},
		{Subtract, 100},
		{Multiply, 255},
		{Blend, 150},
		{And, 200 & 100},
		{Or, 200 | 100},
		{Xor, 200 ^ 100},
		{Not, 55},
	}

	for _, tc := range cases {
		t.Run(string(tc.op), func(t *testing.T) {
			out, err := Apply(tc.op, a, b, DefaultOptions())
			require.NoError(t, err)
			defer out.Close()

			assert.Equal(t, 10, out.Rows())
			assert.Equal(t, 10, out.Cols())
			assert.Equal(t, 3, out.Channels())
			assert.Equal(t, tc.want, out.GetVecbAt(5, 5)[0])
		})
	}
}

func TestDivideIsNormalized(t *testing.T) {
	a := solid(4, 4, 100)
	defer a.Close()
	b := solid(4, 4, 50)
	defer b.Close()
	a.SetUCharAt(0, 0, 0)

	out, err := Apply(Divide, a, b, DefaultOptions())
	require.NoError(t, err)
	defer out.Close()
	assert.Equal(t, 3, out.Channels())
	assert.Equal(t, uint8(0), out.GetVecbAt(0, 0)[0])
	assert.Equal(t, uint8(255), out.GetVecbAt(3, 3)[0])
}

func TestOverlayFollowsSecondLuminance(t *testing.T) {
	a := solid(4, 4, 40)
	defer a.Close()
	white := solid(4, 4, 255)
	defer white.Close()
	black := solid(4, 4, 0)
	defer black.Close()

	out, err := Apply(Overlay, a, white, DefaultOptions())
	require.NoError(t, err)
	defer out.Close()
	assert.Equal(t, uint8(255), out.GetVecbAt(1, 1)[1])

	kept, err := Apply(Overlay, a, black, DefaultOptions())
	require.NoError(t, err)
	defer kept.Close()
	assert.Equal(t, uint8(40), kept.GetVecbAt(1, 1)[1])
}

func TestMixedChannelCounts(t *testing.T) {
	a := solid(6, 6, 10)
	defer a.Close()
	gray := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(20, 0, 0, 0), 6, 6, gocv.MatTypeCV8U)
	defer gray.Close()

	out, err := Apply(Add, a, gray, DefaultOptions())
	require.NoError(t, err)
	defer out.Close()
	assert.Equal(t, gocv.Vecb{30, 30, 30}, out.GetVecbAt(0, 0))
}

func TestApplyErrors(t *testing.T) {
	a := solid(2, 2, 1)
	defer a.Close()
	empty := gocv.NewMat()
	defer empty.Close()

	_, err := Apply(Add, empty, a, DefaultOptions())
	assert.ErrorIs(t, err, algorithms.ErrEmptyInput)

	_, err = Apply(Add, a, empty, DefaultOptions())
	assert.ErrorIs(t, err, ErrMissingOperand)

	out, err := Apply(Not, a, empty, DefaultOptions())
	require.NoError(t, err)
	out.Close()

	_, err = Apply(Operator("pow"), a, a, DefaultOptions())
	assert.ErrorIs(t, err, ErrUnknownOperator)
}
