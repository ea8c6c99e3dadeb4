package utils_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/jrsteele09/go-auth-client/internal/utils"
	"github.com/stretchr/testify/require"
)

func TestToStringSlice(t *testing.T) {
	require.Equal(t, []string{"USER", "ADMIN"}, utils.ToStringSlice([]any{"USER", 3, "ADMIN", nil}))
	require.Empty(t, utils.ToStringSlice(nil))
}

func TestToInt64(t *testing.T) {
	for _, v := range []any{float64(42), json.Number("42"), "42", 42, int64(42)} {
		n, err := utils.ToInt64(v)
		require.NoError(t, err, v)
		require.Equal(t, int64(42), n)
	}

	_, err := utils.ToInt64(1.5)
	require.ErrorIs(t, err, utils.ErrNotInteger)
	for _, v := range []float64{1e30, -1e30, 9.223372036854775807e18, math.Inf(1), math.NaN()} {
		_, err = utils.ToInt64(v)
		require.ErrorIs(t, err, utils.ErrNotInteger, v)
	}
	n, err := utils.ToInt64(float64(math.MinInt64))
	require.NoError(t, err)
	require.Equal(t, int64(math.MinInt64), n)
	_, err = utils.ToInt64(true)
	require.ErrorIs(t, err, utils.ErrNotInteger)
	_, err = utils.ToInt64("forty-two")
	require.Error(t, err)
}
