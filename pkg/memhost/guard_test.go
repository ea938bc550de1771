package memhost

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	availableGB float64
	err         error
}

func (f fakeReader) AvailableGB(_ context.Context) (float64, error) {
	return f.availableGB, f.err
}

func gb(v float64) *float64 { return &v }

func TestAdmitKnownEstimateWithinBudget(t *testing.T) {
	g := New(fakeReader{availableGB: 40}, 8, 2)
	d, err := g.Admit(context.Background(), gb(20), false)
	require.NoError(t, err)
	assert.True(t, d.Admitted)
	assert.False(t, d.Forced)
	assert.Equal(t, 40.0, d.AvailableGB)
	assert.Equal(t, 20.0, d.RequiredGB)
}

func TestAdmitRejectsWhenBelowSafetyMargin(t *testing.T) {
	g := New(fakeReader{availableGB: 21}, 8, 2)
	d, err := g.Admit(context.Background(), gb(20), false)
	require.NoError(t, err)
	assert.False(t, d.Admitted)
}

func TestAdmitForceOverridesRejection(t *testing.T) {
	g := New(fakeReader{availableGB: 10}, 8, 2)
	d, err := g.Admit(context.Background(), gb(100), true)
	require.NoError(t, err)
	assert.True(t, d.Admitted)
	assert.True(t, d.Forced)
}

func TestAdmitUnknownEstimateUsesDefaultMinimum(t *testing.T) {
	g := New(fakeReader{availableGB: 10}, 8, 2)
	d, err := g.Admit(context.Background(), nil, false)
	require.NoError(t, err)
	assert.True(t, d.Admitted)
	assert.Equal(t, 8.0, d.RequiredGB)
}

func TestAdmitUnknownEstimateRejectsBelowDefaultMinimum(t *testing.T) {
	g := New(fakeReader{availableGB: 5}, 8, 2)
	d, err := g.Admit(context.Background(), nil, false)
	require.NoError(t, err)
	assert.False(t, d.Admitted)
}

func TestAdmitPropagatesReaderError(t *testing.T) {
	g := New(fakeReader{err: assert.AnError}, 8, 2)
	_, err := g.Admit(context.Background(), gb(1), false)
	require.Error(t, err)
}
