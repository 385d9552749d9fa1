package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	assert.Equal(t, "0000000000000042", Format(ArcDocID, 42))
	assert.Equal(t, "42", Format(Offset, 42))
	assert.Len(t, Format(ArcDocID, 1), ArcDocIDWidth)
}

func TestParse(t *testing.T) {
	v, err := Parse("")
	require.NoError(t, err)
	assert.Zero(t, v)

	v, err = Parse("0000000000000007")
	require.NoError(t, err)
	assert.EqualValues(t, 7, v)

	_, err = Parse("seven")
	assert.Error(t, err)
	_, err = Parse("-3")
	assert.Error(t, err)
}

func TestWrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(DHRID, cause)
	assert.ErrorIs(t, err, ErrAllocation)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), DHRID)
}

func TestKnown(t *testing.T) {
	for _, n := range Names {
		assert.True(t, Known(n))
	}
	assert.False(t, Known("smtp_server"))
}
