package work

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalSourceNotStarted(t *testing.T) {
	s := &LocalSource{TemplateSize: 76, Difficulty: 1, Log: zerolog.Nop()}
	_, _, err := s.TemplateForWork()
	require.Error(t, err)
}

func TestLocalSourceTemplateStable(t *testing.T) {
	s := &LocalSource{TemplateSize: 76, Difficulty: 4, Log: zerolog.Nop()}
	s.Start()

	first, target, err := s.TemplateForWork()
	require.NoError(t, err)
	require.Len(t, first, 76)
	assert.Equal(t, ^uint64(0)/4, target)

	second, _, err := s.TemplateForWork()
	require.NoError(t, err)
	//same template for the whole run, returned as a private copy
	assert.True(t, bytes.Equal(first, second))
	first[0] ^= 0xff
	third, _, err := s.TemplateForWork()
	require.NoError(t, err)
	assert.True(t, bytes.Equal(second, third))
}

func TestLocalSourceZeroDifficulty(t *testing.T) {
	s := &LocalSource{TemplateSize: 16, Log: zerolog.Nop()}
	s.Start()
	_, target, err := s.TemplateForWork()
	require.NoError(t, err)
	assert.Equal(t, ^uint64(0), target)
}

func TestLocalSourceSubmitMatch(t *testing.T) {
	s := &LocalSource{TemplateSize: 16, Difficulty: 1, Log: zerolog.Nop()}
	s.Start()
	require.NoError(t, s.SubmitMatch(Match{Nonce: 5, DigestTop64: 42}))
}
