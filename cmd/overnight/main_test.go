package main

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"overnight.com/pkg/config"
	"overnight.com/pkg/liquid"
	"overnight.com/pkg/market"
	"overnight.com/pkg/series"
)

func TestRun_ExitCodes(t *testing.T) {
	assert.Equal(t, exitConfig, run(nil), "no command")
	assert.Equal(t, exitConfig, run([]string{"-nope"}))
	assert.Equal(t, exitConfig, run([]string{"-workers", "0", "frobnicate"}), "unknown command")
	assert.Equal(t, exitConfig, run([]string{"rules"}), "rules without load FILE")
	assert.Equal(t, exitConfig, run([]string{"stats"}), "stats without symbol")
	assert.Equal(t, exitConfig, run([]string{"build", "-start", "2024-13-01"}))
}

func TestIsConfigError(t *testing.T) {
	assert.True(t, isConfigError(fmt.Errorf("x: %w", series.ErrConfig)))
	assert.True(t, isConfigError(fmt.Errorf("ES: %w", market.ErrUnknownSymbol)))
	assert.True(t, isConfigError(config.ErrInvalid))
	assert.False(t, isConfigError(liquid.ErrNoCandidate))
	assert.False(t, isConfigError(context.Canceled))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"ES", "NQ"}, splitList(" ES, ,NQ,"))
	assert.Nil(t, splitList(""))
}

func TestDispatch_Usage(t *testing.T) {
	v, err := config.Load("")
	require.NoError(t, err)
	cfg, err := config.Decode(v)
	require.NoError(t, err)
	a := newApp(cfg, zap.NewNop(), true)
	defer a.close()

	err = dispatch(context.Background(), a, []string{"contracts", "explode"})
	require.ErrorIs(t, err, errUsage)

	err = dispatch(context.Background(), a, []string{"build", "-format", "xml"})
	require.ErrorIs(t, err, errUsage)
}
