package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagDefaults(t *testing.T) {
	cmd := newRootCmd()
	f := cmd.Flags()

	sleep, err := f.GetInt("sleep")
	require.NoError(t, err)
	assert.Equal(t, 5, sleep)

	sub, err := f.GetBool("subprocess")
	require.NoError(t, err)
	assert.True(t, sub)

	timeout, err := f.GetDuration("job-timeout")
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), timeout)

	assert.True(t, f.Lookup("payload").Hidden)
}

func TestTooManyArgs(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"a", "b"})
	assert.Error(t, cmd.Execute())
}
