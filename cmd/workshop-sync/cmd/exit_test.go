package cmd

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go-workshop-sync/internal/workshop"

	"github.com/stretchr/testify/assert"
)

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, ExitOK},
		{"unknown flag", errors.New("unknown flag: --bogus"), ExitInitFailed},
		{"missing argument", errors.New("requires at least 1 arg(s), only received 0"), ExitInitFailed},
		{"tagged", withExitCode(ExitServiceUnavailable, errors.New("connection refused")), ExitServiceUnavailable},
		{"no inputs", workshop.ErrNoInputs, ExitNoInputs},
		{"unsupported type", fmt.Errorf("%w: Script", workshop.ErrUnsupportedType), ExitUnsupportedType},
		{"recovered panic", &workshop.FaultError{Value: "boom"}, ExitFault},
		{"batch cancelled", batchError(context.Canceled), ExitFault},
		{"batch unsupported type", batchError(fmt.Errorf("%w: World", workshop.ErrUnsupportedType)), ExitUnsupportedType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCodeFor(tt.err))
		})
	}
}

func TestBatchErrorKeepsCause(t *testing.T) {
	err := batchError(context.Canceled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.EqualError(t, err, context.Canceled.Error())
}
