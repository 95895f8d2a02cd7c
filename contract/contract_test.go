package contract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type namedWorker struct{}

func (w *namedWorker) Run(ctx context.Context) error { return nil }

func TestGetWorkerName(t *testing.T) {
	req := require.New(t)

	req.Equal("namedWorker", GetWorkerName(&namedWorker{}))
	req.Equal("NilWorker", GetWorkerName(nil))
}
