package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStartExecuteRecordsSuccessAndFailure(t *testing.T) {
	shutdown := Init()
	defer func() { _ = shutdown(context.Background()) }()

	_, end := StartExecute(context.Background(), "inprocess", 10)
	assert.NotPanics(t, func() { end("") })

	_, end = StartExecute(context.Background(), "inprocess", 10)
	assert.NotPanics(t, func() { end("RuntimeError") })
}

func TestStartExecuteLazilyInitializesWithoutExplicitInit(t *testing.T) {
	tracer = nil
	meter = nil
	_, end := StartExecute(context.Background(), "subprocess", 0)
	assert.NotPanics(t, func() { end("") })
}
