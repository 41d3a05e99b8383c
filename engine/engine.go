package engine

import (
	"context"
	"fmt"

	"github.com/Tutortoise/xray-analysis-service/models"
)

// ONNXEngine runs one ONNX model through a pool of bound sessions.
type ONNXEngine struct {
	spec Spec
	pool *SessionPool
}

// Load validates the model file, resolves its tensor names and builds
// poolSize sessions. The runtime must already be initialised.
func Load(spec Spec, poolSize int) (*ONNXEngine, error) {
	resolved, err := resolveSpec(spec)
	if err != nil {
		return nil, err
	}

	pool, err := NewSessionPool(poolSize, func() (*ModelSession, error) {
		return NewModelSession(resolved)
	})
	if err != nil {
		return nil, err
	}

	return &ONNXEngine{spec: resolved, pool: pool}, nil
}

func (e *ONNXEngine) Spec() Spec {
	return e.spec
}

// Run copies input into a borrowed session, runs it and returns a fresh copy
// of the output.
func (e *ONNXEngine) Run(ctx context.Context, input models.Tensor) (models.Tensor, error) {
	if err := input.Validate(); err != nil {
		return models.Tensor{}, fmt.Errorf("invalid input tensor: %w", err)
	}
	if !input.SameShape(e.spec.InputShape) {
		return models.Tensor{}, fmt.Errorf("input shape %v does not match model input %v", input.Shape, e.spec.InputShape)
	}

	session, err := e.pool.Acquire(ctx)
	if err != nil {
		return models.Tensor{}, fmt.Errorf("acquire session: %w", err)
	}
	defer e.pool.Release(session)

	copy(session.Input.GetData(), input.Data)
	if err := session.Session.Run(); err != nil {
		return models.Tensor{}, fmt.Errorf("run %s: %w", e.spec.ModelPath, err)
	}

	output := models.NewTensor(e.spec.OutputShape...)
	copy(output.Data, session.Output.GetData())
	return output, nil
}

func (e *ONNXEngine) Metrics() PoolMetrics {
	return e.pool.Metrics()
}

func (e *ONNXEngine) Close() {
	e.pool.Destroy()
}
