package engine

import (
	"fmt"
	"os"

	ort "github.com/yalue/onnxruntime_go"
)

// Spec describes one ONNX model and the fixed tensor shapes it is bound to.
type Spec struct {
	ModelPath string
	// InputName and OutputName are discovered from the model when empty.
	InputName   string
	OutputName  string
	InputShape  []int64
	OutputShape []int64
	Threads     int
}

type ModelSession struct {
	Session *ort.AdvancedSession
	Input   *ort.Tensor[float32]
	Output  *ort.Tensor[float32]
}

func (m *ModelSession) Destroy() {
	if m.Session != nil {
		m.Session.Destroy()
	}
	if m.Input != nil {
		m.Input.Destroy()
	}
	if m.Output != nil {
		m.Output.Destroy()
	}
}

type threadOptions interface {
	SetIntraOpNumThreads(n int) error
	SetInterOpNumThreads(n int) error
}

// setThreads applies n to both thread pools. n <= 0 keeps the runtime default.
func setThreads(options threadOptions, n int) error {
	if n <= 0 {
		return nil
	}
	if err := options.SetIntraOpNumThreads(n); err != nil {
		return fmt.Errorf("error setting intra-op threads: %w", err)
	}
	if err := options.SetInterOpNumThreads(n); err != nil {
		return fmt.Errorf("error setting inter-op threads: %w", err)
	}
	return nil
}

func NewModelSession(spec Spec) (*ModelSession, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("error creating session options: %w", err)
	}
	defer options.Destroy()

	if err := setThreads(options, spec.Threads); err != nil {
		return nil, err
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(spec.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("error creating input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(spec.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("error creating output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		spec.ModelPath,
		[]string{spec.InputName},
		[]string{spec.OutputName},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		options,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("error creating session: %w", err)
	}

	return &ModelSession{
		Session: session,
		Input:   inputTensor,
		Output:  outputTensor,
	}, nil
}

// resolveSpec fills in missing input/output names from the model file and
// checks that the model's fixed dimensions agree with the spec.
func resolveSpec(spec Spec) (Spec, error) {
	if _, err := os.Stat(spec.ModelPath); err != nil {
		if os.IsNotExist(err) {
			return spec, fmt.Errorf("model file not found: %s", spec.ModelPath)
		}
		return spec, fmt.Errorf("stat model file: %w", err)
	}

	inputs, outputs, err := ort.GetInputOutputInfo(spec.ModelPath)
	if err != nil {
		return spec, fmt.Errorf("read model inputs/outputs: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return spec, fmt.Errorf("model %s declares %d inputs and %d outputs", spec.ModelPath, len(inputs), len(outputs))
	}

	if spec.InputName == "" {
		spec.InputName = inputs[0].Name
	}
	if spec.OutputName == "" {
		spec.OutputName = outputs[0].Name
	}

	for _, info := range inputs {
		if info.Name == spec.InputName {
			if err := checkDimensions("input", info.Name, info.Dimensions, spec.InputShape); err != nil {
				return spec, err
			}
		}
	}
	for _, info := range outputs {
		if info.Name == spec.OutputName {
			if err := checkDimensions("output", info.Name, info.Dimensions, spec.OutputShape); err != nil {
				return spec, err
			}
		}
	}
	return spec, nil
}

// checkDimensions compares declared model dimensions with the expected shape.
// Dynamic dimensions (negative or zero) match anything.
func checkDimensions(kind, name string, declared ort.Shape, want []int64) error {
	if len(declared) != len(want) {
		return fmt.Errorf("model %s %q has rank %d, want %d (%v)", kind, name, len(declared), len(want), want)
	}
	for i, d := range declared {
		if d > 0 && d != want[i] {
			return fmt.Errorf("model %s %q has shape %v, want %v", kind, name, []int64(declared), want)
		}
	}
	return nil
}
