package pipeline

import (
	"sort"
	"strings"

	"github.com/Tutortoise/xray-analysis-service/models"
)

// Model pairs an adapter with the engine that runs its network.
type Model struct {
	Type    models.ModelType
	Adapter Adapter
	Engine  Engine
}

// Registry is the set of models that loaded at startup. It is built once and
// only read afterwards.
type Registry struct {
	models map[models.ModelType]*Model
}

func NewRegistry(loaded ...*Model) *Registry {
	r := &Registry{models: make(map[models.ModelType]*Model, len(loaded))}
	for _, m := range loaded {
		if m == nil || m.Adapter == nil || m.Engine == nil {
			continue
		}
		r.models[m.Type] = m
	}
	return r
}

// Lookup resolves a selector. Unknown selectors and known-but-unloaded ones
// fail with different kinds.
func (r *Registry) Lookup(t models.ModelType) (*Model, error) {
	if !t.Known() {
		return nil, errUnknownModel(t)
	}
	m, ok := r.models[t]
	if !ok {
		return nil, errModelUnavailable(t)
	}
	return m, nil
}

func (r *Registry) Loaded(t models.ModelType) bool {
	_, ok := r.models[t]
	return ok
}

// Available returns the loaded model types in a stable order.
func (r *Registry) Available() []models.ModelType {
	types := make([]models.ModelType, 0, len(r.models))
	for t := range r.models {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Status maps every known model type to whether it loaded.
func (r *Registry) Status() map[models.ModelType]bool {
	status := make(map[models.ModelType]bool, len(models.KnownModelTypes))
	for _, t := range models.KnownModelTypes {
		status[t] = r.Loaded(t)
	}
	return status
}

// Engines returns the engine behind every loaded model, keyed by type.
func (r *Registry) Engines() map[models.ModelType]Engine {
	engines := make(map[models.ModelType]Engine, len(r.models))
	for t, m := range r.models {
		engines[t] = m.Engine
	}
	return engines
}

func (r *Registry) Close() {
	for _, m := range r.models {
		if c, ok := m.Engine.(interface{ Close() }); ok {
			c.Close()
		}
	}
}

func joinTypes(types []models.ModelType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
