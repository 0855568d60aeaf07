package actions

import (
	"context"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/xeipuuv/gojsonschema"

	"github.com/stackflow-io/stackflow/pkg/models"
	"github.com/stackflow-io/stackflow/pkg/observability"
)

const schemaCacheSize = 128

// Registry maps action type strings to handlers and owns the dispatch
// contract. It is assembled once at startup and read-only afterwards, so
// Dispatch is safe for concurrent use.
type Registry struct {
	handlers map[string]Handler
	schemas  *lru.Cache[string, *gojsonschema.Schema]
	logger   observability.Logger
	metrics  observability.MetricsClient
}

// NewRegistry creates an empty action registry
func NewRegistry(logger observability.Logger, metrics observability.MetricsClient) *Registry {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	if metrics == nil {
		metrics = observability.NewNoopMetricsClient()
	}
	cache, _ := lru.New[string, *gojsonschema.Schema](schemaCacheSize)
	return &Registry{
		handlers: make(map[string]Handler),
		schemas:  cache,
		logger:   logger.WithPrefix("actions"),
		metrics:  metrics,
	}
}

// Register adds a handler. Registering the same type twice is a wiring
// bug and fails loudly.
func (r *Registry) Register(h Handler) error {
	name := h.Type()
	if name == "" {
		return fmt.Errorf("action handler has empty type")
	}
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("action type %q already registered", name)
	}
	r.handlers[name] = h
	return nil
}

// MustRegister panics on a duplicate registration; used for startup wiring
func (r *Registry) MustRegister(h Handler) {
	if err := r.Register(h); err != nil {
		panic(err)
	}
}

// Types returns every registered action type
func (r *Registry) Types() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}

// Dispatch runs one action: organization check, template resolution
// (unless the handler stages its own), schema validation, then the
// handler. The variable bag is passed through read-only; handlers must
// not mutate it.
func (r *Registry) Dispatch(ctx context.Context, actionType string, params map[string]interface{}, variables map[string]interface{}, extras *Extras) (interface{}, error) {
	start := time.Now()

	handler, ok := r.handlers[actionType]
	if !ok {
		return nil, &UnknownActionError{Type: actionType, Valid: r.Types()}
	}

	organizationID, _ := variables["organizationId"].(string)
	if strings.TrimSpace(organizationID) == "" {
		return nil, models.ErrMissingOrganizationID
	}

	resolved := params
	if !handler.RawTemplates() {
		var err error
		resolved, err = ResolveTemplates(params, variables)
		if err != nil {
			return nil, fmt.Errorf("action %q: %w", actionType, err)
		}
	}

	if err := r.validate(handler, resolved); err != nil {
		return nil, err
	}

	inv := Invocation{
		OrganizationID: organizationID,
		Params:         resolved,
		Variables:      variables,
	}
	if extras != nil {
		inv.ExecutionID = extras.ExecutionID
	}

	result, err := handler.Execute(ctx, inv)
	r.metrics.RecordLatency("actions.dispatch", time.Since(start))
	r.metrics.RecordCounter("actions.dispatched", 1, map[string]string{
		"type":    actionType,
		"success": fmt.Sprintf("%t", err == nil),
	})
	if err != nil {
		r.logger.Warn("action failed", map[string]interface{}{
			"type":  actionType,
			"error": err.Error(),
		})
		return nil, err
	}
	return result, nil
}

// validate checks params against the handler's JSON Schema. Compiled
// schemas are cached by schema text since handlers serve every dispatch.
func (r *Registry) validate(handler Handler, params map[string]interface{}) error {
	raw := handler.ParametersSchema()
	if raw == "" {
		return nil
	}

	schema, ok := r.schemas.Get(raw)
	if !ok {
		compiled, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw))
		if err != nil {
			return fmt.Errorf("action %q has invalid parameter schema: %w", handler.Type(), err)
		}
		r.schemas.Add(raw, compiled)
		schema = compiled
	}

	if params == nil {
		params = map[string]interface{}{}
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(params))
	if err != nil {
		return fmt.Errorf("action %q: parameter validation: %w", handler.Type(), err)
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return &ValidationError{Type: handler.Type(), Problems: problems}
	}
	return nil
}
