package templates

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	jsonutil "github.com/richinex/scout/internal/json"
	"github.com/richinex/scout/llm"
)

// DefaultTemperature is used by templates that do not set one.
const DefaultTemperature = 0.3

// Completer sends one request to a model. *llm.Client satisfies it.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (llm.LLMResponse, error)
}

// Executor renders templates and runs them against a model.
// Safe for concurrent use when the Completer is.
type Executor struct {
	loader      *Loader
	client      Completer
	temperature float64
	logger      *zap.Logger
}

// NewExecutor creates an executor. A nil logger disables logging.
func NewExecutor(loader *Loader, client Completer, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		loader:      loader,
		client:      client,
		temperature: DefaultTemperature,
		logger:      logger,
	}
}

// WithTemperature sets the temperature for templates that do not set one.
func (e *Executor) WithTemperature(t float64) *Executor {
	e.temperature = t
	return e
}

// Execute renders template name with vars, calls the model and returns
// its answer. Failures are reported through the response's error key.
func (e *Executor) Execute(ctx context.Context, name string, vars map[string]any) Response {
	t, err := e.loader.Load(name)
	if err != nil {
		e.logger.Error("template load failed", zap.String("template", name), zap.Error(err))
		return ErrorResponse(err.Error())
	}

	temperature := e.temperature
	if t.Temperature != nil {
		temperature = *t.Temperature
	}
	req := llm.NewRequest(t.System, t.Render(vars)).WithTemperature(float32(temperature))
	if t.MaxTokens > 0 {
		req = req.WithMaxTokens(t.MaxTokens)
	}
	if t.JSON() {
		req = req.WithJSON()
	}

	resp, err := e.client.Complete(ctx, req)
	if err != nil {
		e.logger.Warn("template call failed", zap.String("template", name), zap.Error(err))
		return ErrorResponse(fmt.Sprintf("%s: %v", name, err))
	}

	if !t.JSON() {
		return Response{KeyContent: resp.Content}
	}
	obj, err := jsonutil.ExtractObject(resp.Content)
	if err != nil {
		e.logger.Warn("template returned invalid JSON",
			zap.String("template", name),
			zap.String("preview", preview(resp.Content, 80)),
		)
		return Response{KeyError: ErrJSONParseFail, KeyRawContent: resp.Content}
	}
	return Response(obj)
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
