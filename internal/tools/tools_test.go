package tools_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/intentgraph/intentgraph/internal/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ─── Registry ─────────────────────────────────────────────────────────────────

func newRegistry(t *testing.T, opts ...tools.RegistryOption) *tools.Registry {
	t.Helper()
	r := tools.NewRegistry(opts...)
	require.NoError(t, r.Register(tools.CalculateTool()))
	require.NoError(t, r.Register(tools.WeatherTool(tools.StaticWeather{})))
	return r
}

func TestRegisterDuplicate(t *testing.T) {
	r := newRegistry(t)
	err := r.Register(tools.CalculateTool())
	assert.ErrorIs(t, err, tools.ErrDuplicateTool)
}

func TestRegisterInvalid(t *testing.T) {
	r := tools.NewRegistry()
	assert.ErrorIs(t, r.Register(tools.Tool{Name: ""}), tools.ErrInvalidTool)
	assert.ErrorIs(t, r.Register(tools.Tool{Name: "x"}), tools.ErrInvalidTool)
}

func TestInvokeUnknown(t *testing.T) {
	r := newRegistry(t)
	_, err := r.Invoke(context.Background(), "rm_rf", nil)
	require.ErrorIs(t, err, tools.ErrUnknownTool)

	text := tools.ResultText("", err)
	assert.True(t, strings.HasPrefix(text, "error: "))
	assert.Contains(t, text, "rm_rf")
}

func TestInvokeCalculate(t *testing.T) {
	r := newRegistry(t)
	out, err := r.Invoke(context.Background(), "calculate", map[string]any{"expression": "123 + 456"})
	require.NoError(t, err)
	assert.Equal(t, "计算结果：123 + 456 = 579", out)
}

func TestInvokeWrapsToolFailure(t *testing.T) {
	r := newRegistry(t)
	_, err := r.Invoke(context.Background(), "calculate", map[string]any{"expression": "1/0"})

	var execErr *tools.ToolExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "calculate", execErr.Tool)
	assert.ErrorIs(t, err, tools.ErrDivisionByZero)
}

func TestInvokeValidatesArguments(t *testing.T) {
	r := newRegistry(t)
	_, err := r.Invoke(context.Background(), "calculate", map[string]any{"expr": "1+1"})

	var execErr *tools.ToolExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Contains(t, err.Error(), "invalid arguments")
}

func TestInvokeRecoversPanic(t *testing.T) {
	r := tools.NewRegistry()
	require.NoError(t, r.Register(tools.Tool{
		Name: "boom",
		Execute: func(context.Context, map[string]any) (string, error) {
			panic("kaboom")
		},
	}))
	_, err := r.Invoke(context.Background(), "boom", nil)

	var execErr *tools.ToolExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Contains(t, err.Error(), "kaboom")
}

func TestDefinitionsKeepsOrder(t *testing.T) {
	r := newRegistry(t)
	defs, err := r.Definitions("get_weather", "calculate")
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "get_weather", defs[0].Name)
	assert.Equal(t, "calculate", defs[1].Name)

	_, err = r.Definitions("nope")
	assert.ErrorIs(t, err, tools.ErrUnknownTool)

	assert.Equal(t, []string{"calculate", "get_weather"}, r.Names())
}

func TestSchemaMap(t *testing.T) {
	m := tools.CalculateTool().SchemaMap()
	assert.Equal(t, "object", m["type"])
	props, ok := m["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "expression")
	assert.Contains(t, m["required"], "expression")
}

// ─── Approval ─────────────────────────────────────────────────────────────────

func TestApprovalGate(t *testing.T) {
	approver := tools.NewConfigApprover([]string{"calculate"}, []string{"get_weather"})
	r := newRegistry(t, tools.WithApprover(approver, "calculate", "get_weather"))

	out, err := r.Invoke(context.Background(), "calculate", map[string]any{"expression": "2*3"})
	require.NoError(t, err)
	assert.Contains(t, out, "= 6")

	_, err = r.Invoke(context.Background(), "get_weather", map[string]any{"city": "北京"})
	assert.ErrorIs(t, err, tools.ErrApprovalRejected)
	assert.Contains(t, err.Error(), "denied by policy")
}

func TestApprovalWithoutApprover(t *testing.T) {
	r := tools.NewRegistry()
	tool := tools.WeatherTool(tools.StaticWeather{})
	tool.RequiresApproval = true
	require.NoError(t, r.Register(tool))

	_, err := r.Invoke(context.Background(), "get_weather", map[string]any{"city": "北京"})
	assert.ErrorIs(t, err, tools.ErrApprovalRejected)
}

func TestTerminalApprover(t *testing.T) {
	tests := []struct {
		input    string
		approved bool
		feedback string
	}{
		{"y\n", true, ""},
		{"是\n", true, ""},
		{"OK\n", true, ""},
		{"换成上海\n", false, "换成上海"},
		{"n", false, "n"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var out strings.Builder
			a := tools.NewTerminalApprover(strings.NewReader(tt.input), &out)
			d, err := a.Review(context.Background(), tools.Review{
				Tool:      "get_weather",
				Arguments: map[string]any{"city": "北京"},
			})
			require.NoError(t, err)
			assert.Equal(t, tt.approved, d.Approved)
			assert.Equal(t, tt.feedback, d.Feedback)
			assert.Contains(t, out.String(), "city: 北京")
		})
	}
}

func TestTerminalApproverEOF(t *testing.T) {
	a := tools.NewTerminalApprover(strings.NewReader(""), &strings.Builder{})
	_, err := a.Review(context.Background(), tools.Review{Tool: "x"})
	assert.Error(t, err)
}

// ─── Weather ──────────────────────────────────────────────────────────────────

func TestStaticWeather(t *testing.T) {
	r := newRegistry(t)
	out, err := r.Invoke(context.Background(), "get_weather", map[string]any{"city": "北京"})
	require.NoError(t, err)
	assert.Equal(t, "北京的天气是晴天，温度25°C，适合出行！", out)

	_, err = r.Invoke(context.Background(), "get_weather", map[string]any{"city": "  "})
	assert.Error(t, err)
}

func TestWttrWeather(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3", r.URL.Query().Get("format"))
		if strings.Contains(r.URL.Path, "Nowhere") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("Shanghai: ☀️ +21°C\n"))
	}))
	defer srv.Close()

	w := tools.NewWttrWeather(srv.URL)
	out, err := w.Weather(context.Background(), "Shanghai")
	require.NoError(t, err)
	assert.Equal(t, "Shanghai: ☀️ +21°C", out)

	_, err = w.Weather(context.Background(), "Nowhere")
	assert.Error(t, err)
}

// ─── Calculator ───────────────────────────────────────────────────────────────

func TestEvaluate(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"123 + 456", "579"},
		{"2 * (3 + 4)", "14"},
		{"7 / 2", "3.5"},
		{"-2 ** 2", "-4"},
		{"2 ** -1", "0.5"},
		{"2 ** 3 ** 2", "512"},
		{"-7 % 3", "2"},
		{"7 % -3", "-2"},
		{"1.5e3 + 1", "1501"},
		{"（1＋2）×3", "9"},
		{"+-+1", "-1"},
		{"1_000 * 2", "2000"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			v, err := tools.Evaluate(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, tools.FormatNumber(v))
		})
	}
}

func TestEvaluateErrors(t *testing.T) {
	tests := []struct {
		expr string
		want error
	}{
		{"", tools.ErrEmptyExpression},
		{"1 / 0", tools.ErrDivisionByZero},
		{"5 % 0", tools.ErrDivisionByZero},
		{"0 ** -1", tools.ErrDivisionByZero},
		{"__import__('os')", nil},
		{"1 +", nil},
		{"(1 + 2", nil},
		{"1 2", nil},
		{"10 ** 400", nil},
		{strings.Repeat("(", 100) + "1" + strings.Repeat(")", 100), nil},
		{strings.Repeat("1+", 200) + "1", nil},
	}
	for _, tt := range tests {
		name := tt.expr
		if len(name) > 20 {
			name = name[:20]
		}
		t.Run(name, func(t *testing.T) {
			_, err := tools.Evaluate(tt.expr)
			require.Error(t, err)
			if tt.want != nil {
				assert.True(t, errors.Is(err, tt.want), "got %v", err)
			}
		})
	}
}
