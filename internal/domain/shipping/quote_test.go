package shipping

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRequester struct {
	calls    int
	options  []Option
	err      error
	onCall   func()
	provider string
	postal   string
	packages []Package
}

func (m *mockRequester) CalculateShipping(_ context.Context, provider, postalCode string, pkgs []Package) ([]Option, error) {
	m.calls++
	m.provider = provider
	m.postal = postalCode
	m.packages = pkgs
	if m.onCall != nil {
		m.onCall()
	}
	return m.options, m.err
}

type backendErr struct{ msg string }

func (e *backendErr) Error() string       { return "backend: " + e.msg }
func (e *backendErr) UserMessage() string { return e.msg }

func validPackage() Package {
	return Package{WidthCm: 11, HeightCm: 17, LengthCm: 11, WeightKg: 0.5, Insurance: decimal.NewFromInt(10)}
}

func twoOptions() []Option {
	return []Option{
		{Service: "PAC", Price: decimal.RequireFromString("21.90"), Delivery: json.RawMessage("8")},
		{Service: "SEDEX", Price: decimal.RequireFromString("38.40"), Delivery: json.RawMessage("3")},
	}
}

func TestRequest_ShortPostalCodeIsInvalid(t *testing.T) {
	m := &mockRequester{}
	f := NewFlow(m)

	err := f.Request(context.Background(), "melhorenvio", "1234", validPackage())

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, StateInvalid, f.State())
	assert.Zero(t, m.calls, "backend must not be called")
	assert.Contains(t, f.ErrMessage(), "CEP")
}

func TestRequest_IncompletePackageIsInvalid(t *testing.T) {
	m := &mockRequester{}
	f := NewFlow(m)

	pkg := validPackage()
	pkg.WeightKg = 0
	err := f.Request(context.Background(), "melhorenvio", "01310-100", pkg)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "packages", verr.Field)
	assert.Equal(t, StateInvalid, f.State())
	assert.Zero(t, m.calls)
}

func TestRequest_StripsPostalCodeFormatting(t *testing.T) {
	m := &mockRequester{options: twoOptions()}
	f := NewFlow(m)

	require.NoError(t, f.Request(context.Background(), "correios", "01310-100", validPackage()))

	assert.Equal(t, "01310100", m.postal)
	assert.Equal(t, "correios", m.provider)
	require.Len(t, m.packages, 1)
}

func TestRequest_QuotedSelectsFirstOption(t *testing.T) {
	f := NewFlow(&mockRequester{options: twoOptions()})

	require.NoError(t, f.Request(context.Background(), "melhorenvio", "01310100", validPackage()))

	assert.Equal(t, StateQuoted, f.State())
	opt, ok := f.Selected()
	require.True(t, ok)
	assert.Equal(t, "PAC", opt.Service)
	assert.Equal(t, 0, f.SelectedIndex())
}

func TestRequest_EmptyOptionsIsEmptyNotError(t *testing.T) {
	f := NewFlow(&mockRequester{})

	require.NoError(t, f.Request(context.Background(), "melhorenvio", "01310100", validPackage()))

	assert.Equal(t, StateEmpty, f.State())
	assert.Empty(t, f.ErrMessage())
	_, ok := f.Selected()
	assert.False(t, ok)
}

func TestRequest_BackendErrorMessagePassedThrough(t *testing.T) {
	f := NewFlow(&mockRequester{err: &backendErr{msg: "Configure o token do Melhor Envio."}})

	err := f.Request(context.Background(), "melhorenvio", "01310100", validPackage())

	require.Error(t, err)
	assert.Equal(t, StateFailed, f.State())
	assert.Equal(t, "Configure o token do Melhor Envio.", f.ErrMessage())
	assert.Empty(t, f.Options())
}

func TestRequest_TransportErrorGetsGenericMessage(t *testing.T) {
	f := NewFlow(&mockRequester{err: errors.New("connection refused")})

	_ = f.Request(context.Background(), "melhorenvio", "01310100", validPackage())

	assert.Equal(t, StateFailed, f.State())
	assert.Equal(t, genericFailureMessage, f.ErrMessage())
}

func TestRequest_FailureIsReentrant(t *testing.T) {
	m := &mockRequester{err: errors.New("boom")}
	f := NewFlow(m)

	_ = f.Request(context.Background(), "melhorenvio", "01310100", validPackage())
	require.Equal(t, StateFailed, f.State())

	m.err = nil
	m.options = twoOptions()
	require.NoError(t, f.Request(context.Background(), "melhorenvio", "01310100", validPackage()))
	assert.Equal(t, StateQuoted, f.State())
}

func TestRequest_StaleResponseDiscarded(t *testing.T) {
	m := &mockRequester{options: twoOptions()}
	f := NewFlow(m)
	// Simulate a newer request taking over while this one is in flight.
	m.onCall = func() { f.gen++ }

	require.NoError(t, f.Request(context.Background(), "melhorenvio", "01310100", validPackage()))

	assert.Equal(t, StateRequesting, f.State(), "stale outcome must not settle the flow")
	assert.Empty(t, f.Options())
}

func TestSelect_ChangesSelection(t *testing.T) {
	f := NewFlow(&mockRequester{options: twoOptions()})
	require.NoError(t, f.Request(context.Background(), "melhorenvio", "01310100", validPackage()))

	f.Select(1)

	opt, ok := f.Selected()
	require.True(t, ok)
	assert.Equal(t, "SEDEX", opt.Service)
}

func TestSelect_OutOfRangeIsNoop(t *testing.T) {
	f := NewFlow(&mockRequester{options: twoOptions()})
	require.NoError(t, f.Request(context.Background(), "melhorenvio", "01310100", validPackage()))

	f.Select(5)
	f.Select(-1)

	assert.Equal(t, 0, f.SelectedIndex())
}

func TestSelect_IgnoredOutsideQuoted(t *testing.T) {
	f := NewFlow(&mockRequester{})

	f.Select(0)

	_, ok := f.Selected()
	assert.False(t, ok)
}

func TestOnChange_FiredOnTransitions(t *testing.T) {
	f := NewFlow(&mockRequester{options: twoOptions()})
	var calls int
	f.OnChange(func() { calls++ })

	require.NoError(t, f.Request(context.Background(), "melhorenvio", "01310100", validPackage()))
	f.Select(1)
	f.Select(1) // unchanged, no call

	// Requesting + Quoted + selection change.
	assert.Equal(t, 3, calls)
}
