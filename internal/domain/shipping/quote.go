package shipping

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// State is the quote flow's position within one quote attempt.
type State string

const (
	// StateIdle means no quote attempt has produced a result yet.
	StateIdle State = "idle"
	// StateInvalid means local validation rejected the input; the backend
	// was not called.
	StateInvalid State = "invalid"
	// StateRequesting means a rate call is in flight.
	StateRequesting State = "requesting"
	// StateQuoted means the backend returned at least one option and one of
	// them is selected.
	StateQuoted State = "quoted"
	// StateEmpty means the backend answered successfully with zero options.
	// It is distinct from failure: the UI renders "no options", not an error.
	StateEmpty State = "empty"
	// StateFailed means the rate call failed at transport or backend level.
	StateFailed State = "failed"
)

// Option is one carrier/service choice returned by the rate backend.
// Delivery is an opaque, display-only estimate: an integer day count or a
// range object, depending on the provider.
type Option struct {
	Service  string
	Price    decimal.Decimal
	Delivery json.RawMessage
}

// ValidationError is a local, pre-network input rejection. The message is
// user-facing; the user corrects the input and retries.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// Validation failures surface one specific message per distinct cause.
var (
	errPostalCode = &ValidationError{
		Field:   "cep_destino",
		Message: "Informe um CEP de destino válido (8 dígitos).",
	}
	errIncompletePackage = &ValidationError{
		Field:   "packages",
		Message: "Preencha largura, altura, comprimento e peso do pacote.",
	}
)

// genericFailureMessage is shown when a failure carries no structured
// backend message (transport-level errors).
const genericFailureMessage = "Erro de comunicação ao calcular o frete."

// Requester performs the rate call. The storefront API client satisfies it.
type Requester interface {
	CalculateShipping(ctx context.Context, provider, postalCode string, pkgs []Package) ([]Option, error)
}

// userMessager is implemented by errors that carry a message safe to show
// verbatim to the user (backend error payloads).
type userMessager interface {
	UserMessage() string
}

// Flow drives one quote attempt at a time: validate, request, store options,
// track the selection. Like the cart, it expects single-threaded use.
type Flow struct {
	requester Requester

	state    State
	options  []Option
	selected int
	err      error

	// gen guards against a superseded request overwriting a newer outcome.
	gen uint64

	onChange []func()
}

// NewFlow returns an idle Flow backed by r.
func NewFlow(r Requester) *Flow {
	return &Flow{requester: r, state: StateIdle, selected: -1}
}

// OnChange registers fn to run after every state or selection transition.
func (f *Flow) OnChange(fn func()) {
	f.onChange = append(f.onChange, fn)
}

func (f *Flow) notify() {
	for _, fn := range f.onChange {
		fn()
	}
}

// State returns the current flow state.
func (f *Flow) State() State { return f.state }

// Err returns the error behind an Invalid or Failed state, nil otherwise.
func (f *Flow) Err() error { return f.err }

// ErrMessage returns the user-facing message for the current error: the
// validation or backend message verbatim, or a generic communication error
// for transport failures. Empty when there is no error.
func (f *Flow) ErrMessage() string {
	if f.err == nil {
		return ""
	}
	var v *ValidationError
	if errors.As(f.err, &v) {
		return v.Message
	}
	var um userMessager
	if errors.As(f.err, &um) {
		return um.UserMessage()
	}
	return genericFailureMessage
}

// Options returns the current option list. It is only non-empty in Quoted.
func (f *Flow) Options() []Option { return f.options }

// Selected returns the currently selected option. ok is false outside the
// Quoted state, in which case shipping contributes zero to the total.
func (f *Flow) Selected() (Option, bool) {
	if f.state != StateQuoted || f.selected < 0 || f.selected >= len(f.options) {
		return Option{}, false
	}
	return f.options[f.selected], true
}

// SelectedIndex returns the selected option position, or -1.
func (f *Flow) SelectedIndex() int {
	if f.state != StateQuoted {
		return -1
	}
	return f.selected
}

// Request runs one quote attempt. The postal code is stripped to digits and
// must have at least 8 of them; the package must be fully valid. Either
// check failing moves the flow to Invalid without calling the backend. A
// successful call moves to Quoted (selecting option 0) or Empty; a failed
// call moves to Failed with no options retained.
//
// The returned error mirrors what the state already exposes, so callers may
// ignore it and render from the flow.
func (f *Flow) Request(ctx context.Context, provider, postalCode string, pkg Package) error {
	digits := onlyDigits(postalCode)
	if len(digits) < 8 {
		f.settle(StateInvalid, nil, errPostalCode)
		return errPostalCode
	}
	if !pkg.Valid() {
		f.settle(StateInvalid, nil, errIncompletePackage)
		return errIncompletePackage
	}

	f.gen++
	gen := f.gen
	f.state = StateRequesting
	f.err = nil
	f.notify()

	options, err := f.requester.CalculateShipping(ctx, provider, digits, []Package{pkg})

	// A newer request took over while this one was in flight; its outcome
	// wins and this one is discarded.
	if gen != f.gen {
		return nil
	}

	switch {
	case err != nil:
		f.settle(StateFailed, nil, err)
		return err
	case len(options) == 0:
		f.settle(StateEmpty, nil, nil)
		return nil
	default:
		f.settle(StateQuoted, options, nil)
		return nil
	}
}

// Select changes the current selection while in Quoted. Out-of-range indexes
// are a no-op.
func (f *Flow) Select(i int) {
	if f.state != StateQuoted || i < 0 || i >= len(f.options) || i == f.selected {
		return
	}
	f.selected = i
	f.notify()
}

func (f *Flow) settle(state State, options []Option, err error) {
	f.state = state
	f.options = options
	f.err = err
	if state == StateQuoted {
		f.selected = 0
	} else {
		f.selected = -1
	}
	f.notify()
}

func onlyDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
