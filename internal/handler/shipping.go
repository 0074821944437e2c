package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/posv-labs/storefront/internal/domain/shipping"
	"github.com/posv-labs/storefront/internal/upstream/rates"
)

// quotePackage carries raw package data to the provider. Per-package
// dimension checks stay with the providers, which skip invalid packages and
// fail only when none is usable.
type quotePackage struct {
	Width     float64         `json:"width"`
	Height    float64         `json:"height"`
	Length    float64         `json:"length"`
	Weight    float64         `json:"weight"`
	Insurance decimal.Decimal `json:"insurance"`
	Quantity  int             `json:"quantity"`
}

type quoteRequest struct {
	Provider   string         `json:"provider"`
	PostalCode string         `json:"cep_destino" validate:"required"`
	Packages   []quotePackage `json:"packages" validate:"required,min=1"`
}

// calculateShipping serves POST /calcular-frete.
func (h *Handler) calculateShipping(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Corpo da requisição inválido.")
		return
	}

	dest := onlyDigits(req.PostalCode)
	if len(dest) < 8 {
		writeError(w, http.StatusBadRequest, "Informe um CEP de destino válido.")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Os dados dos pacotes são inválidos.")
		return
	}

	pkgs := make([]shipping.Package, 0, len(req.Packages))
	for _, p := range req.Packages {
		pkgs = append(pkgs, shipping.Package{
			WidthCm:   p.Width,
			HeightCm:  p.Height,
			LengthCm:  p.Length,
			WeightKg:  p.Weight,
			Insurance: p.Insurance,
		})
	}

	provider := h.rates.ByName(req.Provider)
	options, err := provider.Quote(ctx, h.originCEP, dest, pkgs)
	if err != nil {
		zctx.From(ctx).Warn("quote failed",
			zap.String("provider", provider.Name()),
			zap.Error(err),
		)
		writeError(w, quoteStatus(err), quoteMessage(err))
		return
	}

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("opcoes", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, opt := range options {
					encodeOption(e, opt)
				}
			})
		})
	})
	writeJSON(w, http.StatusOK, &e)
}

func quoteStatus(err error) int {
	switch {
	case errors.Is(err, rates.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, rates.ErrOriginRequired), errors.Is(err, rates.ErrNoValidPackage):
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}

func quoteMessage(err error) string {
	var qerr *rates.QuoteError
	if errors.As(err, &qerr) {
		return qerr.UserMessage()
	}
	switch {
	case errors.Is(err, rates.ErrUnauthorized):
		return "Token do provedor de frete inválido ou expirado."
	case errors.Is(err, rates.ErrOriginRequired):
		return "Configure o CEP de origem nas configurações do servidor."
	case errors.Is(err, rates.ErrNoValidPackage):
		return "Os dados dos pacotes são inválidos."
	}
	return "Erro ao calcular o frete."
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
