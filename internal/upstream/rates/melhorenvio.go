package rates

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/posv-labs/storefront/internal/domain/shipping"
)

// Melhor Envio API base URLs per environment.
const (
	melhorEnvioSandboxURL    = "https://sandbox.melhorenvio.com.br/api/v2/me"
	melhorEnvioProductionURL = "https://www.melhorenvio.com.br/api/v2/me"
)

// melhorEnvioServices selects PAC, SEDEX and Mini Envios, matching the
// provider's web calculator.
const melhorEnvioServices = "1,2,18"

// melhorEnvioMinWeightKg is the provider's minimum accepted item weight.
const melhorEnvioMinWeightKg = 0.1

// MelhorEnvio quotes against the Melhor Envio shipment calculator.
type MelhorEnvio struct {
	baseURL string
	token   string
	http    *http.Client
	lg      *zap.Logger
}

// NewMelhorEnvio creates the provider. env selects the sandbox unless it is
// exactly "production". An explicit baseURL (for tests) overrides env.
func NewMelhorEnvio(env, baseURL, token string, timeout time.Duration, lg *zap.Logger) *MelhorEnvio {
	if baseURL == "" {
		baseURL = melhorEnvioSandboxURL
		if env == "production" {
			baseURL = melhorEnvioProductionURL
		}
	}
	return &MelhorEnvio{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		lg: lg,
	}
}

// Name implements Provider.
func (m *MelhorEnvio) Name() string { return "melhorenvio" }

type meItem struct {
	ID             string  `json:"id"`
	Width          float64 `json:"width"`
	Height         float64 `json:"height"`
	Length         float64 `json:"length"`
	Weight         float64 `json:"weight"`
	InsuranceValue float64 `json:"insurance_value"`
	Quantity       int     `json:"quantity"`
}

type meRequest struct {
	From     mePostal  `json:"from"`
	To       mePostal  `json:"to"`
	Products []meItem  `json:"products"`
	Options  meOptions `json:"options"`
	Services string    `json:"services"`
}

type mePostal struct {
	PostalCode string `json:"postal_code"`
}

type meOptions struct {
	Receipt bool `json:"receipt"`
	OwnHand bool `json:"own_hand"`
}

// meService is one calculator entry. Price fields may be numbers or strings,
// and the delivery estimate may be a day count or a range object.
type meService struct {
	Name    string `json:"name"`
	Company struct {
		Name string `json:"name"`
	} `json:"company"`
	Price              json.RawMessage `json:"price"`
	CustomPrice        json.RawMessage `json:"custom_price"`
	Cost               json.RawMessage `json:"cost"`
	DeliveryTime       json.RawMessage `json:"delivery_time"`
	CustomDeliveryTime json.RawMessage `json:"custom_delivery_time"`
	DeliveryRange      json.RawMessage `json:"delivery_range"`
}

// Quote implements Provider.
func (m *MelhorEnvio) Quote(ctx context.Context, originCEP, destCEP string, pkgs []shipping.Package) ([]shipping.Option, error) {
	if m.token == "" || onlyDigits(originCEP) == "" {
		return nil, &QuoteError{
			Provider: m.Name(),
			Message:  "Configure o token do Melhor Envio e o CEP de origem nas configurações.",
		}
	}

	body := meRequest{
		From:     mePostal{PostalCode: onlyDigits(originCEP)},
		To:       mePostal{PostalCode: onlyDigits(destCEP)},
		Options:  meOptions{Receipt: false, OwnHand: false},
		Services: melhorEnvioServices,
	}
	for _, p := range pkgs {
		if !p.Valid() {
			continue
		}
		weight := p.WeightKg
		if weight < melhorEnvioMinWeightKg {
			weight = melhorEnvioMinWeightKg
		}
		body.Products = append(body.Products, meItem{
			ID:             "STOREFRONT_ITEM",
			Width:          p.WidthCm,
			Height:         p.HeightCm,
			Length:         p.LengthCm,
			Weight:         weight,
			InsuranceValue: p.Insurance.InexactFloat64(),
			Quantity:       1,
		})
	}
	if len(body.Products) == 0 {
		return nil, ErrNoValidPackage
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/shipment/calculate", bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.token)
	req.Header.Set("User-Agent", "storefront (suporte@posv-labs.dev)")

	resp, err := m.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "melhorenvio request")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, errors.Wrap(ErrUnauthorized, "melhorenvio")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		m.lg.Warn("melhorenvio error response",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", raw[:min(len(raw), 200)]),
		)
		return nil, &QuoteError{
			Provider: m.Name(),
			Message:  "Erro HTTP ao calcular frete: " + resp.Status,
		}
	}

	services, err := decodeServices(raw)
	if err != nil {
		return nil, errors.Wrap(err, "decode response")
	}

	options := make([]shipping.Option, 0, len(services))
	for _, svc := range services {
		options = append(options, svc.toOption())
	}
	return options, nil
}

// decodeServices accepts both response shapes the calculator produces: a
// JSON array, or an object keyed by service ID.
func decodeServices(raw []byte) ([]meService, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []meService
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		return list, nil
	}

	var byID map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &byID); err != nil {
		return nil, err
	}
	services := make([]meService, 0, len(byID))
	for _, entry := range byID {
		var svc meService
		if err := json.Unmarshal(entry, &svc); err != nil {
			continue
		}
		services = append(services, svc)
	}
	return services, nil
}

func (s meService) toOption() shipping.Option {
	name := s.Name
	if name == "" {
		name = s.Company.Name
	}
	if name == "" {
		name = "Serviço"
	}

	price := firstMoney(s.CustomPrice, s.Price, s.Cost)

	delivery := firstRaw(s.CustomDeliveryTime, s.DeliveryTime, s.DeliveryRange)

	return shipping.Option{Service: name, Price: price, Delivery: delivery}
}

func firstMoney(candidates ...json.RawMessage) decimal.Decimal {
	for _, raw := range candidates {
		if len(raw) == 0 || string(raw) == "null" {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			s = string(raw)
		}
		if v := parseMoney(s); !v.IsZero() {
			return v
		}
	}
	return decimal.Zero
}

func firstRaw(candidates ...json.RawMessage) json.RawMessage {
	for _, raw := range candidates {
		if len(raw) > 0 && string(raw) != "null" {
			return raw
		}
	}
	return nil
}
