// Command storefront is a terminal front end for the shopping widget: search
// the catalog, build a cart, size the shipping package and quote the freight
// against the proxy.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	"github.com/posv-labs/storefront/internal/client"
	"github.com/posv-labs/storefront/internal/domain/shipping"
	"github.com/posv-labs/storefront/internal/widget"
	"github.com/posv-labs/storefront/pkg/currency"
)

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, _ *app.Telemetry) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		api := client.New(cfg.ProxyURL, cfg.Timeout, lg.Named("client"))
		session := widget.NewSession(api, lg.Named("widget"))

		repl := &repl{
			session:  session,
			provider: cfg.Provider,
			out:      os.Stdout,
		}
		return repl.run(ctx, os.Stdin)
	})
}

type repl struct {
	session  *widget.Session
	provider string
	out      *os.File
}

func (r *repl) run(ctx context.Context, in *os.File) error {
	r.printf("Comandos: search [-r] <termo> | add <n> | qty <n> <qtd> | rm <n> | cart |")
	r.printf("          dims <larg> <alt> <comp> | quote [provedor] <cep> | pick <n> | totals | quit")

	scanner := bufio.NewScanner(in)
	for {
		r.printf("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch cmd, args := fields[0], fields[1:]; cmd {
		case "quit", "exit":
			return nil
		case "search":
			r.search(ctx, args)
		case "add":
			if i, ok := index(args, 0); ok {
				if err := r.session.AddToCart(i); err != nil {
					r.printf("Resultado %d não existe.", i+1)
					continue
				}
				r.cart()
			}
		case "qty":
			if i, ok := index(args, 0); ok {
				if qty, ok := number(args, 1); ok {
					r.session.SetQuantity(i, qty)
					r.cart()
				}
			}
		case "rm":
			if i, ok := index(args, 0); ok {
				r.session.RemoveItem(i)
				r.cart()
			}
		case "cart":
			r.cart()
		case "dims":
			r.dims(args)
		case "quote":
			provider, cep := r.provider, ""
			switch len(args) {
			case 1:
				cep = args[0]
			case 2:
				provider, cep = args[0], args[1]
			default:
				r.printf("Uso: quote [provedor] <cep>")
				continue
			}
			if err := r.session.RequestQuote(ctx, provider, cep); err != nil {
				r.printf("Falha na cotação: %v", err)
			}
			r.quote()
		case "pick":
			if i, ok := index(args, 0); ok {
				r.session.SelectOption(i)
				r.quote()
			}
		case "totals":
			r.totals()
		default:
			r.printf("Comando desconhecido: %s", cmd)
		}
	}
}

func (r *repl) search(ctx context.Context, args []string) {
	force := false
	if len(args) > 0 && args[0] == "-r" {
		force = true
		args = args[1:]
	}
	term := strings.Join(args, " ")

	res, err := r.session.Search(ctx, term, force)
	if err != nil {
		r.printf("Busca falhou: %v", err)
		return
	}

	r.printf("%d de %d produtos ativos:", len(res.Products), res.ActiveCount)
	for i, p := range res.Products {
		weight := "peso n/d"
		if p.HasWeight {
			weight = fmt.Sprintf("%.3f kg", p.WeightKg)
		}
		r.printf("%3d. [%s] %s — %s (%s)", i+1, p.SKU, p.Name, currency.Format(p.Price), weight)
	}
}

func (r *repl) cart() {
	items := r.session.CartItems()
	if len(items) == 0 {
		r.printf("Carrinho vazio.")
		return
	}
	for i, line := range items {
		r.printf("%3d. %dx %s — %s", i+1, line.Quantity, line.Name, currency.Format(line.Total()))
	}
	r.totals()
}

func (r *repl) dims(args []string) {
	if len(args) < 3 {
		r.printf("Uso: dims <largura> <altura> <comprimento> (cm)")
		return
	}
	dims := make([]float64, 3)
	for i := range dims {
		v, err := strconv.ParseFloat(strings.ReplaceAll(args[i], ",", "."), 64)
		if err != nil {
			return
		}
		dims[i] = v
	}
	r.session.SetDimensions(dims[0], dims[1], dims[2])

	pkg := r.session.CurrentPackage()
	r.printf("Pacote: %.1f x %.1f x %.1f cm, %.3f kg, seguro %s",
		pkg.WidthCm, pkg.HeightCm, pkg.LengthCm, pkg.WeightKg, currency.Format(pkg.Insurance))
}

func (r *repl) quote() {
	flow := r.session.Quote()
	switch flow.State() {
	case shipping.StateQuoted:
		selected := flow.SelectedIndex()
		for i, opt := range flow.Options() {
			marker := " "
			if i == selected {
				marker = "*"
			}
			r.printf("%s %2d. %s — %s (prazo: %s)", marker, i+1, opt.Service, currency.Format(opt.Price), string(opt.Delivery))
		}
		r.totals()
	case shipping.StateEmpty:
		r.printf("Nenhuma opção de frete disponível.")
	case shipping.StateInvalid, shipping.StateFailed:
		r.printf("%s", flow.ErrMessage())
	case shipping.StateRequesting:
		r.printf("Cotação em andamento.")
	default:
		r.printf("Nenhuma cotação feita ainda.")
	}
}

func (r *repl) totals() {
	summary := r.session.Totals()
	r.printf("Produtos: %s | Frete: %s | Total: %s",
		currency.Format(summary.Products),
		currency.Format(summary.Shipping),
		currency.Format(summary.Grand))
}

func (r *repl) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format+"\n", args...)
}

// index parses a 1-based position argument into a 0-based index.
func index(args []string, pos int) (int, bool) {
	n, ok := number(args, pos)
	return n - 1, ok
}

func number(args []string, pos int) (int, bool) {
	if pos >= len(args) {
		return 0, false
	}
	n, err := strconv.Atoi(args[pos])
	if err != nil {
		return 0, false
	}
	return n, true
}
