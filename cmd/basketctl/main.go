// Command basketctl inspects and edits stored baskets.
//
//	basketctl [flags] create
//	basketctl [flags] show KEY
//	basketctl [flags] add KEY PRODUCT QUANTITY
//	basketctl [flags] set KEY LINE QUANTITY
//	basketctl [flags] remove KEY LINE
//	basketctl [flags] code KEY [-]CODE
//	basketctl [flags] checkout KEY SHIPPING PAYMENT
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/kart-basket/internal/app"
	"github.com/xenking/kart-basket/internal/domain/basket"
	"github.com/xenking/kart-basket/internal/domain/product"
	"github.com/xenking/kart-basket/internal/repository"
)

type noTelemetry struct{}

func (noTelemetry) MeterProvider() metric.MeterProvider { return metricnoop.NewMeterProvider() }
func (noTelemetry) TracerProvider() trace.TracerProvider { return tracenoop.NewTracerProvider() }

type options struct {
	databaseURL string
	shop        basket.Shop
	who         basket.Participants
	supplier    string
}

func main() {
	var opts options
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.shop.ID, "shop", "default", "shop id")
	flag.StringVar(&opts.shop.Currency, "currency", "EUR", "shop currency")
	flag.BoolVar(&opts.shop.PricesIncludeTax, "prices-include-tax", true, "whether shop prices include tax")
	flag.StringVar(&opts.who.CustomerID, "customer", "", "customer id")
	flag.StringVar(&opts.who.CreatorID, "creator", "basketctl", "creator id recorded on new baskets")
	flag.StringVar(&opts.supplier, "supplier", "bakery", "supplier for added products")
	flag.Parse()

	lg, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx = zctx.Base(ctx, lg)

	out, err := run(ctx, opts, flag.Args())
	if err != nil {
		lg.Fatal("Command failed", zap.String("command", flag.Arg(0)), zap.Error(err))
	}
	_, _ = os.Stdout.Write(append(out, '\n'))
}

func run(ctx context.Context, opts options, args []string) ([]byte, error) {
	pool, err := repository.NewPool(ctx, opts.databaseURL, repository.WithApplicationName("basketctl"))
	if err != nil {
		return nil, errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	svcs, err := app.NewServices(ctx, pool, app.CatalogConfig{CacheTTL: product.DefaultCacheTTL}, noTelemetry{})
	if err != nil {
		return nil, err
	}
	return execute(ctx, svcs.Basket, opts, args)
}

func arity(args []string, n int, usage string) error {
	if len(args) != n {
		return errors.Errorf("usage: %s", usage)
	}
	return nil
}

func quantity(s string) (decimal.Decimal, error) {
	q, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "quantity %q", s)
	}
	return q, nil
}

// execute runs one subcommand and renders the resulting basket.
func execute(ctx context.Context, svc *basket.Service, opts options, args []string) ([]byte, error) {
	cmd, args := args[0], args[1:]
	if cmd == "create" {
		b, err := svc.Create(ctx, opts.shop, opts.who)
		if err != nil {
			return nil, err
		}
		return render(ctx, b)
	}

	if len(args) == 0 {
		return nil, errors.Errorf("%s: basket key required", cmd)
	}
	b, err := svc.Open(ctx, args[0], opts.shop, opts.who)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", args[0])
	}

	switch cmd {
	case "show":
		err = arity(args, 1, "show KEY")
	case "add":
		if err = arity(args, 3, "add KEY PRODUCT QUANTITY"); err != nil {
			break
		}
		var q decimal.Decimal
		if q, err = quantity(args[2]); err != nil {
			break
		}
		_, err = svc.AddProduct(ctx, b, basket.AddProductParams{
			ProductID:  args[1],
			SupplierID: opts.supplier,
			ShopID:     opts.shop.ID,
			Quantity:   q,
		})
	case "set":
		if err = arity(args, 3, "set KEY LINE QUANTITY"); err != nil {
			break
		}
		var q decimal.Decimal
		if q, err = quantity(args[2]); err != nil {
			break
		}
		_, err = svc.UpdateLineQuantity(ctx, b, args[1], q)
	case "remove":
		if err = arity(args, 2, "remove KEY LINE"); err != nil {
			break
		}
		err = svc.DeleteLine(ctx, b, args[1])
	case "code":
		if err = arity(args, 2, "code KEY [-]CODE"); err != nil {
			break
		}
		if code, ok := strings.CutPrefix(args[1], "-"); ok {
			_, err = svc.RemoveCode(ctx, b, code)
		} else {
			_, err = svc.AddCode(ctx, b, args[1])
		}
	case "checkout":
		if err = arity(args, 3, "checkout KEY SHIPPING PAYMENT"); err != nil {
			break
		}
		var res *basket.CheckoutResult
		res, err = svc.Checkout(ctx, b, basket.CheckoutRequest{
			ShippingMethodID: args[1],
			PaymentMethodID:  args[2],
		})
		if err == nil {
			return renderCheckout(res), nil
		}
	default:
		err = errors.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		return nil, err
	}
	return render(ctx, b)
}
