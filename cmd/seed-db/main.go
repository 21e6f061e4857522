// Command seed-db prepares a fresh database for local development: catalog
// products from a JSON file, shipping rates, a demo address, sample discount
// codes, and API keys for a regular user and an admin.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/verdantlabs/checkout/internal/domain/address"
	"github.com/verdantlabs/checkout/internal/domain/auth"
	"github.com/verdantlabs/checkout/internal/domain/discount"
	"github.com/verdantlabs/checkout/internal/domain/product"
	"github.com/verdantlabs/checkout/internal/repository"
)

type productJSON struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
	ImageURL string          `json:"imageUrl"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
		apiKey       string
		adminKey     string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&apiKey, "api-key", "", "user API key to seed (or CHECKOUT_SEED_API_KEY env)")
	flag.StringVar(&adminKey, "admin-key", "", "admin API key to seed (or CHECKOUT_SEED_ADMIN_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or CHECKOUT_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("CHECKOUT_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or CHECKOUT_SEED_API_KEY")
		os.Exit(1)
	}
	if adminKey == "" {
		adminKey = os.Getenv("CHECKOUT_SEED_ADMIN_KEY")
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("CHECKOUT_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, apiKey, adminKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, apiKey, adminKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, repository.NewProductRepository(pool), productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedShippingRates(ctx, repository.NewShippingRateRepository(pool)); err != nil {
		return errors.Wrap(err, "seed shipping rates")
	}

	if err := seedAddresses(ctx, repository.NewAddressRepository(pool)); err != nil {
		return errors.Wrap(err, "seed addresses")
	}

	if err := seedDiscounts(ctx, repository.NewDiscountRepository(pool)); err != nil {
		return errors.Wrap(err, "seed discounts")
	}

	if err := seedAPIKeys(ctx, repository.NewAPIKeyRepository(pool), apiKey, adminKey, pepper); err != nil {
		return errors.Wrap(err, "seed api keys")
	}

	return nil
}

func seedProducts(ctx context.Context, repo *repository.ProductRepository, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		if err := repo.Upsert(ctx, &product.Product{
			ID:       p.ID,
			Name:     p.Name,
			Price:    p.Price,
			Category: p.Category,
			ImageURL: p.ImageURL,
		}); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

func seedShippingRates(ctx context.Context, repo *repository.ShippingRateRepository) error {
	slog.Info("seeding shipping rates")

	rates := map[string]decimal.Decimal{
		"dhaka":      decimal.NewFromInt(60),
		"chattogram": decimal.NewFromInt(100),
		"*":          decimal.NewFromInt(120),
	}
	for area, rate := range rates {
		if err := repo.Upsert(ctx, area, rate); err != nil {
			return errors.Wrapf(err, "upsert rate for %s", area)
		}
	}

	return nil
}

func seedAddresses(ctx context.Context, repo *repository.AddressRepository) error {
	slog.Info("seeding demo address")

	return repo.Upsert(ctx, &address.Address{
		ID:       "demo-address",
		UserID:   "demo-user",
		Name:     "Demo User",
		Phone:    "+8801700000000",
		Line1:    "House 12, Road 5",
		Area:     "dhaka",
		City:     "Dhaka",
		Postcode: "1213",
	})
}

func seedDiscounts(ctx context.Context, repo *repository.DiscountRepository) error {
	slog.Info("seeding sample discounts")

	discounts := []*discount.Discount{
		{
			ID:          "seed-save10",
			Code:        "SAVE10",
			Type:        discount.TypePercentage,
			Value:       decimal.NewFromInt(10),
			MinPurchase: decimal.NewFromInt(500),
			MaxDiscount: decimal.NewFromInt(200),
			Active:      true,
		},
		{
			ID:         "seed-flat50",
			Code:       "FLAT50",
			Type:       discount.TypeFixed,
			Value:      decimal.NewFromInt(50),
			UsageLimit: 100,
			Active:     true,
		},
	}

	for _, d := range discounts {
		if err := repo.Upsert(ctx, d); err != nil {
			return errors.Wrapf(err, "upsert discount %s", d.Code)
		}

		slog.Info("upserted discount", slog.String("code", d.Code))
	}

	return nil
}

func seedAPIKeys(ctx context.Context, repo *repository.APIKeyRepository, apiKey, adminKey, pepper string) error {
	slog.Info("seeding API keys")

	if err := repo.Upsert(ctx, &auth.APIKeyInfo{
		ID:      "demo",
		KeyHash: hashKey(apiKey, pepper),
		UserID:  "demo-user",
		Name:    "Demo user key",
	}); err != nil {
		return errors.Wrap(err, "upsert demo API key")
	}

	if adminKey != "" {
		if err := repo.Upsert(ctx, &auth.APIKeyInfo{
			ID:      "admin",
			KeyHash: hashKey(adminKey, pepper),
			UserID:  "admin-user",
			Name:    "Admin key",
			Admin:   true,
		}); err != nil {
			return errors.Wrap(err, "upsert admin API key")
		}
	}

	return nil
}

func hashKey(key, pepper string) string {
	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(key))
	return hex.EncodeToString(mac.Sum(nil))
}
