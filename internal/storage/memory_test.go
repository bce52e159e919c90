package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sni10/new-autotrade-sub001/internal/domain"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newTestOrder(t *testing.T) *domain.Order {
	t.Helper()
	order, err := domain.NewOrder("BTC/USDT", domain.SideBuy, domain.TypeLimit, dec("0.05"), dec("30000"), "")
	if err != nil {
		t.Fatal(err)
	}
	return order
}

func TestMemoryOrderRepository_SaveAndGet(t *testing.T) {
	repo := NewMemoryOrderRepository()
	ctx := context.Background()
	order := newTestOrder(t)

	if err := repo.Save(ctx, order); err != nil {
		t.Fatal(err)
	}

	got, err := repo.GetByID(ctx, order.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != order.ID || !got.Amount.Equal(order.Amount) {
		t.Errorf("got %+v, want %+v", got, order)
	}

	// The stored copy must be isolated from later caller mutations.
	order.Status = domain.StatusFailed
	got, _ = repo.GetByID(ctx, order.ID)
	if got.Status != domain.StatusPending {
		t.Errorf("stored status = %s, want PENDING", got.Status)
	}
}

func TestMemoryOrderRepository_NotFound(t *testing.T) {
	repo := NewMemoryOrderRepository()
	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, domain.ErrOrderNotFound) {
		t.Errorf("err = %v, want ErrOrderNotFound", err)
	}
}

func TestMemoryOrderRepository_GetOpenOrders(t *testing.T) {
	repo := NewMemoryOrderRepository()
	ctx := context.Background()

	open := newTestOrder(t)
	open.MarkPlaced("ex-1", time.Now())
	pending := newTestOrder(t)
	failed := newTestOrder(t)
	failed.MarkFailed("boom", time.Now())

	for _, o := range []*domain.Order{open, pending, failed} {
		if err := repo.Save(ctx, o); err != nil {
			t.Fatal(err)
		}
	}

	got, err := repo.GetOpenOrders(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != open.ID {
		t.Errorf("open orders = %d, want exactly the placed one", len(got))
	}
}

func TestMemoryDealRepository_Lifecycle(t *testing.T) {
	repo := NewMemoryDealRepository()
	ctx := context.Background()

	factory := domain.NewDealFactory()
	deal := factory.Create(domain.CurrencyPair{Symbol: "BTC/USDT", Base: "BTC", Quote: "USDT"})

	if err := repo.Save(ctx, deal); err != nil {
		t.Fatal(err)
	}

	openDeals, err := repo.GetOpenDeals(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(openDeals) != 1 {
		t.Fatalf("open deals = %d, want 1", len(openDeals))
	}

	deal.ForceCancel(time.Now())
	if err := repo.Save(ctx, deal); err != nil {
		t.Fatal(err)
	}
	openDeals, _ = repo.GetOpenDeals(ctx)
	if len(openDeals) != 0 {
		t.Errorf("open deals after cancel = %d, want 0", len(openDeals))
	}

	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, domain.ErrDealNotFound) {
		t.Errorf("err = %v, want ErrDealNotFound", err)
	}
}

func TestMemoryMetadata(t *testing.T) {
	meta := NewMemoryMetadata()
	ctx := context.Background()

	if err := meta.UpsertMetadata(ctx, "stats", `{"attempts":1}`, time.Now().Unix()); err != nil {
		t.Fatal(err)
	}
	got, err := meta.GetMetadata(ctx, "stats")
	if err != nil {
		t.Fatal(err)
	}
	if got != `{"attempts":1}` {
		t.Errorf("value = %q", got)
	}
	if got, _ := meta.GetMetadata(ctx, "missing"); got != "" {
		t.Errorf("missing key = %q, want empty", got)
	}
}
