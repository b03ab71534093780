package shipping_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/shiprate/pkg/shipping"
	"github.com/tournevent/shiprate/pkg/shipping/mock"
	"github.com/tournevent/shiprate/pkg/units"
)

func testOrigin() *shipping.Address {
	return &shipping.Address{
		Line1:       "11 Broad St",
		City:        "Guilford",
		State:       "CT",
		PostalCode:  "06405",
		CountryCode: "US",
	}
}

func testDestination() *shipping.Address {
	return &shipping.Address{
		Line1:         "5 Old Georgetown Rd",
		City:          "Rockville",
		State:         "MD",
		PostalCode:    "20852",
		CountryCode:   "US",
		IsResidential: true,
	}
}

func testPackages() []shipping.Package {
	return []shipping.Package{
		shipping.NewPackage(12, 12, 12, 35, decimal.NewFromInt(150), units.Imperial),
	}
}

func TestRateManager_Scenario(t *testing.T) {
	manager := shipping.NewRateManager()
	manager.AddProvider(mock.WithRate("stub", "GND", "Ground", decimal.RequireFromString("42.00"), "USD"))
	manager.AddProvider(mock.Panicking("broken", "carrier exploded"))

	shipment, err := manager.GetRates(context.Background(), testOrigin(), testDestination(), testPackages(), nil)

	require.NoError(t, err)
	require.Len(t, shipment.Rates, 1)
	assert.Equal(t, "Ground", shipment.Rates[0].Name)
	assert.Equal(t, "42.00", shipment.Rates[0].TotalCharges.StringFixed(2))
	assert.Len(t, shipment.InternalErrors, 1)
	assert.Empty(t, shipment.Errors)
}

func TestRateManager_FailingProviderIsIsolated(t *testing.T) {
	manager := shipping.NewRateManager()
	manager.AddProvider(mock.Failing("provider-a", errors.New("connection reset")))
	manager.AddProvider(mock.New("provider-b"))

	shipment, err := manager.GetRates(context.Background(), testOrigin(), testDestination(), testPackages(), nil)

	require.NoError(t, err)
	assert.Len(t, shipment.Rates, 2)
	for _, r := range shipment.Rates {
		assert.Equal(t, "provider-b", r.Provider)
	}
	require.Len(t, shipment.InternalErrors, 1)
	assert.Equal(t, "provider-a: connection reset", shipment.InternalErrors[0])
}

func TestRateManager_PanicIsIsolated(t *testing.T) {
	manager := shipping.NewRateManager()
	manager.AddProvider(mock.Panicking("provider-a", "nil map write"))
	manager.AddProvider(mock.New("provider-b"))

	shipment, err := manager.GetRates(context.Background(), testOrigin(), testDestination(), testPackages(), nil)

	require.NoError(t, err)
	assert.Len(t, shipment.Rates, 2)
	require.Len(t, shipment.InternalErrors, 1)
	assert.Contains(t, shipment.InternalErrors[0], "provider-a: panic: nil map write")
}

func TestRateManager_WaitsForEveryProvider(t *testing.T) {
	slow := mock.WithRate("slow", "SLOW", "Slow", decimal.NewFromInt(10), "USD")
	slow.Latency = 200 * time.Millisecond

	manager := shipping.NewRateManager()
	manager.AddProvider(mock.New("fast"))
	manager.AddProvider(slow)

	start := time.Now()
	shipment, err := manager.GetRates(context.Background(), testOrigin(), testDestination(), testPackages(), nil)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.GreaterOrEqual(t, elapsed, 200*time.Millisecond)
	assert.Len(t, shipment.Rates, 3)
	assert.Equal(t, 1, slow.Calls())
}

func TestRateManager_NoProviders(t *testing.T) {
	manager := shipping.NewRateManager()

	shipment, err := manager.GetRates(context.Background(), testOrigin(), testDestination(), testPackages(), nil)

	require.NoError(t, err)
	assert.Empty(t, shipment.Rates)
	assert.Empty(t, shipment.Errors)
	assert.Empty(t, shipment.InternalErrors)
}

func TestRateManager_InvalidInput(t *testing.T) {
	tests := []struct {
		name        string
		origin      *shipping.Address
		destination *shipping.Address
		packages    []shipping.Package
	}{
		{"nil origin", nil, testDestination(), testPackages()},
		{"nil destination", testOrigin(), nil, testPackages()},
		{"no packages", testOrigin(), testDestination(), nil},
		{"negative weight", testOrigin(), testDestination(), []shipping.Package{
			shipping.NewPackage(1, 1, 1, -1, decimal.Zero, units.Imperial),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := mock.New("counted")
			manager := shipping.NewRateManager()
			manager.AddProvider(provider)

			shipment, err := manager.GetRates(context.Background(), tt.origin, tt.destination, tt.packages, nil)

			assert.Nil(t, shipment)
			assert.True(t, errors.Is(err, shipping.ErrInvalidRequest))
			assert.Equal(t, 0, provider.Calls())

			ch, err := manager.GetRatesAsync(context.Background(), tt.origin, tt.destination, tt.packages, nil)
			assert.Nil(t, ch)
			assert.True(t, errors.Is(err, shipping.ErrInvalidRequest))
			assert.Equal(t, 0, provider.Calls())
		})
	}
}

func TestRateManager_InvalidPackageWrapsSentinel(t *testing.T) {
	manager := shipping.NewRateManager()
	pkgs := []shipping.Package{shipping.NewPackage(-2, 1, 1, 1, decimal.Zero, units.Metric)}

	_, err := manager.GetRates(context.Background(), testOrigin(), testDestination(), pkgs, nil)

	assert.True(t, errors.Is(err, shipping.ErrInvalidPackage))
}

func TestRateManager_ManyConcurrentProviders(t *testing.T) {
	const n = 64
	manager := shipping.NewRateManager()
	for i := 0; i < n; i++ {
		code := fmt.Sprintf("SVC-%02d", i)
		manager.AddProvider(mock.WithRate(fmt.Sprintf("provider-%02d", i), code, code, decimal.NewFromInt(int64(i+1)), "USD"))
	}

	shipment, err := manager.GetRates(context.Background(), testOrigin(), testDestination(), testPackages(), nil)

	require.NoError(t, err)
	require.Len(t, shipment.Rates, n)
	seen := make(map[string]bool, n)
	for _, r := range shipment.Rates {
		assert.False(t, seen[r.ServiceCode], "duplicate rate %s", r.ServiceCode)
		seen[r.ServiceCode] = true
	}
	assert.Len(t, seen, n)
}

func TestRateManager_AdjustersApplyToEveryRate(t *testing.T) {
	manager := shipping.NewRateManager()
	manager.AddProvider(mock.WithRate("a", "A", "A", decimal.RequireFromString("19.995"), "USD"))
	manager.AddProvider(mock.WithRate("b", "B", "B", decimal.RequireFromString("10.00"), "USD"))
	manager.AddRateAdjuster(shipping.PercentageAdjuster(decimal.RequireFromString("0.9")))
	manager.AddRateAdjuster(shipping.RoundingAdjuster(2))

	shipment, err := manager.GetRates(context.Background(), testOrigin(), testDestination(), testPackages(), nil)

	require.NoError(t, err)
	require.Len(t, shipment.Rates, 2)
	shipping.SortRates(shipment.Rates)
	assert.Equal(t, "9.00", shipment.Rates[0].TotalCharges.StringFixed(2))
	assert.Equal(t, "18.00", shipment.Rates[1].TotalCharges.StringFixed(2))
}

func TestRateManager_BusinessErrors(t *testing.T) {
	provider := mock.New("carrier")
	provider.OnGetRates = func(ctx context.Context, s *shipping.Shipment) (*shipping.RateResult, error) {
		agg := shipping.NewRateResultAggregator("carrier")
		agg.AddProviderError(shipping.NewProviderError("", "-2147219401", "Invalid Zip Code").WithSource("RateV4"))
		return agg.Build(), nil
	}

	manager := shipping.NewRateManager()
	manager.AddProvider(provider)

	shipment, err := manager.GetRates(context.Background(), testOrigin(), testDestination(), testPackages(), nil)

	require.NoError(t, err)
	assert.Empty(t, shipment.Rates)
	assert.Empty(t, shipment.InternalErrors)
	require.Len(t, shipment.Errors, 1)
	assert.Equal(t, "carrier", shipment.Errors[0].Provider)
	assert.Equal(t, "Invalid Zip Code", shipment.Errors[0].Description)
}

func TestRateManager_PartialResultWithError(t *testing.T) {
	provider := mock.New("partial")
	provider.OnGetRates = func(ctx context.Context, s *shipping.Shipment) (*shipping.RateResult, error) {
		agg := shipping.NewRateResultAggregator("partial")
		agg.AddRate("ONE", "One", decimal.NewFromInt(5), nil, shipping.RateOptions{}, "USD")
		return agg.Build(), errors.New("second page failed")
	}

	manager := shipping.NewRateManager()
	manager.AddProvider(provider)

	shipment, err := manager.GetRates(context.Background(), testOrigin(), testDestination(), testPackages(), nil)

	require.NoError(t, err)
	assert.Len(t, shipment.Rates, 1)
	assert.Equal(t, []string{"partial: second page failed"}, shipment.InternalErrors)
}

func TestRateManager_ProviderTimeout(t *testing.T) {
	hung := mock.New("hung")
	hung.Latency = 5 * time.Second

	manager := shipping.NewRateManager(shipping.WithProviderTimeout(50 * time.Millisecond))
	manager.AddProvider(hung)
	manager.AddProvider(mock.New("healthy"))

	start := time.Now()
	shipment, err := manager.GetRates(context.Background(), testOrigin(), testDestination(), testPackages(), nil)

	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Len(t, shipment.Rates, 2)
	require.Len(t, shipment.InternalErrors, 1)
	assert.Contains(t, shipment.InternalErrors[0], "hung: ")
	assert.Contains(t, shipment.InternalErrors[0], context.DeadlineExceeded.Error())
}

func TestRateManager_ProviderFilter(t *testing.T) {
	ups := mock.New("ups")
	fedex := mock.New("fedex")

	manager := shipping.NewRateManager()
	manager.AddProvider(ups)
	manager.AddProvider(fedex)

	opts := &shipping.ShipmentOptions{Providers: []string{"UPS", "pigeon"}}
	shipment, err := manager.GetRates(context.Background(), testOrigin(), testDestination(), testPackages(), opts)

	require.NoError(t, err)
	assert.Equal(t, 1, ups.Calls())
	assert.Equal(t, 0, fedex.Calls())
	assert.Len(t, shipment.Rates, 2)
	require.Len(t, shipment.InternalErrors, 1)
	assert.Contains(t, shipment.InternalErrors[0], "pigeon")
	assert.Contains(t, shipment.InternalErrors[0], shipping.ErrProviderNotFound.Error())
}

func TestRateManager_ConcurrencyLimit(t *testing.T) {
	var inFlight, maxInFlight atomic.Int64

	manager := shipping.NewRateManager(shipping.WithConcurrencyLimit(1))
	for i := 0; i < 3; i++ {
		p := mock.New(fmt.Sprintf("p%d", i))
		p.OnGetRates = func(ctx context.Context, s *shipping.Shipment) (*shipping.RateResult, error) {
			cur := inFlight.Add(1)
			for {
				prev := maxInFlight.Load()
				if cur <= prev || maxInFlight.CompareAndSwap(prev, cur) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			inFlight.Add(-1)
			return &shipping.RateResult{}, nil
		}
		manager.AddProvider(p)
	}

	_, err := manager.GetRates(context.Background(), testOrigin(), testDestination(), testPackages(), nil)

	require.NoError(t, err)
	assert.Equal(t, int64(1), maxInFlight.Load())
}

type recordingObserver struct {
	mu    sync.Mutex
	calls map[string]int
}

func (o *recordingObserver) ObserveProvider(_ context.Context, provider string, _ time.Duration, res *shipping.RateResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls[provider] += len(res.Rates) + len(res.InternalErrors)
}

func TestRateManager_Observer(t *testing.T) {
	observer := &recordingObserver{calls: map[string]int{}}

	manager := shipping.NewRateManager(shipping.WithObserver(observer))
	manager.AddProvider(mock.New("ok"))
	manager.AddProvider(mock.Failing("bad", errors.New("boom")))

	_, err := manager.GetRates(context.Background(), testOrigin(), testDestination(), testPackages(), nil)

	require.NoError(t, err)
	assert.Equal(t, map[string]int{"ok": 2, "bad": 1}, observer.calls)
}

type panickingObserver struct{}

func (panickingObserver) ObserveProvider(context.Context, string, time.Duration, *shipping.RateResult) {
	panic("observer exploded")
}

func TestRateManager_ObserverPanicIsContained(t *testing.T) {
	manager := shipping.NewRateManager(shipping.WithObserver(panickingObserver{}))
	manager.AddProvider(mock.New("provider-a"))
	manager.AddProvider(mock.New("provider-b"))

	shipment, err := manager.GetRates(context.Background(), testOrigin(), testDestination(), testPackages(), nil)

	require.NoError(t, err)
	assert.Len(t, shipment.Rates, 4)
	assert.Empty(t, shipment.InternalErrors)
}

// namelessProvider panics when asked for its name.
type namelessProvider struct {
	shipping.Provider
}

func (namelessProvider) Name() string {
	panic("no name")
}

func TestRateManager_NamePanicIsIsolated(t *testing.T) {
	manager := shipping.NewRateManager()
	manager.AddProvider(namelessProvider{Provider: mock.New("hidden")})
	manager.AddProvider(mock.New("provider-b"))

	assert.Equal(t, []string{"shipping_test.namelessProvider", "provider-b"}, manager.ProviderNames())

	shipment, err := manager.GetRates(context.Background(), testOrigin(), testDestination(), testPackages(), nil)

	require.NoError(t, err)
	assert.Len(t, shipment.Rates, 4)
	assert.Empty(t, shipment.InternalErrors)
}

func TestRateManager_GetRatesAsync(t *testing.T) {
	slow := mock.New("slow")
	slow.Latency = 50 * time.Millisecond

	manager := shipping.NewRateManager()
	manager.AddProvider(slow)
	manager.AddProvider(mock.Failing("bad", errors.New("boom")))

	ch, err := manager.GetRatesAsync(context.Background(), testOrigin(), testDestination(), testPackages(), nil)
	require.NoError(t, err)

	select {
	case shipment := <-ch:
		require.NotNil(t, shipment)
		assert.Len(t, shipment.Rates, 2)
		assert.Len(t, shipment.InternalErrors, 1)
	case <-time.After(5 * time.Second):
		t.Fatal("async rating did not complete")
	}

	_, open := <-ch
	assert.False(t, open, "channel should be closed after the shipment is delivered")
}

func TestRateManager_ProviderNames(t *testing.T) {
	manager := shipping.NewRateManager()
	manager.AddProvider(mock.New("ups"))
	manager.AddProvider(mock.New("dhl"))
	manager.AddProvider(nil)

	assert.Equal(t, []string{"ups", "dhl"}, manager.ProviderNames())
}

func TestRateManager_ShipmentCarriesRequest(t *testing.T) {
	var seen *shipping.Shipment
	provider := mock.New("inspect")
	provider.OnGetRates = func(ctx context.Context, s *shipping.Shipment) (*shipping.RateResult, error) {
		seen = s
		return &shipping.RateResult{}, nil
	}

	manager := shipping.NewRateManager()
	manager.AddProvider(provider)

	shipDate := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	opts := &shipping.ShipmentOptions{ShipDate: shipDate, SaturdayDelivery: true, CurrencyCode: "USD"}
	shipment, err := manager.GetRates(context.Background(), testOrigin(), testDestination(), testPackages(), opts)

	require.NoError(t, err)
	require.Same(t, shipment, seen)
	assert.NotEmpty(t, shipment.ID)
	assert.Equal(t, "06405", shipment.Origin.PostalCode)
	assert.Equal(t, "20852", shipment.Destination.PostalCode)
	assert.Equal(t, shipDate, shipment.Options.ShipDate)
	assert.True(t, shipment.Options.SaturdayDelivery)
	assert.Len(t, shipment.Packages(), 1)
}
