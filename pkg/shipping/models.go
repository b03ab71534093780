package shipping

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tournevent/shiprate/pkg/units"
)

// Address represents an origin or destination location.
type Address struct {
	Line1         string
	Line2         string
	Line3         string
	City          string
	State         string // state or province code, e.g. "CT", "ON"
	PostalCode    string
	CountryCode   string // ISO 3166-1 alpha-2, e.g. "US", "CA"
	IsResidential bool
}

// Lines returns the non-empty street lines in order.
func (a Address) Lines() []string {
	lines := make([]string, 0, 3)
	for _, l := range []string{a.Line1, a.Line2, a.Line3} {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// IsCountry reports whether the address is in the given country.
// An empty country code is treated as "US".
func (a Address) IsCountry(code string) bool {
	country := a.CountryCode
	if country == "" {
		country = "US"
	}
	return strings.EqualFold(country, code)
}

// Package represents a physical parcel. Its declared unit system is fixed at
// construction; dimensions and weight can be read in either system.
type Package struct {
	length            float64
	width             float64
	height            float64
	weight            float64
	system            units.System
	insuredValue      decimal.Decimal
	container         string
	signatureRequired bool
	documents         bool
}

// PackageOption customizes a Package at construction.
type PackageOption func(*Package)

// WithContainer sets the provider packaging/container code.
func WithContainer(code string) PackageOption {
	return func(p *Package) {
		p.container = code
	}
}

// WithSignatureRequired marks the package as requiring a delivery signature.
func WithSignatureRequired() PackageOption {
	return func(p *Package) {
		p.signatureRequired = true
	}
}

// NewPackage creates a package with dimensions and weight declared in system.
func NewPackage(length, width, height, weight float64, insured decimal.Decimal, system units.System, opts ...PackageOption) Package {
	if !system.Valid() {
		system = units.Imperial
	}
	p := Package{
		length:       length,
		width:        width,
		height:       height,
		weight:       weight,
		system:       system,
		insuredValue: insured,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// NewDocumentsPackage creates a documents-only package with zero dimensions.
func NewDocumentsPackage(weight float64, insured decimal.Decimal, system units.System, opts ...PackageOption) Package {
	p := NewPackage(0, 0, 0, weight, insured, system, opts...)
	p.documents = true
	return p
}

// System returns the unit system the package was declared in.
func (p Package) System() units.System { return p.system }

// Length returns the package length in the requested system.
func (p Package) Length(sys units.System) float64 {
	return units.ConvertLength(p.length, p.system, sys)
}

// Width returns the package width in the requested system.
func (p Package) Width(sys units.System) float64 {
	return units.ConvertLength(p.width, p.system, sys)
}

// Height returns the package height in the requested system.
func (p Package) Height(sys units.System) float64 {
	return units.ConvertLength(p.height, p.system, sys)
}

// Weight returns the package weight in the requested system.
func (p Package) Weight(sys units.System) float64 {
	return units.ConvertWeight(p.weight, p.system, sys)
}

// Girth returns twice the sum of width and height in the requested system.
func (p Package) Girth(sys units.System) float64 {
	return 2 * (p.Width(sys) + p.Height(sys))
}

// InsuredValue returns the declared insured value.
func (p Package) InsuredValue() decimal.Decimal { return p.insuredValue }

// Container returns the packaging code, if any.
func (p Package) Container() string { return p.container }

// SignatureRequired reports whether a delivery signature is required.
func (p Package) SignatureRequired() bool { return p.signatureRequired }

// IsDocuments reports whether the package only carries documents.
func (p Package) IsDocuments() bool { return p.documents }

// ShipmentOptions holds cross-cutting request parameters.
type ShipmentOptions struct {
	ShipDate         time.Time
	SaturdayDelivery bool
	CurrencyCode     string   // preferred currency; empty keeps provider currency
	FedExOneRate     bool     // request FedEx One Rate pricing
	Providers        []string // empty = all registered providers
}

// RateOptions describes how a rate was priced.
type RateOptions struct {
	SaturdayDelivery bool
}

// Rate represents one priced shipping option.
type Rate struct {
	Provider           string
	ServiceCode        string
	Name               string
	TotalCharges       decimal.Decimal
	CurrencyCode       string
	GuaranteedDelivery *time.Time
	Options            RateOptions
}

// Shipment is the aggregate root of one rating request. Providers must treat
// it as read-only; the result collections are populated by RateManager after
// every provider has finished.
type Shipment struct {
	ID          string
	Origin      Address
	Destination Address
	Options     ShipmentOptions

	Rates          []Rate
	Errors         []ProviderError
	InternalErrors []string

	packages  []Package
	adjusters []RateAdjuster
}

// NewShipment creates a shipment with a private copy of packages.
func NewShipment(id string, origin, destination Address, packages []Package, opts ShipmentOptions, adjusters ...RateAdjuster) *Shipment {
	if opts.ShipDate.IsZero() {
		opts.ShipDate = time.Now()
	}
	return &Shipment{
		ID:             id,
		Origin:         origin,
		Destination:    destination,
		Options:        opts,
		Rates:          []Rate{},
		Errors:         []ProviderError{},
		InternalErrors: []string{},
		packages:       append([]Package(nil), packages...),
		adjusters:      append([]RateAdjuster(nil), adjusters...),
	}
}

// Packages returns a copy of the shipment's packages.
func (s *Shipment) Packages() []Package {
	return append([]Package(nil), s.packages...)
}

// TotalWeight returns the combined weight of all packages.
func (s *Shipment) TotalWeight(sys units.System) float64 {
	var total float64
	for _, p := range s.packages {
		total += p.Weight(sys)
	}
	return total
}

// TotalInsuredValue returns the combined insured value of all packages.
func (s *Shipment) TotalInsuredValue() decimal.Decimal {
	total := decimal.Zero
	for _, p := range s.packages {
		total = total.Add(p.InsuredValue())
	}
	return total
}

// HasDocumentsOnly reports whether every package is a documents package.
func (s *Shipment) HasDocumentsOnly() bool {
	if len(s.packages) == 0 {
		return false
	}
	for _, p := range s.packages {
		if !p.IsDocuments() {
			return false
		}
	}
	return true
}

// merge records one provider's result, folding every rate through the
// shipment's adjusters in registration order.
func (s *Shipment) merge(res *RateResult) {
	if res == nil {
		return
	}
	for _, r := range res.Rates {
		s.Rates = append(s.Rates, applyAdjusters(r, s.adjusters))
	}
	s.Errors = append(s.Errors, res.Errors...)
	s.InternalErrors = append(s.InternalErrors, res.InternalErrors...)
}

// SortRates orders rates by total charges, then provider, then service code.
func SortRates(rates []Rate) {
	sort.SliceStable(rates, func(i, j int) bool {
		if c := rates[i].TotalCharges.Cmp(rates[j].TotalCharges); c != 0 {
			return c < 0
		}
		if rates[i].Provider != rates[j].Provider {
			return rates[i].Provider < rates[j].Provider
		}
		return rates[i].ServiceCode < rates[j].ServiceCode
	})
}
