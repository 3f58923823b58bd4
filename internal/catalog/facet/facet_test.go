package facet

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Classifieds-Catalog-Platform/internal/catalog/listing"
)

func ptr(f float64) *float64 { return &f }

func record(attrs map[string]listing.Value) *listing.Record {
	return listing.NewRecord(attrs)
}

func TestRangeBoundsAreInclusive(t *testing.T) {
	f, err := NewRange("boatEngine.power.float", ptr(10), ptr(40))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, power := range []float64{10, 25, 40} {
		r := record(map[string]listing.Value{"boatEngine.power.float": listing.Number(power)})
		if !Admits(r, f) {
			t.Errorf("expected power %v to be admitted", power)
		}
	}
	for _, power := range []float64{9.99, 40.01} {
		r := record(map[string]listing.Value{"boatEngine.power.float": listing.Number(power)})
		if Admits(r, f) {
			t.Errorf("expected power %v to be rejected", power)
		}
	}
}

func TestRangeRejectsMissingNullAndMalformed(t *testing.T) {
	f, _ := NewRange("year", ptr(2000), nil)
	cases := map[string]*listing.Record{
		"missing":   record(nil),
		"null":      record(map[string]listing.Value{"year": listing.Null()}),
		"malformed": record(map[string]listing.Value{"year": listing.String("unknown")}),
	}
	for name, r := range cases {
		if Admits(r, f) {
			t.Errorf("%s: expected rejection", name)
		}
	}
	if !Admits(record(map[string]listing.Value{"year": listing.String("2015")}), f) {
		t.Error("expected numeric string to be coerced and admitted")
	}
}

func TestRangeOpenEnded(t *testing.T) {
	f, _ := NewRange("sell.priceNum", nil, ptr(100))
	if !Admits(record(map[string]listing.Value{"sell.priceNum": listing.Number(-5)}), f) {
		t.Error("expected value below max with no min to be admitted")
	}
}

func TestOptionMatchIsCaseInsensitive(t *testing.T) {
	single, _ := NewOptions("boatEngine.fuelType", KindOptionSelect, "petrol")
	r := record(map[string]listing.Value{"boatEngine.fuelType": listing.String("Petrol")})
	if !Admits(r, single) {
		t.Error("expected case-insensitive match")
	}

	multi, _ := NewOptions("boatEngine.year", KindOptionSelectSearch, "2019", "2020")
	if !Admits(record(map[string]listing.Value{"boatEngine.year": listing.Number(2020)}), multi) {
		t.Error("expected numeric value to match its string key")
	}
	if Admits(record(map[string]listing.Value{"boatEngine.year": listing.Number(2018)}), multi) {
		t.Error("expected non-member to be rejected")
	}
	if Admits(record(map[string]listing.Value{"boatEngine.year": listing.Null()}), multi) {
		t.Error("expected null to be rejected")
	}
}

func TestBooleanRequiresTruthyValue(t *testing.T) {
	f := NewBoolean("delivery")
	if Admits(record(map[string]listing.Value{"delivery": listing.Null()}), f) {
		t.Error("expected null delivery to be rejected")
	}
	if Admits(record(map[string]listing.Value{"delivery": listing.Number(0)}), f) {
		t.Error("expected zero delivery to be rejected")
	}
	if !Admits(record(map[string]listing.Value{"delivery": listing.Number(300)}), f) {
		t.Error("expected delivery 300 to be admitted")
	}
	if Admits(record(nil), f) {
		t.Error("expected missing attribute to be rejected")
	}
}

func TestUnknownKindRejects(t *testing.T) {
	f := Active{Attribute: "x", Kind: "slider"}
	if Admits(record(map[string]listing.Value{"x": listing.Number(1)}), f) {
		t.Error("expected unknown kind to reject")
	}
	if err := f.Validate(); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("expected ErrUnknownKind, got %v", err)
	}
}

func TestConstructorsValidate(t *testing.T) {
	if _, err := NewRange("price", nil, nil); !errors.Is(err, ErrEmptyRange) {
		t.Errorf("expected ErrEmptyRange, got %v", err)
	}
	if _, err := NewRange("price", ptr(10), ptr(1)); !errors.Is(err, ErrInvertedRange) {
		t.Errorf("expected ErrInvertedRange, got %v", err)
	}
	if _, err := NewOptions("fuel", KindOptionSelect); !errors.Is(err, ErrNoOptions) {
		t.Errorf("expected ErrNoOptions, got %v", err)
	}
	if _, err := NewOptions("fuel", KindRange, "a"); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("expected ErrUnknownKind, got %v", err)
	}
}

func TestSetConjunction(t *testing.T) {
	fuel, _ := NewOptions("fuel", KindOptionSelect, "petrol")
	price, _ := NewRange("sell.priceNum", nil, ptr(1000))
	s := NewSet(fuel, price)

	both := record(map[string]listing.Value{"fuel": listing.String("petrol"), "sell.priceNum": listing.Number(500)})
	onlyFuel := record(map[string]listing.Value{"fuel": listing.String("petrol"), "sell.priceNum": listing.Number(5000)})
	if !s.Admits(both) {
		t.Error("expected record satisfying all filters to be admitted")
	}
	if s.Admits(onlyFuel) {
		t.Error("expected record satisfying one filter to be rejected")
	}
}

func TestSetOnePerAttribute(t *testing.T) {
	a, _ := NewOptions("fuel", KindOptionSelect, "petrol")
	b, _ := NewOptions("fuel", KindOptionSelect, "diesel")
	s := NewSet(a, b)
	if s.Len() != 1 {
		t.Fatalf("expected 1 filter, got %d", s.Len())
	}
	got, _ := s.Get("fuel")
	if got.Options[0] != "diesel" {
		t.Errorf("expected later filter to win, got %v", got.Options)
	}

	next := s.Without("fuel")
	if next == s || next.Len() != 0 || s.Len() != 1 {
		t.Error("expected Without to return a new set and leave the original intact")
	}
}

func TestActiveJSON(t *testing.T) {
	single, _ := NewOptions("fuel", KindOptionSelect, "petrol")
	data, err := json.Marshal(single)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(data) != `{"attributeName":"fuel","type":"optionSelect","value":"petrol"}` {
		t.Errorf("unexpected encoding %s", data)
	}

	var multi Active
	if err := json.Unmarshal([]byte(`{"attributeName":"year","type":"optionSelectSearch","value":["2019","2020"]}`), &multi); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(multi.Options) != 2 {
		t.Errorf("expected 2 options, got %v", multi.Options)
	}

	var rng Active
	if err := json.Unmarshal([]byte(`{"attributeName":"sell.priceNum","type":"range","value":{"min":100}}`), &rng); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rng.Range.Min == nil || *rng.Range.Min != 100 || rng.Range.Max != nil {
		t.Errorf("unexpected range %+v", rng.Range)
	}

	var off Active
	err = json.Unmarshal([]byte(`{"attributeName":"delivery","type":"boolean","value":false}`), &off)
	if !errors.Is(err, ErrBooleanOff) {
		t.Errorf("expected ErrBooleanOff, got %v", err)
	}
}

func TestSearchOptions(t *testing.T) {
	d := Definition{
		Attribute: "model.index",
		Kind:      KindOptionSelectSearch,
		Options:   map[string]string{"y40": "Yamaha 40", "s9": "Suzuki 9.9", "y9": "Yamaha 9.9"},
	}
	got := d.SearchOptions("yam")
	if len(got) != 2 || got[0].Key != "y40" || got[1].Key != "y9" {
		t.Errorf("unexpected options %+v", got)
	}
	if all := d.SearchOptions(""); len(all) != 3 {
		t.Errorf("expected all options, got %d", len(all))
	}
}

func TestOrderPutsActiveFirst(t *testing.T) {
	defs := []Definition{{Attribute: "a"}, {Attribute: "b"}, {Attribute: "c"}, {Attribute: "d"}}
	active := map[string]bool{"c": true, "d": true}
	got := Order(defs, func(d Definition) bool { return active[d.Attribute] })
	want := []string{"c", "d", "a", "b"}
	for i, d := range got {
		if d.Attribute != want[i] {
			t.Fatalf("got order %v, want %v", got, want)
		}
	}
	if defs[0].Attribute != "a" {
		t.Error("expected input to be left untouched")
	}
}
