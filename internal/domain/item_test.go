package domain

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestItemPrice_Clone_isIndependent(t *testing.T) {
	t.Parallel()

	orig := ItemPrice{
		ItemID:       42,
		BuyListings:  []ListEntry{{ListingCount: 1, UnitPrice: 10, Quantity: 5}},
		SellListings: []ListEntry{{ListingCount: 2, UnitPrice: 20, Quantity: 6}},
		Supply:       6,
		Demand:       5,
		BuyPrice:     10,
		SellPrice:    20,
	}

	clone := orig.Clone()
	if !reflect.DeepEqual(orig, clone) {
		t.Fatalf("clone differs: %+v vs %+v", clone, orig)
	}

	orig.BuyListings[0].UnitPrice = 999
	orig.SellListings = append(orig.SellListings, ListEntry{UnitPrice: 1})

	if clone.BuyListings[0].UnitPrice != 10 {
		t.Errorf("clone buy listing changed to %d", clone.BuyListings[0].UnitPrice)
	}
	if len(clone.SellListings) != 1 {
		t.Errorf("clone sell listings len got %d, want 1", len(clone.SellListings))
	}
}

func TestPriceRecord_Clone_isIndependent(t *testing.T) {
	t.Parallel()

	rec := PriceRecord{
		ID:         "a",
		ItemPrice:  ItemPrice{ItemID: 1, BuyListings: []ListEntry{{Quantity: 3}}},
		RecordedAt: time.Unix(100, 0).UTC(),
	}

	clone := rec.Clone()
	rec.ItemPrice.BuyListings[0].Quantity = 0

	if clone.ItemPrice.BuyListings[0].Quantity != 3 {
		t.Errorf("clone quantity changed to %d", clone.ItemPrice.BuyListings[0].Quantity)
	}
	if clone.ID != "a" || !clone.RecordedAt.Equal(rec.RecordedAt) {
		t.Errorf("clone metadata got %+v", clone)
	}
}

func TestParseItemID(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		want    uint32
		wantErr bool
	}{
		{in: "19721", want: 19721},
		{in: "1", want: 1},
		{in: "4294967295", want: 4294967295},
		{in: "0", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "4294967296", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tc := range cases {
		got, err := ParseItemID(tc.in)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidItemID) {
				t.Errorf("ParseItemID(%q) err got %v, want ErrInvalidItemID", tc.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseItemID(%q) unexpected error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseItemID(%q) got %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestCheckItemID(t *testing.T) {
	t.Parallel()

	if err := CheckItemID(0); !errors.Is(err, ErrInvalidItemID) {
		t.Errorf("CheckItemID(0) got %v, want ErrInvalidItemID", err)
	}
	if err := CheckItemID(19721); err != nil {
		t.Errorf("CheckItemID(19721) got %v", err)
	}
}

func TestListOpts_Page(t *testing.T) {
	t.Parallel()

	records := []PriceRecord{{ID: "1"}, {ID: "2"}, {ID: "3"}, {ID: "4"}}

	ids := func(rs []PriceRecord) []string {
		out := make([]string, 0, len(rs))
		for _, r := range rs {
			out = append(out, r.ID)
		}
		return out
	}

	cases := []struct {
		name string
		opts ListOpts
		want []string
	}{
		{name: "zero opts", opts: ListOpts{}, want: []string{"1", "2", "3", "4"}},
		{name: "limit", opts: ListOpts{Limit: 2}, want: []string{"1", "2"}},
		{name: "offset", opts: ListOpts{Offset: 3}, want: []string{"4"}},
		{name: "offset and limit", opts: ListOpts{Offset: 1, Limit: 2}, want: []string{"2", "3"}},
		{name: "limit past end", opts: ListOpts{Offset: 2, Limit: 10}, want: []string{"3", "4"}},
		{name: "offset past end", opts: ListOpts{Offset: 4}, want: []string{}},
	}

	for _, tc := range cases {
		got := ids(tc.opts.Page(records))
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}
