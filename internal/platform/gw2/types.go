package gw2

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Commerce API DTOs
//
// Every field below is required. Decoding matches field names exactly,
// ignores unknown fields and rejects negative or fractional numbers.
// --------------------------------------------------------------------------

// APIOrder is one price point of the order book as returned by
// /commerce/listings.
type APIOrder struct {
	Listings  uint32 `json:"listings"`
	UnitPrice uint32 `json:"unit_price"`
	Quantity  uint32 `json:"quantity"`
}

// APIListings is the /commerce/listings/{id} response.
//
// The API returns Buys sorted highest price first and Sells sorted lowest
// price first. Translation relies on that ordering; see ToDomainItemPrice.
type APIListings struct {
	ID    uint32     `json:"id"`
	Buys  []APIOrder `json:"buys"`
	Sells []APIOrder `json:"sells"`
}

// APIPriceTotal is one side of the /commerce/prices response.
type APIPriceTotal struct {
	Quantity  uint32 `json:"quantity"`
	UnitPrice uint32 `json:"unit_price"`
}

// APIAggregatePrice is the /commerce/prices/{id} response.
type APIAggregatePrice struct {
	ID          uint32        `json:"id"`
	Whitelisted bool          `json:"whitelisted"`
	Buys        APIPriceTotal `json:"buys"`
	Sells       APIPriceTotal `json:"sells"`
}

func (o *APIOrder) UnmarshalJSON(data []byte) error {
	f, err := decodeFields(data)
	if err != nil {
		return err
	}
	var out APIOrder
	if err := f.require("listings", &out.Listings); err != nil {
		return err
	}
	if err := f.require("unit_price", &out.UnitPrice); err != nil {
		return err
	}
	if err := f.require("quantity", &out.Quantity); err != nil {
		return err
	}
	*o = out
	return nil
}

func (l *APIListings) UnmarshalJSON(data []byte) error {
	f, err := decodeFields(data)
	if err != nil {
		return err
	}
	var out APIListings
	if err := f.require("id", &out.ID); err != nil {
		return err
	}
	if err := f.require("buys", &out.Buys); err != nil {
		return err
	}
	if err := f.require("sells", &out.Sells); err != nil {
		return err
	}
	*l = out
	return nil
}

func (t *APIPriceTotal) UnmarshalJSON(data []byte) error {
	f, err := decodeFields(data)
	if err != nil {
		return err
	}
	var out APIPriceTotal
	if err := f.require("quantity", &out.Quantity); err != nil {
		return err
	}
	if err := f.require("unit_price", &out.UnitPrice); err != nil {
		return err
	}
	*t = out
	return nil
}

func (p *APIAggregatePrice) UnmarshalJSON(data []byte) error {
	f, err := decodeFields(data)
	if err != nil {
		return err
	}
	var out APIAggregatePrice
	if err := f.require("id", &out.ID); err != nil {
		return err
	}
	if err := f.require("whitelisted", &out.Whitelisted); err != nil {
		return err
	}
	if err := f.require("buys", &out.Buys); err != nil {
		return err
	}
	if err := f.require("sells", &out.Sells); err != nil {
		return err
	}
	*p = out
	return nil
}

// fields holds the raw members of a JSON object keyed by their exact name.
type fields map[string]json.RawMessage

var errNotObject = errors.New("expected a JSON object")

func decodeFields(data []byte) (fields, error) {
	var f fields
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if f == nil {
		return nil, errNotObject
	}
	return f, nil
}

// require decodes the member called name into dst. An absent or null member
// is an error.
func (f fields) require(name string, dst any) error {
	raw, ok := f[name]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return fmt.Errorf("missing required field %q", name)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("field %q: %w", name, err)
	}
	return nil
}
