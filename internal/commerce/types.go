// Package commerce is the client for the external B2B commerce API. The API
// is consumed as a black box: only the documented response shapes are
// modelled here.
package commerce

import "encoding/json"

// Order is one order as returned by the getAllOrders endpoint. The name
// field doubles as the order identifier
// ("accounts/{accountId}/customers/{customerId}/orders/{orderId}").
type Order struct {
	Name       string      `json:"name"`
	OrderItems []OrderItem `json:"orderItems"`
}

// OrderItem carries the fields the adapter reads plus the raw item so
// filtering can inspect any field without this package enumerating them all.
type OrderItem struct {
	SkuID       string          `json:"skuId"`
	ResourceID  string          `json:"resourceId"`
	Quantity    int             `json:"quantity"`
	Name        string          `json:"name"`
	ProductName string          `json:"productName"`
	Raw         json.RawMessage `json:"-"`
}

// UnmarshalJSON keeps a copy of the raw item alongside the typed fields.
func (i *OrderItem) UnmarshalJSON(data []byte) error {
	type alias OrderItem
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*i = OrderItem(a)
	i.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON round-trips the original item payload when present so
// unmodelled fields survive the getFilteredOrders response.
func (i OrderItem) MarshalJSON() ([]byte, error) {
	if len(i.Raw) > 0 {
		return i.Raw, nil
	}
	type alias OrderItem
	return json.Marshal(alias(i))
}

// Field returns the string value of a named field on the raw item, or ""
// when absent or not a string. Used by the filter predicates.
func (i OrderItem) Field(name string) string {
	switch name {
	case "skuId":
		return i.SkuID
	case "resourceId":
		return i.ResourceID
	case "name":
		return i.Name
	case "productName":
		return i.ProductName
	}
	if len(i.Raw) == 0 {
		return ""
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(i.Raw, &fields); err != nil {
		return ""
	}
	if v, ok := fields[name].(string); ok {
		return v
	}
	return ""
}

// Product is one catalog entry from getProducts.
type Product struct {
	Name       string `json:"name"`
	Definition struct {
		Skus []Sku `json:"skus"`
	} `json:"definition"`
}

// Sku is one purchasable unit inside a product definition.
type Sku struct {
	ID    string `json:"id"`
	Plans []Plan `json:"plans"`
}

// Plan is one billing plan attached to a sku.
type Plan struct {
	ID    string `json:"id"`
	MpnID string `json:"mpnId"`
}

// UpdateItem is one mutation inside an order update request.
type UpdateItem struct {
	ProductID  string      `json:"productId"`
	SkuID      string      `json:"skuId"`
	PlanID     string      `json:"planId"`
	Action     string      `json:"action"`
	Quantity   int         `json:"quantity"`
	ResourceID string      `json:"resourceId"`
	Attributes []Attribute `json:"attributes"`
}

// Attribute is a name/value pair attached to an update item.
type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type ordersResponse struct {
	Orders []Order `json:"orders"`
}

type productsResponse struct {
	Products []Product `json:"products"`
}
