package orders

import (
	"strings"

	"github.com/ordermesh/tokengate/internal/commerce"
	"github.com/ordermesh/tokengate/internal/errors"
)

// yearlyPlanSuffix selects the target billing plan during subscription
// changes: annual commitment, yearly billing.
const yearlyPlanSuffix = "P1Y:Y"

// OrderMutation is one order prepared for dispatch: the update items that
// resolved cleanly plus the per-item failures that did not. An order is
// dispatchable iff it has at least one resolved item.
type OrderMutation struct {
	OrderID    string
	Items      []commerce.UpdateItem
	ItemErrors []ItemError
}

// Dispatchable reports whether the order carries at least one resolved item.
func (m OrderMutation) Dispatchable() bool {
	return len(m.Items) > 0
}

// UniqueProductNames collects the distinct product names referenced by the
// orders, in first-seen order. Items without a product name are skipped.
func UniqueProductNames(orders []commerce.Order) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, order := range orders {
		for _, item := range order.OrderItems {
			if item.ProductName == "" {
				continue
			}
			if _, ok := seen[item.ProductName]; ok {
				continue
			}
			seen[item.ProductName] = struct{}{}
			names = append(names, item.ProductName)
		}
	}
	return names
}

// Resolve maps each order's items against the product catalog and builds
// the mutation batch. Resolution failures never abort the batch: they are
// tagged onto the owning order and the remaining items still dispatch.
func Resolve(orders []commerce.Order, products []commerce.Product) []OrderMutation {
	mutations := make([]OrderMutation, 0, len(orders))
	for _, order := range orders {
		m := OrderMutation{OrderID: order.Name}
		for _, item := range order.OrderItems {
			update, itemErr := resolveItem(item, products)
			if itemErr != nil {
				m.ItemErrors = append(m.ItemErrors, *itemErr)
				continue
			}
			m.Items = append(m.Items, update)
		}
		mutations = append(mutations, m)
	}
	return mutations
}

func resolveItem(item commerce.OrderItem, products []commerce.Product) (commerce.UpdateItem, *ItemError) {
	product, sku, ok := findSku(products, item.SkuID)
	if !ok {
		return commerce.UpdateItem{}, &ItemError{
			Code:        errors.CodeSkuNotFound,
			ItemName:    item.Name,
			ProductName: item.ProductName,
			Message:     "SKU " + item.SkuID + " not found in any product",
		}
	}

	plan, ok := findYearlyPlan(sku)
	if !ok {
		return commerce.UpdateItem{}, &ItemError{
			Code:        errors.CodePlanNotFound,
			ItemName:    item.Name,
			ProductName: item.ProductName,
			Message:     "no matching plan for SKU " + item.SkuID,
		}
	}

	return commerce.UpdateItem{
		ProductID:  lastSegment(product.Name),
		SkuID:      item.SkuID,
		PlanID:     plan.ID,
		Action:     "UPDATE",
		Quantity:   item.Quantity,
		ResourceID: item.ResourceID,
		Attributes: []commerce.Attribute{
			{Name: "operations", Value: "changeSubscription"},
		},
	}, nil
}

func findSku(products []commerce.Product, skuID string) (commerce.Product, commerce.Sku, bool) {
	for _, product := range products {
		for _, sku := range product.Definition.Skus {
			if sku.ID == skuID {
				return product, sku, true
			}
		}
	}
	return commerce.Product{}, commerce.Sku{}, false
}

func findYearlyPlan(sku commerce.Sku) (commerce.Plan, bool) {
	for _, plan := range sku.Plans {
		if strings.HasSuffix(plan.MpnID, yearlyPlanSuffix) {
			return plan, true
		}
	}
	return commerce.Plan{}, false
}

func lastSegment(name string) string {
	parts := strings.Split(name, "/")
	return parts[len(parts)-1]
}
