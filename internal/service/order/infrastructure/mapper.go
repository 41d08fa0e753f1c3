// internal/service/order/infrastructure/mapper.go
package infrastructure

import (
	"sort"

	"bazaar/internal/service/order/domain"
)

func toDomainProduct(m *ProductModel) *domain.Product {
	return &domain.Product{
		ID:                 m.ID,
		Name:               m.Name,
		Price:              m.Price,
		AvailableInventory: m.AvailableInventory,
		IsActive:           m.IsActive,
		Category:           m.Category,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

func toDomainOrder(m *OrderModel) *domain.Order {
	// 行按 LineNo 还原为下单时的声明顺序
	sort.Slice(m.Lines, func(i, j int) bool { return m.Lines[i].LineNo < m.Lines[j].LineNo })
	lines := make([]domain.OrderLine, 0, len(m.Lines))
	for _, l := range m.Lines {
		lines = append(lines, domain.OrderLine{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Name:      l.Name,
		})
	}
	return &domain.Order{
		ID:              m.ID,
		BuyerID:         m.BuyerID,
		Lines:           lines,
		TotalAmount:     m.TotalAmount,
		Status:          domain.Status(m.Status),
		PaymentStatus:   domain.PaymentStatus(m.PaymentStatus),
		ShippingAddress: m.ShippingAddress,
		PaymentMethod:   m.PaymentMethod,
		TrackingNumber:  m.TrackingNumber,
		Notes:           m.Notes,
		OrderedAt:       m.OrderedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func toOrderModel(o *domain.Order) *OrderModel {
	lines := make([]OrderLineModel, 0, len(o.Lines))
	for i, l := range o.Lines {
		lines = append(lines, OrderLineModel{
			OrderID:   o.ID,
			LineNo:    i,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Name:      l.Name,
		})
	}
	return &OrderModel{
		ID:              o.ID,
		BuyerID:         o.BuyerID,
		TotalAmount:     o.TotalAmount,
		Status:          string(o.Status),
		PaymentStatus:   string(o.PaymentStatus),
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   o.PaymentMethod,
		TrackingNumber:  o.TrackingNumber,
		Notes:           o.Notes,
		OrderedAt:       o.OrderedAt,
		UpdatedAt:       o.UpdatedAt,
		Lines:           lines,
	}
}
