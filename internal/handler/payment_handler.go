package handler

import (
	"context"

	"automedic-booking/internal/api"
	"automedic-booking/internal/middleware"
	"automedic-booking/internal/model"
)

func (h *Handler) CreatePaymentIntent(ctx context.Context, req *api.CreatePaymentIntentRequest) (*api.CreatePaymentIntentResponse, error) {
	pi, err := h.pay.CreateIntent(ctx, req.AmountMinorUnits, model.IntentMetadata{
		OrderName:  req.OrderName,
		CustomerID: middleware.IdentityFrom(ctx).UserID,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &api.CreatePaymentIntentResponse{Intent: api.FromIntent(pi)}, nil
}

func (h *Handler) PlaceCashOrder(ctx context.Context, req *api.PlaceCashOrderRequest) (*api.PlaceCashOrderResponse, error) {
	o, err := h.orders.PlaceCashOrder(ctx, middleware.IdentityFrom(ctx), req.OrderName, req.AmountMinorUnits)
	if err != nil {
		return nil, toStatus(err)
	}
	return &api.PlaceCashOrderResponse{Order: api.FromOrder(o)}, nil
}

func (h *Handler) ListOrders(ctx context.Context, _ *api.ListOrdersRequest) (*api.ListOrdersResponse, error) {
	got, err := h.orders.ListOrders(ctx, middleware.IdentityFrom(ctx))
	if err != nil {
		return nil, toStatus(err)
	}
	out := make([]*api.Order, len(got))
	for i := range got {
		out[i] = api.FromOrder(&got[i])
	}
	return &api.ListOrdersResponse{Orders: out}, nil
}
