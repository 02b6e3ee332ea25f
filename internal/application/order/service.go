package order

import (
	"context"

	domain "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"
)

// Service groups the order use cases behind one handle for transports.
type Service struct {
	create  *CreateOrderUseCase
	pay     *ProcessPaymentUseCase
	cancel  *CancelOrderUseCase
	details *GetOrderDetailsUseCase
}

func NewService(
	create *CreateOrderUseCase,
	pay *ProcessPaymentUseCase,
	cancel *CancelOrderUseCase,
	details *GetOrderDetailsUseCase,
) *Service {
	return &Service{create: create, pay: pay, cancel: cancel, details: details}
}

func (s *Service) Create(ctx context.Context, in CreateOrderInput) (OrderFullDetailsResponse, error) {
	g, err := s.create.Execute(ctx, in)
	if err != nil {
		return OrderFullDetailsResponse{}, err
	}
	return Project(*g), nil
}

func (s *Service) ProcessPayment(ctx context.Context, orderID string) (*ProcessPaymentResult, error) {
	return s.pay.Execute(ctx, ProcessPaymentInput{OrderID: orderID})
}

func (s *Service) Cancel(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.cancel.Execute(ctx, CancelOrderInput{OrderID: orderID})
}

func (s *Service) ResumeCancel(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.cancel.Resume(ctx, CancelOrderInput{OrderID: orderID})
}

func (s *Service) Details(ctx context.Context, orderID string) (OrderFullDetailsResponse, error) {
	return s.details.Execute(ctx, GetOrderDetailsInput{OrderID: orderID})
}
