package orders

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Service is the order processor: it validates carts, drives the submission
// unit of work, and hands post-commit effects to the dispatcher.
type Service struct {
	Store    Store
	Effects  Dispatcher
	Log      *zap.Logger
	Restock  bool // restock products when an order is deleted
}

func NewService(store Store, effects Dispatcher, log *zap.Logger, restockOnDelete bool) *Service {
	if effects == nil {
		effects = NopDispatcher{}
	}
	return &Service{Store: store, Effects: effects, Log: log, Restock: restockOnDelete}
}

func (s *Service) SubmitOrder(ctx context.Context, in NewOrder) (*Order, error) {
	if err := validateNewOrder(&in); err != nil {
		return nil, err
	}

	o, err := s.Store.CreateOrder(ctx, in)
	if err != nil {
		return nil, err
	}

	s.Log.Info("order created",
		zap.Int64("order_id", o.ID),
		zap.String("total_amount", o.TotalAmount.String()),
		zap.String("payment_method", string(o.PaymentMethod)))

	s.Effects.Dispatch(ctx, []Effect{{
		Kind:           EffectOrderCreated,
		Order:          *o,
		NotifyAdmin:    !in.SuppressAdminEmail,
		NotifyCustomer: o.CustomerEmail != "" && !in.SuppressCustomerEmail,
	}})
	return o, nil
}

func validateNewOrder(in *NewOrder) error {
	if len(in.Items) == 0 {
		return Validationf("order must have at least one product")
	}
	if strings.TrimSpace(in.CustomerName) == "" {
		return Validationf("customer_name is required")
	}
	if strings.TrimSpace(in.CustomerPhone) == "" {
		return Validationf("customer_phone is required")
	}
	if strings.TrimSpace(in.DeliveryAddress) == "" {
		return Validationf("delivery_address is required")
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = PaymentCashOnDelivery
	}
	if !in.PaymentMethod.Valid() {
		return Validationf("unknown payment method %q", in.PaymentMethod)
	}
	for _, it := range in.Items {
		if it.Quantity <= 0 {
			return Validationf("quantity for product %d must be positive", it.ProductID)
		}
	}
	return nil
}

func (s *Service) GetOrder(ctx context.Context, id int64) (*Order, error) {
	return s.Store.GetOrder(ctx, id)
}

func (s *Service) ListOrders(ctx context.Context) ([]Order, error) {
	return s.Store.ListOrders(ctx)
}

func (s *Service) GetInvoice(ctx context.Context, invoiceID int64) (*Invoice, error) {
	return s.Store.GetInvoice(ctx, invoiceID)
}

// UpdateOrder applies a partial patch. Status changes are checked against the
// state machine; a transition to shipped (or setting a tracking number)
// triggers a shipment notification after commit.
func (s *Service) UpdateOrder(ctx context.Context, id int64, patch Patch) (*Order, error) {
	current, err := s.Store.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, Validationf("unknown status %q", *patch.Status)
		}
		if !CanTransition(current.Status, *patch.Status) {
			return nil, &InvalidStateError{
				Msg: "cannot transition order from " + string(current.Status) + " to " + string(*patch.Status),
			}
		}
	}

	o, err := s.Store.UpdateOrder(ctx, id, patch)
	if err != nil {
		return nil, err
	}

	becameShipped := patch.Status != nil && *patch.Status == StatusShipped && current.Status != StatusShipped
	trackingAdded := patch.TrackingNumber != nil && *patch.TrackingNumber != "" &&
		*patch.TrackingNumber != current.TrackingNumber
	if becameShipped || trackingAdded {
		s.Effects.Dispatch(ctx, []Effect{{Kind: EffectOrderShipped, Order: *o, NotifyCustomer: o.CustomerEmail != ""}})
	}
	return o, nil
}

func (s *Service) DeleteOrder(ctx context.Context, id int64) error {
	if err := s.Store.DeleteOrder(ctx, id, s.Restock); err != nil {
		return err
	}
	s.Log.Info("order deleted", zap.Int64("order_id", id), zap.Bool("restocked", s.Restock))
	return nil
}
