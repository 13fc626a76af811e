package fulfillment

import (
	"context"
	"sort"
	"time"

	"campusmart-be/internal/inventory"
	"campusmart-be/internal/logger"
	"campusmart-be/internal/order"
	"campusmart-be/internal/payment"
	"campusmart-be/internal/status"
	"campusmart-be/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Service interface {
	// CreatePendingOrder converts a captured payment intent into a
	// pending order with one shipment per vendor. A no-op returning the
	// existing order when one already exists for the intent's reference.
	CreatePendingOrder(ctx context.Context, intentID uuid.UUID) (*order.Order, error)

	// FulfillOrder settles the reference exactly once. Safe to call from
	// the verify endpoint and the webhook concurrently: the atomic claim
	// picks one winner, the loser observes the already-paid result.
	FulfillOrder(ctx context.Context, reference string) (*order.Order, error)
}

type service struct {
	repo      Repository
	orderRepo order.Repository
	payRepo   payment.Repository
	stockRepo inventory.Repository
	fees      order.FeeRule
}

func NewService(
	repo Repository,
	orderRepo order.Repository,
	payRepo payment.Repository,
	stockRepo inventory.Repository,
	fees order.FeeRule,
) Service {
	return &service{
		repo:      repo,
		orderRepo: orderRepo,
		payRepo:   payRepo,
		stockRepo: stockRepo,
		fees:      fees,
	}
}

func (s *service) CreatePendingOrder(ctx context.Context, intentID uuid.UUID) (*order.Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "CreatePendingOrder"),
		zap.String("intent_id", intentID.String()),
	)

	// 1. Load the captured snapshot
	intent, err := s.repo.GetIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}

	// Only the buyer who captured the intent (or an admin) may convert it
	principal, ok := utils.PrincipalFromContext(ctx)
	if !ok || (principal.ID != intent.BuyerID && !principal.IsAdmin()) {
		return nil, ErrUnauthorized
	}

	if len(intent.Items) == 0 {
		return nil, ErrEmptyIntent
	}

	// 2. Idempotency check on the payment reference
	existing, err := s.orderRepo.GetOrderByReference(ctx, intent.Reference)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		log.Info("order already exists for reference, returning it",
			zap.String("order_id", existing.ID.String()),
		)
		return existing, nil
	}

	// 3. Group snapshot items per vendor
	byStore := make(map[uint][]IntentItem)
	for _, item := range intent.Items {
		byStore[item.StoreID] = append(byStore[item.StoreID], item)
	}

	storeIDs := make([]uint, 0, len(byStore))
	for storeID := range byStore {
		storeIDs = append(storeIDs, storeID)
	}
	sort.Slice(storeIDs, func(i, j int) bool { return storeIDs[i] < storeIDs[j] })

	// 4. Build the order and one shipment per vendor, fee split frozen now
	now := time.Now()
	o := &order.Order{
		ID:          uuid.New(),
		BuyerID:     intent.BuyerID,
		PaymentRef:  intent.Reference,
		Status:      status.OrderPending,
		DeliveryFee: intent.DeliveryFee,
		ServiceFee:  intent.ServiceFee,
		CreatedAt:   now,
	}

	perVendorDelivery := utils.Round2(intent.DeliveryFee / float64(len(byStore)))

	var shipments []*order.Shipment
	var itemsTotal float64

	for _, storeID := range storeIDs {
		items := byStore[storeID]

		shipment := &order.Shipment{
			ID:             uuid.New(),
			RefID:          utils.GenerateRefCode("SHP"),
			OrderID:        o.ID,
			StoreID:        storeID,
			BuyerID:        intent.BuyerID,
			DeliveryOption: intent.DeliveryOption,
			DeliveryFee:    perVendorDelivery,
			VendorQRCode:   utils.NewVendorToken(),
			ClientQRCode:   utils.NewClientToken(),
			IsPickupOrder:  intent.DeliveryOption == order.DeliveryCampusPost,
			Status:         status.ShipmentPendingPayment,
			DisputeStatus:  order.DisputeNone,
			CreatedAt:      now,
		}

		var subtotal float64
		for _, item := range items {
			lineSubtotal := utils.Round2(item.Price * float64(item.Quantity))
			subtotal += lineSubtotal

			shipment.Items = append(shipment.Items, order.ShipmentItem{
				ID:         uuid.New(),
				ShipmentID: shipment.ID,
				ProductID:  item.ProductID,
				Name:       item.Name,
				Quantity:   item.Quantity,
				Price:      item.Price,
				Subtotal:   lineSubtotal,
			})

			o.Items = append(o.Items, order.OrderItem{
				ID:           uuid.New(),
				OrderID:      o.ID,
				ShipmentID:   shipment.ID,
				RefID:        shipment.RefID,
				ProductID:    item.ProductID,
				Name:         item.Name,
				Quantity:     item.Quantity,
				Price:        item.Price,
				Status:       status.ShipmentPendingPayment,
				VendorQRCode: shipment.VendorQRCode,
				ClientQRCode: shipment.ClientQRCode,
			})
		}

		shipment.Subtotal = subtotal
		shipment.PlatformFee, shipment.VendorEarnings = s.fees.Split(subtotal)
		itemsTotal += subtotal

		shipments = append(shipments, shipment)
	}

	o.Total = utils.Round2(itemsTotal + intent.DeliveryFee + intent.ServiceFee)

	// 5. Persist in one transaction
	if err := s.orderRepo.CreateOrderTx(ctx, o, shipments); err != nil {
		log.Error("failed to create pending order", zap.Error(err))
		return nil, err
	}

	log.Info("pending order created",
		zap.String("order_id", o.ID.String()),
		zap.Int("shipment_count", len(shipments)),
		zap.Float64("total", o.Total),
	)

	return o, nil
}

func (s *service) FulfillOrder(ctx context.Context, reference string) (*order.Order, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "FulfillOrder"),
		zap.String("reference", reference),
	)

	// 1. Atomic claim: exactly one caller wins the pending -> paid flip.
	o, claimed, err := s.orderRepo.ClaimOrderPaid(ctx, reference)
	if err != nil {
		return nil, err
	}

	if !claimed {
		// Duplicate trigger (verify + webhook racing). Not an error.
		log.Info("order already fulfilled, returning existing result",
			zap.String("order_id", o.ID.String()),
			zap.String("status", string(o.Status)),
		)
		return o, nil
	}

	// 2. Flip every child shipment and item mirror to paid
	if err := s.orderRepo.MarkOrderFulfilled(ctx, o.ID); err != nil {
		log.Error("failed to mark shipments paid", zap.Error(err))
		return nil, err
	}
	o.Status = status.OrderPaid
	for i := range o.Items {
		o.Items[i].Status = status.ShipmentPaid
	}

	// 3. Audit record + intent completion. A missing intent skips the
	// audit write but never fails the fulfillment itself.
	intent, err := s.repo.GetIntentByReference(ctx, reference)
	switch {
	case err == ErrIntentNotFound:
		log.Warn("payment intent missing, skipping audit record")
	case err != nil:
		log.Error("failed to load payment intent", zap.Error(err))
	default:
		now := time.Now()
		audit := &payment.Payment{
			OrderID:   o.ID,
			Reference: reference,
			Amount:    o.Total,
			Status:    "success",
			PaidAt:    &now,
		}
		if err := s.payRepo.SavePayment(ctx, audit); err != nil {
			log.Error("failed to save payment audit record", zap.Error(err))
		}
		if err := s.repo.MarkIntentCompleted(ctx, intent.ID); err != nil {
			log.Error("failed to complete payment intent", zap.Error(err))
		}
	}

	// 4. Downstream effects run once, on the winning claim only
	s.decrementStock(ctx, o)
	if err := s.repo.ClearCart(ctx, o.BuyerID); err != nil {
		log.Error("failed to clear cart", zap.Error(err))
	}

	log.Info("order fulfilled", zap.String("order_id", o.ID.String()))
	return o, nil
}

func (s *service) decrementStock(ctx context.Context, o *order.Order) {
	log := logger.FromCtx(ctx).With(zap.String("method", "decrementStock"))

	for _, item := range o.Items {
		if err := s.stockRepo.AdjustStock(ctx, item.ProductID, -item.Quantity); err != nil {
			log.Error("failed to decrement stock",
				zap.Uint("product_id", item.ProductID),
				zap.Int("quantity", item.Quantity),
				zap.Error(err),
			)
		}
	}
}
