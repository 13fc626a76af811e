package handoff

import (
	"context"
	"testing"
	"time"

	"campusmart-be/internal/auth"
	"campusmart-be/internal/order"
	"campusmart-be/internal/proof"
	"campusmart-be/internal/status"
	"campusmart-be/internal/utils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// --- Mocks ---

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) UpsertHandover(ctx context.Context, rec *HandoverRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

func (m *MockRepository) GetHandover(ctx context.Context, handoverID uuid.UUID) (*HandoverRecord, error) {
	args := m.Called(ctx, handoverID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*HandoverRecord), args.Error(1)
}

func (m *MockRepository) GetHandoverByShipment(ctx context.Context, shipmentID uuid.UUID) (*HandoverRecord, error) {
	args := m.Called(ctx, shipmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*HandoverRecord), args.Error(1)
}

func (m *MockRepository) UpdateHandoverStatus(ctx context.Context, shipmentID uuid.UUID, st HandoverStatus) error {
	args := m.Called(ctx, shipmentID, st)
	return args.Error(0)
}

func (m *MockRepository) MarkCollected(ctx context.Context, handoverID uuid.UUID, proofID string, feedback *string, pickedUpAt time.Time) error {
	args := m.Called(ctx, handoverID, proofID, feedback, pickedUpAt)
	return args.Error(0)
}

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) ResolveShipment(ctx context.Context, identifier string) (*order.Shipment, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Shipment), args.Error(1)
}

func (m *MockLedger) Transition(ctx context.Context, s *order.Shipment, next status.ShipmentStatus) error {
	args := m.Called(ctx, s, next)
	if args.Error(0) == nil {
		s.Status = next
	}
	return args.Error(0)
}

func (m *MockLedger) UpdateShipmentStatus(ctx context.Context, shipmentID uuid.UUID, next status.ShipmentStatus) (*order.Shipment, error) {
	args := m.Called(ctx, shipmentID, next)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Shipment), args.Error(1)
}

func (m *MockLedger) GetOrderDetail(ctx context.Context, orderID uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockLedger) ListOrders(ctx context.Context, limit, offset int32) ([]*order.Order, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*order.Order), args.Error(1)
}

func (m *MockLedger) CreditVendorDelivery(ctx context.Context, storeID uint) error {
	args := m.Called(ctx, storeID)
	return args.Error(0)
}

// MockOrderRepo stubs only what the handoff service touches.
type MockOrderRepo struct {
	mock.Mock
	order.Repository
}

func (m *MockOrderRepo) GetShipment(ctx context.Context, shipmentID uuid.UUID) (*order.Shipment, error) {
	args := m.Called(ctx, shipmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Shipment), args.Error(1)
}

func (m *MockOrderRepo) GetStoreOwner(ctx context.Context, storeID uint) (uint, error) {
	args := m.Called(ctx, storeID)
	return args.Get(0).(uint), args.Error(1)
}

type MockProofClient struct {
	mock.Mock
}

func (m *MockProofClient) Submit(ctx context.Context, ev proof.Event) (*proof.Receipt, error) {
	args := m.Called(ctx, ev)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*proof.Receipt), args.Error(1)
}

// --- Fixtures ---

func postOfficeCtx() context.Context {
	return utils.SetPrincipalContext(context.Background(), auth.Principal{ID: 30, Role: auth.RolePostOffice})
}

func buyerCtx(id uint) context.Context {
	return utils.SetPrincipalContext(context.Background(), auth.Principal{ID: id, Role: auth.RoleUser})
}

func pickupShipment(st status.ShipmentStatus) *order.Shipment {
	return &order.Shipment{
		ID:            uuid.New(),
		RefID:         "AB3DE9",
		OrderID:       uuid.New(),
		StoreID:       7,
		BuyerID:       5,
		VendorQRCode:  "VQR-" + uuid.NewString(),
		ClientQRCode:  "CQR-" + uuid.NewString(),
		IsPickupOrder: true,
		Status:        st,
	}
}

func okProof(proofs *MockProofClient) {
	proofs.On("Submit", mock.Anything, mock.Anything).
		Return(&proof.Receipt{ProofID: "prf_1", Status: "recorded"}, nil)
}

// --- HandoverItem ---

func TestService_HandoverItem(t *testing.T) {
	t.Run("VendorTokenTriggersHandoff", func(t *testing.T) {
		repo := new(MockRepository)
		ledger := new(MockLedger)
		orderRepo := new(MockOrderRepo)
		proofs := new(MockProofClient)
		svc := NewService(repo, ledger, orderRepo, proofs)

		shipment := pickupShipment(status.ShipmentOrderConfirmed)

		ledger.On("ResolveShipment", mock.Anything, "AB3DE9").Return(shipment, nil)
		ledger.On("Transition", mock.Anything, shipment, status.ShipmentHandedToPostOffice).Return(nil)
		okProof(proofs)
		orderRepo.On("GetStoreOwner", mock.Anything, uint(7)).Return(uint(42), nil)
		repo.On("UpsertHandover", mock.Anything, mock.Anything).Return(nil)

		result, err := svc.HandoverItem(postOfficeCtx(), "AB3DE9", shipment.VendorQRCode)
		assert.NoError(t, err)
		assert.Equal(t, ActionVendorHandoff, result.Action)
		assert.Equal(t, status.ShipmentHandedToPostOffice, result.Shipment.Status)
		assert.Equal(t, HandoverHandedOver, result.Handover.Status)
		assert.Equal(t, uint(42), result.Handover.SellerID)
		assert.Equal(t, "prf_1", *result.Handover.HandoffProofID)
	})

	t.Run("ClientTokenTriggersDeskPickup", func(t *testing.T) {
		repo := new(MockRepository)
		ledger := new(MockLedger)
		orderRepo := new(MockOrderRepo)
		proofs := new(MockProofClient)
		svc := NewService(repo, ledger, orderRepo, proofs)

		shipment := pickupShipment(status.ShipmentReadyForPickup)
		rec := &HandoverRecord{ID: uuid.New(), ShipmentID: shipment.ID, BuyerID: 5, Status: HandoverReadyForPickup}

		ledger.On("ResolveShipment", mock.Anything, "AB3DE9").Return(shipment, nil)
		ledger.On("Transition", mock.Anything, shipment, status.ShipmentDelivered).Return(nil)
		okProof(proofs)
		repo.On("GetHandoverByShipment", mock.Anything, shipment.ID).Return(rec, nil)
		repo.On("MarkCollected", mock.Anything, rec.ID, "prf_1", (*string)(nil), mock.Anything).Return(nil)
		ledger.On("CreditVendorDelivery", mock.Anything, uint(7)).Return(nil)

		result, err := svc.HandoverItem(postOfficeCtx(), "AB3DE9", shipment.ClientQRCode)
		assert.NoError(t, err)
		assert.Equal(t, ActionPickup, result.Action)
		assert.Equal(t, HandoverCollected, result.Handover.Status)
		ledger.AssertCalled(t, "CreditVendorDelivery", mock.Anything, uint(7))
	})

	t.Run("ClientTokenBeforeHandoffRejected", func(t *testing.T) {
		repo := new(MockRepository)
		ledger := new(MockLedger)
		svc := NewService(repo, ledger, new(MockOrderRepo), new(MockProofClient))

		// The vendor never brought the parcel in. A buyer-token scan must
		// not ride the direct-delivery edge into the terminal state.
		shipment := pickupShipment(status.ShipmentOrderConfirmed)
		ledger.On("ResolveShipment", mock.Anything, "AB3DE9").Return(shipment, nil)

		_, err := svc.HandoverItem(postOfficeCtx(), "AB3DE9", shipment.ClientQRCode)

		var pe *PreconditionError
		assert.ErrorAs(t, err, &pe)
		assert.Equal(t, status.ShipmentOrderConfirmed, pe.Current)
		assert.Equal(t, status.ShipmentOrderConfirmed, shipment.Status)
		ledger.AssertNotCalled(t, "Transition", mock.Anything, mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "GetHandoverByShipment", mock.Anything, mock.Anything)
	})

	t.Run("DeskPickupWithoutRecordLeavesStatusAlone", func(t *testing.T) {
		repo := new(MockRepository)
		ledger := new(MockLedger)
		svc := NewService(repo, ledger, new(MockOrderRepo), new(MockProofClient))

		shipment := pickupShipment(status.ShipmentReadyForPickup)
		ledger.On("ResolveShipment", mock.Anything, "AB3DE9").Return(shipment, nil)
		repo.On("GetHandoverByShipment", mock.Anything, shipment.ID).Return(nil, ErrHandoverNotFound)

		_, err := svc.HandoverItem(postOfficeCtx(), "AB3DE9", shipment.ClientQRCode)
		assert.ErrorIs(t, err, ErrHandoverNotFound)
		assert.Equal(t, status.ShipmentReadyForPickup, shipment.Status)
		ledger.AssertNotCalled(t, "Transition", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("DeskPickupAlreadyCollected", func(t *testing.T) {
		repo := new(MockRepository)
		ledger := new(MockLedger)
		svc := NewService(repo, ledger, new(MockOrderRepo), new(MockProofClient))

		shipment := pickupShipment(status.ShipmentReadyForPickup)
		rec := &HandoverRecord{ID: uuid.New(), ShipmentID: shipment.ID, BuyerID: 5, Status: HandoverCollected}

		ledger.On("ResolveShipment", mock.Anything, "AB3DE9").Return(shipment, nil)
		repo.On("GetHandoverByShipment", mock.Anything, shipment.ID).Return(rec, nil)

		_, err := svc.HandoverItem(postOfficeCtx(), "AB3DE9", shipment.ClientQRCode)
		assert.ErrorIs(t, err, ErrAlreadyCollected)
		ledger.AssertNotCalled(t, "Transition", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("UnknownStoreOwnerFailsHandoff", func(t *testing.T) {
		repo := new(MockRepository)
		ledger := new(MockLedger)
		orderRepo := new(MockOrderRepo)
		svc := NewService(repo, ledger, orderRepo, new(MockProofClient))

		shipment := pickupShipment(status.ShipmentOrderConfirmed)

		ledger.On("ResolveShipment", mock.Anything, "AB3DE9").Return(shipment, nil)
		orderRepo.On("GetStoreOwner", mock.Anything, uint(7)).Return(uint(0), order.ErrStoreNotFound)

		// Never record custody attributed to nobody.
		_, err := svc.HandoverItem(postOfficeCtx(), "AB3DE9", shipment.VendorQRCode)
		assert.ErrorIs(t, err, order.ErrStoreNotFound)
		assert.Equal(t, status.ShipmentOrderConfirmed, shipment.Status)
		ledger.AssertNotCalled(t, "Transition", mock.Anything, mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "UpsertHandover", mock.Anything, mock.Anything)
	})

	t.Run("WrongTokenRejected", func(t *testing.T) {
		repo := new(MockRepository)
		ledger := new(MockLedger)
		svc := NewService(repo, ledger, new(MockOrderRepo), new(MockProofClient))

		shipment := pickupShipment(status.ShipmentOrderConfirmed)

		ledger.On("ResolveShipment", mock.Anything, "AB3DE9").Return(shipment, nil)

		// A token from some other shipment on a real one: flat refusal,
		// no state touched.
		_, err := svc.HandoverItem(postOfficeCtx(), "AB3DE9", "VQR-"+uuid.NewString())
		assert.ErrorIs(t, err, ErrTokenMismatch)
		ledger.AssertNotCalled(t, "Transition", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("EmptyTokenRejected", func(t *testing.T) {
		ledger := new(MockLedger)
		svc := NewService(new(MockRepository), ledger, new(MockOrderRepo), new(MockProofClient))

		shipment := pickupShipment(status.ShipmentOrderConfirmed)
		ledger.On("ResolveShipment", mock.Anything, "AB3DE9").Return(shipment, nil)

		_, err := svc.HandoverItem(postOfficeCtx(), "AB3DE9", "")
		assert.ErrorIs(t, err, ErrTokenMismatch)
	})

	t.Run("JSONWrappedTokenAccepted", func(t *testing.T) {
		repo := new(MockRepository)
		ledger := new(MockLedger)
		orderRepo := new(MockOrderRepo)
		proofs := new(MockProofClient)
		svc := NewService(repo, ledger, orderRepo, proofs)

		shipment := pickupShipment(status.ShipmentOrderConfirmed)

		ledger.On("ResolveShipment", mock.Anything, "AB3DE9").Return(shipment, nil)
		ledger.On("Transition", mock.Anything, shipment, status.ShipmentHandedToPostOffice).Return(nil)
		okProof(proofs)
		orderRepo.On("GetStoreOwner", mock.Anything, uint(7)).Return(uint(42), nil)
		repo.On("UpsertHandover", mock.Anything, mock.Anything).Return(nil)

		wrapped := `{"token":"` + shipment.VendorQRCode + `"}`
		result, err := svc.HandoverItem(postOfficeCtx(), "AB3DE9", wrapped)
		assert.NoError(t, err)
		assert.Equal(t, ActionVendorHandoff, result.Action)
	})

	t.Run("BuyerRoleCannotOperateDesk", func(t *testing.T) {
		svc := NewService(new(MockRepository), new(MockLedger), new(MockOrderRepo), new(MockProofClient))

		_, err := svc.HandoverItem(buyerCtx(5), "AB3DE9", "VQR-x")
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("ProofOutageDegradesNotFails", func(t *testing.T) {
		repo := new(MockRepository)
		ledger := new(MockLedger)
		orderRepo := new(MockOrderRepo)
		proofs := new(MockProofClient)
		svc := NewService(repo, ledger, orderRepo, proofs)

		shipment := pickupShipment(status.ShipmentOrderConfirmed)

		ledger.On("ResolveShipment", mock.Anything, "AB3DE9").Return(shipment, nil)
		ledger.On("Transition", mock.Anything, shipment, status.ShipmentHandedToPostOffice).Return(nil)
		proofs.On("Submit", mock.Anything, mock.Anything).Return(nil, assert.AnError)
		orderRepo.On("GetStoreOwner", mock.Anything, uint(7)).Return(uint(42), nil)
		repo.On("UpsertHandover", mock.Anything, mock.Anything).Return(nil)

		result, err := svc.HandoverItem(postOfficeCtx(), "AB3DE9", shipment.VendorQRCode)
		assert.NoError(t, err)
		assert.Equal(t, proof.StatusFailed, *result.Handover.HandoffProofID)
		assert.Equal(t, proof.StatusFailed, result.Handover.ProofState)
	})
}

// --- MarkAsReadyForPickup ---

func TestService_MarkAsReadyForPickup(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		repo := new(MockRepository)
		ledger := new(MockLedger)
		orderRepo := new(MockOrderRepo)
		svc := NewService(repo, ledger, orderRepo, new(MockProofClient))

		shipment := pickupShipment(status.ShipmentHandedToPostOffice)

		orderRepo.On("GetShipment", mock.Anything, shipment.ID).Return(shipment, nil)
		ledger.On("Transition", mock.Anything, shipment, status.ShipmentReadyForPickup).Return(nil)
		repo.On("UpdateHandoverStatus", mock.Anything, shipment.ID, HandoverReadyForPickup).Return(nil)

		got, err := svc.MarkAsReadyForPickup(postOfficeCtx(), shipment.ID)
		assert.NoError(t, err)
		assert.Equal(t, status.ShipmentReadyForPickup, got.Status)
	})

	t.Run("NotAtPostOfficeYet", func(t *testing.T) {
		orderRepo := new(MockOrderRepo)
		svc := NewService(new(MockRepository), new(MockLedger), orderRepo, new(MockProofClient))

		shipment := pickupShipment(status.ShipmentOrderConfirmed)
		orderRepo.On("GetShipment", mock.Anything, shipment.ID).Return(shipment, nil)

		_, err := svc.MarkAsReadyForPickup(postOfficeCtx(), shipment.ID)

		var pe *PreconditionError
		assert.ErrorAs(t, err, &pe)
		assert.Equal(t, status.ShipmentOrderConfirmed, pe.Current)
	})

	t.Run("NotAPickupOrder", func(t *testing.T) {
		orderRepo := new(MockOrderRepo)
		svc := NewService(new(MockRepository), new(MockLedger), orderRepo, new(MockProofClient))

		shipment := pickupShipment(status.ShipmentHandedToPostOffice)
		shipment.IsPickupOrder = false
		orderRepo.On("GetShipment", mock.Anything, shipment.ID).Return(shipment, nil)

		_, err := svc.MarkAsReadyForPickup(postOfficeCtx(), shipment.ID)
		assert.ErrorIs(t, err, ErrNotPickupOrder)
	})
}

// --- PickupItem ---

func TestService_PickupItem(t *testing.T) {
	newRecord := func(shipmentID uuid.UUID) *HandoverRecord {
		return &HandoverRecord{
			ID:         uuid.New(),
			ShipmentID: shipmentID,
			SellerID:   42,
			BuyerID:    5,
			Status:     HandoverReadyForPickup,
		}
	}

	t.Run("ThumbsUpCreditsVendor", func(t *testing.T) {
		repo := new(MockRepository)
		ledger := new(MockLedger)
		orderRepo := new(MockOrderRepo)
		proofs := new(MockProofClient)
		svc := NewService(repo, ledger, orderRepo, proofs)

		shipment := pickupShipment(status.ShipmentReadyForPickup)
		rec := newRecord(shipment.ID)
		up := FeedbackUp

		repo.On("GetHandover", mock.Anything, rec.ID).Return(rec, nil)
		orderRepo.On("GetShipment", mock.Anything, shipment.ID).Return(shipment, nil)
		ledger.On("Transition", mock.Anything, shipment, status.ShipmentDelivered).Return(nil)
		okProof(proofs)
		repo.On("MarkCollected", mock.Anything, rec.ID, "prf_1", &up, mock.Anything).Return(nil)
		ledger.On("CreditVendorDelivery", mock.Anything, uint(7)).Return(nil)

		got, err := svc.PickupItem(buyerCtx(5), rec.ID, shipment.ClientQRCode, &up)
		assert.NoError(t, err)
		assert.Equal(t, HandoverCollected, got.Status)
		assert.Equal(t, &up, got.Feedback)
		ledger.AssertCalled(t, "CreditVendorDelivery", mock.Anything, uint(7))
	})

	t.Run("ThumbsDownStillCompletesWithoutCredit", func(t *testing.T) {
		repo := new(MockRepository)
		ledger := new(MockLedger)
		orderRepo := new(MockOrderRepo)
		proofs := new(MockProofClient)
		svc := NewService(repo, ledger, orderRepo, proofs)

		shipment := pickupShipment(status.ShipmentReadyForPickup)
		rec := newRecord(shipment.ID)
		down := FeedbackDown

		repo.On("GetHandover", mock.Anything, rec.ID).Return(rec, nil)
		orderRepo.On("GetShipment", mock.Anything, shipment.ID).Return(shipment, nil)
		ledger.On("Transition", mock.Anything, shipment, status.ShipmentDelivered).Return(nil)
		okProof(proofs)
		repo.On("MarkCollected", mock.Anything, rec.ID, "prf_1", &down, mock.Anything).Return(nil)

		got, err := svc.PickupItem(buyerCtx(5), rec.ID, shipment.ClientQRCode, &down)
		assert.NoError(t, err)
		assert.Equal(t, HandoverCollected, got.Status)
		ledger.AssertNotCalled(t, "CreditVendorDelivery", mock.Anything, mock.Anything)
	})

	t.Run("WrongBuyerRejected", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo, new(MockLedger), new(MockOrderRepo), new(MockProofClient))

		shipment := pickupShipment(status.ShipmentReadyForPickup)
		rec := newRecord(shipment.ID)

		repo.On("GetHandover", mock.Anything, rec.ID).Return(rec, nil)

		_, err := svc.PickupItem(buyerCtx(6), rec.ID, shipment.ClientQRCode, nil)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("VendorTokenDoesNotOpenPickup", func(t *testing.T) {
		repo := new(MockRepository)
		ledger := new(MockLedger)
		orderRepo := new(MockOrderRepo)
		svc := NewService(repo, ledger, orderRepo, new(MockProofClient))

		shipment := pickupShipment(status.ShipmentReadyForPickup)
		rec := newRecord(shipment.ID)

		repo.On("GetHandover", mock.Anything, rec.ID).Return(rec, nil)
		orderRepo.On("GetShipment", mock.Anything, shipment.ID).Return(shipment, nil)

		// Token isolation the other way round: the vendor's own token
		// never releases the parcel to the buyer.
		_, err := svc.PickupItem(buyerCtx(5), rec.ID, shipment.VendorQRCode, nil)
		assert.ErrorIs(t, err, ErrTokenMismatch)
		ledger.AssertNotCalled(t, "Transition", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("AlreadyCollected", func(t *testing.T) {
		repo := new(MockRepository)
		svc := NewService(repo, new(MockLedger), new(MockOrderRepo), new(MockProofClient))

		shipment := pickupShipment(status.ShipmentDelivered)
		rec := newRecord(shipment.ID)
		rec.Status = HandoverCollected

		repo.On("GetHandover", mock.Anything, rec.ID).Return(rec, nil)

		_, err := svc.PickupItem(buyerCtx(5), rec.ID, shipment.ClientQRCode, nil)
		assert.ErrorIs(t, err, ErrAlreadyCollected)
	})

	t.Run("ParcelNotAtDesk", func(t *testing.T) {
		repo := new(MockRepository)
		orderRepo := new(MockOrderRepo)
		svc := NewService(repo, new(MockLedger), orderRepo, new(MockProofClient))

		shipment := pickupShipment(status.ShipmentOrderConfirmed)
		rec := newRecord(shipment.ID)

		repo.On("GetHandover", mock.Anything, rec.ID).Return(rec, nil)
		orderRepo.On("GetShipment", mock.Anything, shipment.ID).Return(shipment, nil)

		_, err := svc.PickupItem(buyerCtx(5), rec.ID, shipment.ClientQRCode, nil)

		var pe *PreconditionError
		assert.ErrorAs(t, err, &pe)
	})
}

// --- ConfirmDirectDelivery ---

func TestService_ConfirmDirectDelivery(t *testing.T) {
	t.Run("BuyerConfirms", func(t *testing.T) {
		ledger := new(MockLedger)
		orderRepo := new(MockOrderRepo)
		proofs := new(MockProofClient)
		svc := NewService(new(MockRepository), ledger, orderRepo, proofs)

		shipment := pickupShipment(status.ShipmentOrderConfirmed)
		shipment.IsPickupOrder = false

		orderRepo.On("GetShipment", mock.Anything, shipment.ID).Return(shipment, nil)
		ledger.On("Transition", mock.Anything, shipment, status.ShipmentDelivered).Return(nil)
		okProof(proofs)
		ledger.On("CreditVendorDelivery", mock.Anything, uint(7)).Return(nil)

		got, err := svc.ConfirmDirectDelivery(buyerCtx(5), shipment.ID)
		assert.NoError(t, err)
		assert.Equal(t, status.ShipmentDelivered, got.Status)
	})

	t.Run("LegacyShippedSpellingAccepted", func(t *testing.T) {
		ledger := new(MockLedger)
		orderRepo := new(MockOrderRepo)
		proofs := new(MockProofClient)
		svc := NewService(new(MockRepository), ledger, orderRepo, proofs)

		shipment := pickupShipment(status.ShipmentShipped)

		orderRepo.On("GetShipment", mock.Anything, shipment.ID).Return(shipment, nil)
		ledger.On("Transition", mock.Anything, shipment, status.ShipmentDelivered).Return(nil)
		okProof(proofs)
		ledger.On("CreditVendorDelivery", mock.Anything, uint(7)).Return(nil)

		_, err := svc.ConfirmDirectDelivery(buyerCtx(5), shipment.ID)
		assert.NoError(t, err)
	})

	t.Run("OnlyTheBuyerNotEvenAdmin", func(t *testing.T) {
		orderRepo := new(MockOrderRepo)
		svc := NewService(new(MockRepository), new(MockLedger), orderRepo, new(MockProofClient))

		shipment := pickupShipment(status.ShipmentOrderConfirmed)
		orderRepo.On("GetShipment", mock.Anything, shipment.ID).Return(shipment, nil)

		adminCtx := utils.SetPrincipalContext(context.Background(), auth.Principal{ID: 99, Role: auth.RoleAdmin})
		_, err := svc.ConfirmDirectDelivery(adminCtx, shipment.ID)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("AlreadyDelivered", func(t *testing.T) {
		orderRepo := new(MockOrderRepo)
		svc := NewService(new(MockRepository), new(MockLedger), orderRepo, new(MockProofClient))

		shipment := pickupShipment(status.ShipmentDelivered)
		orderRepo.On("GetShipment", mock.Anything, shipment.ID).Return(shipment, nil)

		_, err := svc.ConfirmDirectDelivery(buyerCtx(5), shipment.ID)
		assert.ErrorIs(t, err, ErrAlreadyDelivered)
	})

	t.Run("NotDispatchedYet", func(t *testing.T) {
		orderRepo := new(MockOrderRepo)
		svc := NewService(new(MockRepository), new(MockLedger), orderRepo, new(MockProofClient))

		shipment := pickupShipment(status.ShipmentPaid)
		orderRepo.On("GetShipment", mock.Anything, shipment.ID).Return(shipment, nil)

		_, err := svc.ConfirmDirectDelivery(buyerCtx(5), shipment.ID)

		var pe *PreconditionError
		assert.ErrorAs(t, err, &pe)
		assert.Equal(t, status.ShipmentPaid, pe.Current)
	})
}

// --- Full custody chain ---

// One shipment all the way through the desk: vendor handoff, ready call,
// buyer pickup with a thumbs up, vendor credited once.
func TestService_PickupCustodyChain(t *testing.T) {
	repo := new(MockRepository)
	ledger := new(MockLedger)
	orderRepo := new(MockOrderRepo)
	proofs := new(MockProofClient)
	svc := NewService(repo, ledger, orderRepo, proofs)

	shipment := pickupShipment(status.ShipmentOrderConfirmed)
	okProof(proofs)

	// 1. Vendor drops the parcel at the desk
	var rec *HandoverRecord
	ledger.On("ResolveShipment", mock.Anything, shipment.RefID).Return(shipment, nil)
	orderRepo.On("GetStoreOwner", mock.Anything, uint(7)).Return(uint(42), nil)
	ledger.On("Transition", mock.Anything, shipment, status.ShipmentHandedToPostOffice).Return(nil).Once()
	repo.On("UpsertHandover", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			rec = args.Get(1).(*HandoverRecord)
		}).Return(nil)

	result, err := svc.HandoverItem(postOfficeCtx(), shipment.RefID, shipment.VendorQRCode)
	assert.NoError(t, err)
	assert.Equal(t, ActionVendorHandoff, result.Action)
	assert.Equal(t, status.ShipmentHandedToPostOffice, shipment.Status)
	assert.Equal(t, uint(42), rec.SellerID)

	// 2. Desk marks it ready, buyer gets notified
	orderRepo.On("GetShipment", mock.Anything, shipment.ID).Return(shipment, nil)
	ledger.On("Transition", mock.Anything, shipment, status.ShipmentReadyForPickup).Return(nil).Once()
	repo.On("UpdateHandoverStatus", mock.Anything, shipment.ID, HandoverReadyForPickup).Return(nil)

	_, err = svc.MarkAsReadyForPickup(postOfficeCtx(), shipment.ID)
	assert.NoError(t, err)
	assert.Equal(t, status.ShipmentReadyForPickup, shipment.Status)

	// 3. Buyer collects with their own token and leaves a thumbs up
	up := FeedbackUp
	repo.On("GetHandover", mock.Anything, rec.ID).Return(rec, nil)
	ledger.On("Transition", mock.Anything, shipment, status.ShipmentDelivered).Return(nil).Once()
	repo.On("MarkCollected", mock.Anything, rec.ID, "prf_1", &up, mock.Anything).Return(nil)
	ledger.On("CreditVendorDelivery", mock.Anything, uint(7)).Return(nil).Once()

	got, err := svc.PickupItem(buyerCtx(5), rec.ID, shipment.ClientQRCode, &up)
	assert.NoError(t, err)
	assert.Equal(t, HandoverCollected, got.Status)
	assert.Equal(t, status.ShipmentDelivered, shipment.Status)
	ledger.AssertNumberOfCalls(t, "CreditVendorDelivery", 1)
}

// --- ExtractToken ---

func TestExtractToken(t *testing.T) {
	assert.Equal(t, "VQR-abc", ExtractToken("VQR-abc"))
	assert.Equal(t, "VQR-abc", ExtractToken("  VQR-abc  "))
	assert.Equal(t, "CQR-xyz", ExtractToken(`{"token":"CQR-xyz"}`))
	assert.Equal(t, "CQR-xyz", ExtractToken(`{"qr_code":"CQR-xyz"}`))
	assert.Equal(t, "CQR-xyz", ExtractToken(`{"code":"CQR-xyz"}`))
	assert.Equal(t, `{"garbage`, ExtractToken(`{"garbage`))
	assert.Equal(t, "", ExtractToken(""))
}
