package shipping

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/angelmondragon/livebag-backend/pkg/config"
	"github.com/angelmondragon/livebag-backend/pkg/db/models"
	"github.com/angelmondragon/livebag-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/livebag-backend/pkg/errors"
	"github.com/angelmondragon/livebag-backend/pkg/logger"
	"github.com/angelmondragon/livebag-backend/pkg/melhorenvio"
	"github.com/angelmondragon/livebag-backend/pkg/types"
)

const tracerName = "github.com/angelmondragon/livebag-backend/internal/shipping"

const (
	StatusLabelGenerated          = "label_generated"
	StatusAlreadyGenerated        = "already_generated"
	StatusAwaitingShippingPayment = "awaiting_shipping_payment"

	TrackingAlreadySynced = "already_synced"
	TrackingSynced        = "synced"
	TrackingPending       = "pending"

	ActionRechargeWallet = "recharge_wallet"
)

// Carrier is the subset of the shipping aggregator used to buy labels.
//
//go:generate mockgen -source=service.go -destination=./mocks/carrier_mock.go -package=mocks Carrier
type Carrier interface {
	AddToCart(ctx context.Context, req melhorenvio.CartRequest) (string, error)
	Checkout(ctx context.Context, shipmentID string) error
	Generate(ctx context.Context, shipmentID string) error
	Print(ctx context.Context, shipmentID string) (string, error)
	Tracking(ctx context.Context, shipmentID string) (map[string]any, error)
	OrderDetail(ctx context.Context, shipmentID string) (map[string]any, error)
}

// LabelUpdate is the final write of a successful purchase.
type LabelUpdate struct {
	ShipmentID   string
	LabelURL     string
	TrackingCode string
	PrintedAt    time.Time
}

// Store persists each step of the label flow. Every status-changing method
// must be a conditional write against the bag's observed statuses.
type Store interface {
	GetBag(ctx context.Context, bagID uuid.UUID) (*models.Bag, error)
	MarkStatus(ctx context.Context, bag *models.Bag, to enums.OperationalStatus, actor *uuid.UUID, notes string) error
	SaveShipmentID(ctx context.Context, bag *models.Bag, shipmentID string) error
	SaveLabel(ctx context.Context, bag *models.Bag, update LabelUpdate, actor *uuid.UUID) error
	SaveTracking(ctx context.Context, bag *models.Bag, trackingCode string) error
	MirrorLinkedOrder(ctx context.Context, bag *models.Bag) error
}

type labelMetrics interface {
	ObserveLabel(outcome string)
}

// RecoverableWait tells the operator what to do before retrying.
type RecoverableWait struct {
	Action     string `json:"action"`
	WalletURL  string `json:"wallet_url"`
	ShipmentID string `json:"shipment_id"`
}

type LabelResult struct {
	Status           string           `json:"status"`
	ShipmentID       string           `json:"shipment_id,omitempty"`
	LabelURL         string           `json:"label_url,omitempty"`
	TrackingCode     string           `json:"tracking_code"`
	AlreadyGenerated bool             `json:"already_generated"`
	Wait             *RecoverableWait `json:"wait,omitempty"`
}

type TrackingSyncResult struct {
	Status       string `json:"status"`
	TrackingCode string `json:"tracking_code"`
}

// LabelConfig holds the account-level settings of every cart.
type LabelConfig struct {
	ServiceID    int
	Platform     string
	WalletURL    string
	PrintURLBase string
	Sender       melhorenvio.Party
}

// LabelConfigFrom builds the sender block from configuration.
func LabelConfigFrom(cfg config.MelhorEnvioConfig) LabelConfig {
	return LabelConfig{
		ServiceID:    cfg.ServiceID,
		Platform:     cfg.Platform,
		WalletURL:    cfg.WalletURL,
		PrintURLBase: strings.TrimRight(cfg.PrintURLBase, "/"),
		Sender: melhorenvio.Party{
			Name:       cfg.SenderName,
			Phone:      types.Digits(cfg.SenderPhone),
			Email:      cfg.SenderEmail,
			Document:   types.Digits(cfg.SenderDocument),
			Address:    cfg.SenderStreet,
			Complement: cfg.SenderComplement,
			Number:     cfg.SenderNumber,
			District:   cfg.SenderDistrict,
			City:       cfg.SenderCity,
			StateAbbr:  strings.ToUpper(cfg.SenderStateAbbrev),
			CountryID:  "BR",
			PostalCode: types.Digits(cfg.SenderPostalCode),
		},
	}
}

type ServiceParams struct {
	Carrier Carrier
	Store   Store
	Config  LabelConfig
	Logger  *logger.Logger
	Metrics labelMetrics
	Now     func() time.Time
}

// Service buys shipping labels and keeps tracking codes in sync.
type Service struct {
	carrier Carrier
	store   Store
	cfg     LabelConfig
	logg    *logger.Logger
	metrics labelMetrics
	now     func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Carrier == nil {
		return nil, fmt.Errorf("carrier required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("store required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	cfg := params.Config
	if cfg.PrintURLBase == "" {
		cfg.PrintURLBase = "https://melhorenvio.com.br/imprimir"
	}
	return &Service{
		carrier: params.Carrier,
		store:   params.Store,
		cfg:     cfg,
		logg:    params.Logger,
		metrics: params.Metrics,
		now:     now,
	}, nil
}

// GenerateLabel buys, prints and records the shipping label for a carrier bag.
// A label is bought at most once per bag: an existing label short-circuits and
// a stored shipment id resumes at checkout.
func (s *Service) GenerateLabel(ctx context.Context, bagID uuid.UUID, actor *uuid.UUID) (result LabelResult, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "shipping.GenerateLabel")
	span.SetAttributes(attribute.String("bag.id", bagID.String()))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.observe("error")
		} else {
			span.SetAttributes(attribute.String("label.status", result.Status))
			s.observe(result.Status)
		}
		span.End()
	}()

	bag, err := s.store.GetBag(ctx, bagID)
	if err != nil {
		return LabelResult{}, err
	}
	ctx = s.logg.WithBagID(ctx, bag.ID.String())

	if bag.HasLabel() {
		return LabelResult{
			Status:           StatusAlreadyGenerated,
			ShipmentID:       bag.ShipmentRef(),
			LabelURL:         bag.Label(),
			TrackingCode:     bag.Tracking(),
			AlreadyGenerated: true,
		}, nil
	}
	if err := checkLabelPreconditions(bag); err != nil {
		return LabelResult{}, err
	}

	if missing := MissingFields(bag.ShippingAddress); len(missing) > 0 {
		if bag.OperationalStatus != enums.OperationalMissingData {
			if markErr := s.store.MarkStatus(ctx, bag, enums.OperationalMissingData, actor, "missing: "+strings.Join(missing, ", ")); markErr != nil {
				return LabelResult{}, markErr
			}
		}
		return LabelResult{}, pkgerrors.New(pkgerrors.CodeValidation, "shipping address incomplete").
			WithDetails(map[string]any{"missing_fields": missing})
	}
	if SameDocument(s.cfg.Sender.Document, bag.ShippingAddress.Document) {
		return LabelResult{}, pkgerrors.New(pkgerrors.CodePreconditionFailed, "sender and recipient documents must differ")
	}

	parcel, err := SizeParcel(bag.Items)
	if err != nil {
		return LabelResult{}, err
	}

	shipmentID := bag.ShipmentRef()
	if shipmentID == "" {
		shipmentID, err = s.carrier.AddToCart(ctx, s.cartRequest(bag, parcel))
		if err != nil {
			return LabelResult{}, err
		}
		if err := s.store.SaveShipmentID(ctx, bag, shipmentID); err != nil {
			return LabelResult{}, err
		}
		s.logg.Info(s.logg.WithField(ctx, "shipment_id", shipmentID), "shipping.cart_created")
	} else {
		s.logg.Info(s.logg.WithField(ctx, "shipment_id", shipmentID), "shipping.resume_checkout")
	}

	if err := s.carrier.Checkout(ctx, shipmentID); err != nil {
		if !walletEmpty(err) {
			return LabelResult{}, err
		}
		if bag.OperationalStatus != enums.OperationalAwaitingShippingPayment {
			if markErr := s.store.MarkStatus(ctx, bag, enums.OperationalAwaitingShippingPayment, actor, "wallet balance insufficient"); markErr != nil {
				return LabelResult{}, markErr
			}
		}
		s.logg.Warn(s.logg.WithField(ctx, "shipment_id", shipmentID), "shipping.wallet_insufficient")
		return LabelResult{
			Status:     StatusAwaitingShippingPayment,
			ShipmentID: shipmentID,
			Wait: &RecoverableWait{
				Action:     ActionRechargeWallet,
				WalletURL:  s.cfg.WalletURL,
				ShipmentID: shipmentID,
			},
		}, nil
	}

	if err := s.carrier.Generate(ctx, shipmentID); err != nil {
		return LabelResult{}, err
	}
	labelURL, err := s.carrier.Print(ctx, shipmentID)
	if err != nil {
		return LabelResult{}, err
	}
	if labelURL == "" {
		labelURL = s.cfg.PrintURLBase + "/" + shipmentID
	}

	tracking := s.lookupTracking(ctx, shipmentID)
	update := LabelUpdate{
		ShipmentID:   shipmentID,
		LabelURL:     labelURL,
		TrackingCode: tracking,
		PrintedAt:    s.now().UTC(),
	}
	if err := s.store.SaveLabel(ctx, bag, update, actor); err != nil {
		return LabelResult{}, err
	}
	s.mirror(ctx, bag)

	return LabelResult{
		Status:       StatusLabelGenerated,
		ShipmentID:   shipmentID,
		LabelURL:     labelURL,
		TrackingCode: tracking,
	}, nil
}

// SyncTracking re-reads tracking for a bag whose label was bought before the
// carrier assigned a code.
func (s *Service) SyncTracking(ctx context.Context, bagID uuid.UUID) (TrackingSyncResult, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "shipping.SyncTracking")
	defer span.End()

	bag, err := s.store.GetBag(ctx, bagID)
	if err != nil {
		return TrackingSyncResult{}, err
	}
	ctx = s.logg.WithBagID(ctx, bag.ID.String())

	if bag.Method() != enums.DeliveryCarrier {
		return TrackingSyncResult{}, pkgerrors.New(pkgerrors.CodePreconditionFailed, "tracking sync applies to carrier deliveries only")
	}
	shipmentID := bag.ShipmentRef()
	if shipmentID == "" {
		return TrackingSyncResult{}, pkgerrors.New(pkgerrors.CodePreconditionFailed, "bag has no shipment")
	}
	if current := bag.Tracking(); IsValidTrackingCode(current) {
		return TrackingSyncResult{Status: TrackingAlreadySynced, TrackingCode: current}, nil
	}

	code := s.lookupTracking(ctx, shipmentID)
	if code == "" {
		return TrackingSyncResult{Status: TrackingPending}, nil
	}
	if err := s.store.SaveTracking(ctx, bag, code); err != nil {
		return TrackingSyncResult{}, err
	}
	s.mirror(ctx, bag)
	return TrackingSyncResult{Status: TrackingSynced, TrackingCode: code}, nil
}

// lookupTracking never fails: the label is already paid for, so a missing
// code is left for a later sync.
func (s *Service) lookupTracking(ctx context.Context, shipmentID string) string {
	resp, err := s.carrier.Tracking(ctx, shipmentID)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "shipping.tracking_lookup_failed")
	} else if code := ExtractFromTrackingResponse(resp, shipmentID); code != "" {
		return code
	}

	detail, err := s.carrier.OrderDetail(ctx, shipmentID)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "shipping.order_detail_failed")
		return ""
	}
	return ExtractTracking(detail)
}

func (s *Service) mirror(ctx context.Context, bag *models.Bag) {
	if bag.LinkedOrderID == nil {
		return
	}
	if err := s.store.MirrorLinkedOrder(ctx, bag); err != nil {
		s.logg.Error(ctx, "shipping.linked_order_mirror_failed", err)
	}
}

func (s *Service) cartRequest(bag *models.Bag, parcel Parcel) melhorenvio.CartRequest {
	addr := bag.ShippingAddress.Normalized()
	name := addr.Name
	if name == "" {
		name = "Cliente"
	}
	number := addr.Number
	if number == "" {
		number = "S/N"
	}
	return melhorenvio.CartRequest{
		Service: s.cfg.ServiceID,
		From:    s.cfg.Sender,
		To: melhorenvio.Party{
			Name:       name,
			Phone:      types.Digits(addr.Phone),
			Email:      addr.Email,
			Document:   SanitizeDocument(addr.Document),
			Address:    addr.Street,
			Complement: addr.Complement,
			Number:     number,
			District:   addr.Neighborhood,
			City:       addr.City,
			StateAbbr:  addr.State,
			CountryID:  "BR",
			PostalCode: types.Digits(addr.PostalCode),
			Note:       addr.Reference,
		},
		Products: cartProducts(bag.Items),
		Volumes:  []melhorenvio.Volume{parcel.Volume()},
		Options: melhorenvio.Options{
			InsuranceValue: bag.Total.Round(2).InexactFloat64(),
			Platform:       s.cfg.Platform,
			Tags:           []melhorenvio.Tag{{Tag: fmt.Sprintf("sacola-%d", bag.BagNumber)}},
		},
	}
}

func (s *Service) observe(outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveLabel(outcome)
	}
}

func checkLabelPreconditions(bag *models.Bag) error {
	if bag.Method() != enums.DeliveryCarrier {
		return pkgerrors.New(pkgerrors.CodePreconditionFailed, "labels are only generated for carrier deliveries").
			WithDetails(map[string]any{"delivery_method": bag.Method()})
	}
	if bag.Status != enums.BagStatusPaid {
		return pkgerrors.New(pkgerrors.CodePreconditionFailed, "bag must be paid before generating a label").
			WithDetails(map[string]any{"status": bag.Status})
	}
	switch bag.OperationalStatus {
	case enums.OperationalPrepareShipment, enums.OperationalMissingData, enums.OperationalAwaitingShippingPayment:
	default:
		return pkgerrors.Newf(pkgerrors.CodePreconditionFailed, "cannot generate a label from %s", bag.OperationalStatus).
			WithDetails(map[string]any{"operational_status": bag.OperationalStatus})
	}
	if bag.PaymentReviewStatus == enums.PaymentReviewPending {
		return pkgerrors.New(pkgerrors.CodePreconditionFailed, "payment is pending review")
	}
	return nil
}

// failureText joins the error message with the upstream body so the balance
// classifier sees both.
func failureText(err error) string {
	text := err.Error()
	if typed := pkgerrors.As(err); typed != nil {
		if details, ok := typed.Details().(map[string]any); ok {
			if body, ok := details["body"].(string); ok {
				text += " " + body
			}
		}
	}
	return text
}
