package bags

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/livebag-backend/api/middleware"
	"github.com/angelmondragon/livebag-backend/api/responses"
	"github.com/angelmondragon/livebag-backend/api/validators"
	internalbags "github.com/angelmondragon/livebag-backend/internal/bags"
	"github.com/angelmondragon/livebag-backend/internal/delivery"
	"github.com/angelmondragon/livebag-backend/internal/paymentreview"
	"github.com/angelmondragon/livebag-backend/internal/shipping"
	"github.com/angelmondragon/livebag-backend/pkg/db/models"
	"github.com/angelmondragon/livebag-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/livebag-backend/pkg/errors"
	"github.com/angelmondragon/livebag-backend/pkg/logger"
	"github.com/angelmondragon/livebag-backend/pkg/pagination"
	"github.com/angelmondragon/livebag-backend/pkg/types"
)

// Service is the slice of the bag orchestrator the HTTP layer drives.
type Service interface {
	GetBag(ctx context.Context, bagID uuid.UUID) (internalbags.BagDetail, error)
	ListBags(ctx context.Context, filters internalbags.ListFilters, params pagination.Params) (pagination.Page[internalbags.BagSummary], error)
	History(ctx context.Context, bagID uuid.UUID) ([]internalbags.HistoryEntry, error)
	Quote(ctx context.Context, bagID uuid.UUID) ([]delivery.Quote, error)
	AssignHandler(ctx context.Context, bagID uuid.UUID, handlerID *uuid.UUID, actor internalbags.Actor) (*models.Bag, error)
	ConfirmDelivery(ctx context.Context, bagID uuid.UUID, input internalbags.ConfirmDeliveryInput, actor internalbags.Actor) (*models.Bag, error)
	UpdateShippingAddress(ctx context.Context, bagID uuid.UUID, addr types.ShippingAddress, actor internalbags.Actor) (*models.Bag, error)
	ConfirmPayment(ctx context.Context, bagID uuid.UUID, method enums.PaymentMethod, actor internalbags.Actor) (*models.Bag, error)
	SubmitManualPayment(ctx context.Context, bagID uuid.UUID, input internalbags.SubmitPaymentInput, actor internalbags.Actor) (*models.Bag, error)
	ApprovePayment(ctx context.Context, bagID uuid.UUID, actor internalbags.Actor) (*models.Bag, error)
	RejectPayment(ctx context.Context, bagID uuid.UUID, reason string, actor internalbags.Actor) (*models.Bag, error)
	RevalidatePayment(ctx context.Context, bagID uuid.UUID, paymentID string, actor internalbags.Actor) (paymentreview.RevalidateResult, error)
	RecordCharge(ctx context.Context, bagID uuid.UUID, input internalbags.RecordChargeInput, actor internalbags.Actor) (*models.Bag, error)
	AdvanceStatus(ctx context.Context, bagID uuid.UUID, actor internalbags.Actor) (*models.Bag, error)
	RevertStatus(ctx context.Context, bagID uuid.UUID, input internalbags.RevertInput, actor internalbags.Actor) (*models.Bag, error)
	GenerateLabel(ctx context.Context, bagID uuid.UUID, actor internalbags.Actor) (shipping.LabelResult, error)
	SyncTracking(ctx context.Context, bagID uuid.UUID) (shipping.TrackingSyncResult, error)
}

var _ Service = (*internalbags.Service)(nil)

// List returns a page of bags filtered by live event, status, handler and
// charge urgency.
func List(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filters, err := buildListFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListBags(r.Context(), filters, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func Detail(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bagID, err := parseBagID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		detail, err := svc.GetBag(r.Context(), bagID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

func History(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bagID, err := parseBagID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entries, err := svc.History(r.Context(), bagID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entries)
	}
}

// Quote prices carrier services for the bag's snapshot address. Nothing is
// written.
func Quote(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bagID, err := parseBagID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		quotes, err := svc.Quote(r.Context(), bagID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quotes)
	}
}

func AssignHandler(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		call, ok := begin(w, r, logg)
		if !ok {
			return
		}
		var req assignHandlerRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(call.ctx, logg, w, err)
			return
		}
		var handlerID *uuid.UUID
		if req.HandlerID != nil {
			id, err := uuid.Parse(*req.HandlerID)
			if err != nil {
				responses.WriteError(call.ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid handler id"))
				return
			}
			handlerID = &id
		}
		bag, err := svc.AssignHandler(call.ctx, call.bagID, handlerID, call.actor)
		writeBag(call.ctx, logg, w, bag, err)
	}
}

func ConfirmDelivery(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		call, ok := begin(w, r, logg)
		if !ok {
			return
		}
		var req confirmDeliveryRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(call.ctx, logg, w, err)
			return
		}
		method, err := enums.ParseDeliveryMethod(req.Method)
		if err != nil {
			responses.WriteError(call.ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery method"))
			return
		}
		bag, err := svc.ConfirmDelivery(call.ctx, call.bagID, internalbags.ConfirmDeliveryInput{
			Method:      method,
			Shipping:    req.Shipping,
			ServiceName: validators.SanitizeString(req.ServiceName, 120),
			Address:     req.Address,
		}, call.actor)
		writeBag(call.ctx, logg, w, bag, err)
	}
}

// UpdateAddress replaces the shipping address snapshot, including on paid
// bags that have not reached the aggregator yet.
func UpdateAddress(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		call, ok := begin(w, r, logg)
		if !ok {
			return
		}
		var req updateAddressRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(call.ctx, logg, w, err)
			return
		}
		bag, err := svc.UpdateShippingAddress(call.ctx, call.bagID, *req.Address, call.actor)
		writeBag(call.ctx, logg, w, bag, err)
	}
}

// ConfirmPayment records a gateway-verified payment. Mounted behind the admin
// role.
func ConfirmPayment(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		call, ok := begin(w, r, logg)
		if !ok {
			return
		}
		var req confirmPaymentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(call.ctx, logg, w, err)
			return
		}
		method, err := parsePaymentMethod(req.Method)
		if err != nil {
			responses.WriteError(call.ctx, logg, w, err)
			return
		}
		bag, err := svc.ConfirmPayment(call.ctx, call.bagID, method, call.actor)
		writeBag(call.ctx, logg, w, bag, err)
	}
}

func SubmitManualPayment(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		call, ok := begin(w, r, logg)
		if !ok {
			return
		}
		var req submitPaymentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(call.ctx, logg, w, err)
			return
		}
		method, err := parsePaymentMethod(req.Method)
		if err != nil {
			responses.WriteError(call.ctx, logg, w, err)
			return
		}
		bag, err := svc.SubmitManualPayment(call.ctx, call.bagID, internalbags.SubmitPaymentInput{
			Method:   method,
			ProofURL: strings.TrimSpace(req.ProofURL),
			Notes:    validators.SanitizeString(req.Notes, 1000),
		}, call.actor)
		writeBag(call.ctx, logg, w, bag, err)
	}
}

func ApprovePayment(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		call, ok := begin(w, r, logg)
		if !ok {
			return
		}
		bag, err := svc.ApprovePayment(call.ctx, call.bagID, call.actor)
		writeBag(call.ctx, logg, w, bag, err)
	}
}

func RejectPayment(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		call, ok := begin(w, r, logg)
		if !ok {
			return
		}
		var req rejectPaymentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(call.ctx, logg, w, err)
			return
		}
		bag, err := svc.RejectPayment(call.ctx, call.bagID, validators.SanitizeString(req.Reason, 500), call.actor)
		writeBag(call.ctx, logg, w, bag, err)
	}
}

func RevalidatePayment(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		call, ok := begin(w, r, logg)
		if !ok {
			return
		}
		var req revalidatePaymentRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(call.ctx, logg, w, err)
			return
		}
		result, err := svc.RevalidatePayment(call.ctx, call.bagID, req.PaymentID, call.actor)
		if err != nil {
			responses.WriteError(call.ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func RecordCharge(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		call, ok := begin(w, r, logg)
		if !ok {
			return
		}
		var req recordChargeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(call.ctx, logg, w, err)
			return
		}
		channel, err := enums.ParseChargeChannel(req.Channel)
		if err != nil {
			responses.WriteError(call.ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid charge channel"))
			return
		}
		bag, err := svc.RecordCharge(call.ctx, call.bagID, internalbags.RecordChargeInput{
			Channel:              channel,
			MoveToAwaitingReturn: req.MoveToAwaitingReturn,
		}, call.actor)
		writeBag(call.ctx, logg, w, bag, err)
	}
}

func AdvanceStatus(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		call, ok := begin(w, r, logg)
		if !ok {
			return
		}
		bag, err := svc.AdvanceStatus(call.ctx, call.bagID, call.actor)
		writeBag(call.ctx, logg, w, bag, err)
	}
}

func RevertStatus(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		call, ok := begin(w, r, logg)
		if !ok {
			return
		}
		var req revertStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(call.ctx, logg, w, err)
			return
		}
		target, err := enums.ParseOperationalStatus(strings.TrimSpace(req.Target))
		if err != nil {
			responses.WriteError(call.ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid target status"))
			return
		}
		bag, err := svc.RevertStatus(call.ctx, call.bagID, internalbags.RevertInput{
			Target: target,
			Reason: validators.SanitizeString(req.Reason, 500),
		}, call.actor)
		writeBag(call.ctx, logg, w, bag, err)
	}
}

// GenerateLabel answers 202 when the aggregator wallet must be topped up
// before the label can be bought; the body carries the wallet link.
func GenerateLabel(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		call, ok := begin(w, r, logg)
		if !ok {
			return
		}
		result, err := svc.GenerateLabel(call.ctx, call.bagID, call.actor)
		if err != nil {
			responses.WriteError(call.ctx, logg, w, err)
			return
		}
		if result.Wait != nil {
			responses.WriteSuccessStatus(w, http.StatusAccepted, result)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func SyncTracking(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		call, ok := begin(w, r, logg)
		if !ok {
			return
		}
		result, err := svc.SyncTracking(call.ctx, call.bagID)
		if err != nil {
			responses.WriteError(call.ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

type bagCall struct {
	ctx   context.Context
	bagID uuid.UUID
	actor internalbags.Actor
}

// begin resolves the bag id and the acting operator shared by every write.
func begin(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (bagCall, bool) {
	bagID, err := parseBagID(r)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return bagCall{}, false
	}
	actor, err := actorFromRequest(r)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return bagCall{}, false
	}
	ctx := r.Context()
	if logg != nil {
		ctx = logg.WithBagID(ctx, bagID.String())
	}
	return bagCall{ctx: ctx, bagID: bagID, actor: actor}, true
}

func writeBag(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, bag *models.Bag, err error) {
	if err != nil {
		responses.WriteError(ctx, logg, w, err)
		return
	}
	responses.WriteSuccess(w, internalbags.ViewOf(bag))
}

func parseBagID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "bagId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "bag id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid bag id")
	}
	return id, nil
}

func actorFromRequest(r *http.Request) (internalbags.Actor, error) {
	userID, err := uuid.Parse(middleware.UserIDFromContext(r.Context()))
	if err != nil {
		return internalbags.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "operator missing from context")
	}
	role, err := enums.ParseMemberRole(middleware.RoleFromContext(r.Context()))
	if err != nil {
		return internalbags.Actor{}, pkgerrors.Wrap(pkgerrors.CodeForbidden, err, "unknown operator role")
	}
	return internalbags.Actor{
		UserID:  userID,
		Role:    role,
		IsAdmin: role == enums.MemberRoleAdmin,
	}, nil
}

func parsePaymentMethod(raw string) (enums.PaymentMethod, error) {
	method, err := enums.ParsePaymentMethod(strings.TrimSpace(raw))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method")
	}
	return method, nil
}

func buildListFilters(r *http.Request) (internalbags.ListFilters, error) {
	var filters internalbags.ListFilters
	var err error

	if filters.LiveEventID, err = validators.ParseQueryUUID(r, "live_event_id"); err != nil {
		return filters, err
	}
	if filters.HandlerID, err = validators.ParseQueryUUID(r, "handler_id"); err != nil {
		return filters, err
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("operational_status")); raw != "" {
		status, parseErr := enums.ParseOperationalStatus(raw)
		if parseErr != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid operational status").
				WithDetails(map[string]any{"field": "operational_status"})
		}
		filters.OperationalStatus = &status
	}
	if filters.UrgentOnly, err = validators.ParseQueryBool(r, "urgent_only"); err != nil {
		return filters, err
	}
	if filters.NeedsCharge, err = validators.ParseQueryBool(r, "needs_charge"); err != nil {
		return filters, err
	}
	return filters, nil
}
