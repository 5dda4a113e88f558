package quote

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/quotedesk/internal/catalog"
	"github.com/noah-isme/quotedesk/internal/common"
	"github.com/noah-isme/quotedesk/internal/lock"
	"github.com/noah-isme/quotedesk/internal/pricing"
)

const linkInvalidMessage = "this link is no longer valid"

// Handler exposes the quote cart, customer approval and staff endpoints.
type Handler struct {
	service  *Service
	validate *validator.Validate
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Service   *Service
	Validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	v := cfg.Validator
	if v == nil {
		v = common.NewValidator()
	}
	return &Handler{service: cfg.Service, validate: v}
}

type addItemRequest struct {
	ProductID        string          `json:"productId" validate:"required,max=100"`
	Size             string          `json:"size" validate:"max=100"`
	Quantity         *int            `json:"quantity" validate:"omitempty,min=1,max=100000"`
	MaterialTestCert bool            `json:"materialTestCert"`
	CustomSpecs      json.RawMessage `json:"customSpecs,omitempty"`
}

func (r addItemRequest) input() AddItemInput {
	qty := 1
	if r.Quantity != nil {
		qty = *r.Quantity
	}
	return AddItemInput{
		ProductID:        r.ProductID,
		Size:             r.Size,
		Quantity:         qty,
		MaterialTestCert: r.MaterialTestCert,
		CustomSpecs:      r.CustomSpecs,
	}
}

type updateItemRequest struct {
	Quantity         *int  `json:"quantity" validate:"omitempty,max=100000"`
	MaterialTestCert *bool `json:"materialTestCert"`
}

type submitRequest struct {
	Customer Customer `json:"customer"`
	Notes    string   `json:"notes" validate:"max=4000"`
}

type previewRequest struct {
	Items        []addItemRequest `json:"items" validate:"required,min=1,max=200,dive"`
	ShippingCost *pricing.Money   `json:"shippingCost" validate:"omitempty,min=0"`
}

type sendRequest struct {
	ShippingCost  *pricing.Money `json:"shippingCost" validate:"omitempty,min=0"`
	ShippingNotes string         `json:"shippingNotes" validate:"max=2000"`
}

type rejectRequest struct {
	Reason string `json:"reason" validate:"max=2000"`
}

// customerQuote is what the holder of an approval link may see.
type customerQuote struct {
	Number        string          `json:"number"`
	Status        Status          `json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
	ExpiresAt     time.Time       `json:"expiresAt"`
	CustomerName  string          `json:"customerName"`
	Company       string          `json:"company,omitempty"`
	Items         []Item          `json:"items"`
	Totals        pricing.Summary `json:"totals"`
	ShippingCost  *pricing.Money  `json:"shippingCost,omitempty"`
	ShippingNotes string          `json:"shippingNotes,omitempty"`
}

func customerView(q Quote) customerQuote {
	return customerQuote{
		Number:        q.Number,
		Status:        q.Status,
		CreatedAt:     q.CreatedAt,
		ExpiresAt:     q.ExpiresAt,
		CustomerName:  q.Customer.Name,
		Company:       q.Customer.Company,
		Items:         q.Items,
		Totals:        q.Totals,
		ShippingCost:  q.ShippingCost,
		ShippingNotes: q.ShippingNotes,
	}
}

// CreateCart handles POST /api/v1/carts.
func (h *Handler) CreateCart(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	cart, err := h.service.CreateCart(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": cart})
}

// GetCart handles GET /api/v1/carts/{id}.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	cart, err := h.service.GetCart(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": cart})
}

// AddItem handles POST /api/v1/carts/{id}/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var req addItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.service.AddToCart(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		h.writeError(w, err)
		return
	}
	status := http.StatusCreated
	if result.Merged {
		status = http.StatusOK
	}
	common.JSON(w, status, map[string]any{"data": result})
}

// UpdateItem handles PATCH /api/v1/carts/{id}/items/{itemId}.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var req updateItemRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Quantity == nil && req.MaterialTestCert == nil {
		common.WriteError(w, common.BadRequest("quantity", "nothing to update", nil))
		return
	}
	cart, err := h.service.UpdateCartItem(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "itemId"), UpdateItemInput{
		Quantity:         req.Quantity,
		MaterialTestCert: req.MaterialTestCert,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": cart})
}

// RemoveItem handles DELETE /api/v1/carts/{id}/items/{itemId}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	cart, err := h.service.RemoveCartItem(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "itemId"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": cart})
}

// Submit handles POST /api/v1/carts/{id}/submit.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var req submitRequest
	if !h.decode(w, r, &req) {
		return
	}
	q, err := h.service.Submit(r.Context(), chi.URLParam(r, "id"), SubmitInput{Customer: req.Customer, Notes: req.Notes})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": map[string]any{
		"id":        q.ID,
		"number":    q.Number,
		"status":    q.Status,
		"expiresAt": q.ExpiresAt,
		"totals":    q.Totals,
	}})
}

// Preview handles POST /api/v1/quotes/preview.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var req previewRequest
	if !h.decode(w, r, &req) {
		return
	}
	items := make([]AddItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, it.input())
	}
	result, err := h.service.Preview(r.Context(), PreviewInput{Items: items, ShippingCost: req.ShippingCost})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": result})
}

// ViewByToken handles GET /api/v1/approve/{token}.
func (h *Handler) ViewByToken(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	q, err := h.service.ViewByToken(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": customerView(q)})
}

// Approve handles POST /api/v1/approve/{token}.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	q, err := h.service.Approve(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": customerView(q)})
}

// Reject handles POST /api/v1/approve/{token}/reject. The body is optional.
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var req rejectRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	q, err := h.service.Reject(r.Context(), chi.URLParam(r, "token"), req.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": customerView(q)})
}

// AdminList handles GET /api/v1/admin/quotes.
func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	query := r.URL.Query()
	filter := ListFilter{Status: Status(query.Get("status"))}
	if filter.Status != "" && !filter.Status.Valid() {
		common.WriteError(w, common.BadRequest("status", "unknown status", nil))
		return
	}
	page, perPage := 1, 20
	if v := query.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			common.WriteError(w, common.BadRequest("page", "page must be a positive integer", err))
			return
		}
		page = n
	}
	if v := query.Get("per_page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			common.WriteError(w, common.BadRequest("per_page", "per_page must be between 1 and 100", err))
			return
		}
		perPage = n
	}
	filter.Limit = perPage
	filter.Offset = (page - 1) * perPage

	quotes, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	common.JSON(w, http.StatusOK, map[string]any{
		"data":       quotes,
		"pagination": map[string]any{"page": page, "perPage": perPage, "totalItems": total},
	})
}

// AdminGet handles GET /api/v1/admin/quotes/{id}.
func (h *Handler) AdminGet(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	q, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": q})
}

// AdminSend handles POST /api/v1/admin/quotes/{id}/send.
func (h *Handler) AdminSend(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	var req sendRequest
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	q, err := h.service.Send(r.Context(), chi.URLParam(r, "id"), SendInput{ShippingCost: req.ShippingCost, ShippingNotes: req.ShippingNotes})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": q})
}

func (h *Handler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "quote service not configured", nil)
		return false
	}
	return true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := common.DecodeJSON(w, r, dst); err != nil {
		common.WriteError(w, err)
		return false
	}
	if err := common.ValidateStruct(h.validate, dst); err != nil {
		common.WriteError(w, err)
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	common.WriteError(w, toAppError(err))
}

// toAppError maps domain errors onto HTTP responses.
func toAppError(err error) error {
	if common.IsAppError(err) {
		return err
	}
	switch {
	case IsLinkError(err):
		return common.NewAppError("LINK_INVALID", linkInvalidMessage, http.StatusGone, err)
	case errors.Is(err, ErrNotSent):
		return common.NewAppError("QUOTE_NOT_SENT", "quote has not been sent yet", http.StatusConflict, err)
	case errors.Is(err, catalog.ErrProductNotFound):
		return common.NewAppError("PRODUCT_NOT_FOUND", "product not found", http.StatusNotFound, err)
	case errors.Is(err, ErrSizeRequired):
		return &common.AppError{Code: "SIZE_REQUIRED", Message: "a size must be selected for this product", HTTPStatus: http.StatusUnprocessableEntity, Err: err, Details: map[string]any{"field": "size"}}
	case errors.Is(err, ErrInvalidSize):
		return &common.AppError{Code: "INVALID_SIZE", Message: "the selected size is not available", HTTPStatus: http.StatusUnprocessableEntity, Err: err, Details: map[string]any{"field": "size"}}
	case errors.Is(err, ErrInvalidQuantity):
		return &common.AppError{Code: "INVALID_QUANTITY", Message: "quantity must be at least 1", HTTPStatus: http.StatusUnprocessableEntity, Err: err, Details: map[string]any{"field": "quantity"}}
	case errors.Is(err, ErrCustomSpecsUnsupported):
		return &common.AppError{Code: "CUSTOM_SPECS_UNSUPPORTED", Message: "custom specifications are not accepted for this product", HTTPStatus: http.StatusUnprocessableEntity, Err: err, Details: map[string]any{"field": "customSpecs"}}
	case errors.Is(err, ErrInvalidShipping):
		return common.BadRequest("shippingCost", "shipping cost must not be negative", err)
	case errors.Is(err, ErrEmptyCart):
		return common.NewAppError("EMPTY_CART", "add at least one product before requesting a quote", http.StatusUnprocessableEntity, err)
	case errors.Is(err, ErrCartNotFound):
		return common.NewAppError("CART_NOT_FOUND", "cart not found", http.StatusNotFound, err)
	case errors.Is(err, ErrItemNotFound):
		return common.NewAppError("ITEM_NOT_FOUND", "cart item not found", http.StatusNotFound, err)
	case errors.Is(err, ErrNotFound):
		return common.NewAppError("QUOTE_NOT_FOUND", "quote not found", http.StatusNotFound, err)
	case errors.Is(err, ErrInvalidTransition):
		return common.NewAppError("INVALID_TRANSITION", "quote cannot move to the requested status", http.StatusConflict, err)
	case errors.Is(err, lock.ErrTimeout):
		return common.NewAppError("BUSY", "resource is being updated, retry shortly", http.StatusConflict, err)
	case errors.Is(err, ErrStoreUnavailable), errors.Is(err, catalog.ErrStoreUnavailable):
		return common.NewAppError("UNAVAILABLE", "service temporarily unavailable", http.StatusServiceUnavailable, err)
	default:
		return common.NewAppError("INTERNAL", "internal error", http.StatusInternalServerError, err)
	}
}
