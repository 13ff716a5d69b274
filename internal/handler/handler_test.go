package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/kart-promo/internal/checkout"
	"github.com/xenking/kart-promo/internal/domain/auth"
	"github.com/xenking/kart-promo/internal/domain/order"
	"github.com/xenking/kart-promo/internal/domain/price"
	"github.com/xenking/kart-promo/internal/domain/product"
	"github.com/xenking/kart-promo/internal/i18n"
	"github.com/xenking/kart-promo/internal/pricing"
	"github.com/xenking/kart-promo/internal/promotion"
)

const (
	testPepper   = "pepper"
	fullKey      = "full-key"
	orderOnlyKey = "order-key"
	testToken    = "0b5f7c9e-3f1a-4c55-9d7e-2a6b1c8d4e10"
)

// --- Mock implementations ---

type mockProductRepo struct {
	products []product.Product
	listErr  error
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) {
	return m.products, m.listErr
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	for i := range m.products {
		if m.products[i].ID == id {
			return &m.products[i], nil
		}
	}
	return nil, product.ErrNotFound
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, err := m.GetByID(context.Background(), id); err == nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

type mockOrderRepo struct {
	lastOrder *order.Order
}

func (m *mockOrderRepo) Create(_ context.Context, o *order.Order) error {
	m.lastOrder = o
	return nil
}

type mockCartStore struct {
	carts map[string][]order.OrderItem
}

func (m *mockCartStore) Save(_ context.Context, token string, items []order.OrderItem) error {
	m.carts[token] = items
	return nil
}

func (m *mockCartStore) Load(_ context.Context, token string) ([]order.OrderItem, error) {
	items, ok := m.carts[token]
	if !ok {
		return nil, order.ErrCartNotFound
	}
	return items, nil
}

func (m *mockCartStore) Delete(_ context.Context, token string) error {
	delete(m.carts, token)
	return nil
}

type mockAPIKeyRepo struct {
	byHash map[string]*auth.APIKeyInfo
	err    error
}

func (m *mockAPIKeyRepo) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	info, ok := m.byHash[hash]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return info, nil
}

func newAPIKeyRepo() *mockAPIKeyRepo {
	repo := &mockAPIKeyRepo{byHash: make(map[string]*auth.APIKeyInfo)}
	for key, scopes := range map[string][]string{
		fullKey:      {auth.ScopeCartWrite, auth.ScopeCreateOrder},
		orderOnlyKey: {auth.ScopeCreateOrder},
	} {
		hash := auth.HashHex(key, []byte(testPepper))
		repo.byHash[hash] = &auth.APIKeyInfo{ID: key, KeyHash: hash, Name: key, Scopes: scopes}
	}
	return repo
}

// --- Helpers ---

func newTestProduct(id, name, p string) product.Product {
	return product.Product{
		ID:       id,
		Name:     name,
		Price:    decimal.RequireFromString(p),
		TaxRate:  decimal.NewFromInt(10),
		Category: "test",
		Image: product.Image{
			Thumbnail: "/thumb.jpg",
			Mobile:    "/mobile.jpg",
			Tablet:    "/tablet.jpg",
			Desktop:   "/desktop.jpg",
		},
	}
}

type testEnv struct {
	server   http.Handler
	products *mockProductRepo
	orders   *mockOrderRepo
	carts    *mockCartStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	tr, err := i18n.NewTranslator("en")
	require.NoError(t, err)

	calc, err := checkout.NewCalculator(
		pricing.NewAmountCalculator(),
		tracenoop.NewTracerProvider(),
		metricnoop.NewMeterProvider(),
		checkout.NewProductProcessor(pricing.NewQuantityCalculator()),
		promotion.NewEvaluator(zap.NewNop(),
			promotion.NewBulkQuantityStrategy(pricing.NewAbsoluteCalculator(), tr),
			promotion.NewPercentageStrategy(pricing.NewPercentageCalculator(), tr),
		),
	)
	require.NoError(t, err)

	env := &testEnv{
		products: &mockProductRepo{products: []product.Product{
			newTestProduct("1", "Waffle", "6.50"),
			newTestProduct("2", "Tiramisu", "5.00"),
			newTestProduct("3", "Cake", "120.00"),
		}},
		orders: &mockOrderRepo{},
		carts:  &mockCartStore{carts: make(map[string][]order.OrderItem)},
	}
	svc := order.NewService(env.products, calc, env.orders, env.carts, price.SalesContext{
		ChannelID: "web",
		Currency:  "USD",
		Locale:    "en",
		TaxStatus: price.TaxStatusGross,
		Decimals:  2,
	})

	h := NewHandler(HandlerConfig{ImageBaseURL: "https://cdn.test"}, env.products, svc)
	env.server = h.Routes(NewSecurityHandler(newAPIKeyRepo(), []byte(testPepper)))
	return env
}

func (env *testEnv) do(t *testing.T, method, path, body, apiKey string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set(APIKeyHeader, apiKey)
	}
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)
	return rec
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type lineItemResponse struct {
	ID           string  `json:"id"`
	Type         string  `json:"type"`
	ReferencedID string  `json:"referencedId"`
	Label        string  `json:"label"`
	Quantity     int     `json:"quantity"`
	TotalPrice   float64 `json:"totalPrice"`
}

type quoteResponse struct {
	Token     string             `json:"token"`
	LineItems []lineItemResponse `json:"lineItems"`
	Price     struct {
		NetPrice   float64 `json:"netPrice"`
		TotalPrice float64 `json:"totalPrice"`
		TaxStatus  string  `json:"taxStatus"`
	} `json:"price"`
	Discounts float64 `json:"discounts"`
	Promotion string  `json:"promotion"`
	Products  []struct {
		ID string `json:"id"`
	} `json:"products"`
}

type orderResponse struct {
	ID        string  `json:"id"`
	Total     float64 `json:"total"`
	Discounts float64 `json:"discounts"`
	Promotion string  `json:"promotion"`
	Items     []struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
	LineItems []lineItemResponse `json:"lineItems"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func requireError(t *testing.T, rec *httptest.ResponseRecorder, status int) errorResponse {
	t.Helper()

	require.Equal(t, status, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	resp := decode[errorResponse](t, rec)
	assert.Equal(t, status, resp.Code)
	return resp
}

// --- Tests ---

func TestListProducts(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/product", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var products []struct {
		ID    string  `json:"id"`
		Name  string  `json:"name"`
		Price float64 `json:"price"`
		Image struct {
			Thumbnail string `json:"thumbnail"`
		} `json:"image"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &products))
	require.Len(t, products, 3)
	assert.Equal(t, "1", products[0].ID)
	assert.Equal(t, "Waffle", products[0].Name)
	assert.InDelta(t, 6.5, products[0].Price, 1e-9)
	assert.Equal(t, "https://cdn.test/thumb.jpg", products[0].Image.Thumbnail)
}

func TestListProducts_Error(t *testing.T) {
	env := newTestEnv(t)
	env.products.listErr = errors.New("db down")

	resp := requireError(t, env.do(t, http.MethodGet, "/api/product", "", ""), http.StatusInternalServerError)
	assert.Equal(t, "internal error", resp.Message)
}

func TestGetProduct(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/product/2", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Tiramisu"`)

	resp := requireError(t, env.do(t, http.MethodGet, "/api/product/999", "", ""), http.StatusNotFound)
	assert.Equal(t, "product not found", resp.Message)
}

func TestCalculateCart(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		total     float64
		discounts float64
		promotion string
		label     string
	}{
		{
			name:  "NoPromotion",
			body:  `{"items":[{"productId":"1","quantity":2}]}`,
			total: 13,
		},
		{
			name:      "BulkQuantity",
			body:      `{"items":[{"productId":"2","quantity":5}]}`,
			total:     20,
			discounts: 5,
			promotion: promotion.BulkQuantityCode,
			label:     "Bulk discount",
		},
		{
			name:      "Percentage",
			body:      `{"items":[{"productId":"3","quantity":1}]}`,
			total:     108,
			discounts: 12,
			promotion: promotion.PercentageCode,
			label:     "10% off your order",
		},
		{
			name:      "LocalizedLabel",
			body:      `{"items":[{"productId":"2","quantity":5}],"locale":"de"}`,
			total:     20,
			discounts: 5,
			promotion: promotion.BulkQuantityCode,
			label:     "Mengenrabatt",
		},
		{
			name:      "UnknownFieldsIgnored",
			body:      `{"couponCode":"X","items":[{"productId":"2","quantity":5,"note":"hi"}]}`,
			total:     20,
			discounts: 5,
			promotion: promotion.BulkQuantityCode,
			label:     "Bulk discount",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)

			rec := env.do(t, http.MethodPost, "/api/cart/calculate", tt.body, "")
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			q := decode[quoteResponse](t, rec)
			assert.InDelta(t, tt.total, q.Price.TotalPrice, 1e-9)
			assert.InDelta(t, tt.discounts, q.Discounts, 1e-9)
			assert.Equal(t, tt.promotion, q.Promotion)
			assert.Equal(t, "gross", q.Price.TaxStatus)
			assert.Len(t, q.Products, 1)

			if tt.promotion == "" {
				require.Len(t, q.LineItems, 1)
				return
			}
			require.Len(t, q.LineItems, 2)
			discount := q.LineItems[1]
			assert.Equal(t, "custom_discount", discount.Type)
			assert.Equal(t, tt.label, discount.Label)
			assert.Equal(t, tt.promotion, discount.ReferencedID)
			assert.InDelta(t, tt.discounts, discount.TotalPrice, 1e-9)
		})
	}

	// Nothing is stored for a plain calculation.
	env := newTestEnv(t)
	env.do(t, http.MethodPost, "/api/cart/calculate", `{"items":[{"productId":"1","quantity":1}]}`, "")
	assert.Empty(t, env.carts.carts)
	assert.Nil(t, env.orders.lastOrder)
}

func TestCalculateCart_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{name: "MalformedJSON", body: `{"items":[`, status: http.StatusBadRequest},
		{name: "WrongType", body: `{"items":[{"productId":"1","quantity":"two"}]}`, status: http.StatusBadRequest},
		{name: "EmptyItems", body: `{"items":[]}`, status: http.StatusBadRequest},
		{name: "MissingProductID", body: `{"items":[{"quantity":1}]}`, status: http.StatusBadRequest},
		{name: "InvalidLocale", body: `{"items":[{"productId":"1","quantity":1}],"locale":"??"}`, status: http.StatusBadRequest},
		{name: "ZeroQuantity", body: `{"items":[{"productId":"1","quantity":0}]}`, status: http.StatusUnprocessableEntity},
		{name: "UnknownProduct", body: `{"items":[{"productId":"999","quantity":1}]}`, status: http.StatusUnprocessableEntity},
		{
			name:   "MergedQuantityOverflow",
			body:   `{"items":[{"productId":"1","quantity":9223372036854775807},{"productId":"1","quantity":9223372036854775807}]}`,
			status: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			requireError(t, env.do(t, http.MethodPost, "/api/cart/calculate", tt.body, ""), tt.status)
		})
	}
}

func TestSaveAndGetCart(t *testing.T) {
	env := newTestEnv(t)
	path := "/api/cart/" + testToken

	rec := env.do(t, http.MethodPut, path, `{"items":[{"productId":"2","quantity":3},{"productId":"2","quantity":2}]}`, fullKey)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	saved := decode[quoteResponse](t, rec)
	assert.Equal(t, testToken, saved.Token)
	assert.Equal(t, promotion.BulkQuantityCode, saved.Promotion)
	assert.Equal(t, []order.OrderItem{{ProductID: "2", Quantity: 5}}, env.carts.carts[testToken])

	rec = env.do(t, http.MethodGet, path+"?locale=fr", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	loaded := decode[quoteResponse](t, rec)
	assert.Equal(t, testToken, loaded.Token)
	assert.InDelta(t, saved.Price.TotalPrice, loaded.Price.TotalPrice, 1e-9)
	require.Len(t, loaded.LineItems, 2)
	assert.Equal(t, "Remise sur quantité", loaded.LineItems[1].Label)
}

func TestGetCart_Errors(t *testing.T) {
	env := newTestEnv(t)

	requireError(t, env.do(t, http.MethodGet, "/api/cart/"+testToken, "", ""), http.StatusNotFound)
	requireError(t, env.do(t, http.MethodGet, "/api/cart/not-a-token", "", ""), http.StatusBadRequest)
	requireError(t, env.do(t, http.MethodGet, "/api/cart/"+testToken+"?locale=%3F%3F", "", ""), http.StatusBadRequest)
}

func TestSaveCart_Security(t *testing.T) {
	body := `{"items":[{"productId":"1","quantity":1}]}`
	path := "/api/cart/" + testToken

	tests := []struct {
		name   string
		key    string
		status int
	}{
		{name: "NoKey", status: http.StatusUnauthorized},
		{name: "InvalidKey", key: "wrong-key", status: http.StatusUnauthorized},
		{name: "MissingScope", key: orderOnlyKey, status: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			requireError(t, env.do(t, http.MethodPut, path, body, tt.key), tt.status)
			assert.Empty(t, env.carts.carts)
		})
	}
}

func TestPlaceOrder(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/order", `{"items":[{"productId":"3","quantity":1},{"productId":"1","quantity":1}]}`, orderOnlyKey)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	o := decode[orderResponse](t, rec)
	assert.NotEmpty(t, o.ID)
	// 126.50 less 10%.
	assert.InDelta(t, 113.85, o.Total, 1e-9)
	assert.InDelta(t, 12.65, o.Discounts, 1e-9)
	assert.Equal(t, promotion.PercentageCode, o.Promotion)
	require.Len(t, o.Items, 2)
	assert.Equal(t, "3", o.Items[0].ProductID)
	require.Len(t, o.LineItems, 3)

	require.NotNil(t, env.orders.lastOrder)
	assert.Equal(t, o.ID, env.orders.lastOrder.ID)
}

func TestPlaceOrder_FromSavedCart(t *testing.T) {
	env := newTestEnv(t)
	env.carts.carts[testToken] = []order.OrderItem{{ProductID: "2", Quantity: 10}}

	rec := env.do(t, http.MethodPost, "/api/order", `{"cartToken":"`+testToken+`"}`, fullKey)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	o := decode[orderResponse](t, rec)
	assert.InDelta(t, 40, o.Total, 1e-9)
	assert.InDelta(t, 10, o.Discounts, 1e-9)
	assert.Equal(t, promotion.BulkQuantityCode, o.Promotion)
	assert.NotContains(t, env.carts.carts, testToken)
}

func TestPlaceOrder_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		key    string
		status int
	}{
		{name: "NoAuth", body: `{"items":[{"productId":"1","quantity":1}]}`, status: http.StatusUnauthorized},
		{name: "InvalidKey", body: `{"items":[{"productId":"1","quantity":1}]}`, key: "wrong-key", status: http.StatusUnauthorized},
		{name: "EmptyItems", body: `{"items":[]}`, key: fullKey, status: http.StatusBadRequest},
		{name: "InvalidCartToken", body: `{"cartToken":"abc"}`, key: fullKey, status: http.StatusBadRequest},
		{name: "UnknownCart", body: `{"cartToken":"` + testToken + `"}`, key: fullKey, status: http.StatusNotFound},
		{name: "InvalidProduct", body: `{"items":[{"productId":"999","quantity":1}]}`, key: fullKey, status: http.StatusUnprocessableEntity},
		{name: "NegativeQuantity", body: `{"items":[{"productId":"1","quantity":-1}]}`, key: fullKey, status: http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			requireError(t, env.do(t, http.MethodPost, "/api/order", tt.body, tt.key), tt.status)
			assert.Nil(t, env.orders.lastOrder)
		})
	}
}

func TestSecurityHandler_RepositoryError(t *testing.T) {
	repo := newAPIKeyRepo()
	repo.err = errors.New("db down")
	sec := NewSecurityHandler(repo, []byte(testPepper))

	_, err := sec.Authenticate(context.Background(), fullKey)
	require.ErrorIs(t, err, errUnauthorized)

	info, err := NewSecurityHandler(newAPIKeyRepo(), []byte(testPepper)).Authenticate(context.Background(), fullKey)
	require.NoError(t, err)
	assert.Equal(t, fullKey, info.ID)
}

func TestRoutes_NotFound(t *testing.T) {
	env := newTestEnv(t)

	requireError(t, env.do(t, http.MethodGet, "/api/unknown", "", ""), http.StatusNotFound)
	requireError(t, env.do(t, http.MethodDelete, "/api/product", "", ""), http.StatusMethodNotAllowed)
}
