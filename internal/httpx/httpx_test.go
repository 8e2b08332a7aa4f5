package httpx_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-ecom-orders/internal/catalog"
	"github.com/ariefcatur/go-ecom-orders/internal/httpx"
	"github.com/ariefcatur/go-ecom-orders/internal/memstore"
	"github.com/ariefcatur/go-ecom-orders/internal/orders"
)

type env struct {
	srv *httptest.Server
	db  *memstore.DB
	id  int64
}

func newEnv(t *testing.T) env {
	t.Helper()
	db := memstore.New()
	ps := db.Seed(catalog.Product{Name: "Keyboard", Price: decimal.RequireFromString("9.99"), StockQuantity: 5, Available: true})
	products := catalog.NewService(db.Products(), nil, 64)
	ords := orders.NewService(db.Orders(), orders.WithIdempotency(memstore.NewIdempotency()))
	srv := httptest.NewServer(httpx.NewRouter(products, ords))
	t.Cleanup(srv.Close)
	return env{srv: srv, db: db, id: ps[0].ID}
}

func (e env) do(t *testing.T, method, path, body string, hdr map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func orderBody(productID int64, qty int) string {
	return fmt.Sprintf(`{"customerName":"Alice","email":"alice@example.com","items":[{"productId":%d,"quantity":%d}]}`, productID, qty)
}

func TestHealthz(t *testing.T) {
	e := newEnv(t)
	resp, err := http.Get(e.srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPlaceOrderEndpoint(t *testing.T) {
	e := newEnv(t)

	resp, body := e.do(t, http.MethodPost, "/orders", orderBody(e.id, 2), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	code, _ := body["orderId"].(string)
	assert.True(t, orders.ValidCode(code), code)
	assert.Equal(t, "PLACED", body["status"])
	items := body["items"].([]any)
	require.Len(t, items, 1)
	line := items[0].(map[string]any)
	assert.Equal(t, "Keyboard", line["productName"])
	assert.Equal(t, "19.98", line["totalPrice"])
	assert.Equal(t, 3, stock(t, e.db, e.id))

	resp, body = e.do(t, http.MethodGet, "/orders/"+code, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, code, body["orderId"])

	resp, _ = e.do(t, http.MethodDelete, "/orders/"+code, "", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = e.do(t, http.MethodGet, "/orders/"+code, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPlaceOrderInsufficientStockIs409(t *testing.T) {
	e := newEnv(t)

	resp, body := e.do(t, http.MethodPost, "/orders", orderBody(e.id, 10), nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "insufficient stock", body["error"])
	assert.EqualValues(t, e.id, body["productId"])
	assert.EqualValues(t, 10, body["requested"])
	assert.EqualValues(t, 5, body["available"])
	assert.Equal(t, 5, stock(t, e.db, e.id))
}

func TestPlaceOrderErrors(t *testing.T) {
	e := newEnv(t)

	resp, body := e.do(t, http.MethodPost, "/orders", `{"customerName":"","email":"x","items":[]}`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	fields := body["fields"].(map[string]any)
	assert.Contains(t, fields, "customerName")
	assert.Contains(t, fields, "email")

	resp, _ = e.do(t, http.MethodPost, "/orders", `{not json`, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = e.do(t, http.MethodPost, "/orders", orderBody(999, 1), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = e.do(t, http.MethodGet, "/orders/nope", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIdempotencyKeyReplays(t *testing.T) {
	e := newEnv(t)
	hdr := map[string]string{httpx.HeaderIdempotencyKey: "abc"}

	resp, first := e.do(t, http.MethodPost, "/orders", orderBody(e.id, 1), hdr)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, again := e.do(t, http.MethodPost, "/orders", orderBody(e.id, 1), hdr)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "true", resp.Header.Get(httpx.HeaderReplayed))
	assert.Equal(t, first["orderId"], again["orderId"])
	assert.Equal(t, 4, stock(t, e.db, e.id))

	resp, list := e.doList(t, "/orders")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, list, 1)
}

func TestIdempotencyKeyReusedWithDifferentBody(t *testing.T) {
	e := newEnv(t)
	hdr := map[string]string{httpx.HeaderIdempotencyKey: "abc"}

	resp, _ := e.do(t, http.MethodPost, "/orders", orderBody(e.id, 1), hdr)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := e.do(t, http.MethodPost, "/orders", orderBody(e.id, 2), hdr)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, orders.ErrIdempotencyKeyReused.Error(), body["error"])
	assert.Equal(t, 4, stock(t, e.db, e.id))
}

func (e env) doList(t *testing.T, path string) (*http.Response, []any) {
	t.Helper()
	resp, err := http.Get(e.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out []any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func multipartProduct(t *testing.T, product string, image []byte, imageType string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="product"; filename="product.json"`)
	h.Set("Content-Type", "application/json")
	pw, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = pw.Write([]byte(product))
	require.NoError(t, err)

	if image != nil {
		ih := make(textproto.MIMEHeader)
		ih.Set("Content-Disposition", `form-data; name="imageFile"; filename="pic.png"`)
		ih.Set("Content-Type", imageType)
		iw, err := mw.CreatePart(ih)
		require.NoError(t, err)
		_, err = iw.Write(image)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestCreateProductMultipart(t *testing.T) {
	e := newEnv(t)
	body, ct := multipartProduct(t,
		`{"name":"Mouse","brand":"Acme","price":"4.50","releaseDate":"2024-01-15","productAvailable":true,"stockQuantity":7}`,
		[]byte{0x89, 'P', 'N', 'G'}, "image/png")

	resp, err := http.Post(e.srv.URL+"/products", ct, body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var p map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&p))
	assert.Equal(t, "Mouse", p["name"])
	assert.Equal(t, "2024-01-15", p["releaseDate"])
	assert.Equal(t, "pic.png", p["imageName"])
	assert.NotContains(t, p, "imageData")

	id := int64(p["id"].(float64))
	stored, err := e.db.Products().FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, stored.ImageData)
}

func TestCreateProductRejectsLargeImage(t *testing.T) {
	e := newEnv(t)
	body, ct := multipartProduct(t, `{"name":"Mouse","price":"1"}`, bytes.Repeat([]byte{1}, 65), "image/png")

	resp, err := http.Post(e.srv.URL+"/products", ct, body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestCreateProductRejectsNonImage(t *testing.T) {
	e := newEnv(t)
	body, ct := multipartProduct(t, `{"name":"Mouse","price":"1"}`, []byte("hello"), "text/plain")

	resp, err := http.Post(e.srv.URL+"/products", ct, body)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProductCRUDJSON(t *testing.T) {
	e := newEnv(t)

	resp, p := e.do(t, http.MethodGet, fmt.Sprintf("/products/%d", e.id), "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Keyboard", p["name"])

	resp, p = e.do(t, http.MethodPut, fmt.Sprintf("/products/%d", e.id), `{"name":"Keyboard 2","price":"11.00","stockQuantity":2}`, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Keyboard 2", p["name"])

	resp, list := e.doList(t, "/products")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, list, 1)

	resp, _ = e.do(t, http.MethodGet, "/products/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = e.do(t, http.MethodGet, "/products/999", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteProductInUseIs409(t *testing.T) {
	e := newEnv(t)

	resp, _ := e.do(t, http.MethodPost, "/orders", orderBody(e.id, 1), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = e.do(t, http.MethodDelete, fmt.Sprintf("/products/%d", e.id), "", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func stock(t *testing.T, db *memstore.DB, id int64) int {
	t.Helper()
	n, ok := db.Stock(id)
	require.True(t, ok, "product %d not stored", id)
	return n
}
