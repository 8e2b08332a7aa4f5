package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ariefcatur/go-ecom-orders/internal/catalog"
	"github.com/ariefcatur/go-ecom-orders/internal/validation"
)

// multipart framing and the product part on top of the image itself
const formOverhead = 1 << 20

type ProductsHandler struct {
	Svc *catalog.Service
}

func (h *ProductsHandler) Register(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
	})
}

func (h *ProductsHandler) list(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Svc.List(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *ProductsHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Svc.Get(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductsHandler) create(w http.ResponseWriter, r *http.Request) {
	p, img, err := h.readProduct(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	created, err := h.Svc.Create(ctx, p, img)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *ProductsHandler) update(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, img, err := h.readProduct(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	updated, err := h.Svc.Update(ctx, id, p, img)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *ProductsHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := productID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Svc.Delete(ctx, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// readProduct accepts multipart/form-data with a "product" JSON part and an
// optional "imageFile" part, or a bare JSON product without an image.
func (h *ProductsHandler) readProduct(w http.ResponseWriter, r *http.Request) (catalog.Product, *catalog.Image, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.Svc.MaxImageBytes()+formOverhead)

	var p catalog.Product
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt != "multipart/form-data" {
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			return p, nil, bodyError(err, "product")
		}
		return p, nil, nil
	}

	if err := r.ParseMultipartForm(formOverhead); err != nil {
		return p, nil, bodyError(err, "product")
	}
	raw, err := formPart(r, "product")
	if err != nil {
		return p, nil, err
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, nil, validation.Invalid("product", "malformed JSON")
	}

	f, hdr, err := r.FormFile("imageFile")
	if errors.Is(err, http.ErrMissingFile) {
		return p, nil, nil
	}
	if err != nil {
		return p, nil, bodyError(err, "imageFile")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.Svc.MaxImageBytes()+1))
	if err != nil {
		return p, nil, err
	}
	return p, &catalog.Image{
		Name:        hdr.Filename,
		ContentType: hdr.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// formPart reads a part sent either as a plain field or as a file part
// (clients often attach JSON as application/json blobs).
func formPart(r *http.Request, name string) ([]byte, error) {
	if v, ok := r.MultipartForm.Value[name]; ok && len(v) > 0 {
		return []byte(v[0]), nil
	}
	f, _, err := r.FormFile(name)
	if err != nil {
		return nil, validation.Invalid(name, "is required")
	}
	defer f.Close()
	return io.ReadAll(f)
}

func bodyError(err error, field string) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return err
	}
	return validation.Invalid(field, "malformed request body")
}

func productID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, validation.Invalid("id", "must be a positive integer")
	}
	return id, nil
}
