package catalog

import (
	"context"
	"fmt"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/ariefcatur/go-ecom-orders/internal/logging"
	"github.com/ariefcatur/go-ecom-orders/internal/validation"
)

var logger = logging.New("catalog")

// DefaultMaxImageBytes bounds uploads when no limit is configured.
const DefaultMaxImageBytes int64 = 5 << 20

type Service struct {
	store         Store
	cache         Cache
	validate      *validatorv10.Validate
	maxImageBytes int64
}

// NewService wires catalog management. A nil cache reads straight through.
func NewService(store Store, cache Cache, maxImageBytes int64) *Service {
	if cache == nil {
		cache = NoCache
	}
	if maxImageBytes <= 0 {
		maxImageBytes = DefaultMaxImageBytes
	}
	return &Service{
		store:         store,
		cache:         cache,
		validate:      validation.New(),
		maxImageBytes: maxImageBytes,
	}
}

func (s *Service) MaxImageBytes() int64 { return s.maxImageBytes }

func (s *Service) List(ctx context.Context) ([]Product, error) {
	ps, err := s.store.List(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("list products")
		return nil, fmt.Errorf("list products: %w", err)
	}
	return ps, nil
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	return s.cache.Fetch(ctx, id, func(ctx context.Context) (Product, error) {
		return s.store.FindByID(ctx, id)
	})
}

// Create stores a new product; img may be nil.
func (s *Service) Create(ctx context.Context, p Product, img *Image) (Product, error) {
	p.ID = 0
	if err := s.check(&p, img); err != nil {
		return Product{}, err
	}
	if img != nil {
		p.ImageName, p.ImageType, p.ImageData = img.Name, img.ContentType, img.Data
	}
	if err := s.store.Save(ctx, &p); err != nil {
		logger.Error().Err(err).Str("name", p.Name).Msg("create product")
		return Product{}, fmt.Errorf("create product: %w", err)
	}
	logger.Info().Int64("product_id", p.ID).Msg("product created")
	return p, nil
}

// Update replaces all product fields. The stored image is kept when img is nil.
func (s *Service) Update(ctx context.Context, id int64, p Product, img *Image) (Product, error) {
	if err := s.check(&p, img); err != nil {
		return Product{}, err
	}
	cur, err := s.store.FindByID(ctx, id)
	if err != nil {
		return Product{}, err
	}
	p.ID = id
	p.CreatedAt = cur.CreatedAt
	if img != nil {
		p.ImageName, p.ImageType, p.ImageData = img.Name, img.ContentType, img.Data
	} else {
		p.ImageName, p.ImageType, p.ImageData = cur.ImageName, cur.ImageType, cur.ImageData
	}
	if err := s.store.Save(ctx, &p); err != nil {
		logger.Error().Err(err).Int64("product_id", id).Msg("update product")
		return Product{}, fmt.Errorf("update product %d: %w", id, err)
	}
	s.evict(ctx, id)
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}
	s.evict(ctx, id)
	logger.Info().Int64("product_id", id).Msg("product deleted")
	return nil
}

func (s *Service) check(p *Product, img *Image) error {
	p.Name = strings.TrimSpace(p.Name)
	if err := validation.Check(s.validate, p); err != nil {
		return err
	}
	if p.Price.IsNegative() {
		return validation.Invalid("price", "must not be negative")
	}
	if img == nil {
		return nil
	}
	if int64(len(img.Data)) > s.maxImageBytes {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrImageTooLarge, len(img.Data), s.maxImageBytes)
	}
	if len(img.Data) == 0 {
		return validation.Invalid("imageFile", "is empty")
	}
	if !strings.HasPrefix(img.ContentType, "image/") {
		return validation.Invalid("imageFile", "must have an image/* content type")
	}
	return nil
}

func (s *Service) evict(ctx context.Context, ids ...int64) {
	if err := s.cache.Evict(ctx, ids...); err != nil {
		logger.Warn().Err(err).Ints64("product_ids", ids).Msg("product cache eviction failed")
	}
}
