package reslice

import (
	"image"

	lru "github.com/hashicorp/golang-lru"

	"dicomreslice/internal/models"
)

type cacheKey struct {
	plane models.Plane
	index int
}

// Cache keeps recently materialized slices of one volume.
type Cache struct {
	views [3]View
	lru   *lru.Cache
}

// NewCache returns a cache holding up to size slices across all planes.
func NewCache(vol *models.Volume, size int) (*Cache, error) {
	l, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Cache{views: Views(vol), lru: l}, nil
}

// Slice returns slice i of plane p, materializing it on a miss. Callers must
// treat the returned image as read-only since it is shared.
func (c *Cache) Slice(p models.Plane, i int) (*image.Gray, error) {
	key := cacheKey{plane: p, index: i}
	if img, ok := c.lru.Get(key); ok {
		return img.(*image.Gray), nil
	}

	img, err := c.views[p].Slice(i)
	if err != nil {
		return nil, err
	}
	c.lru.Add(key, img)
	return img, nil
}

// Len reports how many slices are cached.
func (c *Cache) Len() int { return c.lru.Len() }

// View returns the view for plane p.
func (c *Cache) View(p models.Plane) View { return c.views[p] }
