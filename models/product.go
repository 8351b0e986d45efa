package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Brand       string          `json:"brand"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Gender      string          `json:"gender"`
	Sizes       pq.StringArray  `json:"sizes"`
	Colors      pq.StringArray  `json:"colors"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	SoldCount   int             `json:"soldCount"`
	Rating      float64         `json:"rating"`
	Images      pq.StringArray  `json:"images"`
	IsFeatured  bool            `json:"isFeatured"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

type CreateProductRequest struct {
	Name        string          `json:"name" binding:"required"`
	Brand       string          `json:"brand" binding:"required"`
	Category    string          `json:"category" binding:"required"`
	Description string          `json:"description"`
	Gender      string          `json:"gender"`
	Sizes       []string        `json:"sizes"`
	Colors      []string        `json:"colors"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock" binding:"gte=0"`
	Images      []string        `json:"images" binding:"required,min=1"`
}

// UpdateProductRequest carries a partial update; nil fields are left untouched.
type UpdateProductRequest struct {
	Name        *string          `json:"name"`
	Brand       *string          `json:"brand"`
	Category    *string          `json:"category"`
	Description *string          `json:"description"`
	Gender      *string          `json:"gender"`
	Sizes       []string         `json:"sizes"`
	Colors      []string         `json:"colors"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock" binding:"omitempty,gte=0"`
	Images      []string         `json:"images"`
}

// ProductFilter is the parsed query of the client catalog listing.
type ProductFilter struct {
	Page       int
	Limit      int
	Categories []string
	Brands     []string
	Sizes      []string
	Colors     []string
	MinPrice   decimal.Decimal
	MaxPrice   *decimal.Decimal
	SortBy     string
	SortOrder  string
}

type ProductPage struct {
	Success       bool      `json:"success"`
	Products      []Product `json:"products"`
	TotalProducts int       `json:"totalProducts"`
	CurrentPage   int       `json:"currentPage"`
	TotalPages    int       `json:"totalPages"`
}

type UpdateFeaturedRequest struct {
	ProductIDs []string `json:"productId" binding:"required,max=8"`
}

// FeatureBanner is a storefront hero image.
type FeatureBanner struct {
	ID        string    `json:"id"`
	ImageURL  string    `json:"imageUrl"`
	CreatedAt time.Time `json:"createdAt"`
}

type AddFeatureBannersRequest struct {
	Images []string `json:"images" binding:"required,min=1,dive,required,url"`
}
