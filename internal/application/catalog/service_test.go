package catalog_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/likha-market/marketplace/internal/application/catalog"
	"github.com/likha-market/marketplace/internal/docstore/memory"
	domcatalog "github.com/likha-market/marketplace/internal/domain/catalog"
)

type seqIDGen struct{ n int }

func (g *seqIDGen) NewID() string {
	g.n++
	return fmt.Sprintf("p%d", g.n)
}

func newService(t *testing.T) *catalog.Service {
	t.Helper()
	return catalog.New(memory.NewStore(), &seqIDGen{}, nil)
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
func int64Ptr(i int64) *int64 { return &i }

func TestCreateProduct(t *testing.T) {
	svc := newService(t)

	p, err := svc.CreateProduct(context.Background(), catalog.CreateProductInput{
		SellerID:    "s1",
		Name:        "Inabel Table Runner",
		Description: "Handwoven in Ilocos",
		Category:    domcatalog.CategoryWeaving,
		Price:       350_00,
		Variations: []domcatalog.Variation{
			{ID: "v1", Name: "Red", Price: 350_00, Stock: 8},
			{ID: "v2", Name: "Indigo", Price: 380_00, Stock: 2},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
	assert.Equal(t, 10, p.Stock, "aggregate derived from variations")
	assert.Equal(t, "Handwoven in Ilocos", p.Description)

	got, err := svc.GetProduct(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)
}

func TestCreateProduct_Validation(t *testing.T) {
	svc := newService(t)

	_, err := svc.CreateProduct(context.Background(), catalog.CreateProductInput{SellerID: "s1"})
	assert.ErrorIs(t, err, domcatalog.ErrInvalidName)

	_, err = svc.CreateProduct(context.Background(), catalog.CreateProductInput{
		SellerID: "s1", Name: "x", Price: -1,
	})
	assert.ErrorIs(t, err, domcatalog.ErrInvalidPrice)

	_, err = svc.CreateProduct(context.Background(), catalog.CreateProductInput{
		SellerID: "s1", Name: "x", Stock: -1,
	})
	assert.ErrorIs(t, err, domcatalog.ErrInvalidStock)
}

func TestUpdateProduct(t *testing.T) {
	svc := newService(t)
	p, err := svc.CreateProduct(context.Background(), catalog.CreateProductInput{
		SellerID: "s1", Name: "Burnay Jar", Category: domcatalog.CategoryPottery, Price: 800_00, Stock: 5,
	})
	require.NoError(t, err)

	updated, err := svc.UpdateProduct(context.Background(), p.ID, domcatalog.Update{
		Name:  strPtr("Burnay Jar, Large"),
		Price: int64Ptr(950_00),
		Stock: intPtr(3),
	})
	require.NoError(t, err)
	assert.Equal(t, "Burnay Jar, Large", updated.Name)
	assert.Equal(t, int64(950_00), updated.Price)
	assert.Equal(t, 3, updated.Stock)
	assert.Equal(t, domcatalog.CategoryPottery, updated.Category, "untouched field survives")

	_, err = svc.UpdateProduct(context.Background(), p.ID, domcatalog.Update{Name: strPtr("")})
	assert.ErrorIs(t, err, domcatalog.ErrInvalidName)

	_, err = svc.UpdateProduct(context.Background(), "ghost", domcatalog.Update{Name: strPtr("x")})
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestUpdateProduct_VariationsRecomputeAggregate(t *testing.T) {
	svc := newService(t)
	p, err := svc.CreateProduct(context.Background(), catalog.CreateProductInput{
		SellerID: "s1", Name: "Abel Scarf", Category: domcatalog.CategoryWeaving, Price: 200_00,
		Variations: []domcatalog.Variation{{ID: "v1", Name: "Plain", Price: 200_00, Stock: 4}},
	})
	require.NoError(t, err)

	variations := []domcatalog.Variation{
		{ID: "v1", Name: "Plain", Price: 200_00, Stock: 4},
		{ID: "v2", Name: "Striped", Price: 220_00, Stock: 6},
	}
	updated, err := svc.UpdateProduct(context.Background(), p.ID, domcatalog.Update{Variations: &variations})
	require.NoError(t, err)
	assert.Equal(t, 10, updated.Stock)
}

func TestDeleteProduct(t *testing.T) {
	svc := newService(t)
	p, err := svc.CreateProduct(context.Background(), catalog.CreateProductInput{
		SellerID: "s1", Name: "Bagnet Pack", Category: domcatalog.CategoryDelicacy, Price: 450_00, Stock: 20,
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteProduct(context.Background(), p.ID))

	_, err = svc.GetProduct(context.Background(), p.ID)
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	assert.ErrorIs(t, svc.DeleteProduct(context.Background(), p.ID), catalog.ErrNotFound)
}

func TestListProducts(t *testing.T) {
	svc := newService(t)

	seed := []catalog.CreateProductInput{
		{SellerID: "s1", Name: "Runner", Category: domcatalog.CategoryWeaving, Price: 100_00, Stock: 1},
		{SellerID: "s2", Name: "Jar", Category: domcatalog.CategoryPottery, Price: 100_00, Stock: 1},
		{SellerID: "s1", Name: "Earrings", Category: domcatalog.CategoryAccessory, Price: 100_00, Stock: 1},
	}
	for _, in := range seed {
		_, err := svc.CreateProduct(context.Background(), in)
		require.NoError(t, err)
	}

	all, err := svc.ListProducts(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	weaving, err := svc.ListProducts(context.Background(), domcatalog.CategoryWeaving)
	require.NoError(t, err)
	require.Len(t, weaving, 1)
	assert.Equal(t, "Runner", weaving[0].Name)

	bySeller, err := svc.ListBySeller(context.Background(), "s1")
	require.NoError(t, err)
	assert.Len(t, bySeller, 2)

	none, err := svc.ListBySeller(context.Background(), "s9")
	require.NoError(t, err)
	assert.Empty(t, none)
}
