package winner

import (
	"errors"
	"testing"
	"time"

	"compras/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func demandFixture() *models.Demand {
	return &models.Demand{
		ID: "d1",
		Items: []models.Item{
			{ID: "A", Quantity: dec(10)},
			{ID: "B", Quantity: dec(5)},
			{ID: "C", Quantity: dec(1)},
		},
		Proposals: []models.Proposal{
			{SupplierID: "s1", SupplierName: "Acme", TotalValue: dec(9000), Prices: []models.ItemPrice{
				{ItemID: "A", UnitPrice: dec(500)}, {ItemID: "B", UnitPrice: dec(700)}, {ItemID: "C", UnitPrice: dec(500)},
			}},
			{SupplierID: "s2", SupplierName: "X", TotalValue: dec(9500)},
			{SupplierID: "s3", SupplierName: "Y", TotalValue: dec(9900)},
			{SupplierID: "s4", SupplierName: "Z", Declined: true},
		},
	}
}

func TestResolveGlobal(t *testing.T) {
	d := demandFixture()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	res, err := Resolve(d, Global{SupplierName: "Acme", TotalValue: dec(9000)}, at)
	require.NoError(t, err)

	require.Equal(t, []string{"Acme"}, res.Winners)
	require.Equal(t, []string{"X", "Y"}, res.Losers)
	require.Len(t, res.Rows, 1)
	require.Equal(t, []string{"A", "B", "C"}, res.Rows[0].ItemIDs)
	assert.True(t, res.TotalAdjudicated.Equal(dec(9000)))

	require.Equal(t, models.ModeGlobal, res.Winner.Mode)
	require.Equal(t, at, res.Winner.DecidedAt)
	require.Len(t, res.Winner.Items, 3)
	for _, wi := range res.Winner.Items {
		require.Equal(t, "Acme", wi.SupplierName)
	}
	// цена за единицу берётся из предложения победителя
	assert.True(t, res.Winner.Items[0].TotalValue.Equal(dec(5000)))
}

func TestResolvePerItem(t *testing.T) {
	d := &models.Demand{
		Items: []models.Item{{ID: "A", Quantity: dec(1)}, {ID: "B", Quantity: dec(1)}},
		Proposals: []models.Proposal{
			{SupplierName: "X"}, {SupplierName: "Y"}, {SupplierName: "W"},
		},
	}
	decision := PerItem{Awards: []ItemAward{
		{ItemID: "B", SupplierName: "Y", UnitPrice: dec(50), TotalValue: dec(50)},
		{ItemID: "A", SupplierName: "X", UnitPrice: dec(100), TotalValue: dec(100)},
	}}

	res, err := Resolve(d, decision, time.Now())
	require.NoError(t, err)

	require.Len(t, res.Rows, 2)
	require.ElementsMatch(t, []string{"X", "Y"}, res.Winners)
	require.Equal(t, []string{"W"}, res.Losers)
	assert.True(t, res.TotalAdjudicated.Equal(dec(150)))
	assert.True(t, res.Winner.TotalValue.Equal(dec(150)))

	// строки победителя в порядке позиций деманды
	require.Equal(t, "A", res.Winner.Items[0].ItemID)
	require.Equal(t, "X", res.Winner.Items[0].SupplierName)
	require.Equal(t, "B", res.Winner.Items[1].ItemID)
}

func TestResolvePerItemGroupsRowsBySupplier(t *testing.T) {
	d := demandFixture()
	decision := PerItem{Awards: []ItemAward{
		{ItemID: "A", SupplierName: "X", TotalValue: dec(100)},
		{ItemID: "B", SupplierName: "Y", TotalValue: dec(50)},
		{ItemID: "C", SupplierName: "X", TotalValue: dec(25)},
	}}

	res, err := Resolve(d, decision, time.Now())
	require.NoError(t, err)

	require.Len(t, res.Rows, 2)
	require.Equal(t, "X", res.Rows[0].SupplierName)
	require.Equal(t, []string{"A", "C"}, res.Rows[0].ItemIDs)
	assert.True(t, res.Rows[0].TotalValue.Equal(dec(125)))

	// покрытие: объединение позиций по строкам совпадает с позициями деманды
	var covered []string
	sum := decimal.Zero
	for _, r := range res.Rows {
		covered = append(covered, r.ItemIDs...)
		sum = sum.Add(r.TotalValue)
	}
	require.ElementsMatch(t, d.ItemIDs(), covered)
	assert.True(t, sum.Equal(res.TotalAdjudicated))

	// разбиение: победители и проигравшие не пересекаются и вместе дают всех активных участников
	require.Equal(t, []string{"Acme"}, res.Losers)
	require.ElementsMatch(t, []string{"Acme", "X", "Y"}, append(append([]string{}, res.Winners...), res.Losers...))
}

func TestResolvePerItemCoverageViolations(t *testing.T) {
	d := &models.Demand{Items: []models.Item{{ID: "A"}, {ID: "B"}}}

	cases := map[string][]ItemAward{
		"missing item": {
			{ItemID: "A", SupplierName: "X", TotalValue: dec(1)},
		},
		"duplicate item": {
			{ItemID: "A", SupplierName: "X", TotalValue: dec(1)},
			{ItemID: "A", SupplierName: "Y", TotalValue: dec(1)},
			{ItemID: "B", SupplierName: "Y", TotalValue: dec(1)},
		},
		"foreign item": {
			{ItemID: "A", SupplierName: "X", TotalValue: dec(1)},
			{ItemID: "B", SupplierName: "X", TotalValue: dec(1)},
			{ItemID: "Q", SupplierName: "X", TotalValue: dec(1)},
		},
	}
	for name, awards := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Resolve(d, PerItem{Awards: awards}, time.Now())
			require.True(t, errors.Is(err, ErrCoverage), "got %v", err)
		})
	}
}

func TestResolveRejectsInvalidGlobal(t *testing.T) {
	_, err := Resolve(demandFixture(), Global{TotalValue: dec(1)}, time.Now())
	require.ErrorIs(t, err, ErrInvalidDecision)

	_, err = Resolve(demandFixture(), Global{SupplierName: "Acme", TotalValue: dec(-1)}, time.Now())
	require.ErrorIs(t, err, ErrInvalidDecision)
}

func TestDecodeDecision(t *testing.T) {
	d, err := DecodeDecision([]byte(`{"mode":"global","supplierName":" Acme ","totalValue":9000}`))
	require.NoError(t, err)
	g, ok := d.(Global)
	require.True(t, ok)
	require.Equal(t, "Acme", g.SupplierName)
	assert.True(t, g.TotalValue.Equal(dec(9000)))

	d, err = DecodeDecision([]byte(`{"mode":"item","items":[{"itemId":"A","supplierName":"X","unitPrice":"10.5","totalValue":"21"}]}`))
	require.NoError(t, err)
	pi, ok := d.(PerItem)
	require.True(t, ok)
	require.Len(t, pi.Awards, 1)
	assert.True(t, pi.Awards[0].UnitPrice.Equal(decimal.RequireFromString("10.5")))

	for _, body := range []string{
		`{"mode":"lottery"}`,
		`{"mode":"global","supplierName":"Acme"}`,
		`{"mode":"item","items":[]}`,
		`{"mode":"item","items":[{"itemId":"A"}]}`,
		`not json`,
	} {
		_, err := DecodeDecision([]byte(body))
		require.ErrorIs(t, err, ErrInvalidDecision, body)
	}
}

func TestRank(t *testing.T) {
	proposals := []models.Proposal{
		{SupplierName: "C", TotalValue: dec(100), DeliveryDays: 10},
		{SupplierName: "A", TotalValue: dec(100), DeliveryDays: 5},
		{SupplierName: "B", TotalValue: dec(90), DeliveryDays: 30},
		{SupplierName: "D", TotalValue: dec(10), Declined: true},
	}

	ranked := Rank(proposals)

	require.Len(t, ranked, 3)
	require.Equal(t, "B", ranked[0].Proposal.SupplierName)
	require.Equal(t, "A", ranked[1].Proposal.SupplierName)
	require.Equal(t, "C", ranked[2].Proposal.SupplierName)
	require.Equal(t, 3, ranked[2].Position)
}
