package billing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/billing-engine/billing"
)

func TestAddMonths_ClampsToMonthEnd(t *testing.T) {
	jan31 := billing.NewDate(2015, time.January, 31)

	assert.Equal(t, "2015-02-28", jan31.AddMonths(1).String())
	assert.Equal(t, "2016-02-29", billing.NewDate(2016, time.January, 31).AddMonths(1).String())
	assert.Equal(t, "2015-04-30", billing.NewDate(2015, time.March, 31).AddMonths(1).String())
}

func TestAddMonths_CrossesYearBoundaries(t *testing.T) {
	assert.Equal(t, "2016-01-01", billing.NewDate(2015, time.December, 1).AddMonths(1).String())
	assert.Equal(t, "2016-06-15", billing.NewDate(2015, time.June, 15).AddMonths(12).String())
	assert.Equal(t, "2014-11-30", billing.NewDate(2015, time.January, 30).AddMonths(-2).String())
}

func TestParseDate(t *testing.T) {
	d, err := billing.ParseDate("2015-01-01")
	require.NoError(t, err)
	assert.Equal(t, "2015-01-01", d.String())

	_, err = billing.ParseDate("01/01/2015")
	assert.Error(t, err)
	_, err = billing.ParseDate("2015-13-01")
	assert.Error(t, err)
}

func TestDateComparisons(t *testing.T) {
	early := billing.NewDate(2015, time.January, 1)
	late := billing.NewDate(2015, time.June, 1)

	assert.True(t, early.Before(late))
	assert.True(t, early.BeforeOrEqual(early))
	assert.True(t, late.After(early))
	assert.True(t, late.AfterOrEqual(late))
	assert.True(t, billing.Date{}.IsZero())
	assert.False(t, early.IsZero())
}

func TestMoneySplitBy_FloorsShares(t *testing.T) {
	// 1000 into 12 shares: each share floors to 83; 12*83 = 996 and the
	// remainder is deliberately not redistributed
	share := billing.NewMoney(1000).SplitBy(12)
	assert.Equal(t, int64(83), share.Units())

	assert.Equal(t, int64(300), billing.NewMoney(1200).SplitBy(4).Units())
	assert.Equal(t, int64(1200), billing.NewMoney(1200).SplitBy(1).Units())
}

func TestMoneyArithmetic(t *testing.T) {
	a := billing.NewMoney(300)
	b := billing.NewMoney(100)

	assert.Equal(t, int64(400), a.Add(b).Units())
	assert.Equal(t, int64(200), a.Sub(b).Units())
	assert.Equal(t, int64(-300), a.Neg().Units())
	assert.True(t, a.Sub(a).IsZero())
	assert.True(t, a.IsPositive())
	assert.True(t, a.Neg().IsNegative())
	assert.True(t, a.GreaterThan(b))
	assert.True(t, a.Equal(billing.NewMoney(300)))
}
