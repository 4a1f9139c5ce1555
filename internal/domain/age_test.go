package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/couchcryptid/closure-relay-service/internal/domain"
)

var ageNow = time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)

func closureCreatedAt(ts time.Time) domain.ClosureEvent {
	return domain.ClosureEvent{ID: "c1", CreatedOn: ts.UnixMilli()}
}

func TestEligibleMaxAgeBoundary(t *testing.T) {
	exactly3d := closureCreatedAt(ageNow.Add(-3 * 24 * time.Hour))
	assert.True(t, domain.Eligible(exactly3d, 3, ageNow))

	justOver := closureCreatedAt(ageNow.Add(-3*24*time.Hour - time.Millisecond))
	assert.False(t, domain.Eligible(justOver, 3, ageNow))

	fresh := closureCreatedAt(ageNow.Add(-time.Hour))
	assert.True(t, domain.Eligible(fresh, 3, ageNow))
}

func TestEligibleNegativeDisablesCheck(t *testing.T) {
	ancient := closureCreatedAt(ageNow.Add(-365 * 24 * time.Hour))
	assert.True(t, domain.Eligible(ancient, -1, ageNow))
}

func TestEligibleActiveWindow(t *testing.T) {
	c := closureCreatedAt(ageNow.Add(-48 * time.Hour))
	c.StartDate = ageNow.Add(-time.Hour).UnixMilli()
	c.EndDate = ageNow.Add(time.Hour).UnixMilli()
	assert.True(t, domain.Eligible(c, 0, ageNow))

	// Window bounds are inclusive.
	assert.True(t, domain.Eligible(c, 0, time.UnixMilli(c.StartDate)))
	assert.True(t, domain.Eligible(c, 0, time.UnixMilli(c.EndDate)))

	assert.False(t, domain.Eligible(c, 0, time.UnixMilli(c.StartDate).Add(-time.Millisecond)))
	assert.False(t, domain.Eligible(c, 0, time.UnixMilli(c.EndDate).Add(time.Millisecond)))
}

func TestEligibleActiveWindowDefaults(t *testing.T) {
	// No start date: the window opens at creation. No end date: it closes
	// 24h later.
	c := closureCreatedAt(ageNow.Add(-2 * time.Hour))
	assert.True(t, domain.Eligible(c, 0, ageNow))

	expired := closureCreatedAt(ageNow.Add(-25 * time.Hour))
	assert.False(t, domain.Eligible(expired, 0, ageNow))

	future := closureCreatedAt(ageNow.Add(time.Hour))
	assert.False(t, domain.Eligible(future, 0, ageNow))
}
