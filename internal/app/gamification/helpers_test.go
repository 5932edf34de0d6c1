package gamification

import (
	"context"
	"testing"
	"time"

	"github.com/piucane/piucane/internal/domain"
	"github.com/piucane/piucane/internal/infra/lock"
	"github.com/piucane/piucane/internal/infra/sqlite"
)

func testDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// clock is a settable time source shared by every engine under test.
type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestService(t *testing.T) (*Service, *sqlite.DB, *clock) {
	t.Helper()
	db := testDB(t)
	svc := NewService(db, lock.NewLocal(), testConfig())
	c := &clock{t: wednesdayMorning}
	svc.SetClock(c.now)
	return svc, db, c
}

func newTestDDA(t *testing.T, cfg Config) (*DDAEngine, *sqlite.DB, *clock) {
	t.Helper()
	db := testDB(t)
	e := NewDDAEngine(db, lock.NewLocal(), cfg)
	c := &clock{t: wednesdayMorning}
	e.now = c.now
	return e, db, c
}

// missionsAt builds n finished attempts, one minute apart, newest at `at`.
func missionsAt(at time.Time, n int, status domain.MissionStatus, efficiency float64) []domain.MissionProgress {
	out := make([]domain.MissionProgress, 0, n)
	for i := 0; i < n; i++ {
		ts := at.Add(-time.Duration(i) * time.Minute)
		out = append(out, domain.MissionProgress{
			ID:           "m" + ts.Format("150405"),
			UserID:       "u1",
			Category:     "training",
			Difficulty:   domain.DifficultyMedium,
			TotalSteps:   1,
			Status:       status,
			TimeSpent:    10,
			Efficiency:   efficiency,
			StartedAt:    ts.Add(-10 * time.Minute),
			LastActiveAt: ts,
		})
	}
	return out
}

func mustInitDDA(t *testing.T, e *DDAEngine, p domain.GamificationProfile) *domain.DDAState {
	t.Helper()
	s, err := e.InitializeUserDDA(context.Background(), p)
	if err != nil {
		t.Fatalf("InitializeUserDDA: %v", err)
	}
	return s
}
