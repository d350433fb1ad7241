package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"clientpilot/internal/domain"
)

const upcomingMilestoneLimit = 5

// Dashboard aggregates the counters and the next milestones for userID.
// "Today" is the UTC date of e.Now.
func (e Engine) Dashboard(ctx context.Context, userID string) (domain.DashboardSummary, error) {
	today := e.now().UTC().Format(dateLayout)
	var s domain.DashboardSummary

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		s.ClientCount, err = e.Repo.CountClients(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		s.ActiveProjectCount, err = e.Repo.CountProjectsByStatus(gctx, userID, domain.ProjectActive)
		return err
	})
	g.Go(func() (err error) {
		s.PendingDeliverableCount, err = e.Repo.CountPendingDeliverables(gctx, userID)
		return err
	})
	g.Go(func() (err error) {
		s.OverdueDeliverableCount, err = e.Repo.CountOverdueDeliverables(gctx, userID, today)
		return err
	})
	g.Go(func() (err error) {
		s.UpcomingMilestones, err = e.Repo.UpcomingMilestones(gctx, userID, today, upcomingMilestoneLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.DashboardSummary{}, err
	}
	if s.UpcomingMilestones == nil {
		s.UpcomingMilestones = []domain.Milestone{}
	}
	return s, nil
}
