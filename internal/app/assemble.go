package app

import (
	"context"

	"golang.org/x/sync/errgroup"

	"meridian/api/internal/metrics"
	"meridian/api/internal/store"
)

// GetAppData reconstructs the full application document. The sixteen reads
// are independent of one another and run as two parallel batches; any single
// failure aborts the whole read and no partial document is returned.
func (s *Service) GetAppData(ctx context.Context) (store.Document, error) {
	var (
		users         []store.User
		goals         []store.StrategicGoal
		indicators    []store.Indicator
		meetings      []store.Meeting
		decisions     []store.Decision
		threads       []store.DiscussionThread
		replies       []store.Reply
		notifications []store.Notification
	)

	top, topCtx := errgroup.WithContext(ctx)
	top.Go(func() (err error) { users, err = s.store.ListUsers(topCtx); return })
	top.Go(func() (err error) { goals, err = s.store.ListStrategicGoals(topCtx); return })
	top.Go(func() (err error) { indicators, err = s.store.ListIndicators(topCtx); return })
	top.Go(func() (err error) { meetings, err = s.store.ListMeetings(topCtx); return })
	top.Go(func() (err error) { decisions, err = s.store.ListDecisions(topCtx); return })
	top.Go(func() (err error) { threads, err = s.store.ListDiscussionThreads(topCtx); return })
	top.Go(func() (err error) { replies, err = s.store.ListThreadReplies(topCtx); return })
	top.Go(func() (err error) { notifications, err = s.store.ListNotifications(topCtx); return })
	if err := top.Wait(); err != nil {
		return store.Document{}, err
	}

	var (
		historical  []store.HistoricalValue
		targets     []store.IndicatorGoal
		observed    []store.Observation
		risks       []store.Risk
		plans       []store.ActionPlan
		updates     []store.ActionPlanUpdate
		attachments []store.Attachment
		audit       []store.AuditLogEntry
	)

	children, childCtx := errgroup.WithContext(ctx)
	children.Go(func() (err error) { historical, err = s.store.ListHistoricalData(childCtx); return })
	children.Go(func() (err error) { targets, err = s.store.ListIndicatorGoals(childCtx); return })
	children.Go(func() (err error) { observed, err = s.store.ListObservations(childCtx); return })
	children.Go(func() (err error) { risks, err = s.store.ListRisks(childCtx); return })
	children.Go(func() (err error) { plans, err = s.store.ListActionPlans(childCtx); return })
	children.Go(func() (err error) { updates, err = s.store.ListActionPlanUpdates(childCtx); return })
	children.Go(func() (err error) { attachments, err = s.store.ListAttachments(childCtx); return })
	children.Go(func() (err error) { audit, err = s.store.ListAuditLog(childCtx); return })
	if err := children.Wait(); err != nil {
		return store.Document{}, err
	}

	// Password hashes never leave the server.
	for i := range users {
		users[i].Password = ""
	}

	attachmentsByID := make(map[string]store.Attachment, len(attachments))
	for _, attachment := range attachments {
		attachmentsByID[attachment.ID] = attachment
	}

	// Compose bottom-up: updates onto plans, then everything onto the
	// indicator. Update rows persist only the attachment id; the full record
	// lives in the indicator's deduplicated attachment set.
	updatesByPlan := store.GroupBy(updates, func(u store.ActionPlanUpdate) string { return u.ActionPlanID })
	for i := range plans {
		planUpdates := updatesByPlan[plans[i].ID]
		if planUpdates == nil {
			planUpdates = make([]store.ActionPlanUpdate, 0)
		}
		for j := range planUpdates {
			if planUpdates[j].Attachment == nil {
				continue
			}
			if full, ok := attachmentsByID[planUpdates[j].Attachment.ID]; ok {
				planUpdates[j].Attachment = &full
			} else {
				planUpdates[j].Attachment = nil
			}
		}
		plans[i].Updates = planUpdates
	}

	historicalByIndicator := store.GroupBy(historical, func(v store.HistoricalValue) string { return v.IndicatorID })
	targetsByIndicator := store.GroupBy(targets, func(g store.IndicatorGoal) string { return g.IndicatorID })
	observedByIndicator := store.GroupBy(observed, func(o store.Observation) string { return o.IndicatorID })
	risksByIndicator := store.GroupBy(risks, func(r store.Risk) string { return r.IndicatorID })
	plansByIndicator := store.GroupBy(plans, func(p store.ActionPlan) string { return p.IndicatorID })
	attachmentsByIndicator := store.GroupBy(attachments, func(a store.Attachment) string { return a.IndicatorID })
	auditByIndicator := store.GroupBy(audit, func(e store.AuditLogEntry) string { return e.IndicatorID })

	for i := range indicators {
		id := indicators[i].ID
		indicators[i].HistoricalData = orEmpty(historicalByIndicator[id])
		indicators[i].Goals = orEmpty(targetsByIndicator[id])
		indicators[i].Observations = orEmpty(observedByIndicator[id])
		indicators[i].Risks = orEmpty(risksByIndicator[id])
		indicators[i].ActionPlans = orEmpty(plansByIndicator[id])
		indicators[i].Attachments = orEmpty(attachmentsByIndicator[id])
		indicators[i].AuditLog = orEmpty(auditByIndicator[id])
	}

	decisionsByMeeting := store.GroupBy(decisions, func(d store.Decision) string { return d.MeetingID })
	for i := range meetings {
		meetings[i].Decisions = orEmpty(decisionsByMeeting[meetings[i].ID])
	}

	repliesByThread := store.GroupBy(replies, func(r store.Reply) string { return r.ThreadID })
	for i := range threads {
		threads[i].Replies = orEmpty(repliesByThread[threads[i].ID])
	}

	metrics.AssemblesTotal.Inc()
	return store.Document{
		Users:             users,
		StrategicGoals:    goals,
		Indicators:        indicators,
		Meetings:          meetings,
		DiscussionThreads: threads,
		Notifications:     notifications,
	}, nil
}

func orEmpty[T any](rows []T) []T {
	if rows == nil {
		return make([]T, 0)
	}
	return rows
}
