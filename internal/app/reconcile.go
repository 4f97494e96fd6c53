package app

import (
	"context"
	"time"

	"meridian/api/internal/auth"
	"meridian/api/internal/dates"
	"meridian/api/internal/guard"
	"meridian/api/internal/metrics"
	"meridian/api/internal/store"
)

// SaveAppData reconciles the submitted partial document against persisted
// state. Only collections present in the submission are touched. The whole
// request runs under one transaction: the guard is consulted before each
// protected collection (and each indicator record), and the first error of
// any kind rolls everything back.
func (s *Service) SaveAppData(ctx context.Context, doc store.PartialDocument, actor guard.Principal) error {
	started := time.Now()
	tx, err := s.store.Begin(ctx)
	if err != nil {
		metrics.SaveFailuresTotal.Inc()
		return err
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
			metrics.SaveFailuresTotal.Inc()
		}
	}()

	if doc.Users != nil {
		if err := s.reconcileUsers(ctx, tx, *doc.Users, actor); err != nil {
			return err
		}
	}
	if doc.StrategicGoals != nil {
		if err := s.reconcileStrategicGoals(ctx, tx, *doc.StrategicGoals, actor); err != nil {
			return err
		}
	}
	if doc.Indicators != nil {
		if err := s.reconcileIndicators(ctx, tx, *doc.Indicators, actor); err != nil {
			return err
		}
	}
	if doc.Meetings != nil {
		if err := s.reconcileMeetings(ctx, tx, *doc.Meetings, actor); err != nil {
			return err
		}
	}
	if doc.DiscussionThreads != nil {
		if err := s.reconcileDiscussionThreads(ctx, tx, *doc.DiscussionThreads); err != nil {
			return err
		}
	}
	if doc.Notifications != nil {
		if err := s.reconcileNotifications(ctx, tx, *doc.Notifications); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	metrics.SavesTotal.Inc()
	metrics.SaveDuration.Observe(time.Since(started).Seconds())
	return nil
}

// reconcileUsers diff-upserts the user collection. Users absent from the
// submission are deleted, except the acting principal, who survives every
// save. Password rules: an absent password keeps the stored value, a value
// that is already a bcrypt hash is stored as-is, anything else is hashed —
// so omitting the field never clears it and re-submitting a plain password
// never double-hashes.
func (s *Service) reconcileUsers(ctx context.Context, tx saveTx, users []store.User, actor guard.Principal) error {
	if denied := guard.CheckCollection(actor, guard.CollectionUsers); denied != nil {
		return denied
	}

	existing, err := tx.ListUserCredentials(ctx)
	if err != nil {
		return err
	}
	storedPasswords := make(map[string]string, len(existing))
	for _, credential := range existing {
		storedPasswords[credential.ID] = credential.Password
	}

	submitted := make(map[string]struct{}, len(users))
	for _, user := range users {
		submitted[user.ID] = struct{}{}

		switch {
		case user.Password == "":
			user.Password = storedPasswords[user.ID]
		case auth.IsHash(user.Password):
			// keep as submitted
		default:
			hashed, err := auth.HashPassword(user.Password)
			if err != nil {
				return err
			}
			user.Password = hashed
		}
		user.Role = string(guard.Normalize(user.Role))

		if err := tx.UpsertUser(ctx, user); err != nil {
			return err
		}
	}

	for _, credential := range existing {
		if _, present := submitted[credential.ID]; present {
			continue
		}
		if credential.ID == actor.ID {
			continue
		}
		if err := tx.DeleteUser(ctx, credential.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) reconcileStrategicGoals(ctx context.Context, tx saveTx, goals []store.StrategicGoal, actor guard.Principal) error {
	if denied := guard.CheckCollection(actor, guard.CollectionStrategicGoals); denied != nil {
		return denied
	}
	if err := tx.DeleteAllStrategicGoals(ctx); err != nil {
		return err
	}
	for _, goal := range goals {
		if err := tx.InsertStrategicGoal(ctx, goal); err != nil {
			return err
		}
	}
	return nil
}

// reconcileIndicators diff-upserts indicator parents and fully replaces each
// submitted indicator's child collections within that indicator's scope. The
// area guard runs per record, on deletions as well as upserts; for records
// that already exist the stored responsible area is authoritative.
func (s *Service) reconcileIndicators(ctx context.Context, tx saveTx, indicators []store.Indicator, actor guard.Principal) error {
	if denied := guard.CheckCollection(actor, guard.CollectionIndicators); denied != nil {
		return denied
	}

	existing, err := tx.ListIndicatorAreas(ctx)
	if err != nil {
		return err
	}
	stored := make(map[string]store.IndicatorArea, len(existing))
	for _, area := range existing {
		stored[area.ID] = area
	}

	submitted := make(map[string]struct{}, len(indicators))
	for _, indicator := range indicators {
		submitted[indicator.ID] = struct{}{}
	}

	for _, area := range existing {
		if _, present := submitted[area.ID]; present {
			continue
		}
		if denied := guard.CheckIndicator(actor, area.Name, area.ResponsibleArea); denied != nil {
			return denied
		}
		if err := tx.DeleteIndicator(ctx, area.ID); err != nil {
			return err
		}
	}

	for _, indicator := range indicators {
		responsibleArea := indicator.ResponsibleArea
		if existingArea, ok := stored[indicator.ID]; ok {
			responsibleArea = existingArea.ResponsibleArea
		}
		if denied := guard.CheckIndicator(actor, indicator.Name, responsibleArea); denied != nil {
			return denied
		}

		if err := tx.UpsertIndicator(ctx, indicator); err != nil {
			return err
		}
		if err := tx.DeleteIndicatorChildren(ctx, indicator.ID); err != nil {
			return err
		}
		if err := s.insertIndicatorChildren(ctx, tx, indicator); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) insertIndicatorChildren(ctx context.Context, tx saveTx, indicator store.Indicator) error {
	for _, value := range indicator.HistoricalData {
		value.IndicatorID = indicator.ID
		value.Date = s.normalizeDate("historicalData.date", value.Date, false)
		if err := tx.InsertHistoricalValue(ctx, value); err != nil {
			return err
		}
	}
	for _, goal := range indicator.Goals {
		goal.IndicatorID = indicator.ID
		goal.Date = s.normalizeDate("goals.date", goal.Date, false)
		if err := tx.InsertIndicatorGoal(ctx, goal); err != nil {
			return err
		}
	}
	for _, observation := range indicator.Observations {
		observation.IndicatorID = indicator.ID
		observation.Date = s.normalizeDate("observations.date", observation.Date, false)
		if err := tx.InsertObservation(ctx, observation); err != nil {
			return err
		}
	}
	for _, risk := range indicator.Risks {
		risk.IndicatorID = indicator.ID
		if err := tx.InsertRisk(ctx, risk); err != nil {
			return err
		}
	}
	for _, plan := range indicator.ActionPlans {
		plan.IndicatorID = indicator.ID
		plan.StartDate = s.normalizeDate("actionPlans.startDate", plan.StartDate, false)
		plan.DueDate = s.normalizeDate("actionPlans.dueDate", plan.DueDate, false)
		if err := tx.InsertActionPlan(ctx, plan); err != nil {
			return err
		}
		for _, update := range plan.Updates {
			update.ActionPlanID = plan.ID
			update.Date = s.normalizeDate("actionPlans.updates.date", update.Date, true)
			if err := tx.InsertActionPlanUpdate(ctx, update); err != nil {
				return err
			}
		}
	}
	for _, attachment := range mergeAttachments(indicator) {
		attachment.UploadedAt = s.normalizeDate("attachments.uploadedAt", attachment.UploadedAt, true)
		if err := tx.InsertAttachment(ctx, attachment); err != nil {
			return err
		}
	}
	for _, entry := range indicator.AuditLog {
		entry.IndicatorID = indicator.ID
		entry.Timestamp = s.normalizeDate("auditLog.timestamp", entry.Timestamp, true)
		if err := tx.InsertAuditLogEntry(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}

// mergeAttachments collects the indicator's direct attachments and every
// attachment embedded in action-plan updates into one set keyed by id.
// Later entries overwrite earlier ones, so an update's payload wins over the
// direct list. First-seen order is preserved for deterministic inserts.
func mergeAttachments(indicator store.Indicator) []store.Attachment {
	merged := make(map[string]store.Attachment)
	order := make([]string, 0)

	add := func(attachment store.Attachment) {
		if attachment.ID == "" {
			return
		}
		attachment.IndicatorID = indicator.ID
		if _, seen := merged[attachment.ID]; !seen {
			order = append(order, attachment.ID)
		}
		merged[attachment.ID] = attachment
	}

	for _, attachment := range indicator.Attachments {
		add(attachment)
	}
	for _, plan := range indicator.ActionPlans {
		for _, update := range plan.Updates {
			if update.Attachment != nil {
				add(*update.Attachment)
			}
		}
	}

	result := make([]store.Attachment, 0, len(order))
	for _, id := range order {
		result = append(result, merged[id])
	}
	return result
}

func (s *Service) reconcileMeetings(ctx context.Context, tx saveTx, meetings []store.Meeting, actor guard.Principal) error {
	if denied := guard.CheckCollection(actor, guard.CollectionMeetings); denied != nil {
		return denied
	}
	if err := tx.DeleteAllMeetings(ctx); err != nil {
		return err
	}
	for _, meeting := range meetings {
		meeting.Date = s.normalizeDate("meetings.date", meeting.Date, false)
		if err := tx.InsertMeeting(ctx, meeting); err != nil {
			return err
		}
		for _, decision := range meeting.Decisions {
			decision.MeetingID = meeting.ID
			decision.DueDate = s.normalizeDate("decisions.dueDate", decision.DueDate, false)
			if err := tx.InsertDecision(ctx, decision); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Service) reconcileDiscussionThreads(ctx context.Context, tx saveTx, threads []store.DiscussionThread) error {
	if err := tx.DeleteAllDiscussionThreads(ctx); err != nil {
		return err
	}
	for _, thread := range threads {
		thread.CreatedAt = s.normalizeDate("discussionThreads.createdAt", thread.CreatedAt, true)
		if err := tx.InsertDiscussionThread(ctx, thread); err != nil {
			return err
		}
		for _, reply := range thread.Replies {
			reply.ThreadID = thread.ID
			reply.CreatedAt = s.normalizeDate("replies.createdAt", reply.CreatedAt, true)
			if err := tx.InsertThreadReply(ctx, reply); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Service) reconcileNotifications(ctx context.Context, tx saveTx, notifications []store.Notification) error {
	if err := tx.DeleteAllNotifications(ctx); err != nil {
		return err
	}
	for _, notification := range notifications {
		notification.Date = s.normalizeDate("notifications.date", notification.Date, true)
		if err := tx.InsertNotification(ctx, notification); err != nil {
			return err
		}
	}
	return nil
}

// normalizeDate canonicalizes one date field. Unparseable input resolves to
// NULL with a warning; it never fails the save.
func (s *Service) normalizeDate(field string, raw *string, keepTime bool) *string {
	if raw == nil || *raw == "" {
		return nil
	}
	canonical, err := dates.Normalize(*raw, keepTime)
	if err != nil {
		s.logger.Warn().Str("field", field).Str("value", *raw).Msg("unparseable date, storing null")
		return nil
	}
	return &canonical
}
