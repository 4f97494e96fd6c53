package store

import (
	"context"
	"database/sql"
	"fmt"
)

// SaveTx scopes every write of one save request to a single transaction.
// All statements run sequentially on the one connection the transaction
// holds; nothing commits until Commit.
type SaveTx struct {
	tx *sql.Tx
}

func (t *SaveTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit save: %w", err)
	}
	return nil
}

func (t *SaveTx) Rollback() error {
	return t.tx.Rollback()
}

// --- users (diff-upsert) ---

func (t *SaveTx) ListUserCredentials(ctx context.Context) ([]UserCredential, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT id, password FROM users`)
	if err != nil {
		return nil, fmt.Errorf("list user credentials: %w", err)
	}
	defer rows.Close()

	items := make([]UserCredential, 0)
	for rows.Next() {
		var item UserCredential
		if err := rows.Scan(&item.ID, &item.Password); err != nil {
			return nil, fmt.Errorf("scan user credential: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user credentials: %w", err)
	}
	return items, nil
}

func (t *SaveTx) UpsertUser(ctx context.Context, user User) error {
	encoded, err := encodeStringList(user.ReadThreadIDs)
	if err != nil {
		return fmt.Errorf("marshal read thread ids: %w", err)
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO users (id, name, role, area, password, read_thread_ids)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb)
		ON CONFLICT (id) DO UPDATE SET
			name=EXCLUDED.name,
			role=EXCLUDED.role,
			area=EXCLUDED.area,
			password=EXCLUDED.password,
			read_thread_ids=EXCLUDED.read_thread_ids
	`, user.ID, user.Name, user.Role, user.Area, user.Password, encoded)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func (t *SaveTx) DeleteUser(ctx context.Context, userID string) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM users WHERE id=$1`, userID)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// --- strategic goals (full-replace) ---

func (t *SaveTx) DeleteAllStrategicGoals(ctx context.Context) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM strategic_goals`)
	if err != nil {
		return fmt.Errorf("delete strategic goals: %w", err)
	}
	return nil
}

func (t *SaveTx) InsertStrategicGoal(ctx context.Context, goal StrategicGoal) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO strategic_goals (id, name, description)
		VALUES ($1, $2, $3)
	`, goal.ID, goal.Name, goal.Description)
	if err != nil {
		return fmt.Errorf("insert strategic goal: %w", err)
	}
	return nil
}

// --- indicators (diff-upsert parent, full-replace children) ---

func (t *SaveTx) ListIndicatorAreas(ctx context.Context) ([]IndicatorArea, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT id, name, responsible_area FROM indicators`)
	if err != nil {
		return nil, fmt.Errorf("list indicator areas: %w", err)
	}
	defer rows.Close()

	items := make([]IndicatorArea, 0)
	for rows.Next() {
		var item IndicatorArea
		if err := rows.Scan(&item.ID, &item.Name, &item.ResponsibleArea); err != nil {
			return nil, fmt.Errorf("scan indicator area: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate indicator areas: %w", err)
	}
	return items, nil
}

func (t *SaveTx) UpsertIndicator(ctx context.Context, indicator Indicator) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO indicators (id, name, description, unit, frequency, responsible_area, strategic_goal_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name=EXCLUDED.name,
			description=EXCLUDED.description,
			unit=EXCLUDED.unit,
			frequency=EXCLUDED.frequency,
			responsible_area=EXCLUDED.responsible_area,
			strategic_goal_id=EXCLUDED.strategic_goal_id
	`, indicator.ID, indicator.Name, indicator.Description, indicator.Unit, indicator.Frequency,
		indicator.ResponsibleArea, indicator.StrategicGoalID)
	if err != nil {
		return fmt.Errorf("upsert indicator: %w", err)
	}
	return nil
}

// DeleteIndicator removes one indicator; child rows cascade.
func (t *SaveTx) DeleteIndicator(ctx context.Context, indicatorID string) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM indicators WHERE id=$1`, indicatorID)
	if err != nil {
		return fmt.Errorf("delete indicator: %w", err)
	}
	return nil
}

// DeleteIndicatorChildren clears every child collection of one indicator
// before the submitted children are re-inserted. Action-plan updates cascade
// with their plans.
func (t *SaveTx) DeleteIndicatorChildren(ctx context.Context, indicatorID string) error {
	statements := []string{
		`DELETE FROM historical_data WHERE indicator_id=$1`,
		`DELETE FROM indicator_goals WHERE indicator_id=$1`,
		`DELETE FROM observations WHERE indicator_id=$1`,
		`DELETE FROM risks WHERE indicator_id=$1`,
		`DELETE FROM action_plans WHERE indicator_id=$1`,
		`DELETE FROM attachments WHERE indicator_id=$1`,
		`DELETE FROM audit_log WHERE indicator_id=$1`,
	}
	for _, statement := range statements {
		if _, err := t.tx.ExecContext(ctx, statement, indicatorID); err != nil {
			return fmt.Errorf("delete indicator children: %w", err)
		}
	}
	return nil
}

func (t *SaveTx) InsertHistoricalValue(ctx context.Context, value HistoricalValue) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO historical_data (id, indicator_id, date, value)
		VALUES ($1, $2, $3, $4)
	`, value.ID, value.IndicatorID, value.Date, value.Value)
	if err != nil {
		return fmt.Errorf("insert historical value: %w", err)
	}
	return nil
}

func (t *SaveTx) InsertIndicatorGoal(ctx context.Context, goal IndicatorGoal) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO indicator_goals (id, indicator_id, date, value)
		VALUES ($1, $2, $3, $4)
	`, goal.ID, goal.IndicatorID, goal.Date, goal.Value)
	if err != nil {
		return fmt.Errorf("insert indicator goal: %w", err)
	}
	return nil
}

func (t *SaveTx) InsertObservation(ctx context.Context, observation Observation) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO observations (id, indicator_id, date, text, author)
		VALUES ($1, $2, $3, $4, $5)
	`, observation.ID, observation.IndicatorID, observation.Date, observation.Text, observation.Author)
	if err != nil {
		return fmt.Errorf("insert observation: %w", err)
	}
	return nil
}

func (t *SaveTx) InsertRisk(ctx context.Context, risk Risk) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO risks (id, indicator_id, description, probability, impact, mitigation_plan, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, risk.ID, risk.IndicatorID, risk.Description, risk.Probability, risk.Impact, risk.MitigationPlan, risk.Status)
	if err != nil {
		return fmt.Errorf("insert risk: %w", err)
	}
	return nil
}

func (t *SaveTx) InsertActionPlan(ctx context.Context, plan ActionPlan) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO action_plans (id, indicator_id, description, responsible, start_date, due_date, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, plan.ID, plan.IndicatorID, plan.Description, plan.Responsible, plan.StartDate, plan.DueDate, plan.Status)
	if err != nil {
		return fmt.Errorf("insert action plan: %w", err)
	}
	return nil
}

func (t *SaveTx) InsertActionPlanUpdate(ctx context.Context, update ActionPlanUpdate) error {
	attachmentID := ""
	if update.Attachment != nil {
		attachmentID = update.Attachment.ID
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO action_plan_updates (id, action_plan_id, date, text, author, attachment_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, update.ID, update.ActionPlanID, update.Date, update.Text, update.Author, attachmentID)
	if err != nil {
		return fmt.Errorf("insert action plan update: %w", err)
	}
	return nil
}

func (t *SaveTx) InsertAttachment(ctx context.Context, attachment Attachment) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO attachments (id, indicator_id, name, url, content_type, uploaded_by, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, attachment.ID, attachment.IndicatorID, attachment.Name, attachment.URL, attachment.ContentType,
		attachment.UploadedBy, attachment.UploadedAt)
	if err != nil {
		return fmt.Errorf("insert attachment: %w", err)
	}
	return nil
}

func (t *SaveTx) InsertAuditLogEntry(ctx context.Context, entry AuditLogEntry) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO audit_log (id, indicator_id, timestamp, user_name, action, details)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.ID, entry.IndicatorID, entry.Timestamp, entry.UserName, entry.Action, entry.Details)
	if err != nil {
		return fmt.Errorf("insert audit log entry: %w", err)
	}
	return nil
}

// --- meetings (full-replace, decisions cascade) ---

func (t *SaveTx) DeleteAllMeetings(ctx context.Context) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM meetings`)
	if err != nil {
		return fmt.Errorf("delete meetings: %w", err)
	}
	return nil
}

func (t *SaveTx) InsertMeeting(ctx context.Context, meeting Meeting) error {
	encoded, err := encodeStringList(meeting.Attendees)
	if err != nil {
		return fmt.Errorf("marshal attendees: %w", err)
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO meetings (id, title, date, attendees, minutes)
		VALUES ($1, $2, $3, $4::jsonb, $5)
	`, meeting.ID, meeting.Title, meeting.Date, encoded, meeting.Minutes)
	if err != nil {
		return fmt.Errorf("insert meeting: %w", err)
	}
	return nil
}

func (t *SaveTx) InsertDecision(ctx context.Context, decision Decision) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO decisions (id, meeting_id, description, responsible, due_date, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, decision.ID, decision.MeetingID, decision.Description, decision.Responsible, decision.DueDate, decision.Status)
	if err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

// --- discussion threads (full-replace, replies cascade) ---

func (t *SaveTx) DeleteAllDiscussionThreads(ctx context.Context) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM discussion_threads`)
	if err != nil {
		return fmt.Errorf("delete discussion threads: %w", err)
	}
	return nil
}

func (t *SaveTx) InsertDiscussionThread(ctx context.Context, thread DiscussionThread) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO discussion_threads (id, title, author, created_at)
		VALUES ($1, $2, $3, $4)
	`, thread.ID, thread.Title, thread.Author, thread.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert discussion thread: %w", err)
	}
	return nil
}

func (t *SaveTx) InsertThreadReply(ctx context.Context, reply Reply) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO thread_replies (id, thread_id, author, text, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, reply.ID, reply.ThreadID, reply.Author, reply.Text, reply.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert thread reply: %w", err)
	}
	return nil
}

// --- notifications (full-replace) ---

func (t *SaveTx) DeleteAllNotifications(ctx context.Context) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM notifications`)
	if err != nil {
		return fmt.Errorf("delete notifications: %w", err)
	}
	return nil
}

func (t *SaveTx) InsertNotification(ctx context.Context, notification Notification) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, message, date, read)
		VALUES ($1, $2, $3, $4, $5)
	`, notification.ID, notification.UserID, notification.Message, notification.Date, notification.Read)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}
