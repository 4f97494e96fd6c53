package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Begin opens the single transaction a save request runs under.
func (s *PostgresStore) Begin(ctx context.Context) (*SaveTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin save tx: %w", err)
	}
	return &SaveTx{tx: tx}, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, userID string) (User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, name, role, area, password, read_thread_ids
		FROM users
		WHERE id=$1
	`, userID))
}

func (s *PostgresStore) GetUserByName(ctx context.Context, name string) (User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `
		SELECT id, name, role, area, password, read_thread_ids
		FROM users
		WHERE name=$1
	`, name))
}

func (s *PostgresStore) InsertUser(ctx context.Context, user User) error {
	encoded, err := encodeStringList(user.ReadThreadIDs)
	if err != nil {
		return fmt.Errorf("marshal read thread ids: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, role, area, password, read_thread_ids)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb)
	`, user.ID, user.Name, user.Role, user.Area, user.Password, encoded)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID, password string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET password=$2 WHERE id=$1`, userID, password)
	if err != nil {
		return fmt.Errorf("update user password: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, role, area, password, read_thread_ids
		FROM users
	`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	items := make([]User, 0)
	for rows.Next() {
		item, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListStrategicGoals(ctx context.Context) ([]StrategicGoal, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, description FROM strategic_goals`)
	if err != nil {
		return nil, fmt.Errorf("list strategic goals: %w", err)
	}
	defer rows.Close()

	items := make([]StrategicGoal, 0)
	for rows.Next() {
		var item StrategicGoal
		if err := rows.Scan(&item.ID, &item.Name, &item.Description); err != nil {
			return nil, fmt.Errorf("scan strategic goal: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate strategic goals: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListIndicators(ctx context.Context) ([]Indicator, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, unit, frequency, responsible_area, strategic_goal_id
		FROM indicators
	`)
	if err != nil {
		return nil, fmt.Errorf("list indicators: %w", err)
	}
	defer rows.Close()

	items := make([]Indicator, 0)
	for rows.Next() {
		var item Indicator
		if err := rows.Scan(
			&item.ID,
			&item.Name,
			&item.Description,
			&item.Unit,
			&item.Frequency,
			&item.ResponsibleArea,
			&item.StrategicGoalID,
		); err != nil {
			return nil, fmt.Errorf("scan indicator: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate indicators: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListHistoricalData(ctx context.Context) ([]HistoricalValue, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, indicator_id, date, value FROM historical_data`)
	if err != nil {
		return nil, fmt.Errorf("list historical data: %w", err)
	}
	defer rows.Close()

	items := make([]HistoricalValue, 0)
	for rows.Next() {
		var item HistoricalValue
		var date sql.NullString
		if err := rows.Scan(&item.ID, &item.IndicatorID, &date, &item.Value); err != nil {
			return nil, fmt.Errorf("scan historical value: %w", err)
		}
		item.Date = nullable(date)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate historical data: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListIndicatorGoals(ctx context.Context) ([]IndicatorGoal, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, indicator_id, date, value FROM indicator_goals`)
	if err != nil {
		return nil, fmt.Errorf("list indicator goals: %w", err)
	}
	defer rows.Close()

	items := make([]IndicatorGoal, 0)
	for rows.Next() {
		var item IndicatorGoal
		var date sql.NullString
		if err := rows.Scan(&item.ID, &item.IndicatorID, &date, &item.Value); err != nil {
			return nil, fmt.Errorf("scan indicator goal: %w", err)
		}
		item.Date = nullable(date)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate indicator goals: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListObservations(ctx context.Context) ([]Observation, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, indicator_id, date, text, author FROM observations`)
	if err != nil {
		return nil, fmt.Errorf("list observations: %w", err)
	}
	defer rows.Close()

	items := make([]Observation, 0)
	for rows.Next() {
		var item Observation
		var date sql.NullString
		if err := rows.Scan(&item.ID, &item.IndicatorID, &date, &item.Text, &item.Author); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		item.Date = nullable(date)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observations: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListRisks(ctx context.Context) ([]Risk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, indicator_id, description, probability, impact, mitigation_plan, status
		FROM risks
	`)
	if err != nil {
		return nil, fmt.Errorf("list risks: %w", err)
	}
	defer rows.Close()

	items := make([]Risk, 0)
	for rows.Next() {
		var item Risk
		if err := rows.Scan(
			&item.ID,
			&item.IndicatorID,
			&item.Description,
			&item.Probability,
			&item.Impact,
			&item.MitigationPlan,
			&item.Status,
		); err != nil {
			return nil, fmt.Errorf("scan risk: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate risks: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListActionPlans(ctx context.Context) ([]ActionPlan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, indicator_id, description, responsible, start_date, due_date, status
		FROM action_plans
	`)
	if err != nil {
		return nil, fmt.Errorf("list action plans: %w", err)
	}
	defer rows.Close()

	items := make([]ActionPlan, 0)
	for rows.Next() {
		var item ActionPlan
		var startDate, dueDate sql.NullString
		if err := rows.Scan(
			&item.ID,
			&item.IndicatorID,
			&item.Description,
			&item.Responsible,
			&startDate,
			&dueDate,
			&item.Status,
		); err != nil {
			return nil, fmt.Errorf("scan action plan: %w", err)
		}
		item.StartDate = nullable(startDate)
		item.DueDate = nullable(dueDate)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate action plans: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListActionPlanUpdates(ctx context.Context) ([]ActionPlanUpdate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, action_plan_id, date, text, author, attachment_id
		FROM action_plan_updates
	`)
	if err != nil {
		return nil, fmt.Errorf("list action plan updates: %w", err)
	}
	defer rows.Close()

	items := make([]ActionPlanUpdate, 0)
	for rows.Next() {
		var item ActionPlanUpdate
		var date sql.NullString
		var attachmentID string
		if err := rows.Scan(&item.ID, &item.ActionPlanID, &date, &item.Text, &item.Author, &attachmentID); err != nil {
			return nil, fmt.Errorf("scan action plan update: %w", err)
		}
		item.Date = nullable(date)
		if attachmentID != "" {
			item.Attachment = &Attachment{ID: attachmentID}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate action plan updates: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListAttachments(ctx context.Context) ([]Attachment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, indicator_id, name, url, content_type, uploaded_by, uploaded_at
		FROM attachments
	`)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()

	items := make([]Attachment, 0)
	for rows.Next() {
		var item Attachment
		var uploadedAt sql.NullString
		if err := rows.Scan(
			&item.ID,
			&item.IndicatorID,
			&item.Name,
			&item.URL,
			&item.ContentType,
			&item.UploadedBy,
			&uploadedAt,
		); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		item.UploadedAt = nullable(uploadedAt)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attachments: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListAuditLog(ctx context.Context) ([]AuditLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, indicator_id, timestamp, user_name, action, details
		FROM audit_log
	`)
	if err != nil {
		return nil, fmt.Errorf("list audit log: %w", err)
	}
	defer rows.Close()

	items := make([]AuditLogEntry, 0)
	for rows.Next() {
		var item AuditLogEntry
		var timestamp sql.NullString
		if err := rows.Scan(&item.ID, &item.IndicatorID, &timestamp, &item.UserName, &item.Action, &item.Details); err != nil {
			return nil, fmt.Errorf("scan audit log entry: %w", err)
		}
		item.Timestamp = nullable(timestamp)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit log: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListMeetings(ctx context.Context) ([]Meeting, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, date, attendees, minutes FROM meetings`)
	if err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	defer rows.Close()

	items := make([]Meeting, 0)
	for rows.Next() {
		var item Meeting
		var date sql.NullString
		var attendeesRaw []byte
		if err := rows.Scan(&item.ID, &item.Title, &date, &attendeesRaw, &item.Minutes); err != nil {
			return nil, fmt.Errorf("scan meeting: %w", err)
		}
		item.Date = nullable(date)
		item.Attendees = decodeStringList(attendeesRaw)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate meetings: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListDecisions(ctx context.Context) ([]Decision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, meeting_id, description, responsible, due_date, status
		FROM decisions
	`)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	items := make([]Decision, 0)
	for rows.Next() {
		var item Decision
		var dueDate sql.NullString
		if err := rows.Scan(&item.ID, &item.MeetingID, &item.Description, &item.Responsible, &dueDate, &item.Status); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		item.DueDate = nullable(dueDate)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate decisions: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListDiscussionThreads(ctx context.Context) ([]DiscussionThread, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, author, created_at FROM discussion_threads`)
	if err != nil {
		return nil, fmt.Errorf("list discussion threads: %w", err)
	}
	defer rows.Close()

	items := make([]DiscussionThread, 0)
	for rows.Next() {
		var item DiscussionThread
		var createdAt sql.NullString
		if err := rows.Scan(&item.ID, &item.Title, &item.Author, &createdAt); err != nil {
			return nil, fmt.Errorf("scan discussion thread: %w", err)
		}
		item.CreatedAt = nullable(createdAt)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate discussion threads: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListThreadReplies(ctx context.Context) ([]Reply, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, thread_id, author, text, created_at FROM thread_replies`)
	if err != nil {
		return nil, fmt.Errorf("list thread replies: %w", err)
	}
	defer rows.Close()

	items := make([]Reply, 0)
	for rows.Next() {
		var item Reply
		var createdAt sql.NullString
		if err := rows.Scan(&item.ID, &item.ThreadID, &item.Author, &item.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("scan thread reply: %w", err)
		}
		item.CreatedAt = nullable(createdAt)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate thread replies: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) ListNotifications(ctx context.Context) ([]Notification, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, user_id, message, date, read FROM notifications`)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	items := make([]Notification, 0)
	for rows.Next() {
		var item Notification
		var date sql.NullString
		if err := rows.Scan(&item.ID, &item.UserID, &item.Message, &date, &item.Read); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		item.Date = nullable(date)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return items, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var user User
	var readThreadsRaw []byte
	err := row.Scan(&user.ID, &user.Name, &user.Role, &user.Area, &user.Password, &readThreadsRaw)
	if err != nil {
		return User{}, err
	}
	user.ReadThreadIDs = decodeStringList(readThreadsRaw)
	return user, nil
}

func nullable(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	return &value.String
}

func encodeStringList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	encoded, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func decodeStringList(raw []byte) []string {
	values := make([]string, 0)
	_ = json.Unmarshal(raw, &values)
	return values
}
