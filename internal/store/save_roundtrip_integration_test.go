package store

import (
	"context"
	"database/sql"
	"os"
	"reflect"
	"sort"
	"strings"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Runs against a disposable Postgres instance; the public schema is dropped
// and rebuilt from the embedded migrations.
func TestSaveReadRoundTripPostgres(t *testing.T) {
	dsn := strings.TrimSpace(os.Getenv("MERIDIAN_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("MERIDIAN_TEST_DATABASE_URL is not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("ping postgres: %v", err)
	}
	if _, err := db.ExecContext(ctx, `DROP SCHEMA IF EXISTS public CASCADE; CREATE SCHEMA public;`); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	if err := ApplyMigrations(ctx, db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	s := NewPostgresStore(db)

	applyFixtureSave(ctx, t, s)
	first := snapshotAll(ctx, t, s)

	if len(first.Users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(first.Users))
	}
	if first.Users[0].ID != "user-1" || first.Users[0].Password != fixtureHash {
		t.Fatalf("user-1 did not round-trip: %+v", first.Users[0])
	}
	if !reflect.DeepEqual(first.Users[0].ReadThreadIDs, []string{"thr-1"}) {
		t.Fatalf("read thread ids did not round-trip: %v", first.Users[0].ReadThreadIDs)
	}
	if len(first.Historical) != 1 || *first.Historical[0].Date != "2024-08-19 00:00:00" {
		t.Fatalf("historical value did not round-trip: %+v", first.Historical)
	}
	if len(first.Updates) != 1 || first.Updates[0].Attachment == nil || first.Updates[0].Attachment.ID != "att-1" {
		t.Fatalf("update attachment link did not round-trip: %+v", first.Updates)
	}
	if len(first.Attachments) != 1 || first.Attachments[0].ContentType != "application/pdf" {
		t.Fatalf("attachment did not round-trip: %+v", first.Attachments)
	}
	if !reflect.DeepEqual(first.Meetings[0].Attendees, []string{"Avery", "Blair"}) {
		t.Fatalf("attendees did not round-trip: %v", first.Meetings[0].Attendees)
	}
	if len(first.Notifications) != 1 || !first.Notifications[0].Read {
		t.Fatalf("notification did not round-trip: %+v", first.Notifications)
	}

	// Same write sequence again: the persisted state must come out identical.
	applyFixtureSave(ctx, t, s)
	second := snapshotAll(ctx, t, s)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("repeated save changed persisted state:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

const fixtureHash = "$2a$10$abcdefghijklmnopqrstuv"

// applyFixtureSave runs the statement sequence one reconciled save of a fixed
// document produces: user upserts, full replaces, and per-indicator child
// replacement, all on one transaction.
func applyFixtureSave(ctx context.Context, t *testing.T, s *PostgresStore) {
	t.Helper()

	tx, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("begin save: %v", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	users := []User{
		{ID: "user-1", Name: "Avery", Role: "admin", Area: "", Password: fixtureHash, ReadThreadIDs: []string{"thr-1"}},
		{ID: "user-2", Name: "Blair", Role: "manager", Area: "Operations", Password: fixtureHash, ReadThreadIDs: []string{}},
	}
	for _, user := range users {
		if err := tx.UpsertUser(ctx, user); err != nil {
			t.Fatalf("upsert user: %v", err)
		}
	}

	if err := tx.DeleteAllStrategicGoals(ctx); err != nil {
		t.Fatalf("clear strategic goals: %v", err)
	}
	if err := tx.InsertStrategicGoal(ctx, StrategicGoal{ID: "goal-1", Name: "Grow", Description: "expand"}); err != nil {
		t.Fatalf("insert strategic goal: %v", err)
	}

	indicator := Indicator{
		ID: "ind-1", Name: "Uptime", Description: "monthly availability",
		Unit: "%", Frequency: "monthly", ResponsibleArea: "Operations", StrategicGoalID: "goal-1",
	}
	if err := tx.UpsertIndicator(ctx, indicator); err != nil {
		t.Fatalf("upsert indicator: %v", err)
	}
	if err := tx.DeleteIndicatorChildren(ctx, indicator.ID); err != nil {
		t.Fatalf("clear indicator children: %v", err)
	}
	date := "2024-08-19 00:00:00"
	stamp := "2024-08-19 14:30:00"
	if err := tx.InsertHistoricalValue(ctx, HistoricalValue{ID: "h-1", IndicatorID: "ind-1", Date: &date, Value: 99.5}); err != nil {
		t.Fatalf("insert historical value: %v", err)
	}
	if err := tx.InsertIndicatorGoal(ctx, IndicatorGoal{ID: "g-1", IndicatorID: "ind-1", Date: &date, Value: 99.9}); err != nil {
		t.Fatalf("insert indicator goal: %v", err)
	}
	if err := tx.InsertObservation(ctx, Observation{ID: "obs-1", IndicatorID: "ind-1", Date: &date, Text: "dip", Author: "Avery"}); err != nil {
		t.Fatalf("insert observation: %v", err)
	}
	if err := tx.InsertRisk(ctx, Risk{ID: "risk-1", IndicatorID: "ind-1", Description: "drift", Probability: "low", Impact: "high", Status: "open"}); err != nil {
		t.Fatalf("insert risk: %v", err)
	}
	if err := tx.InsertActionPlan(ctx, ActionPlan{ID: "plan-1", IndicatorID: "ind-1", Description: "patch", Responsible: "Blair", StartDate: &date, Status: "active"}); err != nil {
		t.Fatalf("insert action plan: %v", err)
	}
	if err := tx.InsertActionPlanUpdate(ctx, ActionPlanUpdate{
		ID: "upd-1", ActionPlanID: "plan-1", Date: &stamp, Text: "on track", Author: "Blair",
		Attachment: &Attachment{ID: "att-1"},
	}); err != nil {
		t.Fatalf("insert action plan update: %v", err)
	}
	if err := tx.InsertAttachment(ctx, Attachment{
		ID: "att-1", IndicatorID: "ind-1", Name: "report.pdf", URL: "/files/report.pdf",
		ContentType: "application/pdf", UploadedBy: "Blair", UploadedAt: &stamp,
	}); err != nil {
		t.Fatalf("insert attachment: %v", err)
	}
	if err := tx.InsertAuditLogEntry(ctx, AuditLogEntry{ID: "log-1", IndicatorID: "ind-1", Timestamp: &stamp, UserName: "Avery", Action: "edit", Details: "changed unit"}); err != nil {
		t.Fatalf("insert audit log entry: %v", err)
	}

	if err := tx.DeleteAllMeetings(ctx); err != nil {
		t.Fatalf("clear meetings: %v", err)
	}
	if err := tx.InsertMeeting(ctx, Meeting{ID: "mtg-1", Title: "Q3 review", Date: &date, Attendees: []string{"Avery", "Blair"}, Minutes: "reviewed"}); err != nil {
		t.Fatalf("insert meeting: %v", err)
	}
	if err := tx.InsertDecision(ctx, Decision{ID: "dec-1", MeetingID: "mtg-1", Description: "Escalate", Responsible: "Avery", DueDate: &date, Status: "open"}); err != nil {
		t.Fatalf("insert decision: %v", err)
	}

	if err := tx.DeleteAllDiscussionThreads(ctx); err != nil {
		t.Fatalf("clear threads: %v", err)
	}
	if err := tx.InsertDiscussionThread(ctx, DiscussionThread{ID: "thr-1", Title: "Data quality", Author: "Avery", CreatedAt: &stamp}); err != nil {
		t.Fatalf("insert thread: %v", err)
	}
	if err := tx.InsertThreadReply(ctx, Reply{ID: "rep-1", ThreadID: "thr-1", Author: "Blair", Text: "agreed", CreatedAt: &stamp}); err != nil {
		t.Fatalf("insert reply: %v", err)
	}

	if err := tx.DeleteAllNotifications(ctx); err != nil {
		t.Fatalf("clear notifications: %v", err)
	}
	if err := tx.InsertNotification(ctx, Notification{ID: "not-1", UserID: "user-1", Message: "ping", Date: &stamp, Read: true}); err != nil {
		t.Fatalf("insert notification: %v", err)
	}

	if err := tx.Commit(); err != nil {
		t.Fatalf("commit save: %v", err)
	}
	committed = true
}

type storeSnapshot struct {
	Users         []User
	Goals         []StrategicGoal
	Indicators    []Indicator
	Historical    []HistoricalValue
	Targets       []IndicatorGoal
	Observations  []Observation
	Risks         []Risk
	Plans         []ActionPlan
	Updates       []ActionPlanUpdate
	Attachments   []Attachment
	Audit         []AuditLogEntry
	Meetings      []Meeting
	Decisions     []Decision
	Threads       []DiscussionThread
	Replies       []Reply
	Notifications []Notification
}

// snapshotAll reads every table through the store's list methods and sorts
// each slice by id so snapshots compare order-independently.
func snapshotAll(ctx context.Context, t *testing.T, s *PostgresStore) storeSnapshot {
	t.Helper()

	var snap storeSnapshot
	var err error
	if snap.Users, err = s.ListUsers(ctx); err != nil {
		t.Fatalf("list users: %v", err)
	}
	if snap.Goals, err = s.ListStrategicGoals(ctx); err != nil {
		t.Fatalf("list strategic goals: %v", err)
	}
	if snap.Indicators, err = s.ListIndicators(ctx); err != nil {
		t.Fatalf("list indicators: %v", err)
	}
	if snap.Historical, err = s.ListHistoricalData(ctx); err != nil {
		t.Fatalf("list historical data: %v", err)
	}
	if snap.Targets, err = s.ListIndicatorGoals(ctx); err != nil {
		t.Fatalf("list indicator goals: %v", err)
	}
	if snap.Observations, err = s.ListObservations(ctx); err != nil {
		t.Fatalf("list observations: %v", err)
	}
	if snap.Risks, err = s.ListRisks(ctx); err != nil {
		t.Fatalf("list risks: %v", err)
	}
	if snap.Plans, err = s.ListActionPlans(ctx); err != nil {
		t.Fatalf("list action plans: %v", err)
	}
	if snap.Updates, err = s.ListActionPlanUpdates(ctx); err != nil {
		t.Fatalf("list action plan updates: %v", err)
	}
	if snap.Attachments, err = s.ListAttachments(ctx); err != nil {
		t.Fatalf("list attachments: %v", err)
	}
	if snap.Audit, err = s.ListAuditLog(ctx); err != nil {
		t.Fatalf("list audit log: %v", err)
	}
	if snap.Meetings, err = s.ListMeetings(ctx); err != nil {
		t.Fatalf("list meetings: %v", err)
	}
	if snap.Decisions, err = s.ListDecisions(ctx); err != nil {
		t.Fatalf("list decisions: %v", err)
	}
	if snap.Threads, err = s.ListDiscussionThreads(ctx); err != nil {
		t.Fatalf("list discussion threads: %v", err)
	}
	if snap.Replies, err = s.ListThreadReplies(ctx); err != nil {
		t.Fatalf("list thread replies: %v", err)
	}
	if snap.Notifications, err = s.ListNotifications(ctx); err != nil {
		t.Fatalf("list notifications: %v", err)
	}

	sortByID(snap.Users, func(r User) string { return r.ID })
	sortByID(snap.Goals, func(r StrategicGoal) string { return r.ID })
	sortByID(snap.Indicators, func(r Indicator) string { return r.ID })
	sortByID(snap.Historical, func(r HistoricalValue) string { return r.ID })
	sortByID(snap.Targets, func(r IndicatorGoal) string { return r.ID })
	sortByID(snap.Observations, func(r Observation) string { return r.ID })
	sortByID(snap.Risks, func(r Risk) string { return r.ID })
	sortByID(snap.Plans, func(r ActionPlan) string { return r.ID })
	sortByID(snap.Updates, func(r ActionPlanUpdate) string { return r.ID })
	sortByID(snap.Attachments, func(r Attachment) string { return r.ID })
	sortByID(snap.Audit, func(r AuditLogEntry) string { return r.ID })
	sortByID(snap.Meetings, func(r Meeting) string { return r.ID })
	sortByID(snap.Decisions, func(r Decision) string { return r.ID })
	sortByID(snap.Threads, func(r DiscussionThread) string { return r.ID })
	sortByID(snap.Replies, func(r Reply) string { return r.ID })
	sortByID(snap.Notifications, func(r Notification) string { return r.ID })
	return snap
}

func sortByID[T any](rows []T, id func(T) string) {
	sort.Slice(rows, func(i, j int) bool { return id(rows[i]) < id(rows[j]) })
}
