package app

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"meridian/api/internal/store"
)

func TestGetAppDataComposesTree(t *testing.T) {
	fs := &fakeStore{
		listUsersFn: func(context.Context) ([]store.User, error) {
			return []store.User{{ID: "user-1", Name: "Avery", Password: "$2a$10$secret"}}, nil
		},
		listIndicatorsFn: func(context.Context) ([]store.Indicator, error) {
			return []store.Indicator{
				{ID: "ind-1", Name: "Uptime"},
				{ID: "ind-2", Name: "Latency"},
			}, nil
		},
		listHistoricalDataFn: func(context.Context) ([]store.HistoricalValue, error) {
			return []store.HistoricalValue{
				{ID: "h-1", IndicatorID: "ind-1", Value: 99.5},
				{ID: "h-2", IndicatorID: "ind-1", Value: 99.7},
				{ID: "h-3", IndicatorID: "ind-2", Value: 120},
			}, nil
		},
		listActionPlansFn: func(context.Context) ([]store.ActionPlan, error) {
			return []store.ActionPlan{{ID: "plan-1", IndicatorID: "ind-1"}}, nil
		},
		listActionPlanUpdatesFn: func(context.Context) ([]store.ActionPlanUpdate, error) {
			return []store.ActionPlanUpdate{
				{ID: "upd-1", ActionPlanID: "plan-1", Attachment: &store.Attachment{ID: "att-1"}},
			}, nil
		},
		listAttachmentsFn: func(context.Context) ([]store.Attachment, error) {
			return []store.Attachment{
				{ID: "att-1", IndicatorID: "ind-1", Name: "report.pdf", URL: "/files/report.pdf"},
			}, nil
		},
		listMeetingsFn: func(context.Context) ([]store.Meeting, error) {
			return []store.Meeting{{ID: "mtg-1", Title: "Q3 review"}}, nil
		},
		listDecisionsFn: func(context.Context) ([]store.Decision, error) {
			return []store.Decision{{ID: "dec-1", MeetingID: "mtg-1", Description: "Escalate"}}, nil
		},
		listDiscussionThreadsFn: func(context.Context) ([]store.DiscussionThread, error) {
			return []store.DiscussionThread{{ID: "thr-1", Title: "Data quality"}}, nil
		},
		listThreadRepliesFn: func(context.Context) ([]store.Reply, error) {
			return []store.Reply{{ID: "rep-1", ThreadID: "thr-1", Text: "agreed"}}, nil
		},
	}
	svc := newTestService(fs)

	doc, err := svc.GetAppData(context.Background())
	if err != nil {
		t.Fatalf("GetAppData() error = %v", err)
	}

	if doc.Users[0].Password != "" {
		t.Fatalf("expected password stripped, got %q", doc.Users[0].Password)
	}

	byID := make(map[string]store.Indicator)
	for _, indicator := range doc.Indicators {
		byID[indicator.ID] = indicator
	}
	if len(byID["ind-1"].HistoricalData) != 2 || len(byID["ind-2"].HistoricalData) != 1 {
		t.Fatalf("historical values grouped wrong: ind-1=%d ind-2=%d",
			len(byID["ind-1"].HistoricalData), len(byID["ind-2"].HistoricalData))
	}
	if len(byID["ind-1"].ActionPlans) != 1 {
		t.Fatalf("expected 1 action plan on ind-1, got %d", len(byID["ind-1"].ActionPlans))
	}

	update := byID["ind-1"].ActionPlans[0].Updates[0]
	if update.Attachment == nil || update.Attachment.Name != "report.pdf" {
		t.Fatalf("expected update attachment rehydrated from the stored record, got %+v", update.Attachment)
	}

	if len(doc.Meetings[0].Decisions) != 1 || doc.Meetings[0].Decisions[0].ID != "dec-1" {
		t.Fatalf("decisions not nested under meeting: %+v", doc.Meetings[0])
	}
	if len(doc.DiscussionThreads[0].Replies) != 1 {
		t.Fatalf("replies not nested under thread: %+v", doc.DiscussionThreads[0])
	}
}

func TestGetAppDataEmitsEmptySlicesNotNull(t *testing.T) {
	fs := &fakeStore{
		listIndicatorsFn: func(context.Context) ([]store.Indicator, error) {
			return []store.Indicator{{ID: "ind-1", Name: "Uptime"}}, nil
		},
	}
	svc := newTestService(fs)

	doc, err := svc.GetAppData(context.Background())
	if err != nil {
		t.Fatalf("GetAppData() error = %v", err)
	}

	encoded, err := json.Marshal(doc.Indicators[0])
	if err != nil {
		t.Fatalf("marshal indicator: %v", err)
	}
	body := string(encoded)
	for _, field := range []string{"historicalData", "goals", "observations", "risks", "actionPlans", "attachments", "auditLog"} {
		if !strings.Contains(body, `"`+field+`":[]`) {
			t.Fatalf("expected %s to serialize as [], got %s", field, body)
		}
	}
}

func TestGetAppDataHidesForeignKeys(t *testing.T) {
	fs := &fakeStore{
		listIndicatorsFn: func(context.Context) ([]store.Indicator, error) {
			return []store.Indicator{{ID: "ind-1"}}, nil
		},
		listRisksFn: func(context.Context) ([]store.Risk, error) {
			return []store.Risk{{ID: "risk-1", IndicatorID: "ind-1", Description: "drift"}}, nil
		},
	}
	svc := newTestService(fs)

	doc, err := svc.GetAppData(context.Background())
	if err != nil {
		t.Fatalf("GetAppData() error = %v", err)
	}

	encoded, err := json.Marshal(doc.Indicators[0].Risks[0])
	if err != nil {
		t.Fatalf("marshal risk: %v", err)
	}
	if strings.Contains(string(encoded), "ind-1") {
		t.Fatalf("expected parent key hidden from serialized child, got %s", encoded)
	}
}

func TestGetAppDataDropsOrphanedChildren(t *testing.T) {
	fs := &fakeStore{
		listIndicatorsFn: func(context.Context) ([]store.Indicator, error) {
			return []store.Indicator{{ID: "ind-1"}}, nil
		},
		listObservationsFn: func(context.Context) ([]store.Observation, error) {
			return []store.Observation{
				{ID: "obs-1", IndicatorID: "ind-1", Text: "kept"},
				{ID: "obs-2", IndicatorID: "", Text: "orphan"},
			}, nil
		},
	}
	svc := newTestService(fs)

	doc, err := svc.GetAppData(context.Background())
	if err != nil {
		t.Fatalf("GetAppData() error = %v", err)
	}
	if len(doc.Indicators[0].Observations) != 1 || doc.Indicators[0].Observations[0].ID != "obs-1" {
		t.Fatalf("unexpected observations: %+v", doc.Indicators[0].Observations)
	}
}

func TestGetAppDataFailsWholeOnAnyReadError(t *testing.T) {
	fs := &fakeStore{
		listRisksFn: func(context.Context) ([]store.Risk, error) {
			return nil, errors.New("relation missing")
		},
	}
	svc := newTestService(fs)

	if _, err := svc.GetAppData(context.Background()); err == nil {
		t.Fatal("expected a single failed read to abort the assemble")
	}
}
