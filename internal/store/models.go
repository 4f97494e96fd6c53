package store

// Row and document types for the application document. JSON names mirror the
// wire payload; parent foreign keys are carried for scanning and grouping but
// never serialized, since children are emitted inside their parent's slot.

type User struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Role          string   `json:"role"`
	Area          string   `json:"area"`
	Password      string   `json:"password,omitempty"`
	ReadThreadIDs []string `json:"readThreadIds"`
}

type StrategicGoal struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type Indicator struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description"`
	Unit            string `json:"unit"`
	Frequency       string `json:"frequency"`
	ResponsibleArea string `json:"responsibleArea"`
	StrategicGoalID string `json:"strategicGoalId"`

	HistoricalData []HistoricalValue `json:"historicalData"`
	Goals          []IndicatorGoal   `json:"goals"`
	Observations   []Observation     `json:"observations"`
	Risks          []Risk            `json:"risks"`
	ActionPlans    []ActionPlan      `json:"actionPlans"`
	Attachments    []Attachment      `json:"attachments"`
	AuditLog       []AuditLogEntry   `json:"auditLog"`
}

type HistoricalValue struct {
	ID          string  `json:"id"`
	IndicatorID string  `json:"-"`
	Date        *string `json:"date"`
	Value       float64 `json:"value"`
}

type IndicatorGoal struct {
	ID          string  `json:"id"`
	IndicatorID string  `json:"-"`
	Date        *string `json:"date"`
	Value       float64 `json:"value"`
}

type Observation struct {
	ID          string  `json:"id"`
	IndicatorID string  `json:"-"`
	Date        *string `json:"date"`
	Text        string  `json:"text"`
	Author      string  `json:"author"`
}

type Risk struct {
	ID             string `json:"id"`
	IndicatorID    string `json:"-"`
	Description    string `json:"description"`
	Probability    string `json:"probability"`
	Impact         string `json:"impact"`
	MitigationPlan string `json:"mitigationPlan"`
	Status         string `json:"status"`
}

type ActionPlan struct {
	ID          string             `json:"id"`
	IndicatorID string             `json:"-"`
	Description string             `json:"description"`
	Responsible string             `json:"responsible"`
	StartDate   *string            `json:"startDate"`
	DueDate     *string            `json:"dueDate"`
	Status      string             `json:"status"`
	Updates     []ActionPlanUpdate `json:"updates"`
}

type ActionPlanUpdate struct {
	ID           string      `json:"id"`
	ActionPlanID string      `json:"-"`
	Date         *string     `json:"date"`
	Text         string      `json:"text"`
	Author       string      `json:"author"`
	Attachment   *Attachment `json:"attachment,omitempty"`
}

type Attachment struct {
	ID          string  `json:"id"`
	IndicatorID string  `json:"-"`
	Name        string  `json:"name"`
	URL         string  `json:"url"`
	ContentType string  `json:"contentType"`
	UploadedBy  string  `json:"uploadedBy"`
	UploadedAt  *string `json:"uploadedAt"`
}

type AuditLogEntry struct {
	ID          string  `json:"id"`
	IndicatorID string  `json:"-"`
	Timestamp   *string `json:"timestamp"`
	UserName    string  `json:"user"`
	Action      string  `json:"action"`
	Details     string  `json:"details"`
}

type Meeting struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Date      *string    `json:"date"`
	Attendees []string   `json:"attendees"`
	Minutes   string     `json:"minutes"`
	Decisions []Decision `json:"decisions"`
}

type Decision struct {
	ID          string  `json:"id"`
	MeetingID   string  `json:"-"`
	Description string  `json:"description"`
	Responsible string  `json:"responsible"`
	DueDate     *string `json:"dueDate"`
	Status      string  `json:"status"`
}

type DiscussionThread struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Author    string  `json:"author"`
	CreatedAt *string `json:"createdAt"`
	Replies   []Reply `json:"replies"`
}

type Reply struct {
	ID        string  `json:"id"`
	ThreadID  string  `json:"-"`
	Author    string  `json:"author"`
	Text      string  `json:"text"`
	CreatedAt *string `json:"createdAt"`
}

type Notification struct {
	ID      string  `json:"id"`
	UserID  string  `json:"userId"`
	Message string  `json:"message"`
	Date    *string `json:"date"`
	Read    bool    `json:"read"`
}

// Document is the fully assembled tree returned to clients.
type Document struct {
	Users             []User             `json:"users"`
	StrategicGoals    []StrategicGoal    `json:"strategicGoals"`
	Indicators        []Indicator        `json:"indicators"`
	Meetings          []Meeting          `json:"meetings"`
	DiscussionThreads []DiscussionThread `json:"discussionThreads"`
	Notifications     []Notification     `json:"notifications"`
}

// PartialDocument is a save submission. A nil collection was absent from the
// payload and must be left untouched; a non-nil empty slice replaces the
// collection with nothing.
type PartialDocument struct {
	Users             *[]User             `json:"users"`
	StrategicGoals    *[]StrategicGoal    `json:"strategicGoals"`
	Indicators        *[]Indicator        `json:"indicators"`
	Meetings          *[]Meeting          `json:"meetings"`
	DiscussionThreads *[]DiscussionThread `json:"discussionThreads"`
	Notifications     *[]Notification     `json:"notifications"`
}

// UserCredential is the slice of a user row the reconciler needs to preserve
// passwords across saves.
type UserCredential struct {
	ID       string
	Password string
}

// IndicatorArea is the slice of an indicator row the guard needs for the
// per-record area check.
type IndicatorArea struct {
	ID              string
	Name            string
	ResponsibleArea string
}
