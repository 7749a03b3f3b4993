// Package domain holds the entity types shared by every layer of the
// journaling core: store, template, draft, structurer, agent, and tasks.
package domain

import "time"

type User struct {
	ID           string    `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        *string   `db:"email" json:"email,omitempty"`
	PasswordHash string    `db:"password_hash" json:"-"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	IsVerified   bool      `db:"is_verified" json:"is_verified"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

type AuthSession struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	TokenHash string    `db:"token_hash" json:"-"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	Revoked   bool      `db:"revoked" json:"revoked"`
	UserAgent *string   `db:"user_agent" json:"user_agent,omitempty"`
	IP        *string   `db:"ip" json:"ip,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Valid reports whether the session has not expired and has not been
// revoked, per spec invariant "now < expires_at and not revoked".
func (s AuthSession) Valid(now time.Time) bool {
	return !s.Revoked && now.Before(s.ExpiresAt)
}

type UserPreferences struct {
	UserID                 string            `db:"user_id" json:"user_id"`
	PurposeStatement       *string           `db:"purpose_statement" json:"purpose_statement,omitempty"`
	LongTermGoals          []string          `db:"long_term_goals" json:"long_term_goals"`
	KnownChallenges        []string          `db:"known_challenges" json:"known_challenges"`
	PreferredFeedbackStyle string            `db:"preferred_feedback_style" json:"preferred_feedback_style"`
	PersonalGlossary       map[string]string `db:"personal_glossary" json:"personal_glossary"`
	CreatedAt              time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt              time.Time         `db:"updated_at" json:"updated_at"`
}

// DefaultPreferredFeedbackStyle is used when a UserPreferences row is
// lazily created on first read.
const DefaultPreferredFeedbackStyle = "supportive"

type TemplateSection struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Aliases     []string `json:"aliases"`
}

type UserTemplate struct {
	UserID    string            `db:"user_id" json:"user_id,omitempty"`
	Name      string            `db:"name" json:"name"`
	Sections  []TemplateSection `json:"sections"`
	IsActive  bool              `db:"is_active" json:"is_active"`
	CreatedAt time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt time.Time         `db:"updated_at" json:"updated_at"`
}

// SectionNames returns the ordered list of section names in the template.
func (t UserTemplate) SectionNames() []string {
	names := make([]string, 0, len(t.Sections))
	for _, s := range t.Sections {
		names = append(names, s.Name)
	}
	return names
}

// Section looks up a section by canonical name.
func (t UserTemplate) Section(name string) (TemplateSection, bool) {
	for _, s := range t.Sections {
		if s.Name == name {
			return s, true
		}
	}
	return TemplateSection{}, false
}

// ResolveAlias rewrites an LLM-emitted key to its canonical section name
// if it matches a declared alias (case-insensitive), else returns it
// unchanged.
func (t UserTemplate) ResolveAlias(key string) string {
	for _, s := range t.Sections {
		if s.Name == key {
			return s.Name
		}
		for _, alias := range s.Aliases {
			if equalFold(alias, key) {
				return s.Name
			}
		}
	}
	return key
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

type ConversationType string

const ConversationTypeJournaling ConversationType = "journaling"

type ChatSession struct {
	ID               string           `db:"id" json:"session_id"`
	UserID           string           `db:"user_id" json:"user_id"`
	ConversationType ConversationType `db:"conversation_type" json:"conversation_type"`
	IsActive         bool             `db:"is_active" json:"is_active"`
	Metadata         map[string]any   `db:"metadata" json:"metadata,omitempty"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
}

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

type ChatMessage struct {
	ID        string         `db:"id" json:"id"`
	SessionID string         `db:"session_id" json:"session_id"`
	Role      MessageRole    `db:"role" json:"role"`
	Content   string         `db:"content" json:"content"`
	Metadata  map[string]any `db:"metadata" json:"metadata,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// SectionValue is the dynamic, JSON-shaped value stored per template
// section in a draft: a string, a list of strings, or a string map.
type SectionValue = any

type JournalDraft struct {
	ID          string                  `db:"id" json:"id"`
	SessionID   string                  `db:"session_id" json:"session_id"`
	UserID      string                  `db:"user_id" json:"user_id"`
	DraftData   map[string]SectionValue `db:"draft_data" json:"draft_data"`
	IsFinalized bool                    `db:"is_finalized" json:"is_finalized"`
	Metadata    map[string]any          `db:"metadata" json:"metadata,omitempty"`
	CreatedAt   time.Time               `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time               `db:"updated_at" json:"updated_at"`
}

// IsEmpty reports whether the draft carries no structurable content.
func (d JournalDraft) IsEmpty() bool {
	for _, v := range d.DraftData {
		switch val := v.(type) {
		case string:
			if val != "" {
				return false
			}
		case []string:
			if len(val) > 0 {
				return false
			}
		case []any:
			if len(val) > 0 {
				return false
			}
		case map[string]string:
			if len(val) > 0 {
				return false
			}
		case map[string]any:
			if len(val) > 0 {
				return false
			}
		default:
			if val != nil {
				return false
			}
		}
	}
	return true
}

type JournalEntry struct {
	ID             string                  `db:"id" json:"id"`
	UserID         string                  `db:"user_id" json:"user_id"`
	SessionID      *string                 `db:"session_id" json:"session_id,omitempty"`
	Title          string                  `db:"title" json:"title"`
	StructuredData map[string]SectionValue `db:"structured_data" json:"structured_data"`
	RawText        string                  `db:"raw_text" json:"raw_text,omitempty"`
	Metadata       map[string]any          `db:"metadata" json:"metadata,omitempty"`
	CreatedAt      time.Time               `db:"created_at" json:"created_at"`
}

type Task struct {
	ID              string     `db:"id" json:"id"`
	UserID          string     `db:"user_id" json:"user_id"`
	Title           string     `db:"title" json:"title"`
	Description     *string    `db:"description" json:"description,omitempty"`
	Priority        int        `db:"priority" json:"priority"`
	IsCompleted     bool       `db:"is_completed" json:"is_completed"`
	CompletedAt     *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	DueDate         *time.Time `db:"due_date" json:"due_date,omitempty"`
	SourceSessionID *string    `db:"source_session_id" json:"source_session_id,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}
