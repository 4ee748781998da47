package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Task priorities and statuses accepted by the task tools.
var (
	priorities = []string{"Low", "Medium", "High"}
	statuses   = []string{"Not Started", "In Progress", "Completed"}
)

type calendarEvent struct {
	Date     string `json:"date"`
	Time     string `json:"time"`
	Event    string `json:"event"`
	Location string `json:"location"`
}

type email struct {
	From    string `json:"from"`
	Subject string `json:"subject"`
	Date    string `json:"date"`
	Content string `json:"content"`
}

type task struct {
	Task     string `json:"task"`
	Due      string `json:"due"`
	Priority string `json:"priority"`
	Status   string `json:"status"`
}

type weather struct {
	Condition     string `json:"condition"`
	Temperature   *int   `json:"temperature"`
	Precipitation string `json:"precipitation"`
}

type article struct {
	Title   string `json:"title"`
	Source  string `json:"source"`
	Summary string `json:"summary"`
}

type contact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type expense struct {
	Date     string  `json:"date"`
	Amount   float64 `json:"amount"`
	Category string  `json:"category"`
}

// Store is the in-memory personal data behind the assistant tools. Dates
// are ISO 8601 strings, so range filters compare them lexically.
type Store struct {
	mu       sync.Mutex
	calendar []calendarEvent
	emails   []email
	tasks    []task
	weather  map[string]weather
	news     []article
	contacts []contact
	expenses []expense
}

func temp(c int) *int { return &c }

// NewStore returns a Store seeded with a week of sample data starting on
// 2024-08-24.
func NewStore() *Store {
	return &Store{
		calendar: []calendarEvent{
			{"2024-08-24", "09:00", "Team meeting", "Conference Room A"},
			{"2024-08-25", "14:00", "Dentist appointment", "123 Health St"},
			{"2024-08-26", "18:30", "Dinner with friends", "Italian Restaurant"},
			{"2024-08-27", "10:00", "Project presentation", "Main Office"},
			{"2024-08-28", "15:00", "Gym session", "Fitness Center"},
		},
		emails: []email{
			{"boss@company.com", "Quarterly Review", "2024-08-23", "Please prepare a summary of your projects for our upcoming review."},
			{"friend@email.com", "Weekend plans", "2024-08-22", "Hey, are we still on for dinner on Saturday?"},
			{"newsletter@tech.com", "Latest in AI", "2024-08-21", "Breaking: New AI model surpasses human performance in complex reasoning tasks."},
			{"travel@airline.com", "Flight Confirmation", "2024-08-20", "Your flight to New York on 2024-09-15 has been confirmed."},
		},
		tasks: []task{
			{"Finish project proposal", "2024-08-27", "High", "In Progress"},
			{"Buy groceries", "2024-08-24", "Medium", "Not Started"},
			{"Call mom", "2024-08-25", "Low", "Not Started"},
			{"Prepare presentation slides", "2024-08-26", "High", "Not Started"},
			{"Book hotel for New York trip", "2024-09-01", "Medium", "Not Started"},
		},
		weather: map[string]weather{
			"2024-08-24": {"Sunny", temp(25), "0%"},
			"2024-08-25": {"Partly cloudy", temp(22), "20%"},
			"2024-08-26": {"Rain", temp(18), "80%"},
			"2024-08-27": {"Overcast", temp(20), "40%"},
			"2024-08-28": {"Sunny", temp(27), "0%"},
		},
		news: []article{
			{"New AI breakthrough", "Tech News", "Researchers announce a new AI model capable of complex reasoning."},
			{"Local festival this weekend", "City Gazette", "Annual summer festival to feature live music and food stalls."},
			{"Stock market reaches new high", "Financial Times", "S&P 500 closes at record high amid strong earnings reports."},
			{"Health study reveals benefits of meditation", "Wellness Weekly", "New research shows daily meditation can significantly reduce stress levels."},
		},
		contacts: []contact{
			{"John Doe", "123-456-7890", "john@example.com"},
			{"Jane Smith", "098-765-4321", "jane@example.com"},
			{"Dr. Brown", "555-123-4567", "drbrown@health.com"},
			{"Mom", "777-888-9999", "mom@family.com"},
		},
		expenses: []expense{
			{"2024-08-20", 50.00, "Groceries"},
			{"2024-08-21", 30.00, "Transportation"},
			{"2024-08-22", 100.00, "Dining out"},
			{"2024-08-23", 200.00, "Shopping"},
		},
	}
}

// ---- argument types ----

type dateRange struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

func (r dateRange) validate() error {
	if r.StartDate == "" || r.EndDate == "" {
		return errors.New("start_date and end_date are required")
	}
	return nil
}

func (r dateRange) contains(date string) bool {
	return r.StartDate <= date && date <= r.EndDate
}

type countArgs struct {
	Count int `json:"count"`
}

type statusArgs struct {
	Status string `json:"status"`
}

type dateArgs struct {
	Date string `json:"date"`
}

type queryArgs struct {
	Query string `json:"query"`
}

type addTaskArgs struct {
	Task     string `json:"task"`
	DueDate  string `json:"due_date"`
	Priority string `json:"priority"`
}

// ---- queries ----

// calendarEvents returns the events between r's dates, inclusive.
func (s *Store) calendarEvents(r dateRange) []calendarEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []calendarEvent{}
	for _, e := range s.calendar {
		if r.contains(e.Date) {
			out = append(out, e)
		}
	}
	return out
}

func (s *Store) recentEmails(n int) []email {
	s.mu.Lock()
	defer s.mu.Unlock()
	n = max(0, min(n, len(s.emails)))
	return slices.Clone(s.emails[:n])
}

func (s *Store) tasksByStatus(status string) []task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []task{}
	for _, t := range s.tasks {
		if status == "" || t.Status == status {
			out = append(out, t)
		}
	}
	return out
}

func (s *Store) weatherOn(date string) weather {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok := s.weather[date]; ok {
		return w
	}
	return weather{Condition: "Unknown", Precipitation: "Unknown"}
}

func (s *Store) searchContacts(query string) []contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	lower := strings.ToLower(query)
	out := []contact{}
	for _, c := range s.contacts {
		if strings.Contains(strings.ToLower(c.Name), lower) ||
			strings.Contains(c.Phone, query) ||
			strings.Contains(c.Email, query) {
			out = append(out, c)
		}
	}
	return out
}

func (s *Store) expensesIn(r dateRange) []expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []expense{}
	for _, e := range s.expenses {
		if r.contains(e.Date) {
			out = append(out, e)
		}
	}
	return out
}

func (s *Store) addTask(a addTaskArgs) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, task{Task: a.Task, Due: a.DueDate, Priority: a.Priority, Status: "Not Started"})
}

// ---- tools ----

// handle decodes the arguments into A and JSON-encodes what fn returns.
func handle[A any](fn func(A) (any, error)) func(context.Context, json.RawMessage) (string, error) {
	return func(_ context.Context, raw json.RawMessage) (string, error) {
		var args A
		if err := json.Unmarshal(raw, &args); err != nil {
			return "", fmt.Errorf("decode arguments: %w", err)
		}
		v, err := fn(args)
		if err != nil {
			return "", err
		}
		out, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("encode result: %w", err)
		}
		return string(out), nil
	}
}

func object(required []string, props map[string]any) map[string]any {
	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func str(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

func enum(description string, values []string) map[string]any {
	return map[string]any{"type": "string", "description": description, "enum": values}
}

// AssistantTools returns the personal assistant tools backed by s: calendar,
// email, tasks, weather, news, contacts and expenses lookups plus add_task.
func AssistantTools(s *Store) []Tool {
	rangeProps := map[string]any{
		"start_date": str("Start date (YYYY-MM-DD)"),
		"end_date":   str("End date (YYYY-MM-DD)"),
	}
	return []Tool{
		{
			Name:        "get_calendar_events",
			Description: "Get calendar events for a date range",
			Parameters:  object([]string{"start_date", "end_date"}, rangeProps),
			Handler: handle(func(a dateRange) (any, error) {
				if err := a.validate(); err != nil {
					return nil, err
				}
				return s.calendarEvents(a), nil
			}),
		},
		{
			Name:        "get_recent_emails",
			Description: "Get recent emails",
			Parameters: object([]string{"count"}, map[string]any{
				"count": map[string]any{"type": "integer", "description": "Number of recent emails to retrieve"},
			}),
			Handler: handle(func(a countArgs) (any, error) { return s.recentEmails(a.Count), nil }),
		},
		{
			Name:        "get_tasks",
			Description: "Get tasks, optionally filtered by status",
			Parameters: object(nil, map[string]any{
				"status": enum("Filter tasks by status", statuses),
			}),
			Handler: handle(func(a statusArgs) (any, error) {
				if a.Status != "" && !slices.Contains(statuses, a.Status) {
					return nil, fmt.Errorf("unknown status %q", a.Status)
				}
				return s.tasksByStatus(a.Status), nil
			}),
		},
		{
			Name:        "get_weather",
			Description: "Get weather for a specific date",
			Parameters: object([]string{"date"}, map[string]any{
				"date": str("The date to check weather for (YYYY-MM-DD)"),
			}),
			Handler: handle(func(a dateArgs) (any, error) { return s.weatherOn(a.Date), nil }),
		},
		{
			Name:        "get_news",
			Description: "Get latest news",
			Parameters:  object(nil, map[string]any{}),
			Handler: handle(func(struct{}) (any, error) {
				s.mu.Lock()
				defer s.mu.Unlock()
				return slices.Clone(s.news), nil
			}),
		},
		{
			Name:        "search_contacts",
			Description: "Search contacts by name, phone, or email",
			Parameters: object([]string{"query"}, map[string]any{
				"query": str("Search query"),
			}),
			Handler: handle(func(a queryArgs) (any, error) { return s.searchContacts(a.Query), nil }),
		},
		{
			Name:        "get_expenses",
			Description: "Get expenses for a date range",
			Parameters:  object([]string{"start_date", "end_date"}, rangeProps),
			Handler: handle(func(a dateRange) (any, error) {
				if err := a.validate(); err != nil {
					return nil, err
				}
				return s.expensesIn(a), nil
			}),
		},
		{
			Name:        "add_task",
			Description: "Add a new task",
			Parameters: object([]string{"task", "due_date", "priority"}, map[string]any{
				"task":     str("Task description"),
				"due_date": str("Due date (YYYY-MM-DD)"),
				"priority": enum("Task priority", priorities),
			}),
			Handler: handle(func(a addTaskArgs) (any, error) {
				if a.Task == "" || a.DueDate == "" {
					return nil, errors.New("task and due_date are required")
				}
				if !slices.Contains(priorities, a.Priority) {
					return nil, fmt.Errorf("unknown priority %q", a.Priority)
				}
				s.addTask(a)
				return map[string]string{"status": "success", "message": "Task added successfully"}, nil
			}),
		},
	}
}
