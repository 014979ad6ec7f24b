package orchestrator

import "time"

type Task struct {
	ID          ID     `json:"id"`
	Title       string `json:"title"`
	Summary     string `json:"summary,omitempty"`
	Status      string `json:"status"`
	RawStatus   string `json:"raw_status,omitempty"`
	Priority    string `json:"priority,omitempty"`
	Complexity  *int   `json:"complexity,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
	ModifiedAt  string `json:"modified_at,omitempty"`
	FeatureID   ID     `json:"feature_id,omitempty"`
	FeatureName string `json:"feature_name,omitempty"`
	ProjectID   ID     `json:"project_id,omitempty"`
	ProjectName string `json:"project_name,omitempty"`
}

type Feature struct {
	ID         ID     `json:"id"`
	ProjectID  ID     `json:"project_id,omitempty"`
	Name       string `json:"name"`
	Summary    string `json:"summary,omitempty"`
	Status     string `json:"status,omitempty"`
	Priority   string `json:"priority,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
	ModifiedAt string `json:"modified_at,omitempty"`
	Tasks      []Task `json:"tasks"`
}

type Project struct {
	ID         ID        `json:"id"`
	Name       string    `json:"name"`
	Summary    string    `json:"summary,omitempty"`
	Status     string    `json:"status,omitempty"`
	CreatedAt  string    `json:"created_at,omitempty"`
	ModifiedAt string    `json:"modified_at,omitempty"`
	Features   []Feature `json:"features"`
}

// ProjectSummary is the lightweight row used by the project selector.
type ProjectSummary struct {
	ID                    ID     `json:"id"`
	Name                  string `json:"name"`
	Status                string `json:"status,omitempty"`
	FeatureCount          int    `json:"feature_count"`
	CompletedFeatureCount int    `json:"completed_feature_count"`
	TaskCount             int    `json:"task_count"`
	CompletedTaskCount    int    `json:"completed_task_count"`
	TotalComplexity       int    `json:"total_complexity"`
	CompletedComplexity   int    `json:"completed_complexity"`
	TaskCompletion        int    `json:"task_completion_percentage"`
	ComplexityCompletion  int    `json:"complexity_completion_percentage"`
	FeatureCompletion     int    `json:"feature_completion_percentage"`
	CreatedAt             string `json:"created_at,omitempty"`
	ModifiedAt            string `json:"modified_at,omitempty"`
}

type FeatureProgress struct {
	ID              ID     `json:"id"`
	Name            string `json:"name"`
	Status          string `json:"status,omitempty"`
	TaskCount       int    `json:"task_count"`
	CompletedCount  int    `json:"completed_count"`
	InProgressCount int    `json:"in_progress_count"`
}

type OverviewStats struct {
	FeatureCount         int `json:"feature_count"`
	TaskCount            int `json:"task_count"`
	CompletedCount       int `json:"completed_count"`
	DependencyCount      int `json:"dependency_count"`
	SectionCount         int `json:"section_count"`
	TotalTaskCount       int `json:"total_task_count"`
	TotalCompletedCount  int `json:"total_completed_count"`
	TaskCompletion       int `json:"task_completion_percentage"`
	ComplexityCompletion int `json:"complexity_completion_percentage"`
	FeatureCompletion    int `json:"feature_completion_percentage"`
}

type ProjectOverview struct {
	Project  Project           `json:"project"`
	Features []FeatureProgress `json:"features"`
	Tasks    []Task            `json:"tasks"`
	Stats    OverviewStats     `json:"stats"`
}

type TaskCounts struct {
	Total          int     `json:"total"`
	Completed      int     `json:"completed"`
	InProgress     int     `json:"in_progress"`
	Pending        int     `json:"pending"`
	CompletionRate float64 `json:"completion_rate"`
}

type Stats struct {
	Projects     int        `json:"projects"`
	Features     int        `json:"features"`
	Tasks        TaskCounts `json:"tasks"`
	Dependencies int        `json:"dependencies"`
	Sections     int        `json:"sections"`
	Templates    int        `json:"templates"`
	LastUpdated  time.Time  `json:"last_updated"`
}

type Dependency struct {
	ID            ID     `json:"id"`
	FromTaskID    ID     `json:"from_task_id"`
	ToTaskID      ID     `json:"to_task_id"`
	Type          string `json:"type"`
	CreatedAt     string `json:"created_at,omitempty"`
	FromTaskTitle string `json:"from_task_title,omitempty"`
	ToTaskTitle   string `json:"to_task_title,omitempty"`
}

type GraphNode struct {
	ID         ID     `json:"id"`
	Label      string `json:"label"`
	Status     string `json:"status"`
	Priority   string `json:"priority"`
	Complexity int    `json:"complexity"`
}

type GraphEdge struct {
	Source ID     `json:"source"`
	Target ID     `json:"target"`
	Type   string `json:"type"`
}

type DependencyGraph struct {
	Nodes  []GraphNode `json:"nodes"`
	Edges  []GraphEdge `json:"edges"`
	Cycles [][]ID      `json:"circular_dependencies"`
}

type Tag struct {
	Tag         string   `json:"tag"`
	Count       int      `json:"count"`
	EntityTypes []string `json:"entity_types"`
}

type Section struct {
	ID               ID     `json:"id"`
	EntityType       string `json:"entity_type"`
	EntityID         ID     `json:"entity_id"`
	Title            string `json:"title"`
	UsageDescription string `json:"usage_description,omitempty"`
	Content          string `json:"content"`
	ContentFormat    string `json:"content_format,omitempty"`
	Ordinal          int    `json:"ordinal"`
	Tags             string `json:"tags,omitempty"`
	CreatedAt        string `json:"created_at,omitempty"`
	ModifiedAt       string `json:"modified_at,omitempty"`
}

type SearchResult struct {
	Type       string `json:"type"`
	ID         ID     `json:"id"`
	Name       string `json:"name"`
	Summary    string `json:"summary,omitempty"`
	Status     string `json:"status,omitempty"`
	ModifiedAt string `json:"modified_at,omitempty"`
}

type Activity struct {
	Datetime   string `json:"datetime"`
	Project    string `json:"project"`
	EntityType string `json:"entity_type"`
	EntityName string `json:"entity_name"`
	EntityID   ID     `json:"entity_id"`
	Action     string `json:"action"`
}

type Analytics struct {
	StatusDistribution   map[string]int `json:"task_status_distribution"`
	PriorityDistribution map[string]int `json:"task_priority_distribution"`
	AverageComplexity    float64        `json:"average_complexity"`
	BlockedTasks         int            `json:"blocked_tasks"`
	ProjectID            string         `json:"project_id,omitempty"`
	Timestamp            time.Time      `json:"timestamp"`
}
