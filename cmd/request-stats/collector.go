package main

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
)

const (
	requestEventName = "taskboard.request.completed"

	attrRoute      = "http.route"
	attrMethod     = "http.method"
	attrStatus     = "http.status_code"
	attrTotalMs    = "taskboard.total_ms"
	attrTasks      = "taskboard.tasks_count"
	attrErrorStage = "taskboard.error_stage"
)

type logRecord struct {
	EventName    string         `json:"event.name"`
	SeverityText string         `json:"severity_text"`
	Attributes   map[string]any `json:"attributes"`
}

type stats struct {
	count int
	sum   float64
	min   float64
	max   float64
}

func (s *stats) add(v float64) {
	if s.count == 0 || v < s.min {
		s.min = v
	}
	s.max = math.Max(s.max, v)
	s.count++
	s.sum += v
}

type routeSummary struct {
	Count int     `json:"count"`
	MinMs float64 `json:"min_ms"`
	MaxMs float64 `json:"max_ms"`
	AvgMs float64 `json:"avg_ms"`
}

type summary struct {
	TotalEvents    int                     `json:"total_events"`
	SeverityCounts map[string]int          `json:"severity_counts"`
	StatusCounts   map[string]int          `json:"status_counts"`
	Routes         map[string]routeSummary `json:"routes"`
	TasksReturned  int                     `json:"tasks_returned"`
	ErrorStages    map[string]int          `json:"error_stages,omitempty"`
	SkippedLines   int                     `json:"skipped_lines"`
}

// collector aggregates request events from JSON log lines.
type collector struct {
	severity map[string]int
	status   map[int]int
	routes   map[string]*stats
	stages   map[string]int
	tasks    int
	count    int
	skipped  int
}

func newCollector() *collector {
	return &collector{
		severity: map[string]int{},
		status:   map[int]int{},
		routes:   map[string]*stats{},
		stages:   map[string]int{},
	}
}

// ingest accepts raw logrus JSON lines, optionally prefixed by a container
// name and a pipe as docker compose prints them.
func (c *collector) ingest(line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}
	if pipe := strings.Index(trimmed, "|"); pipe >= 0 && !strings.HasPrefix(trimmed, "{") {
		trimmed = strings.TrimSpace(trimmed[pipe+1:])
	}
	var rec logRecord
	if err := sonic.UnmarshalString(trimmed, &rec); err != nil {
		c.skipped++
		return
	}
	if rec.EventName != requestEventName {
		return
	}

	c.count++
	sev := strings.ToUpper(rec.SeverityText)
	if sev == "" {
		sev = "UNSPECIFIED"
	}
	c.severity[sev]++

	attrs := rec.Attributes
	if status, ok := attrs[attrStatus].(float64); ok {
		c.status[int(status)]++
	}
	if n, ok := attrs[attrTasks].(float64); ok {
		c.tasks += int(n)
	}
	if stage, ok := attrs[attrErrorStage].(string); ok && stage != "" {
		c.stages[stage]++
	}
	route, _ := attrs[attrRoute].(string)
	method, _ := attrs[attrMethod].(string)
	key := strings.TrimSpace(method + " " + route)
	if total, ok := attrs[attrTotalMs].(float64); ok && key != "" {
		s, ok := c.routes[key]
		if !ok {
			s = &stats{}
			c.routes[key] = s
		}
		s.add(total)
	}
}

func (c *collector) summary() summary {
	out := summary{
		TotalEvents:    c.count,
		SeverityCounts: c.severity,
		StatusCounts:   make(map[string]int, len(c.status)),
		Routes:         make(map[string]routeSummary, len(c.routes)),
		TasksReturned:  c.tasks,
		SkippedLines:   c.skipped,
	}
	for code, n := range c.status {
		out.StatusCounts[strconv.Itoa(code)] = n
	}
	for key, s := range c.routes {
		out.Routes[key] = routeSummary{Count: s.count, MinMs: s.min, MaxMs: s.max, AvgMs: s.sum / float64(s.count)}
	}
	if len(c.stages) > 0 {
		out.ErrorStages = c.stages
	}
	return out
}

// slowest returns route keys ordered by average latency, slowest first.
func (s summary) slowest() []string {
	keys := make([]string, 0, len(s.Routes))
	for k := range s.Routes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := s.Routes[keys[i]].AvgMs, s.Routes[keys[j]].AvgMs
		if a == b {
			return keys[i] < keys[j]
		}
		return a > b
	})
	return keys
}
