package agent

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"todo-agent-backend/internal/tasks"
)

// Preprocessor intercepts user messages before the model sees them and
// detects intents the model tends to misread, most importantly "add
// description to task X" which models routinely turn into a brand new
// task. A detected intent becomes a DirectAction executed without any
// model round trip.
type Preprocessor struct {
	svc   *tasks.Service
	owner uuid.UUID
}

func NewPreprocessor(svc *tasks.Service, owner uuid.UUID) *Preprocessor {
	return &Preprocessor{svc: svc, owner: owner}
}

type ActionType string

const (
	ActionUpdateTask ActionType = "update_task"
	ActionDeleteTask ActionType = "delete_task"
	ActionAddTask    ActionType = "add_task"
)

// DirectAction is a tagged variant: Type names the action and exactly
// one of the payload pointers is set.
type DirectAction struct {
	Type   ActionType
	Update *UpdateAction
	Delete *DeleteAction
	Add    *AddAction
}

// UpdateAction sets one field on an existing task.
type UpdateAction struct {
	TaskID    uuid.UUID
	TaskTitle string
	Field     string
	Value     string
}

// DeleteAction soft-deletes an existing task with a reason.
type DeleteAction struct {
	TaskID    uuid.UUID
	TaskTitle string
	Reason    string
}

// AddAction creates a new task from extracted attributes.
type AddAction struct {
	Title    string
	Priority tasks.Priority
	Tags     []string
	DueDate  string
}

var updateByNamePatterns = []*regexp.Regexp{
	// "add description [value] to/in task [name]"
	regexp.MustCompile(`add\s+description\s+(.+?)\s+(?:to|in|for|on)\s+(?:task[s]?\s+)?(.+?)(?:\s+task[s]?)?$`),
	// "add description to/in task [name] [value]"
	regexp.MustCompile(`add\s+description\s+(?:to|in|for|on)\s+(?:task[s]?\s+)?(.+?)\s+(.+)$`),
	// "add [value] description to/in [name] task"
	regexp.MustCompile(`add\s+(.+?)\s+description\s+(?:to|in|for|on)\s+(.+?)\s+task[s]?$`),
}

var updateByNameSimpleRe = regexp.MustCompile(`add\s+description\s+(?:to|in|for|on)?\s*(?:task[s]?)?\s*(\w+)\s+(.+)$`)

var changePriorityPatterns = []*regexp.Regexp{
	// "change priority of [name] task from X to Y"
	regexp.MustCompile(`(?:change|set|update)\s+priority\s+(?:of|for)\s+(.+?)\s+(?:task[s]?)?\s*(?:from\s+\w+\s+)?to\s+(\w+)`),
	// "change [name] task priority to Y"
	regexp.MustCompile(`(?:change|set|update)\s+(.+?)\s+(?:task[s]?)?\s*priority\s+(?:from\s+\w+\s+)?to\s+(\w+)`),
}

var deleteByNamePatterns = []*regexp.Regexp{
	// "delete [name] task with reason [reason]"
	regexp.MustCompile(`delete\s+(?:my\s+)?(.+?)\s+task[s]?\s+(?:with\s+)?reason\s+(.+)$`),
	// "delete task [name] with reason [reason]"
	regexp.MustCompile(`delete\s+(?:my\s+)?task[s]?\s+(.+?)\s+(?:with\s+)?reason\s+(.+)$`),
	// "delete [name] with reason [reason]"
	regexp.MustCompile(`delete\s+(?:my\s+)?(.+?)\s+(?:with\s+)?reason\s+(.+)$`),
	// "remove [name] task because [reason]"
	regexp.MustCompile(`(?:remove|delete)\s+(?:my\s+)?(.+?)\s+task[s]?\s+(?:because|due to|for)\s+(.+)$`),
}

var deleteDescriptionRe = regexp.MustCompile(`with\s+description\s+(.+?)(?:\s+(?:with\s+)?reason|$)`)

var createTaskPatterns = []*regexp.Regexp{
	// "add task [title] with [priority] priority"
	regexp.MustCompile(`add\s+task[s]?\s+(?:with\s+title\s+)?(.+?)\s+with\s+(high|medium|low)\s+priority`),
	// "add task [title] [priority] priority"
	regexp.MustCompile(`add\s+task[s]?\s+(?:with\s+title\s+)?(.+?)\s+(high|medium|low)\s+priority`),
	// "add [priority] priority task [title]"
	regexp.MustCompile(`add\s+(high|medium|low)\s+priority\s+task[s]?\s+(.+?)$`),
	// "add task [title]"
	regexp.MustCompile(`add\s+task[s]?\s+(?:with\s+title\s+)?([^with]+?)(?:\s*$|\s+with\s+)`),
	// "create task [title]"
	regexp.MustCompile(`create\s+(?:a\s+)?task[s]?\s+(?:called\s+|named\s+)?(.+?)(?:\s*$|\s+with\s+)`),
	// "new task [title]"
	regexp.MustCompile(`new\s+task[s]?[:\s]+(.+?)(?:\s*$|\s+with\s+)`),
}

var (
	titleTrailerRe  = regexp.MustCompile(`\s+(high|medium|low|with|priority).*$`)
	priorityWordRe  = regexp.MustCompile(`(high|medium|low)\s+priority`)
	tagsClauseRe    = regexp.MustCompile(`(?:with\s+)?tags?\s+(.+?)(?:\s+(?:due|on|priority)|$)`)
	tagSeparatorRe  = regexp.MustCompile(`[,\s]+`)
	dueDateClauseRe = regexp.MustCompile(`(?:due|on)\s+(\d{4}-\d{2}-\d{2})`)
)

var noiseWords = map[string]bool{
	"my": true, "the": true, "a": true, "an": true, "task": true, "tasks": true,
}

// Preprocess inspects a message and returns a direct action if one of
// the known patterns matches, nil otherwise. Detection order matters:
// update intents are checked before create intents so "add description
// to task X" never creates a task named "description".
func (p *Preprocessor) Preprocess(ctx context.Context, message string) *DirectAction {
	lower := strings.ToLower(strings.TrimSpace(message))

	if action := p.detectUpdateByName(ctx, lower); action != nil {
		return action
	}
	if action := p.detectChangeField(ctx, lower); action != nil {
		return action
	}
	if action := p.detectDeleteByName(ctx, lower); action != nil {
		return action
	}
	if action := p.detectCreateTask(lower); action != nil {
		return action
	}
	return nil
}

func (p *Preprocessor) detectUpdateByName(ctx context.Context, lower string) *DirectAction {
	for _, re := range updateByNamePatterns {
		m := re.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		first := p.findTaskByName(ctx, m[1])
		second := p.findTaskByName(ctx, m[2])
		switch {
		case second != nil && first == nil:
			return updateAction(second, "description", strings.TrimSpace(m[1]))
		case first != nil && second == nil:
			return updateAction(first, "description", strings.TrimSpace(m[2]))
		case first != nil && second != nil:
			// Both segments resolve; the task name usually comes second.
			return updateAction(second, "description", strings.TrimSpace(m[1]))
		}
	}

	if m := updateByNameSimpleRe.FindStringSubmatch(lower); m != nil {
		if task := p.findTaskByName(ctx, m[1]); task != nil {
			return updateAction(task, "description", strings.TrimSpace(m[2]))
		}
	}
	return nil
}

func (p *Preprocessor) detectChangeField(ctx context.Context, lower string) *DirectAction {
	for _, re := range changePriorityPatterns {
		m := re.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		value := tasks.Priority(strings.ToUpper(strings.TrimSpace(m[2])))
		if !value.IsValid() {
			continue
		}
		if task := p.findTaskByName(ctx, m[1]); task != nil {
			return updateAction(task, "priority", string(value))
		}
	}
	return nil
}

func (p *Preprocessor) detectDeleteByName(ctx context.Context, lower string) *DirectAction {
	for _, re := range deleteByNamePatterns {
		m := re.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		reason := strings.TrimSpace(m[2])

		// "delete groceries with description milk reason dup" names
		// the task by title plus description; strip the description
		// clause from the name before matching.
		if idx := strings.Index(name, "with description"); idx >= 0 {
			name = strings.TrimSpace(name[:idx])
		}

		task := p.findTaskByName(ctx, name)
		if task == nil {
			continue
		}
		if dm := deleteDescriptionRe.FindStringSubmatch(lower); dm != nil {
			task = p.findTaskByNameAndDescription(ctx, name, strings.TrimSpace(dm[1]))
		}
		if task == nil {
			continue
		}

		log.Printf("Preprocessor: delete action for task '%s' - reason: %s", task.Title, reason)
		return &DirectAction{
			Type: ActionDeleteTask,
			Delete: &DeleteAction{
				TaskID:    task.ID,
				TaskTitle: task.Title,
				Reason:    reason,
			},
		}
	}
	return nil
}

func (p *Preprocessor) detectCreateTask(lower string) *DirectAction {
	var title string
	priority := tasks.PriorityMedium

	for i, re := range createTaskPatterns {
		m := re.FindStringSubmatch(lower)
		if m == nil {
			continue
		}
		if i == 2 { // "add [priority] priority task [title]"
			priority = tasks.Priority(strings.ToUpper(m[1]))
			title = strings.TrimSpace(m[2])
		} else {
			title = strings.TrimSpace(m[1])
			if i <= 1 {
				priority = tasks.Priority(strings.ToUpper(m[2]))
			}
		}
		break
	}

	if title == "" {
		return nil
	}

	title = strings.TrimSpace(titleTrailerRe.ReplaceAllString(title, ""))

	// A title that references an existing task's fields is an update
	// the earlier detectors missed, not a create.
	for _, word := range []string{"description", "to task", "in task", "for task"} {
		if strings.Contains(title, word) {
			return nil
		}
	}
	if len(title) < 2 {
		return nil
	}

	if m := priorityWordRe.FindStringSubmatch(lower); m != nil {
		priority = tasks.Priority(strings.ToUpper(m[1]))
	}

	var tags []string
	if m := tagsClauseRe.FindStringSubmatch(lower); m != nil {
		for _, t := range tagSeparatorRe.Split(m[1], -1) {
			t = strings.TrimSpace(t)
			if t != "" && t != "and" && t != "or" {
				tags = append(tags, t)
			}
		}
	}

	var dueDate string
	if m := dueDateClauseRe.FindStringSubmatch(lower); m != nil {
		dueDate = m[1]
	}

	log.Printf("Preprocessor: add_task action - title: %s, priority: %s", title, priority)
	return &DirectAction{
		Type: ActionAddTask,
		Add: &AddAction{
			Title:    title,
			Priority: priority,
			Tags:     tags,
			DueDate:  dueDate,
		},
	}
}

func updateAction(task *tasks.Task, field, value string) *DirectAction {
	log.Printf("Preprocessor: update action for task '%s' - %s=%s", task.Title, field, value)
	return &DirectAction{
		Type: ActionUpdateTask,
		Update: &UpdateAction{
			TaskID:    task.ID,
			TaskTitle: task.Title,
			Field:     field,
			Value:     value,
		},
	}
}

// findTaskByName resolves a free-form name against the user's active
// tasks. Matching runs in three passes of decreasing strictness so an
// exact title always beats a loose word overlap: exact match, then
// substring containment either way, then any-word containment.
func (p *Preprocessor) findTaskByName(ctx context.Context, name string) *tasks.Task {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil
	}

	var parts []string
	for _, w := range strings.Fields(name) {
		if !noiseWords[w] {
			parts = append(parts, w)
		}
	}
	if len(parts) == 0 {
		return nil
	}
	clean := strings.Join(parts, " ")

	active := p.activeTasks(ctx)

	for _, t := range active {
		if strings.ToLower(t.Title) == clean {
			return t
		}
	}
	for _, t := range active {
		title := strings.ToLower(t.Title)
		if strings.Contains(title, clean) || strings.Contains(clean, title) {
			return t
		}
	}
	for _, t := range active {
		title := strings.ToLower(t.Title)
		for _, w := range parts {
			if strings.Contains(title, w) {
				return t
			}
		}
	}
	return nil
}

// findTaskByNameAndDescription narrows a name match to the task whose
// description contains the given text.
func (p *Preprocessor) findTaskByNameAndDescription(ctx context.Context, name, description string) *tasks.Task {
	name = strings.ToLower(strings.TrimSpace(name))
	description = strings.ToLower(strings.TrimSpace(description))

	for _, t := range p.activeTasks(ctx) {
		title := strings.ToLower(t.Title)
		if !strings.Contains(title, name) && !strings.Contains(name, title) {
			continue
		}
		desc := ""
		if t.Description != nil {
			desc = strings.ToLower(*t.Description)
		}
		if strings.Contains(desc, description) {
			return t
		}
	}
	return nil
}

func (p *Preprocessor) activeTasks(ctx context.Context) []*tasks.Task {
	list, _, err := p.svc.List(ctx, p.owner, tasks.Filter{}, 0, 0)
	if err != nil {
		log.Printf("[WARN] preprocessor task lookup failed: %v", err)
		return nil
	}
	return list
}

// ConfirmMessage renders the confirmation question for a direct action.
func (a *DirectAction) ConfirmMessage() string {
	switch a.Type {
	case ActionUpdateTask:
		return fmt.Sprintf("Update task '%s' - set %s to '%s'?", a.Update.TaskTitle, a.Update.Field, a.Update.Value)
	case ActionDeleteTask:
		return fmt.Sprintf("Delete task '%s' with reason '%s'?", a.Delete.TaskTitle, a.Delete.Reason)
	default:
		return ""
	}
}
