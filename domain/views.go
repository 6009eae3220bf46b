package domain

// CreatedOnLayout renders creation timestamps as dd/MM/yyyy HH:mm.
const CreatedOnLayout = "02/01/2006 15:04"

// BoardView is the display model of a board in the board listing.
type BoardView struct {
	ID    int64      `json:"id"`
	Name  string     `json:"name"`
	Tasks []TaskView `json:"tasks"`
}

// TaskView is the short display model of a task.
type TaskView struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Owner       string `json:"owner"`
}

// TaskDetails is the display model of the task details page.
type TaskDetails struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CreatedOn   string `json:"createdOn"`
	Board       string `json:"board"`
	Owner       string `json:"owner"`
}

// BoardOption is a board a task can be placed on.
type BoardOption struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// TaskForm is both the create/edit input and the form display model.
type TaskForm struct {
	Title          string        `json:"title" form:"title" validate:"required,notblank"`
	Description    string        `json:"description" form:"description"`
	BoardID        int64         `json:"boardId" form:"boardId" validate:"gt=0"`
	IdempotencyKey string        `json:"idempotencyKey,omitempty" form:"idempotencyKey"`
	Boards         []BoardOption `json:"boards,omitempty" form:"-"`
}

// TaskSearchForm is the search input and its results.
type TaskSearchForm struct {
	Keyword string     `json:"keyword" form:"keyword"`
	Tasks   []TaskView `json:"tasks" form:"-"`
}

// BoardTaskCount is a board name with the number of tasks on it.
type BoardTaskCount struct {
	BoardName  string `json:"boardName"`
	TasksCount int    `json:"tasksCount"`
}

// HomeView is the landing page model.
type HomeView struct {
	AllTasksCount        int              `json:"allTasksCount"`
	BoardsWithTasksCount []BoardTaskCount `json:"boardsWithTasksCount"`
	UserTasksCount       int              `json:"userTasksCount"`
}

// ErrorView is rendered for every error outcome and on the error pages.
type ErrorView struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	RequestID  string `json:"requestId,omitempty"`
}

func newTaskView(t Task) TaskView {
	v := TaskView{ID: t.ID, Title: t.Title, Description: t.Description}
	if t.Owner != nil {
		v.Owner = t.Owner.Username
	}
	return v
}

func newTaskDetails(t Task) TaskDetails {
	d := TaskDetails{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		CreatedOn:   t.CreatedOn.Format(CreatedOnLayout),
	}
	if t.Board != nil {
		d.Board = t.Board.Name
	}
	if t.Owner != nil {
		d.Owner = t.Owner.Username
	}
	return d
}

func newBoardView(b Board) BoardView {
	v := BoardView{ID: b.ID, Name: b.Name, Tasks: make([]TaskView, 0, len(b.Tasks))}
	for _, t := range b.Tasks {
		v.Tasks = append(v.Tasks, newTaskView(t))
	}
	return v
}

func taskViews(tasks []Task) []TaskView {
	out := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, newTaskView(t))
	}
	return out
}
