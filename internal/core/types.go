package core

const (
	ChorusName          = "Chorus"
	ChorusUserAgent     = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36 Chorus/0.1"
	ChorusRepositoryURL = "https://github.com/sandevgo/chorus"
	ChorusVersion       = "0.1.0"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Task identifies which reasoning step an inference call belongs to.
// Each task has its own timeout and retry profile.
type Task string

const (
	TaskPlan       Task = "planner"
	TaskValidate   Task = "validator"
	TaskRefine     Task = "refiner"
	TaskAbstract   Task = "abstractor"
	TaskSynthesize Task = "synthesis"
	TaskSummarize  Task = "summary"
	TaskTitle      Task = "title"
)
