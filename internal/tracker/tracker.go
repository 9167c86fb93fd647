package tracker

// Types shared by the Jira client and its consumers.

type Issue struct {
	Key         string
	Summary     string
	Description string
	Status      string
	Priority    string
	IssueType   string
	Assignee    string
	Created     string
}

type Transition struct {
	ID       string
	Name     string
	ToStatus string
}

type CreateIssueInput struct {
	ProjectKey  string
	Summary     string
	Description string
	IssueType   string
	Priority    string
	Assignee    string
}

// Identity carries the ways a tracker account can be addressed. Assignee
// resolution falls through account id, then username, then email.
type Identity struct {
	AccountID string
	Username  string
	Email     string
}
