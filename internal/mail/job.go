package mail

import "context"

// TemplateIssueChange is sent to watchers when an issue they follow is edited.
const TemplateIssueChange = "issue_change"

// Job is one queued email: a recipient, a template name and its data bag.
type Job struct {
	ID       string            `json:"id"`
	To       string            `json:"to"`
	Template string            `json:"template"`
	Data     map[string]string `json:"data"`
}

// Queue buffers jobs between the edit request and the delivery workers.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	// Dequeue blocks until a job is available or ctx is done. It returns
	// (nil, nil) when nothing arrived before its poll interval elapsed.
	Dequeue(ctx context.Context) (*Job, error)
}

// Sender delivers one rendered message.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}
